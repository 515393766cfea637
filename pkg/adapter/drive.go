package adapter

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/m-mizutani/fennec/pkg/model"
	"github.com/m-mizutani/fennec/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// DefaultMaxFolders bounds the drive traversal against cycles and
// pathological trees.
const DefaultMaxFolders = 10000

// Drive is the cloud drive capability: folder tree enumeration, content
// download (with server-side export for native formats), and structured
// spreadsheet reading.
type Drive interface {
	ListTree(ctx context.Context, rootFolderID string, maxFolders int) ([]model.DriveFile, error)
	Download(ctx context.Context, fileID, mimeType string, dst io.Writer) error
	ReadSheet(ctx context.Context, fileID string) (string, error)
}

type driveClient struct {
	files  *drive.Service
	sheets *sheets.Service
}

// NewDrive creates a Drive backed by the Google Drive and Sheets APIs using
// application default credentials (or the given client options).
func NewDrive(ctx context.Context, opts ...option.ClientOption) (Drive, error) {
	scoped := append([]option.ClientOption{
		option.WithScopes(drive.DriveReadonlyScope, sheets.SpreadsheetsReadonlyScope),
	}, opts...)

	fileSvc, err := drive.NewService(ctx, scoped...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create drive service")
	}
	sheetSvc, err := sheets.NewService(ctx, scoped...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create sheets service")
	}

	return &driveClient{files: fileSvc, sheets: sheetSvc}, nil
}

// folderNode is one pending entry of the BFS traversal queue.
type folderNode struct {
	id      string
	relPath string
}

// ListTree walks the folder tree under rootFolderID breadth-first and returns
// every file found. Folders are traversal nodes only and never appear in the
// result. A folder whose listing fails is logged and skipped; hitting
// maxFolders terminates the walk with partial results.
func (d *driveClient) ListTree(ctx context.Context, rootFolderID string, maxFolders int) ([]model.DriveFile, error) {
	if rootFolderID == "" {
		return nil, goerr.New("root folder id is required")
	}
	if maxFolders <= 0 {
		maxFolders = DefaultMaxFolders
	}

	logger := logging.From(ctx)

	var files []model.DriveFile
	queue := []folderNode{{id: rootFolderID}}
	visited := map[string]bool{rootFolderID: true}
	listed := 0

	for len(queue) > 0 {
		if listed >= maxFolders {
			logger.Warn("folder limit reached, returning partial tree",
				"maxFolders", maxFolders, "pending", len(queue))
			break
		}

		node := queue[0]
		queue = queue[1:]
		listed++

		children, err := d.listFolder(ctx, node.id)
		if err != nil {
			logger.Warn("failed to list folder, skipping",
				"folderID", node.id, "path", node.relPath, "error", err)
			continue
		}

		for _, f := range children {
			if f.MimeType == model.MimeGoogleFolder {
				if visited[f.Id] {
					continue
				}
				visited[f.Id] = true
				queue = append(queue, folderNode{
					id:      f.Id,
					relPath: joinPath(node.relPath, f.Name),
				})
				continue
			}

			files = append(files, model.DriveFile{
				ID:           f.Id,
				Name:         f.Name,
				MimeType:     f.MimeType,
				FolderPath:   node.relPath,
				ModifiedTime: f.ModifiedTime,
			})
		}
	}

	return files, nil
}

// listFolder fetches all direct children of one folder, following pagination.
func (d *driveClient) listFolder(ctx context.Context, folderID string) ([]*drive.File, error) {
	query := fmt.Sprintf("'%s' in parents and trashed = false", folderID)

	var children []*drive.File
	pageToken := ""
	for {
		call := d.files.Files.List().
			Q(query).
			Fields("nextPageToken, files(id, name, mimeType, modifiedTime)").
			PageSize(1000).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		page, err := call.Do()
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list folder", goerr.V("folderID", folderID))
		}

		children = append(children, page.Files...)
		if page.NextPageToken == "" {
			return children, nil
		}
		pageToken = page.NextPageToken
	}
}

// Download streams the file content into dst. Native formats are exported
// server-side to their portable MIME before streaming. The call returns only
// after the remote body has been fully copied.
func (d *driveClient) Download(ctx context.Context, fileID, mimeType string, dst io.Writer) error {
	var body io.ReadCloser

	if model.IsGoogleNative(mimeType) {
		resp, err := d.files.Files.Export(fileID, model.ExportMIME(mimeType)).Context(ctx).Download()
		if err != nil {
			return goerr.Wrap(err, "failed to export file",
				goerr.V("fileID", fileID), goerr.V("mimeType", mimeType))
		}
		body = resp.Body
	} else {
		resp, err := d.files.Files.Get(fileID).Context(ctx).Download()
		if err != nil {
			return goerr.Wrap(err, "failed to download file", goerr.V("fileID", fileID))
		}
		body = resp.Body
	}
	defer body.Close()

	if _, err := io.Copy(dst, body); err != nil {
		return goerr.Wrap(err, "failed to write file content", goerr.V("fileID", fileID))
	}

	return nil
}

// ReadSheet reads a native spreadsheet through the Sheets API, one sheet at a
// time, dropping empty cells. Each sheet is prefixed with its name.
func (d *driveClient) ReadSheet(ctx context.Context, fileID string) (string, error) {
	doc, err := d.sheets.Spreadsheets.Get(fileID).Context(ctx).Do()
	if err != nil {
		return "", goerr.Wrap(err, "failed to get spreadsheet", goerr.V("fileID", fileID))
	}

	var sb strings.Builder
	for _, sheet := range doc.Sheets {
		title := sheet.Properties.Title
		values, err := d.sheets.Spreadsheets.Values.Get(fileID, title).Context(ctx).Do()
		if err != nil {
			return "", goerr.Wrap(err, "failed to read sheet values",
				goerr.V("fileID", fileID), goerr.V("sheet", title))
		}

		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString("[Sheet: " + title + "]")

		for _, row := range values.Values {
			cells := make([]string, 0, len(row))
			for _, cell := range row {
				s := strings.TrimSpace(fmt.Sprint(cell))
				if s != "" {
					cells = append(cells, s)
				}
			}
			if len(cells) > 0 {
				sb.WriteString("\n")
				sb.WriteString(strings.Join(cells, "\t"))
			}
		}
	}

	return sb.String(), nil
}

func joinPath(base, name string) string {
	if base == "" {
		return name
	}
	return base + "/" + name
}
