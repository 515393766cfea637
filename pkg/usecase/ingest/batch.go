package ingest

import (
	"context"
	"os"

	"github.com/m-mizutani/fennec/pkg/model"
	"github.com/m-mizutani/fennec/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

type workItem struct {
	file   model.DriveFile
	update bool
}

// processAll runs the work list in batches, updating the report in place.
func (p *Pipeline) processAll(ctx context.Context, work []workItem, report *model.SyncReport) {
	logger := logging.From(ctx)

	for start := 0; start < len(work); start += batchSize {
		end := start + batchSize
		if end > len(work) {
			end = len(work)
		}

		for _, item := range work[start:end] {
			switch err := p.processFile(ctx, item.file); {
			case err == nil:
				if item.update {
					report.Updated++
				} else {
					report.Added++
				}
			case goerr.HasTag(err, tagSkipped):
				report.Skipped++
			default:
				report.Failed++
				logger.Warn("file processing failed",
					"id", item.file.ID,
					"name", item.file.Name,
					"folder", item.file.FolderPath,
					"error", err)
			}
		}

		logger.Info("batch processed",
			"done", end,
			"remaining", len(work)-end,
			"added", report.Added,
			"updated", report.Updated,
			"skipped", report.Skipped,
			"failed", report.Failed)
	}
}

// tagSkipped marks files with no extractable text. Skipped is not failed:
// the file stays out of the store on purpose.
var tagSkipped = goerr.NewTag("skipped")

var errNoText = goerr.New("no extractable text", goerr.T(tagSkipped))

// processFile moves one file through download, extraction and upsert.
func (p *Pipeline) processFile(ctx context.Context, file model.DriveFile) error {
	text, err := p.extractText(ctx, file)
	if err != nil {
		return err
	}
	if text == "" {
		return goerr.Wrap(errNoText, "skipping file", goerr.V("id", file.ID))
	}

	doc := model.Document{
		ID:   file.ID,
		Text: text,
		Metadata: model.Metadata{
			Name:         file.Name,
			MimeType:     file.MimeType,
			FolderPath:   file.FolderPath,
			ModifiedTime: file.ModifiedTime,
			Extension:    model.ExtensionForMIME(file.MimeType),
			GoogleLink:   model.GoogleLink(file.ID, file.MimeType),
		},
	}

	if err := p.store.AddMany(ctx, []model.Document{doc}); err != nil {
		return goerr.Wrap(err, "failed to store document", goerr.V("id", file.ID))
	}

	return nil
}

// extractText produces the plain text of one drive file. Native spreadsheets
// are read through the structured sheet API first; every other type (and the
// sheet fallback) goes through download-to-temp plus MIME dispatch.
func (p *Pipeline) extractText(ctx context.Context, file model.DriveFile) (string, error) {
	if file.MimeType == model.MimeGoogleSpreadsheet {
		text, err := p.drive.ReadSheet(ctx, file.ID)
		if err == nil {
			return text, nil
		}
		logging.From(ctx).Warn("sheet API read failed, falling back to export",
			"id", file.ID, "name", file.Name, "error", err)
	}

	tmp, err := os.CreateTemp("", "fennec-*"+model.ExtensionForMIME(file.MimeType))
	if err != nil {
		return "", goerr.Wrap(err, "failed to create temp file")
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := p.drive.Download(ctx, file.ID, file.MimeType, tmp); err != nil {
		_ = tmp.Close()
		return "", goerr.Wrap(err, "failed to download file", goerr.V("id", file.ID))
	}
	if err := tmp.Close(); err != nil {
		return "", goerr.Wrap(err, "failed to flush temp file", goerr.V("path", tmpPath))
	}

	text, err := p.extractor.ExtractFile(ctx, tmpPath, model.ExportMIME(file.MimeType))
	if err != nil {
		return "", goerr.Wrap(err, "failed to extract text", goerr.V("id", file.ID))
	}

	return text, nil
}
