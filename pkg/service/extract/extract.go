// Package extract turns downloaded drive files into plain text, dispatching
// on MIME type. Extraction never fails the caller for unparsable content: a
// file with no extractable text yields an empty string.
package extract

import (
	"context"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/m-mizutani/fennec/pkg/model"
	"github.com/m-mizutani/fennec/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Extractor converts file bytes into plain text by MIME type.
type Extractor struct{}

// New creates an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// ExtractFile reads the file at path and extracts its text. The mimeType is
// the type of the bytes on disk (already exported for native formats).
func (x *Extractor) ExtractFile(ctx context.Context, path, mimeType string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", goerr.Wrap(err, "failed to read file", goerr.V("path", path))
	}
	return x.Extract(ctx, data, mimeType, path)
}

// Extract extracts text from raw bytes. The path is used for logging only.
func (x *Extractor) Extract(ctx context.Context, data []byte, mimeType, path string) (string, error) {
	if len(data) == 0 {
		return "", nil
	}

	logger := logging.From(ctx)

	switch {
	case mimeType == model.MimePDF:
		text, err := extractPDF(data)
		if err != nil {
			logger.Warn("pdf extraction failed",
				"path", path, "size", len(data), "error", err)
			return "", nil
		}
		return text, nil

	case mimeType == model.MimeDOCX:
		text, err := extractDOCX(data)
		if err != nil {
			// Some drive exports mislabel plain files; fall back to treating
			// the bytes as text before giving up.
			logger.Warn("docx extraction failed, falling back to raw text",
				"path", path, "size", len(data), "error", err)
			return plainText(data), nil
		}
		return text, nil

	case mimeType == model.MimeXLSX:
		text, err := extractXLSX(data)
		if err != nil {
			logger.Warn("xlsx extraction failed",
				"path", path, "size", len(data), "error", err)
			return "", nil
		}
		return text, nil

	case strings.HasPrefix(mimeType, "text/"):
		return plainText(data), nil
	}

	logger.Debug("unsupported mime type, no text extracted",
		"path", path, "mimeType", mimeType, "size", len(data))
	return "", nil
}

// plainText interprets bytes as UTF-8, dropping anything that is not valid.
func plainText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), "")
}
