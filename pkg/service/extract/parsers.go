package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/fumiama/go-docx"
	"github.com/ledongthuc/pdf"
	"github.com/m-mizutani/goerr/v2"
	"github.com/xuri/excelize/v2"
)

// extractPDF concatenates the text of every page.
func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", goerr.Wrap(err, "failed to open pdf")
	}

	body, err := reader.GetPlainText()
	if err != nil {
		return "", goerr.Wrap(err, "failed to read pdf text")
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(body); err != nil {
		return "", goerr.Wrap(err, "failed to collect pdf text")
	}

	return buf.String(), nil
}

// extractDOCX walks the document body and renders paragraphs and tables.
func extractDOCX(data []byte) (string, error) {
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", goerr.Wrap(err, "failed to parse docx")
	}

	var sb strings.Builder
	for _, item := range doc.Document.Body.Items {
		switch item.(type) {
		case *docx.Paragraph, *docx.Table:
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(fmt.Sprint(item))
		}
	}

	return sb.String(), nil
}

// extractXLSX joins the cells of each sheet by tab, one row per line, each
// sheet prefixed with its name.
func extractXLSX(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", goerr.Wrap(err, "failed to open xlsx")
	}
	defer f.Close()

	var sb strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", goerr.Wrap(err, "failed to read sheet", goerr.V("sheet", sheet))
		}

		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString("[Sheet: " + sheet + "]")

		for _, row := range rows {
			cells := make([]string, 0, len(row))
			for _, cell := range row {
				if s := strings.TrimSpace(cell); s != "" {
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
