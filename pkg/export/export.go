// Package export renders tabular attendance data as downloadable files.
package export

import (
	"fmt"
	"strings"
)

// Format identifies an output file type.
type Format string

const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

// ParseFormat resolves a user supplied format name. Empty means CSV.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatPDF:
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "text/csv; charset=utf-8"
}

// Table is an ordered set of rows under a header. Notes are rendered after the
// rows (a summary line per entry).
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
	Notes   []string
}

// Renderer turns a table into file bytes.
type Renderer interface {
	Render(table Table) ([]byte, error)
}

// RendererFor returns the renderer of format.
func RendererFor(format Format) Renderer {
	if format == FormatPDF {
		return NewPDFRenderer()
	}
	return NewCSVRenderer()
}

func validate(table Table) error {
	if len(table.Headers) == 0 {
		return fmt.Errorf("table requires at least one header")
	}
	for i, row := range table.Rows {
		if len(row) != len(table.Headers) {
			return fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(table.Headers))
		}
	}
	return nil
}
