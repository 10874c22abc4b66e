// Package record reads the tabular provider corpus into documents, one per row.
package record

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kailas-cloud/prestadores/internal/domain"
)

const (
	pairSeparator = " | "
	keyValueSep   = ": "
)

// ErrUnsupportedFormat is returned for extensions other than .xlsx and .csv.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Loader reads provider rows from spreadsheet or CSV files.
type Loader struct{}

// New creates a record loader.
func New() *Loader {
	return &Loader{}
}

// Load reads path and returns one document per non-empty data row.
// Any failure is reported as *domain.DataLoadError.
func (l *Loader) Load(path string) ([]domain.Document, error) {
	var (
		rows     [][]string
		fileType string
		err      error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		rows, err = readXLSX(path)
		fileType = domain.FileTypeExcel
	case ".csv":
		rows, err = readCSV(path)
		fileType = domain.FileTypeCSV
	default:
		err = fmt.Errorf("%q: %w", filepath.Ext(path), ErrUnsupportedFormat)
	}
	if err != nil {
		return nil, &domain.DataLoadError{Path: path, Err: err}
	}

	return toDocuments(rows, path, fileType), nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

// toDocuments treats the first row as the header. Every following row
// consumes an index, even when it ends up skipped for having no values.
func toDocuments(rows [][]string, source, fileType string) []domain.Document {
	if len(rows) == 0 {
		return nil
	}

	header := rows[0]
	docs := make([]domain.Document, 0, len(rows)-1)

	for idx, row := range rows[1:] {
		content := rowContent(header, row)
		if content == "" {
			continue
		}
		docs = append(docs, domain.Document{
			Content: content,
			Metadata: domain.Metadata{
				Source:   source,
				RowIndex: idx,
				FileType: fileType,
			},
		})
	}
	return docs
}

func rowContent(header, row []string) string {
	pairs := make([]string, 0, len(row))
	for i, val := range row {
		if strings.TrimSpace(val) == "" {
			continue
		}
		pairs = append(pairs, columnName(header, i)+keyValueSep+val)
	}
	return strings.Join(pairs, pairSeparator)
}

// columnName falls back to the positional name spreadsheets show for
// columns without a header cell.
func columnName(header []string, i int) string {
	if i < len(header) && strings.TrimSpace(header[i]) != "" {
		return header[i]
	}
	return fmt.Sprintf("Unnamed: %d", i)
}
