package record

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/kailas-cloud/prestadores/internal/domain"
)

func writeCSV(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prestadores.csv")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func writeXLSX(t *testing.T, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		r := row
		if err := f.SetSheetRow("Sheet1", cell, &r); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}

	path := filepath.Join(t.TempDir(), "prestadores.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save xlsx: %v", err)
	}
	return path
}

func TestLoad_CSV(t *testing.T) {
	path := writeCSV(t, "Nombre,Especialidad,Teléfono\n"+
		"Ana Pérez,CARDIOLOGIA,555-0101\n"+
		"Luis Gómez,DERMATOLOGIA,\n")

	docs, err := New().Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 docs, got %d", len(docs))
	}

	if want := "Nombre: Ana Pérez | Especialidad: CARDIOLOGIA | Teléfono: 555-0101"; docs[0].Content != want {
		t.Errorf("content = %q, want %q", docs[0].Content, want)
	}
	if want := "Nombre: Luis Gómez | Especialidad: DERMATOLOGIA"; docs[1].Content != want {
		t.Errorf("empty cell must be omitted, got %q", docs[1].Content)
	}

	md := docs[1].Metadata
	if md.Source != path || md.RowIndex != 1 || md.FileType != domain.FileTypeCSV {
		t.Errorf("unexpected metadata: %+v", md)
	}
}

func TestLoad_SkipsEmptyRowsButConsumesIndex(t *testing.T) {
	path := writeCSV(t, "Nombre,Especialidad\n"+
		"Ana,CARDIOLOGIA\n"+
		",\n"+
		"Luis,DERMATOLOGIA\n")

	docs, err := New().Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 docs, got %d", len(docs))
	}
	if docs[0].Metadata.RowIndex != 0 || docs[1].Metadata.RowIndex != 2 {
		t.Errorf("expected row indexes 0 and 2, got %d and %d",
			docs[0].Metadata.RowIndex, docs[1].Metadata.RowIndex)
	}
}

func TestLoad_HeaderOnly(t *testing.T) {
	docs, err := New().Load(writeCSV(t, "Nombre,Especialidad\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("expected empty corpus, got %d docs", len(docs))
	}
}

func TestLoad_XLSX(t *testing.T) {
	path := writeXLSX(t, [][]any{
		{"Nombre", "Especialidad", "Localidad"},
		{"Ana Pérez", "CARDIOLOGIA", "Rosario"},
		{"Luis Gómez", "", "Córdoba"},
	})

	docs, err := New().Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 docs, got %d", len(docs))
	}
	if want := "Nombre: Ana Pérez | Especialidad: CARDIOLOGIA | Localidad: Rosario"; docs[0].Content != want {
		t.Errorf("content = %q, want %q", docs[0].Content, want)
	}
	if want := "Nombre: Luis Gómez | Localidad: Córdoba"; docs[1].Content != want {
		t.Errorf("content = %q, want %q", docs[1].Content, want)
	}
	if docs[0].Metadata.FileType != domain.FileTypeExcel {
		t.Errorf("expected excel file type, got %q", docs[0].Metadata.FileType)
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	badXLSX := filepath.Join(dir, "broken.xlsx")
	if err := os.WriteFile(badXLSX, []byte("not a zip"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(dir, "missing.csv")},
		{"corrupt workbook", badXLSX},
		{"unsupported extension", filepath.Join(dir, "data.json")},
		{"malformed csv", writeCSV(t, "a,b\n\"unterminated,1\n")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New().Load(tc.path)
			if !errors.Is(err, domain.ErrDataLoad) {
				t.Fatalf("expected ErrDataLoad, got %v", err)
			}
			var dle *domain.DataLoadError
			if !errors.As(err, &dle) || dle.Path != tc.path {
				t.Fatalf("expected DataLoadError for %s, got %v", tc.path, err)
			}
		})
	}
}

func TestColumnName_Unnamed(t *testing.T) {
	if got := columnName([]string{"A", ""}, 1); got != "Unnamed: 1" {
		t.Errorf("got %q", got)
	}
	if got := columnName([]string{"A"}, 3); got != "Unnamed: 3" {
		t.Errorf("got %q", got)
	}
}
