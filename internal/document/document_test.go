package document

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/csvview/csvview/internal/source"
)

func openDoc(t *testing.T, content string) *Document {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	d, err := Open(context.Background(), Config{Path: path})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestOpenScenario(t *testing.T) {
	d := openDoc(t, "name,age\nAlice,30\nBob,\"25,x\"\n")

	if d.Rows() != 3 {
		t.Fatalf("Rows = %d, want 3", d.Rows())
	}
	if d.DataRows() != 2 {
		t.Errorf("DataRows = %d, want 2", d.DataRows())
	}
	if !reflect.DeepEqual(d.Columns(), []string{"name", "age"}) {
		t.Errorf("Columns = %v", d.Columns())
	}

	cell := func(row, col int) string {
		t.Helper()
		v, err := d.Cell(row, col)
		if err != nil {
			t.Fatalf("Cell(%d, %d): %v", row, col, err)
		}
		return v
	}

	if cell(1, 1) != "30" {
		t.Errorf("Cell(1,1) = %q, want %q", cell(1, 1), "30")
	}
	if cell(2, 1) != "25,x" {
		t.Errorf("Cell(2,1) = %q, want %q", cell(2, 1), "25,x")
	}

	if err := d.Set(2, 1, "26"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if cell(2, 1) != "26" {
		t.Errorf("Cell(2,1) after Set = %q, want %q", cell(2, 1), "26")
	}

	d.ClearEdit(2, 1)
	if cell(2, 1) != "25,x" {
		t.Errorf("Cell(2,1) after ClearEdit = %q, want original", cell(2, 1))
	}
}

func TestCellDeterministic(t *testing.T) {
	d := openDoc(t, "a,b\n\"x,\"\"y\",z\n")
	first, err := d.Cell(1, 0)
	if err != nil {
		t.Fatal(err)
	}
	second, _ := d.Cell(1, 0)
	if first != second || first != `x,"y` {
		t.Errorf("got %q then %q", first, second)
	}
}

func TestCellOutOfBounds(t *testing.T) {
	d := openDoc(t, "a,b\n1,2\n")
	for _, rc := range [][2]int{{-1, 0}, {5, 0}, {0, -1}, {0, 2}} {
		if _, err := d.Cell(rc[0], rc[1]); !errors.Is(err, ErrIndex) {
			t.Errorf("Cell(%d,%d): got %v, want ErrIndex", rc[0], rc[1], err)
		}
	}
	if err := d.Set(5, 0, "x"); !errors.Is(err, ErrIndex) {
		t.Errorf("Set out of bounds: got %v", err)
	}
	if err := d.Set(0, 0, "x"); !errors.Is(err, ErrIndex) {
		t.Errorf("Set on header row: got %v", err)
	}
}

func TestHeaderRowCells(t *testing.T) {
	d := openDoc(t, "name,age\nAlice,30\n")
	v, err := d.Cell(0, 1)
	if err != nil {
		t.Fatal(err)
	}
	if v != "age" {
		t.Errorf("Cell(0,1) = %q", v)
	}
}

func TestDuplicateHeaders(t *testing.T) {
	d := openDoc(t, "id,name,id\n1,a,2\n")
	want := []string{"id", "name", "id_3"}
	if !reflect.DeepEqual(d.Columns(), want) {
		t.Errorf("Columns = %v, want %v", d.Columns(), want)
	}
	m, err := d.RowMap(1)
	if err != nil {
		t.Fatal(err)
	}
	if m["id"] != "1" || m["id_3"] != "2" {
		t.Errorf("RowMap = %v", m)
	}
}

func TestRaggedRows(t *testing.T) {
	d := openDoc(t, "a,b,c\n1,2\n3,4,5,6\n")

	// Short row padded with empty trailing columns.
	values, err := d.RowValues(1)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(values, []string{"1", "2", ""}) {
		t.Errorf("short row = %v", values)
	}

	// Excess merged into the last column.
	values, err = d.RowValues(2)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(values, []string{"3", "4", "5,6"}) {
		t.Errorf("long row = %v", values)
	}

	if d.Anomalies().RaggedRows != 2 {
		t.Errorf("RaggedRows = %d, want 2", d.Anomalies().RaggedRows)
	}
}

func TestNoHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.csv")
	if err := os.WriteFile(path, []byte("1,2\n3,4\n"), 0644); err != nil {
		t.Fatal(err)
	}
	d, err := Open(context.Background(), Config{Path: path, NoHeader: true})
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	if !reflect.DeepEqual(d.Columns(), []string{"column_1", "column_2"}) {
		t.Errorf("Columns = %v", d.Columns())
	}
	if d.DataRows() != 2 {
		t.Errorf("DataRows = %d, want 2", d.DataRows())
	}
	// Row 0 is data and editable.
	if err := d.Set(0, 0, "edited"); err != nil {
		t.Errorf("Set on row 0: %v", err)
	}
}

func TestHeaderOnlyFile(t *testing.T) {
	d := openDoc(t, "name,age\n")
	if d.Rows() != 1 || d.DataRows() != 0 {
		t.Errorf("Rows = %d, DataRows = %d", d.Rows(), d.DataRows())
	}
}

func TestOpenEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(context.Background(), Config{Path: path}); !errors.Is(err, source.ErrEmptyFile) {
		t.Errorf("got %v, want ErrEmptyFile", err)
	}
}

func TestReloadDiscardsOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.csv")
	if err := os.WriteFile(path, []byte("a,b\n1,2\n"), 0644); err != nil {
		t.Fatal(err)
	}
	d, err := Open(context.Background(), Config{Path: path})
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	if err := d.Set(1, 0, "edited"); err != nil {
		t.Fatal(err)
	}
	if !d.Dirty() {
		t.Fatal("expected dirty document")
	}

	// Grow the file and reload.
	if err := os.WriteFile(path, []byte("a,b\n1,2\n3,4\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := d.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if d.Rows() != 3 {
		t.Errorf("Rows after reload = %d, want 3", d.Rows())
	}
	if v, _ := d.Cell(1, 0); v != "1" {
		t.Errorf("edit survived reload: %q", v)
	}
	if d.Dirty() {
		t.Error("document dirty after reload")
	}
}

func TestSaveMergedContent(t *testing.T) {
	d := openDoc(t, "name,age\nAlice,30\nBob,\"25,x\"\n")
	if err := d.Set(1, 1, "31"); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := d.Save(&buf); err != nil {
		t.Fatalf("Save: %v", err)
	}
	want := "name,age\nAlice,31\nBob,\"25,x\"\n"
	if buf.String() != want {
		t.Errorf("Save = %q, want %q", buf.String(), want)
	}
}

func TestSaveQuoting(t *testing.T) {
	d := openDoc(t, "h\nplain\n")
	if err := d.Set(1, 0, "a,\"b\""); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := d.Save(&buf); err != nil {
		t.Fatal(err)
	}
	want := "h\n\"a,\"\"b\"\"\"\n"
	if buf.String() != want {
		t.Errorf("Save = %q, want %q", buf.String(), want)
	}
}

func TestSaveFile(t *testing.T) {
	d := openDoc(t, "name,age\nAlice,30\n")
	if err := d.Set(1, 1, "31"); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "out.csv")
	if err := d.SaveFile(out); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if want := "name,age\nAlice,31\n"; string(data) != want {
		t.Errorf("got %q, want %q", data, want)
	}
	if d.Dirty() {
		t.Error("still dirty after SaveFile")
	}

	// No temp file left behind.
	entries, err := os.ReadDir(filepath.Dir(out))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("unexpected files: %v", entries)
	}
}

func TestSaveFileOverBackingFile(t *testing.T) {
	d := openDoc(t, "a\nx\n")
	if err := d.Set(1, 0, "y"); err != nil {
		t.Fatal(err)
	}
	if err := d.SaveFile(d.Path()); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}
	// Old mapping still serves the pre-save bytes until Reload.
	if v, _ := d.Cell(1, 0); v != "y" {
		t.Errorf("cell = %q, want overlay value y", v)
	}
	if err := d.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if v, _ := d.Cell(1, 0); v != "y" {
		t.Errorf("after reload cell = %q, want baked value y", v)
	}
}

func TestUndoRedoThroughDocument(t *testing.T) {
	d := openDoc(t, "a\nx\n")
	if err := d.Set(1, 0, "y"); err != nil {
		t.Fatal(err)
	}
	d.Overlay().Undo()
	if v, _ := d.Cell(1, 0); v != "x" {
		t.Errorf("after undo: %q", v)
	}
	d.Overlay().Redo()
	if v, _ := d.Cell(1, 0); v != "y" {
		t.Errorf("after redo: %q", v)
	}
}

func TestEstimateColumnWidths(t *testing.T) {
	d := openDoc(t, "a,b\nshort,aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa\n")
	widths := d.EstimateColumnWidths()
	if len(widths) != 2 {
		t.Fatalf("len = %d", len(widths))
	}
	if widths[0] != 80 {
		t.Errorf("widths[0] = %v, want 80", widths[0])
	}
	if widths[1] != 320 {
		t.Errorf("widths[1] = %v, want 320", widths[1])
	}
}
