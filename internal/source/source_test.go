package source

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestOpenAndSlice(t *testing.T) {
	path := writeFile(t, "name,age\nAlice,30\n")

	src, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer src.Close()

	if src.Len() != 18 {
		t.Errorf("Len = %d, want 18", src.Len())
	}

	b, err := src.Slice(0, 8)
	if err != nil {
		t.Fatalf("Slice failed: %v", err)
	}
	if string(b) != "name,age" {
		t.Errorf("Slice = %q, want %q", b, "name,age")
	}

	// Full range.
	b, err = src.Slice(0, src.Len())
	if err != nil {
		t.Fatalf("full Slice failed: %v", err)
	}
	if string(b) != "name,age\nAlice,30\n" {
		t.Errorf("full Slice = %q", b)
	}
}

func TestSliceOutOfRange(t *testing.T) {
	src, err := Open(writeFile(t, "abc"))
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	for _, r := range [][2]int{{-1, 2}, {0, 4}, {2, 1}} {
		if _, err := src.Slice(r[0], r[1]); !errors.Is(err, ErrRange) {
			t.Errorf("Slice(%d, %d): got %v, want ErrRange", r[0], r[1], err)
		}
	}
}

func TestOpenEmptyFile(t *testing.T) {
	if _, err := Open(writeFile(t, "")); !errors.Is(err, ErrEmptyFile) {
		t.Errorf("got %v, want ErrEmptyFile", err)
	}
}

func TestOpenMissingFile(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "nope.csv")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSliceAfterClose(t *testing.T) {
	src, err := Open(writeFile(t, "abc"))
	if err != nil {
		t.Fatal(err)
	}
	if err := src.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := src.Slice(0, 1); !errors.Is(err, ErrClosed) {
		t.Errorf("got %v, want ErrClosed", err)
	}
	// Double close is harmless.
	if err := src.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
