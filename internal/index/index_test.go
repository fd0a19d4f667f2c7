package index

import (
	"context"
	"strings"
	"testing"
)

func build(t *testing.T, data string) *RowIndex {
	t.Helper()
	ix, err := Build(context.Background(), []byte(data), ',', nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return ix
}

func rowText(t *testing.T, data string, ix *RowIndex, i int) string {
	t.Helper()
	sp, ok := ix.At(i)
	if !ok {
		t.Fatalf("At(%d) out of bounds, Len=%d", i, ix.Len())
	}
	return data[sp.Start:sp.End]
}

func TestBuildBasic(t *testing.T) {
	data := "name,age\nAlice,30\nBob,\"25,x\"\n"
	ix := build(t, data)

	if ix.Len() != 3 {
		t.Fatalf("Len = %d, want 3", ix.Len())
	}
	want := []string{"name,age", "Alice,30", `Bob,"25,x"`}
	for i, w := range want {
		if got := rowText(t, data, ix, i); got != w {
			t.Errorf("row %d = %q, want %q", i, got, w)
		}
	}
	if ix.HeaderFields() != 2 {
		t.Errorf("HeaderFields = %d, want 2", ix.HeaderFields())
	}
	if !ix.Anomalies().Empty() {
		t.Errorf("unexpected anomalies: %+v", ix.Anomalies())
	}
}

func TestBuildTrailingRecordWithoutNewline(t *testing.T) {
	data := "a,b,c\n1,2,3\n4,5,6"
	ix := build(t, data)
	if ix.Len() != 3 {
		t.Fatalf("Len = %d, want 3", ix.Len())
	}
	if got := rowText(t, data, ix, 2); got != "4,5,6" {
		t.Errorf("last row = %q, want %q", got, "4,5,6")
	}
}

func TestBuildTrailingNewlineAddsNoRow(t *testing.T) {
	ix := build(t, "a,b\n1,2\n")
	if ix.Len() != 2 {
		t.Errorf("Len = %d, want 2", ix.Len())
	}
}

func TestBuildCRLF(t *testing.T) {
	data := "a,b\r\n1,2\r\n"
	ix := build(t, data)
	if ix.Len() != 2 {
		t.Fatalf("Len = %d, want 2", ix.Len())
	}
	// Spans must exclude both \r and \n.
	if got := rowText(t, data, ix, 0); got != "a,b" {
		t.Errorf("row 0 = %q, want %q", got, "a,b")
	}
	if got := rowText(t, data, ix, 1); got != "1,2" {
		t.Errorf("row 1 = %q, want %q", got, "1,2")
	}
}

func TestBuildQuotedNewline(t *testing.T) {
	data := "a,b,\"c\nd\"\n1,2,3"
	ix := build(t, data)
	if ix.Len() != 2 {
		t.Fatalf("Len = %d, want 2", ix.Len())
	}
	if got := rowText(t, data, ix, 0); got != "a,b,\"c\nd\"" {
		t.Errorf("row 0 = %q", got)
	}
	if got := rowText(t, data, ix, 1); got != "1,2,3" {
		t.Errorf("row 1 = %q", got)
	}
}

func TestBuildEscapedQuotes(t *testing.T) {
	// Doubled quotes toggle the state twice and must not confuse the
	// boundary scan.
	data := "h\n\"a\"\"b\",c\nd,e\n"
	ix := build(t, data)
	if got := rowText(t, data, ix, 1); got != `"a""b",c` {
		t.Errorf("row 1 = %q", got)
	}
}

func TestBuildUnterminatedQuote(t *testing.T) {
	data := "a,b\n1,\"open\nmore,data"
	ix := build(t, data)
	if ix.Len() != 2 {
		t.Fatalf("Len = %d, want 2", ix.Len())
	}
	// The open quote swallows the rest of the file.
	if got := rowText(t, data, ix, 1); got != "1,\"open\nmore,data" {
		t.Errorf("row 1 = %q", got)
	}
	if !ix.Anomalies().UnterminatedQuote {
		t.Error("UnterminatedQuote anomaly not recorded")
	}
}

func TestBuildRaggedRows(t *testing.T) {
	ix := build(t, "a,b,c\n1,2\n3,4,5\n6,7,8,9\n")
	an := ix.Anomalies()
	if an.RaggedRows != 2 {
		t.Errorf("RaggedRows = %d, want 2", an.RaggedRows)
	}
	if len(an.Samples) != 2 || an.Samples[0] != 1 || an.Samples[1] != 3 {
		t.Errorf("Samples = %v, want [1 3]", an.Samples)
	}
}

func TestBuildSeparatorsInsideQuotesNotRagged(t *testing.T) {
	ix := build(t, "a,b\n1,\"2,3,4\"\n")
	if n := ix.Anomalies().RaggedRows; n != 0 {
		t.Errorf("RaggedRows = %d, want 0", n)
	}
}

func TestBuildEmptyInput(t *testing.T) {
	ix := build(t, "")
	if ix.Len() != 0 {
		t.Errorf("Len = %d, want 0", ix.Len())
	}
}

func TestBuildBlankLines(t *testing.T) {
	data := "a,b\n\n1,2\n"
	ix := build(t, data)
	if ix.Len() != 3 {
		t.Fatalf("Len = %d, want 3", ix.Len())
	}
	if got := rowText(t, data, ix, 1); got != "" {
		t.Errorf("blank row = %q", got)
	}
}

func TestBuildCancellation(t *testing.T) {
	// Enough data to guarantee more than one chunk.
	var sb strings.Builder
	for sb.Len() < chunkSize*3 {
		sb.WriteString("field1,field2,field3,field4\n")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Build(ctx, []byte(sb.String()), ',', nil); err != context.Canceled {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestBuildLargeInput(t *testing.T) {
	// Spans chunk boundaries; every row must still be intact.
	var sb strings.Builder
	rows := 0
	for sb.Len() < chunkSize+chunkSize/2 {
		sb.WriteString("aaaa,\"bb\nbb\",cccc\n")
		rows++
	}
	data := sb.String()
	ix := build(t, data)
	if ix.Len() != rows {
		t.Fatalf("Len = %d, want %d", ix.Len(), rows)
	}
	for i := 0; i < ix.Len(); i++ {
		if got := rowText(t, data, ix, i); got != "aaaa,\"bb\nbb\",cccc" {
			t.Fatalf("row %d = %q", i, got)
		}
	}
}
