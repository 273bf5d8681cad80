package sheets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

const sampleCSV = "Timestamp,Discord Username,Applying For\n" +
	"2026/01/02 10:00:00,ada#1,Moderator\n" +
	"2026/01/03 11:00:00,grace#2\n"

func TestFileSourceReadsHeadersAndRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "responses.csv")
	if err := os.WriteFile(path, []byte(sampleCSV), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	source := &FileSource{path: path}
	snapshot, err := source.ReadAllRows(context.Background())
	if err != nil {
		t.Fatalf("ReadAllRows: %v", err)
	}
	if len(snapshot.Headers) != 3 || snapshot.Headers[2] != "Applying For" {
		t.Fatalf("unexpected headers %v", snapshot.Headers)
	}
	if len(snapshot.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(snapshot.Rows))
	}
	// Short records are padded to the header width.
	if len(snapshot.Rows[1]) != 3 || snapshot.Rows[1][2] != "" {
		t.Fatalf("short row not padded: %v", snapshot.Rows[1])
	}
}

func TestHTTPSourceFetches(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleCSV))
	}))
	defer server.Close()

	source := &HTTPSource{url: server.URL, client: server.Client()}
	snapshot, err := source.ReadAllRows(context.Background())
	if err != nil {
		t.Fatalf("ReadAllRows: %v", err)
	}
	if len(snapshot.Rows) != 2 || snapshot.Rows[0][1] != "ada#1" {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}
}

func TestEmptySheetYieldsEmptySnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	source := &FileSource{path: path}
	snapshot, err := source.ReadAllRows(context.Background())
	if err != nil {
		t.Fatalf("ReadAllRows: %v", err)
	}
	if len(snapshot.Headers) != 0 || len(snapshot.Rows) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snapshot)
	}
}
