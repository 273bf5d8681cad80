package sheets

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"intake/internal/config"
	"intake/internal/services"
)

// Snapshot is one full read of the response sheet.
type Snapshot struct {
	Headers []string
	Rows    [][]string
}

// Source yields the current full contents of the response sheet.
type Source interface {
	ReadAllRows(ctx context.Context) (*Snapshot, error)
}

// NewSource picks the HTTP or file source from configuration.
func NewSource(cfg *config.Config) (Source, error) {
	switch {
	case cfg.Source.URL != "":
		timeout := time.Duration(cfg.Source.RequestTimeout) * time.Second
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		return &HTTPSource{url: cfg.Source.URL, client: &http.Client{Timeout: timeout}}, nil
	case cfg.Source.Path != "":
		return &FileSource{path: cfg.Source.Path}, nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "sheets", "new source",
			"no response source configured (set source.url or source.path)", nil)
	}
}

// HTTPSource fetches the CSV export from a URL.
type HTTPSource struct {
	url    string
	client *http.Client
}

func (s *HTTPSource) ReadAllRows(ctx context.Context) (*Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "sheets", "fetch", "build request", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "sheets", "fetch", "request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, services.Wrap(services.ErrTransient, "sheets", "fetch",
			fmt.Sprintf("status %d", resp.StatusCode), nil)
	}
	return parseCSV(resp.Body)
}

// FileSource reads the CSV export from a local file.
type FileSource struct {
	path string
}

func (s *FileSource) ReadAllRows(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "sheets", "open", "open response file", err)
	}
	defer f.Close()
	return parseCSV(f)
}

func parseCSV(r io.Reader) (*Snapshot, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "sheets", "parse", "malformed csv", err)
	}
	if len(records) == 0 {
		return &Snapshot{}, nil
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = strings.TrimSpace(h)
	}
	rows := make([][]string, 0, len(records)-1)
	for _, record := range records[1:] {
		// Pad short records so every row lines up with the header columns.
		row := make([]string, len(headers))
		for i := range row {
			if i < len(record) {
				row[i] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return &Snapshot{Headers: headers, Rows: rows}, nil
}
