// Package source loads published spreadsheet exports (CSV with a header row)
// into ordered string-keyed records.
package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Record is one spreadsheet row keyed by header name.
type Record map[string]string

// ID returns the record's "id" field.
func (r Record) ID() string {
	return r["id"]
}

// Opener opens a remote document as a stream.
type Opener interface {
	Stream(ctx context.Context, url string) (io.ReadCloser, error)
}

// Loader reads a tabular source into records.
type Loader interface {
	Load(ctx context.Context, url string) ([]Record, error)
}

// CSVLoader loads CSV over HTTP(S) through an Opener, or from a local path.
type CSVLoader struct {
	opener Opener
}

// NewCSVLoader creates a loader. opener may be nil when only local files are read.
func NewCSVLoader(opener Opener) *CSVLoader {
	return &CSVLoader{opener: opener}
}

// Load fetches url and parses it with the first row as header.
func (l *CSVLoader) Load(ctx context.Context, url string) ([]Record, error) {
	rc, err := l.open(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", url, err)
	}
	defer rc.Close()

	records, err := Parse(rc)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}
	return records, nil
}

func (l *CSVLoader) open(ctx context.Context, url string) (io.ReadCloser, error) {
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		if l.opener == nil {
			return nil, errors.New("no remote opener configured")
		}
		return l.opener.Stream(ctx, url)
	}
	return os.Open(strings.TrimPrefix(url, "file://"))
}

// Parse reads header-mapped records from r, one row at a time.
// Short rows leave their trailing keys absent; blank lines are skipped.
func Parse(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("missing header row")
		}
		return nil, err
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	var records []Record
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		rec := make(Record, len(header))
		for i, name := range header {
			if i < len(row) {
				rec[name] = row[i]
			}
		}
		records = append(records, rec)
	}
	return records, nil
}
