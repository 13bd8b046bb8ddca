package csvsource

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/JPC-AV/aspace-jpc-av/internal/mapping"
	"github.com/JPC-AV/aspace-jpc-av/internal/services"
)

// Reader streams CSV rows keyed by header name. Row numbers count data rows
// from 1; the header is not counted.
type Reader struct {
	csv    *csv.Reader
	header []string
	row    int
	closer io.Closer
}

// Open opens path and reads its header. encodingName is a WHATWG label such
// as "utf-8" or "windows-1252"; empty means utf-8. A leading byte order mark
// is always stripped.
func Open(path, encodingName string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "csvsource", "open", "cannot open "+path, err)
	}
	reader, err := NewReader(file, encodingName)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	reader.closer = file
	return reader, nil
}

// NewReader wraps r and reads its header.
func NewReader(r io.Reader, encodingName string) (*Reader, error) {
	enc, err := lookupEncoding(encodingName)
	if err != nil {
		return nil, err
	}
	decoded := transform.NewReader(r, unicode.BOMOverride(enc.NewDecoder()))

	cr := csv.NewReader(decoded)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, services.Wrap(services.ErrValidation, "csvsource", "read header", "file is empty", nil)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "csvsource", "read header", "malformed header", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	return &Reader{csv: cr, header: header}, nil
}

func lookupEncoding(name string) (encoding.Encoding, error) {
	name = strings.TrimSpace(name)
	switch strings.ToLower(name) {
	case "", "utf-8", "utf8", "utf-8-sig":
		return unicode.UTF8, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "csvsource", "encoding", fmt.Sprintf("unknown encoding %q", name), err)
	}
	return enc, nil
}

// Header returns the trimmed column names in file order.
func (r *Reader) Header() []string {
	return append([]string(nil), r.header...)
}

// Next returns the next data row. It returns io.EOF after the last row.
// Short records leave missing columns empty; extra fields are ignored.
func (r *Reader) Next() (int, mapping.Row, error) {
	record, err := r.csv.Read()
	if errors.Is(err, io.EOF) {
		return 0, nil, io.EOF
	}
	r.row++
	if err != nil {
		return r.row, nil, fmt.Errorf("row %d: %w", r.row, err)
	}
	row := make(mapping.Row, len(r.header))
	for i, name := range r.header {
		if name == "" {
			continue
		}
		if i < len(record) {
			row[name] = record[i]
		} else {
			row[name] = ""
		}
	}
	return r.row, row, nil
}

// Close releases the underlying file when the reader was opened by Open.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// ReadAll reads every remaining row.
func (r *Reader) ReadAll() ([]mapping.Row, error) {
	var rows []mapping.Row
	for {
		_, row, err := r.Next()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return rows, err
		}
		rows = append(rows, row)
	}
}
