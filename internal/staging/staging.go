package staging

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/roach88/busstats/internal/record"
)

// Store is the CSV-backed staging area at a fixed path.
type Store struct {
	path string
}

// New returns a staging store for the file at path. The file does not need
// to exist.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the staging file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads every staged record.
//
// A missing file, an empty file and a header-only file all yield an empty
// slice and no error. Malformed rows are reported with their row number.
func (s *Store) Load() ([]record.Record, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []record.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read staging file: %w", err)
	}

	records, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return records, nil
}

// Save replaces the staging file with records.
//
// The content is written to a temporary file in the same directory and
// renamed over the target, so readers never observe a partial file.
func (s *Store) Save(records []record.Record) (err error) {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp staging file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriter(tmp)
	if err := Encode(w, records); err != nil {
		return fmt.Errorf("encode staging file: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write staging file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync staging file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close staging file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("chmod staging file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("publish staging file: %w", err)
	}
	return nil
}

// Remove deletes the staging file. removed is false when the file was
// already gone.
func (s *Store) Remove() (removed bool, err error) {
	err = os.Remove(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("remove staging file: %w", err)
	}
	return true, nil
}

// Encode writes the header followed by one row per record.
func Encode(w io.Writer, records []record.Record) error {
	if err := writeRow(w, Header); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.Line,
			r.Datetime(),
			fmt.Sprintf("%d", r.DelayMinutes),
			fmt.Sprintf("%d", r.StopID),
		}
		if err := writeRow(w, row); err != nil {
			return err
		}
	}
	return nil
}

// Decode parses staging rows. When the first row is the header, columns are
// matched by name; otherwise rows are read positionally in Header order.
func Decode(r io.Reader) ([]record.Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	rows, err := parseRows(string(data))
	if err != nil {
		return nil, err
	}

	columns := map[string]int{}
	for i, name := range Header {
		columns[name] = i
	}

	records := []record.Record{}
	for n, row := range rows {
		if isBlank(row) {
			continue
		}
		if n == 0 {
			if idx, ok := headerIndex(row); ok {
				columns = idx
				continue
			}
		}

		rec, err := decodeRow(row, columns)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", n+1, err)
		}
		records = append(records, rec)
	}

	return records, nil
}

func headerIndex(row []string) (map[string]int, bool) {
	idx := make(map[string]int, len(row))
	for i, name := range row {
		idx[name] = i
	}
	for _, name := range Header {
		if _, ok := idx[name]; !ok {
			return nil, false
		}
	}
	return idx, true
}

func decodeRow(row []string, columns map[string]int) (record.Record, error) {
	get := func(name string) (string, error) {
		i := columns[name]
		if i >= len(row) {
			return "", fmt.Errorf("missing %s (got %d fields)", name, len(row))
		}
		return row[i], nil
	}

	var fields [4]string
	for i, name := range Header {
		v, err := get(name)
		if err != nil {
			return record.Record{}, err
		}
		fields[i] = v
	}

	return record.Parse(fields[0], fields[1], fields[2], fields[3])
}
