package rowstore

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"creator-outreach/internal/models"
)

// CSVStore is the flat-file backend. Every call re-reads the whole table and
// rewrites it after acting; O(N) per call, but other processes only ever see
// a complete, previously committed snapshot because each rewrite goes to a
// temp file in the same directory followed by an atomic rename.
type CSVStore struct {
	path   string
	logger *zap.Logger
	mu     sync.Mutex
}

// NewCSVStore opens a CSV-backed store. The file must exist and carry a
// header row.
func NewCSVStore(path string, logger *zap.Logger) (*CSVStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat contact file: %w", err)
	}
	return &CSVStore{path: path, logger: logger}, nil
}

// table is one loaded snapshot of the file.
type table struct {
	header []string
	rows   [][]string
}

func (s *CSVStore) load() (*table, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrStorageUnavailable, s.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrStorageUnavailable, s.path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("contact file %s has no header row", s.path)
	}

	t := &table{header: records[0]}
	for _, rec := range records[1:] {
		if allBlank(rec) {
			continue
		}
		// Pad short records so every row covers the full column set.
		row := make([]string, len(t.header))
		copy(row, rec)
		t.rows = append(t.rows, row)
	}
	return t, nil
}

// write commits the table with write-to-temp-then-rename so a reader can
// never observe a truncated file.
func (s *CSVStore) write(t *table) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".contacts-*.csv")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", ErrStorageUnavailable, err)
	}
	tmpName := tmp.Name()
	defer func() {
		tmp.Close()
		os.Remove(tmpName)
	}()

	w := csv.NewWriter(tmp)
	if err := w.Write(t.header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range t.rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("%w: rename temp file: %v", ErrStorageUnavailable, err)
	}
	return nil
}

func (t *table) contact(id int) models.ContactRow {
	fields := make(map[string]string, len(t.header))
	for i, col := range t.header {
		fields[col] = t.rows[id-1][i]
	}
	return models.ContactRow{ID: id, Fields: fields}
}

func (t *table) columnIndex(name string) int {
	for i, col := range t.header {
		if col == name {
			return i
		}
	}
	return -1
}

func (t *table) addColumn(name string) {
	t.header = append(t.header, name)
	for i := range t.rows {
		t.rows[i] = append(t.rows[i], "")
	}
}

func (s *CSVStore) List(ctx context.Context) ([]models.ContactRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.load()
	if err != nil {
		return nil, err
	}
	rows := make([]models.ContactRow, 0, len(t.rows))
	for i := range t.rows {
		rows = append(rows, t.contact(i+1))
	}
	return rows, nil
}

func (s *CSVStore) Get(ctx context.Context, id int) (models.ContactRow, error) {
	if err := ctx.Err(); err != nil {
		return models.ContactRow{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.load()
	if err != nil {
		return models.ContactRow{}, err
	}
	if id < 1 || id > len(t.rows) {
		return models.ContactRow{}, fmt.Errorf("%w: id %d", ErrRowNotFound, id)
	}
	return t.contact(id), nil
}

func (s *CSVStore) Update(ctx context.Context, id int, fields map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.load()
	if err != nil {
		return err
	}
	if id < 1 || id > len(t.rows) {
		return fmt.Errorf("%w: id %d", ErrRowNotFound, id)
	}
	for name, value := range fields {
		idx := t.columnIndex(name)
		if idx < 0 {
			t.addColumn(name)
			idx = len(t.header) - 1
		}
		t.rows[id-1][idx] = value
	}
	return s.write(t)
}

func (s *CSVStore) AddColumn(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.load()
	if err != nil {
		return err
	}
	if t.columnIndex(name) >= 0 {
		s.logger.Warn("column already exists", zap.String("column", name))
		return nil
	}
	t.addColumn(name)
	return s.write(t)
}

func (s *CSVStore) Close() error {
	return nil
}

func allBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
