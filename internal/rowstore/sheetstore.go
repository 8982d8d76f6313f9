package rowstore

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"creator-outreach/internal/models"
)

// SheetStore is the remote backend over the Google Sheets API. It keeps an
// in-memory cache of the full row set plus a mapping from ordinal row
// identifier to the native 1-based sheet row, because blank rows in the sheet
// make the two diverge. The cache is reused across calls and invalidated on
// structural change (AddColumn) or Close.
//
// Row updates overwrite the entire row range in one request, reconstructing
// every column's value; the Sheets values API replaces whole ranges, so a
// partial write would blank the untouched cells.
type SheetStore struct {
	svc           *sheets.Service
	spreadsheetID string
	logger        *zap.Logger

	mu         sync.Mutex
	sheetTitle string
	sheetID    int64
	gridCols   int64
	header     []string
	rows       [][]string
	nativeRow  map[int]int // ordinal id -> 1-based sheet row
	loaded     bool
}

// NewSheetStore connects to the first sheet of the given spreadsheet using a
// service-account credential file with read/write scope.
func NewSheetStore(ctx context.Context, spreadsheetID, credentialsPath string, logger *zap.Logger) (*SheetStore, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(credentialsPath),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &SheetStore{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		logger:        logger,
		nativeRow:     map[int]int{},
	}, nil
}

// load populates the cache if needed. Callers must hold s.mu.
func (s *SheetStore) load(ctx context.Context) error {
	if s.loaded {
		return nil
	}

	if s.sheetTitle == "" {
		meta, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("%w: get spreadsheet: %v", ErrStorageUnavailable, err)
		}
		if len(meta.Sheets) == 0 {
			return fmt.Errorf("spreadsheet %s has no sheets", s.spreadsheetID)
		}
		props := meta.Sheets[0].Properties
		s.sheetTitle = props.Title
		s.sheetID = props.SheetId
		if props.GridProperties != nil {
			s.gridCols = props.GridProperties.ColumnCount
		}
	}

	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, s.sheetTitle).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%w: read values: %v", ErrStorageUnavailable, err)
	}
	if len(resp.Values) == 0 {
		return fmt.Errorf("sheet %s has no header row", s.sheetTitle)
	}

	s.header = cellStrings(resp.Values[0], len(resp.Values[0]))
	s.rows = nil
	s.nativeRow = map[int]int{}
	for i, raw := range resp.Values[1:] {
		row := cellStrings(raw, len(s.header))
		if allBlank(row) {
			continue
		}
		s.rows = append(s.rows, row)
		s.nativeRow[len(s.rows)] = i + 2 // header is sheet row 1
	}
	s.loaded = true
	return nil
}

// invalidate drops the cached row set. Callers must hold s.mu.
func (s *SheetStore) invalidate() {
	s.loaded = false
}

func (s *SheetStore) contact(id int) models.ContactRow {
	fields := make(map[string]string, len(s.header))
	for i, col := range s.header {
		fields[col] = s.rows[id-1][i]
	}
	return models.ContactRow{ID: id, Fields: fields}
}

func (s *SheetStore) List(ctx context.Context) ([]models.ContactRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(ctx); err != nil {
		return nil, err
	}
	rows := make([]models.ContactRow, 0, len(s.rows))
	for i := range s.rows {
		rows = append(rows, s.contact(i+1))
	}
	return rows, nil
}

func (s *SheetStore) Get(ctx context.Context, id int) (models.ContactRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(ctx); err != nil {
		return models.ContactRow{}, err
	}
	if id < 1 || id > len(s.rows) {
		return models.ContactRow{}, fmt.Errorf("%w: id %d", ErrRowNotFound, id)
	}
	return s.contact(id), nil
}

func (s *SheetStore) Update(ctx context.Context, id int, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(ctx); err != nil {
		return err
	}
	if id < 1 || id > len(s.rows) {
		return fmt.Errorf("%w: id %d", ErrRowNotFound, id)
	}

	// Structural changes first: every unknown field name becomes a column.
	for name := range fields {
		if s.columnIndex(name) < 0 {
			if err := s.insertColumn(ctx, name); err != nil {
				return err
			}
			// The column insert invalidated the cache; reload and re-check
			// the row still exists.
			if err := s.load(ctx); err != nil {
				return err
			}
			if id < 1 || id > len(s.rows) {
				return fmt.Errorf("%w: id %d after column insert", ErrRowNotFound, id)
			}
		}
	}

	native, ok := s.nativeRow[id]
	if !ok {
		return fmt.Errorf("%w: id %d has no sheet row", ErrRowNotFound, id)
	}

	// Full-row overwrite: rebuild every column's value, merged with the patch.
	values := make([]any, len(s.header))
	for i, col := range s.header {
		if v, ok := fields[col]; ok {
			values[i] = v
		} else {
			values[i] = s.rows[id-1][i]
		}
	}
	writeRange := fmt.Sprintf("%s!A%d:%s%d", s.sheetTitle, native, columnLetter(len(s.header)-1), native)
	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, writeRange, &sheets.ValueRange{
		Values: [][]any{values},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%w: update row %d: %v", ErrStorageUnavailable, native, err)
	}

	// Keep the cache coherent with the committed write.
	for i, col := range s.header {
		if v, ok := fields[col]; ok {
			s.rows[id-1][i] = v
		}
	}
	return nil
}

func (s *SheetStore) AddColumn(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(ctx); err != nil {
		return err
	}
	if s.columnIndex(name) >= 0 {
		s.logger.Warn("column already exists", zap.String("column", name))
		return nil
	}
	return s.insertColumn(ctx, name)
}

// insertColumn sends the structural mutation appending one column and writes
// its header cell, then invalidates the cache. Callers must hold s.mu.
func (s *SheetStore) insertColumn(ctx context.Context, name string) error {
	index := int64(len(s.header))
	_, err := s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{columnGrowthRequest(s.sheetID, index, s.gridCols)},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%w: insert column %s: %v", ErrStorageUnavailable, name, err)
	}
	if s.gridCols > 0 {
		s.gridCols++
	}

	headerRange := fmt.Sprintf("%s!%s1", s.sheetTitle, columnLetter(int(index)))
	_, err = s.svc.Spreadsheets.Values.Update(s.spreadsheetID, headerRange, &sheets.ValueRange{
		Values: [][]any{{name}},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%w: write header %s: %v", ErrStorageUnavailable, name, err)
	}

	s.invalidate()
	return nil
}

func (s *SheetStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidate()
	s.header = nil
	s.rows = nil
	s.nativeRow = map[int]int{}
	return nil
}

// columnGrowthRequest builds the structural request adding one column at
// index. InsertDimension requires the start index to fall strictly inside the
// existing grid; on a sheet trimmed to exactly its used columns the new
// column must be appended instead. An unknown grid width (0) keeps the insert
// form.
func columnGrowthRequest(sheetID, index, gridCols int64) *sheets.Request {
	if gridCols > 0 && index >= gridCols {
		return &sheets.Request{
			AppendDimension: &sheets.AppendDimensionRequest{
				SheetId:   sheetID,
				Dimension: "COLUMNS",
				Length:    1,
			},
		}
	}
	return &sheets.Request{
		InsertDimension: &sheets.InsertDimensionRequest{
			Range: &sheets.DimensionRange{
				SheetId:    sheetID,
				Dimension:  "COLUMNS",
				StartIndex: index,
				EndIndex:   index + 1,
			},
		},
	}
}

func (s *SheetStore) columnIndex(name string) int {
	for i, col := range s.header {
		if col == name {
			return i
		}
	}
	return -1
}

func cellStrings(raw []any, width int) []string {
	out := make([]string, width)
	for i := 0; i < width && i < len(raw); i++ {
		out[i] = strings.TrimRight(fmt.Sprint(raw[i]), "\r")
	}
	return out
}

// columnLetter converts a 0-based column index to A1 notation (A, B, ... AA).
func columnLetter(index int) string {
	letters := ""
	for index >= 0 {
		letters = string(rune('A'+index%26)) + letters
		index = index/26 - 1
	}
	return letters
}
