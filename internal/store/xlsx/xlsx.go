// Package xlsx keeps the ledger in a local Excel workbook. Every operation
// reopens the file so edits made in a spreadsheet program are picked up.
package xlsx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/xuri/excelize/v2"

	"abonnements/internal/core"
	"abonnements/internal/store"
	"abonnements/internal/store/tabular"
)

// Ensure interface conformance
var _ store.Gateway = (*Store)(nil)

const DefaultSheet = "Abonnements"

type Store struct {
	mu    sync.Mutex
	path  string
	sheet string
}

func New(path, sheet string) *Store {
	if sheet == "" {
		sheet = DefaultSheet
	}
	return &Store{path: path, sheet: sheet}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", core.ErrStoreUnavailable, op, err)
}

// open returns the workbook, or nil when the file does not exist yet.
func (s *Store) open() (*excelize.File, error) {
	f, err := excelize.OpenFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("open workbook", err)
	}
	return f, nil
}

func (s *Store) hasSheet(f *excelize.File) bool {
	idx, err := f.GetSheetIndex(s.sheet)
	return err == nil && idx >= 0
}

type grid struct {
	rows   [][]string
	layout tabular.Layout
	offset int
}

func (g grid) dataRows() [][]string {
	if len(g.rows) <= g.offset {
		return nil
	}
	return g.rows[g.offset:]
}

func (s *Store) readGrid(f *excelize.File) (grid, error) {
	g := grid{layout: tabular.DefaultLayout()}
	if f == nil || !s.hasSheet(f) {
		return g, nil
	}
	rows, err := f.GetRows(s.sheet)
	if err != nil {
		return g, unavailable("read sheet "+s.sheet, err)
	}
	g.rows = rows
	if len(rows) > 0 {
		if layout, err := tabular.ParseHeader(rows[0]); err == nil {
			g.layout = layout
			g.offset = 1
		}
	}
	return g, nil
}

// ListRows implements store.RowLister
func (s *Store) ListRows(ctx context.Context) ([]core.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open()
	if err != nil {
		return nil, err
	}
	if f != nil {
		defer f.Close()
	}
	g, err := s.readGrid(f)
	if err != nil {
		return nil, err
	}
	rows := g.layout.Decode(g.dataRows())
	slog.DebugContext(ctx, "Read ledger workbook", "path", s.path, "sheet", s.sheet, "rows", len(rows))
	return rows, nil
}

// AppendRow implements store.RowAppender. Cells are written as text.
func (s *Store) AppendRow(ctx context.Context, r core.Row) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open()
	if err != nil {
		return "", err
	}
	if f == nil {
		f, err = newWorkbook(s.sheet)
		if err != nil {
			return "", err
		}
	}
	defer f.Close()

	if !s.hasSheet(f) {
		if _, err := f.NewSheet(s.sheet); err != nil {
			return "", unavailable("create sheet", err)
		}
	}
	g, err := s.readGrid(f)
	if err != nil {
		return "", err
	}
	next := len(g.rows) + 1
	if len(g.rows) == 0 {
		if err := setRow(f, s.sheet, 1, tabular.Header); err != nil {
			return "", err
		}
		next = 2
	}
	if err := setRow(f, s.sheet, next, g.layout.Encode(r)); err != nil {
		return "", err
	}
	if err := s.save(f); err != nil {
		return "", err
	}

	cell, _ := excelize.CoordinatesToCellName(1, next)
	slog.InfoContext(ctx, "Subscription saved to workbook", "path", s.path, "cell", cell, "name", r.Name)
	return fmt.Sprintf("%s!%s", s.sheet, cell), nil
}

// FindAndDelete implements store.RowDeleter
func (s *Store) FindAndDelete(ctx context.Context, name string) error {
	return s.deleteWhere(ctx, func(g grid) (int, bool) {
		col := g.layout.NameColumn()
		for i, row := range g.dataRows() {
			if col < len(row) && store.MatchName(row[col], name) {
				return i, true
			}
		}
		return 0, false
	}, fmt.Sprintf("%q", name))
}

// DeleteAt implements store.RowDeleter
func (s *Store) DeleteAt(ctx context.Context, index int) error {
	return s.deleteWhere(ctx, func(g grid) (int, bool) {
		if index < 1 || index > len(g.dataRows()) {
			return 0, false
		}
		return index - 1, true
	}, fmt.Sprintf("row %d", index))
}

// deleteWhere removes the data row chosen by pick, given as a 0-based
// position among data rows.
func (s *Store) deleteWhere(ctx context.Context, pick func(grid) (int, bool), what string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open()
	if err != nil {
		return err
	}
	if f == nil {
		return fmt.Errorf("%w: %s", core.ErrRecordNotFound, what)
	}
	defer f.Close()

	g, err := s.readGrid(f)
	if err != nil {
		return err
	}
	pos, ok := pick(g)
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrRecordNotFound, what)
	}
	sheetRow := g.offset + pos + 1
	if err := f.RemoveRow(s.sheet, sheetRow); err != nil {
		return unavailable("remove row", err)
	}
	if err := s.save(f); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Deleted workbook row", "path", s.path, "sheet", s.sheet, "row", sheetRow)
	return nil
}

func (s *Store) save(f *excelize.File) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return unavailable("create workbook directory", err)
	}
	if err := f.SaveAs(s.path); err != nil {
		return unavailable("save workbook", err)
	}
	return nil
}

// newWorkbook creates a workbook whose only sheet is named sheet.
func newWorkbook(sheet string) (*excelize.File, error) {
	f := excelize.NewFile()
	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			f.Close()
			return nil, unavailable("name sheet", err)
		}
	}
	return f, nil
}

func setRow(f *excelize.File, sheet string, row int, cells []string) error {
	values := make([]any, len(cells))
	for i, c := range cells {
		values[i] = c
	}
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return unavailable("cell name", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return unavailable("write row", err)
	}
	return nil
}

// Export writes rows into a new workbook at path, replacing any existing
// file. The result can be opened again with New.
func Export(path, sheet string, rows []core.Row) error {
	if sheet == "" {
		sheet = DefaultSheet
	}
	f, err := newWorkbook(sheet)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := setRow(f, sheet, 1, tabular.Header); err != nil {
		return err
	}
	layout := tabular.DefaultLayout()
	for i, r := range rows {
		if err := setRow(f, sheet, i+2, layout.Encode(r)); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(sheet, "A", "A", 28); err != nil {
		return unavailable("set column width", err)
	}
	return (&Store{path: path, sheet: sheet}).save(f)
}
