package sheet

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"
)

// WorkbookSource reads and appends rows of an .xlsx workbook on disk.
type WorkbookSource struct {
	path string
	mu   sync.Mutex
}

func NewWorkbookSource(path string) *WorkbookSource {
	return &WorkbookSource{path: path}
}

// WorkbookPath maps a sheet handle to <dir>/<handle>.xlsx.
func WorkbookPath(dir, sheetID string) string {
	name := filepath.Base(strings.TrimSpace(sheetID))
	if !strings.HasSuffix(strings.ToLower(name), ".xlsx") {
		name += ".xlsx"
	}
	return filepath.Join(dir, name)
}

func (w *WorkbookSource) Records(_ context.Context, worksheet string) ([]map[string]any, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	file, err := excelize.OpenFile(w.path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", w.path, err)
	}
	defer file.Close()

	name, ok := findSheet(file, worksheet)
	if !ok {
		switch {
		case strings.EqualFold(worksheet, WorksheetInventory):
			sheets := file.GetSheetList()
			if len(sheets) == 0 {
				return nil, fmt.Errorf("%w: %s", ErrWorksheetNotFound, worksheet)
			}
			name = sheets[0]
		case strings.EqualFold(worksheet, WorksheetOrders):
			return []map[string]any{}, nil
		default:
			return nil, fmt.Errorf("%w: %s", ErrWorksheetNotFound, worksheet)
		}
	}

	rows, err := file.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("read worksheet %s: %w", name, err)
	}
	if len(rows) == 0 {
		return []map[string]any{}, nil
	}

	header := rows[0]
	out := make([]map[string]any, 0, len(rows)-1)
	for _, cells := range rows[1:] {
		if isBlankRow(cells) {
			continue
		}
		out = append(out, rowToRecord(header, cells))
	}
	return out, nil
}

func (w *WorkbookSource) AppendRow(_ context.Context, worksheet string, header []string, row []any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	file, err := excelize.OpenFile(w.path)
	if errors.Is(err, fs.ErrNotExist) {
		file = excelize.NewFile()
	} else if err != nil {
		return fmt.Errorf("open workbook %s: %w", w.path, err)
	}
	defer file.Close()

	name, ok := findSheet(file, worksheet)
	if !ok {
		name = worksheet
		if _, err := file.NewSheet(name); err != nil {
			return fmt.Errorf("create worksheet %s: %w", name, err)
		}
		hdr := make([]any, len(header))
		for i, h := range header {
			hdr[i] = h
		}
		if err := file.SetSheetRow(name, "A1", &hdr); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	rows, err := file.GetRows(name)
	if err != nil {
		return fmt.Errorf("read worksheet %s: %w", name, err)
	}
	cell, err := excelize.CoordinatesToCellName(1, len(rows)+1)
	if err != nil {
		return err
	}
	if err := file.SetSheetRow(name, cell, &row); err != nil {
		return fmt.Errorf("append row: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("create workbook dir: %w", err)
	}
	if err := file.SaveAs(w.path); err != nil {
		return fmt.Errorf("save workbook %s: %w", w.path, err)
	}
	return nil
}

func findSheet(file *excelize.File, worksheet string) (string, bool) {
	for _, name := range file.GetSheetList() {
		if name == worksheet {
			return name, true
		}
	}
	for _, name := range file.GetSheetList() {
		if strings.EqualFold(name, worksheet) {
			return name, true
		}
	}
	return "", false
}
