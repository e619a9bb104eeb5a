package sheet

import (
	"context"
	"errors"
	"strconv"
	"strings"
)

const (
	WorksheetInventory = "inventory"
	WorksheetOrders    = "Orders"
)

var (
	ErrWorksheetNotFound = errors.New("worksheet not found")
	ErrNoSource          = errors.New("no sheet configured for tenant")
)

// Source is a tenant's tabular backing store: named worksheets whose first
// row is a header.
type Source interface {
	// Records returns every data row keyed by header. The inventory worksheet
	// falls back to the first worksheet when it does not exist.
	Records(ctx context.Context, worksheet string) ([]map[string]any, error)
	// AppendRow adds a row, creating the worksheet with header if needed.
	AppendRow(ctx context.Context, worksheet string, header []string, row []any) error
}

func rowToRecord(header []string, cells []string) map[string]any {
	rec := make(map[string]any, len(header))
	for i, h := range header {
		if strings.TrimSpace(h) == "" {
			continue
		}
		if i >= len(cells) {
			rec[h] = ""
			continue
		}
		rec[h] = cellValue(cells[i])
	}
	return rec
}

// cellValue turns numeric cells into numbers so prices survive as such.
func cellValue(cell string) any {
	trimmed := strings.TrimSpace(cell)
	if trimmed == "" {
		return cell
	}
	if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return f
	}
	return cell
}

func recordFromRow(header []string, row []any) map[string]any {
	rec := make(map[string]any, len(header))
	for i, h := range header {
		if i < len(row) {
			rec[h] = row[i]
		} else {
			rec[h] = ""
		}
	}
	return rec
}

func isBlankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
