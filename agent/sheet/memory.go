package sheet

import (
	"context"
	"strings"
	"sync"
)

// MockCatalog is served to tenants without a real inventory sheet.
func MockCatalog() []map[string]any {
	return []map[string]any{
		{"item": "Switch", "category": "Electrical", "price": 50},
		{"item": "Fan", "category": "Electrical", "price": 1500},
		{"item": "Wire (1m)", "category": "Electrical", "price": 20},
		{"item": "Plug", "category": "Electrical", "price": 30},
		{"item": "Pipe", "category": "Hardware", "price": 100},
		{"item": "LED Bulb", "category": "Lighting", "price": 200},
	}
}

// MemorySource keeps worksheets in memory.
type MemorySource struct {
	mu     sync.RWMutex
	sheets map[string][]map[string]any
	order  []string
}

func NewMemorySource() *MemorySource {
	return &MemorySource{sheets: make(map[string][]map[string]any)}
}

// NewMockSource is a MemorySource seeded with MockCatalog.
func NewMockSource() *MemorySource {
	m := NewMemorySource()
	m.Put(WorksheetInventory, MockCatalog())
	return m
}

// Put replaces a worksheet's rows.
func (m *MemorySource) Put(worksheet string, rows []map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sheets[worksheet]; !ok {
		m.order = append(m.order, worksheet)
	}
	m.sheets[worksheet] = cloneRecords(rows)
}

func (m *MemorySource) Records(_ context.Context, worksheet string) ([]map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if rows, ok := m.lookup(worksheet); ok {
		return cloneRecords(rows), nil
	}
	if strings.EqualFold(worksheet, WorksheetInventory) && len(m.order) > 0 {
		return cloneRecords(m.sheets[m.order[0]]), nil
	}
	if strings.EqualFold(worksheet, WorksheetOrders) {
		return []map[string]any{}, nil
	}
	return nil, ErrWorksheetNotFound
}

func (m *MemorySource) AppendRow(_ context.Context, worksheet string, header []string, row []any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := worksheet
	for existing := range m.sheets {
		if strings.EqualFold(existing, worksheet) {
			name = existing
			break
		}
	}
	if _, ok := m.sheets[name]; !ok {
		m.order = append(m.order, name)
	}
	m.sheets[name] = append(m.sheets[name], recordFromRow(header, row))
	return nil
}

func (m *MemorySource) lookup(worksheet string) ([]map[string]any, bool) {
	if rows, ok := m.sheets[worksheet]; ok {
		return rows, true
	}
	for name, rows := range m.sheets {
		if strings.EqualFold(name, worksheet) {
			return rows, true
		}
	}
	return nil, false
}

func cloneRecords(rows []map[string]any) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, r := range rows {
		c := make(map[string]any, len(r))
		for k, v := range r {
			c[k] = v
		}
		out[i] = c
	}
	return out
}
