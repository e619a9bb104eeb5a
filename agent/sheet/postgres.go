package sheet

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

type PostgresConfig struct {
	DSN string `envconfig:"DSN" required:"true"`
}

// Row is one worksheet row stored as jsonb, scoped by sheet handle.
type Row struct {
	bun.BaseModel `bun:"table:sheet_rows,alias:sr"`

	ID        int64          `bun:"id,pk,autoincrement"`
	SheetID   string         `bun:"sheet_id,notnull"`
	Worksheet string         `bun:"worksheet,notnull"`
	Data      map[string]any `bun:"data,type:jsonb,notnull"`
	CreatedAt time.Time      `bun:"created_at,notnull,default:current_timestamp"`
}

func OpenPostgres(cfg PostgresConfig) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN)))
	return bun.NewDB(sqldb, pgdialect.New())
}

// EnsureSchema creates the rows table when missing.
func EnsureSchema(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateTable().
		Model((*Row)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create sheet_rows: %w", err)
	}
	return nil
}

// PostgresSource serves one sheet handle out of the shared rows table.
type PostgresSource struct {
	db      bun.IDB
	sheetID string
}

func NewPostgresSource(db bun.IDB, sheetID string) *PostgresSource {
	return &PostgresSource{db: db, sheetID: sheetID}
}

func (p *PostgresSource) Records(ctx context.Context, worksheet string) ([]map[string]any, error) {
	rows, err := p.rows(ctx, worksheet)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 && strings.EqualFold(worksheet, WorksheetInventory) {
		first, err := p.firstWorksheet(ctx)
		if err != nil {
			return nil, err
		}
		if first != "" {
			rows, err = p.rows(ctx, first)
			if err != nil {
				return nil, err
			}
		}
	}

	out := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Data)
	}
	return out, nil
}

func (p *PostgresSource) rows(ctx context.Context, worksheet string) ([]Row, error) {
	var rows []Row
	err := p.db.NewSelect().
		Model(&rows).
		Where("sheet_id = ?", p.sheetID).
		Where("lower(worksheet) = lower(?)", worksheet).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select %s rows: %w", worksheet, err)
	}
	return rows, nil
}

func (p *PostgresSource) firstWorksheet(ctx context.Context) (string, error) {
	var names []string
	err := p.db.NewSelect().
		Model((*Row)(nil)).
		Column("worksheet").
		Where("sheet_id = ?", p.sheetID).
		Where("lower(worksheet) <> lower(?)", WorksheetOrders).
		Order("id ASC").
		Limit(1).
		Scan(ctx, &names)
	if err != nil {
		return "", fmt.Errorf("select first worksheet: %w", err)
	}
	if len(names) == 0 {
		return "", nil
	}
	return names[0], nil
}

func (p *PostgresSource) AppendRow(ctx context.Context, worksheet string, header []string, row []any) error {
	r := &Row{
		SheetID:   p.sheetID,
		Worksheet: worksheet,
		Data:      recordFromRow(header, row),
	}
	if _, err := p.db.NewInsert().Model(r).Exec(ctx); err != nil {
		return fmt.Errorf("insert %s row: %w", worksheet, err)
	}
	return nil
}
