package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Ordering-Agent/agent/contract"
	"github.com/tanpawarit/Chative-Ordering-Agent/agent/sheet"
)

const TimestampLayout = "2006-01-02 15:04:05"

// Header is the column layout of the Orders worksheet.
var Header = []string{"Timestamp", "Items", "Status", "Raw"}

// SourceResolver yields the sheet source of a tenant.
type SourceResolver interface {
	Source(ctx context.Context, tenantID string) (sheet.Source, error)
}

// Store appends confirmed orders to the tenant's Orders worksheet.
type Store struct {
	sources SourceResolver
	now     func() time.Time
}

var _ contractx.OrderStore = (*Store)(nil)

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func NewStore(sources SourceResolver, opts ...Option) *Store {
	s := &Store{sources: sources, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Summary renders items as "2x Fan, 1x Switch".
func Summary(items []contractx.LineItem) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = fmt.Sprintf("%dx %s", it.Quantity, it.Name)
	}
	return strings.Join(parts, ", ")
}

// AddOrder writes one row. A tenant without a usable source yields
// contract.ErrOrderUnavailable; any other failure is returned wrapped.
func (s *Store) AddOrder(ctx context.Context, tenantID string, o contractx.Order) error {
	if len(o.Items) == 0 {
		return fmt.Errorf("%w: order has no items", contractx.ErrValidation)
	}

	src, err := s.sources.Source(ctx, tenantID)
	if err != nil {
		if errors.Is(err, contractx.ErrTenantNotFound) || errors.Is(err, sheet.ErrNoSource) {
			return fmt.Errorf("%w: %v", contractx.ErrOrderUnavailable, err)
		}
		return fmt.Errorf("resolve order source: %w", err)
	}

	raw, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("encode order: %w", err)
	}
	row := []any{
		s.now().Format(TimestampLayout),
		Summary(o.Items),
		string(contractx.OrderConfirmed),
		string(raw),
	}
	if err := src.AppendRow(ctx, sheet.WorksheetOrders, Header, row); err != nil {
		return fmt.Errorf("append order row: %w", err)
	}

	log.Info().Str("tenant_id", tenantID).Str("items", row[1].(string)).Msg("order placed")
	return nil
}

// GetOrders lists the tenant's orders in write order.
func (s *Store) GetOrders(ctx context.Context, tenantID string) ([]contractx.OrderRecord, error) {
	src, err := s.sources.Source(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	records, err := src.Records(ctx, sheet.WorksheetOrders)
	if err != nil {
		return nil, fmt.Errorf("read orders: %w", err)
	}

	out := make([]contractx.OrderRecord, 0, len(records))
	for _, r := range records {
		out = append(out, contractx.OrderRecord{
			Timestamp: field(r, "timestamp"),
			Items:     field(r, "items"),
			Status:    contractx.OrderStatus(field(r, "status")),
			Raw:       field(r, "raw"),
		})
	}
	return out, nil
}

// field reads a column case-insensitively; sheets edited by hand rarely
// keep the header's casing.
func field(rec map[string]any, name string) string {
	for k, v := range rec {
		if strings.EqualFold(strings.TrimSpace(k), name) {
			if v == nil {
				return ""
			}
			return fmt.Sprint(v)
		}
	}
	return ""
}
