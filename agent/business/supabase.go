package business

import (
	"context"
	"fmt"
	"strings"

	"github.com/supabase-community/supabase-go"

	contractx "github.com/tanpawarit/Chative-Ordering-Agent/agent/contract"
)

type SupabaseConfig struct {
	URL    string `envconfig:"URL" required:"true"`
	APIKey string `envconfig:"API_KEY" required:"true"`
	Table  string `envconfig:"TABLE" default:"businesses"`
}

// SupabaseBackend keeps tenants in a Supabase table with columns matching
// the JSON shape of contract.Business.
type SupabaseBackend struct {
	client *supabase.Client
	table  string
}

func NewSupabaseBackend(cfg SupabaseConfig) (*SupabaseBackend, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("supabase URL is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("supabase API key is required")
	}
	client, err := supabase.NewClient(cfg.URL, cfg.APIKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	table := cfg.Table
	if table == "" {
		table = "businesses"
	}
	return &SupabaseBackend{client: client, table: table}, nil
}

func (s *SupabaseBackend) Load(_ context.Context) ([]contractx.Business, error) {
	var rows []contractx.Business
	_, err := s.client.From(s.table).
		Select("*", "", false).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list businesses: %w", err)
	}
	return rows, nil
}

func (s *SupabaseBackend) Append(_ context.Context, b contractx.Business) error {
	_, _, err := s.client.From(s.table).
		Insert(b, false, "", "minimal", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to insert business %s: %w", b.ID, err)
	}
	return nil
}
