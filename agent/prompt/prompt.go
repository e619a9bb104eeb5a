package prompt

import (
	"context"
	"embed"
	"fmt"
	"strings"
	"time"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Ordering-Agent/agent/contract"
)

// Fallback is used when a template cannot be rendered.
const Fallback = "You are a helpful assistant."

//go:embed template/*.j2
var templates embed.FS

// Set holds the raw system prompt templates by business type.
type Set struct {
	byType map[contractx.BusinessType]string
}

// Load reads the embedded templates.
func Load() (Set, error) {
	set := Set{byType: make(map[contractx.BusinessType]string)}
	for _, t := range []contractx.BusinessType{contractx.BusinessRetail, contractx.BusinessRestaurant} {
		raw, err := templates.ReadFile("template/" + string(t) + ".j2")
		if err != nil {
			return Set{}, fmt.Errorf("%w: %s: %v", contractx.ErrPromptMissing, t, err)
		}
		set.byType[t] = strings.TrimSpace(string(raw))
	}
	return set, nil
}

// MustLoad panics when an embedded template is missing.
func MustLoad() Set {
	set, err := Load()
	if err != nil {
		panic(err)
	}
	return set
}

// NewSet builds a Set from in-memory templates.
func NewSet(byType map[contractx.BusinessType]string) Set {
	return Set{byType: byType}
}

// Template returns the template for a business type. Unknown types use the
// retail template.
func (s Set) Template(t contractx.BusinessType) (string, bool) {
	if tpl, ok := s.byType[t]; ok {
		return tpl, true
	}
	tpl, ok := s.byType[contractx.BusinessRetail]
	return tpl, ok
}

// System renders the system prompt for a tenant. It never fails: any
// rendering problem yields Fallback.
func (s Set) System(ctx context.Context, b contractx.Business, now time.Time) string {
	tpl, ok := s.Template(b.Type)
	if !ok {
		log.Warn().Str("tenant_id", b.ID).Str("type", string(b.Type)).Msg("no prompt template, using fallback")
		return Fallback
	}

	name := strings.TrimSpace(b.Name)
	if name == "" {
		name = b.ID
	}
	msgs, err := einoprompt.FromMessages(schema.Jinja2, schema.SystemMessage(tpl)).Format(ctx, map[string]any{
		"business_name": name,
		"business_type": string(b.Type),
		"current_time":  now.Format("15:04"),
	})
	if err != nil || len(msgs) == 0 || strings.TrimSpace(msgs[0].Content) == "" {
		log.Warn().Err(err).Str("tenant_id", b.ID).Msg("prompt render failed, using fallback")
		return Fallback
	}
	return msgs[0].Content
}
