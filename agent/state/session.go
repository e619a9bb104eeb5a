package state

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/Chative-Ordering-Agent/agent/contract"
)

// Session is the per-conversant conversation state.
// - History always starts with exactly one system turn.
// - Cart is append-only until an order is placed.
type Session struct {
	Key      string               `json:"key"`
	TenantID string               `json:"tenant_id"`
	History  []*schema.Message    `json:"history"`
	Cart     []contractx.LineItem `json:"cart"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var (
	ErrMissingSystemTurn = errors.New("history must start with a system turn")
	ErrExtraSystemTurn   = errors.New("history has more than one system turn")
)

func NewSession(key, tenantID, systemPrompt string, now time.Time) *Session {
	return &Session{
		Key:       key,
		TenantID:  tenantID,
		History:   []*schema.Message{schema.SystemMessage(systemPrompt)},
		Cart:      []contractx.LineItem{},
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
}

func (s *Session) Touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}

// Append adds turns to the end of the history.
func (s *Session) Append(msgs ...*schema.Message) {
	for _, m := range msgs {
		if m != nil {
			s.History = append(s.History, m)
		}
	}
}

// AddToCart appends items as given: no merging, no catalog validation.
func (s *Session) AddToCart(items ...contractx.LineItem) {
	s.Cart = append(s.Cart, items...)
}

func (s *Session) ClearCart() {
	s.Cart = []contractx.LineItem{}
}

func (s *Session) CartEmpty() bool {
	return len(s.Cart) == 0
}

// CartSnapshot returns a copy safe to hand to the order store.
func (s *Session) CartSnapshot() []contractx.LineItem {
	out := make([]contractx.LineItem, len(s.Cart))
	copy(out, s.Cart)
	return out
}

// Clone copies the session so a turn can be worked on without touching the
// stored value. Messages are shared: they are never mutated once appended.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.History = append([]*schema.Message(nil), s.History...)
	out.Cart = s.CartSnapshot()
	return &out
}

func (s *Session) Validate() error {
	if s == nil {
		return ErrNilSession
	}
	if strings.TrimSpace(s.Key) == "" {
		return ErrInvalidSession
	}
	if len(s.History) == 0 || s.History[0] == nil || s.History[0].Role != schema.System {
		return ErrMissingSystemTurn
	}
	for i, m := range s.History[1:] {
		if m != nil && m.Role == schema.System {
			return fmt.Errorf("%w: index=%d", ErrExtraSystemTurn, i+1)
		}
	}
	for i, item := range s.Cart {
		if item.Quantity < 1 {
			return fmt.Errorf("%w: cart item %d has quantity %d", contractx.ErrValidation, i, item.Quantity)
		}
	}
	return nil
}
