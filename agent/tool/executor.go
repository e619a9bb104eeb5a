package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Ordering-Agent/agent/contract"
	metricsx "github.com/tanpawarit/Chative-Ordering-Agent/pkg/metrics"
)

// Tool result texts the model sees.
const (
	MsgNoItems          = "No items found."
	MsgCartEmpty        = "Cart is empty."
	MsgOrderPlaced      = "Order placed successfully."
	MsgOrderFailed      = "Failed to place order."
	MsgOrderUnavailable = "System Error: Order system unavailable."
)

// Cart is the session cart as seen by tool handlers.
type Cart interface {
	AddToCart(items ...contractx.LineItem)
	CartSnapshot() []contractx.LineItem
	ClearCart()
}

type SearchInventoryInput struct {
	Query string `json:"query"`
}

type AddToCartInput struct {
	Items []contractx.LineItem `json:"items"`
}

// Executor runs tool calls against one tenant's inventory and order store.
type Executor struct {
	searcher contractx.Searcher
	orders   contractx.OrderStore
	metrics  *metricsx.Metrics
}

// NewExecutor builds an Executor. orders may be nil, in which case order
// confirmation reports the order system as unavailable.
func NewExecutor(searcher contractx.Searcher, orders contractx.OrderStore, m *metricsx.Metrics) *Executor {
	return &Executor{searcher: searcher, orders: orders, metrics: m}
}

// Execute never fails: problems become an error text in the tool result.
func (e *Executor) Execute(ctx context.Context, tenantID string, cart Cart, call schema.ToolCall) contractx.ToolResult {
	name := call.Function.Name
	res := contractx.ToolResult{Tool: name, CallID: call.ID}
	logger := log.With().Str("tenant_id", tenantID).Str("tool", name).Logger()

	var err error
	switch ParseKind(name) {
	case KindSearchInventory:
		res.Result, err = e.searchInventory(ctx, tenantID, call.Function.Arguments)
	case KindAddToCart:
		res.Result, err = e.addToCart(cart, call.Function.Arguments)
	case KindConfirmOrder:
		res.Result = e.confirmOrder(ctx, tenantID, cart)
	case KindUnknown:
		err = fmt.Errorf("unknown tool %q", name)
	}

	status := "ok"
	if err != nil {
		status = "error"
		res.Result = ""
		res.Error = "Error: " + err.Error()
		logger.Warn().Err(err).Msg("tool call rejected")
	}
	e.metrics.ToolCall(ParseKind(name).String(), status)
	return res
}

func decodeArgs(raw string, dst any) error {
	if strings.TrimSpace(raw) == "" {
		raw = "{}"
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("%w: malformed arguments: %v", contractx.ErrValidation, err)
	}
	return nil
}

func (e *Executor) searchInventory(ctx context.Context, tenantID, raw string) (string, error) {
	var in SearchInventoryInput
	if err := decodeArgs(raw, &in); err != nil {
		return "", err
	}

	items := e.searcher.Search(ctx, in.Query, tenantID)
	if len(items) == 0 {
		return MsgNoItems, nil
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("encode results: %w", err)
	}
	return "Found: " + string(payload), nil
}

func (e *Executor) addToCart(cart Cart, raw string) (string, error) {
	var in AddToCartInput
	if err := decodeArgs(raw, &in); err != nil {
		return "", err
	}
	if len(in.Items) == 0 {
		return "", fmt.Errorf("%w: items is required", contractx.ErrValidation)
	}
	for i, it := range in.Items {
		if strings.TrimSpace(it.Name) == "" {
			return "", fmt.Errorf("%w: items[%d].name is required", contractx.ErrValidation, i)
		}
		if it.Quantity < 1 {
			return "", fmt.Errorf("%w: items[%d].quantity must be at least 1", contractx.ErrValidation, i)
		}
	}

	cart.AddToCart(in.Items...)
	payload, err := json.Marshal(cart.CartSnapshot())
	if err != nil {
		return "", fmt.Errorf("encode cart: %w", err)
	}
	return "Added items. Current Cart: " + string(payload), nil
}

func (e *Executor) confirmOrder(ctx context.Context, tenantID string, cart Cart) string {
	items := cart.CartSnapshot()
	if len(items) == 0 {
		e.metrics.Order("empty_cart")
		return MsgCartEmpty
	}
	if e.orders == nil {
		e.metrics.Order("unavailable")
		return MsgOrderUnavailable
	}

	err := e.orders.AddOrder(ctx, tenantID, contractx.Order{Items: items})
	switch {
	case err == nil:
		cart.ClearCart()
		e.metrics.Order("placed")
		return MsgOrderPlaced
	case errors.Is(err, contractx.ErrOrderUnavailable):
		log.Error().Err(err).Str("tenant_id", tenantID).Msg("order system unavailable")
		e.metrics.Order("unavailable")
		return MsgOrderUnavailable
	default:
		log.Error().Err(err).Str("tenant_id", tenantID).Msg("order placement failed")
		e.metrics.Order("failed")
		return MsgOrderFailed
	}
}
