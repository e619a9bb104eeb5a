package contract

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

type BusinessType string

const (
	BusinessRetail     BusinessType = "retail"
	BusinessRestaurant BusinessType = "restaurant"
)

// Business is a tenant record. SheetID is the handle of the tenant's
// inventory/order source.
type Business struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Type    BusinessType   `json:"type"`
	SheetID string         `json:"sheet_id"`
	Config  map[string]any `json:"config,omitempty"`
}

// InventoryItem is a catalog row keyed by the tenant's own column names
// ("Item Name", "Dish Name", "price", ...).
type InventoryItem map[string]any

// LineItem is one cart entry as requested by the model.
type LineItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Notes    string `json:"notes,omitempty"`
}

// UnmarshalJSON also accepts integral floats such as 2.0 for quantity.
func (li *LineItem) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name     string      `json:"name"`
		Quantity json.Number `json:"quantity"`
		Notes    string      `json:"notes,omitempty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	qty := 0
	if raw.Quantity != "" {
		if n, err := raw.Quantity.Int64(); err == nil {
			qty = int(n)
		} else {
			f, err := raw.Quantity.Float64()
			if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
				return fmt.Errorf("%w: quantity %s is not a whole number", ErrValidation, raw.Quantity)
			}
			qty = int(f)
		}
	}

	*li = LineItem{Name: raw.Name, Quantity: qty, Notes: raw.Notes}
	return nil
}

type Order struct {
	Items []LineItem `json:"items"`
}

type OrderStatus string

const OrderConfirmed OrderStatus = "Confirmed"

type OrderRecord struct {
	Timestamp string      `json:"timestamp"`
	Items     string      `json:"items"`
	Status    OrderStatus `json:"status"`
	Raw       string      `json:"raw"`
}

type TurnRequest struct {
	SessionKey string `json:"session_key"`
	TenantID   string `json:"tenant_id"`
	Text       string `json:"text"`
	ImageURL   string `json:"image_url,omitempty"`
}

type ToolResult struct {
	Tool   string `json:"tool"`
	CallID string `json:"call_id"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Content is what goes into the tool turn of the conversation.
func (r ToolResult) Content() string {
	if r.Error != "" {
		return r.Error
	}
	return r.Result
}

type IndexResult struct {
	TenantID string
	Items    int
	Err      error
	Finished time.Time
}
