package tool

import (
	"github.com/cloudwego/eino/schema"
)

// Kind is the closed set of tools the ordering model may call.
type Kind int

const (
	KindUnknown Kind = iota
	KindSearchInventory
	KindAddToCart
	KindConfirmOrder
)

const (
	NameSearchInventory = "search_inventory"
	NameAddToCart       = "add_to_cart"
	NameConfirmOrder    = "confirm_and_place_order"
)

// ParseKind resolves a tool name from the model. Anything else is
// KindUnknown.
func ParseKind(name string) Kind {
	switch name {
	case NameSearchInventory:
		return KindSearchInventory
	case NameAddToCart:
		return KindAddToCart
	case NameConfirmOrder:
		return KindConfirmOrder
	default:
		return KindUnknown
	}
}

func (k Kind) String() string {
	switch k {
	case KindSearchInventory:
		return NameSearchInventory
	case KindAddToCart:
		return NameAddToCart
	case KindConfirmOrder:
		return NameConfirmOrder
	default:
		return "unknown"
	}
}

// Infos is the tool schema offered on the first model call of a turn.
func Infos() []*schema.ToolInfo {
	return []*schema.ToolInfo{
		{
			Name: NameSearchInventory,
			Desc: "Search for items in the inventory/menu.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"query": {Type: schema.String, Desc: "The search query for the item", Required: true},
			}),
		},
		{
			Name: NameAddToCart,
			Desc: "Add items to the current order cart.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"items": {
					Type:     schema.Array,
					Required: true,
					ElemInfo: &schema.ParameterInfo{
						Type: schema.Object,
						SubParams: map[string]*schema.ParameterInfo{
							"name":     {Type: schema.String, Desc: "Item name as listed in the inventory", Required: true},
							"quantity": {Type: schema.Integer, Desc: "How many to add", Required: true},
							"notes":    {Type: schema.String, Desc: "Optional notes for customization (e.g. 'Spicy', 'No onions')"},
						},
					},
				},
			}),
		},
		{
			Name:        NameConfirmOrder,
			Desc:        "Finalize and place the order after user confirmation.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
		},
	}
}
