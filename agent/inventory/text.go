package inventory

import (
	"fmt"
	"sort"
	"strings"

	contractx "github.com/tanpawarit/Chative-Ordering-Agent/agent/contract"
)

// priorityKeys lead the embedding text so the item's name dominates.
var priorityKeys = []string{"Item Name", "Dish Name", "item", "name", "Category", "category"}

func sortedKeys(item contractx.InventoryItem) []string {
	keys := make([]string, 0, len(item))
	for k := range item {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Flatten renders every value of item, lower-cased and space-joined, in
// sorted key order. Keyword matching runs against this text.
func Flatten(item contractx.InventoryItem) string {
	keys := sortedKeys(item)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, strings.ToLower(fmt.Sprint(item[k])))
	}
	return strings.Join(parts, " ")
}

// DocumentText renders item as "key: value" pairs joined by ". ", priority
// keys first and the rest sorted.
func DocumentText(item contractx.InventoryItem) string {
	seen := make(map[string]bool, len(priorityKeys))
	parts := make([]string, 0, len(item))
	for _, k := range priorityKeys {
		v, ok := item[k]
		if !ok {
			continue
		}
		seen[k] = true
		parts = append(parts, fmt.Sprintf("%s: %v", k, v))
	}
	for _, k := range sortedKeys(item) {
		if seen[k] {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %v", k, item[k]))
	}
	return strings.Join(parts, ". ")
}

// KeywordSearch keeps the items whose flattened text contains every
// whitespace-separated token of query. Order is preserved and an empty
// query matches everything.
func KeywordSearch(items []contractx.InventoryItem, query string) []contractx.InventoryItem {
	tokens := strings.Fields(strings.ToLower(query))
	out := make([]contractx.InventoryItem, 0)
	for _, item := range items {
		text := Flatten(item)
		match := true
		for _, tok := range tokens {
			if !strings.Contains(text, tok) {
				match = false
				break
			}
		}
		if match {
			out = append(out, item)
		}
	}
	return out
}
