package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/warp/paper-supply/generic"
	"github.com/warp/paper-supply/inventory"
)

// =============================================================================
// BOUNDARY VALIDATION
// =============================================================================

// DecodeJSON parses an extractor payload. Both {"items": [...]} and a bare
// list are accepted.
func DecodeJSON(payload []byte) ([]map[string]any, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, &generic.ValidationError{Field: "items", Message: "empty payload"}
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	if trimmed[0] == '[' {
		var list []map[string]any
		if err := dec.Decode(&list); err != nil {
			return nil, &generic.ValidationError{Field: "items", Message: err.Error()}
		}
		return list, nil
	}
	var wrapped struct {
		Items []map[string]any `json:"items"`
	}
	if err := dec.Decode(&wrapped); err != nil {
		return nil, &generic.ValidationError{Field: "items", Message: err.Error()}
	}
	return wrapped.Items, nil
}

// Rejected explains why an entry was dropped.
type Rejected struct {
	Index  int
	Reason string
}

// Validate converts untyped entries into requested items. Entries that do
// not carry a usable name and a whole, non-negative quantity are dropped
// and reported. Names resolve to catalog names by ResolveName.
func Validate(raw []map[string]any, catalogNames []string) ([]inventory.RequestedItem, []Rejected) {
	var (
		items    []inventory.RequestedItem
		rejected []Rejected
	)
	for i, entry := range raw {
		name, ok := stringField(entry, "item_name", "name", "item")
		if !ok || strings.TrimSpace(name) == "" {
			rejected = append(rejected, Rejected{Index: i, Reason: "missing item name"})
			continue
		}
		qty, err := quantityField(entry)
		if err != nil {
			rejected = append(rejected, Rejected{Index: i, Reason: err.Error()})
			continue
		}
		resolved, ok := ResolveName(name, catalogNames)
		if !ok {
			rejected = append(rejected, Rejected{Index: i, Reason: fmt.Sprintf("%q matches no catalog item", name)})
			continue
		}
		items = append(items, inventory.RequestedItem{ItemName: resolved, Quantity: qty})
	}
	return items, rejected
}

// ResolveName maps a free-text name onto a catalog name: exact match first,
// then case-insensitive, then containment in either direction. Among
// containment matches the longest catalog name wins.
func ResolveName(name string, catalogNames []string) (string, bool) {
	for _, c := range catalogNames {
		if c == name {
			return c, true
		}
	}
	lower := strings.ToLower(strings.TrimSpace(name))
	for _, c := range catalogNames {
		if strings.ToLower(c) == lower {
			return c, true
		}
	}
	best := ""
	for _, c := range catalogNames {
		lc := strings.ToLower(c)
		if strings.Contains(lc, lower) || strings.Contains(lower, lc) {
			if len(c) > len(best) {
				best = c
			}
		}
	}
	return best, best != ""
}

func stringField(entry map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := entry[k]; ok {
			s, ok := v.(string)
			return s, ok
		}
	}
	return "", false
}

func quantityField(entry map[string]any) (int, error) {
	v, ok := entry["quantity"]
	if !ok {
		return 0, fmt.Errorf("missing quantity")
	}
	var f float64
	switch q := v.(type) {
	case json.Number:
		parsed, err := q.Float64()
		if err != nil {
			return 0, fmt.Errorf("quantity %q is not a number", q.String())
		}
		f = parsed
	case float64:
		f = q
	case int:
		f = float64(q)
	case int64:
		f = float64(q)
	case string:
		parsed, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(q), ",", ""), 64)
		if err != nil {
			return 0, fmt.Errorf("quantity %q is not a number", q)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("quantity has type %T", v)
	}
	if f < 0 {
		return 0, fmt.Errorf("quantity %v is negative", f)
	}
	if f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, fmt.Errorf("quantity %v is not a whole number of units", f)
	}
	return int(f), nil
}
