package catalog

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Item is an offerable service. Items never change after the catalog is built.
type Item struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// Catalog is the fixed, ordered list of services priced in a single base currency.
type Catalog struct {
	currency string
	items    []Item
	byID     map[string]int
}

// New validates the provided items and builds an immutable catalog.
func New(currency string, items ...Item) (*Catalog, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return nil, fmt.Errorf("catalog currency required")
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("catalog requires at least one item")
	}

	c := &Catalog{
		currency: currency,
		items:    make([]Item, 0, len(items)),
		byID:     make(map[string]int, len(items)),
	}
	for _, item := range items {
		id := strings.TrimSpace(item.ID)
		if id == "" {
			return nil, fmt.Errorf("catalog item id required")
		}
		if _, dup := c.byID[id]; dup {
			return nil, fmt.Errorf("duplicate catalog item %q", id)
		}
		if item.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("catalog item %q has negative price", id)
		}
		item.ID = id
		c.byID[id] = len(c.items)
		c.items = append(c.items, item)
	}
	return c, nil
}

// Currency returns the base currency code every price is expressed in.
func (c *Catalog) Currency() string {
	return c.currency
}

// Items returns a copy of the catalog in display order.
func (c *Catalog) Items() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Catalog) Lookup(id string) (Item, bool) {
	idx, ok := c.byID[id]
	if !ok {
		return Item{}, false
	}
	return c.items[idx], true
}

func (c *Catalog) Has(id string) bool {
	_, ok := c.byID[id]
	return ok
}

func (c *Catalog) Len() int {
	return len(c.items)
}
