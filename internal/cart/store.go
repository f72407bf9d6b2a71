package cart

import (
	"context"
	"fmt"

	"github.com/angelmondragon/viylo-storefront/internal/catalog"
	pkgerrors "github.com/angelmondragon/viylo-storefront/pkg/errors"
	"github.com/shopspring/decimal"
)

// Entry is one cart line. Quantity is always at least 1.
type Entry struct {
	Item     catalog.Item `json:"item"`
	Quantity int          `json:"quantity"`
}

// LineTotal is quantity times unit price, unrounded.
func (e Entry) LineTotal() decimal.Decimal {
	return e.Item.UnitPrice.Mul(decimal.NewFromInt(int64(e.Quantity)))
}

// Totals is derived from the cart on demand and never stored.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
	Currency string          `json:"currency"`
}

// Snapshot is a point-in-time copy of the cart used as the record for a submission.
type Snapshot struct {
	Entries []Entry
	Totals  Totals
}

func (s Snapshot) Empty() bool {
	return len(s.Entries) == 0
}

// Listener is notified once per mutating operation, after totals were recomputed.
type Listener func(ctx context.Context, totals Totals)

// Store owns a visitor's cart and the per-item selection counters that feed it.
// It is not safe for concurrent use; the owning session serializes access.
type Store struct {
	catalog *catalog.Catalog
	taxRate decimal.Decimal

	order      []string
	quantities map[string]int
	selections map[string]int
	listeners  []Listener
}

// NewStore builds an empty cart priced against the given catalog.
func NewStore(c *catalog.Catalog, taxRate decimal.Decimal) (*Store, error) {
	if c == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if taxRate.IsNegative() {
		return nil, fmt.Errorf("tax rate must be non-negative")
	}
	return &Store{
		catalog:    c,
		taxRate:    taxRate,
		quantities: map[string]int{},
		selections: map[string]int{},
	}, nil
}

// Subscribe registers a dependent that is told about every cart mutation.
func (s *Store) Subscribe(l Listener) {
	if l == nil {
		return
	}
	s.listeners = append(s.listeners, l)
}

// SetQuantity records the pending selection for an item, clamped to >= 0.
// It never creates a cart entry.
func (s *Store) SetQuantity(itemID string, quantity int) int {
	s.mustItem(itemID)
	quantity = max(quantity, 0)
	if quantity == 0 {
		delete(s.selections, itemID)
	} else {
		s.selections[itemID] = quantity
	}
	return quantity
}

// Bump adjusts the pending selection by delta, clamped to >= 0.
func (s *Store) Bump(itemID string, delta int) int {
	return s.SetQuantity(itemID, s.Selection(itemID)+delta)
}

func (s *Store) Selection(itemID string) int {
	return s.selections[itemID]
}

// Selections returns the pending counter for every catalog item.
func (s *Store) Selections() map[string]int {
	out := make(map[string]int, s.catalog.Len())
	for _, item := range s.catalog.Items() {
		out[item.ID] = s.selections[item.ID]
	}
	return out
}

// AddSelection moves the pending selection for itemID into the cart and resets the counter.
func (s *Store) AddSelection(ctx context.Context, itemID string) (int, error) {
	qty := s.Selection(itemID)
	if err := s.Add(ctx, itemID, qty); err != nil {
		return 0, err
	}
	delete(s.selections, itemID)
	return qty, nil
}

// Add puts quantity units of itemID in the cart, summing with any existing entry.
// Unknown ids are programming errors and panic.
func (s *Store) Add(ctx context.Context, itemID string, quantity int) error {
	s.mustItem(itemID)
	if quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "select at least 1 unit").
			WithDetails(map[string]any{"item_id": itemID, "quantity": quantity})
	}
	if _, ok := s.quantities[itemID]; !ok {
		s.order = append(s.order, itemID)
	}
	s.quantities[itemID] += quantity
	s.changed(ctx)
	return nil
}

// Remove deletes the entry for itemID. Removing an absent item is a no-op.
func (s *Store) Remove(ctx context.Context, itemID string) {
	if _, ok := s.quantities[itemID]; !ok {
		return
	}
	delete(s.quantities, itemID)
	for i, id := range s.order {
		if id == itemID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.changed(ctx)
}

// Clear empties the cart unconditionally. Pending selections are kept.
func (s *Store) Clear(ctx context.Context) {
	s.order = nil
	s.quantities = map[string]int{}
	s.changed(ctx)
}

// Totals is a pure read; an empty cart yields all-zero totals.
func (s *Store) Totals() Totals {
	subtotal := decimal.Zero
	for _, entry := range s.Entries() {
		subtotal = subtotal.Add(entry.LineTotal())
	}
	tax := subtotal.Mul(s.taxRate).Round(2)
	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal.Add(tax),
		Currency: s.catalog.Currency(),
	}
}

// Entries returns the cart lines in insertion order.
func (s *Store) Entries() []Entry {
	out := make([]Entry, 0, len(s.order))
	for _, id := range s.order {
		item, _ := s.catalog.Lookup(id)
		out = append(out, Entry{Item: item, Quantity: s.quantities[id]})
	}
	return out
}

func (s *Store) Snapshot() Snapshot {
	return Snapshot{Entries: s.Entries(), Totals: s.Totals()}
}

func (s *Store) Len() int {
	return len(s.order)
}

func (s *Store) Catalog() *catalog.Catalog {
	return s.catalog
}

func (s *Store) changed(ctx context.Context) {
	if len(s.listeners) == 0 {
		return
	}
	totals := s.Totals()
	for _, l := range s.listeners {
		l(ctx, totals)
	}
}

func (s *Store) mustItem(itemID string) {
	if !s.catalog.Has(itemID) {
		panic(fmt.Sprintf("cart: unknown catalog item %q", itemID))
	}
}
