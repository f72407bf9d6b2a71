package orders

import (
	"fmt"
	"iter"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/angelmondragon/viylo-storefront/internal/cart"
	"github.com/shopspring/decimal"
)

const (
	// EmptyCartLine is the single line rendered for a cart with no entries.
	EmptyCartLine = "No services selected"
	// BlankField replaces optional customer fields left empty.
	BlankField = "—"

	orderIDPrefix = "VY-"
	orderIDSpace  = 1_000_000
)

// Customer holds the order form fields.
type Customer struct {
	Name    string `json:"name" validate:"required,max=200"`
	Email   string `json:"email" validate:"required,email,max=254"`
	Phone   string `json:"phone" validate:"omitempty,max=40"`
	Company string `json:"company" validate:"omitempty,max=200"`
	Notes   string `json:"notes" validate:"omitempty,max=2000"`
}

// Normalize trims every field.
func (c Customer) Normalize() Customer {
	return Customer{
		Name:    strings.TrimSpace(c.Name),
		Email:   strings.TrimSpace(c.Email),
		Phone:   strings.TrimSpace(c.Phone),
		Company: strings.TrimSpace(c.Company),
		Notes:   strings.TrimSpace(c.Notes),
	}
}

// Payload is the record handed to the notification collaborator.
type Payload struct {
	OrderID     string          `json:"order_id"`
	Lines       []string        `json:"lines"`
	OrderLines  string          `json:"order_lines"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Tax         decimal.Decimal `json:"tax"`
	Total       decimal.Decimal `json:"total"`
	Currency    string          `json:"currency"`
	Customer    Customer        `json:"customer"`
	Destination string          `json:"destination"`
	CreatedAt   time.Time       `json:"created_at"`
}

// TemplateParams flattens the payload into the order email template fields.
func (p Payload) TemplateParams() map[string]string {
	return map[string]string{
		"order_id":      p.OrderID,
		"customer_name": p.Customer.Name,
		"email":         p.Customer.Email,
		"phone":         p.Customer.Phone,
		"company":       p.Customer.Company,
		"notes":         p.Customer.Notes,
		"order_lines":   p.OrderLines,
		"subtotal":      p.Subtotal.StringFixed(2),
		"tax":           p.Tax.StringFixed(2),
		"total":         p.Total.StringFixed(2),
		"currency":      p.Currency,
		"to_email":      p.Destination,
	}
}

// FormatLine renders one cart entry as "<name> x<qty> — <line total> <currency>".
func FormatLine(entry cart.Entry, currency string) string {
	return fmt.Sprintf("%s x%d — %s %s", entry.Item.Name, entry.Quantity, entry.LineTotal().StringFixed(2), currency)
}

// Lines yields one rendered line per entry, or EmptyCartLine when there are none.
// The sequence can be ranged over any number of times.
func Lines(entries []cart.Entry, currency string) iter.Seq[string] {
	owned := make([]cart.Entry, len(entries))
	copy(owned, entries)
	return func(yield func(string) bool) {
		if len(owned) == 0 {
			yield(EmptyCartLine)
			return
		}
		for _, entry := range owned {
			if !yield(FormatLine(entry, currency)) {
				return
			}
		}
	}
}

// JoinLines concatenates the sequence with newlines.
func JoinLines(seq iter.Seq[string]) string {
	var b strings.Builder
	first := true
	for line := range seq {
		if !first {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		first = false
	}
	return b.String()
}

// GenerateOrderID returns "VY-" followed by a zero-padded random number below one million.
// Ids are advisory: two orders collide with probability about 1 in 10^6.
func GenerateOrderID() string {
	return FormatOrderID(rand.IntN(orderIDSpace))
}

func FormatOrderID(n int) string {
	return fmt.Sprintf("%s%06d", orderIDPrefix, n%orderIDSpace)
}

// BuildPayload assembles the notification record from the cart snapshot of record.
func BuildPayload(orderID string, snapshot cart.Snapshot, customer Customer, destination string) Payload {
	customer = customer.Normalize()
	if customer.Company == "" {
		customer.Company = BlankField
	}
	if customer.Notes == "" {
		customer.Notes = BlankField
	}

	currency := snapshot.Totals.Currency
	var lines []string
	for line := range Lines(snapshot.Entries, currency) {
		lines = append(lines, line)
	}

	return Payload{
		OrderID:     orderID,
		Lines:       lines,
		OrderLines:  strings.Join(lines, "\n"),
		Subtotal:    snapshot.Totals.Subtotal,
		Tax:         snapshot.Totals.Tax,
		Total:       snapshot.Totals.Total,
		Currency:    currency,
		Customer:    customer,
		Destination: strings.TrimSpace(destination),
		CreatedAt:   time.Now().UTC(),
	}
}
