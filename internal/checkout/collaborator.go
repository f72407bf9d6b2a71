package checkout

import (
	"context"

	"github.com/shopspring/decimal"
)

// Approval describes a captured payment reported by the collaborator.
type Approval struct {
	PaymentID      string          `json:"payment_id"`
	Status         string          `json:"status"`
	PayerGivenName string          `json:"payer_given_name"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
}

// ButtonSpec configures a payment button instance.
type ButtonSpec struct {
	Amount      decimal.Decimal
	Currency    string
	Description string
	OnApprove   func(ctx context.Context, approval Approval)
	OnError     func(ctx context.Context, err error)
}

// ButtonInstance is one payment button. Destroy releases it and is safe to call twice.
type ButtonInstance interface {
	Render(ctx context.Context, container string) error
	Destroy(ctx context.Context)
}

// CaptureRequest carries a browser-side approval that the server completes.
type CaptureRequest struct {
	SourceID       string `json:"source_id" validate:"required,max=512"`
	PayerGivenName string `json:"payer_given_name" validate:"omitempty,max=100"`
}

// Capturer is implemented by instances that complete payments server-side.
// Callbacks fire on the calling goroutine before Capture returns.
type Capturer interface {
	Capture(ctx context.Context, req CaptureRequest) error
}

// Collaborator creates payment buttons.
type Collaborator interface {
	CreateButton(ctx context.Context, spec ButtonSpec) (ButtonInstance, error)
}

// Resolver returns the payment collaborator once it has finished loading.
type Resolver interface {
	Resolve() (Collaborator, bool)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func() (Collaborator, bool)

func (f ResolverFunc) Resolve() (Collaborator, bool) {
	return f()
}
