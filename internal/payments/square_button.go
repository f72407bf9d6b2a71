package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/viylo-storefront/internal/checkout"
	pkgerrors "github.com/angelmondragon/viylo-storefront/pkg/errors"
	"github.com/angelmondragon/viylo-storefront/pkg/logger"
	"github.com/angelmondragon/viylo-storefront/pkg/square"
	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
)

type paymentCreator interface {
	CreatePayment(ctx context.Context, params square.PaymentCreateParams) (*sq.Payment, error)
}

// SquareButtons is the payment collaborator backed by the Square Payments API.
// The browser tokenizes the card with the Square Web Payments SDK and the
// resulting source id is captured here.
type SquareButtons struct {
	client paymentCreator
	logg   *logger.Logger
}

func NewSquareButtons(client paymentCreator, logg *logger.Logger) (*SquareButtons, error) {
	if client == nil {
		return nil, fmt.Errorf("square client required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &SquareButtons{client: client, logg: logg}, nil
}

func (s *SquareButtons) CreateButton(_ context.Context, spec checkout.ButtonSpec) (checkout.ButtonInstance, error) {
	if spec.Amount.Sign() <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
	}
	if strings.TrimSpace(spec.Currency) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment currency required")
	}
	return &squareButton{
		id:     uuid.NewString(),
		spec:   spec,
		client: s.client,
		logg:   s.logg,
	}, nil
}

type squareButton struct {
	id        string
	spec      checkout.ButtonSpec
	client    paymentCreator
	logg      *logger.Logger
	container string
	destroyed bool
}

func (b *squareButton) Render(_ context.Context, container string) error {
	if b.destroyed {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "payment button already destroyed")
	}
	if strings.TrimSpace(container) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment button container required")
	}
	b.container = container
	return nil
}

func (b *squareButton) Destroy(context.Context) {
	b.destroyed = true
	b.container = ""
}

// Capture charges the tokenized source for the button amount.
func (b *squareButton) Capture(ctx context.Context, req checkout.CaptureRequest) error {
	if b.destroyed || b.container == "" {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "payment button is not rendered")
	}
	sourceID := strings.TrimSpace(req.SourceID)
	if sourceID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "source_id is required")
	}

	ctx = b.logg.WithField(ctx, "button_id", b.id)
	payment, err := b.client.CreatePayment(ctx, square.PaymentCreateParams{
		AmountCents:    b.spec.Amount.Shift(2).IntPart(),
		Currency:       b.spec.Currency,
		SourceID:       sourceID,
		IdempotencyKey: idempotencyKey(b.id, sourceID),
		Note:           b.spec.Description,
		ReferenceID:    b.id,
	})
	if err != nil {
		if b.spec.OnError != nil {
			b.spec.OnError(ctx, err)
		}
		return err
	}

	approval := checkout.Approval{
		PayerGivenName: strings.TrimSpace(req.PayerGivenName),
		Amount:         b.spec.Amount,
		Currency:       b.spec.Currency,
	}
	if payment != nil {
		approval.PaymentID = valueOf(payment.GetID())
		approval.Status = valueOf(payment.GetStatus())
	}
	if b.spec.OnApprove != nil {
		b.spec.OnApprove(ctx, approval)
	}
	return nil
}

// idempotencyKey stays stable for a retried capture of the same token on the same button.
func idempotencyKey(buttonID, sourceID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(buttonID+"|"+sourceID)).String()
}

func valueOf(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
