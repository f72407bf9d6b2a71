package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pkgerrors "github.com/angelmondragon/viylo-storefront/pkg/errors"
	"github.com/angelmondragon/viylo-storefront/pkg/logger"
	"github.com/shopspring/decimal"
)

type State string

const (
	StateEmpty       State = "empty"
	StateRendered    State = "rendered"
	StateUnavailable State = "unavailable"
)

const (
	MessageFallback = "Online payment is unavailable right now. You can still send your order and we will contact you."
	MessageError    = "Payment error. Please try again or contact us."
)

// ApprovedMessage is shown after the collaborator reports a captured payment.
func ApprovedMessage(givenName string) string {
	name := strings.TrimSpace(givenName)
	if name == "" {
		name = "you"
	}
	return fmt.Sprintf("Payment completed by %s. Thank you!", name)
}

type NoticeLevel string

const (
	NoticeInfo         NoticeLevel = "info"
	NoticeConfirmation NoticeLevel = "confirmation"
	NoticeError        NoticeLevel = "error"
	NoticeFallback     NoticeLevel = "fallback"
)

// Notice is a user-facing message produced by the checkout flow.
type Notice struct {
	Level     NoticeLevel `json:"level"`
	Message   string      `json:"message"`
	Reference string      `json:"reference,omitempty"`
}

type NoticeFunc func(ctx context.Context, notice Notice)

type transitionObserver interface {
	WidgetTransition(from, to string)
}

// Options wires a Controller.
type Options struct {
	Container   string
	Currency    string
	Description string
	Rate        decimal.Decimal
	Resolver    Resolver
	Notify      NoticeFunc
	Observer    transitionObserver
	Logger      *logger.Logger
}

// View is the read model of the widget.
type View struct {
	State       State           `json:"state"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
	Container   string          `json:"container"`
	Fallback    string          `json:"fallback,omitempty"`
	LastPayment *Approval       `json:"last_payment,omitempty"`
}

// Controller keeps a single payment button in sync with the cart total.
// It is not safe for concurrent use; the owning session serializes access.
type Controller struct {
	opts Options

	state       State
	amount      decimal.Decimal
	total       decimal.Decimal
	instance    ButtonInstance
	generation  int
	lastPayment *Approval
	// renderFailed marks Unavailable caused by a broken collaborator rather
	// than a missing one. Only the next Sync clears it.
	renderFailed bool
	closed       bool
}

// NewController builds a controller in the Empty state.
func NewController(opts Options) (*Controller, error) {
	if opts.Resolver == nil {
		return nil, fmt.Errorf("payment resolver required")
	}
	if opts.Rate.Sign() <= 0 {
		return nil, fmt.Errorf("conversion rate must be positive")
	}
	if strings.TrimSpace(opts.Container) == "" {
		return nil, fmt.Errorf("widget container required")
	}
	if strings.TrimSpace(opts.Currency) == "" {
		return nil, fmt.Errorf("payment currency required")
	}
	if opts.Notify == nil {
		opts.Notify = func(context.Context, Notice) {}
	}
	return &Controller{opts: opts, state: StateEmpty}, nil
}

// Convert turns a base-currency total into the payment currency, rounded to cents.
func Convert(total, rate decimal.Decimal) decimal.Decimal {
	return total.Mul(rate).Round(2)
}

// Sync reconciles the widget with the given base-currency total.
func (c *Controller) Sync(ctx context.Context, total decimal.Decimal) State {
	if c.closed {
		return c.state
	}
	c.total = total
	wasFailed := c.renderFailed
	c.renderFailed = false
	c.destroy(ctx)

	if total.Sign() <= 0 {
		c.transition(StateEmpty, decimal.Zero)
		return c.state
	}

	collaborator, ok := c.opts.Resolver.Resolve()
	if !ok || collaborator == nil {
		entering := c.state != StateUnavailable || wasFailed
		c.transition(StateUnavailable, decimal.Zero)
		if entering {
			c.opts.Notify(ctx, Notice{Level: NoticeFallback, Message: MessageFallback})
		}
		return c.state
	}

	amount := Convert(total, c.opts.Rate)
	c.generation++
	gen := c.generation
	instance, err := collaborator.CreateButton(ctx, ButtonSpec{
		Amount:      amount,
		Currency:    c.opts.Currency,
		Description: c.opts.Description,
		OnApprove:   func(ctx context.Context, a Approval) { c.approved(ctx, gen, a) },
		OnError:     func(ctx context.Context, err error) { c.failed(ctx, gen, err) },
	})
	if err == nil && instance != nil {
		err = instance.Render(ctx, c.opts.Container)
	}
	if err != nil || instance == nil {
		if instance != nil {
			instance.Destroy(ctx)
		}
		if err == nil {
			err = errors.New("payment collaborator returned no button")
		}
		c.logError(ctx, "payment widget render failed", err)
		c.renderFailed = true
		c.transition(StateUnavailable, decimal.Zero)
		c.opts.Notify(ctx, Notice{Level: NoticeError, Message: MessageError})
		return c.state
	}

	c.instance = instance
	c.transition(StateRendered, amount)
	return c.state
}

// Recheck retries a widget left Unavailable, for collaborators that load late.
// A collaborator that failed to render is not retried until the total changes.
func (c *Controller) Recheck(ctx context.Context) State {
	if c.state != StateUnavailable || c.renderFailed {
		return c.state
	}
	if _, ok := c.opts.Resolver.Resolve(); !ok {
		return c.state
	}
	return c.Sync(ctx, c.total)
}

// Capture forwards a browser approval to the live instance.
func (c *Controller) Capture(ctx context.Context, req CaptureRequest) error {
	if c.state != StateRendered || c.instance == nil {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "no payment widget is rendered").
			WithDetails(map[string]any{"state": c.state})
	}
	capturer, ok := c.instance.(Capturer)
	if !ok {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "payment widget does not support server capture")
	}
	if err := capturer.Capture(ctx, req); err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodePayment) {
			return err
		}
		return pkgerrors.Wrap(pkgerrors.CodePayment, err, "payment capture failed")
	}
	return nil
}

// Fail surfaces a collaborator error reported by the browser.
func (c *Controller) Fail(ctx context.Context, err error) {
	c.failed(ctx, c.generation, err)
}

// Close destroys any live instance. A closed controller ignores later syncs.
func (c *Controller) Close(ctx context.Context) {
	c.closed = true
	if c.instance == nil {
		return
	}
	c.destroy(ctx)
	c.transition(StateEmpty, decimal.Zero)
}

func (c *Controller) State() State {
	return c.state
}

func (c *Controller) View() View {
	view := View{
		State:       c.state,
		Amount:      c.amount,
		Currency:    c.opts.Currency,
		Description: c.opts.Description,
		Container:   c.opts.Container,
		LastPayment: c.lastPayment,
	}
	if c.state == StateUnavailable && !c.renderFailed {
		view.Fallback = MessageFallback
	}
	return view
}

// approved and failed ignore callbacks from instances that were already replaced.
func (c *Controller) approved(ctx context.Context, gen int, approval Approval) {
	if gen != c.generation {
		return
	}
	c.lastPayment = &approval
	c.opts.Notify(ctx, Notice{
		Level:     NoticeConfirmation,
		Message:   ApprovedMessage(approval.PayerGivenName),
		Reference: approval.PaymentID,
	})
}

func (c *Controller) failed(ctx context.Context, gen int, err error) {
	if gen != c.generation {
		return
	}
	c.logError(ctx, "payment collaborator error", err)
	c.opts.Notify(ctx, Notice{Level: NoticeError, Message: MessageError})
}

func (c *Controller) destroy(ctx context.Context) {
	if c.instance == nil {
		return
	}
	c.instance.Destroy(ctx)
	c.instance = nil
}

func (c *Controller) transition(to State, amount decimal.Decimal) {
	from := c.state
	c.state = to
	c.amount = amount
	if c.opts.Observer != nil {
		c.opts.Observer.WidgetTransition(string(from), string(to))
	}
}

func (c *Controller) logError(ctx context.Context, msg string, err error) {
	if c.opts.Logger == nil {
		return
	}
	c.opts.Logger.Error(c.opts.Logger.WithField(ctx, "widget_state", string(c.state)), msg, err)
}
