package submission

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/viylo-storefront/internal/cart"
	"github.com/angelmondragon/viylo-storefront/internal/notifications"
	"github.com/angelmondragon/viylo-storefront/internal/orders"
	pkgerrors "github.com/angelmondragon/viylo-storefront/pkg/errors"
	"github.com/angelmondragon/viylo-storefront/pkg/logger"
	"github.com/angelmondragon/viylo-storefront/pkg/metrics"
	"github.com/angelmondragon/viylo-storefront/pkg/validation"
)

const (
	MessageEmptyCart = "Add at least 1 service to the cart before ordering."
	MessageFailed    = "Failed to send order. Please try again or contact us directly."
)

// Request is one order submission. Snapshot is the cart of record at invocation.
type Request struct {
	SessionID string
	Snapshot  cart.Snapshot
	Customer  orders.Customer
}

// Result describes an order the notifier accepted.
type Result struct {
	OrderID  string         `json:"order_id"`
	Payload  orders.Payload `json:"payload"`
	Archived bool           `json:"archived"`
}

// Recipient receives the outcome of a submission.
type Recipient interface {
	OrderSent(ctx context.Context, result Result)
	OrderFailed(ctx context.Context, err error)
}

type recorder interface {
	IncSubmission(result string)
	ObserveNotify(driver string, duration time.Duration)
}

// Options wires a Coordinator. Archive, Metrics and NewOrderID are optional.
type Options struct {
	Notifier    notifications.Notifier
	Guard       PendingGuard
	Archive     orders.Archive
	Destination string
	Timeout     time.Duration
	NewOrderID  func() string
	Metrics     recorder
	Logger      *logger.Logger
}

// Coordinator validates, dispatches and reports order submissions.
type Coordinator struct {
	opts Options
}

func NewCoordinator(opts Options) (*Coordinator, error) {
	if opts.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if opts.Guard == nil {
		return nil, fmt.Errorf("pending guard required")
	}
	if strings.TrimSpace(opts.Destination) == "" {
		return nil, fmt.Errorf("order destination required")
	}
	if opts.Timeout <= 0 {
		return nil, fmt.Errorf("notify timeout must be positive")
	}
	if opts.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if opts.NewOrderID == nil {
		opts.NewOrderID = orders.GenerateOrderID
	}
	return &Coordinator{opts: opts}, nil
}

// Submit sends the order for req. Rejected requests never reach the notifier
// and leave the recipient untouched; notifier outcomes are reported to rcpt.
func (c *Coordinator) Submit(ctx context.Context, req Request, rcpt Recipient) (*Result, error) {
	ctx = c.opts.Logger.WithSessionID(ctx, req.SessionID)

	if req.Snapshot.Empty() {
		c.reject()
		return nil, pkgerrors.New(pkgerrors.CodeValidation, MessageEmptyCart)
	}

	customer := req.Customer.Normalize()
	if err := validation.Struct(customer); err != nil {
		c.reject()
		return nil, err
	}

	release, err := c.opts.Guard.Acquire(ctx, req.SessionID)
	if err != nil {
		c.reject()
		return nil, err
	}
	defer release(ctx)

	payload := orders.BuildPayload(c.opts.NewOrderID(), req.Snapshot, customer, c.opts.Destination)
	ctx = c.opts.Logger.WithOrderID(ctx, payload.OrderID)

	if err := c.send(ctx, payload); err != nil {
		c.opts.Logger.Error(ctx, "order notification failed", err)
		c.count(metrics.ResultFailed)
		failure := pkgerrors.Wrap(pkgerrors.CodeSubmissionFailed, err, MessageFailed)
		if rcpt != nil {
			rcpt.OrderFailed(ctx, failure)
		}
		return nil, failure
	}

	result := Result{OrderID: payload.OrderID, Payload: payload}
	if c.opts.Archive != nil {
		if _, err := c.opts.Archive.Record(context.WithoutCancel(ctx), req.SessionID, payload); err != nil {
			c.opts.Logger.Warn(c.opts.Logger.WithField(ctx, "error", err.Error()), "order archive failed")
		} else {
			result.Archived = true
		}
	}

	c.count(metrics.ResultSent)
	c.opts.Logger.Info(c.opts.Logger.WithField(ctx, "total", payload.Total.StringFixed(2)), "order sent")
	if rcpt != nil {
		rcpt.OrderSent(ctx, result)
	}
	return &result, nil
}

func (c *Coordinator) send(ctx context.Context, payload orders.Payload) error {
	sendCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	start := time.Now()
	err := c.opts.Notifier.Send(sendCtx, payload)
	if c.opts.Metrics != nil {
		c.opts.Metrics.ObserveNotify(c.opts.Notifier.Name(), time.Since(start))
	}
	return err
}

func (c *Coordinator) reject() {
	c.count(metrics.ResultRejected)
}

func (c *Coordinator) count(result string) {
	if c.opts.Metrics != nil {
		c.opts.Metrics.IncSubmission(result)
	}
}
