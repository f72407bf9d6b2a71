package storefront

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/angelmondragon/viylo-storefront/internal/cart"
	"github.com/angelmondragon/viylo-storefront/internal/checkout"
	"github.com/angelmondragon/viylo-storefront/internal/orders"
	"github.com/angelmondragon/viylo-storefront/internal/submission"
	pkgerrors "github.com/angelmondragon/viylo-storefront/pkg/errors"
	"github.com/angelmondragon/viylo-storefront/pkg/logger"
	"github.com/angelmondragon/viylo-storefront/pkg/metrics"
	"github.com/shopspring/decimal"
)

const MessageOrderSent = "Thank you! Your order has been sent. We will contact you shortly."

type submitter interface {
	Submit(ctx context.Context, req submission.Request, rcpt submission.Recipient) (*submission.Result, error)
}

// Confirmation is the modal shown after an order was sent.
type Confirmation struct {
	OrderID  string          `json:"order_id"`
	Total    decimal.Decimal `json:"total"`
	Currency string          `json:"currency"`
	Message  string          `json:"message"`
}

// EntryView is one cart row.
type EntryView struct {
	ItemID    string          `json:"item_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// CartView is the cart panel without side effects.
type CartView struct {
	Entries    []EntryView    `json:"entries"`
	Totals     cart.Totals    `json:"totals"`
	Estimate   string         `json:"estimate,omitempty"`
	Selections map[string]int `json:"selections"`
}

// View is the full storefront state of a session.
type View struct {
	SessionID    string            `json:"session_id"`
	Cart         CartView          `json:"cart"`
	Widget       checkout.View     `json:"widget"`
	Form         orders.Customer   `json:"form"`
	Confirmation *Confirmation     `json:"confirmation,omitempty"`
	Notices      []checkout.Notice `json:"notices"`
}

// EstimateNote describes the converted charge, or "" for an empty cart.
func EstimateNote(total, rate decimal.Decimal, paymentCurrency, baseCurrency string) string {
	if total.Sign() <= 0 {
		return ""
	}
	amount := checkout.Convert(total, rate)
	return fmt.Sprintf("Estimated charge: ~%s %s (converted from %s)", amount.StringFixed(2), paymentCurrency, baseCurrency)
}

// Session is one shopper's cart, widget and order form.
// Every operation holds the session lock except the notifier call in SubmitOrder.
type Session struct {
	id     string
	mu     sync.Mutex
	store  *cart.Store
	widget *checkout.Controller
	submit submitter
	cfg    sessionConfig
	logg   *logger.Logger

	notices      []checkout.Notice
	draft        orders.Customer
	confirmation *Confirmation
	lastSeen     time.Time
	closed       atomic.Bool
}

type sessionConfig struct {
	rate            decimal.Decimal
	paymentCurrency string
	captures        captureCounter
	now             func() time.Time
}

func errSessionClosed(id string) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "session expired, please retry").
		WithDetails(map[string]any{"session_id": id})
}

type captureCounter interface {
	IncCapture(result string)
}

func newSession(ctx context.Context, id string, cfg Config) (*Session, error) {
	store, err := cart.NewStore(cfg.Catalog, cfg.TaxRate)
	if err != nil {
		return nil, err
	}
	s := &Session{
		id:     id,
		store:  store,
		submit: cfg.Submitter,
		logg:   cfg.Logger,
		cfg: sessionConfig{
			rate:            cfg.Rate,
			paymentCurrency: cfg.PaymentCurrency,
			captures:        cfg.Metrics,
			now:             cfg.Now,
		},
		lastSeen: cfg.Now(),
	}
	opts := checkout.Options{
		Container:   cfg.WidgetContainer,
		Currency:    cfg.PaymentCurrency,
		Description: cfg.PaymentDescription,
		Rate:        cfg.Rate,
		Resolver:    cfg.Resolver,
		Notify:      s.pushNotice,
		Logger:      cfg.Logger,
	}
	if cfg.Metrics != nil {
		opts.Observer = cfg.Metrics
	}
	widget, err := checkout.NewController(opts)
	if err != nil {
		return nil, err
	}
	s.widget = widget
	store.Subscribe(func(ctx context.Context, totals cart.Totals) {
		s.widget.Sync(ctx, totals.Total)
	})
	return s, nil
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// SetSelection sets the pending quantity for an item and returns the clamped value.
func (s *Session) SetSelection(itemID string, quantity int) (int, error) {
	s.lock()
	defer s.mu.Unlock()
	if err := s.open(); err != nil {
		return 0, err
	}
	if err := s.knownItem(itemID); err != nil {
		return 0, err
	}
	return s.store.SetQuantity(itemID, quantity), nil
}

func (s *Session) BumpSelection(itemID string, delta int) (int, error) {
	s.lock()
	defer s.mu.Unlock()
	if err := s.open(); err != nil {
		return 0, err
	}
	if err := s.knownItem(itemID); err != nil {
		return 0, err
	}
	return s.store.Bump(itemID, delta), nil
}

// AddSelection moves the pending quantity into the cart.
func (s *Session) AddSelection(ctx context.Context, itemID string) (int, error) {
	s.lock()
	defer s.mu.Unlock()
	if err := s.open(); err != nil {
		return 0, err
	}
	if err := s.knownItem(itemID); err != nil {
		return 0, err
	}
	return s.store.AddSelection(s.ctx(ctx), itemID)
}

func (s *Session) AddItem(ctx context.Context, itemID string, quantity int) error {
	s.lock()
	defer s.mu.Unlock()
	if err := s.open(); err != nil {
		return err
	}
	if err := s.knownItem(itemID); err != nil {
		return err
	}
	return s.store.Add(s.ctx(ctx), itemID, quantity)
}

func (s *Session) RemoveItem(ctx context.Context, itemID string) error {
	s.lock()
	defer s.mu.Unlock()
	if err := s.open(); err != nil {
		return err
	}
	if err := s.knownItem(itemID); err != nil {
		return err
	}
	s.store.Remove(s.ctx(ctx), itemID)
	return nil
}

func (s *Session) ClearCart(ctx context.Context) {
	s.lock()
	defer s.mu.Unlock()
	s.store.Clear(s.ctx(ctx))
}

func (s *Session) Cart() CartView {
	s.lock()
	defer s.mu.Unlock()
	return s.cartView()
}

// Widget rechecks a late-loading payment collaborator and returns the widget view.
func (s *Session) Widget(ctx context.Context) checkout.View {
	s.lock()
	defer s.mu.Unlock()
	s.widget.Recheck(s.ctx(ctx))
	return s.widget.View()
}

// View returns the whole storefront and drains pending notices.
func (s *Session) View(ctx context.Context) View {
	s.lock()
	defer s.mu.Unlock()
	s.widget.Recheck(s.ctx(ctx))
	return View{
		SessionID:    s.id,
		Cart:         s.cartView(),
		Widget:       s.widget.View(),
		Form:         s.draft,
		Confirmation: s.confirmation,
		Notices:      s.drain(),
	}
}

// SubmitOrder sends the current cart. The cart stays editable while the
// notifier runs; the snapshot taken here is the order of record.
func (s *Session) SubmitOrder(ctx context.Context, customer orders.Customer) (*submission.Result, error) {
	s.lock()
	if err := s.open(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	snapshot := s.store.Snapshot()
	s.draft = customer
	s.mu.Unlock()

	return s.submit.Submit(s.ctx(ctx), submission.Request{
		SessionID: s.id,
		Snapshot:  snapshot,
		Customer:  customer,
	}, recipient{s})
}

// CapturePayment completes a browser-side approval through the live widget.
// A capture never touches the cart.
func (s *Session) CapturePayment(ctx context.Context, req checkout.CaptureRequest) (*checkout.Approval, error) {
	s.lock()
	defer s.mu.Unlock()
	if err := s.open(); err != nil {
		return nil, err
	}
	err := s.widget.Capture(s.ctx(ctx), req)
	if err != nil {
		s.countCapture(metrics.ResultFailed)
		return nil, err
	}
	s.countCapture(metrics.ResultSent)
	return s.widget.View().LastPayment, nil
}

// ReportPaymentError surfaces a collaborator error raised in the browser.
func (s *Session) ReportPaymentError(ctx context.Context, message string) {
	s.lock()
	defer s.mu.Unlock()
	msg := strings.TrimSpace(message)
	if msg == "" {
		msg = "payment collaborator error"
	}
	s.widget.Fail(s.ctx(ctx), errors.New(msg))
}

func (s *Session) Confirmation() *Confirmation {
	s.lock()
	defer s.mu.Unlock()
	return s.confirmation
}

func (s *Session) DismissConfirmation() {
	s.lock()
	defer s.mu.Unlock()
	s.confirmation = nil
}

func (s *Session) DrainNotices() []checkout.Notice {
	s.lock()
	defer s.mu.Unlock()
	return s.drain()
}

// Close destroys the live widget instance. A closed session rejects changes
// and never renders again.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked(ctx)
}

func (s *Session) Closed() bool {
	return s.closed.Load()
}

// closeIfIdle closes the session when it has not been used since cutoff.
// A session busy with a request is not idle.
func (s *Session) closeIfIdle(ctx context.Context, cutoff time.Time) bool {
	if !s.mu.TryLock() {
		return false
	}
	defer s.mu.Unlock()
	if s.closed.Load() {
		return true
	}
	if !s.lastSeen.Before(cutoff) {
		return false
	}
	s.closeLocked(ctx)
	return true
}

func (s *Session) closeLocked(ctx context.Context) {
	s.closed.Store(true)
	s.widget.Close(s.ctx(ctx))
}

func (s *Session) open() error {
	if s.closed.Load() {
		return errSessionClosed(s.id)
	}
	return nil
}

func (s *Session) orderSent(ctx context.Context, result submission.Result) {
	s.lock()
	defer s.mu.Unlock()
	s.draft = orders.Customer{}
	s.store.Clear(ctx)
	s.confirmation = &Confirmation{
		OrderID:  result.OrderID,
		Total:    result.Payload.Total,
		Currency: result.Payload.Currency,
		Message:  MessageOrderSent,
	}
	s.notices = append(s.notices, checkout.Notice{
		Level:     checkout.NoticeConfirmation,
		Message:   MessageOrderSent,
		Reference: result.OrderID,
	})
}

func (s *Session) orderFailed(_ context.Context, err error) {
	s.lock()
	defer s.mu.Unlock()
	msg := submission.MessageFailed
	if typed := pkgerrors.As(err); typed != nil {
		msg = typed.Message()
	}
	s.notices = append(s.notices, checkout.Notice{Level: checkout.NoticeError, Message: msg})
}

func (s *Session) cartView() CartView {
	entries := s.store.Entries()
	rows := make([]EntryView, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, EntryView{
			ItemID:    e.Item.ID,
			Name:      e.Item.Name,
			Quantity:  e.Quantity,
			UnitPrice: e.Item.UnitPrice,
			LineTotal: e.LineTotal(),
		})
	}
	totals := s.store.Totals()
	return CartView{
		Entries:    rows,
		Totals:     totals,
		Estimate:   EstimateNote(totals.Total, s.cfg.rate, s.cfg.paymentCurrency, totals.Currency),
		Selections: s.store.Selections(),
	}
}

func (s *Session) knownItem(itemID string) error {
	if s.store.Catalog().Has(itemID) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeNotFound, "service not found").
		WithDetails(map[string]any{"item_id": itemID})
}

// pushNotice runs under the session lock via widget callbacks.
func (s *Session) pushNotice(_ context.Context, notice checkout.Notice) {
	s.notices = append(s.notices, notice)
}

func (s *Session) drain() []checkout.Notice {
	out := s.notices
	s.notices = nil
	if out == nil {
		out = []checkout.Notice{}
	}
	return out
}

func (s *Session) countCapture(result string) {
	if s.cfg.captures != nil {
		s.cfg.captures.IncCapture(result)
	}
}

func (s *Session) lock() {
	s.mu.Lock()
	s.lastSeen = s.cfg.now()
}

func (s *Session) ctx(ctx context.Context) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithSessionID(ctx, s.id)
}

// recipient keeps the submission callbacks off the Session API.
type recipient struct {
	s *Session
}

func (r recipient) OrderSent(ctx context.Context, result submission.Result) {
	r.s.orderSent(ctx, result)
}

func (r recipient) OrderFailed(ctx context.Context, err error) {
	r.s.orderFailed(ctx, err)
}
