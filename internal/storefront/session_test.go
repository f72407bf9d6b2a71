package storefront

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/viylo-storefront/internal/catalog"
	"github.com/angelmondragon/viylo-storefront/internal/checkout"
	"github.com/angelmondragon/viylo-storefront/internal/orders"
	"github.com/angelmondragon/viylo-storefront/internal/submission"
	pkgerrors "github.com/angelmondragon/viylo-storefront/pkg/errors"
	"github.com/angelmondragon/viylo-storefront/pkg/logger"
	"github.com/shopspring/decimal"
)

type fakeButton struct {
	spec      checkout.ButtonSpec
	destroyed bool
}

func (b *fakeButton) Render(context.Context, string) error { return nil }
func (b *fakeButton) Destroy(context.Context)              { b.destroyed = true }

func (b *fakeButton) Capture(ctx context.Context, req checkout.CaptureRequest) error {
	if req.SourceID == "declined" {
		err := errors.New("card declined")
		b.spec.OnError(ctx, err)
		return err
	}
	b.spec.OnApprove(ctx, checkout.Approval{
		PaymentID:      "pay-123",
		Status:         "COMPLETED",
		PayerGivenName: req.PayerGivenName,
		Amount:         b.spec.Amount,
		Currency:       b.spec.Currency,
	})
	return nil
}

type fakeCollaborator struct {
	mu      sync.Mutex
	buttons []*fakeButton
}

func (f *fakeCollaborator) CreateButton(_ context.Context, spec checkout.ButtonSpec) (checkout.ButtonInstance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := &fakeButton{spec: spec}
	f.buttons = append(f.buttons, b)
	return b, nil
}

func (f *fakeCollaborator) live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.buttons {
		if !b.destroyed {
			n++
		}
	}
	return n
}

func (f *fakeCollaborator) created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.buttons)
}

type toggleResolver struct {
	mu     sync.Mutex
	collab *fakeCollaborator
	loaded bool
}

func (r *toggleResolver) Resolve() (checkout.Collaborator, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.loaded {
		return nil, false
	}
	return r.collab, true
}

func (r *toggleResolver) load() {
	r.mu.Lock()
	r.loaded = true
	r.mu.Unlock()
}

type stubNotifier struct {
	mu      sync.Mutex
	sent    []orders.Payload
	err     error
	entered chan struct{}
	release chan struct{}
}

func (n *stubNotifier) Name() string { return "stub" }

func (n *stubNotifier) Send(ctx context.Context, payload orders.Payload) error {
	n.mu.Lock()
	n.sent = append(n.sent, payload)
	n.mu.Unlock()
	if n.entered != nil {
		n.entered <- struct{}{}
		<-n.release
	}
	return n.err
}

func (n *stubNotifier) calls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type fixture struct {
	manager  *Manager
	resolver *toggleResolver
	collab   *fakeCollaborator
	notifier *stubNotifier
	clock    *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newFixture(t *testing.T, loaded bool) *fixture {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	notifier := &stubNotifier{}
	coord, err := submission.NewCoordinator(submission.Options{
		Notifier:    notifier,
		Guard:       submission.NewMemoryGuard(),
		Destination: "orders@viylo.example",
		Timeout:     time.Second,
		Logger:      logg,
	})
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	collab := &fakeCollaborator{}
	resolver := &toggleResolver{collab: collab, loaded: loaded}
	clock := &fakeClock{now: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
	manager, err := NewManager(Config{
		Catalog:            catalog.Default("JOD"),
		TaxRate:            decimal.Zero,
		Rate:               decimal.RequireFromString("1.41"),
		PaymentCurrency:    "USD",
		PaymentDescription: "Viylo services",
		WidgetContainer:    "payment-button-container",
		Resolver:           resolver,
		Submitter:          coord,
		IdleTTL:            time.Hour,
		Logger:             logg,
		Now:                clock.Now,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return &fixture{manager: manager, resolver: resolver, collab: collab, notifier: notifier, clock: clock}
}

func (f *fixture) session(t *testing.T) *Session {
	t.Helper()
	s, err := f.manager.Session(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	return s
}

func customer() orders.Customer {
	return orders.Customer{Name: "Lina", Email: "lina@example.com", Phone: "+962700000000"}
}

func TestScenarioTotalsAndWidgetAmount(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, true)
	s := f.session(t)

	if err := s.AddItem(ctx, "web_dev", 2); err != nil {
		t.Fatalf("add web_dev: %v", err)
	}
	if err := s.AddItem(ctx, "logo", 1); err != nil {
		t.Fatalf("add logo: %v", err)
	}

	view := s.View(ctx)
	if !view.Cart.Totals.Total.Equal(decimal.NewFromInt(900)) {
		t.Fatalf("expected total 900, got %s", view.Cart.Totals.Total)
	}
	if view.Widget.State != checkout.StateRendered || !view.Widget.Amount.Equal(decimal.RequireFromString("1269")) {
		t.Fatalf("unexpected widget %+v", view.Widget)
	}
	if view.Cart.Estimate != "Estimated charge: ~1269.00 USD (converted from JOD)" {
		t.Fatalf("unexpected estimate %q", view.Cart.Estimate)
	}
	if f.collab.live() != 1 {
		t.Fatalf("expected one live button, got %d", f.collab.live())
	}
}

func TestUnknownItemIsNotFound(t *testing.T) {
	t.Parallel()

	s := newFixture(t, true).session(t)
	if err := s.AddItem(context.Background(), "nope", 1); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := s.SetSelection("nope", 1); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSelectionFlow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newFixture(t, true).session(t)

	if _, err := s.AddSelection(ctx, "seo"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for zero selection, got %v", err)
	}
	if got, _ := s.BumpSelection("seo", -1); got != 0 {
		t.Fatalf("expected clamp to 0, got %d", got)
	}
	if got, _ := s.SetSelection("seo", 3); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
	if got, _ := s.BumpSelection("seo", 1); got != 4 {
		t.Fatalf("expected 4, got %d", got)
	}
	if _, err := s.AddSelection(ctx, "seo"); err != nil {
		t.Fatalf("add selection: %v", err)
	}
	cartView := s.Cart()
	if cartView.Selections["seo"] != 0 {
		t.Fatalf("expected counter reset, got %d", cartView.Selections["seo"])
	}
	if len(cartView.Entries) != 1 || cartView.Entries[0].Quantity != 4 {
		t.Fatalf("unexpected entries %+v", cartView.Entries)
	}
}

func TestCollaboratorMissingShowsFallback(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, false)
	s := f.session(t)

	if err := s.AddItem(ctx, "web_dev", 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.AddItem(ctx, "logo", 1); err != nil {
		t.Fatalf("add: %v", err)
	}

	view := s.View(ctx)
	if !view.Cart.Totals.Total.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected total 500, got %s", view.Cart.Totals.Total)
	}
	if view.Widget.State != checkout.StateUnavailable || view.Widget.Fallback != checkout.MessageFallback {
		t.Fatalf("unexpected widget %+v", view.Widget)
	}
	if len(view.Notices) != 1 || view.Notices[0].Level != checkout.NoticeFallback {
		t.Fatalf("expected single fallback notice, got %+v", view.Notices)
	}
	if len(f.collab.buttons) != 0 {
		t.Fatal("no button may be created without a collaborator")
	}

	f.resolver.load()
	if w := s.Widget(ctx); w.State != checkout.StateRendered {
		t.Fatalf("expected recheck to render, got %s", w.State)
	}
	if len(s.DrainNotices()) != 0 {
		t.Fatal("notices were already drained")
	}
}

func TestSubmitOrderSuccessClearsCartAndWidget(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, true)
	s := f.session(t)
	if err := s.AddItem(ctx, "branding", 1); err != nil {
		t.Fatalf("add: %v", err)
	}

	result, err := s.SubmitOrder(ctx, customer())
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if f.notifier.calls() != 1 {
		t.Fatalf("expected one notifier call, got %d", f.notifier.calls())
	}

	view := s.View(ctx)
	if len(view.Cart.Entries) != 0 || view.Widget.State != checkout.StateEmpty {
		t.Fatalf("expected empty cart and widget, got %+v", view)
	}
	if f.collab.live() != 0 {
		t.Fatal("widget must be destroyed after clearing the cart")
	}
	if view.Confirmation == nil || view.Confirmation.OrderID != result.OrderID {
		t.Fatalf("unexpected confirmation %+v", view.Confirmation)
	}
	if view.Form != (orders.Customer{}) {
		t.Fatalf("expected form reset, got %+v", view.Form)
	}

	s.DismissConfirmation()
	if s.View(ctx).Confirmation != nil {
		t.Fatal("expected confirmation dismissed")
	}
}

func TestSubmitOrderEmptyCart(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	_, err := f.session(t).SubmitOrder(context.Background(), customer())
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if f.notifier.calls() != 0 {
		t.Fatal("notifier must not be called for an empty cart")
	}
}

func TestSubmitOrderFailureKeepsCartAndForm(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, true)
	f.notifier.err = errors.New("emailjs down")
	s := f.session(t)
	if err := s.AddItem(ctx, "smm", 2); err != nil {
		t.Fatalf("add: %v", err)
	}

	_, err := s.SubmitOrder(ctx, customer())
	if !pkgerrors.IsCode(err, pkgerrors.CodeSubmissionFailed) {
		t.Fatalf("expected submission failure, got %v", err)
	}
	view := s.View(ctx)
	if len(view.Cart.Entries) != 1 || view.Form.Name != "Lina" {
		t.Fatalf("cart and form must survive failure, got %+v", view)
	}
	if view.Confirmation != nil {
		t.Fatal("no confirmation on failure")
	}
	last := view.Notices[len(view.Notices)-1]
	if last.Level != checkout.NoticeError || last.Message != submission.MessageFailed {
		t.Fatalf("unexpected notice %+v", last)
	}
}

func TestCartStaysEditableDuringSubmission(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, true)
	f.notifier.entered = make(chan struct{})
	f.notifier.release = make(chan struct{})
	s := f.session(t)
	if err := s.AddItem(ctx, "logo", 1); err != nil {
		t.Fatalf("add: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.SubmitOrder(ctx, customer())
		done <- err
	}()
	<-f.notifier.entered

	if err := s.AddItem(ctx, "seo", 1); err != nil {
		t.Fatalf("edit during submission: %v", err)
	}
	if _, err := s.SubmitOrder(ctx, customer()); !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict for concurrent submit, got %v", err)
	}
	close(f.notifier.release)
	if err := <-done; err != nil {
		t.Fatalf("submission: %v", err)
	}

	f.notifier.mu.Lock()
	lines := f.notifier.sent[0].OrderLines
	f.notifier.mu.Unlock()
	if lines != "Logo Design x1 — 100.00 JOD" {
		t.Fatalf("snapshot of record must exclude later edits, got %q", lines)
	}
}

func TestCapturePaymentDoesNotTouchCart(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, true)
	s := f.session(t)

	if _, err := s.CapturePayment(ctx, checkout.CaptureRequest{SourceID: "cnon"}); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict without widget, got %v", err)
	}

	if err := s.AddItem(ctx, "video_edit", 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	approval, err := s.CapturePayment(ctx, checkout.CaptureRequest{SourceID: "cnon", PayerGivenName: "Omar"})
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if approval == nil || approval.PaymentID != "pay-123" {
		t.Fatalf("unexpected approval %+v", approval)
	}

	view := s.View(ctx)
	if len(view.Cart.Entries) != 1 {
		t.Fatal("capture must not clear the cart")
	}
	found := false
	for _, n := range view.Notices {
		if n.Level == checkout.NoticeConfirmation && n.Message == "Payment completed by Omar. Thank you!" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected approval notice, got %+v", view.Notices)
	}
}

func TestReportPaymentErrorAddsNotice(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newFixture(t, true).session(t)
	if err := s.AddItem(ctx, "logo", 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	s.ReportPaymentError(ctx, "popup closed")

	notices := s.DrainNotices()
	if len(notices) != 1 || notices[0].Message != checkout.MessageError {
		t.Fatalf("unexpected notices %+v", notices)
	}
	if len(s.Cart().Entries) != 1 {
		t.Fatal("payment error must not touch the cart")
	}
}
