package submission

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/viylo-storefront/internal/cart"
	"github.com/angelmondragon/viylo-storefront/internal/catalog"
	"github.com/angelmondragon/viylo-storefront/internal/orders"
	pkgerrors "github.com/angelmondragon/viylo-storefront/pkg/errors"
	"github.com/angelmondragon/viylo-storefront/pkg/db/models"
	"github.com/angelmondragon/viylo-storefront/pkg/logger"
	"github.com/shopspring/decimal"
)

type stubNotifier struct {
	mu       sync.Mutex
	calls    []orders.Payload
	err      error
	block    chan struct{}
	entered  chan struct{}
	deadline bool
}

func (s *stubNotifier) Name() string { return "stub" }

func (s *stubNotifier) Send(ctx context.Context, payload orders.Payload) error {
	s.mu.Lock()
	s.calls = append(s.calls, payload)
	_, s.deadline = ctx.Deadline()
	s.mu.Unlock()
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.err
}

func (s *stubNotifier) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type stubRecipient struct {
	sent   []Result
	failed []error
}

func (r *stubRecipient) OrderSent(_ context.Context, result Result) { r.sent = append(r.sent, result) }
func (r *stubRecipient) OrderFailed(_ context.Context, err error)   { r.failed = append(r.failed, err) }

type stubArchive struct {
	records []orders.Payload
	err     error
}

func (a *stubArchive) Record(_ context.Context, _ string, payload orders.Payload) (*models.SentOrder, error) {
	if a.err != nil {
		return nil, a.err
	}
	a.records = append(a.records, payload)
	return &models.SentOrder{OrderID: payload.OrderID}, nil
}

type stubRecorder struct {
	mu      sync.Mutex
	results []string
}

func (r *stubRecorder) IncSubmission(result string) {
	r.mu.Lock()
	r.results = append(r.results, result)
	r.mu.Unlock()
}

func (r *stubRecorder) ObserveNotify(string, time.Duration) {}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func newCoordinator(t *testing.T, notifier *stubNotifier, archive orders.Archive, rec *stubRecorder) *Coordinator {
	t.Helper()
	opts := Options{
		Notifier:    notifier,
		Guard:       NewMemoryGuard(),
		Destination: "orders@viylo.example",
		Timeout:     time.Second,
		NewOrderID:  func() string { return "VY-000042" },
		Logger:      testLogger(),
	}
	if archive != nil {
		opts.Archive = archive
	}
	if rec != nil {
		opts.Metrics = rec
	}
	coord, err := NewCoordinator(opts)
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	return coord
}

func snapshotWith(t *testing.T, items map[string]int) cart.Snapshot {
	t.Helper()
	store, err := cart.NewStore(catalog.Default("JOD"), decimal.Zero)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	for id, qty := range items {
		if err := store.Add(context.Background(), id, qty); err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
	}
	return store.Snapshot()
}

func validCustomer() orders.Customer {
	return orders.Customer{Name: "Lina", Email: "lina@example.com"}
}

func TestNewCoordinatorRequiresCollaborators(t *testing.T) {
	t.Parallel()

	if _, err := NewCoordinator(Options{}); err == nil {
		t.Fatal("expected error without notifier")
	}
	if _, err := NewCoordinator(Options{Notifier: &stubNotifier{}, Guard: NewMemoryGuard(), Destination: "x", Logger: testLogger()}); err == nil {
		t.Fatal("expected error without timeout")
	}
}

func TestSubmitEmptyCartNeverCallsNotifier(t *testing.T) {
	t.Parallel()

	notifier := &stubNotifier{}
	rec := &stubRecorder{}
	rcpt := &stubRecipient{}
	coord := newCoordinator(t, notifier, nil, rec)

	_, err := coord.Submit(context.Background(), Request{SessionID: "s1", Customer: validCustomer()}, rcpt)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if pkgerrors.As(err).Message() != MessageEmptyCart {
		t.Fatalf("unexpected message %q", pkgerrors.As(err).Message())
	}
	if notifier.count() != 0 {
		t.Fatalf("notifier called %d times", notifier.count())
	}
	if len(rcpt.sent)+len(rcpt.failed) != 0 {
		t.Fatal("recipient must not be notified of rejected submissions")
	}
	if len(rec.results) != 1 || rec.results[0] != "rejected" {
		t.Fatalf("unexpected metrics %v", rec.results)
	}
}

func TestSubmitValidatesCustomer(t *testing.T) {
	t.Parallel()

	notifier := &stubNotifier{}
	coord := newCoordinator(t, notifier, nil, nil)

	_, err := coord.Submit(context.Background(), Request{
		SessionID: "s1",
		Snapshot:  snapshotWith(t, map[string]int{"logo": 1}),
		Customer:  orders.Customer{Name: "  ", Email: "not-an-email"},
	}, nil)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	details := typed.Details().(map[string]string)
	if details["name"] != "is required" || details["email"] != "must be a valid email" {
		t.Fatalf("unexpected details %v", details)
	}
	if notifier.count() != 0 {
		t.Fatal("notifier must not be called for invalid customer")
	}
}

func TestSubmitSuccessSendsPayloadAndArchives(t *testing.T) {
	t.Parallel()

	notifier := &stubNotifier{}
	archive := &stubArchive{}
	rcpt := &stubRecipient{}
	coord := newCoordinator(t, notifier, archive, nil)

	result, err := coord.Submit(context.Background(), Request{
		SessionID: "s1",
		Snapshot:  snapshotWith(t, map[string]int{"web_dev": 2}),
		Customer:  validCustomer(),
	}, rcpt)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.OrderID != "VY-000042" || !result.Archived {
		t.Fatalf("unexpected result %+v", result)
	}
	if notifier.count() != 1 || !notifier.deadline {
		t.Fatalf("expected one notifier call with deadline, got %d deadline=%v", notifier.count(), notifier.deadline)
	}
	payload := notifier.calls[0]
	if payload.OrderLines != "Web Development x2 — 800.00 JOD" {
		t.Fatalf("unexpected lines %q", payload.OrderLines)
	}
	if payload.Customer.Company != orders.BlankField || payload.Destination != "orders@viylo.example" {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if len(archive.records) != 1 {
		t.Fatalf("expected archived order")
	}
	if len(rcpt.sent) != 1 || len(rcpt.failed) != 0 {
		t.Fatalf("unexpected recipient calls %+v", rcpt)
	}
}

func TestSubmitArchiveFailureStillSucceeds(t *testing.T) {
	t.Parallel()

	rcpt := &stubRecipient{}
	coord := newCoordinator(t, &stubNotifier{}, &stubArchive{err: errors.New("db down")}, nil)

	result, err := coord.Submit(context.Background(), Request{
		SessionID: "s1",
		Snapshot:  snapshotWith(t, map[string]int{"seo": 1}),
		Customer:  validCustomer(),
	}, rcpt)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.Archived {
		t.Fatal("expected archived=false")
	}
	if len(rcpt.sent) != 1 {
		t.Fatal("expected OrderSent")
	}
}

func TestSubmitNotifierFailureReportsSubmissionFailed(t *testing.T) {
	t.Parallel()

	notifier := &stubNotifier{err: errors.New("smtp 500")}
	rec := &stubRecorder{}
	rcpt := &stubRecipient{}
	coord := newCoordinator(t, notifier, nil, rec)

	_, err := coord.Submit(context.Background(), Request{
		SessionID: "s1",
		Snapshot:  snapshotWith(t, map[string]int{"logo": 1}),
		Customer:  validCustomer(),
	}, rcpt)
	if !pkgerrors.IsCode(err, pkgerrors.CodeSubmissionFailed) {
		t.Fatalf("expected submission failure, got %v", err)
	}
	if !strings.HasPrefix(pkgerrors.As(err).Message(), "Failed to send order") {
		t.Fatalf("unexpected message %q", pkgerrors.As(err).Message())
	}
	if len(rcpt.failed) != 1 || len(rcpt.sent) != 0 {
		t.Fatalf("unexpected recipient calls %+v", rcpt)
	}
	if len(rec.results) != 1 || rec.results[0] != "failed" {
		t.Fatalf("unexpected metrics %v", rec.results)
	}

	// the guard is released so a manual retry can go through
	notifier.err = nil
	if _, err := coord.Submit(context.Background(), Request{
		SessionID: "s1",
		Snapshot:  snapshotWith(t, map[string]int{"logo": 1}),
		Customer:  validCustomer(),
	}, rcpt); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

func TestSubmitNotifierTimeout(t *testing.T) {
	t.Parallel()

	notifier := &stubNotifier{block: make(chan struct{})}
	coord, err := NewCoordinator(Options{
		Notifier:    notifier,
		Guard:       NewMemoryGuard(),
		Destination: "orders@viylo.example",
		Timeout:     20 * time.Millisecond,
		Logger:      testLogger(),
	})
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}

	_, err = coord.Submit(context.Background(), Request{
		SessionID: "s1",
		Snapshot:  snapshotWith(t, map[string]int{"logo": 1}),
		Customer:  validCustomer(),
	}, nil)
	if !pkgerrors.IsCode(err, pkgerrors.CodeSubmissionFailed) {
		t.Fatalf("expected submission failure, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded in chain, got %v", err)
	}
}

func TestSubmitRejectsConcurrentSubmission(t *testing.T) {
	t.Parallel()

	notifier := &stubNotifier{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	coord := newCoordinator(t, notifier, nil, nil)
	req := Request{
		SessionID: "s1",
		Snapshot:  snapshotWith(t, map[string]int{"logo": 1}),
		Customer:  validCustomer(),
	}

	done := make(chan error, 1)
	go func() {
		_, err := coord.Submit(context.Background(), req, nil)
		done <- err
	}()
	<-notifier.entered

	_, err := coord.Submit(context.Background(), req, nil)
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	other := req
	other.SessionID = "s2"
	notifier.entered = nil
	close(notifier.block)
	if _, err := coord.Submit(context.Background(), other, nil); err != nil {
		t.Fatalf("other session: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("first submission: %v", err)
	}
}
