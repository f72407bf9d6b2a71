package storefront

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/viylo-storefront/internal/catalog"
	"github.com/angelmondragon/viylo-storefront/internal/checkout"
	"github.com/angelmondragon/viylo-storefront/pkg/logger"
	"github.com/shopspring/decimal"
)

type observer interface {
	WidgetTransition(from, to string)
	IncCapture(result string)
	SetSessions(n int)
}

// Config holds what every session shares.
type Config struct {
	Catalog            *catalog.Catalog
	TaxRate            decimal.Decimal
	Rate               decimal.Decimal
	PaymentCurrency    string
	PaymentDescription string
	WidgetContainer    string
	Resolver           checkout.Resolver
	Submitter          submitter
	IdleTTL            time.Duration
	Metrics            observer
	Logger             *logger.Logger
	Now                func() time.Time
}

// Manager owns the in-memory sessions. It is safe for concurrent use.
type Manager struct {
	cfg      Config
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(cfg Config) (*Manager, error) {
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if cfg.Resolver == nil {
		return nil, fmt.Errorf("payment resolver required")
	}
	if cfg.Submitter == nil {
		return nil, fmt.Errorf("submitter required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cfg.IdleTTL <= 0 {
		return nil, fmt.Errorf("session idle ttl must be positive")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{cfg: cfg, sessions: map[string]*Session{}}, nil
}

// Get returns an existing session.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.Closed() {
		return nil, false
	}
	return s, true
}

// Session returns the session with id, creating it on first use.
func (m *Manager) Session(ctx context.Context, id string) (*Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("session id required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok && !s.Closed() {
		return s, nil
	}
	s, err := newSession(ctx, id, m.cfg)
	if err != nil {
		return nil, err
	}
	m.sessions[id] = s
	m.reportSize()
	m.cfg.Logger.Debug(m.cfg.Logger.WithSessionID(ctx, id), "storefront session created")
	return s, nil
}

// Sweep closes sessions idle for longer than the configured TTL and returns how many were evicted.
// Session locks are never taken while the manager lock is held.
func (m *Manager) Sweep(ctx context.Context) int {
	cutoff := m.cfg.Now().Add(-m.cfg.IdleTTL)

	m.mu.Lock()
	candidates := make(map[string]*Session, len(m.sessions))
	for id, s := range m.sessions {
		candidates[id] = s
	}
	m.mu.Unlock()

	evicted := map[string]*Session{}
	for id, s := range candidates {
		if s.closeIfIdle(ctx, cutoff) {
			evicted[id] = s
		}
	}
	if len(evicted) == 0 {
		return 0
	}

	m.mu.Lock()
	for id, s := range evicted {
		if m.sessions[id] == s {
			delete(m.sessions, id)
		}
	}
	m.reportSize()
	m.mu.Unlock()

	m.cfg.Logger.Info(m.cfg.Logger.WithField(ctx, "evicted", len(evicted)), "storefront sessions swept")
	return len(evicted)
}

// RunSweeper sweeps on every tick until ctx is done.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close destroys every session widget.
func (m *Manager) Close(ctx context.Context) {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = map[string]*Session{}
	m.reportSize()
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close(ctx)
	}
}

func (m *Manager) reportSize() {
	if m.cfg.Metrics != nil {
		m.cfg.Metrics.SetSessions(len(m.sessions))
	}
}
