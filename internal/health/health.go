// Package health tracks the availability of the orchestrator's collaborators
// (NLP service, Qdrant, Redis) and serves readiness/liveness probes.
package health

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status of one component.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusUnknown   Status = "unknown"
)

// CheckResult is the outcome of one check run.
type CheckResult struct {
	Component string        `json:"component"`
	Status    Status        `json:"status"`
	Error     string        `json:"error,omitempty"`
	Critical  bool          `json:"critical"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// Checker probes one component.
type Checker interface {
	Name() string
	Check(ctx context.Context) error
	IsCritical() bool
}

// Manager runs registered checkers periodically and caches results.
type Manager struct {
	mu       sync.RWMutex
	checkers []Checker
	results  map[string]CheckResult
	interval time.Duration
	timeout  time.Duration
	stopCh   chan struct{}
	started  bool
	log      *zap.Logger
}

// NewManager creates a manager with a 30s check interval.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		results:  make(map[string]CheckResult),
		interval: 30 * time.Second,
		timeout:  5 * time.Second,
		stopCh:   make(chan struct{}),
		log:      logger,
	}
}

// Register adds a checker. Must be called before Start.
func (m *Manager) Register(c Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers = append(m.checkers, c)
}

// Start runs an immediate check round and begins background checking.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	m.runAll(ctx)
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-m.stopCh:
				return
			case <-ticker.C:
				m.runAll(context.Background())
			}
		}
	}()
}

// Stop halts background checking.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		close(m.stopCh)
		m.started = false
	}
}

func (m *Manager) runAll(ctx context.Context) {
	m.mu.RLock()
	checkers := append([]Checker(nil), m.checkers...)
	m.mu.RUnlock()

	for _, c := range checkers {
		cctx, cancel := context.WithTimeout(ctx, m.timeout)
		start := time.Now()
		err := c.Check(cctx)
		cancel()

		res := CheckResult{
			Component: c.Name(),
			Status:    StatusHealthy,
			Critical:  c.IsCritical(),
			Duration:  time.Since(start),
			Timestamp: start,
		}
		if err != nil {
			res.Status = StatusUnhealthy
			res.Error = err.Error()
			m.log.Warn("health check failed",
				zap.String("component", c.Name()),
				zap.Bool("critical", c.IsCritical()),
				zap.Error(err))
		}
		m.mu.Lock()
		m.results[c.Name()] = res
		m.mu.Unlock()
	}
}

// Results returns the most recent check results.
func (m *Manager) Results() map[string]CheckResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]CheckResult, len(m.results))
	for k, v := range m.results {
		out[k] = v
	}
	return out
}

// Ready reports whether all critical components are healthy. No results yet
// means not ready.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.results) == 0 {
		return false
	}
	for _, r := range m.results {
		if r.Critical && r.Status != StatusHealthy {
			return false
		}
	}
	return true
}

// HTTPChecker probes an HTTP endpoint expecting 200.
type HTTPChecker struct {
	name     string
	url      string
	critical bool
	client   *http.Client
}

// NewHTTPChecker builds a checker GETting url.
func NewHTTPChecker(name, url string, critical bool) *HTTPChecker {
	return &HTTPChecker{
		name:     name,
		url:      url,
		critical: critical,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

func (h *HTTPChecker) Name() string     { return h.name }
func (h *HTTPChecker) IsCritical() bool { return h.critical }

func (h *HTTPChecker) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", h.url, resp.StatusCode)
	}
	return nil
}

// FuncChecker wraps a probe function.
type FuncChecker struct {
	name     string
	critical bool
	fn       func(ctx context.Context) error
}

// NewFuncChecker builds a checker from a function.
func NewFuncChecker(name string, critical bool, fn func(ctx context.Context) error) *FuncChecker {
	return &FuncChecker{name: name, critical: critical, fn: fn}
}

func (f *FuncChecker) Name() string                    { return f.name }
func (f *FuncChecker) IsCritical() bool                { return f.critical }
func (f *FuncChecker) Check(ctx context.Context) error { return f.fn(ctx) }
