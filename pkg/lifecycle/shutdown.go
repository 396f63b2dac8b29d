// Package lifecycle runs registered cleanup hooks on process shutdown,
// whether it ends normally or by signal. Browser sessions hold real OS
// processes, so skipping cleanup leaks headless Chromium instances.
package lifecycle

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/notearc/nbq/pkg/logging"
)

// DefaultGrace bounds how long shutdown waits for hooks before giving up.
const DefaultGrace = 10 * time.Second

// Hook is one named cleanup action.
type Hook struct {
	Name string
	Run  func(ctx context.Context) error
}

// Manager collects hooks and runs them once, last registered first.
type Manager struct {
	mu     sync.Mutex
	hooks  []Hook
	done   bool
	grace  time.Duration
	logger *logging.Logger
}

// NewManager creates a manager with the default grace period.
func NewManager() *Manager {
	logger, _ := logging.NewLogger("lifecycle")
	return &Manager{grace: DefaultGrace, logger: logger}
}

// SetGrace overrides the shutdown grace period.
func (m *Manager) SetGrace(d time.Duration) {
	m.mu.Lock()
	m.grace = d
	m.mu.Unlock()
}

// Register adds a cleanup hook. Hooks run in reverse registration order so
// dependents shut down before what they depend on.
func (m *Manager) Register(name string, run func(ctx context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done {
		return
	}
	m.hooks = append(m.hooks, Hook{Name: name, Run: run})
}

// Shutdown runs every hook once under the grace deadline. Later calls are
// no-ops. Hook failures are logged, never propagated; shutdown always
// finishes the list.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	if m.done {
		m.mu.Unlock()
		return
	}
	m.done = true
	hooks := m.hooks
	grace := m.grace
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	for i := len(hooks) - 1; i >= 0; i-- {
		hook := hooks[i]
		if err := hook.Run(ctx); err != nil {
			m.logger.Warnf("shutdown hook %s: %v", hook.Name, err)
		}
	}
}

// OnSignal installs a handler that runs Shutdown and exits with code on
// SIGINT or SIGTERM. The returned stop function uninstalls the handler.
func (m *Manager) OnSignal(code int) (stop func()) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig, ok := <-sigs
		if !ok {
			return
		}
		m.logger.Infof("received %s, shutting down", sig)
		m.Shutdown()
		os.Exit(code)
	}()

	return func() {
		signal.Stop(sigs)
		close(sigs)
	}
}
