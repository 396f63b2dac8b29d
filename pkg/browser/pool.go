package browser

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/notearc/nbq/pkg/auth"
	"github.com/notearc/nbq/pkg/logging"
)

type poolKey struct {
	target   string
	headless bool
}

// Pool keeps warm sessions keyed by (notebook target, headless flag). At
// most one live session exists per key; a session that fails auth validation
// is closed and replaced under the same key rather than repaired.
type Pool struct {
	mu       sync.Mutex
	sessions map[poolKey]QuerySession

	// factory builds a session for a key; replaced in tests.
	factory func(target string, headless bool) QuerySession

	logger *logging.Logger
}

// NewPool creates a pool whose sessions launch through driver and
// authenticate from creds.
func NewPool(driver *Driver, creds *auth.Store) *Pool {
	logger, _ := logging.NewLogger("pool")
	return &Pool{
		sessions: make(map[poolKey]QuerySession),
		factory: func(target string, headless bool) QuerySession {
			return NewSession(driver, creds, target, headless)
		},
		logger: logger,
	}
}

// Get returns the pooled session for (target, headless), constructing one on
// first use. A reused session is re-validated and repointed at the target
// before it is handed out; one that fails validation is closed and replaced.
func (p *Pool) Get(ctx context.Context, target string, headless bool) (QuerySession, error) {
	key := poolKey{target: target, headless: headless}

	// Construction is cheap (sessions launch lazily), so a missing key is
	// filled under the lock. Concurrent misses for one key then agree on a
	// single session instead of racing to store duplicates.
	p.mu.Lock()
	session, exists := p.sessions[key]
	if !exists {
		session = p.factory(target, headless)
		p.sessions[key] = session
	}
	p.mu.Unlock()

	if exists {
		if !session.ValidateAuth(ctx) {
			p.logger.Warnf("session %s failed auth validation, replacing", target)
			session = p.replace(key, target, headless, session)
		}
	}

	if _, err := session.ResetIfNeeded(ctx, target); err != nil {
		p.mu.Lock()
		if p.sessions[key] == session {
			delete(p.sessions, key)
		}
		p.mu.Unlock()
		_ = session.Close()
		return nil, err
	}
	return session, nil
}

// replace swaps a failed session for a fresh one under its key and closes
// the old one. If another caller already installed a different session,
// that one wins and is returned instead.
func (p *Pool) replace(key poolKey, target string, headless bool, failed QuerySession) QuerySession {
	p.mu.Lock()
	current := p.sessions[key]
	if current != failed && current != nil {
		p.mu.Unlock()
		_ = failed.Close()
		return current
	}
	fresh := p.factory(target, headless)
	p.sessions[key] = fresh
	p.mu.Unlock()

	_ = failed.Close()
	return fresh
}

// CleanupExpired closes and removes every idle-expired session, returning
// how many were dropped.
func (p *Pool) CleanupExpired() int {
	p.mu.Lock()
	var victims []QuerySession
	for key, session := range p.sessions {
		if session.IsExpired() {
			victims = append(victims, session)
			delete(p.sessions, key)
		}
	}
	p.mu.Unlock()

	for _, session := range victims {
		_ = session.Close()
	}
	if len(victims) > 0 {
		p.logger.Infof("closed %d idle sessions", len(victims))
	}
	return len(victims)
}

// CloseAll empties the pool and closes every session concurrently, waiting
// for all of them. This is the crash-recovery hammer: after a pooled
// failure that may have corrupted browser state, everything goes.
func (p *Pool) CloseAll(ctx context.Context) error {
	p.mu.Lock()
	victims := make([]QuerySession, 0, len(p.sessions))
	for _, session := range p.sessions {
		victims = append(victims, session)
	}
	p.sessions = make(map[poolKey]QuerySession)
	p.mu.Unlock()

	group, _ := errgroup.WithContext(ctx)
	for _, session := range victims {
		group.Go(session.Close)
	}
	if err := group.Wait(); err != nil {
		p.logger.Errorf("closing pooled sessions: %v", err)
		return err
	}
	return nil
}

// Len returns the number of pooled sessions.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

var (
	defaultPool *Pool
	defaultMu   sync.Mutex
)

// InitDefault constructs the process-wide pool on first call; later calls
// return the existing instance.
func InitDefault(driver *Driver, creds *auth.Store) *Pool {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultPool == nil {
		defaultPool = NewPool(driver, creds)
	}
	return defaultPool
}

// Default returns the process-wide pool. Panics if InitDefault has not run.
func Default() *Pool {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultPool == nil {
		panic("browser: default pool not initialized, call InitDefault first")
	}
	return defaultPool
}

// ResetDefault closes the process-wide pool and forgets it, for test
// isolation and shutdown.
func ResetDefault(ctx context.Context) {
	defaultMu.Lock()
	pool := defaultPool
	defaultPool = nil
	defaultMu.Unlock()

	if pool != nil {
		_ = pool.CloseAll(ctx)
	}
}
