package browser

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/notearc/nbq/pkg/auth"
)

const (
	// DefaultIdleTimeout is how long a session may sit unused before the
	// pool considers it expired.
	DefaultIdleTimeout = 15 * time.Minute

	// readyCandidateMs bounds the wait on each query-input selector
	// candidate during the readiness check.
	readyCandidateMs = 5000.0
)

// QuerySession is the surface query execution needs from a live session.
// *Session satisfies it; tests substitute fakes.
type QuerySession interface {
	ValidateAuth(ctx context.Context) bool
	ResetIfNeeded(ctx context.Context, target string) (bool, error)
	Submit(ctx context.Context, question string) error
	Generating(ctx context.Context) (bool, error)
	AnswerText(ctx context.Context) (string, error)
	IsExpired() bool
	Close() error
}

// Session wraps one browser context bound to one notebook URL. It is created
// empty and initializes lazily on first use: browser launch, navigation and
// the readiness wait all happen inside the first call that needs a page.
type Session struct {
	driver *Driver
	creds  *auth.Store

	id          string
	headless    bool
	idleTimeout time.Duration

	// launch is the driver's launch method; replaced in tests.
	launch func(headless bool, statePath string) (playwright.Browser, playwright.BrowserContext, playwright.Page, error)

	mu            sync.Mutex
	target        string
	lastUsed      time.Time
	inputSelector string
	closed        bool

	// initDone guards initialization: the first caller creates the channel
	// and runs the launch, later callers wait on it instead of racing to
	// start a second browser.
	initDone chan struct{}
	initErr  error

	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
}

// NewSession creates an uninitialized session bound to target. creds may be
// nil for a session without stored credentials.
func NewSession(driver *Driver, creds *auth.Store, target string, headless bool) *Session {
	return &Session{
		driver:      driver,
		creds:       creds,
		id:          fingerprint(target),
		target:      target,
		headless:    headless,
		idleTimeout: DefaultIdleTimeout,
		lastUsed:    time.Now(),
		launch:      driver.launch,
	}
}

// fingerprint derives a short stable identifier from the notebook target.
func fingerprint(target string) string {
	sum := sha256.Sum256([]byte(target))
	return hex.EncodeToString(sum[:])[:12]
}

// ID returns the session's target fingerprint.
func (s *Session) ID() string { return s.id }

// Target returns the notebook URL the session is bound to.
func (s *Session) Target() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}

// Headless reports the browser visibility mode.
func (s *Session) Headless() bool { return s.headless }

// touch refreshes the idle clock.
func (s *Session) touch() {
	s.mu.Lock()
	s.lastUsed = time.Now()
	s.mu.Unlock()
}

// IsExpired reports whether the session has been idle past its timeout.
func (s *Session) IsExpired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastUsed) > s.idleTimeout
}

// ensureReady initializes the session exactly once. Concurrent callers block
// on the same in-flight initialization instead of launching duplicate
// browsers.
func (s *Session) ensureReady(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return opErr("ensure ready", ErrClosed)
	}
	if s.initDone != nil {
		done := s.initDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
		s.mu.Lock()
		err := s.initErr
		s.mu.Unlock()
		return err
	}

	done := make(chan struct{})
	s.initDone = done
	target := s.target
	s.mu.Unlock()

	err := s.initialize(ctx, target)

	s.mu.Lock()
	s.initErr = err
	s.mu.Unlock()
	close(done)
	return err
}

// initialize launches the browser, seeds it with any stored credentials,
// navigates to the target and waits for the query UI.
func (s *Session) initialize(ctx context.Context, target string) error {
	statePath := ""
	if s.creds != nil {
		path, cleanup, err := s.creds.Materialize()
		switch {
		case err == nil:
			statePath = path
			defer cleanup()
		case errors.Is(err, auth.ErrNotFound):
			// No saved credentials: start cold, auth validation will catch it.
		default:
			return opErr("load credentials", err)
		}
	}

	browser, browserCtx, page, err := s.launch(s.headless, statePath)
	if err != nil {
		return opErr("launch", err)
	}

	s.mu.Lock()
	s.browser = browser
	s.context = browserCtx
	s.page = page
	s.mu.Unlock()

	if err := s.navigate(ctx, target); err != nil {
		s.teardown()
		return err
	}
	s.touch()
	return nil
}

func (s *Session) navigate(ctx context.Context, target string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := s.page.Goto(target, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return opErr("navigate to "+target, err)
	}

	// A bounce to the login flow means the stored credentials no longer
	// authenticate; the page will never show the query UI.
	landed := s.page.URL()
	for _, marker := range authRedirectMarkers {
		if strings.Contains(landed, marker) {
			return fmt.Errorf("redirected to %s: %w", landed, ErrAuthExpired)
		}
	}
	return s.waitReady()
}

// waitReady polls the query-input candidates in order with a bounded wait
// per candidate; the first visible match is remembered for Submit.
func (s *Session) waitReady() error {
	for _, selector := range queryInputSelectors {
		_, err := s.page.WaitForSelector(selector, playwright.PageWaitForSelectorOptions{
			State:   playwright.WaitForSelectorStateVisible,
			Timeout: playwright.Float(readyCandidateMs),
		})
		if err == nil {
			s.mu.Lock()
			s.inputSelector = selector
			s.mu.Unlock()
			return nil
		}
	}
	return opErr("wait ready", ErrNotReady)
}

// GetPage ensures the session is ready and returns the live page handle.
func (s *Session) GetPage(ctx context.Context) (playwright.Page, error) {
	if err := s.ensureReady(ctx); err != nil {
		return nil, err
	}
	s.touch()
	return s.page, nil
}

// ValidateAuth checks whether the stored credentials still work by visiting
// the application root and inspecting where the browser ends up. It reports
// false on any failure and never returns an error; callers decide whether a
// false is fatal.
func (s *Session) ValidateAuth(ctx context.Context) bool {
	if err := s.ensureReady(ctx); err != nil {
		return false
	}
	s.touch()

	root, err := appRoot(s.Target())
	if err != nil {
		return false
	}

	if _, err := s.page.Goto(root, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return false
	}

	landed := s.page.URL()
	for _, marker := range authRedirectMarkers {
		if strings.Contains(landed, marker) {
			return false
		}
	}
	return true
}

func appRoot(target string) (string, error) {
	parsed, err := url.Parse(target)
	if err != nil {
		return "", err
	}
	return parsed.Scheme + "://" + parsed.Host, nil
}

// ResetIfNeeded points the session at target, navigating only when the page
// is not already there. Reports whether navigation happened.
func (s *Session) ResetIfNeeded(ctx context.Context, target string) (bool, error) {
	if err := s.ensureReady(ctx); err != nil {
		return false, err
	}
	s.touch()

	s.mu.Lock()
	bound := s.target
	s.mu.Unlock()

	if bound == target && strings.HasPrefix(s.page.URL(), target) {
		return false, nil
	}

	if err := s.navigate(ctx, target); err != nil {
		return false, err
	}

	s.mu.Lock()
	s.target = target
	s.mu.Unlock()
	return true, nil
}

// SoftReset sheds client-side application state without paying for a fresh
// browser launch: clear storage, reload, re-wait for the query UI.
func (s *Session) SoftReset(ctx context.Context) error {
	if err := s.ensureReady(ctx); err != nil {
		return err
	}
	s.touch()

	if _, err := s.page.Evaluate(`() => { localStorage.clear(); sessionStorage.clear(); }`); err != nil {
		return opErr("clear storage", err)
	}
	if _, err := s.page.Reload(); err != nil {
		return opErr("reload", err)
	}
	return s.waitReady()
}

// Submit types the question into the query box and sends it. The session
// was ready before this call, so a failure here means the context has
// become unusable and is reported as a crash.
func (s *Session) Submit(ctx context.Context, question string) error {
	if err := s.ensureReady(ctx); err != nil {
		return err
	}
	s.touch()

	s.mu.Lock()
	selector := s.inputSelector
	s.mu.Unlock()
	if selector == "" {
		if err := s.waitReady(); err != nil {
			return err
		}
		s.mu.Lock()
		selector = s.inputSelector
		s.mu.Unlock()
	}

	if err := s.page.Fill(selector, question); err != nil {
		return fmt.Errorf("fill query input: %v: %w", err, ErrCrashed)
	}
	if err := s.page.Press(selector, "Enter"); err != nil {
		return fmt.Errorf("send question: %v: %w", err, ErrCrashed)
	}
	return nil
}

// Generating reports whether the UI's "still generating" indicator is
// visible. Part of the detector's page contract.
func (s *Session) Generating(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	page, err := s.livePage()
	if err != nil {
		return false, err
	}

	for _, selector := range generatingSelectors {
		handle, err := page.QuerySelector(selector)
		if err != nil {
			return false, fmt.Errorf("query indicator: %v: %w", err, ErrCrashed)
		}
		if handle == nil {
			continue
		}
		visible, err := handle.IsVisible()
		if err != nil {
			return false, fmt.Errorf("indicator visibility: %v: %w", err, ErrCrashed)
		}
		if visible {
			return true, nil
		}
	}
	return false, nil
}

// AnswerText returns the cleaned text of the newest answer container, or ""
// when no answer is present. Part of the detector's page contract.
func (s *Session) AnswerText(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	page, err := s.livePage()
	if err != nil {
		return "", err
	}

	for _, selector := range answerSelectors {
		handles, err := page.QuerySelectorAll(selector)
		if err != nil {
			return "", fmt.Errorf("query answers: %v: %w", err, ErrCrashed)
		}
		if len(handles) == 0 {
			continue
		}

		newest := handles[len(handles)-1]
		raw, err := newest.InnerHTML()
		if err != nil {
			return "", fmt.Errorf("read answer: %v: %w", err, ErrCrashed)
		}
		return ExtractAnswerText(raw), nil
	}
	return "", nil
}

// livePage returns the page handle, failing when the session has not been
// initialized or has been closed.
func (s *Session) livePage() (playwright.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page == nil {
		return nil, opErr("live page", ErrClosed)
	}
	return s.page, nil
}

// CaptureState snapshots the context's cookies and storage for persistence.
func (s *Session) CaptureState(ctx context.Context) (json.RawMessage, error) {
	if err := s.ensureReady(ctx); err != nil {
		return nil, err
	}

	state, err := s.context.StorageState()
	if err != nil {
		return nil, opErr("capture storage state", err)
	}

	raw, err := json.Marshal(state)
	if err != nil {
		return nil, opErr("encode storage state", err)
	}
	return raw, nil
}

// Close releases the browser resources. Idempotent; a closed session is
// discarded, never reused.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.teardown()
	return nil
}

func (s *Session) teardown() {
	s.mu.Lock()
	page, context, browser := s.page, s.context, s.browser
	s.page, s.context, s.browser = nil, nil, nil
	s.mu.Unlock()

	// Best effort, keep going on errors.
	if page != nil {
		_ = page.Close()
	}
	if context != nil {
		_ = context.Close()
	}
	if browser != nil {
		_ = browser.Close()
	}
}
