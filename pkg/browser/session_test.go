package browser

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubPage fakes the few page calls initialization touches. The embedded
// interface panics on anything else, which is the point: initialization must
// not reach further into the page.
type stubPage struct {
	playwright.Page
	mu  sync.Mutex
	url string
}

func (p *stubPage) Goto(url string, options ...playwright.PageGotoOptions) (playwright.Response, error) {
	p.mu.Lock()
	p.url = url
	p.mu.Unlock()
	return nil, nil
}

func (p *stubPage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *stubPage) WaitForSelector(selector string, options ...playwright.PageWaitForSelectorOptions) (playwright.ElementHandle, error) {
	return nil, nil
}

func (p *stubPage) Close(options ...playwright.PageCloseOptions) error { return nil }

func TestSessionIsExpired(t *testing.T) {
	session := NewSession(NewDriver(), nil, testTarget, true)

	assert.False(t, session.IsExpired(), "fresh session must not be expired")

	session.mu.Lock()
	session.lastUsed = time.Now().Add(-16 * time.Minute)
	session.mu.Unlock()
	assert.True(t, session.IsExpired(), "session idle past the timeout must read expired")

	session.touch()
	assert.False(t, session.IsExpired(), "touch must reset the idle clock")
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	session := NewSession(NewDriver(), nil, testTarget, true)

	assert.NoError(t, session.Close())
	assert.NoError(t, session.Close())
}

func TestEnsureReadyLaunchesOnce(t *testing.T) {
	session := NewSession(NewDriver(), nil, testTarget, true)

	var launches int32
	session.launch = func(headless bool, statePath string) (playwright.Browser, playwright.BrowserContext, playwright.Page, error) {
		atomic.AddInt32(&launches, 1)
		// Hold the first caller in flight so the others arrive while
		// initialization is still running.
		time.Sleep(20 * time.Millisecond)
		return nil, nil, &stubPage{}, nil
	}

	const callers = 6
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = session.ensureReady(context.Background())
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&launches), "concurrent first users must share one launch")
	for i, err := range errs {
		assert.NoError(t, err, "caller %d", i)
	}
	require.NoError(t, session.Close())
}

func TestEnsureReadyMemoizesLaunchFailure(t *testing.T) {
	session := NewSession(NewDriver(), nil, testTarget, true)

	boom := errors.New("chromium unavailable")
	var launches int32
	session.launch = func(headless bool, statePath string) (playwright.Browser, playwright.BrowserContext, playwright.Page, error) {
		atomic.AddInt32(&launches, 1)
		time.Sleep(20 * time.Millisecond)
		return nil, nil, nil, boom
	}

	const callers = 4
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = session.ensureReady(context.Background())
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&launches))
	for i, err := range errs {
		assert.ErrorIs(t, err, boom, "waiter %d must see the shared failure", i)
	}

	// A later caller gets the memoized error without a second launch.
	err := session.ensureReady(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(1), atomic.LoadInt32(&launches))
}

func TestClosedSessionRefusesUse(t *testing.T) {
	session := NewSession(NewDriver(), nil, testTarget, true)
	assert.NoError(t, session.Close())

	err := session.ensureReady(context.Background())
	assert.ErrorIs(t, err, ErrClosed)

	_, err = session.AnswerText(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}
