package browser

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSession scripts the QuerySession surface for pool tests.
type fakeSession struct {
	mu        sync.Mutex
	target    string
	authOK    bool
	expired   bool
	resets    int
	validates int
	closed    bool
}

func (f *fakeSession) ValidateAuth(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validates++
	return f.authOK
}

func (f *fakeSession) ResetIfNeeded(_ context.Context, target string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	moved := f.target != target
	f.target = target
	return moved, nil
}

func (f *fakeSession) Submit(context.Context, string) error { return nil }

func (f *fakeSession) Generating(context.Context) (bool, error) { return false, nil }

func (f *fakeSession) AnswerText(context.Context) (string, error) { return "", nil }

func (f *fakeSession) IsExpired() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.expired
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func newFakePool() (*Pool, *[]*fakeSession) {
	created := &[]*fakeSession{}
	pool := NewPool(NewDriver(), nil)
	pool.factory = func(target string, headless bool) QuerySession {
		session := &fakeSession{target: target, authOK: true}
		*created = append(*created, session)
		return session
	}
	return pool, created
}

const testTarget = "https://notebooklm.google.com/notebook/abc123"

func TestPoolReusesSession(t *testing.T) {
	pool, created := newFakePool()
	ctx := context.Background()

	first, err := pool.Get(ctx, testTarget, true)
	require.NoError(t, err)

	second, err := pool.Get(ctx, testTarget, true)
	require.NoError(t, err)

	assert.Same(t, first, second, "second call must reuse the pooled session")
	require.Len(t, *created, 1)

	// ResetIfNeeded runs on every call, reuse included.
	assert.Equal(t, 2, (*created)[0].resets)
	// Only the reuse path re-validates.
	assert.Equal(t, 1, (*created)[0].validates)
}

func TestPoolConcurrentGetsShareOneSession(t *testing.T) {
	pool, created := newFakePool()
	ctx := context.Background()

	const callers = 8
	sessions := make([]QuerySession, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			session, err := pool.Get(ctx, testTarget, true)
			assert.NoError(t, err)
			sessions[i] = session
		}(i)
	}
	wg.Wait()

	// One key, one live session: nobody's session was overwritten or leaked.
	require.Len(t, *created, 1, "concurrent misses must construct exactly one session")
	assert.Equal(t, 1, pool.Len())
	for i := 1; i < callers; i++ {
		assert.Same(t, sessions[0], sessions[i], "all callers must receive the pooled session")
	}
	assert.False(t, (*created)[0].closed)
}

func TestPoolKeysOnTargetAndHeadless(t *testing.T) {
	pool, created := newFakePool()
	ctx := context.Background()

	_, err := pool.Get(ctx, testTarget, true)
	require.NoError(t, err)
	_, err = pool.Get(ctx, testTarget, false)
	require.NoError(t, err)
	_, err = pool.Get(ctx, "https://notebooklm.google.com/notebook/other", true)
	require.NoError(t, err)

	assert.Len(t, *created, 3)
	assert.Equal(t, 3, pool.Len())
}

func TestPoolReplacesSessionOnAuthFailure(t *testing.T) {
	pool, created := newFakePool()
	ctx := context.Background()

	first, err := pool.Get(ctx, testTarget, true)
	require.NoError(t, err)

	(*created)[0].authOK = false

	second, err := pool.Get(ctx, testTarget, true)
	require.NoError(t, err)

	assert.NotSame(t, first, second, "a failed session must be replaced, not reused")
	assert.True(t, (*created)[0].closed, "the failed session must be closed")
	assert.Equal(t, 1, pool.Len())
}

func TestPoolCleanupExpired(t *testing.T) {
	pool, created := newFakePool()
	ctx := context.Background()

	_, err := pool.Get(ctx, testTarget, true)
	require.NoError(t, err)
	_, err = pool.Get(ctx, "https://notebooklm.google.com/notebook/other", true)
	require.NoError(t, err)

	(*created)[0].expired = true

	removed := pool.CleanupExpired()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, pool.Len())
	assert.True(t, (*created)[0].closed)
	assert.False(t, (*created)[1].closed)
}

func TestPoolCloseAll(t *testing.T) {
	pool, created := newFakePool()
	ctx := context.Background()

	for _, target := range []string{testTarget, "https://notebooklm.google.com/notebook/b", "https://notebooklm.google.com/notebook/c"} {
		_, err := pool.Get(ctx, target, true)
		require.NoError(t, err)
	}

	require.NoError(t, pool.CloseAll(ctx))

	assert.Equal(t, 0, pool.Len())
	for _, session := range *created {
		assert.True(t, session.closed)
	}
}

func TestDefaultPoolLifecycle(t *testing.T) {
	ResetDefault(context.Background())
	t.Cleanup(func() { ResetDefault(context.Background()) })

	assert.Panics(t, func() { Default() })

	pool := InitDefault(NewDriver(), nil)
	assert.Same(t, pool, Default())
	assert.Same(t, pool, InitDefault(NewDriver(), nil), "InitDefault must not rebuild an existing pool")

	ResetDefault(context.Background())
	assert.Panics(t, func() { Default() })
}
