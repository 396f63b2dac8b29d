package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShutdownRunsHooksInReverseOrder(t *testing.T) {
	m := NewManager()

	var order []string
	m.Register("first", func(ctx context.Context) error {
		order = append(order, "first")
		return nil
	})
	m.Register("second", func(ctx context.Context) error {
		order = append(order, "second")
		return nil
	})

	m.Shutdown()
	assert.Equal(t, []string{"second", "first"}, order)
}

func TestShutdownRunsOnlyOnce(t *testing.T) {
	m := NewManager()

	calls := 0
	m.Register("hook", func(ctx context.Context) error {
		calls++
		return nil
	})

	m.Shutdown()
	m.Shutdown()
	assert.Equal(t, 1, calls)
}

func TestRegisterAfterShutdownIsIgnored(t *testing.T) {
	m := NewManager()
	m.Shutdown()

	called := false
	m.Register("late", func(ctx context.Context) error {
		called = true
		return nil
	})
	m.Shutdown()
	assert.False(t, called)
}

func TestHookFailureDoesNotStopOthers(t *testing.T) {
	m := NewManager()

	var order []string
	m.Register("survives", func(ctx context.Context) error {
		order = append(order, "survives")
		return nil
	})
	m.Register("fails", func(ctx context.Context) error {
		order = append(order, "fails")
		return errors.New("boom")
	})

	m.Shutdown()
	assert.Equal(t, []string{"fails", "survives"}, order)
}

func TestGraceDeadlineReachesHooks(t *testing.T) {
	m := NewManager()
	m.SetGrace(10 * time.Millisecond)

	var deadlineSet bool
	m.Register("hook", func(ctx context.Context) error {
		_, deadlineSet = ctx.Deadline()
		return nil
	})

	m.Shutdown()
	assert.True(t, deadlineSet, "hooks must see the grace deadline")
}
