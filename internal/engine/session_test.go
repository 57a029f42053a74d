package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stepwise/internal/testutil"
)

func TestSessionPool_ReleasesOnError(t *testing.T) {
	pool := NewSessionPool(1, nil)

	err := pool.WithSession(context.Background(), false, func(s *Session) error {
		assert.Equal(t, 1, pool.InUse())
		return errors.New("step blew up")
	})
	assert.EqualError(t, err, "step blew up")
	assert.Equal(t, 0, pool.InUse())
}

func TestSessionPool_ReleasesOnPanic(t *testing.T) {
	pool := NewSessionPool(1, nil)

	assert.Panics(t, func() {
		_ = pool.WithSession(context.Background(), false, func(*Session) error {
			panic("boom")
		})
	})
	assert.Equal(t, 0, pool.InUse())
}

func TestSessionPool_FreshClientPerSession(t *testing.T) {
	pool := NewSessionPool(2, nil)

	a, err := pool.Acquire(context.Background(), false)
	require.NoError(t, err)
	b, err := pool.Acquire(context.Background(), false)
	require.NoError(t, err)
	defer pool.Release(a)
	defer pool.Release(b)

	assert.NotSame(t, a.HTTP, b.HTTP)
	assert.NotSame(t, a.HTTP.Jar, b.HTTP.Jar)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestSessionPool_BlocksWhenFull(t *testing.T) {
	pool := NewSessionPool(1, nil)
	held, err := pool.Acquire(context.Background(), false)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = pool.Acquire(ctx, false)

	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeSessionUnavailable, re.Code)

	pool.Release(held)
	again, err := pool.Acquire(context.Background(), false)
	require.NoError(t, err)
	pool.Release(again)
}

func TestSessionPool_UISessionClosedOnRelease(t *testing.T) {
	drv := testutil.NewFakeUI(nil)
	pool := NewSessionPool(1, func(context.Context) (UISession, error) { return drv, nil })

	err := pool.WithSession(context.Background(), true, func(s *Session) error {
		assert.Same(t, drv, s.UI)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, drv.IsClosed())
}

func TestSessionPool_NoBrowserConfigured(t *testing.T) {
	pool := NewSessionPool(1, nil)

	_, err := pool.Acquire(context.Background(), true)
	assert.True(t, IsBrowserStartError(err))
	assert.Equal(t, 0, pool.InUse())
}

func TestRuntimeError_Format(t *testing.T) {
	err := NewUnreachableError("http://localhost:9", errors.New("connection refused"))
	assert.Equal(t, "TARGET_UNREACHABLE: target unreachable: http://localhost:9: connection refused", err.Error())
	assert.True(t, IsUnreachableError(err))
	assert.False(t, IsBrowserStartError(err))

	err.Scenario = "smoke"
	assert.Contains(t, err.Error(), "(scenario=smoke)")
}
