// internal/browser/context_utils_test.go
package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombineContext(t *testing.T) {
	type ctxKey string
	const key ctxKey = "testKey"
	const value = "testValue"

	t.Run("InheritsValuesFromPrimary", func(t *testing.T) {
		ctx1 := context.WithValue(context.Background(), key, value)

		combinedCtx, cancel := CombineContext(ctx1, context.Background())
		defer cancel()

		assert.Equal(t, value, combinedCtx.Value(key))
		assert.Nil(t, combinedCtx.Err())
	})

	t.Run("CancelledByPrimary", func(t *testing.T) {
		ctx1, cancel1 := context.WithCancel(context.Background())

		combinedCtx, cancelCombined := CombineContext(ctx1, context.Background())
		defer cancelCombined()

		cancel1()
		assert.Eventually(t, func() bool {
			return combinedCtx.Err() != nil
		}, 100*time.Millisecond, 5*time.Millisecond)
		assert.ErrorIs(t, combinedCtx.Err(), context.Canceled)
	})

	t.Run("CancelledByOperation", func(t *testing.T) {
		ctx2, cancel2 := context.WithCancel(context.Background())

		combinedCtx, cancelCombined := CombineContext(context.Background(), ctx2)
		defer cancelCombined()

		cancel2()
		assert.Eventually(t, func() bool {
			return combinedCtx.Err() != nil
		}, 100*time.Millisecond, 5*time.Millisecond)
		assert.ErrorIs(t, combinedCtx.Err(), context.Canceled)
	})

	t.Run("DeadlineFromOperation", func(t *testing.T) {
		deadline := time.Now().Add(time.Minute)
		ctx2, cancel2 := context.WithDeadline(context.Background(), deadline)
		defer cancel2()

		combinedCtx, cancelCombined := CombineContext(context.Background(), ctx2)
		defer cancelCombined()

		got, ok := combinedCtx.Deadline()
		require.True(t, ok, "per-action deadline must reach the driver context")
		assert.WithinDuration(t, deadline, got, time.Millisecond)
	})

	t.Run("CancelReleasesGoroutine", func(t *testing.T) {
		combinedCtx, cancel := CombineContext(context.Background(), context.Background())
		cancel()
		assert.ErrorIs(t, combinedCtx.Err(), context.Canceled)
	})
}

func TestDetach(t *testing.T) {
	type ctxKey string
	parent, cancel := context.WithTimeout(context.WithValue(context.Background(), ctxKey("k"), "v"), time.Millisecond)
	cancel()

	detached := Detach(parent)
	assert.NoError(t, detached.Err())
	assert.Nil(t, detached.Done())
	_, ok := detached.Deadline()
	assert.False(t, ok)
	assert.Equal(t, "v", detached.Value(ctxKey("k")))
}

func TestRemainingOr(t *testing.T) {
	assert.Equal(t, 3*time.Second, RemainingOr(context.Background(), 3*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()
	assert.InDelta(t, float64(time.Hour), float64(RemainingOr(ctx, 0)), float64(time.Second))

	expired, cancelExpired := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancelExpired()
	assert.Zero(t, RemainingOr(expired, time.Second))
}
