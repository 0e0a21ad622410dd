// internal/browser/context_test.go
package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ctxKey string

func TestCombineContext(t *testing.T) {
	t.Run("keeps session values", func(t *testing.T) {
		sessionCtx := context.WithValue(context.Background(), ctxKey("target"), "tab-1")
		combined, cancel := CombineContext(sessionCtx, context.Background())
		defer cancel()

		assert.Equal(t, "tab-1", combined.Value(ctxKey("target")))
		assert.NoError(t, combined.Err())
	})

	t.Run("canceled by the operation context", func(t *testing.T) {
		opCtx, opCancel := context.WithCancel(context.Background())
		combined, cancel := CombineContext(context.Background(), opCtx)
		defer cancel()

		opCancel()
		select {
		case <-combined.Done():
		case <-time.After(time.Second):
			t.Fatal("combined context was not canceled")
		}
		assert.ErrorIs(t, combined.Err(), context.Canceled)
	})

	t.Run("canceled by the session context", func(t *testing.T) {
		sessionCtx, sessionCancel := context.WithCancel(context.Background())
		combined, cancel := CombineContext(sessionCtx, context.Background())
		defer cancel()

		sessionCancel()
		<-combined.Done()
		assert.ErrorIs(t, combined.Err(), context.Canceled)
	})

	t.Run("inherits the operation deadline", func(t *testing.T) {
		opCtx, opCancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer opCancel()
		combined, cancel := CombineContext(context.Background(), opCtx)
		defer cancel()

		deadline, ok := combined.Deadline()
		require.True(t, ok)
		want, _ := opCtx.Deadline()
		assert.Equal(t, want, deadline)

		<-combined.Done()
		assert.ErrorIs(t, combined.Err(), context.DeadlineExceeded)
	})

	t.Run("cancel func releases", func(t *testing.T) {
		combined, cancel := CombineContext(context.Background(), context.Background())
		cancel()
		<-combined.Done()
		cancel()
	})
}
