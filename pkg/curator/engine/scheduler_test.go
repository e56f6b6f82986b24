package engine_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/curator/pkg/curator/engine"
)

func TestSaveScheduler(t *testing.T) {
	t.Run("flush without a request is a no-op", func(t *testing.T) {
		calls := 0
		s := engine.NewSaveScheduler(func() error { calls++; return nil })

		require.NoError(t, s.Flush())
		assert.Zero(t, calls)
	})

	t.Run("repeated requests coalesce into one flush", func(t *testing.T) {
		calls := 0
		s := engine.NewSaveScheduler(func() error { calls++; return nil })

		s.RequestSave()
		s.RequestSave()
		s.RequestSave()
		assert.True(t, s.Pending())

		require.NoError(t, s.Flush())
		assert.Equal(t, 1, calls)
		assert.False(t, s.Pending())

		// Nothing pending anymore.
		require.NoError(t, s.Flush())
		assert.Equal(t, 1, calls)
	})

	t.Run("a failed flush clears the pending flag", func(t *testing.T) {
		boom := errors.New("store unavailable")
		s := engine.NewSaveScheduler(func() error { return boom })

		s.RequestSave()
		assert.ErrorIs(t, s.Flush(), boom)
		assert.False(t, s.Pending())
	})
}
