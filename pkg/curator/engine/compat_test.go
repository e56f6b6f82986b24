package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jamesainslie/curator/pkg/curator/engine"
	"github.com/jamesainslie/curator/pkg/curator/repo"
)

func TestCompatible(t *testing.T) {
	reg := repo.NewTypeRegistry()

	t.Run("unresolvable candidates are incompatible", func(t *testing.T) {
		assert.False(t, engine.Compatible(reg, "", repo.KindTexture))
	})

	t.Run("exact type match", func(t *testing.T) {
		assert.True(t, engine.Compatible(reg, repo.KindTexture, repo.KindTexture))
	})

	t.Run("structural subtype match", func(t *testing.T) {
		// texture is registered as a subtype of image
		assert.True(t, engine.Compatible(reg, repo.KindTexture, repo.KindImage))
		assert.False(t, engine.Compatible(reg, repo.KindImage, repo.KindTexture))
	})

	t.Run("bundles satisfy component filters", func(t *testing.T) {
		assert.True(t, engine.Compatible(reg, repo.KindBundle, repo.KindScript))
		assert.True(t, engine.Compatible(reg, repo.KindBundle, repo.KindCollider))
	})

	t.Run("the bundle rule is one-directional", func(t *testing.T) {
		assert.False(t, engine.Compatible(reg, repo.KindScript, repo.KindBundle))
	})

	t.Run("bundles do not satisfy non-component filters", func(t *testing.T) {
		assert.False(t, engine.Compatible(reg, repo.KindBundle, repo.KindTexture))
	})

	t.Run("unrelated types are incompatible", func(t *testing.T) {
		assert.False(t, engine.Compatible(reg, repo.KindAudio, repo.KindTexture))
	})
}
