package repo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jamesainslie/curator/pkg/curator/repo"
)

func TestTypeRegistry(t *testing.T) {
	reg := repo.NewTypeRegistry()

	t.Run("every tag is a subtype of itself", func(t *testing.T) {
		assert.True(t, reg.IsSubtype(repo.KindTexture, repo.KindTexture))
	})

	t.Run("walks the parent chain", func(t *testing.T) {
		assert.True(t, reg.IsSubtype(repo.KindTexture, repo.KindImage))
		assert.False(t, reg.IsSubtype(repo.KindImage, repo.KindTexture))
	})

	t.Run("empty tags are never subtypes", func(t *testing.T) {
		assert.False(t, reg.IsSubtype("", repo.KindImage))
		assert.False(t, reg.IsSubtype(repo.KindImage, ""))
	})

	t.Run("component kinds", func(t *testing.T) {
		assert.True(t, reg.IsComponent(repo.KindScript))
		assert.True(t, reg.IsComponent(repo.KindCollider))
		assert.False(t, reg.IsComponent(repo.KindBundle))
		assert.False(t, reg.IsComponent(repo.KindTexture))
	})

	t.Run("custom chains", func(t *testing.T) {
		reg := repo.NewTypeRegistry()
		reg.Register("normalmap", repo.KindTexture)
		assert.True(t, reg.IsSubtype("normalmap", repo.KindImage))

		reg.RegisterComponent("trigger", repo.KindCollider)
		assert.True(t, reg.IsComponent("trigger"))
		assert.True(t, reg.IsSubtype("trigger", repo.KindCollider))
	})

	t.Run("unknown tags", func(t *testing.T) {
		assert.False(t, reg.Known("mystery"))
		assert.False(t, reg.IsSubtype("mystery", repo.KindImage))
	})
}
