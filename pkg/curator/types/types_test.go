package types_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jamesainslie/curator/pkg/curator/types"
)

func TestNormalizePath(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"art/textures/a.png", "art/textures/a.png"},
		{"art\\textures\\a.png", "art/textures/a.png"},
		{"/art/textures", "art/textures"},
		{"./art/./textures/", "art/textures"},
		{".", ""},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, types.NormalizePath(tc.in), "input %q", tc.in)
	}
}

func TestPathWithin(t *testing.T) {
	assert.True(t, types.PathWithin("art/textures", "art/textures"))
	assert.True(t, types.PathWithin("art/textures/a.png", "art/textures"))
	assert.True(t, types.PathWithin("Art/Textures/a.png", "art/textures"))
	assert.False(t, types.PathWithin("art/textures2/a.png", "art/textures"))
	assert.False(t, types.PathWithin("art", "art/textures"))
	assert.False(t, types.PathWithin("art/textures", ""))
}

func TestChangeBatch(t *testing.T) {
	assert.True(t, types.ChangeBatch{}.Empty())

	b := types.ChangeBatch{
		Imported:  []string{"a"},
		Deleted:   []string{"b"},
		MovedFrom: []string{"c"},
		MovedTo:   []string{"d"},
	}
	assert.False(t, b.Empty())
	assert.Equal(t, []string{"a", "b", "c", "d"}, b.AllPaths())
}
