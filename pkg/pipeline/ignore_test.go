package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIgnoreSetIsImmutable(t *testing.T) {
	var empty IgnoreSet
	assert.False(t, empty.Has("T1"))

	one := empty.With("T1")
	two := one.With("T2")
	again := two.With("T1")

	assert.Equal(t, 0, empty.Len())
	assert.Equal(t, []string{"T1"}, one.IDs())
	assert.Equal(t, []string{"T1", "T2"}, two.IDs())
	assert.Equal(t, two.IDs(), again.IDs(), "adding an id twice is idempotent")
	assert.False(t, one.Has("T2"))
}
