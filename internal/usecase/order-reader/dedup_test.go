package orderreader

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlidingWindow_Observe(t *testing.T) {
	window := NewSlidingWindow(3)

	assert.False(t, window.Observe("a"))
	assert.False(t, window.Observe("b"))
	assert.True(t, window.Observe("a"))
	assert.Equal(t, 2, window.Len())
}

func TestSlidingWindow_Eviction(t *testing.T) {
	window := NewSlidingWindow(3)

	window.Observe("a")
	window.Observe("b")
	window.Observe("c")
	// "d" evicts "a", the oldest entry.
	assert.False(t, window.Observe("d"))
	assert.Equal(t, 3, window.Len())

	assert.False(t, window.Observe("a"))
	assert.True(t, window.Observe("c"))
	assert.True(t, window.Observe("d"))
}

func TestSlidingWindow_LargeChurn(t *testing.T) {
	window := NewSlidingWindow(100)

	for i := 0; i < 1000; i++ {
		assert.False(t, window.Observe(fmt.Sprintf("id-%d", i)))
	}
	assert.Equal(t, 100, window.Len())

	// Only the most recent 100 remain.
	assert.True(t, window.Observe("id-999"))
	assert.False(t, window.Observe("id-0"))
}

func TestSlidingWindow_ZeroSize(t *testing.T) {
	window := NewSlidingWindow(0)

	assert.False(t, window.Observe("a"))
	assert.True(t, window.Observe("a"))
	assert.False(t, window.Observe("b"))
	assert.Equal(t, 1, window.Len())
}
