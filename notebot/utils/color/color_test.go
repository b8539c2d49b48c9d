package color

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisabledColorsArePlain(t *testing.T) {
	Disable()
	assert.Equal(t, "notebot> ", Prompt("notebot> "))
	assert.Equal(t, "🔍 Searching...", Status("🔍 Searching..."))
	assert.Equal(t, "done", Result("done"))
	assert.Equal(t, "careful", Warning("careful"))
	assert.Equal(t, "boom", Error("boom"))
}
