package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectionToggle(t *testing.T) {
	s := newSelection()

	assert.True(t, s.toggle(7))
	assert.True(t, s.toggle(3))
	assert.Equal(t, []int{3, 7}, s.ids())

	assert.False(t, s.toggle(7))
	assert.Equal(t, []int{3}, s.ids())
	assert.True(t, s.contains(3))
	assert.False(t, s.contains(7))
}

func TestSelectionClear(t *testing.T) {
	s := newSelection()
	s.toggle(1)
	s.toggle(2)

	s.clear()
	assert.Zero(t, s.size())
	assert.Empty(t, s.ids())
}

// The verdict on a selection always comes from the live engine, so any
// change to the engine between toggles is reflected immediately.
func TestValidityNeverStale(t *testing.T) {
	h := newHarness(t)
	h.session.Start()

	verdict := true
	h.eng.legal = func(cards []int) bool { return verdict }

	_, valid := h.session.Toggle(4)
	assert.True(t, valid)

	verdict = false
	assert.False(t, h.session.Validity())

	_, valid = h.session.Toggle(9)
	assert.False(t, valid)
}

// The empty selection is a real input meaning "pass" and must be passed
// through to the engine, not special-cased.
func TestEmptySelectionIsPass(t *testing.T) {
	h := newHarness(t)
	h.session.Start()

	var asked [][]int
	h.eng.legal = func(cards []int) bool {
		asked = append(asked, append([]int(nil), cards...))
		return len(cards) == 0
	}

	assert.True(t, h.session.Validity())
	assert.NotEmpty(t, asked)
	assert.Empty(t, asked[len(asked)-1])
}
