package receipt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompose_AssociativeAndCommutative(t *testing.T) {
	a := Receipt{Ticks: 3, Lanes: 1, SpanID: 0xAA, Hash: 0x01}
	b := Receipt{Ticks: 7, Lanes: 2, SpanID: 0xBB, Hash: 0x02}
	c := Receipt{Ticks: 5, Lanes: 3, SpanID: 0xCC, Hash: 0x04}

	assert.Equal(t, Compose(a, b), Compose(b, a), "commutative")
	assert.Equal(t, Compose(Compose(a, b), c), Compose(a, Compose(b, c)), "associative")
}

func TestCompose_ZeroIsIdentity(t *testing.T) {
	a := Receipt{Ticks: 3, Lanes: 1, SpanID: 0xAA, Hash: 0x01}
	assert.Equal(t, a, Compose(a, Zero))
	assert.Equal(t, a, Compose(Zero, a))
}

func TestReceipt_IsZero(t *testing.T) {
	assert.True(t, Zero.IsZero())
	assert.False(t, Receipt{Ticks: 1}.IsZero())
}

func TestContentHash_DeterministicAndSensitive(t *testing.T) {
	h1 := ContentHash(1, 2, 3, 4, 5)
	h2 := ContentHash(1, 2, 3, 4, 5)
	assert.Equal(t, h1, h2)

	h3 := ContentHash(1, 2, 3, 4, 6)
	assert.NotEqual(t, h1, h3)
}
