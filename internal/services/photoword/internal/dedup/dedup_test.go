package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint(t *testing.T) {
	d := Fingerprint([]byte("abc"))

	assert.Equal(t, Digest("ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"), d)
	assert.Equal(t, d, Fingerprint([]byte("abc")))
	assert.Len(t, d.String(), 64)
	assert.Equal(t, "ba7816bf8f01", d.Short())
}

func TestFingerprint_SingleBitSensitivity(t *testing.T) {
	data := []byte{0x10, 0x20, 0x30, 0x40}
	base := Fingerprint(data)

	for i := range data {
		for bit := 0; bit < 8; bit++ {
			flipped := append([]byte(nil), data...)
			flipped[i] ^= 1 << bit
			assert.NotEqual(t, base, Fingerprint(flipped), "byte %d bit %d", i, bit)
		}
	}
}

func TestShouldProcess(t *testing.T) {
	a := Fingerprint([]byte("a"))
	b := Fingerprint([]byte("b"))

	assert.True(t, ShouldProcess(a, ""))
	assert.True(t, ShouldProcess(a, b))
	assert.False(t, ShouldProcess(a, a))
}
