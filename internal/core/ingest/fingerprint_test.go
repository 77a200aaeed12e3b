package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintDeterministic(t *testing.T) {
	a := Fingerprint([]byte("identical content"))
	b := Fingerprint([]byte("identical content"))
	assert.Equal(t, a, b)
	assert.Len(t, a, 64) // 256-bit digest, hex encoded
}

func TestFingerprintIsStrictEquality(t *testing.T) {
	base := Fingerprint([]byte("Some Content"))

	// No normalization of any kind: case, whitespace, and trailing bytes all
	// produce distinct fingerprints.
	assert.NotEqual(t, base, Fingerprint([]byte("some content")))
	assert.NotEqual(t, base, Fingerprint([]byte("Some  Content")))
	assert.NotEqual(t, base, Fingerprint([]byte("Some Content ")))
}

func TestFingerprintTextMatchesBytes(t *testing.T) {
	assert.Equal(t, Fingerprint([]byte("chunk text")), FingerprintText("chunk text"))
}
