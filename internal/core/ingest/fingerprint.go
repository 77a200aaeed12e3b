package ingest

import (
	"encoding/hex"

	"github.com/go-crypt/x/blake2b"
)

// Fingerprint returns a deterministic BLAKE2b-256 hash of the content, hex
// encoded. It is a strict-equality duplicate detector over the bytes as
// ingested: no case folding, no stemming. Identical content always produces
// an identical fingerprint.
func Fingerprint(content []byte) string {
	h, _ := blake2b.New(32, nil)
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

// FingerprintText is Fingerprint over a string, used for chunk text.
func FingerprintText(content string) string {
	return Fingerprint([]byte(content))
}
