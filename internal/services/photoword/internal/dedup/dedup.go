// Package dedup fingerprints image content so a session can skip an image it
// has just processed.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
)

// Digest is the lowercase hex SHA-256 of an image's raw bytes.
type Digest string

func Fingerprint(data []byte) Digest {
	sum := sha256.Sum256(data)
	return Digest(hex.EncodeToString(sum[:]))
}

// ShouldProcess reports whether d differs from the session's last processed
// digest. An empty last digest never matches.
func ShouldProcess(d, last Digest) bool {
	return last == "" || d != last
}

func (d Digest) String() string {
	return string(d)
}

// Short returns a prefix suitable for log lines.
func (d Digest) Short() string {
	if len(d) <= 12 {
		return string(d)
	}
	return string(d[:12])
}
