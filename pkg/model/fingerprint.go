package model

import (
	"encoding/hex"
	"encoding/json"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint hashes a snapshot without its timestamp, so two collections of
// an unchanged device and network produce the same value.
func Fingerprint(s Snapshot) string {
	b, err := json.Marshal(s.WithoutTimestamp())
	if err != nil {
		return ""
	}
	sum := blake2b.Sum256(b)
	return hex.EncodeToString(sum[:])
}
