package util

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Fingerprint computes a stable hash for a finding key
func Fingerprint(detector, contract, function string, line int, context string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%d|%s", detector, contract, function, line, Compact(context))
	return hex.EncodeToString(h.Sum(nil))[:32]
}
