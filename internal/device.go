package internal

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

// fingerprintHeaders is the stable header subset hashed into a device
// fingerprint. Order matters.
var fingerprintHeaders = []string{
	"User-Agent",
	"Accept-Language",
	"Accept-Encoding",
	"X-Screen-Resolution",
	"X-Timezone",
}

// Fingerprint hashes the stable request headers into a hex sha256 digest.
// It is a heuristic binding, not proof of device identity.
func Fingerprint(h http.Header) string {
	parts := make([]string, len(fingerprintHeaders))
	for i, name := range fingerprintHeaders {
		parts[i] = strings.TrimSpace(h.Get(name))
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
