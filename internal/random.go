package internal

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"
)

const (
	sessionEntropySize = 16
	csrfTokenSize      = 32
)

// NewSessionID returns an unguessable session identifier of the form
// sess_<unix-millis>_<32 hex chars>.
func NewSessionID(now time.Time) (string, error) {
	var raw [sessionEntropySize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return "sess_" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + hex.EncodeToString(raw[:]), nil
}

// NewCSRFToken returns 32 random bytes encoded as 64 hex characters.
func NewCSRFToken() (string, error) {
	var raw [csrfTokenSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw[:]), nil
}

// Clock supplies the current time. Tests substitute a fixed or stepping clock.
type Clock func() time.Time

// Now returns c() or time.Now when c is nil.
func (c Clock) Now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}
