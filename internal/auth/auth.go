// Package auth implements the HMAC-SHA256 request authentication scheme
// shared by the upload server and client: every request carries an
// X-AUTH-KEY identifying the client, an X-AUTH-TS millisecond timestamp,
// and an X-AUTH-SIGNATURE that is HMAC-SHA256(secret, timestamp).
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strconv"
	"time"
)

const (
	headerKey       = "X-AUTH-KEY"
	headerTimestamp = "X-AUTH-TS"
	headerSignature = "X-AUTH-SIGNATURE"

	// DefaultMaxSkew is the default tolerance between a request's
	// X-AUTH-TS and the server's clock.
	DefaultMaxSkew = 5000 * time.Millisecond
)

// SecretLookup resolves a client key to its shared secret. It returns
// false if the key is unknown.
type SecretLookup func(key string) (secret string, ok bool)

// Middleware enforces the HMAC request scheme on every request it wraps.
type Middleware struct {
	lookup  SecretLookup
	maxSkew time.Duration
	now     func() time.Time
}

// New builds a Middleware that resolves client secrets via lookup and
// rejects requests whose timestamp is more than DefaultMaxSkew away from
// the current time.
func New(lookup SecretLookup) *Middleware {
	return &Middleware{lookup: lookup, maxSkew: DefaultMaxSkew, now: time.Now}
}

// WithMaxSkew overrides the default clock-skew tolerance.
func (m *Middleware) WithMaxSkew(d time.Duration) *Middleware {
	m.maxSkew = d
	return m
}

// Wrap returns next guarded by the authentication check: unauthenticated
// requests get a 401 and next is never called.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(headerKey)
		tsHeader := r.Header.Get(headerTimestamp)
		sigHeader := r.Header.Get(headerSignature)

		if key == "" {
			http.Error(w, "missing "+headerKey, http.StatusUnauthorized)
			return
		}
		if tsHeader == "" {
			http.Error(w, "missing "+headerTimestamp, http.StatusUnauthorized)
			return
		}
		if sigHeader == "" {
			http.Error(w, "missing "+headerSignature, http.StatusUnauthorized)
			return
		}

		secret, ok := m.lookup(key)
		if !ok {
			http.Error(w, "unknown key", http.StatusUnauthorized)
			return
		}

		expected := signHex(secret, tsHeader)
		if !constantTimeEqualHex(expected, sigHeader) {
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}

		timestampMillis, err := strconv.ParseInt(tsHeader, 10, 64)
		if err != nil {
			http.Error(w, "invalid "+headerTimestamp, http.StatusUnauthorized)
			return
		}
		age := m.now().UnixMilli() - timestampMillis
		if age < 0 {
			age = -age
		}
		if time.Duration(age)*time.Millisecond > m.maxSkew {
			http.Error(w, "expired timestamp", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Sign computes the X-AUTH-SIGNATURE header value for secret and a
// timestamp header value, the same computation the client performs before
// sending a request.
func Sign(secret, timestampMillis string) string {
	return signHex(secret, timestampMillis)
}

func signHex(secret, data string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

func constantTimeEqualHex(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
