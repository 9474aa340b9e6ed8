package http

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"strings"
)

// DefaultCSPPolicy is the Content-Security-Policy set by NonceMiddleware.
// "{nonce}" is replaced with the request nonce.
const DefaultCSPPolicy = "script-src 'nonce-{nonce}' 'strict-dynamic'; object-src 'none'; base-uri 'none'"

type nonceKeyType struct{}

var nonceKey = nonceKeyType{}

// NonceFromContext returns the request's CSP nonce, or "".
func NonceFromContext(ctx context.Context) string {
	if nonce, ok := ctx.Value(nonceKey).(string); ok {
		return nonce
	}
	return ""
}

// ContextWithNonce returns a new context carrying nonce.
func ContextWithNonce(ctx context.Context, nonce string) context.Context {
	return context.WithValue(ctx, nonceKey, nonce)
}

// NonceMiddleware assigns every request a fresh CSP nonce and sets
// DefaultCSPPolicy on the response.
func NonceMiddleware(next http.Handler) http.Handler {
	return Nonce(DefaultCSPPolicy)(next)
}

// Nonce returns middleware that assigns a fresh nonce to each request and
// sets policy as the Content-Security-Policy header. An empty policy only
// assigns the nonce.
func Nonce(policy string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			nonce, err := generateNonce()
			if err != nil {
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if policy != "" {
				w.Header().Set("Content-Security-Policy", strings.ReplaceAll(policy, "{nonce}", nonce))
			}
			next.ServeHTTP(w, r.WithContext(ContextWithNonce(r.Context(), nonce)))
		})
	}
}

func generateNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}
