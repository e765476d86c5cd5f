package server

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
)

type contextKey string

const principalKey contextKey = "principal"

// Principal identifies the caller of a request. Tokens are never kept; the
// principal carries a short fingerprint for logs instead.
type Principal struct {
	Fingerprint string
}

// PrincipalFrom returns the caller attached to ctx, if any.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// WithPrincipal attaches p to ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

type tokenSet struct {
	digests [][sha256.Size]byte
}

func newTokenSet(tokens []string) *tokenSet {
	ts := &tokenSet{}
	for _, t := range tokens {
		if t = strings.TrimSpace(t); t != "" {
			ts.digests = append(ts.digests, sha256.Sum256([]byte(t)))
		}
	}
	return ts
}

func (ts *tokenSet) enabled() bool { return len(ts.digests) > 0 }

func (ts *tokenSet) match(token string) (Principal, bool) {
	d := sha256.Sum256([]byte(token))
	found := 0
	for _, want := range ts.digests {
		found |= subtle.ConstantTimeCompare(d[:], want[:])
	}
	if found == 0 {
		return Principal{}, false
	}
	return Principal{Fingerprint: hex.EncodeToString(d[:4])}, true
}

// authenticate attaches a principal when the request carries a known bearer
// token. With no tokens configured every caller is the anonymous principal.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.tokens.enabled() {
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), Principal{Fingerprint: "anonymous"})))
			return
		}
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		p, ok := s.tokens.match(token)
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

func (s *Server) requirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := PrincipalFrom(r.Context()); !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="apiprompt"`)
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
