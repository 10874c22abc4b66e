package chi

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"go.uber.org/zap"

	logpkg "github.com/kailas-cloud/prestadores/internal/logger"
)

// publicRoutes are reachable without a key.
var publicRoutes = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// keyring holds digests of the accepted API keys.
type keyring [][sha256.Size]byte

func newKeyring(apiKeys []string) keyring {
	var ring keyring
	for _, k := range apiKeys {
		if k = strings.TrimSpace(k); k != "" {
			ring = append(ring, sha256.Sum256([]byte(k)))
		}
	}
	return ring
}

// match reports whether token is one of the keys. Every key is compared.
func (ring keyring) match(token string) bool {
	digest := sha256.Sum256([]byte(token))
	found := 0
	for i := range ring {
		found |= subtle.ConstantTimeCompare(digest[:], ring[i][:])
	}
	return found == 1
}

// keyID is a short, log-safe fingerprint of a key.
func keyID(token string) string {
	digest := sha256.Sum256([]byte(token))
	return hex.EncodeToString(digest[:4])
}

// bearerToken extracts the credential from "Authorization: Bearer <token>".
// The scheme is case-insensitive.
func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// BearerAuthMiddleware rejects /v1 requests without a valid Bearer token.
// With no configured keys it passes everything through.
func BearerAuthMiddleware(apiKeys []string) func(http.Handler) http.Handler {
	ring := newKeyring(apiKeys)

	return func(next http.Handler) http.Handler {
		if len(ring) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := publicRoutes[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			if header == "" {
				writeError(w, http.StatusUnauthorized, codeUnauthorized, "missing authorization header")
				return
			}
			token, ok := bearerToken(header)
			if !ok {
				writeError(w, http.StatusUnauthorized, codeUnauthorized, "authorization header must use Bearer scheme")
				return
			}
			if !ring.match(token) {
				logpkg.FromContext(r.Context()).Warn("rejected api key", zap.String("key_id", keyID(token)))
				writeError(w, http.StatusUnauthorized, codeUnauthorized, "invalid api key")
				return
			}

			next.ServeHTTP(w, r.WithContext(logpkg.With(r.Context(), zap.String("key_id", keyID(token)))))
		})
	}
}
