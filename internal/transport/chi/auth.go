package chi

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// APIKeyHeader is accepted as an alternative to "Authorization: Bearer".
const APIKeyHeader = "X-API-Key"

// APIKeyAuth returns a middleware that requires one of apiKeys on every route except
// /health and /metrics. Blank keys are ignored; with none left, auth is off.
func APIKeyAuth(apiKeys []string) func(http.Handler) http.Handler {
	var keys [][]byte
	for _, k := range apiKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, []byte(k))
		}
	}

	return func(next http.Handler) http.Handler {
		if len(keys) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/health", "/metrics":
				next.ServeHTTP(w, r)
				return
			}

			token, problem := presentedKey(r)
			if problem == "" && !knownKey(keys, []byte(token)) {
				problem = "invalid api key"
			}
			if problem != "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="exifdex"`)
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, problem)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// presentedKey extracts the caller's key. The Bearer scheme name is case-insensitive.
func presentedKey(r *http.Request) (token, problem string) {
	if key := r.Header.Get(APIKeyHeader); key != "" {
		return key, ""
	}
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", "missing api key"
	}
	scheme, token, ok := strings.Cut(auth, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", "authorization header must use Bearer scheme"
	}
	return strings.TrimSpace(token), ""
}

func knownKey(keys [][]byte, token []byte) bool {
	found := 0
	for _, k := range keys {
		found |= subtle.ConstantTimeCompare(k, token)
	}
	return found == 1
}
