// Package auth guards the HTTP transports of the catalog server.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/sha1n/mcp-repo-catalog/internal/config"
)

// APIKeyHeader carries an API key. A bearer token in Authorization is also accepted.
const APIKeyHeader = "X-API-Key"

const realm = "repocat"

// PublicPaths are served without credentials.
var PublicPaths = []string{"/health"}

// verifier checks the credentials of a request and describes how to supply them.
type verifier interface {
	verify(r *http.Request) bool
	challenge() string
}

type basicVerifier struct {
	username []byte
	password []byte
}

func (b basicVerifier) verify(r *http.Request) bool {
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	userMatch := subtle.ConstantTimeCompare([]byte(user), b.username)
	passMatch := subtle.ConstantTimeCompare([]byte(pass), b.password)
	return userMatch&passMatch == 1
}

func (basicVerifier) challenge() string {
	return fmt.Sprintf("Basic realm=%q", realm)
}

type keyVerifier struct {
	keys [][]byte
}

// verify compares against every configured key so timing does not reveal which one matched
func (k keyVerifier) verify(r *http.Request) bool {
	presented := requestKey(r)
	if presented == "" {
		return false
	}
	match := 0
	for _, key := range k.keys {
		match |= subtle.ConstantTimeCompare([]byte(presented), key)
	}
	return match == 1
}

func (keyVerifier) challenge() string {
	return fmt.Sprintf("Bearer realm=%q", realm)
}

func requestKey(r *http.Request) string {
	if key := r.Header.Get(APIKeyHeader); key != "" {
		return key
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// newVerifier returns nil when authentication is disabled
func newVerifier(settings config.AuthSettings) (verifier, error) {
	switch settings.Type {
	case config.AuthTypeNone, "":
		return nil, nil
	case config.AuthTypeBasic:
		if settings.Basic.Username == "" || settings.Basic.Password == "" {
			return nil, errors.New("basic auth requires non-empty username and password")
		}
		return basicVerifier{username: []byte(settings.Basic.Username), password: []byte(settings.Basic.Password)}, nil
	case config.AuthTypeAPIKey:
		var keys [][]byte
		for _, k := range settings.APIKeys {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, []byte(k))
			}
		}
		if len(keys) == 0 {
			return nil, errors.New("apikey auth requires at least one API key")
		}
		return keyVerifier{keys: keys}, nil
	default:
		return nil, fmt.Errorf("unknown auth type: %s", settings.Type)
	}
}

// NewMiddleware returns a middleware that rejects requests to the MCP transports
// without valid credentials. PublicPaths stay open for liveness checks.
func NewMiddleware(settings config.AuthSettings) (func(http.Handler) http.Handler, error) {
	v, err := newVerifier(settings)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return func(next http.Handler) http.Handler { return next }, nil
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if slices.Contains(PublicPaths, r.URL.Path) || v.verify(r) {
				next.ServeHTTP(w, r)
				return
			}
			slog.Debug("Rejected unauthenticated request", "path", r.URL.Path, "remote", r.RemoteAddr)
			w.Header().Set("WWW-Authenticate", v.challenge())
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
		})
	}, nil
}
