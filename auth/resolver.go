// Package auth resolves caller identity for the HTTP surface and hands
// git access tokens to the async workers. OPTIX itself has no account
// system: an upstream gateway authenticates and forwards the identity in
// headers.
package auth

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/teranos/OPTIX/errors"
)

// ErrUnauthenticated indicates the request carried no identity at all.
// The HTTP layer maps this to 401, unlike ownership failures which
// surface as 404.
var ErrUnauthenticated = errors.New("no identity on request")

// Identity is the resolved caller of one request.
type Identity struct {
	UserID int64
	// Token is the caller's git access token, when one was forwarded
	Token string
}

// Resolver extracts the caller identity from a request.
type Resolver interface {
	Resolve(r *http.Request) (*Identity, error)
}

// TokenSource hands out git tokens for background work. Workers resolve
// the token at clone time; nothing is ever written to the job row or any
// other durable store.
type TokenSource interface {
	GitToken(userID int64) string
}

// StaticToken is a TokenSource that returns one fixed token for every
// user. The CLI uses it with the operator's configured token.
type StaticToken string

// GitToken implements TokenSource
func (s StaticToken) GitToken(int64) string {
	return string(s)
}

// HeaderResolver reads X-User-ID (required) and X-Git-Token (optional)
// from request headers. Tokens seen on requests are remembered in memory
// per user so that jobs enqueued now can clone later, after the request
// that carried the token has finished.
type HeaderResolver struct {
	tokens sync.Map // userID int64 -> token string
}

// NewHeaderResolver creates a header-based resolver
func NewHeaderResolver() *HeaderResolver {
	return &HeaderResolver{}
}

// Resolve implements Resolver
func (h *HeaderResolver) Resolve(r *http.Request) (*Identity, error) {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		return nil, ErrUnauthenticated
	}

	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, errors.InvalidInputf("malformed X-User-ID %q", raw)
	}

	token := r.Header.Get("X-Git-Token")
	if token != "" {
		h.tokens.Store(userID, token)
	}

	return &Identity{UserID: userID, Token: token}, nil
}

// GitToken implements TokenSource with the most recent token forwarded
// for the user, or empty for anonymous access.
func (h *HeaderResolver) GitToken(userID int64) string {
	if v, ok := h.tokens.Load(userID); ok {
		return v.(string)
	}
	return ""
}
