// Package auth carries the caller's bearer token from the transport
// boundary to the tool handlers through the request context.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/m4xw311/telegram-mcp/errors"
)

// ErrMissingBearer is returned when authentication is required but the
// request carried no usable Authorization header.
var ErrMissingBearer = errors.NewKind(errors.KindUnauthorized, "Missing Bearer token")

// tokenContextKey is the context key for the request token. An empty struct
// type cannot collide with keys from other packages.
type tokenContextKey struct{}

// WithToken stores the bearer token in the context. The empty token is a
// valid value: it selects the process-default session.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenContextKey{}, token)
}

// TokenFromContext reads the request token without consuming it. ok is
// false when no transport-level extraction ran for this request (stdio
// mode), which the session manager treats the same as the empty token.
func TokenFromContext(ctx context.Context) (token string, ok bool) {
	token, ok = ctx.Value(tokenContextKey{}).(string)
	return token, ok
}

// FromRequest extracts the bearer token from an HTTP request. Header lookup
// is case-insensitive per net/http canonicalisation; the scheme comparison
// is case-insensitive too.
func FromRequest(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	if token == "" {
		return "", false
	}
	return token, true
}

// HTTPContextFunc is installed on the streamable HTTP transport; it runs
// once per request and seeds the context slot read by the tool interceptor.
// Missing credentials are not rejected here: the interceptor decides, so
// that the policy is identical on every transport.
func HTTPContextFunc(ctx context.Context, r *http.Request) context.Context {
	if token, ok := FromRequest(r); ok {
		return WithToken(ctx, token)
	}
	return ctx
}

// Require returns the request token, failing when authentication is
// enforced and the transport provided none.
func Require(ctx context.Context, required bool) (string, error) {
	token, ok := TokenFromContext(ctx)
	if required && (!ok || token == "") {
		return "", ErrMissingBearer
	}
	return token, nil
}
