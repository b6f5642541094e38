package middleware

import (
	"context"

	"github.com/soundatlas/soundatlas/internal/auth"
)

// WithTestSession injects a session into the context. This is intended for
// handler-level unit tests that call handler methods directly, bypassing the
// auth middleware. Production code relies on Auth to populate this value.
func WithTestSession(ctx context.Context, session *auth.Session) context.Context {
	return context.WithValue(ctx, sessionKey, session)
}
