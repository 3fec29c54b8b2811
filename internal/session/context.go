package session

import (
	"context"

	"attendance/internal/entity"
)

type ctxKey struct{}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s entity.Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session loaded for the current request, or an
// empty session.
func FromContext(ctx context.Context) entity.Session {
	s, _ := ctx.Value(ctxKey{}).(entity.Session)
	return s
}
