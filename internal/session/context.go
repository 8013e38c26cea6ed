package session

import "context"

type contextKey struct{}

// WithStore returns a copy of ctx carrying the request's profile store.
func WithStore(ctx context.Context, s *Store) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext extracts the profile store injected by the profile middleware.
func FromContext(ctx context.Context) (*Store, bool) {
	s, ok := ctx.Value(contextKey{}).(*Store)
	return s, ok && s != nil
}
