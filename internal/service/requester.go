package service

import "context"

type requesterKey struct{}

// WithRequester stores the authenticated user ID on ctx
func WithRequester(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, requesterKey{}, userID)
}

// RequesterFrom returns the authenticated user ID, or nil for anonymous requests
func RequesterFrom(ctx context.Context) *int64 {
	if id, ok := ctx.Value(requesterKey{}).(int64); ok {
		return &id
	}
	return nil
}
