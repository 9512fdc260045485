package httpx

import (
	"context"
	"net/http"
)

type contextKey string

const (
	userKey      contextKey = "user"
	requestIDKey contextKey = "requestID"
)

// UserFrom returns the authenticated username, or "" for anonymous requests.
func UserFrom(r *http.Request) string {
	if v, ok := r.Context().Value(userKey).(string); ok {
		return v
	}
	return ""
}

// ContextWithUser stores the authenticated username.
func ContextWithUser(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, userKey, username)
}

// RequestIDFrom returns the request id set by RequestIDMiddleware.
func RequestIDFrom(r *http.Request) string {
	if r == nil {
		return ""
	}
	if v, ok := r.Context().Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}
