package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync"
)

type contextKey string

const (
	TokenKey    contextKey = "bearer_token"
	identityKey contextKey = "identity"
)

// identity is filled in by handlers once the token has been resolved, so
// outer middleware can tag logs and events with the user.
type identity struct {
	mu     sync.Mutex
	userID string
}

// OptionalBearer stores the bearer token, if any, in the request context.
// Requests without a token are not rejected: anonymous chat is allowed and
// only loses the memory context.
func OptionalBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), identityKey, &identity{})
		if token := BearerToken(r); token != "" {
			ctx = context.WithValue(ctx, TokenKey, token)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if len(authHeader) < 7 || !strings.EqualFold(authHeader[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(authHeader[7:])
}

// GetToken returns the bearer token from context.
func GetToken(ctx context.Context) string {
	token, _ := ctx.Value(TokenKey).(string)
	return token
}

// SetUserID records the resolved user for the current request.
func SetUserID(ctx context.Context, userID string) {
	if id, ok := ctx.Value(identityKey).(*identity); ok {
		id.mu.Lock()
		id.userID = userID
		id.mu.Unlock()
	}
}

// GetUserID returns the user recorded with SetUserID.
func GetUserID(ctx context.Context) string {
	id, ok := ctx.Value(identityKey).(*identity)
	if !ok {
		return ""
	}
	id.mu.Lock()
	defer id.mu.Unlock()
	return id.userID
}
