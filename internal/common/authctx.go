package common

import "context"

type ctxKey string

const (
	userIDKey        ctxKey = "auth/user-id"
	roleKey          ctxKey = "auth/role"
	sessionCartIDKey ctxKey = "cart/session-id"
)

// RoleAdmin is the role claim granting access to back-office routes.
const RoleAdmin = "admin"

// WithUserID stores the authenticated user identifier on the provided context.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserID extracts the authenticated user identifier from the context if present.
func UserID(ctx context.Context) (string, bool) {
	v := ctx.Value(userIDKey)
	if v == nil {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

// WithRole stores the caller's role claim.
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, roleKey, role)
}

// Role returns the caller's role claim, empty for anonymous callers.
func Role(ctx context.Context) string {
	role, _ := ctx.Value(roleKey).(string)
	return role
}

// WithSessionCartID stores the anonymous cart session identifier.
func WithSessionCartID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionCartIDKey, id)
}

// SessionCartID returns the anonymous cart session identifier if present.
func SessionCartID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionCartIDKey).(string)
	return id, ok && id != ""
}
