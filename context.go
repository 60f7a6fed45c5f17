package portal

import "context"

type ctxKey string

const (
	ctxKeyIdentity ctxKey = "portal_identity"
	ctxKeyNotifier ctxKey = "portal_notifier"
)

// WithIdentity stores the current session identity in the context.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity, id)
}

// IdentityFromContext extracts the session identity from the context.
func IdentityFromContext(ctx context.Context) *Identity {
	v, _ := ctx.Value(ctxKeyIdentity).(*Identity)
	return v
}

// RoleFromContext returns the role of the identity in the context, or "".
func RoleFromContext(ctx context.Context) Role {
	if id := IdentityFromContext(ctx); id != nil {
		return id.Role
	}
	return ""
}

// WithNotifier stores a Notifier in the context.
func WithNotifier(ctx context.Context, n Notifier) context.Context {
	return context.WithValue(ctx, ctxKeyNotifier, n)
}

// NotifierFromContext extracts the Notifier from the context, or nil.
func NotifierFromContext(ctx context.Context) Notifier {
	v, _ := ctx.Value(ctxKeyNotifier).(Notifier)
	return v
}
