package negocio

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

type contextKey struct{}

// WithNegocio adds a negocio to the context.
func WithNegocio(ctx context.Context, n *Negocio) context.Context {
	return context.WithValue(ctx, contextKey{}, n)
}

// FromContext retrieves the negocio from the context.
func FromContext(ctx context.Context) (*Negocio, bool) {
	n, ok := ctx.Value(contextKey{}).(*Negocio)
	return n, ok
}

// IDFromContext retrieves just the negocio ID from the context.
func IDFromContext(ctx context.Context) (uuid.UUID, bool) {
	n, ok := FromContext(ctx)
	if !ok || n == nil {
		return uuid.UUID{}, false
	}
	return n.ID, true
}

// MustFromContext retrieves the negocio from the context, panicking when
// absent. Only for handlers behind the resolution middleware.
func MustFromContext(ctx context.Context) *Negocio {
	n, ok := FromContext(ctx)
	if !ok || n == nil {
		panic("negocio: no negocio in context")
	}
	return n
}

// LoggerExtractor injects the negocio id into log records.
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		if id, ok := IDFromContext(ctx); ok {
			return slog.String("negocio_id", id.String()), true
		}
		return slog.Attr{}, false
	}
}
