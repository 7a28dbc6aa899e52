package negocio

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Header carries the authenticated tenant id, set by the upstream auth
// layer after JWT verification.
const Header = "X-Negocio-ID"

// ErrorHandler renders resolution failures.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

type config struct {
	cache         Cache
	cacheTTL      time.Duration
	errorHandler  ErrorHandler
	requireActive bool
	skipPaths     []string
}

// Option configures the middleware.
type Option func(*config)

// WithCache replaces the default in-memory cache.
func WithCache(cache Cache, ttl time.Duration) Option {
	return func(c *config) {
		if cache != nil {
			c.cache = cache
		}
		if ttl > 0 {
			c.cacheTTL = ttl
		}
	}
}

// WithErrorHandler replaces the default plain-text error responses.
func WithErrorHandler(h ErrorHandler) Option {
	return func(c *config) {
		if h != nil {
			c.errorHandler = h
		}
	}
}

// WithSkipPaths disables resolution for the given path prefixes.
func WithSkipPaths(prefixes ...string) Option {
	return func(c *config) {
		c.skipPaths = append(c.skipPaths, prefixes...)
	}
}

// WithoutActiveCheck allows inactive negocios through; the access gate is
// then responsible for blocking them with a descriptive response.
func WithoutActiveCheck() Option {
	return func(c *config) {
		c.requireActive = false
	}
}

// Middleware resolves the authenticated negocio and stores it in the request
// context. Requests without the identity header pass through untouched;
// downstream middleware decides whether that is acceptable.
func Middleware(provider Provider, opts ...Option) func(http.Handler) http.Handler {
	if provider == nil {
		panic("negocio: Provider is required")
	}

	cfg := &config{
		cache:         NewInMemoryCache(),
		cacheTTL:      5 * time.Minute,
		errorHandler:  defaultErrorHandler,
		requireActive: true,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, skip := range cfg.skipPaths {
				if strings.HasPrefix(r.URL.Path, skip) {
					next.ServeHTTP(w, r)
					return
				}
			}

			raw := r.Header.Get(Header)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			id, err := uuid.Parse(raw)
			if err != nil {
				cfg.errorHandler(w, r, ErrInvalidIdentifier)
				return
			}

			if cached, ok := cfg.cache.Get(r.Context(), raw); ok {
				if cfg.requireActive && !cached.Activo {
					cfg.errorHandler(w, r, ErrNegocioInactivo)
					return
				}
				next.ServeHTTP(w, r.WithContext(WithNegocio(r.Context(), cached)))
				return
			}

			n, err := provider.GetByID(r.Context(), id)
			if err != nil {
				cfg.errorHandler(w, r, err)
				return
			}

			if cfg.requireActive && !n.Activo {
				cfg.errorHandler(w, r, ErrNegocioInactivo)
				return
			}

			cfg.cache.Set(r.Context(), raw, n, cfg.cacheTTL)
			next.ServeHTTP(w, r.WithContext(WithNegocio(r.Context(), n)))
		})
	}
}

// RequireNegocio ensures a negocio is present in the context.
func RequireNegocio(errorHandler ErrorHandler) func(http.Handler) http.Handler {
	if errorHandler == nil {
		errorHandler = defaultErrorHandler
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if n, ok := FromContext(r.Context()); !ok || n == nil {
				errorHandler(w, r, ErrNoNegocioInContext)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func defaultErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNegocioNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrInvalidIdentifier), errors.Is(err, ErrNoNegocioInContext):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNegocioInactivo):
		http.Error(w, err.Error(), http.StatusForbidden)
	default:
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
