package httpx

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/splax/taskhub/internal/domain"
)

type authContextKey string

const contextKeyPrincipal authContextKey = "taskhub-principal"

type contextSetter interface {
	SetContext(context.Context)
}

// requireAuth ensures the request has a valid bearer token before invoking the handler.
func (r *Router) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ctx, ok := r.ensureAuth(w, req)
		if !ok {
			return
		}
		if setter, ok := w.(contextSetter); ok {
			setter.SetContext(ctx)
		}
		next(w, req.WithContext(ctx))
	}
}

// ensureAuth validates the Authorization header and attaches the principal
// to the context.
func (r *Router) ensureAuth(w http.ResponseWriter, req *http.Request) (context.Context, bool) {
	token, err := bearerToken(req.Header.Get("Authorization"))
	if err != nil {
		r.logger.Warn("authorization header invalid", "error", err, "path", req.URL.Path)
		r.writeError(w, req, err)
		return req.Context(), false
	}
	principal, err := r.auth.Authorize(req.Context(), token)
	if err != nil {
		r.logger.Warn("token validation failed", "error", err, "path", req.URL.Path)
		r.writeError(w, req, err)
		return req.Context(), false
	}
	return context.WithValue(req.Context(), contextKeyPrincipal, principal), true
}

// principalFromContext extracts the authenticated principal.
func principalFromContext(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(contextKeyPrincipal).(domain.Principal)
	return p, ok
}

// principal returns the request's principal, or the zero principal which
// every service rejects as unauthenticated.
func principal(req *http.Request) domain.Principal {
	p, _ := principalFromContext(req.Context())
	return p
}

var (
	errMissingAuthHeader = fmt.Errorf("%w: missing authorization header", domain.ErrUnauthenticated)
	errBadAuthHeader     = fmt.Errorf("%w: invalid authorization header format", domain.ErrUnauthenticated)
)

func bearerToken(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", errMissingAuthHeader
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errBadAuthHeader
	}
	return parts[1], nil
}
