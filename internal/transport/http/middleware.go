package http

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"levelup-sidequest/internal/domain"
)

type principalKey struct{}

// PrincipalFrom returns the principal attached by the auth middleware, or nil.
func PrincipalFrom(ctx context.Context) *domain.Principal {
	p, _ := ctx.Value(principalKey{}).(*domain.Principal)
	return p
}

func withPrincipal(ctx context.Context, p *domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// requireGameUser rejects requests without a live game session.
// The token comes from the Authorization header, then the session cookie.
func (s *Server) requireGameUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := s.auth.Authenticate(r.Context(), s.token(r))
		if err != nil {
			writeError(w, s.logger, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), &principal)))
	})
}

func (s *Server) token(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if c, err := r.Cookie(s.opts.CookieName); err == nil {
		return c.Value
	}
	return ""
}

// requireAdmin checks the X-Admin-Key header. With no key configured admin routes are closed.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-Admin-Key")
		if s.opts.AdminKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(s.opts.AdminKey)) != 1 {
			writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
