package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"pos/internal/models"
	"pos/internal/store"
)

type authContextKey struct{}

func AuthMiddleware(st store.Store, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicEndpoint(r) {
			next.ServeHTTP(w, r)
			return
		}
		sessionID := sessionIDFromRequest(r)
		if sessionID == "" {
			writeError(w, requestIDFromRequest(r), http.StatusUnauthorized, "unauthorized", "missing session")
			return
		}
		session, err := st.GetSession(r.Context(), sessionID)
		if err != nil {
			if errors.Is(err, store.ErrSessionNotFound) {
				writeError(w, requestIDFromRequest(r), http.StatusUnauthorized, "unauthorized", "invalid session")
				return
			}
			writeError(w, requestIDFromRequest(r), http.StatusInternalServerError, "internal_error", "internal server error")
			return
		}
		ctx := context.WithValue(r.Context(), authContextKey{}, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFromContext(ctx context.Context) (models.Session, bool) {
	value := ctx.Value(authContextKey{})
	if value == nil {
		return models.Session{}, false
	}
	session, ok := value.(models.Session)
	if !ok {
		return models.Session{}, false
	}
	return session, true
}

// requireRole enforces the endpoint's role gate. Superadmin passes every
// gate.
func requireRole(w http.ResponseWriter, r *http.Request, roles ...string) (models.Session, bool) {
	session, ok := sessionFromContext(r.Context())
	if !ok {
		writeError(w, requestIDFromRequest(r), http.StatusUnauthorized, "unauthorized", "missing session")
		return models.Session{}, false
	}
	if session.UserRole == models.RoleSuperAdmin {
		return session, true
	}
	for _, role := range roles {
		if session.UserRole == role {
			return session, true
		}
	}
	writeError(w, requestIDFromRequest(r), http.StatusForbidden, "access_denied", "role not allowed")
	return models.Session{}, false
}

func sessionIDFromRequest(r *http.Request) string {
	if token := bearerToken(r.Header.Get("Authorization")); token != "" {
		return token
	}
	if token := strings.TrimSpace(r.Header.Get("X-Session-ID")); token != "" {
		return token
	}
	if cookie, err := r.Cookie("sessionId"); err == nil {
		return strings.TrimSpace(cookie.Value)
	}
	return ""
}

func requestIDFromRequest(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Request-ID"))
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return ""
	}
	if strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return parts[1]
}

func isPublicEndpoint(r *http.Request) bool {
	switch r.URL.Path {
	case "/healthz":
		return true
	case "/api/auth/login":
		return r.Method == http.MethodPost
	default:
		return r.Method == http.MethodOptions
	}
}
