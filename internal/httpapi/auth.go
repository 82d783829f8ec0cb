package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"kioskpos/internal/models"
	"kioskpos/internal/store"
)

var (
	adminRoles   = []string{models.RoleAdmin}
	cashierRoles = []string{models.RoleAdmin, models.RoleCashier}
	staffRoles   = []string{models.RoleAdmin, models.RoleCashier, models.RoleKitchen}
)

type authContextKey struct{}

type authInfo struct {
	Session models.Session
	User    models.User
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      models.User `json:"user"`
}

// AuthMiddleware resolves the bearer token to a session and stores the user
// on the request context.
func AuthMiddleware(st store.AuthStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r.Header.Get("Authorization"))
			if token == "" {
				writeError(w, requestIDFromRequest(r), http.StatusUnauthorized, "unauthorized", "missing session")
				return
			}
			session, user, err := st.GetSession(r.Context(), token)
			if err != nil {
				if errors.Is(err, store.ErrSessionNotFound) {
					writeError(w, requestIDFromRequest(r), http.StatusUnauthorized, "unauthorized", "invalid session")
					return
				}
				writeError(w, requestIDFromRequest(r), http.StatusInternalServerError, "internal_error", "internal server error")
				return
			}
			ctx := context.WithValue(r.Context(), authContextKey{}, authInfo{Session: session, User: user})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func requireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info, ok := authFromContext(r.Context())
			if !ok {
				writeError(w, requestIDFromRequest(r), http.StatusUnauthorized, "unauthorized", "missing session")
				return
			}
			if !contains(roles, info.User.Role) {
				writeError(w, requestIDFromRequest(r), http.StatusForbidden, "access_denied", "role not allowed")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func authFromContext(ctx context.Context) (authInfo, bool) {
	value := ctx.Value(authContextKey{})
	if value == nil {
		return authInfo{}, false
	}
	info, ok := value.(authInfo)
	if !ok {
		return authInfo{}, false
	}
	return info, true
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	result, err := h.store.Login(r.Context(), store.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		TTL:      h.sessionTTL,
	})
	if err != nil {
		writeStoreError(w, requestIDFromRequest(r), err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     result.Session.Token,
		ExpiresAt: result.Session.ExpiresAt,
		User:      result.User,
	})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	info, ok := authFromContext(r.Context())
	if !ok {
		writeError(w, requestIDFromRequest(r), http.StatusUnauthorized, "unauthorized", "missing session")
		return
	}
	writeJSON(w, http.StatusOK, info.User)
}

func contains(values []string, value string) bool {
	for _, item := range values {
		if item == value {
			return true
		}
	}
	return false
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
