package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/talenthub/apiserver/internal/services"
)

// AuthHandler provides registration, login and token refresh endpoints.
type AuthHandler struct {
	authService *services.AuthService
	audit       *services.AuditLogger
}

func NewAuthHandler(authService *services.AuthService, audit *services.AuditLogger) *AuthHandler {
	return &AuthHandler{authService: authService, audit: audit}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, authService *services.AuthService, audit *services.AuditLogger, authMiddleware func(http.Handler) http.Handler) {
	handler := NewAuthHandler(authService, audit)

	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.Post("/refresh", handler.Refresh)
	r.With(authMiddleware).Get("/me", handler.Me)
}

// Register creates a new account. It does not log the user in.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.authService.Register(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err, "Failed to register user")
		return
	}

	h.audit.Record(r.Context(), auditEntry(r, &user.ID, services.AuditUserRegistered, "user", &user.ID))
	writeJSON(w, http.StatusCreated, user)
}

// Login accepts OAuth2-style form fields username and password, or a JSON
// body with email (or username) and password.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if isJSON(r) {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.Username == "" {
			req.Username = req.Email
		}
	} else {
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid form body")
			return
		}
		req.Username = r.PostFormValue("username")
		req.Password = r.PostFormValue("password")
	}

	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	user, pair, err := h.authService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeServiceError(w, r, err, "Failed to authenticate")
		return
	}

	h.audit.Record(r.Context(), auditEntry(r, &user.ID, services.AuditUserLogin, "user", &user.ID))
	writeJSON(w, http.StatusOK, pair)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		writeError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	pair, err := h.authService.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeServiceError(w, r, err, "Failed to refresh token")
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// Me returns the current authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type LoginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}
