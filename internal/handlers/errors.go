package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/talenthub/apiserver/internal/auth"
	"github.com/talenthub/apiserver/internal/services"
)

// writeServiceError maps service errors to statuses. Anything unmapped is
// logged and answered with fallback as a 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var ve *services.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Message)
	case errors.Is(err, services.ErrDuplicateEmail):
		writeError(w, http.StatusBadRequest, "Email already registered")
	case errors.Is(err, services.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "Profile already exists")
	case errors.Is(err, services.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, services.ErrInvalidCredentials):
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, http.StatusUnauthorized, "Incorrect email or password")
	case errors.Is(err, auth.ErrUnauthenticated):
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, http.StatusUnauthorized, "Could not validate credentials")
	case errors.Is(err, services.ErrForbidden), errors.Is(err, auth.ErrForbidden):
		writeError(w, http.StatusForbidden, "Insufficient permissions")
	default:
		log.Printf("[Handlers] %s %s: %v", r.Method, r.URL.Path, err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}
