package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/talenthub/apiserver/internal/services"
	"github.com/talenthub/apiserver/types"
)

type AdminHandler struct {
	complianceService *services.ComplianceService
	audit             *services.AuditLogger
}

func NewAdminHandler(complianceService *services.ComplianceService, audit *services.AuditLogger) *AdminHandler {
	return &AdminHandler{complianceService: complianceService, audit: audit}
}

// AdminRouter registers admin-only routes.
func AdminRouter(r chi.Router, complianceService *services.ComplianceService, audit *services.AuditLogger, authMiddleware func(http.Handler) http.Handler) {
	handler := NewAdminHandler(complianceService, audit)

	r.Use(authMiddleware, RequireRoles(types.RoleAdmin))
	r.Post("/compliance/retention", handler.EnforceRetention)
}

func (h *AdminHandler) EnforceRetention(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	deleted, err := h.complianceService.EnforceRetention(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "Failed to enforce retention")
		return
	}

	h.audit.Record(r.Context(), auditEntry(r, &user.ID, services.AuditRetentionPurged, "audit_log", nil))
	writeJSON(w, http.StatusOK, RetentionResponse{Deleted: deleted})
}

type RetentionResponse struct {
	Deleted int64 `json:"deleted"`
}
