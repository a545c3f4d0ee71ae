package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/talenthub/apiserver/internal/services"
	"github.com/talenthub/apiserver/types"
)

// SearchHandler serves employer talent search.
type SearchHandler struct {
	searchService *services.SearchService
	audit         *services.AuditLogger
}

func NewSearchHandler(searchService *services.SearchService, audit *services.AuditLogger) *SearchHandler {
	return &SearchHandler{searchService: searchService, audit: audit}
}

// SearchRouter registers search routes, open to employers and recruiters.
func SearchRouter(r chi.Router, searchService *services.SearchService, audit *services.AuditLogger, authMiddleware func(http.Handler) http.Handler) {
	handler := NewSearchHandler(searchService, audit)

	r.Use(authMiddleware, RequireRoles(types.RoleEmployer, types.RoleRecruiter))
	r.Post("/talent/search", handler.SearchTalent)
}

func (h *SearchHandler) SearchTalent(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	var query types.SearchQuery
	if err := decodeJSON(r, &query); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.searchService.SearchTalent(r.Context(), query)
	if err != nil {
		writeServiceError(w, r, err, "Search failed")
		return
	}

	entry := auditEntry(r, &user.ID, services.AuditTalentSearched, "talent_search", nil)
	entry.Details = fmt.Sprintf("keywords=%q skills=%q results=%d", strings.Join(query.Keywords, " "), strings.Join(query.Skills, ","), result.Total)
	h.audit.Record(r.Context(), entry)
	writeJSON(w, http.StatusOK, result)
}
