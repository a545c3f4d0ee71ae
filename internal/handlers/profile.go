package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/talenthub/apiserver/internal/services"
	"github.com/talenthub/apiserver/types"
)

const (
	formFieldResume    = "file"
	maxMultipartMemory = 32 << 20
	multipartOverhead  = 1 << 20
)

// ProfileHandler serves the job seeker's own profile.
type ProfileHandler struct {
	profileService *services.ProfileService
	audit          *services.AuditLogger
	maxResumeBytes int64
}

func NewProfileHandler(profileService *services.ProfileService, audit *services.AuditLogger, maxResumeBytes int64) *ProfileHandler {
	return &ProfileHandler{profileService: profileService, audit: audit, maxResumeBytes: maxResumeBytes}
}

// ProfileRouter registers talent profile routes. Every route requires
// authentication; writes are limited to job seekers.
func ProfileRouter(
	r chi.Router,
	profileService *services.ProfileService,
	audit *services.AuditLogger,
	maxResumeBytes int64,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewProfileHandler(profileService, audit, maxResumeBytes)
	seekerOnly := RequireRoles(types.RoleJobSeeker)

	r.Use(authMiddleware)
	r.With(seekerOnly).Post("/", handler.CreateProfile)
	r.Get("/me", handler.GetMyProfile)
	r.With(seekerOnly).Put("/me", handler.UpdateMyProfile)
	r.With(seekerOnly).Post("/me/resume", handler.UploadResume)
}

func (h *ProfileHandler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	var req types.ProfileInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	profile, err := h.profileService.CreateProfile(r.Context(), user.ID, req)
	if err != nil {
		writeServiceError(w, r, err, "Failed to create profile")
		return
	}

	h.audit.Record(r.Context(), auditEntry(r, &user.ID, services.AuditProfileCreated, "talent_profile", &profile.ID))
	writeJSON(w, http.StatusCreated, profile)
}

func (h *ProfileHandler) GetMyProfile(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	profile, err := h.profileService.GetProfile(r.Context(), user.ID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Profile not found")
			return
		}
		writeServiceError(w, r, err, "Failed to load profile")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *ProfileHandler) UpdateMyProfile(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	var patch types.ProfilePatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	profile, err := h.profileService.UpdateProfile(r.Context(), user.ID, patch)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Profile not found")
			return
		}
		writeServiceError(w, r, err, "Failed to update profile")
		return
	}

	h.audit.Record(r.Context(), auditEntry(r, &user.ID, services.AuditProfileUpdated, "talent_profile", &profile.ID))
	writeJSON(w, http.StatusOK, profile)
}

// UploadResume accepts a multipart "file" part holding a PDF.
func (h *ProfileHandler) UploadResume(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxResumeBytes+multipartOverhead)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("file exceeds %d bytes", h.maxResumeBytes))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	upload, err := parseResumeFile(r.MultipartForm, h.maxResumeBytes)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ref, err := h.profileService.AttachResume(r.Context(), user.ID, upload)
	if err != nil {
		writeServiceError(w, r, err, "Failed to upload resume")
		return
	}

	h.audit.Record(r.Context(), auditEntry(r, &user.ID, services.AuditResumeUploaded, "resume", nil))
	writeJSON(w, http.StatusCreated, ResumeUploadResponse{ResumeURL: ref})
}

type ResumeUploadResponse struct {
	ResumeURL string `json:"resume_url"`
}

func parseResumeFile(form *multipart.Form, limit int64) (services.ResumeUpload, error) {
	if form == nil {
		return services.ResumeUpload{}, errors.New("missing form data")
	}

	files := form.File[formFieldResume]
	if len(files) == 0 {
		return services.ResumeUpload{}, errors.New("file is required")
	}
	if len(files) > 1 {
		return services.ResumeUpload{}, errors.New("only one file is allowed")
	}

	fileHeader := files[0]
	file, err := fileHeader.Open()
	if err != nil {
		return services.ResumeUpload{}, fmt.Errorf("failed to read file: %w", err)
	}

	data, err := readFileLimited(file, limit)
	_ = file.Close()
	if err != nil {
		return services.ResumeUpload{}, err
	}

	return services.ResumeUpload{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("file exceeds %d bytes", limit)
	}
	return data, nil
}
