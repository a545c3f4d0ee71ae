package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/talenthub/apiserver/internal/mq"
	"github.com/talenthub/apiserver/internal/storage"
	"github.com/talenthub/apiserver/internal/store"
	"github.com/talenthub/apiserver/types"
)

const pdfContentType = "application/pdf"

// ProfileRepository defines persistence operations for talent profiles.
type ProfileRepository interface {
	Create(ctx context.Context, profile types.TalentProfile) (types.TalentProfile, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (types.TalentProfile, error)
	GetByID(ctx context.Context, id uuid.UUID) (types.TalentProfile, error)
	Update(ctx context.Context, userID uuid.UUID, patch types.ProfilePatch) (types.TalentProfile, error)
	SetResume(ctx context.Context, userID uuid.UUID, ref string) (types.TalentProfile, error)
}

// ResumeStore is the object store used for resume files.
type ResumeStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	Reference(key string) string
	KeyOf(ref string) (string, bool)
}

// ResumeUpload is a resume file received from a client.
type ResumeUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ProfileService implements the job seeker profile use cases.
type ProfileService struct {
	profiles ProfileRepository
	resumes  ResumeStore
	notifier *Notifier
	logger   *log.Logger
	validate *validator.Validate
	now      func() time.Time
}

func NewProfileService(profiles ProfileRepository, resumes ResumeStore, notifier *Notifier, logger *log.Logger) *ProfileService {
	return &ProfileService{
		profiles: profiles,
		resumes:  resumes,
		notifier: notifier,
		logger:   logger,
		validate: newValidator(time.Now),
		now:      time.Now,
	}
}

// CreateProfile stores the user's first profile.
func (s *ProfileService) CreateProfile(ctx context.Context, userID uuid.UUID, in types.ProfileInput) (types.TalentProfile, error) {
	in = normalizeProfileInput(in)
	if len(in.Skills) == 0 {
		return types.TalentProfile{}, invalid("at least one skill is required")
	}
	if err := s.validate.Struct(in); err != nil {
		return types.TalentProfile{}, validationError(err)
	}
	if err := checkExperience(in.Experience); err != nil {
		return types.TalentProfile{}, err
	}

	if _, err := s.profiles.GetByUserID(ctx, userID); err == nil {
		return types.TalentProfile{}, ErrAlreadyExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.TalentProfile{}, fmt.Errorf("check profile: %w", err)
	}

	profile, err := s.profiles.Create(ctx, types.TalentProfile{
		UserID:     userID,
		FirstName:  in.FirstName,
		LastName:   in.LastName,
		Email:      in.Email,
		Phone:      in.Phone,
		Summary:    in.Summary,
		ResumeURL:  in.ResumeURL,
		Visibility: in.Visibility,
		Skills:     in.Skills,
		Experience: in.Experience,
		Education:  in.Education,
		Locations:  in.Locations,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return types.TalentProfile{}, ErrAlreadyExists
		}
		return types.TalentProfile{}, fmt.Errorf("create profile: %w", err)
	}

	s.notifyReindex(profile)
	return profile, nil
}

// UpdateProfile applies a merge-patch. An empty patch only refreshes
// updated_at.
func (s *ProfileService) UpdateProfile(ctx context.Context, userID uuid.UUID, patch types.ProfilePatch) (types.TalentProfile, error) {
	patch = normalizeProfilePatch(patch)
	if patch.Skills != nil && len(*patch.Skills) == 0 {
		return types.TalentProfile{}, invalid("skills must not be empty")
	}
	if err := s.validate.Struct(patch); err != nil {
		return types.TalentProfile{}, validationError(err)
	}
	if patch.Experience != nil {
		if err := checkExperience(*patch.Experience); err != nil {
			return types.TalentProfile{}, err
		}
	}

	profile, err := s.profiles.Update(ctx, userID, patch)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.TalentProfile{}, ErrNotFound
		}
		return types.TalentProfile{}, fmt.Errorf("update profile: %w", err)
	}

	s.notifyReindex(profile)
	return profile, nil
}

func (s *ProfileService) GetProfile(ctx context.Context, userID uuid.UUID) (types.TalentProfile, error) {
	profile, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.TalentProfile{}, ErrNotFound
		}
		return types.TalentProfile{}, fmt.Errorf("load profile: %w", err)
	}
	return profile, nil
}

// AttachResume stores a PDF resume and returns its reference. The reference
// is recorded on the user's profile when one exists, and a parse
// notification is sent without waiting for it.
func (s *ProfileService) AttachResume(ctx context.Context, userID uuid.UUID, upload ResumeUpload) (string, error) {
	if len(upload.Data) == 0 {
		return "", invalid("resume file is empty")
	}
	mediaType, _, err := mime.ParseMediaType(upload.ContentType)
	if err != nil || mediaType != pdfContentType {
		return "", invalid("resume must be a PDF (application/pdf)")
	}
	if !mimetype.Detect(upload.Data).Is(pdfContentType) {
		return "", invalid("resume content is not a PDF")
	}

	var previous string
	if existing, err := s.profiles.GetByUserID(ctx, userID); err == nil && existing.ResumeURL != nil {
		previous = *existing.ResumeURL
	}

	key := storage.ResumeKey(userID.String(), uuid.NewString(), upload.Filename)
	if err := s.resumes.Put(ctx, key, bytes.NewReader(upload.Data), int64(len(upload.Data)), pdfContentType); err != nil {
		return "", fmt.Errorf("%w: store resume: %w", ErrDependency, err)
	}
	ref := s.resumes.Reference(key)

	profile, err := s.profiles.SetResume(ctx, userID, ref)
	switch {
	case err == nil:
		s.discardPreviousResume(ctx, userID, previous)
		s.notifyReindex(profile)
	case errors.Is(err, store.ErrNotFound):
		if s.logger != nil {
			s.logger.Printf("[ProfileService] resume %s stored for user %s without a profile", key, userID)
		}
	default:
		s.deleteResume(ctx, key)
		return "", fmt.Errorf("record resume: %w", err)
	}

	s.notifier.Notify(mq.ChannelResumeParse, mq.ResumeParseEvent{
		UserID:     userID,
		ObjectKey:  key,
		Reference:  ref,
		OccurredAt: s.now().UTC(),
	})
	return ref, nil
}

// discardPreviousResume removes the object a replaced reference pointed
// at. References outside the user's own resume prefix are left alone.
func (s *ProfileService) discardPreviousResume(ctx context.Context, userID uuid.UUID, previous string) {
	if previous == "" {
		return
	}
	key, ok := s.resumes.KeyOf(previous)
	if !ok || !strings.HasPrefix(key, storage.ResumePrefix(userID.String())) {
		return
	}
	s.deleteResume(ctx, key)
}

func (s *ProfileService) deleteResume(ctx context.Context, key string) {
	if err := s.resumes.Delete(context.WithoutCancel(ctx), key); err != nil && s.logger != nil {
		s.logger.Printf("[ProfileService] failed to delete resume %s: %v", key, err)
	}
}

func (s *ProfileService) notifyReindex(profile types.TalentProfile) {
	s.notifier.Notify(mq.ChannelProfileReindex, mq.ProfileReindexEvent{
		ProfileID:  profile.ID,
		UserID:     profile.UserID,
		OccurredAt: s.now().UTC(),
	})
}

// checkExperience enforces what struct tags cannot: a start date on every
// entry and end dates that do not precede it.
func checkExperience(entries []types.Experience) error {
	for i, e := range entries {
		if e.StartDate.IsZero() {
			return invalid(fmt.Sprintf("experience[%d].start_date is required", i))
		}
		if e.EndDate != nil && !e.EndDate.IsZero() && e.EndDate.Before(e.StartDate.Time) {
			return invalid(fmt.Sprintf("experience[%d].end_date must not be before start_date", i))
		}
	}
	return nil
}

// normalizeSkills trims names and drops blanks and case-insensitive
// duplicates, keeping the first spelling.
func normalizeSkills(skills []string) []string {
	seen := make(map[string]bool, len(skills))
	out := make([]string, 0, len(skills))
	for _, skill := range skills {
		skill = strings.TrimSpace(skill)
		if skill == "" {
			continue
		}
		key := strings.ToLower(skill)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, skill)
	}
	return out
}

func normalizeProfileInput(in types.ProfileInput) types.ProfileInput {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = trimOptional(in.Phone)
	in.Summary = trimOptional(in.Summary)
	in.ResumeURL = trimOptional(in.ResumeURL)
	if in.Visibility == "" {
		in.Visibility = types.VisibilityPublic
	}
	in.Skills = normalizeSkills(in.Skills)
	in.Experience = normalizeExperience(in.Experience)
	in.Education = normalizeEducation(in.Education)
	in.Locations = normalizeLocations(in.Locations)
	return in
}

func normalizeProfilePatch(p types.ProfilePatch) types.ProfilePatch {
	p.FirstName = trimPtr(p.FirstName)
	p.LastName = trimPtr(p.LastName)
	p.Email = trimPtr(p.Email)
	p.Phone = trimPtr(p.Phone)
	p.Summary = trimPtr(p.Summary)
	p.ResumeURL = trimPtr(p.ResumeURL)
	if p.Skills != nil {
		skills := normalizeSkills(*p.Skills)
		p.Skills = &skills
	}
	if p.Experience != nil {
		entries := normalizeExperience(*p.Experience)
		p.Experience = &entries
	}
	if p.Education != nil {
		entries := normalizeEducation(*p.Education)
		p.Education = &entries
	}
	if p.Locations != nil {
		entries := normalizeLocations(*p.Locations)
		p.Locations = &entries
	}
	return p
}

func normalizeExperience(entries []types.Experience) []types.Experience {
	out := make([]types.Experience, len(entries))
	for i, e := range entries {
		e.Company = strings.TrimSpace(e.Company)
		e.Title = strings.TrimSpace(e.Title)
		e.Description = trimOptional(e.Description)
		if e.EndDate != nil && e.EndDate.IsZero() {
			e.EndDate = nil
		}
		achievements := make([]string, 0, len(e.Achievements))
		for _, a := range e.Achievements {
			if a = strings.TrimSpace(a); a != "" {
				achievements = append(achievements, a)
			}
		}
		e.Achievements = achievements
		out[i] = e
	}
	return out
}

func normalizeEducation(entries []types.Education) []types.Education {
	out := make([]types.Education, len(entries))
	for i, e := range entries {
		e.Institution = strings.TrimSpace(e.Institution)
		e.Degree = strings.TrimSpace(e.Degree)
		e.Field = strings.TrimSpace(e.Field)
		out[i] = e
	}
	return out
}

func normalizeLocations(entries []types.Location) []types.Location {
	out := make([]types.Location, len(entries))
	for i, l := range entries {
		l.City = strings.TrimSpace(l.City)
		l.Country = strings.TrimSpace(l.Country)
		l.State = trimOptional(l.State)
		out[i] = l
	}
	return out
}

// trimOptional trims s and maps blank values to nil.
func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// trimPtr trims s but keeps blank values, which a patch uses to clear a
// column or which validation rejects.
func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
