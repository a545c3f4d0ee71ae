package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/talenthub/apiserver/internal/mq"
	"github.com/talenthub/apiserver/internal/store"
	"github.com/talenthub/apiserver/types"
)

func strPtr(s string) *string { return &s }

func validProfileInput() types.ProfileInput {
	end := types.NewDate(2022, time.June, 30)
	return types.ProfileInput{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
		Phone:     strPtr("+14155552671"),
		Summary:   strPtr("Analyst"),
		Skills:    []string{" Go ", "go", "SQL"},
		Experience: []types.Experience{{
			Company:   "Analytical Engines",
			Title:     "Engineer",
			StartDate: types.NewDate(2019, time.January, 1),
			EndDate:   &end,
		}},
		Education: []types.Education{{Institution: "Home", Degree: "BSc", Field: "Math", GraduationYear: 2018}},
		Locations: []types.Location{{City: "London", Country: "UK", IsPrimary: true}},
	}
}

func newProfileRepo() *mockProfileRepository {
	return &mockProfileRepository{
		GetByUserIDFunc: func(context.Context, uuid.UUID) (types.TalentProfile, error) {
			return types.TalentProfile{}, store.ErrNotFound
		},
		CreateFunc: func(_ context.Context, p types.TalentProfile) (types.TalentProfile, error) {
			p.ID = uuid.New()
			p.CompletenessScore = p.Completeness()
			return p, nil
		},
	}
}

func TestCreateProfile(t *testing.T) {
	pub := &recordingPublisher{}
	notifier := NewNotifier(pub, nil)
	svc := NewProfileService(newProfileRepo(), nil, notifier, nil)

	profile, err := svc.CreateProfile(context.Background(), uuid.New(), validProfileInput())
	if err != nil {
		t.Fatalf("CreateProfile() error = %v", err)
	}
	notifier.Wait()

	if got := strings.Join(profile.Skills, ","); got != "Go,SQL" {
		t.Errorf("Skills = %q, want trimmed and deduplicated", got)
	}
	if profile.Visibility != types.VisibilityPublic {
		t.Errorf("Visibility = %q, want public default", profile.Visibility)
	}
	if got := pub.published(); len(got) != 1 || got[0] != mq.ChannelProfileReindex {
		t.Errorf("published %v, want one reindex event", got)
	}
}

func TestCreateProfile_Validation(t *testing.T) {
	svc := NewProfileService(newProfileRepo(), nil, nil, nil)

	tests := []struct {
		name   string
		mutate func(*types.ProfileInput)
	}{
		{"no skills", func(in *types.ProfileInput) { in.Skills = []string{"  "} }},
		{"skill too long", func(in *types.ProfileInput) { in.Skills = []string{"Go", strings.Repeat("x", 101)} }},
		{"missing first name", func(in *types.ProfileInput) { in.FirstName = " " }},
		{"bad email", func(in *types.ProfileInput) { in.Email = "not-an-email" }},
		{"bad phone", func(in *types.ProfileInput) { in.Phone = strPtr("12-34") }},
		{"long summary", func(in *types.ProfileInput) { in.Summary = strPtr(strings.Repeat("a", 2001)) }},
		{"bad visibility", func(in *types.ProfileInput) { in.Visibility = "friends" }},
		{"graduation year too old", func(in *types.ProfileInput) { in.Education[0].GraduationYear = 1850 }},
		{"graduation year too far", func(in *types.ProfileInput) { in.Education[0].GraduationYear = time.Now().Year() + 6 }},
		{"end before start", func(in *types.ProfileInput) {
			end := types.NewDate(2018, time.January, 1)
			in.Experience[0].EndDate = &end
		}},
		{"missing start", func(in *types.ProfileInput) { in.Experience[0].StartDate = types.Date{} }},
		{"location without city", func(in *types.ProfileInput) { in.Locations[0].City = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validProfileInput()
			tt.mutate(&in)
			_, err := svc.CreateProfile(context.Background(), uuid.New(), in)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("CreateProfile() error = %v, want ValidationError", err)
			}
		})
	}
}

func TestCreateProfile_AlreadyExists(t *testing.T) {
	repo := newProfileRepo()
	repo.GetByUserIDFunc = func(context.Context, uuid.UUID) (types.TalentProfile, error) {
		return types.TalentProfile{ID: uuid.New()}, nil
	}
	svc := NewProfileService(repo, nil, nil, nil)
	if _, err := svc.CreateProfile(context.Background(), uuid.New(), validProfileInput()); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("error = %v, want ErrAlreadyExists", err)
	}

	raced := newProfileRepo()
	raced.CreateFunc = func(context.Context, types.TalentProfile) (types.TalentProfile, error) {
		return types.TalentProfile{}, store.ErrDuplicate
	}
	svc = NewProfileService(raced, nil, nil, nil)
	if _, err := svc.CreateProfile(context.Background(), uuid.New(), validProfileInput()); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("error = %v, want ErrAlreadyExists on unique violation", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	var gotPatch types.ProfilePatch
	repo := &mockProfileRepository{
		UpdateFunc: func(_ context.Context, userID uuid.UUID, patch types.ProfilePatch) (types.TalentProfile, error) {
			gotPatch = patch
			return types.TalentProfile{ID: uuid.New(), UserID: userID}, nil
		},
	}
	svc := NewProfileService(repo, nil, nil, nil)

	skills := []string{"Rust", " rust "}
	if _, err := svc.UpdateProfile(context.Background(), uuid.New(), types.ProfilePatch{
		Summary: strPtr("  "),
		Skills:  &skills,
	}); err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	if gotPatch.Summary == nil || *gotPatch.Summary != "" {
		t.Errorf("blank summary should reach the store as an empty string, got %v", gotPatch.Summary)
	}
	if gotPatch.Skills == nil || len(*gotPatch.Skills) != 1 {
		t.Errorf("Skills = %v, want deduplicated", gotPatch.Skills)
	}

	empty := []string{}
	if _, err := svc.UpdateProfile(context.Background(), uuid.New(), types.ProfilePatch{Skills: &empty}); err == nil {
		t.Error("empty skills should be rejected")
	}
	if _, err := svc.UpdateProfile(context.Background(), uuid.New(), types.ProfilePatch{FirstName: strPtr("")}); err == nil {
		t.Error("blank first name should be rejected")
	}
	long := []string{strings.Repeat("x", 300)}
	var ve *ValidationError
	if _, err := svc.UpdateProfile(context.Background(), uuid.New(), types.ProfilePatch{Skills: &long}); !errors.As(err, &ve) {
		t.Errorf("over-long skill error = %v, want ValidationError", err)
	}
}

func TestUpdateProfile_NotFound(t *testing.T) {
	repo := &mockProfileRepository{
		UpdateFunc: func(context.Context, uuid.UUID, types.ProfilePatch) (types.TalentProfile, error) {
			return types.TalentProfile{}, store.ErrNotFound
		},
	}
	svc := NewProfileService(repo, nil, nil, nil)
	if _, err := svc.UpdateProfile(context.Background(), uuid.New(), types.ProfilePatch{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestGetProfile_NotFound(t *testing.T) {
	svc := NewProfileService(newProfileRepo(), nil, nil, nil)
	if _, err := svc.GetProfile(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

var samplePDF = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

func TestAttachResume(t *testing.T) {
	userID := uuid.New()
	var storedKey string
	var storedBytes []byte
	objects := &mockResumeStore{
		PutFunc: func(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
			if contentType != "application/pdf" {
				t.Errorf("contentType = %q", contentType)
			}
			storedKey = key
			storedBytes, _ = io.ReadAll(r)
			return nil
		},
	}
	var recorded string
	repo := &mockProfileRepository{
		SetResumeFunc: func(_ context.Context, _ uuid.UUID, ref string) (types.TalentProfile, error) {
			recorded = ref
			return types.TalentProfile{ID: uuid.New(), UserID: userID}, nil
		},
	}
	pub := &recordingPublisher{}
	notifier := NewNotifier(pub, nil)
	svc := NewProfileService(repo, objects, notifier, nil)

	ref, err := svc.AttachResume(context.Background(), userID, ResumeUpload{
		Filename:    "cv.pdf",
		ContentType: "application/pdf",
		Data:        samplePDF,
	})
	if err != nil {
		t.Fatalf("AttachResume() error = %v", err)
	}
	notifier.Wait()

	prefix := "resumes/" + userID.String() + "/"
	if !strings.HasPrefix(storedKey, prefix) || !strings.HasSuffix(storedKey, "-cv.pdf") {
		t.Errorf("key = %q", storedKey)
	}
	if string(storedBytes) != string(samplePDF) {
		t.Error("stored bytes differ from upload")
	}
	if ref != recorded || ref == "" {
		t.Errorf("ref = %q, recorded = %q", ref, recorded)
	}
	got := strings.Join(pub.published(), ",")
	if !strings.Contains(got, mq.ChannelResumeParse) || !strings.Contains(got, mq.ChannelProfileReindex) {
		t.Errorf("published %q, want parse and reindex", got)
	}
}

func TestAttachResume_WithoutProfile(t *testing.T) {
	objects := &mockResumeStore{PutFunc: func(context.Context, string, io.Reader, int64, string) error { return nil }}
	repo := &mockProfileRepository{
		SetResumeFunc: func(context.Context, uuid.UUID, string) (types.TalentProfile, error) {
			return types.TalentProfile{}, store.ErrNotFound
		},
	}
	svc := NewProfileService(repo, objects, nil, nil)
	ref, err := svc.AttachResume(context.Background(), uuid.New(), ResumeUpload{Filename: "cv.pdf", ContentType: "application/pdf", Data: samplePDF})
	if err != nil || ref == "" {
		t.Fatalf("AttachResume() = %q, %v; want reference without profile", ref, err)
	}
}

func TestAttachResume_Rejects(t *testing.T) {
	objects := &mockResumeStore{PutFunc: func(context.Context, string, io.Reader, int64, string) error {
		t.Error("Put should not be called")
		return nil
	}}
	svc := NewProfileService(newProfileRepo(), objects, nil, nil)

	tests := []struct {
		name   string
		upload ResumeUpload
	}{
		{"wrong declared type", ResumeUpload{Filename: "cv.docx", ContentType: "application/msword", Data: samplePDF}},
		{"not pdf bytes", ResumeUpload{Filename: "cv.pdf", ContentType: "application/pdf", Data: []byte("plain text")}},
		{"empty", ResumeUpload{Filename: "cv.pdf", ContentType: "application/pdf"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AttachResume(context.Background(), uuid.New(), tt.upload)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("error = %v, want ValidationError", err)
			}
		})
	}
}

func TestAttachResume_StorageFailure(t *testing.T) {
	objects := &mockResumeStore{PutFunc: func(context.Context, string, io.Reader, int64, string) error {
		return errors.New("bucket gone")
	}}
	svc := NewProfileService(newProfileRepo(), objects, nil, nil)
	_, err := svc.AttachResume(context.Background(), uuid.New(), ResumeUpload{Filename: "cv.pdf", ContentType: "application/pdf", Data: samplePDF})
	if !errors.Is(err, ErrDependency) {
		t.Errorf("error = %v, want ErrDependency", err)
	}
}

func TestAttachResume_ReplacesPreviousObject(t *testing.T) {
	userID := uuid.New()
	objects := &mockResumeStore{PutFunc: func(context.Context, string, io.Reader, int64, string) error { return nil }}

	tests := []struct {
		name        string
		previous    string
		wantDeleted string
	}{
		{name: "own resume", previous: objects.Reference("resumes/" + userID.String() + "/old-cv.pdf"), wantDeleted: "resumes/" + userID.String() + "/old-cv.pdf"},
		{name: "foreign reference", previous: "https://example.com/cv.pdf"},
		{name: "other user's key", previous: objects.Reference("resumes/" + uuid.NewString() + "/old-cv.pdf")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			objects.deleted = nil
			repo := &mockProfileRepository{
				GetByUserIDFunc: func(context.Context, uuid.UUID) (types.TalentProfile, error) {
					return types.TalentProfile{ID: uuid.New(), UserID: userID, ResumeURL: strPtr(tt.previous)}, nil
				},
				SetResumeFunc: func(_ context.Context, _ uuid.UUID, ref string) (types.TalentProfile, error) {
					return types.TalentProfile{ID: uuid.New(), UserID: userID, ResumeURL: &ref}, nil
				},
			}
			svc := NewProfileService(repo, objects, nil, nil)
			if _, err := svc.AttachResume(context.Background(), userID, ResumeUpload{Filename: "cv.pdf", ContentType: "application/pdf", Data: samplePDF}); err != nil {
				t.Fatalf("AttachResume() error = %v", err)
			}
			if tt.wantDeleted == "" {
				if len(objects.deleted) != 0 {
					t.Errorf("deleted %v, want nothing", objects.deleted)
				}
				return
			}
			if len(objects.deleted) != 1 || objects.deleted[0] != tt.wantDeleted {
				t.Errorf("deleted %v, want [%s]", objects.deleted, tt.wantDeleted)
			}
		})
	}
}

func TestAttachResume_RecordFailureRemovesObject(t *testing.T) {
	var storedKey string
	objects := &mockResumeStore{PutFunc: func(_ context.Context, key string, _ io.Reader, _ int64, _ string) error {
		storedKey = key
		return nil
	}}
	repo := &mockProfileRepository{
		SetResumeFunc: func(context.Context, uuid.UUID, string) (types.TalentProfile, error) {
			return types.TalentProfile{}, errors.New("db down")
		},
	}
	svc := NewProfileService(repo, objects, nil, nil)

	if _, err := svc.AttachResume(context.Background(), uuid.New(), ResumeUpload{Filename: "cv.pdf", ContentType: "application/pdf", Data: samplePDF}); err == nil {
		t.Fatal("AttachResume() should fail when the reference cannot be recorded")
	}
	if len(objects.deleted) != 1 || objects.deleted[0] != storedKey {
		t.Errorf("deleted %v, want the stored object %q", objects.deleted, storedKey)
	}
}
