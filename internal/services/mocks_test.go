package services

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/talenthub/apiserver/internal/store"
	"github.com/talenthub/apiserver/types"
)

type mockUserRepository struct {
	GetByIDFunc        func(ctx context.Context, id uuid.UUID) (types.User, error)
	GetByEmailFunc     func(ctx context.Context, email string) (types.User, error)
	CreateFunc         func(ctx context.Context, user types.User) (types.User, error)
	TouchLastLoginFunc func(ctx context.Context, id uuid.UUID, at time.Time) error
}

func (m *mockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (types.User, error) {
	return m.GetByIDFunc(ctx, id)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return m.GetByEmailFunc(ctx, email)
}

func (m *mockUserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	return m.CreateFunc(ctx, user)
}

func (m *mockUserRepository) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	if m.TouchLastLoginFunc == nil {
		return nil
	}
	return m.TouchLastLoginFunc(ctx, id, at)
}

type mockProfileRepository struct {
	CreateFunc      func(ctx context.Context, profile types.TalentProfile) (types.TalentProfile, error)
	GetByUserIDFunc func(ctx context.Context, userID uuid.UUID) (types.TalentProfile, error)
	GetByIDFunc     func(ctx context.Context, id uuid.UUID) (types.TalentProfile, error)
	UpdateFunc      func(ctx context.Context, userID uuid.UUID, patch types.ProfilePatch) (types.TalentProfile, error)
	SetResumeFunc   func(ctx context.Context, userID uuid.UUID, ref string) (types.TalentProfile, error)
}

func (m *mockProfileRepository) Create(ctx context.Context, profile types.TalentProfile) (types.TalentProfile, error) {
	return m.CreateFunc(ctx, profile)
}

func (m *mockProfileRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (types.TalentProfile, error) {
	if m.GetByUserIDFunc == nil {
		return types.TalentProfile{}, store.ErrNotFound
	}
	return m.GetByUserIDFunc(ctx, userID)
}

func (m *mockProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (types.TalentProfile, error) {
	return m.GetByIDFunc(ctx, id)
}

func (m *mockProfileRepository) Update(ctx context.Context, userID uuid.UUID, patch types.ProfilePatch) (types.TalentProfile, error) {
	return m.UpdateFunc(ctx, userID, patch)
}

func (m *mockProfileRepository) SetResume(ctx context.Context, userID uuid.UUID, ref string) (types.TalentProfile, error) {
	return m.SetResumeFunc(ctx, userID, ref)
}

type mockResumeStore struct {
	PutFunc func(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	deleted []string
}

func (m *mockResumeStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	return m.PutFunc(ctx, key, r, size, contentType)
}

func (m *mockResumeStore) Delete(_ context.Context, key string) error {
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *mockResumeStore) Reference(key string) string {
	return "mem://resumes/" + key
}

func (m *mockResumeStore) KeyOf(ref string) (string, bool) {
	key, ok := strings.CutPrefix(ref, "mem://resumes/")
	return key, ok && key != ""
}

type mockSearchIndex struct {
	UpsertFunc func(ctx context.Context, doc types.SearchDocument) error
	RemoveFunc func(ctx context.Context, profileID uuid.UUID) error
	QueryFunc  func(ctx context.Context, q types.SearchQuery) (types.SearchResult, error)
}

func (m *mockSearchIndex) Upsert(ctx context.Context, doc types.SearchDocument) error {
	return m.UpsertFunc(ctx, doc)
}

func (m *mockSearchIndex) Remove(ctx context.Context, profileID uuid.UUID) error {
	return m.RemoveFunc(ctx, profileID)
}

func (m *mockSearchIndex) Query(ctx context.Context, q types.SearchQuery) (types.SearchResult, error) {
	return m.QueryFunc(ctx, q)
}

type mockAuditRepository struct {
	CreateFunc          func(ctx context.Context, entry types.AuditLog) (types.AuditLog, error)
	DeleteOlderThanFunc func(ctx context.Context, cutoff time.Time) (int64, error)
}

func (m *mockAuditRepository) Create(ctx context.Context, entry types.AuditLog) (types.AuditLog, error) {
	return m.CreateFunc(ctx, entry)
}

func (m *mockAuditRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return m.DeleteOlderThanFunc(ctx, cutoff)
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu       sync.Mutex
	channels []string
	events   []any
	err      error
}

func (p *recordingPublisher) PublishJSON(_ context.Context, channel string, event any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channels = append(p.channels, channel)
	p.events = append(p.events, event)
	return "msg-1", p.err
}

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.channels...)
}
