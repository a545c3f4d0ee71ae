package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/talenthub/apiserver/internal/mq"
	"github.com/talenthub/apiserver/internal/store"
	"github.com/talenthub/apiserver/types"
)

type recordingCache struct {
	deleted []string
}

func (c *recordingCache) GetJSON(context.Context, string, any) (bool, error) { return false, nil }

func (c *recordingCache) SetJSON(context.Context, string, any, time.Duration) error { return nil }

func (c *recordingCache) DeleteByPattern(_ context.Context, pattern string) error {
	c.deleted = append(c.deleted, pattern)
	return nil
}

func TestHandleReindex(t *testing.T) {
	public := types.TalentProfile{ID: uuid.New(), UserID: uuid.New(), FirstName: "Ada", LastName: "L", Visibility: types.VisibilityPublic, Skills: []string{"Go"}}
	private := types.TalentProfile{ID: uuid.New(), Visibility: types.VisibilityPrivate}
	missing := uuid.New()

	profiles := &mockProfileRepository{
		GetByIDFunc: func(_ context.Context, id uuid.UUID) (types.TalentProfile, error) {
			switch id {
			case public.ID:
				return public, nil
			case private.ID:
				return private, nil
			}
			return types.TalentProfile{}, store.ErrNotFound
		},
	}

	var upserted []uuid.UUID
	var removed []uuid.UUID
	index := &mockSearchIndex{
		UpsertFunc: func(_ context.Context, doc types.SearchDocument) error {
			upserted = append(upserted, doc.ProfileID)
			if doc.Skills[0] != "go" {
				t.Errorf("indexed skill = %q, want lower-cased", doc.Skills[0])
			}
			return nil
		},
		RemoveFunc: func(_ context.Context, id uuid.UUID) error {
			removed = append(removed, id)
			return nil
		},
	}
	cache := &recordingCache{}
	indexer := NewIndexer(profiles, index, cache, nil)

	for _, id := range []uuid.UUID{public.ID, private.ID, missing} {
		if err := indexer.HandleReindex(context.Background(), mq.ProfileReindexEvent{ProfileID: id}); err != nil {
			t.Fatalf("HandleReindex(%s) error = %v", id, err)
		}
	}

	if len(upserted) != 1 || upserted[0] != public.ID {
		t.Errorf("upserted = %v, want only the public profile", upserted)
	}
	if len(removed) != 2 {
		t.Errorf("removed = %v, want private and missing profiles", removed)
	}
	if len(cache.deleted) != 3 || cache.deleted[0] != "search:talent:*" {
		t.Errorf("cache invalidations = %v", cache.deleted)
	}
}

func TestHandleReindex_LoadFailure(t *testing.T) {
	profiles := &mockProfileRepository{
		GetByIDFunc: func(context.Context, uuid.UUID) (types.TalentProfile, error) {
			return types.TalentProfile{}, errors.New("db down")
		},
	}
	indexer := NewIndexer(profiles, &mockSearchIndex{}, nil, nil)
	if err := indexer.HandleReindex(context.Background(), mq.ProfileReindexEvent{ProfileID: uuid.New()}); err == nil {
		t.Error("HandleReindex() should surface load failures for redelivery")
	}
}

func TestBuildSearchDocument(t *testing.T) {
	now := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := types.NewDate(2020, time.January, 1)
	state := "CA"
	p := types.TalentProfile{
		ID:        uuid.New(),
		FirstName: "Grace",
		LastName:  "Hopper",
		Summary:   strPtr("Compiler pioneer"),
		Skills:    []string{"COBOL", "Go"},
		Experience: []types.Experience{
			{Company: "Navy", Title: "Officer", StartDate: types.NewDate(2014, time.January, 1), EndDate: &end},
			{Company: "Remington", Title: "Engineer", StartDate: types.NewDate(2019, time.January, 1), IsCurrent: true},
		},
		Locations: []types.Location{{City: "San Jose", State: &state, Country: "US"}, {City: "Berlin", Country: "DE"}},
	}

	doc := BuildSearchDocument(p, now)
	if doc.FullName != "Grace Hopper" {
		t.Errorf("FullName = %q", doc.FullName)
	}
	if doc.Headline != "Engineer at Remington" {
		t.Errorf("Headline = %q, want current role", doc.Headline)
	}
	if doc.ExperienceYears != 11 {
		t.Errorf("ExperienceYears = %d, want overlap merged to 11", doc.ExperienceYears)
	}
	if doc.Locations[0] != "San Jose, CA, US" || doc.Locations[1] != "Berlin, DE" {
		t.Errorf("Locations = %v", doc.Locations)
	}
	if doc.Skills[0] != "cobol" {
		t.Errorf("Skills = %v", doc.Skills)
	}
}
