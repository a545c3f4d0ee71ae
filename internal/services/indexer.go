package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/talenthub/apiserver/internal/mq"
	"github.com/talenthub/apiserver/internal/store"
	"github.com/talenthub/apiserver/types"
)

// SearchIndex is the write side of the talent search index.
type SearchIndex interface {
	Upsert(ctx context.Context, doc types.SearchDocument) error
	Remove(ctx context.Context, profileID uuid.UUID) error
}

// SearchCache is the subset of the Redis cache used by search.
type SearchCache interface {
	GetJSON(ctx context.Context, key string, out any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// Indexer keeps the search index in step with profile changes.
type Indexer struct {
	profiles ProfileRepository
	index    SearchIndex
	cache    SearchCache
	logger   *log.Logger
	now      func() time.Time
}

func NewIndexer(profiles ProfileRepository, index SearchIndex, cache SearchCache, logger *log.Logger) *Indexer {
	return &Indexer{profiles: profiles, index: index, cache: cache, logger: logger, now: time.Now}
}

// HandleReindex reloads the profile named by the event and refreshes its
// search document. Private or deleted profiles are dropped from the index.
func (i *Indexer) HandleReindex(ctx context.Context, event mq.ProfileReindexEvent) error {
	profile, err := i.profiles.GetByID(ctx, event.ProfileID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		if err := i.index.Remove(ctx, event.ProfileID); err != nil {
			return err
		}
	case err != nil:
		return fmt.Errorf("load profile %s: %w", event.ProfileID, err)
	case profile.Visibility == types.VisibilityPrivate:
		if err := i.index.Remove(ctx, profile.ID); err != nil {
			return err
		}
	default:
		if err := i.index.Upsert(ctx, BuildSearchDocument(profile, i.now())); err != nil {
			return err
		}
	}

	if i.cache != nil {
		if err := i.cache.DeleteByPattern(ctx, searchCachePrefix+"*"); err != nil && i.logger != nil {
			i.logger.Printf("[Indexer] search cache invalidation failed: %v", err)
		}
	}
	return nil
}

// BuildSearchDocument flattens a profile into its indexed form.
func BuildSearchDocument(p types.TalentProfile, now time.Time) types.SearchDocument {
	skills := make([]string, 0, len(p.Skills))
	for _, s := range p.Skills {
		skills = append(skills, strings.ToLower(s))
	}

	locations := make([]string, 0, len(p.Locations))
	for _, l := range p.Locations {
		parts := []string{l.City}
		if l.State != nil && *l.State != "" {
			parts = append(parts, *l.State)
		}
		parts = append(parts, l.Country)
		locations = append(locations, strings.Join(parts, ", "))
	}

	var body []string
	if p.Summary != nil {
		body = append(body, *p.Summary)
	}
	body = append(body, p.Skills...)
	for _, e := range p.Experience {
		body = append(body, e.Title, e.Company)
		if e.Description != nil {
			body = append(body, *e.Description)
		}
		body = append(body, e.Achievements...)
	}
	for _, e := range p.Education {
		body = append(body, e.Degree, e.Field, e.Institution)
	}

	return types.SearchDocument{
		ProfileID:         p.ID,
		UserID:            p.UserID,
		FullName:          p.FullName(),
		Headline:          headline(p.Experience),
		Body:              strings.Join(body, " "),
		Skills:            skills,
		Locations:         locations,
		ExperienceYears:   experienceYears(p.Experience, now),
		CompletenessScore: p.CompletenessScore,
		Visibility:        p.Visibility,
		UpdatedAt:         p.UpdatedAt,
	}
}

// headline is "Title at Company" for the current role, or the most recent
// one when none is marked current.
func headline(entries []types.Experience) string {
	if len(entries) == 0 {
		return ""
	}
	best := entries[0]
	for _, e := range entries[1:] {
		if e.IsCurrent && !best.IsCurrent {
			best = e
			continue
		}
		if e.IsCurrent == best.IsCurrent && e.StartDate.After(best.StartDate.Time) {
			best = e
		}
	}
	return best.Title + " at " + best.Company
}

// experienceYears sums the covered months of all entries, merging overlaps,
// and rounds down to whole years.
func experienceYears(entries []types.Experience, now time.Time) int {
	type span struct{ start, end time.Time }
	spans := make([]span, 0, len(entries))
	for _, e := range entries {
		if e.StartDate.IsZero() {
			continue
		}
		end := now
		if e.EndDate != nil && !e.EndDate.IsZero() && !e.IsCurrent {
			end = e.EndDate.Time
		}
		if end.After(e.StartDate.Time) {
			spans = append(spans, span{e.StartDate.Time, end})
		}
	}
	if len(spans) == 0 {
		return 0
	}
	sort.Slice(spans, func(a, b int) bool { return spans[a].start.Before(spans[b].start) })

	var total time.Duration
	cur := spans[0]
	for _, s := range spans[1:] {
		if s.start.After(cur.end) {
			total += cur.end.Sub(cur.start)
			cur = s
			continue
		}
		if s.end.After(cur.end) {
			cur.end = s.end
		}
	}
	total += cur.end.Sub(cur.start)
	return int(total.Hours() / (24 * 365.25))
}
