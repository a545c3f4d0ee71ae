package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/talenthub/apiserver/types"
)

const (
	searchCachePrefix  = "search:talent:"
	defaultSearchLimit = 20
	maxSearchLimit     = 100
	maxSearchPage      = 1000
)

// SearchQuerier is the read side of the talent search index.
type SearchQuerier interface {
	Query(ctx context.Context, q types.SearchQuery) (types.SearchResult, error)
}

// SearchService answers employer talent searches.
type SearchService struct {
	index  SearchQuerier
	cache  SearchCache
	ttl    time.Duration
	logger *log.Logger
}

// NewSearchService returns a SearchService. cache may be nil.
func NewSearchService(index SearchQuerier, cache SearchCache, ttl time.Duration, logger *log.Logger) *SearchService {
	return &SearchService{index: index, cache: cache, ttl: ttl, logger: logger}
}

func (s *SearchService) SearchTalent(ctx context.Context, q types.SearchQuery) (types.SearchResult, error) {
	q, err := NormalizeSearchQuery(q)
	if err != nil {
		return types.SearchResult{}, err
	}

	key := searchCacheKey(q)
	if s.cache != nil {
		var cached types.SearchResult
		hit, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			s.logf("[SearchService] cache read failed: %v", err)
		}
		if hit {
			return cached, nil
		}
	}

	result, err := s.index.Query(ctx, q)
	if err != nil {
		return types.SearchResult{}, fmt.Errorf("%w: search index: %w", ErrDependency, err)
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, result, s.ttl); err != nil {
			s.logf("[SearchService] cache write failed: %v", err)
		}
	}
	return result, nil
}

func (s *SearchService) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

// NormalizeSearchQuery applies defaults and bounds and lower-cases skills.
func NormalizeSearchQuery(q types.SearchQuery) (types.SearchQuery, error) {
	switch {
	case q.Page < 0 || q.Page > maxSearchPage:
		return q, invalid(fmt.Sprintf("page must be between 1 and %d", maxSearchPage))
	case q.Page == 0:
		q.Page = 1
	}
	switch {
	case q.Limit < 0 || q.Limit > maxSearchLimit:
		return q, invalid(fmt.Sprintf("limit must be between 1 and %d", maxSearchLimit))
	case q.Limit == 0:
		q.Limit = defaultSearchLimit
	}

	q.SortBy = strings.ToLower(strings.TrimSpace(q.SortBy))
	switch q.SortBy {
	case "":
		q.SortBy = types.SortRelevance
	case types.SortRelevance, types.SortRecent, types.SortCompleteness:
	default:
		return q, invalid("sort_by must be one of: relevance recent completeness")
	}

	if r := q.ExperienceRange; r != nil {
		if r.Min < 0 || r.Max < 0 {
			return q, invalid("experience_range must not be negative")
		}
		if r.Max > 0 && r.Min > r.Max {
			return q, invalid("experience_range.min must not exceed max")
		}
	}

	q.Keywords = compactTerms(q.Keywords, false)
	q.Skills = compactTerms(q.Skills, true)
	q.Location = strings.TrimSpace(q.Location)
	return q, nil
}

func compactTerms(terms []string, lower bool) []string {
	out := make([]string, 0, len(terms))
	seen := make(map[string]bool, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if lower {
			t = strings.ToLower(t)
		}
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// searchCacheKey hashes the normalized query so equal searches share an
// entry.
func searchCacheKey(q types.SearchQuery) string {
	b, _ := json.Marshal(q)
	sum := sha256.Sum256(b)
	return searchCachePrefix + hex.EncodeToString(sum[:])
}
