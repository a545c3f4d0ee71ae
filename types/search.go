package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	SortRelevance    = "relevance"
	SortRecent       = "recent"
	SortCompleteness = "completeness"
)

// ExperienceRange bounds total years of experience. Zero values are open.
type ExperienceRange struct {
	Min int `json:"min" validate:"gte=0"`
	Max int `json:"max" validate:"gte=0"`
}

// SearchQuery is the employer-facing talent search request.
type SearchQuery struct {
	Keywords        []string         `json:"keywords"`
	Skills          []string         `json:"skills"`
	Location        string           `json:"location"`
	ExperienceRange *ExperienceRange `json:"experience_range"`
	Page            int              `json:"page"`
	Limit           int              `json:"limit"`
	SortBy          string           `json:"sort_by"`
}

// SearchResult is one page of search hits.
type SearchResult struct {
	Total   int         `json:"total"`
	Page    int         `json:"page"`
	Limit   int         `json:"limit"`
	Results []SearchHit `json:"results"`
}

type SearchHit struct {
	ProfileID         uuid.UUID  `json:"profile_id"`
	UserID            uuid.UUID  `json:"user_id"`
	FullName          string     `json:"full_name"`
	Headline          string     `json:"headline,omitempty"`
	Skills            []string   `json:"skills"`
	Locations         []string   `json:"locations"`
	ExperienceYears   int        `json:"experience_years"`
	CompletenessScore float64    `json:"completeness_score"`
	Visibility        Visibility `json:"visibility"`
	Score             float64    `json:"score"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// SearchDocument is the denormalized form of a profile kept in the index.
type SearchDocument struct {
	ProfileID         uuid.UUID
	UserID            uuid.UUID
	FullName          string
	Headline          string
	Body              string
	Skills            []string
	Locations         []string
	ExperienceYears   int
	CompletenessScore float64
	Visibility        Visibility
	UpdatedAt         time.Time
}
