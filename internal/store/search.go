package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/talenthub/apiserver/types"
)

// SearchRepository keeps the denormalized talent search index in Postgres
// and answers keyword queries against its tsvector column.
type SearchRepository struct {
	db *sql.DB
}

func NewSearchRepository(db *sql.DB) *SearchRepository {
	return &SearchRepository{db: db}
}

func (r *SearchRepository) Upsert(ctx context.Context, doc types.SearchDocument) error {
	const query = `
		INSERT INTO talent_search_documents (
			profile_id, user_id, full_name, headline, body, skills, locations,
			experience_years, completeness_score, visibility, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (profile_id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			full_name = EXCLUDED.full_name,
			headline = EXCLUDED.headline,
			body = EXCLUDED.body,
			skills = EXCLUDED.skills,
			locations = EXCLUDED.locations,
			experience_years = EXCLUDED.experience_years,
			completeness_score = EXCLUDED.completeness_score,
			visibility = EXCLUDED.visibility,
			updated_at = EXCLUDED.updated_at
		WHERE talent_search_documents.updated_at <= EXCLUDED.updated_at`
	_, err := r.db.ExecContext(
		ctx,
		query,
		doc.ProfileID,
		doc.UserID,
		doc.FullName,
		doc.Headline,
		doc.Body,
		pq.StringArray(nonNil(doc.Skills)),
		pq.StringArray(nonNil(doc.Locations)),
		doc.ExperienceYears,
		doc.CompletenessScore,
		doc.Visibility,
		doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert search document: %w", err)
	}
	return nil
}

func (r *SearchRepository) Remove(ctx context.Context, profileID uuid.UUID) error {
	const query = `DELETE FROM talent_search_documents WHERE profile_id = $1`
	if _, err := r.db.ExecContext(ctx, query, profileID); err != nil {
		return fmt.Errorf("remove search document: %w", err)
	}
	return nil
}

// Query runs a normalized search. Skills must already be lower-cased and
// q.Page and q.Limit already bounded.
func (r *SearchRepository) Query(ctx context.Context, q types.SearchQuery) (types.SearchResult, error) {
	query, args := buildSearchQuery(q)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return types.SearchResult{}, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()

	result := types.SearchResult{Page: q.Page, Limit: q.Limit, Results: []types.SearchHit{}}
	for rows.Next() {
		var hit types.SearchHit
		var skills, locations pq.StringArray
		var total int
		if err := rows.Scan(
			&hit.ProfileID,
			&hit.UserID,
			&hit.FullName,
			&hit.Headline,
			&skills,
			&locations,
			&hit.ExperienceYears,
			&hit.CompletenessScore,
			&hit.Visibility,
			&hit.UpdatedAt,
			&hit.Score,
			&total,
		); err != nil {
			return types.SearchResult{}, err
		}
		hit.Skills = []string(skills)
		hit.Locations = []string(locations)
		result.Total = total
		result.Results = append(result.Results, hit)
	}
	if err := rows.Err(); err != nil {
		return types.SearchResult{}, err
	}

	if len(result.Results) == 0 && q.Page > 1 {
		total, err := r.count(ctx, q)
		if err != nil {
			return types.SearchResult{}, err
		}
		result.Total = total
	}
	return result, nil
}

func (r *SearchRepository) count(ctx context.Context, q types.SearchQuery) (int, error) {
	where, args := buildSearchFilter(q)
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM talent_search_documents`+where, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("search count: %w", err)
	}
	return total, nil
}

func buildSearchFilter(q types.SearchQuery) (string, []any) {
	clauses := []string{"visibility <> 'private'"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if keywords := strings.Join(q.Keywords, " "); strings.TrimSpace(keywords) != "" {
		clauses = append(clauses, "search_vector @@ plainto_tsquery('simple', "+arg(keywords)+")")
	}
	if len(q.Skills) > 0 {
		clauses = append(clauses, "skills @> "+arg(pq.StringArray(q.Skills)))
	}
	if loc := strings.TrimSpace(q.Location); loc != "" {
		clauses = append(clauses, "array_to_string(locations, ' | ') ILIKE "+arg("%"+escapeLike(loc)+"%"))
	}
	if q.ExperienceRange != nil {
		if q.ExperienceRange.Min > 0 {
			clauses = append(clauses, "experience_years >= "+arg(q.ExperienceRange.Min))
		}
		if q.ExperienceRange.Max > 0 {
			clauses = append(clauses, "experience_years <= "+arg(q.ExperienceRange.Max))
		}
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func buildSearchQuery(q types.SearchQuery) (string, []any) {
	where, args := buildSearchFilter(q)

	rank := "0::float8"
	if keywords := strings.Join(q.Keywords, " "); strings.TrimSpace(keywords) != "" {
		args = append(args, keywords)
		rank = "ts_rank(search_vector, plainto_tsquery('simple', $" + strconv.Itoa(len(args)) + "))::float8"
	}

	var order string
	switch q.SortBy {
	case types.SortRecent:
		order = "updated_at DESC, profile_id"
	case types.SortCompleteness:
		order = "completeness_score DESC, updated_at DESC, profile_id"
	default:
		order = "score DESC, completeness_score DESC, profile_id"
	}

	args = append(args, q.Limit, (q.Page-1)*q.Limit)
	limitArg := "$" + strconv.Itoa(len(args)-1)
	offsetArg := "$" + strconv.Itoa(len(args))

	query := `
		SELECT profile_id, user_id, full_name, headline, skills, locations,
			experience_years, completeness_score, visibility, updated_at,
			` + rank + ` AS score,
			COUNT(*) OVER () AS total
		FROM talent_search_documents` + where + `
		ORDER BY ` + order + `
		LIMIT ` + limitArg + ` OFFSET ` + offsetArg
	return query, args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
