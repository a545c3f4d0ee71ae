package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/talenthub/apiserver/types"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ProfileRepository handles persistence for talent profiles and the
// collections they own.
type ProfileRepository struct {
	db *sql.DB
}

func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Create stores the profile with all of its collections in one
// transaction. A second profile for the same user returns ErrDuplicate.
func (r *ProfileRepository) Create(ctx context.Context, profile types.TalentProfile) (types.TalentProfile, error) {
	now := time.Now().UTC()
	profile.ID = uuid.New()
	profile.CreatedAt = now
	profile.UpdatedAt = now
	if profile.Visibility == "" {
		profile.Visibility = types.VisibilityPublic
	}
	profile.CompletenessScore = profile.Completeness()

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		const query = `
			INSERT INTO talent_profiles (
				id, user_id, first_name, last_name, email, phone, summary, resume_url,
				visibility, completeness_score, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
		if _, err := tx.ExecContext(
			ctx,
			query,
			profile.ID,
			profile.UserID,
			profile.FirstName,
			profile.LastName,
			profile.Email,
			profile.Phone,
			profile.Summary,
			profile.ResumeURL,
			profile.Visibility,
			profile.CompletenessScore,
			profile.CreatedAt,
			profile.UpdatedAt,
		); err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return fmt.Errorf("insert profile: %w", err)
		}

		if err := replaceSkills(ctx, tx, profile.ID, profile.Skills); err != nil {
			return err
		}
		if err := replaceExperience(ctx, tx, profile.ID, profile.Experience); err != nil {
			return err
		}
		if err := replaceEducation(ctx, tx, profile.ID, profile.Education); err != nil {
			return err
		}
		return replaceLocations(ctx, tx, profile.ID, profile.Locations)
	})
	if err != nil {
		return types.TalentProfile{}, err
	}

	return r.GetByID(ctx, profile.ID)
}

func (r *ProfileRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (types.TalentProfile, error) {
	return loadProfile(ctx, r.db, "user_id", userID)
}

func (r *ProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (types.TalentProfile, error) {
	return loadProfile(ctx, r.db, "id", id)
}

// Update applies patch to the user's profile. The profile row is locked for
// the duration of the transaction, and scalar columns are written with
// COALESCE so a writer only touches the columns it supplied. Concurrent
// patches on disjoint fields therefore both survive, and overlapping
// fields resolve to the last commit. An empty phone, summary or
// resume_url clears that column.
func (r *ProfileRepository) Update(ctx context.Context, userID uuid.UUID, patch types.ProfilePatch) (types.TalentProfile, error) {
	var updated types.TalentProfile
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var profileID uuid.UUID
		const lockQuery = `SELECT id FROM talent_profiles WHERE user_id = $1 FOR UPDATE`
		if err := tx.QueryRowContext(ctx, lockQuery, userID).Scan(&profileID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("lock profile: %w", err)
		}

		const updateQuery = `
			UPDATE talent_profiles
			SET first_name = COALESCE($2, first_name),
				last_name = COALESCE($3, last_name),
				email = COALESCE($4, email),
				phone = CASE WHEN $5::text IS NULL THEN phone ELSE NULLIF($5, '') END,
				summary = CASE WHEN $6::text IS NULL THEN summary ELSE NULLIF($6, '') END,
				resume_url = CASE WHEN $7::text IS NULL THEN resume_url ELSE NULLIF($7, '') END,
				visibility = COALESCE($8, visibility),
				updated_at = $9
			WHERE id = $1`
		if _, err := tx.ExecContext(
			ctx,
			updateQuery,
			profileID,
			patch.FirstName,
			patch.LastName,
			patch.Email,
			patch.Phone,
			patch.Summary,
			patch.ResumeURL,
			patch.Visibility,
			time.Now().UTC(),
		); err != nil {
			return fmt.Errorf("update profile: %w", err)
		}

		if patch.Skills != nil {
			if err := replaceSkills(ctx, tx, profileID, *patch.Skills); err != nil {
				return err
			}
		}
		if patch.Experience != nil {
			if err := replaceExperience(ctx, tx, profileID, *patch.Experience); err != nil {
				return err
			}
		}
		if patch.Education != nil {
			if err := replaceEducation(ctx, tx, profileID, *patch.Education); err != nil {
				return err
			}
		}
		if patch.Locations != nil {
			if err := replaceLocations(ctx, tx, profileID, *patch.Locations); err != nil {
				return err
			}
		}

		profile, err := loadProfile(ctx, tx, "id", profileID)
		if err != nil {
			return err
		}
		profile.CompletenessScore = profile.Completeness()

		const scoreQuery = `UPDATE talent_profiles SET completeness_score = $2 WHERE id = $1`
		if _, err := tx.ExecContext(ctx, scoreQuery, profileID, profile.CompletenessScore); err != nil {
			return fmt.Errorf("update completeness: %w", err)
		}
		updated = profile
		return nil
	})
	if err != nil {
		return types.TalentProfile{}, err
	}
	return updated, nil
}

// SetResume records a stored resume reference on the user's profile.
func (r *ProfileRepository) SetResume(ctx context.Context, userID uuid.UUID, ref string) (types.TalentProfile, error) {
	return r.Update(ctx, userID, types.ProfilePatch{ResumeURL: &ref})
}

func (r *ProfileRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func replaceSkills(ctx context.Context, tx *sql.Tx, profileID uuid.UUID, names []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM profile_skills WHERE profile_id = $1`, profileID); err != nil {
		return fmt.Errorf("clear skills: %w", err)
	}

	const upsertSkill = `
		INSERT INTO skills (id, name)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`
	const linkSkill = `
		INSERT INTO profile_skills (profile_id, skill_id, position)
		VALUES ($1, $2, $3)
		ON CONFLICT (profile_id, skill_id) DO NOTHING`
	for i, name := range names {
		var skillID uuid.UUID
		if err := tx.QueryRowContext(ctx, upsertSkill, uuid.New(), name).Scan(&skillID); err != nil {
			return fmt.Errorf("upsert skill %q: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, linkSkill, profileID, skillID, i); err != nil {
			return fmt.Errorf("link skill %q: %w", name, err)
		}
	}
	return nil
}

func replaceExperience(ctx context.Context, tx *sql.Tx, profileID uuid.UUID, entries []types.Experience) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM experiences WHERE profile_id = $1`, profileID); err != nil {
		return fmt.Errorf("clear experience: %w", err)
	}

	const query = `
		INSERT INTO experiences (
			id, profile_id, position, company, title, start_date, end_date,
			is_current, description, achievements
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	for i, e := range entries {
		var endDate sql.NullTime
		if e.EndDate != nil && !e.EndDate.IsZero() {
			endDate = sql.NullTime{Time: e.EndDate.Time, Valid: true}
		}
		achievements := e.Achievements
		if achievements == nil {
			achievements = []string{}
		}
		if _, err := tx.ExecContext(
			ctx,
			query,
			uuid.New(),
			profileID,
			i,
			e.Company,
			e.Title,
			e.StartDate.Time,
			endDate,
			e.IsCurrent,
			e.Description,
			pq.StringArray(achievements),
		); err != nil {
			return fmt.Errorf("insert experience: %w", err)
		}
	}
	return nil
}

func replaceEducation(ctx context.Context, tx *sql.Tx, profileID uuid.UUID, entries []types.Education) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM education WHERE profile_id = $1`, profileID); err != nil {
		return fmt.Errorf("clear education: %w", err)
	}

	const query = `
		INSERT INTO education (id, profile_id, position, institution, degree, field, graduation_year)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	for i, e := range entries {
		if _, err := tx.ExecContext(ctx, query, uuid.New(), profileID, i, e.Institution, e.Degree, e.Field, e.GraduationYear); err != nil {
			return fmt.Errorf("insert education: %w", err)
		}
	}
	return nil
}

func replaceLocations(ctx context.Context, tx *sql.Tx, profileID uuid.UUID, entries []types.Location) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM locations WHERE profile_id = $1`, profileID); err != nil {
		return fmt.Errorf("clear locations: %w", err)
	}

	const query = `
		INSERT INTO locations (id, profile_id, position, city, state, country, is_primary)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	for i, l := range entries {
		if _, err := tx.ExecContext(ctx, query, uuid.New(), profileID, i, l.City, l.State, l.Country, l.IsPrimary); err != nil {
			return fmt.Errorf("insert location: %w", err)
		}
	}
	return nil
}

// loadProfile reads the profile row matched by column and its collections.
// column is always a literal from this package.
func loadProfile(ctx context.Context, q queryer, column string, value uuid.UUID) (types.TalentProfile, error) {
	query := `
		SELECT id, user_id, first_name, last_name, email, phone, summary, resume_url,
			visibility, completeness_score, created_at, updated_at
		FROM talent_profiles
		WHERE ` + column + ` = $1`

	var p types.TalentProfile
	var phone, summary, resume sql.NullString
	err := q.QueryRowContext(ctx, query, value).Scan(
		&p.ID,
		&p.UserID,
		&p.FirstName,
		&p.LastName,
		&p.Email,
		&phone,
		&summary,
		&resume,
		&p.Visibility,
		&p.CompletenessScore,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.TalentProfile{}, ErrNotFound
		}
		return types.TalentProfile{}, fmt.Errorf("load profile: %w", err)
	}
	p.Phone = nullString(phone)
	p.Summary = nullString(summary)
	p.ResumeURL = nullString(resume)

	if p.Skills, err = loadSkills(ctx, q, p.ID); err != nil {
		return types.TalentProfile{}, err
	}
	if p.Experience, err = loadExperience(ctx, q, p.ID); err != nil {
		return types.TalentProfile{}, err
	}
	if p.Education, err = loadEducation(ctx, q, p.ID); err != nil {
		return types.TalentProfile{}, err
	}
	if p.Locations, err = loadLocations(ctx, q, p.ID); err != nil {
		return types.TalentProfile{}, err
	}
	return p, nil
}

func loadSkills(ctx context.Context, q queryer, profileID uuid.UUID) ([]string, error) {
	const query = `
		SELECT s.name
		FROM profile_skills ps
		JOIN skills s ON s.id = ps.skill_id
		WHERE ps.profile_id = $1
		ORDER BY ps.position`
	rows, err := q.QueryContext(ctx, query, profileID)
	if err != nil {
		return nil, fmt.Errorf("load skills: %w", err)
	}
	defer rows.Close()

	skills := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		skills = append(skills, name)
	}
	return skills, rows.Err()
}

func loadExperience(ctx context.Context, q queryer, profileID uuid.UUID) ([]types.Experience, error) {
	const query = `
		SELECT id, company, title, start_date, end_date, is_current, description, achievements
		FROM experiences
		WHERE profile_id = $1
		ORDER BY position`
	rows, err := q.QueryContext(ctx, query, profileID)
	if err != nil {
		return nil, fmt.Errorf("load experience: %w", err)
	}
	defer rows.Close()

	entries := []types.Experience{}
	for rows.Next() {
		var e types.Experience
		var start time.Time
		var end sql.NullTime
		var description sql.NullString
		var achievements pq.StringArray
		if err := rows.Scan(&e.ID, &e.Company, &e.Title, &start, &end, &e.IsCurrent, &description, &achievements); err != nil {
			return nil, err
		}
		e.StartDate = types.Date{Time: start}
		if end.Valid {
			e.EndDate = &types.Date{Time: end.Time}
		}
		e.Description = nullString(description)
		e.Achievements = []string(achievements)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func loadEducation(ctx context.Context, q queryer, profileID uuid.UUID) ([]types.Education, error) {
	const query = `
		SELECT id, institution, degree, field, graduation_year
		FROM education
		WHERE profile_id = $1
		ORDER BY position`
	rows, err := q.QueryContext(ctx, query, profileID)
	if err != nil {
		return nil, fmt.Errorf("load education: %w", err)
	}
	defer rows.Close()

	entries := []types.Education{}
	for rows.Next() {
		var e types.Education
		if err := rows.Scan(&e.ID, &e.Institution, &e.Degree, &e.Field, &e.GraduationYear); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func loadLocations(ctx context.Context, q queryer, profileID uuid.UUID) ([]types.Location, error) {
	const query = `
		SELECT id, city, state, country, is_primary
		FROM locations
		WHERE profile_id = $1
		ORDER BY position`
	rows, err := q.QueryContext(ctx, query, profileID)
	if err != nil {
		return nil, fmt.Errorf("load locations: %w", err)
	}
	defer rows.Close()

	entries := []types.Location{}
	for rows.Next() {
		var l types.Location
		var state sql.NullString
		if err := rows.Scan(&l.ID, &l.City, &state, &l.Country, &l.IsPrimary); err != nil {
			return nil, err
		}
		l.State = nullString(state)
		entries = append(entries, l)
	}
	return entries, rows.Err()
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
