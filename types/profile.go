package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Visibility controls who can find a profile through search.
type Visibility string

const (
	VisibilityPublic        Visibility = "public"
	VisibilityPrivate       Visibility = "private"
	VisibilityEmployersOnly Visibility = "employers_only"
)

// DateLayout is the wire and storage form of calendar dates.
const DateLayout = "2006-01-02"

// Date is a calendar date without a time of day.
type Date struct {
	time.Time
}

// NewDate returns the given calendar day in UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(DateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "" || raw == "null" {
		d.Time = time.Time{}
		return nil
	}
	parsed, err := time.Parse(DateLayout, raw)
	if err != nil {
		return fmt.Errorf("invalid date %q: want YYYY-MM-DD", raw)
	}
	d.Time = parsed
	return nil
}

// TalentProfile is the job seeker's profile aggregate. Experience,
// Education and Locations are owned by the profile; Skills are shared
// entities linked by name.
type TalentProfile struct {
	ID                uuid.UUID    `json:"id"`
	UserID            uuid.UUID    `json:"user_id"`
	FirstName         string       `json:"first_name"`
	LastName          string       `json:"last_name"`
	Email             string       `json:"email"`
	Phone             *string      `json:"phone,omitempty"`
	Summary           *string      `json:"summary,omitempty"`
	ResumeURL         *string      `json:"resume_url,omitempty"`
	Visibility        Visibility   `json:"visibility"`
	CompletenessScore float64      `json:"completeness_score"`
	Skills            []string     `json:"skills"`
	Experience        []Experience `json:"experience"`
	Education         []Education  `json:"education"`
	Locations         []Location   `json:"locations"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

type Experience struct {
	ID           uuid.UUID `json:"id"`
	Company      string    `json:"company" validate:"required,max=200"`
	Title        string    `json:"title" validate:"required,max=200"`
	StartDate    Date      `json:"start_date"`
	EndDate      *Date     `json:"end_date,omitempty"`
	IsCurrent    bool      `json:"is_current"`
	Description  *string   `json:"description,omitempty"`
	Achievements []string  `json:"achievements" validate:"dive,max=500"`
}

type Education struct {
	ID             uuid.UUID `json:"id"`
	Institution    string    `json:"institution" validate:"required,max=200"`
	Degree         string    `json:"degree" validate:"required,max=200"`
	Field          string    `json:"field" validate:"required,max=200"`
	GraduationYear int       `json:"graduation_year" validate:"gradyear"`
}

type Location struct {
	ID        uuid.UUID `json:"id"`
	City      string    `json:"city" validate:"required,max=100"`
	State     *string   `json:"state,omitempty" validate:"omitempty,max=100"`
	Country   string    `json:"country" validate:"required,max=100"`
	IsPrimary bool      `json:"is_primary"`
}

// Skill is shared between profiles; deleting a profile only unlinks it.
type Skill struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Category *string   `json:"category,omitempty"`
	Verified bool      `json:"verified"`
}

// ProfileInput is the payload for creating a profile.
type ProfileInput struct {
	FirstName  string       `json:"first_name" validate:"required,max=100"`
	LastName   string       `json:"last_name" validate:"required,max=100"`
	Email      string       `json:"email" validate:"required,email,max=255"`
	Phone      *string      `json:"phone" validate:"omitempty,phone"`
	Summary    *string      `json:"summary" validate:"omitempty,max=2000"`
	ResumeURL  *string      `json:"resume_url" validate:"omitempty,max=500"`
	Visibility Visibility   `json:"visibility" validate:"omitempty,oneof=public private employers_only"`
	Skills     []string     `json:"skills" validate:"dive,max=100"`
	Experience []Experience `json:"experience" validate:"dive"`
	Education  []Education  `json:"education" validate:"dive"`
	Locations  []Location   `json:"locations" validate:"dive"`
}

// ProfilePatch is a merge-patch: nil fields are left untouched and a
// non-nil collection replaces the stored one. A JSON null is treated the
// same as an absent key; send "" to clear phone, summary or resume_url.
type ProfilePatch struct {
	FirstName  *string       `json:"first_name" validate:"omitnil,min=1,max=100"`
	LastName   *string       `json:"last_name" validate:"omitnil,min=1,max=100"`
	Email      *string       `json:"email" validate:"omitnil,email,max=255"`
	Phone      *string       `json:"phone" validate:"omitempty,phone"`
	Summary    *string       `json:"summary" validate:"omitempty,max=2000"`
	ResumeURL  *string       `json:"resume_url" validate:"omitempty,max=500"`
	Visibility *Visibility   `json:"visibility" validate:"omitempty,oneof=public private employers_only"`
	Skills     *[]string     `json:"skills" validate:"omitnil,dive,max=100"`
	Experience *[]Experience `json:"experience" validate:"omitempty,dive"`
	Education  *[]Education  `json:"education" validate:"omitempty,dive"`
	Locations  *[]Location   `json:"locations" validate:"omitempty,dive"`
}

// IsEmpty reports whether the patch changes nothing.
func (p ProfilePatch) IsEmpty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Email == nil &&
		p.Phone == nil && p.Summary == nil && p.ResumeURL == nil &&
		p.Visibility == nil && p.Skills == nil && p.Experience == nil &&
		p.Education == nil && p.Locations == nil
}

const (
	weightFirstName  = 10
	weightLastName   = 10
	weightEmail      = 10
	weightPhone      = 10
	weightSummary    = 15
	weightResume     = 15
	weightSkills     = 10
	weightExperience = 10
	weightEducation  = 5
	weightLocations  = 5
)

// Completeness scores how much of the profile is filled in, from 0 to 100.
func (p TalentProfile) Completeness() float64 {
	score := 0
	if filled(&p.FirstName) {
		score += weightFirstName
	}
	if filled(&p.LastName) {
		score += weightLastName
	}
	if filled(&p.Email) {
		score += weightEmail
	}
	if filled(p.Phone) {
		score += weightPhone
	}
	if filled(p.Summary) {
		score += weightSummary
	}
	if filled(p.ResumeURL) {
		score += weightResume
	}
	if len(p.Skills) > 0 {
		score += weightSkills
	}
	if len(p.Experience) > 0 {
		score += weightExperience
	}
	if len(p.Education) > 0 {
		score += weightEducation
	}
	if len(p.Locations) > 0 {
		score += weightLocations
	}
	return float64(score)
}

// FullName joins first and last name.
func (p TalentProfile) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

func filled(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}
