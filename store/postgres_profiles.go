package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"profile-service/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const (
	sectionExperience = "experience"
	sectionEducation  = "education"
)

const profileColumns = `p.id, p.user_id, u.name, u.avatar, p.company, p.website, p.location, p.status,
	p.bio, p.githubusername, p.skills, p.social, p.experience, p.education, p.created_at`

// profileSelect reads populated profiles from source, a table or CTE aliased as p.
func profileSelect(source string) string {
	return "SELECT " + profileColumns + " FROM " + source + " p JOIN users u ON u.id = p.user_id"
}

const upsertProfile = `WITH upserted AS (
	INSERT INTO profiles (id, user_id, company, website, location, status, bio, githubusername, skills, social, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9::text[], '{}'), COALESCE($10::jsonb, '{}'::jsonb), $11)
	ON CONFLICT (user_id) DO UPDATE SET
		company = COALESCE(EXCLUDED.company, profiles.company),
		website = COALESCE(EXCLUDED.website, profiles.website),
		location = COALESCE(EXCLUDED.location, profiles.location),
		status = COALESCE(EXCLUDED.status, profiles.status),
		bio = COALESCE(EXCLUDED.bio, profiles.bio),
		githubusername = COALESCE(EXCLUDED.githubusername, profiles.githubusername),
		skills = COALESCE($9::text[], profiles.skills),
		social = profiles.social || COALESCE($10::jsonb, '{}'::jsonb)
	RETURNING *
) `

type PostgresProfileStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresProfileStore(db *sql.DB) *PostgresProfileStore {
	return &PostgresProfileStore{db: db, now: time.Now}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProfile(row rowScanner) (models.Profile, error) {
	var (
		profile                                              models.Profile
		company, website, location, status, bio, githubName sql.NullString
		skills                                               pq.StringArray
		social, experience, education                        []byte
	)
	err := row.Scan(&profile.ID, &profile.User.ID, &profile.User.Name, &profile.User.Avatar,
		&company, &website, &location, &status, &bio, &githubName,
		&skills, &social, &experience, &education, &profile.CreatedAt)
	if err != nil {
		return models.Profile{}, err
	}

	profile.Company = company.String
	profile.Website = website.String
	profile.Location = location.String
	profile.Status = status.String
	profile.Bio = bio.String
	profile.GitHubUsername = githubName.String
	profile.Skills = []string(skills)
	if profile.Skills == nil {
		profile.Skills = []string{}
	}

	if err := unmarshalColumn(social, &profile.Social); err != nil {
		return models.Profile{}, fmt.Errorf("decode social: %w", err)
	}
	if err := unmarshalColumn(experience, &profile.Experience); err != nil {
		return models.Profile{}, fmt.Errorf("decode experience: %w", err)
	}
	if err := unmarshalColumn(education, &profile.Education); err != nil {
		return models.Profile{}, fmt.Errorf("decode education: %w", err)
	}
	if profile.Experience == nil {
		profile.Experience = []models.Experience{}
	}
	if profile.Education == nil {
		profile.Education = []models.Education{}
	}
	return profile, nil
}

func unmarshalColumn(raw []byte, into interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, into)
}

func (s *PostgresProfileStore) FindByUser(ctx context.Context, userID string) (models.Profile, error) {
	if !validID(userID) {
		return models.Profile{}, ErrProfileNotFound
	}
	return s.queryProfile(ctx, profileSelect("profiles")+" WHERE p.user_id = $1", userID)
}

func (s *PostgresProfileStore) List(ctx context.Context) ([]models.Profile, error) {
	rows, err := s.db.QueryContext(ctx, profileSelect("profiles")+" ORDER BY p.created_at")
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	profiles := []models.Profile{}
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return profiles, nil
}

func (s *PostgresProfileStore) Upsert(ctx context.Context, userID string, patch models.ProfilePatch) (models.Profile, error) {
	if !validID(userID) {
		return models.Profile{}, ErrUserNotFound
	}
	var skills interface{}
	if patch.Skills != nil {
		skills = pq.StringArray(patch.Skills)
	}
	var social interface{}
	if links := patch.Social.Links(); len(links) > 0 {
		encoded, err := json.Marshal(links)
		if err != nil {
			return models.Profile{}, fmt.Errorf("encode social: %w", err)
		}
		social = string(encoded)
	}

	profile, err := s.queryProfile(ctx, upsertProfile+profileSelect("upserted"),
		uuid.NewString(), userID,
		patch.Company, patch.Website, patch.Location, patch.Status, patch.Bio, patch.GitHubUsername,
		skills, social, s.now().UTC())
	if isForeignKeyViolation(err) {
		return models.Profile{}, ErrUserNotFound
	}
	return profile, err
}

func (s *PostgresProfileStore) AddExperience(ctx context.Context, userID string, entry models.Experience) (models.Profile, error) {
	return s.prepend(ctx, sectionExperience, userID, entry)
}

func (s *PostgresProfileStore) RemoveExperience(ctx context.Context, userID, entryID string) (models.Profile, error) {
	return s.remove(ctx, sectionExperience, userID, entryID)
}

func (s *PostgresProfileStore) AddEducation(ctx context.Context, userID string, entry models.Education) (models.Profile, error) {
	return s.prepend(ctx, sectionEducation, userID, entry)
}

func (s *PostgresProfileStore) RemoveEducation(ctx context.Context, userID, entryID string) (models.Profile, error) {
	return s.remove(ctx, sectionEducation, userID, entryID)
}

func (s *PostgresProfileStore) prepend(ctx context.Context, section, userID string, entry interface{}) (models.Profile, error) {
	if !validID(userID) {
		return models.Profile{}, ErrProfileNotFound
	}
	encoded, err := json.Marshal([]interface{}{entry})
	if err != nil {
		return models.Profile{}, fmt.Errorf("encode %s: %w", section, err)
	}

	query := fmt.Sprintf(`WITH updated AS (
	UPDATE profiles SET %[1]s = $2::jsonb || %[1]s WHERE user_id = $1 RETURNING *
) `, section) + profileSelect("updated")
	return s.queryProfile(ctx, query, userID, string(encoded))
}

// remove drops the entry in one statement; the containment guard makes a
// missing entry update nothing so the caller can tell it apart.
func (s *PostgresProfileStore) remove(ctx context.Context, section, userID, entryID string) (models.Profile, error) {
	if !validID(userID) {
		return models.Profile{}, ErrProfileNotFound
	}

	query := fmt.Sprintf(`WITH updated AS (
	UPDATE profiles SET %[1]s = COALESCE((
		SELECT jsonb_agg(e ORDER BY ord) FROM jsonb_array_elements(%[1]s) WITH ORDINALITY AS t(e, ord)
		WHERE e->>'_id' <> $2
	), '[]'::jsonb)
	WHERE user_id = $1 AND %[1]s @> jsonb_build_array(jsonb_build_object('_id', $2::text))
	RETURNING *
) `, section) + profileSelect("updated")

	profile, err := s.queryProfile(ctx, query, userID, entryID)
	if !errors.Is(err, ErrProfileNotFound) {
		return profile, err
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM profiles WHERE user_id = $1)", userID).Scan(&exists); err != nil {
		return models.Profile{}, fmt.Errorf("check profile: %w", err)
	}
	if exists {
		return models.Profile{}, ErrEntryNotFound
	}
	return models.Profile{}, ErrProfileNotFound
}

func (s *PostgresProfileStore) queryProfile(ctx context.Context, query string, args ...interface{}) (models.Profile, error) {
	profile, err := scanProfile(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Profile{}, ErrProfileNotFound
	}
	if err != nil {
		return models.Profile{}, fmt.Errorf("query profile: %w", err)
	}
	return profile, nil
}
