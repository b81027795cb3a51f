package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/jobpilot/assistant-api/internal/model"
)

// ListExperiences returns the user's work experiences with their skill
// lists, newest start date first.
func (s *Store) ListExperiences(ctx context.Context, userID string) ([]model.Experience, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, company, location, start_date, end_date, current, description
		 FROM experiences WHERE user_id = ? ORDER BY start_date DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list experiences: %w", err)
	}
	defer rows.Close()

	var exps []model.Experience
	for rows.Next() {
		var e model.Experience
		var location, endDate, description sql.NullString
		var current int
		if err := rows.Scan(&e.ID, &e.UserID, &e.Title, &e.Company, &location, &e.StartDate, &endDate, &current, &description); err != nil {
			return nil, err
		}
		e.Location = fromNull(location)
		e.EndDate = fromNull(endDate)
		e.Current = current != 0
		e.Description = fromNull(description)
		exps = append(exps, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range exps {
		skills, err := s.experienceSkills(ctx, exps[i].ID)
		if err != nil {
			return nil, err
		}
		exps[i].Skills = skills
	}
	return exps, nil
}

func (s *Store) experienceSkills(ctx context.Context, experienceID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.name FROM skills s
		 JOIN experience_skills es ON es.skill_id = s.id
		 WHERE es.experience_id = ? ORDER BY s.name ASC`,
		experienceID,
	)
	if err != nil {
		return nil, fmt.Errorf("experience skills: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// AddExperience inserts an experience with its skills, creating skill
// records as needed. Used by seeding and tests; profile editing itself
// lives outside this service.
func (s *Store) AddExperience(ctx context.Context, userID string, exp model.Experience) (*model.Experience, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	exp.ID = uuid.Must(uuid.NewV7()).String()
	exp.UserID = userID

	current := 0
	if exp.Current {
		current = 1
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO experiences (id, user_id, title, company, location, start_date, end_date, current, description)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		exp.ID, exp.UserID, exp.Title, exp.Company, nullString(exp.Location),
		exp.StartDate, nullString(exp.EndDate), current, nullString(exp.Description),
	)
	if err != nil {
		return nil, fmt.Errorf("insert experience: %w", err)
	}

	for _, name := range exp.Skills {
		var skillID string
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM skills WHERE user_id = ? AND LOWER(name) = LOWER(?)`, userID, name,
		).Scan(&skillID)
		if err == sql.ErrNoRows {
			skillID = uuid.Must(uuid.NewV7()).String()
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO skills (id, user_id, name) VALUES (?, ?, ?)`, skillID, userID, name); err != nil {
				return nil, fmt.Errorf("insert skill: %w", err)
			}
		} else if err != nil {
			return nil, fmt.Errorf("find skill: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO experience_skills (experience_id, skill_id) VALUES (?, ?)`,
			exp.ID, skillID); err != nil {
			return nil, fmt.Errorf("link skill: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &exp, nil
}
