package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jobpilot/assistant-api/internal/model"
)

// NewCompany holds the writable fields for company creation.
type NewCompany struct {
	Name        string
	Description string
	Website     string
	LinkedIn    string
}

// CreateCompany creates a company for the user.
func (s *Store) CreateCompany(ctx context.Context, userID string, data NewCompany) (*model.Company, error) {
	now := time.Now().UTC()
	c := &model.Company{
		ID:          uuid.Must(uuid.NewV7()).String(),
		UserID:      userID,
		Name:        data.Name,
		Description: data.Description,
		Website:     data.Website,
		LinkedIn:    data.LinkedIn,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO companies (id, user_id, name, description, website, linkedin, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Name, nullString(c.Description), nullString(c.Website), nullString(c.LinkedIn),
		formatTime(now), formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("insert company: %w", err)
	}
	return c, nil
}

// ListCompanies returns the user's companies ordered by name.
func (s *Store) ListCompanies(ctx context.Context, userID string) ([]model.Company, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, name, description, website, linkedin, created_at, updated_at
		 FROM companies WHERE user_id = ? ORDER BY name ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	defer rows.Close()

	var companies []model.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		companies = append(companies, *c)
	}
	return companies, rows.Err()
}

// FindCompanyByName finds the user's company by case-insensitive name
// match. Returns ErrNotFound when no company matches.
func (s *Store) FindCompanyByName(ctx context.Context, userID, name string) (*model.Company, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, name, description, website, linkedin, created_at, updated_at
		 FROM companies WHERE user_id = ? AND LOWER(name) = LOWER(?) LIMIT 1`,
		userID, name,
	)
	if err != nil {
		return nil, fmt.Errorf("find company: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return scanCompany(rows)
}

// GetCompany returns an owner-checked company.
func (s *Store) GetCompany(ctx context.Context, userID, id string) (*model.Company, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, name, description, website, linkedin, created_at, updated_at
		 FROM companies WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("get company: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return scanCompany(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCompany(row rowScanner) (*model.Company, error) {
	var c model.Company
	var description, website, linkedin sql.NullString
	var createdAt, updatedAt string
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &description, &website, &linkedin, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.Description = fromNull(description)
	c.Website = fromNull(website)
	c.LinkedIn = fromNull(linkedin)
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return &c, nil
}
