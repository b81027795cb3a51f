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

// NewJobApplication holds the writable fields for application creation.
type NewJobApplication struct {
	Title       string
	Description string
	JobURL      string
	CompanyID   string
	ContactID   string
	Status      model.ApplicationStatus
	AppliedAt   *time.Time
	Notes       string
}

// UpdateJobApplication carries a partial update; nil fields are left
// untouched.
type UpdateJobApplication struct {
	Title       *string
	Description *string
	JobURL      *string
	Status      *model.ApplicationStatus
	AppliedAt   *time.Time
	Notes       *string
}

// CreateApplication creates a job application for the user. An empty
// status defaults to draft.
func (s *Store) CreateApplication(ctx context.Context, userID string, data NewJobApplication) (*model.JobApplication, error) {
	now := time.Now().UTC()
	status := data.Status
	if status == "" {
		status = model.StatusDraft
	}

	a := &model.JobApplication{
		ID:          uuid.Must(uuid.NewV7()).String(),
		UserID:      userID,
		Title:       data.Title,
		Description: data.Description,
		JobURL:      data.JobURL,
		CompanyID:   data.CompanyID,
		ContactID:   data.ContactID,
		Status:      status,
		AppliedAt:   data.AppliedAt,
		Notes:       data.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var appliedAt sql.NullString
	if a.AppliedAt != nil {
		appliedAt = nullString(formatTime(*a.AppliedAt))
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO job_applications
		 (id, user_id, title, description, job_url, company_id, contact_id, status, applied_at, notes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.Title, nullString(a.Description), nullString(a.JobURL),
		nullString(a.CompanyID), nullString(a.ContactID), string(a.Status), appliedAt,
		nullString(a.Notes), formatTime(now), formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("insert application: %w", err)
	}
	return a, nil
}

// GetApplication returns an owner-checked application.
func (s *Store) GetApplication(ctx context.Context, userID, id string) (*model.JobApplication, error) {
	rows, err := s.db.QueryContext(ctx,
		applicationSelect+` WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return nil, fmt.Errorf("get application: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return scanApplication(rows)
}

// ListApplications returns the user's applications joined with their
// company names, most recently updated first.
func (s *Store) ListApplications(ctx context.Context, userID string) ([]model.JobApplicationWithCompany, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id, a.user_id, a.title, a.description, a.job_url, a.company_id, a.contact_id,
		        a.status, a.applied_at, a.notes, a.created_at, a.updated_at, c.name
		 FROM job_applications a
		 LEFT JOIN companies c ON c.id = a.company_id
		 WHERE a.user_id = ? ORDER BY a.updated_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	var apps []model.JobApplicationWithCompany
	for rows.Next() {
		var a model.JobApplication
		var description, jobURL, companyID, contactID, appliedAt, notes, companyName sql.NullString
		var status, createdAt, updatedAt string
		err := rows.Scan(&a.ID, &a.UserID, &a.Title, &description, &jobURL, &companyID, &contactID,
			&status, &appliedAt, &notes, &createdAt, &updatedAt, &companyName)
		if err != nil {
			return nil, err
		}
		fillApplication(&a, description, jobURL, companyID, contactID, status, appliedAt, notes, createdAt, updatedAt)
		apps = append(apps, model.JobApplicationWithCompany{
			JobApplication: a,
			CompanyName:    fromNull(companyName),
		})
	}
	return apps, rows.Err()
}

// UpdateApplication applies a partial update to an owner-checked
// application and returns the updated record.
func (s *Store) UpdateApplication(ctx context.Context, userID, id string, data UpdateJobApplication) (*model.JobApplication, error) {
	existing, err := s.GetApplication(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if data.Title != nil {
		existing.Title = *data.Title
	}
	if data.Description != nil {
		existing.Description = *data.Description
	}
	if data.JobURL != nil {
		existing.JobURL = *data.JobURL
	}
	if data.Status != nil {
		existing.Status = *data.Status
	}
	if data.AppliedAt != nil {
		existing.AppliedAt = data.AppliedAt
	}
	if data.Notes != nil {
		existing.Notes = *data.Notes
	}
	existing.UpdatedAt = time.Now().UTC()

	var appliedAt sql.NullString
	if existing.AppliedAt != nil {
		appliedAt = nullString(formatTime(*existing.AppliedAt))
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE job_applications
		 SET title = ?, description = ?, job_url = ?, status = ?, applied_at = ?, notes = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		existing.Title, nullString(existing.Description), nullString(existing.JobURL),
		string(existing.Status), appliedAt, nullString(existing.Notes),
		formatTime(existing.UpdatedAt), id, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("update application: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return existing, nil
}

const applicationSelect = `SELECT id, user_id, title, description, job_url, company_id, contact_id,
	status, applied_at, notes, created_at, updated_at FROM job_applications`

func scanApplication(row rowScanner) (*model.JobApplication, error) {
	var a model.JobApplication
	var description, jobURL, companyID, contactID, appliedAt, notes sql.NullString
	var status, createdAt, updatedAt string
	err := row.Scan(&a.ID, &a.UserID, &a.Title, &description, &jobURL, &companyID, &contactID,
		&status, &appliedAt, &notes, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	fillApplication(&a, description, jobURL, companyID, contactID, status, appliedAt, notes, createdAt, updatedAt)
	return &a, nil
}

func fillApplication(a *model.JobApplication, description, jobURL, companyID, contactID sql.NullString,
	status string, appliedAt, notes sql.NullString, createdAt, updatedAt string) {
	a.Description = fromNull(description)
	a.JobURL = fromNull(jobURL)
	a.CompanyID = fromNull(companyID)
	a.ContactID = fromNull(contactID)
	a.Status = model.ApplicationStatus(status)
	if appliedAt.Valid {
		t := parseTime(appliedAt.String)
		a.AppliedAt = &t
	}
	a.Notes = fromNull(notes)
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
}
