package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jobpilot/assistant-api/internal/model"
)

// NewContact holds the writable fields for contact creation. All
// fields are optional.
type NewContact struct {
	FirstName string
	LastName  string
	Email     string
	LinkedIn  string
	CompanyID string
}

// CreateContact creates a contact for the user.
func (s *Store) CreateContact(ctx context.Context, userID string, data NewContact) (*model.Contact, error) {
	now := time.Now().UTC()
	c := &model.Contact{
		ID:        uuid.Must(uuid.NewV7()).String(),
		UserID:    userID,
		FirstName: data.FirstName,
		LastName:  data.LastName,
		Email:     data.Email,
		LinkedIn:  data.LinkedIn,
		CompanyID: data.CompanyID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO contacts (id, user_id, first_name, last_name, email, linkedin, company_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, nullString(c.FirstName), nullString(c.LastName), nullString(c.Email),
		nullString(c.LinkedIn), nullString(c.CompanyID), formatTime(now), formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("insert contact: %w", err)
	}
	return c, nil
}

// ListContacts returns the user's contacts, newest first.
func (s *Store) ListContacts(ctx context.Context, userID string) ([]model.Contact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, first_name, last_name, email, linkedin, company_id, created_at, updated_at
		 FROM contacts WHERE user_id = ? ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	var contacts []model.Contact
	for rows.Next() {
		var c model.Contact
		var firstName, lastName, email, linkedin, companyID sql.NullString
		var createdAt, updatedAt string
		if err := rows.Scan(&c.ID, &c.UserID, &firstName, &lastName, &email, &linkedin, &companyID, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		c.FirstName = fromNull(firstName)
		c.LastName = fromNull(lastName)
		c.Email = fromNull(email)
		c.LinkedIn = fromNull(linkedin)
		c.CompanyID = fromNull(companyID)
		c.CreatedAt = parseTime(createdAt)
		c.UpdatedAt = parseTime(updatedAt)
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}
