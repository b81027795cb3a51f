package model

import (
	"time"
)

// ApplicationStatus is the lifecycle status of a job application.
type ApplicationStatus string

const (
	StatusDraft        ApplicationStatus = "draft"
	StatusApplied      ApplicationStatus = "applied"
	StatusInterviewing ApplicationStatus = "interviewing"
	StatusOffered      ApplicationStatus = "offered"
	StatusRejected     ApplicationStatus = "rejected"
	StatusAccepted     ApplicationStatus = "accepted"
)

// ValidStatus reports whether s is a known application status.
func ValidStatus(s ApplicationStatus) bool {
	switch s {
	case StatusDraft, StatusApplied, StatusInterviewing, StatusOffered, StatusRejected, StatusAccepted:
		return true
	}
	return false
}

// Contact is a person in the user's network.
type Contact struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	Email     string    `json:"email,omitempty"`
	LinkedIn  string    `json:"linkedin,omitempty"`
	CompanyID string    `json:"company_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Company is an organization the user is tracking.
type Company struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Website     string    `json:"website,omitempty"`
	LinkedIn    string    `json:"linkedin,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// JobApplication is one tracked application.
type JobApplication struct {
	ID          string            `json:"id"`
	UserID      string            `json:"user_id"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	JobURL      string            `json:"job_url,omitempty"`
	CompanyID   string            `json:"company_id,omitempty"`
	ContactID   string            `json:"contact_id,omitempty"`
	Status      ApplicationStatus `json:"status"`
	AppliedAt   *time.Time        `json:"applied_at,omitempty"`
	Notes       string            `json:"notes,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// JobApplicationWithCompany joins an application with its company name.
type JobApplicationWithCompany struct {
	JobApplication
	CompanyName string `json:"company_name,omitempty"`
}

// Experience is one work experience entry on the user's profile.
type Experience struct {
	ID          string   `json:"id"`
	UserID      string   `json:"user_id"`
	Title       string   `json:"title"`
	Company     string   `json:"company"`
	Location    string   `json:"location,omitempty"`
	StartDate   string   `json:"start_date"` // YYYY-MM
	EndDate     string   `json:"end_date,omitempty"`
	Current     bool     `json:"current"`
	Description string   `json:"description,omitempty"`
	Skills      []string `json:"skills,omitempty"`
}
