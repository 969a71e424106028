// internal/models/applicant.go
package models

import "time"

// Applicant is the local projection of an identity plus its intake status.
type Applicant struct {
	ID        string    `json:"id" db:"id"`
	Username  string    `json:"username" db:"username"`
	Email     string    `json:"email" db:"email"`
	Status    Status    `json:"status" db:"status"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

func (a Applicant) Summary() ApplicantSummary {
	return ApplicantSummary{ID: a.ID, Username: a.Username, Email: a.Email}
}
