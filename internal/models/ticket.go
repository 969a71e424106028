// internal/models/ticket.go
package models

import "time"

// TicketAnswer is a snapshot entry; it is copied, never referenced.
type TicketAnswer struct {
	QuestionID string `json:"questionId"`
	Answer     string `json:"answer"`
}

type Ticket struct {
	ID          string         `json:"id" db:"id"`
	ApplicantID string         `json:"applicantId" db:"applicant_id"`
	Answers     []TicketAnswer `json:"answers" db:"answers"`
	Status      Status         `json:"status" db:"status"`
	SubmittedAt time.Time      `json:"submittedAt" db:"submitted_at"`
	ReviewedAt  *time.Time     `json:"reviewedAt,omitempty" db:"reviewed_at"`
	ReviewedBy  *string        `json:"reviewedBy,omitempty" db:"reviewed_by"`
}

// TicketAnswerView joins a snapshot entry with its question, when the
// question still exists.
type TicketAnswerView struct {
	QuestionID  string `json:"questionId"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Answer      string `json:"answer"`
}

type ApplicantSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type TicketView struct {
	ID          string             `json:"id"`
	Applicant   ApplicantSummary   `json:"applicant"`
	Answers     []TicketAnswerView `json:"answers"`
	Status      Status             `json:"status"`
	SubmittedAt time.Time          `json:"submittedAt"`
	ReviewedAt  *time.Time         `json:"reviewedAt,omitempty"`
	ReviewedBy  *string            `json:"reviewedBy,omitempty"`
}

// ReviewResult is what a review hands back to the admin.
type ReviewResult struct {
	Ticket    Ticket    `json:"ticket"`
	Applicant Applicant `json:"applicant"`
}
