// internal/models/answer.go
package models

import "time"

type Answer struct {
	ID          string    `json:"id" db:"id"`
	QuestionID  string    `json:"questionId" db:"question_id"`
	ApplicantID string    `json:"applicantId" db:"applicant_id"`
	Answer      string    `json:"answer" db:"answer"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}
