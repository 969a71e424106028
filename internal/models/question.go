// internal/models/question.go
package models

import "time"

type Question struct {
	ID          string    `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Order       int       `json:"order" db:"sort_order"`
	IsActive    bool      `json:"isActive" db:"is_active"`
	CreatedBy   string    `json:"createdBy" db:"created_by"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`

	// Seq is the insertion sequence; it breaks ties between equal orders.
	Seq int64 `json:"-" db:"seq"`
}

// QuestionUpdate carries only the fields the caller sent.
type QuestionUpdate struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	IsActive    *bool   `json:"isActive,omitempty"`
}

type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// Delta is the order shift for d, or 0 if d is unknown.
func (d Direction) Delta() int {
	switch d {
	case DirectionUp:
		return -1
	case DirectionDown:
		return 1
	}
	return 0
}

// QuestionAnswer is one applicant's answer as shown to admins.
type QuestionAnswer struct {
	Answer
	Username string `json:"username"`
	Email    string `json:"email"`
}

type QuestionWithAnswers struct {
	Question Question         `json:"question"`
	Answers  []QuestionAnswer `json:"answers"`
}
