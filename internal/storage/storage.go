// Package storage defines the persistence contract of the intake core.
// Uniqueness and multi-entity atomicity are the store's job: answer and
// ticket uniqueness are enforced per (question, applicant) and per applicant,
// and ticket submission, review and deletion are each a single transaction.
package storage

import (
	"context"
	"errors"
	"time"

	"intake-service/internal/models"
)

var (
	ErrNotFound       = errors.New("NOT_FOUND")
	ErrDuplicate      = errors.New("DUPLICATE")
	ErrIncomplete     = errors.New("INCOMPLETE")
	ErrTicketPending  = errors.New("TICKET_PENDING")
	ErrTicketApproved = errors.New("TICKET_APPROVED")
	ErrTicketReviewed = errors.New("TICKET_ALREADY_REVIEWED")
)

// SubmitOutcome reports the new ticket and the rejected ticket it replaced.
type SubmitOutcome struct {
	Ticket     models.Ticket
	ReplacedID string
}

type QuestionStore interface {
	// CreateQuestion assigns Order = max(order)+1 and the insertion sequence.
	CreateQuestion(ctx context.Context, q models.Question) (models.Question, error)
	GetQuestion(ctx context.Context, id string) (models.Question, error)
	UpdateQuestion(ctx context.Context, id string, upd models.QuestionUpdate, at time.Time) (models.Question, error)
	DeleteQuestion(ctx context.Context, id string) error
	ShiftQuestionOrder(ctx context.Context, id string, delta int, at time.Time) (models.Question, error)
	// ListQuestions sorts by (order, seq).
	ListQuestions(ctx context.Context, activeOnly bool) ([]models.Question, error)
}

type ApplicantStore interface {
	// UpsertApplicant refreshes username and email; status is never touched.
	UpsertApplicant(ctx context.Context, a models.Applicant) (models.Applicant, error)
	GetApplicant(ctx context.Context, id string) (models.Applicant, error)
	GetApplicants(ctx context.Context, ids []string) (map[string]models.Applicant, error)
}

type AnswerStore interface {
	// InsertAnswer returns ErrDuplicate if the applicant already answered.
	InsertAnswer(ctx context.Context, a models.Answer) error
	// GetAnswer returns nil without error when there is no answer.
	GetAnswer(ctx context.Context, questionID, applicantID string) (*models.Answer, error)
	// ListApplicantAnswers returns answers to active questions in question order.
	ListApplicantAnswers(ctx context.Context, applicantID string) ([]models.Answer, error)
	// ListQuestionAnswers returns every answer to a question, newest first.
	ListQuestionAnswers(ctx context.Context, questionID string) ([]models.QuestionAnswer, error)
	// CountProgress counts active questions and the applicant's answers to them.
	CountProgress(ctx context.Context, applicantID string) (answered, total int, err error)
}

type TicketStore interface {
	GetTicket(ctx context.Context, id string) (models.Ticket, error)
	GetTicketByApplicant(ctx context.Context, applicantID string) (models.Ticket, error)
	// ListTickets returns tickets newest first.
	ListTickets(ctx context.Context) ([]models.Ticket, error)

	// SubmitTicket snapshots the applicant's answers into t, replacing a
	// rejected ticket and marking the applicant pending, atomically.
	SubmitTicket(ctx context.Context, t models.Ticket) (SubmitOutcome, error)
	// ReviewTicket decides a pending ticket. Rejection purges the applicant's
	// answers in the same transaction.
	ReviewTicket(ctx context.Context, id string, decision models.Status, reviewer string, at time.Time) (models.ReviewResult, error)
	// DeleteTicket removes a ticket and resets its applicant to pending.
	DeleteTicket(ctx context.Context, id string) (models.Ticket, error)
	// ReconcileStatuses re-derives every applicant status from its ticket and
	// returns the number of applicants changed.
	ReconcileStatuses(ctx context.Context) (int, error)
}

// Store is implemented by the postgres and memory backends.
type Store interface {
	QuestionStore
	ApplicantStore
	AnswerStore
	TicketStore
	Ping(ctx context.Context) error
	Close() error
}
