// Package completion derives an applicant's progress and whether a ticket may
// be submitted.
package completion

import (
	"context"
	stderrors "errors"

	"intake-service/internal/models"
	"intake-service/internal/storage"
)

type Store interface {
	CountProgress(ctx context.Context, applicantID string) (answered, total int, err error)
	GetTicketByApplicant(ctx context.Context, applicantID string) (models.Ticket, error)
}

type Evaluator struct {
	store Store
}

func NewEvaluator(store Store) *Evaluator {
	return &Evaluator{store: store}
}

// Evaluate never fails for an applicant the store has not seen; it reports
// zero answers and no ticket.
func (e *Evaluator) Evaluate(ctx context.Context, applicantID string) (models.Completion, error) {
	answered, total, err := e.store.CountProgress(ctx, applicantID)
	if err != nil {
		return models.Completion{}, err
	}

	c := models.Completion{
		TotalQuestions: total,
		AnsweredCount:  answered,
		// An empty registry is never complete.
		AllAnswered: total > 0 && answered == total,
	}

	ticket, err := e.store.GetTicketByApplicant(ctx, applicantID)
	switch {
	case err == nil:
		status := ticket.Status
		c.HasTicket = true
		c.TicketStatus = &status
	case !stderrors.Is(err, storage.ErrNotFound):
		return models.Completion{}, err
	}

	c.CanSubmit = CanSubmit(c.AllAnswered, c.TicketStatus)
	return c, nil
}

// CanSubmit allows a first submission or a resubmission after rejection.
// Approved is terminal.
func CanSubmit(allAnswered bool, ticketStatus *models.Status) bool {
	if !allAnswered {
		return false
	}
	return ticketStatus == nil || *ticketStatus == models.StatusRejected
}
