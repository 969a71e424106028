// Package tickets owns submission of an applicant's answers as a ticket and
// the ticket projections shown to applicants and admins.
package tickets

import (
	"context"
	stderrors "errors"

	"intake-service/internal/common/auth"
	"intake-service/internal/common/errors"
	"intake-service/internal/common/logger"
	"intake-service/internal/common/metrics"
	"intake-service/internal/common/observability"
	"intake-service/internal/intake"
	"intake-service/internal/intake/completion"
	"intake-service/internal/models"
	"intake-service/internal/search"
	"intake-service/internal/storage"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

type Store interface {
	completion.Store
	GetTicket(ctx context.Context, id string) (models.Ticket, error)
	ListTickets(ctx context.Context) ([]models.Ticket, error)
	SubmitTicket(ctx context.Context, t models.Ticket) (storage.SubmitOutcome, error)
	UpsertApplicant(ctx context.Context, a models.Applicant) (models.Applicant, error)
	GetApplicants(ctx context.Context, ids []string) (map[string]models.Applicant, error)
	ListQuestions(ctx context.Context, activeOnly bool) ([]models.Question, error)
}

type Service struct {
	store     Store
	evaluator *completion.Evaluator
	index     search.Indexer
	logger    logger.Logger
	obs       *observability.Observability
	now       intake.Clock
}

func NewService(store Store, index search.Indexer, log logger.Logger, obs *observability.Observability) *Service {
	if index == nil {
		index = search.NoopIndexer{}
	}
	return &Service{
		store:     store,
		evaluator: completion.NewEvaluator(store),
		index:     index,
		logger:    log.WithFields(map[string]interface{}{"component": "tickets"}),
		obs:       obs,
		now:       intake.SystemClock,
	}
}

// Evaluate reports the caller's progress.
func (s *Service) Evaluate(ctx context.Context, p auth.Principal) (models.Completion, error) {
	return s.evaluator.Evaluate(ctx, p.ApplicantID)
}

// Submit snapshots the caller's answers into a new pending ticket. A rejected
// ticket is replaced; a pending or approved one blocks submission.
func (s *Service) Submit(ctx context.Context, p auth.Principal) (v models.TicketView, err error) {
	ctx, done := s.obs.StartOperation(ctx, "tickets.submit", attribute.String("applicantId", p.ApplicantID))
	defer func() {
		done(err)
		metrics.TicketsSubmitted.WithLabelValues(outcome(err)).Inc()
	}()

	if _, err := s.store.UpsertApplicant(ctx, intake.ApplicantOf(p)); err != nil {
		return models.TicketView{}, err
	}

	c, err := s.evaluator.Evaluate(ctx, p.ApplicantID)
	if err != nil {
		return models.TicketView{}, err
	}
	if !c.AllAnswered {
		return models.TicketView{}, errIncomplete(c)
	}
	if c.TicketStatus != nil {
		if err := blocked(*c.TicketStatus); err != nil {
			return models.TicketView{}, err
		}
	}

	out, err := s.store.SubmitTicket(ctx, models.Ticket{
		ID:          uuid.NewString(),
		ApplicantID: p.ApplicantID,
		Status:      models.StatusPending,
		SubmittedAt: s.now(),
	})
	if err != nil {
		return models.TicketView{}, s.mapSubmitError(err, c)
	}

	v, err = s.View(ctx, out.Ticket)
	if err != nil {
		return models.TicketView{}, err
	}

	if out.ReplacedID != "" {
		s.unindex(ctx, out.ReplacedID)
	}
	s.reindex(ctx, v)

	s.logger.Info("ticket submitted", map[string]interface{}{
		"ticketId":    v.ID,
		"applicantId": p.ApplicantID,
		"answers":     len(v.Answers),
		"replaced":    out.ReplacedID,
	})
	return v, nil
}

// Mine returns nil when the caller has no ticket.
func (s *Service) Mine(ctx context.Context, p auth.Principal) (*models.TicketView, error) {
	t, err := s.store.GetTicketByApplicant(ctx, p.ApplicantID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	v, err := s.View(ctx, t)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// List returns every ticket, newest first.
func (s *Service) List(ctx context.Context, p auth.Principal) ([]models.TicketView, error) {
	if err := intake.RequireAdmin(p); err != nil {
		return nil, err
	}
	list, err := s.store.ListTickets(ctx)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, list)
}

func (s *Service) Get(ctx context.Context, p auth.Principal, id string) (models.TicketView, error) {
	if err := intake.RequireAdmin(p); err != nil {
		return models.TicketView{}, err
	}
	t, err := s.store.GetTicket(ctx, id)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return models.TicketView{}, errors.NewNotFoundError("Ticket", id)
		}
		return models.TicketView{}, err
	}
	return s.View(ctx, t)
}

// Search queries the ticket index. It fails with an external service error
// when the index is unreachable; the store is not consulted.
func (s *Service) Search(ctx context.Context, p auth.Principal, query string, limit int) ([]search.Hit, error) {
	if err := intake.RequireAdmin(p); err != nil {
		return nil, err
	}
	hits, err := s.index.Search(ctx, query, limit)
	if err != nil {
		return nil, errors.NewExternalServiceError("elasticsearch", err)
	}
	return hits, nil
}

// Index writes happen after commit; failures are logged and dropped.
func (s *Service) reindex(ctx context.Context, v models.TicketView) {
	if err := s.index.IndexTicket(ctx, v); err != nil {
		s.logger.Warn("ticket index write failed", map[string]interface{}{"ticketId": v.ID, "error": err})
	}
}

func (s *Service) unindex(ctx context.Context, id string) {
	if err := s.index.RemoveTicket(ctx, id); err != nil {
		s.logger.Warn("ticket index removal failed", map[string]interface{}{"ticketId": id, "error": err})
	}
}

// Reindex and Unindex are used by the review service after its own commits.
func (s *Service) Reindex(ctx context.Context, t models.Ticket) {
	v, err := s.View(ctx, t)
	if err != nil {
		s.logger.Warn("ticket view for index failed", map[string]interface{}{"ticketId": t.ID, "error": err})
		return
	}
	s.reindex(ctx, v)
}

func (s *Service) Unindex(ctx context.Context, id string) {
	s.unindex(ctx, id)
}

func (s *Service) mapSubmitError(err error, c models.Completion) error {
	switch {
	case stderrors.Is(err, storage.ErrIncomplete):
		return errIncomplete(c)
	case stderrors.Is(err, storage.ErrTicketPending):
		return blocked(models.StatusPending)
	case stderrors.Is(err, storage.ErrTicketApproved):
		return blocked(models.StatusApproved)
	}
	return err
}

func errIncomplete(c models.Completion) error {
	return errors.NewValidationError("Not all questions have been answered", "answer every active question before submitting").
		WithMetadata("answeredCount", c.AnsweredCount).
		WithMetadata("totalQuestions", c.TotalQuestions)
}

func blocked(status models.Status) error {
	switch status {
	case models.StatusPending:
		return errors.NewConflictError("A ticket is already pending review", "wait for the pending ticket to be reviewed")
	case models.StatusApproved:
		return errors.NewConflictError("Application already approved", "an approved application cannot be resubmitted")
	}
	return nil
}

func outcome(err error) string {
	if err == nil {
		return "accepted"
	}
	switch errors.As(err).Code {
	case errors.ErrCodeValidationFailed:
		return "incomplete"
	case errors.ErrCodeConflict:
		return "blocked"
	}
	return "error"
}
