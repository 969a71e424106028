// Package review is the admin authority over tickets: deciding them,
// deleting them and repairing applicant statuses.
package review

import (
	"context"
	stderrors "errors"
	"time"

	"intake-service/internal/common/auth"
	"intake-service/internal/common/errors"
	"intake-service/internal/common/logger"
	"intake-service/internal/common/metrics"
	"intake-service/internal/common/observability"
	"intake-service/internal/intake"
	"intake-service/internal/models"
	"intake-service/internal/storage"

	"go.opentelemetry.io/otel/attribute"
)

type Store interface {
	ReviewTicket(ctx context.Context, id string, decision models.Status, reviewer string, at time.Time) (models.ReviewResult, error)
	DeleteTicket(ctx context.Context, id string) (models.Ticket, error)
	ReconcileStatuses(ctx context.Context) (int, error)
}

// Index keeps the ticket search index in step after each commit.
type Index interface {
	Reindex(ctx context.Context, t models.Ticket)
	Unindex(ctx context.Context, id string)
}

type Service struct {
	store  Store
	index  Index
	logger logger.Logger
	obs    *observability.Observability
	now    intake.Clock
}

func NewService(store Store, index Index, log logger.Logger, obs *observability.Observability) *Service {
	if index == nil {
		index = noopIndex{}
	}
	return &Service{
		store:  store,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "review"}),
		obs:    obs,
		now:    intake.SystemClock,
	}
}

// Review decides a pending ticket. Rejection also discards the applicant's
// live answers so they start over; the ticket snapshot is kept.
func (s *Service) Review(ctx context.Context, p auth.Principal, ticketID, decision string) (r models.ReviewResult, err error) {
	ctx, done := s.obs.StartOperation(ctx, "review.decide",
		attribute.String("ticketId", ticketID),
		attribute.String("decision", decision))
	defer func() { done(err) }()

	if err := intake.RequireAdmin(p); err != nil {
		return models.ReviewResult{}, err
	}
	status, ok := models.ParseDecision(decision)
	if !ok {
		return models.ReviewResult{}, errors.NewValidationError("Invalid decision", "status must be approved or rejected")
	}

	r, err = s.store.ReviewTicket(ctx, ticketID, status, p.ApplicantID, s.now())
	if err != nil {
		switch {
		case stderrors.Is(err, storage.ErrNotFound):
			return models.ReviewResult{}, errors.NewNotFoundError("Ticket", ticketID)
		case stderrors.Is(err, storage.ErrTicketReviewed):
			return models.ReviewResult{}, errors.NewConflictError("Ticket already reviewed", "only pending tickets can be reviewed")
		}
		return models.ReviewResult{}, err
	}
	metrics.TicketsReviewed.WithLabelValues(string(status)).Inc()
	s.index.Reindex(ctx, r.Ticket)

	s.logger.Info("ticket reviewed", map[string]interface{}{
		"ticketId":    ticketID,
		"applicantId": r.Ticket.ApplicantID,
		"decision":    string(status),
		"reviewerId":  p.ApplicantID,
	})
	return r, nil
}

// Delete removes a ticket of any status and returns its applicant to pending.
func (s *Service) Delete(ctx context.Context, p auth.Principal, ticketID string) (err error) {
	ctx, done := s.obs.StartOperation(ctx, "review.delete", attribute.String("ticketId", ticketID))
	defer func() { done(err) }()

	if err := intake.RequireAdmin(p); err != nil {
		return err
	}
	t, err := s.store.DeleteTicket(ctx, ticketID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return errors.NewNotFoundError("Ticket", ticketID)
		}
		return err
	}
	s.index.Unindex(ctx, ticketID)

	s.logger.Info("ticket deleted", map[string]interface{}{
		"ticketId":    ticketID,
		"applicantId": t.ApplicantID,
		"status":      string(t.Status),
	})
	return nil
}

// Reconcile resets every applicant status to that of its ticket, or pending
// without one, and reports how many changed.
func (s *Service) Reconcile(ctx context.Context, p auth.Principal) (int, error) {
	if err := intake.RequireAdmin(p); err != nil {
		return 0, err
	}
	return s.ReconcileAll(ctx)
}

// ReconcileAll is the unauthenticated entry point used at startup and by the
// workflow worker.
func (s *Service) ReconcileAll(ctx context.Context) (n int, err error) {
	ctx, done := s.obs.StartOperation(ctx, "review.reconcile")
	defer func() { done(err) }()

	n, err = s.store.ReconcileStatuses(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Warn("applicant statuses repaired", map[string]interface{}{"repaired": n})
	}
	return n, nil
}

type noopIndex struct{}

func (noopIndex) Reindex(context.Context, models.Ticket) {}
func (noopIndex) Unindex(context.Context, string)        {}
