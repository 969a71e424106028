// Package questions implements the question registry: an admin-managed,
// ordered set of screening questions.
package questions

import (
	"context"
	stderrors "errors"
	"strings"

	"intake-service/internal/common/auth"
	"intake-service/internal/common/errors"
	"intake-service/internal/common/logger"
	"intake-service/internal/common/observability"
	"intake-service/internal/intake"
	"intake-service/internal/models"
	"intake-service/internal/storage"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

type Store interface {
	storage.QuestionStore
	ListQuestionAnswers(ctx context.Context, questionID string) ([]models.QuestionAnswer, error)
}

// Cache holds the applicant-facing active question list.
type Cache interface {
	Get(ctx context.Context) ([]models.Question, bool)
	Set(ctx context.Context, qs []models.Question)
	Invalidate(ctx context.Context)
}

type Service struct {
	store  Store
	cache  Cache
	logger logger.Logger
	obs    *observability.Observability
	now    intake.Clock
}

func NewService(store Store, cache Cache, log logger.Logger, obs *observability.Observability) *Service {
	if cache == nil {
		cache = NoopCache{}
	}
	return &Service{
		store:  store,
		cache:  cache,
		logger: log.WithFields(map[string]interface{}{"component": "questions"}),
		obs:    obs,
		now:    intake.SystemClock,
	}
}

func notFound(err error, id string) error {
	if stderrors.Is(err, storage.ErrNotFound) {
		return errors.NewNotFoundError("Question", id)
	}
	return err
}

// Create appends a new active question after the current last one.
func (s *Service) Create(ctx context.Context, p auth.Principal, title, description string) (q models.Question, err error) {
	ctx, done := s.obs.StartOperation(ctx, "questions.create")
	defer func() { done(err) }()

	if err := intake.RequireAdmin(p); err != nil {
		return models.Question{}, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return models.Question{}, errors.NewValidationError("Title is required", "title must not be empty")
	}

	now := s.now()
	q, err = s.store.CreateQuestion(ctx, models.Question{
		ID:          uuid.NewString(),
		Title:       title,
		Description: strings.TrimSpace(description),
		IsActive:    true,
		CreatedBy:   p.ApplicantID,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return models.Question{}, err
	}
	s.cache.Invalidate(ctx)

	s.logger.Info("question created", map[string]interface{}{
		"questionId": q.ID,
		"order":      q.Order,
		"createdBy":  p.ApplicantID,
	})
	return q, nil
}

func (s *Service) Update(ctx context.Context, p auth.Principal, id string, upd models.QuestionUpdate) (q models.Question, err error) {
	ctx, done := s.obs.StartOperation(ctx, "questions.update", attribute.String("questionId", id))
	defer func() { done(err) }()

	if err := intake.RequireAdmin(p); err != nil {
		return models.Question{}, err
	}
	if upd.Title != nil {
		title := strings.TrimSpace(*upd.Title)
		if title == "" {
			return models.Question{}, errors.NewValidationError("Title is required", "title must not be empty")
		}
		upd.Title = &title
	}
	if upd.Description != nil {
		desc := strings.TrimSpace(*upd.Description)
		upd.Description = &desc
	}

	q, err = s.store.UpdateQuestion(ctx, id, upd, s.now())
	if err != nil {
		return models.Question{}, notFound(err, id)
	}
	s.cache.Invalidate(ctx)

	s.logger.Info("question updated", map[string]interface{}{"questionId": id, "isActive": q.IsActive})
	return q, nil
}

// Delete leaves existing answers in place; they stop counting because every
// count joins against active questions.
func (s *Service) Delete(ctx context.Context, p auth.Principal, id string) (err error) {
	ctx, done := s.obs.StartOperation(ctx, "questions.delete", attribute.String("questionId", id))
	defer func() { done(err) }()

	if err := intake.RequireAdmin(p); err != nil {
		return err
	}
	if err := s.store.DeleteQuestion(ctx, id); err != nil {
		return notFound(err, id)
	}
	s.cache.Invalidate(ctx)

	s.logger.Info("question deleted", map[string]interface{}{"questionId": id})
	return nil
}

// Reorder shifts a question's order by one without renumbering its
// neighbours. Equal orders fall back to insertion order.
func (s *Service) Reorder(ctx context.Context, p auth.Principal, id string, direction models.Direction) (q models.Question, err error) {
	ctx, done := s.obs.StartOperation(ctx, "questions.reorder", attribute.String("questionId", id))
	defer func() { done(err) }()

	if err := intake.RequireAdmin(p); err != nil {
		return models.Question{}, err
	}
	delta := direction.Delta()
	if delta == 0 {
		return models.Question{}, errors.NewValidationError("Invalid direction", "direction must be up or down")
	}

	q, err = s.store.ShiftQuestionOrder(ctx, id, delta, s.now())
	if err != nil {
		return models.Question{}, notFound(err, id)
	}
	s.cache.Invalidate(ctx)

	s.logger.Info("question reordered", map[string]interface{}{
		"questionId": id,
		"direction":  string(direction),
		"order":      q.Order,
	})
	return q, nil
}

// ListActive is the applicant view, served from cache when possible.
func (s *Service) ListActive(ctx context.Context) ([]models.Question, error) {
	if qs, ok := s.cache.Get(ctx); ok {
		return qs, nil
	}
	qs, err := s.store.ListQuestions(ctx, true)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, qs)
	return qs, nil
}

func (s *Service) ListAll(ctx context.Context, p auth.Principal) ([]models.Question, error) {
	if err := intake.RequireAdmin(p); err != nil {
		return nil, err
	}
	return s.store.ListQuestions(ctx, false)
}

func (s *Service) Get(ctx context.Context, p auth.Principal, id string) (models.Question, error) {
	if err := intake.RequireAdmin(p); err != nil {
		return models.Question{}, err
	}
	q, err := s.store.GetQuestion(ctx, id)
	if err != nil {
		return models.Question{}, notFound(err, id)
	}
	return q, nil
}

// GetWithAnswers returns the question and every applicant's answer to it,
// newest first.
func (s *Service) GetWithAnswers(ctx context.Context, p auth.Principal, id string) (models.QuestionWithAnswers, error) {
	q, err := s.Get(ctx, p, id)
	if err != nil {
		return models.QuestionWithAnswers{}, err
	}
	answers, err := s.store.ListQuestionAnswers(ctx, id)
	if err != nil {
		return models.QuestionWithAnswers{}, err
	}
	return models.QuestionWithAnswers{Question: q, Answers: answers}, nil
}
