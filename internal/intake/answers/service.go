// Package answers records applicant answers. Each applicant answers a
// question at most once; answers are only ever removed by a rejection.
package answers

import (
	"context"
	stderrors "errors"
	"strings"

	"intake-service/internal/common/auth"
	"intake-service/internal/common/errors"
	"intake-service/internal/common/logger"
	"intake-service/internal/common/metrics"
	"intake-service/internal/common/observability"
	"intake-service/internal/intake"
	"intake-service/internal/models"
	"intake-service/internal/storage"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

type Store interface {
	storage.AnswerStore
	GetQuestion(ctx context.Context, id string) (models.Question, error)
	UpsertApplicant(ctx context.Context, a models.Applicant) (models.Applicant, error)
}

type Service struct {
	store  Store
	logger logger.Logger
	obs    *observability.Observability
	now    intake.Clock
}

func NewService(store Store, log logger.Logger, obs *observability.Observability) *Service {
	return &Service{
		store:  store,
		logger: log.WithFields(map[string]interface{}{"component": "answers"}),
		obs:    obs,
		now:    intake.SystemClock,
	}
}

// Submit stores the caller's answer to an active question.
func (s *Service) Submit(ctx context.Context, p auth.Principal, questionID, text string) (a models.Answer, err error) {
	ctx, done := s.obs.StartOperation(ctx, "answers.submit",
		attribute.String("questionId", questionID),
		attribute.String("applicantId", p.ApplicantID))
	defer func() {
		done(err)
		metrics.AnswersSubmitted.WithLabelValues(outcome(err)).Inc()
	}()

	text = strings.TrimSpace(text)
	if text == "" {
		return models.Answer{}, errors.NewValidationError("Answer is required", "answer must not be empty")
	}

	q, err := s.store.GetQuestion(ctx, questionID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return models.Answer{}, errors.NewNotFoundError("Question", questionID)
		}
		return models.Answer{}, err
	}
	if !q.IsActive {
		return models.Answer{}, errors.NewNotFoundError("Question", questionID)
	}

	if _, err := s.store.UpsertApplicant(ctx, intake.ApplicantOf(p)); err != nil {
		return models.Answer{}, err
	}

	a = models.Answer{
		ID:          uuid.NewString(),
		QuestionID:  questionID,
		ApplicantID: p.ApplicantID,
		Answer:      text,
		CreatedAt:   s.now(),
	}
	if err := s.store.InsertAnswer(ctx, a); err != nil {
		if stderrors.Is(err, storage.ErrDuplicate) {
			return models.Answer{}, errors.NewConflictError("Question already answered",
				"an answer for this question has already been submitted")
		}
		return models.Answer{}, err
	}

	s.logger.Info("answer submitted", map[string]interface{}{
		"answerId":    a.ID,
		"questionId":  questionID,
		"applicantId": p.ApplicantID,
	})
	return a, nil
}

// ForApplicant lists the caller's answers to active questions.
func (s *Service) ForApplicant(ctx context.Context, p auth.Principal) ([]models.Answer, error) {
	list, err := s.store.ListApplicantAnswers(ctx, p.ApplicantID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Answer{}
	}
	return list, nil
}

// One returns nil when the caller has not answered the question.
func (s *Service) One(ctx context.Context, p auth.Principal, questionID string) (*models.Answer, error) {
	return s.store.GetAnswer(ctx, questionID, p.ApplicantID)
}

func outcome(err error) string {
	if err == nil {
		return "accepted"
	}
	switch errors.As(err).Code {
	case errors.ErrCodeConflict:
		return "duplicate"
	case errors.ErrCodeValidationFailed, errors.ErrCodeNotFound:
		return "invalid"
	}
	return "error"
}
