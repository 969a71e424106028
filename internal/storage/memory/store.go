// Package memory is an in-process storage.Store. A single mutex serializes
// every mutation, which gives it the same uniqueness and atomicity guarantees
// as the postgres backend.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"intake-service/internal/models"
	"intake-service/internal/storage"
)

type answerKey struct {
	questionID  string
	applicantID string
}

type Store struct {
	mu sync.RWMutex

	seq        int64
	questions  map[string]models.Question
	answers    map[answerKey]models.Answer
	applicants map[string]models.Applicant
	tickets    map[string]models.Ticket
	// ticketOf maps applicant id to ticket id.
	ticketOf map[string]string

	now func() time.Time
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		questions:  make(map[string]models.Question),
		answers:    make(map[answerKey]models.Answer),
		applicants: make(map[string]models.Applicant),
		tickets:    make(map[string]models.Ticket),
		ticketOf:   make(map[string]string),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() error { return nil }

// ==========================
// Questions
// ==========================

func (s *Store) CreateQuestion(ctx context.Context, q models.Question) (models.Question, error) {
	if err := ctx.Err(); err != nil {
		return models.Question{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.questions[q.ID]; exists {
		return models.Question{}, storage.ErrDuplicate
	}

	maxOrder := 0
	for _, existing := range s.questions {
		if existing.Order > maxOrder {
			maxOrder = existing.Order
		}
	}
	s.seq++
	q.Order = maxOrder + 1
	q.Seq = s.seq
	s.questions[q.ID] = q
	return q, nil
}

func (s *Store) GetQuestion(ctx context.Context, id string) (models.Question, error) {
	if err := ctx.Err(); err != nil {
		return models.Question{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.questions[id]
	if !ok {
		return models.Question{}, storage.ErrNotFound
	}
	return q, nil
}

func (s *Store) UpdateQuestion(ctx context.Context, id string, upd models.QuestionUpdate, at time.Time) (models.Question, error) {
	if err := ctx.Err(); err != nil {
		return models.Question{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.questions[id]
	if !ok {
		return models.Question{}, storage.ErrNotFound
	}
	if upd.Title != nil {
		q.Title = *upd.Title
	}
	if upd.Description != nil {
		q.Description = *upd.Description
	}
	if upd.IsActive != nil {
		q.IsActive = *upd.IsActive
	}
	q.UpdatedAt = at
	s.questions[id] = q
	return q, nil
}

func (s *Store) DeleteQuestion(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.questions[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.questions, id)
	return nil
}

func (s *Store) ShiftQuestionOrder(ctx context.Context, id string, delta int, at time.Time) (models.Question, error) {
	if err := ctx.Err(); err != nil {
		return models.Question{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.questions[id]
	if !ok {
		return models.Question{}, storage.ErrNotFound
	}
	q.Order += delta
	q.UpdatedAt = at
	s.questions[id] = q
	return q, nil
}

func (s *Store) ListQuestions(ctx context.Context, activeOnly bool) ([]models.Question, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sortedQuestions(activeOnly), nil
}

// sortedQuestions must be called with mu held.
func (s *Store) sortedQuestions(activeOnly bool) []models.Question {
	out := make([]models.Question, 0, len(s.questions))
	for _, q := range s.questions {
		if activeOnly && !q.IsActive {
			continue
		}
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

// ==========================
// Applicants
// ==========================

func (s *Store) UpsertApplicant(ctx context.Context, a models.Applicant) (models.Applicant, error) {
	if err := ctx.Err(); err != nil {
		return models.Applicant{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.applicants[a.ID]
	if !ok {
		a.Status = models.StatusPending
		a.UpdatedAt = s.now()
		s.applicants[a.ID] = a
		return a, nil
	}
	if existing.Username != a.Username || existing.Email != a.Email {
		existing.Username = a.Username
		existing.Email = a.Email
		existing.UpdatedAt = s.now()
		s.applicants[a.ID] = existing
	}
	return existing, nil
}

func (s *Store) GetApplicant(ctx context.Context, id string) (models.Applicant, error) {
	if err := ctx.Err(); err != nil {
		return models.Applicant{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.applicants[id]
	if !ok {
		return models.Applicant{}, storage.ErrNotFound
	}
	return a, nil
}

func (s *Store) GetApplicants(ctx context.Context, ids []string) (map[string]models.Applicant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]models.Applicant, len(ids))
	for _, id := range ids {
		if a, ok := s.applicants[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}

// ==========================
// Answers
// ==========================

func (s *Store) InsertAnswer(ctx context.Context, a models.Answer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := answerKey{questionID: a.QuestionID, applicantID: a.ApplicantID}
	if _, exists := s.answers[key]; exists {
		return storage.ErrDuplicate
	}
	s.answers[key] = a
	return nil
}

func (s *Store) GetAnswer(ctx context.Context, questionID, applicantID string) (*models.Answer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.answers[answerKey{questionID: questionID, applicantID: applicantID}]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (s *Store) ListApplicantAnswers(ctx context.Context, applicantID string) ([]models.Answer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.applicantAnswers(applicantID), nil
}

// applicantAnswers must be called with mu held.
func (s *Store) applicantAnswers(applicantID string) []models.Answer {
	out := []models.Answer{}
	for _, q := range s.sortedQuestions(true) {
		if a, ok := s.answers[answerKey{questionID: q.ID, applicantID: applicantID}]; ok {
			out = append(out, a)
		}
	}
	return out
}

func (s *Store) ListQuestionAnswers(ctx context.Context, questionID string) ([]models.QuestionAnswer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.QuestionAnswer{}
	for key, a := range s.answers {
		if key.questionID != questionID {
			continue
		}
		applicant := s.applicants[a.ApplicantID]
		out = append(out, models.QuestionAnswer{Answer: a, Username: applicant.Username, Email: applicant.Email})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) CountProgress(ctx context.Context, applicantID string) (int, int, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := len(s.sortedQuestions(true))
	return len(s.applicantAnswers(applicantID)), total, nil
}

// purgeAnswers must be called with mu held.
func (s *Store) purgeAnswers(applicantID string) int {
	n := 0
	for key := range s.answers {
		if key.applicantID == applicantID {
			delete(s.answers, key)
			n++
		}
	}
	return n
}

// ==========================
// Tickets
// ==========================

func copyTicket(t models.Ticket) models.Ticket {
	t.Answers = append([]models.TicketAnswer(nil), t.Answers...)
	if t.ReviewedAt != nil {
		at := *t.ReviewedAt
		t.ReviewedAt = &at
	}
	if t.ReviewedBy != nil {
		by := *t.ReviewedBy
		t.ReviewedBy = &by
	}
	return t
}

func (s *Store) GetTicket(ctx context.Context, id string) (models.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return models.Ticket{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tickets[id]
	if !ok {
		return models.Ticket{}, storage.ErrNotFound
	}
	return copyTicket(t), nil
}

func (s *Store) GetTicketByApplicant(ctx context.Context, applicantID string) (models.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return models.Ticket{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.ticketOf[applicantID]
	if !ok {
		return models.Ticket{}, storage.ErrNotFound
	}
	return copyTicket(s.tickets[id]), nil
}

func (s *Store) ListTickets(ctx context.Context) ([]models.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Ticket, 0, len(s.tickets))
	for _, t := range s.tickets {
		out = append(out, copyTicket(t))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.After(out[j].SubmittedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) SubmitTicket(ctx context.Context, t models.Ticket) (storage.SubmitOutcome, error) {
	if err := ctx.Err(); err != nil {
		return storage.SubmitOutcome{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	applicant, ok := s.applicants[t.ApplicantID]
	if !ok {
		return storage.SubmitOutcome{}, storage.ErrNotFound
	}

	answers := s.applicantAnswers(t.ApplicantID)
	total := len(s.sortedQuestions(true))
	if total == 0 || len(answers) != total {
		return storage.SubmitOutcome{}, storage.ErrIncomplete
	}

	var out storage.SubmitOutcome
	if existingID, ok := s.ticketOf[t.ApplicantID]; ok {
		switch s.tickets[existingID].Status {
		case models.StatusPending:
			return storage.SubmitOutcome{}, storage.ErrTicketPending
		case models.StatusApproved:
			return storage.SubmitOutcome{}, storage.ErrTicketApproved
		}
		delete(s.tickets, existingID)
		delete(s.ticketOf, t.ApplicantID)
		out.ReplacedID = existingID
	}

	t.Answers = make([]models.TicketAnswer, 0, len(answers))
	for _, a := range answers {
		t.Answers = append(t.Answers, models.TicketAnswer{QuestionID: a.QuestionID, Answer: a.Answer})
	}
	t.Status = models.StatusPending
	t.ReviewedAt = nil
	t.ReviewedBy = nil
	s.tickets[t.ID] = t
	s.ticketOf[t.ApplicantID] = t.ID

	applicant.Status = models.StatusPending
	applicant.UpdatedAt = t.SubmittedAt
	s.applicants[t.ApplicantID] = applicant

	out.Ticket = copyTicket(t)
	return out, nil
}

func (s *Store) ReviewTicket(ctx context.Context, id string, decision models.Status, reviewer string, at time.Time) (models.ReviewResult, error) {
	if err := ctx.Err(); err != nil {
		return models.ReviewResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[id]
	if !ok {
		return models.ReviewResult{}, storage.ErrNotFound
	}
	if t.Status != models.StatusPending {
		return models.ReviewResult{}, storage.ErrTicketReviewed
	}

	if decision == models.StatusRejected {
		s.purgeAnswers(t.ApplicantID)
	}

	applicant := s.applicants[t.ApplicantID]
	applicant.ID = t.ApplicantID
	applicant.Status = decision
	applicant.UpdatedAt = at
	s.applicants[t.ApplicantID] = applicant

	t.Status = decision
	t.ReviewedAt = &at
	t.ReviewedBy = &reviewer
	s.tickets[id] = t

	return models.ReviewResult{Ticket: copyTicket(t), Applicant: applicant}, nil
}

func (s *Store) DeleteTicket(ctx context.Context, id string) (models.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return models.Ticket{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[id]
	if !ok {
		return models.Ticket{}, storage.ErrNotFound
	}
	delete(s.tickets, id)
	delete(s.ticketOf, t.ApplicantID)

	if applicant, ok := s.applicants[t.ApplicantID]; ok {
		applicant.Status = models.StatusPending
		applicant.UpdatedAt = s.now()
		s.applicants[t.ApplicantID] = applicant
	}
	return t, nil
}

func (s *Store) ReconcileStatuses(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := 0
	for id, a := range s.applicants {
		want := models.StatusPending
		if ticketID, ok := s.ticketOf[id]; ok {
			want = s.tickets[ticketID].Status
		}
		if a.Status != want {
			a.Status = want
			a.UpdatedAt = s.now()
			s.applicants[id] = a
			changed++
		}
	}
	return changed, nil
}
