package tickets

import (
	"context"

	"intake-service/internal/models"
)

// View joins a ticket with its applicant and question text. Snapshot entries
// whose question was deleted keep only the id and answer.
func (s *Service) View(ctx context.Context, t models.Ticket) (models.TicketView, error) {
	views, err := s.views(ctx, []models.Ticket{t})
	if err != nil {
		return models.TicketView{}, err
	}
	return views[0], nil
}

func (s *Service) views(ctx context.Context, list []models.Ticket) ([]models.TicketView, error) {
	out := make([]models.TicketView, 0, len(list))
	if len(list) == 0 {
		return out, nil
	}

	questions, err := s.store.ListQuestions(ctx, false)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	ids := make([]string, 0, len(list))
	for _, t := range list {
		ids = append(ids, t.ApplicantID)
	}
	applicants, err := s.store.GetApplicants(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, t := range list {
		summary := models.ApplicantSummary{ID: t.ApplicantID}
		if a, ok := applicants[t.ApplicantID]; ok {
			summary = a.Summary()
		}

		answers := make([]models.TicketAnswerView, 0, len(t.Answers))
		for _, a := range t.Answers {
			av := models.TicketAnswerView{QuestionID: a.QuestionID, Answer: a.Answer}
			if q, ok := byID[a.QuestionID]; ok {
				av.Title = q.Title
				av.Description = q.Description
			}
			answers = append(answers, av)
		}

		out = append(out, models.TicketView{
			ID:          t.ID,
			Applicant:   summary,
			Answers:     answers,
			Status:      t.Status,
			SubmittedAt: t.SubmittedAt,
			ReviewedAt:  t.ReviewedAt,
			ReviewedBy:  t.ReviewedBy,
		})
	}
	return out, nil
}
