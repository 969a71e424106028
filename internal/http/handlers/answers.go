package handlers

import (
	"net/http"

	"intake-service/internal/common/logger"
	"intake-service/internal/common/validation"
	"intake-service/internal/http/response"
	"intake-service/internal/intake/answers"
	"intake-service/internal/intake/tickets"
)

type AnswerHandler struct {
	Handler
	answers *answers.Service
	tickets *tickets.Service
}

func NewAnswerHandler(answerSvc *answers.Service, ticketSvc *tickets.Service, log logger.Logger) *AnswerHandler {
	return &AnswerHandler{Handler: newHandler(log, "answer-handler"), answers: answerSvc, tickets: ticketSvc}
}

type submitAnswerRequest struct {
	QuestionID string `json:"questionId"`
	Answer     string `json:"answer"`
}

func (h *AnswerHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitAnswerRequest
	if err := decode(r, validation.SubmitAnswer, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	a, err := h.answers.Submit(r.Context(), principal(r), req.QuestionID, req.Answer)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusCreated, a)
}

func (h *AnswerHandler) Mine(w http.ResponseWriter, r *http.Request) {
	list, err := h.answers.ForApplicant(r.Context(), principal(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, list)
}

// ForQuestion answers null when the caller has not answered yet.
func (h *AnswerHandler) ForQuestion(w http.ResponseWriter, r *http.Request) {
	a, err := h.answers.One(r.Context(), principal(r), r.PathValue("questionId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, a)
}

func (h *AnswerHandler) Completion(w http.ResponseWriter, r *http.Request) {
	c, err := h.tickets.Evaluate(r.Context(), principal(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, c)
}
