package handlers

import (
	"net/http"

	"intake-service/internal/common/logger"
	"intake-service/internal/common/validation"
	"intake-service/internal/http/response"
	"intake-service/internal/intake/questions"
	"intake-service/internal/models"
)

type QuestionHandler struct {
	Handler
	questions *questions.Service
}

func NewQuestionHandler(svc *questions.Service, log logger.Logger) *QuestionHandler {
	return &QuestionHandler{Handler: newHandler(log, "question-handler"), questions: svc}
}

type createQuestionRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type updateQuestionRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"isActive"`
}

type reorderRequest struct {
	Direction models.Direction `json:"direction"`
}

func (h *QuestionHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	list, err := h.questions.ListActive(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, list)
}

func (h *QuestionHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	list, err := h.questions.ListAll(r.Context(), principal(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, list)
}

func (h *QuestionHandler) Get(w http.ResponseWriter, r *http.Request) {
	q, err := h.questions.GetWithAnswers(r.Context(), principal(r), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, q)
}

func (h *QuestionHandler) Create(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if err := adminOnly(p); err != nil {
		h.fail(w, r, err)
		return
	}
	var req createQuestionRequest
	if err := decode(r, validation.CreateQuestion, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	q, err := h.questions.Create(r.Context(), p, req.Title, req.Description)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusCreated, q)
}

func (h *QuestionHandler) Update(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if err := adminOnly(p); err != nil {
		h.fail(w, r, err)
		return
	}
	var req updateQuestionRequest
	if err := decode(r, validation.UpdateQuestion, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	q, err := h.questions.Update(r.Context(), p, r.PathValue("id"), models.QuestionUpdate{
		Title:       req.Title,
		Description: req.Description,
		IsActive:    req.IsActive,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, q)
}

func (h *QuestionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.questions.Delete(r.Context(), principal(r), id); err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]string{"id": id})
}

func (h *QuestionHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if err := adminOnly(p); err != nil {
		h.fail(w, r, err)
		return
	}
	var req reorderRequest
	if err := decode(r, validation.ReorderQuest, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	q, err := h.questions.Reorder(r.Context(), p, r.PathValue("id"), req.Direction)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, q)
}
