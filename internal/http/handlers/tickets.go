package handlers

import (
	"net/http"
	"strconv"

	"intake-service/internal/common/logger"
	"intake-service/internal/common/validation"
	"intake-service/internal/http/response"
	"intake-service/internal/intake/review"
	"intake-service/internal/intake/tickets"
)

type TicketHandler struct {
	Handler
	tickets *tickets.Service
	review  *review.Service
}

func NewTicketHandler(ticketSvc *tickets.Service, reviewSvc *review.Service, log logger.Logger) *TicketHandler {
	return &TicketHandler{Handler: newHandler(log, "ticket-handler"), tickets: ticketSvc, review: reviewSvc}
}

type reviewRequest struct {
	Status string `json:"status"`
}

func (h *TicketHandler) Submit(w http.ResponseWriter, r *http.Request) {
	v, err := h.tickets.Submit(r.Context(), principal(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusCreated, v)
}

// Mine answers null when the caller has no ticket.
func (h *TicketHandler) Mine(w http.ResponseWriter, r *http.Request) {
	v, err := h.tickets.Mine(r.Context(), principal(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, v)
}

func (h *TicketHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.tickets.List(r.Context(), principal(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, list)
}

func (h *TicketHandler) Search(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	hits, err := h.tickets.Search(r.Context(), principal(r), r.URL.Query().Get("q"), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, hits)
}

func (h *TicketHandler) Get(w http.ResponseWriter, r *http.Request) {
	v, err := h.tickets.Get(r.Context(), principal(r), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, v)
}

func (h *TicketHandler) Review(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if err := adminOnly(p); err != nil {
		h.fail(w, r, err)
		return
	}
	var req reviewRequest
	if err := decode(r, validation.ReviewTicket, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	result, err := h.review.Review(r.Context(), p, r.PathValue("id"), req.Status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, result)
}

func (h *TicketHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.review.Delete(r.Context(), principal(r), id); err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]string{"id": id})
}

func (h *TicketHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	n, err := h.review.Reconcile(r.Context(), principal(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]int{"repaired": n})
}
