// Package http assembles the intake API.
package http

import (
	"net/http"
	"time"

	"intake-service/internal/common/auth"
	"intake-service/internal/common/logger"
	"intake-service/internal/http/handlers"
	httpmw "intake-service/internal/http/middleware"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxBodyBytes = 1 << 20

// RateLimits bounds write traffic per applicant within Window.
type RateLimits struct {
	Answers int
	Tickets int
	Window  time.Duration
}

type RouterDependencies struct {
	Questions      *handlers.QuestionHandler
	Answers        *handlers.AnswerHandler
	Tickets        *handlers.TicketHandler
	Health         *handlers.HealthHandler
	Verifier       *auth.Verifier
	Limiter        httpmw.Limiter
	Limits         RateLimits
	MetricsHandler http.Handler
	RequestTimeout time.Duration
	Logger         logger.Logger
}

func NewRouter(deps RouterDependencies) http.Handler {
	mux := http.NewServeMux()

	metricsHandler := deps.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	mux.HandleFunc("GET /health", deps.Health.Live)
	mux.HandleFunc("GET /ready", deps.Health.Ready)
	mux.Handle("GET /metrics", metricsHandler)

	authed := httpmw.Authenticate(deps.Verifier)
	protect := func(h http.HandlerFunc, mws ...httpmw.Middleware) http.Handler {
		return httpmw.Chain(h, append([]httpmw.Middleware{authed}, mws...)...)
	}
	answerLimit := httpmw.RateLimit(deps.Limiter, "answers", deps.Limits.Answers, deps.Limits.Window)
	ticketLimit := httpmw.RateLimit(deps.Limiter, "tickets", deps.Limits.Tickets, deps.Limits.Window)

	q := deps.Questions
	mux.Handle("GET /questions", protect(q.ListActive))
	mux.Handle("GET /admin/questions", protect(q.ListAll))
	mux.Handle("POST /admin/questions", protect(q.Create))
	mux.Handle("GET /admin/questions/{id}", protect(q.Get))
	mux.Handle("PUT /admin/questions/{id}", protect(q.Update))
	mux.Handle("DELETE /admin/questions/{id}", protect(q.Delete))
	mux.Handle("PATCH /admin/questions/{id}/reorder", protect(q.Reorder))

	a := deps.Answers
	mux.Handle("POST /answers", protect(a.Submit, answerLimit))
	mux.Handle("GET /answers/me", protect(a.Mine))
	mux.Handle("GET /answers/question/{questionId}", protect(a.ForQuestion))
	mux.Handle("GET /answers/completion", protect(a.Completion))

	t := deps.Tickets
	mux.Handle("POST /tickets", protect(t.Submit, ticketLimit))
	mux.Handle("GET /tickets/me", protect(t.Mine))
	mux.Handle("GET /admin/tickets", protect(t.List))
	mux.Handle("GET /admin/tickets/search", protect(t.Search))
	mux.Handle("GET /admin/tickets/{id}", protect(t.Get))
	mux.Handle("PATCH /admin/tickets/{id}", protect(t.Review))
	mux.Handle("DELETE /admin/tickets/{id}", protect(t.Delete))
	mux.Handle("POST /admin/reconcile", protect(t.Reconcile))

	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return httpmw.Chain(mux,
		httpmw.RequestID,
		httpmw.Logging(log),
		httpmw.Recover(log),
		httpmw.BodyLimit(maxBodyBytes),
		httpmw.Timeout(deps.RequestTimeout),
		httpmw.Metrics,
	)
}
