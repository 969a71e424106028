// internal/workers/ticket/review-ticket/handler.go
package reviewticket

import (
	"context"
	"encoding/json"
	"time"

	"intake-service/internal/common/auth"
	"intake-service/internal/common/errors"
	"intake-service/internal/common/logger"
	"intake-service/internal/common/metrics"
	"intake-service/internal/common/validation"
	"intake-service/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "review-ticket"

// Reviewer is satisfied by review.Service.
type Reviewer interface {
	Review(ctx context.Context, p auth.Principal, ticketID, decision string) (models.ReviewResult, error)
}

type Handler struct {
	config   *Config
	reviewer Reviewer
	errors   *errors.ErrorHandler
	logger   logger.Logger
}

func NewHandler(config *Config, reviewer Reviewer, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		reviewer: reviewer,
		errors:   errors.NewErrorHandler(log),
		logger:   log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := parseInput(job)
	if err == nil {
		var output *Output
		output, err = h.Execute(ctx, input)
		if err == nil {
			h.completeJob(ctx, client, job, output)
			metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
			metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
			return
		}
	}

	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.As(err).Code)).Inc()
	h.errors.HandleJobError(ctx, client, job, err)
}

func parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewValidationError("Failed to parse job variables", err.Error())
	}

	result, err := validation.ValidateInput(validation.ReviewTicketJob, variables)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	if !result.Valid {
		return nil, errors.NewValidationError("Input validation failed", result.Summary())
	}

	var input Input
	if err := json.Unmarshal([]byte(job.GetVariables()), &input); err != nil {
		return nil, errors.NewValidationError("Failed to parse job variables", err.Error())
	}
	return &input, nil
}

// Execute reviews on behalf of the reviewer named in the process; the
// process engine is trusted to have authorised them.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	reviewer := auth.Principal{ApplicantID: input.ReviewerID, IsAdmin: true}

	r, err := h.reviewer.Review(ctx, reviewer, input.TicketID, input.Decision)
	if err != nil {
		return nil, err
	}

	out := &Output{
		TicketID:        r.Ticket.ID,
		TicketStatus:    string(r.Ticket.Status),
		ApplicantStatus: string(r.Applicant.Status),
	}
	if r.Ticket.ReviewedAt != nil {
		out.ReviewedAt = r.Ticket.ReviewedAt.UTC().Format(time.RFC3339)
	}
	return out, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.GetKey()).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	h.logger.Info("job completed successfully", map[string]interface{}{
		"jobKey":       job.GetKey(),
		"ticketId":     output.TicketID,
		"ticketStatus": output.TicketStatus,
	})
}
