// internal/workers/ticket/reconcile-status/handler.go
package reconcilestatus

import (
	"context"
	"time"

	"intake-service/internal/common/errors"
	"intake-service/internal/common/logger"
	"intake-service/internal/common/metrics"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "reconcile-applicant-status"

// Reconciler is satisfied by review.Service.
type Reconciler interface {
	ReconcileAll(ctx context.Context) (int, error)
}

type Handler struct {
	config     *Config
	reconciler Reconciler
	errors     *errors.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, reconciler Reconciler, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		reconciler: reconciler,
		errors:     errors.NewErrorHandler(log),
		logger:     log,
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

	output, err := h.Execute(ctx)
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.As(err).Code)).Inc()
		h.errors.HandleJobError(ctx, client, job, err)
		return
	}

	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.GetKey()).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{"error": err})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{"error": err})
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
}

func (h *Handler) Execute(ctx context.Context) (*Output, error) {
	n, err := h.reconciler.ReconcileAll(ctx)
	if err != nil {
		return nil, err
	}
	return &Output{Repaired: n}, nil
}
