// internal/workers/ticket/review-ticket/handler_test.go
package reviewticket

import (
	"context"
	"testing"
	"time"

	"intake-service/internal/common/config"
	"intake-service/internal/common/errors"
	"intake-service/internal/common/logger"
	"intake-service/internal/intake/review"
	"intake-service/internal/models"
	"intake-service/internal/storage/memory"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig() *Config {
	return &Config{Enabled: true, MaxJobsActive: 1, Timeout: 5 * time.Second}
}

func createTestHandler(t *testing.T) (*Handler, *memory.Store) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	_, err := store.CreateQuestion(ctx, models.Question{ID: "q1", Title: "Why?", IsActive: true})
	require.NoError(t, err)
	_, err = store.UpsertApplicant(ctx, models.Applicant{ID: "u1", Username: "ana"})
	require.NoError(t, err)
	require.NoError(t, store.InsertAnswer(ctx, models.Answer{ID: "a1", QuestionID: "q1", ApplicantID: "u1", Answer: "yes"}))
	_, err = store.SubmitTicket(ctx, models.Ticket{ID: "t1", ApplicantID: "u1", Status: models.StatusPending, SubmittedAt: time.Now()})
	require.NoError(t, err)

	log := logger.NewTestLogger(t)
	return NewHandler(createTestConfig(), review.NewService(store, nil, log, nil), log), store
}

func jobWithVariables(vars string) entities.Job {
	return entities.Job{ActivatedJob: &pb.ActivatedJob{Key: 1, Variables: vars}}
}

// ==========================
// Input Tests
// ==========================

func TestParseInput(t *testing.T) {
	input, err := parseInput(jobWithVariables(`{"ticketId":"t1","decision":"approved","reviewerId":"admin-1","processVar":true}`))
	require.NoError(t, err)
	assert.Equal(t, &Input{TicketID: "t1", Decision: "approved", ReviewerID: "admin-1"}, input)
}

func TestParseInput_Invalid(t *testing.T) {
	tests := []struct {
		name string
		vars string
	}{
		{"not json", `{ticket`},
		{"missing ticket", `{"decision":"approved","reviewerId":"a"}`},
		{"bad decision", `{"ticketId":"t1","decision":"pending","reviewerId":"a"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseInput(jobWithVariables(tt.vars))
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrCodeValidationFailed))
			assert.Equal(t, 0, errors.ConvertToBPMNError(errors.As(err)).Retries, "validation must not retry")
		})
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Approve(t *testing.T) {
	h, store := createTestHandler(t)

	out, err := h.Execute(context.Background(), &Input{TicketID: "t1", Decision: "approved", ReviewerID: "admin-1"})
	require.NoError(t, err)
	assert.Equal(t, "t1", out.TicketID)
	assert.Equal(t, "approved", out.TicketStatus)
	assert.Equal(t, "approved", out.ApplicantStatus)
	_, err = time.Parse(time.RFC3339, out.ReviewedAt)
	assert.NoError(t, err)

	tk, err := store.GetTicket(context.Background(), "t1")
	require.NoError(t, err)
	require.NotNil(t, tk.ReviewedBy)
	assert.Equal(t, "admin-1", *tk.ReviewedBy)
}

func TestHandler_Execute_Reject(t *testing.T) {
	h, store := createTestHandler(t)

	out, err := h.Execute(context.Background(), &Input{TicketID: "t1", Decision: "rejected", ReviewerID: "admin-1"})
	require.NoError(t, err)
	assert.Equal(t, "rejected", out.ApplicantStatus)

	answers, err := store.ListApplicantAnswers(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, answers)
}

func TestHandler_Execute_BusinessErrorsThrowWithoutRetry(t *testing.T) {
	h, _ := createTestHandler(t)
	ctx := context.Background()

	_, err := h.Execute(ctx, &Input{TicketID: "missing", Decision: "approved", ReviewerID: "admin-1"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotFound))

	_, err = h.Execute(ctx, &Input{TicketID: "t1", Decision: "approved", ReviewerID: "admin-1"})
	require.NoError(t, err)
	_, err = h.Execute(ctx, &Input{TicketID: "t1", Decision: "rejected", ReviewerID: "admin-1"})
	require.True(t, errors.IsCode(err, errors.ErrCodeConflict))

	bpmn := errors.ConvertToBPMNError(errors.As(err))
	assert.Equal(t, 0, bpmn.Retries)
	assert.Equal(t, "BUSINESS", errors.GetErrorCategory(errors.ErrCodeConflict))
}

func TestLoadConfig(t *testing.T) {
	cfg := &config.Config{Workers: map[string]config.WorkerConfig{
		TaskType: {Enabled: true, MaxJobsActive: 2, Timeout: 1500},
	}}
	c := LoadConfig(cfg)
	assert.True(t, c.Enabled)
	assert.Equal(t, 2, c.MaxJobsActive)
	assert.Equal(t, 1500*time.Millisecond, c.Timeout)
}
