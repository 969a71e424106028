package review

import (
	"context"
	"testing"
	"time"

	"intake-service/internal/common/auth"
	"intake-service/internal/common/errors"
	"intake-service/internal/common/logger"
	"intake-service/internal/models"
	"intake-service/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

var (
	ctx   = context.Background()
	admin = auth.Principal{ApplicantID: "admin-1", Username: "root", IsAdmin: true}
	user  = auth.Principal{ApplicantID: "u1", Username: "ana"}
)

type mockIndex struct {
	mock.Mock
}

func (m *mockIndex) Reindex(ctx context.Context, t models.Ticket) { m.Called(ctx, t) }
func (m *mockIndex) Unindex(ctx context.Context, id string)       { m.Called(ctx, id) }

// submitted seeds one active question answered by u1 and a pending ticket.
func submitted(t *testing.T) (*memory.Store, string) {
	t.Helper()
	store := memory.New()
	q, err := store.CreateQuestion(ctx, models.Question{ID: "q1", Title: "Why?", IsActive: true})
	require.NoError(t, err)
	_, err = store.UpsertApplicant(ctx, models.Applicant{ID: "u1", Username: "ana"})
	require.NoError(t, err)
	require.NoError(t, store.InsertAnswer(ctx, models.Answer{ID: "a1", QuestionID: q.ID, ApplicantID: "u1", Answer: "yes"}))
	out, err := store.SubmitTicket(ctx, models.Ticket{ID: "t1", ApplicantID: "u1", Status: models.StatusPending, SubmittedAt: time.Now()})
	require.NoError(t, err)
	return store, out.Ticket.ID
}

// ==========================
// Review Tests
// ==========================

func TestReview_Approve(t *testing.T) {
	store, id := submitted(t)
	idx := new(mockIndex)
	idx.On("Reindex", mock.Anything, mock.MatchedBy(func(tk models.Ticket) bool {
		return tk.ID == id && tk.Status == models.StatusApproved
	})).Once()
	svc := NewService(store, idx, logger.NewTestLogger(t), nil)

	r, err := svc.Review(ctx, admin, id, "approved")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, r.Ticket.Status)
	assert.Equal(t, models.StatusApproved, r.Applicant.Status)
	require.NotNil(t, r.Ticket.ReviewedBy)
	assert.Equal(t, "admin-1", *r.Ticket.ReviewedBy)
	assert.NotNil(t, r.Ticket.ReviewedAt)

	answers, err := store.ListApplicantAnswers(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, answers, 1, "approval keeps answers")
	idx.AssertExpectations(t)
}

func TestReview_RejectPurgesAnswersKeepsSnapshot(t *testing.T) {
	store, id := submitted(t)
	svc := NewService(store, nil, logger.NewTestLogger(t), nil)

	r, err := svc.Review(ctx, admin, id, "rejected")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, r.Applicant.Status)

	answers, err := store.ListApplicantAnswers(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, answers)

	tk, err := store.GetTicket(ctx, id)
	require.NoError(t, err)
	require.Len(t, tk.Answers, 1)
	assert.Equal(t, "yes", tk.Answers[0].Answer)
}

func TestReview_Errors(t *testing.T) {
	store, id := submitted(t)
	svc := NewService(store, nil, logger.NewTestLogger(t), nil)

	tests := []struct {
		name      string
		principal auth.Principal
		ticketID  string
		decision  string
		code      errors.ErrorCode
	}{
		{"non-admin on missing ticket", user, "missing", "approved", errors.ErrCodeForbidden},
		{"non-admin on real ticket", user, id, "approved", errors.ErrCodeForbidden},
		{"bad decision", admin, id, "pending", errors.ErrCodeValidationFailed},
		{"missing ticket", admin, "missing", "approved", errors.ErrCodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Review(ctx, tt.principal, tt.ticketID, tt.decision)
			assert.True(t, errors.IsCode(err, tt.code), "got %v", err)
		})
	}
}

func TestReview_AlreadyReviewedIsConflict(t *testing.T) {
	store, id := submitted(t)
	svc := NewService(store, nil, logger.NewTestLogger(t), nil)

	_, err := svc.Review(ctx, admin, id, "approved")
	require.NoError(t, err)
	_, err = svc.Review(ctx, admin, id, "rejected")
	assert.True(t, errors.IsCode(err, errors.ErrCodeConflict))

	a, err := store.GetApplicant(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, a.Status)
}

// ==========================
// Delete and Reconcile Tests
// ==========================

func TestDelete_ResetsApplicant(t *testing.T) {
	store, id := submitted(t)
	idx := new(mockIndex)
	idx.On("Reindex", mock.Anything, mock.Anything)
	idx.On("Unindex", mock.Anything, id).Once()
	svc := NewService(store, idx, logger.NewTestLogger(t), nil)

	_, err := svc.Review(ctx, admin, id, "approved")
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, admin, id))

	a, err := store.GetApplicant(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, a.Status)
	_, err = store.GetTicket(ctx, id)
	assert.Error(t, err)

	assert.True(t, errors.IsCode(svc.Delete(ctx, admin, id), errors.ErrCodeNotFound))
	assert.True(t, errors.IsCode(svc.Delete(ctx, user, id), errors.ErrCodeForbidden))
	idx.AssertExpectations(t)
}

type reconcileStore struct {
	Store
	repaired int
	calls    int
}

func (r *reconcileStore) ReconcileStatuses(context.Context) (int, error) {
	r.calls++
	return r.repaired, nil
}

func TestReconcile(t *testing.T) {
	store := &reconcileStore{repaired: 3}
	svc := NewService(store, nil, logger.NewTestLogger(t), nil)

	_, err := svc.Reconcile(ctx, user)
	assert.True(t, errors.IsCode(err, errors.ErrCodeForbidden))
	assert.Equal(t, 0, store.calls)

	n, err := svc.Reconcile(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = svc.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 2, store.calls)
}

func TestReconcile_ConsistentStoreChangesNothing(t *testing.T) {
	store, _ := submitted(t)
	svc := NewService(store, nil, logger.NewTestLogger(t), nil)

	n, err := svc.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
