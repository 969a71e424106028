package completion

import (
	"context"
	stderrors "errors"
	"testing"

	"intake-service/internal/models"
	"intake-service/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CountProgress(ctx context.Context, applicantID string) (int, int, error) {
	args := m.Called(ctx, applicantID)
	return args.Int(0), args.Int(1), args.Error(2)
}

func (m *mockStore) GetTicketByApplicant(ctx context.Context, applicantID string) (models.Ticket, error) {
	args := m.Called(ctx, applicantID)
	return args.Get(0).(models.Ticket), args.Error(1)
}

func status(s models.Status) *models.Status { return &s }

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name      string
		answered  int
		total     int
		ticket    *models.Ticket
		wantAll   bool
		wantCan   bool
		wantState *models.Status
	}{
		{name: "empty registry", answered: 0, total: 0},
		{name: "partial", answered: 1, total: 2},
		{name: "complete, no ticket", answered: 2, total: 2, wantAll: true, wantCan: true},
		{
			name: "complete, pending", answered: 2, total: 2,
			ticket:  &models.Ticket{ID: "t1", Status: models.StatusPending},
			wantAll: true, wantState: status(models.StatusPending),
		},
		{
			name: "complete, rejected", answered: 2, total: 2,
			ticket:  &models.Ticket{ID: "t1", Status: models.StatusRejected},
			wantAll: true, wantCan: true, wantState: status(models.StatusRejected),
		},
		{
			name: "approved is terminal", answered: 2, total: 2,
			ticket:  &models.Ticket{ID: "t1", Status: models.StatusApproved},
			wantAll: true, wantState: status(models.StatusApproved),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(mockStore)
			store.On("CountProgress", mock.Anything, "u1").Return(tt.answered, tt.total, nil)
			if tt.ticket != nil {
				store.On("GetTicketByApplicant", mock.Anything, "u1").Return(*tt.ticket, nil)
			} else {
				store.On("GetTicketByApplicant", mock.Anything, "u1").Return(models.Ticket{}, storage.ErrNotFound)
			}

			c, err := NewEvaluator(store).Evaluate(context.Background(), "u1")
			require.NoError(t, err)
			assert.Equal(t, tt.total, c.TotalQuestions)
			assert.Equal(t, tt.answered, c.AnsweredCount)
			assert.Equal(t, tt.wantAll, c.AllAnswered)
			assert.Equal(t, tt.wantCan, c.CanSubmit)
			assert.Equal(t, tt.ticket != nil, c.HasTicket)
			assert.Equal(t, tt.wantState, c.TicketStatus)
			store.AssertExpectations(t)
		})
	}
}

func TestEvaluate_StoreErrors(t *testing.T) {
	boom := stderrors.New("boom")

	store := new(mockStore)
	store.On("CountProgress", mock.Anything, "u1").Return(0, 0, boom)
	_, err := NewEvaluator(store).Evaluate(context.Background(), "u1")
	assert.ErrorIs(t, err, boom)

	store = new(mockStore)
	store.On("CountProgress", mock.Anything, "u1").Return(1, 1, nil)
	store.On("GetTicketByApplicant", mock.Anything, "u1").Return(models.Ticket{}, boom)
	_, err = NewEvaluator(store).Evaluate(context.Background(), "u1")
	assert.ErrorIs(t, err, boom)
}
