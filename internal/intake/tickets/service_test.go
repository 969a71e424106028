package tickets

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"intake-service/internal/common/auth"
	"intake-service/internal/common/errors"
	"intake-service/internal/common/logger"
	"intake-service/internal/models"
	"intake-service/internal/search"
	"intake-service/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

var (
	ctx       = context.Background()
	applicant = auth.Principal{ApplicantID: "u1", Username: "ana", Email: "ana@example.com"}
	admin     = auth.Principal{ApplicantID: "admin-1", Username: "root", IsAdmin: true}
)

type mockIndexer struct {
	mock.Mock
}

func (m *mockIndexer) IndexTicket(ctx context.Context, v models.TicketView) error {
	return m.Called(ctx, v).Error(0)
}

func (m *mockIndexer) RemoveTicket(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockIndexer) Search(ctx context.Context, q string, limit int) ([]search.Hit, error) {
	args := m.Called(ctx, q, limit)
	hits, _ := args.Get(0).([]search.Hit)
	return hits, args.Error(1)
}

func setup(t *testing.T, index search.Indexer, titles ...string) (*Service, *memory.Store, []models.Question) {
	t.Helper()
	store := memory.New()
	var qs []models.Question
	for i, title := range titles {
		q, err := store.CreateQuestion(ctx, models.Question{
			ID:       "q" + string(rune('1'+i)),
			Title:    title,
			IsActive: true,
		})
		require.NoError(t, err)
		qs = append(qs, q)
	}
	return NewService(store, index, logger.NewTestLogger(t), nil), store, qs
}

func answer(t *testing.T, store *memory.Store, p auth.Principal, questionID, text string) {
	t.Helper()
	_, err := store.UpsertApplicant(ctx, models.Applicant{ID: p.ApplicantID, Username: p.Username, Email: p.Email})
	require.NoError(t, err)
	require.NoError(t, store.InsertAnswer(ctx, models.Answer{
		ID:          questionID + "-" + p.ApplicantID + "-" + text,
		QuestionID:  questionID,
		ApplicantID: p.ApplicantID,
		Answer:      text,
		CreatedAt:   time.Now(),
	}))
}

// ==========================
// Submission Tests
// ==========================

func TestSubmit_IncompleteIsValidationAndCreatesNothing(t *testing.T) {
	svc, store, qs := setup(t, nil, "One", "Two")
	answer(t, store, applicant, qs[0].ID, "a")

	_, err := svc.Submit(ctx, applicant)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidationFailed))

	mine, err := svc.Mine(ctx, applicant)
	require.NoError(t, err)
	assert.Nil(t, mine)
}

func TestSubmit_EmptyRegistryIsIncomplete(t *testing.T) {
	svc, _, _ := setup(t, nil)

	_, err := svc.Submit(ctx, applicant)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidationFailed))
}

func TestSubmit_TwoQuestionLifecycle(t *testing.T) {
	svc, store, qs := setup(t, nil, "One", "Two")

	answer(t, store, applicant, qs[1].ID, "second")
	answer(t, store, applicant, qs[0].ID, "first")

	c, err := svc.Evaluate(ctx, applicant)
	require.NoError(t, err)
	assert.True(t, c.AllAnswered)
	assert.True(t, c.CanSubmit)

	v, err := svc.Submit(ctx, applicant)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, v.Status)
	assert.Equal(t, "ana", v.Applicant.Username)
	require.Len(t, v.Answers, 2)
	assert.Equal(t, "One", v.Answers[0].Title)
	assert.Equal(t, "first", v.Answers[0].Answer)
	assert.Equal(t, "second", v.Answers[1].Answer)

	_, err = svc.Submit(ctx, applicant)
	assert.True(t, errors.IsCode(err, errors.ErrCodeConflict), "pending blocks resubmission")

	// Rejection purges live answers but the snapshot stays intact.
	_, err = store.ReviewTicket(ctx, v.ID, models.StatusRejected, "admin-1", time.Now())
	require.NoError(t, err)

	kept, err := svc.Get(ctx, admin, v.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, kept.Status)
	require.Len(t, kept.Answers, 2)
	assert.Equal(t, "first", kept.Answers[0].Answer)

	c, err = svc.Evaluate(ctx, applicant)
	require.NoError(t, err)
	assert.Equal(t, 0, c.AnsweredCount)
	assert.False(t, c.CanSubmit)
	a, err := store.GetApplicant(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, a.Status)

	answer(t, store, applicant, qs[0].ID, "first again")
	answer(t, store, applicant, qs[1].ID, "second again")

	again, err := svc.Submit(ctx, applicant)
	require.NoError(t, err)
	assert.NotEqual(t, v.ID, again.ID)
	assert.Equal(t, models.StatusPending, again.Status)
	assert.Equal(t, "first again", again.Answers[0].Answer)

	_, err = svc.Get(ctx, admin, v.ID)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotFound), "rejected ticket is replaced")

	_, err = store.ReviewTicket(ctx, again.ID, models.StatusApproved, "admin-1", time.Now())
	require.NoError(t, err)

	_, err = svc.Submit(ctx, applicant)
	assert.True(t, errors.IsCode(err, errors.ErrCodeConflict), "approved is terminal")
}

func TestSubmit_ConcurrentCreatesOneTicket(t *testing.T) {
	svc, store, qs := setup(t, nil, "One")
	answer(t, store, applicant, qs[0].ID, "a")

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Submit(ctx, applicant); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, success)
	list, err := svc.List(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSubmit_IndexesAfterCommitAndToleratesFailure(t *testing.T) {
	idx := new(mockIndexer)
	svc, store, qs := setup(t, idx, "One")
	answer(t, store, applicant, qs[0].ID, "a")

	idx.On("IndexTicket", mock.Anything, mock.MatchedBy(func(v models.TicketView) bool {
		return v.Applicant.ID == "u1" && v.Status == models.StatusPending
	})).Return(stderrors.New("es down")).Once()

	v, err := svc.Submit(ctx, applicant)
	require.NoError(t, err)
	assert.NotEmpty(t, v.ID)
	idx.AssertExpectations(t)
}

func TestSubmit_ResubmitRemovesReplacedFromIndex(t *testing.T) {
	idx := new(mockIndexer)
	svc, store, qs := setup(t, idx, "One")
	idx.On("IndexTicket", mock.Anything, mock.Anything).Return(nil)

	answer(t, store, applicant, qs[0].ID, "a")
	first, err := svc.Submit(ctx, applicant)
	require.NoError(t, err)
	_, err = store.ReviewTicket(ctx, first.ID, models.StatusRejected, "admin-1", time.Now())
	require.NoError(t, err)

	idx.On("RemoveTicket", mock.Anything, first.ID).Return(nil).Once()
	answer(t, store, applicant, qs[0].ID, "b")
	_, err = svc.Submit(ctx, applicant)
	require.NoError(t, err)

	idx.AssertExpectations(t)
}

// ==========================
// Projection Tests
// ==========================

func TestAdminViews_RequireAdmin(t *testing.T) {
	svc, _, _ := setup(t, nil)

	_, err := svc.List(ctx, applicant)
	assert.True(t, errors.IsCode(err, errors.ErrCodeForbidden))
	_, err = svc.Get(ctx, applicant, "missing")
	assert.True(t, errors.IsCode(err, errors.ErrCodeForbidden))
	_, err = svc.Search(ctx, applicant, "x", 10)
	assert.True(t, errors.IsCode(err, errors.ErrCodeForbidden))
}

func TestList_NewestFirstWithApplicants(t *testing.T) {
	svc, store, qs := setup(t, nil, "One")
	other := auth.Principal{ApplicantID: "u2", Username: "ben", Email: "ben@example.com"}

	answer(t, store, applicant, qs[0].ID, "a")
	_, err := svc.Submit(ctx, applicant)
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().UTC().Add(time.Hour) }
	answer(t, store, other, qs[0].ID, "b")
	_, err = svc.Submit(ctx, other)
	require.NoError(t, err)

	list, err := svc.List(ctx, admin)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "ben", list[0].Applicant.Username)
	assert.Equal(t, "ana", list[1].Applicant.Username)
}

func TestView_DeletedQuestionKeepsAnswer(t *testing.T) {
	svc, store, qs := setup(t, nil, "One")
	answer(t, store, applicant, qs[0].ID, "a")
	v, err := svc.Submit(ctx, applicant)
	require.NoError(t, err)

	require.NoError(t, store.DeleteQuestion(ctx, qs[0].ID))

	mine, err := svc.Mine(ctx, applicant)
	require.NoError(t, err)
	require.NotNil(t, mine)
	assert.Equal(t, v.ID, mine.ID)
	require.Len(t, mine.Answers, 1)
	assert.Empty(t, mine.Answers[0].Title)
	assert.Equal(t, "a", mine.Answers[0].Answer)
}

func TestSearch(t *testing.T) {
	idx := new(mockIndexer)
	svc, _, _ := setup(t, idx)

	idx.On("Search", mock.Anything, "ana", 10).Return([]search.Hit{{TicketID: "t1"}}, nil).Once()
	hits, err := svc.Search(ctx, admin, "ana", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	idx.On("Search", mock.Anything, "down", 10).Return(nil, stderrors.New("es down")).Once()
	_, err = svc.Search(ctx, admin, "down", 10)
	assert.True(t, errors.IsCode(err, errors.ErrCodeExternalServiceFailed))
	idx.AssertExpectations(t)
}
