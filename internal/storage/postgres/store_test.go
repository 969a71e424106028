package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"testing"
	"time"

	"intake-service/internal/common/errors"
	"intake-service/internal/models"
	"intake-service/internal/storage"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

var ctx = context.Background()

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

var (
	questionCols  = []string{"id", "seq", "title", "description", "sort_order", "is_active", "created_by", "created_at", "updated_at"}
	ticketCols    = []string{"id", "applicant_id", "answers", "status", "submitted_at", "reviewed_at", "reviewed_by"}
	applicantCols = []string{"id", "username", "email", "status", "updated_at"}
)

func ticketRow(id, applicantID, status string) *sqlmock.Rows {
	return sqlmock.NewRows(ticketCols).AddRow(
		id, applicantID, []byte(`[{"questionId":"q1","answer":"yes"}]`), status, time.Now(), nil, nil,
	)
}

// ==========================
// Question Tests
// ==========================

func TestCreateQuestion_ReturnsAssignedOrder(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`INSERT INTO questions`).
		WithArgs("q1", "Why us?", "", true, "admin-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"sort_order", "seq"}).AddRow(4, 12))

	q, err := s.CreateQuestion(ctx, models.Question{
		ID: "q1", Title: "Why us?", IsActive: true, CreatedBy: "admin-1", CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, 4, q.Order)
	assert.Equal(t, int64(12), q.Seq)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetQuestion_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`FROM questions WHERE id = \$1`).
		WithArgs("q1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`FROM questions WHERE id = \$1`).
		WithArgs("not-a-uuid").
		WillReturnError(&pq.Error{Code: pqInvalidTextRepr})

	_, err := s.GetQuestion(ctx, "q1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.GetQuestion(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateQuestion_PassesOnlyProvidedFields(t *testing.T) {
	s, mock := newMockStore(t)
	title := "New title"
	now := time.Now()

	mock.ExpectQuery(`UPDATE questions SET`).
		WithArgs("q1", "New title", nil, nil, now).
		WillReturnRows(sqlmock.NewRows(questionCols).AddRow("q1", 1, "New title", "desc", 1, true, "admin", now, now))

	q, err := s.UpdateQuestion(ctx, "q1", models.QuestionUpdate{Title: &title}, now)
	require.NoError(t, err)
	assert.Equal(t, "New title", q.Title)
	assert.Equal(t, "desc", q.Description)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteQuestion_NoRowsIsNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`DELETE FROM questions`).WithArgs("q1").WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, s.DeleteQuestion(ctx, "q1"), storage.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListQuestions_ActiveOrderedBySortOrderThenSeq(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(`FROM questions WHERE is_active ORDER BY sort_order, seq`).
		WillReturnRows(sqlmock.NewRows(questionCols).
			AddRow("A", 1, "A", "", 2, true, "admin", now, now).
			AddRow("B", 2, "B", "", 2, true, "admin", now, now))

	qs, err := s.ListQuestions(ctx, true)
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.Equal(t, "A", qs[0].ID)
	assert.Equal(t, "B", qs[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestShiftQuestionOrder(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(`UPDATE questions SET sort_order = sort_order \+ \$2`).
		WithArgs("q1", -1, now).
		WillReturnRows(sqlmock.NewRows(questionCols).AddRow("q1", 3, "Q", "", 0, true, "admin", now, now))

	q, err := s.ShiftQuestionOrder(ctx, "q1", -1, now)
	require.NoError(t, err)
	assert.Equal(t, 0, q.Order)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Answer Tests
// ==========================

func TestInsertAnswer_UniqueViolationIsDuplicate(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO answers`).
		WithArgs("a1", "q1", "u1", "yes", sqlmock.AnyArg()).
		WillReturnError(&pq.Error{Code: pqUniqueViolation, Constraint: "answers_question_applicant_key"})

	err := s.InsertAnswer(ctx, models.Answer{ID: "a1", QuestionID: "q1", ApplicantID: "u1", Answer: "yes", CreatedAt: time.Now()})
	assert.ErrorIs(t, err, storage.ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertAnswer_OtherFailuresAreRetryable(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO answers`).WillReturnError(stderrors.New("connection reset by peer"))

	err := s.InsertAnswer(ctx, models.Answer{ID: "a1", QuestionID: "q1", ApplicantID: "u1", Answer: "yes"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeQueryExecutionFailed))
	assert.True(t, errors.As(err).Retryable)
}

func TestGetAnswer_MissingIsNil(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`FROM answers WHERE question_id = \$1 AND applicant_id = \$2`).
		WithArgs("q1", "u1").
		WillReturnError(sql.ErrNoRows)

	a, err := s.GetAnswer(ctx, "q1", "u1")
	require.NoError(t, err)
	assert.Nil(t, a)
}

func TestCountProgress(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"answered", "total"}).AddRow(1, 2))

	answered, total, err := s.CountProgress(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, answered)
	assert.Equal(t, 2, total)
}

func TestListQuestionAnswers_CarriesApplicant(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(`LEFT JOIN applicants p`).
		WithArgs("q1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "question_id", "applicant_id", "answer", "created_at", "username", "email"}).
			AddRow("a2", "q1", "u2", "later", now, "bo", "bo@example.com").
			AddRow("a1", "q1", "u1", "earlier", now.Add(-time.Hour), "", ""))

	got, err := s.ListQuestionAnswers(ctx, "q1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "bo", got[0].Username)
	assert.Equal(t, "later", got[0].Answer.Answer)
}

// ==========================
// Applicant Tests
// ==========================

func TestUpsertApplicant(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`INSERT INTO applicants`).
		WithArgs("u1", "ana", "ana@example.com").
		WillReturnRows(sqlmock.NewRows(applicantCols).AddRow("u1", "ana", "ana@example.com", "approved", time.Now()))

	a, err := s.UpsertApplicant(ctx, models.Applicant{ID: "u1", Username: "ana", Email: "ana@example.com"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, a.Status)
}

func TestGetApplicants_UsesArray(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`WHERE id = ANY\(\$1\)`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(applicantCols).AddRow("u1", "ana", "a@x", "pending", time.Now()))

	got, err := s.GetApplicants(ctx, []string{"u1", "u2"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, "ana", got["u1"].Username)

	empty, err := s.GetApplicants(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Ticket Submission Tests
// ==========================

func expectSubmitPrelude(mock sqlmock.Sqlmock, total int, answers ...string) {
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM applicants WHERE id = \$1 FOR UPDATE`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u1"))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM questions WHERE is_active`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(total))
	rows := sqlmock.NewRows([]string{"question_id", "answer"})
	for _, qid := range answers {
		rows.AddRow(qid, "answer "+qid)
	}
	mock.ExpectQuery(`SELECT a.question_id, a.answer`).WithArgs("u1").WillReturnRows(rows)
}

func TestSubmitTicket_ReplacesRejected(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	expectSubmitPrelude(mock, 2, "q1", "q2")
	mock.ExpectQuery(`SELECT id, status FROM tickets WHERE applicant_id = \$1`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow("t-old", "rejected"))
	mock.ExpectExec(`DELETE FROM tickets WHERE id = \$1`).
		WithArgs("t-old").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO tickets`).
		WithArgs("t-new", "u1", sqlmock.AnyArg(), now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE applicants SET status = 'pending'`).
		WithArgs("u1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	out, err := s.SubmitTicket(ctx, models.Ticket{ID: "t-new", ApplicantID: "u1", SubmittedAt: now})
	require.NoError(t, err)
	assert.Equal(t, "t-old", out.ReplacedID)
	assert.Equal(t, models.StatusPending, out.Ticket.Status)
	require.Len(t, out.Ticket.Answers, 2)
	assert.Equal(t, "q1", out.Ticket.Answers[0].QuestionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitTicket_Conflicts(t *testing.T) {
	tests := []struct {
		name   string
		status string
		want   error
	}{
		{"pending", "pending", storage.ErrTicketPending},
		{"approved", "approved", storage.ErrTicketApproved},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStore(t)

			expectSubmitPrelude(mock, 1, "q1")
			mock.ExpectQuery(`SELECT id, status FROM tickets`).
				WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow("t1", tt.status))
			mock.ExpectRollback()

			_, err := s.SubmitTicket(ctx, models.Ticket{ID: "t2", ApplicantID: "u1", SubmittedAt: time.Now()})
			assert.ErrorIs(t, err, tt.want)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSubmitTicket_Incomplete(t *testing.T) {
	s, mock := newMockStore(t)

	expectSubmitPrelude(mock, 2, "q1")
	mock.ExpectRollback()

	_, err := s.SubmitTicket(ctx, models.Ticket{ID: "t1", ApplicantID: "u1", SubmittedAt: time.Now()})
	assert.ErrorIs(t, err, storage.ErrIncomplete)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitTicket_LostRaceIsPending(t *testing.T) {
	s, mock := newMockStore(t)

	expectSubmitPrelude(mock, 1, "q1")
	mock.ExpectQuery(`SELECT id, status FROM tickets`).WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO tickets`).
		WillReturnError(&pq.Error{Code: pqUniqueViolation, Constraint: "tickets_applicant_key"})
	mock.ExpectRollback()

	_, err := s.SubmitTicket(ctx, models.Ticket{ID: "t1", ApplicantID: "u1", SubmittedAt: time.Now()})
	assert.ErrorIs(t, err, storage.ErrTicketPending)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Review Tests
// ==========================

func TestReviewTicket_RejectPurgesAnswersBeforeTicketWrite(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM tickets WHERE id = \$1 FOR UPDATE`).
		WithArgs("t1").
		WillReturnRows(ticketRow("t1", "u1", "pending"))
	mock.ExpectExec(`DELETE FROM answers WHERE applicant_id = \$1`).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery(`INSERT INTO applicants`).
		WithArgs("u1", "rejected", now).
		WillReturnRows(sqlmock.NewRows(applicantCols).AddRow("u1", "ana", "a@x", "rejected", now))
	mock.ExpectExec(`UPDATE tickets SET status = \$2`).
		WithArgs("t1", "rejected", now, "admin-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := s.ReviewTicket(ctx, "t1", models.StatusRejected, "admin-1", now)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, res.Ticket.Status)
	assert.Equal(t, models.StatusRejected, res.Applicant.Status)
	assert.Len(t, res.Ticket.Answers, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewTicket_ApproveKeepsAnswers(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM tickets WHERE id = \$1 FOR UPDATE`).
		WillReturnRows(ticketRow("t1", "u1", "pending"))
	mock.ExpectQuery(`INSERT INTO applicants`).
		WithArgs("u1", "approved", now).
		WillReturnRows(sqlmock.NewRows(applicantCols).AddRow("u1", "ana", "a@x", "approved", now))
	mock.ExpectExec(`UPDATE tickets SET status = \$2`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := s.ReviewTicket(ctx, "t1", models.StatusApproved, "admin-1", now)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewTicket_AlreadyReviewed(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM tickets WHERE id = \$1 FOR UPDATE`).
		WillReturnRows(ticketRow("t1", "u1", "approved"))
	mock.ExpectRollback()

	_, err := s.ReviewTicket(ctx, "t1", models.StatusRejected, "admin-1", time.Now())
	assert.ErrorIs(t, err, storage.ErrTicketReviewed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteTicket(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM tickets WHERE id = \$1 FOR UPDATE`).
		WithArgs("t1").
		WillReturnRows(ticketRow("t1", "u1", "approved"))
	mock.ExpectExec(`DELETE FROM tickets WHERE id = \$1`).WithArgs("t1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE applicants SET status = 'pending'`).WithArgs("u1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tk, err := s.DeleteTicket(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "u1", tk.ApplicantID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteTicket_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM tickets WHERE id = \$1 FOR UPDATE`).WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := s.DeleteTicket(ctx, "t1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcileStatuses(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE applicants a`).WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := s.ReconcileStatuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestGetTicketByApplicant_DecodesSnapshot(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()
	reviewer := "admin-1"

	mock.ExpectQuery(`FROM tickets WHERE applicant_id = \$1`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(ticketCols).AddRow(
			"t1", "u1", []byte(`[{"questionId":"q1","answer":"yes"},{"questionId":"q2","answer":"no"}]`),
			"approved", now, now, reviewer,
		))

	tk, err := s.GetTicketByApplicant(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, tk.Status)
	require.Len(t, tk.Answers, 2)
	assert.Equal(t, "no", tk.Answers[1].Answer)
	require.NotNil(t, tk.ReviewedBy)
	assert.Equal(t, reviewer, *tk.ReviewedBy)
	require.NotNil(t, tk.ReviewedAt)
}
