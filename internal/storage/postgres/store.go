// Package postgres is the authoritative storage.Store. Uniqueness comes from
// the answers_question_applicant_key and tickets_applicant_key constraints;
// multi-row mutations run in one transaction that locks the applicant or
// ticket row first.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"intake-service/internal/common/errors"
	"intake-service/internal/models"
	"intake-service/internal/storage"

	"github.com/lib/pq"
)

const (
	pqUniqueViolation    = "23505"
	pqInvalidTextRepr    = "22P02"
	questionColumns      = `id, seq, title, description, sort_order, is_active, created_by, created_at, updated_at`
	ticketColumns        = `id, applicant_id, answers, status, submitted_at, reviewed_at, reviewed_by`
	applicantReturning   = `RETURNING id, username, email, status, updated_at`
	activeAnswersOrdered = `
		FROM answers a
		JOIN questions q ON q.id = a.question_id
		WHERE a.applicant_id = $1 AND q.is_active
		ORDER BY q.sort_order, q.seq`
)

type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ==========================
// Error Mapping
// ==========================

func isUniqueViolation(err error) bool {
	var pgErr *pq.Error
	return stderrors.As(err, &pgErr) && pgErr.Code == pqUniqueViolation
}

// isMalformedID reports a non-UUID id reaching a UUID column, which can only
// mean the row does not exist.
func isMalformedID(err error) bool {
	var pgErr *pq.Error
	return stderrors.As(err, &pgErr) && pgErr.Code == pqInvalidTextRepr
}

func mapError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, sql.ErrNoRows), isMalformedID(err):
		return storage.ErrNotFound
	case isUniqueViolation(err):
		return storage.ErrDuplicate
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return errors.NewQueryExecutionFailedError(op, err)
	}
}

func (s *Store) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(op+": begin", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapError(op+": commit", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// ==========================
// Questions
// ==========================

func scanQuestion(row scanner) (models.Question, error) {
	var q models.Question
	err := row.Scan(&q.ID, &q.Seq, &q.Title, &q.Description, &q.Order, &q.IsActive, &q.CreatedBy, &q.CreatedAt, &q.UpdatedAt)
	q.CreatedAt = q.CreatedAt.UTC()
	q.UpdatedAt = q.UpdatedAt.UTC()
	return q, err
}

func (s *Store) CreateQuestion(ctx context.Context, q models.Question) (models.Question, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO questions (id, title, description, sort_order, is_active, created_by, created_at, updated_at)
		SELECT $1, $2, $3, COALESCE(MAX(sort_order), 0) + 1, $4, $5, $6, $6 FROM questions
		RETURNING sort_order, seq`,
		q.ID, q.Title, q.Description, q.IsActive, q.CreatedBy, q.CreatedAt,
	).Scan(&q.Order, &q.Seq)
	if err != nil {
		return models.Question{}, mapError("create question", err)
	}
	q.UpdatedAt = q.CreatedAt
	return q, nil
}

func (s *Store) GetQuestion(ctx context.Context, id string) (models.Question, error) {
	q, err := scanQuestion(s.db.QueryRowContext(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE id = $1`, id))
	if err != nil {
		return models.Question{}, mapError("get question", err)
	}
	return q, nil
}

func (s *Store) UpdateQuestion(ctx context.Context, id string, upd models.QuestionUpdate, at time.Time) (models.Question, error) {
	q, err := scanQuestion(s.db.QueryRowContext(ctx, `
		UPDATE questions SET
			title = COALESCE($2, title),
			description = COALESCE($3, description),
			is_active = COALESCE($4, is_active),
			updated_at = $5
		WHERE id = $1
		RETURNING `+questionColumns,
		id, upd.Title, upd.Description, upd.IsActive, at))
	if err != nil {
		return models.Question{}, mapError("update question", err)
	}
	return q, nil
}

func (s *Store) DeleteQuestion(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM questions WHERE id = $1`, id)
	if err != nil {
		return mapError("delete question", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ShiftQuestionOrder(ctx context.Context, id string, delta int, at time.Time) (models.Question, error) {
	q, err := scanQuestion(s.db.QueryRowContext(ctx, `
		UPDATE questions SET sort_order = sort_order + $2, updated_at = $3
		WHERE id = $1
		RETURNING `+questionColumns,
		id, delta, at))
	if err != nil {
		return models.Question{}, mapError("reorder question", err)
	}
	return q, nil
}

func (s *Store) ListQuestions(ctx context.Context, activeOnly bool) ([]models.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY sort_order, seq`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, mapError("list questions", err)
	}
	defer rows.Close()

	out := []models.Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, mapError("scan question", err)
		}
		out = append(out, q)
	}
	return out, mapError("list questions", rows.Err())
}

// ==========================
// Applicants
// ==========================

func scanApplicant(row scanner) (models.Applicant, error) {
	var a models.Applicant
	var status string
	err := row.Scan(&a.ID, &a.Username, &a.Email, &status, &a.UpdatedAt)
	a.Status = models.Status(status)
	a.UpdatedAt = a.UpdatedAt.UTC()
	return a, err
}

func (s *Store) UpsertApplicant(ctx context.Context, a models.Applicant) (models.Applicant, error) {
	out, err := scanApplicant(s.db.QueryRowContext(ctx, `
		INSERT INTO applicants (id, username, email, status, created_at, updated_at)
		VALUES ($1, $2, $3, 'pending', now(), now())
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			email = EXCLUDED.email,
			updated_at = now()
		`+applicantReturning,
		a.ID, a.Username, a.Email))
	if err != nil {
		return models.Applicant{}, mapError("upsert applicant", err)
	}
	return out, nil
}

func (s *Store) GetApplicant(ctx context.Context, id string) (models.Applicant, error) {
	a, err := scanApplicant(s.db.QueryRowContext(ctx,
		`SELECT id, username, email, status, updated_at FROM applicants WHERE id = $1`, id))
	if err != nil {
		return models.Applicant{}, mapError("get applicant", err)
	}
	return a, nil
}

func (s *Store) GetApplicants(ctx context.Context, ids []string) (map[string]models.Applicant, error) {
	out := make(map[string]models.Applicant, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, username, email, status, updated_at FROM applicants WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, mapError("get applicants", err)
	}
	defer rows.Close()

	for rows.Next() {
		a, err := scanApplicant(rows)
		if err != nil {
			return nil, mapError("scan applicant", err)
		}
		out[a.ID] = a
	}
	return out, mapError("get applicants", rows.Err())
}

// ==========================
// Answers
// ==========================

func scanAnswer(row scanner) (models.Answer, error) {
	var a models.Answer
	err := row.Scan(&a.ID, &a.QuestionID, &a.ApplicantID, &a.Answer, &a.CreatedAt)
	a.CreatedAt = a.CreatedAt.UTC()
	return a, err
}

func (s *Store) InsertAnswer(ctx context.Context, a models.Answer) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO answers (id, question_id, applicant_id, answer, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		a.ID, a.QuestionID, a.ApplicantID, a.Answer, a.CreatedAt)
	if err != nil {
		return mapError("insert answer", err)
	}
	return nil
}

func (s *Store) GetAnswer(ctx context.Context, questionID, applicantID string) (*models.Answer, error) {
	a, err := scanAnswer(s.db.QueryRowContext(ctx, `
		SELECT id, question_id, applicant_id, answer, created_at
		FROM answers WHERE question_id = $1 AND applicant_id = $2`,
		questionID, applicantID))
	if err != nil {
		mapped := mapError("get answer", err)
		if mapped == storage.ErrNotFound {
			return nil, nil
		}
		return nil, mapped
	}
	return &a, nil
}

func (s *Store) ListApplicantAnswers(ctx context.Context, applicantID string) ([]models.Answer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id, a.question_id, a.applicant_id, a.answer, a.created_at`+activeAnswersOrdered, applicantID)
	if err != nil {
		return nil, mapError("list applicant answers", err)
	}
	defer rows.Close()

	out := []models.Answer{}
	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			return nil, mapError("scan answer", err)
		}
		out = append(out, a)
	}
	return out, mapError("list applicant answers", rows.Err())
}

func (s *Store) ListQuestionAnswers(ctx context.Context, questionID string) ([]models.QuestionAnswer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.question_id, a.applicant_id, a.answer, a.created_at,
			COALESCE(p.username, ''), COALESCE(p.email, '')
		FROM answers a
		LEFT JOIN applicants p ON p.id = a.applicant_id
		WHERE a.question_id = $1
		ORDER BY a.created_at DESC, a.id DESC`, questionID)
	if err != nil {
		return nil, mapError("list question answers", err)
	}
	defer rows.Close()

	out := []models.QuestionAnswer{}
	for rows.Next() {
		var qa models.QuestionAnswer
		if err := rows.Scan(&qa.ID, &qa.QuestionID, &qa.ApplicantID, &qa.Answer.Answer, &qa.CreatedAt, &qa.Username, &qa.Email); err != nil {
			return nil, mapError("scan question answer", err)
		}
		qa.CreatedAt = qa.CreatedAt.UTC()
		out = append(out, qa)
	}
	return out, mapError("list question answers", rows.Err())
}

const progressQuery = `
	SELECT
		(SELECT COUNT(*) FROM answers a JOIN questions q ON q.id = a.question_id
			WHERE a.applicant_id = $1 AND q.is_active),
		(SELECT COUNT(*) FROM questions WHERE is_active)`

func (s *Store) CountProgress(ctx context.Context, applicantID string) (int, int, error) {
	var answered, total int
	if err := s.db.QueryRowContext(ctx, progressQuery, applicantID).Scan(&answered, &total); err != nil {
		return 0, 0, mapError("count progress", err)
	}
	return answered, total, nil
}

// ==========================
// Tickets
// ==========================

func scanTicket(row scanner) (models.Ticket, error) {
	var (
		t          models.Ticket
		rawAnswers []byte
		status     string
		reviewedAt sql.NullTime
		reviewedBy sql.NullString
	)
	if err := row.Scan(&t.ID, &t.ApplicantID, &rawAnswers, &status, &t.SubmittedAt, &reviewedAt, &reviewedBy); err != nil {
		return models.Ticket{}, err
	}
	if err := json.Unmarshal(rawAnswers, &t.Answers); err != nil {
		return models.Ticket{}, fmt.Errorf("decode ticket answers: %w", err)
	}
	t.Status = models.Status(status)
	t.SubmittedAt = t.SubmittedAt.UTC()
	if reviewedAt.Valid {
		at := reviewedAt.Time.UTC()
		t.ReviewedAt = &at
	}
	if reviewedBy.Valid {
		by := reviewedBy.String
		t.ReviewedBy = &by
	}
	return t, nil
}

func (s *Store) GetTicket(ctx context.Context, id string) (models.Ticket, error) {
	t, err := scanTicket(s.db.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id))
	if err != nil {
		return models.Ticket{}, mapError("get ticket", err)
	}
	return t, nil
}

func (s *Store) GetTicketByApplicant(ctx context.Context, applicantID string) (models.Ticket, error) {
	t, err := scanTicket(s.db.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE applicant_id = $1`, applicantID))
	if err != nil {
		return models.Ticket{}, mapError("get applicant ticket", err)
	}
	return t, nil
}

func (s *Store) ListTickets(ctx context.Context) ([]models.Ticket, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+ticketColumns+` FROM tickets ORDER BY submitted_at DESC, id DESC`)
	if err != nil {
		return nil, mapError("list tickets", err)
	}
	defer rows.Close()

	out := []models.Ticket{}
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, mapError("scan ticket", err)
		}
		out = append(out, t)
	}
	return out, mapError("list tickets", rows.Err())
}

func (s *Store) SubmitTicket(ctx context.Context, t models.Ticket) (storage.SubmitOutcome, error) {
	var out storage.SubmitOutcome

	err := s.withTx(ctx, "submit ticket", func(tx *sql.Tx) error {
		var locked string
		if err := tx.QueryRowContext(ctx,
			`SELECT id FROM applicants WHERE id = $1 FOR UPDATE`, t.ApplicantID).Scan(&locked); err != nil {
			return mapError("lock applicant", err)
		}

		var total int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM questions WHERE is_active`).Scan(&total); err != nil {
			return mapError("count questions", err)
		}

		rows, err := tx.QueryContext(ctx, `SELECT a.question_id, a.answer`+activeAnswersOrdered, t.ApplicantID)
		if err != nil {
			return mapError("snapshot answers", err)
		}
		snapshot := []models.TicketAnswer{}
		for rows.Next() {
			var ta models.TicketAnswer
			if err := rows.Scan(&ta.QuestionID, &ta.Answer); err != nil {
				rows.Close()
				return mapError("scan snapshot", err)
			}
			snapshot = append(snapshot, ta)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return mapError("snapshot answers", err)
		}
		if total == 0 || len(snapshot) != total {
			return storage.ErrIncomplete
		}

		var existingID, existingStatus string
		err = tx.QueryRowContext(ctx,
			`SELECT id, status FROM tickets WHERE applicant_id = $1`, t.ApplicantID).Scan(&existingID, &existingStatus)
		switch {
		case stderrors.Is(err, sql.ErrNoRows):
		case err != nil:
			return mapError("check existing ticket", err)
		case models.Status(existingStatus) == models.StatusPending:
			return storage.ErrTicketPending
		case models.Status(existingStatus) == models.StatusApproved:
			return storage.ErrTicketApproved
		default:
			if _, err := tx.ExecContext(ctx, `DELETE FROM tickets WHERE id = $1`, existingID); err != nil {
				return mapError("delete rejected ticket", err)
			}
			out.ReplacedID = existingID
		}

		payload, err := json.Marshal(snapshot)
		if err != nil {
			return errors.NewInternalError(err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO tickets (id, applicant_id, answers, status, submitted_at)
			VALUES ($1, $2, $3, 'pending', $4)`,
			t.ID, t.ApplicantID, payload, t.SubmittedAt); err != nil {
			if isUniqueViolation(err) {
				return storage.ErrTicketPending
			}
			return mapError("insert ticket", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE applicants SET status = 'pending', updated_at = $2 WHERE id = $1`,
			t.ApplicantID, t.SubmittedAt); err != nil {
			return mapError("mark applicant pending", err)
		}

		t.Answers = snapshot
		t.Status = models.StatusPending
		t.ReviewedAt = nil
		t.ReviewedBy = nil
		out.Ticket = t
		return nil
	})
	return out, err
}

func (s *Store) ReviewTicket(ctx context.Context, id string, decision models.Status, reviewer string, at time.Time) (models.ReviewResult, error) {
	var out models.ReviewResult

	err := s.withTx(ctx, "review ticket", func(tx *sql.Tx) error {
		t, err := scanTicket(tx.QueryRowContext(ctx,
			`SELECT `+ticketColumns+` FROM tickets WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return mapError("lock ticket", err)
		}
		if t.Status != models.StatusPending {
			return storage.ErrTicketReviewed
		}

		if decision == models.StatusRejected {
			if _, err := tx.ExecContext(ctx, `DELETE FROM answers WHERE applicant_id = $1`, t.ApplicantID); err != nil {
				return mapError("purge answers", err)
			}
		}

		applicant, err := scanApplicant(tx.QueryRowContext(ctx, `
			INSERT INTO applicants (id, status, created_at, updated_at)
			VALUES ($1, $2, $3, $3)
			ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at
			`+applicantReturning,
			t.ApplicantID, string(decision), at))
		if err != nil {
			return mapError("update applicant status", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE tickets SET status = $2, reviewed_at = $3, reviewed_by = $4 WHERE id = $1`,
			id, string(decision), at, reviewer); err != nil {
			return mapError("update ticket", err)
		}

		t.Status = decision
		t.ReviewedAt = &at
		t.ReviewedBy = &reviewer
		out = models.ReviewResult{Ticket: t, Applicant: applicant}
		return nil
	})
	return out, err
}

func (s *Store) DeleteTicket(ctx context.Context, id string) (models.Ticket, error) {
	var out models.Ticket

	err := s.withTx(ctx, "delete ticket", func(tx *sql.Tx) error {
		t, err := scanTicket(tx.QueryRowContext(ctx,
			`SELECT `+ticketColumns+` FROM tickets WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return mapError("lock ticket", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM tickets WHERE id = $1`, id); err != nil {
			return mapError("delete ticket", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE applicants SET status = 'pending', updated_at = now() WHERE id = $1`, t.ApplicantID); err != nil {
			return mapError("reset applicant status", err)
		}
		out = t
		return nil
	})
	return out, err
}

const reconcileQuery = `
	UPDATE applicants a
	SET status = COALESCE((SELECT t.status FROM tickets t WHERE t.applicant_id = a.id), 'pending'),
		updated_at = now()
	WHERE a.status IS DISTINCT FROM COALESCE((SELECT t.status FROM tickets t WHERE t.applicant_id = a.id), 'pending')`

func (s *Store) ReconcileStatuses(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, reconcileQuery)
	if err != nil {
		return 0, mapError("reconcile statuses", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, mapError("reconcile statuses", err)
	}
	return int(n), nil
}
