package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	fsrs "github.com/open-spaced-repetition/go-fsrs"

	"github.com/Bartkosa/MemoWrite/internal/extract"
	"github.com/Bartkosa/MemoWrite/internal/models"
)

var (
	// ErrQuestionNotFound indicates the requested question does not exist.
	ErrQuestionNotFound = errors.New("question not found")
)

// QuestionService persists extracted questions and graded attempts.
type QuestionService struct {
	db *sql.DB
}

func NewQuestionService(db *sql.DB) *QuestionService {
	return &QuestionService{db: db}
}

// BulkInsertPairs stores the pipeline's extracted pairs as new questions due
// immediately, preserving their order. Returns the number inserted.
func (s *QuestionService) BulkInsertPairs(ctx context.Context, documentID sql.NullInt64, pairs []extract.QAPair) (int, error) {
	if len(pairs) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO questions (document_id, question, answer, due, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?);
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare question insert: %w", err)
	}
	defer stmt.Close()

	for _, pair := range pairs {
		if _, err = stmt.ExecContext(ctx,
			nullInt64Ptr(documentID),
			pair.Question,
			pair.Answer,
			now,
			int(fsrs.New),
			now,
			now,
		); err != nil {
			return 0, fmt.Errorf("insert question %q: %w", pair.Question, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit bulk insert: %w", err)
	}
	return len(pairs), nil
}

const questionColumns = `
	q.id, q.document_id, q.question, q.answer, q.due, q.stability, q.difficulty,
	q.elapsed_days, q.scheduled_days, q.reps, q.lapses, q.state, q.last_review,
	q.created_at, q.updated_at, d.original_name`

func (s *QuestionService) GetByID(ctx context.Context, id int64) (*models.Question, error) {
	question, err := s.fetchQuestion(ctx, `
		SELECT `+questionColumns+`
		FROM questions q
		LEFT JOIN documents d ON q.document_id = d.id
		WHERE q.id = ?;
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrQuestionNotFound
		}
		return nil, err
	}
	return question, nil
}

// List returns questions in insertion order, newest document first.
func (s *QuestionService) List(ctx context.Context, limit int) ([]models.Question, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+questionColumns+`
		FROM questions q
		LEFT JOIN documents d ON q.document_id = d.id
		ORDER BY q.id ASC
		LIMIT ?;
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var questions []models.Question
	for rows.Next() {
		question, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, *question)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	return questions, nil
}

func (s *QuestionService) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM questions WHERE id = ?;`, id)
	if err != nil {
		return fmt.Errorf("delete question %d: %w", id, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrQuestionNotFound
	}
	return nil
}

// RecordAttempt stores one graded answer.
func (s *QuestionService) RecordAttempt(ctx context.Context, attempt *models.AnswerAttempt) error {
	if attempt.AttemptedAt.IsZero() {
		attempt.AttemptedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO answer_attempts (question_id, user_answer, score, feedback, missing_concepts, attempted_at)
		VALUES (?, ?, ?, ?, ?, ?);
	`, attempt.QuestionID, attempt.UserAnswer, attempt.Score, attempt.Feedback, attempt.MissingConcepts, attempt.AttemptedAt)
	if err != nil {
		return fmt.Errorf("insert answer attempt: %w", err)
	}
	attempt.ID, _ = res.LastInsertId()
	return nil
}

// Progress aggregates study statistics across all questions.
func (s *QuestionService) Progress(ctx context.Context) (*models.Progress, error) {
	progress := &models.Progress{}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions;`).Scan(&progress.TotalQuestions); err != nil {
		return nil, fmt.Errorf("count questions: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT question_id), COALESCE(AVG(score), 0)
		FROM answer_attempts;
	`).Scan(&progress.Attempted, &progress.AverageScore); err != nil {
		return nil, fmt.Errorf("aggregate attempts: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM (
			SELECT question_id FROM answer_attempts
			GROUP BY question_id
			HAVING MAX(score) >= 90
		);
	`).Scan(&progress.Mastered); err != nil {
		return nil, fmt.Errorf("count mastered: %w", err)
	}
	now := time.Now().UTC()
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM questions WHERE due IS NOT NULL AND due <= ?;
	`, now).Scan(&progress.DueNow); err != nil {
		return nil, fmt.Errorf("count due questions: %w", err)
	}

	return progress, nil
}

func (s *QuestionService) fetchQuestion(ctx context.Context, query string, args ...any) (*models.Question, error) {
	return scanQuestion(s.db.QueryRowContext(ctx, query, args...))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuestion(row rowScanner) (*models.Question, error) {
	question := &models.Question{}
	if err := row.Scan(
		&question.ID,
		&question.DocumentID,
		&question.Question,
		&question.Answer,
		&question.Due,
		&question.Stability,
		&question.Difficulty,
		&question.ElapsedDays,
		&question.ScheduledDays,
		&question.Reps,
		&question.Lapses,
		&question.State,
		&question.LastReview,
		&question.CreatedAt,
		&question.UpdatedAt,
		&question.DocumentName,
	); err != nil {
		return nil, err
	}
	return question, nil
}

func nullTimePtr(t sql.NullTime) any {
	if t.Valid {
		return t.Time
	}
	return nil
}

func nullInt64Ptr(v sql.NullInt64) any {
	if v.Valid {
		return v.Int64
	}
	return nil
}
