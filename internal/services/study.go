package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	fsrs "github.com/open-spaced-repetition/go-fsrs"

	"github.com/Bartkosa/MemoWrite/internal/models"
)

var (
	// ErrNoDueQuestions indicates that there are no questions ready to study.
	ErrNoDueQuestions = errors.New("no due questions")
)

// StudyService schedules question reviews with FSRS.
type StudyService struct {
	db     *sql.DB
	params fsrs.Parameters
}

func NewStudyService(db *sql.DB) *StudyService {
	return &StudyService{db: db, params: fsrs.DefaultParam()}
}

// NextQuestion returns the next question to study: the longest-overdue one
// first, then the oldest question never reviewed.
func (s *StudyService) NextQuestion(ctx context.Context) (*models.Question, error) {
	now := time.Now().UTC()

	question, err := s.fetchOne(ctx, `
		SELECT `+questionColumns+`
		FROM questions q
		LEFT JOIN documents d ON q.document_id = d.id
		WHERE q.due IS NOT NULL AND q.due <= ?
		ORDER BY q.due ASC
		LIMIT 1;
	`, now)
	if err == nil {
		return question, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	question, err = s.fetchOne(ctx, `
		SELECT `+questionColumns+`
		FROM questions q
		LEFT JOIN documents d ON q.document_id = d.id
		WHERE q.last_review IS NULL
		ORDER BY q.created_at ASC, q.id ASC
		LIMIT 1;
	`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoDueQuestions
		}
		return nil, err
	}
	return question, nil
}

func (s *StudyService) fetchOne(ctx context.Context, query string, args ...any) (*models.Question, error) {
	return scanQuestion(s.db.QueryRowContext(ctx, query, args...))
}

// RatingForScore maps a grading score to an FSRS review rating.
func RatingForScore(score int) fsrs.Rating {
	switch {
	case score >= 90:
		return fsrs.Easy
	case score >= 70:
		return fsrs.Good
	case score >= 50:
		return fsrs.Hard
	default:
		return fsrs.Again
	}
}

// ReviewQuestion updates the scheduling state from the review rating and
// records the review.
func (s *StudyService) ReviewQuestion(ctx context.Context, questionID int64, rating fsrs.Rating) (*models.Question, *models.ReviewLog, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	question := &models.Question{}
	row := tx.QueryRowContext(ctx, `
		SELECT id, document_id, question, answer, due, stability, difficulty,
		       elapsed_days, scheduled_days, reps, lapses, state, last_review,
		       created_at, updated_at
		FROM questions
		WHERE id = ?;
	`, questionID)
	if err = row.Scan(
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
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrQuestionNotFound
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("load question %d: %w", questionID, err)
	}

	now := time.Now().UTC()
	fsrsCard := question.ToFSRSCard()
	scheduling := s.params.Repeat(fsrsCard, now)
	info, ok := scheduling[rating]
	if !ok {
		err = fmt.Errorf("rating %d not supported", rating)
		return nil, nil, err
	}
	question.ApplyFSRSCard(info.Card)
	question.UpdatedAt = now

	if _, err = tx.ExecContext(ctx, `
		UPDATE questions
		SET due = ?, stability = ?, difficulty = ?, elapsed_days = ?, scheduled_days = ?,
		    reps = ?, lapses = ?, state = ?, last_review = ?, updated_at = ?
		WHERE id = ?;
	`,
		nullTimePtr(question.Due),
		question.Stability,
		question.Difficulty,
		question.ElapsedDays,
		question.ScheduledDays,
		question.Reps,
		question.Lapses,
		question.State,
		nullTimePtr(question.LastReview),
		question.UpdatedAt,
		question.ID,
	); err != nil {
		return nil, nil, fmt.Errorf("update question %d: %w", question.ID, err)
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO review_logs (question_id, rating, scheduled_days, elapsed_days, state, reviewed_at)
		VALUES (?, ?, ?, ?, ?, ?);
	`, question.ID, info.ReviewLog.Rating, info.ReviewLog.ScheduledDays, info.ReviewLog.ElapsedDays, info.ReviewLog.State, now); err != nil {
		return nil, nil, fmt.Errorf("insert review log: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit review: %w", err)
	}

	log := &models.ReviewLog{
		QuestionID:    question.ID,
		Rating:        int(info.ReviewLog.Rating),
		ScheduledDays: int(info.ReviewLog.ScheduledDays),
		ElapsedDays:   int(info.ReviewLog.ElapsedDays),
		State:         int(info.ReviewLog.State),
		ReviewedAt:    now,
	}

	return question, log, nil
}
