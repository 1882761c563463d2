package models

import (
	"database/sql"
	"time"

	fsrs "github.com/open-spaced-repetition/go-fsrs"
)

type Document struct {
	ID           int64
	OriginalName string
	StoredPath   string
	PageCount    int
	UploadedAt   time.Time
}

// Question is an extracted exam question with its reference answer and the
// scheduling state used to pick it for review.
type Question struct {
	ID            int64
	DocumentID    sql.NullInt64
	Question      string
	Answer        string
	Due           sql.NullTime
	Stability     float64
	Difficulty    float64
	ElapsedDays   int
	ScheduledDays int
	Reps          int
	Lapses        int
	State         int
	LastReview    sql.NullTime
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DocumentName  sql.NullString
}

// AnswerAttempt is one graded user answer to a question.
type AnswerAttempt struct {
	ID              int64
	QuestionID      int64
	UserAnswer      string
	Score           int
	Feedback        string
	MissingConcepts string
	AttemptedAt     time.Time
}

type ReviewLog struct {
	ID            int64
	QuestionID    int64
	Rating        int
	ScheduledDays int
	ElapsedDays   int
	State         int
	ReviewedAt    time.Time
}

// Progress summarizes study history across all questions.
type Progress struct {
	TotalQuestions int     `json:"total_questions"`
	Attempted      int     `json:"attempted"`
	Mastered       int     `json:"mastered"`
	AverageScore   float64 `json:"average_score"`
	DueNow         int     `json:"due_now"`
}

func (q *Question) ToFSRSCard() fsrs.Card {
	card := fsrs.Card{
		Stability:     q.Stability,
		Difficulty:    q.Difficulty,
		ElapsedDays:   uint64(max(q.ElapsedDays, 0)),
		ScheduledDays: uint64(max(q.ScheduledDays, 0)),
		Reps:          uint64(max(q.Reps, 0)),
		Lapses:        uint64(max(q.Lapses, 0)),
		State:         fsrs.State(max(q.State, 0)),
	}
	if q.Due.Valid {
		card.Due = q.Due.Time
	}
	if q.LastReview.Valid {
		card.LastReview = q.LastReview.Time
	}
	return card
}

func (q *Question) ApplyFSRSCard(f fsrs.Card) {
	q.Due = sql.NullTime{Time: f.Due, Valid: !f.Due.IsZero()}
	q.Stability = f.Stability
	q.Difficulty = f.Difficulty
	q.ElapsedDays = int(f.ElapsedDays)
	q.ScheduledDays = int(f.ScheduledDays)
	q.Reps = int(f.Reps)
	q.Lapses = int(f.Lapses)
	q.State = int(f.State)
	q.LastReview = sql.NullTime{Time: f.LastReview, Valid: !f.LastReview.IsZero()}
}

func max[T ~int | ~int32 | ~int64](a, b T) T {
	if a > b {
		return a
	}
	return b
}
