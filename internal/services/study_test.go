package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	fsrs "github.com/open-spaced-repetition/go-fsrs"

	"github.com/Bartkosa/MemoWrite/internal/extract"
)

func TestRatingForScore(t *testing.T) {
	cases := []struct {
		score int
		want  fsrs.Rating
	}{
		{100, fsrs.Easy},
		{90, fsrs.Easy},
		{89, fsrs.Good},
		{70, fsrs.Good},
		{69, fsrs.Hard},
		{50, fsrs.Hard},
		{49, fsrs.Again},
		{0, fsrs.Again},
	}
	for _, tc := range cases {
		if got := RatingForScore(tc.score); got != tc.want {
			t.Errorf("RatingForScore(%d) = %v, want %v", tc.score, got, tc.want)
		}
	}
}

func TestNextQuestionEmpty(t *testing.T) {
	conn := testDB(t)
	study := NewStudyService(conn)

	if _, err := study.NextQuestion(context.Background()); !errors.Is(err, ErrNoDueQuestions) {
		t.Fatalf("err = %v, want ErrNoDueQuestions", err)
	}
}

func TestReviewReschedules(t *testing.T) {
	conn := testDB(t)
	questions := NewQuestionService(conn)
	study := NewStudyService(conn)

	if _, err := questions.BulkInsertPairs(context.Background(), sql.NullInt64{}, []extract.QAPair{
		{Question: "Q1?", Answer: "A1."},
		{Question: "Q2?", Answer: "A2."},
	}); err != nil {
		t.Fatalf("BulkInsertPairs: %v", err)
	}

	first, err := study.NextQuestion(context.Background())
	if err != nil {
		t.Fatalf("NextQuestion: %v", err)
	}

	before := time.Now().UTC()
	updated, logEntry, err := study.ReviewQuestion(context.Background(), first.ID, fsrs.Good)
	if err != nil {
		t.Fatalf("ReviewQuestion: %v", err)
	}
	if !updated.Due.Valid || !updated.Due.Time.After(before) {
		t.Errorf("due not pushed into the future: %+v", updated.Due)
	}
	if updated.Reps != 1 {
		t.Errorf("reps = %d, want 1", updated.Reps)
	}
	if logEntry.Rating != int(fsrs.Good) {
		t.Errorf("log rating = %d, want %d", logEntry.Rating, int(fsrs.Good))
	}

	var logged int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM review_logs WHERE question_id = ?;`, first.ID).Scan(&logged); err != nil {
		t.Fatalf("count review logs: %v", err)
	}
	if logged != 1 {
		t.Errorf("review log rows = %d, want 1", logged)
	}

	// the reviewed question is no longer first in line
	next, err := study.NextQuestion(context.Background())
	if err != nil {
		t.Fatalf("NextQuestion after review: %v", err)
	}
	if next.ID == first.ID {
		t.Errorf("reviewed question returned again immediately")
	}
}

func TestReviewMissingQuestion(t *testing.T) {
	conn := testDB(t)
	study := NewStudyService(conn)

	if _, _, err := study.ReviewQuestion(context.Background(), 42, fsrs.Good); !errors.Is(err, ErrQuestionNotFound) {
		t.Fatalf("err = %v, want ErrQuestionNotFound", err)
	}
}
