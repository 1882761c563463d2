package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Bartkosa/MemoWrite/internal/models"
	"github.com/Bartkosa/MemoWrite/internal/services"
)

const maxMultipartMemory = 8 << 20 // 8 MB

type Server struct {
	mux             *http.ServeMux
	questions       *services.QuestionService
	study           *services.StudyService
	grader          *services.GraderService
	documents       *services.DocumentService
	ingestion       *services.IngestionService
	jobs            *JobManager
	log             zerolog.Logger
	maxAnswerLength int
}

type DocumentResult struct {
	DocumentID int64       `json:"documentId"`
	Name       string      `json:"name"`
	Pages      int         `json:"pages"`
	Status     string      `json:"status"`
	Message    string      `json:"message,omitempty"`
	Payload    interface{} `json:"payload,omitempty"`
}

func NewServer(
	questions *services.QuestionService,
	study *services.StudyService,
	grader *services.GraderService,
	documents *services.DocumentService,
	ingestion *services.IngestionService,
	log zerolog.Logger,
	maxAnswerLength int,
) *Server {
	s := &Server{
		mux:             http.NewServeMux(),
		questions:       questions,
		study:           study,
		grader:          grader,
		documents:       documents,
		ingestion:       ingestion,
		jobs:            NewJobManager(),
		log:             log,
		maxAnswerLength: maxAnswerLength,
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/questions", s.handleListQuestions)
	s.mux.HandleFunc("/api/questions/", s.handleQuestionByID)
	s.mux.HandleFunc("/api/progress", s.handleProgress)
	s.mux.HandleFunc("/api/study/next", s.handleStudyNext)
	s.mux.HandleFunc("/api/study/submit", s.handleStudySubmit)
	s.mux.HandleFunc("/api/documents", s.handleUploadDocuments)
	s.mux.HandleFunc("/api/documents/jobs", s.handleJobs)
	s.mux.HandleFunc("/api/documents/jobs/", s.handleJobStatus)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	limit := 200
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	questions, err := s.questions.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]map[string]any, 0, len(questions))
	for _, q := range questions {
		out = append(out, map[string]any{
			"id":       q.ID,
			"question": q.Question,
			"answer":   q.Answer,
			"due":      nullTimeToString(q.Due),
			"state":    q.State,
			"source":   nullString(q.DocumentName),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"questions": out, "total": len(out)})
}

func (s *Server) handleQuestionByID(w http.ResponseWriter, r *http.Request) {
	idStr := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/questions/"), "/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid question id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		question, err := s.questions.GetByID(r.Context(), id)
		if err != nil {
			if errors.Is(err, services.ErrQuestionNotFound) {
				writeError(w, http.StatusNotFound, "question not found")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"id":       question.ID,
			"question": question.Question,
			"answer":   question.Answer,
			"due":      nullTimeToString(question.Due),
			"state":    question.State,
			"reps":     question.Reps,
			"lapses":   question.Lapses,
			"source":   nullString(question.DocumentName),
		})
	case http.MethodDelete:
		if err := s.questions.Delete(r.Context(), id); err != nil {
			if errors.Is(err, services.ErrQuestionNotFound) {
				writeError(w, http.StatusNotFound, "question not found")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodDelete)
	}
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	progress, err := s.questions.Progress(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"progress": progress})
}

func (s *Server) handleStudyNext(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	question, err := s.study.NextQuestion(r.Context())
	if err != nil {
		if errors.Is(err, services.ErrNoDueQuestions) {
			writeJSON(w, http.StatusOK, map[string]any{
				"question": nil,
				"message":  "No questions due. Come back later!",
			})
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// The reference answer stays server-side until the attempt is graded.
	writeJSON(w, http.StatusOK, map[string]any{
		"question": map[string]any{
			"id":       question.ID,
			"question": question.Question,
			"due":      nullTimeToString(question.Due),
			"state":    question.State,
			"source":   nullString(question.DocumentName),
		},
	})
}

type submitRequest struct {
	QuestionID int64  `json:"question_id"`
	Answer     string `json:"answer"`
}

func (s *Server) handleStudySubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var payload submitRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	answer := strings.TrimSpace(payload.Answer)
	if answer == "" {
		writeError(w, http.StatusBadRequest, "answer is required")
		return
	}
	if s.maxAnswerLength > 0 && len([]rune(answer)) > s.maxAnswerLength {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("answer exceeds %d characters", s.maxAnswerLength))
		return
	}

	question, err := s.questions.GetByID(r.Context(), payload.QuestionID)
	if err != nil {
		if errors.Is(err, services.ErrQuestionNotFound) {
			writeError(w, http.StatusNotFound, "question not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	grade, err := s.grader.Grade(r.Context(), question.Question, question.Answer, answer)
	if err != nil {
		if errors.Is(err, services.ErrAIUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "grading service unavailable")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	attempt := &models.AnswerAttempt{
		QuestionID:      question.ID,
		UserAnswer:      answer,
		Score:           grade.Score,
		Feedback:        grade.Feedback,
		MissingConcepts: strings.Join(grade.MissingConcepts, "; "),
	}
	if err := s.questions.RecordAttempt(r.Context(), attempt); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	rating := services.RatingForScore(grade.Score)
	updated, logEntry, err := s.study.ReviewQuestion(r.Context(), question.ID, rating)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"grade": map[string]any{
			"score":            grade.Score,
			"feedback":         grade.Feedback,
			"missing_concepts": grade.MissingConcepts,
		},
		"reference_answer": question.Answer,
		"review": map[string]any{
			"rating":  int(rating),
			"due":     nullTimeToString(updated.Due),
			"due_in":  logEntry.ScheduledDays,
			"state":   updated.State,
			"updated": logEntry.ReviewedAt.Format(timeLayout),
		},
	})
}

func (s *Server) handleUploadDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	if form := r.MultipartForm; form != nil {
		defer form.RemoveAll()
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "no files uploaded")
		return
	}

	results := make([]DocumentResult, 0, len(files))
	for _, file := range files {
		result, err := s.processDocument(r.Context(), file, nil)
		if err != nil {
			result.Status = FileStatusError
		}
		results = append(results, result)
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/documents/jobs" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	s.handleCreateUploadJob(w, r)
}

func (s *Server) handleCreateUploadJob(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	form := r.MultipartForm
	if form == nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "no files uploaded")
		return
	}

	fileNames := make([]string, len(files))
	for i, file := range files {
		fileNames[i] = file.Filename
	}

	fileHeaders := append([]*multipart.FileHeader(nil), files...)
	jobID, snapshot := s.jobs.CreateJob(fileNames)

	go s.runUploadJob(context.Background(), jobID, fileHeaders, form)

	writeJSON(w, http.StatusAccepted, snapshot)
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	jobID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/documents/jobs/"), "/")
	if jobID == "" {
		http.NotFound(w, r)
		return
	}

	job, ok := s.jobs.GetJob(jobID)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	writeJSON(w, http.StatusOK, job)
}

func (s *Server) runUploadJob(ctx context.Context, jobID string, files []*multipart.FileHeader, form *multipart.Form) {
	defer func() {
		if form != nil {
			_ = form.RemoveAll()
		}
	}()

	s.jobs.MarkProcessing(jobID)
	for idx, file := range files {
		s.jobs.MarkFileStarted(jobID, idx)
		progress := func(step, message string, current, total int) {
			s.jobs.UpdateFileProgress(jobID, idx, step, message, current, total)
		}
		result, err := s.processDocument(ctx, file, progress)
		if err != nil {
			s.log.Warn().Str("job", jobID).Str("file", file.Filename).Err(err).Msg("ingestion failed")
			s.jobs.MarkFileError(jobID, idx, err.Error(), result)
			continue
		}
		s.jobs.MarkFileComplete(jobID, idx, result)
	}
	s.jobs.MarkCompleted(jobID)
}

func (s *Server) processDocument(ctx context.Context, file *multipart.FileHeader, progress services.ProgressCallback) (DocumentResult, error) {
	result := DocumentResult{
		Name:   file.Filename,
		Status: FileStatusError,
	}

	src, err := file.Open()
	if err != nil {
		result.Message = err.Error()
		return result, fmt.Errorf("open file %s: %w", file.Filename, err)
	}
	defer src.Close()

	doc, err := s.documents.Create(ctx, file.Filename, src)
	if err != nil {
		result.Message = err.Error()
		return result, fmt.Errorf("create document %s: %w", file.Filename, err)
	}

	result.DocumentID = doc.ID

	summary, err := s.ingestion.ProcessDocumentWithProgress(ctx, doc, progress)
	if err != nil {
		result.Message = err.Error()
		return result, err
	}

	result.Pages = summary.Pages
	result.Status = "ok"
	result.Payload = summary
	return result, nil
}

const timeLayout = time.RFC3339

func nullTimeToString(t sql.NullTime) *string {
	if t.Valid {
		str := t.Time.Format(timeLayout)
		return &str
	}
	return nil
}

func nullString(v sql.NullString) *string {
	if v.Valid {
		str := v.String
		return &str
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
