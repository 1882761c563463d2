package main

import (
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/Bartkosa/MemoWrite/internal/api"
	"github.com/Bartkosa/MemoWrite/internal/config"
	"github.com/Bartkosa/MemoWrite/internal/db"
	"github.com/Bartkosa/MemoWrite/internal/services"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	cfg := config.Load()

	conn, err := db.Open(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer conn.Close()

	pdfService := services.NewPDFService()
	generation := services.NewGenerationService(cfg.OpenAIKey, cfg.OpenAIModel, cfg.OpenAIEndpoint)
	if !generation.Available() {
		log.Warn().Msg("OPENAI_API_KEY not set; extraction and grading are disabled")
	}

	courseNotes, err := services.LoadCourseContext(pdfService, cfg.CourseNotesPath)
	if err != nil {
		log.Warn().Err(err).Str("path", cfg.CourseNotesPath).Msg("course notes unavailable")
	}

	questionService := services.NewQuestionService(conn)
	studyService := services.NewStudyService(conn)
	documentService := services.NewDocumentService(conn, cfg.UploadDir)
	graderService := services.NewGraderService(generation, courseNotes, cfg.GradingStrictness)
	ingestionService := services.NewIngestionService(
		documentService,
		pdfService,
		generation,
		questionService,
		log.With().Str("component", "ingestion").Logger(),
		cfg.PagesPerBatch,
	)

	server := api.NewServer(
		questionService,
		studyService,
		graderService,
		documentService,
		ingestionService,
		log.With().Str("component", "api").Logger(),
		cfg.MaxAnswerLength,
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Info().Str("port", port).Msg("listening")

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      server.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server failed")
	}
}
