package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config stores runtime configuration loaded from environment variables.
type Config struct {
	OpenAIKey         string
	OpenAIEndpoint    string
	OpenAIModel       string
	Database          string
	UploadDir         string
	CourseNotesPath   string
	GradingStrictness string
	MaxAnswerLength   int
	PagesPerBatch     int
}

// Load reads configuration from the environment, providing sensible defaults.
func Load() Config {
	// Load .env file if it exists (useful for development)
	_ = godotenv.Load()
	cfg := Config{
		OpenAIKey:         os.Getenv("OPENAI_API_KEY"),
		OpenAIEndpoint:    getEnv("OPENAI_API_ENDPOINT", "https://api.openai.com/v1"),
		OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		Database:          getEnv("DATABASE_PATH", "./data/memowrite.db"),
		UploadDir:         getEnv("UPLOAD_DIR", "./data/uploads"),
		CourseNotesPath:   os.Getenv("COURSE_NOTES_PATH"),
		GradingStrictness: getEnv("GRADING_STRICTNESS", "moderate"),
		MaxAnswerLength:   getEnvInt("MAX_ANSWER_LENGTH", 5000),
		PagesPerBatch:     getEnvInt("PAGES_PER_BATCH", 3),
	}

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		log.Fatalf("failed to ensure upload dir %s: %v", cfg.UploadDir, err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Database), 0o755); err != nil {
		log.Fatalf("failed to ensure database dir %s: %v", cfg.Database, err)
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
