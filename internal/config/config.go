package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds every runtime setting of the batch run. Upload and field
// extraction are optional stages: they stay disabled when their settings are
// absent.
type Config struct {
	CSVPath        string
	StagingDir     string
	DBPath         string
	GMBinary       string
	Density        int
	SkipFailedRows bool

	UploadBucket string

	ExtractFields bool
	ProjectID     string
	Region        string
}

// Load reads .env (or .env.<APP_ENV>) when present, then resolves the full
// configuration from the environment.
func Load() (Config, error) {
	envFileName := ".env"
	if appEnv := os.Getenv("APP_ENV"); appEnv != "" {
		envFileName = ".env." + appEnv
	}
	// A missing env file is fine; the environment may carry everything.
	_ = godotenv.Load(envFileName)

	cfg := Config{
		CSVPath:        GetEnv("SUBMISSION_CSV", filepath.Join("data", "PaymentSlips.csv")),
		StagingDir:     GetEnv("STAGING_DIR", "temp"),
		DBPath:         GetEnv("SQLITE_PATH", filepath.Join("sql", "database_core.db")),
		GMBinary:       GetEnv("GM_BINARY", "gm"),
		UploadBucket:   GetEnv("UPLOAD_BUCKET", ""),
		ProjectID:      GetEnv("PROJECT_ID", ""),
		Region:         GetEnv("VERTEX_REGION", "us-central1"),
		SkipFailedRows: getBool("SKIP_FAILED_ROWS", false),
		ExtractFields:  getBool("EXTRACT_FIELDS", false),
	}

	density, err := strconv.Atoi(GetEnv("CONVERT_DENSITY", "300"))
	if err != nil || density <= 0 {
		return Config{}, fmt.Errorf("CONVERT_DENSITY must be a positive integer")
	}
	cfg.Density = density

	if cfg.CSVPath == "" {
		return Config{}, fmt.Errorf("SUBMISSION_CSV must not be empty")
	}
	if cfg.ExtractFields && cfg.ProjectID == "" {
		return Config{}, fmt.Errorf("EXTRACT_FIELDS requires PROJECT_ID to be set")
	}
	return cfg, nil
}

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
