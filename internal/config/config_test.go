package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir changes into dir for the duration of the test, like t.Chdir
// (which requires Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestLoadDefaults(t *testing.T) {
	// Run from an empty directory so no ambient .env file interferes.
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("data", "PaymentSlips.csv"), cfg.CSVPath)
	assert.Equal(t, "temp", cfg.StagingDir)
	assert.Equal(t, "gm", cfg.GMBinary)
	assert.Equal(t, 300, cfg.Density)
	assert.False(t, cfg.SkipFailedRows)
	assert.False(t, cfg.ExtractFields)
	assert.Empty(t, cfg.UploadBucket)
}

func TestLoadOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SUBMISSION_CSV", "slips.csv")
	t.Setenv("CONVERT_DENSITY", "150")
	t.Setenv("SKIP_FAILED_ROWS", "true")
	t.Setenv("UPLOAD_BUCKET", "proofs-bucket")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "slips.csv", cfg.CSVPath)
	assert.Equal(t, 150, cfg.Density)
	assert.True(t, cfg.SkipFailedRows)
	assert.Equal(t, "proofs-bucket", cfg.UploadBucket)
}

func TestLoadRejectsBadDensity(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CONVERT_DENSITY", "zero")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadExtractionRequiresProject(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("EXTRACT_FIELDS", "true")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PROJECT_ID")
}
