// Package staging owns the on-disk layout the pipeline moves artifacts
// through. Each stage is a directory; an artifact occupies exactly one stage
// at a time and changes stage by rename, never by copy. An in-memory index
// mirrors the directory state so transitions are driven by the explicit
// record rather than by re-scanning the filesystem.
package staging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Stage identifies one step of an artifact's lifecycle.
type Stage string

const (
	StageRawDownload      Stage = "raw-download"
	StagePendingCombine   Stage = "pending-combine"
	StagePendingUpload    Stage = "pending-upload"
	StageArchivedCombined Stage = "archived-combined"
	StageArchivedUploaded Stage = "archived-uploaded"
)

// Area is a staging tree rooted at a base directory.
type Area struct {
	baseDir string

	mu    sync.Mutex
	index map[string]Stage
}

// NewArea creates a staging area rooted at baseDir. Call EnsureLayout before
// the first run.
func NewArea(baseDir string) *Area {
	return &Area{
		baseDir: filepath.Clean(baseDir),
		index:   make(map[string]Stage),
	}
}

// EnsureLayout idempotently creates the five stage directories.
func (a *Area) EnsureLayout() error {
	stages := []Stage{
		StageRawDownload,
		StagePendingCombine,
		StageArchivedCombined,
		StagePendingUpload,
		StageArchivedUploaded,
	}
	for _, stage := range stages {
		if err := os.MkdirAll(a.Dir(stage), 0o755); err != nil {
			return fmt.Errorf("create stage directory %s: %w", stage, err)
		}
	}
	return nil
}

// Dir returns the directory backing a stage. Archive stages live underneath
// the stage they archive, so the upload collaborator sees a flat list of
// ready files plus one archive subdirectory.
func (a *Area) Dir(stage Stage) string {
	switch stage {
	case StageRawDownload:
		return filepath.Join(a.baseDir, "raw-download")
	case StagePendingCombine:
		return filepath.Join(a.baseDir, "pending-combine")
	case StageArchivedCombined:
		return filepath.Join(a.baseDir, "pending-combine", "already-combined")
	case StagePendingUpload:
		return filepath.Join(a.baseDir, "pending-upload")
	case StageArchivedUploaded:
		return filepath.Join(a.baseDir, "pending-upload", "already-uploaded")
	default:
		return filepath.Join(a.baseDir, string(stage))
	}
}

// Path returns the absolute location a named artifact has (or would have) in
// the given stage.
func (a *Area) Path(stage Stage, name string) string {
	return filepath.Join(a.Dir(stage), name)
}

// Record registers an artifact that was created directly in a stage, e.g. a
// finished download or a freshly converted tile.
func (a *Area) Record(name string, stage Stage) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.index[name] = stage
}

// StageOf reports the stage an artifact currently occupies.
func (a *Area) StageOf(name string) (Stage, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	stage, ok := a.index[name]
	return stage, ok
}

// Move transitions a named artifact from one stage to another by rename and
// returns its new path. A failed rename leaves the artifact, and its index
// entry, in the source stage.
func (a *Area) Move(name string, from, to Stage) (string, error) {
	src := a.Path(from, name)
	dst := a.Path(to, name)
	if err := os.Rename(src, dst); err != nil {
		return "", fmt.Errorf("move %s from %s to %s: %w", name, from, to, err)
	}
	a.Record(name, to)
	return dst, nil
}

// ListFiles returns the full paths of the regular files currently in a stage,
// in lexical name order. Subdirectories (archive stages) are not descended
// into.
func (a *Area) ListFiles(stage Stage) ([]string, error) {
	entries, err := os.ReadDir(a.Dir(stage))
	if err != nil {
		return nil, fmt.Errorf("list stage %s: %w", stage, err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		paths = append(paths, filepath.Join(a.Dir(stage), entry.Name()))
	}
	return paths, nil
}
