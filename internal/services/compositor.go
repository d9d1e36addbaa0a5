package services

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/Lllllllleong/paymentproofflow/internal/staging"
)

// InsufficientTilesError is returned when composition is requested with fewer
// than two tiles; that case must never reach the compositor.
type InsufficientTilesError struct {
	Count int
}

func (e *InsufficientTilesError) Error() string {
	return fmt.Sprintf("composition needs at least two tiles, got %d", e.Count)
}

// MetadataUnreadableError marks a tile whose dimensions could not be read.
type MetadataUnreadableError struct {
	Path string
	Err  error
}

func (e *MetadataUnreadableError) Error() string {
	return fmt.Sprintf("cannot read image metadata of %s: %v", e.Path, e.Err)
}

func (e *MetadataUnreadableError) Unwrap() error { return e.Err }

type tileInfo struct {
	path   string
	width  int
	height int
}

// Compositor renders the tiles of one submission into a single canvas and
// archives the consumed tiles. It is the only component that relocates tiles
// it did not produce.
type Compositor struct {
	area *staging.Area
}

// NewCompositor returns a Compositor working over area.
func NewCompositor(area *staging.Area) *Compositor {
	return &Compositor{area: area}
}

// Combine collects every tile currently in pending-combine, lays them out
// left to right with each tile vertically centered, and renders one composite
// JPEG named after the document.
//
// The composite is rendered under a temporary name first and renamed into
// place only after the consumed tiles were archived, so a crash mid-archival
// never leaves a visible but incomplete composite in the upload-facing
// directory.
func (c *Compositor) Combine(documentName string) (string, error) {
	tilePaths, err := c.area.ListFiles(staging.StagePendingCombine)
	if err != nil {
		return "", err
	}
	if len(tilePaths) < 2 {
		return "", &InsufficientTilesError{Count: len(tilePaths)}
	}

	logger := slog.With("documentName", documentName, "tileCount", len(tilePaths))
	logger.Info("Reading tile metadata.")

	tiles := make([]tileInfo, 0, len(tilePaths))
	canvasWidth, canvasHeight := 0, 0
	for _, tilePath := range tilePaths {
		width, height, err := imageDimensions(tilePath)
		if err != nil {
			return "", &MetadataUnreadableError{Path: tilePath, Err: err}
		}
		tiles = append(tiles, tileInfo{path: tilePath, width: width, height: height})
		canvasWidth += width
		if height > canvasHeight {
			canvasHeight = height
		}
	}

	logger.Info("Rendering composite canvas.", "width", canvasWidth, "height", canvasHeight)
	canvas := imaging.New(canvasWidth, canvasHeight, color.White)
	leftOffset := 0
	for _, tile := range tiles {
		img, err := imaging.Open(tile.path)
		if err != nil {
			return "", fmt.Errorf("open tile %s: %w", tile.path, err)
		}
		topOffset := int(math.Round(float64(canvasHeight-tile.height) / 2))
		canvas = imaging.Paste(canvas, img, image.Pt(leftOffset, topOffset))
		leftOffset += tile.width
	}

	tempPath := c.area.Path(staging.StagePendingUpload, "."+documentName+".jpg.partial")
	if err := encodeJPEG(canvas, tempPath); err != nil {
		return "", fmt.Errorf("render composite for %s: %w", documentName, err)
	}

	// Archive the consumed tiles. A failed move is logged but does not undo
	// the already-rendered composite.
	for _, tile := range tiles {
		if _, err := c.area.Move(filepath.Base(tile.path), staging.StagePendingCombine, staging.StageArchivedCombined); err != nil {
			logger.Error("Failed to archive combined tile.", "tile", tile.path, "error", err)
		}
	}

	outName := documentName + ".jpg"
	outPath := c.area.Path(staging.StagePendingUpload, outName)
	if err := os.Rename(tempPath, outPath); err != nil {
		return "", fmt.Errorf("publish composite %s: %w", outName, err)
	}
	c.area.Record(outName, staging.StagePendingUpload)

	logger.Info("Composite rendered.", "output", outPath)
	return outPath, nil
}

func imageDimensions(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return 0, 0, fmt.Errorf("image reports zero dimensions")
	}
	return cfg.Width, cfg.Height, nil
}

func encodeJPEG(img image.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := imaging.Encode(f, img, imaging.JPEG); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
