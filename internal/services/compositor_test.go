package services

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/paymentproofflow/internal/staging"
)

// newTestArea creates a ready staging area under a test temp dir.
func newTestArea(t *testing.T) *staging.Area {
	t.Helper()
	area := staging.NewArea(filepath.Join(t.TempDir(), "temp"))
	require.NoError(t, area.EnsureLayout())
	return area
}

// writeJPEG writes a solid-color JPEG of the given size.
func writeJPEG(t *testing.T, path string, width, height int) {
	t.Helper()
	img := imaging.New(width, height, color.NRGBA{R: 120, G: 60, B: 30, A: 255})
	require.NoError(t, imaging.Save(img, path))
}

func decodeDimensions(t *testing.T, path string) (int, int) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	require.NoError(t, err)
	return cfg.Width, cfg.Height
}

func TestCombineLayoutInvariant(t *testing.T) {
	area := newTestArea(t)

	// Width/height pairs chosen so the canvas is wider than any tile and as
	// tall as the tallest one.
	sizes := [][2]int{{100, 200}, {50, 120}, {70, 160}}
	wantWidth, wantHeight := 0, 0
	for i, size := range sizes {
		name := area.Path(staging.StagePendingCombine, fmt.Sprintf("doc_%05d.jpg", i))
		writeJPEG(t, name, size[0], size[1])
		wantWidth += size[0]
		if size[1] > wantHeight {
			wantHeight = size[1]
		}
	}

	outPath, err := NewCompositor(area).Combine("doc")
	require.NoError(t, err)

	gotWidth, gotHeight := decodeDimensions(t, outPath)
	assert.Equal(t, wantWidth, gotWidth)
	assert.Equal(t, wantHeight, gotHeight)
	assert.Equal(t, area.Path(staging.StagePendingUpload, "doc.jpg"), outPath)
}

func TestCombineArchivesConsumedTiles(t *testing.T) {
	area := newTestArea(t)

	tileA := area.Path(staging.StagePendingCombine, "doc_00000.jpg")
	tileB := area.Path(staging.StagePendingCombine, "doc_00001.jpg")
	writeJPEG(t, tileA, 40, 40)
	writeJPEG(t, tileB, 60, 80)
	bytesA, err := os.ReadFile(tileA)
	require.NoError(t, err)

	_, err = NewCompositor(area).Combine("doc")
	require.NoError(t, err)

	// The source directory no longer holds the tiles...
	assert.NoFileExists(t, tileA)
	assert.NoFileExists(t, tileB)

	// ...and the archive holds them unchanged.
	archivedA := area.Path(staging.StageArchivedCombined, "doc_00000.jpg")
	gotA, err := os.ReadFile(archivedA)
	require.NoError(t, err)
	assert.Equal(t, bytesA, gotA)
	assert.FileExists(t, area.Path(staging.StageArchivedCombined, "doc_00001.jpg"))

	stage, ok := area.StageOf("doc_00000.jpg")
	require.True(t, ok)
	assert.Equal(t, staging.StageArchivedCombined, stage)
}

func TestCombineRequiresTwoTiles(t *testing.T) {
	area := newTestArea(t)

	_, err := NewCompositor(area).Combine("doc")
	var insufficient *InsufficientTilesError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 0, insufficient.Count)

	writeJPEG(t, area.Path(staging.StagePendingCombine, "doc_00000.jpg"), 40, 40)
	_, err = NewCompositor(area).Combine("doc")
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 1, insufficient.Count)

	// No output was produced either time.
	assert.NoFileExists(t, area.Path(staging.StagePendingUpload, "doc.jpg"))
}

func TestCombineUnreadableTileMetadata(t *testing.T) {
	area := newTestArea(t)

	writeJPEG(t, area.Path(staging.StagePendingCombine, "doc_00000.jpg"), 40, 40)
	require.NoError(t, os.WriteFile(area.Path(staging.StagePendingCombine, "doc_00001.jpg"), []byte("not a jpeg"), 0o644))

	_, err := NewCompositor(area).Combine("doc")
	var unreadable *MetadataUnreadableError
	require.ErrorAs(t, err, &unreadable)
	assert.Contains(t, unreadable.Path, "doc_00001.jpg")
}
