package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/paymentproofflow/internal/raster"
	"github.com/Lllllllleong/paymentproofflow/internal/staging"
)

// Converter drives the external raster tool to turn a downloaded source into
// one JPEG tile per page.
type Converter struct {
	area *staging.Area
	tool raster.Rasterizer
}

// NewConverter returns a Converter staging its output in area.
func NewConverter(area *staging.Area, tool raster.Rasterizer) *Converter {
	return &Converter{area: area, tool: tool}
}

// ConvertDocument rasterizes every page of a counted document. Tiles go to
// pending-combine when the submission will hold more than one tile in total
// (multi-page document or multi-file submission), else straight to
// pending-upload. On a page failure the remaining pages are not attempted and
// tiles already produced are left in place.
func (c *Converter) ConvertDocument(ctx context.Context, info raster.PageInfo, docName string, fileCount int) ([]string, error) {
	combine := info.PageCount > 1 || fileCount > 1
	stage := staging.StagePendingUpload
	if combine {
		stage = staging.StagePendingCombine
	}

	var tilePaths []string
	for pageIndex := 0; pageIndex < info.PageCount; pageIndex++ {
		outName := docName + ".jpg"
		if combine {
			// Zero-padded so lexical directory order equals page order.
			outName = fmt.Sprintf("%s_%05d.jpg", docName, pageIndex)
		}
		outPath := c.area.Path(stage, outName)

		slog.Info("Converting document page.",
			"source", info.AbsolutePath,
			"page", pageIndex+1,
			"pageCount", info.PageCount,
			"output", outPath,
		)
		if err := c.tool.ConvertPage(ctx, info.AbsolutePath, pageIndex, outPath); err != nil {
			return tilePaths, fmt.Errorf("convert page %d of %s: %w", pageIndex+1, info.AbsolutePath, err)
		}
		c.area.Record(outName, stage)
		tilePaths = append(tilePaths, outPath)
	}
	return tilePaths, nil
}

// ConvertSingleImage re-encodes one non-JPEG image into a JPEG tile.
func (c *Converter) ConvertSingleImage(ctx context.Context, srcPath, docName string, fileCount int) (string, error) {
	stage := staging.StagePendingUpload
	if fileCount > 1 {
		stage = staging.StagePendingCombine
	}
	outName := docName + ".jpg"
	outPath := c.area.Path(stage, outName)

	slog.Info("Re-encoding image to JPEG.", "source", srcPath, "output", outPath)
	if err := c.tool.ConvertImage(ctx, srcPath, outPath); err != nil {
		return "", fmt.Errorf("re-encode %s: %w", srcPath, err)
	}
	c.area.Record(outName, stage)
	return outPath, nil
}
