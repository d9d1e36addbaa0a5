package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/Lllllllleong/paymentproofflow/internal/models"
	"github.com/Lllllllleong/paymentproofflow/internal/raster"
	"github.com/Lllllllleong/paymentproofflow/internal/staging"
)

// StagedRow pairs a fully processed submission row with the name of the
// artifact it left in pending-upload.
type StagedRow struct {
	Row          models.SubmissionRow
	ArtifactName string
}

// DownloadError marks a source reference that could not be fetched.
type DownloadError struct {
	URL    string
	Status int
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("failed to fetch %s: HTTP %d", e.URL, e.Status)
}

// Pipeline orchestrates the acquisition, normalization and composition of
// submission rows: download, route, convert, and compose, leaving every
// finished artifact in pending-upload.
type Pipeline struct {
	area       *staging.Area
	tool       raster.Rasterizer
	converter  *Converter
	compositor *Compositor
	client     *http.Client

	// preflightPDF runs before a paginated document is rasterized.
	// Injectable for tests; defaults to OptimizePDF.
	preflightPDF func(path string) error

	// skipFailedRows makes a row failure skip that row instead of aborting
	// the whole batch.
	skipFailedRows bool
}

// NewPipeline wires a Pipeline over a staging area and a rasterizer.
func NewPipeline(area *staging.Area, tool raster.Rasterizer, skipFailedRows bool) *Pipeline {
	return &Pipeline{
		area:           area,
		tool:           tool,
		converter:      NewConverter(area, tool),
		compositor:     NewCompositor(area),
		client:         http.DefaultClient,
		preflightPDF:   OptimizePDF,
		skipFailedRows: skipFailedRows,
	}
}

// Run processes rows strictly in order and returns the rows that were fully
// staged, each paired with its pending-upload artifact name. By default the
// first row failure aborts the batch; with skipFailedRows the failing row is
// logged, its leftover tiles are quarantined, and the batch continues.
func (p *Pipeline) Run(ctx context.Context, rows []models.SubmissionRow) ([]StagedRow, error) {
	var processed []StagedRow
	for i, row := range rows {
		logger := slog.With("row", i+1, "fileName", row.FileName)
		logger.Info("Processing submission row.", "fileCount", row.FileCount())

		artifactName, err := p.processRow(ctx, logger, row)
		if err != nil {
			if p.skipFailedRows {
				logger.Error("Row failed. Skipping.", "error", err)
				if qErr := p.quarantineCombineTiles(logger); qErr != nil {
					return processed, qErr
				}
				continue
			}
			return processed, fmt.Errorf("row %d (%s): %w", i+1, row.FileName, err)
		}
		processed = append(processed, StagedRow{Row: row, ArtifactName: artifactName})
	}
	return processed, nil
}

// quarantineCombineTiles drains pending-combine after a skipped row failure.
// A completed row always consumes its own tiles, so anything still in the
// directory belongs to the row that just failed; left in place it would be
// swept into the next submission's composite. The tiles are parked in
// raw-download for inspection rather than deleted. A tile that cannot be
// moved aborts the batch, since tile isolation can no longer be guaranteed.
func (p *Pipeline) quarantineCombineTiles(logger *slog.Logger) error {
	tilePaths, err := p.area.ListFiles(staging.StagePendingCombine)
	if err != nil {
		return err
	}
	for _, tilePath := range tilePaths {
		name := filepath.Base(tilePath)
		if _, err := p.area.Move(name, staging.StagePendingCombine, staging.StageRawDownload); err != nil {
			return fmt.Errorf("quarantine stale tile %s: %w", name, err)
		}
		logger.Warn("Quarantined stale tile of failed row.", "tile", name)
	}
	return nil
}

// processRow runs the full state sequence for one submission: every source
// reference is downloaded, routed and converted in order, then the row's
// tiles are composed when more than one was staged. It returns the name of
// the artifact left in pending-upload.
func (p *Pipeline) processRow(ctx context.Context, logger *slog.Logger, row models.SubmissionRow) (string, error) {
	tilesStaged := 0
	artifactName := ""

	for refIndex, ref := range row.SourceRefs {
		name := row.FileName
		if row.FileCount() > 1 {
			// Zero-padded so lexical directory order equals reference order.
			name = fmt.Sprintf("%s_%05d", row.FileName, refIndex+1)
		}

		route, err := ResolveRoute(ref, row.FileCount())
		if err != nil {
			return "", err
		}

		downloadName := name + "." + route.Extension
		downloadPath := p.area.Path(route.Stage, downloadName)
		if err := p.download(ctx, ref, downloadPath); err != nil {
			return "", err
		}
		p.area.Record(downloadName, route.Stage)
		logger.Info("Source downloaded.", "ref", refIndex+1, "url", ref, "path", downloadPath)

		switch route.Mode {
		case ConvertNone:
			// Already a JPEG tile; the routed stage is its destination.
			tilesStaged++
			artifactName = downloadName
		case ConvertImage:
			tilePath, err := p.converter.ConvertSingleImage(ctx, downloadPath, name, row.FileCount())
			if err != nil {
				return "", err
			}
			tilesStaged++
			artifactName = filepath.Base(tilePath)
		case ConvertDocument:
			if err := p.preflightPDF(downloadPath); err != nil {
				return "", err
			}
			info, err := p.tool.CountPages(ctx, downloadPath)
			if err != nil {
				return "", err
			}
			logger.Info("Page count resolved.", "path", downloadPath, "pageCount", info.PageCount)
			tilePaths, err := p.converter.ConvertDocument(ctx, info, name, row.FileCount())
			if err != nil {
				return "", err
			}
			tilesStaged += len(tilePaths)
			if len(tilePaths) == 1 {
				artifactName = filepath.Base(tilePaths[0])
			}
		}
	}

	// Composition happens exactly once per row, when every expected tile has
	// arrived and there is more than one of them.
	if tilesStaged > 1 {
		outPath, err := p.compositor.Combine(row.FileName)
		if err != nil {
			return "", err
		}
		artifactName = filepath.Base(outPath)
	}
	return artifactName, nil
}

// download fetches one source reference with a linear stream copy to disk.
// The stream lands under a dot-prefixed temporary name and is renamed into
// place only once fully written, so a connection dropped mid-stream never
// leaves a truncated file at the routed path.
func (p *Pipeline) download(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request for %s: %w", url, err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &DownloadError{URL: url, Status: resp.StatusCode}
	}

	dir, base := filepath.Split(destPath)
	tempPath := filepath.Join(dir, "."+base+".partial")
	out, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", tempPath, err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(tempPath)
		return fmt.Errorf("stream %s to %s: %w", url, destPath, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("flush %s: %w", tempPath, err)
	}
	if err := os.Rename(tempPath, destPath); err != nil {
		return fmt.Errorf("publish download %s: %w", destPath, err)
	}
	return nil
}
