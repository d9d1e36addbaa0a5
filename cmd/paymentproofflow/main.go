package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/Lllllllleong/paymentproofflow/internal/config"
	"github.com/Lllllllleong/paymentproofflow/internal/gcp"
	"github.com/Lllllllleong/paymentproofflow/internal/ingest"
	"github.com/Lllllllleong/paymentproofflow/internal/models"
	"github.com/Lllllllleong/paymentproofflow/internal/raster"
	"github.com/Lllllllleong/paymentproofflow/internal/services"
	"github.com/Lllllllleong/paymentproofflow/internal/staging"
	"github.com/Lllllllleong/paymentproofflow/internal/store"
)

func main() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(context.Background()); err != nil {
		slog.Error("Batch run failed.", "error", err)
		os.Exit(1)
	}
	slog.Info("Batch run complete.")
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(slog.With("runId", uuid.NewString()))

	area := staging.NewArea(cfg.StagingDir)
	if err := area.EnsureLayout(); err != nil {
		return err
	}

	records, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer records.Close()

	rows, err := ingest.ReadSubmissionLog(cfg.CSVPath)
	if err != nil {
		return err
	}
	fresh, err := records.FilterNew(ctx, rows)
	if err != nil {
		return err
	}

	tool := raster.NewTool(cfg.GMBinary, cfg.Density)
	pipeline := services.NewPipeline(area, tool, cfg.SkipFailedRows)
	processed, err := pipeline.Run(ctx, fresh)
	if err != nil {
		return err
	}

	if err := recordProcessed(ctx, cfg, area, records, processed); err != nil {
		return err
	}

	if cfg.UploadBucket == "" {
		slog.Info("No upload bucket configured. Leaving staged files in place.")
		return nil
	}
	storageClient, err := gcp.NewStorageClient(ctx)
	if err != nil {
		return err
	}
	defer storageClient.Close()
	uploader := services.NewUploader(area, storageClient.Bucket(cfg.UploadBucket))
	return uploader.UploadPending(ctx)
}

// recordProcessed persists one record per fully staged row, extracting the
// transfer fields from the staged image when extraction is enabled.
func recordProcessed(ctx context.Context, cfg config.Config, area *staging.Area, records *store.Store, processed []services.StagedRow) error {
	var extractor *gcp.Extractor
	if cfg.ExtractFields {
		var err error
		extractor, err = gcp.NewExtractor(ctx, cfg.ProjectID, cfg.Region)
		if err != nil {
			return err
		}
		defer extractor.Close()
	}

	for _, staged := range processed {
		var fields models.ReceiptFields
		if extractor != nil {
			// The staged name carries the source extension for direct
			// restages, so it cannot be reconstructed from the row alone.
			imagePath := area.Path(staging.StagePendingUpload, staged.ArtifactName)
			var err error
			fields, err = extractor.ExtractFields(ctx, imagePath)
			if err != nil {
				return err
			}
		}
		if err := records.Insert(ctx, models.NewPaymentRecord(staged.Row, fields)); err != nil {
			return err
		}
	}
	return nil
}
