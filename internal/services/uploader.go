package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"cloud.google.com/go/storage"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/googleapi"

	"github.com/Lllllllleong/paymentproofflow/internal/staging"
)

// Uploader pushes every staged artifact in pending-upload to the destination
// bucket and archives it locally afterwards.
type Uploader struct {
	area   *staging.Area
	bucket *storage.BucketHandle
	limit  int
}

// NewUploader returns an Uploader writing into bucket.
func NewUploader(area *staging.Area, bucket *storage.BucketHandle) *Uploader {
	return &Uploader{area: area, bucket: bucket, limit: 4}
}

// UploadPending uploads the flat list of files currently staged for upload.
// Uploads run concurrently with a bounded limit; each successful upload moves
// the file to already-uploaded. Any failed upload fails the phase.
func (u *Uploader) UploadPending(ctx context.Context) error {
	files, err := u.area.ListFiles(staging.StagePendingUpload)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		slog.Info("Nothing staged for upload.")
		return nil
	}
	slog.Info("Starting upload of staged files.", "fileCount", len(files))

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(u.limit)
	for _, file := range files {
		file := file
		eg.Go(func() error {
			name := filepath.Base(file)
			if err := u.uploadFile(gctx, file, name); err != nil {
				return fmt.Errorf("upload %s: %w", name, err)
			}
			if _, err := u.area.Move(name, staging.StagePendingUpload, staging.StageArchivedUploaded); err != nil {
				return err
			}
			slog.Info("File uploaded and archived.", "name", name)
			return nil
		})
	}
	return eg.Wait()
}

// uploadFile writes one local file to the bucket with a do-not-overwrite
// condition and retries transient failures with exponential backoff. An
// already-existing object counts as uploaded.
func (u *Uploader) uploadFile(ctx context.Context, localPath, destObject string) error {
	const maxRetries = 4
	backoff := 1 * time.Second
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		err := func() error {
			reader, err := os.Open(localPath)
			if err != nil {
				return fmt.Errorf("could not open local file %s: %w", localPath, err)
			}
			defer reader.Close()

			writeCtx, cancel := context.WithTimeout(ctx, 50*time.Second)
			defer cancel()

			writer := u.bucket.Object(destObject).If(storage.Conditions{DoesNotExist: true}).NewWriter(writeCtx)
			if _, err := io.Copy(writer, reader); err != nil {
				_ = writer.Close()
				return fmt.Errorf("io.Copy to bucket failed: %w", err)
			}
			if err := writer.Close(); err != nil {
				return fmt.Errorf("failed to finalize upload: %w", err)
			}
			return nil
		}()

		if err == nil {
			return nil
		}
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
			slog.Info("Object already exists in bucket. Skipping.", "object", destObject)
			return nil
		}

		lastErr = err
		slog.Warn("Upload failed, will retry.",
			"object", destObject,
			"attempt", attempt,
			"maxRetries", maxRetries,
			"backoff", backoff.String(),
			"error", err,
		)
		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("upload for %s failed after all retries: %w", destObject, lastErr)
}
