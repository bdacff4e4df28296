package tasks

import (
	"context"
	"time"

	filestore "github.com/dalemusser/unigrading/internal/app/store/file"
	"github.com/dalemusser/unigrading/internal/app/system/blobstore"
	"github.com/dalemusser/unigrading/internal/app/system/metrics"
	"github.com/dalemusser/unigrading/internal/domain/models"
	"go.uber.org/zap"
)

// MissingBlobScanJob walks every file record and checks that its blob is
// still in storage. Records are never removed; the count feeds the
// files_without_blob gauge and each miss is logged.
func MissingBlobScanJob(files *filestore.Store, blobs blobstore.Store, interval time.Duration, logger *zap.Logger) Job {
	return Job{
		Name:     "missing-blob-scan",
		Interval: interval,
		Run: func(ctx context.Context) error {
			n, err := ScanMissingBlobs(ctx, files, blobs, logger)
			if err != nil {
				return err
			}
			metrics.FilesWithoutBlob.Set(float64(n))
			if n > 0 {
				logger.Warn("file records without blobs", zap.Int("count", n))
			}
			return nil
		},
	}
}

// ScanMissingBlobs returns how many file records point at a blob that does
// not exist.
func ScanMissingBlobs(ctx context.Context, files *filestore.Store, blobs blobstore.Store, logger *zap.Logger) (int, error) {
	missing := 0
	err := files.Each(ctx, func(f models.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !blobs.Exists(ctx, f.BlobKey) {
			missing++
			logger.Debug("blob missing",
				zap.String("file_id", f.ID.Hex()),
				zap.String("key", f.BlobKey))
		}
		return nil
	})
	return missing, err
}
