package coursetree

import (
	"context"
	"math"
	"mime"
	"strings"

	"github.com/dalemusser/unigrading/internal/app/store/file"
	"github.com/dalemusser/unigrading/internal/app/system/metrics"
	"github.com/dalemusser/unigrading/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Listing is the content of one folder.
type Listing struct {
	Category      models.Category   `json:"category"`
	Subcategories []models.Category `json:"subcategories"`
	Files         []FileEntry       `json:"files"`
}

// FileEntry is a file with the metadata shown next to it.
type FileEntry struct {
	models.File
	Extension string  `json:"extension"`
	MIMEType  string  `json:"mime_type"`
	Kind      string  `json:"kind"`
	SizeKB    float64 `json:"size_kb"`
	IsMissing bool    `json:"is_missing"`
}

// ListChildren returns a folder's subfolders and files, each sorted by name.
// A file whose blob cannot be located is flagged IsMissing; storage problems
// never fail the listing.
func (s *Service) ListChildren(ctx context.Context, id primitive.ObjectID) (*Listing, error) {
	cat, err := s.loadCategory(ctx, id)
	if err != nil {
		return nil, err
	}

	subs, err := s.categories.ListByParent(ctx, cat.SubjectID, &cat.ID)
	if err != nil {
		return nil, err
	}
	files, err := s.files.ListByCategory(ctx, cat.ID)
	if err != nil {
		return nil, err
	}

	entries := make([]FileEntry, 0, len(files))
	for _, f := range files {
		entry := describe(f)
		if !s.blobs.Exists(ctx, f.BlobKey) {
			entry.IsMissing = true
			metrics.MissingBlobs.Inc()
			s.log.Warn("file missing from storage",
				zap.String("file_id", f.ID.Hex()),
				zap.String("key", f.BlobKey))
		}
		entries = append(entries, entry)
	}

	return &Listing{Category: *cat, Subcategories: subs, Files: entries}, nil
}

func describe(f models.File) FileEntry {
	mimeType := guessMIME(f.Name)
	return FileEntry{
		File:      f,
		Extension: extension(f.Name),
		MIMEType:  mimeType,
		Kind:      file.FileTypeCategory(mimeType),
		SizeKB:    sizeKB(f.Size),
	}
}

// extension is the lower-cased text after the last '.', or "".
func extension(name string) string {
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}

func guessMIME(name string) string {
	if ext := extension(name); ext != "" {
		if t := mime.TypeByExtension("." + ext); t != "" {
			return t
		}
	}
	return "application/octet-stream"
}

// sizeKB converts bytes to kilobytes rounded to two decimals.
func sizeKB(n int64) float64 {
	return math.Round(float64(n)/1024*100) / 100
}
