// Package coursetree owns the Subject → Category → {Category, File} tree.
//
// Service is the only writer of subjects, categories and files. It enforces
// the tree invariants (sibling names are unique, non-empty folders are never
// deleted, a subject's default folders are created with it) and keeps the
// file records consistent with the blob store:
//
//   - uploads store the blob first and only then insert the record, so a
//     failed upload never leaves a record without bytes;
//   - deletes remove the blob on a best-effort basis and always remove the
//     record, so a storage outage cannot wedge the tree;
//   - listings check each blob and flag missing ones instead of failing.
//
// Callers pass the acting user explicitly as an Actor.
package coursetree

import (
	"context"
	"errors"

	"github.com/dalemusser/unigrading/internal/app/store/category"
	"github.com/dalemusser/unigrading/internal/app/store/enrollment"
	"github.com/dalemusser/unigrading/internal/app/store/file"
	"github.com/dalemusser/unigrading/internal/app/store/subject"
	"github.com/dalemusser/unigrading/internal/app/system/blobstore"
	"github.com/dalemusser/unigrading/internal/app/system/metrics"
	"github.com/dalemusser/unigrading/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Actor is the authenticated user performing an operation.
type Actor struct {
	ID   primitive.ObjectID
	Role string
	Name string // display name: full name, else login id
}

// IsAdmin reports whether the actor has elevated privileges.
func (a Actor) IsAdmin() bool { return a.Role == models.RoleAdmin }

// Service implements the course tree operations.
type Service struct {
	db          *mongo.Database
	subjects    *subject.Store
	categories  *category.Store
	files       *file.Store
	enrollments *enrollment.Store
	blobs       blobstore.Store
	log         *zap.Logger
}

// New builds a Service over db and blobs.
func New(db *mongo.Database, blobs blobstore.Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		db:          db,
		subjects:    subject.New(db),
		categories:  category.New(db),
		files:       file.New(db),
		enrollments: enrollment.New(db),
		blobs:       blobs,
		log:         log,
	}
}

func (s *Service) observe(op string, err error) {
	metrics.TreeOperations.WithLabelValues(op, KindName(err)).Inc()
}

func (s *Service) loadSubject(ctx context.Context, id primitive.ObjectID) (*models.Subject, error) {
	sub, err := s.subjects.GetByID(ctx, id)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, newError(ErrNotFound, "subject not found")
	}
	return sub, err
}

func (s *Service) loadCategory(ctx context.Context, id primitive.ObjectID) (*models.Category, error) {
	cat, err := s.categories.GetByID(ctx, id)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, newError(ErrNotFound, "folder not found")
	}
	return cat, err
}

func (s *Service) loadFile(ctx context.Context, id primitive.ObjectID) (*models.File, error) {
	f, err := s.files.GetByID(ctx, id)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, newError(ErrNotFound, "file not found")
	}
	return f, err
}

// removeBlob deletes key if the store still has it. Failures are logged and
// counted but never returned.
func (s *Service) removeBlob(ctx context.Context, key string, fileID primitive.ObjectID) {
	if !s.blobs.Exists(ctx, key) {
		return
	}
	if err := s.blobs.Delete(ctx, key); err != nil {
		metrics.SuppressedDeleteFailures.Inc()
		s.log.Warn("blob delete failed; removing record anyway",
			zap.String("key", key),
			zap.String("file_id", fileID.Hex()),
			zap.Error(err))
	}
}
