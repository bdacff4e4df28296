package coursetree

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/unigrading/internal/app/store/category"
	"github.com/dalemusser/unigrading/internal/app/store/subject"
	"github.com/dalemusser/unigrading/internal/app/system/htmlsanitize"
	"github.com/dalemusser/unigrading/internal/app/system/txn"
	"github.com/dalemusser/unigrading/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func subjectNameTaken(name string) *Error {
	return newError(ErrConflict, "you already have a subject named %q", name)
}

// CreateSubjectInput is the payload for CreateSubject.
type CreateSubjectInput struct {
	OwnerID         primitive.ObjectID
	Name            string
	Description     string
	ExtraCategories []string
}

// CreateSubject creates a subject with the default top-level folders plus one
// per non-blank extra name, all in a single transaction. Extras that repeat a
// folder already created in this call are skipped.
func (s *Service) CreateSubject(ctx context.Context, in CreateSubjectInput) (*models.Subject, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		s.observe("create_subject", ErrValidation)
		return nil, newError(ErrValidation, "subject name cannot be empty")
	}
	if err := checkSegment("subject", name); err != nil {
		s.observe("create_subject", err)
		return nil, err
	}

	names := make([]string, 0, len(models.DefaultCategoryNames)+len(in.ExtraCategories))
	seen := make(map[string]bool)
	for _, n := range append(append([]string{}, models.DefaultCategoryNames...), in.ExtraCategories...) {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		if err := checkSegment("folder", n); err != nil {
			s.observe("create_subject", err)
			return nil, err
		}
		seen[n] = true
		names = append(names, n)
	}

	var created *models.Subject
	err := txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		sub, err := s.subjects.Create(ctx, subject.CreateInput{
			Name:        name,
			Description: htmlsanitize.Description(in.Description),
			OwnerID:     in.OwnerID,
		})
		if errors.Is(err, subject.ErrDuplicateName) {
			return subjectNameTaken(name)
		}
		if err != nil {
			return err
		}
		for _, n := range names {
			if _, err := s.categories.Create(ctx, category.CreateInput{SubjectID: sub.ID, Name: n}); err != nil {
				return err
			}
		}
		created = sub
		return nil
	})
	s.observe("create_subject", err)
	if err != nil {
		return nil, err
	}

	s.log.Info("subject created",
		zap.String("subject_id", created.ID.Hex()),
		zap.String("owner_id", in.OwnerID.Hex()),
		zap.Int("categories", len(names)))
	return created, nil
}

// GetSubject returns the subject with id.
func (s *Service) GetSubject(ctx context.Context, id primitive.ObjectID) (*models.Subject, error) {
	return s.loadSubject(ctx, id)
}

// RenameSubject sets a new, non-empty name.
func (s *Service) RenameSubject(ctx context.Context, id primitive.ObjectID, name string) (*models.Subject, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		s.observe("rename_subject", ErrValidation)
		return nil, newError(ErrValidation, "subject name cannot be empty")
	}
	if err := checkSegment("subject", name); err != nil {
		s.observe("rename_subject", err)
		return nil, err
	}
	sub, err := s.updateSubject(ctx, id, subject.UpdateInput{Name: &name})
	s.observe("rename_subject", err)
	return sub, err
}

// UpdateDescription replaces the description. The text is sanitized and must
// not be empty after trimming.
func (s *Service) UpdateDescription(ctx context.Context, id primitive.ObjectID, text string) (*models.Subject, error) {
	desc := htmlsanitize.Description(text)
	if htmlsanitize.IsBlank(desc) {
		s.observe("update_description", ErrValidation)
		return nil, newError(ErrValidation, "description cannot be empty")
	}
	sub, err := s.updateSubject(ctx, id, subject.UpdateInput{Description: &desc})
	s.observe("update_description", err)
	return sub, err
}

func (s *Service) updateSubject(ctx context.Context, id primitive.ObjectID, upd subject.UpdateInput) (*models.Subject, error) {
	var out *models.Subject
	err := txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		if _, err := s.loadSubject(ctx, id); err != nil {
			return err
		}
		if err := s.subjects.Update(ctx, id, upd); err != nil {
			if errors.Is(err, subject.ErrDuplicateName) && upd.Name != nil {
				return subjectNameTaken(*upd.Name)
			}
			return err
		}
		sub, err := s.subjects.GetByID(ctx, id)
		if err != nil {
			return err
		}
		out = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteSubject removes a subject and everything under it. Only the owner may
// do this. Rows go in one transaction; blobs are removed afterwards, best effort.
func (s *Service) DeleteSubject(ctx context.Context, id primitive.ObjectID, actor Actor) error {
	err := s.deleteSubject(ctx, id, actor)
	s.observe("delete_subject", err)
	return err
}

func (s *Service) deleteSubject(ctx context.Context, id primitive.ObjectID, actor Actor) error {
	sub, err := s.loadSubject(ctx, id)
	if err != nil {
		return err
	}
	if sub.OwnerID != actor.ID {
		return newError(ErrPermission, "only the subject's owner can delete it")
	}

	// Files are listed inside the transaction so an upload committed just
	// before the cascade still has its blob removed below.
	var files []models.File
	err = txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		var err error
		if files, err = s.files.ListBySubject(ctx, id); err != nil {
			return err
		}
		if _, err := s.files.DeleteBySubject(ctx, id); err != nil {
			return err
		}
		if _, err := s.categories.DeleteBySubject(ctx, id); err != nil {
			return err
		}
		if _, err := s.enrollments.DeleteBySubject(ctx, id); err != nil {
			return err
		}
		_, err = s.subjects.Delete(ctx, id)
		return err
	})
	if err != nil {
		return err
	}

	for _, f := range files {
		s.removeBlob(ctx, f.BlobKey, f.ID)
	}

	s.log.Info("subject deleted",
		zap.String("subject_id", id.Hex()),
		zap.Int("files", len(files)))
	return nil
}

// SubjectsFor lists the subjects shown on the actor's home page: enrolled
// subjects for students, owned subjects for everyone else.
func (s *Service) SubjectsFor(ctx context.Context, actor Actor) ([]models.Subject, error) {
	if actor.Role == models.RoleStudent {
		ids, err := s.enrollments.SubjectIDsForUser(ctx, actor.ID)
		if err != nil {
			return nil, err
		}
		return s.subjects.ListByIDs(ctx, ids)
	}
	return s.subjects.ListByOwner(ctx, actor.ID)
}
