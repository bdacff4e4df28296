package coursetree

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/unigrading/internal/app/store/category"
	"github.com/dalemusser/unigrading/internal/app/system/txn"
	"github.com/dalemusser/unigrading/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func nameTaken(name string) *Error {
	return newError(ErrConflict, "a folder named %q already exists here", name)
}

// checkSegment rejects names that would split a storage key.
func checkSegment(what, name string) *Error {
	if strings.Contains(name, "/") {
		return newError(ErrValidation, "%s name cannot contain '/'", what)
	}
	return nil
}

// CreateCategory adds a folder under parentID, or at the top level of the
// subject when parentID is nil. Sibling names are compared case-sensitively.
func (s *Service) CreateCategory(ctx context.Context, subjectID primitive.ObjectID, name string, parentID *primitive.ObjectID) (*models.Category, error) {
	cat, err := s.createCategory(ctx, subjectID, name, parentID)
	s.observe("create_category", err)
	return cat, err
}

func (s *Service) createCategory(ctx context.Context, subjectID primitive.ObjectID, name string, parentID *primitive.ObjectID) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, newError(ErrValidation, "folder name cannot be empty")
	}
	if err := checkSegment("folder", name); err != nil {
		return nil, err
	}
	if _, err := s.loadSubject(ctx, subjectID); err != nil {
		return nil, err
	}
	if parentID != nil {
		parent, err := s.loadCategory(ctx, *parentID)
		if err != nil {
			return nil, err
		}
		if parent.SubjectID != subjectID {
			return nil, newError(ErrValidation, "parent folder belongs to another subject")
		}
	}

	exists, err := s.categories.NameExistsInParent(ctx, subjectID, parentID, name, nil)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, nameTaken(name)
	}

	// The unique index settles races the check above cannot see.
	cat, err := s.categories.Create(ctx, category.CreateInput{
		SubjectID: subjectID,
		ParentID:  parentID,
		Name:      name,
	})
	if errors.Is(err, category.ErrDuplicateName) {
		return nil, nameTaken(name)
	}
	return cat, err
}

// RenameCategory changes a folder's display name; its position is unchanged.
func (s *Service) RenameCategory(ctx context.Context, id primitive.ObjectID, name string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		s.observe("rename_category", ErrValidation)
		return nil, newError(ErrValidation, "folder name cannot be empty")
	}
	if err := checkSegment("folder", name); err != nil {
		s.observe("rename_category", err)
		return nil, err
	}

	var out *models.Category
	err := txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		cat, err := s.loadCategory(ctx, id)
		if err != nil {
			return err
		}
		if cat.Name == name {
			out = cat
			return nil
		}

		exists, err := s.categories.NameExistsInParent(ctx, cat.SubjectID, cat.ParentID, name, &cat.ID)
		if err != nil {
			return err
		}
		if exists {
			return nameTaken(name)
		}
		if err := s.categories.Rename(ctx, id, name); err != nil {
			if errors.Is(err, category.ErrDuplicateName) {
				return nameTaken(name)
			}
			return err
		}
		out, err = s.categories.GetByID(ctx, id)
		return err
	})
	s.observe("rename_category", err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteCategory removes an empty folder. A folder holding any file or
// subfolder is refused with ErrState; nothing cascades.
func (s *Service) DeleteCategory(ctx context.Context, id primitive.ObjectID) error {
	err := txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		if _, err := s.loadCategory(ctx, id); err != nil {
			return err
		}

		nFiles, err := s.files.CountByCategory(ctx, id)
		if err != nil {
			return err
		}
		nSub, err := s.categories.CountChildren(ctx, id)
		if err != nil {
			return err
		}
		if nFiles > 0 || nSub > 0 {
			return newError(ErrState, "folder is not empty")
		}

		_, err = s.categories.Delete(ctx, id)
		return err
	})
	s.observe("delete_category", err)
	return err
}

// ListTopLevel returns the subject's top-level folders by name.
func (s *Service) ListTopLevel(ctx context.Context, subjectID primitive.ObjectID) ([]models.Category, error) {
	if _, err := s.loadSubject(ctx, subjectID); err != nil {
		return nil, err
	}
	return s.categories.ListByParent(ctx, subjectID, nil)
}

// Path returns the folders from the top level down to id, for breadcrumbs.
func (s *Service) Path(ctx context.Context, id primitive.ObjectID) ([]models.Category, error) {
	if _, err := s.loadCategory(ctx, id); err != nil {
		return nil, err
	}
	return s.categories.GetPath(ctx, id)
}
