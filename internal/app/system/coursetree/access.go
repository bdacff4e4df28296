package coursetree

import (
	"context"

	"github.com/dalemusser/unigrading/internal/app/system/txn"
	"github.com/dalemusser/unigrading/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ManageSubject loads a subject the actor may change: its owner or an admin.
func (s *Service) ManageSubject(ctx context.Context, id primitive.ObjectID, actor Actor) (*models.Subject, error) {
	sub, err := s.loadSubject(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.OwnerID != actor.ID && !actor.IsAdmin() {
		return nil, newError(ErrPermission, "only the subject's owner can change it")
	}
	return sub, nil
}

// ViewSubject loads a subject the actor may read: owner, admin or enrolled user.
func (s *Service) ViewSubject(ctx context.Context, id primitive.ObjectID, actor Actor) (*models.Subject, error) {
	sub, err := s.loadSubject(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkMember(ctx, sub, actor); err != nil {
		return nil, err
	}
	return sub, nil
}

// ManageCategory loads a category whose subject the actor may change.
func (s *Service) ManageCategory(ctx context.Context, id primitive.ObjectID, actor Actor) (*models.Category, error) {
	cat, err := s.loadCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.ManageSubject(ctx, cat.SubjectID, actor); err != nil {
		return nil, err
	}
	return cat, nil
}

// ViewCategory loads a category whose subject the actor may read.
func (s *Service) ViewCategory(ctx context.Context, id primitive.ObjectID, actor Actor) (*models.Category, error) {
	cat, err := s.loadCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.ViewSubject(ctx, cat.SubjectID, actor); err != nil {
		return nil, err
	}
	return cat, nil
}

// UploadCategory loads a category the actor may upload into: the subject's
// owner, an admin, or an enrolled student. Other enrolled users only read.
func (s *Service) UploadCategory(ctx context.Context, id primitive.ObjectID, actor Actor) (*models.Category, error) {
	cat, err := s.ViewCategory(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleStudent || actor.IsAdmin() {
		return cat, nil
	}
	if _, err := s.ManageSubject(ctx, cat.SubjectID, actor); err != nil {
		return nil, newError(ErrPermission, "you do not have permission to upload here")
	}
	return cat, nil
}

func (s *Service) checkMember(ctx context.Context, sub *models.Subject, actor Actor) error {
	if actor.IsAdmin() || sub.OwnerID == actor.ID {
		return nil
	}
	enrolled, err := s.enrollments.IsEnrolled(ctx, sub.ID, actor.ID)
	if err != nil {
		return err
	}
	if !enrolled {
		return newError(ErrPermission, "you are not enrolled in this subject")
	}
	return nil
}

// ForgetUser detaches a user from the tree before their account goes away.
// Their uploads stay with a null uploader and their enrollments are dropped.
// Owners of subjects are refused; the subjects have to be deleted first.
// then runs in the same transaction, typically deleting the account itself.
func (s *Service) ForgetUser(ctx context.Context, userID primitive.ObjectID, then txn.Func) error {
	err := s.forgetUser(ctx, userID, then)
	s.observe("forget_user", err)
	return err
}

func (s *Service) forgetUser(ctx context.Context, userID primitive.ObjectID, then txn.Func) error {
	owned, err := s.subjects.CountByOwner(ctx, userID)
	if err != nil {
		return err
	}
	if owned > 0 {
		return newError(ErrState, "user still owns %d subject(s)", owned)
	}

	var cleared, dropped int64
	err = txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		var err error
		if cleared, err = s.files.ClearUploader(ctx, userID); err != nil {
			return err
		}
		if dropped, err = s.enrollments.DeleteByUser(ctx, userID); err != nil {
			return err
		}
		if then != nil {
			return then(ctx)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("user detached from course tree",
		zap.String("user_id", userID.Hex()),
		zap.Int64("uploads_orphaned", cleared),
		zap.Int64("enrollments_removed", dropped))
	return nil
}
