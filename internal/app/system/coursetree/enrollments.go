package coursetree

import (
	"context"

	"github.com/dalemusser/unigrading/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Enroll adds the actor to a subject. Enrolling twice is not an error; the
// returned bool reports whether a new enrollment was made.
func (s *Service) Enroll(ctx context.Context, subjectID primitive.ObjectID, actor Actor) (bool, error) {
	sub, err := s.loadSubject(ctx, subjectID)
	if err != nil {
		return false, err
	}
	if sub.OwnerID == actor.ID {
		return false, newError(ErrValidation, "you own this subject")
	}
	return s.enrollments.Enroll(ctx, subjectID, actor.ID)
}

// Unenroll removes the actor from a subject.
func (s *Service) Unenroll(ctx context.Context, subjectID primitive.ObjectID, actor Actor) error {
	if _, err := s.loadSubject(ctx, subjectID); err != nil {
		return err
	}
	ok, err := s.enrollments.Unenroll(ctx, subjectID, actor.ID)
	if err != nil {
		return err
	}
	if !ok {
		return newError(ErrNotFound, "you are not enrolled in this subject")
	}
	return nil
}

// Enrollments lists a subject's enrollments. Only the owner and admins see them.
func (s *Service) Enrollments(ctx context.Context, subjectID primitive.ObjectID, actor Actor) ([]models.Enrollment, error) {
	sub, err := s.loadSubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if sub.OwnerID != actor.ID && !actor.IsAdmin() {
		return nil, newError(ErrPermission, "only the subject's owner can see its enrollments")
	}
	return s.enrollments.ListBySubject(ctx, subjectID)
}

// Browse lists subjects the actor neither owns nor is enrolled in.
func (s *Service) Browse(ctx context.Context, actor Actor) ([]models.Subject, error) {
	ids, err := s.enrollments.SubjectIDsForUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	return s.subjects.ListExcluding(ctx, actor.ID, ids)
}
