// Package enrollment provides storage for subject enrollments.
package enrollment

import (
	"context"
	"time"

	"github.com/dalemusser/unigrading/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store provides access to the enrollments collection.
type Store struct {
	c *mongo.Collection
}

// New creates a new enrollment store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("enrollments")}
}

// Enroll adds userID to subjectID. It reports created=false when the user was
// already enrolled.
func (s *Store) Enroll(ctx context.Context, subjectID, userID primitive.ObjectID) (bool, error) {
	e := models.Enrollment{
		ID:        primitive.NewObjectID(),
		SubjectID: subjectID,
		UserID:    userID,
		CreatedAt: time.Now(),
	}
	if _, err := s.c.InsertOne(ctx, e); err != nil {
		if wafflemongo.IsDup(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Unenroll removes userID from subjectID. It reports whether an enrollment existed.
func (s *Store) Unenroll(ctx context.Context, subjectID, userID primitive.ObjectID) (bool, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"subject_id": subjectID, "user_id": userID})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

// IsEnrolled reports whether userID is enrolled in subjectID.
func (s *Store) IsEnrolled(ctx context.Context, subjectID, userID primitive.ObjectID) (bool, error) {
	count, err := s.c.CountDocuments(ctx, bson.M{"subject_id": subjectID, "user_id": userID})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListBySubject returns the enrollments of a subject, oldest first.
func (s *Store) ListBySubject(ctx context.Context, subjectID primitive.ObjectID) ([]models.Enrollment, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := s.c.Find(ctx, bson.M{"subject_id": subjectID}, findOpts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []models.Enrollment{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SubjectIDsForUser returns the IDs of the subjects a user is enrolled in.
func (s *Store) SubjectIDsForUser(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	cursor, err := s.c.Find(ctx, bson.M{"user_id": userID},
		options.Find().SetProjection(bson.M{"subject_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []models.Enrollment
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.SubjectID)
	}
	return ids, nil
}

// DeleteBySubject removes every enrollment of a subject.
func (s *Store) DeleteBySubject(ctx context.Context, subjectID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"subject_id": subjectID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// DeleteByUser removes every enrollment held by a user.
func (s *Store) DeleteByUser(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
