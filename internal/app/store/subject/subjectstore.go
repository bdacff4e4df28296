// Package subject provides storage for subjects (courses).
package subject

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/unigrading/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrDuplicateName is returned when the owner already has a subject with the
// same name, compared case-insensitively.
var ErrDuplicateName = errors.New("a subject with this name already exists")

// Store provides access to the subjects collection.
type Store struct {
	c *mongo.Collection
}

// New creates a new subject store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("subjects")}
}

// CreateInput contains the input for creating a subject.
type CreateInput struct {
	Name        string
	Description string
	OwnerID     primitive.ObjectID
}

// Create inserts a new subject.
func (s *Store) Create(ctx context.Context, input CreateInput) (*models.Subject, error) {
	now := time.Now()
	sub := models.Subject{
		ID:          primitive.NewObjectID(),
		Name:        input.Name,
		NameCI:      text.Fold(input.Name),
		Description: input.Description,
		OwnerID:     input.OwnerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := s.c.InsertOne(ctx, sub); err != nil {
		if wafflemongo.IsDup(err) {
			return nil, ErrDuplicateName
		}
		return nil, err
	}
	return &sub, nil
}

// GetByID retrieves a subject by ID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Subject, error) {
	var sub models.Subject
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// UpdateInput contains the fields that can be changed on a subject.
type UpdateInput struct {
	Name        *string
	Description *string
}

// Update updates a subject. Returns mongo.ErrNoDocuments if it does not exist
// and ErrDuplicateName if the new name is already used by the same owner.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, input UpdateInput) error {
	set := bson.M{"updated_at": time.Now()}
	if input.Name != nil {
		set["name"] = *input.Name
		set["name_ci"] = text.Fold(*input.Name)
	}
	if input.Description != nil {
		set["description"] = *input.Description
	}

	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		if wafflemongo.IsDup(err) {
			return ErrDuplicateName
		}
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// Delete deletes a subject.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ListByOwner returns the subjects owned by a professor, ordered by name.
func (s *Store) ListByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.Subject, error) {
	return s.find(ctx, bson.M{"owner_id": ownerID})
}

// CountByOwner returns how many subjects ownerID owns.
func (s *Store) CountByOwner(ctx context.Context, ownerID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"owner_id": ownerID})
}

// ListByIDs returns the given subjects, ordered by name.
func (s *Store) ListByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Subject, error) {
	if len(ids) == 0 {
		return []models.Subject{}, nil
	}
	return s.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

// ListExcluding returns subjects not owned by ownerID and not in excludeIDs.
// Used by the browse page to offer subjects a user can still enroll in.
func (s *Store) ListExcluding(ctx context.Context, ownerID primitive.ObjectID, excludeIDs []primitive.ObjectID) ([]models.Subject, error) {
	filter := bson.M{"owner_id": bson.M{"$ne": ownerID}}
	if len(excludeIDs) > 0 {
		filter["_id"] = bson.M{"$nin": excludeIDs}
	}
	return s.find(ctx, filter)
}

func (s *Store) find(ctx context.Context, filter bson.M) ([]models.Subject, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}})
	cursor, err := s.c.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	subjects := []models.Subject{}
	if err := cursor.All(ctx, &subjects); err != nil {
		return nil, err
	}
	return subjects, nil
}
