// Package category provides storage for subject categories (folders).
package category

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

// ErrDuplicateName is returned when a sibling with the same name already exists
// under the same parent of the same subject.
var ErrDuplicateName = errors.New("a category with this name already exists")

// Store provides access to the categories collection.
type Store struct {
	c *mongo.Collection
}

// New creates a new category store.
func New(db *mongo.Database) *Store {
	return &Store{
		c: db.Collection("categories"),
	}
}

// CreateInput contains the input for creating a category.
type CreateInput struct {
	SubjectID primitive.ObjectID
	ParentID  *primitive.ObjectID
	Name      string
}

// Create inserts a new category. The unique (subject_id, parent_id, name) index
// decides between concurrent creators; the loser gets ErrDuplicateName.
func (s *Store) Create(ctx context.Context, input CreateInput) (*models.Category, error) {
	now := time.Now()
	cat := models.Category{
		ID:        primitive.NewObjectID(),
		SubjectID: input.SubjectID,
		ParentID:  input.ParentID,
		Name:      input.Name,
		NameCI:    text.Fold(input.Name),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := s.c.InsertOne(ctx, cat); err != nil {
		if wafflemongo.IsDup(err) {
			return nil, ErrDuplicateName
		}
		return nil, err
	}

	return &cat, nil
}

// GetByID retrieves a category by ID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Category, error) {
	var cat models.Category
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&cat); err != nil {
		return nil, err
	}
	return &cat, nil
}

// Rename changes the display name of a category. Its position in the tree is unchanged.
func (s *Store) Rename(ctx context.Context, id primitive.ObjectID, name string) error {
	set := bson.M{
		"name":       name,
		"name_ci":    text.Fold(name),
		"updated_at": time.Now(),
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

// Delete deletes a single category.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// DeleteBySubject deletes every category of a subject.
func (s *Store) DeleteBySubject(ctx context.Context, subjectID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"subject_id": subjectID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ListByParent returns the categories directly under parentID within a subject,
// ordered by name. Pass nil for parentID to list top-level categories.
func (s *Store) ListByParent(ctx context.Context, subjectID primitive.ObjectID, parentID *primitive.ObjectID) ([]models.Category, error) {
	filter := bson.M{"subject_id": subjectID, "parent_id": parentID}
	findOpts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})

	cursor, err := s.c.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	cats := []models.Category{}
	if err := cursor.All(ctx, &cats); err != nil {
		return nil, err
	}
	return cats, nil
}

// CountChildren returns the number of subcategories directly under a category.
func (s *Store) CountChildren(ctx context.Context, id primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"parent_id": id})
}

// NameExistsInParent checks if a sibling with exactly this name exists.
// Pass excludeID to ignore a specific category (useful for renames).
func (s *Store) NameExistsInParent(ctx context.Context, subjectID primitive.ObjectID, parentID *primitive.ObjectID, name string, excludeID *primitive.ObjectID) (bool, error) {
	filter := bson.M{
		"subject_id": subjectID,
		"parent_id":  parentID,
		"name":       name,
	}
	if excludeID != nil {
		filter["_id"] = bson.M{"$ne": *excludeID}
	}

	count, err := s.c.CountDocuments(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetPath returns the category and its ancestors, ordered from the top-level
// category down to the category itself.
func (s *Store) GetPath(ctx context.Context, id primitive.ObjectID) ([]models.Category, error) {
	cat, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	path := []models.Category{*cat}
	current := cat.ParentID
	for current != nil {
		parent, err := s.GetByID(ctx, *current)
		if err != nil {
			return nil, err
		}
		path = append([]models.Category{*parent}, path...)
		current = parent.ParentID
	}
	return path, nil
}
