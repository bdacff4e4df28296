// Package file provides storage for file records.
package file

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/unigrading/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrDuplicateBlobKey is returned when another record already points at the same blob.
var ErrDuplicateBlobKey = errors.New("a file is already stored under this key")

// Store provides access to the files collection.
type Store struct {
	c *mongo.Collection
}

// New creates a new file store.
func New(db *mongo.Database) *Store {
	return &Store{
		c: db.Collection("files"),
	}
}

// CreateInput contains the input for creating a file record.
type CreateInput struct {
	CategoryID   primitive.ObjectID
	SubjectID    primitive.ObjectID
	Name         string
	BlobKey      string
	Size         int64
	ContentType  string
	UploadedByID *primitive.ObjectID
}

// Create creates a new file record.
func (s *Store) Create(ctx context.Context, input CreateInput) (*models.File, error) {
	f := models.File{
		ID:           primitive.NewObjectID(),
		CategoryID:   input.CategoryID,
		SubjectID:    input.SubjectID,
		Name:         input.Name,
		NameCI:       text.Fold(input.Name),
		BlobKey:      input.BlobKey,
		Size:         input.Size,
		ContentType:  input.ContentType,
		UploadedByID: input.UploadedByID,
		UploadedAt:   time.Now(),
	}

	if _, err := s.c.InsertOne(ctx, f); err != nil {
		if wafflemongo.IsDup(err) {
			return nil, ErrDuplicateBlobKey
		}
		return nil, err
	}
	return &f, nil
}

// GetByID retrieves a file by ID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.File, error) {
	var f models.File
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

// SetSize records the number of bytes actually stored for a file.
func (s *Store) SetSize(ctx context.Context, id primitive.ObjectID, size int64) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"size": size}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// Delete deletes a file record.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ListByCategory returns the files directly in a category, ordered by name.
func (s *Store) ListByCategory(ctx context.Context, categoryID primitive.ObjectID) ([]models.File, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})

	cursor, err := s.c.Find(ctx, bson.M{"category_id": categoryID}, findOpts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	files := []models.File{}
	if err := cursor.All(ctx, &files); err != nil {
		return nil, err
	}
	return files, nil
}

// ListBySubject returns every file of a subject.
func (s *Store) ListBySubject(ctx context.Context, subjectID primitive.ObjectID) ([]models.File, error) {
	cursor, err := s.c.Find(ctx, bson.M{"subject_id": subjectID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var files []models.File
	if err := cursor.All(ctx, &files); err != nil {
		return nil, err
	}
	return files, nil
}

// Each streams every file record to fn, stopping at the first error.
func (s *Store) Each(ctx context.Context, fn func(models.File) error) error {
	cursor, err := s.c.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{
		"_id": 1, "subject_id": 1, "category_id": 1, "name": 1, "blob_key": 1,
	}))
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var f models.File
		if err := cursor.Decode(&f); err != nil {
			return err
		}
		if err := fn(f); err != nil {
			return err
		}
	}
	return cursor.Err()
}

// CountByCategory returns the number of files directly in a category.
func (s *Store) CountByCategory(ctx context.Context, categoryID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"category_id": categoryID})
}

// DeleteBySubject deletes every file record of a subject.
func (s *Store) DeleteBySubject(ctx context.Context, subjectID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"subject_id": subjectID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ClearUploader nulls the uploader of every file uploaded by userID.
// Records stay in place when their uploader account is removed.
func (s *Store) ClearUploader(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{"uploaded_by_id": userID},
		bson.M{"$set": bson.M{"uploaded_by_id": nil}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// FileTypeCategory returns a coarse type label for a content type.
func FileTypeCategory(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return "image"
	case strings.HasPrefix(contentType, "video/"):
		return "video"
	case strings.HasPrefix(contentType, "audio/"):
		return "audio"
	case contentType == "application/pdf":
		return "pdf"
	case strings.Contains(contentType, "spreadsheet") || strings.Contains(contentType, "excel"):
		return "spreadsheet"
	case strings.Contains(contentType, "presentation") || strings.Contains(contentType, "powerpoint"):
		return "presentation"
	case strings.Contains(contentType, "document") || strings.Contains(contentType, "word"):
		return "document"
	case strings.Contains(contentType, "zip") || strings.Contains(contentType, "compressed"):
		return "archive"
	default:
		return "file"
	}
}
