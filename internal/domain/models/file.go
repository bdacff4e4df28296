package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// File is a leaf record in a category that points at a blob in storage.
type File struct {
	ID           primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	CategoryID   primitive.ObjectID  `bson:"category_id" json:"category_id"`
	SubjectID    primitive.ObjectID  `bson:"subject_id" json:"subject_id"`
	Name         string              `bson:"name" json:"name"`
	NameCI       string              `bson:"name_ci" json:"-"`
	BlobKey      string              `bson:"blob_key" json:"blob_key"` // key in the blob store
	Size         int64               `bson:"size" json:"size"`         // bytes
	ContentType  string              `bson:"content_type" json:"content_type"`
	UploadedByID *primitive.ObjectID `bson:"uploaded_by_id" json:"uploaded_by_id,omitempty"` // nil once the uploader is removed
	UploadedAt   time.Time           `bson:"uploaded_at" json:"uploaded_at"`
}

// UploadedBy reports whether the file was uploaded by the given user.
func (f *File) UploadedBy(userID primitive.ObjectID) bool {
	return f.UploadedByID != nil && *f.UploadedByID == userID
}
