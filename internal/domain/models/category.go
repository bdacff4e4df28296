package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultCategoryNames are provisioned at the top level of every new subject.
var DefaultCategoryNames = []string{"Courses", "Assignments", "Tests", "Other"}

// Category is a folder node in a subject's file tree.
type Category struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	SubjectID primitive.ObjectID  `bson:"subject_id" json:"subject_id"`
	ParentID  *primitive.ObjectID `bson:"parent_id" json:"parent_id,omitempty"` // nil = top level
	Name      string              `bson:"name" json:"name"`
	NameCI    string              `bson:"name_ci" json:"-"`
	CreatedAt time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time           `bson:"updated_at" json:"updated_at"`
}

// IsTopLevel returns true if the category has no parent.
func (c *Category) IsTopLevel() bool {
	return c.ParentID == nil
}
