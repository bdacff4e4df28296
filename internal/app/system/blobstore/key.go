package blobstore

import (
	"strings"

	"github.com/dalemusser/unigrading/internal/domain/models"
)

// KeyInput holds everything the storage key is derived from.
type KeyInput struct {
	UploaderRole string
	UploaderName string // full name, or login id when no name is set
	SubjectName  string
	CategoryName string
	Filename     string
}

// Key builds the storage key for an upload. The layout must stay stable because
// existing blobs are addressed by it:
//
//	student upload:          {student}/{subject}/{category}/{student}/{filename}
//	"assignments" / "tests": {subject}/{category} Files/{filename}
//	anything else:           {subject}/{category}/{filename}
//
// The student name appearing twice matches keys already in storage.
func Key(in KeyInput) string {
	if strings.EqualFold(strings.TrimSpace(in.UploaderRole), models.RoleStudent) {
		return joinKey(in.UploaderName, in.SubjectName, in.CategoryName, in.UploaderName, in.Filename)
	}

	switch strings.ToLower(in.CategoryName) {
	case "assignments", "tests":
		return joinKey(in.SubjectName, in.CategoryName+" Files", in.Filename)
	}
	return joinKey(in.SubjectName, in.CategoryName, in.Filename)
}

// joinKey joins segments with "/" without cleaning them, so names containing
// dots or repeated spaces are kept exactly as typed.
func joinKey(parts ...string) string {
	return strings.Join(parts, "/")
}

