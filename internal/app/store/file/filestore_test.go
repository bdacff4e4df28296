package file_test

import (
	"errors"
	"github.com/dalemusser/unigrading/internal/app/store/file"
	"testing"

	"github.com/dalemusser/unigrading/internal/domain/models"
	"github.com/dalemusser/unigrading/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func newInput(categoryID, subjectID primitive.ObjectID, name, key string) file.CreateInput {
	uploader := primitive.NewObjectID()
	return file.CreateInput{
		CategoryID:   categoryID,
		SubjectID:    subjectID,
		Name:         name,
		BlobKey:      key,
		Size:         2048,
		ContentType:  "application/pdf",
		UploadedByID: &uploader,
	}
}

func TestStore_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := file.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	catID, subID := primitive.NewObjectID(), primitive.NewObjectID()
	f, err := store.Create(ctx, newInput(catID, subID, "syllabus.pdf", "Maths/Courses/syllabus.pdf"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if f.ID.IsZero() {
		t.Error("ID should not be zero")
	}
	if f.UploadedAt.IsZero() {
		t.Error("UploadedAt should be set")
	}

	got, err := store.GetByID(ctx, f.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.BlobKey != "Maths/Courses/syllabus.pdf" || got.Size != 2048 {
		t.Errorf("GetByID() = %+v", got)
	}
}

func TestStore_Create_DuplicateBlobKey(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := file.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	catID, subID := primitive.NewObjectID(), primitive.NewObjectID()
	if _, err := store.Create(ctx, newInput(catID, subID, "a.txt", "k/a.txt")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	_, err := store.Create(ctx, newInput(catID, subID, "a.txt", "k/a.txt"))
	if !errors.Is(err, file.ErrDuplicateBlobKey) {
		t.Errorf("second Create() error = %v, want ErrDuplicateBlobKey", err)
	}

}

func TestStore_SetSize(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := file.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	in := newInput(primitive.NewObjectID(), primitive.NewObjectID(), "a.txt", "k/a.txt")
	in.Size = -1
	f, err := store.Create(ctx, in)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := store.SetSize(ctx, f.ID, 77); err != nil {
		t.Fatalf("SetSize() error = %v", err)
	}
	got, _ := store.GetByID(ctx, f.ID)
	if got.Size != 77 {
		t.Errorf("Size = %d, want 77", got.Size)
	}
	if err := store.SetSize(ctx, primitive.NewObjectID(), 1); err != mongo.ErrNoDocuments {
		t.Errorf("SetSize(unknown) error = %v, want ErrNoDocuments", err)
	}
}

func TestStore_ListByCategory_SortedByName(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := file.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	catID, subID := primitive.NewObjectID(), primitive.NewObjectID()
	for _, n := range []string{"b.txt", "a.txt", "c.txt"} {
		if _, err := store.Create(ctx, newInput(catID, subID, n, "k/"+n)); err != nil {
			t.Fatalf("Create(%s) error = %v", n, err)
		}
	}
	if _, err := store.Create(ctx, newInput(primitive.NewObjectID(), subID, "other.txt", "k/other.txt")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	files, err := store.ListByCategory(ctx, catID)
	if err != nil {
		t.Fatalf("ListByCategory() error = %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("ListByCategory() returned %d files, want 3", len(files))
	}
	for i, want := range []string{"a.txt", "b.txt", "c.txt"} {
		if files[i].Name != want {
			t.Errorf("files[%d] = %q, want %q", i, files[i].Name, want)
		}
	}

	n, err := store.CountByCategory(ctx, catID)
	if err != nil || n != 3 {
		t.Errorf("CountByCategory() = %d, %v", n, err)
	}
	bySubject, err := store.ListBySubject(ctx, subID)
	if err != nil || len(bySubject) != 4 {
		t.Errorf("ListBySubject() = %d files, %v", len(bySubject), err)
	}
}

func TestStore_DeleteAndDeleteBySubject(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := file.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	catID, subID := primitive.NewObjectID(), primitive.NewObjectID()
	a, _ := store.Create(ctx, newInput(catID, subID, "a.txt", "k/a.txt"))
	_, _ = store.Create(ctx, newInput(catID, subID, "b.txt", "k/b.txt"))

	n, err := store.Delete(ctx, a.ID)
	if err != nil || n != 1 {
		t.Fatalf("Delete() = %d, %v", n, err)
	}
	if _, err := store.GetByID(ctx, a.ID); err != mongo.ErrNoDocuments {
		t.Errorf("GetByID() after delete error = %v, want ErrNoDocuments", err)
	}

	n, err = store.DeleteBySubject(ctx, subID)
	if err != nil || n != 1 {
		t.Errorf("DeleteBySubject() = %d, %v", n, err)
	}
}

func TestStore_ClearUploader(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := file.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	in := newInput(primitive.NewObjectID(), primitive.NewObjectID(), "a.txt", "k/a.txt")
	f, _ := store.Create(ctx, in)

	n, err := store.ClearUploader(ctx, *in.UploadedByID)
	if err != nil || n != 1 {
		t.Fatalf("ClearUploader() = %d, %v", n, err)
	}
	got, err := store.GetByID(ctx, f.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.UploadedByID != nil {
		t.Errorf("UploadedByID = %v, want nil", got.UploadedByID)
	}
}

func TestFileTypeCategory(t *testing.T) {
	tests := []struct {
		contentType string
		want        string
	}{
		{"image/png", "image"},
		{"video/mp4", "video"},
		{"audio/mpeg", "audio"},
		{"application/pdf", "pdf"},
		{"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "spreadsheet"},
		{"application/vnd.ms-powerpoint", "presentation"},
		{"application/msword", "document"},
		{"application/zip", "archive"},
		{"application/octet-stream", "file"},
	}
	for _, tt := range tests {
		if got := file.FileTypeCategory(tt.contentType); got != tt.want {
			t.Errorf("FileTypeCategory(%q) = %q, want %q", tt.contentType, got, tt.want)
		}
	}
}

func TestStore_Each(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := file.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	subjectID, categoryID := primitive.NewObjectID(), primitive.NewObjectID()
	for _, name := range []string{"a.pdf", "b.pdf", "c.pdf"} {
		if _, err := store.Create(ctx, file.CreateInput{CategoryID: categoryID, SubjectID: subjectID, Name: name, BlobKey: "k/" + name}); err != nil {
			t.Fatalf("Create(%s) error = %v", name, err)
		}
	}

	keys := map[string]bool{}
	err := store.Each(ctx, func(f models.File) error {
		keys[f.BlobKey] = true
		return nil
	})
	if err != nil || len(keys) != 3 {
		t.Errorf("Each() keys = %v, err = %v", keys, err)
	}

	stop := errors.New("stop")
	calls := 0
	err = store.Each(ctx, func(models.File) error {
		calls++
		return stop
	})
	if err != stop || calls != 1 {
		t.Errorf("Each() should stop at the first error, calls = %d, err = %v", calls, err)
	}
}
