package coursetree_test

import (
	"context"
	"errors"
	"github.com/dalemusser/unigrading/internal/app/system/coursetree"
	"testing"

	"github.com/dalemusser/unigrading/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestAccess_SubjectAndCategory(t *testing.T) {
	f := setup(t)
	sub := f.subject(t, "Algorithms")
	courses := f.topLevel(t, sub.ID, "Courses")

	student := coursetree.Actor{ID: primitive.NewObjectID(), Role: models.RoleStudent, Name: "Sam"}
	admin := coursetree.Actor{ID: primitive.NewObjectID(), Role: models.RoleAdmin, Name: "Root"}
	stranger := coursetree.Actor{ID: primitive.NewObjectID(), Role: models.RoleProfessor, Name: "Other"}

	if _, err := f.svc.ManageSubject(f.ctx, sub.ID, f.prof); err != nil {
		t.Errorf("owner ManageSubject() error = %v", err)
	}
	if _, err := f.svc.ManageSubject(f.ctx, sub.ID, admin); err != nil {
		t.Errorf("admin ManageSubject() error = %v", err)
	}
	if _, err := f.svc.ManageCategory(f.ctx, courses.ID, stranger); !errors.Is(err, coursetree.ErrPermission) {
		t.Errorf("stranger ManageCategory() error = %v, want ErrPermission", err)
	}

	if _, err := f.svc.ViewCategory(f.ctx, courses.ID, student); !errors.Is(err, coursetree.ErrPermission) {
		t.Errorf("unenrolled ViewCategory() error = %v, want ErrPermission", err)
	}
	if _, err := f.svc.Enroll(f.ctx, sub.ID, student); err != nil {
		t.Fatalf("Enroll() error = %v", err)
	}
	if _, err := f.svc.ViewCategory(f.ctx, courses.ID, student); err != nil {
		t.Errorf("enrolled ViewCategory() error = %v", err)
	}
	if _, err := f.svc.ManageSubject(f.ctx, sub.ID, student); !errors.Is(err, coursetree.ErrPermission) {
		t.Errorf("enrolled ManageSubject() error = %v, want ErrPermission", err)
	}

	if _, err := f.svc.ViewSubject(f.ctx, primitive.NewObjectID(), admin); !errors.Is(err, coursetree.ErrNotFound) {
		t.Errorf("ViewSubject() missing error = %v, want ErrNotFound", err)
	}
}

func TestUploadCategory(t *testing.T) {
	f := setup(t)
	sub := f.subject(t, "Algorithms")
	other := f.topLevel(t, sub.ID, "Other")

	student := coursetree.Actor{ID: primitive.NewObjectID(), Role: models.RoleStudent, Name: "Sam"}
	colleague := coursetree.Actor{ID: primitive.NewObjectID(), Role: models.RoleProfessor, Name: "Grace"}
	admin := coursetree.Actor{ID: primitive.NewObjectID(), Role: models.RoleAdmin, Name: "Root"}

	if _, err := f.svc.UploadCategory(f.ctx, other.ID, student); !errors.Is(err, coursetree.ErrPermission) {
		t.Errorf("unenrolled student UploadCategory() error = %v, want ErrPermission", err)
	}
	for _, a := range []coursetree.Actor{student, colleague} {
		if _, err := f.svc.Enroll(f.ctx, sub.ID, a); err != nil {
			t.Fatalf("Enroll(%s) error = %v", a.Name, err)
		}
	}

	for _, a := range []coursetree.Actor{f.prof, admin, student} {
		if _, err := f.svc.UploadCategory(f.ctx, other.ID, a); err != nil {
			t.Errorf("%s UploadCategory() error = %v", a.Name, err)
		}
	}
	_, err := f.svc.UploadCategory(f.ctx, other.ID, colleague)
	if !errors.Is(err, coursetree.ErrPermission) {
		t.Fatalf("enrolled professor UploadCategory() error = %v, want ErrPermission", err)
	}
	if coursetree.Message(err) != "you do not have permission to upload here" {
		t.Errorf("Message() = %q", coursetree.Message(err))
	}
}

func TestForgetUser(t *testing.T) {
	f := setup(t)
	sub := f.subject(t, "Algorithms")
	other := f.topLevel(t, sub.ID, "Other")

	student := coursetree.Actor{ID: primitive.NewObjectID(), Role: models.RoleStudent, Name: "Jane Doe"}
	if _, err := f.svc.Enroll(f.ctx, sub.ID, student); err != nil {
		t.Fatalf("Enroll() error = %v", err)
	}
	up := f.upload(t, other.ID, "report.pdf", []byte("pdf"), student)

	var ran bool
	err := f.svc.ForgetUser(f.ctx, student.ID, func(ctx context.Context) error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("ForgetUser() error = %v", err)
	}
	if !ran {
		t.Error("follow-up func did not run")
	}

	got, err := f.svc.FileStore().GetByID(f.ctx, up.ID)
	if err != nil {
		t.Fatalf("file record should survive: %v", err)
	}
	if got.UploadedByID != nil {
		t.Errorf("UploadedByID = %v, want nil", got.UploadedByID)
	}
	if f.blobs.Len() != 1 {
		t.Errorf("blob count = %d, want 1", f.blobs.Len())
	}
	if enrolled, _ := f.svc.EnrollmentStore().IsEnrolled(f.ctx, sub.ID, student.ID); enrolled {
		t.Error("enrollment should be removed")
	}
}

func TestForgetUser_RefusesOwner(t *testing.T) {
	f := setup(t)
	f.subject(t, "Algorithms")

	called := false
	err := f.svc.ForgetUser(f.ctx, f.prof.ID, func(ctx context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, coursetree.ErrState) {
		t.Errorf("ForgetUser() error = %v, want ErrState", err)
	}
	if called {
		t.Error("follow-up func must not run for an owner")
	}
}

func TestForgetUser_FollowUpErrorAborts(t *testing.T) {
	f := setup(t)
	boom := errors.New("boom")
	if err := f.svc.ForgetUser(f.ctx, primitive.NewObjectID(), func(ctx context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Errorf("ForgetUser() error = %v, want boom", err)
	}
}
