package userstore

import (
	"errors"
	"testing"

	"github.com/dalemusser/unigrading/internal/domain/models"
	"github.com/dalemusser/unigrading/internal/testutil"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestStore_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	email := "  Jane@Example.COM "
	u, err := store.Create(ctx, models.User{FullName: "Jane Doe", LoginID: "JDoe", Email: &email, Role: "Professor"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if u.LoginID != "jdoe" || u.Role != models.RoleProfessor || u.Status != "active" {
		t.Errorf("Create() normalized = %+v", u)
	}

	if _, err := store.Create(ctx, models.User{LoginID: "jdoe", Role: "student"}); !errors.Is(err, ErrDuplicateLoginID) {
		t.Errorf("duplicate Create() error = %v, want ErrDuplicateLoginID", err)
	}
	if _, err := store.Create(ctx, models.User{LoginID: "x", Role: "wizard"}); err == nil {
		t.Error("Create() with bad role should fail")
	}
	if _, err := store.Create(ctx, models.User{Role: "student"}); err == nil {
		t.Error("Create() without login id should fail")
	}
}

func TestStore_Lookups(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	email := "sam@example.com"
	sam, _ := store.Create(ctx, models.User{FullName: "Sam", LoginID: "sam", Email: &email, Role: "student"})
	_, _ = store.Create(ctx, models.User{FullName: "Alex", LoginID: "alex", Role: "professor"})

	got, err := store.GetByLoginID(ctx, "SAM")
	if err != nil || got.ID != sam.ID {
		t.Errorf("GetByLoginID() = %v, %v", got, err)
	}
	got, err = store.GetByEmail(ctx, "Sam@Example.com")
	if err != nil || got.ID != sam.ID {
		t.Errorf("GetByEmail() = %v, %v", got, err)
	}
	if _, err := store.GetByEmail(ctx, ""); err != mongo.ErrNoDocuments {
		t.Errorf("GetByEmail(\"\") error = %v, want ErrNoDocuments", err)
	}

	all, err := store.List(ctx)
	if err != nil || len(all) != 2 || all[0].FullName != "Alex" {
		t.Errorf("List() = %v, %v", all, err)
	}

	n, err := store.Delete(ctx, sam.ID)
	if err != nil || n != 1 {
		t.Errorf("Delete() = %d, %v", n, err)
	}
}

func TestStore_SetStatusAndRole(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u, _ := store.Create(ctx, models.User{LoginID: "sam", Role: "student"})

	if err := store.SetStatus(ctx, u.ID, "Disabled"); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	if err := store.SetStatus(ctx, u.ID, "gone"); err == nil {
		t.Error("SetStatus() with bad status should fail")
	}
	if err := store.UpdateRole(ctx, u.ID, "professor"); err != nil {
		t.Fatalf("UpdateRole() error = %v", err)
	}
	got, _ := store.GetByID(ctx, u.ID)
	if got.Status != "disabled" || got.Role != "professor" {
		t.Errorf("after updates = %+v", got)
	}
}
