package auditlog

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	errorsfeature "github.com/dalemusser/unigrading/internal/app/features/errors"
	"github.com/dalemusser/unigrading/internal/app/store/audit"
	userstore "github.com/dalemusser/unigrading/internal/app/store/users"
	"github.com/dalemusser/unigrading/internal/app/system/auth"
	"github.com/dalemusser/unigrading/internal/domain/models"
	"github.com/dalemusser/unigrading/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func setup(t *testing.T) (http.Handler, *audit.Store, *userstore.Store) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	sessionMgr, err := auth.NewSessionManager("k9Xq2Lr7Vb4Nw8Ts1Hy6Jc3Mf5Pz0Ad2Ge", "test-session", "", time.Hour, false, logger)
	if err != nil {
		t.Fatalf("NewSessionManager() error = %v", err)
	}
	h := NewHandler(db, errorsfeature.NewErrorLogger(logger), logger)
	return Routes(h, sessionMgr), audit.New(db), userstore.New(db)
}

func get(t *testing.T, router http.Handler, target string, user testutil.TestUser) *httptest.ResponseRecorder {
	t.Helper()
	req := testutil.WithUser(httptest.NewRequest(http.MethodGet, target, nil), user)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestList_FiltersAndNames(t *testing.T) {
	router, events, users := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	prof, err := users.Create(ctx, models.User{FullName: "Ada Prof", LoginID: "ada", Role: models.RoleProfessor})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seed := []audit.Event{
		{Category: audit.CategoryAuth, EventType: audit.EventLoginSuccess, UserID: &prof.ID, Success: true, CreatedAt: base},
		{Category: audit.CategoryLibrary, EventType: audit.EventFileDeleted, ActorID: &prof.ID, Success: true, CreatedAt: base.Add(time.Hour)},
		{Category: audit.CategoryLibrary, EventType: audit.EventFileUploaded, ActorID: &prof.ID, Success: true, CreatedAt: base.Add(48 * time.Hour)},
	}
	for _, e := range seed {
		if err := events.Log(ctx, e); err != nil {
			t.Fatalf("Log() error = %v", err)
		}
	}

	rec := get(t, router, "/?category=library&end=2026-03-01", testutil.AdminUser())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var got listResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Total != 1 || len(got.Events) != 1 {
		t.Fatalf("total = %d, events = %d, want 1/1", got.Total, len(got.Events))
	}
	if got.Events[0].EventType != audit.EventFileDeleted {
		t.Errorf("event = %q, want %q", got.Events[0].EventType, audit.EventFileDeleted)
	}
	if got.Events[0].ActorName != "Ada Prof" {
		t.Errorf("actor name = %q, want %q", got.Events[0].ActorName, "Ada Prof")
	}

	rec = get(t, router, "/?user_id="+prof.ID.Hex(), testutil.AdminUser())
	got = listResponse{}
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Total != 1 || got.Events[0].UserName != "Ada Prof" {
		t.Errorf("user filter = %+v", got)
	}
}

func TestList_Pagination(t *testing.T) {
	router, events, _ := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for i := 0; i < 5; i++ {
		uid := primitive.NewObjectID()
		if err := events.Log(ctx, audit.Event{Category: audit.CategoryAuth, EventType: audit.EventLogout, UserID: &uid}); err != nil {
			t.Fatalf("Log() error = %v", err)
		}
	}

	rec := get(t, router, "/?limit=2&offset=4", testutil.AdminUser())
	var got listResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Total != 5 || len(got.Events) != 1 || got.Limit != 2 || got.Offset != 4 {
		t.Errorf("page = total %d, events %d, limit %d, offset %d", got.Total, len(got.Events), got.Limit, got.Offset)
	}
}

func TestList_BadInput(t *testing.T) {
	router, _, _ := setup(t)

	tests := []struct {
		name  string
		query string
	}{
		{"category", "?category=billing"},
		{"user id", "?user_id=nope"},
		{"start", "?start=yesterday"},
		{"limit", "?limit=0"},
		{"offset", "?offset=-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := get(t, router, "/"+tt.query, testutil.AdminUser()); rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestList_AdminOnly(t *testing.T) {
	router, _, _ := setup(t)
	if rec := get(t, router, "/", testutil.StudentUser()); rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}
