package login

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	errorsfeature "github.com/dalemusser/unigrading/internal/app/features/errors"
	"github.com/dalemusser/unigrading/internal/app/store/audit"
	"github.com/dalemusser/unigrading/internal/app/store/ratelimit"
	userstore "github.com/dalemusser/unigrading/internal/app/store/users"
	"github.com/dalemusser/unigrading/internal/app/system/auditlog"
	"github.com/dalemusser/unigrading/internal/app/system/auth"
	"github.com/dalemusser/unigrading/internal/app/system/authutil"
	"github.com/dalemusser/unigrading/internal/domain/models"
	"github.com/dalemusser/unigrading/internal/testutil"
	"go.uber.org/zap"
)

const testPassword = "correct-horse-battery"

func newTestHandler(t *testing.T, maxFailures int) (*Handler, *userstore.Store) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()

	sessionMgr, err := auth.NewSessionManager("k9Xq2Lr7Vb4Nw8Ts1Hy6Jc3Mf5Pz0Ad2Ge", "test-session", "", time.Hour, false, logger)
	if err != nil {
		t.Fatalf("NewSessionManager() error = %v", err)
	}
	var limiter *ratelimit.Store
	if maxFailures > 0 {
		limiter = ratelimit.New(db, maxFailures, 15*time.Minute, 15*time.Minute)
	}
	h := NewHandler(db, sessionMgr, errorsfeature.NewErrorLogger(logger), auditlog.New(audit.New(db), logger, auditlog.Config{}), limiter, logger)
	return h, userstore.New(db)
}

func createUser(t *testing.T, users *userstore.Store, loginID, email, userStatus string) models.User {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	hash, err := authutil.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	u := models.User{FullName: "Jane Doe", LoginID: loginID, Role: models.RoleProfessor, Status: userStatus, PasswordHash: &hash}
	if email != "" {
		u.Email = &email
	}
	created, err := users.Create(ctx, u)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return created
}

func post(h *Handler, login, password string) *httptest.ResponseRecorder {
	body, _ := json.Marshal(map[string]string{"login": login, "password": password})
	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.handleLogin(rec, req)
	return rec
}

func TestLogin_ByLoginID(t *testing.T) {
	h, users := newTestHandler(t, 0)
	u := createUser(t, users, "jdoe", "", "")

	rec := post(h, "JDoe", testPassword)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	if len(rec.Result().Cookies()) == 0 {
		t.Error("expected a session cookie")
	}
	var resp struct {
		User UserResponse `json:"user"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.User.ID != u.ID.Hex() || resp.User.Name != "Jane Doe" {
		t.Errorf("user = %+v", resp.User)
	}
}

func TestLogin_ByEmail(t *testing.T) {
	h, users := newTestHandler(t, 0)
	createUser(t, users, "jdoe", "jane@example.com", "")

	if rec := post(h, "Jane@Example.com", testPassword); rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestLogin_Rejections(t *testing.T) {
	h, users := newTestHandler(t, 0)
	createUser(t, users, "jdoe", "", "")
	createUser(t, users, "gone", "", "disabled")

	tests := []struct {
		name     string
		login    string
		password string
		want     int
	}{
		{"wrong password", "jdoe", "nope-nope-nope", http.StatusUnauthorized},
		{"unknown user", "nobody", testPassword, http.StatusUnauthorized},
		{"disabled user", "gone", testPassword, http.StatusUnauthorized},
		{"missing password", "jdoe", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := post(h, tt.login, tt.password); rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestLogin_MalformedBody(t *testing.T) {
	h, _ := newTestHandler(t, 0)
	rec := httptest.NewRecorder()
	h.handleLogin(rec, httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader([]byte("{"))))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestLogin_Lockout(t *testing.T) {
	h, users := newTestHandler(t, 3)
	createUser(t, users, "jdoe", "", "")

	for i := 0; i < 2; i++ {
		if rec := post(h, "jdoe", "wrong-password"); rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d status = %d, want 401", i+1, rec.Code)
		}
	}
	if rec := post(h, "jdoe", "wrong-password"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third failure status = %d, want 429", rec.Code)
	}
	// Even the right password is refused while locked.
	if rec := post(h, "jdoe", testPassword); rec.Code != http.StatusTooManyRequests {
		t.Errorf("locked login status = %d, want 429", rec.Code)
	}
}

func TestLogin_SuccessClearsFailures(t *testing.T) {
	h, users := newTestHandler(t, 3)
	createUser(t, users, "jdoe", "", "")

	_ = post(h, "jdoe", "wrong-password")
	_ = post(h, "jdoe", "wrong-password")
	if rec := post(h, "jdoe", testPassword); rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if until := h.rateLimitStore.LockedUntil(context.Background(), "jdoe"); until != nil {
		t.Errorf("LockedUntil() = %v, want nil", until)
	}
	if rec := post(h, "jdoe", "wrong-password"); rec.Code != http.StatusUnauthorized {
		t.Errorf("status after clear = %d, want 401", rec.Code)
	}
}

func TestLockoutMessage(t *testing.T) {
	if got := lockoutMessage(time.Now().Add(30 * time.Second)); got == "" {
		t.Error("lockoutMessage() empty")
	}
	if got := lockoutMessage(time.Now().Add(5 * time.Minute)); got != "too many failed login attempts; try again in 5 minute(s)" {
		t.Errorf("lockoutMessage() = %q", got)
	}
}

func TestLogin_AuditTrail(t *testing.T) {
	h, users := newTestHandler(t, 0)
	u := createUser(t, users, "jdoe", "", "")

	post(h, "nobody", testPassword)
	post(h, "jdoe", "wrong-password")
	post(h, "jdoe", testPassword)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	events, err := h.auditLogger.Store().Query(ctx, audit.QueryFilter{Category: audit.CategoryAuth})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	want := []string{audit.EventLoginSuccess, audit.EventLoginFailedWrongPassword, audit.EventLoginFailedUserNotFound}
	if len(events) != len(want) {
		t.Fatalf("events = %d, want %d", len(events), len(want))
	}
	for i, e := range events {
		if e.EventType != want[i] {
			t.Errorf("event %d = %s, want %s", i, e.EventType, want[i])
		}
	}
	if events[0].UserID == nil || *events[0].UserID != u.ID {
		t.Errorf("success event user = %v, want %s", events[0].UserID, u.ID.Hex())
	}
}
