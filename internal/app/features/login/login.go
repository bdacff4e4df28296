// internal/app/features/login/login.go
package login

// Terminology: User Identifiers
//   - UserID / userID / user_id: The MongoDB ObjectID (_id) that uniquely identifies a user record
//   - LoginID / loginID / login_id: The human-readable string users type to log in

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	errorsfeature "github.com/dalemusser/unigrading/internal/app/features/errors"
	"github.com/dalemusser/unigrading/internal/app/store/audit"
	"github.com/dalemusser/unigrading/internal/app/store/ratelimit"
	userstore "github.com/dalemusser/unigrading/internal/app/store/users"
	"github.com/dalemusser/unigrading/internal/app/system/auditlog"
	"github.com/dalemusser/unigrading/internal/app/system/auth"
	"github.com/dalemusser/unigrading/internal/app/system/authutil"
	"github.com/dalemusser/unigrading/internal/app/system/inputval"
	"github.com/dalemusser/unigrading/internal/app/system/jsonutil"
	"github.com/dalemusser/unigrading/internal/app/system/network"
	"github.com/dalemusser/unigrading/internal/app/system/normalize"
	"github.com/dalemusser/unigrading/internal/app/system/status"
	"github.com/dalemusser/unigrading/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const invalidCredentials = "invalid login or password"

// Handler provides the password login endpoint.
type Handler struct {
	userStore      *userstore.Store
	rateLimitStore *ratelimit.Store // nil if rate limiting disabled
	sessionMgr     *auth.SessionManager
	errLog         *errorsfeature.ErrorLogger
	auditLogger    *auditlog.Logger
	logger         *zap.Logger
}

// NewHandler creates a new login Handler. rateLimitStore and auditLogger can be nil.
func NewHandler(
	db *mongo.Database,
	sessionMgr *auth.SessionManager,
	errLog *errorsfeature.ErrorLogger,
	auditLogger *auditlog.Logger,
	rateLimitStore *ratelimit.Store,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		userStore:      userstore.New(db),
		rateLimitStore: rateLimitStore,
		sessionMgr:     sessionMgr,
		errLog:         errLog,
		auditLogger:    auditLogger,
		logger:         logger,
	}
}

// Routes returns a chi.Router with login routes mounted.
func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Post("/", h.handleLogin)
	return r
}

type loginInput struct {
	Login    string `json:"login" validate:"required,max=254" label:"Login"`
	Password string `json:"password" validate:"required" label:"Password"`
}

// UserResponse describes the signed-in user.
type UserResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	LoginID string `json:"login_id"`
	Role    string `json:"role"`
}

// NewUserResponse converts a stored user.
func NewUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:      u.ID.Hex(),
		Name:    u.DisplayName(),
		LoginID: u.LoginID,
		Role:    u.Role,
	}
}

// handleLogin accepts a login id or an email address plus a password.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginInput
	if err := jsonutil.Decode(r, &in); err != nil {
		jsonutil.BadRequest(w, "malformed request body")
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		jsonutil.BadRequest(w, res.First())
		return
	}

	ctx := r.Context()
	key := normalize.LoginID(in.Login)

	if h.rateLimitStore != nil {
		if until := h.rateLimitStore.LockedUntil(ctx, key); until != nil {
			h.logger.Info("login throttled",
				zap.String("login", key),
				zap.String("ip", network.ClientIP(r)))
			h.auditLogger.LoginFailed(ctx, r, audit.EventLoginLockedOut, nil, key, "locked out")
			jsonutil.Error(w, http.StatusTooManyRequests, lockoutMessage(*until))
			return
		}
	}

	user, err := h.lookup(r, in.Login)
	if err != nil && err != mongo.ErrNoDocuments {
		h.errLog.Log(r, "database error during login lookup", err)
		jsonutil.InternalError(w, "service temporarily unavailable")
		return
	}

	switch {
	case user == nil:
		h.fail(w, r, key, audit.EventLoginFailedUserNotFound, nil, "user not found")
		return
	case user.PasswordHash == nil || !authutil.CheckPassword(in.Password, *user.PasswordHash):
		h.fail(w, r, key, audit.EventLoginFailedWrongPassword, &user.ID, "wrong password")
		return
	case !status.CanSignIn(user.Status):
		h.fail(w, r, key, audit.EventLoginFailedUserDisabled, &user.ID, "account disabled")
		return
	}

	if h.rateLimitStore != nil {
		if err := h.rateLimitStore.Clear(ctx, key); err != nil {
			h.logger.Warn("failed to clear login attempts", zap.String("login", key), zap.Error(err))
		}
	}

	if err := h.sessionMgr.CreateSession(w, r, user.ID, user.Role); err != nil {
		h.errLog.Log(r, "failed to create session", err)
		jsonutil.InternalError(w, "could not start session")
		return
	}

	h.auditLogger.LoginSuccess(ctx, r, user.ID, user.LoginID)
	h.logger.Info("login succeeded", zap.String("user_id", user.ID.Hex()), zap.String("role", user.Role))
	jsonutil.OK(w, map[string]any{"user": NewUserResponse(user)})
}

// lookup tries the login id first. Login ids may contain '@', so an address
// only falls through to the email lookup when no login id matched.
func (h *Handler) lookup(r *http.Request, login string) (*models.User, error) {
	user, err := h.userStore.GetByLoginID(r.Context(), login)
	if err == mongo.ErrNoDocuments && strings.Contains(login, "@") {
		user, err = h.userStore.GetByEmail(r.Context(), login)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// fail answers a rejected attempt without revealing which check failed.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, key, event string, userID *primitive.ObjectID, reason string) {
	h.auditLogger.LoginFailed(r.Context(), r, event, userID, key, reason)
	if h.rateLimitStore != nil {
		until, err := h.rateLimitStore.RecordFailure(r.Context(), key)
		if err != nil {
			h.logger.Warn("failed to record login failure", zap.String("login", key), zap.Error(err))
		}
		if until != nil {
			jsonutil.Error(w, http.StatusTooManyRequests, lockoutMessage(*until))
			return
		}
	}
	jsonutil.Unauthorized(w, invalidCredentials)
}

func lockoutMessage(until time.Time) string {
	remaining := time.Until(until)
	if remaining > time.Minute {
		return fmt.Sprintf("too many failed login attempts; try again in %d minute(s)", int(remaining.Minutes())+1)
	}
	return fmt.Sprintf("too many failed login attempts; try again in %d second(s)", int(remaining.Seconds())+1)
}
