// Package systemusers is the admin view of user accounts.
package systemusers

import (
	"context"
	"errors"
	"net/http"

	errorsfeature "github.com/dalemusser/unigrading/internal/app/features/errors"
	"github.com/dalemusser/unigrading/internal/app/features/login"
	"github.com/dalemusser/unigrading/internal/app/store/audit"
	userstore "github.com/dalemusser/unigrading/internal/app/store/users"
	"github.com/dalemusser/unigrading/internal/app/system/auditlog"
	"github.com/dalemusser/unigrading/internal/app/system/auth"
	"github.com/dalemusser/unigrading/internal/app/system/authutil"
	"github.com/dalemusser/unigrading/internal/app/system/authz"
	"github.com/dalemusser/unigrading/internal/app/system/coursetree"
	"github.com/dalemusser/unigrading/internal/app/system/formutil"
	"github.com/dalemusser/unigrading/internal/app/system/jsonutil"
	"github.com/dalemusser/unigrading/internal/app/system/status"
	"github.com/dalemusser/unigrading/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler provides the admin user endpoints.
type Handler struct {
	userStore   *userstore.Store
	svc         *coursetree.Service
	errLog      *errorsfeature.ErrorLogger
	auditLogger *auditlog.Logger
	logger      *zap.Logger
}

// NewHandler creates a new systemusers Handler. auditLogger may be nil.
func NewHandler(db *mongo.Database, svc *coursetree.Service, errLog *errorsfeature.ErrorLogger, auditLogger *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		userStore:   userstore.New(db),
		svc:         svc,
		errLog:      errLog,
		auditLogger: auditLogger,
		logger:      logger,
	}
}

func (h *Handler) audit(r *http.Request, target primitive.ObjectID, event string, details map[string]string) {
	actor, _ := authz.Actor(r)
	h.auditLogger.AdminAction(r.Context(), r, actor.ID, target, event, details)
}

// Routes returns the admin-only user routes.
func Routes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireRole(models.RoleAdmin))

	r.Get("/", h.list)
	r.Get("/{id}", h.show)
	r.Post("/{id}/role", h.setRole)
	r.Post("/{id}/disable", h.disable)
	r.Post("/{id}/enable", h.enable)
	r.Post("/{id}/reset-password", h.resetPassword)
	r.Post("/{id}/delete", h.delete)
	return r
}

// userRow is one user as an admin sees it.
type userRow struct {
	login.UserResponse
	Email  string `json:"email,omitempty"`
	Status string `json:"status"`
}

func newRow(u *models.User) userRow {
	row := userRow{UserResponse: login.NewUserResponse(u), Status: u.Status}
	if u.Email != nil {
		row.Email = *u.Email
	}
	return row
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	users, err := h.userStore.List(r.Context())
	if err != nil {
		h.errLog.Log(r, "failed to list users", err)
		jsonutil.InternalError(w, "internal error")
		return
	}
	rows := make([]userRow, 0, len(users))
	for i := range users {
		rows = append(rows, newRow(&users[i]))
	}
	jsonutil.OK(w, map[string]any{"users": rows})
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	id, ok := formutil.PathID(w, r, "id", "user")
	if !ok {
		return nil, false
	}
	u, err := h.userStore.GetByID(r.Context(), id)
	if err == mongo.ErrNoDocuments {
		jsonutil.NotFound(w, "user not found")
		return nil, false
	}
	if err != nil {
		h.errLog.Log(r, "failed to load user", err)
		jsonutil.InternalError(w, "internal error")
		return nil, false
	}
	return u, true
}

// notSelf refuses changes an admin should not make to their own account.
func notSelf(w http.ResponseWriter, r *http.Request, id primitive.ObjectID, what string) bool {
	if actor, _ := authz.Actor(r); actor.ID == id {
		jsonutil.BadRequest(w, "you cannot "+what+" your own account")
		return false
	}
	return true
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	if u, ok := h.load(w, r); ok {
		jsonutil.OK(w, newRow(u))
	}
}

type roleInput struct {
	Role string `json:"role" validate:"required,oneof=admin professor student" label:"Role"`
}

func (h *Handler) setRole(w http.ResponseWriter, r *http.Request) {
	u, ok := h.load(w, r)
	if !ok {
		return
	}
	var in roleInput
	if !formutil.Bind(w, r, &in) || !notSelf(w, r, u.ID, "change the role of") {
		return
	}
	if err := h.userStore.UpdateRole(r.Context(), u.ID, in.Role); err != nil {
		h.errLog.Log(r, "failed to update role", err)
		jsonutil.InternalError(w, "internal error")
		return
	}
	h.audit(r, u.ID, audit.EventUserRoleChanged, map[string]string{"from": u.Role, "to": in.Role})
	u.Role = in.Role
	jsonutil.OK(w, newRow(u))
}

func (h *Handler) disable(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, status.Disabled)
}

func (h *Handler) enable(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, status.Active)
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request, st string) {
	u, ok := h.load(w, r)
	if !ok || !notSelf(w, r, u.ID, "change the status of") {
		return
	}
	if err := h.userStore.SetStatus(r.Context(), u.ID, st); err != nil {
		h.errLog.Log(r, "failed to update status", err)
		jsonutil.InternalError(w, "internal error")
		return
	}
	event := audit.EventUserEnabled
	if st == status.Disabled {
		event = audit.EventUserDisabled
	}
	h.audit(r, u.ID, event, nil)
	h.logger.Info("user status changed", zap.String("user_id", u.ID.Hex()), zap.String("status", st))
	u.Status = st
	jsonutil.OK(w, newRow(u))
}

type passwordInput struct {
	Password string `json:"password" validate:"required" label:"Password"`
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	u, ok := h.load(w, r)
	if !ok {
		return
	}
	var in passwordInput
	if !formutil.Bind(w, r, &in) {
		return
	}
	if err := authutil.ValidatePassword(in.Password); err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}
	hash, err := authutil.HashPassword(in.Password)
	if err != nil {
		h.errLog.Log(r, "failed to hash password", err)
		jsonutil.InternalError(w, "internal error")
		return
	}
	if err := h.userStore.UpdatePassword(r.Context(), u.ID, hash); err != nil {
		h.errLog.Log(r, "failed to update password", err)
		jsonutil.InternalError(w, "internal error")
		return
	}
	h.audit(r, u.ID, audit.EventUserPasswordReset, nil)
	jsonutil.NoContent(w)
}

// delete removes an account. Their uploads stay with no uploader; users who
// still own subjects are refused.
func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	u, ok := h.load(w, r)
	if !ok || !notSelf(w, r, u.ID, "delete") {
		return
	}

	err := h.svc.ForgetUser(r.Context(), u.ID, func(ctx context.Context) error {
		n, err := h.userStore.Delete(ctx, u.ID)
		if err == nil && n == 0 {
			err = mongo.ErrNoDocuments
		}
		return err
	})
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		jsonutil.NotFound(w, "user not found")
		return
	case err != nil:
		h.errLog.Respond(w, r, "failed to delete user", err)
		return
	}

	h.audit(r, u.ID, audit.EventUserDeleted, map[string]string{"login_id": u.LoginID, "role": u.Role})
	h.logger.Info("user deleted", zap.String("user_id", u.ID.Hex()))
	jsonutil.NoContent(w)
}
