// Package register lets professors and students create their own accounts.
// Admin accounts are never self-service; the first admin is seeded at startup.
package register

import (
	"errors"
	"net/http"

	errorsfeature "github.com/dalemusser/unigrading/internal/app/features/errors"
	"github.com/dalemusser/unigrading/internal/app/features/login"
	userstore "github.com/dalemusser/unigrading/internal/app/store/users"
	"github.com/dalemusser/unigrading/internal/app/system/auditlog"
	"github.com/dalemusser/unigrading/internal/app/system/auth"
	"github.com/dalemusser/unigrading/internal/app/system/authutil"
	"github.com/dalemusser/unigrading/internal/app/system/inputval"
	"github.com/dalemusser/unigrading/internal/app/system/jsonutil"
	"github.com/dalemusser/unigrading/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves POST /register.
type Handler struct {
	userStore   *userstore.Store
	sessionMgr  *auth.SessionManager
	errLog      *errorsfeature.ErrorLogger
	auditLogger *auditlog.Logger
	logger      *zap.Logger
}

func NewHandler(db *mongo.Database, sessionMgr *auth.SessionManager, errLog *errorsfeature.ErrorLogger, auditLogger *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		userStore:   userstore.New(db),
		sessionMgr:  sessionMgr,
		errLog:      errLog,
		auditLogger: auditLogger,
		logger:      logger,
	}
}

func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Post("/", h.handleRegister)
	return r
}

type registerInput struct {
	FullName string `json:"full_name" validate:"max=200" label:"Full name"`
	LoginID  string `json:"login_id" validate:"required,loginid" label:"Login ID"`
	Email    string `json:"email" label:"Email"` // optional
	Password string `json:"password" validate:"required" label:"Password"`
	Role     string `json:"role" validate:"required,oneof=professor student" label:"Role"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in registerInput
	if err := jsonutil.Decode(r, &in); err != nil {
		jsonutil.BadRequest(w, "malformed request body")
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		jsonutil.BadRequest(w, res.First())
		return
	}
	if in.Email != "" && !inputval.IsValidEmail(in.Email) {
		jsonutil.BadRequest(w, "A valid email address is required.")
		return
	}
	if err := authutil.ValidatePassword(in.Password); err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}

	hash, err := authutil.HashPassword(in.Password)
	if err != nil {
		h.errLog.Log(r, "failed to hash password", err)
		jsonutil.InternalError(w, "could not create account")
		return
	}

	u := models.User{
		FullName:     in.FullName,
		LoginID:      in.LoginID,
		Role:         in.Role,
		PasswordHash: &hash,
	}
	if in.Email != "" {
		u.Email = &in.Email
	}

	created, err := h.userStore.Create(r.Context(), u)
	if err != nil {
		if errors.Is(err, userstore.ErrDuplicateLoginID) {
			jsonutil.Error(w, http.StatusConflict, err.Error())
			return
		}
		h.errLog.Log(r, "failed to create user", err)
		jsonutil.InternalError(w, "could not create account")
		return
	}

	if err := h.sessionMgr.CreateSession(w, r, created.ID, created.Role); err != nil {
		h.errLog.Log(r, "failed to create session", err)
		jsonutil.InternalError(w, "account created but sign-in failed")
		return
	}

	h.logger.Info("user registered", zap.String("user_id", created.ID.Hex()), zap.String("role", created.Role))
	h.auditLogger.Registered(r.Context(), r, created.ID, created.Role)
	jsonutil.Created(w, map[string]any{"user": login.NewUserResponse(&created)})
}
