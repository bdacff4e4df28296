// Package library serves the folder pages of a subject: listing, folder
// management, uploads and downloads.
package library

import (
	"errors"
	"net/http"

	errorsfeature "github.com/dalemusser/unigrading/internal/app/features/errors"
	"github.com/dalemusser/unigrading/internal/app/store/audit"
	"github.com/dalemusser/unigrading/internal/app/system/auditlog"
	"github.com/dalemusser/unigrading/internal/app/system/auth"
	"github.com/dalemusser/unigrading/internal/app/system/authz"
	"github.com/dalemusser/unigrading/internal/app/system/coursetree"
	"github.com/dalemusser/unigrading/internal/app/system/formutil"
	"github.com/dalemusser/unigrading/internal/app/system/jsonutil"
	"github.com/dalemusser/unigrading/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// DefaultMaxUploadBytes applies when no upload limit is configured.
const DefaultMaxUploadBytes = 50 << 20

type Handler struct {
	svc            *coursetree.Service
	errLog         *errorsfeature.ErrorLogger
	auditLogger    *auditlog.Logger
	logger         *zap.Logger
	maxUploadBytes int64
}

// NewHandler creates the library handler. maxUploadBytes <= 0 selects
// DefaultMaxUploadBytes. auditLogger may be nil.
func NewHandler(svc *coursetree.Service, errLog *errorsfeature.ErrorLogger, auditLogger *auditlog.Logger, maxUploadBytes int64, logger *zap.Logger) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &Handler{
		svc:            svc,
		errLog:         errLog,
		auditLogger:    auditLogger,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
	}
}

// CategoryRoutes is mounted at /categories.
func CategoryRoutes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireSignedIn)
	r.Get("/{id}", h.show)
	r.Post("/{id}/subcategories", h.createSubcategory)
	r.Post("/{id}/rename", h.rename)
	r.Post("/{id}/delete", h.delete)
	r.Post("/{id}/files", h.upload)
	return r
}

// FileRoutes is mounted at /files.
func FileRoutes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireSignedIn)
	r.Post("/{id}/delete", h.deleteFile)
	r.Get("/{id}/download", h.download)
	r.Get("/{id}/preview", h.preview)
	return r
}

type nameInput struct {
	Name string `json:"name" validate:"required,max=200,nameseg" label:"Folder name"`
}

// folderPage is a folder listing plus its breadcrumb path, root first.
type folderPage struct {
	*coursetree.Listing
	Path      []models.Category `json:"path"`
	CanManage bool              `json:"can_manage"`
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := formutil.PathID(w, r, "id", "folder")
	if !ok {
		return
	}
	actor, _ := authz.Actor(r)
	ctx := r.Context()

	cat, err := h.svc.ViewCategory(ctx, id, actor)
	if err != nil {
		h.errLog.Respond(w, r, "load folder failed", err)
		return
	}
	listing, err := h.svc.ListChildren(ctx, id)
	if err != nil {
		h.errLog.Respond(w, r, "list folder failed", err)
		return
	}
	path, err := h.svc.Path(ctx, id)
	if err != nil {
		h.errLog.Respond(w, r, "load folder path failed", err)
		return
	}

	_, manageErr := h.svc.ManageSubject(ctx, cat.SubjectID, actor)
	switch {
	case manageErr == nil, errors.Is(manageErr, coursetree.ErrPermission):
	default:
		h.errLog.Respond(w, r, "load folder failed", manageErr)
		return
	}

	jsonutil.OK(w, folderPage{Listing: listing, Path: path, CanManage: manageErr == nil})
}

func (h *Handler) createSubcategory(w http.ResponseWriter, r *http.Request) {
	id, ok := formutil.PathID(w, r, "id", "folder")
	if !ok {
		return
	}
	var in nameInput
	if !formutil.Bind(w, r, &in) {
		return
	}
	actor, _ := authz.Actor(r)

	parent, err := h.svc.ManageCategory(r.Context(), id, actor)
	if err != nil {
		h.errLog.Respond(w, r, "create folder failed", err)
		return
	}
	cat, err := h.svc.CreateCategory(r.Context(), parent.SubjectID, in.Name, &parent.ID)
	if err != nil {
		h.errLog.Respond(w, r, "create folder failed", err)
		return
	}
	jsonutil.Created(w, cat)
}

func (h *Handler) rename(w http.ResponseWriter, r *http.Request) {
	id, ok := formutil.PathID(w, r, "id", "folder")
	if !ok {
		return
	}
	var in nameInput
	if !formutil.Bind(w, r, &in) {
		return
	}
	actor, _ := authz.Actor(r)

	if _, err := h.svc.ManageCategory(r.Context(), id, actor); err != nil {
		h.errLog.Respond(w, r, "rename folder failed", err)
		return
	}
	cat, err := h.svc.RenameCategory(r.Context(), id, in.Name)
	if err != nil {
		h.errLog.Respond(w, r, "rename folder failed", err)
		return
	}
	jsonutil.OK(w, cat)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := formutil.PathID(w, r, "id", "folder")
	if !ok {
		return
	}
	actor, _ := authz.Actor(r)

	cat, err := h.svc.ManageCategory(r.Context(), id, actor)
	if err != nil {
		h.errLog.Respond(w, r, "delete folder failed", err)
		return
	}
	if err := h.svc.DeleteCategory(r.Context(), id); err != nil {
		h.errLog.Respond(w, r, "delete folder failed", err)
		return
	}
	h.auditLogger.LibraryAction(r.Context(), r, actor.ID, audit.EventCategoryDeleted, map[string]string{
		"category_id": id.Hex(),
		"subject_id":  cat.SubjectID.Hex(),
		"name":        cat.Name,
	})
	jsonutil.NoContent(w)
}
