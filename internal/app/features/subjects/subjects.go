// Package subjects serves the subject pages: the caller's own subjects, the
// subject detail with its top-level folders, management by the owner, and
// enrollment for everyone else.
package subjects

import (
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

type Handler struct {
	svc         *coursetree.Service
	errLog      *errorsfeature.ErrorLogger
	auditLogger *auditlog.Logger
	logger      *zap.Logger
}

func NewHandler(svc *coursetree.Service, errLog *errorsfeature.ErrorLogger, auditLogger *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, errLog: errLog, auditLogger: auditLogger, logger: logger}
}

// Routes mounts the subject endpoints. Everything requires a signed-in user;
// creating subjects is limited to professors and admins.
func Routes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireSignedIn)

	r.Get("/", h.list)
	r.With(sessionMgr.RequireRole(models.RoleProfessor, models.RoleAdmin)).Post("/", h.create)
	r.Get("/browse", h.browse)

	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.show)
		r.Post("/rename", h.rename)
		r.Post("/description", h.describe)
		r.Post("/delete", h.delete)
		r.Post("/categories", h.createCategory)
		r.Post("/enroll", h.enroll)
		r.Post("/unenroll", h.unenroll)
		r.Get("/enrollments", h.enrollments)
	})
	return r
}

type createInput struct {
	Name            string   `json:"name" validate:"required,max=200,nameseg" label:"Subject name"`
	Description     string   `json:"description" validate:"max=5000" label:"Description"`
	ExtraCategories []string `json:"extra_categories"`
}

type nameInput struct {
	Name string `json:"name" validate:"required,max=200,nameseg" label:"Name"`
}

type descriptionInput struct {
	Description string `json:"description" validate:"required,max=5000" label:"Description"`
}

// detail is the subject page: the subject plus its top-level folders.
type detail struct {
	Subject    *models.Subject   `json:"subject"`
	Categories []models.Category `json:"categories"`
	IsOwner    bool              `json:"is_owner"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, _ := authz.Actor(r)
	subs, err := h.svc.SubjectsFor(r.Context(), actor)
	if err != nil {
		h.errLog.Respond(w, r, "list subjects failed", err)
		return
	}
	jsonutil.OK(w, map[string]any{"subjects": subs})
}

func (h *Handler) browse(w http.ResponseWriter, r *http.Request) {
	actor, _ := authz.Actor(r)
	subs, err := h.svc.Browse(r.Context(), actor)
	if err != nil {
		h.errLog.Respond(w, r, "browse subjects failed", err)
		return
	}
	jsonutil.OK(w, map[string]any{"subjects": subs})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in createInput
	if !formutil.Bind(w, r, &in) {
		return
	}
	actor, _ := authz.Actor(r)

	sub, err := h.svc.CreateSubject(r.Context(), coursetree.CreateSubjectInput{
		OwnerID:         actor.ID,
		Name:            in.Name,
		Description:     in.Description,
		ExtraCategories: in.ExtraCategories,
	})
	if err != nil {
		h.errLog.Respond(w, r, "create subject failed", err)
		return
	}
	jsonutil.Created(w, sub)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := formutil.PathID(w, r, "id", "subject")
	if !ok {
		return
	}
	actor, _ := authz.Actor(r)

	sub, err := h.svc.ViewSubject(r.Context(), id, actor)
	if err != nil {
		h.errLog.Respond(w, r, "load subject failed", err)
		return
	}
	cats, err := h.svc.ListTopLevel(r.Context(), id)
	if err != nil {
		h.errLog.Respond(w, r, "list folders failed", err)
		return
	}
	jsonutil.OK(w, detail{Subject: sub, Categories: cats, IsOwner: sub.OwnerID == actor.ID})
}

func (h *Handler) rename(w http.ResponseWriter, r *http.Request) {
	id, ok := formutil.PathID(w, r, "id", "subject")
	if !ok {
		return
	}
	var in nameInput
	if !formutil.Bind(w, r, &in) {
		return
	}
	actor, _ := authz.Actor(r)

	if _, err := h.svc.ManageSubject(r.Context(), id, actor); err != nil {
		h.errLog.Respond(w, r, "rename subject failed", err)
		return
	}
	sub, err := h.svc.RenameSubject(r.Context(), id, in.Name)
	if err != nil {
		h.errLog.Respond(w, r, "rename subject failed", err)
		return
	}
	jsonutil.OK(w, sub)
}

func (h *Handler) describe(w http.ResponseWriter, r *http.Request) {
	id, ok := formutil.PathID(w, r, "id", "subject")
	if !ok {
		return
	}
	var in descriptionInput
	if !formutil.Bind(w, r, &in) {
		return
	}
	actor, _ := authz.Actor(r)

	if _, err := h.svc.ManageSubject(r.Context(), id, actor); err != nil {
		h.errLog.Respond(w, r, "update description failed", err)
		return
	}
	sub, err := h.svc.UpdateDescription(r.Context(), id, in.Description)
	if err != nil {
		h.errLog.Respond(w, r, "update description failed", err)
		return
	}
	jsonutil.OK(w, sub)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := formutil.PathID(w, r, "id", "subject")
	if !ok {
		return
	}
	actor, _ := authz.Actor(r)

	if err := h.svc.DeleteSubject(r.Context(), id, actor); err != nil {
		h.errLog.Respond(w, r, "delete subject failed", err)
		return
	}
	h.auditLogger.LibraryAction(r.Context(), r, actor.ID, audit.EventSubjectDeleted, map[string]string{"subject_id": id.Hex()})
	jsonutil.NoContent(w)
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := formutil.PathID(w, r, "id", "subject")
	if !ok {
		return
	}
	var in nameInput
	if !formutil.Bind(w, r, &in) {
		return
	}
	actor, _ := authz.Actor(r)

	if _, err := h.svc.ManageSubject(r.Context(), id, actor); err != nil {
		h.errLog.Respond(w, r, "create folder failed", err)
		return
	}
	cat, err := h.svc.CreateCategory(r.Context(), id, in.Name, nil)
	if err != nil {
		h.errLog.Respond(w, r, "create folder failed", err)
		return
	}
	jsonutil.Created(w, cat)
}

func (h *Handler) enroll(w http.ResponseWriter, r *http.Request) {
	id, ok := formutil.PathID(w, r, "id", "subject")
	if !ok {
		return
	}
	actor, _ := authz.Actor(r)

	created, err := h.svc.Enroll(r.Context(), id, actor)
	if err != nil {
		h.errLog.Respond(w, r, "enroll failed", err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	jsonutil.JSON(w, status, map[string]bool{"enrolled": true})
}

func (h *Handler) unenroll(w http.ResponseWriter, r *http.Request) {
	id, ok := formutil.PathID(w, r, "id", "subject")
	if !ok {
		return
	}
	actor, _ := authz.Actor(r)

	if err := h.svc.Unenroll(r.Context(), id, actor); err != nil {
		h.errLog.Respond(w, r, "unenroll failed", err)
		return
	}
	jsonutil.NoContent(w)
}

func (h *Handler) enrollments(w http.ResponseWriter, r *http.Request) {
	id, ok := formutil.PathID(w, r, "id", "subject")
	if !ok {
		return
	}
	actor, _ := authz.Actor(r)

	rows, err := h.svc.Enrollments(r.Context(), id, actor)
	if err != nil {
		h.errLog.Respond(w, r, "list enrollments failed", err)
		return
	}
	jsonutil.OK(w, map[string]any{"enrollments": rows})
}
