// internal/app/features/auditlog/auditlog.go
package auditlog

// Terminology: User Identifiers
//   - UserID / userID / user_id: The MongoDB ObjectID (_id) that uniquely identifies a user record
//   - LoginID / loginID / login_id: The human-readable string users type to log in

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	errorsfeature "github.com/dalemusser/unigrading/internal/app/features/errors"
	"github.com/dalemusser/unigrading/internal/app/store/audit"
	userstore "github.com/dalemusser/unigrading/internal/app/store/users"
	"github.com/dalemusser/unigrading/internal/app/system/auth"
	"github.com/dalemusser/unigrading/internal/app/system/jsonutil"
	"github.com/dalemusser/unigrading/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	pageSize    = 50
	maxPageSize = 500
)

// Handler provides audit log handlers.
type Handler struct {
	auditStore *audit.Store
	userStore  *userstore.Store
	errLog     *errorsfeature.ErrorLogger
	logger     *zap.Logger
}

// NewHandler creates a new audit log Handler.
func NewHandler(
	db *mongo.Database,
	errLog *errorsfeature.ErrorLogger,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		auditStore: audit.New(db),
		userStore:  userstore.New(db),
		errLog:     errLog,
		logger:     logger,
	}
}

// listItem is one audit event with its user names resolved.
type listItem struct {
	audit.Event
	UserName  string `json:"user_name,omitempty"`
	ActorName string `json:"actor_name,omitempty"`
}

type listResponse struct {
	Events []listItem `json:"events"`
	Total  int64      `json:"total"`
	Limit  int64      `json:"limit"`
	Offset int64      `json:"offset"`
}

var categories = map[string]bool{
	audit.CategoryAuth:    true,
	audit.CategoryAdmin:   true,
	audit.CategoryLibrary: true,
}

// Routes returns a chi.Router with audit log routes mounted.
func Routes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireRole(models.RoleAdmin))

	r.Get("/", h.list)

	return r
}

// list answers the audit log, newest first. Query parameters: category,
// event_type, user_id, actor_id, start and end (RFC 3339 or YYYY-MM-DD in
// UTC), limit and offset.
func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter, msg := parseFilter(r)
	if msg != "" {
		jsonutil.BadRequest(w, msg)
		return
	}

	events, err := h.auditStore.Query(r.Context(), filter)
	if err != nil {
		h.errLog.Log(r, "failed to query audit events", err)
		jsonutil.InternalError(w, "internal error")
		return
	}

	total, err := h.auditStore.Count(r.Context(), filter)
	if err != nil {
		h.logger.Warn("failed to count audit events", zap.Error(err))
		total = int64(len(events))
	}

	names := h.userNames(r, events)
	items := make([]listItem, 0, len(events))
	for _, e := range events {
		item := listItem{Event: e}
		if e.UserID != nil {
			item.UserName = names[*e.UserID]
		}
		if e.ActorID != nil {
			item.ActorName = names[*e.ActorID]
		}
		items = append(items, item)
	}

	jsonutil.OK(w, listResponse{Events: items, Total: total, Limit: filter.Limit, Offset: filter.Offset})
}

// userNames resolves the names of every user an event mentions. Deleted
// users are simply absent.
func (h *Handler) userNames(r *http.Request, events []audit.Event) map[primitive.ObjectID]string {
	seen := make(map[primitive.ObjectID]struct{})
	for _, e := range events {
		if e.ActorID != nil {
			seen[*e.ActorID] = struct{}{}
		}
		if e.UserID != nil {
			seen[*e.UserID] = struct{}{}
		}
	}
	names := make(map[primitive.ObjectID]string, len(seen))
	if len(seen) == 0 {
		return names
	}
	ids := make([]primitive.ObjectID, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	users, err := h.userStore.GetByIDs(r.Context(), ids)
	if err != nil {
		h.logger.Warn("failed to fetch user names for audit log", zap.Error(err))
		return names
	}
	for _, u := range users {
		names[u.ID] = u.DisplayName()
	}
	return names
}

func parseFilter(r *http.Request) (audit.QueryFilter, string) {
	q := r.URL.Query()
	f := audit.QueryFilter{
		Category:  strings.TrimSpace(q.Get("category")),
		EventType: strings.TrimSpace(q.Get("event_type")),
		Limit:     pageSize,
	}
	if f.Category != "" && !categories[f.Category] {
		return f, "unknown category"
	}

	for _, p := range []struct {
		param string
		dst   **primitive.ObjectID
	}{{"user_id", &f.UserID}, {"actor_id", &f.ActorID}} {
		v := strings.TrimSpace(q.Get(p.param))
		if v == "" {
			continue
		}
		oid, err := primitive.ObjectIDFromHex(v)
		if err != nil {
			return f, "invalid " + p.param
		}
		*p.dst = &oid
	}

	if v := q.Get("start"); v != "" {
		t, ok := parseTime(v, false)
		if !ok {
			return f, "invalid start"
		}
		f.StartTime = &t
	}
	if v := q.Get("end"); v != "" {
		t, ok := parseTime(v, true)
		if !ok {
			return f, "invalid end"
		}
		f.EndTime = &t
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return f, "invalid limit"
		}
		if n > maxPageSize {
			n = maxPageSize
		}
		f.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return f, "invalid offset"
		}
		f.Offset = n
	}
	return f, ""
}

// parseTime accepts RFC 3339 or a bare date. A bare end date covers the
// whole day.
func parseTime(v string, endOfDay bool) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, true
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, false
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, true
}
