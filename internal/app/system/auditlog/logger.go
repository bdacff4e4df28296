// Package auditlog records who did what: sign-ins, account administration
// and destructive library operations.
package auditlog

import (
	"context"
	"net/http"

	"github.com/dalemusser/unigrading/internal/app/store/audit"
	"github.com/dalemusser/unigrading/internal/app/system/network"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Destinations for a category of events.
const (
	All = "all" // MongoDB and zap
	DB  = "db"
	Log = "log"
	Off = "off"
)

// Config selects where each category is recorded.
type Config struct {
	Auth    string
	Admin   string
	Library string
}

// Logger writes audit events to the audit store and the zap log.
// A nil *Logger discards everything, so handlers and tests can omit it.
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

// Store returns the backing audit store.
func (l *Logger) Store() *audit.Store {
	return l.store
}

func (l *Logger) setting(category string) string {
	switch category {
	case audit.CategoryAuth:
		return l.config.Auth
	case audit.CategoryAdmin:
		return l.config.Admin
	case audit.CategoryLibrary:
		return l.config.Library
	}
	return All
}

// Record stores the event according to its category's setting.
func (l *Logger) Record(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	setting := l.setting(event.Category)
	if setting == "" {
		setting = All
	}
	if setting == Off {
		return
	}

	if setting == All || setting == Log {
		l.logToZap(event)
	}
	if setting == All || setting == DB {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}
	if event.UserID != nil {
		fields = append(fields, zap.String("user_id", event.UserID.Hex()))
	}
	if event.ActorID != nil {
		fields = append(fields, zap.String("actor_id", event.ActorID.Hex()))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

func fromRequest(r *http.Request, category, eventType string) audit.Event {
	return audit.Event{
		Category:  category,
		EventType: eventType,
		IP:        network.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
}

// --- Authentication ---

// LoginSuccess logs a successful sign-in.
func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, userID primitive.ObjectID, loginID string) {
	e := fromRequest(r, audit.CategoryAuth, audit.EventLoginSuccess)
	e.UserID = &userID
	e.Success = true
	e.Details = map[string]string{"login_id": loginID}
	l.Record(ctx, e)
}

// LoginFailed logs a rejected sign-in. userID is nil when no account matched.
func (l *Logger) LoginFailed(ctx context.Context, r *http.Request, eventType string, userID *primitive.ObjectID, attempted, reason string) {
	e := fromRequest(r, audit.CategoryAuth, eventType)
	e.UserID = userID
	e.FailureReason = reason
	e.Details = map[string]string{"attempted_login": attempted}
	l.Record(ctx, e)
}

// Logout logs a sign-out. userID comes from the session and may be malformed.
func (l *Logger) Logout(ctx context.Context, r *http.Request, userID string) {
	e := fromRequest(r, audit.CategoryAuth, audit.EventLogout)
	e.Success = true
	if oid, err := primitive.ObjectIDFromHex(userID); err == nil {
		e.UserID = &oid
	}
	l.Record(ctx, e)
}

// Registered logs a self-service account creation.
func (l *Logger) Registered(ctx context.Context, r *http.Request, userID primitive.ObjectID, role string) {
	e := fromRequest(r, audit.CategoryAuth, audit.EventRegistered)
	e.UserID = &userID
	e.Success = true
	e.Details = map[string]string{"role": role}
	l.Record(ctx, e)
}

// --- Administration ---

// AdminAction logs an admin change to another user's account.
func (l *Logger) AdminAction(ctx context.Context, r *http.Request, actorID, targetID primitive.ObjectID, eventType string, details map[string]string) {
	e := fromRequest(r, audit.CategoryAdmin, eventType)
	e.ActorID = &actorID
	e.UserID = &targetID
	e.Success = true
	e.Details = details
	l.Record(ctx, e)
}

// --- Library ---

// LibraryAction logs an upload or deletion in the course tree.
func (l *Logger) LibraryAction(ctx context.Context, r *http.Request, actorID primitive.ObjectID, eventType string, details map[string]string) {
	e := fromRequest(r, audit.CategoryLibrary, eventType)
	e.ActorID = &actorID
	e.Success = true
	e.Details = details
	l.Record(ctx, e)
}
