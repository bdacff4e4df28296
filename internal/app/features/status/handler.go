// Package status serves the admin system status report.
package status

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/dalemusser/unigrading/internal/app/system/blobstore"
	"github.com/dalemusser/unigrading/internal/app/system/jsonutil"
	"github.com/dalemusser/unigrading/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

var startTime = time.Now()

// collections counted in the library section of the report.
var collections = []string{"subjects", "categories", "files", "enrollments", "users"}

// Handler holds dependencies for the status report.
type Handler struct {
	db      *mongo.Database
	blobs   blobstore.Store
	backend string
	config  []ConfigGroup
	log     *zap.Logger
}

// NewHandler creates a new status Handler. backend names the configured
// storage type; config is shown as given, so secrets must already be masked.
func NewHandler(db *mongo.Database, blobs blobstore.Store, backend string, config []ConfigGroup, logger *zap.Logger) *Handler {
	return &Handler{
		db:      db,
		blobs:   blobs,
		backend: backend,
		config:  config,
		log:     logger,
	}
}

// ConfigItem is a single configuration value.
type ConfigItem struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ConfigGroup is a named set of configuration values.
type ConfigGroup struct {
	Name  string       `json:"name"`
	Items []ConfigItem `json:"items"`
}

// Report is the status response body.
type Report struct {
	Database DatabaseStatus   `json:"database"`
	Storage  StorageStatus    `json:"storage"`
	Library  map[string]int64 `json:"library"`
	System   SystemStatus     `json:"system"`
	Config   []ConfigGroup    `json:"config"`
}

type DatabaseStatus struct {
	Connected bool   `json:"connected"`
	Error     string `json:"error,omitempty"`
	PingMS    int64  `json:"ping_ms"`
	Version   string `json:"version,omitempty"`
}

type StorageStatus struct {
	Backend   string `json:"backend"`
	Reachable bool   `json:"reachable"`
	Error     string `json:"error,omitempty"`
}

type SystemStatus struct {
	GoVersion    string `json:"go_version"`
	Uptime       string `json:"uptime"`
	NumGoroutine int    `json:"goroutines"`
	MemAlloc     string `json:"mem_alloc"`
}

// Serve handles GET /admin/status.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	rep := Report{
		System: SystemStatus{
			GoVersion:    runtime.Version(),
			Uptime:       formatDuration(time.Since(startTime)),
			NumGoroutine: runtime.NumGoroutine(),
			MemAlloc:     formatBytes(m.Alloc),
		},
		Storage: StorageStatus{Backend: h.backend, Reachable: true},
		Library: map[string]int64{},
		Config:  h.config,
	}

	pingStart := time.Now()
	if err := h.db.Client().Ping(ctx, readpref.Primary()); err != nil {
		rep.Database.Error = err.Error()
		h.log.Warn("status: database ping failed", zap.Error(err))
	} else {
		rep.Database.Connected = true
		rep.Database.PingMS = time.Since(pingStart).Milliseconds()

		var info bson.M
		if err := h.db.Client().Database("admin").RunCommand(ctx, bson.D{{Key: "buildInfo", Value: 1}}).Decode(&info); err == nil {
			if v, ok := info["version"].(string); ok {
				rep.Database.Version = v
			}
		}
		for _, name := range collections {
			n, err := h.db.Collection(name).EstimatedDocumentCount(ctx)
			if err != nil {
				h.log.Warn("status: count failed", zap.String("collection", name), zap.Error(err))
				continue
			}
			rep.Library[name] = n
		}
	}

	if err := blobstore.Ping(ctx, h.blobs); err != nil {
		rep.Storage.Reachable = false
		rep.Storage.Error = err.Error()
	}

	jsonutil.OK(w, rep)
}

// Mask hides all but the ends of a secret.
func Mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}

// Item formats any value as a config item.
func Item(name string, v any) ConfigItem {
	return ConfigItem{Name: name, Value: fmt.Sprint(v)}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	if days > 0 {
		return plural(days, "day") + " " + plural(hours, "hour")
	}
	if hours > 0 {
		return plural(hours, "hour") + " " + plural(minutes, "min")
	}
	return plural(minutes, "min")
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func formatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
