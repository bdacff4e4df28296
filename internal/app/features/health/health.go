// internal/app/features/health/health.go
package health

import (
	"context"
	"net/http"

	"github.com/dalemusser/unigrading/internal/app/system/blobstore"
	"github.com/dalemusser/unigrading/internal/app/system/jsonutil"
	"github.com/dalemusser/unigrading/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Handler provides health check endpoints.
type Handler struct {
	mongoClient *mongo.Client
	blobs       blobstore.Store
	logger      *zap.Logger
}

// NewHandler creates a new health check Handler. blobs may be nil.
func NewHandler(mongoClient *mongo.Client, blobs blobstore.Store, logger *zap.Logger) *Handler {
	return &Handler{
		mongoClient: mongoClient,
		blobs:       blobs,
		logger:      logger,
	}
}

// Response represents the health check response.
type Response struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services,omitempty"`
}

// Routes returns a chi.Router with /, /ready and /live.
func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.Check)
	r.Get("/ready", h.Ready)
	r.Get("/live", h.Live)
	return r
}

// MountRootEndpoints adds the Kubernetes probe paths to the root router.
func MountRootEndpoints(r chi.Router, h *Handler) {
	r.Get("/ready", h.Ready)
	r.Get("/readyz", h.Ready)
	r.Get("/livez", h.Live)
}

// Check pings MongoDB and the blob store. A storage outage degrades the
// service but downloads are the only thing that break, so only Mongo
// failing turns the response into a 503.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	resp := Response{Status: "ok", Services: map[string]string{}}
	code := http.StatusOK

	if err := h.mongoClient.Ping(ctx, readpref.Primary()); err != nil {
		h.logger.Warn("health check: mongodb ping failed", zap.Error(err))
		resp.Status = "down"
		resp.Services["mongodb"] = "unavailable"
		code = http.StatusServiceUnavailable
	} else {
		resp.Services["mongodb"] = "ok"
	}

	if h.blobs != nil {
		if err := blobstore.Ping(ctx, h.blobs); err != nil {
			h.logger.Warn("health check: blob store ping failed", zap.Error(err))
			resp.Services["storage"] = "unavailable"
			if resp.Status == "ok" {
				resp.Status = "degraded"
			}
		} else {
			resp.Services["storage"] = "ok"
		}
	}

	jsonutil.JSON(w, code, resp)
}

// Ready reports whether requests can be served.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	if err := h.mongoClient.Ping(ctx, readpref.Primary()); err != nil {
		h.logger.Warn("readiness check failed", zap.Error(err))
		jsonutil.JSON(w, http.StatusServiceUnavailable, Response{Status: "not ready"})
		return
	}
	jsonutil.OK(w, Response{Status: "ready"})
}

// Live always succeeds while the process is serving.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	jsonutil.OK(w, Response{Status: "alive"})
}
