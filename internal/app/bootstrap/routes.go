// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"
	"time"

	auditlogfeature "github.com/dalemusser/unigrading/internal/app/features/auditlog"
	errorsfeature "github.com/dalemusser/unigrading/internal/app/features/errors"
	healthfeature "github.com/dalemusser/unigrading/internal/app/features/health"
	libraryfeature "github.com/dalemusser/unigrading/internal/app/features/library"
	loginfeature "github.com/dalemusser/unigrading/internal/app/features/login"
	logoutfeature "github.com/dalemusser/unigrading/internal/app/features/logout"
	registerfeature "github.com/dalemusser/unigrading/internal/app/features/register"
	statusfeature "github.com/dalemusser/unigrading/internal/app/features/status"
	subjectsfeature "github.com/dalemusser/unigrading/internal/app/features/subjects"
	systemusersfeature "github.com/dalemusser/unigrading/internal/app/features/systemusers"
	"github.com/dalemusser/unigrading/internal/app/store/audit"
	"github.com/dalemusser/unigrading/internal/app/store/ratelimit"
	userstore "github.com/dalemusser/unigrading/internal/app/store/users"
	"github.com/dalemusser/unigrading/internal/app/system/auditlog"
	"github.com/dalemusser/unigrading/internal/app/system/auth"
	"github.com/dalemusser/unigrading/internal/app/system/coursetree"
	"github.com/dalemusser/unigrading/internal/app/system/jsonutil"
	"github.com/dalemusser/unigrading/internal/app/system/metrics"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/csrf"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// Startup have completed. Every feature speaks JSON; browsers obtain a CSRF
// token from GET /csrf and send it back in the X-CSRF-Token header.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	// Fresh user data on each request, so role changes and disabled
	// accounts take effect immediately.
	sessionMgr.SetUserFetcher(userstore.NewFetcher(deps.MongoDatabase, logger))

	errLog := errorsfeature.NewErrorLogger(logger)
	svc := coursetree.New(deps.MongoDatabase, deps.Blobs, logger)
	auditLogger := auditlog.New(audit.New(deps.MongoDatabase), logger, auditlog.Config{
		Auth:    appCfg.AuditLogAuth,
		Admin:   appCfg.AuditLogAdmin,
		Library: appCfg.AuditLogLibrary,
	})

	r := chi.NewRouter()

	// ─────────────────────────────────────────────────────────────────────────────
	// Global Middleware (applies to ALL routes)
	// ─────────────────────────────────────────────────────────────────────────────

	r.Use(chimw.RequestID)

	// Long enough for a maximum-size upload on a slow link.
	r.Use(chimw.Timeout(2 * time.Minute))

	// CORS must be early in the chain to handle preflight requests.
	r.Use(middleware.CORSFromConfig(coreCfg))
	r.Use(middleware.SecurityHeadersFromConfig(coreCfg))

	r.Use(sessionMgr.LoadSessionUser)
	r.Use(csrfMiddleware(appCfg, secure, logger))

	r.NotFound(errorsfeature.NotFound)
	r.MethodNotAllowed(errorsfeature.MethodNotAllowed)

	// ─────────────────────────────────────────────────────────────────────────────
	// Routes
	// ─────────────────────────────────────────────────────────────────────────────

	// Probes and metrics
	healthHandler := healthfeature.NewHandler(deps.MongoClient, deps.Blobs, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))
	healthfeature.MountRootEndpoints(r, healthHandler)
	r.Handle("/metrics", metrics.Handler())

	r.Get("/csrf", func(w http.ResponseWriter, req *http.Request) {
		jsonutil.OK(w, map[string]string{"csrf_token": csrf.Token(req)})
	})

	// Authentication
	var rateLimitStore *ratelimit.Store
	if appCfg.RateLimitEnabled {
		rateLimitStore = ratelimit.New(
			deps.MongoDatabase,
			appCfg.RateLimitLoginAttempts,
			appCfg.RateLimitLoginWindow,
			appCfg.RateLimitLoginLockout,
		)
	}
	loginHandler := loginfeature.NewHandler(deps.MongoDatabase, sessionMgr, errLog, auditLogger, rateLimitStore, logger)
	r.Mount("/login", loginfeature.Routes(loginHandler))

	registerHandler := registerfeature.NewHandler(deps.MongoDatabase, sessionMgr, errLog, auditLogger, logger)
	r.Mount("/register", registerfeature.Routes(registerHandler))

	logoutHandler := logoutfeature.NewHandler(sessionMgr, auditLogger, logger)
	r.Mount("/logout", logoutfeature.Routes(logoutHandler))

	// Course library
	subjectsHandler := subjectsfeature.NewHandler(svc, errLog, auditLogger, logger)
	r.Mount("/subjects", subjectsfeature.Routes(subjectsHandler, sessionMgr))

	libraryHandler := libraryfeature.NewHandler(svc, errLog, auditLogger, appCfg.MaxUploadMB<<20, logger)
	r.Mount("/categories", libraryfeature.CategoryRoutes(libraryHandler, sessionMgr))
	r.Mount("/files", libraryfeature.FileRoutes(libraryHandler, sessionMgr))

	// Administration
	usersHandler := systemusersfeature.NewHandler(deps.MongoDatabase, svc, errLog, auditLogger, logger)
	r.Mount("/users", systemusersfeature.Routes(usersHandler, sessionMgr))

	statusHandler := statusfeature.NewHandler(deps.MongoDatabase, deps.Blobs, storageBackend(appCfg), statusConfig(coreCfg, appCfg), logger)
	r.Mount("/admin/status", statusfeature.Routes(statusHandler, sessionMgr))

	auditHandler := auditlogfeature.NewHandler(deps.MongoDatabase, errLog, logger)
	r.Mount("/admin/audit", auditlogfeature.Routes(auditHandler, sessionMgr))

	return r, nil
}

// csrfMiddleware protects every state-changing request. Probes and metrics
// are exempt because scrapers and orchestrators carry no session.
func csrfMiddleware(appCfg AppConfig, secure bool, logger *zap.Logger) func(http.Handler) http.Handler {
	csrfOpts := []csrf.Option{
		csrf.Secure(secure),
		csrf.Path("/"),
		csrf.CookieName("unigrading_csrf"),
		csrf.RequestHeader("X-CSRF-Token"),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			logger.Warn("CSRF validation failed",
				zap.String("path", req.URL.Path),
				zap.String("method", req.Method),
				zap.String("reason", csrf.FailureReason(req).Error()),
			)
			jsonutil.Forbidden(w, "CSRF token invalid or missing")
		})),
	}
	if !secure {
		csrfOpts = append(csrfOpts, csrf.TrustedOrigins([]string{
			"localhost:8080",
			"localhost:3000",
			"127.0.0.1:8080",
			"127.0.0.1:3000",
		}))
	}
	if appCfg.SessionDomain != "" {
		csrfOpts = append(csrfOpts, csrf.Domain(appCfg.SessionDomain))
	}
	protect := csrf.Protect([]byte(appCfg.CSRFKey), csrfOpts...)

	return func(next http.Handler) http.Handler {
		protected := protect(next)
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			switch req.URL.Path {
			case "/health", "/ready", "/readyz", "/livez", "/metrics":
				next.ServeHTTP(w, req)
				return
			}
			protected.ServeHTTP(w, req)
		})
	}
}

func storageBackend(appCfg AppConfig) string {
	if appCfg.StorageType == "" {
		return "local"
	}
	return appCfg.StorageType
}

// statusConfig lists the settings shown on the admin status report, with
// secrets masked.
func statusConfig(coreCfg *config.CoreConfig, appCfg AppConfig) []statusfeature.ConfigGroup {
	item, mask := statusfeature.Item, statusfeature.Mask

	var groups []statusfeature.ConfigGroup
	if coreCfg != nil {
		groups = append(groups, statusfeature.ConfigGroup{
			Name: "Environment",
			Items: []statusfeature.ConfigItem{
				item("env", coreCfg.Env),
				item("log_level", coreCfg.LogLevel),
				item("http_port", coreCfg.HTTP.HTTPPort),
				item("use_https", coreCfg.HTTP.UseHTTPS),
				item("max_request_body_bytes", coreCfg.MaxRequestBodyBytes),
			},
		})
	}

	return append(groups,
		statusfeature.ConfigGroup{
			Name: "Database",
			Items: []statusfeature.ConfigItem{
				item("mongo_uri", mask(appCfg.MongoURI)),
				item("mongo_database", appCfg.MongoDatabase),
				item("mongo_max_pool_size", appCfg.MongoMaxPoolSize),
				item("mongo_min_pool_size", appCfg.MongoMinPoolSize),
			},
		},
		statusfeature.ConfigGroup{
			Name: "Session & Security",
			Items: []statusfeature.ConfigItem{
				item("session_key", mask(appCfg.SessionKey)),
				item("session_name", appCfg.SessionName),
				item("session_domain", appCfg.SessionDomain),
				item("session_max_age", appCfg.SessionMaxAge),
				item("csrf_key", mask(appCfg.CSRFKey)),
				item("rate_limit_enabled", appCfg.RateLimitEnabled),
				item("rate_limit_login_attempts", appCfg.RateLimitLoginAttempts),
				item("rate_limit_login_window", appCfg.RateLimitLoginWindow),
				item("rate_limit_login_lockout", appCfg.RateLimitLoginLockout),
			},
		},
		statusfeature.ConfigGroup{
			Name: "Storage",
			Items: []statusfeature.ConfigItem{
				item("storage_type", storageBackend(appCfg)),
				item("storage_local_path", appCfg.StorageLocalPath),
				item("storage_s3_region", appCfg.StorageS3Region),
				item("storage_s3_bucket", appCfg.StorageS3Bucket),
				item("storage_s3_prefix", appCfg.StorageS3Prefix),
				item("storage_cf_url", appCfg.StorageCFURL),
				item("minio_endpoint", appCfg.MinioEndpoint),
				item("minio_bucket", appCfg.MinioBucket),
				item("minio_region", appCfg.MinioRegion),
				item("minio_access_key", mask(appCfg.MinioAccessKey)),
				item("max_upload_mb", appCfg.MaxUploadMB),
				item("blob_scan_interval", appCfg.BlobScanInterval),
			},
		},
		statusfeature.ConfigGroup{
			Name: "Audit Log",
			Items: []statusfeature.ConfigItem{
				item("audit_log_auth", appCfg.AuditLogAuth),
				item("audit_log_admin", appCfg.AuditLogAdmin),
				item("audit_log_library", appCfg.AuditLogLibrary),
			},
		},
		statusfeature.ConfigGroup{
			Name: "Admin Seeding",
			Items: []statusfeature.ConfigItem{
				item("seed_admin_login", appCfg.SeedAdminLogin),
				item("seed_admin_name", appCfg.SeedAdminName),
			},
		},
	)
}
