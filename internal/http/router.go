package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/splax/taskhub/internal/service/analytics"
	"github.com/splax/taskhub/internal/service/auth"
	"github.com/splax/taskhub/internal/service/membership"
	"github.com/splax/taskhub/internal/service/notification"
	"github.com/splax/taskhub/internal/service/project"
	"github.com/splax/taskhub/internal/service/task"
	"github.com/splax/taskhub/internal/service/template"
	"github.com/splax/taskhub/internal/service/user"
)

// Services bundles the application services the router exposes.
type Services struct {
	Auth          auth.Service
	Projects      project.Service
	Members       membership.Service
	Tasks         task.Service
	Users         user.Service
	Analytics     analytics.Service
	Notifications notification.Service
	Templates     template.Service
}

// Router wires HTTP endpoints to services.
type Router struct {
	router        *mux.Router
	logger        *slog.Logger
	auth          auth.Service
	projects      project.Service
	members       membership.Service
	tasks         task.Service
	users         user.Service
	analytics     analytics.Service
	notifications notification.Service
	templates     template.Service
	limiter       RateLimiter
	dbHealth      func(context.Context) error

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	rateLimitHits      *prometheus.CounterVec
}

const healthCheckTimeout = 2 * time.Second

// NewRouter assembles routes with dependencies. A nil limiter falls back to
// the in-memory one.
func NewRouter(logger *slog.Logger, svc Services, limiter RateLimiter, dbHealth func(context.Context) error) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		router:        mux.NewRouter(),
		logger:        logger,
		auth:          svc.Auth,
		projects:      svc.Projects,
		members:       svc.Members,
		tasks:         svc.Tasks,
		users:         svc.Users,
		analytics:     svc.Analytics,
		notifications: svc.Notifications,
		templates:     svc.Templates,
		limiter:       limiter,
		dbHealth:      dbHealth,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to the underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) handle(path string, next http.HandlerFunc, methods ...string) {
	r.router.HandleFunc(path, r.audit(next)).Methods(methods...)
}

func (r *Router) read(next http.HandlerFunc) http.HandlerFunc {
	return r.requireAuth(r.limited(policyRead, next))
}

func (r *Router) write(next http.HandlerFunc) http.HandlerFunc {
	return r.requireAuth(r.limited(policyWrite, next))
}

func (r *Router) register() {
	const (
		get  = http.MethodGet
		post = http.MethodPost
		put  = http.MethodPut
		del  = http.MethodDelete
	)
	r.handle("/healthz", r.handleHealthz, get)
	r.router.Handle("/metrics", promhttp.Handler()).Methods(get)

	r.handle("/api/auth/register", r.limited(policyRegister, r.handleRegister), post)
	r.handle("/api/auth/login", r.limited(policyLogin, r.handleLogin), post)
	r.handle("/api/auth/me", r.read(r.handleMe), get)
	r.handle("/api/auth/password", r.write(r.handleChangePassword), put)

	r.handle("/api/projects", r.read(r.handleListProjects), get)
	r.handle("/api/projects", r.write(r.handleCreateProject), post)
	r.handle("/api/projects/{id}", r.read(r.handleGetProject), get)
	r.handle("/api/projects/{id}", r.write(r.handleUpdateProject), put)
	r.handle("/api/projects/{id}", r.write(r.handleDeleteProject), del)
	r.handle("/api/projects/{id}/progress", r.read(r.handleProjectProgress), get)
	r.handle("/api/projects/{id}/members", r.read(r.handleListMembers), get)
	r.handle("/api/projects/{id}/members", r.write(r.handleAddMember), post)
	r.handle("/api/projects/{id}/members/{userId}", r.write(r.handleChangeMemberRole), put)
	r.handle("/api/projects/{id}/members/{userId}", r.write(r.handleRemoveMember), del)

	r.handle("/api/tasks", r.read(r.handleListTasks), get)
	r.handle("/api/tasks", r.write(r.handleCreateTask), post)
	r.handle("/api/tasks/{id}", r.read(r.handleGetTask), get)
	r.handle("/api/tasks/{id}", r.write(r.handleUpdateTask), put)
	r.handle("/api/tasks/{id}", r.write(r.handleDeleteTask), del)
	r.handle("/api/tasks/{id}/comments", r.read(r.handleListComments), get)
	r.handle("/api/tasks/{id}/comments", r.write(r.handleAddComment), post)

	r.handle("/api/users", r.read(r.handleListUsers), get)
	r.handle("/api/users/search", r.read(r.handleSearchUsers), get)
	r.handle("/api/users/invite", r.write(r.handleInviteUser), post)
	r.handle("/api/users/{id}", r.read(r.handleGetUser), get)
	r.handle("/api/users/{id}", r.write(r.handleUpdateUser), put)
	r.handle("/api/users/{id}", r.write(r.handleDeactivateUser), del)
	r.handle("/api/users/{id}/projects", r.read(r.handleUserProjects), get)

	r.handle("/api/analytics/dashboard", r.read(r.handleDashboard), get)
	r.handle("/api/analytics/team", r.read(r.handleTeamAnalytics), get)
	r.handle("/api/analytics/overview", r.read(r.handleOverview), get)
	r.handle("/api/analytics/activity", r.read(r.handleActivity), get)
	r.handle("/api/analytics/projects/{id}", r.read(r.handleProjectAnalytics), get)

	r.handle("/api/notifications", r.read(r.handleListNotifications), get)
	r.handle("/api/notifications/unread-count", r.read(r.handleUnreadCount), get)
	r.handle("/api/notifications/mark-all-read", r.write(r.handleMarkAllRead), put)
	r.handle("/api/notifications/read", r.write(r.handleDeleteRead), del)
	r.handle("/api/notifications/{id}/read", r.write(r.handleMarkRead), put)
	r.handle("/api/notifications/{id}", r.write(r.handleDeleteNotification), del)

	r.handle("/api/templates", r.read(r.handleListTemplates), get)
	r.handle("/api/templates/custom", r.write(r.handleCaptureTemplate), post)
	r.handle("/api/templates/{id}", r.read(r.handleGetTemplate), get)
	r.handle("/api/templates/{id}/create", r.write(r.handleCreateFromTemplate), post)

	r.router.NotFoundHandler = r.audit(r.notFound)
	r.router.MethodNotAllowedHandler = r.audit(r.methodNotAllowed)
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

func (r *Router) methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
}

func (r *Router) notFound(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusNotFound, "not_found", "not found")
}
