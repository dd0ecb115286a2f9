package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splax/taskhub/internal/repository/memory"
	"github.com/splax/taskhub/internal/service/analytics"
	"github.com/splax/taskhub/internal/service/auth"
	"github.com/splax/taskhub/internal/service/membership"
	"github.com/splax/taskhub/internal/service/notification"
	"github.com/splax/taskhub/internal/service/project"
	"github.com/splax/taskhub/internal/service/task"
	"github.com/splax/taskhub/internal/service/template"
	"github.com/splax/taskhub/internal/service/user"
)

func newTestRouter(t *testing.T, dbHealth func(context.Context) error) *Router {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.New()
	notify := notification.New(store, logger, notification.Config{})
	router := NewRouter(logger, Services{
		Auth:          auth.New(store, logger, auth.Config{Secret: "test-secret", TokenTTL: time.Hour}),
		Projects:      project.New(store, notify, logger),
		Members:       membership.New(store, notify, logger),
		Tasks:         task.New(store, notify, logger),
		Users:         user.New(store, logger),
		Analytics:     analytics.New(store, logger),
		Notifications: notify,
		Templates:     template.New(store, notify, logger),
	}, NewMemoryRateLimiter(), dbHealth)
	t.Cleanup(router.Close)
	return router
}

type client struct {
	t      *testing.T
	router http.Handler
	token  string
}

func (c client) do(method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	rec := httptest.NewRecorder()
	c.router.ServeHTTP(rec, req)
	var decoded map[string]any
	if rec.Body.Len() > 0 && rec.Body.Bytes()[0] == '{' {
		require.NoError(c.t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func register(t *testing.T, router http.Handler, email, first string) (client, string) {
	t.Helper()
	rec, body := client{t: t, router: router}.do(http.MethodPost, "/api/auth/register", map[string]string{
		"email":     email,
		"password":  "secret123",
		"firstName": first,
		"lastName":  "Tester",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	u := body["user"].(map[string]any)
	return client{t: t, router: router, token: token}, u["id"].(string)
}

func TestProjectVisibilityAndAssignmentFlow(t *testing.T) {
	router := newTestRouter(t, nil)
	alice, _ := register(t, router, "alice@example.com", "Alice")
	bob, bobID := register(t, router, "bob@example.com", "Bob")

	rec, created := alice.do(http.MethodPost, "/api/projects", map[string]any{"name": "Launch", "startDate": "2025-01-01"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	projectID := created["id"].(string)
	assert.Equal(t, "planning", created["status"])
	assert.Equal(t, "medium", created["priority"])

	rec, body := bob.do(http.MethodGet, "/api/projects/"+projectID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", body["code"])
	rec, body = bob.do(http.MethodGet, "/api/tasks?projectId="+projectID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", body["code"])
	rec, body = bob.do(http.MethodDelete, "/api/projects/"+projectID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", body["code"])

	rec, body = alice.do(http.MethodPost, "/api/tasks", map[string]any{"projectId": projectID, "title": "Ship", "assigneeId": bobID})
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Equal(t, "validation_failed", body["code"])
	fields := body["fields"].(map[string]any)
	assert.Contains(t, fields, "assigneeId")

	rec, _ = alice.do(http.MethodPost, "/api/projects/"+projectID+"/members", map[string]any{"userId": bobID, "role": "member"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, body = alice.do(http.MethodPost, "/api/tasks", map[string]any{"projectId": projectID, "title": "Ship", "assigneeId": bobID, "dueDate": "2025-02-01"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, bobID, body["assigneeId"])
	assert.Equal(t, "todo", body["status"])

	rec, body = bob.do(http.MethodGet, "/api/projects/"+projectID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["totalTasks"])

	rec, body = bob.do(http.MethodGet, "/api/notifications/unread-count", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, body["count"])

	rec, body = bob.do(http.MethodPut, "/api/projects/"+projectID, map[string]any{"name": "Renamed"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", body["code"])

	rec, _ = bob.do(http.MethodDelete, "/api/projects/"+projectID, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, own := bob.do(http.MethodPost, "/api/tasks", map[string]any{"projectId": projectID, "title": "Mine", "assigneeId": bobID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, body = alice.do(http.MethodDelete, "/api/projects/"+projectID+"/members/"+bobID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, body["unassignedTaskIds"], own["id"])

	rec, body = alice.do(http.MethodGet, "/api/tasks/"+own["id"].(string), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, body["assigneeId"])

	rec, _ = bob.do(http.MethodGet, "/api/projects/"+projectID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = bob.do(http.MethodGet, "/api/tasks/"+own["id"].(string), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRemoveMemberReportsUnassignedTasks(t *testing.T) {
	router := newTestRouter(t, nil)
	alice, _ := register(t, router, "alice@example.com", "Alice")
	_, bobID := register(t, router, "bob@example.com", "Bob")

	_, created := alice.do(http.MethodPost, "/api/projects", map[string]any{"name": "Launch"})
	projectID := created["id"].(string)
	rec, _ := alice.do(http.MethodPost, "/api/projects/"+projectID+"/members", map[string]any{"userId": bobID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	_, tsk := alice.do(http.MethodPost, "/api/tasks", map[string]any{"projectId": projectID, "title": "Ship", "assigneeId": bobID})

	rec, body := alice.do(http.MethodDelete, "/api/projects/"+projectID+"/members/"+bobID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []any{tsk["id"]}, body["unassignedTaskIds"])

	rec, body = alice.do(http.MethodGet, "/api/tasks/"+tsk["id"].(string), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, body["assigneeId"])
}

func TestUnassignWithExplicitNull(t *testing.T) {
	router := newTestRouter(t, nil)
	alice, aliceID := register(t, router, "alice@example.com", "Alice")
	_, created := alice.do(http.MethodPost, "/api/projects", map[string]any{"name": "Launch"})
	_, tsk := alice.do(http.MethodPost, "/api/tasks", map[string]any{"projectId": created["id"], "title": "Ship", "assigneeId": aliceID})
	require.Equal(t, aliceID, tsk["assigneeId"])

	rec, body := alice.do(http.MethodPut, "/api/tasks/"+tsk["id"].(string), map[string]any{"assigneeId": nil})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Nil(t, body["assigneeId"])
	assert.Equal(t, "Ship", body["title"])
}

func TestAuthFailures(t *testing.T) {
	router := newTestRouter(t, nil)
	anon := client{t: t, router: router}

	rec, body := anon.do(http.MethodGet, "/api/projects", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthenticated", body["code"])
	assert.NotEmpty(t, body["error"])

	bogus := client{t: t, router: router, token: "not-a-jwt"}
	rec, body = bogus.do(http.MethodGet, "/api/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "token_invalid", body["code"])

	register(t, router, "alice@example.com", "Alice")
	rec, body = anon.do(http.MethodPost, "/api/auth/login", map[string]string{"email": "alice@example.com", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthenticated", body["code"])

	rec, body = anon.do(http.MethodPost, "/api/auth/register", map[string]string{"email": "ALICE@example.com", "password": "secret123", "firstName": "A", "lastName": "B"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", body["code"])
}

func TestMalformedInputIsValidationError(t *testing.T) {
	router := newTestRouter(t, nil)
	alice, _ := register(t, router, "alice@example.com", "Alice")

	req := httptest.NewRequest(http.MethodPost, "/api/projects", bytes.NewBufferString("{not json"))
	req.Header.Set("Authorization", "Bearer "+alice.token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body := alice.do(http.MethodGet, "/api/projects?page=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["fields"], "page")

	rec, body = alice.do(http.MethodGet, "/api/projects?page=92233720368547760&limit=100", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["fields"], "page")

	rec, body = alice.do(http.MethodGet, "/api/tasks?sortBy=password", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["fields"], "sortBy")
}

func TestTemplatesCatalogue(t *testing.T) {
	router := newTestRouter(t, nil)
	alice, _ := register(t, router, "alice@example.com", "Alice")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/templates", nil)
	req.Header.Set("Authorization", "Bearer "+alice.token)
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 4)

	rec2, body := alice.do(http.MethodPost, "/api/templates/web-development/create", map[string]any{"name": "Site", "startDate": "2025-03-03"})
	require.Equal(t, http.StatusCreated, rec2.Code, rec2.Body.String())
	assert.Len(t, body["tasks"], 7)
	projectID := body["project"].(map[string]any)["id"].(string)

	rec2, body = alice.do(http.MethodGet, "/api/templates/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec2.Code)
	assert.Equal(t, "not_found", body["code"])

	rec2, body = alice.do(http.MethodPost, "/api/templates/custom", map[string]any{"projectId": projectID, "name": "Kit", "description": "Plan"})
	assert.Equal(t, http.StatusForbidden, rec2.Code, "capturing a template is admin only")
	assert.Equal(t, "forbidden", body["code"])
}

func TestRegisterRateLimitedPerIP(t *testing.T) {
	router := newTestRouter(t, nil)
	anon := client{t: t, router: router}
	var last *httptest.ResponseRecorder
	for i := 0; i <= policyRegister.limit; i++ {
		last, _ = anon.do(http.MethodPost, "/api/auth/register", map[string]string{"email": "bad"})
	}
	assert.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.Equal(t, "0", last.Header().Get("X-RateLimit-Remaining"))
}

func TestHealthzAndFallbacks(t *testing.T) {
	router := newTestRouter(t, func(context.Context) error { return nil })
	anon := client{t: t, router: router}

	rec, body := anon.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])

	rec, body = anon.do(http.MethodGet, "/api/nowhere", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", body["code"])

	rec, _ = anon.do(http.MethodPatch, "/api/projects", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	down := newTestRouter(t, func(context.Context) error { return assert.AnError })
	rec, body = client{t: t, router: down}.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", body["status"])
}
