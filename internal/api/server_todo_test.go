package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/OriginalCade/todo-app/internal/api/middleware"
	"github.com/OriginalCade/todo-app/internal/config"
	"github.com/OriginalCade/todo-app/internal/model"
	"github.com/OriginalCade/todo-app/internal/pkg/apperr"
	"github.com/OriginalCade/todo-app/internal/pkg/metrics"

	"github.com/gin-gonic/gin"
)

type mockTodoStore struct {
	listFunc   func(ctx context.Context, userID string, q TodoQuery) ([]model.Todo, error)
	createFunc func(ctx context.Context, todo *model.Todo) error
	getFunc    func(ctx context.Context, userID, id string) (*model.Todo, error)
	updateFunc func(ctx context.Context, userID, id string, updates map[string]interface{}) (*model.Todo, error)
	deleteFunc func(ctx context.Context, userID, id string) error

	lastQuery   TodoQuery
	lastUpdates map[string]interface{}
	createCalls int
}

func (m *mockTodoStore) List(ctx context.Context, userID string, q TodoQuery) ([]model.Todo, error) {
	m.lastQuery = q
	if m.listFunc != nil {
		return m.listFunc(ctx, userID, q)
	}
	return nil, nil
}

func (m *mockTodoStore) Create(ctx context.Context, todo *model.Todo) error {
	m.createCalls++
	if m.createFunc != nil {
		return m.createFunc(ctx, todo)
	}
	return nil
}

func (m *mockTodoStore) Get(ctx context.Context, userID, id string) (*model.Todo, error) {
	return m.getFunc(ctx, userID, id)
}

func (m *mockTodoStore) Update(ctx context.Context, userID, id string, updates map[string]interface{}) (*model.Todo, error) {
	m.lastUpdates = updates
	return m.updateFunc(ctx, userID, id, updates)
}

func (m *mockTodoStore) Delete(ctx context.Context, userID, id string) error {
	return m.deleteFunc(ctx, userID, id)
}

func newTestServer(store TodoStore) (*Server, *gin.Engine) {
	gin.SetMode(gin.TestMode)
	metrics.Init()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s := &Server{
		cfg:    &config.Config{},
		logger: logger,
		todos:  store,
	}

	r := gin.New()
	asUser := func(userID string) gin.HandlerFunc {
		return func(c *gin.Context) {
			c.Set(middleware.ContextUserID, userID)
		}
	}
	r.GET("/todos", asUser("u1"), s.handleListTodos)
	r.POST("/todos", asUser("u1"), s.handleCreateTodo)
	r.GET("/todos/:id", asUser("u1"), s.handleGetTodo)
	r.PATCH("/todos/:id", asUser("u1"), s.handleUpdateTodo)
	r.DELETE("/todos/:id", asUser("u1"), s.handleDeleteTodo)
	return s, r
}

func doJSON(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateTodo_Defaults(t *testing.T) {
	store := &mockTodoStore{}
	_, r := newTestServer(store)

	w := doJSON(r, http.MethodPost, "/todos", map[string]string{"title": "Buy milk"})

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if store.createCalls != 1 {
		t.Fatalf("expected create to be called")
	}
	var resp todoResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID == "" {
		t.Fatalf("expected generated id")
	}
	if resp.UserID != "u1" {
		t.Fatalf("owner must come from the session, got %q", resp.UserID)
	}
	if resp.Status != model.StatusTodo {
		t.Fatalf("expected default status %q, got %q", model.StatusTodo, resp.Status)
	}
	if resp.DueDate != nil {
		t.Fatalf("expected null due date, got %v", *resp.DueDate)
	}
}

func TestCreateTodo_CollectsFieldErrors(t *testing.T) {
	store := &mockTodoStore{}
	_, r := newTestServer(store)

	w := doJSON(r, http.MethodPost, "/todos", map[string]string{
		"title":       "",
		"description": strings.Repeat("x", 2001),
		"status":      "bogus",
	})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	var resp struct {
		Errors []apperr.FieldError `json:"errors"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Errors) != 3 {
		t.Fatalf("expected all three violations, got %+v", resp.Errors)
	}
	if store.createCalls != 0 {
		t.Fatalf("store must not be touched on invalid input")
	}
}

func TestCreateTodo_TitleTooLong(t *testing.T) {
	store := &mockTodoStore{}
	_, r := newTestServer(store)

	w := doJSON(r, http.MethodPost, "/todos", map[string]string{"title": strings.Repeat("x", 121)})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestCreateTodo_TitleLimitCountsCharacters(t *testing.T) {
	store := &mockTodoStore{}
	_, r := newTestServer(store)

	// 100 CJK characters are well within the 120-character limit even though
	// they encode to 300 bytes.
	w := doJSON(r, http.MethodPost, "/todos", map[string]string{"title": strings.Repeat("日", 100)})

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 for a 100-character title, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(r, http.MethodPost, "/todos", map[string]string{"title": strings.Repeat("日", 121)})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a 121-character title, got %d", w.Code)
	}
}

func TestCreateTodo_DueDateTooLong(t *testing.T) {
	store := &mockTodoStore{}
	_, r := newTestServer(store)

	w := doJSON(r, http.MethodPost, "/todos", map[string]string{
		"title":    "Buy milk",
		"due_date": strings.Repeat("9", 65),
	})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "due_date") {
		t.Fatalf("expected due_date field error, got %s", w.Body.String())
	}
	if store.createCalls != 0 {
		t.Fatalf("store must not be touched on invalid input")
	}
}

func TestListTodos_InvalidSortBy(t *testing.T) {
	store := &mockTodoStore{}
	_, r := newTestServer(store)

	w := doJSON(r, http.MethodGet, "/todos?sortBy=password", nil)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "invalid sortBy") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestListTodos_InvalidStatus(t *testing.T) {
	store := &mockTodoStore{}
	_, r := newTestServer(store)

	w := doJSON(r, http.MethodGet, "/todos?status=bogus", nil)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestListTodos_SortMapping(t *testing.T) {
	store := &mockTodoStore{}
	_, r := newTestServer(store)

	w := doJSON(r, http.MethodGet, "/todos?sortBy=due&sortOrder=desc&status=done&search=milk", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if store.lastQuery.SortColumn != "due_date" {
		t.Fatalf("expected due_date column, got %q", store.lastQuery.SortColumn)
	}
	if !store.lastQuery.Desc {
		t.Fatalf("expected descending order")
	}
	if store.lastQuery.Status != "done" || store.lastQuery.Search != "milk" {
		t.Fatalf("filters not forwarded: %+v", store.lastQuery)
	}
}

func TestListTodos_EmptyListIsNotNull(t *testing.T) {
	store := &mockTodoStore{}
	_, r := newTestServer(store)

	w := doJSON(r, http.MethodGet, "/todos", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"items":[]`) {
		t.Fatalf("expected empty items array, got %s", w.Body.String())
	}
	if store.lastQuery.SortColumn != "created_at" {
		t.Fatalf("expected default created_at sort, got %q", store.lastQuery.SortColumn)
	}
}

func TestGetTodo_NotFound(t *testing.T) {
	store := &mockTodoStore{
		getFunc: func(ctx context.Context, userID, id string) (*model.Todo, error) {
			return nil, apperr.ErrNotFound
		},
	}
	_, r := newTestServer(store)

	w := doJSON(r, http.MethodGet, "/todos/abc", nil)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "not found") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestGetTodo_OK(t *testing.T) {
	now := time.Now()
	store := &mockTodoStore{
		getFunc: func(ctx context.Context, userID, id string) (*model.Todo, error) {
			return &model.Todo{
				ID: id, UserID: userID, Title: "Buy milk",
				Status: model.StatusTodo, CreatedAt: now, UpdatedAt: now,
			}, nil
		},
	}
	_, r := newTestServer(store)

	w := doJSON(r, http.MethodGet, "/todos/abc", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp todoResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != "abc" || resp.Title != "Buy milk" {
		t.Fatalf("unexpected record: %+v", resp)
	}
}

func TestUpdateTodo_NoFields(t *testing.T) {
	store := &mockTodoStore{}
	_, r := newTestServer(store)

	w := doJSON(r, http.MethodPatch, "/todos/abc", map[string]string{})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "no fields to update") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestUpdateTodo_StatusOnly(t *testing.T) {
	store := &mockTodoStore{
		updateFunc: func(ctx context.Context, userID, id string, updates map[string]interface{}) (*model.Todo, error) {
			return &model.Todo{
				ID: id, UserID: userID, Title: "Buy milk",
				Status: model.StatusDone, UpdatedAt: time.Now(),
			}, nil
		},
	}
	_, r := newTestServer(store)

	w := doJSON(r, http.MethodPatch, "/todos/abc", map[string]string{"status": "done"})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if store.lastUpdates["status"] != model.StatusDone {
		t.Fatalf("expected status in updates, got %+v", store.lastUpdates)
	}
	if _, ok := store.lastUpdates["updated_at"]; !ok {
		t.Fatalf("updated_at must always be refreshed")
	}
	if _, ok := store.lastUpdates["title"]; ok {
		t.Fatalf("unsupplied fields must not be updated")
	}
	if !strings.Contains(w.Body.String(), `"status":"done"`) {
		t.Fatalf("expected post-update record, got %s", w.Body.String())
	}
}

func TestUpdateTodo_InvalidStatus(t *testing.T) {
	store := &mockTodoStore{}
	_, r := newTestServer(store)

	w := doJSON(r, http.MethodPatch, "/todos/abc", map[string]string{"status": "archived"})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestUpdateTodo_NotFound(t *testing.T) {
	store := &mockTodoStore{
		updateFunc: func(ctx context.Context, userID, id string, updates map[string]interface{}) (*model.Todo, error) {
			return nil, apperr.ErrNotFound
		},
	}
	_, r := newTestServer(store)

	w := doJSON(r, http.MethodPatch, "/todos/abc", map[string]string{"status": "done"})

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestUpdateTodo_DueDateTooLong(t *testing.T) {
	store := &mockTodoStore{}
	_, r := newTestServer(store)

	w := doJSON(r, http.MethodPatch, "/todos/abc", map[string]string{"due_date": strings.Repeat("9", 65)})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "due_date") {
		t.Fatalf("expected due_date field error, got %s", w.Body.String())
	}
}

func TestUpdateTodo_ClearDueDate(t *testing.T) {
	store := &mockTodoStore{
		updateFunc: func(ctx context.Context, userID, id string, updates map[string]interface{}) (*model.Todo, error) {
			return &model.Todo{ID: id, UserID: userID, Title: "t", Status: model.StatusTodo}, nil
		},
	}
	_, r := newTestServer(store)

	w := doJSON(r, http.MethodPatch, "/todos/abc", map[string]string{"due_date": ""})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	v, ok := store.lastUpdates["due_date"]
	if !ok || v != nil {
		t.Fatalf("empty due_date must clear the column, got %+v", store.lastUpdates)
	}
}

func TestDeleteTodo_OK(t *testing.T) {
	store := &mockTodoStore{
		deleteFunc: func(ctx context.Context, userID, id string) error { return nil },
	}
	_, r := newTestServer(store)

	w := doJSON(r, http.MethodDelete, "/todos/abc", nil)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
}

func TestDeleteTodo_NotFound(t *testing.T) {
	store := &mockTodoStore{
		deleteFunc: func(ctx context.Context, userID, id string) error { return apperr.ErrNotFound },
	}
	_, r := newTestServer(store)

	w := doJSON(r, http.MethodDelete, "/todos/abc", nil)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
