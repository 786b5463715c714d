package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/OriginalCade/todo-app/internal/api/auth"
	"github.com/OriginalCade/todo-app/internal/api/middleware"
	"github.com/OriginalCade/todo-app/internal/config"
	"github.com/OriginalCade/todo-app/internal/model"
	"github.com/OriginalCade/todo-app/internal/pkg/apperr"
	"github.com/OriginalCade/todo-app/internal/pkg/cache"
	"github.com/OriginalCade/todo-app/internal/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// Server wires the HTTP surface: router, stores, session auth and the list
// cache. Stores are constructed once here and injected; handlers never reach
// for a global database handle.
type Server struct {
	cfg       *config.Config
	logger    *slog.Logger
	db        *gorm.DB
	rdb       *redis.Client
	router    *gin.Engine
	auth      *auth.Handler
	todos     TodoStore
	listCache *cache.ListCache
}

// NewServer connects MySQL (with auto-migration) and redis, then builds the
// gin engine and routes. The caller is expected to have validated cfg; the
// signing secret must already be present.
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := gorm.Open(mysql.Open(cfg.MySQL.DSN), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&model.User{}, &model.Todo{}); err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	metrics.Init()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Metrics())

	users := gormUserStore{db: db}
	s := &Server{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		rdb:       rdb,
		router:    r,
		auth:      auth.NewHandler(users, cfg.Security.JWTSecret, cfg.App.Env == "prod", logger),
		todos:     gormTodoStore{db: db},
		listCache: cache.NewListCache(rdb, cfg.App.CacheTTL),
	}
	s.registerRoutes()
	return s, nil
}

// Router returns the HTTP handler.
func (s *Server) Router() http.Handler {
	return s.router
}

// Close releases the database and cache connections.
func (s *Server) Close() error {
	var firstErr error
	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			firstErr = err
		}
	}
	if s.db != nil {
		sqlDB, err := s.db.DB()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
		} else if closeErr := sqlDB.Close(); closeErr != nil && firstErr == nil {
			firstErr = closeErr
		}
	}
	return firstErr
}

func (s *Server) registerRoutes() {
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/healthz", s.handleHealthz)

	authRoutes := s.router.Group("/auth")
	authRoutes.POST("/signup", s.auth.Signup)
	authRoutes.POST("/login", s.auth.Login)
	authRoutes.POST("/logout", s.auth.Logout)

	todos := s.router.Group("/todos")
	todos.Use(middleware.SessionAuth(s.cfg.Security.JWTSecret, s.logger))
	todos.GET("", s.handleListTodos)
	todos.POST("", s.handleCreateTodo)
	todos.GET("/:id", s.handleGetTodo)
	todos.PATCH("/:id", s.handleUpdateTodo)
	todos.DELETE("/:id", s.handleDeleteTodo)
}

func (s *Server) handleHealthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if s.db == nil || s.rdb == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}

	var one int
	if err := s.db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error; err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type todoResponse struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	DueDate     *string   `json:"due_date"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type listTodosResponse struct {
	Items []todoResponse `json:"items"`
}

func toTodoResponse(t *model.Todo) todoResponse {
	return todoResponse{
		ID:          t.ID,
		UserID:      t.UserID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		DueDate:     t.DueDate,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// sortColumns is the allow-list mapping the sortBy query parameter onto
// order-by columns. Anything outside it is rejected, never interpolated.
var sortColumns = map[string]string{
	"":        "created_at",
	"created": "created_at",
	"due":     "due_date",
}

// maxDueDateLen matches the due_date column width.
const maxDueDateLen = 64

type createTodoRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	DueDate     *string `json:"due_date"`
	Status      string  `json:"status"`
}

type updateTodoRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	DueDate     *string `json:"due_date"`
}

// handleListTodos returns the caller's todos, filtered, searched and sorted.
//
// GET /todos?status=&search=&sortBy=created|due&sortOrder=asc|desc
func (s *Server) handleListTodos(c *gin.Context) {
	userID := getUserID(c)
	ctx := c.Request.Context()

	status := c.Query("status")
	if status != "" && !model.ValidStatus(status) {
		apperr.Write(c, s.logger, &apperr.ValidationError{Message: "invalid status"})
		return
	}
	column, ok := sortColumns[c.Query("sortBy")]
	if !ok {
		apperr.Write(c, s.logger, &apperr.ValidationError{Message: "invalid sortBy"})
		return
	}

	payload, cacheKey, hit := s.listCache.Get(ctx, userID, c.Request.URL.RawQuery)
	if hit {
		metrics.ListCacheHitsTotal.Inc()
		c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
		return
	}
	metrics.ListCacheMissTotal.Inc()

	todos, err := s.todos.List(ctx, userID, TodoQuery{
		Status:     status,
		Search:     c.Query("search"),
		SortColumn: column,
		Desc:       c.Query("sortOrder") == "desc",
	})
	if err != nil {
		apperr.Write(c, s.logger, err)
		return
	}

	items := make([]todoResponse, 0, len(todos))
	for i := range todos {
		items = append(items, toTodoResponse(&todos[i]))
	}
	metrics.TodoOpsTotal.WithLabelValues("list").Inc()

	payload, err = json.Marshal(listTodosResponse{Items: items})
	if err != nil {
		apperr.Write(c, s.logger, err)
		return
	}
	s.listCache.Set(ctx, cacheKey, payload)
	c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
}

// handleCreateTodo validates and persists a new todo for the caller.
//
// POST /todos
func (s *Server) handleCreateTodo(c *gin.Context) {
	userID := getUserID(c)

	var req createTodoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Write(c, s.logger, &apperr.ValidationError{Message: "invalid request body"})
		return
	}

	status := req.Status
	if status == "" {
		status = model.StatusTodo
	}

	// Limits are counted in characters, not bytes.
	var fields []apperr.FieldError
	if req.Title == "" || utf8.RuneCountInString(req.Title) > 120 {
		fields = append(fields, apperr.FieldError{Field: "title", Message: "title required, max 120 chars"})
	}
	if utf8.RuneCountInString(req.Description) > 2000 {
		fields = append(fields, apperr.FieldError{Field: "description", Message: "max 2000 chars"})
	}
	if !model.ValidStatus(status) {
		fields = append(fields, apperr.FieldError{Field: "status", Message: "invalid status"})
	}
	if req.DueDate != nil && utf8.RuneCountInString(*req.DueDate) > maxDueDateLen {
		fields = append(fields, apperr.FieldError{Field: "due_date", Message: "max 64 chars"})
	}
	if len(fields) > 0 {
		apperr.Write(c, s.logger, &apperr.ValidationError{Fields: fields})
		return
	}

	todo := &model.Todo{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       req.Title,
		Description: req.Description,
		Status:      status,
		DueDate:     req.DueDate,
	}
	if err := s.todos.Create(c.Request.Context(), todo); err != nil {
		apperr.Write(c, s.logger, err)
		return
	}

	s.listCache.Invalidate(c.Request.Context(), userID)
	metrics.TodoOpsTotal.WithLabelValues("create").Inc()
	c.JSON(http.StatusCreated, toTodoResponse(todo))
}

// handleGetTodo returns one of the caller's todos.
//
// GET /todos/:id
func (s *Server) handleGetTodo(c *gin.Context) {
	todo, err := s.todos.Get(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		apperr.Write(c, s.logger, err)
		return
	}
	metrics.TodoOpsTotal.WithLabelValues("get").Inc()
	c.JSON(http.StatusOK, toTodoResponse(todo))
}

// handleUpdateTodo applies a partial update. Supplied fields pass the same
// checks as create and are mapped through a fixed column allow-list; the
// updated timestamp always advances.
//
// PATCH /todos/:id
func (s *Server) handleUpdateTodo(c *gin.Context) {
	userID := getUserID(c)

	var req updateTodoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Write(c, s.logger, &apperr.ValidationError{Message: "invalid request body"})
		return
	}

	updates := map[string]interface{}{}
	var fields []apperr.FieldError
	if req.Title != nil {
		if *req.Title == "" || utf8.RuneCountInString(*req.Title) > 120 {
			fields = append(fields, apperr.FieldError{Field: "title", Message: "title required, max 120 chars"})
		} else {
			updates["title"] = *req.Title
		}
	}
	if req.Description != nil {
		if utf8.RuneCountInString(*req.Description) > 2000 {
			fields = append(fields, apperr.FieldError{Field: "description", Message: "max 2000 chars"})
		} else {
			updates["description"] = *req.Description
		}
	}
	if req.Status != nil {
		if !model.ValidStatus(*req.Status) {
			fields = append(fields, apperr.FieldError{Field: "status", Message: "invalid status"})
		} else {
			updates["status"] = *req.Status
		}
	}
	if req.DueDate != nil {
		switch {
		case *req.DueDate == "":
			updates["due_date"] = nil
		case utf8.RuneCountInString(*req.DueDate) > maxDueDateLen:
			fields = append(fields, apperr.FieldError{Field: "due_date", Message: "max 64 chars"})
		default:
			updates["due_date"] = *req.DueDate
		}
	}
	if len(fields) > 0 {
		apperr.Write(c, s.logger, &apperr.ValidationError{Fields: fields})
		return
	}
	if len(updates) == 0 {
		apperr.Write(c, s.logger, &apperr.ValidationError{Message: "no fields to update"})
		return
	}
	updates["updated_at"] = time.Now()

	todo, err := s.todos.Update(c.Request.Context(), userID, c.Param("id"), updates)
	if err != nil {
		apperr.Write(c, s.logger, err)
		return
	}

	s.listCache.Invalidate(c.Request.Context(), userID)
	metrics.TodoOpsTotal.WithLabelValues("update").Inc()
	c.JSON(http.StatusOK, toTodoResponse(todo))
}

// handleDeleteTodo removes one of the caller's todos permanently.
//
// DELETE /todos/:id
func (s *Server) handleDeleteTodo(c *gin.Context) {
	userID := getUserID(c)
	if err := s.todos.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		apperr.Write(c, s.logger, err)
		return
	}

	s.listCache.Invalidate(c.Request.Context(), userID)
	metrics.TodoOpsTotal.WithLabelValues("delete").Inc()
	c.Status(http.StatusNoContent)
}

func getUserID(c *gin.Context) string {
	return c.GetString(middleware.ContextUserID)
}
