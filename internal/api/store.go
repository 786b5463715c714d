package api

import (
	"context"
	"errors"

	"github.com/OriginalCade/todo-app/internal/model"
	"github.com/OriginalCade/todo-app/internal/pkg/apperr"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// TodoQuery narrows and orders a user's todo list. SortColumn is always one
// of the fixed columns from the handler's allow-list; raw client input never
// reaches it.
type TodoQuery struct {
	Status     string
	Search     string
	SortColumn string
	Desc       bool
}

// TodoStore persists todos. Every method takes the owner's user id and
// treats records owned by someone else exactly like absent ones.
type TodoStore interface {
	List(ctx context.Context, userID string, q TodoQuery) ([]model.Todo, error)
	Create(ctx context.Context, todo *model.Todo) error
	Get(ctx context.Context, userID, id string) (*model.Todo, error)
	Update(ctx context.Context, userID, id string, updates map[string]interface{}) (*model.Todo, error)
	Delete(ctx context.Context, userID, id string) error
}

type gormTodoStore struct {
	db *gorm.DB
}

func (s gormTodoStore) List(ctx context.Context, userID string, q TodoQuery) ([]model.Todo, error) {
	var todos []model.Todo
	if err := applyTodoQuery(s.db.WithContext(ctx), userID, q).Find(&todos).Error; err != nil {
		return nil, err
	}
	return todos, nil
}

// applyTodoQuery composes the owner scope, filters and ordering for a list
// query onto db.
func applyTodoQuery(db *gorm.DB, userID string, q TodoQuery) *gorm.DB {
	db = db.Where("user_id = ?", userID)
	if q.Status != "" {
		db = db.Where("status = ?", q.Status)
	}
	if q.Search != "" {
		db = db.Where("title LIKE ?", "%"+q.Search+"%")
	}

	dir := "ASC"
	if q.Desc {
		dir = "DESC"
	}
	if q.SortColumn == "due_date" {
		// Rows without a due date trail regardless of direction.
		db = db.Order("due_date IS NULL")
	}
	return db.Order(q.SortColumn + " " + dir).Order("id ASC")
}

func (s gormTodoStore) Create(ctx context.Context, todo *model.Todo) error {
	return s.db.WithContext(ctx).Create(todo).Error
}

func (s gormTodoStore) Get(ctx context.Context, userID, id string) (*model.Todo, error) {
	var todo model.Todo
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&todo).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &todo, nil
}

func (s gormTodoStore) Update(ctx context.Context, userID, id string, updates map[string]interface{}) (*model.Todo, error) {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return nil, err
	}
	err := s.db.WithContext(ctx).Model(&model.Todo{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(updates).Error
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, userID, id)
}

func (s gormTodoStore) Delete(ctx context.Context, userID, id string) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&model.Todo{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

type gormUserStore struct {
	db *gorm.DB
}

func (s gormUserStore) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s gormUserStore) Create(ctx context.Context, user *model.User) error {
	err := s.db.WithContext(ctx).Create(user).Error
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return &apperr.ConflictError{Field: "email", Message: "email already exists"}
	}
	return err
}
