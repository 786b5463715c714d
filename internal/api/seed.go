package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/OriginalCade/todo-app/internal/model"
	"github.com/OriginalCade/todo-app/internal/pkg/apperr"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// SeedDemoData creates a local test account with a handful of sample todos.
// It is a no-op when the account already exists.
func (s *Server) SeedDemoData(ctx context.Context) error {
	const (
		demoEmail    = "test@example.com"
		demoPassword = "password123"
	)

	users := gormUserStore{db: s.db}
	if _, err := users.FindByEmail(ctx, demoEmail); err == nil {
		return nil
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(demoPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user := &model.User{
		ID:       uuid.NewString(),
		Email:    demoEmail,
		Password: string(hash),
	}
	if err := users.Create(ctx, user); err != nil {
		return err
	}

	statuses := []string{model.StatusTodo, model.StatusInProgress, model.StatusDone}
	for i := 1; i <= 5; i++ {
		due := time.Now().AddDate(0, 0, i).Format("2006-01-02")
		todo := &model.Todo{
			ID:          uuid.NewString(),
			UserID:      user.ID,
			Title:       fmt.Sprintf("Sample Todo %d", i),
			Description: fmt.Sprintf("This is a sample todo number %d", i),
			Status:      statuses[i%len(statuses)],
			DueDate:     &due,
		}
		if err := s.todos.Create(ctx, todo); err != nil {
			return err
		}
	}

	s.listCache.Invalidate(ctx, user.ID)
	if s.logger != nil {
		s.logger.Info("demo data seeded",
			slog.String("email", demoEmail),
			slog.Int("todos", 5),
		)
	}
	return nil
}
