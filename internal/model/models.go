package model

import "time"

// Todo status values.
const (
	StatusTodo       = "todo"
	StatusInProgress = "in_progress"
	StatusDone       = "done"
)

// ValidStatus reports whether s is one of the known todo statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// User is an account identity. The password column holds a bcrypt hash and
// is never serialized to clients.
type User struct {
	ID        string    `gorm:"type:varchar(36);primaryKey"`
	Email     string    `gorm:"type:varchar(191);uniqueIndex;not null"`
	Password  string    `gorm:"not null"`
	CreatedAt time.Time

	Todos []Todo `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// Todo is a single task owned by exactly one user. Every query against this
// table combines the todo id with the owner's user id.
type Todo struct {
	ID        string    `gorm:"type:varchar(36);primaryKey"`
	UserID    string    `gorm:"type:varchar(36);index;not null"`
	CreatedAt time.Time // set once on insert
	UpdatedAt time.Time // refreshed on every mutation

	Title       string  `gorm:"type:varchar(120);not null"`
	Description string  `gorm:"type:varchar(2000)"`
	Status      string  `gorm:"type:varchar(16);not null;default:todo"` // todo / in_progress / done
	DueDate     *string `gorm:"type:varchar(64)"`                       // opaque date string, nullable
}
