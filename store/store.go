// Package store defines the persistence contract shared by the SQL, file
// and Mongo backends.
package store

import (
	"context"
	"errors"

	"todo-service/models"
)

var (
	// ErrDuplicateUsername is returned by CreateUser when the unique
	// username constraint rejects the insert.
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrNotFound is returned for absent users and for todos that do not
	// exist for the given owner.
	ErrNotFound = errors.New("not found")
)

// UserStore persists user records. Users are never updated or deleted.
type UserStore interface {
	CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error)
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// TodoStore persists todos. Every method is scoped by owner.
type TodoStore interface {
	CreateTodo(ctx context.Context, ownerID int64, title, description string) (*models.Todo, error)
	ListTodos(ctx context.Context, ownerID int64) ([]models.Todo, error)
	DeleteTodo(ctx context.Context, ownerID, todoID int64) error
}

// Store is implemented by every backend.
type Store interface {
	UserStore
	TodoStore
	Close(ctx context.Context) error
}
