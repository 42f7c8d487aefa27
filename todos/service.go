// Package todos serves a user's own todo list. Callers pass the user id
// taken from a verified token; nothing here reads another owner's data.
package todos

import (
	"context"
	"errors"
	"strings"

	"todo-service/apperr"
	"todo-service/events"
	"todo-service/models"
	"todo-service/store"
)

const NotFoundMessage = "This todo not found"

type Service struct {
	todos  store.TodoStore
	events events.Publisher
}

func NewService(todos store.TodoStore, pub events.Publisher) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Service{todos: todos, events: pub}
}

// List returns the user's todos in insertion order, never nil.
func (s *Service) List(ctx context.Context, userID int64) ([]models.Todo, error) {
	list, err := s.todos.ListTodos(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("Failed to list todos", err)
	}
	if list == nil {
		list = []models.Todo{}
	}
	return list, nil
}

func (s *Service) Create(ctx context.Context, userID int64, title, description string) (*models.Todo, error) {
	if strings.TrimSpace(title) == "" {
		return nil, apperr.Validation("Title is required")
	}

	todo, err := s.todos.CreateTodo(ctx, userID, title, description)
	if err != nil {
		return nil, apperr.Internal("Failed to create todo", err)
	}

	s.events.Publish(ctx, events.TodoCreated, todo)
	return todo, nil
}

// Delete reports another user's todo as not found, never as forbidden.
func (s *Service) Delete(ctx context.Context, userID, todoID int64) error {
	err := s.todos.DeleteTodo(ctx, userID, todoID)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound(NotFoundMessage)
	}
	if err != nil {
		return apperr.Internal("Failed to delete todo", err)
	}

	s.events.Publish(ctx, events.TodoDeleted, map[string]int64{
		"id":       todoID,
		"owner_id": userID,
	})
	return nil
}
