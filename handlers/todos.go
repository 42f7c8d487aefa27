package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"todo-service/apperr"
	"todo-service/models"
	"todo-service/todos"
	"todo-service/tokens"
)

var (
	invalidJSON   = apperr.Validation("Invalid JSON")
	invalidTodoID = apperr.Validation("Invalid todo ID")
)

// TodoHandler serves the caller's own todo list
type TodoHandler struct {
	todos *todos.Service
}

// NewTodoHandler creates a new todo handler
func NewTodoHandler(ts *todos.Service) *TodoHandler {
	return &TodoHandler{todos: ts}
}

// GetTodos handles GET /todos
func (h *TodoHandler) GetTodos(ctx context.Context, w http.ResponseWriter, r *http.Request, user *tokens.Payload) {
	list, err := h.todos.List(ctx, user.UserID)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	logRequest(ctx, "info", "Todos retrieved", zap.Int64("user_id", user.UserID), zap.Int("count", len(list)))
	writeJSON(w, http.StatusOK, list)
}

// CreateTodo handles POST /todos
func (h *TodoHandler) CreateTodo(ctx context.Context, w http.ResponseWriter, r *http.Request, user *tokens.Payload) {
	var req models.CreateTodoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logRequest(ctx, "error", "Invalid request body", zap.Error(err))
		writeError(ctx, w, invalidJSON)
		return
	}

	todo, err := h.todos.Create(ctx, user.UserID, req.Title, req.Description)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	logRequest(ctx, "info", "Todo created", zap.Int64("user_id", user.UserID), zap.Int64("todo_id", todo.ID))
	writeJSON(w, http.StatusOK, models.CreateTodoResponse{Message: "Created todo", Data: *todo})
}

// DeleteTodo handles DELETE /todos/{id}
func (h *TodoHandler) DeleteTodo(ctx context.Context, w http.ResponseWriter, r *http.Request, user *tokens.Payload) {
	idStr := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		logRequest(ctx, "error", "Invalid todo ID", zap.String("id", idStr))
		writeError(ctx, w, invalidTodoID)
		return
	}

	if err := h.todos.Delete(ctx, user.UserID, id); err != nil {
		writeError(ctx, w, err)
		return
	}

	logRequest(ctx, "info", "Todo deleted", zap.Int64("user_id", user.UserID), zap.Int64("todo_id", id))
	writeJSON(w, http.StatusOK, models.MessageResponse{Message: "Deleted todo"})
}
