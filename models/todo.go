package models

import "time"

// Todo is a single item on a user's list
// OwnerID is only used to scope reads and deletes to the owner
type Todo struct {
	ID          int64     `json:"id" db:"id" bson:"_id"`
	OwnerID     int64     `json:"owner_id" db:"owner_id" bson:"owner_id"`
	Title       string    `json:"title" db:"title" bson:"title"`
	Description string    `json:"description,omitempty" db:"description" bson:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at" db:"created_at" bson:"created_at"`
}

// CreateTodoRequest is the body of POST /todos
type CreateTodoRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// CreateTodoResponse wraps the created todo
type CreateTodoResponse struct {
	Message string `json:"message"`
	Data    Todo   `json:"data"`
}
