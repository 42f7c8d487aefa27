// Package filestore keeps users and todos in a single JSON document,
// stored on local disk or as a MinIO object.
//
// Every operation loads the whole document, mutates it and writes it back
// while holding the store mutex, so concurrent requests in this process
// never lose each other's writes. The document must not be shared with
// another process.
package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"todo-service/models"
	"todo-service/store"
)

// Blob is where the document lives. Read returns nil, nil when the
// document does not exist yet.
type Blob interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
}

// document is the on-disk schema. It stores password hashes, which the
// API models never serialize.
type document struct {
	NextUserID int64        `json:"next_user_id"`
	NextTodoID int64        `json:"next_todo_id"`
	Users      []userRecord `json:"users"`
	Todos      []todoRecord `json:"todos"`
}

type userRecord struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Password  string    `json:"password"`
	CreatedAt time.Time `json:"created_at"`
}

type todoRecord struct {
	ID          int64     `json:"id"`
	OwnerID     int64     `json:"owner_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Store struct {
	mu   sync.Mutex
	blob Blob
}

func New(blob Blob) *Store {
	return &Store{blob: blob}
}

var _ store.Store = (*Store)(nil)

func (s *Store) CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error) {
	var created userRecord
	err := s.update(ctx, func(doc *document) error {
		for _, u := range doc.Users {
			if u.Username == username {
				return store.ErrDuplicateUsername
			}
		}
		doc.NextUserID++
		created = userRecord{
			ID:        doc.NextUserID,
			Username:  username,
			Password:  passwordHash,
			CreatedAt: time.Now().UTC(),
		}
		doc.Users = append(doc.Users, created)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created.toModel(), nil
}

func (s *Store) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var found *models.User
	err := s.view(ctx, func(doc *document) error {
		for _, u := range doc.Users {
			if u.Username == username {
				found = u.toModel()
				return nil
			}
		}
		return store.ErrNotFound
	})
	return found, err
}

func (s *Store) CreateTodo(ctx context.Context, ownerID int64, title, description string) (*models.Todo, error) {
	var created todoRecord
	err := s.update(ctx, func(doc *document) error {
		doc.NextTodoID++
		created = todoRecord{
			ID:          doc.NextTodoID,
			OwnerID:     ownerID,
			Title:       title,
			Description: description,
			CreatedAt:   time.Now().UTC(),
		}
		doc.Todos = append(doc.Todos, created)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created.toModel(), nil
}

func (s *Store) ListTodos(ctx context.Context, ownerID int64) ([]models.Todo, error) {
	todos := []models.Todo{}
	err := s.view(ctx, func(doc *document) error {
		for _, t := range doc.Todos {
			if t.OwnerID == ownerID {
				todos = append(todos, *t.toModel())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return todos, nil
}

func (s *Store) DeleteTodo(ctx context.Context, ownerID, todoID int64) error {
	return s.update(ctx, func(doc *document) error {
		for i, t := range doc.Todos {
			if t.ID == todoID && t.OwnerID == ownerID {
				doc.Todos = append(doc.Todos[:i], doc.Todos[i+1:]...)
				return nil
			}
		}
		return store.ErrNotFound
	})
}

func (s *Store) Close(ctx context.Context) error {
	return nil
}

func (s *Store) view(ctx context.Context, fn func(doc *document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return err
	}
	return fn(doc)
}

// update persists the document only when fn succeeds, so a rejected
// write (duplicate username, missing todo) leaves no partial state.
func (s *Store) update(ctx context.Context, fn func(doc *document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	if err := s.blob.Write(ctx, data); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	return nil
}

func (s *Store) load(ctx context.Context) (*document, error) {
	data, err := s.blob.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	doc := &document{}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}
	return doc, nil
}

func (u userRecord) toModel() *models.User {
	return &models.User{
		ID:           u.ID,
		Username:     u.Username,
		PasswordHash: u.Password,
		CreatedAt:    u.CreatedAt,
	}
}

func (t todoRecord) toModel() *models.Todo {
	return &models.Todo{
		ID:          t.ID,
		OwnerID:     t.OwnerID,
		Title:       t.Title,
		Description: t.Description,
		CreatedAt:   t.CreatedAt,
	}
}
