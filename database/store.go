package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"todo-service/models"
	"todo-service/store"
)

// Store is the SQL backend. Queries are written with ? placeholders and
// rebound for the connection's driver.
type Store struct {
	db *sqlx.DB
}

// NewStore wraps an initialized connection (see InitializeDatabase).
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

var _ store.Store = (*Store)(nil)

func (s *Store) CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error) {
	user := models.User{
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}

	id, err := s.insert(ctx, "INSERT INTO users (username, password, created_at) VALUES (?, ?, ?)",
		user.Username, user.PasswordHash, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateUsername
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	user.ID = id
	return &user, nil
}

func (s *Store) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user,
		s.db.Rebind("SELECT id, username, password, created_at FROM users WHERE username = ?"), username)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	return &user, nil
}

func (s *Store) CreateTodo(ctx context.Context, ownerID int64, title, description string) (*models.Todo, error) {
	todo := models.Todo{
		OwnerID:     ownerID,
		Title:       title,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}

	id, err := s.insert(ctx, "INSERT INTO todos (owner_id, title, description, created_at) VALUES (?, ?, ?, ?)",
		todo.OwnerID, todo.Title, todo.Description, todo.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert todo: %w", err)
	}

	todo.ID = id
	return &todo, nil
}

func (s *Store) ListTodos(ctx context.Context, ownerID int64) ([]models.Todo, error) {
	todos := []models.Todo{}
	err := s.db.SelectContext(ctx, &todos,
		s.db.Rebind("SELECT id, owner_id, title, description, created_at FROM todos WHERE owner_id = ? ORDER BY id"), ownerID)
	if err != nil {
		return nil, fmt.Errorf("select todos: %w", err)
	}
	return todos, nil
}

// DeleteTodo treats a todo owned by someone else exactly like a missing one.
func (s *Store) DeleteTodo(ctx context.Context, ownerID, todoID int64) error {
	result, err := s.db.ExecContext(ctx,
		s.db.Rebind("DELETE FROM todos WHERE id = ? AND owner_id = ?"), todoID, ownerID)
	if err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.db.Close()
}

// insert returns the generated id. lib/pq has no LastInsertId, so postgres
// uses RETURNING instead.
func (s *Store) insert(ctx context.Context, query string, args ...interface{}) (int64, error) {
	if s.db.DriverName() == "postgres" {
		var id int64
		err := s.db.QueryRowxContext(ctx, s.db.Rebind(query+" RETURNING id"), args...).Scan(&id)
		return id, err
	}

	result, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}
