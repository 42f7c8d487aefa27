package database

import (
	"context"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todo-service/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dbConn, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// :memory: databases are per connection.
	dbConn.SetMaxOpenConns(1)
	t.Cleanup(func() { dbConn.Close() })

	require.NoError(t, Migrate(context.Background(), dbConn))
	return NewStore(dbConn)
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, Migrate(context.Background(), s.db))
}

func TestCreateUserRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first, err := s.CreateUser(ctx, "alice", "hash-1")
	require.NoError(t, err)
	assert.NotZero(t, first.ID)

	_, err = s.CreateUser(ctx, "alice", "hash-2")
	assert.ErrorIs(t, err, store.ErrDuplicateUsername)

	var count int
	require.NoError(t, s.db.Get(&count, "SELECT COUNT(*) FROM users WHERE username = 'alice'"))
	assert.Equal(t, 1, count)

	found, err := s.FindUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)
	assert.Equal(t, "hash-1", found.PasswordHash)
}

func TestFindUserByUsernameMissing(t *testing.T) {
	_, err := newTestStore(t).FindUserByUsername(context.Background(), "nobody")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTodosAreScopedByOwner(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	alice, err := s.CreateUser(ctx, "alice", "h")
	require.NoError(t, err)
	bob, err := s.CreateUser(ctx, "bob", "h")
	require.NoError(t, err)

	first, err := s.CreateTodo(ctx, alice.ID, "buy milk", "")
	require.NoError(t, err)
	second, err := s.CreateTodo(ctx, alice.ID, "walk dog", "around the block")
	require.NoError(t, err)
	bobs, err := s.CreateTodo(ctx, bob.ID, "bob's todo", "")
	require.NoError(t, err)

	list, err := s.ListTodos(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)
	assert.Equal(t, "around the block", list[1].Description)

	// Alice cannot delete Bob's todo, and it is reported as missing.
	assert.ErrorIs(t, s.DeleteTodo(ctx, alice.ID, bobs.ID), store.ErrNotFound)

	bobList, err := s.ListTodos(ctx, bob.ID)
	require.NoError(t, err)
	assert.Len(t, bobList, 1)

	require.NoError(t, s.DeleteTodo(ctx, alice.ID, first.ID))
	assert.ErrorIs(t, s.DeleteTodo(ctx, alice.ID, first.ID), store.ErrNotFound)

	list, err = s.ListTodos(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, second.ID, list[0].ID)
}

func TestListTodosEmptyIsNotNil(t *testing.T) {
	list, err := newTestStore(t).ListTodos(context.Background(), 42)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestConcurrentCreateTodo(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	user, err := s.CreateUser(ctx, "alice", "h")
	require.NoError(t, err)

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CreateTodo(ctx, user.ID, "todo", "")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	list, err := s.ListTodos(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, list, n)

	ids := make(map[int64]bool, n)
	for _, todo := range list {
		ids[todo.ID] = true
	}
	assert.Len(t, ids, n)
}
