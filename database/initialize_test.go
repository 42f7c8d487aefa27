package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/umakantv/go-utils/logger"

	"todo-service/config"
)

func TestMain(m *testing.M) {
	logger.Init(logger.LoggerConfig{
		CallerKey:  "file",
		TimeKey:    "timestamp",
		CallerSkip: 1,
	})
	os.Exit(m.Run())
}

func TestInitializeDatabaseSqlite(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{
		DBDriver: "sqlite3",
		DBDSN:    filepath.Join(t.TempDir(), "todo.db"),
	}

	dbConn, err := InitializeDatabase(ctx, cfg)
	require.NoError(t, err)
	_, err = NewStore(dbConn).CreateUser(ctx, "alice", "hash")
	require.NoError(t, err)
	require.NoError(t, dbConn.Close())

	// Reopening keeps the data and does not trip over the existing schema.
	dbConn, err = InitializeDatabase(ctx, cfg)
	require.NoError(t, err)
	defer dbConn.Close()

	user, err := NewStore(dbConn).FindUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
}

func TestInitializeDatabaseUnreachableServer(t *testing.T) {
	tests := []struct {
		driver  string
		dsn     string
		garbled string
	}{
		{"mysql", "root:pw@tcp(127.0.0.1:1)/todos?parseTime=true", "invalid bool"},
		{"postgres", "postgres://u:p@127.0.0.1:1/todos?sslmode=disable", "lookup port="},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			var err error
			assert.NotPanics(t, func() {
				_, err = InitializeDatabase(ctx, &config.Config{DBDriver: tt.driver, DBDSN: tt.dsn})
			})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.driver)
			assert.NotContains(t, err.Error(), tt.garbled)
		})
	}
}
