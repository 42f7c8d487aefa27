package credentials

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"todo-service/apperr"
	"todo-service/events"
	"todo-service/store/filestore"
)

type recordedEvent struct {
	subject string
	payload interface{}
}

type recorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recorder) Publish(ctx context.Context, subject string, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{subject, payload})
}

func newTestService(t *testing.T) (*Service, *filestore.Store, *recorder) {
	t.Helper()
	st := filestore.New(filestore.NewDisk(filepath.Join(t.TempDir(), "db.json")))
	rec := &recorder{}
	svc, err := NewService(st, nil, rec, bcrypt.MinCost)
	require.NoError(t, err)
	return svc, st, rec
}

func TestRegisterStoresHashNotPassword(t *testing.T) {
	ctx := context.Background()
	svc, st, rec := newTestService(t)

	user, err := svc.Register(ctx, "alice", "correct123")
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.NotEqual(t, "correct123", user.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("correct123")))

	stored, err := st.FindUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.PasswordHash, stored.PasswordHash)

	body, err := json.Marshal(user)
	require.NoError(t, err)
	assert.NotContains(t, string(body), user.PasswordHash)

	require.Len(t, rec.events, 1)
	assert.Equal(t, events.UserRegistered, rec.events[0].subject)
}

func TestRegisterDuplicate(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	_, err := svc.Register(ctx, "alice", "correct123")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "alice", "something-else")
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	// The first password still works: nothing was overwritten.
	_, err = svc.Login(ctx, "alice", "correct123")
	assert.NoError(t, err)
}

func TestRegisterConcurrentDuplicates(t *testing.T) {
	ctx := context.Background()
	svc, _, rec := newTestService(t)

	const n = 10
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Register(ctx, "alice", "pw123456")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok, conflicts int
	for err := range results {
		if err == nil {
			ok++
		} else if apperr.KindOf(err) == apperr.KindConflict {
			conflicts++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, conflicts)
	assert.Len(t, rec.events, 1)
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _ := newTestService(t)

	for name, tc := range map[string][2]string{
		"empty username":  {"", "pw"},
		"blank username":  {"   ", "pw"},
		"empty password":  {"alice", ""},
		"long password":   {"alice", strings.Repeat("x", 73)},
		"everything bare": {"", ""},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tc[0], tc[1])
			require.Error(t, err)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		})
	}
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	registered, err := svc.Register(ctx, "alice", "correct123")
	require.NoError(t, err)

	user, err := svc.Login(ctx, "alice", "correct123")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)
	assert.Equal(t, "alice", user.Username)

	_, wrongPassword := svc.Login(ctx, "alice", "wrong")
	_, unknownUser := svc.Login(ctx, "mallory", "correct123")

	for _, err := range []error{wrongPassword, unknownUser} {
		require.Error(t, err)
		assert.Equal(t, apperr.KindAuth, apperr.KindOf(err))
		assert.Equal(t, InvalidCredentials, apperr.MessageOf(err))
	}
}

func TestCacheKeyHidesUsername(t *testing.T) {
	svc, _, _ := newTestService(t)
	other, _, _ := newTestService(t)

	key := svc.cacheKey("alice")
	assert.True(t, strings.HasPrefix(key, userKeyPrefix))
	assert.NotContains(t, key, "alice")
	assert.Equal(t, key, svc.cacheKey("alice"))
	assert.NotEqual(t, key, svc.cacheKey("bob"))
	assert.NotEqual(t, key, other.cacheKey("alice"))
}
