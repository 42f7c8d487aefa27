// Package credentials registers users and checks their passwords.
package credentials

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/umakantv/go-utils/cache"
	"golang.org/x/crypto/bcrypt"

	"todo-service/apperr"
	"todo-service/events"
	"todo-service/models"
	"todo-service/store"
)

// InvalidCredentials is the only login failure message, whatever the cause.
const InvalidCredentials = "Invalid username or password"

const (
	userKeyPrefix = "user:"
	userCacheTTL  = 10 * time.Minute
)

// Service owns user records. The cache is optional (nil disables it);
// user records are never mutated, so cached entries cannot go stale.
type Service struct {
	users     store.UserStore
	cache     cache.Cache
	events    events.Publisher
	cost      int
	dummyHash []byte
	keySecret []byte
}

func NewService(users store.UserStore, c cache.Cache, pub events.Publisher, cost int) (*Service, error) {
	// Compared against on unknown usernames so both login failures cost a bcrypt round.
	dummy, err := bcrypt.GenerateFromPassword([]byte("todo-service-dummy-password"), cost)
	if err != nil {
		return nil, err
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	if pub == nil {
		pub = events.Nop{}
	}
	return &Service{
		users:     users,
		cache:     c,
		events:    pub,
		cost:      cost,
		dummyHash: dummy,
		keySecret: secret,
	}, nil
}

// Register stores a bcrypt hash of password under a new, unique username.
func (s *Service) Register(ctx context.Context, username, password string) (*models.User, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, apperr.Validation("Username and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, apperr.Validation("Password must be at most 72 bytes")
	}
	if err != nil {
		return nil, apperr.Internal("Failed to process password", err)
	}

	user, err := s.users.CreateUser(ctx, username, string(hash))
	if errors.Is(err, store.ErrDuplicateUsername) {
		return nil, apperr.Conflict("Username already exists")
	}
	if err != nil {
		return nil, apperr.Internal("Failed to create user", err)
	}

	s.cacheUser(user)
	s.events.Publish(ctx, events.UserRegistered, map[string]interface{}{
		"id":       user.ID,
		"username": user.Username,
	})
	return user, nil
}

// Login returns the user when password matches. Unknown users and wrong
// passwords produce the same error.
func (s *Service) Login(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.findUser(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return nil, apperr.Auth(InvalidCredentials)
	}
	if err != nil {
		return nil, apperr.Internal("Failed to look up user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperr.Auth(InvalidCredentials)
	}
	return user, nil
}

func (s *Service) findUser(ctx context.Context, username string) (*models.User, error) {
	if user, ok := s.cachedUser(username); ok {
		return user, nil
	}

	user, err := s.users.FindUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	s.cacheUser(user)
	return user, nil
}

// cachedUser mirrors models.User including the hash, which the API model
// hides from JSON.
type cachedUser struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// cacheKey hides the username behind an HMAC keyed per Service, so cache
// entries cannot be looked up by name from outside the service.
func (s *Service) cacheKey(username string) string {
	mac := hmac.New(sha256.New, s.keySecret)
	mac.Write([]byte(username))
	return userKeyPrefix + hex.EncodeToString(mac.Sum(nil))
}

func (s *Service) cacheUser(user *models.User) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(cachedUser(*user))
	if err != nil {
		return
	}
	s.cache.Set(s.cacheKey(user.Username), data, userCacheTTL)
}

func (s *Service) cachedUser(username string) (*models.User, bool) {
	if s.cache == nil {
		return nil, false
	}
	cached, err := s.cache.Get(s.cacheKey(username))
	if err != nil {
		return nil, false
	}

	// Memory caches hand back the []byte we stored, redis a string.
	var raw []byte
	switch v := cached.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return nil, false
	}

	var entry cachedUser
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false
	}
	user := models.User(entry)
	return &user, true
}
