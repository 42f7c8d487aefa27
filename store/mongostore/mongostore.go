// Package mongostore is the MongoDB backend. Integer ids come from an
// atomic counter document per collection.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"todo-service/models"
	"todo-service/store"
)

type Store struct {
	client   *mongo.Client
	users    *mongo.Collection
	todos    *mongo.Collection
	counters *mongo.Collection
}

var _ store.Store = (*Store)(nil)

// Connect dials uri and prepares dbName.
func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	s, err := New(ctx, client.Database(dbName))
	if err != nil {
		client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

// New uses an existing database handle and creates the indexes the
// store relies on: unique usernames and owner lookups.
func New(ctx context.Context, db *mongo.Database) (*Store, error) {
	s := &Store{
		client:   db.Client(),
		users:    db.Collection("users"),
		todos:    db.Collection("todos"),
		counters: db.Collection("counters"),
	}

	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("mongo users index: %w", err)
	}

	_, err = s.todos.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "_id", Value: 1}},
	})
	if err != nil {
		return nil, fmt.Errorf("mongo todos index: %w", err)
	}
	return s, nil
}

func (s *Store) CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error) {
	id, err := s.nextID(ctx, "users")
	if err != nil {
		return nil, err
	}

	user := models.User{
		ID:           id,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}
	if _, err := s.users.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, store.ErrDuplicateUsername
		}
		return nil, fmt.Errorf("mongo insert user: %w", err)
	}
	return &user, nil
}

func (s *Store) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := s.users.FindOne(ctx, bson.M{"username": username}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo find user: %w", err)
	}
	return &user, nil
}

func (s *Store) CreateTodo(ctx context.Context, ownerID int64, title, description string) (*models.Todo, error) {
	id, err := s.nextID(ctx, "todos")
	if err != nil {
		return nil, err
	}

	todo := models.Todo{
		ID:          id,
		OwnerID:     ownerID,
		Title:       title,
		Description: description,
		CreatedAt:   time.Now().UTC().Truncate(time.Millisecond),
	}
	if _, err := s.todos.InsertOne(ctx, todo); err != nil {
		return nil, fmt.Errorf("mongo insert todo: %w", err)
	}
	return &todo, nil
}

// ListTodos sorts by id, which follows insertion order because ids come
// from a monotonic counter.
func (s *Store) ListTodos(ctx context.Context, ownerID int64) ([]models.Todo, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := s.todos.Find(ctx, bson.M{"owner_id": ownerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo find todos: %w", err)
	}
	defer cur.Close(ctx)

	todos := []models.Todo{}
	if err := cur.All(ctx, &todos); err != nil {
		return nil, fmt.Errorf("mongo decode todos: %w", err)
	}
	return todos, nil
}

func (s *Store) DeleteTodo(ctx context.Context, ownerID, todoID int64) error {
	res, err := s.todos.DeleteOne(ctx, bson.M{"_id": todoID, "owner_id": ownerID})
	if err != nil {
		return fmt.Errorf("mongo delete todo: %w", err)
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) nextID(ctx context.Context, name string) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("mongo next %s id: %w", name, err)
	}
	return counter.Seq, nil
}
