package repository

import (
	"context"
	"errors"
	"fmt"
	"time"
	"timetrack/internal/common"
	"timetrack/internal/domain/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection  = "users"
	timersCollection = "timers"
)

// EnsureMongoIndexes creates the unique username index and the owner lookup
// index. Safe to call on every start.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(usersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("username_unique"),
	})
	if err != nil {
		return fmt.Errorf("create users index: %w", err)
	}

	_, err = db.Collection(timersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "start", Value: 1}},
		Options: options.Index().SetName("owner_start"),
	})
	if err != nil {
		return fmt.Errorf("create timers index: %w", err)
	}
	return nil
}

type mongoUserRepository struct {
	coll *mongo.Collection
}

func NewMongoUserRepository(db *mongo.Database) UserRepository {
	return &mongoUserRepository{coll: db.Collection(usersCollection)}
}

func (r *mongoUserRepository) Create(ctx context.Context, user *model.User) error {
	if _, err := r.coll.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("user with given username already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("mongoUserRepository.Create: %w", err)
	}
	return nil
}

func (r *mongoUserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.findOne(ctx, "FindByUsername", bson.M{"username": username})
}

func (r *mongoUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.findOne(ctx, "FindByID", bson.M{"_id": id})
}

func (r *mongoUserRepository) findOne(ctx context.Context, op string, filter bson.M) (*model.User, error) {
	var user model.User
	if err := r.coll.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("mongoUserRepository.%s: %w", op, err)
	}
	return &user, nil
}

type mongoTimerRepository struct {
	coll *mongo.Collection
}

func NewMongoTimerRepository(db *mongo.Database) TimerRepository {
	return &mongoTimerRepository{coll: db.Collection(timersCollection)}
}

func (r *mongoTimerRepository) Create(ctx context.Context, t *model.Timer) error {
	if _, err := r.coll.InsertOne(ctx, t); err != nil {
		return fmt.Errorf("mongoTimerRepository.Create: %w", err)
	}
	return nil
}

func (r *mongoTimerRepository) FindByID(ctx context.Context, id string) (*model.Timer, error) {
	var t model.Timer
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&t); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("mongoTimerRepository.FindByID: %w", err)
	}
	return &t, nil
}

func (r *mongoTimerRepository) ListByUser(ctx context.Context, userID string) ([]model.Timer, error) {
	return r.find(ctx, "ListByUser", bson.M{"userId": userID})
}

func (r *mongoTimerRepository) ListAll(ctx context.Context) ([]model.Timer, error) {
	return r.find(ctx, "ListAll", bson.M{})
}

func (r *mongoTimerRepository) Stop(ctx context.Context, id string, end time.Time, durationSeconds int64) (bool, error) {
	filter := bson.M{"_id": id, "isActive": true}
	update := bson.M{"$set": bson.M{
		"isActive":          false,
		"end":               end,
		"durationInSeconds": durationSeconds,
	}}
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("mongoTimerRepository.Stop: %w", err)
	}
	return res.MatchedCount == 1, nil
}

func (r *mongoTimerRepository) find(ctx context.Context, op string, filter bson.M) ([]model.Timer, error) {
	opts := options.Find().SetSort(bson.D{{Key: "start", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongoTimerRepository.%s: %w", op, err)
	}
	defer cur.Close(ctx)

	timers := []model.Timer{}
	if err := cur.All(ctx, &timers); err != nil {
		return nil, fmt.Errorf("mongoTimerRepository.%s decode: %w", op, err)
	}
	return timers, nil
}
