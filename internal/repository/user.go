package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"messenger/internal/domain"
	"messenger/pkg/errors"
	"messenger/pkg/logger"
)

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetMany(ctx context.Context, ids []string) ([]*domain.User, error)
	Search(ctx context.Context, query string, limit int64) ([]*domain.User, error)
	UpdateProfile(ctx context.Context, user *domain.User) error
	SetPresence(ctx context.Context, id string, online bool, lastSeen time.Time) error
	AddFriend(ctx context.Context, userID, friendID string) error
	RemoveFriend(ctx context.Context, userID, friendID string) error
	AddBlocked(ctx context.Context, userID, targetID string) error
	RemoveBlocked(ctx context.Context, userID, targetID string) error
}

type userRepository struct {
	col *mongo.Collection
	log logger.Logger
}

func NewUserRepository(db *mongo.Database, log logger.Logger) UserRepository {
	return &userRepository{col: db.Collection("users"), log: log}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"id": id})
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *userRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	user := &domain.User{}
	err := r.col.FindOne(ctx, filter).Decode(user)
	if err == mongo.ErrNoDocuments {
		return nil, errors.ErrUserNotFound
	}
	if err != nil {
		r.log.Error("Failed to get user", "error", err)
		return nil, storeErr(err)
	}
	return user, nil
}

func (r *userRepository) GetMany(ctx context.Context, ids []string) ([]*domain.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := r.col.Find(ctx, bson.M{"id": bson.M{"$in": ids}})
	if err != nil {
		r.log.Error("Failed to get users", "error", err)
		return nil, storeErr(err)
	}
	defer cur.Close(ctx)

	var users []*domain.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, storeErr(err)
	}
	return users, nil
}

func (r *userRepository) Search(ctx context.Context, query string, limit int64) ([]*domain.User, error) {
	// Регистронезависимый поиск по подстроке имени
	pattern := primitive.Regex{Pattern: regexQuote(query), Options: "i"}
	filter := bson.M{"$or": []bson.M{
		{"username": pattern},
		{"display_name": pattern},
	}}

	cur, err := r.col.Find(ctx, filter, options.Find().SetLimit(limit))
	if err != nil {
		r.log.Error("Failed to search users", "error", err)
		return nil, storeErr(err)
	}
	defer cur.Close(ctx)

	var users []*domain.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, storeErr(err)
	}
	return users, nil
}

func (r *userRepository) UpdateProfile(ctx context.Context, user *domain.User) error {
	update := bson.M{"$set": bson.M{
		"display_name": user.DisplayName,
		"bio":          user.Bio,
		"avatar":       user.Avatar,
		"updated_at":   time.Now(),
	}}
	if _, err := r.col.UpdateOne(ctx, bson.M{"id": user.ID}, update); err != nil {
		r.log.Error("Failed to update user", "error", err)
		return storeErr(err)
	}
	return nil
}

func (r *userRepository) SetPresence(ctx context.Context, id string, online bool, lastSeen time.Time) error {
	update := bson.M{"$set": bson.M{
		"is_online": online,
		"last_seen": lastSeen,
	}}
	if _, err := r.col.UpdateOne(ctx, bson.M{"id": id}, update); err != nil {
		r.log.Error("Failed to set presence", "error", err, "user_id", id)
		return storeErr(err)
	}
	return nil
}

func (r *userRepository) AddFriend(ctx context.Context, userID, friendID string) error {
	return r.update(ctx, userID, bson.M{"$addToSet": bson.M{"friends": friendID}})
}

func (r *userRepository) RemoveFriend(ctx context.Context, userID, friendID string) error {
	return r.update(ctx, userID, bson.M{"$pull": bson.M{"friends": friendID}})
}

func (r *userRepository) AddBlocked(ctx context.Context, userID, targetID string) error {
	return r.update(ctx, userID, bson.M{"$addToSet": bson.M{"blocked_users": targetID}})
}

func (r *userRepository) RemoveBlocked(ctx context.Context, userID, targetID string) error {
	return r.update(ctx, userID, bson.M{"$pull": bson.M{"blocked_users": targetID}})
}

func (r *userRepository) update(ctx context.Context, id string, update bson.M) error {
	if _, err := r.col.UpdateOne(ctx, bson.M{"id": id}, update); err != nil {
		r.log.Error("Failed to update user", "error", err, "user_id", id)
		return storeErr(err)
	}
	return nil
}
