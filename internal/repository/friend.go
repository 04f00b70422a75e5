package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"messenger/internal/domain"
	"messenger/pkg/errors"
	"messenger/pkg/logger"
)

type FriendRequestRepository interface {
	Create(ctx context.Context, request *domain.FriendRequest) error
	GetByID(ctx context.Context, id string) (*domain.FriendRequest, error)
	FindPendingBetween(ctx context.Context, userA, userB string) (*domain.FriendRequest, error)
	ListReceived(ctx context.Context, userID string) ([]*domain.FriendRequest, error)
	SetStatus(ctx context.Context, id string, status domain.FriendRequestStatus) error
	DeletePendingBetween(ctx context.Context, userA, userB string) error
}

type friendRequestRepository struct {
	col *mongo.Collection
	log logger.Logger
}

func NewFriendRequestRepository(db *mongo.Database, log logger.Logger) FriendRequestRepository {
	return &friendRequestRepository{col: db.Collection("friend_requests"), log: log}
}

func (r *friendRequestRepository) Create(ctx context.Context, request *domain.FriendRequest) error {
	if _, err := r.col.InsertOne(ctx, request); err != nil {
		r.log.Error("Failed to create friend request", "error", err)
		return storeErr(err)
	}
	return nil
}

func (r *friendRequestRepository) GetByID(ctx context.Context, id string) (*domain.FriendRequest, error) {
	request := &domain.FriendRequest{}
	err := r.col.FindOne(ctx, bson.M{"id": id}).Decode(request)
	if err == mongo.ErrNoDocuments {
		return nil, errors.ErrRequestNotFound
	}
	if err != nil {
		r.log.Error("Failed to get friend request", "error", err, "request_id", id)
		return nil, storeErr(err)
	}
	return request, nil
}

// FindPendingBetween ищет висящую заявку в любом направлении
func (r *friendRequestRepository) FindPendingBetween(ctx context.Context, userA, userB string) (*domain.FriendRequest, error) {
	filter := bson.M{
		"status": domain.FriendRequestPending,
		"$or": []bson.M{
			{"from_user_id": userA, "to_user_id": userB},
			{"from_user_id": userB, "to_user_id": userA},
		},
	}
	request := &domain.FriendRequest{}
	err := r.col.FindOne(ctx, filter).Decode(request)
	if err == mongo.ErrNoDocuments {
		return nil, errors.ErrRequestNotFound
	}
	if err != nil {
		r.log.Error("Failed to find pending request", "error", err)
		return nil, storeErr(err)
	}
	return request, nil
}

func (r *friendRequestRepository) ListReceived(ctx context.Context, userID string) ([]*domain.FriendRequest, error) {
	filter := bson.M{
		"to_user_id": userID,
		"status":     domain.FriendRequestPending,
	}
	cur, err := r.col.Find(ctx, filter, options.Find().SetSort(bson.M{"created_at": -1}))
	if err != nil {
		r.log.Error("Failed to list friend requests", "error", err, "user_id", userID)
		return nil, storeErr(err)
	}
	defer cur.Close(ctx)

	var requests []*domain.FriendRequest
	if err := cur.All(ctx, &requests); err != nil {
		return nil, storeErr(err)
	}
	return requests, nil
}

func (r *friendRequestRepository) SetStatus(ctx context.Context, id string, status domain.FriendRequestStatus) error {
	update := bson.M{"$set": bson.M{
		"status":     status,
		"updated_at": time.Now(),
	}}
	res, err := r.col.UpdateOne(ctx, bson.M{"id": id}, update)
	if err != nil {
		r.log.Error("Failed to update friend request", "error", err, "request_id", id)
		return storeErr(err)
	}
	if res.MatchedCount == 0 {
		return errors.ErrRequestNotFound
	}
	return nil
}

// DeletePendingBetween подчищает висящие заявки при блокировке
func (r *friendRequestRepository) DeletePendingBetween(ctx context.Context, userA, userB string) error {
	filter := bson.M{
		"status": domain.FriendRequestPending,
		"$or": []bson.M{
			{"from_user_id": userA, "to_user_id": userB},
			{"from_user_id": userB, "to_user_id": userA},
		},
	}
	if _, err := r.col.DeleteMany(ctx, filter); err != nil {
		r.log.Error("Failed to delete pending requests", "error", err)
		return storeErr(err)
	}
	return nil
}
