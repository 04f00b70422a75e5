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

type MessageRepository interface {
	Create(ctx context.Context, message *domain.Message) error
	GetByID(ctx context.Context, id string) (*domain.Message, error)
	ListByChat(ctx context.Context, chatID string, limit, offset int64) ([]*domain.Message, error)
	EditContent(ctx context.Context, id, content string) error
	MarkDeleted(ctx context.Context, id string) error
	AddDeletedFor(ctx context.Context, id, userID string) error
	SetReactions(ctx context.Context, id string, reactions map[string][]string) error
	AddReadBy(ctx context.Context, id, userID string, status domain.MessageStatus) error
	AddDeliveredTo(ctx context.Context, id, userID string, status domain.MessageStatus) error
	CountUnread(ctx context.Context, chatID, userID string) (int64, error)
}

type messageRepository struct {
	col *mongo.Collection
	log logger.Logger
}

func NewMessageRepository(db *mongo.Database, log logger.Logger) MessageRepository {
	return &messageRepository{col: db.Collection("messages"), log: log}
}

func (r *messageRepository) Create(ctx context.Context, message *domain.Message) error {
	if _, err := r.col.InsertOne(ctx, message); err != nil {
		r.log.Error("Failed to create message", "error", err)
		return storeErr(err)
	}
	return nil
}

func (r *messageRepository) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	message := &domain.Message{}
	err := r.col.FindOne(ctx, bson.M{"id": id}).Decode(message)
	if err == mongo.ErrNoDocuments {
		return nil, errors.ErrMessageNotFound
	}
	if err != nil {
		r.log.Error("Failed to get message", "error", err, "message_id", id)
		return nil, storeErr(err)
	}
	return message, nil
}

func (r *messageRepository) ListByChat(ctx context.Context, chatID string, limit, offset int64) ([]*domain.Message, error) {
	opts := options.Find().
		SetSort(bson.M{"created_at": -1}).
		SetLimit(limit).
		SetSkip(offset)

	cur, err := r.col.Find(ctx, bson.M{"chat_id": chatID}, opts)
	if err != nil {
		r.log.Error("Failed to list messages", "error", err, "chat_id", chatID)
		return nil, storeErr(err)
	}
	defer cur.Close(ctx)

	var messages []*domain.Message
	if err := cur.All(ctx, &messages); err != nil {
		return nil, storeErr(err)
	}
	return messages, nil
}

func (r *messageRepository) EditContent(ctx context.Context, id, content string) error {
	return r.update(ctx, id, bson.M{"$set": bson.M{
		"content":    content,
		"edited":     true,
		"updated_at": time.Now(),
	}})
}

func (r *messageRepository) MarkDeleted(ctx context.Context, id string) error {
	return r.update(ctx, id, bson.M{"$set": bson.M{
		"deleted":    true,
		"content":    domain.Tombstone,
		"media_url":  "",
		"updated_at": time.Now(),
	}})
}

func (r *messageRepository) AddDeletedFor(ctx context.Context, id, userID string) error {
	return r.update(ctx, id, bson.M{"$addToSet": bson.M{"deleted_for": userID}})
}

func (r *messageRepository) SetReactions(ctx context.Context, id string, reactions map[string][]string) error {
	return r.update(ctx, id, bson.M{"$set": bson.M{
		"reactions":  reactions,
		"updated_at": time.Now(),
	}})
}

func (r *messageRepository) AddReadBy(ctx context.Context, id, userID string, status domain.MessageStatus) error {
	// Прочтение подразумевает доставку
	return r.update(ctx, id, bson.M{
		"$addToSet": bson.M{"read_by": userID, "delivered_to": userID},
		"$set":      bson.M{"status": status},
	})
}

func (r *messageRepository) AddDeliveredTo(ctx context.Context, id, userID string, status domain.MessageStatus) error {
	return r.update(ctx, id, bson.M{
		"$addToSet": bson.M{"delivered_to": userID},
		"$set":      bson.M{"status": status},
	})
}

func (r *messageRepository) CountUnread(ctx context.Context, chatID, userID string) (int64, error) {
	filter := bson.M{
		"chat_id":     chatID,
		"sender_id":   bson.M{"$ne": userID},
		"read_by":     bson.M{"$ne": userID},
		"deleted":     false,
		"deleted_for": bson.M{"$ne": userID},
	}
	count, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		r.log.Error("Failed to count unread", "error", err, "chat_id", chatID)
		return 0, storeErr(err)
	}
	return count, nil
}

func (r *messageRepository) update(ctx context.Context, id string, update bson.M) error {
	res, err := r.col.UpdateOne(ctx, bson.M{"id": id}, update)
	if err != nil {
		r.log.Error("Failed to update message", "error", err, "message_id", id)
		return storeErr(err)
	}
	if res.MatchedCount == 0 {
		return errors.ErrMessageNotFound
	}
	return nil
}
