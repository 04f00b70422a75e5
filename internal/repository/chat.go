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

type ChatRepository interface {
	Create(ctx context.Context, chat *domain.Chat) error
	GetByID(ctx context.Context, id string) (*domain.Chat, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Chat, error)
	FindDirect(ctx context.Context, userA, userB string) (*domain.Chat, error)
	UpdateInfo(ctx context.Context, chatID string, name, description, avatar *string) error
	AddMember(ctx context.Context, chatID string, kind domain.ChatKind, member domain.ChatMember) error
	RemoveMember(ctx context.Context, chatID string, kind domain.ChatKind, userID string) error
	AddSubscriber(ctx context.Context, chatID, userID string) error
	RemoveSubscriber(ctx context.Context, chatID, userID string) error
	SetAdmin(ctx context.Context, chatID string, kind domain.ChatKind, userID string, rights domain.PermissionSet) error
	DemoteAdmin(ctx context.Context, chatID string, kind domain.ChatKind, userID string) error
	SetRestrictions(ctx context.Context, chatID, userID string, r *domain.MemberRestrictions) error
	SetDefaultPermissions(ctx context.Context, chatID string, perms domain.MemberPermissions) error
	AddBan(ctx context.Context, chatID string, kind domain.ChatKind, ban domain.BannedUser) error
	RemoveBan(ctx context.Context, chatID string, kind domain.ChatKind, userID string) error
	PinMessage(ctx context.Context, chatID, messageID string) error
	UnpinMessage(ctx context.Context, chatID, messageID string) error
	SetLastMessage(ctx context.Context, chatID string, last *domain.LastMessage) error
}

type chatRepository struct {
	col *mongo.Collection
	log logger.Logger
}

func NewChatRepository(db *mongo.Database, log logger.Logger) ChatRepository {
	return &chatRepository{col: db.Collection("chats"), log: log}
}

// membersPath возвращает путь к массиву участников для вида чата
func membersPath(kind domain.ChatKind) string {
	switch kind {
	case domain.ChatKindDirect:
		return "direct.members"
	case domain.ChatKindChannel:
		return "channel.admins"
	default:
		return "group.members"
	}
}

func bannedPath(kind domain.ChatKind) string {
	if kind == domain.ChatKindChannel {
		return "channel.banned"
	}
	return "group.banned"
}

func (r *chatRepository) Create(ctx context.Context, chat *domain.Chat) error {
	if _, err := r.col.InsertOne(ctx, chat); err != nil {
		r.log.Error("Failed to create chat", "error", err)
		return storeErr(err)
	}
	return nil
}

func (r *chatRepository) GetByID(ctx context.Context, id string) (*domain.Chat, error) {
	chat := &domain.Chat{}
	err := r.col.FindOne(ctx, bson.M{"id": id}).Decode(chat)
	if err == mongo.ErrNoDocuments {
		return nil, errors.ErrChatNotFound
	}
	if err != nil {
		r.log.Error("Failed to get chat", "error", err, "chat_id", id)
		return nil, storeErr(err)
	}
	return chat, nil
}

func (r *chatRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Chat, error) {
	filter := bson.M{"$or": []bson.M{
		{"direct.members.user_id": userID},
		{"group.members.user_id": userID},
		{"channel.subscribers": userID},
		{"channel.admins.user_id": userID},
		{"kind": domain.ChatKindChannel, "owner_id": userID},
	}}

	cur, err := r.col.Find(ctx, filter, options.Find().SetSort(bson.M{"updated_at": -1}))
	if err != nil {
		r.log.Error("Failed to list chats", "error", err, "user_id", userID)
		return nil, storeErr(err)
	}
	defer cur.Close(ctx)

	var chats []*domain.Chat
	if err := cur.All(ctx, &chats); err != nil {
		return nil, storeErr(err)
	}
	return chats, nil
}

func (r *chatRepository) FindDirect(ctx context.Context, userA, userB string) (*domain.Chat, error) {
	filter := bson.M{
		"kind":                   domain.ChatKindDirect,
		"direct.members.user_id": bson.M{"$all": []string{userA, userB}},
	}
	chat := &domain.Chat{}
	err := r.col.FindOne(ctx, filter).Decode(chat)
	if err == mongo.ErrNoDocuments {
		return nil, errors.ErrChatNotFound
	}
	if err != nil {
		r.log.Error("Failed to find direct chat", "error", err)
		return nil, storeErr(err)
	}
	return chat, nil
}

func (r *chatRepository) UpdateInfo(ctx context.Context, chatID string, name, description, avatar *string) error {
	set := bson.M{"updated_at": time.Now()}
	if name != nil {
		set["name"] = *name
	}
	if description != nil {
		set["description"] = *description
	}
	if avatar != nil {
		set["avatar"] = *avatar
	}
	return r.update(ctx, chatID, bson.M{"$set": set})
}

func (r *chatRepository) AddMember(ctx context.Context, chatID string, kind domain.ChatKind, member domain.ChatMember) error {
	return r.update(ctx, chatID, bson.M{"$addToSet": bson.M{membersPath(kind): member}})
}

func (r *chatRepository) RemoveMember(ctx context.Context, chatID string, kind domain.ChatKind, userID string) error {
	return r.update(ctx, chatID, bson.M{"$pull": bson.M{membersPath(kind): bson.M{"user_id": userID}}})
}

func (r *chatRepository) AddSubscriber(ctx context.Context, chatID, userID string) error {
	return r.update(ctx, chatID, bson.M{"$addToSet": bson.M{"channel.subscribers": userID}})
}

func (r *chatRepository) RemoveSubscriber(ctx context.Context, chatID, userID string) error {
	return r.update(ctx, chatID, bson.M{"$pull": bson.M{"channel.subscribers": userID}})
}

func (r *chatRepository) SetAdmin(ctx context.Context, chatID string, kind domain.ChatKind, userID string, rights domain.PermissionSet) error {
	if kind == domain.ChatKindChannel {
		member := domain.ChatMember{
			UserID:      userID,
			Role:        domain.RoleAdmin,
			AdminRights: rights,
			JoinedAt:    time.Now(),
		}
		return r.update(ctx, chatID, bson.M{"$addToSet": bson.M{"channel.admins": member}})
	}

	update := bson.M{"$set": bson.M{
		"group.members.$[m].role":         domain.RoleAdmin,
		"group.members.$[m].admin_rights": rights,
	}}
	return r.updateFiltered(ctx, chatID, update, userID)
}

func (r *chatRepository) DemoteAdmin(ctx context.Context, chatID string, kind domain.ChatKind, userID string) error {
	if kind == domain.ChatKindChannel {
		return r.update(ctx, chatID, bson.M{"$pull": bson.M{"channel.admins": bson.M{"user_id": userID}}})
	}

	update := bson.M{
		"$set":   bson.M{"group.members.$[m].role": domain.RoleMember},
		"$unset": bson.M{"group.members.$[m].admin_rights": ""},
	}
	return r.updateFiltered(ctx, chatID, update, userID)
}

func (r *chatRepository) SetRestrictions(ctx context.Context, chatID, userID string, restr *domain.MemberRestrictions) error {
	var update bson.M
	if restr == nil {
		update = bson.M{"$unset": bson.M{"group.members.$[m].restrictions": ""}}
	} else {
		update = bson.M{"$set": bson.M{"group.members.$[m].restrictions": restr}}
	}
	return r.updateFiltered(ctx, chatID, update, userID)
}

func (r *chatRepository) SetDefaultPermissions(ctx context.Context, chatID string, perms domain.MemberPermissions) error {
	return r.update(ctx, chatID, bson.M{"$set": bson.M{
		"group.default_permissions": perms,
		"updated_at":                time.Now(),
	}})
}

func (r *chatRepository) AddBan(ctx context.Context, chatID string, kind domain.ChatKind, ban domain.BannedUser) error {
	return r.update(ctx, chatID, bson.M{"$addToSet": bson.M{bannedPath(kind): ban}})
}

func (r *chatRepository) RemoveBan(ctx context.Context, chatID string, kind domain.ChatKind, userID string) error {
	return r.update(ctx, chatID, bson.M{"$pull": bson.M{bannedPath(kind): bson.M{"user_id": userID}}})
}

func (r *chatRepository) PinMessage(ctx context.Context, chatID, messageID string) error {
	return r.update(ctx, chatID, bson.M{"$addToSet": bson.M{"pinned_messages": messageID}})
}

func (r *chatRepository) UnpinMessage(ctx context.Context, chatID, messageID string) error {
	return r.update(ctx, chatID, bson.M{"$pull": bson.M{"pinned_messages": messageID}})
}

func (r *chatRepository) SetLastMessage(ctx context.Context, chatID string, last *domain.LastMessage) error {
	return r.update(ctx, chatID, bson.M{"$set": bson.M{
		"last_message": last,
		"updated_at":   time.Now(),
	}})
}

func (r *chatRepository) update(ctx context.Context, chatID string, update bson.M) error {
	res, err := r.col.UpdateOne(ctx, bson.M{"id": chatID}, update)
	if err != nil {
		r.log.Error("Failed to update chat", "error", err, "chat_id", chatID)
		return storeErr(err)
	}
	if res.MatchedCount == 0 {
		return errors.ErrChatNotFound
	}
	return nil
}

func (r *chatRepository) updateFiltered(ctx context.Context, chatID string, update bson.M, userID string) error {
	opts := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{bson.M{"m.user_id": userID}},
	})
	res, err := r.col.UpdateOne(ctx, bson.M{"id": chatID}, update, opts)
	if err != nil {
		r.log.Error("Failed to update chat member", "error", err, "chat_id", chatID, "user_id", userID)
		return storeErr(err)
	}
	if res.MatchedCount == 0 {
		return errors.ErrChatNotFound
	}
	return nil
}
