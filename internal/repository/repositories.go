package repository

import (
	"fmt"
	"regexp"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"messenger/pkg/errors"
	"messenger/pkg/logger"
)

type Repositories struct {
	User          UserRepository
	Chat          ChatRepository
	Message       MessageRepository
	FriendRequest FriendRequestRepository
	RateLimit     RateLimitRepository
}

func NewRepositories(db *mongo.Database, redis *redis.Client, log logger.Logger) *Repositories {
	return &Repositories{
		User:          NewUserRepository(db, log),
		Chat:          NewChatRepository(db, log),
		Message:       NewMessageRepository(db, log),
		FriendRequest: NewFriendRequestRepository(db, log),
		RateLimit:     NewRateLimitRepository(redis, log),
	}
}

// storeErr прячет сырую ошибку хранилища за стабильным классом
func storeErr(err error) error {
	return fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
}

func regexQuote(s string) string {
	return regexp.QuoteMeta(s)
}
