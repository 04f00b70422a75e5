package domain

import "time"

type User struct {
	ID           string     `json:"id" bson:"id"`
	Username     string     `json:"username" bson:"username"`
	DisplayName  string     `json:"display_name" bson:"display_name"`
	Bio          string     `json:"bio,omitempty" bson:"bio,omitempty"`
	Avatar       string     `json:"avatar,omitempty" bson:"avatar,omitempty"`
	Friends      []string   `json:"friends" bson:"friends"`
	BlockedUsers []string   `json:"blocked_users" bson:"blocked_users"`
	IsOnline     bool       `json:"is_online" bson:"is_online"`
	LastSeen     *time.Time `json:"last_seen,omitempty" bson:"last_seen,omitempty"`
	CreatedAt    time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" bson:"updated_at"`
}

// UserSummary — публичная проекция пользователя для ответов и событий
type UserSummary struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	DisplayName string     `json:"display_name"`
	Avatar      string     `json:"avatar,omitempty"`
	IsOnline    bool       `json:"is_online"`
	LastSeen    *time.Time `json:"last_seen,omitempty"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Avatar:      u.Avatar,
		IsOnline:    u.IsOnline,
		LastSeen:    u.LastSeen,
	}
}

func (u *User) IsFriend(userID string) bool {
	return contains(u.Friends, userID)
}

func (u *User) HasBlocked(userID string) bool {
	return contains(u.BlockedUsers, userID)
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
