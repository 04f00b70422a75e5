package domain

import "time"

type FriendRequestStatus string

const (
	FriendRequestPending  FriendRequestStatus = "pending"
	FriendRequestAccepted FriendRequestStatus = "accepted"
	FriendRequestRejected FriendRequestStatus = "rejected"
)

type FriendRequest struct {
	ID         string              `json:"id" bson:"id"`
	FromUserID string              `json:"from_user_id" bson:"from_user_id"`
	ToUserID   string              `json:"to_user_id" bson:"to_user_id"`
	Status     FriendRequestStatus `json:"status" bson:"status"`
	CreatedAt  time.Time           `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at" bson:"updated_at"`
}
