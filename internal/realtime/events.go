package realtime

import "encoding/json"

// События, присылаемые клиентом по каналу
const (
	ClientEventAuthenticate = "authenticate"
	ClientEventJoinChat     = "join_chat"
	ClientEventLeaveChat    = "leave_chat"
	ClientEventTyping       = "typing"
)

// События, рассылаемые сервером
const (
	EventAuthenticated         = "authenticated"
	EventError                 = "error"
	EventNewMessage            = "new_message"
	EventMessageEdited         = "message_edited"
	EventMessageDeleted        = "message_deleted"
	EventMessageStatus         = "message_status"
	EventReactionChanged       = "reaction_changed"
	EventMessagePinned         = "message_pinned"
	EventMessageUnpinned       = "message_unpinned"
	EventPresenceChanged       = "presence_changed"
	EventTypingChanged         = "typing_changed"
	EventUserJoined            = "user_joined"
	EventMembershipChanged     = "membership_changed"
	EventFriendRequestReceived = "friend_request_received"
	EventFriendRequestAccepted = "friend_request_accepted"
	EventFriendRequestRejected = "friend_request_rejected"
)

// ServerEvent — конверт исходящего события
type ServerEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// ClientFrame — конверт входящего кадра; данные разбираются по типу события
type ClientFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type authenticatePayload struct {
	Token string `json:"token"`
}

type roomPayload struct {
	ChatID string `json:"chat_id"`
}

type typingPayload struct {
	ChatID   string `json:"chat_id"`
	IsTyping bool   `json:"is_typing"`
}
