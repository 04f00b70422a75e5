package domain

import "time"

type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeImage  MessageType = "image"
	MessageTypeVideo  MessageType = "video"
	MessageTypeAudio  MessageType = "audio"
	MessageTypeFile   MessageType = "file"
	MessageTypeVoice  MessageType = "voice"
	MessageTypeSystem MessageType = "system"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeVideo, MessageTypeAudio,
		MessageTypeFile, MessageTypeVoice, MessageTypeSystem:
		return true
	}
	return false
}

// IsMedia — всё кроме текста и системных сообщений требует права на медиа
func (t MessageType) IsMedia() bool {
	return t.Valid() && t != MessageTypeText && t != MessageTypeSystem
}

type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

// EditWindow — окно редактирования собственных сообщений
const EditWindow = 48 * time.Hour

// Tombstone подставляется вместо содержимого при удалении для всех
const Tombstone = "This message was deleted"

type Message struct {
	ID            string      `json:"id" bson:"id"`
	ChatID        string      `json:"chat_id" bson:"chat_id"`
	SenderID      string      `json:"sender_id" bson:"sender_id"`
	Content       string      `json:"content" bson:"content"`
	Type          MessageType `json:"type" bson:"type"`
	ReplyTo       string      `json:"reply_to,omitempty" bson:"reply_to,omitempty"`
	ForwardedFrom string      `json:"forwarded_from,omitempty" bson:"forwarded_from,omitempty"`
	MediaURL      string      `json:"media_url,omitempty" bson:"media_url,omitempty"`
	FileName      string      `json:"file_name,omitempty" bson:"file_name,omitempty"`
	FileSize      int64       `json:"file_size,omitempty" bson:"file_size,omitempty"`
	Duration      int         `json:"duration,omitempty" bson:"duration,omitempty"`

	Status      MessageStatus       `json:"status" bson:"status"`
	DeliveredTo []string            `json:"delivered_to" bson:"delivered_to"`
	ReadBy      []string            `json:"read_by" bson:"read_by"`
	Reactions   map[string][]string `json:"reactions" bson:"reactions"`
	Edited      bool                `json:"edited" bson:"edited"`
	Deleted     bool                `json:"deleted" bson:"deleted"`
	DeletedFor  []string            `json:"-" bson:"deleted_for"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// ReactionOf возвращает эмодзи, под которым сейчас числится пользователь;
// инвариант: не больше одного эмодзи на пользователя
func (m *Message) ReactionOf(userID string) (string, bool) {
	for emoji, users := range m.Reactions {
		if contains(users, userID) {
			return emoji, true
		}
	}
	return "", false
}

func (m *Message) ReadByUser(userID string) bool {
	return contains(m.ReadBy, userID)
}

func (m *Message) DeliveredToUser(userID string) bool {
	return contains(m.DeliveredTo, userID)
}

// HiddenFor — удалено-для-меня фильтрует только путь чтения
func (m *Message) HiddenFor(userID string) bool {
	return contains(m.DeletedFor, userID)
}
