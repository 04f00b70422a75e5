package domain

import "time"

type ChatKind string

const (
	ChatKindDirect  ChatKind = "direct"
	ChatKindGroup   ChatKind = "group"
	ChatKindChannel ChatKind = "channel"
)

type MemberRole string

const (
	RoleOwner  MemberRole = "owner"
	RoleAdmin  MemberRole = "admin"
	RoleMember MemberRole = "member"
)

// Capability — именованное право администратора
type Capability string

const (
	CapChangeInfo      Capability = "can_change_info"
	CapDeleteMessages  Capability = "can_delete_messages"
	CapBanUsers        Capability = "can_ban_users"
	CapInviteUsers     Capability = "can_invite_users"
	CapPinMessages     Capability = "can_pin_messages"
	CapAddAdmins       Capability = "can_add_admins"
	CapPost            Capability = "can_post"
	CapEditMessages    Capability = "can_edit_messages"
	CapRestrictMembers Capability = "can_restrict_members"
)

type PermissionSet []Capability

func (p PermissionSet) Has(c Capability) bool {
	for _, v := range p {
		if v == c {
			return true
		}
	}
	return false
}

func DefaultGroupAdminPermissions() PermissionSet {
	return PermissionSet{CapDeleteMessages, CapBanUsers, CapInviteUsers, CapPinMessages}
}

func DefaultChannelAdminPermissions() PermissionSet {
	return PermissionSet{CapPost, CapEditMessages, CapDeleteMessages}
}

// MemberPermissions — права обычных участников группы по умолчанию
type MemberPermissions struct {
	CanSendMessages bool `json:"can_send_messages" bson:"can_send_messages"`
	CanSendMedia    bool `json:"can_send_media" bson:"can_send_media"`
	CanInviteUsers  bool `json:"can_invite_users" bson:"can_invite_users"`
	CanPinMessages  bool `json:"can_pin_messages" bson:"can_pin_messages"`
}

func DefaultMemberPermissions() MemberPermissions {
	return MemberPermissions{
		CanSendMessages: true,
		CanSendMedia:    true,
		CanInviteUsers:  false,
		CanPinMessages:  false,
	}
}

// MemberRestrictions — персональные ограничения участника; nil-поле наследует
// значение по умолчанию чата
type MemberRestrictions struct {
	CanSendMessages *bool `json:"can_send_messages,omitempty" bson:"can_send_messages,omitempty"`
	CanSendMedia    *bool `json:"can_send_media,omitempty" bson:"can_send_media,omitempty"`
}

type ChatMember struct {
	UserID       string              `json:"user_id" bson:"user_id"`
	Role         MemberRole          `json:"role" bson:"role"`
	AdminRights  PermissionSet       `json:"admin_rights,omitempty" bson:"admin_rights,omitempty"`
	Restrictions *MemberRestrictions `json:"restrictions,omitempty" bson:"restrictions,omitempty"`
	JoinedAt     time.Time           `json:"joined_at" bson:"joined_at"`
}

type BannedUser struct {
	UserID   string     `json:"user_id" bson:"user_id"`
	BannedBy string     `json:"banned_by" bson:"banned_by"`
	Reason   string     `json:"reason,omitempty" bson:"reason,omitempty"`
	BannedAt time.Time  `json:"banned_at" bson:"banned_at"`
	Until    *time.Time `json:"until,omitempty" bson:"until,omitempty"`
}

// LastMessage — денормализованная сводка для списка чатов, не несёт инвариантов
type LastMessage struct {
	MessageID string      `json:"message_id" bson:"message_id"`
	SenderID  string      `json:"sender_id" bson:"sender_id"`
	Content   string      `json:"content" bson:"content"`
	Type      MessageType `json:"type" bson:"type"`
	SentAt    time.Time   `json:"sent_at" bson:"sent_at"`
}

type DirectPayload struct {
	Members []ChatMember `json:"members" bson:"members"`
}

type GroupPayload struct {
	Members            []ChatMember      `json:"members" bson:"members"`
	DefaultPermissions MemberPermissions `json:"default_permissions" bson:"default_permissions"`
	Banned             []BannedUser      `json:"banned" bson:"banned"`
}

type ChannelPayload struct {
	Subscribers      []string     `json:"subscribers,omitempty" bson:"subscribers"`
	Admins           []ChatMember `json:"admins" bson:"admins"`
	AllowMemberPosts bool         `json:"allow_member_posts" bson:"allow_member_posts"`
	Banned           []BannedUser `json:"banned" bson:"banned"`
}

const MaxPinnedMessages = 100

// Chat — контейнер беседы: общая шапка плюс полезная нагрузка своего вида.
// Ровно один из Direct/Group/Channel не равен nil.
type Chat struct {
	ID             string       `json:"id" bson:"id"`
	Kind           ChatKind     `json:"kind" bson:"kind"`
	Name           string       `json:"name,omitempty" bson:"name,omitempty"`
	Description    string       `json:"description,omitempty" bson:"description,omitempty"`
	Avatar         string       `json:"avatar,omitempty" bson:"avatar,omitempty"`
	OwnerID        string       `json:"owner_id" bson:"owner_id"`
	PinnedMessages []string     `json:"pinned_messages" bson:"pinned_messages"`
	LastMessage    *LastMessage `json:"last_message,omitempty" bson:"last_message,omitempty"`
	CreatedAt      time.Time    `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at" bson:"updated_at"`

	Direct  *DirectPayload  `json:"direct,omitempty" bson:"direct,omitempty"`
	Group   *GroupPayload   `json:"group,omitempty" bson:"group,omitempty"`
	Channel *ChannelPayload `json:"channel,omitempty" bson:"channel,omitempty"`
}

// Member возвращает запись участника с ролью; для каналов это только админы
func (c *Chat) Member(userID string) *ChatMember {
	var members []ChatMember
	switch c.Kind {
	case ChatKindDirect:
		if c.Direct != nil {
			members = c.Direct.Members
		}
	case ChatKindGroup:
		if c.Group != nil {
			members = c.Group.Members
		}
	case ChatKindChannel:
		if c.Channel != nil {
			members = c.Channel.Admins
		}
	}
	for i := range members {
		if members[i].UserID == userID {
			return &members[i]
		}
	}
	return nil
}

func (c *Chat) IsParticipant(userID string) bool {
	if c.Kind == ChatKindChannel {
		if userID == c.OwnerID {
			return true
		}
		if c.Channel == nil {
			return false
		}
		return contains(c.Channel.Subscribers, userID) || c.Member(userID) != nil
	}
	return c.Member(userID) != nil
}

// Role возвращает эффективную роль; владелец неявно администратор
func (c *Chat) Role(userID string) MemberRole {
	if userID == c.OwnerID {
		return RoleOwner
	}
	if m := c.Member(userID); m != nil {
		return m.Role
	}
	return ""
}

func (c *Chat) IsBanned(userID string) bool {
	var banned []BannedUser
	switch {
	case c.Group != nil:
		banned = c.Group.Banned
	case c.Channel != nil:
		banned = c.Channel.Banned
	}
	now := time.Now()
	for _, b := range banned {
		if b.UserID != userID {
			continue
		}
		if b.Until != nil && b.Until.Before(now) {
			continue // срок бана истёк
		}
		return true
	}
	return false
}

// ParticipantIDs — все идентификаторы участников (для рассылок и счётчиков)
func (c *Chat) ParticipantIDs() []string {
	seen := map[string]struct{}{}
	var ids []string
	add := func(id string) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	switch c.Kind {
	case ChatKindDirect:
		if c.Direct != nil {
			for _, m := range c.Direct.Members {
				add(m.UserID)
			}
		}
	case ChatKindGroup:
		if c.Group != nil {
			for _, m := range c.Group.Members {
				add(m.UserID)
			}
		}
	case ChatKindChannel:
		add(c.OwnerID)
		if c.Channel != nil {
			for _, m := range c.Channel.Admins {
				add(m.UserID)
			}
			for _, id := range c.Channel.Subscribers {
				add(id)
			}
		}
	}
	return ids
}

// Redacted скрывает список подписчиков канала от рядовых зрителей:
// подписчики не видят друг друга
func (c *Chat) Redacted(viewerID string) *Chat {
	if c.Kind != ChatKindChannel || c.Channel == nil {
		return c
	}
	if viewerID == c.OwnerID || c.Role(viewerID) == RoleAdmin {
		return c
	}
	cp := *c
	payload := *c.Channel
	payload.Subscribers = nil
	cp.Channel = &payload
	return &cp
}
