package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"messenger/internal/domain"
	apperrors "messenger/pkg/errors"
)

// Тестовые in-memory реализации репозиториев. Повторяют контракт
// mongo-реализаций, включая ошибки «не найдено».

type memUsers struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newMemUsers(users ...*domain.User) *memUsers {
	m := &memUsers{users: make(map[string]*domain.User)}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *memUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (m *memUsers) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperrors.ErrUserNotFound
}

func (m *memUsers) GetMany(_ context.Context, ids []string) ([]*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			copied := *u
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *memUsers) Search(_ context.Context, query string, limit int64) ([]*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	query = strings.ToLower(query)
	var out []*domain.User
	for _, u := range m.users {
		if strings.Contains(strings.ToLower(u.Username), query) ||
			strings.Contains(strings.ToLower(u.DisplayName), query) {
			copied := *u
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memUsers) UpdateProfile(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return apperrors.ErrUserNotFound
	}
	copied := *user
	m.users[user.ID] = &copied
	return nil
}

func (m *memUsers) SetPresence(_ context.Context, id string, online bool, lastSeen time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	u.IsOnline = online
	u.LastSeen = &lastSeen
	return nil
}

func (m *memUsers) AddFriend(_ context.Context, userID, friendID string) error {
	return m.addTo(userID, friendID, func(u *domain.User) *[]string { return &u.Friends })
}

func (m *memUsers) RemoveFriend(_ context.Context, userID, friendID string) error {
	return m.removeFrom(userID, friendID, func(u *domain.User) *[]string { return &u.Friends })
}

func (m *memUsers) AddBlocked(_ context.Context, userID, targetID string) error {
	return m.addTo(userID, targetID, func(u *domain.User) *[]string { return &u.BlockedUsers })
}

func (m *memUsers) RemoveBlocked(_ context.Context, userID, targetID string) error {
	return m.removeFrom(userID, targetID, func(u *domain.User) *[]string { return &u.BlockedUsers })
}

func (m *memUsers) addTo(userID, id string, field func(*domain.User) *[]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	list := field(u)
	for _, v := range *list {
		if v == id {
			return nil
		}
	}
	*list = append(*list, id)
	return nil
}

func (m *memUsers) removeFrom(userID, id string, field func(*domain.User) *[]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	list := field(u)
	out := (*list)[:0]
	for _, v := range *list {
		if v != id {
			out = append(out, v)
		}
	}
	*list = out
	return nil
}

type memChats struct {
	mu    sync.Mutex
	chats map[string]*domain.Chat
}

func newMemChats(chats ...*domain.Chat) *memChats {
	m := &memChats{chats: make(map[string]*domain.Chat)}
	for _, c := range chats {
		m.chats[c.ID] = c
	}
	return m
}

func (m *memChats) get(id string) (*domain.Chat, error) {
	c, ok := m.chats[id]
	if !ok {
		return nil, apperrors.ErrChatNotFound
	}
	return c, nil
}

func (m *memChats) Create(_ context.Context, chat *domain.Chat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chats[chat.ID] = chat
	return nil
}

func (m *memChats) GetByID(_ context.Context, id string) (*domain.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(id)
}

func (m *memChats) ListByUser(_ context.Context, userID string) ([]*domain.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Chat
	for _, c := range m.chats {
		if c.IsParticipant(userID) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (m *memChats) FindDirect(_ context.Context, userA, userB string) (*domain.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.chats {
		if c.Kind == domain.ChatKindDirect && c.IsParticipant(userA) && c.IsParticipant(userB) {
			return c, nil
		}
	}
	return nil, apperrors.ErrChatNotFound
}

func (m *memChats) UpdateInfo(_ context.Context, chatID string, name, description, avatar *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.get(chatID)
	if err != nil {
		return err
	}
	if name != nil {
		c.Name = *name
	}
	if description != nil {
		c.Description = *description
	}
	if avatar != nil {
		c.Avatar = *avatar
	}
	return nil
}

func (m *memChats) AddMember(_ context.Context, chatID string, kind domain.ChatKind, member domain.ChatMember) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.get(chatID)
	if err != nil {
		return err
	}
	switch kind {
	case domain.ChatKindGroup:
		c.Group.Members = append(c.Group.Members, member)
	case domain.ChatKindDirect:
		c.Direct.Members = append(c.Direct.Members, member)
	case domain.ChatKindChannel:
		c.Channel.Admins = append(c.Channel.Admins, member)
	}
	return nil
}

func (m *memChats) RemoveMember(_ context.Context, chatID string, kind domain.ChatKind, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.get(chatID)
	if err != nil {
		return err
	}
	drop := func(members []domain.ChatMember) []domain.ChatMember {
		out := members[:0]
		for _, mem := range members {
			if mem.UserID != userID {
				out = append(out, mem)
			}
		}
		return out
	}
	switch kind {
	case domain.ChatKindGroup:
		c.Group.Members = drop(c.Group.Members)
	case domain.ChatKindDirect:
		c.Direct.Members = drop(c.Direct.Members)
	case domain.ChatKindChannel:
		c.Channel.Admins = drop(c.Channel.Admins)
	}
	return nil
}

func (m *memChats) AddSubscriber(_ context.Context, chatID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.get(chatID)
	if err != nil {
		return err
	}
	for _, id := range c.Channel.Subscribers {
		if id == userID {
			return nil
		}
	}
	c.Channel.Subscribers = append(c.Channel.Subscribers, userID)
	return nil
}

func (m *memChats) RemoveSubscriber(_ context.Context, chatID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.get(chatID)
	if err != nil {
		return err
	}
	out := c.Channel.Subscribers[:0]
	for _, id := range c.Channel.Subscribers {
		if id != userID {
			out = append(out, id)
		}
	}
	c.Channel.Subscribers = out
	return nil
}

func (m *memChats) SetAdmin(_ context.Context, chatID string, kind domain.ChatKind, userID string, rights domain.PermissionSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.get(chatID)
	if err != nil {
		return err
	}
	if kind == domain.ChatKindChannel {
		for i := range c.Channel.Admins {
			if c.Channel.Admins[i].UserID == userID {
				c.Channel.Admins[i].Role = domain.RoleAdmin
				c.Channel.Admins[i].AdminRights = rights
				return nil
			}
		}
		c.Channel.Admins = append(c.Channel.Admins, domain.ChatMember{
			UserID: userID, Role: domain.RoleAdmin, AdminRights: rights, JoinedAt: time.Now(),
		})
		return nil
	}
	for i := range c.Group.Members {
		if c.Group.Members[i].UserID == userID {
			c.Group.Members[i].Role = domain.RoleAdmin
			c.Group.Members[i].AdminRights = rights
			return nil
		}
	}
	return apperrors.ErrUserNotFound
}

func (m *memChats) DemoteAdmin(_ context.Context, chatID string, kind domain.ChatKind, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.get(chatID)
	if err != nil {
		return err
	}
	if kind == domain.ChatKindChannel {
		out := c.Channel.Admins[:0]
		for _, a := range c.Channel.Admins {
			if a.UserID != userID {
				out = append(out, a)
			}
		}
		c.Channel.Admins = out
		return nil
	}
	for i := range c.Group.Members {
		if c.Group.Members[i].UserID == userID {
			c.Group.Members[i].Role = domain.RoleMember
			c.Group.Members[i].AdminRights = nil
			return nil
		}
	}
	return nil
}

func (m *memChats) SetRestrictions(_ context.Context, chatID, userID string, r *domain.MemberRestrictions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.get(chatID)
	if err != nil {
		return err
	}
	for i := range c.Group.Members {
		if c.Group.Members[i].UserID == userID {
			c.Group.Members[i].Restrictions = r
			return nil
		}
	}
	return apperrors.ErrUserNotFound
}

func (m *memChats) SetDefaultPermissions(_ context.Context, chatID string, perms domain.MemberPermissions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.get(chatID)
	if err != nil {
		return err
	}
	c.Group.DefaultPermissions = perms
	return nil
}

func (m *memChats) AddBan(_ context.Context, chatID string, kind domain.ChatKind, ban domain.BannedUser) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.get(chatID)
	if err != nil {
		return err
	}
	if kind == domain.ChatKindChannel {
		c.Channel.Banned = append(c.Channel.Banned, ban)
	} else {
		c.Group.Banned = append(c.Group.Banned, ban)
	}
	return nil
}

func (m *memChats) RemoveBan(_ context.Context, chatID string, kind domain.ChatKind, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.get(chatID)
	if err != nil {
		return err
	}
	drop := func(bans []domain.BannedUser) []domain.BannedUser {
		out := bans[:0]
		for _, b := range bans {
			if b.UserID != userID {
				out = append(out, b)
			}
		}
		return out
	}
	if kind == domain.ChatKindChannel {
		c.Channel.Banned = drop(c.Channel.Banned)
	} else {
		c.Group.Banned = drop(c.Group.Banned)
	}
	return nil
}

func (m *memChats) PinMessage(_ context.Context, chatID, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.get(chatID)
	if err != nil {
		return err
	}
	c.PinnedMessages = append(c.PinnedMessages, messageID)
	return nil
}

func (m *memChats) UnpinMessage(_ context.Context, chatID, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.get(chatID)
	if err != nil {
		return err
	}
	out := c.PinnedMessages[:0]
	for _, id := range c.PinnedMessages {
		if id != messageID {
			out = append(out, id)
		}
	}
	c.PinnedMessages = out
	return nil
}

func (m *memChats) SetLastMessage(_ context.Context, chatID string, last *domain.LastMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.get(chatID)
	if err != nil {
		return err
	}
	c.LastMessage = last
	c.UpdatedAt = time.Now()
	return nil
}

type memMessages struct {
	mu       sync.Mutex
	messages map[string]*domain.Message
	order    []string
}

func newMemMessages(messages ...*domain.Message) *memMessages {
	m := &memMessages{messages: make(map[string]*domain.Message)}
	for _, msg := range messages {
		m.messages[msg.ID] = msg
		m.order = append(m.order, msg.ID)
	}
	return m
}

func (m *memMessages) get(id string) (*domain.Message, error) {
	msg, ok := m.messages[id]
	if !ok {
		return nil, apperrors.ErrMessageNotFound
	}
	return msg, nil
}

func appendUnique(list []string, id string) []string {
	for _, v := range list {
		if v == id {
			return list
		}
	}
	return append(list, id)
}

func (m *memMessages) Create(_ context.Context, message *domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[message.ID] = message
	m.order = append(m.order, message.ID)
	return nil
}

func (m *memMessages) GetByID(_ context.Context, id string) (*domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, err := m.get(id)
	if err != nil {
		return nil, err
	}
	copied := *msg
	return &copied, nil
}

func (m *memMessages) ListByChat(_ context.Context, chatID string, limit, offset int64) ([]*domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Message
	for i := len(m.order) - 1; i >= 0; i-- {
		msg := m.messages[m.order[i]]
		if msg.ChatID != chatID {
			continue
		}
		if offset > 0 {
			offset--
			continue
		}
		copied := *msg
		out = append(out, &copied)
		if int64(len(out)) >= limit {
			break
		}
	}
	return out, nil
}

func (m *memMessages) EditContent(_ context.Context, id, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, err := m.get(id)
	if err != nil {
		return err
	}
	msg.Content = content
	msg.Edited = true
	msg.UpdatedAt = time.Now()
	return nil
}

func (m *memMessages) MarkDeleted(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, err := m.get(id)
	if err != nil {
		return err
	}
	msg.Deleted = true
	msg.Content = domain.Tombstone
	msg.MediaURL = ""
	return nil
}

func (m *memMessages) AddDeletedFor(_ context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, err := m.get(id)
	if err != nil {
		return err
	}
	msg.DeletedFor = append(msg.DeletedFor, userID)
	return nil
}

func (m *memMessages) SetReactions(_ context.Context, id string, reactions map[string][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, err := m.get(id)
	if err != nil {
		return err
	}
	msg.Reactions = reactions
	return nil
}

func (m *memMessages) AddReadBy(_ context.Context, id, userID string, status domain.MessageStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, err := m.get(id)
	if err != nil {
		return err
	}
	msg.ReadBy = appendUnique(msg.ReadBy, userID)
	msg.DeliveredTo = appendUnique(msg.DeliveredTo, userID)
	msg.Status = status
	return nil
}

func (m *memMessages) AddDeliveredTo(_ context.Context, id, userID string, status domain.MessageStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, err := m.get(id)
	if err != nil {
		return err
	}
	msg.DeliveredTo = appendUnique(msg.DeliveredTo, userID)
	msg.Status = status
	return nil
}

func (m *memMessages) CountUnread(_ context.Context, chatID, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, msg := range m.messages {
		if msg.ChatID != chatID || msg.SenderID == userID || msg.Deleted {
			continue
		}
		if msg.ReadByUser(userID) || msg.HiddenFor(userID) {
			continue
		}
		count++
	}
	return count, nil
}

type memRequests struct {
	mu       sync.Mutex
	requests map[string]*domain.FriendRequest
}

func newMemRequests(requests ...*domain.FriendRequest) *memRequests {
	m := &memRequests{requests: make(map[string]*domain.FriendRequest)}
	for _, r := range requests {
		m.requests[r.ID] = r
	}
	return m
}

func (m *memRequests) Create(_ context.Context, request *domain.FriendRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[request.ID] = request
	return nil
}

func (m *memRequests) GetByID(_ context.Context, id string) (*domain.FriendRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, apperrors.ErrRequestNotFound
	}
	copied := *r
	return &copied, nil
}

func (m *memRequests) FindPendingBetween(_ context.Context, userA, userB string) (*domain.FriendRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.requests {
		if r.Status != domain.FriendRequestPending {
			continue
		}
		if (r.FromUserID == userA && r.ToUserID == userB) ||
			(r.FromUserID == userB && r.ToUserID == userA) {
			copied := *r
			return &copied, nil
		}
	}
	return nil, apperrors.ErrRequestNotFound
}

func (m *memRequests) ListReceived(_ context.Context, userID string) ([]*domain.FriendRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.FriendRequest
	for _, r := range m.requests {
		if r.ToUserID == userID && r.Status == domain.FriendRequestPending {
			copied := *r
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *memRequests) SetStatus(_ context.Context, id string, status domain.FriendRequestStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return apperrors.ErrRequestNotFound
	}
	r.Status = status
	r.UpdatedAt = time.Now()
	return nil
}

func (m *memRequests) DeletePendingBetween(_ context.Context, userA, userB string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.requests {
		if r.Status != domain.FriendRequestPending {
			continue
		}
		if (r.FromUserID == userA && r.ToUserID == userB) ||
			(r.FromUserID == userB && r.ToUserID == userA) {
			delete(m.requests, id)
		}
	}
	return nil
}

// recordedEvent — событие, зафиксированное тестовым приёмником
type recordedEvent struct {
	Scope  string // "chat" или "user"
	Target string
	Event  string
	Data   any
}

type recordingSink struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (s *recordingSink) ChatEvent(chatID, event string, data any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, recordedEvent{Scope: "chat", Target: chatID, Event: event, Data: data})
}

func (s *recordingSink) UserEvent(userID, event string, data any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, recordedEvent{Scope: "user", Target: userID, Event: event, Data: data})
}

func (s *recordingSink) PresenceChanged(_ context.Context, user *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, recordedEvent{Scope: "presence", Target: user.ID, Event: "presence_changed"})
}

func (s *recordingSink) byEvent(event string) []recordedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []recordedEvent
	for _, e := range s.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
func (noopLogger) Fatal(string, ...any) {}
