package service

import (
	"context"
	"testing"
	"time"

	"messenger/internal/domain"
	"messenger/internal/realtime"
	apperrors "messenger/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMessageFixture(t *testing.T, chats ...*domain.Chat) (*MessageService, *memMessages, *memChats, *recordingSink) {
	t.Helper()
	chatRepo := newMemChats(chats...)
	msgRepo := newMemMessages()
	sink := &recordingSink{}
	authz := NewAuthzService(chatRepo, noopLogger{})
	svc := NewMessageService(msgRepo, chatRepo, authz, sink, noopLogger{})
	return svc, msgRepo, chatRepo, sink
}

func TestSend_HappyPath(t *testing.T) {
	chat := groupChat("alice", "bob")
	svc, _, chatRepo, sink := newMessageFixture(t, chat)
	ctx := context.Background()

	msg, err := svc.Send(ctx, chat.ID, "bob", SendInput{Content: "hello"})
	require.NoError(t, err)

	assert.Equal(t, domain.MessageTypeText, msg.Type)
	assert.Equal(t, domain.StatusSent, msg.Status)
	assert.Equal(t, []string{"bob"}, msg.ReadBy, "sender counts as having read own message")

	stored, err := chatRepo.GetByID(ctx, chat.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastMessage)
	assert.Equal(t, msg.ID, stored.LastMessage.MessageID)

	events := sink.byEvent(realtime.EventNewMessage)
	require.Len(t, events, 1)
	assert.Equal(t, chat.ID, events[0].Target)
}

func TestSend_OutsiderGetsNotFound(t *testing.T) {
	chat := groupChat("alice", "bob")
	svc, _, _, _ := newMessageFixture(t, chat)

	_, err := svc.Send(context.Background(), chat.ID, "eve", SendInput{Content: "hi"})
	assert.ErrorIs(t, err, apperrors.ErrChatNotFound)
}

func TestSend_ReplyToMustBeSameChat(t *testing.T) {
	chatA := groupChat("alice", "bob")
	chatB := groupChat("alice", "bob")
	chatB.ID = "group-2"
	svc, _, _, _ := newMessageFixture(t, chatA, chatB)
	ctx := context.Background()

	original, err := svc.Send(ctx, chatA.ID, "alice", SendInput{Content: "first"})
	require.NoError(t, err)

	_, err = svc.Send(ctx, chatB.ID, "alice", SendInput{Content: "reply", ReplyTo: original.ID})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.Send(ctx, chatA.ID, "bob", SendInput{Content: "reply", ReplyTo: original.ID})
	assert.NoError(t, err)
}

func TestSend_MediaValidation(t *testing.T) {
	chat := groupChat("alice", "bob")
	svc, _, _, _ := newMessageFixture(t, chat)
	ctx := context.Background()

	_, err := svc.Send(ctx, chat.ID, "bob", SendInput{Type: domain.MessageTypeImage})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.Send(ctx, chat.ID, "bob", SendInput{Type: domain.MessageTypeImage, MediaURL: "https://cdn/img.png"})
	assert.NoError(t, err)
}

func TestReact_ToggleAndSwitch(t *testing.T) {
	chat := groupChat("alice", "bob")
	svc, _, _, sink := newMessageFixture(t, chat)
	ctx := context.Background()

	msg, err := svc.Send(ctx, chat.ID, "alice", SendInput{Content: "react to me"})
	require.NoError(t, err)

	// Первая реакция
	updated, err := svc.React(ctx, chat.ID, msg.ID, "bob", "👍")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, updated.Reactions["👍"])

	// Смена эмодзи переносит пользователя, двух реакций не бывает
	updated, err = svc.React(ctx, chat.ID, msg.ID, "bob", "❤️")
	require.NoError(t, err)
	assert.NotContains(t, updated.Reactions, "👍")
	assert.Equal(t, []string{"bob"}, updated.Reactions["❤️"])

	// Повтор того же эмодзи снимает реакцию
	updated, err = svc.React(ctx, chat.ID, msg.ID, "bob", "❤️")
	require.NoError(t, err)
	assert.Empty(t, updated.Reactions)

	// Каждое переключение — ровно одно событие
	assert.Len(t, sink.byEvent(realtime.EventReactionChanged), 3)
}

func TestMarkRead_Idempotent(t *testing.T) {
	chat := groupChat("alice", "bob")
	svc, _, _, sink := newMessageFixture(t, chat)
	ctx := context.Background()

	msg, err := svc.Send(ctx, chat.ID, "alice", SendInput{Content: "read me"})
	require.NoError(t, err)

	require.NoError(t, svc.MarkRead(ctx, chat.ID, msg.ID, "bob"))
	require.NoError(t, svc.MarkRead(ctx, chat.ID, msg.ID, "bob"))
	// Отметка собственного сообщения — no-op
	require.NoError(t, svc.MarkRead(ctx, chat.ID, msg.ID, "alice"))

	assert.Len(t, sink.byEvent(realtime.EventMessageStatus), 1)
}

func TestStatus_ReadIsNotRegressedByLaterDelivery(t *testing.T) {
	chat := groupChat("alice", "bob", "carol")
	svc, msgRepo, _, _ := newMessageFixture(t, chat)
	ctx := context.Background()

	msg, err := svc.Send(ctx, chat.ID, "alice", SendInput{Content: "status race"})
	require.NoError(t, err)

	// Прочтение засчитывает и доставку
	require.NoError(t, svc.MarkRead(ctx, chat.ID, msg.ID, "bob"))
	stored, err := msgRepo.GetByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRead, stored.Status)
	assert.Contains(t, stored.DeliveredTo, "bob")

	// Поздняя доставка другому получателю не откатывает read
	require.NoError(t, svc.MarkDelivered(ctx, chat.ID, msg.ID, "carol"))
	stored, err = msgRepo.GetByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRead, stored.Status)
	assert.Contains(t, stored.DeliveredTo, "carol")
}

func TestSend_BannedMemberGetsHonestDenial(t *testing.T) {
	chat := groupChat("alice", "bob")
	svc, _, _, _ := newMessageFixture(t, chat)
	ctx := context.Background()

	// Бан убирает из участников и кладёт в список банов
	chat.Group.Members = chat.Group.Members[:1]
	chat.Group.Banned = append(chat.Group.Banned, domain.BannedUser{
		UserID: "bob", BannedBy: "alice", BannedAt: time.Now(),
	})

	_, err := svc.Send(ctx, chat.ID, "bob", SendInput{Content: "let me in"})
	var denied *apperrors.PermissionDeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, apperrors.ReasonBanned, denied.Reason)
}

func TestEdit_WindowEnforced(t *testing.T) {
	chat := groupChat("alice", "bob")
	svc, msgRepo, _, _ := newMessageFixture(t, chat)
	ctx := context.Background()

	msg, err := svc.Send(ctx, chat.ID, "bob", SendInput{Content: "tpyo"})
	require.NoError(t, err)

	edited, err := svc.Edit(ctx, chat.ID, msg.ID, "bob", "typo")
	require.NoError(t, err)
	assert.True(t, edited.Edited)
	assert.Equal(t, "typo", edited.Content)

	// Состарим сообщение за пределы окна
	msgRepo.mu.Lock()
	msgRepo.messages[msg.ID].CreatedAt = time.Now().Add(-domain.EditWindow - time.Hour)
	msgRepo.mu.Unlock()

	_, err = svc.Edit(ctx, chat.ID, msg.ID, "bob", "too late")
	assert.True(t, apperrors.IsPermissionDenied(err))
}

func TestDeleteForEveryone_Tombstone(t *testing.T) {
	chat := groupChat("alice", "bob")
	svc, msgRepo, _, sink := newMessageFixture(t, chat)
	ctx := context.Background()

	msg, err := svc.Send(ctx, chat.ID, "bob", SendInput{Content: "secret"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteForEveryone(ctx, chat.ID, msg.ID, "bob"))

	stored, err := msgRepo.GetByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.True(t, stored.Deleted)
	assert.Equal(t, domain.Tombstone, stored.Content)

	// Повторное удаление — no-op без второго события
	require.NoError(t, svc.DeleteForEveryone(ctx, chat.ID, msg.ID, "bob"))
	assert.Len(t, sink.byEvent(realtime.EventMessageDeleted), 1)
}

func TestDeleteForMe_Local(t *testing.T) {
	chat := groupChat("alice", "bob")
	svc, _, _, sink := newMessageFixture(t, chat)
	ctx := context.Background()

	msg, err := svc.Send(ctx, chat.ID, "alice", SendInput{Content: "visible"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteForMe(ctx, chat.ID, msg.ID, "bob"))
	require.NoError(t, svc.DeleteForMe(ctx, chat.ID, msg.ID, "bob"))

	// Скрыто для удалившего, видно остальным
	bobView, err := svc.List(ctx, chat.ID, "bob", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, bobView)

	aliceView, err := svc.List(ctx, chat.ID, "alice", 10, 0)
	require.NoError(t, err)
	require.Len(t, aliceView, 1)
	assert.Equal(t, "visible", aliceView[0].Content)

	// Событие адресовано только удалившему и не дублируется
	events := sink.byEvent(realtime.EventMessageDeleted)
	require.Len(t, events, 1)
	assert.Equal(t, "user", events[0].Scope)
	assert.Equal(t, "bob", events[0].Target)
}

func TestPin_LimitAndPermissions(t *testing.T) {
	chat := groupChat("alice", "bob")
	svc, _, chatRepo, _ := newMessageFixture(t, chat)
	ctx := context.Background()

	msg, err := svc.Send(ctx, chat.ID, "alice", SendInput{Content: "pin me"})
	require.NoError(t, err)

	// Обычный участник не закрепляет по умолчанию
	err = svc.Pin(ctx, chat.ID, msg.ID, "bob")
	assert.True(t, apperrors.IsPermissionDenied(err))

	require.NoError(t, svc.Pin(ctx, chat.ID, msg.ID, "alice"))
	// Повторное закрепление — no-op
	require.NoError(t, svc.Pin(ctx, chat.ID, msg.ID, "alice"))

	stored, err := chatRepo.GetByID(ctx, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{msg.ID}, stored.PinnedMessages)

	require.NoError(t, svc.Unpin(ctx, chat.ID, msg.ID, "alice"))
	stored, err = chatRepo.GetByID(ctx, chat.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.PinnedMessages)
}

func TestForward_CopiesContentNotState(t *testing.T) {
	source := groupChat("alice", "bob")
	target := groupChat("bob", "carol")
	target.ID = "group-2"
	svc, _, _, _ := newMessageFixture(t, source, target)
	ctx := context.Background()

	msg, err := svc.Send(ctx, source.ID, "alice", SendInput{Content: "forward me"})
	require.NoError(t, err)
	_, err = svc.React(ctx, source.ID, msg.ID, "bob", "👍")
	require.NoError(t, err)

	forwarded, err := svc.Forward(ctx, source.ID, msg.ID, target.ID, "bob")
	require.NoError(t, err)

	assert.Equal(t, "forward me", forwarded.Content)
	assert.Equal(t, msg.ID, forwarded.ForwardedFrom)
	assert.Equal(t, "bob", forwarded.SenderID)
	assert.Equal(t, target.ID, forwarded.ChatID)
	assert.Empty(t, forwarded.Reactions, "reactions are not carried over")
	assert.Equal(t, []string{"bob"}, forwarded.ReadBy)
}

func TestForward_RequiresBothMemberships(t *testing.T) {
	source := groupChat("alice", "bob")
	target := groupChat("carol", "dave")
	target.ID = "group-2"
	svc, _, _, _ := newMessageFixture(t, source, target)
	ctx := context.Background()

	msg, err := svc.Send(ctx, source.ID, "alice", SendInput{Content: "x"})
	require.NoError(t, err)

	// Боб не состоит в целевом чате
	_, err = svc.Forward(ctx, source.ID, msg.ID, target.ID, "bob")
	assert.ErrorIs(t, err, apperrors.ErrChatNotFound)
}

func TestList_Pagination(t *testing.T) {
	chat := groupChat("alice", "bob")
	svc, _, _, _ := newMessageFixture(t, chat)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.Send(ctx, chat.ID, "alice", SendInput{Content: string(rune('a' + i))})
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, chat.ID, "bob", 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	// Новые первыми
	assert.Equal(t, "e", page[0].Content)
	assert.Equal(t, "d", page[1].Content)

	rest, err := svc.List(ctx, chat.ID, "bob", 10, 2)
	require.NoError(t, err)
	assert.Len(t, rest, 3)
}
