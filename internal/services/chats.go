package services

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"collab-service/internal/apperr"
	"collab-service/internal/authz"
	"collab-service/internal/blob"
	"collab-service/internal/models"
	"collab-service/internal/observability"
	"collab-service/internal/repositories"
	"collab-service/internal/ws"
)

// ChatService resolves private chats and handles their messages.
type ChatService struct {
	chats    repositories.ChatRepository
	messages repositories.MessageRepository
	users    repositories.UserRepository
	blobs    blob.Store
	notifier Notifier
	push     Broadcaster
	logger   *slog.Logger
}

// NewChatService constructs a ChatService. push may be nil.
func NewChatService(chats repositories.ChatRepository, messages repositories.MessageRepository, users repositories.UserRepository, blobs blob.Store, notifier Notifier, push Broadcaster, logger *slog.Logger) *ChatService {
	if push == nil {
		push = noopBroadcaster{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatService{chats: chats, messages: messages, users: users, blobs: blobs, notifier: notifier, push: push, logger: logger}
}

// Resolve returns the single chat between the caller and otherUserID, creating it on first use.
func (s *ChatService) Resolve(ctx context.Context, caller models.Caller, otherUserID int) (chat models.PrivateChat, err error) {
	ctx, span := startSpan(ctx, "ChatService.Resolve", caller)
	defer finish(span, &err)
	span.SetAttributes(attribute.Int("chat.other_user_id", otherUserID))

	if otherUserID == caller.UserID {
		return chat, apperr.ErrSelfChat
	}
	if _, err := activeUser(s.users.GetUser(ctx, otherUserID)); err != nil {
		return chat, err
	}
	return s.chats.ResolveChat(ctx, caller.UserID, otherUserID)
}

// ListChats returns the caller's chats, most recently active first.
func (s *ChatService) ListChats(ctx context.Context, caller models.Caller) (chats []models.PrivateChat, err error) {
	ctx, span := startSpan(ctx, "ChatService.ListChats", caller)
	defer finish(span, &err)

	return s.chats.ListChatsForUser(ctx, caller.UserID)
}

// CanViewChat returns nil when the caller may watch the chat.
func (s *ChatService) CanViewChat(ctx context.Context, caller models.Caller, chatID int) (err error) {
	ctx, span := startSpan(ctx, "ChatService.CanViewChat", caller)
	defer finish(span, &err)

	chat, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		return err
	}
	if !authz.CanChat(caller, chat, authz.ActionView) {
		return apperr.ErrForbidden
	}
	return nil
}

// GetChat returns a chat with its messages in commit order.
func (s *ChatService) GetChat(ctx context.Context, caller models.Caller, chatID int) (detail models.ChatDetail, err error) {
	ctx, span := startSpan(ctx, "ChatService.GetChat", caller)
	defer finish(span, &err)

	chat, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		return detail, err
	}
	if !authz.CanChat(caller, chat, authz.ActionView) {
		return detail, apperr.ErrForbidden
	}
	msgs, err := s.messages.ListPrivateMessages(ctx, chatID)
	if err != nil {
		return detail, err
	}
	return models.ChatDetail{Chat: chat, Messages: msgs}, nil
}

// SendToUser resolves the chat with otherUserID and posts the first message into it.
func (s *ChatService) SendToUser(ctx context.Context, caller models.Caller, otherUserID int, body string, upload *blob.Upload) (models.PrivateChat, models.PrivateMessage, error) {
	if _, err := checkContent(body, upload); err != nil {
		return models.PrivateChat{}, models.PrivateMessage{}, err
	}
	chat, err := s.Resolve(ctx, caller, otherUserID)
	if err != nil {
		return models.PrivateChat{}, models.PrivateMessage{}, err
	}
	msg, err := s.PostPrivateMessage(ctx, caller, chat.ID, body, upload)
	return chat, msg, err
}

// PostPrivateMessage stores a message from a participant and notifies the other one.
func (s *ChatService) PostPrivateMessage(ctx context.Context, caller models.Caller, chatID int, body string, upload *blob.Upload) (msg models.PrivateMessage, err error) {
	ctx, span := startSpan(ctx, "ChatService.PostPrivateMessage", caller)
	defer finish(span, &err)
	span.SetAttributes(attribute.Int("chat.id", chatID))

	body, err = checkContent(body, upload)
	if err != nil {
		return msg, err
	}
	chat, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		return msg, err
	}
	if !authz.CanChat(caller, chat, authz.ActionPost) {
		return msg, apperr.ErrForbidden
	}

	draft := models.PrivateMessage{ChatID: chatID, SenderID: caller.UserID, Body: body}
	if upload != nil {
		url, err := s.blobs.Store(ctx, upload.Data, upload.Name, upload.ContentType)
		if err != nil {
			return msg, fmt.Errorf("store attachment: %w", err)
		}
		draft.AttachmentURL = sql.NullString{String: url, Valid: true}
		draft.AttachmentName = sql.NullString{String: upload.Name, Valid: true}
		draft.AttachmentType = sql.NullString{String: upload.ContentType, Valid: true}
		draft.AttachmentSize = sql.NullInt64{Int64: upload.Size(), Valid: true}
	}

	msg, err = s.messages.CreatePrivateMessage(ctx, draft)
	if err != nil {
		return models.PrivateMessage{}, err
	}
	observability.IncMessagePosted("private")
	s.push.Broadcast(ws.ChatRoom(chatID), models.ChatEvent{Type: models.EventMessage, ChatID: chatID, Message: &msg})

	title := "New private message"
	if sender, err := s.users.GetUser(ctx, caller.UserID); err == nil {
		title = "New message from " + displayName(sender)
	} else {
		s.logger.Warn("sender lookup failed", "user_id", caller.UserID, "err", err)
	}
	s.notifier.Fanout(ctx, models.NotificationDraft{
		SenderID:  caller.UserID,
		Title:     title,
		Body:      Preview(body),
		ActionURL: fmt.Sprintf("/chats/%d", chatID),
	}, []int{chat.Other(caller.UserID)})
	return msg, nil
}

// EditPrivateMessage replaces the body of the caller's own message.
func (s *ChatService) EditPrivateMessage(ctx context.Context, caller models.Caller, chatID, messageID int, body string) (msg models.PrivateMessage, err error) {
	ctx, span := startSpan(ctx, "ChatService.EditPrivateMessage", caller)
	defer finish(span, &err)

	current, err := s.privateMessage(ctx, chatID, messageID)
	if err != nil {
		return msg, err
	}
	if !authz.CanPrivateMessage(caller, current.SenderID, authz.ActionEditOwn) {
		return msg, apperr.ErrForbidden
	}
	if current.IsDeleted {
		return msg, apperr.ErrMessageDeleted
	}
	if body, err = checkBody(body, current.Attachment() != nil); err != nil {
		return msg, err
	}

	msg, err = s.messages.EditPrivateMessage(ctx, messageID, body)
	if err != nil {
		return models.PrivateMessage{}, err
	}
	s.push.Broadcast(ws.ChatRoom(chatID), models.ChatEvent{Type: models.EventMessageEdited, ChatID: chatID, Message: &msg})
	return msg, nil
}

// DeletePrivateMessage soft-deletes the caller's own message. Repeating it succeeds.
func (s *ChatService) DeletePrivateMessage(ctx context.Context, caller models.Caller, chatID, messageID int) (err error) {
	ctx, span := startSpan(ctx, "ChatService.DeletePrivateMessage", caller)
	defer finish(span, &err)

	current, err := s.privateMessage(ctx, chatID, messageID)
	if err != nil {
		return err
	}
	if !authz.CanPrivateMessage(caller, current.SenderID, authz.ActionDelete) {
		return apperr.ErrForbidden
	}
	if current.IsDeleted {
		return nil
	}
	if err := s.messages.SoftDeletePrivateMessage(ctx, messageID); err != nil {
		return err
	}
	s.push.Broadcast(ws.ChatRoom(chatID), models.ChatEvent{Type: models.EventMessageDeleted, ChatID: chatID, MessageID: messageID})
	return nil
}

func (s *ChatService) privateMessage(ctx context.Context, chatID, messageID int) (models.PrivateMessage, error) {
	msg, err := s.messages.GetPrivateMessage(ctx, messageID)
	if err != nil {
		return models.PrivateMessage{}, err
	}
	if msg.ChatID != chatID {
		return models.PrivateMessage{}, apperr.ErrMessageNotFound
	}
	return msg, nil
}
