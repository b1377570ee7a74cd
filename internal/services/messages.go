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

// MessageService reads groups and posts, edits and deletes group messages.
type MessageService struct {
	groups   repositories.GroupRepository
	messages repositories.GroupMessageRepository
	blobs    blob.Store
	notifier Notifier
	push     Broadcaster
	logger   *slog.Logger
}

// NewMessageService constructs a MessageService. push may be nil.
func NewMessageService(groups repositories.GroupRepository, messages repositories.GroupMessageRepository, blobs blob.Store, notifier Notifier, push Broadcaster, logger *slog.Logger) *MessageService {
	if push == nil {
		push = noopBroadcaster{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MessageService{groups: groups, messages: messages, blobs: blobs, notifier: notifier, push: push, logger: logger}
}

// loadGroup returns the group and whether caller is a member of it.
func loadGroup(ctx context.Context, groups repositories.GroupRepository, groupID int, caller models.Caller) (models.Group, bool, error) {
	group, err := groups.GetGroup(ctx, groupID)
	if err != nil {
		return models.Group{}, false, err
	}
	member, err := groups.IsMember(ctx, groupID, caller.UserID)
	if err != nil {
		return models.Group{}, false, err
	}
	return group, member, nil
}

// CanViewGroup returns nil when the caller may watch the group.
func (s *MessageService) CanViewGroup(ctx context.Context, caller models.Caller, groupID int) (err error) {
	ctx, span := startSpan(ctx, "MessageService.CanViewGroup", caller)
	defer finish(span, &err)

	group, member, err := loadGroup(ctx, s.groups, groupID, caller)
	if err != nil {
		return err
	}
	if !authz.CanGroup(caller, authz.FactsFor(group, member), authz.ActionView) {
		return apperr.ErrForbidden
	}
	return nil
}

// GetGroup returns the group with its members and messages in commit order.
func (s *MessageService) GetGroup(ctx context.Context, caller models.Caller, groupID int) (detail models.GroupDetail, err error) {
	ctx, span := startSpan(ctx, "MessageService.GetGroup", caller)
	defer finish(span, &err)
	span.SetAttributes(attribute.Int("group.id", groupID))

	group, member, err := loadGroup(ctx, s.groups, groupID, caller)
	if err != nil {
		return detail, err
	}
	if !authz.CanGroup(caller, authz.FactsFor(group, member), authz.ActionView) {
		return detail, apperr.ErrForbidden
	}

	members, err := s.groups.ListMembers(ctx, groupID)
	if err != nil {
		return detail, err
	}
	msgs, err := s.messages.ListGroupMessages(ctx, groupID)
	if err != nil {
		return detail, err
	}
	return models.GroupDetail{Group: group, Members: members, Messages: msgs}, nil
}

// PostGroupMessage stores a message from a member and notifies every other member.
func (s *MessageService) PostGroupMessage(ctx context.Context, caller models.Caller, groupID int, body string, upload *blob.Upload) (msg models.GroupMessage, err error) {
	ctx, span := startSpan(ctx, "MessageService.PostGroupMessage", caller)
	defer finish(span, &err)
	span.SetAttributes(attribute.Int("group.id", groupID))

	body, err = checkContent(body, upload)
	if err != nil {
		return msg, err
	}
	group, member, err := loadGroup(ctx, s.groups, groupID, caller)
	if err != nil {
		return msg, err
	}
	if !authz.CanGroup(caller, authz.FactsFor(group, member), authz.ActionPost) {
		return msg, apperr.ErrForbidden
	}

	draft := models.GroupMessage{GroupID: groupID, SenderID: caller.UserID, Body: body}
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

	msg, err = s.messages.CreateGroupMessage(ctx, draft)
	if err != nil {
		return models.GroupMessage{}, err
	}
	observability.IncMessagePosted("group")
	s.push.Broadcast(ws.GroupRoom(groupID), models.GroupEvent{Type: models.EventMessage, GroupID: groupID, Message: &msg})

	members, err := s.groups.ListMembers(ctx, groupID)
	if err != nil {
		// the message is committed; only the fan-out is lost
		s.logger.Error("listing members for fan-out failed", "group_id", groupID, "err", err)
		return msg, nil
	}
	s.notifier.Fanout(ctx, models.NotificationDraft{
		SenderID:  caller.UserID,
		Title:     "New message in " + group.Name,
		Body:      Preview(body),
		ActionURL: fmt.Sprintf("/groups/%d", groupID),
	}, memberIDs(members))
	return msg, nil
}

// EditGroupMessage replaces the body of the caller's own message.
func (s *MessageService) EditGroupMessage(ctx context.Context, caller models.Caller, groupID, messageID int, body string) (msg models.GroupMessage, err error) {
	ctx, span := startSpan(ctx, "MessageService.EditGroupMessage", caller)
	defer finish(span, &err)

	current, err := s.groupMessage(ctx, groupID, messageID)
	if err != nil {
		return msg, err
	}
	if !authz.CanGroupMessage(caller, current.SenderID, authz.ActionEditOwn) {
		return msg, apperr.ErrForbidden
	}
	if current.IsDeleted {
		return msg, apperr.ErrMessageDeleted
	}
	if body, err = checkBody(body, current.Attachment() != nil); err != nil {
		return msg, err
	}

	msg, err = s.messages.EditGroupMessage(ctx, messageID, body)
	if err != nil {
		return models.GroupMessage{}, err
	}
	s.push.Broadcast(ws.GroupRoom(groupID), models.GroupEvent{Type: models.EventMessageEdited, GroupID: groupID, Message: &msg})
	return msg, nil
}

// DeleteGroupMessage soft-deletes a message. Deleting an already deleted message succeeds.
func (s *MessageService) DeleteGroupMessage(ctx context.Context, caller models.Caller, groupID, messageID int) (err error) {
	ctx, span := startSpan(ctx, "MessageService.DeleteGroupMessage", caller)
	defer finish(span, &err)

	current, err := s.groupMessage(ctx, groupID, messageID)
	if err != nil {
		return err
	}
	if !authz.CanGroupMessage(caller, current.SenderID, authz.ActionDelete) {
		return apperr.ErrForbidden
	}
	if current.IsDeleted {
		return nil
	}
	if err := s.messages.SoftDeleteGroupMessage(ctx, messageID); err != nil {
		return err
	}
	s.push.Broadcast(ws.GroupRoom(groupID), models.GroupEvent{Type: models.EventMessageDeleted, GroupID: groupID, MessageID: messageID})
	return nil
}

// groupMessage loads a message and checks it belongs to groupID.
func (s *MessageService) groupMessage(ctx context.Context, groupID, messageID int) (models.GroupMessage, error) {
	msg, err := s.messages.GetGroupMessage(ctx, messageID)
	if err != nil {
		return models.GroupMessage{}, err
	}
	if msg.GroupID != groupID {
		return models.GroupMessage{}, apperr.ErrMessageNotFound
	}
	return msg, nil
}

func memberIDs(members []models.Membership) []int {
	ids := make([]int, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	return ids
}
