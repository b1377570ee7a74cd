// Package services holds the collaboration engine: messages, private chats, group
// membership and the notification dispatcher. Every operation takes an explicit caller.
package services

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"collab-service/internal/apperr"
	"collab-service/internal/blob"
	"collab-service/internal/models"
)

var tracer = otel.Tracer("collab-service/internal/services")

// Broadcaster pushes realtime events to websocket rooms.
type Broadcaster interface {
	Broadcast(room string, event any)
}

// Rooms is a Broadcaster that can also revoke socket access to a room.
type Rooms interface {
	Broadcaster
	EvictUser(room string, userID int)
	CloseRoom(room string)
}

// EventPublisher ships domain events to the message bus.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// Notifier fans notifications out to recipients. Failures never reach the caller.
type Notifier interface {
	Fanout(ctx context.Context, draft models.NotificationDraft, recipientIDs []int) []models.Notification
}

type noopBroadcaster struct{}

func (noopBroadcaster) Broadcast(string, any) {}
func (noopBroadcaster) EvictUser(string, int) {}
func (noopBroadcaster) CloseRoom(string)      {}

// finish ends span and converts infrastructure errors into apperr.Unavailable.
// Use as: defer finish(span, &err).
func finish(span trace.Span, err *error) {
	if *err != nil {
		*err = apperr.Unavailable(*err)
		if apperr.KindOf(*err) == apperr.KindUnavailable {
			span.RecordError(*err)
			span.SetStatus(codes.Error, (*err).Error())
		}
	}
	span.End()
}

func startSpan(ctx context.Context, name string, caller models.Caller) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, name)
	span.SetAttributes(callerAttrs(caller)...)
	return ctx, span
}

// checkContent validates a new message and returns the trimmed body.
func checkContent(body string, upload *blob.Upload) (string, error) {
	if upload != nil && len(upload.Data) == 0 {
		return "", apperr.Invalid("attachment is empty")
	}
	return checkBody(body, upload != nil)
}

// checkBody requires a non-blank body unless the message carries an attachment.
func checkBody(body string, hasAttachment bool) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" && !hasAttachment {
		return "", apperr.ErrEmptyMessage
	}
	return body, nil
}

// displayName picks the most readable label for a user.
func displayName(u models.User) string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

func activeUser(u models.User, err error) (models.User, error) {
	if err != nil {
		return models.User{}, err
	}
	if u.IsDeleted {
		return models.User{}, apperr.ErrUserNotFound
	}
	return u, nil
}
