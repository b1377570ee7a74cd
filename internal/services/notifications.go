package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"collab-service/internal/apperr"
	"collab-service/internal/authz"
	"collab-service/internal/models"
	"collab-service/internal/observability"
	"collab-service/internal/repositories"
	"collab-service/internal/ws"
)

const (
	notificationCreatedKey = "notification.created"
	defaultListLimit       = 50
	maxListLimit           = 200
	fanoutTimeout          = 5 * time.Second
)

// Dispatcher stores notifications and delivers them over the bus and websockets.
type Dispatcher struct {
	repo      repositories.NotificationRepository
	publisher EventPublisher
	push      Broadcaster
	logger    *slog.Logger
}

// NewDispatcher constructs a Dispatcher. publisher and push may be nil.
func NewDispatcher(repo repositories.NotificationRepository, publisher EventPublisher, push Broadcaster, logger *slog.Logger) *Dispatcher {
	if push == nil {
		push = noopBroadcaster{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{repo: repo, publisher: publisher, push: push, logger: logger}
}

// Fanout creates one notification per distinct recipient other than the sender. All rows
// are written by one statement and bodies are cut to the preview length. Errors are logged
// and counted, never returned: the event that triggered the fan-out has already been committed.
func (d *Dispatcher) Fanout(ctx context.Context, draft models.NotificationDraft, recipientIDs []int) []models.Notification {
	recipients := make([]int, 0, len(recipientIDs))
	for _, id := range dedupe(recipientIDs) {
		if id != draft.SenderID {
			recipients = append(recipients, id)
		}
	}
	if len(recipients) == 0 {
		return nil
	}
	draft.Body = truncate(draft.Body)

	// the triggering request may finish before delivery does
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fanoutTimeout)
	defer cancel()
	ctx, span := tracer.Start(ctx, "Dispatcher.Fanout")
	defer span.End()

	created, err := d.repo.CreateBatch(ctx, draft, recipients)
	if err != nil {
		observability.IncNotificationDispatchError("store")
		span.RecordError(err)
		d.logger.Error("notification fan-out failed", "title", draft.Title, "recipients", len(recipients), "err", err)
		return nil
	}
	observability.AddNotificationsDispatched(len(created))
	d.deliver(ctx, created)
	return created
}

func (d *Dispatcher) deliver(ctx context.Context, created []models.Notification) {
	if len(created) == 0 {
		return
	}
	if d.publisher != nil {
		envelope := observability.EventEnvelope{
			EventType: "notifications",
			EventName: notificationCreatedKey,
			Payload:   created,
		}
		if err := d.publisher.Publish(ctx, notificationCreatedKey, envelope); err != nil {
			observability.IncNotificationDispatchError("publish")
			d.logger.Warn("notification publish failed", "count", len(created), "err", err)
		}
	}
	for _, n := range created {
		room := ws.BroadcastRoom
		if !n.IsBroadcast() {
			room = ws.UserRoom(int(n.RecipientID.Int64))
		}
		d.push.Broadcast(room, models.NotificationEvent{Type: models.EventNotification, Notification: n})
	}
}

// ListForUser returns the caller's direct notifications and broadcasts, newest first.
func (d *Dispatcher) ListForUser(ctx context.Context, caller models.Caller, limit int) (list []models.Notification, err error) {
	ctx, span := startSpan(ctx, "Dispatcher.ListForUser", caller)
	defer finish(span, &err)

	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return d.repo.ListForUser(ctx, caller.UserID, limit)
}

// MarkRead flags a direct notification addressed to the caller as read. Broadcasts are
// shared rows and cannot be marked.
func (d *Dispatcher) MarkRead(ctx context.Context, caller models.Caller, id int) (err error) {
	ctx, span := startSpan(ctx, "Dispatcher.MarkRead", caller)
	defer finish(span, &err)

	n, err := d.repo.GetNotification(ctx, id)
	if err != nil {
		return err
	}
	if n.IsBroadcast() || int(n.RecipientID.Int64) != caller.UserID {
		return apperr.ErrForbidden
	}
	if n.IsRead {
		return nil
	}
	return d.repo.MarkRead(ctx, id, caller.UserID)
}

// Announcement is a notification written by staff.
type Announcement struct {
	Title       string
	Body        string
	ActionURL   string
	RecipientID *int
}

// Announce sends a staff notification to one user, or to everyone when RecipientID is nil.
func (d *Dispatcher) Announce(ctx context.Context, caller models.Caller, a Announcement) (created []models.Notification, err error) {
	ctx, span := startSpan(ctx, "Dispatcher.Announce", caller)
	defer finish(span, &err)

	if !authz.CanAnnounce(caller) {
		return nil, apperr.ErrForbidden
	}
	a.Title = strings.TrimSpace(a.Title)
	if a.Title == "" {
		return nil, apperr.Invalid("title is required")
	}
	draft := models.NotificationDraft{SenderID: caller.UserID, Title: a.Title, Body: truncate(a.Body), ActionURL: a.ActionURL}

	if a.RecipientID == nil {
		n, err := d.repo.CreateBroadcast(ctx, draft)
		if err != nil {
			return nil, err
		}
		created = []models.Notification{n}
	} else {
		created, err = d.repo.CreateBatch(ctx, draft, []int{*a.RecipientID})
		if err != nil {
			return nil, err
		}
	}
	observability.AddNotificationsDispatched(len(created))
	d.deliver(ctx, created)
	return created, nil
}

func dedupe(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
