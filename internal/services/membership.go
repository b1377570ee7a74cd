package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"collab-service/internal/apperr"
	"collab-service/internal/authz"
	"collab-service/internal/blob"
	"collab-service/internal/config"
	"collab-service/internal/models"
	"collab-service/internal/observability"
	"collab-service/internal/repositories"
	"collab-service/internal/ws"
)

// MembershipService owns the group lifecycle: creation, membership changes, ownership
// transfer and deletion.
type MembershipService struct {
	groups   repositories.GroupRepository
	users    repositories.UserRepository
	blobs    blob.Store
	notifier Notifier
	push     Rooms
	logger   *slog.Logger
}

// NewMembershipService constructs a MembershipService. push may be nil.
func NewMembershipService(groups repositories.GroupRepository, users repositories.UserRepository, blobs blob.Store, notifier Notifier, push Rooms, logger *slog.Logger) *MembershipService {
	if push == nil {
		push = noopBroadcaster{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MembershipService{groups: groups, users: users, blobs: blobs, notifier: notifier, push: push, logger: logger}
}

// EnsureDefaultGroups creates the configured default groups that do not exist yet.
func (s *MembershipService) EnsureDefaultGroups(ctx context.Context, defaults []config.DefaultGroupConfig) error {
	for _, d := range defaults {
		g, err := s.groups.EnsureDefaultGroup(ctx, d.Name, d.Description)
		if err != nil {
			return fmt.Errorf("ensure default group %q: %w", d.Name, err)
		}
		s.logger.Debug("default group ready", "group_id", g.ID, "name", g.Name)
	}
	return nil
}

// ReconcileDefaultMembership makes an active user a member of every default group and
// reports how many memberships were created. Unknown or deleted users are skipped.
func (s *MembershipService) ReconcileDefaultMembership(ctx context.Context, userID int) (added int, err error) {
	ctx, span := tracer.Start(ctx, "MembershipService.ReconcileDefaultMembership")
	defer finish(span, &err)
	span.SetAttributes(attribute.Int("user.id", userID))

	if _, err := activeUser(s.users.GetUser(ctx, userID)); err != nil {
		if errors.Is(err, apperr.ErrUserNotFound) {
			return 0, nil
		}
		return 0, err
	}
	added, err = s.groups.ReconcileDefaultMembership(ctx, userID)
	if err != nil {
		return 0, err
	}
	observability.AddMembershipChanges("reconciled", added)
	return added, nil
}

// CreateGroup creates a custom group owned by the caller with the listed users as members.
func (s *MembershipService) CreateGroup(ctx context.Context, caller models.Caller, name, description string, memberIDs []int) (group models.Group, err error) {
	ctx, span := startSpan(ctx, "MembershipService.CreateGroup", caller)
	defer finish(span, &err)

	name = strings.TrimSpace(name)
	if name == "" {
		return group, apperr.Invalid("group name is required")
	}
	members := make([]int, 0, len(memberIDs))
	for _, id := range dedupe(memberIDs) {
		if id == caller.UserID {
			continue
		}
		if _, err := activeUser(s.users.GetUser(ctx, id)); err != nil {
			return group, err
		}
		members = append(members, id)
	}

	group, err = s.groups.CreateGroup(ctx, caller.UserID, name, strings.TrimSpace(description), members)
	if err != nil {
		return models.Group{}, err
	}
	observability.IncMembershipChange("created")
	if len(members) > 0 {
		s.notifier.Fanout(ctx, s.addedDraft(ctx, caller, group), members)
	}
	return group, nil
}

// ListMine returns the groups the caller belongs to.
func (s *MembershipService) ListMine(ctx context.Context, caller models.Caller) (groups []models.Group, err error) {
	ctx, span := startSpan(ctx, "MembershipService.ListMine", caller)
	defer finish(span, &err)

	return s.groups.ListGroupsForUser(ctx, caller.UserID)
}

// ListAll returns every group. Admin only.
func (s *MembershipService) ListAll(ctx context.Context, caller models.Caller) (groups []models.Group, err error) {
	ctx, span := startSpan(ctx, "MembershipService.ListAll", caller)
	defer finish(span, &err)

	if !caller.IsAdmin() {
		return nil, apperr.ErrForbidden
	}
	return s.groups.ListAllGroups(ctx)
}

// AddMember adds targetID to the group and reports whether a membership was created.
func (s *MembershipService) AddMember(ctx context.Context, caller models.Caller, groupID, targetID int) (created bool, err error) {
	ctx, span := startSpan(ctx, "MembershipService.AddMember", caller)
	defer finish(span, &err)
	span.SetAttributes(attribute.Int("group.id", groupID), attribute.Int("target.id", targetID))

	group, member, err := loadGroup(ctx, s.groups, groupID, caller)
	if err != nil {
		return false, err
	}
	if !authz.CanGroup(caller, authz.FactsFor(group, member), authz.ActionManageMembers) {
		return false, apperr.ErrForbidden
	}
	if _, err := activeUser(s.users.GetUser(ctx, targetID)); err != nil {
		return false, err
	}

	created, err = s.groups.AddMember(ctx, groupID, targetID)
	if err != nil || !created {
		return false, err
	}
	observability.IncMembershipChange("added")
	s.push.Broadcast(ws.GroupRoom(groupID), models.GroupEvent{Type: models.EventMemberAdded, GroupID: groupID, UserID: targetID})
	s.notifier.Fanout(ctx, s.addedDraft(ctx, caller, group), []int{targetID})
	return true, nil
}

// AddMemberByName resolves username and adds that user to the group.
func (s *MembershipService) AddMemberByName(ctx context.Context, caller models.Caller, groupID int, username string) (models.User, bool, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return models.User{}, false, apperr.Invalid("username is required")
	}
	user, err := activeUser(s.users.FindUserByName(ctx, username))
	if err != nil {
		return models.User{}, false, apperr.Unavailable(err)
	}
	created, err := s.AddMember(ctx, caller, groupID, user.ID)
	return user, created, err
}

// RemoveMember removes targetID from the group. The owner cannot be removed.
func (s *MembershipService) RemoveMember(ctx context.Context, caller models.Caller, groupID, targetID int) (err error) {
	ctx, span := startSpan(ctx, "MembershipService.RemoveMember", caller)
	defer finish(span, &err)
	span.SetAttributes(attribute.Int("group.id", groupID), attribute.Int("target.id", targetID))

	group, member, err := loadGroup(ctx, s.groups, groupID, caller)
	if err != nil {
		return err
	}
	if !authz.CanGroup(caller, authz.FactsFor(group, member), authz.ActionManageMembers) {
		return apperr.ErrForbidden
	}
	if group.Owner() == targetID {
		return apperr.ErrCannotRemoveOwner
	}
	if err := s.groups.RemoveMember(ctx, groupID, targetID); err != nil {
		return err
	}

	observability.IncMembershipChange("removed")
	room := ws.GroupRoom(groupID)
	s.push.Broadcast(room, models.GroupEvent{Type: models.EventMemberRemoved, GroupID: groupID, UserID: targetID})
	s.push.EvictUser(room, targetID)
	s.notifier.Fanout(ctx, models.NotificationDraft{
		SenderID: caller.UserID,
		Title:    "Removed from group",
		Body:     fmt.Sprintf("You were removed from the group '%s'", group.Name),
	}, []int{targetID})
	return nil
}

// LeaveGroup removes the caller from a custom group. When the owner leaves, ownership
// passes to the longest-standing member, and a group left empty is deleted.
func (s *MembershipService) LeaveGroup(ctx context.Context, caller models.Caller, groupID int) (outcome models.LeaveOutcome, err error) {
	ctx, span := startSpan(ctx, "MembershipService.LeaveGroup", caller)
	defer finish(span, &err)
	span.SetAttributes(attribute.Int("group.id", groupID))

	group, err := s.groups.GetGroup(ctx, groupID)
	if err != nil {
		return outcome, err
	}
	if group.IsDefault {
		return outcome, apperr.ErrDefaultGroupImmutable
	}
	outcome, err = s.groups.LeaveGroup(ctx, groupID, caller.UserID)
	if err != nil {
		return models.LeaveOutcome{}, err
	}

	observability.IncMembershipChange("left")
	room := ws.GroupRoom(groupID)
	if outcome.GroupDeleted {
		observability.IncMembershipChange("group_deleted")
		s.push.Broadcast(room, models.GroupEvent{Type: models.EventGroupDeleted, GroupID: groupID})
		s.push.CloseRoom(room)
		return outcome, nil
	}
	s.push.Broadcast(room, models.GroupEvent{Type: models.EventMemberLeft, GroupID: groupID, UserID: caller.UserID})
	s.push.EvictUser(room, caller.UserID)
	if outcome.NewOwnerID != 0 {
		s.push.Broadcast(room, models.GroupEvent{Type: models.EventOwnerChanged, GroupID: groupID, UserID: outcome.NewOwnerID})
		s.notifier.Fanout(ctx, models.NotificationDraft{
			SenderID:  caller.UserID,
			Title:     "You are now the group owner",
			Body:      fmt.Sprintf("Ownership of '%s' was transferred to you", group.Name),
			ActionURL: fmt.Sprintf("/groups/%d", groupID),
		}, []int{outcome.NewOwnerID})
	}
	return outcome, nil
}

// DeleteGroup deletes a custom group with its memberships and messages.
func (s *MembershipService) DeleteGroup(ctx context.Context, caller models.Caller, groupID int) (err error) {
	ctx, span := startSpan(ctx, "MembershipService.DeleteGroup", caller)
	defer finish(span, &err)
	span.SetAttributes(attribute.Int("group.id", groupID))

	group, member, err := loadGroup(ctx, s.groups, groupID, caller)
	if err != nil {
		return err
	}
	if group.IsDefault {
		return apperr.ErrDefaultGroupImmutable
	}
	if !authz.CanGroup(caller, authz.FactsFor(group, member), authz.ActionDeleteGroup) {
		return apperr.ErrForbidden
	}
	members, err := s.groups.ListMembers(ctx, groupID)
	if err != nil {
		return err
	}
	if err := s.groups.DeleteGroup(ctx, groupID); err != nil {
		return err
	}

	observability.IncMembershipChange("group_deleted")
	room := ws.GroupRoom(groupID)
	s.push.Broadcast(room, models.GroupEvent{Type: models.EventGroupDeleted, GroupID: groupID})
	s.push.CloseRoom(room)
	s.notifier.Fanout(ctx, models.NotificationDraft{
		SenderID: caller.UserID,
		Title:    "Group deleted",
		Body:     fmt.Sprintf("The group '%s' was deleted", group.Name),
	}, memberIDs(members))
	return nil
}

// UpdatePhoto stores an image and makes it the group photo.
func (s *MembershipService) UpdatePhoto(ctx context.Context, caller models.Caller, groupID int, upload *blob.Upload) (group models.Group, err error) {
	ctx, span := startSpan(ctx, "MembershipService.UpdatePhoto", caller)
	defer finish(span, &err)

	if upload == nil || len(upload.Data) == 0 {
		return group, apperr.Invalid("photo is required")
	}
	if !strings.HasPrefix(upload.ContentType, "image/") {
		return group, apperr.Invalid("photo must be an image")
	}
	group, member, err := loadGroup(ctx, s.groups, groupID, caller)
	if err != nil {
		return group, err
	}
	if !authz.CanGroup(caller, authz.FactsFor(group, member), authz.ActionUpdatePhoto) {
		return models.Group{}, apperr.ErrForbidden
	}

	url, err := s.blobs.Store(ctx, upload.Data, upload.Name, upload.ContentType)
	if err != nil {
		return models.Group{}, fmt.Errorf("store photo: %w", err)
	}
	if err := s.groups.UpdatePhoto(ctx, groupID, url); err != nil {
		return models.Group{}, err
	}
	group.PhotoURL = url
	return group, nil
}

// SetViewMode stores the caller's display preference for a group.
func (s *MembershipService) SetViewMode(ctx context.Context, caller models.Caller, groupID int, mode string) (err error) {
	ctx, span := startSpan(ctx, "MembershipService.SetViewMode", caller)
	defer finish(span, &err)

	switch mode {
	case models.ViewModeComfortable, models.ViewModeCompact:
	default:
		return apperr.Invalid(fmt.Sprintf("view mode must be %q or %q", models.ViewModeComfortable, models.ViewModeCompact))
	}
	if _, err := s.groups.GetGroup(ctx, groupID); err != nil {
		return err
	}
	return s.groups.SetViewMode(ctx, groupID, caller.UserID, mode)
}

func (s *MembershipService) addedDraft(ctx context.Context, caller models.Caller, group models.Group) models.NotificationDraft {
	who := "Someone"
	if u, err := s.users.GetUser(ctx, caller.UserID); err == nil {
		who = displayName(u)
	}
	return models.NotificationDraft{
		SenderID:  caller.UserID,
		Title:     "Added to group",
		Body:      fmt.Sprintf("%s added you to the group '%s'", who, group.Name),
		ActionURL: fmt.Sprintf("/groups/%d", group.ID),
	}
}
