// Package authz holds the single decision table for who may do what to groups, messages
// and private chats. Every function here is pure: callers gather the facts, authz decides.
package authz

import "collab-service/internal/models"

// Action is something a caller attempts on a group or message.
type Action string

const (
	ActionView          Action = "view"
	ActionPost          Action = "post"
	ActionEditOwn       Action = "edit-own"
	ActionDelete        Action = "delete"
	ActionManageMembers Action = "manage-members"
	ActionDeleteGroup   Action = "delete-group"
	ActionUpdatePhoto   Action = "update-photo"
)

// GroupFacts is what the gate needs to know about a group and the caller's relation to it.
type GroupFacts struct {
	OwnerID   int
	IsDefault bool
	IsMember  bool
}

// FactsFor builds GroupFacts from a stored group.
func FactsFor(g models.Group, isMember bool) GroupFacts {
	return GroupFacts{OwnerID: g.Owner(), IsDefault: g.IsDefault, IsMember: isMember}
}

// CanGroup decides group-level actions.
func CanGroup(caller models.Caller, g GroupFacts, action Action) bool {
	isOwner := g.OwnerID != 0 && g.OwnerID == caller.UserID

	switch action {
	case ActionView:
		// the one place admins bypass membership
		return g.IsMember || caller.IsAdmin()
	case ActionPost:
		return g.IsMember
	case ActionManageMembers, ActionDeleteGroup:
		if g.IsDefault {
			return caller.IsAdmin()
		}
		return isOwner || caller.IsAdmin()
	case ActionUpdatePhoto:
		return isOwner || caller.IsAdmin()
	}
	return false
}

// CanGroupMessage decides edit and delete of a group message.
func CanGroupMessage(caller models.Caller, senderID int, action Action) bool {
	switch action {
	case ActionEditOwn:
		return caller.UserID == senderID
	case ActionDelete:
		return caller.UserID == senderID || caller.IsAdmin()
	}
	return false
}

// CanChat decides access to a private chat. Participants may view and post; admins may view.
func CanChat(caller models.Caller, chat models.PrivateChat, action Action) bool {
	switch action {
	case ActionView:
		return chat.HasParticipant(caller.UserID) || caller.IsAdmin()
	case ActionPost:
		return chat.HasParticipant(caller.UserID)
	}
	return false
}

// CanPrivateMessage decides edit and delete of a private message: sender only.
func CanPrivateMessage(caller models.Caller, senderID int, action Action) bool {
	switch action {
	case ActionEditOwn, ActionDelete:
		return caller.UserID == senderID
	}
	return false
}

// CanAnnounce reports whether the caller may send announcements.
func CanAnnounce(caller models.Caller) bool {
	return caller.Role == models.RoleAdmin || caller.Role == models.RoleInstructor
}
