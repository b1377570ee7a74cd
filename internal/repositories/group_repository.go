package repositories

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	"github.com/jmoiron/sqlx"

	"collab-service/internal/apperr"
	"collab-service/internal/models"
)

const (
	groupColumns       = `id, name, description, owner_id, is_default, created_by_id, photo_url, created_at, last_activity_at`
	groupColumnsJoined = `g.id, g.name, g.description, g.owner_id, g.is_default, g.created_by_id, g.photo_url, g.created_at, g.last_activity_at`
	membershipColumns  = `group_id, user_id, joined_at, view_mode`
)

// GroupRepository is the membership store: groups, their owners and their members.
type GroupRepository interface {
	CreateGroup(ctx context.Context, creatorID int, name, description string, memberIDs []int) (models.Group, error)
	GetGroup(ctx context.Context, groupID int) (models.Group, error)
	ListGroupsForUser(ctx context.Context, userID int) ([]models.Group, error)
	ListAllGroups(ctx context.Context) ([]models.Group, error)
	SearchGroups(ctx context.Context, query string, userID int, allGroups bool, limit int) ([]models.Group, error)
	IsMember(ctx context.Context, groupID int, userID int) (bool, error)
	GetMembership(ctx context.Context, groupID int, userID int) (models.Membership, error)
	ListMembers(ctx context.Context, groupID int) ([]models.Membership, error)
	AddMember(ctx context.Context, groupID int, userID int) (bool, error)
	RemoveMember(ctx context.Context, groupID int, userID int) error
	LeaveGroup(ctx context.Context, groupID int, userID int) (models.LeaveOutcome, error)
	DeleteGroup(ctx context.Context, groupID int) error
	UpdatePhoto(ctx context.Context, groupID int, url string) error
	SetViewMode(ctx context.Context, groupID int, userID int, mode string) error
	ReconcileDefaultMembership(ctx context.Context, userID int) (int, error)
	EnsureDefaultGroup(ctx context.Context, name, description string) (models.Group, error)
}

// GroupRepo is a sqlx implementation of GroupRepository.
type GroupRepo struct {
	db *sqlx.DB
}

// NewGroupRepo constructs a GroupRepo.
func NewGroupRepo(db *sqlx.DB) *GroupRepo {
	return &GroupRepo{db: db}
}

type groupLock struct {
	OwnerID   sql.NullInt64 `db:"owner_id"`
	IsDefault bool          `db:"is_default"`
}

// lockGroup takes the row lock that serializes membership changes of one group.
func lockGroup(ctx context.Context, tx *sqlx.Tx, groupID int) (groupLock, error) {
	var lock groupLock
	err := tx.GetContext(ctx, &lock, `SELECT owner_id, is_default FROM groups WHERE id = $1 FOR UPDATE`, groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return groupLock{}, apperr.ErrGroupNotFound
	}
	return lock, err
}

// CreateGroup creates a group owned by its creator and adds the members atomically.
// The creator joins first so that ownership succession starts from them.
func (r *GroupRepo) CreateGroup(ctx context.Context, creatorID int, name, description string, memberIDs []int) (models.Group, error) {
	var group models.Group
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &group,
			`INSERT INTO groups (name, description, owner_id, created_by_id) VALUES ($1, $2, $3, $3) RETURNING `+groupColumns,
			name, description, creatorID)
		if err != nil {
			return err
		}

		ids := []int{creatorID}
		for _, id := range dedupeInts(memberIDs) {
			if id != creatorID {
				ids = append(ids, id)
			}
		}
		for _, id := range ids {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO group_members (group_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, group.ID, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.Group{}, err
	}
	return group, nil
}

// GetGroup fetches a single group.
func (r *GroupRepo) GetGroup(ctx context.Context, groupID int) (models.Group, error) {
	var group models.Group
	err := r.db.GetContext(ctx, &group, `SELECT `+groupColumns+` FROM groups WHERE id = $1`, groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Group{}, apperr.ErrGroupNotFound
	}
	return group, err
}

// ListGroupsForUser returns the groups the user belongs to, most recently active first.
func (r *GroupRepo) ListGroupsForUser(ctx context.Context, userID int) ([]models.Group, error) {
	groups := []models.Group{}
	err := r.db.SelectContext(ctx, &groups, `SELECT `+groupColumnsJoined+` FROM groups g
        INNER JOIN group_members gm ON gm.group_id = g.id
        WHERE gm.user_id = $1
        ORDER BY g.last_activity_at DESC, g.id DESC`, userID)
	return groups, err
}

// ListAllGroups returns every group.
func (r *GroupRepo) ListAllGroups(ctx context.Context) ([]models.Group, error) {
	groups := []models.Group{}
	err := r.db.SelectContext(ctx, &groups, `SELECT `+groupColumns+` FROM groups ORDER BY last_activity_at DESC, id DESC`)
	return groups, err
}

// SearchGroups finds groups whose name contains query. Unless allGroups is set only
// groups the user belongs to are considered.
func (r *GroupRepo) SearchGroups(ctx context.Context, query string, userID int, allGroups bool, limit int) ([]models.Group, error) {
	groups := []models.Group{}
	pattern := containsPattern(query)
	if allGroups {
		err := r.db.SelectContext(ctx, &groups,
			`SELECT `+groupColumns+` FROM groups WHERE name ILIKE $1 ORDER BY name, id LIMIT $2`, pattern, limit)
		return groups, err
	}
	err := r.db.SelectContext(ctx, &groups, `SELECT `+groupColumnsJoined+` FROM groups g
        INNER JOIN group_members gm ON gm.group_id = g.id
        WHERE gm.user_id = $1 AND g.name ILIKE $2
        ORDER BY g.name, g.id LIMIT $3`, userID, pattern, limit)
	return groups, err
}

// IsMember checks membership.
func (r *GroupRepo) IsMember(ctx context.Context, groupID int, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM group_members WHERE group_id = $1 AND user_id = $2)`, groupID, userID)
	return exists, err
}

// GetMembership returns the membership row or ErrNotAMember.
func (r *GroupRepo) GetMembership(ctx context.Context, groupID int, userID int) (models.Membership, error) {
	var m models.Membership
	err := r.db.GetContext(ctx, &m, `SELECT `+membershipColumns+` FROM group_members WHERE group_id = $1 AND user_id = $2`, groupID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Membership{}, apperr.ErrNotAMember
	}
	return m, err
}

// ListMembers returns members ordered by join time, oldest first.
func (r *GroupRepo) ListMembers(ctx context.Context, groupID int) ([]models.Membership, error) {
	members := []models.Membership{}
	err := r.db.SelectContext(ctx, &members, `SELECT `+membershipColumns+` FROM group_members
        WHERE group_id = $1 ORDER BY joined_at, user_id`, groupID)
	return members, err
}

// AddMember adds userID to the group. Adding an existing member is a no-op; created
// reports whether a row was inserted. An ownerless group gets the new member as owner.
func (r *GroupRepo) AddMember(ctx context.Context, groupID int, userID int) (bool, error) {
	var created bool
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		lock, err := lockGroup(ctx, tx, groupID)
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO group_members (group_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, groupID, userID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		created = n > 0

		if !lock.OwnerID.Valid {
			_, err = tx.ExecContext(ctx, `UPDATE groups SET owner_id = $2 WHERE id = $1`, groupID, userID)
		}
		return err
	})
	return created, err
}

// RemoveMember removes a member other than the owner.
func (r *GroupRepo) RemoveMember(ctx context.Context, groupID int, userID int) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		lock, err := lockGroup(ctx, tx, groupID)
		if err != nil {
			return err
		}
		if lock.OwnerID.Valid && int(lock.OwnerID.Int64) == userID {
			return apperr.ErrCannotRemoveOwner
		}
		return deleteMembership(ctx, tx, groupID, userID)
	})
}

// LeaveGroup removes userID from the group. When the leaver owned the group, ownership
// passes to the earliest-joined remaining member, or the group is deleted if nobody is left.
// The whole transition happens under the group row lock.
func (r *GroupRepo) LeaveGroup(ctx context.Context, groupID int, userID int) (models.LeaveOutcome, error) {
	var outcome models.LeaveOutcome
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		lock, err := lockGroup(ctx, tx, groupID)
		if err != nil {
			return err
		}
		if lock.IsDefault {
			return apperr.ErrDefaultGroupImmutable
		}
		if err := deleteMembership(ctx, tx, groupID, userID); err != nil {
			return err
		}
		if lock.OwnerID.Valid && int(lock.OwnerID.Int64) != userID {
			return nil
		}

		remaining := []models.Membership{}
		if err := tx.SelectContext(ctx, &remaining, `SELECT `+membershipColumns+` FROM group_members
            WHERE group_id = $1 ORDER BY joined_at, user_id`, groupID); err != nil {
			return err
		}

		if next, ok := nextOwner(remaining); ok {
			outcome.NewOwnerID = next
			_, err = tx.ExecContext(ctx, `UPDATE groups SET owner_id = $2 WHERE id = $1`, groupID, next)
			return err
		}
		outcome.GroupDeleted = true
		_, err = tx.ExecContext(ctx, `DELETE FROM groups WHERE id = $1`, groupID)
		return err
	})
	if err != nil {
		return models.LeaveOutcome{}, err
	}
	return outcome, nil
}

// DeleteGroup deletes a non-default group; memberships and messages cascade.
func (r *GroupRepo) DeleteGroup(ctx context.Context, groupID int) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		lock, err := lockGroup(ctx, tx, groupID)
		if err != nil {
			return err
		}
		if lock.IsDefault {
			return apperr.ErrDefaultGroupImmutable
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM groups WHERE id = $1`, groupID)
		return err
	})
}

// UpdatePhoto stores the group photo URL.
func (r *GroupRepo) UpdatePhoto(ctx context.Context, groupID int, url string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE groups SET photo_url = $2 WHERE id = $1`, groupID, url)
	return expectAffected(res, err, apperr.ErrGroupNotFound)
}

// SetViewMode stores a member's display preference.
func (r *GroupRepo) SetViewMode(ctx context.Context, groupID int, userID int, mode string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE group_members SET view_mode = $3 WHERE group_id = $1 AND user_id = $2`, groupID, userID, mode)
	return expectAffected(res, err, apperr.ErrNotAMember)
}

// ReconcileDefaultMembership makes userID a member of every default group and returns
// how many memberships were created.
func (r *GroupRepo) ReconcileDefaultMembership(ctx context.Context, userID int) (int, error) {
	var added int64
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO group_members (group_id, user_id)
            SELECT id, $1 FROM groups WHERE is_default
            ON CONFLICT DO NOTHING`, userID)
		if err != nil {
			return err
		}
		if added, err = res.RowsAffected(); err != nil {
			return err
		}
		if added == 0 {
			return nil
		}
		_, err = tx.ExecContext(ctx, `UPDATE groups SET owner_id = $1 WHERE is_default AND owner_id IS NULL`, userID)
		return err
	})
	return int(added), err
}

// EnsureDefaultGroup creates the named default group unless it already exists.
func (r *GroupRepo) EnsureDefaultGroup(ctx context.Context, name, description string) (models.Group, error) {
	var group models.Group
	err := r.db.GetContext(ctx, &group, `INSERT INTO groups (name, description, is_default) VALUES ($1, $2, TRUE)
        ON CONFLICT (name) WHERE is_default DO NOTHING
        RETURNING `+groupColumns, name, description)
	if errors.Is(err, sql.ErrNoRows) {
		err = r.db.GetContext(ctx, &group, `SELECT `+groupColumns+` FROM groups WHERE name = $1 AND is_default`, name)
	}
	return group, err
}

func deleteMembership(ctx context.Context, tx *sqlx.Tx, groupID, userID int) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM group_members WHERE group_id = $1 AND user_id = $2`, groupID, userID)
	return expectAffected(res, err, apperr.ErrNotAMember)
}

// nextOwner picks the longest-tenured member; ties on join time go to the lower user id.
func nextOwner(members []models.Membership) (int, bool) {
	if len(members) == 0 {
		return 0, false
	}
	best := members[0]
	for _, m := range members[1:] {
		if m.JoinedAt.Before(best.JoinedAt) || (m.JoinedAt.Equal(best.JoinedAt) && m.UserID < best.UserID) {
			best = m
		}
	}
	return best.UserID, true
}

// expectAffected converts "no rows changed" into notFound.
func expectAffected(res sql.Result, err error, notFound error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func dedupeInts(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id <= 0 {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}
