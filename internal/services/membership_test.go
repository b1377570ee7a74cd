package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"collab-service/internal/apperr"
	"collab-service/internal/blob"
	"collab-service/internal/config"
	"collab-service/internal/mocks"
	"collab-service/internal/models"
)

type membershipFixture struct {
	groups   *mocks.GroupRepositoryMock
	users    *mocks.UserRepositoryMock
	blobs    *mocks.BlobStoreMock
	notifier *mocks.NotifierMock
	svc      *MembershipService
}

func newMembershipFixture() *membershipFixture {
	f := &membershipFixture{
		groups:   new(mocks.GroupRepositoryMock),
		users:    new(mocks.UserRepositoryMock),
		blobs:    new(mocks.BlobStoreMock),
		notifier: new(mocks.NotifierMock),
	}
	f.svc = NewMembershipService(f.groups, f.users, f.blobs, f.notifier, nil, nil)
	return f
}

func TestLeaveDefaultGroupAlwaysFails(t *testing.T) {
	for _, caller := range []models.Caller{owner, member, admin} {
		f := newMembershipFixture()
		f.groups.On("GetGroup", mock.Anything, 6).Return(defaultGroup(), nil)

		_, err := f.svc.LeaveGroup(context.Background(), caller, 6)
		require.ErrorIs(t, err, apperr.ErrDefaultGroupImmutable)
		f.groups.AssertNotCalled(t, "LeaveGroup", mock.Anything, mock.Anything, mock.Anything)
	}
}

func TestLeaveGroupTransfersOwnership(t *testing.T) {
	f := newMembershipFixture()
	f.groups.On("GetGroup", mock.Anything, 5).Return(studyGroup(), nil)
	f.groups.On("LeaveGroup", mock.Anything, 5, owner.UserID).Return(models.LeaveOutcome{NewOwnerID: 2}, nil)
	f.notifier.On("Fanout", mock.Anything, mock.MatchedBy(func(d models.NotificationDraft) bool {
		return d.Title == "You are now the group owner" && d.ActionURL == "/groups/5"
	}), []int{2}).Return(nil)

	outcome, err := f.svc.LeaveGroup(context.Background(), owner, 5)

	require.NoError(t, err)
	assert.Equal(t, 2, outcome.NewOwnerID)
	f.notifier.AssertExpectations(t)
}

func TestLeaveGroupLastMemberDeletesGroup(t *testing.T) {
	f := newMembershipFixture()
	f.groups.On("GetGroup", mock.Anything, 5).Return(studyGroup(), nil)
	f.groups.On("LeaveGroup", mock.Anything, 5, owner.UserID).Return(models.LeaveOutcome{GroupDeleted: true}, nil)

	outcome, err := f.svc.LeaveGroup(context.Background(), owner, 5)

	require.NoError(t, err)
	assert.True(t, outcome.GroupDeleted)
	f.notifier.AssertNotCalled(t, "Fanout", mock.Anything, mock.Anything, mock.Anything)
}

func TestLeaveGroupNotAMember(t *testing.T) {
	f := newMembershipFixture()
	f.groups.On("GetGroup", mock.Anything, 5).Return(studyGroup(), nil)
	f.groups.On("LeaveGroup", mock.Anything, 5, outside.UserID).Return(models.LeaveOutcome{}, apperr.ErrNotAMember)

	_, err := f.svc.LeaveGroup(context.Background(), outside, 5)
	require.ErrorIs(t, err, apperr.ErrNotAMember)
}

func TestRemoveMember(t *testing.T) {
	t.Run("owner cannot be removed", func(t *testing.T) {
		f := newMembershipFixture()
		f.groups.On("GetGroup", mock.Anything, 5).Return(studyGroup(), nil)
		f.groups.On("IsMember", mock.Anything, 5, owner.UserID).Return(true, nil)

		err := f.svc.RemoveMember(context.Background(), owner, 5, owner.UserID)
		require.ErrorIs(t, err, apperr.ErrCannotRemoveOwner)
	})

	t.Run("plain member forbidden", func(t *testing.T) {
		f := newMembershipFixture()
		f.groups.On("GetGroup", mock.Anything, 5).Return(studyGroup(), nil)
		f.groups.On("IsMember", mock.Anything, 5, member.UserID).Return(true, nil)

		err := f.svc.RemoveMember(context.Background(), member, 5, 4)
		require.ErrorIs(t, err, apperr.ErrForbidden)
	})

	t.Run("owner removes member", func(t *testing.T) {
		f := newMembershipFixture()
		f.groups.On("GetGroup", mock.Anything, 5).Return(studyGroup(), nil)
		f.groups.On("IsMember", mock.Anything, 5, owner.UserID).Return(true, nil)
		f.groups.On("RemoveMember", mock.Anything, 5, 2).Return(nil)
		f.notifier.On("Fanout", mock.Anything, mock.MatchedBy(func(d models.NotificationDraft) bool {
			return d.Title == "Removed from group"
		}), []int{2}).Return(nil)

		require.NoError(t, f.svc.RemoveMember(context.Background(), owner, 5, 2))
		f.notifier.AssertExpectations(t)
	})

	t.Run("default group needs admin", func(t *testing.T) {
		f := newMembershipFixture()
		f.groups.On("GetGroup", mock.Anything, 6).Return(defaultGroup(), nil)
		f.groups.On("IsMember", mock.Anything, 6, owner.UserID).Return(true, nil)

		err := f.svc.RemoveMember(context.Background(), owner, 6, 2)
		require.ErrorIs(t, err, apperr.ErrForbidden)
	})
}

func TestAddMember(t *testing.T) {
	t.Run("creates membership and notifies", func(t *testing.T) {
		f := newMembershipFixture()
		f.groups.On("GetGroup", mock.Anything, 5).Return(studyGroup(), nil)
		f.groups.On("IsMember", mock.Anything, 5, owner.UserID).Return(true, nil)
		f.users.On("GetUser", mock.Anything, 4).Return(models.User{ID: 4, Username: "grace"}, nil)
		f.users.On("GetUser", mock.Anything, owner.UserID).Return(models.User{ID: 1, Username: "ada"}, nil)
		f.groups.On("AddMember", mock.Anything, 5, 4).Return(true, nil)
		f.notifier.On("Fanout", mock.Anything, models.NotificationDraft{
			SenderID:  owner.UserID,
			Title:     "Added to group",
			Body:      "ada added you to the group 'Study'",
			ActionURL: "/groups/5",
		}, []int{4}).Return(nil)

		created, err := f.svc.AddMember(context.Background(), owner, 5, 4)
		require.NoError(t, err)
		assert.True(t, created)
		f.notifier.AssertExpectations(t)
	})

	t.Run("existing member is a no-op", func(t *testing.T) {
		f := newMembershipFixture()
		f.groups.On("GetGroup", mock.Anything, 5).Return(studyGroup(), nil)
		f.groups.On("IsMember", mock.Anything, 5, owner.UserID).Return(true, nil)
		f.users.On("GetUser", mock.Anything, 2).Return(models.User{ID: 2}, nil)
		f.groups.On("AddMember", mock.Anything, 5, 2).Return(false, nil)

		created, err := f.svc.AddMember(context.Background(), owner, 5, 2)
		require.NoError(t, err)
		assert.False(t, created)
		f.notifier.AssertNotCalled(t, "Fanout", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("deleted user", func(t *testing.T) {
		f := newMembershipFixture()
		f.groups.On("GetGroup", mock.Anything, 5).Return(studyGroup(), nil)
		f.groups.On("IsMember", mock.Anything, 5, admin.UserID).Return(false, nil)
		f.users.On("GetUser", mock.Anything, 4).Return(models.User{ID: 4, IsDeleted: true}, nil)

		_, err := f.svc.AddMember(context.Background(), admin, 5, 4)
		require.ErrorIs(t, err, apperr.ErrUserNotFound)
	})

	t.Run("by unknown name", func(t *testing.T) {
		f := newMembershipFixture()
		f.users.On("FindUserByName", mock.Anything, "nobody").Return(models.User{}, apperr.ErrUserNotFound)

		_, _, err := f.svc.AddMemberByName(context.Background(), owner, 5, " nobody ")
		require.ErrorIs(t, err, apperr.ErrUserNotFound)
	})
}

func TestDeleteGroup(t *testing.T) {
	t.Run("default group refused for admin", func(t *testing.T) {
		f := newMembershipFixture()
		f.groups.On("GetGroup", mock.Anything, 6).Return(defaultGroup(), nil)
		f.groups.On("IsMember", mock.Anything, 6, admin.UserID).Return(false, nil)

		err := f.svc.DeleteGroup(context.Background(), admin, 6)
		require.ErrorIs(t, err, apperr.ErrDefaultGroupImmutable)
	})

	t.Run("owner deletes and members are told", func(t *testing.T) {
		f := newMembershipFixture()
		f.groups.On("GetGroup", mock.Anything, 5).Return(studyGroup(), nil)
		f.groups.On("IsMember", mock.Anything, 5, owner.UserID).Return(true, nil)
		f.groups.On("ListMembers", mock.Anything, 5).Return(memberships(5, 1, 2), nil)
		f.groups.On("DeleteGroup", mock.Anything, 5).Return(nil)
		f.notifier.On("Fanout", mock.Anything, mock.Anything, []int{1, 2}).Return(nil)

		require.NoError(t, f.svc.DeleteGroup(context.Background(), owner, 5))
		f.groups.AssertExpectations(t)
	})
}

func TestCreateGroup(t *testing.T) {
	f := newMembershipFixture()
	_, err := f.svc.CreateGroup(context.Background(), owner, "  ", "", nil)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	f.users.On("GetUser", mock.Anything, 2).Return(models.User{ID: 2}, nil)
	f.users.On("GetUser", mock.Anything, owner.UserID).Return(models.User{ID: 1, DisplayName: "Ada"}, nil)
	f.groups.On("CreateGroup", mock.Anything, owner.UserID, "Study", "", []int{2}).Return(studyGroup(), nil)
	f.notifier.On("Fanout", mock.Anything, mock.MatchedBy(func(d models.NotificationDraft) bool {
		return d.Body == "Ada added you to the group 'Study'"
	}), []int{2}).Return(nil)

	group, err := f.svc.CreateGroup(context.Background(), owner, "Study", "", []int{2, 2, owner.UserID})
	require.NoError(t, err)
	assert.Equal(t, 5, group.ID)
	f.notifier.AssertExpectations(t)
}

func TestListAllRequiresAdmin(t *testing.T) {
	f := newMembershipFixture()
	f.groups.On("ListAllGroups", mock.Anything).Return([]models.Group{studyGroup(), defaultGroup()}, nil)

	_, err := f.svc.ListAll(context.Background(), outside)
	require.ErrorIs(t, err, apperr.ErrForbidden)

	groups, err := f.svc.ListAll(context.Background(), admin)
	require.NoError(t, err)
	assert.Len(t, groups, 2)
}

func TestSetViewMode(t *testing.T) {
	f := newMembershipFixture()
	err := f.svc.SetViewMode(context.Background(), member, 5, "cozy")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	f.groups.On("GetGroup", mock.Anything, 5).Return(studyGroup(), nil)
	f.groups.On("SetViewMode", mock.Anything, 5, member.UserID, models.ViewModeCompact).Return(nil)
	require.NoError(t, f.svc.SetViewMode(context.Background(), member, 5, models.ViewModeCompact))
}

func TestUpdatePhoto(t *testing.T) {
	f := newMembershipFixture()
	_, err := f.svc.UpdatePhoto(context.Background(), owner, 5, &blob.Upload{Name: "a.txt", ContentType: "text/plain", Data: []byte("x")})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	upload := &blob.Upload{Name: "a.png", ContentType: "image/png", Data: []byte{0x89}}
	f.groups.On("GetGroup", mock.Anything, 5).Return(studyGroup(), nil)
	f.groups.On("IsMember", mock.Anything, 5, owner.UserID).Return(true, nil)
	f.blobs.On("Store", mock.Anything, upload.Data, "a.png", "image/png").Return("https://cdn/a.png", nil)
	f.groups.On("UpdatePhoto", mock.Anything, 5, "https://cdn/a.png").Return(nil)

	group, err := f.svc.UpdatePhoto(context.Background(), owner, 5, upload)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/a.png", group.PhotoURL)
}

func TestReconcileDefaultMembership(t *testing.T) {
	f := newMembershipFixture()
	f.users.On("GetUser", mock.Anything, 2).Return(models.User{ID: 2}, nil)
	f.users.On("GetUser", mock.Anything, 3).Return(models.User{ID: 3, IsDeleted: true}, nil)
	f.groups.On("ReconcileDefaultMembership", mock.Anything, 2).Return(1, nil).Once()
	f.groups.On("ReconcileDefaultMembership", mock.Anything, 2).Return(0, nil).Once()

	added, err := f.svc.ReconcileDefaultMembership(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	added, err = f.svc.ReconcileDefaultMembership(context.Background(), 2)
	require.NoError(t, err)
	assert.Zero(t, added)

	added, err = f.svc.ReconcileDefaultMembership(context.Background(), 3)
	require.NoError(t, err)
	assert.Zero(t, added)
	f.groups.AssertNumberOfCalls(t, "ReconcileDefaultMembership", 2)
}

func TestEnsureDefaultGroups(t *testing.T) {
	f := newMembershipFixture()
	f.groups.On("EnsureDefaultGroup", mock.Anything, "Student Hub", "").Return(defaultGroup(), nil)
	f.groups.On("EnsureDefaultGroup", mock.Anything, "Announcements", "News").Return(models.Group{ID: 7, IsDefault: true}, nil)

	err := f.svc.EnsureDefaultGroups(context.Background(), []config.DefaultGroupConfig{
		{Name: "Student Hub"},
		{Name: "Announcements", Description: "News"},
	})
	require.NoError(t, err)
	f.groups.AssertExpectations(t)
}
