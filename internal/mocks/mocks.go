package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"collab-service/internal/models"
	"collab-service/internal/repositories"
)

// value returns args.Get(i) as T, or the zero value when the mock returned nil.
func value[T any](args mock.Arguments, i int) T {
	var out T
	if val := args.Get(i); val != nil {
		out = val.(T)
	}
	return out
}

type GroupRepositoryMock struct {
	mock.Mock
}

func (m *GroupRepositoryMock) CreateGroup(ctx context.Context, creatorID int, name, description string, memberIDs []int) (models.Group, error) {
	args := m.Called(ctx, creatorID, name, description, memberIDs)
	return value[models.Group](args, 0), args.Error(1)
}

func (m *GroupRepositoryMock) GetGroup(ctx context.Context, groupID int) (models.Group, error) {
	args := m.Called(ctx, groupID)
	return value[models.Group](args, 0), args.Error(1)
}

func (m *GroupRepositoryMock) ListGroupsForUser(ctx context.Context, userID int) ([]models.Group, error) {
	args := m.Called(ctx, userID)
	return value[[]models.Group](args, 0), args.Error(1)
}

func (m *GroupRepositoryMock) ListAllGroups(ctx context.Context) ([]models.Group, error) {
	args := m.Called(ctx)
	return value[[]models.Group](args, 0), args.Error(1)
}

func (m *GroupRepositoryMock) SearchGroups(ctx context.Context, query string, userID int, allGroups bool, limit int) ([]models.Group, error) {
	args := m.Called(ctx, query, userID, allGroups, limit)
	return value[[]models.Group](args, 0), args.Error(1)
}

func (m *GroupRepositoryMock) IsMember(ctx context.Context, groupID int, userID int) (bool, error) {
	args := m.Called(ctx, groupID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *GroupRepositoryMock) GetMembership(ctx context.Context, groupID int, userID int) (models.Membership, error) {
	args := m.Called(ctx, groupID, userID)
	return value[models.Membership](args, 0), args.Error(1)
}

func (m *GroupRepositoryMock) ListMembers(ctx context.Context, groupID int) ([]models.Membership, error) {
	args := m.Called(ctx, groupID)
	return value[[]models.Membership](args, 0), args.Error(1)
}

func (m *GroupRepositoryMock) AddMember(ctx context.Context, groupID int, userID int) (bool, error) {
	args := m.Called(ctx, groupID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *GroupRepositoryMock) RemoveMember(ctx context.Context, groupID int, userID int) error {
	args := m.Called(ctx, groupID, userID)
	return args.Error(0)
}

func (m *GroupRepositoryMock) LeaveGroup(ctx context.Context, groupID int, userID int) (models.LeaveOutcome, error) {
	args := m.Called(ctx, groupID, userID)
	return value[models.LeaveOutcome](args, 0), args.Error(1)
}

func (m *GroupRepositoryMock) DeleteGroup(ctx context.Context, groupID int) error {
	args := m.Called(ctx, groupID)
	return args.Error(0)
}

func (m *GroupRepositoryMock) UpdatePhoto(ctx context.Context, groupID int, url string) error {
	args := m.Called(ctx, groupID, url)
	return args.Error(0)
}

func (m *GroupRepositoryMock) SetViewMode(ctx context.Context, groupID int, userID int, mode string) error {
	args := m.Called(ctx, groupID, userID, mode)
	return args.Error(0)
}

func (m *GroupRepositoryMock) ReconcileDefaultMembership(ctx context.Context, userID int) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *GroupRepositoryMock) EnsureDefaultGroup(ctx context.Context, name, description string) (models.Group, error) {
	args := m.Called(ctx, name, description)
	return value[models.Group](args, 0), args.Error(1)
}

type GroupMessageRepositoryMock struct {
	mock.Mock
}

func (m *GroupMessageRepositoryMock) CreateGroupMessage(ctx context.Context, msg models.GroupMessage) (models.GroupMessage, error) {
	args := m.Called(ctx, msg)
	return value[models.GroupMessage](args, 0), args.Error(1)
}

func (m *GroupMessageRepositoryMock) ListGroupMessages(ctx context.Context, groupID int) ([]models.GroupMessage, error) {
	args := m.Called(ctx, groupID)
	return value[[]models.GroupMessage](args, 0), args.Error(1)
}

func (m *GroupMessageRepositoryMock) GetGroupMessage(ctx context.Context, messageID int) (models.GroupMessage, error) {
	args := m.Called(ctx, messageID)
	return value[models.GroupMessage](args, 0), args.Error(1)
}

func (m *GroupMessageRepositoryMock) EditGroupMessage(ctx context.Context, messageID int, body string) (models.GroupMessage, error) {
	args := m.Called(ctx, messageID, body)
	return value[models.GroupMessage](args, 0), args.Error(1)
}

func (m *GroupMessageRepositoryMock) SoftDeleteGroupMessage(ctx context.Context, messageID int) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

type ChatRepositoryMock struct {
	mock.Mock
}

func (m *ChatRepositoryMock) ResolveChat(ctx context.Context, userA int, userB int) (models.PrivateChat, error) {
	args := m.Called(ctx, userA, userB)
	return value[models.PrivateChat](args, 0), args.Error(1)
}

func (m *ChatRepositoryMock) GetChat(ctx context.Context, chatID int) (models.PrivateChat, error) {
	args := m.Called(ctx, chatID)
	return value[models.PrivateChat](args, 0), args.Error(1)
}

func (m *ChatRepositoryMock) ListChatsForUser(ctx context.Context, userID int) ([]models.PrivateChat, error) {
	args := m.Called(ctx, userID)
	return value[[]models.PrivateChat](args, 0), args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreatePrivateMessage(ctx context.Context, msg models.PrivateMessage) (models.PrivateMessage, error) {
	args := m.Called(ctx, msg)
	return value[models.PrivateMessage](args, 0), args.Error(1)
}

func (m *MessageRepositoryMock) ListPrivateMessages(ctx context.Context, chatID int) ([]models.PrivateMessage, error) {
	args := m.Called(ctx, chatID)
	return value[[]models.PrivateMessage](args, 0), args.Error(1)
}

func (m *MessageRepositoryMock) GetPrivateMessage(ctx context.Context, messageID int) (models.PrivateMessage, error) {
	args := m.Called(ctx, messageID)
	return value[models.PrivateMessage](args, 0), args.Error(1)
}

func (m *MessageRepositoryMock) EditPrivateMessage(ctx context.Context, messageID int, body string) (models.PrivateMessage, error) {
	args := m.Called(ctx, messageID, body)
	return value[models.PrivateMessage](args, 0), args.Error(1)
}

func (m *MessageRepositoryMock) SoftDeletePrivateMessage(ctx context.Context, messageID int) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

type NotificationRepositoryMock struct {
	mock.Mock
}

func (m *NotificationRepositoryMock) CreateBatch(ctx context.Context, draft models.NotificationDraft, recipientIDs []int) ([]models.Notification, error) {
	args := m.Called(ctx, draft, recipientIDs)
	return value[[]models.Notification](args, 0), args.Error(1)
}

func (m *NotificationRepositoryMock) CreateBroadcast(ctx context.Context, draft models.NotificationDraft) (models.Notification, error) {
	args := m.Called(ctx, draft)
	return value[models.Notification](args, 0), args.Error(1)
}

func (m *NotificationRepositoryMock) ListForUser(ctx context.Context, userID int, limit int) ([]models.Notification, error) {
	args := m.Called(ctx, userID, limit)
	return value[[]models.Notification](args, 0), args.Error(1)
}

func (m *NotificationRepositoryMock) GetNotification(ctx context.Context, id int) (models.Notification, error) {
	args := m.Called(ctx, id)
	return value[models.Notification](args, 0), args.Error(1)
}

func (m *NotificationRepositoryMock) MarkRead(ctx context.Context, id int, recipientID int) error {
	args := m.Called(ctx, id, recipientID)
	return args.Error(0)
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) GetUser(ctx context.Context, userID int) (models.User, error) {
	args := m.Called(ctx, userID)
	return value[models.User](args, 0), args.Error(1)
}

func (m *UserRepositoryMock) FindUserByName(ctx context.Context, username string) (models.User, error) {
	args := m.Called(ctx, username)
	return value[models.User](args, 0), args.Error(1)
}

func (m *UserRepositoryMock) SearchUsers(ctx context.Context, query string, limit int) ([]models.User, error) {
	args := m.Called(ctx, query, limit)
	return value[[]models.User](args, 0), args.Error(1)
}

// BlobStoreMock stands in for blob.Store.
type BlobStoreMock struct {
	mock.Mock
}

func (m *BlobStoreMock) Store(ctx context.Context, data []byte, originalName, contentType string) (string, error) {
	args := m.Called(ctx, data, originalName, contentType)
	return args.String(0), args.Error(1)
}

type NotifierMock struct {
	mock.Mock
}

func (m *NotifierMock) Fanout(ctx context.Context, draft models.NotificationDraft, recipientIDs []int) []models.Notification {
	args := m.Called(ctx, draft, recipientIDs)
	return value[[]models.Notification](args, 0)
}

type BroadcasterMock struct {
	mock.Mock
}

func (m *BroadcasterMock) Broadcast(room string, event any) {
	m.Called(room, event)
}

var _ repositories.GroupRepository = (*GroupRepositoryMock)(nil)
var _ repositories.GroupMessageRepository = (*GroupMessageRepositoryMock)(nil)
var _ repositories.ChatRepository = (*ChatRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.NotificationRepository = (*NotificationRepositoryMock)(nil)
var _ repositories.UserRepository = (*UserRepositoryMock)(nil)

type RoomsMock struct {
	mock.Mock
}

func (m *RoomsMock) Broadcast(room string, event any) {
	m.Called(room, event)
}

func (m *RoomsMock) EvictUser(room string, userID int) {
	m.Called(room, userID)
}

func (m *RoomsMock) CloseRoom(room string) {
	m.Called(room)
}
