package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"collab-service/internal/apperr"
	"collab-service/internal/mocks"
	"collab-service/internal/models"
	"collab-service/internal/services"
)

type chatDeps struct {
	chats    *mocks.ChatRepositoryMock
	messages *mocks.MessageRepositoryMock
	users    *mocks.UserRepositoryMock
	notifier *mocks.NotifierMock
}

func setupChatRouter(caller models.Caller) (*gin.Engine, *chatDeps) {
	gin.SetMode(gin.TestMode)
	d := &chatDeps{
		chats:    new(mocks.ChatRepositoryMock),
		messages: new(mocks.MessageRepositoryMock),
		users:    new(mocks.UserRepositoryMock),
		notifier: new(mocks.NotifierMock),
	}
	svc := services.NewChatService(d.chats, d.messages, d.users, new(mocks.BlobStoreMock), d.notifier, nil, nil)

	r := gin.New()
	r.Use(withCaller(caller))
	NewChatHandler(svc, testMaxUpload).Register(r)
	return r, d
}

var alice = models.Caller{UserID: 1, Role: models.RoleStudent}

func TestListChatsSuccess(t *testing.T) {
	router, d := setupChatRouter(alice)
	d.chats.On("ListChatsForUser", mock.Anything, 1).Return([]models.PrivateChat{{ID: 3, UserAID: 1, UserBID: 2}}, nil).Once()

	rec := serve(router, http.MethodGet, "/chats", nil, "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Chats []models.PrivateChat `json:"chats"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Chats, 1)
	assert.Equal(t, 2, resp.Chats[0].UserBID)
}

func TestListChatsRepoError(t *testing.T) {
	router, d := setupChatRouter(alice)
	d.chats.On("ListChatsForUser", mock.Anything, 1).Return(nil, errors.New("db down")).Once()

	rec := serve(router, http.MethodGet, "/chats", nil, "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestOpenChatResolvesOnly(t *testing.T) {
	router, d := setupChatRouter(alice)
	d.users.On("GetUser", mock.Anything, 2).Return(models.User{ID: 2, Username: "bob"}, nil)
	d.chats.On("ResolveChat", mock.Anything, 1, 2).Return(models.PrivateChat{ID: 3, UserAID: 1, UserBID: 2}, nil).Once()

	rec := serve(router, http.MethodPost, "/chats", bytes.NewBufferString(`{"user_id":2}`), "application/json")

	require.Equal(t, http.StatusOK, rec.Code)
	d.messages.AssertNotCalled(t, "CreatePrivateMessage", mock.Anything, mock.Anything)
}

func TestOpenChatWithFirstMessage(t *testing.T) {
	router, d := setupChatRouter(alice)
	chat := models.PrivateChat{ID: 3, UserAID: 1, UserBID: 2}
	d.users.On("GetUser", mock.Anything, 2).Return(models.User{ID: 2, Username: "bob"}, nil)
	d.users.On("GetUser", mock.Anything, 1).Return(models.User{ID: 1, Username: "alice"}, nil)
	d.chats.On("ResolveChat", mock.Anything, 1, 2).Return(chat, nil)
	d.chats.On("GetChat", mock.Anything, 3).Return(chat, nil)
	d.messages.On("CreatePrivateMessage", mock.Anything, mock.Anything).Return(models.PrivateMessage{ID: 8, ChatID: 3, SenderID: 1, Body: "hi bob"}, nil).Once()
	d.notifier.On("Fanout", mock.Anything, mock.Anything, []int{2}).Return(nil).Once()

	rec := serve(router, http.MethodPost, "/chats", bytes.NewBufferString(`{"user_id":2,"body":"hi bob"}`), "application/json")

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"message":{"id":8`)
	d.notifier.AssertExpectations(t)
}

func TestOpenChatWithSelf(t *testing.T) {
	router, _ := setupChatRouter(alice)

	rec := serve(router, http.MethodPost, "/chats", bytes.NewBufferString(`{"user_id":1}`), "application/json")

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "self_chat")
}

func TestOpenChatMissingUser(t *testing.T) {
	router, _ := setupChatRouter(alice)

	rec := serve(router, http.MethodPost, "/chats", bytes.NewBufferString(`{"body":"hi"}`), "application/json")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetChatOutsiderForbidden(t *testing.T) {
	router, d := setupChatRouter(models.Caller{UserID: 5, Role: models.RoleInstructor})
	d.chats.On("GetChat", mock.Anything, 3).Return(models.PrivateChat{ID: 3, UserAID: 1, UserBID: 2}, nil)

	rec := serve(router, http.MethodGet, "/chats/3", nil, "")
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetChatUnknown(t *testing.T) {
	router, d := setupChatRouter(alice)
	d.chats.On("GetChat", mock.Anything, 4).Return(models.PrivateChat{}, apperr.ErrChatNotFound)

	rec := serve(router, http.MethodGet, "/chats/4", nil, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPostChatMessageInvalidID(t *testing.T) {
	router, _ := setupChatRouter(alice)

	rec := serve(router, http.MethodPost, "/chats/abc/messages", bytes.NewBufferString(`{"body":"hey"}`), "application/json")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteChatMessageByOtherParticipant(t *testing.T) {
	router, d := setupChatRouter(models.Caller{UserID: 2, Role: models.RoleStudent})
	d.messages.On("GetPrivateMessage", mock.Anything, 8).Return(models.PrivateMessage{ID: 8, ChatID: 3, SenderID: 1}, nil)

	rec := serve(router, http.MethodDelete, "/chats/3/messages/8", nil, "")
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestEditChatMessage(t *testing.T) {
	router, d := setupChatRouter(alice)
	d.messages.On("GetPrivateMessage", mock.Anything, 8).Return(models.PrivateMessage{ID: 8, ChatID: 3, SenderID: 1, Body: "old"}, nil)
	d.messages.On("EditPrivateMessage", mock.Anything, 8, "new").Return(models.PrivateMessage{ID: 8, ChatID: 3, SenderID: 1, Body: "new"}, nil)

	rec := serve(router, http.MethodPatch, "/chats/3/messages/8", bytes.NewBufferString(`{"body":"new"}`), "application/json")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"body":"new"`)
}
