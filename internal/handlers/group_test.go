package handlers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"collab-service/internal/apperr"
	"collab-service/internal/middleware"
	"collab-service/internal/mocks"
	"collab-service/internal/models"
	"collab-service/internal/services"
)

const testMaxUpload = 1 << 20

type groupDeps struct {
	groups   *mocks.GroupRepositoryMock
	messages *mocks.GroupMessageRepositoryMock
	users    *mocks.UserRepositoryMock
	blobs    *mocks.BlobStoreMock
	notifier *mocks.NotifierMock
}

func withCaller(caller models.Caller) gin.HandlerFunc {
	return func(c *gin.Context) {
		middleware.SetCaller(c, caller)
		c.Next()
	}
}

func setupGroupRouter(caller models.Caller) (*gin.Engine, *groupDeps) {
	gin.SetMode(gin.TestMode)
	d := &groupDeps{
		groups:   new(mocks.GroupRepositoryMock),
		messages: new(mocks.GroupMessageRepositoryMock),
		users:    new(mocks.UserRepositoryMock),
		blobs:    new(mocks.BlobStoreMock),
		notifier: new(mocks.NotifierMock),
	}
	messages := services.NewMessageService(d.groups, d.messages, d.blobs, d.notifier, nil, nil)
	lifecycle := services.NewMembershipService(d.groups, d.users, d.blobs, d.notifier, nil, nil)
	handler := NewGroupHandler(messages, lifecycle, nil, testMaxUpload)

	r := gin.New()
	r.Use(withCaller(caller))
	handler.Register(r)
	return r, d
}

func studyGroup() models.Group {
	return models.Group{ID: 9, Name: "Study", OwnerID: sql.NullInt64{Int64: 1, Valid: true}}
}

func serve(r http.Handler, method, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCreateGroupSuccess(t *testing.T) {
	router, d := setupGroupRouter(models.Caller{UserID: 1, Role: models.RoleStudent})

	d.users.On("GetUser", mock.Anything, 2).Return(models.User{ID: 2, Username: "bob"}, nil)
	d.users.On("GetUser", mock.Anything, 1).Return(models.User{ID: 1, Username: "me"}, nil)
	d.groups.On("CreateGroup", mock.Anything, 1, "test", "", []int{2}).Return(models.Group{ID: 5, Name: "test"}, nil).Once()
	d.notifier.On("Fanout", mock.Anything, mock.Anything, []int{2}).Return(nil)

	rec := serve(router, http.MethodPost, "/groups", bytes.NewBufferString(`{"name":"test","member_ids":[2]}`), "application/json")

	require.Equal(t, http.StatusCreated, rec.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.EqualValues(t, 5, got["id"])
	d.groups.AssertExpectations(t)
}

func TestCreateGroupInvalidBody(t *testing.T) {
	router, _ := setupGroupRouter(models.Caller{UserID: 1, Role: models.RoleStudent})

	rec := serve(router, http.MethodPost, "/groups", bytes.NewBufferString(`{"name":5}`), "application/json")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetGroupForbiddenForOutsider(t *testing.T) {
	router, d := setupGroupRouter(models.Caller{UserID: 3, Role: models.RoleStudent})
	d.groups.On("GetGroup", mock.Anything, 9).Return(studyGroup(), nil)
	d.groups.On("IsMember", mock.Anything, 9, 3).Return(false, nil)

	rec := serve(router, http.MethodGet, "/groups/9", nil, "")

	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"forbidden"`)
}

func TestGetGroupAsAdmin(t *testing.T) {
	router, d := setupGroupRouter(models.Caller{UserID: 8, Role: models.RoleAdmin})
	d.groups.On("GetGroup", mock.Anything, 9).Return(studyGroup(), nil)
	d.groups.On("IsMember", mock.Anything, 9, 8).Return(false, nil)
	d.groups.On("ListMembers", mock.Anything, 9).Return(nil, nil)
	d.messages.On("ListGroupMessages", mock.Anything, 9).Return(nil, nil)

	rec := serve(router, http.MethodGet, "/groups/9", nil, "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"messages":[]`)
	assert.Contains(t, rec.Body.String(), `"owner_id":1`)
}

func TestGetGroupInvalidID(t *testing.T) {
	router, _ := setupGroupRouter(models.Caller{UserID: 1, Role: models.RoleStudent})

	rec := serve(router, http.MethodGet, "/groups/bad", nil, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostGroupMessageSuccess(t *testing.T) {
	router, d := setupGroupRouter(models.Caller{UserID: 1, Role: models.RoleStudent})
	d.groups.On("GetGroup", mock.Anything, 9).Return(studyGroup(), nil)
	d.groups.On("IsMember", mock.Anything, 9, 1).Return(true, nil)
	d.messages.On("CreateGroupMessage", mock.Anything, mock.Anything).Return(models.GroupMessage{ID: 3, GroupID: 9, SenderID: 1, Body: "hey"}, nil).Once()
	d.groups.On("ListMembers", mock.Anything, 9).Return([]models.Membership{{GroupID: 9, UserID: 1}, {GroupID: 9, UserID: 2}}, nil)
	d.notifier.On("Fanout", mock.Anything, mock.Anything, []int{1, 2}).Return(nil)

	rec := serve(router, http.MethodPost, "/groups/9/messages", bytes.NewBufferString(`{"body":"hey"}`), "application/json")

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"attachment"`)
	d.messages.AssertExpectations(t)
}

func TestPostGroupMessageMultipart(t *testing.T) {
	router, d := setupGroupRouter(models.Caller{UserID: 1, Role: models.RoleStudent})

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	require.NoError(t, form.WriteField("body", "see attached"))
	part, err := form.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, _ = part.Write([]byte("hello notes"))
	require.NoError(t, form.Close())

	d.groups.On("GetGroup", mock.Anything, 9).Return(studyGroup(), nil)
	d.groups.On("IsMember", mock.Anything, 9, 1).Return(true, nil)
	d.blobs.On("Store", mock.Anything, []byte("hello notes"), "notes.txt", mock.AnythingOfType("string")).Return("/uploads/n.txt", nil).Once()
	d.messages.On("CreateGroupMessage", mock.Anything, mock.MatchedBy(func(m models.GroupMessage) bool {
		return m.Body == "see attached" && m.AttachmentURL.String == "/uploads/n.txt"
	})).Return(models.GroupMessage{ID: 4, GroupID: 9}, nil).Once()
	d.groups.On("ListMembers", mock.Anything, 9).Return(nil, nil)
	d.notifier.On("Fanout", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	rec := serve(router, http.MethodPost, "/groups/9/messages", &buf, form.FormDataContentType())

	require.Equal(t, http.StatusCreated, rec.Code)
	d.blobs.AssertExpectations(t)
	d.messages.AssertExpectations(t)
}

func TestPostGroupMessageEmpty(t *testing.T) {
	router, _ := setupGroupRouter(models.Caller{UserID: 1, Role: models.RoleStudent})

	rec := serve(router, http.MethodPost, "/groups/9/messages", bytes.NewBufferString(`{"body":"  "}`), "application/json")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "empty_message")
}

func TestPostGroupMessageStorageDown(t *testing.T) {
	router, d := setupGroupRouter(models.Caller{UserID: 1, Role: models.RoleStudent})
	d.groups.On("GetGroup", mock.Anything, 9).Return(models.Group{}, errors.New("connection refused"))

	rec := serve(router, http.MethodPost, "/groups/9/messages", bytes.NewBufferString(`{"body":"hi"}`), "application/json")

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestLeaveDefaultGroupConflict(t *testing.T) {
	router, d := setupGroupRouter(models.Caller{UserID: 8, Role: models.RoleAdmin})
	d.groups.On("GetGroup", mock.Anything, 9).Return(models.Group{ID: 9, IsDefault: true}, nil)

	rec := serve(router, http.MethodPost, "/groups/9/leave", nil, "")

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "default_group_immutable")
}

func TestLeaveGroupReportsNewOwner(t *testing.T) {
	router, d := setupGroupRouter(models.Caller{UserID: 1, Role: models.RoleStudent})
	d.groups.On("GetGroup", mock.Anything, 9).Return(studyGroup(), nil)
	d.groups.On("LeaveGroup", mock.Anything, 9, 1).Return(models.LeaveOutcome{NewOwnerID: 2}, nil)
	d.notifier.On("Fanout", mock.Anything, mock.Anything, []int{2}).Return(nil)

	rec := serve(router, http.MethodPost, "/groups/9/leave", nil, "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"group_deleted":false,"new_owner_id":2}`, rec.Body.String())
}

func TestAddMemberByUsername(t *testing.T) {
	router, d := setupGroupRouter(models.Caller{UserID: 1, Role: models.RoleStudent})
	d.users.On("FindUserByName", mock.Anything, "grace").Return(models.User{ID: 4, Username: "grace"}, nil)
	d.groups.On("GetGroup", mock.Anything, 9).Return(studyGroup(), nil)
	d.groups.On("IsMember", mock.Anything, 9, 1).Return(true, nil)
	d.users.On("GetUser", mock.Anything, 4).Return(models.User{ID: 4, Username: "grace"}, nil)
	d.users.On("GetUser", mock.Anything, 1).Return(models.User{ID: 1, Username: "ada"}, nil)
	d.groups.On("AddMember", mock.Anything, 9, 4).Return(true, nil)
	d.notifier.On("Fanout", mock.Anything, mock.Anything, []int{4}).Return(nil)

	rec := serve(router, http.MethodPost, "/groups/9/members", bytes.NewBufferString(`{"username":"grace"}`), "application/json")

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"group_id":9,"user_id":4,"added":true}`, rec.Body.String())
}

func TestRemoveOwnerConflict(t *testing.T) {
	router, d := setupGroupRouter(models.Caller{UserID: 8, Role: models.RoleAdmin})
	d.groups.On("GetGroup", mock.Anything, 9).Return(studyGroup(), nil)
	d.groups.On("IsMember", mock.Anything, 9, 8).Return(false, nil)

	rec := serve(router, http.MethodDelete, "/groups/9/members/1", nil, "")

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "cannot_remove_owner")
}

func TestSetViewModeInvalid(t *testing.T) {
	router, _ := setupGroupRouter(models.Caller{UserID: 1, Role: models.RoleStudent})

	rec := serve(router, http.MethodPut, "/groups/9/view-mode", bytes.NewBufferString(`{"view_mode":"wide"}`), "application/json")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListAllGroupsForbidden(t *testing.T) {
	router, _ := setupGroupRouter(models.Caller{UserID: 1, Role: models.RoleInstructor})

	rec := serve(router, http.MethodGet, "/groups/all", nil, "")
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRespondErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := map[error]int{
		apperr.ErrGroupNotFound:             http.StatusNotFound,
		apperr.ErrForbidden:                 http.StatusForbidden,
		apperr.ErrSelfChat:                  http.StatusConflict,
		apperr.Invalid("bad"):               http.StatusBadRequest,
		apperr.Unavailable(sql.ErrConnDone): http.StatusServiceUnavailable,
		errors.New("boom"):                  http.StatusInternalServerError,
	}
	for err, want := range cases {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		respondError(c, err)
		assert.Equal(t, want, rec.Code, err.Error())
	}
}
