package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"collab-service/internal/mocks"
	"collab-service/internal/models"
	"collab-service/internal/services"
	"collab-service/internal/telemetry"
)

func telemetryEmitter(p telemetry.Publisher) *telemetry.AuditEmitter {
	return telemetry.NewAuditEmitter(p, "audit.collab", "collab-service", "test")
}

func setupSearchRouter(caller models.Caller) (*gin.Engine, *mocks.UserRepositoryMock, *mocks.GroupRepositoryMock) {
	gin.SetMode(gin.TestMode)
	users := new(mocks.UserRepositoryMock)
	groups := new(mocks.GroupRepositoryMock)

	r := gin.New()
	r.Use(withCaller(caller))
	NewSearchHandler(services.NewSearchService(users, groups)).Register(r)
	return r, users, groups
}

func TestSearchUsers(t *testing.T) {
	router, users, _ := setupSearchRouter(alice)
	users.On("SearchUsers", mock.Anything, "bo", 10).Return([]models.User{{ID: 2, Username: "bob"}}, nil)

	rec := serve(router, http.MethodGet, "/search/users?q=bo", nil, "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"bob"`)
}

func TestSearchGroupsEmptyQuery(t *testing.T) {
	router, _, _ := setupSearchRouter(alice)

	rec := serve(router, http.MethodGet, "/search/groups?q=", nil, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchGroupsNoMatches(t *testing.T) {
	router, _, groups := setupSearchRouter(alice)
	groups.On("SearchGroups", mock.Anything, "zzz", 1, false, 10).Return(nil, nil)

	rec := serve(router, http.MethodGet, "/search/groups?q=zzz", nil, "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"groups":[]}`, rec.Body.String())
}
