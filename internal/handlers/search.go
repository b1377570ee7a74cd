package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"collab-service/internal/models"
)

// Search looks up users and groups by name.
type Search interface {
	SearchUsers(ctx context.Context, caller models.Caller, query string) ([]models.User, error)
	SearchGroups(ctx context.Context, caller models.Caller, query string) ([]models.Group, error)
}

type SearchHandler struct {
	search Search
}

func NewSearchHandler(search Search) *SearchHandler {
	return &SearchHandler{search: search}
}

func (h *SearchHandler) Register(r gin.IRoutes) {
	r.GET("/search/users", h.Users)
	r.GET("/search/groups", h.Groups)
}

// Users handles GET /search/users?q=.
func (h *SearchHandler) Users(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	users, err := h.search.SearchUsers(c.Request.Context(), caller, c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": nonNil(users)})
}

// Groups handles GET /search/groups?q=.
func (h *SearchHandler) Groups(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	groups, err := h.search.SearchGroups(c.Request.Context(), caller, c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": nonNil(groups)})
}
