package services

import (
	"context"
	"strings"

	"collab-service/internal/apperr"
	"collab-service/internal/models"
	"collab-service/internal/repositories"
)

const searchLimit = 10

// SearchService looks up users and groups by name.
type SearchService struct {
	users  repositories.UserRepository
	groups repositories.GroupRepository
}

func NewSearchService(users repositories.UserRepository, groups repositories.GroupRepository) *SearchService {
	return &SearchService{users: users, groups: groups}
}

// SearchUsers matches active users by username or display name.
func (s *SearchService) SearchUsers(ctx context.Context, caller models.Caller, query string) (users []models.User, err error) {
	ctx, span := startSpan(ctx, "SearchService.SearchUsers", caller)
	defer finish(span, &err)

	query, err = searchQuery(query)
	if err != nil {
		return nil, err
	}
	return s.users.SearchUsers(ctx, query, searchLimit)
}

// SearchGroups matches group names among the groups the caller can view.
func (s *SearchService) SearchGroups(ctx context.Context, caller models.Caller, query string) (groups []models.Group, err error) {
	ctx, span := startSpan(ctx, "SearchService.SearchGroups", caller)
	defer finish(span, &err)

	query, err = searchQuery(query)
	if err != nil {
		return nil, err
	}
	return s.groups.SearchGroups(ctx, query, caller.UserID, caller.IsAdmin(), searchLimit)
}

func searchQuery(q string) (string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return "", apperr.Invalid("search query is required")
	}
	return q, nil
}
