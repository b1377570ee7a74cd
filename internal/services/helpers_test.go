package services

import (
	"database/sql"

	"collab-service/internal/models"
)

var (
	owner   = models.Caller{UserID: 1, Role: models.RoleStudent, SessionID: "s1"}
	member  = models.Caller{UserID: 2, Role: models.RoleStudent, SessionID: "s2"}
	outside = models.Caller{UserID: 3, Role: models.RoleInstructor, SessionID: "s3"}
	admin   = models.Caller{UserID: 9, Role: models.RoleAdmin, SessionID: "s9"}
)

func studyGroup() models.Group {
	return models.Group{ID: 5, Name: "Study", OwnerID: sql.NullInt64{Int64: 1, Valid: true}}
}

func defaultGroup() models.Group {
	return models.Group{ID: 6, Name: "Student Hub", IsDefault: true, OwnerID: sql.NullInt64{Int64: 1, Valid: true}}
}

func memberships(groupID int, ids ...int) []models.Membership {
	out := make([]models.Membership, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.Membership{GroupID: groupID, UserID: id, ViewMode: models.ViewModeComfortable})
	}
	return out
}
