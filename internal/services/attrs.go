package services

import (
	"go.opentelemetry.io/otel/attribute"

	"collab-service/internal/models"
)

func callerAttrs(caller models.Caller) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int("caller.user_id", caller.UserID),
		attribute.String("caller.role", string(caller.Role)),
	}
}
