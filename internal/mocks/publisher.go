package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"collab-service/internal/rabbitmq"
)

// PublisherMock stands in for the AMQP publisher in service and handler tests.
type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	return m.Called(ctx, routingKey, event).Error(0)
}

func (m *PublisherMock) Close() error {
	return m.Called().Error(0)
}

// Published returns the events sent under routingKey, in call order.
func (m *PublisherMock) Published(routingKey string) []any {
	var events []any
	for _, call := range m.Calls {
		if call.Method == "Publish" && call.Arguments.String(1) == routingKey {
			events = append(events, call.Arguments.Get(2))
		}
	}
	return events
}

var _ rabbitmq.Publisher = (*PublisherMock)(nil)
