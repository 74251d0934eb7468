package mocks

import (
	"context"

	"github.com/cloudevents/sdk-go/v2/event"

	shared "github.com/activitrax/server/pkg"
	"github.com/activitrax/server/pkg/types"
)

// --- Mock Database ---

type MockDatabase struct {
	GetUserFunc            func(ctx context.Context, id string) (*types.UserRecord, error)
	GetUserByServiceFunc   func(ctx context.Context, service, externalID string) (string, *types.UserRecord, error)
	UpdateUserFunc         func(ctx context.Context, id string, data map[string]interface{}) error
	ClearServiceFieldsFunc func(ctx context.Context, id string, service string) error
	SetLastActivityFunc    func(ctx context.Context, id string, activity map[string]interface{}) error
}

func (m *MockDatabase) GetUser(ctx context.Context, id string) (*types.UserRecord, error) {
	if m.GetUserFunc != nil {
		return m.GetUserFunc(ctx, id)
	}
	return nil, shared.ErrNotFound
}

func (m *MockDatabase) GetUserByService(ctx context.Context, service, externalID string) (string, *types.UserRecord, error) {
	if m.GetUserByServiceFunc != nil {
		return m.GetUserByServiceFunc(ctx, service, externalID)
	}
	return "", nil, shared.ErrNotFound
}

func (m *MockDatabase) UpdateUser(ctx context.Context, id string, data map[string]interface{}) error {
	if m.UpdateUserFunc != nil {
		return m.UpdateUserFunc(ctx, id, data)
	}
	return nil
}

func (m *MockDatabase) ClearServiceFields(ctx context.Context, id string, service string) error {
	if m.ClearServiceFieldsFunc != nil {
		return m.ClearServiceFieldsFunc(ctx, id, service)
	}
	return nil
}

func (m *MockDatabase) SetLastActivity(ctx context.Context, id string, activity map[string]interface{}) error {
	if m.SetLastActivityFunc != nil {
		return m.SetLastActivityFunc(ctx, id, activity)
	}
	return nil
}

// --- Mock Publisher ---

type MockPublisher struct {
	PublishCloudEventFunc func(ctx context.Context, topic string, e event.Event) (string, error)
}

func (m *MockPublisher) PublishCloudEvent(ctx context.Context, topic string, e event.Event) (string, error) {
	if m.PublishCloudEventFunc != nil {
		return m.PublishCloudEventFunc(ctx, topic, e)
	}
	return "msg-id", nil
}
