package shared

import (
	"context"
	"errors"

	"github.com/cloudevents/sdk-go/v2/event"

	"github.com/activitrax/server/pkg/types"
)

// ErrNotFound is returned by Database lookups when no record matches.
var ErrNotFound = errors.New("record not found")

// --- Persistence Interfaces ---

// Database is the credential store. A user record is addressable either by
// its internal id (the document id) or by a (service, external id) pair;
// both resolve to the same underlying record.
type Database interface {
	GetUser(ctx context.Context, id string) (*types.UserRecord, error)
	GetUserByService(ctx context.Context, service, externalID string) (string, *types.UserRecord, error)

	// UpdateUser merges the given fields into the record, creating it if
	// absent. Unspecified fields are left untouched.
	UpdateUser(ctx context.Context, id string, data map[string]interface{}) error

	// ClearServiceFields removes a single provider's connection fields.
	// The record itself survives.
	ClearServiceFields(ctx context.Context, id string, service string) error

	SetLastActivity(ctx context.Context, id string, activity map[string]interface{}) error
}

// --- Messaging Interfaces ---

type Publisher interface {
	PublishCloudEvent(ctx context.Context, topic string, e event.Event) (string, error)
}
