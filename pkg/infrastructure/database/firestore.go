// Package database implements the credential store on Firestore.
package database

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"

	storage "github.com/activitrax/server/pkg/storage/firestore"
	"github.com/activitrax/server/pkg/types"
)

// FirestoreAdapter provides database operations using Firestore.
// It wraps our typed storage client.
type FirestoreAdapter struct {
	Client  *firestore.Client
	storage *storage.Client
}

func NewFirestoreAdapter(client *firestore.Client) *FirestoreAdapter {
	return &FirestoreAdapter{
		Client:  client,
		storage: storage.NewClient(client),
	}
}

func (a *FirestoreAdapter) GetUser(ctx context.Context, id string) (*types.UserRecord, error) {
	return a.storage.Users().Doc(id).Get(ctx)
}

// GetUserByService resolves a record by the provider-assigned user id,
// returning the internal user id alongside the record.
func (a *FirestoreAdapter) GetUserByService(ctx context.Context, service, externalID string) (string, *types.UserRecord, error) {
	return a.storage.Users().FindByField(ctx, service+"_uid", externalID)
}

func (a *FirestoreAdapter) UpdateUser(ctx context.Context, id string, data map[string]interface{}) error {
	return a.storage.Users().Doc(id).Update(ctx, data)
}

// ClearServiceFields disconnects one provider: the token pair and external
// id are removed, the rest of the record is untouched.
func (a *FirestoreAdapter) ClearServiceFields(ctx context.Context, id string, service string) error {
	return a.storage.Users().Doc(id).Update(ctx, map[string]interface{}{
		service + "_access_token":  firestore.Delete,
		service + "_refresh_token": firestore.Delete,
		service + "_uid":           firestore.Delete,
		service + "_connected_at":  firestore.Delete,
		service + "_last_used_at":  firestore.Delete,
	})
}

func (a *FirestoreAdapter) SetLastActivity(ctx context.Context, id string, activity map[string]interface{}) error {
	if id == "" {
		return fmt.Errorf("missing user id for activity cache")
	}
	return a.storage.Users().Doc(id).Update(ctx, map[string]interface{}{
		"last_strava_activity": activity,
	})
}
