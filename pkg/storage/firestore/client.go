// Package firestore wraps the Firestore client with typed collections.
package firestore

import (
	"cloud.google.com/go/firestore"

	shared "github.com/activitrax/server/pkg"
	"github.com/activitrax/server/pkg/types"
)

type Client struct {
	fs *firestore.Client
}

func NewClient(client *firestore.Client) *Client {
	return &Client{fs: client}
}

func (c *Client) Close() error {
	return c.fs.Close()
}

// Users is the credential store collection: users/{internal user id}.
func (c *Client) Users() *Collection[types.UserRecord] {
	return &Collection[types.UserRecord]{
		Ref: c.fs.Collection(shared.CollectionUsers),
	}
}
