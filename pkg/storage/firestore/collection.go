package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	shared "github.com/activitrax/server/pkg"
)

type Collection[T any] struct {
	Ref *firestore.CollectionRef
}

func (c *Collection[T]) Doc(id string) *DocumentRef[T] {
	return &DocumentRef[T]{Ref: c.Ref.Doc(id)}
}

// FindByField returns the first document whose field equals value, along
// with its id. shared.ErrNotFound when no document matches.
func (c *Collection[T]) FindByField(ctx context.Context, field string, value interface{}) (string, *T, error) {
	iter := c.Ref.Where(field, "==", value).Limit(1).Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if err == iterator.Done {
		return "", nil, shared.ErrNotFound
	}
	if err != nil {
		return "", nil, err
	}

	var v T
	if err := snap.DataTo(&v); err != nil {
		return "", nil, err
	}
	return snap.Ref.ID, &v, nil
}

type DocumentRef[T any] struct {
	Ref *firestore.DocumentRef
}

func (d *DocumentRef[T]) ID() string {
	return d.Ref.ID
}

func (d *DocumentRef[T]) Get(ctx context.Context) (*T, error) {
	snap, err := d.Ref.Get(ctx)
	if err != nil {
		if snap != nil && !snap.Exists() {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	var v T
	if err := snap.DataTo(&v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Update merges a partial field map into the document, creating it if
// absent. Keys must match Firestore snake_case field names; values may be
// firestore.Delete to remove a field.
func (d *DocumentRef[T]) Update(ctx context.Context, updates map[string]interface{}) error {
	_, err := d.Ref.Set(ctx, updates, firestore.MergeAll)
	return err
}
