package interfaces

import (
	"context"
	"time"

	domaintypes "syncpair/internal/domain/types"
)

// ObjectStore is the remote key/value object store: named collections of
// basic objects addressed by id. Missing objects yield domain.ErrNotFound.
type ObjectStore interface {
	Get(ctx context.Context, collection, id string) (domaintypes.Object, error)
	Put(ctx context.Context, collection, id string, payload []byte) (time.Time, error)
	Delete(ctx context.Context, collection, id string) error
	// List returns the ids modified strictly after newer. A zero newer lists
	// everything.
	List(ctx context.Context, collection string, newer time.Time) (domaintypes.Listing, error)
}
