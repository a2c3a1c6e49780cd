package store

import (
	"context"
	"errors"

	"wallet/internal/core"
)

var ErrNotFound = errors.New("entry not found")

// Ports implemented by the entry stores.
type (
	EntryWriter interface {
		// Append validates e, assigns the next id of its variant and stores it.
		// The stored entry is returned with its id set.
		Append(ctx context.Context, e core.Entry) (core.Entry, error)
	}

	EntryLister interface {
		// List returns a copy of the variant's collection in insertion order.
		List(ctx context.Context, v core.Variant) ([]core.Entry, error)
	}

	EntryGetter interface {
		Get(ctx context.Context, v core.Variant, id int64) (core.Entry, error)
	}

	Store interface {
		EntryWriter
		EntryLister
		EntryGetter
	}
)
