package sheets

import (
	"context"

	"wallet/internal/core"
)

// Ports for the spreadsheet mirror.
type (
	// RowWriter appends a stored entry to the variant's tab. Appending an
	// entry that is already present returns the existing row reference.
	RowWriter interface {
		AppendEntry(ctx context.Context, e core.Entry) (rowRef string, err error)
	}

	// RowReader reads a tab back into entries.
	RowReader interface {
		ReadEntries(ctx context.Context, v core.Variant) ([]core.Entry, error)
	}
)
