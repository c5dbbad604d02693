// Package tx defines the transaction boundary used by writers of metadata
// documents. The implementation lives in infrastructure/storage/postgres.
package tx

import (
	"context"
)

// Manager runs fn inside a transaction: committed when fn returns nil,
// rolled back otherwise. Nested calls join the transaction bound to ctx.
type Manager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
