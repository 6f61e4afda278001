package shared

import "context"

// TransactionManager runs fn atomically. Repositories called with the ctx
// handed to fn take part in the same transaction.
type TransactionManager interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
