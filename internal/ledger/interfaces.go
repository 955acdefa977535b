// Package ledger holds the financial core: the account and card ledgers, the
// coordinator that moves money between them and the approval workflow.
package ledger

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// TxRunner runs fn inside one database transaction, committing only when fn returns nil
type TxRunner interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}
