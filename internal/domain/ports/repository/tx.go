package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager executes a function within a storage transaction,
// passing the underlying transaction handle through the `tx` argument.
// Use-case code stays free of storage types; repositories detect the
// concrete handle (e.g. pgx.Tx) on their side and MUST gracefully accept a
// nil tx for the non-transactional path.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
