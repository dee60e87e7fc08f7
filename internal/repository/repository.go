package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrDuplicateKey reports a unique constraint violation. Repositories
// translate the store-level error so services stay driver-agnostic; the
// constraint itself is the authoritative guard against concurrent inserts.
var ErrDuplicateKey = errors.New("duplicate key value")

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

func translateError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicateKey
	}
	return err
}
