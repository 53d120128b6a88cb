package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sourcegauge/sourcegauge/internal/core/domain"
)

// pgInsufficientPrivilege is the SQLSTATE the server returns when the
// connecting role lacks SELECT on a relation or column.
const pgInsufficientPrivilege = "42501"

// mapQueryError translates a permission denial into domain.ErrPermission so
// the affected check degrades to an empty result instead of reading as an
// arbitrary query failure. Other errors pass through unchanged.
func mapQueryError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgInsufficientPrivilege {
		return fmt.Errorf("%w: %s", domain.ErrPermission, pgErr.Message)
	}
	return err
}
