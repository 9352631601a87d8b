// Package sqlxrepos implements the portal's repositories on postgres with sqlx.
package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// sqlxNamedExec binds the named parameters of q from arg and runs it on exec.
func sqlxNamedExec(ctx context.Context, exec sqlx.ExtContext, q string, arg interface{}) (sql.Result, error) {
	query, args, err := sqlx.Named(q, arg)
	if err != nil {
		return nil, err
	}
	return exec.ExecContext(ctx, exec.Rebind(query), args...)
}
