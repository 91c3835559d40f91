// Package sqlxrepos implements the core repositories on PostgreSQL
// with sqlx and squirrel.
package sqlxrepos

import (
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/evolvere-edu/evolvere/core"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const uniqueViolation = "23505"

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation && (constraint == "" || pqErr.Constraint == constraint)
	}
	return false
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func orderBy(defaultOrder string, ordering []core.DBOrdering) []string {
	if len(ordering) == 0 {
		return []string{defaultOrder}
	}
	clauses := make([]string, 0, len(ordering))
	for _, o := range ordering {
		clauses = append(clauses, o.String())
	}
	return clauses
}
