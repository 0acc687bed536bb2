package sqlstore

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
)

// Dialect hides the differences between SQL backends. Queries are written
// with ? placeholders and rebound by the dialect.
type Dialect interface {
	// Name identifies the backend in errors and metrics
	Name() string
	// Rebind rewrites ? placeholders into the backend's style
	Rebind(query string) string
	// AnyOf returns a predicate matching column against any of values
	AnyOf(column string, values []string) (string, []any)
	// ContainsText returns a predicate, with one placeholder, testing the
	// text of column for a substring
	ContainsText(column string) string
	// Schema returns DDL creating every table. It must be idempotent.
	Schema() string
}

// Pool hands out connections. Reads go to Replica, writes to Primary.
type Pool interface {
	Primary() *sql.DB
	Replica() *sql.DB
	HealthCheck(ctx context.Context) error
	Close() error
}

// SingleDB is a Pool backed by one database handle
type SingleDB struct {
	DB *sql.DB
}

// Primary implements Pool
func (p SingleDB) Primary() *sql.DB { return p.DB }

// Replica implements Pool
func (p SingleDB) Replica() *sql.DB { return p.DB }

// HealthCheck implements Pool
func (p SingleDB) HealthCheck(ctx context.Context) error { return p.DB.PingContext(ctx) }

// Close implements Pool
func (p SingleDB) Close() error { return p.DB.Close() }

// RebindDollar rewrites ? placeholders as $1, $2, ...
func RebindDollar(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// InList returns a portable "column IN (?, ?, ...)" predicate
func InList(column string, values []string) (string, []any) {
	if len(values) == 0 {
		return "1 = 0", nil
	}
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return column + " IN (" + strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ") + ")", args
}
