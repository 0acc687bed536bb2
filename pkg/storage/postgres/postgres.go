package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/platinummonkey/lineage/pkg/observability"
	"github.com/platinummonkey/lineage/pkg/storage"
	"github.com/platinummonkey/lineage/pkg/storage/sqlstore"
)

//go:embed schema.sql
var schemaSQL string

// Dialect is the PostgreSQL flavour of SQL
type Dialect struct{}

// Name implements sqlstore.Dialect
func (Dialect) Name() string { return "postgres" }

// Rebind implements sqlstore.Dialect
func (Dialect) Rebind(query string) string { return sqlstore.RebindDollar(query) }

// AnyOf implements sqlstore.Dialect. The whole set travels as one array
// parameter.
func (Dialect) AnyOf(column string, values []string) (string, []any) {
	return column + " = ANY(?)", []any{pq.Array(values)}
}

// ContainsText implements sqlstore.Dialect
func (Dialect) ContainsText(column string) string {
	return "strpos(" + column + "::text, ?) > 0"
}

// Schema implements sqlstore.Dialect
func (Dialect) Schema() string { return schemaSQL }

// PostgresStorage implements storage.Storage using PostgreSQL. Reads are
// spread over read replicas when configured.
type PostgresStorage struct {
	*sqlstore.Store
	conns *ConnectionManager
}

// NewPostgresStorage creates a new PostgreSQL-backed storage
func NewPostgresStorage(config storage.Config, logger *observability.Logger) (*PostgresStorage, error) {
	conns, err := NewConnectionManager(ConnectionConfig{
		PrimaryURL:  config.PostgresURL,
		ReplicaURLs: ParseReplicaURLs(config.PostgresReplicaURLs),
		MaxConns:    config.PostgresMaxConns,
		MinConns:    config.PostgresMinConns,
		Timeout:     config.PostgresTimeout,
		MaxLifetime: 1 * time.Hour,
		MaxIdleTime: 10 * time.Minute,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	s := newWithConnections(conns)
	if config.PostgresMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), config.PostgresTimeout)
		defer cancel()
		if err := s.Migrate(ctx); err != nil {
			conns.Close()
			return nil, err
		}
	}
	return s, nil
}

func newWithConnections(conns *ConnectionManager) *PostgresStorage {
	return &PostgresStorage{
		Store: sqlstore.New(conns, Dialect{}),
		conns: conns,
	}
}

// Connections returns the underlying connection manager
func (s *PostgresStorage) Connections() *ConnectionManager {
	return s.conns
}

// StartReplicaMonitor drops replicas that stop answering pings until ctx is
// cancelled
func (s *PostgresStorage) StartReplicaMonitor(ctx context.Context, interval time.Duration) {
	s.conns.StartHealthCheckRoutine(ctx, interval)
}
