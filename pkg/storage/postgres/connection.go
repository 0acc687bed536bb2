package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/prometheus/client_golang/prometheus"

	"github.com/platinummonkey/lineage/pkg/observability"
)

// ConnectionManager holds the record store's primary and read replica pools.
// Migrations and fixture loads use the primary; lineage lookups rotate over
// the replicas.
type ConnectionManager struct {
	primary  *sql.DB
	replicas []*sql.DB
	next     uint32
	mu       sync.RWMutex
	logger   *observability.Logger
}

// ConnectionConfig holds database connection configuration
type ConnectionConfig struct {
	PrimaryURL  string
	ReplicaURLs []string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
	Logger      *observability.Logger
}

// NewConnectionManager opens the primary and every reachable replica. The
// primary must answer a ping; replicas that do not are skipped.
func NewConnectionManager(config ConnectionConfig) (*ConnectionManager, error) {
	cm := &ConnectionManager{logger: config.Logger}

	primary, err := openPool(config.PrimaryURL, config.MaxConns, config)
	if err != nil {
		return nil, fmt.Errorf("primary: %w", err)
	}
	cm.primary = primary

	// Replica pools are half the primary's, never below two
	replicaConns := max(config.MaxConns/2, 2)
	for i, url := range config.ReplicaURLs {
		replica, err := openPool(url, replicaConns, config)
		if err != nil {
			cm.log().WithError(err).Warnf("skipping replica %d", i)
			continue
		}
		cm.replicas = append(cm.replicas, replica)
	}

	cm.log().WithField("replicas", len(cm.replicas)).Info("record store connections ready")
	return cm, nil
}

func openPool(url string, maxConns int, config ConnectionConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection: %w", err)
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(config.MinConns)
	db.SetConnMaxLifetime(config.MaxLifetime)
	db.SetConnMaxIdleTime(config.MaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping: %w", err)
	}
	return db, nil
}

// Primary returns the primary pool
func (cm *ConnectionManager) Primary() *sql.DB {
	return cm.primary
}

// Replica returns the next replica in rotation, or the primary when none are
// left
func (cm *ConnectionManager) Replica() *sql.DB {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if len(cm.replicas) == 0 {
		return cm.primary
	}
	i := atomic.AddUint32(&cm.next, 1)
	return cm.replicas[int(i%uint32(len(cm.replicas)))]
}

// AllReplicas returns a snapshot of the replica pools
func (cm *ConnectionManager) AllReplicas() []*sql.DB {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	replicas := make([]*sql.DB, len(cm.replicas))
	copy(replicas, cm.replicas)
	return replicas
}

// HealthCheck fails when the primary is down or when every replica is. A
// partial replica outage only shrinks the rotation.
func (cm *ConnectionManager) HealthCheck(ctx context.Context) error {
	if err := cm.primary.PingContext(ctx); err != nil {
		return fmt.Errorf("primary unhealthy: %w", err)
	}

	replicas := cm.AllReplicas()
	var down []string
	for i, replica := range replicas {
		if err := replica.PingContext(ctx); err != nil {
			down = append(down, fmt.Sprintf("replica-%d", i))
		}
	}
	if len(down) > 0 && len(down) == len(replicas) {
		return fmt.Errorf("all replicas unhealthy: %s", strings.Join(down, ", "))
	}
	return nil
}

// PoolStats is a point-in-time view of every pool
type PoolStats struct {
	Primary  sql.DBStats
	Replicas []sql.DBStats
}

// Stats returns pool statistics for the primary and each replica
func (cm *ConnectionManager) Stats() PoolStats {
	stats := PoolStats{Primary: cm.primary.Stats()}
	for _, replica := range cm.AllReplicas() {
		stats.Replicas = append(stats.Replicas, replica.Stats())
	}
	return stats
}

// RemoveUnhealthyReplicas closes and drops replicas that fail a ping and
// returns how many were removed
func (cm *ConnectionManager) RemoveUnhealthyReplicas(ctx context.Context) int {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	healthy := cm.replicas[:0:0]
	for _, replica := range cm.replicas {
		if err := replica.PingContext(ctx); err != nil {
			replica.Close()
			continue
		}
		healthy = append(healthy, replica)
	}
	removed := len(cm.replicas) - len(healthy)
	cm.replicas = healthy
	return removed
}

// Close closes the primary and every replica
func (cm *ConnectionManager) Close() error {
	var errs []error
	if err := cm.primary.Close(); err != nil {
		errs = append(errs, fmt.Errorf("primary: %w", err))
	}

	cm.mu.Lock()
	replicas := cm.replicas
	cm.replicas = nil
	cm.mu.Unlock()

	for i, replica := range replicas {
		if err := replica.Close(); err != nil {
			errs = append(errs, fmt.Errorf("replica-%d: %w", i, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("connection close errors: %v", errs)
	}
	return nil
}

// StartHealthCheckRoutine drops failing replicas every interval until ctx is
// cancelled
func (cm *ConnectionManager) StartHealthCheckRoutine(ctx context.Context, interval time.Duration) {
	if interval == 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		defer observability.RecoverPanic(cm.log(), "replica monitor")

		for {
			select {
			case <-ticker.C:
				checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				removed := cm.RemoveUnhealthyReplicas(checkCtx)
				cancel()
				if removed > 0 {
					cm.log().Warnf("removed %d unhealthy replicas", removed)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// ParseReplicaURLs splits a comma separated replica list, dropping blanks
func ParseReplicaURLs(replicaURLsStr string) []string {
	if replicaURLsStr == "" {
		return nil
	}

	urls := strings.Split(replicaURLsStr, ",")
	result := make([]string, 0, len(urls))
	for _, url := range urls {
		if trimmed := strings.TrimSpace(url); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func (cm *ConnectionManager) log() *observability.Logger {
	if cm.logger == nil {
		return observability.NewLogger(observability.InfoLevel, os.Stderr)
	}
	return cm.logger
}

var (
	poolOpenDesc = prometheus.NewDesc(
		"lineage_db_connections_open", "Open record store connections", []string{"pool"}, nil)
	poolInUseDesc = prometheus.NewDesc(
		"lineage_db_connections_in_use", "Record store connections serving a query", []string{"pool"}, nil)
	poolIdleDesc = prometheus.NewDesc(
		"lineage_db_connections_idle", "Idle record store connections", []string{"pool"}, nil)
	poolWaitsDesc = prometheus.NewDesc(
		"lineage_db_connection_waits_total", "Queries that waited for a free connection", []string{"pool"}, nil)
)

// Collector exports Stats as Prometheus metrics labelled by pool
func (cm *ConnectionManager) Collector() prometheus.Collector {
	return poolCollector{cm: cm}
}

type poolCollector struct {
	cm *ConnectionManager
}

func (c poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- poolOpenDesc
	ch <- poolInUseDesc
	ch <- poolIdleDesc
	ch <- poolWaitsDesc
}

func (c poolCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.cm.Stats()
	collectPool(ch, "primary", stats.Primary)
	for i, s := range stats.Replicas {
		collectPool(ch, fmt.Sprintf("replica-%d", i), s)
	}
}

func collectPool(ch chan<- prometheus.Metric, pool string, s sql.DBStats) {
	ch <- prometheus.MustNewConstMetric(poolOpenDesc, prometheus.GaugeValue, float64(s.OpenConnections), pool)
	ch <- prometheus.MustNewConstMetric(poolInUseDesc, prometheus.GaugeValue, float64(s.InUse), pool)
	ch <- prometheus.MustNewConstMetric(poolIdleDesc, prometheus.GaugeValue, float64(s.Idle), pool)
	ch <- prometheus.MustNewConstMetric(poolWaitsDesc, prometheus.CounterValue, float64(s.WaitCount), pool)
}
