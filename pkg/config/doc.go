// Package config loads the lineage server configuration from LINEAGE_*
// environment variables.
//
// Server settings:
//
//	LINEAGE_HOST="0.0.0.0"
//	LINEAGE_PORT="8080"
//	LINEAGE_HEALTH_PORT="9090"
//	LINEAGE_REQUEST_TIMEOUT="30s"
//	LINEAGE_CORS_ORIGINS="https://workbench.example.com"
//
// Storage settings:
//
//	LINEAGE_STORAGE_TYPE="sqlite"  # memory, filesystem, sqlite, postgres
//	LINEAGE_FIXTURE_PATH="/etc/lineage/records.yaml"
//	LINEAGE_FILESYSTEM_ROOT="/var/lineage/records"
//	LINEAGE_SQLITE_PATH="/var/lineage/lineage.db"
//	LINEAGE_POSTGRES_URL="postgres://localhost/arvados"
//	LINEAGE_POSTGRES_REPLICA_URLS="postgres://replica1/arvados,postgres://replica2/arvados"
//
// Cache settings (the record cache is off unless enabled):
//
//	LINEAGE_CACHE_ENABLED="true"
//	LINEAGE_L1_CACHE_SIZE="10000"
//	LINEAGE_REDIS_URL="localhost:6379"
//
// Access settings:
//
//	LINEAGE_TOKENS_FILE="/etc/lineage/tokens.yaml"
//	LINEAGE_ANONYMOUS_READERS="zzzzz-j7d0g-anonymouspublic"
//	LINEAGE_RATE_LIMIT_REQUESTS="120"
//	LINEAGE_RATE_LIMIT_WINDOW="1m"
//
// Observability settings:
//
//	LINEAGE_LOG_LEVEL="info"  # debug, info, warn, error
//	LINEAGE_METRICS_ENABLED="true"
//	LINEAGE_OTEL_ENABLED="true"
//	LINEAGE_OTEL_ENDPOINT="otel-collector:4317"
//
// Load and validate:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
package config
