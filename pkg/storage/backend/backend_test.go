package backend

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/lineage/pkg/observability"
	"github.com/platinummonkey/lineage/pkg/provenance"
	"github.com/platinummonkey/lineage/pkg/storage"
	"github.com/platinummonkey/lineage/pkg/visibility"
)

const (
	fixture  = "../testdata/pipeline.yaml"
	jobUUID  = "zzzzz-8i9sb-000000000000001"
	readsPDH = "acbd18db4cc2f85cedef654fccc4a4d8+3"
	owner    = "zzzzz-tpzed-000000000000001"
	stranger = "zzzzz-tpzed-000000000000002"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, &bytes.Buffer{})
}

func testConfig(typ string) storage.Config {
	cfg := storage.DefaultConfig()
	cfg.Type = typ
	cfg.FixturePath = fixture
	return cfg
}

func TestOpen_Memory(t *testing.T) {
	ctx := context.Background()
	b, err := Open(ctx, testConfig("memory"), testLogger(), nil)
	require.NoError(t, err)
	defer b.Close()

	_, ok := b.Storage.(*storage.MemoryStorage)
	assert.True(t, ok, "the record cache is off by default")
	assert.NotNil(t, b.Writer)
	assert.Empty(t, b.Collectors(), "no pools outside postgres")

	rec, err := b.GetObject(ctx, visibility.AllowAll(), jobUUID)
	require.NoError(t, err)
	assert.Equal(t, "align", rec.String(storage.FieldScript))
}

func TestOpen_MemoryWithCache(t *testing.T) {
	cfg := testConfig("")
	cfg.CacheEnabled = true

	b, err := Open(context.Background(), cfg, testLogger(), nil)
	require.NoError(t, err)
	defer b.Close()

	cached, ok := b.Storage.(*storage.CachedStorage)
	require.True(t, ok)
	assert.Same(t, cached, b.Writer)
}

func TestOpen_DefaultSeesOwnershipChanges(t *testing.T) {
	ctx := context.Background()
	b, err := Open(ctx, testConfig("memory"), testLogger(), nil)
	require.NoError(t, err)
	defer b.Close()

	tracker := provenance.NewTracker(b)
	readers := visibility.ReadableBy(owner)
	root := provenance.Entity{ID: jobUUID}

	visited, err := tracker.Ancestors(ctx, readers, root)
	require.NoError(t, err)
	require.True(t, visited.Has(jobUUID))

	reowned(t, b, jobUUID, stranger)

	visited, err = tracker.Ancestors(ctx, readers, root)
	require.NoError(t, err)
	assert.Empty(t, visited)
}

func TestOpen_CachedWritesInvalidate(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	cfg := testConfig("memory")
	cfg.CacheEnabled = true
	cfg.RedisURL = "redis://" + mr.Addr()
	b, err := Open(ctx, cfg, testLogger(), nil)
	require.NoError(t, err)
	defer b.Close()

	tracker := provenance.NewTracker(b)
	readers := visibility.ReadableBy(owner)
	root := provenance.Entity{ID: jobUUID}

	visited, err := tracker.Ancestors(ctx, readers, root)
	require.NoError(t, err)
	require.True(t, visited.Has(jobUUID))
	require.True(t, mr.Exists("record:"+jobUUID))

	reowned(t, b, jobUUID, stranger)
	assert.False(t, mr.Exists("record:"+jobUUID))

	visited, err = tracker.Ancestors(ctx, readers, root)
	require.NoError(t, err)
	assert.Empty(t, visited)
}

// reowned rewrites a record through the backend's writer with a new owner
func reowned(t *testing.T, b *Backend, uuid, newOwner string) {
	t.Helper()
	ctx := context.Background()
	rec, err := b.GetObject(ctx, visibility.AllowAll(), uuid)
	require.NoError(t, err)
	rec = rec.Clone()
	rec[storage.FieldOwnerUUID] = newOwner
	require.NoError(t, b.Writer.Put(ctx, rec))
}

func TestOpen_MissingFixture(t *testing.T) {
	cfg := testConfig("memory")
	cfg.FixturePath = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := Open(context.Background(), cfg, testLogger(), nil)
	assert.Error(t, err)
}

func TestOpen_UnknownType(t *testing.T) {
	_, err := Open(context.Background(), testConfig("cassandra"), testLogger(), nil)
	assert.EqualError(t, err, `unknown storage type "cassandra"`)
}

func TestOpen_SQLiteCountsQueries(t *testing.T) {
	ctx := context.Background()
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	cfg := testConfig("sqlite")
	cfg.SQLitePath = ":memory:"
	cfg.CacheEnabled = true
	b, err := Open(ctx, cfg, testLogger(), metrics)
	require.NoError(t, err)
	defer b.Close()

	recs, err := b.CollectionsByLocator(ctx, visibility.AllowAll(), readsPDH)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	// Second lookup is served by the L1 cache
	for i := 0; i < 2; i++ {
		_, err = b.GetObject(ctx, visibility.AllowAll(), jobUUID)
		require.NoError(t, err)
	}

	assert.Equal(t, 5.0, testutil.ToFloat64(metrics.StoreQueriesTotal.WithLabelValues("put", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StoreQueriesTotal.WithLabelValues("get_object", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheHitsTotal.WithLabelValues("l1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheMissesTotal.WithLabelValues("l1")))
}

func TestOpen_FilesystemReportsReloads(t *testing.T) {
	dir := t.TempDir()
	data, err := os.ReadFile(fixture)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pipeline.yaml"), data, 0644))

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	cfg := testConfig("filesystem")
	cfg.FilesystemRoot = dir

	b, err := Open(context.Background(), cfg, testLogger(), metrics)
	require.NoError(t, err)
	defer b.Close()

	require.NotNil(t, b.FS)
	assert.Nil(t, b.Writer)
	assert.Equal(t, 5, b.FS.Len())

	b.FS.OnReload(5, nil)
	b.FS.OnReload(5, errors.New("bad yaml"))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FixtureReloadsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FixtureReloadsTotal.WithLabelValues("error")))

	ctx, cancel := context.WithCancel(context.Background())
	b.StartBackground(ctx, testLogger())
	cancel()
}

func TestOpen_RedisSecondLevel(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	cfg := testConfig("memory")
	cfg.CacheEnabled = true
	cfg.RedisURL = "redis://" + mr.Addr()
	b, err := Open(ctx, cfg, testLogger(), nil)
	require.NoError(t, err)
	defer b.Close()

	require.NotNil(t, b.Redis)
	_, err = b.GetObject(ctx, visibility.AllowAll(), jobUUID)
	require.NoError(t, err)
	assert.True(t, mr.Exists("record:"+jobUUID))

	deps := b.Dependencies()
	require.Len(t, deps, 2)
	assert.Equal(t, "redis", deps[1].Name)
	assert.True(t, deps[1].Optional)
	for _, dep := range deps {
		assert.NoError(t, dep.Probe(ctx))
	}
}

func TestOpen_RedisUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := testConfig("memory")
	cfg.CacheEnabled = true
	cfg.RedisURL = "redis://" + addr
	b, err := Open(context.Background(), cfg, testLogger(), nil)
	require.NoError(t, err)
	defer b.Close()

	assert.Nil(t, b.Redis)
	assert.Len(t, b.Dependencies(), 1)
}

func TestOpen_FilesystemReloadPurgesCache(t *testing.T) {
	dir := t.TempDir()
	data, err := os.ReadFile(fixture)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pipeline.yaml"), data, 0644))

	ctx := context.Background()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	cfg := testConfig("filesystem")
	cfg.FilesystemRoot = dir
	cfg.CacheEnabled = true

	b, err := Open(ctx, cfg, testLogger(), metrics)
	require.NoError(t, err)
	defer b.Close()

	for i := 0; i < 2; i++ {
		_, err = b.GetObject(ctx, visibility.AllowAll(), jobUUID)
		require.NoError(t, err)
	}
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheMissesTotal.WithLabelValues("l1")))

	b.FS.OnReload(5, nil)
	_, err = b.GetObject(ctx, visibility.AllowAll(), jobUUID)
	require.NoError(t, err)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.CacheMissesTotal.WithLabelValues("l1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FixtureReloadsTotal.WithLabelValues("success")))
}
