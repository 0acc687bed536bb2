package sqlstore

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/lineage/pkg/storage"
	"github.com/platinummonkey/lineage/pkg/visibility"
)

// testDialect uses $n placeholders and IN lists so queries are easy to read
type testDialect struct{}

func (testDialect) Name() string                 { return "test" }
func (testDialect) Rebind(query string) string   { return RebindDollar(query) }
func (testDialect) ContainsText(c string) string { return "position(? in " + c + ") > 0" }
func (testDialect) Schema() string               { return "CREATE TABLE t (x int)" }
func (testDialect) AnyOf(column string, values []string) (string, []any) {
	return InList(column, values)
}

type errorObserver struct {
	calls map[string][]error
}

func (o *errorObserver) ObserveQuery(operation string, err error) {
	o.calls[operation] = append(o.calls[operation], err)
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(SingleDB{DB: db}, testDialect{}), mock
}

func TestRebindDollar(t *testing.T) {
	assert.Equal(t, "a = $1 AND b IN ($2, $3)", RebindDollar("a = ? AND b IN (?, ?)"))
	assert.Equal(t, "SELECT 1", RebindDollar("SELECT 1"))
}

func TestInList(t *testing.T) {
	clause, args := InList("uuid", []string{"a"})
	assert.Equal(t, "uuid IN (?)", clause)
	assert.Equal(t, []any{"a"}, args)

	clause, args = InList("uuid", nil)
	assert.Equal(t, "1 = 0", clause)
	assert.Empty(t, args)
}

func TestTableFor(t *testing.T) {
	tests := []struct {
		uuid  string
		table string
		ok    bool
	}{
		{"zzzzz-4zz18-000000000000001", "collections", true},
		{"zzzzz-8i9sb-000000000000001", "jobs", true},
		{"zzzzz-o0j2j-000000000000001", "links", true},
		{"zzzzz-tpzed-000000000000001", "objects", true},
		{"zzzzz-xvhdp-000000000000001", "objects", true},
		{"zzzzz-abcde-000000000000001", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.uuid, func(t *testing.T) {
			tbl, ok := tableFor(tt.uuid)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.table, tbl.name)
		})
	}
}

func TestStore_GetObjectQuery(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT uuid, owner_uuid, link_class, name, tail_uuid, head_uuid, properties, created_at FROM links "+
		"WHERE uuid = $1 AND (owner_uuid IN ($2, $3) OR uuid IN ($4, $5))").
		WithArgs("zzzzz-o0j2j-000000000000001", "zzzzz-j7d0g-000000000000001", "zzzzz-tpzed-000000000000001",
			"zzzzz-j7d0g-000000000000001", "zzzzz-tpzed-000000000000001").
		WillReturnRows(sqlmock.NewRows([]string{"uuid", "owner_uuid", "link_class", "name", "tail_uuid", "head_uuid", "properties", "created_at"}).
			AddRow("zzzzz-o0j2j-000000000000001", "zzzzz-tpzed-000000000000001", "provenance", nil,
				"zzzzz-4zz18-000000000000001", "zzzzz-4zz18-000000000000002", `{"note":"x"}`, created))

	f := visibility.ReadableBy("zzzzz-tpzed-000000000000001", "zzzzz-j7d0g-000000000000001")
	rec, err := store.GetObject(context.Background(), f, "zzzzz-o0j2j-000000000000001")
	require.NoError(t, err)

	assert.Equal(t, "provenance", rec.String(storage.FieldLinkClass))
	assert.Equal(t, map[string]any{"note": "x"}, rec[storage.FieldProperties])
	_, hasName := rec[storage.FieldName]
	assert.False(t, hasName)
	ts, ok := rec.Time(storage.FieldCreatedAt)
	require.True(t, ok)
	assert.True(t, created.Equal(ts))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetObjectNoRows(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT uuid, owner_uuid, portable_data_hash, name, description, manifest_text, properties, trash_at, is_trashed, created_at, modified_at FROM collections " +
		"WHERE uuid = $1 AND NOT is_trashed").
		WithArgs("zzzzz-4zz18-000000000000001").
		WillReturnRows(sqlmock.NewRows([]string{"uuid"}))

	_, err := store.GetObject(context.Background(), visibility.AllowAll(), "zzzzz-4zz18-000000000000001")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_EmptyFilterSkipsQuery(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()
	empty := visibility.Filter{Readers: []string{""}}

	_, err := store.GetObject(ctx, empty, "zzzzz-4zz18-000000000000001")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	recs, err := store.CollectionsByLocator(ctx, empty, "acbd18db4cc2f85cedef654fccc4a4d8+3")
	require.NoError(t, err)
	assert.Empty(t, recs)

	jobs, err := store.FindJobs(ctx, empty, storage.OutputEquals("acbd18db4cc2f85cedef654fccc4a4d8+3"))
	require.NoError(t, err)
	assert.Empty(t, jobs)

	links, err := store.ProvenanceLinks(ctx, empty, storage.LinkHead, "zzzzz-4zz18-000000000000001")
	require.NoError(t, err)
	assert.Empty(t, links)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_FindJobsContains(t *testing.T) {
	store, mock := newMockStore(t)
	obs := &errorObserver{calls: map[string][]error{}}
	store.SetObserver(obs)

	mock.ExpectQuery("SELECT uuid, owner_uuid, script, script_version, repository, script_parameters, output, log, docker_image_locator, state, created_at, started_at, finished_at, attributes FROM jobs " +
		"WHERE position($1 in script_parameters) > 0 ORDER BY uuid").
		WithArgs("acbd18db4cc2f85cedef654fccc4a4d8+3").
		WillReturnError(errors.New("connection reset"))

	_, err := store.FindJobs(context.Background(), visibility.AllowAll(), storage.ScriptParametersContain("acbd18db4cc2f85cedef654fccc4a4d8+3"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "find_jobs")
	assert.Contains(t, err.Error(), "connection reset")
	require.Len(t, obs.calls["find_jobs"], 1)
	assert.Error(t, obs.calls["find_jobs"][0])

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_BadJSONColumn(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT uuid, owner_uuid, kind, attributes, created_at FROM objects WHERE uuid = $1").
		WithArgs("zzzzz-tpzed-000000000000001").
		WillReturnRows(sqlmock.NewRows([]string{"uuid", "owner_uuid", "kind", "attributes", "created_at"}).
			AddRow("zzzzz-tpzed-000000000000001", nil, "user", "{not json", nil))

	_, err := store.GetObject(context.Background(), visibility.AllowAll(), "zzzzz-tpzed-000000000000001")
	require.Error(t, err)
	assert.NotErrorIs(t, err, storage.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_PutObject(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := New(SingleDB{DB: db}, testDialect{})

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO objects (uuid, owner_uuid, kind, attributes, created_at) VALUES ($1, $2, $3, $4, $5) "+
		"ON CONFLICT (uuid) DO UPDATE SET owner_uuid = excluded.owner_uuid")).
		WithArgs("zzzzz-tpzed-000000000000001", "zzzzz-tpzed-000000000000000", "user", `{"full_name":"Example User"}`, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = store.Put(context.Background(), storage.Record{
		storage.FieldUUID:      "zzzzz-tpzed-000000000000001",
		storage.FieldOwnerUUID: "zzzzz-tpzed-000000000000000",
		storage.FieldKind:      "arvados#user",
		"full_name":            "Example User",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_PutRejectsInvalid(t *testing.T) {
	store, mock := newMockStore(t)

	err := store.Put(context.Background(), storage.Record{storage.FieldUUID: "zzzzz-4zz18-000000000000001"})
	assert.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Migrate(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("CREATE TABLE t (x int)").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
