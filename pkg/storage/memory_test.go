package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/lineage/pkg/visibility"
)

const (
	testOwner = "zzzzz-tpzed-000000000000001"
	testOther = "zzzzz-tpzed-000000000000002"
	testPDH   = "acbd18db4cc2f85cedef654fccc4a4d8+3"
	testPDH2  = "37b51d194a7513e45b56f6524f2d51f2+3"
)

func collection(uuid, owner, pdh string) Record {
	return Record{
		FieldUUID:             uuid,
		FieldOwnerUUID:        owner,
		FieldPortableDataHash: pdh,
	}
}

func seedMemory(t *testing.T, recs ...Record) *MemoryStorage {
	t.Helper()
	s := NewMemoryStorage()
	for _, rec := range recs {
		require.NoError(t, s.Put(context.Background(), rec))
	}
	return s
}

func TestMemoryStorage_PutValidation(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	tests := []struct {
		name    string
		rec     Record
		wantErr bool
	}{
		{"valid collection", collection("zzzzz-4zz18-000000000000001", testOwner, testPDH), false},
		{"valid user", Record{FieldUUID: testOwner}, false},
		{"bad object id", Record{FieldUUID: "not-an-id"}, true},
		{"unknown type code", Record{FieldUUID: "zzzzz-abcde-000000000000001"}, true},
		{"collection without pdh", Record{FieldUUID: "zzzzz-4zz18-000000000000002"}, true},
		{"collection with bad pdh", collection("zzzzz-4zz18-000000000000003", testOwner, "abc+3"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Put(ctx, tt.rec)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
	assert.Equal(t, 2, s.Len())
}

func TestMemoryStorage_PutCopiesRecord(t *testing.T) {
	rec := collection("zzzzz-4zz18-000000000000001", testOwner, testPDH)
	s := seedMemory(t, rec)

	rec[FieldName] = "mutated"
	got, err := s.GetObject(context.Background(), visibility.AllowAll(), rec.UUID())
	require.NoError(t, err)
	assert.Empty(t, got.Name())

	got[FieldName] = "mutated again"
	again, err := s.GetObject(context.Background(), visibility.AllowAll(), rec.UUID())
	require.NoError(t, err)
	assert.Empty(t, again.Name())
}

func TestMemoryStorage_GetObjectVisibility(t *testing.T) {
	ctx := context.Background()
	trashed := collection("zzzzz-4zz18-000000000000002", testOwner, testPDH)
	trashed[FieldIsTrashed] = true

	s := seedMemory(t,
		collection("zzzzz-4zz18-000000000000001", testOwner, testPDH),
		trashed,
		Record{FieldUUID: testOwner, FieldOwnerUUID: "zzzzz-tpzed-000000000000000"},
	)

	_, err := s.GetObject(ctx, visibility.ReadableBy(testOwner), "zzzzz-4zz18-000000000000001")
	assert.NoError(t, err)

	_, err = s.GetObject(ctx, visibility.ReadableBy(testOther), "zzzzz-4zz18-000000000000001")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetObject(ctx, visibility.Filter{}, "zzzzz-4zz18-000000000000001")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetObject(ctx, visibility.AllowAll(), "zzzzz-4zz18-000000000000002")
	assert.ErrorIs(t, err, ErrNotFound, "trashed records are hidden")

	_, err = s.GetObject(ctx, visibility.AllowAll(), "zzzzz-4zz18-000000000000099")
	assert.ErrorIs(t, err, ErrNotFound)

	// users are readable by themselves
	_, err = s.GetObject(ctx, visibility.ReadableBy(testOwner), testOwner)
	assert.NoError(t, err)
}

func TestMemoryStorage_CollectionsByLocatorOrdering(t *testing.T) {
	later := collection("zzzzz-4zz18-00000000000000a", testOwner, testPDH)
	later[FieldTrashAt] = time.Date(2031, 1, 1, 0, 0, 0, 0, time.UTC)
	sooner := collection("zzzzz-4zz18-00000000000000b", testOwner, testPDH)
	sooner[FieldTrashAt] = "2030-01-01T00:00:00Z"

	s := seedMemory(t,
		sooner,
		later,
		collection("zzzzz-4zz18-00000000000000d", testOwner, testPDH),
		collection("zzzzz-4zz18-00000000000000c", testOwner, testPDH),
		collection("zzzzz-4zz18-00000000000000e", testOther, testPDH),
		collection("zzzzz-4zz18-00000000000000f", testOwner, testPDH2),
	)

	got, err := s.CollectionsByLocator(context.Background(), visibility.ReadableBy(testOwner), testPDH)
	require.NoError(t, err)

	var uuids []string
	for _, rec := range got {
		uuids = append(uuids, rec.UUID())
	}
	assert.Equal(t, []string{
		"zzzzz-4zz18-00000000000000c",
		"zzzzz-4zz18-00000000000000d",
		"zzzzz-4zz18-00000000000000a",
		"zzzzz-4zz18-00000000000000b",
	}, uuids)

	none, err := s.CollectionsByLocator(context.Background(), visibility.AllowAll(), "d41d8cd98f00b204e9800998ecf8427e+1")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryStorage_FindJobs(t *testing.T) {
	ctx := context.Background()
	s := seedMemory(t,
		Record{
			FieldUUID:             "zzzzz-8i9sb-000000000000002",
			FieldOwnerUUID:        testOwner,
			FieldOutput:           testPDH2,
			FieldScriptParameters: map[string]any{"input": testPDH},
		},
		Record{
			FieldUUID:             "zzzzz-8i9sb-000000000000001",
			FieldOwnerUUID:        testOwner,
			FieldOutput:           testPDH2,
			FieldScriptParameters: map[string]any{"input": testPDH + "/file.txt"},
		},
		Record{
			FieldUUID:      "zzzzz-8i9sb-000000000000003",
			FieldOwnerUUID: testOther,
			FieldOutput:    testPDH2,
		},
	)

	byOutput, err := s.FindJobs(ctx, visibility.ReadableBy(testOwner), OutputEquals(testPDH2))
	require.NoError(t, err)
	require.Len(t, byOutput, 2)
	assert.Equal(t, "zzzzz-8i9sb-000000000000001", byOutput[0].UUID())
	assert.Equal(t, "zzzzz-8i9sb-000000000000002", byOutput[1].UUID())

	byParams, err := s.FindJobs(ctx, visibility.AllowAll(), ScriptParametersContain(testPDH))
	require.NoError(t, err)
	assert.Len(t, byParams, 2)

	all, err := s.FindJobs(ctx, visibility.AllowAll(), OutputEquals(testPDH2))
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = s.FindJobs(ctx, visibility.AllowAll(), JobQuery{Field: "script", Value: "x"})
	assert.Error(t, err)
}

func TestMemoryStorage_ProvenanceLinks(t *testing.T) {
	ctx := context.Background()
	tail := "zzzzz-4zz18-000000000000001"
	head := "zzzzz-4zz18-000000000000002"

	s := seedMemory(t,
		Link{UUID: "zzzzz-o0j2j-000000000000002", OwnerUUID: testOwner, LinkClass: LinkClassProvenance, TailUUID: tail, HeadUUID: head}.Record(),
		Link{UUID: "zzzzz-o0j2j-000000000000001", OwnerUUID: testOwner, LinkClass: LinkClassProvenance, TailUUID: tail, HeadUUID: "zzzzz-8i9sb-000000000000001"}.Record(),
		Link{UUID: "zzzzz-o0j2j-000000000000003", OwnerUUID: testOwner, LinkClass: "permission", TailUUID: tail, HeadUUID: head}.Record(),
		Link{UUID: "zzzzz-o0j2j-000000000000004", OwnerUUID: testOther, LinkClass: LinkClassProvenance, TailUUID: tail, HeadUUID: head}.Record(),
	)

	fromTail, err := s.ProvenanceLinks(ctx, visibility.ReadableBy(testOwner), LinkTail, tail)
	require.NoError(t, err)
	require.Len(t, fromTail, 2)
	assert.Equal(t, "zzzzz-o0j2j-000000000000001", fromTail[0].UUID)
	assert.Equal(t, "zzzzz-o0j2j-000000000000002", fromTail[1].UUID)

	toHead, err := s.ProvenanceLinks(ctx, visibility.ReadableBy(testOwner), LinkHead, head)
	require.NoError(t, err)
	require.Len(t, toHead, 1)
	assert.Equal(t, tail, toHead[0].TailUUID)

	adminHead, err := s.ProvenanceLinks(ctx, visibility.AllowAll(), LinkHead, head)
	require.NoError(t, err)
	assert.Len(t, adminHead, 2)
}

func TestMemoryStorage_CancelledContext(t *testing.T) {
	s := seedMemory(t, collection("zzzzz-4zz18-000000000000001", testOwner, testPDH))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.GetObject(ctx, visibility.AllowAll(), "zzzzz-4zz18-000000000000001")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = s.CollectionsByLocator(ctx, visibility.AllowAll(), testPDH)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = s.FindJobs(ctx, visibility.AllowAll(), OutputEquals(testPDH))
	assert.ErrorIs(t, err, context.Canceled)
	_, err = s.ProvenanceLinks(ctx, visibility.AllowAll(), LinkHead, testOwner)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, s.HealthCheck(ctx), context.Canceled)
}
