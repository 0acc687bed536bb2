package provenance

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/lineage/pkg/locator"
	"github.com/platinummonkey/lineage/pkg/storage"
	"github.com/platinummonkey/lineage/pkg/visibility"
)

func TestCollapse(t *testing.T) {
	pdh := pdhOf("content")

	tests := []struct {
		name        string
		recs        []storage.Record
		wantFound   bool
		wantSummary *Summary
		wantUUID    string
	}{
		{name: "no matches"},
		{
			name:      "single match",
			recs:      []storage.Record{collectionRecord(1, pdh, "")},
			wantFound: true,
			wantUUID:  objectID(locator.TypeCollection, 1),
		},
		{
			name:        "first named match",
			recs:        []storage.Record{collectionRecord(1, pdh, ""), collectionRecord(2, pdh, "b"), collectionRecord(3, pdh, "c")},
			wantFound:   true,
			wantSummary: &Summary{PortableDataHash: pdh, Name: "b + 2 more"},
		},
		{
			name:        "no names",
			recs:        []storage.Record{collectionRecord(1, pdh, ""), collectionRecord(2, pdh, "")},
			wantFound:   true,
			wantSummary: &Summary{PortableDataHash: pdh, Name: pdh},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, found := Collapse(pdh, tt.recs)
			assert.Equal(t, tt.wantFound, found)
			assert.Equal(t, tt.wantSummary, node.Summary)
			if tt.wantUUID != "" {
				assert.Equal(t, tt.wantUUID, node.Record.UUID())
			}
		})
	}
}

func TestResolver_ResolveObject(t *testing.T) {
	job := jobRecord(1, storage.Record{storage.FieldScript: "align"})
	r := NewResolver(newStore(t, job))
	ctx := context.Background()

	rec, found, err := r.ResolveObject(ctx, ownerFilter(), job.UUID())
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "align", rec.String(storage.FieldScript))

	_, found, err = r.ResolveObject(ctx, visibility.ReadableBy(stranger), job.UUID())
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = r.ResolveObject(ctx, ownerFilter(), objectID(locator.TypeJob, 99))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestResolver_ErrorsAreWrapped(t *testing.T) {
	store := &failingStore{MemoryStorage: newStore(t), failObjects: true, failJobs: true, failLinks: true}
	r := NewResolver(store)
	ctx := context.Background()
	id := objectID(locator.TypeJob, 1)

	_, _, err := r.ResolveObject(ctx, ownerFilter(), id)
	assert.ErrorIs(t, err, errBoom)
	assert.Contains(t, err.Error(), id)

	_, err = r.Jobs(ctx, ownerFilter(), storage.OutputEquals(pdhOf("x")))
	assert.ErrorIs(t, err, errBoom)

	_, err = r.Links(ctx, ownerFilter(), storage.LinkHead, id)
	assert.ErrorIs(t, err, errBoom)
}

func TestResolver_JobsDeduplicates(t *testing.T) {
	out := pdhOf("out")
	r := NewResolver(newStore(t,
		jobRecord(1, storage.Record{storage.FieldOutput: out}),
		jobRecord(2, storage.Record{storage.FieldOutput: out, storage.FieldLog: out}),
		jobRecord(3, storage.Record{storage.FieldLog: out}),
	))

	ids, err := r.Jobs(context.Background(), ownerFilter(), storage.OutputEquals(out), storage.LogEquals(out))
	require.NoError(t, err)
	assert.Equal(t, []string{
		objectID(locator.TypeJob, 1),
		objectID(locator.TypeJob, 2),
		objectID(locator.TypeJob, 3),
	}, ids)
}

func TestResolver_LocatorNode(t *testing.T) {
	pdh := pdhOf("content")
	r := NewResolver(newStore(t,
		collectionRecord(1, pdh, "one"),
		ownedBy(collectionRecord(2, pdh, "hidden"), stranger),
	))

	node, found, err := r.LocatorNode(context.Background(), ownerFilter(), pdh)
	require.NoError(t, err)
	require.True(t, found)
	assert.False(t, node.IsSummary(), "hidden matches do not count")
	assert.Equal(t, "one", node.DisplayName())

	node, found, err = r.LocatorNode(context.Background(), visibility.AllowAll(), pdh)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "one + 1 more", node.DisplayName())

	assert.Equal(t, locator.KindCollection, r.Classify(objectID(locator.TypeCollection, 1)))
}
