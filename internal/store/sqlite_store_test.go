package store

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ag3dash/server/internal/data/vobs"
)

func testTables() ([]vobs.SampleSet, []vobs.SampleRecord) {
	sets := []vobs.SampleSet{
		{SampleSet: "AG1000G-KE", SampleCount: 2, Region: "Kenya", Release: "v3"},
		{SampleSet: "AG1000G-AO", SampleCount: 1, Region: "Angola", Release: "v3"},
	}
	recs := []vobs.SampleRecord{
		{SampleID: "k1", SampleSet: "AG1000G-KE", Country: "Kenya", Admin1Name: "Kilifi", Location: "Kilifi", Taxon: "gambiae", Year: 2012, Latitude: -3.5, Longitude: 39.9},
		{SampleID: "a1", SampleSet: "AG1000G-AO", Country: "Angola", Location: "Luanda", Taxon: "coluzzii", Year: 2009, Latitude: -8.8, Longitude: 13.3},
		{SampleID: "k2", SampleSet: "AG1000G-KE", Country: "Kenya", Taxon: "arabiensis", Year: 0, Latitude: math.NaN(), Longitude: math.NaN()},
	}
	return sets, recs
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := NewStore(filepath.Join(t.TempDir(), "snap", "ag3.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestStore_RoundTripKeepsOrderAndNaN(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	sets, recs := testTables()

	_, ok, err := st.SavedAt(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, st.SaveSnapshot(ctx, sets, recs))

	_, ok, err = st.SavedAt(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	gotSets, err := st.SampleSets(ctx)
	require.NoError(t, err)
	assert.Equal(t, sets, gotSets)

	gotRecs, err := st.Samples(ctx, nil)
	require.NoError(t, err)
	require.Len(t, gotRecs, 3)
	assert.Equal(t, "k1", gotRecs[0].SampleID)
	assert.Equal(t, "a1", gotRecs[1].SampleID)
	assert.False(t, gotRecs[2].HasCoordinates())

	ke, err := st.Samples(ctx, []string{"AG1000G-KE"})
	require.NoError(t, err)
	require.Len(t, ke, 2)
	assert.Equal(t, "k2", ke[1].SampleID)
}

func TestStore_SaveReplaces(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	sets, recs := testTables()

	require.NoError(t, st.SaveSnapshot(ctx, sets, recs))
	require.NoError(t, st.SaveSnapshot(ctx, sets[:1], recs[:1]))

	gotSets, err := st.SampleSets(ctx)
	require.NoError(t, err)
	assert.Len(t, gotSets, 1)
	gotRecs, err := st.Samples(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, gotRecs, 1)
}

func TestSnapshotAccessor_LoadsUpstreamOnce(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	sets, recs := testTables()
	upstream := vobs.NewStatic(sets, recs)

	a := NewSnapshotAccessor(st, upstream)

	gotSets, err := a.SampleSets(ctx)
	require.NoError(t, err)
	assert.Len(t, gotSets, 2)

	_, err = a.SampleMetadata(ctx, nil)
	require.NoError(t, err)

	rows, err := a.CountSamples(ctx, []string{"AG1000G-KE"})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	assert.Equal(t, int64(1), upstream.SampleSetCalls())
	assert.Equal(t, int64(1), upstream.MetadataCalls())

	// A second accessor over the same file must not touch upstream.
	other := vobs.NewStatic(nil, nil)
	b := NewSnapshotAccessor(st, other)
	gotSets, err = b.SampleSets(ctx)
	require.NoError(t, err)
	assert.Len(t, gotSets, 2)
	assert.Equal(t, int64(0), other.SampleSetCalls())
}

func TestSnapshotAccessor_UpstreamErrorNotCached(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	sets, recs := testTables()
	upstream := vobs.NewStatic(sets, recs)
	upstream.SetErr(errors.New("network down"))

	a := NewSnapshotAccessor(st, upstream)
	_, err := a.SampleSets(ctx)
	require.Error(t, err)

	upstream.SetErr(nil)
	got, err := a.SampleSets(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSnapshotAccessor_Refresh(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	sets, recs := testTables()
	upstream := vobs.NewStatic(sets, recs)

	a := NewSnapshotAccessor(st, upstream)
	nSets, nSamples, err := a.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, nSets)
	assert.Equal(t, 3, nSamples)
	assert.Contains(t, a.Describe(), "snapshot")
}

func TestSnapshotAccessor_RefreshReportsReadBackError(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	// Leave a committed row that cannot be scanned back into a SampleSet.
	_, err := st.db.Exec(`CREATE TRIGGER unreadable_count AFTER INSERT ON sample_sets
		BEGIN UPDATE sample_sets SET sample_count = 'many' WHERE sample_set = NEW.sample_set; END`)
	require.NoError(t, err)

	sets, recs := testTables()
	a := NewSnapshotAccessor(st, vobs.NewStatic(sets, recs))
	nSets, nSamples, err := a.Refresh(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read back sample sets")
	assert.Zero(t, nSets)
	assert.Zero(t, nSamples)

	_, ok, err := st.SavedAt(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "the snapshot itself was committed")
}
