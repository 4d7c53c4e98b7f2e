package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ad-routing-service/internal/storage"
	"ad-routing-service/internal/target"
)

func newTestEngine(t *testing.T) (*Engine, *target.Repository, *storage.MemoryStore) {
	t.Helper()
	st := storage.NewMemoryStore()
	repo := target.NewRepository(st, 48*time.Hour)
	return New(st, repo), repo, st
}

func seedTarget(t *testing.T, repo *target.Repository, id string, value float64, maxPerDay int) {
	t.Helper()
	_, err := repo.Create(context.Background(), &target.Target{
		ID:               id,
		URL:              "http://example.com/" + id,
		Value:            value,
		MaxAcceptsPerDay: maxPerDay,
		Accept: target.Accept{
			"geoState": {In: []string{"ca", "ny"}},
			"hour":     {In: []string{"13", "14", "15"}},
		},
	})
	require.NoError(t, err)
}

func TestEngine_SelectsByDescendingValue(t *testing.T) {
	ctx := context.Background()
	eng, repo, _ := newTestEngine(t)

	seedTarget(t, repo, "A", 0.50, 2)
	seedTarget(t, repo, "B", 0.60, 2)
	seedTarget(t, repo, "C", 0.30, 2)

	q := Query{GeoState: "ca", Hour: 14}

	// B drains first, then A, then C, then nothing
	for _, wantID := range []string{"B", "B", "A", "A", "C", "C"} {
		got, err := eng.Select(ctx, q)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, wantID, got.ID)
	}

	got, err := eng.Select(ctx, q)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEngine_SkipsZeroCapTargets(t *testing.T) {
	ctx := context.Background()
	eng, repo, _ := newTestEngine(t)

	seedTarget(t, repo, "best", 0.90, 0)
	seedTarget(t, repo, "next", 0.40, 1)

	got, err := eng.Select(ctx, Query{GeoState: "ny", Hour: 13})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "next", got.ID)
}

func TestEngine_NoMatchLeavesNoTempKeys(t *testing.T) {
	ctx := context.Background()
	eng, repo, st := newTestEngine(t)

	seedTarget(t, repo, "A", 0.50, 2)

	tests := []struct {
		name string
		q    Query
	}{
		{"unknown geoState", Query{GeoState: "tx", Hour: 14}},
		{"hour outside accept", Query{GeoState: "ca", Hour: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := eng.Select(ctx, tt.q)
			require.NoError(t, err)
			assert.Nil(t, got)
			for _, k := range st.Keys() {
				assert.False(t, strings.HasPrefix(k, matchKeyPrefix), "leaked temp key %s", k)
			}
		})
	}
}

func TestEngine_MatchKeyCleanedUpAfterAccept(t *testing.T) {
	ctx := context.Background()
	eng, repo, st := newTestEngine(t)
	seedTarget(t, repo, "A", 0.50, 2)

	got, err := eng.Select(ctx, Query{GeoState: "ca", Hour: 14})
	require.NoError(t, err)
	require.NotNil(t, got)

	for _, k := range st.Keys() {
		assert.False(t, strings.HasPrefix(k, matchKeyPrefix), "leaked temp key %s", k)
	}
}

func TestEngine_ValueUpdateReordersSelection(t *testing.T) {
	ctx := context.Background()
	eng, repo, _ := newTestEngine(t)

	seedTarget(t, repo, "A", 0.50, 5)
	seedTarget(t, repo, "B", 0.60, 5)

	got, err := eng.Select(ctx, Query{GeoState: "ca", Hour: 14})
	require.NoError(t, err)
	assert.Equal(t, "B", got.ID)

	v := 0.95
	_, err = repo.Update(ctx, "A", target.Patch{Value: &v})
	require.NoError(t, err)

	got, err = eng.Select(ctx, Query{GeoState: "ca", Hour: 14})
	require.NoError(t, err)
	assert.Equal(t, "A", got.ID)
}

func TestEngine_AcceptUpdateRetargets(t *testing.T) {
	ctx := context.Background()
	eng, repo, _ := newTestEngine(t)

	seedTarget(t, repo, "A", 0.50, 5)

	// stop accepting hour 14; hour 13 keeps working
	_, err := repo.Update(ctx, "A", target.Patch{
		Accept: target.Accept{"hour": {In: []string{"13"}}},
	})
	require.NoError(t, err)

	got, err := eng.Select(ctx, Query{GeoState: "ca", Hour: 14})
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = eng.Select(ctx, Query{GeoState: "ca", Hour: 13})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "A", got.ID)
}
