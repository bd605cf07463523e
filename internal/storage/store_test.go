package storage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"neuralwarfare/internal/model"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	ctx := context.Background()

	stores := map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": NewSQLiteStore(filepath.Join(t.TempDir(), "neuralwarfare.db")),
	}
	for name, store := range stores {
		require.NoError(t, store.Init(ctx), "init %s", name)
		t.Cleanup(func() {
			_ = store.Close()
		})
	}
	return stores
}

func testRun(id string, started time.Time) model.Run {
	return model.Run{
		VersionedRecord: CurrentVersion(),
		ID:              id,
		StartedAt:       started,
		Seed:            42,
		Ticks:           900,
		Trainers:        []string{"red", "blue"},
		TeamSize:        20,
		Hyperparameters: json.RawMessage(`{"TopAgentCount":4}`),
	}
}

func TestStoreRunRoundTrip(t *testing.T) {
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.SaveRun(ctx, testRun("late", started.Add(time.Hour))))
			run := testRun("early", started)
			require.NoError(t, store.SaveRun(ctx, run))

			loaded, ok, err := store.GetRun(ctx, "early")
			require.NoError(t, err)
			require.True(t, ok)
			require.True(t, loaded.StartedAt.Equal(started))
			require.Equal(t, int64(42), loaded.Seed)
			require.Len(t, loaded.Trainers, 2)
			require.Equal(t, run.Hyperparameters, loaded.Hyperparameters)

			run.FinishedAt = started.Add(time.Minute)
			require.NoError(t, store.SaveRun(ctx, run))
			runs, err := store.ListRuns(ctx)
			require.NoError(t, err)
			require.Len(t, runs, 2)
			require.Equal(t, "early", runs[0].ID)
			require.Equal(t, "late", runs[1].ID)
			require.True(t, runs[0].FinishedAt.Equal(run.FinishedAt), "upserted finish time, got %v", runs[0].FinishedAt)

			_, ok, err = store.GetRun(ctx, "missing")
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}

func TestStoreGenerations(t *testing.T) {
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.SaveRun(ctx, testRun("r1", started)))

			records := []model.Generation{
				{RunID: "r1", Trainer: 1, Generation: 1, BestFitness: 3},
				{RunID: "r1", Trainer: 0, Generation: 2, BestFitness: 5},
				{RunID: "r1", Trainer: 0, Generation: 1, BestFitness: 2, Champion: []byte{1, 2, 3}},
				{RunID: "r1", Trainer: 0, Generation: 1, BestFitness: 4, Champion: []byte{9}},
			}
			for _, g := range records {
				g.VersionedRecord = CurrentVersion()
				g.ChampionLayers = []int{21, 12, 3}
				require.NoError(t, store.AppendGeneration(ctx, g))
			}

			generations, err := store.ListGenerations(ctx, "r1")
			require.NoError(t, err)
			require.Len(t, generations, 3)
			first := generations[0]
			require.Equal(t, 0, first.Trainer)
			require.Equal(t, 1, first.Generation)
			require.Equal(t, 4.0, first.BestFitness, "replaced record sorts first")
			require.Equal(t, []byte{9}, first.Champion)
			require.Equal(t, 1, generations[1].Trainer)
			require.Equal(t, 2, generations[2].Generation)
			require.Len(t, generations[1].ChampionLayers, 3)

			err = store.AppendGeneration(ctx, model.Generation{VersionedRecord: CurrentVersion(), RunID: "missing"})
			require.ErrorIs(t, err, ErrRunNotFound)

			empty, err := store.ListGenerations(ctx, "missing")
			require.NoError(t, err)
			require.Empty(t, empty)
		})
	}
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reopen.db")

	store := NewSQLiteStore(path)
	require.NoError(t, store.Init(ctx))
	require.NoError(t, store.SaveRun(ctx, testRun("r1", time.Unix(100, 0).UTC())))
	require.NoError(t, store.Close())
	_, _, err := store.GetRun(ctx, "r1")
	require.ErrorIs(t, err, ErrNotInitialized)

	reopened := NewSQLiteStore(path)
	require.NoError(t, reopened.Init(ctx))
	t.Cleanup(func() {
		_ = reopened.Close()
	})
	_, ok, err := reopened.GetRun(ctx, "r1")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestDecodeRejectsVersionMismatch(t *testing.T) {
	payload, err := EncodeRun(model.Run{ID: "old", VersionedRecord: model.VersionedRecord{SchemaVersion: 0, CodecVersion: 1}})
	require.NoError(t, err)
	_, err = DecodeRun(payload)
	require.ErrorIs(t, err, ErrVersionMismatch)
}

func TestGenerationPayloadOmitsChampion(t *testing.T) {
	payload, err := EncodeGeneration(model.Generation{VersionedRecord: CurrentVersion(), Champion: []byte("blob")})
	require.NoError(t, err)
	require.NotContains(t, string(payload), `champion"`)
}

func TestNewStore(t *testing.T) {
	_, err := NewStore("memory", "")
	require.NoError(t, err)

	store, err := NewStore("sqlite", filepath.Join(t.TempDir(), "f.db"))
	require.NoError(t, err)
	require.IsType(t, &SQLiteStore{}, store)

	_, err = NewStore("postgres", "")
	require.Error(t, err)

	require.ErrorIs(t, NewMemoryStore().SaveRun(context.Background(), model.Run{}), ErrNotInitialized)
}
