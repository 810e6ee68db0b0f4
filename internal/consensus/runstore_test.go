package consensus

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/meristem-data/cellclust/internal/db"
)

func openRunStore(t *testing.T) *RunStore {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := database.MigrateUp(); err != nil {
		t.Fatalf("MigrateUp: %v", err)
	}
	return NewRunStore(database.DB)
}

func TestRunStoreInsertAndGet(t *testing.T) {
	store := openRunStore(t)

	run := &Run{
		Status:              RunStatusRunning,
		IterationsRequested: 50,
		SampleFraction:      0.8,
		Seed:                42,
		CellCount:           1200,
		ParamsJSON:          json.RawMessage(`{"padj":0.01}`),
	}
	if err := store.Insert(run); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if run.RunID == "" {
		t.Fatal("Insert did not assign a run ID")
	}

	got, err := store.Get(run.RunID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != RunStatusRunning || got.IterationsRequested != 50 ||
		got.SampleFraction != 0.8 || got.Seed != 42 || got.CellCount != 1200 {
		t.Errorf("round-trip mismatch: %+v", got)
	}
	if string(got.ParamsJSON) != `{"padj":0.01}` {
		t.Errorf("params JSON = %s", got.ParamsJSON)
	}
}

func TestRunStoreFinishAndList(t *testing.T) {
	store := openRunStore(t)

	first := &Run{Status: RunStatusRunning, IterationsRequested: 10, SampleFraction: 0.8, CellCount: 100}
	second := &Run{Status: RunStatusRunning, IterationsRequested: 20, SampleFraction: 0.8, CellCount: 200}
	for _, run := range []*Run{first, second} {
		if err := store.Insert(run); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	if err := store.UpdateProgress(first.RunID, 7); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	if err := store.Finish(first.RunID, RunStatusDone, 10, 4, ""); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	done, err := store.List(RunStatusDone)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(done) != 1 || done[0].RunID != first.RunID {
		t.Fatalf("List(done) = %+v, want just the first run", done)
	}
	if done[0].IterationsDone != 10 || done[0].ClusterCount != 4 {
		t.Errorf("finished run = %+v", done[0])
	}

	all, err := store.List("")
	if err != nil {
		t.Fatalf("List all: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("List(\"\") returned %d runs, want 2", len(all))
	}

	if err := store.Finish("no-such-run", RunStatusDone, 0, 0, ""); err == nil {
		t.Error("Finish on unknown run did not error")
	}
}

func TestAggregatorRecordsRun(t *testing.T) {
	store := openRunStore(t)
	m, blobs := twoBlobConsensus(t, 34)

	agg := &Aggregator{
		Engine: testSplitEngine(t),
		Opts:   Options{Iterations: 6, Seed: 3, Workers: 2, Store: store},
	}
	res, err := agg.Run(context.Background(), m, m.Cells())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.RunID == "" {
		t.Fatal("aggregator did not register a run ID")
	}

	run, err := store.Get(res.RunID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if run.Status != RunStatusDone {
		t.Errorf("status = %q, want done", run.Status)
	}
	if run.IterationsDone != 6 {
		t.Errorf("iterations done = %d, want 6", run.IterationsDone)
	}
	if run.ClusterCount != len(blobs) {
		t.Errorf("cluster count = %d, want %d", run.ClusterCount, len(blobs))
	}
	if run.CellCount != m.NumCells() {
		t.Errorf("cell count = %d, want %d", run.CellCount, m.NumCells())
	}
}
