package store

import (
	"errors"
	"testing"
)

func TestFSStoreSaveLoadRoundTrip(t *testing.T) {
	fs, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}

	cp := NewCheckpoint("job-1", []float64{1, 2, 3}, 0.25, 1.5, 10, validConfig())
	if err := fs.SaveCheckpoint("job-1", cp); err != nil {
		t.Fatalf("SaveCheckpoint failed: %v", err)
	}

	loaded, err := fs.LoadCheckpoint("job-1")
	if err != nil {
		t.Fatalf("LoadCheckpoint failed: %v", err)
	}
	if loaded.JobID != cp.JobID || loaded.BestCost != cp.BestCost {
		t.Errorf("loaded checkpoint differs: %+v", loaded)
	}
	if len(loaded.BestParams) != 3 || loaded.BestParams[2] != 3 {
		t.Errorf("params not preserved: %v", loaded.BestParams)
	}
}

func TestFSStoreLoadMissing(t *testing.T) {
	fs, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	_, err = fs.LoadCheckpoint("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestFSStoreOverwrite(t *testing.T) {
	fs, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	first := NewCheckpoint("job-1", []float64{1, 2, 3}, 1.0, 2.0, 10, validConfig())
	second := NewCheckpoint("job-1", []float64{4, 5, 6}, 0.5, 2.0, 20, validConfig())

	if err := fs.SaveCheckpoint("job-1", first); err != nil {
		t.Fatal(err)
	}
	if err := fs.SaveCheckpoint("job-1", second); err != nil {
		t.Fatal(err)
	}

	loaded, err := fs.LoadCheckpoint("job-1")
	if err != nil {
		t.Fatal(err)
	}
	if loaded.BestCost != 0.5 || loaded.Iteration != 20 {
		t.Errorf("overwrite not applied: %+v", loaded)
	}
}

func TestFSStoreListCheckpoints(t *testing.T) {
	fs, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	infos, err := fs.ListCheckpoints()
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 0 {
		t.Errorf("expected empty list, got %d entries", len(infos))
	}

	for _, id := range []string{"a", "b"} {
		cp := NewCheckpoint(id, []float64{1, 2, 3}, 0.5, 1.5, 1, validConfig())
		if err := fs.SaveCheckpoint(id, cp); err != nil {
			t.Fatal(err)
		}
	}

	infos, err = fs.ListCheckpoints()
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 2 {
		t.Errorf("got %d checkpoints, want 2", len(infos))
	}
}

func TestFSStoreDelete(t *testing.T) {
	fs, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	cp := NewCheckpoint("job-1", []float64{1, 2, 3}, 0.5, 1.5, 1, validConfig())
	if err := fs.SaveCheckpoint("job-1", cp); err != nil {
		t.Fatal(err)
	}
	if err := fs.DeleteCheckpoint("job-1"); err != nil {
		t.Fatalf("DeleteCheckpoint failed: %v", err)
	}

	if _, err := fs.LoadCheckpoint("job-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("checkpoint still present after delete: %v", err)
	}
	if err := fs.DeleteCheckpoint("job-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete should report ErrNotFound, got %v", err)
	}
}
