package main

import (
	"testing"
	"time"

	"github.com/cwbudde/nlfit/internal/store"
)

func TestSelectCheckpointsForDeletion_ByAge(t *testing.T) {
	now := time.Now()
	infos := []store.CheckpointInfo{
		{JobID: "old-1", Timestamp: now.AddDate(0, 0, -10)},
		{JobID: "old-2", Timestamp: now.AddDate(0, 0, -8)},
		{JobID: "recent", Timestamp: now.AddDate(0, 0, -1)},
	}

	toDelete := selectCheckpointsForDeletion(infos, 0, 7)

	if len(toDelete) != 2 {
		t.Fatalf("expected 2 checkpoints to delete, got %d", len(toDelete))
	}
	for _, info := range toDelete {
		if info.JobID == "recent" {
			t.Error("recent checkpoint should not be selected for deletion")
		}
	}
}

func TestSelectCheckpointsForDeletion_ByCount(t *testing.T) {
	now := time.Now()
	infos := []store.CheckpointInfo{
		{JobID: "a", Timestamp: now.Add(-4 * time.Hour)},
		{JobID: "b", Timestamp: now.Add(-3 * time.Hour)},
		{JobID: "c", Timestamp: now.Add(-2 * time.Hour)},
		{JobID: "d", Timestamp: now.Add(-1 * time.Hour)},
	}

	toDelete := selectCheckpointsForDeletion(infos, 2, 0)

	if len(toDelete) != 2 {
		t.Fatalf("expected 2 checkpoints to delete, got %d", len(toDelete))
	}
	got := map[string]bool{}
	for _, info := range toDelete {
		got[info.JobID] = true
	}
	if !got["a"] || !got["b"] {
		t.Errorf("expected the two oldest checkpoints (a, b), got %v", got)
	}
}

func TestSelectCheckpointsForDeletion_Combined(t *testing.T) {
	now := time.Now()
	infos := []store.CheckpointInfo{
		{JobID: "ancient", Timestamp: now.AddDate(0, 0, -30)},
		{JobID: "mid", Timestamp: now.Add(-2 * time.Hour)},
		{JobID: "new", Timestamp: now.Add(-1 * time.Hour)},
	}

	toDelete := selectCheckpointsForDeletion(infos, 2, 7)

	if len(toDelete) != 1 {
		t.Fatalf("expected 1 checkpoint to delete, got %d", len(toDelete))
	}
	if toDelete[0].JobID != "ancient" {
		t.Errorf("expected ancient checkpoint, got %s", toDelete[0].JobID)
	}
}

func TestSelectCheckpointsForDeletion_KeepAll(t *testing.T) {
	now := time.Now()
	infos := []store.CheckpointInfo{
		{JobID: "a", Timestamp: now.Add(-2 * time.Hour)},
		{JobID: "b", Timestamp: now.Add(-1 * time.Hour)},
	}

	toDelete := selectCheckpointsForDeletion(infos, 5, 0)
	if len(toDelete) != 0 {
		t.Errorf("expected no deletions when under keep-last budget, got %d", len(toDelete))
	}
}

func TestFormatBytes(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KiB"},
		{3 * 1024 * 1024, "3.0 MiB"},
	}
	for _, c := range cases {
		if got := formatBytes(c.in); got != c.want {
			t.Errorf("formatBytes(%d) = %q, want %q", c.in, got, c.want)
		}
	}
}
