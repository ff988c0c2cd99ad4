package history

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"pulpito/api/internal/store"
)

func snapshot(revision int64, content string) Snapshot {
	return Snapshot{
		Revision: revision,
		Blocks: []store.Block{
			{ID: "b1", Type: "TEXTO_BASE", Content: content, Order: 0},
		},
	}
}

func TestRecordSyncAndHistory(t *testing.T) {
	svc := New(t.TempDir())

	first, err := svc.RecordSync("srm_1", snapshot(1, "No princípio"), "Lucas", "Sync canvas (rev 1)")
	if err != nil {
		t.Fatalf("RecordSync() error = %v", err)
	}
	if first.Hash == "" || first.Author != "Lucas" {
		t.Fatalf("unexpected commit info: %+v", first)
	}

	second, err := svc.RecordSync("srm_1", snapshot(2, "E disse Deus"), "Lucas", "Sync canvas (rev 2)")
	if err != nil {
		t.Fatalf("RecordSync() error = %v", err)
	}

	entries, err := svc.History("srm_1", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(entries))
	}
	if entries[0].Hash != second.Hash {
		t.Fatalf("expected newest commit first, got %+v", entries)
	}
}

func TestHistoryForUnsyncedSermonIsEmpty(t *testing.T) {
	svc := New(t.TempDir())
	entries, err := svc.History("srm_never", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty history, got %d entries", len(entries))
	}
}

func TestSnapshotByHash(t *testing.T) {
	svc := New(t.TempDir())

	commit, err := svc.RecordSync("srm_1", snapshot(1, "No princípio"), "Lucas", "Sync canvas")
	if err != nil {
		t.Fatalf("RecordSync() error = %v", err)
	}
	if _, err := svc.RecordSync("srm_1", snapshot(2, "E disse Deus"), "Lucas", "Sync canvas"); err != nil {
		t.Fatalf("RecordSync() error = %v", err)
	}

	got, err := svc.SnapshotByHash("srm_1", commit.Hash)
	if err != nil {
		t.Fatalf("SnapshotByHash() error = %v", err)
	}
	if got.Revision != 1 || got.Blocks[0].Content != "No princípio" {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
}

func TestConcurrentRecordSyncSameSermon(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	const writers = 8
	var wg sync.WaitGroup
	errCh := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			message := fmt.Sprintf("Sync canvas (writer %02d)", idx)
			if _, err := svc.RecordSync("srm_1", snapshot(int64(idx), "conteúdo"), "Lucas", message); err != nil {
				errCh <- err
			}
		}(i)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatalf("RecordSync() concurrent error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(tempDir, "srm_1")); err != nil {
		t.Fatalf("repo directory missing: %v", err)
	}
	entries, err := svc.History("srm_1", 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(entries) != writers {
		t.Fatalf("expected %d commits, got %d", writers, len(entries))
	}
}
