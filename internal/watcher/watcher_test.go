package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/kailas-cloud/prestadores/internal/usecase/indexing"
)

type countingReindexer struct {
	calls atomic.Int32
}

func (r *countingReindexer) Reindex(context.Context) (*indexing.Index, error) {
	r.calls.Add(1)
	return &indexing.Index{Collection: "rag_collection", Chunks: 1}, nil
}

func TestRelevant(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "d.csv")
	tests := []struct {
		name  string
		event fsnotify.Event
		want  bool
	}{
		{"write", fsnotify.Event{Name: abs, Op: fsnotify.Write}, true},
		{"create", fsnotify.Event{Name: abs, Op: fsnotify.Create}, true},
		{"chmod", fsnotify.Event{Name: abs, Op: fsnotify.Chmod}, false},
		{"remove", fsnotify.Event{Name: abs, Op: fsnotify.Remove}, false},
		{"other file", fsnotify.Event{Name: abs + ".tmp", Op: fsnotify.Write}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := relevant(tc.event, abs); got != tc.want {
				t.Errorf("relevant = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRun_DebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "d.csv")
	if err := os.WriteFile(path, []byte("a\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	r := &countingReindexer{}
	w := New(path, 100*time.Millisecond, r, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// let the watcher register the directory
	time.Sleep(100 * time.Millisecond)
	for i := range 5 {
		if err := os.WriteFile(path, []byte{byte('a' + i), '\n'}, 0o600); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	deadline := time.Now().Add(2 * time.Second)
	for r.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	time.Sleep(300 * time.Millisecond)

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if n := r.calls.Load(); n != 1 {
		t.Errorf("expected one debounced reindex, got %d", n)
	}
}

func TestRun_MissingDirectory(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "nope", "d.csv"), 0, &countingReindexer{}, zap.NewNop())
	if err := w.Run(context.Background()); err == nil {
		t.Fatal("expected error for a missing directory")
	}
}
