package collector

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/prestadores/internal/domain"
)

type fakeRetriever struct {
	mu      sync.Mutex
	results map[string][]domain.Document
	delays  map[string]time.Duration
	calls   []string
}

func (f *fakeRetriever) Search(_ context.Context, text string, _ int) []domain.Document {
	if d := f.delays[text]; d > 0 {
		time.Sleep(d)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, text)
	return f.results[text]
}

func doc(row int, content string) domain.Document {
	return domain.Document{Content: content, Metadata: domain.Metadata{RowIndex: row}}
}

func contents(docs []domain.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Content
	}
	return out
}

func TestCollect_MergesInVariantOrderWithDedup(t *testing.T) {
	r := &fakeRetriever{results: map[string][]domain.Document{
		"CARDIOLOGIA":              {doc(0, "Ana"), doc(1, "Luis")},
		"especialidad CARDIOLOGIA": {doc(1, "Luis"), doc(2, "Eva")},
		"prestadores CARDIOLOGIA":  {doc(0, "Ana")},
	}}
	svc := New(r, Config{K: 10}, zap.NewNop())

	c := svc.Collect(context.Background(), []string{"CARDIOLOGIA", "especialidad CARDIOLOGIA", "prestadores CARDIOLOGIA"})
	if got, want := contents(c.Documents), []string{"Ana", "Luis", "Eva"}; !reflect.DeepEqual(got, want) {
		t.Errorf("documents = %q, want %q", got, want)
	}
	if c.UsedFallback {
		t.Error("fallback must not be used when variants match")
	}
}

func TestCollect_CapsAtFifteen(t *testing.T) {
	many := make([]domain.Document, 12)
	more := make([]domain.Document, 12)
	for i := range many {
		many[i] = doc(i, fmt.Sprintf("a%d", i))
		more[i] = doc(100+i, fmt.Sprintf("b%d", i))
	}
	r := &fakeRetriever{results: map[string][]domain.Document{"x": many, "y": more, "z": more}}
	svc := New(r, Config{K: 12}, zap.NewNop())

	c := svc.Collect(context.Background(), []string{"x", "y", "z"})
	if len(c.Documents) != DefaultMaxCandidates {
		t.Fatalf("expected %d candidates, got %d", DefaultMaxCandidates, len(c.Documents))
	}
	if c.Documents[14].Content != "b2" {
		t.Errorf("expected cap to keep variant order, last = %q", c.Documents[14].Content)
	}
	if len(r.calls) != 2 {
		t.Errorf("sequential collection stops once full, got calls %v", r.calls)
	}
}

func TestCollect_FallbackStopsAtFirstHit(t *testing.T) {
	r := &fakeRetriever{results: map[string][]domain.Document{
		"médicos":       {doc(4, "Dr. Pérez"), doc(4, "Dr. Pérez")},
		"especialistas": {doc(5, "never")},
	}}
	svc := New(r, Config{K: 10}, zap.NewNop())

	c := svc.Collect(context.Background(), []string{"ONCOLOGIA"})
	if !c.UsedFallback || c.Term != "médicos" {
		t.Fatalf("expected fallback on médicos, got %+v", c)
	}
	if got := contents(c.Documents); !reflect.DeepEqual(got, []string{"Dr. Pérez"}) {
		t.Errorf("expected deduplicated fallback docs, got %q", got)
	}
	want := []string{"ONCOLOGIA", "prestadores de salud", "médicos"}
	if !reflect.DeepEqual(r.calls, want) {
		t.Errorf("calls = %q, want %q", r.calls, want)
	}
}

func TestCollect_NothingAnywhere(t *testing.T) {
	r := &fakeRetriever{results: map[string][]domain.Document{}}
	c := New(r, Config{}, zap.NewNop()).Collect(context.Background(), []string{"x"})

	if len(c.Documents) != 0 || c.UsedFallback {
		t.Errorf("expected empty candidates, got %+v", c)
	}
	if len(r.calls) != 1+len(FallbackTerms) {
		t.Errorf("expected every fallback term tried, got %v", r.calls)
	}
}

func TestCollect_ConcurrentKeepsVariantOrder(t *testing.T) {
	r := &fakeRetriever{
		results: map[string][]domain.Document{
			"a": {doc(0, "first")},
			"b": {doc(1, "second")},
			"c": {doc(2, "third"), doc(0, "first")},
		},
		delays: map[string]time.Duration{"a": 30 * time.Millisecond, "b": 10 * time.Millisecond},
	}
	svc := New(r, Config{K: 10, Concurrency: 3}, zap.NewNop())

	c := svc.Collect(context.Background(), []string{"a", "b", "c"})
	if got, want := contents(c.Documents), []string{"first", "second", "third"}; !reflect.DeepEqual(got, want) {
		t.Errorf("documents = %q, want %q", got, want)
	}
}

func dedup(docs []domain.Document) []domain.Document {
	m := newMerger(len(docs))
	m.add(docs)
	return m.docs
}

func TestDedup_Idempotent(t *testing.T) {
	docs := []domain.Document{doc(0, "a"), doc(1, "b"), doc(0, "a"), doc(2, "a")}

	once := dedup(docs)
	twice := dedup(once)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("dedup not idempotent: %v vs %v", once, twice)
	}
	if len(once) != 3 {
		t.Errorf("expected 3 unique docs, got %d", len(once))
	}
}
