package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/enrichd/enrichd/internal/core/domain"
)

type processorFake struct {
	processed []string
	errFor    map[string]error
}

func (f *processorFake) Process(_ context.Context, doc *domain.Document) error {
	f.processed = append(f.processed, doc.ID)
	if f.errFor != nil {
		return f.errFor[doc.ID]
	}
	return nil
}

func TestRunCycleProcessesEveryEligibleDocument(t *testing.T) {
	docs := &docRepoFake{docs: []domain.Document{
		{ID: "doc-3", Filename: "c.pdf"},
		{ID: "doc-2", Filename: "b.pdf"},
		{ID: "doc-1", Filename: "a.pdf"},
	}}
	proc := &processorFake{}
	p := NewPoller(docs, &enrRepoFake{}, proc, time.Second, time.Second, nil)

	if err := p.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	// Repository order (newest first) is preserved.
	want := []string{"doc-3", "doc-2", "doc-1"}
	if len(proc.processed) != len(want) {
		t.Fatalf("processed %v, want %v", proc.processed, want)
	}
	for i, id := range want {
		if proc.processed[i] != id {
			t.Fatalf("processed %v, want %v", proc.processed, want)
		}
	}
}

func TestRunCycleSkipsDocumentsWithExistingResult(t *testing.T) {
	docs := &docRepoFake{docs: []domain.Document{
		{ID: "doc-done", Processed: false},
		{ID: "doc-new"},
	}}
	enrs := &enrRepoFake{existing: map[string]bool{"doc-done": true}}
	proc := &processorFake{}
	p := NewPoller(docs, enrs, proc, time.Second, time.Second, nil)

	if err := p.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if len(proc.processed) != 1 || proc.processed[0] != "doc-new" {
		t.Fatalf("expected only doc-new processed, got %v", proc.processed)
	}
}

func TestRunCycleOneFailureDoesNotAbortRemaining(t *testing.T) {
	docs := &docRepoFake{docs: []domain.Document{
		{ID: "doc-a"},
		{ID: "doc-b"},
		{ID: "doc-c"},
	}}
	proc := &processorFake{errFor: map[string]error{"doc-b": errors.New("llm unreachable")}}
	p := NewPoller(docs, &enrRepoFake{}, proc, time.Second, time.Second, nil)

	if err := p.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if len(proc.processed) != 3 {
		t.Fatalf("expected all 3 attempts, got %v", proc.processed)
	}
}

func TestRunCycleReturnsDiscoveryError(t *testing.T) {
	docs := &docRepoFake{listErr: errors.New("db down")}
	proc := &processorFake{}
	p := NewPoller(docs, &enrRepoFake{}, proc, time.Second, time.Second, nil)

	if err := p.RunCycle(context.Background()); err == nil {
		t.Fatalf("expected error when candidate fetch fails")
	}
	if len(proc.processed) != 0 {
		t.Fatalf("no documents should be processed")
	}
}

func TestRunCycleExistenceCheckErrorSkipsOnlyThatDocument(t *testing.T) {
	docs := &docRepoFake{docs: []domain.Document{{ID: "doc-a"}, {ID: "doc-b"}}}
	enrs := &enrRepoFake{existsErr: errors.New("transient")}
	proc := &processorFake{}
	p := NewPoller(docs, enrs, proc, time.Second, time.Second, nil)

	if err := p.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if len(proc.processed) != 0 {
		t.Fatalf("documents with failed existence check must not be processed")
	}
}

// failingDocRepo counts ListUnprocessed calls from the poller goroutine and
// fails every one of them.
type failingDocRepo struct {
	mu    sync.Mutex
	calls int
}

func (f *failingDocRepo) Create(context.Context, *domain.Document) error { return nil }
func (f *failingDocRepo) GetByFilename(context.Context, string) (*domain.Document, error) {
	return nil, errors.New("not found")
}
func (f *failingDocRepo) ListUnprocessed(context.Context) ([]domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil, errors.New("db down")
}
func (f *failingDocRepo) MarkProcessed(context.Context, string) error { return nil }

func (f *failingDocRepo) listCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestRunUsesCooldownAfterFailedDiscovery(t *testing.T) {
	docs := &failingDocRepo{}
	// With a one-hour steady interval, any reattempt inside the test window
	// can only come from the cooldown path.
	p := NewPoller(docs, &enrRepoFake{}, &processorFake{}, time.Hour, 20*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for docs.listCalls() < 3 {
		select {
		case <-deadline:
			cancel()
			t.Fatalf("expected repeated discovery attempts via cooldown, got %d", docs.listCalls())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("poller did not stop after cancel")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	docs := &docRepoFake{}
	p := NewPoller(docs, &enrRepoFake{}, &processorFake{}, 10*time.Millisecond, 10*time.Millisecond, nil)

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("poller did not stop after cancel")
	}
}
