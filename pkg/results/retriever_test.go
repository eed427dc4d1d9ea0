package results

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/doclift/doclift/pkg/batch"
	"github.com/doclift/doclift/pkg/provider"
	"github.com/doclift/doclift/pkg/registry"
)

// fakeProvider implements provider.BatchProvider with canned responses.
type fakeProvider struct {
	results    []batch.ResultRecord
	fetchCalls int
	fetchErr   error
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) CreateBatch(ctx context.Context, reqs []provider.Request) (string, error) {
	return "fake-batch", nil
}

func (f *fakeProvider) GetStatus(ctx context.Context, jobID string) (*provider.StatusResult, error) {
	return &provider.StatusResult{Status: batch.StatusCompleted, Terminal: true}, nil
}

func (f *fakeProvider) FetchResults(ctx context.Context, jobID string) ([]batch.ResultRecord, error) {
	f.fetchCalls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.results, nil
}

func (f *fakeProvider) CancelBatch(ctx context.Context, jobID string) error { return nil }

func TestRetriever_FetchesAndCaches(t *testing.T) {
	store := registry.NewStore(t.TempDir())
	prov := &fakeProvider{results: []batch.ResultRecord{
		{CorrelationToken: "item-0", Content: "alpha"},
		{CorrelationToken: "item-1", Content: "beta"},
	}}
	r := NewRetriever(store, prov, nil)

	got, err := r.Retrieve(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if len(got) != 2 || got[0].Content != "alpha" {
		t.Fatalf("unexpected records: %+v", got)
	}
	if prov.fetchCalls != 1 {
		t.Fatalf("fetchCalls = %d, want 1", prov.fetchCalls)
	}
	if _, err := os.Stat(store.ResultsPath("job-1")); err != nil {
		t.Fatalf("cache artifact not written: %v", err)
	}

	// Second retrieval is served from cache: no new provider call, same
	// records.
	again, err := r.Retrieve(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("second Retrieve() error: %v", err)
	}
	if prov.fetchCalls != 1 {
		t.Fatalf("second retrieval re-fetched: fetchCalls = %d", prov.fetchCalls)
	}
	if len(again) != 2 || again[1].Content != "beta" {
		t.Fatalf("cached records differ: %+v", again)
	}
}

func TestRetriever_CorruptCacheRefetched(t *testing.T) {
	store := registry.NewStore(t.TempDir())
	if err := os.MkdirAll(store.RootDir(), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(store.ResultsPath("job-1"), []byte("not json at all\n"), 0644); err != nil {
		t.Fatal(err)
	}

	prov := &fakeProvider{results: []batch.ResultRecord{{CorrelationToken: "item-0", Content: "fresh"}}}
	r := NewRetriever(store, prov, nil)

	got, err := r.Retrieve(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if len(got) != 1 || got[0].Content != "fresh" {
		t.Fatalf("unexpected records: %+v", got)
	}
	if prov.fetchCalls != 1 {
		t.Fatalf("fetchCalls = %d, want 1", prov.fetchCalls)
	}
}

func TestRetriever_EmptyCacheDiscarded(t *testing.T) {
	store := registry.NewStore(t.TempDir())
	if err := os.MkdirAll(store.RootDir(), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(store.ResultsPath("job-1"), nil, 0644); err != nil {
		t.Fatal(err)
	}

	prov := &fakeProvider{results: []batch.ResultRecord{{CorrelationToken: "item-0", Content: "fresh"}}}
	r := NewRetriever(store, prov, nil)

	if _, err := r.Retrieve(context.Background(), "job-1"); err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if prov.fetchCalls != 1 {
		t.Fatalf("empty cache not refetched: fetchCalls = %d", prov.fetchCalls)
	}
}

func TestRetriever_EmptyResultsRetriedOnceThenFails(t *testing.T) {
	store := registry.NewStore(t.TempDir())
	prov := &fakeProvider{results: nil}
	r := NewRetriever(store, prov, nil)

	_, err := r.Retrieve(context.Background(), "job-1")
	if !errors.Is(err, ErrEmptyResults) {
		t.Fatalf("error = %v, want ErrEmptyResults", err)
	}
	if prov.fetchCalls != 2 {
		t.Fatalf("fetchCalls = %d, want exactly 2 (one retry)", prov.fetchCalls)
	}
	if _, statErr := os.Stat(store.ResultsPath("job-1")); !os.IsNotExist(statErr) {
		t.Fatalf("empty result set was cached")
	}
}

func TestRetriever_ProviderErrorPropagates(t *testing.T) {
	store := registry.NewStore(t.TempDir())
	prov := &fakeProvider{fetchErr: provider.ErrUnavailable}
	r := NewRetriever(store, prov, nil)

	if _, err := r.Retrieve(context.Background(), "job-1"); !errors.Is(err, provider.ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable", err)
	}
}
