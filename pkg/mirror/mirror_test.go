package mirror

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/doclift/doclift/pkg/batch"
	"github.com/doclift/doclift/pkg/registry"
)

// memoryStore is an in-memory objectStore for tests.
type memoryStore struct {
	objects map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: make(map[string][]byte)}
}

func (m *memoryStore) PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.objects[aws.ToString(in.Key)] = b
	return &s3.PutObjectOutput{}, nil
}

func (m *memoryStore) GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	b, ok := m.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func (m *memoryStore) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(m.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (m *memoryStore) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	prefix := aws.ToString(in.Prefix)
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for key := range m.objects {
		if strings.HasPrefix(key, prefix) {
			out.Contents = append(out.Contents, types.Object{Key: aws.String(key)})
		}
	}
	return out, nil
}

func testRegistry(jobID string) *registry.Registry {
	return &registry.Registry{
		JobID:       jobID,
		PackagePath: "/work/pkg",
		Provider:    "anthropic",
		CreatedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Items: []batch.JobItem{
			{StableIndex: 0, FilePath: "src/a.ts", StableID: "src-a-ts"},
			{StableIndex: 1, FilePath: "src/b.ts", StableID: "src-b-ts"},
		},
	}
}

func newTestMirror(t *testing.T) (*Mirror, *memoryStore, *registry.Store) {
	t.Helper()
	mem := newMemoryStore()
	m := NewWithClient(mem, Config{Bucket: "jobs", Prefix: "team"}, nil)
	return m, mem, registry.NewStore(t.TempDir())
}

func TestPush_MirrorsRegistryAndArtifacts(t *testing.T) {
	m, mem, store := newTestMirror(t)
	if err := store.Write(testRegistry("j1")); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(store.ResultsPath("j1"), []byte(`{"custom_id":"src-a-ts-0","content":"x"}`+"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := m.Push(context.Background(), store, "j1"); err != nil {
		t.Fatalf("Push() error: %v", err)
	}
	if _, ok := mem.objects["team/active/j1.json"]; !ok {
		t.Fatalf("registry not mirrored; keys: %v", keys(mem))
	}
	if _, ok := mem.objects["team/active/j1.results.jsonl"]; !ok {
		t.Fatalf("results artifact not mirrored; keys: %v", keys(mem))
	}
	// No snapshot exists, and its absence is not an error.
	if _, ok := mem.objects["team/active/j1.status.json"]; ok {
		t.Fatalf("phantom snapshot mirrored")
	}
}

func TestPush_MissingRegistryFails(t *testing.T) {
	m, _, store := newTestMirror(t)
	if err := m.Push(context.Background(), store, "absent"); err == nil {
		t.Fatalf("Push() of missing registry succeeded")
	}
}

func TestPull_RestoresJobOnFreshHost(t *testing.T) {
	m, _, source := newTestMirror(t)
	if err := source.Write(testRegistry("j2")); err != nil {
		t.Fatal(err)
	}
	if err := m.Push(context.Background(), source, "j2"); err != nil {
		t.Fatal(err)
	}

	fresh := registry.NewStore(t.TempDir())
	if err := m.Pull(context.Background(), fresh, "j2"); err != nil {
		t.Fatalf("Pull() error: %v", err)
	}

	reg, err := fresh.Get("j2")
	if err != nil {
		t.Fatalf("pulled registry unreadable: %v", err)
	}
	if len(reg.Items) != 2 || reg.Items[1].FilePath != "src/b.ts" {
		t.Fatalf("pulled registry lost items: %+v", reg.Items)
	}
}

func TestPull_UnmirroredJobFails(t *testing.T) {
	m, _, store := newTestMirror(t)
	err := m.Pull(context.Background(), store, "ghost")
	if err == nil || !strings.Contains(err.Error(), "not mirrored") {
		t.Fatalf("Pull() of unmirrored job = %v", err)
	}
}

func TestPullAll_SkipsLocalJobsAndArtifacts(t *testing.T) {
	m, _, source := newTestMirror(t)
	for _, id := range []string{"j3", "j4"} {
		if err := source.Write(testRegistry(id)); err != nil {
			t.Fatal(err)
		}
		if err := m.Push(context.Background(), source, id); err != nil {
			t.Fatal(err)
		}
	}

	// j3 already exists on the fresh host.
	fresh := registry.NewStore(t.TempDir())
	if err := fresh.Write(testRegistry("j3")); err != nil {
		t.Fatal(err)
	}

	pulled, err := m.PullAll(context.Background(), fresh)
	if err != nil {
		t.Fatalf("PullAll() error: %v", err)
	}
	if len(pulled) != 1 || pulled[0] != "j4" {
		t.Fatalf("pulled = %v, want [j4]", pulled)
	}
}

func TestRemove_DeletesMirroredArtifacts(t *testing.T) {
	m, mem, store := newTestMirror(t)
	if err := store.Write(testRegistry("j5")); err != nil {
		t.Fatal(err)
	}
	if err := m.Push(context.Background(), store, "j5"); err != nil {
		t.Fatal(err)
	}

	if err := m.Remove(context.Background(), store, "j5"); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}
	if len(mem.objects) != 0 {
		t.Fatalf("mirror still holds %v", keys(mem))
	}
}

func TestRegistryFilename(t *testing.T) {
	cases := []struct {
		name  string
		jobID string
		ok    bool
	}{
		{"j1.json", "j1", true},
		{"msgbatch_abc.json", "msgbatch_abc", true},
		{"j1.results.jsonl", "", false},
		{"j1.status.json", "", false},
		{"uuid.envelope.json", "", false},
		{"readme.txt", "", false},
	}
	for _, tc := range cases {
		jobID, ok := registryFilename(tc.name)
		if ok != tc.ok || jobID != tc.jobID {
			t.Errorf("registryFilename(%q) = %q, %v; want %q, %v", tc.name, jobID, ok, tc.jobID, tc.ok)
		}
	}
}

func keys(m *memoryStore) []string {
	out := make([]string, 0, len(m.objects))
	for k := range m.objects {
		out = append(out, k)
	}
	return out
}
