// Package submit packages pending items into a provider batch and writes
// the job registry.
//
// Submission is all-or-nothing: the registry is written only after the
// provider has accepted the batch, so a failed submission leaves no
// partial state behind and is safe to retry from scratch.
package submit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/doclift/doclift/pkg/batch"
	"github.com/doclift/doclift/pkg/manifest"
	"github.com/doclift/doclift/pkg/match"
	"github.com/doclift/doclift/pkg/provider"
	"github.com/doclift/doclift/pkg/registry"
)

// Options configures one submission.
type Options struct {
	// SourceRevision is the working-tree revision the job is built
	// against, recorded in the registry for the commit-consistency check.
	// Optional.
	SourceRevision string
}

// Plan describes what a submission would cover.
type Plan struct {
	PackagePath string
	Items       []batch.JobItem
}

// Submitter builds and submits one batch per package.
type Submitter struct {
	store    *registry.Store
	archiver *registry.Archiver
	prov     provider.BatchProvider
	gen      Generator
	logger   *zap.Logger
}

func New(store *registry.Store, prov provider.BatchProvider, gen Generator, logger *zap.Logger) *Submitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Submitter{
		store:    store,
		archiver: registry.NewArchiver(store),
		prov:     prov,
		gen:      gen,
		logger:   logger,
	}
}

// Plan selects the files a manifest covers and assigns stable indices.
//
// An empty selection is rejected here, before any provider or registry
// I/O happens.
func (s *Submitter) Plan(m *manifest.Manifest) (*Plan, error) {
	matcher, err := match.New(match.Config{
		Includes:      m.Match.Includes,
		Excludes:      m.Match.Excludes,
		IncludeHidden: m.Match.IncludeHidden,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid match patterns: %w", err)
	}

	pkgPath, err := filepath.Abs(m.Package.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve package path: %w", err)
	}
	if info, err := os.Stat(pkgPath); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("package path is not a directory: %s", pkgPath)
	}

	paths, err := matcher.Select(pkgPath)
	if err != nil {
		return nil, fmt.Errorf("select files: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no files matched under %s", pkgPath)
	}

	entryPoints := make(map[string]bool, len(m.Package.EntryPoints))
	for _, ep := range m.Package.EntryPoints {
		entryPoints[filepath.ToSlash(ep)] = true
	}

	items := make([]batch.JobItem, 0, len(paths))
	for i, p := range paths {
		items = append(items, batch.JobItem{
			StableIndex: uint(i),
			FilePath:    p,
			EntryPoint:  entryPoints[p],
			StableID:    batch.StableIDFor(p),
		})
	}

	return &Plan{PackagePath: pkgPath, Items: items}, nil
}

// Submit runs the full submission: select files, generate request content
// with a bounded fan-out, create the remote batch, then write the registry.
func (s *Submitter) Submit(ctx context.Context, m *manifest.Manifest, opts Options) (*registry.Registry, error) {
	plan, err := s.Plan(m)
	if err != nil {
		return nil, err
	}

	reqs, err := s.buildRequests(ctx, plan, m)
	if err != nil {
		return nil, err
	}

	// Stage the raw envelope before creation so a provider-side failure
	// still leaves a debuggable "attempted" payload; it is removed on
	// failure and relocated to submitted/ on success.
	envelopePath, err := s.writeEnvelope(reqs)
	if err != nil {
		return nil, err
	}

	jobID, err := s.prov.CreateBatch(ctx, reqs)
	if err != nil {
		_ = os.Remove(envelopePath)
		return nil, fmt.Errorf("create batch: %w", err)
	}

	reg := &registry.Registry{
		JobID:          jobID,
		PackagePath:    plan.PackagePath,
		Provider:       s.prov.Name(),
		Model:          m.Generate.Model,
		CreatedAt:      time.Now().UTC(),
		SourceRevision: opts.SourceRevision,
		Items:          plan.Items,
	}
	if err := s.store.Write(reg); err != nil {
		// The remote job exists but the registry write failed; surface
		// the job id so the operator can recover or cancel it.
		return nil, fmt.Errorf("write registry for remote job %s: %w", jobID, err)
	}

	if err := s.archiver.ArchiveEnvelope(jobID, envelopePath); err != nil {
		s.logger.Warn("Failed to archive submission envelope",
			zap.String("job_id", jobID),
			zap.Error(err))
	}

	s.logger.Info("Submitted batch",
		zap.String("job_id", jobID),
		zap.String("package", plan.PackagePath),
		zap.Int("items", len(plan.Items)))

	return reg, nil
}

// buildRequests generates each item's prompt with a bounded fan-out.
//
// This fan-out is the only place the coordinator does parallel work; the
// job lifecycle itself stays strictly sequential. Any generation failure
// aborts the submission: a partial envelope would break the
// items-per-request invariant.
func (s *Submitter) buildRequests(ctx context.Context, plan *Plan, m *manifest.Manifest) ([]provider.Request, error) {
	concurrency := m.Generate.Concurrency
	if concurrency <= 0 {
		concurrency = manifest.DefaultConcurrency
	}

	var limiter *rate.Limiter
	if m.Generate.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(m.Generate.RateLimit), 1)
	}

	reqs := make([]provider.Request, len(plan.Items))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	var errOnce sync.Once
	var firstErr error

	genCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for i := range plan.Items {
		select {
		case sem <- struct{}{}:
		case <-genCtx.Done():
			break
		}
		if genCtx.Err() != nil {
			break
		}

		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			item := plan.Items[idx]
			if limiter != nil {
				if err := limiter.Wait(genCtx); err != nil {
					fail(err)
					return
				}
			}

			source, err := os.ReadFile(filepath.Join(plan.PackagePath, filepath.FromSlash(item.FilePath)))
			if err != nil {
				fail(fmt.Errorf("read %s: %w", item.FilePath, err))
				return
			}

			prompt, err := s.gen.Generate(genCtx, item, string(source))
			if err != nil {
				fail(err)
				return
			}

			reqs[idx] = provider.Request{
				CustomID:  batch.EncodeToken(item),
				Prompt:    prompt,
				Model:     m.Generate.Model,
				MaxTokens: m.Generate.MaxTokens,
			}
		}(i)
	}

	wg.Wait()
	if firstErr != nil {
		return nil, fmt.Errorf("generate request content: %w", firstErr)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return reqs, nil
}

// writeEnvelope stages the raw submission payload in the active area.
func (s *Submitter) writeEnvelope(reqs []provider.Request) (string, error) {
	type envelopeRequest struct {
		CustomID  string `json:"custom_id"`
		Model     string `json:"model,omitempty"`
		MaxTokens int    `json:"max_tokens,omitempty"`
		Prompt    string `json:"prompt"`
	}
	envelope := make([]envelopeRequest, 0, len(reqs))
	for _, r := range reqs {
		envelope = append(envelope, envelopeRequest{
			CustomID:  r.CustomID,
			Model:     r.Model,
			MaxTokens: r.MaxTokens,
			Prompt:    r.Prompt,
		})
	}

	b, err := json.MarshalIndent(map[string]any{"requests": envelope}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}

	if err := os.MkdirAll(s.store.RootDir(), 0755); err != nil {
		return "", fmt.Errorf("create registry root: %w", err)
	}
	path := filepath.Join(s.store.RootDir(), uuid.New().String()+".envelope.json")
	if err := os.WriteFile(path, b, 0644); err != nil {
		return "", fmt.Errorf("stage envelope: %w", err)
	}
	return path, nil
}
