// Package revision verifies that a working tree still matches the source
// revision a job was built against.
//
// Consistency is best effort by default: drift produces a warning and
// processing continues. Strict mode pins the working tree to the recorded
// revision for the duration of the commit and restores the prior ref
// afterward.
package revision

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// ErrNotRepository indicates the target directory is not under version
// control. Jobs against unversioned trees skip the consistency check.
var ErrNotRepository = errors.New("not a git repository")

// DriftError reports that the working tree moved since submission.
type DriftError struct {
	Recorded string
	Current  string
}

func (e *DriftError) Error() string {
	return fmt.Sprintf("working tree is at %s, job was built against %s", e.Current, e.Recorded)
}

// IsDrift reports whether err is a revision drift.
func IsDrift(err error) bool {
	var de *DriftError
	return errors.As(err, &de)
}

// Runner executes a version-control command in a directory and returns
// its trimmed standard output.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// gitRunner shells out to the git binary.
type gitRunner struct{}

// NewGitRunner returns a Runner backed by the git binary on PATH.
func NewGitRunner() Runner { return gitRunner{} }

func (gitRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if strings.Contains(detail, "not a git repository") {
			return "", ErrNotRepository
		}
		if detail == "" {
			return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
		}
		return "", fmt.Errorf("git %s: %s: %w", strings.Join(args, " "), detail, err)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Checker compares recorded revisions against the working tree.
type Checker struct {
	runner Runner
	logger *zap.Logger
}

func NewChecker(runner Runner, logger *zap.Logger) *Checker {
	if runner == nil {
		runner = NewGitRunner()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{runner: runner, logger: logger}
}

// Head returns the working tree's current commit hash, or empty string
// with nil error when dir is not a repository.
func (c *Checker) Head(ctx context.Context, dir string) (string, error) {
	out, err := c.runner.Run(ctx, dir, "rev-parse", "HEAD")
	if errors.Is(err, ErrNotRepository) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return out, nil
}

// Verify checks the working tree against the revision recorded at
// submission.
//
// A missing recorded revision or an unversioned tree passes. On drift,
// strict mode returns a DriftError; otherwise the drift is logged and
// processing continues.
func (c *Checker) Verify(ctx context.Context, dir, recorded string, strict bool) error {
	if recorded == "" {
		return nil
	}
	current, err := c.Head(ctx, dir)
	if err != nil {
		return fmt.Errorf("resolve working tree revision: %w", err)
	}
	if current == "" || current == recorded {
		return nil
	}
	if strict {
		return &DriftError{Recorded: recorded, Current: current}
	}
	c.logger.Warn("Working tree moved since job submission, committing anyway",
		zap.String("recorded", recorded),
		zap.String("current", current))
	return nil
}

// Pin checks out the recorded revision and returns a restore function
// that puts the working tree back on its prior ref. Used only in strict
// mode.
//
// The prior ref is the symbolic branch name when one is checked out, so
// restore reattaches HEAD instead of leaving it detached.
func (c *Checker) Pin(ctx context.Context, dir, recorded string) (restore func(context.Context) error, err error) {
	if recorded == "" {
		return nil, errors.New("no recorded revision to pin")
	}

	prior, err := c.runner.Run(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return nil, fmt.Errorf("resolve prior ref: %w", err)
	}
	if prior == "HEAD" {
		// Detached already; restore by hash instead.
		prior, err = c.runner.Run(ctx, dir, "rev-parse", "HEAD")
		if err != nil {
			return nil, fmt.Errorf("resolve prior revision: %w", err)
		}
	}
	if prior == recorded {
		return func(context.Context) error { return nil }, nil
	}

	if _, err := c.runner.Run(ctx, dir, "checkout", recorded); err != nil {
		return nil, fmt.Errorf("check out recorded revision %s: %w", recorded, err)
	}
	c.logger.Info("Pinned working tree to recorded revision",
		zap.String("recorded", recorded),
		zap.String("prior", prior))

	return func(rctx context.Context) error {
		if _, err := c.runner.Run(rctx, dir, "checkout", prior); err != nil {
			return fmt.Errorf("restore prior ref %s: %w", prior, err)
		}
		return nil
	}, nil
}
