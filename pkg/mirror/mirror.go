package mirror

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/doclift/doclift/pkg/registry"
)

// ErrNotMirrored indicates a job has no mirrored registry in the bucket.
var ErrNotMirrored = errors.New("job not mirrored")

// MirrorError wraps an object-storage failure with its operation context.
type MirrorError struct {
	Op     string
	Bucket string
	Key    string
	Err    error
}

func (e *MirrorError) Error() string {
	return fmt.Sprintf("mirror %s s3://%s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
}

func (e *MirrorError) Unwrap() error { return e.Err }

// objectStore is the subset of the S3 client the mirror uses. Narrowed to
// an interface so tests can run against an in-memory store.
type objectStore interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Mirror pushes and pulls active-area job artifacts against one bucket.
type Mirror struct {
	client objectStore
	bucket string
	prefix string
	logger *zap.Logger
}

// New builds a mirror against AWS S3 or an S3-compatible endpoint.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Mirror, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	s3Opts := []func(*s3.Options){
		func(o *s3.Options) {
			if cfg.ForcePathStyle {
				o.UsePathStyle = true
			}
		},
	}
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	return NewWithClient(s3.NewFromConfig(awsCfg, s3Opts...), cfg, logger), nil
}

// NewWithClient builds a mirror around an existing client.
func NewWithClient(client objectStore, cfg Config, logger *zap.Logger) *Mirror {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mirror{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		logger: logger,
	}
}

// loadAWSConfig builds the AWS configuration with appropriate credentials.
func loadAWSConfig(ctx context.Context, cfg Config) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error

	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, err
	}
	if awsCfg.Region == "" && cfg.Endpoint == "" {
		awsCfg.Region = DefaultAWSRegion
	}
	return awsCfg, nil
}

// activeKey returns the mirrored key for a file in the active area.
func (m *Mirror) activeKey(filename string) string {
	return path.Join(m.prefix, "active", filename)
}

// Push uploads a job's registry plus any result cache and status snapshot.
// The registry must exist locally; the artifacts are optional.
func (m *Mirror) Push(ctx context.Context, store *registry.Store, jobID string) error {
	if err := m.putFile(ctx, store.RegistryPath(jobID), false); err != nil {
		return err
	}
	if err := m.putFile(ctx, store.ResultsPath(jobID), true); err != nil {
		return err
	}
	return m.putFile(ctx, store.SnapshotPath(jobID), true)
}

// PushAll mirrors every active registry. Per-job failures are logged and
// skipped so one bad upload does not strand the rest.
func (m *Mirror) PushAll(ctx context.Context, store *registry.Store) (int, error) {
	regs, err := store.List()
	if err != nil {
		return 0, err
	}
	pushed := 0
	for _, reg := range regs {
		if err := m.Push(ctx, store, reg.JobID); err != nil {
			m.logger.Warn("Failed to mirror job", zap.String("job_id", reg.JobID), zap.Error(err))
			continue
		}
		pushed++
	}
	return pushed, nil
}

// Pull downloads a mirrored job into the local active area. Returns
// ErrNotMirrored when the bucket has no registry for the job.
func (m *Mirror) Pull(ctx context.Context, store *registry.Store, jobID string) error {
	if err := m.getFile(ctx, store.RegistryPath(jobID), false); err != nil {
		return err
	}
	if err := m.getFile(ctx, store.ResultsPath(jobID), true); err != nil {
		return err
	}
	return m.getFile(ctx, store.SnapshotPath(jobID), true)
}

// PullAll downloads every mirrored job that is missing locally and returns
// the job ids it pulled.
func (m *Mirror) PullAll(ctx context.Context, store *registry.Store) ([]string, error) {
	prefix := m.activeKey("") + "/"
	var pulled []string
	var token *string

	for {
		out, err := m.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(m.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, m.wrapError("ListObjectsV2", prefix, err)
		}

		for _, obj := range out.Contents {
			name := path.Base(aws.ToString(obj.Key))
			jobID, ok := registryFilename(name)
			if !ok {
				continue
			}
			if _, err := os.Stat(store.RegistryPath(jobID)); err == nil {
				continue
			}
			if err := m.Pull(ctx, store, jobID); err != nil {
				m.logger.Warn("Failed to pull mirrored job", zap.String("job_id", jobID), zap.Error(err))
				continue
			}
			pulled = append(pulled, jobID)
		}

		if !aws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}
	return pulled, nil
}

// Remove deletes a job's mirrored artifacts, called after the job archives
// locally so other hosts stop seeing it as pending.
func (m *Mirror) Remove(ctx context.Context, store *registry.Store, jobID string) error {
	for _, p := range []string{store.RegistryPath(jobID), store.ResultsPath(jobID), store.SnapshotPath(jobID)} {
		key := m.activeKey(filepath.Base(p))
		_, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(m.bucket),
			Key:    aws.String(key),
		})
		if err != nil && !isNotFound(err) {
			return m.wrapError("DeleteObject", key, err)
		}
	}
	return nil
}

// registryFilename extracts the job id from an active-area registry
// filename, rejecting artifact and envelope files.
func registryFilename(name string) (string, bool) {
	if !strings.HasSuffix(name, ".json") {
		return "", false
	}
	for _, suffix := range []string{".results.jsonl", ".status.json", ".envelope.json"} {
		if strings.HasSuffix(name, suffix) {
			return "", false
		}
	}
	return strings.TrimSuffix(name, ".json"), true
}

func (m *Mirror) putFile(ctx context.Context, localPath string, optional bool) error {
	b, err := os.ReadFile(localPath)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", localPath, err)
	}

	key := m.activeKey(filepath.Base(localPath))
	length := int64(len(b))
	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(b),
		ContentLength: &length,
	})
	if err != nil {
		return m.wrapError("PutObject", key, err)
	}
	return nil
}

func (m *Mirror) getFile(ctx context.Context, localPath string, optional bool) error {
	key := m.activeKey(filepath.Base(localPath))
	out, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			if optional {
				return nil
			}
			return fmt.Errorf("%w: %s", ErrNotMirrored, key)
		}
		return m.wrapError("GetObject", key, err)
	}
	defer out.Body.Close()

	b, err := io.ReadAll(out.Body)
	if err != nil {
		return m.wrapError("GetObject", key, err)
	}
	return writeFileAtomic(localPath, b)
}

// writeFileAtomic writes via a temp file and rename so a partial download
// never looks like a valid registry.
func writeFileAtomic(dest string, b []byte) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(dest)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func (m *Mirror) wrapError(op, key string, err error) error {
	return &MirrorError{Op: op, Bucket: m.bucket, Key: key, Err: err}
}

// isNotFound recognizes missing-object errors across real S3 and
// compatible stores.
func isNotFound(err error) bool {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
