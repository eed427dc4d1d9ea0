// Package anthropic implements provider.BatchProvider against the
// Anthropic Message Batches API.
//
// A batch is created with one request per job item; each request carries
// the item's correlation token as custom_id. Results are delivered as a
// JSONL stream once the batch has ended.
package anthropic

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/doclift/doclift/pkg/batch"
	"github.com/doclift/doclift/pkg/provider"
)

const providerName = "anthropic"

// Result lines can carry large generated files; allow up to 16 MiB per line.
const maxResultLineBytes = 16 << 20

// Client implements provider.BatchProvider for the Message Batches API.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

var _ provider.BatchProvider = (*Client)(nil)

// New creates a new Anthropic batch client.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &provider.ProviderError{Op: "New", Provider: providerName, Err: err}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.timeout()},
		logger: logger,
	}, nil
}

func (c *Client) Name() string { return providerName }

// batchRequest is one entry in the submission envelope.
type batchRequest struct {
	CustomID string        `json:"custom_id"`
	Params   messageParams `json:"params"`
}

type messageParams struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type batchEnvelope struct {
	Requests []batchRequest `json:"requests"`
}

// batchResponse is the subset of the batch resource the coordinator reads.
type batchResponse struct {
	ID               string `json:"id"`
	ProcessingStatus string `json:"processing_status"`
	ResultsURL       string `json:"results_url,omitempty"`
	RequestCounts    struct {
		Processing int `json:"processing"`
		Succeeded  int `json:"succeeded"`
		Errored    int `json:"errored"`
		Canceled   int `json:"canceled"`
		Expired    int `json:"expired"`
	} `json:"request_counts"`
}

// CreateBatch uploads the envelope and creates the remote batch.
func (c *Client) CreateBatch(ctx context.Context, reqs []provider.Request) (string, error) {
	if len(reqs) == 0 {
		return "", &provider.ProviderError{Op: "CreateBatch", Provider: providerName, Err: provider.ErrEmptyBatch}
	}

	env := batchEnvelope{Requests: make([]batchRequest, 0, len(reqs))}
	for _, r := range reqs {
		model := r.Model
		if model == "" {
			model = DefaultModel
		}
		maxTokens := r.MaxTokens
		if maxTokens <= 0 {
			maxTokens = DefaultMaxTokens
		}
		env.Requests = append(env.Requests, batchRequest{
			CustomID: r.CustomID,
			Params: messageParams{
				Model:     model,
				MaxTokens: maxTokens,
				Messages:  []message{{Role: "user", Content: r.Prompt}},
			},
		})
	}

	body, err := json.Marshal(env)
	if err != nil {
		return "", &provider.ProviderError{Op: "CreateBatch", Provider: providerName, Err: err}
	}

	var resp batchResponse
	if err := c.doJSON(ctx, http.MethodPost, c.cfg.baseURL()+"/v1/messages/batches", body, &resp); err != nil {
		return "", &provider.ProviderError{Op: "CreateBatch", Provider: providerName, Err: err}
	}
	if resp.ID == "" {
		return "", &provider.ProviderError{Op: "CreateBatch", Provider: providerName, Err: fmt.Errorf("response has no batch id")}
	}

	c.logger.Debug("Created message batch",
		zap.String("batch_id", resp.ID),
		zap.Int("requests", len(reqs)),
		zap.String("processing_status", resp.ProcessingStatus))

	return resp.ID, nil
}

// GetStatus queries the batch resource and classifies its state.
func (c *Client) GetStatus(ctx context.Context, jobID string) (*provider.StatusResult, error) {
	raw, err := c.doRaw(ctx, http.MethodGet, c.cfg.baseURL()+"/v1/messages/batches/"+jobID, nil)
	if err != nil {
		return nil, &provider.ProviderError{Op: "GetStatus", Provider: providerName, JobID: jobID, Err: err}
	}

	var resp batchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &provider.ProviderError{Op: "GetStatus", Provider: providerName, JobID: jobID, Err: fmt.Errorf("parse status response: %w", err)}
	}

	st := classifyStatus(resp)
	result := &provider.StatusResult{
		Status:   st,
		Terminal: st.Terminal(),
		Raw:      raw,
	}
	if st == batch.StatusFailed {
		result.ErrorDetail = fmt.Sprintf("succeeded=%d errored=%d canceled=%d expired=%d",
			resp.RequestCounts.Succeeded, resp.RequestCounts.Errored,
			resp.RequestCounts.Canceled, resp.RequestCounts.Expired)
	}
	return result, nil
}

// classifyStatus maps the provider's processing_status and counts onto the
// coordinator's finite status set.
func classifyStatus(resp batchResponse) batch.JobStatus {
	switch resp.ProcessingStatus {
	case "in_progress", "canceling":
		return batch.StatusPending
	case "ended":
		counts := resp.RequestCounts
		if counts.Succeeded == 0 && counts.Canceled > 0 && counts.Errored == 0 && counts.Expired == 0 {
			return batch.StatusCancelled
		}
		if resp.ResultsURL == "" || counts.Succeeded == 0 {
			return batch.StatusFailed
		}
		return batch.StatusCompleted
	default:
		return batch.StatusUnknown
	}
}

// FetchResults downloads and normalizes the result stream of an ended batch.
//
// Lines that fail to parse are skipped with a diagnostic; a single bad line
// must not abort the whole retrieval.
func (c *Client) FetchResults(ctx context.Context, jobID string) ([]batch.ResultRecord, error) {
	raw, err := c.doRaw(ctx, http.MethodGet, c.cfg.baseURL()+"/v1/messages/batches/"+jobID, nil)
	if err != nil {
		return nil, &provider.ProviderError{Op: "FetchResults", Provider: providerName, JobID: jobID, Err: err}
	}
	var resp batchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &provider.ProviderError{Op: "FetchResults", Provider: providerName, JobID: jobID, Err: fmt.Errorf("parse status response: %w", err)}
	}
	if resp.ResultsURL == "" {
		return nil, &provider.ProviderError{Op: "FetchResults", Provider: providerName, JobID: jobID, Err: fmt.Errorf("batch has no results_url")}
	}

	stream, err := c.doStream(ctx, http.MethodGet, resp.ResultsURL)
	if err != nil {
		return nil, &provider.ProviderError{Op: "FetchResults", Provider: providerName, JobID: jobID, Err: err}
	}
	defer func() { _ = stream.Close() }()

	var records []batch.ResultRecord
	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, 64*1024), maxResultLineBytes)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		rec, err := NormalizeLine(line)
		if err != nil {
			c.logger.Warn("Skipping unparseable result line",
				zap.String("batch_id", jobID),
				zap.Int("line", lineNo),
				zap.Error(err))
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, &provider.ProviderError{Op: "FetchResults", Provider: providerName, JobID: jobID, Err: fmt.Errorf("read results stream: %w", err)}
	}

	return records, nil
}

// CancelBatch requests cancellation of the remote batch.
func (c *Client) CancelBatch(ctx context.Context, jobID string) error {
	if _, err := c.doRaw(ctx, http.MethodPost, c.cfg.baseURL()+"/v1/messages/batches/"+jobID+"/cancel", nil); err != nil {
		return &provider.ProviderError{Op: "CancelBatch", Provider: providerName, JobID: jobID, Err: err}
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, url string, body []byte) (*http.Request, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", c.cfg.apiVersion())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, url string, body []byte, out any) error {
	raw, err := c.doRaw(ctx, method, url, body)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (c *Client) doRaw(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	req, err := c.newRequest(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if err := classifyHTTPStatus(resp.StatusCode, b); err != nil {
		return nil, err
	}
	return b, nil
}

// doStream returns the response body for a streaming read. The caller
// closes it.
func (c *Client) doStream(ctx context.Context, method, url string) (io.ReadCloser, error) {
	req, err := c.newRequest(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return nil, classifyHTTPStatus(resp.StatusCode, b)
	}
	return resp.Body, nil
}

func classifyHTTPStatus(code int, body []byte) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: %s", provider.ErrUnauthorized, firstLine(body))
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: %s", provider.ErrNotFound, firstLine(body))
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", provider.ErrThrottled, firstLine(body))
	case code >= 500:
		return fmt.Errorf("%w: http %d: %s", provider.ErrUnavailable, code, firstLine(body))
	default:
		return fmt.Errorf("http %d: %s", code, firstLine(body))
	}
}

func firstLine(b []byte) string {
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		b = b[:i]
	}
	if len(b) > 512 {
		b = b[:512]
	}
	return string(b)
}
