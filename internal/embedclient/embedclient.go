// Package embedclient talks to an external embedding provider over
// HTTP. Generalized from the teacher's internal/embed package (the
// Provider interface and HTTP client shape come from
// internal/embed/client/local.go); the teacher's plain sequential
// batching (internal/embed/batched.go) is extended with retry/backoff
// and rate-limit adaptation, which the teacher's embedding client did
// not need since it always talked to a local subprocess.
package embedclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"
)

// Mode selects whether text is embedded as a search query or as
// passage content, since some embedding models distinguish the two.
type Mode string

const (
	ModeQuery   Mode = "query"
	ModePassage Mode = "passage"
)

// Client embeds text batches against an HTTP embedding endpoint.
type Client struct {
	Endpoint   string
	Model      string
	Dimensions int
	HTTPClient *http.Client
	MaxRetries int
	BaseDelay  time.Duration
}

// New builds a Client with sensible retry defaults.
func New(endpoint, model string, dimensions int) *Client {
	return &Client{
		Endpoint:   endpoint,
		Model:      model,
		Dimensions: dimensions,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		MaxRetries: 5,
		BaseDelay:  250 * time.Millisecond,
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Mode  Mode     `json:"mode"`
	Texts []string `json:"texts"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed sends one batch of texts and retries transient failures
// (5xx, 429, connection errors) with exponential backoff, honoring a
// Retry-After header when the server provides one.
func (c *Client) Embed(ctx context.Context, texts []string, mode Mode) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var lastErr error
	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoff(attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		embeddings, retryAfter, err := c.tryEmbed(ctx, texts, mode)
		if err == nil {
			return embeddings, nil
		}
		lastErr = err
		if !isRetryable(err) {
			return nil, err
		}
		if retryAfter > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryAfter):
			}
		}
	}
	return nil, fmt.Errorf("embed failed after %d attempts: %w", c.MaxRetries+1, lastErr)
}

func (c *Client) backoff(attempt int) time.Duration {
	mult := math.Pow(2, float64(attempt-1))
	return time.Duration(float64(c.BaseDelay) * mult)
}

type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func isRetryable(err error) bool {
	_, ok := err.(*retryableError)
	return ok
}

func (c *Client) tryEmbed(ctx context.Context, texts []string, mode Mode) ([][]float32, time.Duration, error) {
	body, err := json.Marshal(embedRequest{Model: c.Model, Mode: mode, Texts: texts})
	if err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, 0, &retryableError{fmt.Errorf("embedding request failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, retryAfterDuration(resp.Header.Get("Retry-After")), &retryableError{
			fmt.Errorf("embedding server returned status %d", resp.StatusCode),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("embedding server returned status %d", resp.StatusCode)
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, 0, fmt.Errorf("failed to decode embedding response: %w", err)
	}
	return out.Embeddings, 0, nil
}

func retryAfterDuration(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := time.ParseDuration(header + "s"); err == nil {
		return secs
	}
	return 0
}

// Progress reports batch completion for CLI progress bars.
type Progress struct {
	BatchIndex      int
	TotalBatches    int
	ProcessedChunks int
	TotalChunks     int
}

// EmbedBatched splits texts into batchSize-sized batches and embeds
// them sequentially, reporting Progress on progressCh (nil to
// disable), generalized from the teacher's EmbedWithProgress.
func EmbedBatched(ctx context.Context, c *Client, texts []string, mode Mode, batchSize int, progressCh chan<- Progress) ([][]float32, error) {
	total := len(texts)
	if total == 0 {
		return nil, nil
	}
	numBatches := (total + batchSize - 1) / batchSize
	results := make([][]float32, total)

	processed := 0
	for i := 0; i < numBatches; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		start := i * batchSize
		end := start + batchSize
		if end > total {
			end = total
		}

		embeddings, err := c.Embed(ctx, texts[start:end], mode)
		if err != nil {
			return nil, fmt.Errorf("batch %d/%d failed: %w", i+1, numBatches, err)
		}
		copy(results[start:end], embeddings)

		processed += end - start
		if progressCh != nil {
			progressCh <- Progress{BatchIndex: i + 1, TotalBatches: numBatches, ProcessedChunks: processed, TotalChunks: total}
		}
	}
	return results, nil
}
