package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jonwraymond/sentimentd/resilience"
)

// Classifier returns raw label scores for one text.
//
// Contract:
// - Classify returns every label score the model produced, not only the
// best one.
// - Implementations must be safe for concurrent use.
type Classifier interface {
	Classify(ctx context.Context, text string) ([]Score, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, text string) ([]Score, error)

// Classify calls f.
func (f ClassifierFunc) Classify(ctx context.Context, text string) ([]Score, error) {
	return f(ctx, text)
}

// HTTPClassifierConfig configures the remote classifier.
type HTTPClassifierConfig struct {
	// Endpoint is the text-classification URL.
	Endpoint string

	// Token is sent as a bearer token when set.
	Token string

	// Timeout bounds each attempt.
	// Default: 10 seconds
	Timeout time.Duration

	// Retry configures retries of server errors.
	Retry resilience.RetryConfig

	// Breaker configures the circuit breaker.
	Breaker resilience.CircuitBreakerConfig

	// MaxConcurrent caps in-flight requests.
	// Default: 10
	MaxConcurrent int
}

// HTTPClassifier calls a HuggingFace-style text-classification server:
// POST {"inputs": text} answered by [[{"label","score"}, ...]].
type HTTPClassifier struct {
	endpoint string
	token    string
	client   *http.Client
	executor *resilience.Executor
}

// NewHTTPClassifier creates a remote classifier. A nil client uses a
// default client.
func NewHTTPClassifier(cfg HTTPClassifierConfig, client *http.Client) *HTTPClassifier {
	if client == nil {
		client = &http.Client{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	// Rejected requests are the caller's fault and must not open the breaker.
	if cfg.Breaker.IsFailure == nil {
		cfg.Breaker.IsFailure = func(err error) bool { return err != nil && !errors.Is(err, ErrModelRejected) }
	}

	return &HTTPClassifier{
		endpoint: cfg.Endpoint,
		token:    cfg.Token,
		client:   client,
		executor: resilience.NewExecutor(
			resilience.WithBulkhead(resilience.NewBulkhead(resilience.BulkheadConfig{
				MaxConcurrent: cfg.MaxConcurrent,
				MaxWait:       cfg.Timeout,
			})),
			resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(cfg.Breaker)),
			resilience.WithRetry(resilience.NewRetry(cfg.Retry)),
			resilience.WithTimeout(cfg.Timeout),
		),
	}
}

// Healthy reports whether the circuit to the model server is not open.
func (c *HTTPClassifier) Healthy() bool {
	return c.executor.Breaker().State() != resilience.StateOpen
}

// Classify sends text to the model server.
func (c *HTTPClassifier) Classify(ctx context.Context, text string) ([]Score, error) {
	body, err := json.Marshal(map[string]string{"inputs": text})
	if err != nil {
		return nil, fmt.Errorf("sentiment: marshal request: %w", err)
	}

	// Timed-out attempts may still finish in the background.
	var (
		mu     sync.Mutex
		scores []Score
	)
	err = c.executor.Execute(ctx, func(ctx context.Context) error {
		got, err := c.do(ctx, body)
		if err != nil {
			return err
		}
		mu.Lock()
		scores = got
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	mu.Lock()
	defer mu.Unlock()
	return scores, nil
}

func (c *HTTPClassifier) do(ctx context.Context, body []byte) ([]Score, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, resilience.Permanent(fmt.Errorf("sentiment: create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sentiment: call model server: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("sentiment: read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		detail := strings.TrimSpace(string(payload))
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, resilience.Permanent(fmt.Errorf("%w: status %d: %s", ErrModelRejected, resp.StatusCode, detail))
		}
		return nil, fmt.Errorf("%w: status %d: %s", ErrModelRequest, resp.StatusCode, detail)
	}

	scores, err := decodeScores(payload)
	if err != nil {
		return nil, resilience.Permanent(err)
	}
	return scores, nil
}

// decodeScores accepts both the nested [[...]] form returned for a single
// input and a flat [...] list.
func decodeScores(payload []byte) ([]Score, error) {
	var nested [][]Score
	if err := json.Unmarshal(payload, &nested); err == nil {
		if len(nested) == 0 || len(nested[0]) == 0 {
			return nil, ErrEmptyPrediction
		}
		return nested[0], nil
	}

	var flat []Score
	if err := json.Unmarshal(payload, &flat); err != nil {
		return nil, fmt.Errorf("sentiment: decode response: %w", err)
	}
	if len(flat) == 0 {
		return nil, ErrEmptyPrediction
	}
	return flat, nil
}

var _ Classifier = (*HTTPClassifier)(nil)
