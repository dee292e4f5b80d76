// Package external holds clients for services outside this process.
package external

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/dermascan-server/internal/domain"
	"github.com/dermascan-server/internal/imaging"
)

// ErrModelUnavailable is returned while the circuit breaker is open.
var ErrModelUnavailable = errors.New("model service unavailable")

// errBadPrediction marks responses that no retry can fix.
var errBadPrediction = errors.New("unusable model response")

const defaultRetryDelay = 500 * time.Millisecond

// InferenceConfig represents configuration for the remote model client
type InferenceConfig struct {
	Endpoint   string        `json:"endpoint"`
	APIKey     string        `json:"api_key"`
	Timeout    time.Duration `json:"timeout"`
	RateLimit  float64       `json:"rate_limit"` // requests per second
	RetryCount int           `json:"retry_count"`
	RetryDelay time.Duration `json:"retry_delay"` // first backoff, doubled per attempt
}

// prediction mirrors one entry of the model service response.
type prediction struct {
	Name string  `json:"name"`
	Prob float64 `json:"prob"`
}

type predictResponse struct {
	Success     bool         `json:"success"`
	Predictions []prediction `json:"predictions"`
	Error       string       `json:"error,omitempty"`
}

// InferenceClient calls a remote image classifier and exposes its softmax
// output as base scores. It implements domain.BaseDistributionProvider.
type InferenceClient struct {
	endpoint   string
	apiKey     string
	retryCount int
	retryDelay time.Duration
	httpClient *http.Client
	rateLimit  *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	logger     *logrus.Logger
}

// NewInferenceClient creates a new model service client
func NewInferenceClient(config InferenceConfig, logger *logrus.Logger) (*InferenceClient, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("model endpoint is required")
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 5
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = defaultRetryDelay
	}

	c := &InferenceClient{
		endpoint:   strings.TrimRight(config.Endpoint, "/"),
		apiKey:     config.APIKey,
		retryCount: config.RetryCount,
		retryDelay: config.RetryDelay,
		httpClient: &http.Client{Timeout: config.Timeout},
		rateLimit:  rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		logger:     logger,
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ModelService",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return c, nil
}

// BaseScores implements domain.BaseDistributionProvider.
func (c *InferenceClient) BaseScores(ctx context.Context, img image.Image) ([]float64, error) {
	if img == nil {
		return nil, domain.ErrInputMissing
	}

	payload, err := imaging.EncodePNG(img)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= c.retryCount; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay << (attempt - 1)
			c.logger.WithError(lastErr).WithFields(logrus.Fields{
				"attempt": attempt,
				"delay":   delay,
			}).Debug("Retrying model request")

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		result, err := c.breaker.Execute(func() (interface{}, error) {
			return c.predict(ctx, payload)
		})
		if err == nil {
			return result.([]float64), nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, errBadPrediction) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("model request failed after %d attempts: %w", c.retryCount+1, lastErr)
}

func (c *InferenceClient) predict(ctx context.Context, payload []byte) ([]float64, error) {
	if err := c.rateLimit.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("image", "upload.png")
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if _, err := part.Write(payload); err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/predict", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed predictResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if !parsed.Success {
		return nil, fmt.Errorf("%w: model service error: %s", errBadPrediction, parsed.Error)
	}

	return scoresFromPredictions(parsed.Predictions)
}

// scoresFromPredictions aligns labelled predictions to the catalog.
// Conditions the service omits score zero.
func scoresFromPredictions(preds []prediction) ([]float64, error) {
	scores := make([]float64, domain.NumConditions)
	for _, p := range preds {
		c, err := domain.ParseCondition(p.Name)
		if err != nil {
			return nil, fmt.Errorf("%w: unknown label %q", errBadPrediction, p.Name)
		}
		if p.Prob < 0 {
			return nil, fmt.Errorf("%w: negative score for %s", errBadPrediction, c)
		}
		scores[c.Index()] = p.Prob
	}
	return scores, nil
}

// State reports the circuit breaker state for health checks.
func (c *InferenceClient) State() string {
	return c.breaker.State().String()
}
