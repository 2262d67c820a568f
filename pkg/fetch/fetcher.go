// Package fetch implements a retrying HTTP GET for JSON APIs that may throttle
// or time out.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"ethwallet/pkg/logger"
	"ethwallet/pkg/models"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultMaxAttempts    = 3
	defaultBaseDelay      = 1 * time.Second
	defaultAttemptTimeout = 4 * time.Second

	rateLimitMarker = "rate limit"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Fetcher performs GET requests with a per-attempt timeout and exponential
// backoff between retryable failures. Attempts of one call are sequential.
type Fetcher struct {
	client         *http.Client
	maxAttempts    int
	baseDelay      time.Duration
	attemptTimeout time.Duration
	limiter        *rate.Limiter
	sleep          SleepFunc
	logger         *zap.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

func WithMaxAttempts(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxAttempts = n
		}
	}
}

func WithBaseDelay(d time.Duration) Option {
	return func(f *Fetcher) {
		f.baseDelay = d
	}
}

func WithAttemptTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.attemptTimeout = d
		}
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.client = c
	}
}

// WithRateLimit spaces attempts so that at most rps requests start per second.
func WithRateLimit(rps float64) Option {
	return func(f *Fetcher) {
		if rps > 0 {
			f.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithSleep replaces the backoff sleep, mainly so tests can record delays.
func WithSleep(s SleepFunc) Option {
	return func(f *Fetcher) {
		f.sleep = s
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger.OrNop(l)
	}
}

func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:         &http.Client{},
		maxAttempts:    defaultMaxAttempts,
		baseDelay:      defaultBaseDelay,
		attemptTimeout: defaultAttemptTimeout,
		sleep:          sleepCtx,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ExhaustedError is returned when a fetch gives up, either after the last
// allowed attempt or immediately on a non-retryable failure.
type ExhaustedError struct {
	URL      string
	Attempts int
	// LastBody is the body of the last HTTP response received, if any.
	LastBody json.RawMessage
	// RateLimitBody is the most recent body that carried the rate-limit
	// marker, even when a later attempt failed differently.
	RateLimitBody json.RawMessage
	Err           error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

func (e *ExhaustedError) Is(target error) bool { return target == models.ErrFetchExhausted }

// RateLimited reports whether any attempt was answered with a rate-limit marker.
func (e *ExhaustedError) RateLimited() bool {
	return len(e.RateLimitBody) > 0 || IsRateLimited(e.LastBody)
}

// Evidence is the body that best explains the failure: the rate-limited
// response when there was one, otherwise the last body received.
func (e *ExhaustedError) Evidence() json.RawMessage {
	if IsRateLimited(e.LastBody) || len(e.RateLimitBody) == 0 {
		return e.LastBody
	}
	return e.RateLimitBody
}

type attemptError struct {
	err       error
	retryable bool
	body      []byte
}

// Get fetches url and returns its JSON body. Any failure is an *ExhaustedError.
func (f *Fetcher) Get(ctx context.Context, url string) (json.RawMessage, error) {
	var last attemptError
	var limited []byte
	attempts := 0
	for attempt := 0; attempt < f.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := f.baseDelay * time.Duration(1<<uint(attempt-1))
			if err := f.sleep(ctx, delay); err != nil {
				return nil, f.exhausted(url, attempts, last, limited, err)
			}
		}
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				return nil, f.exhausted(url, attempts, last, limited, err)
			}
		}

		attempts++
		body, aerr := f.attempt(ctx, url)
		if aerr == nil {
			return body, nil
		}
		last = *aerr
		if IsRateLimited(aerr.body) {
			limited = aerr.body
		}
		f.logger.Debug("fetch attempt failed",
			zap.String("url", url),
			zap.Int("attempt", attempts),
			zap.Bool("retryable", aerr.retryable),
			zap.Error(aerr.err))

		if !aerr.retryable || ctx.Err() != nil {
			break
		}
	}
	return nil, f.exhausted(url, attempts, last, limited, last.err)
}

func (f *Fetcher) exhausted(url string, attempts int, last attemptError, limited []byte, err error) error {
	if err == nil {
		err = errors.New("no attempt was made")
	}
	f.logger.Warn("fetch gave up", zap.String("url", url), zap.Int("attempts", attempts), zap.Error(err))
	return &ExhaustedError{URL: url, Attempts: attempts, LastBody: last.body, RateLimitBody: limited, Err: err}
}

func (f *Fetcher) attempt(ctx context.Context, url string) (json.RawMessage, *attemptError) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &attemptError{err: errors.Wrap(err, "build request")}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &attemptError{err: err, retryable: isTransient(ctx, attemptCtx, err)}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &attemptError{err: errors.Wrap(err, "read body"), retryable: isTransient(ctx, attemptCtx, err)}
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return nil, &attemptError{
			err:       errors.Errorf("http status %d", resp.StatusCode),
			retryable: true,
			body:      jsonOrNil(body),
		}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &attemptError{err: errors.Errorf("http status %d", resp.StatusCode), body: jsonOrNil(body)}
	}

	if !json.Valid(body) {
		return nil, &attemptError{err: errors.New("malformed JSON response")}
	}
	if IsRateLimited(body) {
		return nil, &attemptError{err: errors.New(rateLimitMarker), retryable: true, body: body}
	}
	return json.RawMessage(body), nil
}

// isTransient is true for per-attempt timeouts and network errors, false
// when the caller's own context ended.
func isTransient(parent, attemptCtx context.Context, err error) bool {
	if parent.Err() != nil {
		return false
	}
	if attemptCtx.Err() != nil {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}

func jsonOrNil(body []byte) json.RawMessage {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || !json.Valid(body) {
		return nil
	}
	return json.RawMessage(body)
}

type markerFields struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// IsRateLimited reports whether an explorer-style body signals throttling.
// The message field is checked, and for failed responses a string result too.
func IsRateLimited(body []byte) bool {
	if len(body) == 0 {
		return false
	}
	var m markerFields
	if err := json.Unmarshal(body, &m); err != nil {
		return false
	}
	if strings.Contains(strings.ToLower(m.Message), rateLimitMarker) {
		return true
	}
	if m.Status == "0" && len(m.Result) > 0 && m.Result[0] == '"' {
		var s string
		if json.Unmarshal(m.Result, &s) == nil {
			return strings.Contains(strings.ToLower(s), rateLimitMarker)
		}
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
