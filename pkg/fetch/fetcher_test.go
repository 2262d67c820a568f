package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ethwallet/pkg/models"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return nil
}

func newTestFetcher(rec *sleepRecorder, opts ...Option) *Fetcher {
	base := []Option{
		WithBaseDelay(100 * time.Millisecond),
		WithAttemptTimeout(50 * time.Millisecond),
		WithSleep(rec.sleep),
	}
	return New(append(base, opts...)...)
}

func TestGet_TimeoutTwiceThenSuccess(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
			return
		}
		_, _ = w.Write([]byte(`{"status":"1","message":"OK","result":[]}`))
	}))
	defer server.Close()

	rec := &sleepRecorder{}
	body, err := newTestFetcher(rec).Get(context.Background(), server.URL)
	require.NoError(t, err)

	assert.JSONEq(t, `{"status":"1","message":"OK","result":[]}`, string(body))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, rec.delays)
}

func TestGet_MalformedJSONAbortsImmediately(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"status": "1", "result": [`))
	}))
	defer server.Close()

	rec := &sleepRecorder{}
	_, err := newTestFetcher(rec).Get(context.Background(), server.URL)
	require.Error(t, err)

	assert.True(t, errors.Is(err, models.ErrFetchExhausted))
	var ex *ExhaustedError
	require.True(t, errors.As(err, &ex))
	assert.Equal(t, 1, ex.Attempts)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Empty(t, rec.delays)
}

func TestGet_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not found"}`))
	}))
	defer server.Close()

	_, err := newTestFetcher(&sleepRecorder{}).Get(context.Background(), server.URL)
	assert.True(t, errors.Is(err, models.ErrFetchExhausted))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGet_RateLimitMarkerExhausts(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"status":"0","message":"Max Rate Limit reached","result":[]}`))
	}))
	defer server.Close()

	rec := &sleepRecorder{}
	_, err := newTestFetcher(rec).Get(context.Background(), server.URL)
	require.Error(t, err)

	var ex *ExhaustedError
	require.True(t, errors.As(err, &ex))
	assert.Equal(t, 3, ex.Attempts)
	assert.True(t, ex.RateLimited())
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Len(t, rec.delays, 2)
}

func TestGet_RateLimitSurvivesLaterTimeout(t *testing.T) {
	const limited = `{"status":"0","message":"NOTOK","result":"Max rate limit reached"}`
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			_, _ = w.Write([]byte(limited))
			return
		}
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	_, err := newTestFetcher(&sleepRecorder{}).Get(context.Background(), server.URL)
	require.Error(t, err)

	var ex *ExhaustedError
	require.True(t, errors.As(err, &ex))
	assert.Equal(t, 3, ex.Attempts)
	assert.Empty(t, ex.LastBody)
	assert.True(t, ex.RateLimited())
	assert.JSONEq(t, limited, string(ex.Evidence()))
}

func TestGet_ServerErrorRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"status":"1","result":"42"}`))
	}))
	defer server.Close()

	body, err := newTestFetcher(&sleepRecorder{}).Get(context.Background(), server.URL)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"1","result":"42"}`, string(body))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGet_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestFetcher(&sleepRecorder{}).Get(ctx, server.URL)
	assert.True(t, errors.Is(err, models.ErrFetchExhausted))
}

func TestIsRateLimited(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"message marker", `{"status":"0","message":"rate limit exceeded"}`, true},
		{"mixed case", `{"message":"Rate LIMIT"}`, true},
		{"result marker on failure", `{"status":"0","message":"NOTOK","result":"Max rate limit reached"}`, true},
		{"ok response", `{"status":"1","message":"OK","result":[]}`, false},
		{"no transactions", `{"status":"0","message":"No transactions found","result":[]}`, false},
		{"not an object", `[1,2]`, false},
		{"empty", ``, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRateLimited([]byte(tt.body)))
		})
	}
}
