package market

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ethwallet/pkg/fetch"
	"ethwallet/pkg/models"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noWait() fetch.Option {
	return fetch.WithSleep(func(context.Context, time.Duration) error { return nil })
}

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return NewClient(server.URL+"/api", server.URL+"/cg", fetch.New(noWait()), nil)
}

func TestPriceHistory_Proxy(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/market/price-data", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"prices":[[1700000000000,3800],[1700086400000,3850]],"currentPrice":3860}`))
	})
	c := newTestClient(t, mux)

	h, err := c.PriceHistory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceProxy, h.Source)
	require.Len(t, h.Prices, 2)
	assert.Equal(t, 3860.0, h.CurrentPrice)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), h.Prices[0].Time)
}

func TestPriceHistory_FallsBackToCoinGecko(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/market/price-data", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"gone"}`, http.StatusNotFound)
	})
	mux.HandleFunc("/cg/coins/ethereum/market_chart", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currency"))
		_, _ = w.Write([]byte(`{"prices":[[1700000000000,2000],[1700086400000,2100],[1700172800000,2200]]}`))
	})
	c := newTestClient(t, mux)

	h, err := c.PriceHistory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceCoinGecko, h.Source)
	assert.Equal(t, 2200.0, h.CurrentPrice)
	assert.InDelta(t, 10.0, PriceChange(h.Prices), 1e-9)
}

func TestPriceHistory_AllFail(t *testing.T) {
	c := newTestClient(t, http.NewServeMux())
	_, err := c.PriceHistory(context.Background())
	assert.Error(t, err)
}

func TestSpotPrice(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/cg/simple/price", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]map[string]float64{"ethereum": {"usd": 2500.50}})
	})
	c := newTestClient(t, mux)

	price, err := c.SpotPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2500.50, price)
}

func TestNews(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/market/news", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"news":["Pectra ships"]}`))
	})
	c := newTestClient(t, mux)
	assert.Equal(t, []string{"Pectra ships"}, c.News(context.Background()))
}

func TestNews_Fallback(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/market/news", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"news":[]}`))
	})
	c := newTestClient(t, mux)
	assert.Equal(t, FallbackNews, c.News(context.Background()))

	broken := newTestClient(t, http.NewServeMux())
	news := broken.News(context.Background())
	assert.Len(t, news, 4)
	news[0] = "mutated"
	assert.NotEqual(t, "mutated", FallbackNews[0])
}

func TestAskAI(t *testing.T) {
	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/api/market/ai-chat", func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]string
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&body)) {
			return
		}
		assert.Equal(t, PredictionQuestion, body["question"])
		_, _ = w.Write([]byte(`{"answer":"24h Prediction: $3,100\n7d Prediction: $3,300\nConfidence: 70%"}`))
	})
	c := newTestClient(t, mux)

	answer, err := c.AskAI(context.Background(), PredictionQuestion)
	require.NoError(t, err)
	assert.Contains(t, answer, "Confidence: 70%")
	assert.Equal(t, 1, calls)
}

func TestAskAI_Errors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/market/ai-chat", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Server misconfiguration: missing DEEPSEEK_API_KEY"}`))
	})
	c := newTestClient(t, mux)

	_, err := c.AskAI(context.Background(), "hello")
	assert.ErrorContains(t, err, "missing DEEPSEEK_API_KEY")

	_, err = c.AskAI(context.Background(), "  ")
	assert.True(t, errors.Is(err, models.ErrInvalidInput))
}

func TestPriceChangeAndPortfolio(t *testing.T) {
	assert.Equal(t, 0.0, PriceChange(nil))
	assert.Equal(t, 0.0, PriceChange([]models.PricePoint{{USD: 0}, {USD: 10}}))
	assert.Equal(t, 5000.0, PortfolioValue(2, 2500))
}
