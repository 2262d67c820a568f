// Package market reads ETH price history and news and relays questions to the
// market assistant. Read calls degrade instead of failing the dashboard.
package market

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ethwallet/pkg/models"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	SourceProxy     = "proxy"
	SourceCoinGecko = "coingecko"

	// PredictionQuestion is the canned question that asks the assistant for a forecast block.
	PredictionQuestion = "What is your ETH price prediction?"
)

// FallbackNews is shown when the news endpoint fails or returns nothing.
var FallbackNews = []string{
	"Ethereum 2.0 upgrades continue to roll out.",
	"SEC delays decision on ETH ETF.",
	"Layer 2 adoption is growing rapidly.",
	"Major DeFi protocols announce new integrations.",
}

// Getter is the retrying JSON fetch used for read calls.
type Getter interface {
	Get(ctx context.Context, url string) (json.RawMessage, error)
}

type Client struct {
	baseURL      string
	coinGeckoURL string
	getter       Getter
	httpClient   *http.Client
	logger       *zap.Logger
}

func NewClient(baseURL, coinGeckoURL string, g Getter, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		coinGeckoURL: strings.TrimRight(coinGeckoURL, "/"),
		getter:       g,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		logger:       logger,
	}
}

type priceData struct {
	Prices       [][2]float64 `json:"prices"`
	CurrentPrice float64      `json:"currentPrice"`
}

// PriceHistory reads the proxy's price series and falls back to CoinGecko's
// 30-day market chart.
func (c *Client) PriceHistory(ctx context.Context) (models.PriceHistory, error) {
	h, err := c.proxyHistory(ctx)
	if err == nil {
		return h, nil
	}
	c.logger.Warn("price proxy failed, trying CoinGecko", zap.Error(err))

	h, cgErr := c.coinGeckoHistory(ctx)
	if cgErr != nil {
		return models.PriceHistory{}, errors.Wrap(cgErr, "price history")
	}
	return h, nil
}

func (c *Client) proxyHistory(ctx context.Context) (models.PriceHistory, error) {
	raw, err := c.getter.Get(ctx, c.baseURL+"/market/price-data")
	if err != nil {
		return models.PriceHistory{}, err
	}
	var pd priceData
	if err := json.Unmarshal(raw, &pd); err != nil {
		return models.PriceHistory{}, errors.Wrap(err, "decode price data")
	}
	if len(pd.Prices) == 0 {
		return models.PriceHistory{}, errors.New("empty price data")
	}
	h := toHistory(pd.Prices, SourceProxy)
	if pd.CurrentPrice > 0 {
		h.CurrentPrice = pd.CurrentPrice
	}
	return h, nil
}

func (c *Client) coinGeckoHistory(ctx context.Context) (models.PriceHistory, error) {
	url := fmt.Sprintf("%s/coins/ethereum/market_chart?vs_currency=usd&days=30&interval=daily", c.coinGeckoURL)
	raw, err := c.getter.Get(ctx, url)
	if err != nil {
		return models.PriceHistory{}, err
	}
	var pd priceData
	if err := json.Unmarshal(raw, &pd); err != nil {
		return models.PriceHistory{}, errors.Wrap(err, "decode market chart")
	}
	if len(pd.Prices) == 0 {
		return models.PriceHistory{}, errors.New("empty market chart")
	}
	return toHistory(pd.Prices, SourceCoinGecko), nil
}

func toHistory(pairs [][2]float64, source string) models.PriceHistory {
	points := make([]models.PricePoint, len(pairs))
	for i, p := range pairs {
		points[i] = models.PricePoint{Time: time.UnixMilli(int64(p[0])).UTC(), USD: p[1]}
	}
	return models.PriceHistory{Prices: points, CurrentPrice: points[len(points)-1].USD, Source: source}
}

// SpotPrice fetches the current ETH price in USD from CoinGecko.
func (c *Client) SpotPrice(ctx context.Context) (float64, error) {
	raw, err := c.getter.Get(ctx, fmt.Sprintf("%s/simple/price?ids=ethereum&vs_currencies=usd", c.coinGeckoURL))
	if err != nil {
		return 0, err
	}
	var result map[string]map[string]float64
	if err := json.Unmarshal(raw, &result); err != nil {
		return 0, errors.Wrap(err, "decode spot price")
	}
	price, ok := result["ethereum"]["usd"]
	if !ok {
		return 0, errors.New("spot price missing from response")
	}
	return price, nil
}

// News returns headlines, or FallbackNews when none can be read.
func (c *Client) News(ctx context.Context) []string {
	raw, err := c.getter.Get(ctx, c.baseURL+"/market/news")
	if err != nil {
		c.logger.Warn("news unavailable", zap.Error(err))
		return fallbackNews()
	}
	var body struct {
		News []string `json:"news"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || len(body.News) == 0 {
		return fallbackNews()
	}
	return body.News
}

func fallbackNews() []string {
	return append([]string(nil), FallbackNews...)
}

// AskAI posts question to the assistant and returns its free-text answer.
// It makes a single attempt.
func (c *Client) AskAI(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", errors.Wrap(models.ErrInvalidInput, "empty question")
	}
	payload, err := json.Marshal(map[string]string{"question": question})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/market/ai-chat", bytes.NewReader(payload))
	if err != nil {
		return "", errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "ai chat")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "read ai chat response")
	}
	var out struct {
		Answer string `json:"answer"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", errors.Wrapf(err, "decode ai chat response (status %d)", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		msg := out.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", errors.Errorf("ai chat: %s", msg)
	}
	return out.Answer, nil
}

// PriceChange is the percentage change from the first to the last point.
func PriceChange(prices []models.PricePoint) float64 {
	if len(prices) < 2 || prices[0].USD == 0 {
		return 0
	}
	first, last := prices[0].USD, prices[len(prices)-1].USD
	return (last - first) / first * 100
}

// PortfolioValue is the USD value of balanceEth at price.
func PortfolioValue(balanceEth, price float64) float64 {
	return balanceEth * price
}
