package market

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

var ErrUpstreamFailed = errors.New("market data upstream failed")

const DefaultBaseURL = "https://api.coingecko.com"

const marketsPath = "/api/v3/coins/markets?vs_currency=usd&order=market_cap_desc&per_page=50&page=1&sparkline=false"

const fetchAttempts = 3

// Client talks to the CoinGecko markets endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	log        *zap.Logger
}

func NewClient(baseURL, apiKey string, log *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		log:        log,
	}
}

// Markets fetches the top coins by market cap. Transient upstream
// failures are retried with backoff before giving up.
func (c *Client) Markets(ctx context.Context) ([]Quote, error) {
	var body []byte

	err := retry.Do(
		func() error {
			b, err := c.fetch(ctx)
			if err != nil {
				c.log.Warn("markets fetch attempt failed", zap.Error(err))
				return err
			}
			body = b
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(fetchAttempts),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, errors.Wrap(ErrUpstreamFailed, err.Error())
	}

	return parseMarkets(body)
}

func (c *Client) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+marketsPath, nil)
	if err != nil {
		return nil, errors.Wrap(err, "could not build markets request")
	}

	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "markets request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("markets request returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "could not read markets response")
	}

	return body, nil
}

func parseMarkets(body []byte) ([]Quote, error) {
	parsed := gjson.ParseBytes(body)
	if !parsed.IsArray() {
		return nil, errors.Wrap(ErrUpstreamFailed, "markets response is not an array")
	}

	var quotes []Quote
	parsed.ForEach(func(_, coin gjson.Result) bool {
		id := coin.Get("id").String()
		if id == "" {
			return true
		}

		price, err := decimal.NewFromString(coin.Get("current_price").Raw)
		if err != nil {
			price = decimal.NewFromFloat(coin.Get("current_price").Float())
		}

		quotes = append(quotes, Quote{
			Coin:      id,
			Name:      DisplayName(id),
			PriceUSD:  price,
			Change24h: coin.Get("price_change_percentage_24h").Float(),
			MarketCap: coin.Get("market_cap").Float(),
			Volume24h: coin.Get("total_volume").Float(),
			Sentiment: "Neutral",
		})
		return true
	})

	return quotes, nil
}
