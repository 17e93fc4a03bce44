package news

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/jinzhu/copier"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/cryptomonitor/tracker/internal/cache"
)

const articlesCacheKey = "news:articles"

const DefaultTTL = 5 * time.Minute

// ArticlesFetcher is what the service needs from the upstream client.
type ArticlesFetcher interface {
	Articles(ctx context.Context) ([]Article, error)
}

// Service serves headlines out of the cache and the market-wide
// sentiment verdict from the sentiment provider.
type Service struct {
	fetcher   ArticlesFetcher
	sentiment *SentimentProvider
	cache     *cache.Cache
	ttl       time.Duration
	log       *zap.Logger
}

func NewService(fetcher ArticlesFetcher, sp *SentimentProvider, c *cache.Cache, ttl time.Duration, log *zap.Logger) *Service {
	if ttl == 0 {
		ttl = DefaultTTL
	}

	return &Service{
		fetcher:   fetcher,
		sentiment: sp,
		cache:     c,
		ttl:       ttl,
		log:       log,
	}
}

// Latest returns the cached headlines, fetching when the cache is cold.
// An upstream failure yields an empty list and the error.
func (s *Service) Latest(ctx context.Context) ([]Article, error) {
	if b, ok := s.cache.Get(articlesCacheKey); ok {
		var cached []Article
		if err := json.Unmarshal(b, &cached); err == nil {
			return cached, nil
		}
		s.cache.Remove(articlesCacheKey)
	}

	fetched, err := s.fetcher.Articles(ctx)
	if err != nil {
		return []Article{}, err
	}

	if b, err := json.Marshal(fetched); err == nil {
		s.cache.Set(articlesCacheKey, b, s.ttl)
	}

	// hand the caller its own copy, the fetched slice stays internal
	var out []Article
	if err := copier.Copy(&out, &fetched); err != nil {
		return fetched, nil
	}

	return out, nil
}

// MarketSentiment never fails: a provider error degrades to Neutral.
func (s *Service) MarketSentiment(ctx context.Context) Score {
	score, err := s.sentiment.Fetch(ctx)
	if err != nil {
		s.log.Debug("sentiment provider unavailable", zap.Error(err))
		return Neutral()
	}

	return score
}

// SentimentProvider polls an external market sentiment API.
type SentimentProvider struct {
	httpClient *http.Client
	url        string
}

const DefaultSentimentURL = "https://api.sentiment.io/v1/crypto-sentiment"

func NewSentimentProvider(url string) *SentimentProvider {
	if url == "" {
		url = DefaultSentimentURL
	}

	return &SentimentProvider{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		url:        url,
	}
}

func (p *SentimentProvider) Fetch(ctx context.Context) (Score, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return Neutral(), errors.Wrap(err, "could not build sentiment request")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Neutral(), errors.Wrap(err, "sentiment request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Neutral(), errors.Errorf("sentiment request returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Neutral(), errors.Wrap(err, "could not read sentiment response")
	}

	raw := gjson.GetBytes(body, "score")
	if !raw.Exists() {
		return Neutral(), nil
	}

	return ScoreOf(raw.Float()), nil
}
