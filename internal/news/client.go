// Package news fetches crypto headlines and scores their sentiment.
package news

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

var ErrNewsUpstreamFailed = errors.New("news upstream failed")

const DefaultBaseURL = "https://newsapi.org"

const newsQuery = "cryptocurrency bitcoin ethereum"
const newsPageSize = "20"

const fetchAttempts = 3

type Article struct {
	Title       string `json:"title"`
	Source      string `json:"source"`
	PublishedAt string `json:"published_at"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Sentiment   Score  `json:"sentiment"`
}

// Client talks to the NewsAPI everything endpoint.
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

// Articles fetches the latest crypto headlines, newest first, each one
// scored by the keyword sentiment heuristic.
func (c *Client) Articles(ctx context.Context) ([]Article, error) {
	var body []byte

	err := retry.Do(
		func() error {
			b, err := c.fetch(ctx)
			if err != nil {
				c.log.Warn("news fetch attempt failed", zap.Error(err))
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
		return nil, errors.Wrap(ErrNewsUpstreamFailed, err.Error())
	}

	return parseArticles(body), nil
}

func (c *Client) fetch(ctx context.Context) ([]byte, error) {
	q := url.Values{}
	q.Set("q", newsQuery)
	q.Set("apiKey", c.apiKey)
	q.Set("language", "en")
	q.Set("sortBy", "publishedAt")
	q.Set("pageSize", newsPageSize)

	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, c.baseURL+"/v2/everything?"+q.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "could not build news request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "news request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("news request returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "could not read news response")
	}

	return body, nil
}

func parseArticles(body []byte) []Article {
	articles := []Article{}

	gjson.GetBytes(body, "articles").ForEach(func(_, a gjson.Result) bool {
		title := a.Get("title").String()
		description := a.Get("description").String()

		articles = append(articles, Article{
			Title:       title,
			Source:      a.Get("source.name").String(),
			PublishedAt: a.Get("publishedAt").String(),
			URL:         a.Get("url").String(),
			Description: description,
			Sentiment:   AnalyzeText(title + " " + description),
		})
		return true
	})

	return articles
}
