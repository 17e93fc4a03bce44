package market_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cryptomonitor/tracker/internal/cache"
	"github.com/cryptomonitor/tracker/internal/market"
)

type fakeFetcher struct {
	quotes []market.Quote
	err    error
	calls  int
}

func (f *fakeFetcher) Markets(ctx context.Context) ([]market.Quote, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.quotes, nil
}

func testQuotes() []market.Quote {
	return []market.Quote{
		{Coin: "bitcoin", Name: "Bitcoin", PriceUSD: decimal.RequireFromString("67000"), Sentiment: "Neutral"},
		{Coin: "ethereum", Name: "Ethereum", PriceUSD: decimal.RequireFromString("3100"), Sentiment: "Neutral"},
	}
}

func TestService_SnapshotFetchesAndCaches(t *testing.T) {
	f := &fakeFetcher{quotes: testQuotes()}
	svc := market.NewService(f, cache.NewDefault(), time.Minute, zap.NewNop())

	snap, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	require.True(t, snap.Live)

	q, ok := snap.Get("bitcoin")
	require.True(t, ok)
	assert.True(t, q.PriceUSD.Equal(decimal.RequireFromString("67000")))

	// second call is served from the cache
	snap2, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.True(t, snap2.Has("ethereum"))
	assert.Equal(t, 1, f.calls)
}

func TestService_SnapshotFallsBackToStale(t *testing.T) {
	f := &fakeFetcher{quotes: testQuotes()}
	c := cache.NewDefault()
	svc := market.NewService(f, c, time.Minute, zap.NewNop())

	_, err := svc.Snapshot(context.Background())
	require.NoError(t, err)

	// upstream goes down and the cached copy expires
	f.err = errors.New("502 bad gateway")
	c.Purge()

	snap, err := svc.Snapshot(context.Background())
	require.Error(t, err)
	require.NotNil(t, snap)
	assert.False(t, snap.Live)
	assert.True(t, snap.Has("bitcoin"), "the last good quotes survive the outage")
}

func TestService_SnapshotEmptyWhenNeverFetched(t *testing.T) {
	f := &fakeFetcher{err: errors.New("down")}
	svc := market.NewService(f, cache.NewDefault(), time.Minute, zap.NewNop())

	snap, err := svc.Snapshot(context.Background())
	require.Error(t, err)
	require.NotNil(t, snap)
	assert.False(t, snap.Live)
	assert.Empty(t, snap.Quotes)
}

func TestSnapshot_Search(t *testing.T) {
	snap := &market.Snapshot{Quotes: map[string]market.Quote{
		"bitcoin":      {Coin: "bitcoin"},
		"bitcoin-cash": {Coin: "bitcoin-cash"},
		"ethereum":     {Coin: "ethereum"},
	}}

	results := snap.Search("BITCOIN")
	assert.Len(t, results, 2)
	assert.Contains(t, results, "bitcoin-cash")

	assert.Empty(t, snap.Search("dogecoin"))
}

func TestNormalizeCoin(t *testing.T) {
	assert.Equal(t, "bitcoin", market.NormalizeCoin("  Bitcoin "))
	assert.Equal(t, "staked-ether", market.NormalizeCoin("Staked-Ether"))
}

func TestDisplayName(t *testing.T) {
	tt := []struct {
		coin string
		want string
	}{
		{"bitcoin", "Bitcoin"},
		{"bitcoin-cash", "Bitcoin Cash"},
		{"staked_ether", "Staked Ether"},
		{"usd-coin", "Usd Coin"},
	}

	for _, tc := range tt {
		t.Run(tc.coin, func(t *testing.T) {
			assert.Equal(t, tc.want, market.DisplayName(tc.coin))
		})
	}
}
