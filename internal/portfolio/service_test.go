package portfolio_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cryptomonitor/tracker/internal/market"
	"github.com/cryptomonitor/tracker/internal/portfolio"
	"github.com/cryptomonitor/tracker/internal/store"
)

type fakeMarket struct {
	snap *market.Snapshot
	err  error
}

func (f *fakeMarket) Snapshot(ctx context.Context) (*market.Snapshot, error) {
	return f.snap, f.err
}

func liveMarket() *fakeMarket {
	return &fakeMarket{snap: &market.Snapshot{
		Quotes: map[string]market.Quote{
			"bitcoin":  {Coin: "bitcoin", PriceUSD: decimal.RequireFromString("60000")},
			"ethereum": {Coin: "ethereum", PriceUSD: decimal.RequireFromString("3000")},
		},
		Live: true,
	}}
}

func newService(t *testing.T) (*portfolio.Service, *fakeMarket) {
	t.Helper()

	db, err := store.Open(store.InMemory, store.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	m := liveMarket()
	return portfolio.NewService(db, m, zap.NewNop()), m
}

func TestService_AddValidation(t *testing.T) {
	tt := []struct {
		name    string
		coin    string
		amount  string
		price   string
		message string
	}{
		{"missing coin", "", "1", "100", "All fields are required."},
		{"missing amount", "bitcoin", "", "100", "All fields are required."},
		{"missing price", "bitcoin", "1", "", "All fields are required."},
		{"amount not a number", "bitcoin", "abc", "100", "Amount must be a number."},
		{"price not a number", "bitcoin", "1", "abc", "Purchase price must be a number."},
		{"zero amount", "bitcoin", "0", "100", "Amount and purchase price must be positive."},
		{"negative price", "bitcoin", "1", "-5", "Amount and purchase price must be positive."},
		{"unknown coin", "dogecoin", "1", "100", "Invalid cryptocurrency."},
	}

	svc, _ := newService(t)

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.Add(context.Background(), "u1", tc.coin, tc.amount, tc.price)
			require.Error(t, err)
			assert.True(t, errors.Is(err, portfolio.ErrValidation))
			assert.Contains(t, err.Error(), tc.message)
		})
	}
}

func TestService_AddNormalizesCoin(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, "u1", "  Bitcoin ", "0.5", "30000"))

	views, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "bitcoin", views[0].Coin)
	assert.Equal(t, "Bitcoin", views[0].Name)
}

func TestService_ListPricesPositions(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, "u1", "bitcoin", "0.5", "50000"))
	require.NoError(t, svc.Add(ctx, "u1", "ethereum", "2", "3500"))

	views, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, views, 2)

	byCoin := map[string]portfolio.PositionView{}
	for _, v := range views {
		byCoin[v.Coin] = v
	}

	btc := byCoin["bitcoin"]
	assert.InDelta(t, 60000, btc.CurrentPrice, 0.0001)
	assert.InDelta(t, 5000, btc.ProfitLoss, 0.0001) // (60000-50000)*0.5

	eth := byCoin["ethereum"]
	assert.InDelta(t, -1000, eth.ProfitLoss, 0.0001) // (3000-3500)*2
}

func TestService_Summarize(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, "u1", "bitcoin", "0.5", "50000"))
	require.NoError(t, svc.Add(ctx, "u1", "ethereum", "2", "3500"))

	sum, err := svc.Summarize(ctx, "u1")
	require.NoError(t, err)

	assert.InDelta(t, 36000, sum.CurrentValue, 0.0001) // 0.5*60000 + 2*3000
	assert.InDelta(t, 32000, sum.Invested, 0.0001)     // 0.5*50000 + 2*3500
	assert.InDelta(t, 4000, sum.ProfitLoss, 0.0001)
}

func TestService_SummarizeIsPerUser(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, "u1", "bitcoin", "1", "50000"))
	require.NoError(t, svc.Add(ctx, "u2", "ethereum", "10", "3000"))

	sum, err := svc.Summarize(ctx, "u1")
	require.NoError(t, err)
	assert.InDelta(t, 60000, sum.CurrentValue, 0.0001)

	empty, err := svc.Empty(ctx, "u3")
	require.NoError(t, err)
	assert.True(t, empty)
}

func TestService_Break(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, "u1", "bitcoin", "0.1", "50000"))
	require.NoError(t, svc.Add(ctx, "u1", "ethereum", "1", "3500"))

	bd, err := svc.Break(ctx, "u1")
	require.NoError(t, err)

	require.Len(t, bd.Labels, 2)
	require.Len(t, bd.Values, 2)
	assert.ElementsMatch(t, []string{"Bitcoin", "Ethereum"}, bd.Labels)

	// positions are keyed by id, so pair values up with their labels
	byLabel := map[string]float64{}
	for i, l := range bd.Labels {
		byLabel[l] = bd.Values[i]
	}
	assert.InDelta(t, 6000, byLabel["Bitcoin"], 0.0001)
	assert.InDelta(t, 3000, byLabel["Ethereum"], 0.0001)
}

func TestService_DegradedMarketPricesAtZero(t *testing.T) {
	svc, m := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, "u1", "bitcoin", "1", "50000"))

	// snapshot loses the coin after the position exists
	m.snap = &market.Snapshot{Quotes: map[string]market.Quote{}, Live: false}
	m.err = errors.New("upstream down")

	views, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Zero(t, views[0].CurrentPrice)
	assert.InDelta(t, -50000, views[0].ProfitLoss, 0.0001)
}
