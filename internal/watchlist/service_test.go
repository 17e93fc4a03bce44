package watchlist_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cryptomonitor/tracker/internal/market"
	"github.com/cryptomonitor/tracker/internal/store"
	"github.com/cryptomonitor/tracker/internal/watchlist"
)

type fakeMarket struct {
	snap *market.Snapshot
	err  error
}

func (f *fakeMarket) Snapshot(ctx context.Context) (*market.Snapshot, error) {
	return f.snap, f.err
}

func newService(t *testing.T) *watchlist.Service {
	t.Helper()

	db, err := store.Open(store.InMemory, store.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	m := &fakeMarket{snap: &market.Snapshot{
		Quotes: map[string]market.Quote{
			"bitcoin":  {Coin: "bitcoin", PriceUSD: decimal.RequireFromString("60000")},
			"ethereum": {Coin: "ethereum", PriceUSD: decimal.RequireFromString("3000")},
		},
		Live: true,
	}}

	return watchlist.NewService(db, m, zap.NewNop())
}

func TestService_AddAndList(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, "u1", "Bitcoin"))
	require.NoError(t, svc.Add(ctx, "u1", "ethereum"))

	items, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "bitcoin", items[0].Coin)
	assert.Equal(t, "Bitcoin", items[0].Name)
	assert.InDelta(t, 60000, items[0].CurrentPrice, 0.0001)
	assert.Equal(t, "ethereum", items[1].Coin)
}

func TestService_AddTwiceIsNoop(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, "u1", "bitcoin"))
	require.NoError(t, svc.Add(ctx, "u1", "bitcoin"))

	items, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestService_AddValidation(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	err := svc.Add(ctx, "u1", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, watchlist.ErrValidation))
	assert.Contains(t, err.Error(), "Cryptocurrency is required.")

	err = svc.Add(ctx, "u1", "dogecoin")
	require.Error(t, err)
	assert.True(t, errors.Is(err, watchlist.ErrValidation))
	assert.Contains(t, err.Error(), "Invalid cryptocurrency.")
}

func TestService_ListEmpty(t *testing.T) {
	svc := newService(t)

	items, err := svc.List(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestService_ListIsPerUser(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, "u1", "bitcoin"))
	require.NoError(t, svc.Add(ctx, "u2", "ethereum"))

	items, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "bitcoin", items[0].Coin)
}
