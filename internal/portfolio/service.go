// Package portfolio values user holdings against the live market.
package portfolio

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cryptomonitor/tracker/internal/market"
	"github.com/cryptomonitor/tracker/internal/store"
)

var ErrValidation = errors.New("portfolio validation failed")

// SnapshotSource yields the market snapshot used for pricing.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (*market.Snapshot, error)
}

type Service struct {
	db     *store.DB
	market SnapshotSource
	log    *zap.Logger
}

func NewService(db *store.DB, m SnapshotSource, log *zap.Logger) *Service {
	return &Service{db: db, market: m, log: log}
}

// PositionView is one priced holding.
type PositionView struct {
	ID            string  `json:"id"`
	Coin          string  `json:"cryptocurrency"`
	Name          string  `json:"name"`
	Amount        float64 `json:"amount"`
	PurchasePrice float64 `json:"purchase_price"`
	CurrentPrice  float64 `json:"current_price"`
	ProfitLoss    float64 `json:"profit_loss"`
}

type Summary struct {
	CurrentValue float64 `json:"current_value"`
	Invested     float64 `json:"invested"`
	ProfitLoss   float64 `json:"profit_loss"`
}

// Breakdown feeds the portfolio pie chart.
type Breakdown struct {
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}

// Add validates and stores a new position for userID.
func (s *Service) Add(ctx context.Context, userID, coin, amount, purchasePrice string) error {
	if coin == "" || amount == "" || purchasePrice == "" {
		return errors.Wrap(ErrValidation, "All fields are required.")
	}

	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return errors.Wrap(ErrValidation, "Amount must be a number.")
	}

	price, err := decimal.NewFromString(purchasePrice)
	if err != nil {
		return errors.Wrap(ErrValidation, "Purchase price must be a number.")
	}

	if !amt.IsPositive() || !price.IsPositive() {
		return errors.Wrap(ErrValidation, "Amount and purchase price must be positive.")
	}

	coin = market.NormalizeCoin(coin)
	if err := s.requireKnownCoin(ctx, coin); err != nil {
		return err
	}

	pos := store.Position{
		ID:            uuid.NewString(),
		UserID:        userID,
		Coin:          coin,
		Amount:        amt,
		PurchasePrice: price,
		CreatedAt:     time.Now(),
	}

	return s.db.Update(ctx, func(tx *store.Tx) error {
		return tx.Insert(pos)
	})
}

// List prices every position of userID against the current snapshot.
// Coins missing from the snapshot are priced at zero.
func (s *Service) List(ctx context.Context, userID string) ([]PositionView, error) {
	snap := s.snapshot(ctx)

	positions, err := s.positions(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]PositionView, 0, len(positions))
	for _, p := range positions {
		current := priceOf(snap, p.Coin)

		views = append(views, PositionView{
			ID:            p.ID,
			Coin:          p.Coin,
			Name:          market.DisplayName(p.Coin),
			Amount:        p.Amount.InexactFloat64(),
			PurchasePrice: p.PurchasePrice.InexactFloat64(),
			CurrentPrice:  current.InexactFloat64(),
			ProfitLoss:    current.Sub(p.PurchasePrice).Mul(p.Amount).InexactFloat64(),
		})
	}

	return views, nil
}

// Summarize folds all positions of userID into account totals.
func (s *Service) Summarize(ctx context.Context, userID string) (Summary, error) {
	snap := s.snapshot(ctx)

	positions, err := s.positions(ctx, userID)
	if err != nil {
		return Summary{}, err
	}

	currentValue := decimal.Zero
	invested := decimal.Zero
	for _, p := range positions {
		currentValue = currentValue.Add(p.Amount.Mul(priceOf(snap, p.Coin)))
		invested = invested.Add(p.Amount.Mul(p.PurchasePrice))
	}

	return Summary{
		CurrentValue: currentValue.InexactFloat64(),
		Invested:     invested.InexactFloat64(),
		ProfitLoss:   currentValue.Sub(invested).InexactFloat64(),
	}, nil
}

// Break down current position values per coin for the pie chart.
func (s *Service) Break(ctx context.Context, userID string) (Breakdown, error) {
	snap := s.snapshot(ctx)

	positions, err := s.positions(ctx, userID)
	if err != nil {
		return Breakdown{}, err
	}

	bd := Breakdown{Labels: []string{}, Values: []float64{}}
	for _, p := range positions {
		bd.Labels = append(bd.Labels, market.DisplayName(p.Coin))
		bd.Values = append(bd.Values, p.Amount.Mul(priceOf(snap, p.Coin)).InexactFloat64())
	}

	return bd, nil
}

func (s *Service) Empty(ctx context.Context, userID string) (bool, error) {
	positions, err := s.positions(ctx, userID)
	if err != nil {
		return false, err
	}
	return len(positions) == 0, nil
}

func (s *Service) positions(ctx context.Context, userID string) ([]store.Position, error) {
	var positions []store.Position
	var scanErr error

	err := s.db.View(ctx, func(tx *store.Tx) error {
		return tx.ScanPrefix(store.PositionPrefix(userID), func(key store.Key, data []byte) bool {
			var p store.Position
			if err := tx.Get(key, &p); err != nil {
				scanErr = err
				return false
			}
			positions = append(positions, p)
			return true
		})
	})
	if err != nil {
		return nil, err
	}
	if scanErr != nil {
		return nil, scanErr
	}

	return positions, nil
}

func (s *Service) requireKnownCoin(ctx context.Context, coin string) error {
	snap := s.snapshot(ctx)
	if !snap.Has(coin) {
		return errors.Wrap(ErrValidation, "Invalid cryptocurrency.")
	}
	return nil
}

func (s *Service) snapshot(ctx context.Context) *market.Snapshot {
	snap, err := s.market.Snapshot(ctx)
	if err != nil {
		s.log.Warn("pricing against a degraded market snapshot", zap.Error(err))
	}
	return snap
}

func priceOf(snap *market.Snapshot, coin string) decimal.Decimal {
	if q, ok := snap.Get(coin); ok {
		return q.PriceUSD
	}
	return decimal.Zero
}
