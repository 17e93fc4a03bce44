// Package alerts manages price alerts and the background evaluator
// that trips them.
package alerts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cryptomonitor/tracker/internal/market"
	"github.com/cryptomonitor/tracker/internal/portfolio"
	"github.com/cryptomonitor/tracker/internal/store"
)

var ErrValidation = errors.New("alert validation failed")

type Service struct {
	db     *store.DB
	market portfolio.SnapshotSource
	log    *zap.Logger
}

func NewService(db *store.DB, m portfolio.SnapshotSource, log *zap.Logger) *Service {
	return &Service{db: db, market: m, log: log}
}

type View struct {
	ID          string  `json:"id"`
	Coin        string  `json:"cryptocurrency"`
	TargetPrice float64 `json:"target_price"`
	Condition   string  `json:"condition"`
	Triggered   bool    `json:"triggered"`
	CreatedAt   string  `json:"created_at"`
}

// Add validates and stores a new alert for userID.
func (s *Service) Add(ctx context.Context, userID, coin, targetPrice, condition string) error {
	if coin == "" || targetPrice == "" || condition == "" {
		return errors.Wrap(ErrValidation, "All fields are required.")
	}

	target, err := decimal.NewFromString(targetPrice)
	if err != nil {
		return errors.Wrap(ErrValidation, "Target price must be a number.")
	}

	if !target.IsPositive() {
		return errors.Wrap(ErrValidation, "Target price must be positive.")
	}

	cond := store.AlertCondition(condition)
	if cond != store.AlertAbove && cond != store.AlertBelow {
		return errors.Wrap(ErrValidation, "Invalid condition.")
	}

	coin = market.NormalizeCoin(coin)

	snap, err := s.market.Snapshot(ctx)
	if err != nil {
		s.log.Warn("validating alert against a degraded market snapshot", zap.Error(err))
	}
	if !snap.Has(coin) {
		return errors.Wrap(ErrValidation, "Invalid cryptocurrency.")
	}

	alert := store.Alert{
		ID:          uuid.NewString(),
		UserID:      userID,
		Coin:        coin,
		TargetPrice: target,
		Condition:   cond,
		CreatedAt:   time.Now(),
	}

	return s.db.Update(ctx, func(tx *store.Tx) error {
		return tx.Insert(alert)
	})
}

func (s *Service) List(ctx context.Context, userID string) ([]View, error) {
	var views []View
	var scanErr error

	err := s.db.View(ctx, func(tx *store.Tx) error {
		return tx.ScanPrefix(store.AlertPrefix(userID), func(key store.Key, data []byte) bool {
			var a store.Alert
			if err := tx.Get(key, &a); err != nil {
				scanErr = err
				return false
			}

			views = append(views, View{
				ID:          a.ID,
				Coin:        a.Coin,
				TargetPrice: a.TargetPrice.InexactFloat64(),
				Condition:   string(a.Condition),
				Triggered:   a.Triggered,
				CreatedAt:   a.CreatedAt.Format("2006-01-02 15:04:05"),
			})
			return true
		})
	})
	if err != nil {
		return nil, err
	}
	if scanErr != nil {
		return nil, scanErr
	}

	if views == nil {
		views = []View{}
	}

	return views, nil
}

// EvaluateOnce trips every untriggered alert whose condition the
// snapshot satisfies and reports how many fired.
func (s *Service) EvaluateOnce(ctx context.Context) (int, error) {
	snap, err := s.market.Snapshot(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "alert evaluation skipped")
	}

	var due []store.Alert
	err = s.db.View(ctx, func(tx *store.Tx) error {
		return tx.ScanPrefix(store.AllAlertsPrefix(), func(key store.Key, data []byte) bool {
			var a store.Alert
			if err := tx.Get(key, &a); err != nil {
				return true
			}

			if !a.Triggered && conditionMet(a, snap) {
				due = append(due, a)
			}
			return true
		})
	})
	if err != nil {
		return 0, err
	}

	if len(due) == 0 {
		return 0, nil
	}

	now := time.Now()
	err = s.db.Update(ctx, func(tx *store.Tx) error {
		for i := range due {
			due[i].Triggered = true
			due[i].TriggeredAt = now
			if err := tx.Upsert(due[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, a := range due {
		s.log.Info("alert triggered",
			zap.String("user", a.UserID),
			zap.String("coin", a.Coin),
			zap.String("condition", string(a.Condition)),
			zap.String("target", a.TargetPrice.String()),
		)
	}

	return len(due), nil
}

func conditionMet(a store.Alert, snap *market.Snapshot) bool {
	q, ok := snap.Get(a.Coin)
	if !ok {
		return false
	}

	switch a.Condition {
	case store.AlertAbove:
		return q.PriceUSD.GreaterThanOrEqual(a.TargetPrice)
	case store.AlertBelow:
		return q.PriceUSD.LessThanOrEqual(a.TargetPrice)
	}

	return false
}

// Evaluator runs EvaluateOnce on a fixed interval until ctx is done.
type Evaluator struct {
	svc      *Service
	interval time.Duration
	log      *zap.Logger
}

func NewEvaluator(svc *Service, interval time.Duration, log *zap.Logger) *Evaluator {
	if interval == 0 {
		interval = time.Minute
	}

	return &Evaluator{svc: svc, interval: interval, log: log}
}

func (e *Evaluator) Run(ctx context.Context) error {
	t := time.NewTicker(e.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			fired, err := e.svc.EvaluateOnce(ctx)
			if err != nil {
				e.log.Warn("alert evaluation failed", zap.Error(err))
				continue
			}
			if fired > 0 {
				e.log.Info("alerts fired", zap.Int("count", fired))
			}
		}
	}
}
