package store

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Record is anything the store can persist under its own key.
type Record interface {
	Key() Key
}

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash []byte    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (u User) Key() Key {
	return UserKey(u.ID)
}

func UserKey(id string) Key {
	return NewKey("user", id)
}

// UsernameRef maps a unique username to the owning user ID.
type UsernameRef struct {
	Username string `json:"username"`
	UserID   string `json:"userId"`
}

func (r UsernameRef) Key() Key {
	return UsernameKey(r.Username)
}

func UsernameKey(username string) Key {
	return NewKey("username", username)
}

type Position struct {
	ID            string          `json:"id"`
	UserID        string          `json:"userId"`
	Coin          string          `json:"coin"`
	Amount        decimal.Decimal `json:"amount"`
	PurchasePrice decimal.Decimal `json:"purchasePrice"`
	CreatedAt     time.Time       `json:"createdAt"`
}

func (p Position) Key() Key {
	return NewKey("position", p.UserID, p.ID)
}

func PositionPrefix(userID string) Key {
	return NewKey("position", userID)
}

type WatchItem struct {
	UserID    string    `json:"userId"`
	Coin      string    `json:"coin"`
	CreatedAt time.Time `json:"createdAt"`
}

func (w WatchItem) Key() Key {
	return NewKey("watch", w.UserID, w.Coin)
}

func WatchPrefix(userID string) Key {
	return NewKey("watch", userID)
}

type AlertCondition string

const (
	AlertAbove AlertCondition = "above"
	AlertBelow AlertCondition = "below"
)

type Alert struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	Coin        string          `json:"coin"`
	TargetPrice decimal.Decimal `json:"targetPrice"`
	Condition   AlertCondition  `json:"condition"`
	Triggered   bool            `json:"triggered"`
	TriggeredAt time.Time       `json:"triggeredAt,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

func (a Alert) Key() Key {
	return NewKey("alert", a.UserID, a.ID)
}

func AlertPrefix(userID string) Key {
	return NewKey("alert", userID)
}

func AllAlertsPrefix() Key {
	return NewKey("alert")
}

type PricePoint struct {
	Coin      string          `json:"coin"`
	PriceUSD  decimal.Decimal `json:"priceUsd"`
	Change24h float64         `json:"change24h"`
	MarketCap float64         `json:"marketCap"`
	Volume24h float64         `json:"volume24h"`
	Timestamp time.Time       `json:"timestamp"`
}

func (p PricePoint) Key() Key {
	// nanosecond resolution keeps points from the same poll cycle distinct
	return NewKey("price", p.Coin, strconv.FormatInt(p.Timestamp.UnixNano(), 10))
}

func PricePrefix(coin string) Key {
	return NewKey("price", coin)
}
