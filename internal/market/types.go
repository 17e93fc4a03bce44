package market

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is one coin row of the markets snapshot.
type Quote struct {
	Coin      string          `json:"coin"`
	Name      string          `json:"name"`
	PriceUSD  decimal.Decimal `json:"usd"`
	Change24h float64         `json:"usd_24h_change"`
	MarketCap float64         `json:"market_cap"`
	Volume24h float64         `json:"volume_24h"`
	Sentiment string          `json:"sentiment"`
}

// Snapshot is the market state served to every consumer. Live reports
// whether it came from the upstream on the last fetch or is a stale
// fallback.
type Snapshot struct {
	Quotes    map[string]Quote `json:"quotes"`
	FetchedAt time.Time        `json:"fetchedAt"`
	Live      bool             `json:"live"`
}

func (s *Snapshot) Get(coin string) (Quote, bool) {
	q, ok := s.Quotes[coin]
	return q, ok
}

func (s *Snapshot) Has(coin string) bool {
	_, ok := s.Quotes[coin]
	return ok
}

func (s *Snapshot) Coins() []string {
	coins := make([]string, 0, len(s.Quotes))
	for c := range s.Quotes {
		coins = append(coins, c)
	}
	sort.Strings(coins)
	return coins
}

// Search returns the quotes whose coin id contains q, case-insensitively.
func (s *Snapshot) Search(q string) map[string]Quote {
	q = strings.ToLower(q)
	results := make(map[string]Quote)
	for coin, quote := range s.Quotes {
		if strings.Contains(strings.ToLower(coin), q) {
			results[coin] = quote
		}
	}
	return results
}

// NormalizeCoin canonicalizes user-entered coin ids.
func NormalizeCoin(coin string) string {
	return strings.ToLower(strings.TrimSpace(coin))
}

// DisplayName turns a coin id like staked_ether or staked-ether into
// "Staked Ether".
func DisplayName(coin string) string {
	r := strings.NewReplacer("_", " ", "-", " ")
	words := strings.Fields(r.Replace(coin))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
