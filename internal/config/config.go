// Package config loads service settings from the environment, with an
// optional .env file for local runs.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

var ErrMissingSecret = errors.New("SECRET_KEY is required outside debug mode")

const DefaultEnvFile = ".env"

type Config struct {
	Port      int
	SecretKey string
	Debug     bool
	Env       string

	CoinGeckoAPIKey  string
	CoinGeckoBaseURL string
	NewsAPIKey       string
	NewsBaseURL      string
	SentimentURL     string

	DataDir    string
	StaticRoot string
	StaticDirs []string

	MarketCacheTTL  time.Duration
	HistoryInterval time.Duration
	AlertInterval   time.Duration
	SessionTTL      time.Duration

	AllowedHosts []string
}

// StorePath is where the embedded store keeps its command log.
func (c *Config) StorePath() string {
	return filepath.Join(c.DataDir, "tracker.db")
}

// Load reads envFile (when present) and the process environment.
// Environment variables win over the file.
func Load(envFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("PORT", 8000)
	v.SetDefault("DEBUG", false)
	v.SetDefault("ENV", "production")
	v.SetDefault("DATA_DIR", "data")
	v.SetDefault("STATIC_ROOT", "staticfiles")
	v.SetDefault("STATIC_DIRS", []string{"static"})
	v.SetDefault("MARKET_CACHE_TTL", 5*time.Minute)
	v.SetDefault("HISTORY_INTERVAL", 5*time.Minute)
	v.SetDefault("ALERT_INTERVAL", time.Minute)
	v.SetDefault("SESSION_TTL", 24*time.Hour)
	v.SetDefault("ALLOWED_HOSTS", []string{})

	if envFile == "" {
		envFile = DefaultEnvFile
	}

	if _, err := os.Stat(envFile); err == nil {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "could not read %s", envFile)
		}
	}

	v.AutomaticEnv()

	cfg := &Config{
		Port:      v.GetInt("PORT"),
		SecretKey: v.GetString("SECRET_KEY"),
		Debug:     v.GetBool("DEBUG"),
		Env:       v.GetString("ENV"),

		CoinGeckoAPIKey:  v.GetString("COINGECKO_API_KEY"),
		CoinGeckoBaseURL: v.GetString("COINGECKO_BASE_URL"),
		NewsAPIKey:       v.GetString("NEWSAPI_KEY"),
		NewsBaseURL:      v.GetString("NEWSAPI_BASE_URL"),
		SentimentURL:     v.GetString("SENTIMENT_URL"),

		DataDir:    v.GetString("DATA_DIR"),
		StaticRoot: v.GetString("STATIC_ROOT"),
		StaticDirs: v.GetStringSlice("STATIC_DIRS"),

		MarketCacheTTL:  v.GetDuration("MARKET_CACHE_TTL"),
		HistoryInterval: v.GetDuration("HISTORY_INTERVAL"),
		AlertInterval:   v.GetDuration("ALERT_INTERVAL"),
		SessionTTL:      v.GetDuration("SESSION_TTL"),

		AllowedHosts: v.GetStringSlice("ALLOWED_HOSTS"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if !c.Debug && c.SecretKey == "" {
		return ErrMissingSecret
	}

	if c.Port <= 0 || c.Port > 65535 {
		return errors.Errorf("invalid PORT %d", c.Port)
	}

	return nil
}
