package vault

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config captures the engine wiring loaded from TOML: the immutable asset set
// and the oracle staleness threshold.
type Config struct {
	StalenessSeconds uint64        `toml:"StalenessSeconds"`
	Assets           []AssetConfig `toml:"assets"`
}

// AssetConfig describes one registered collateral asset and the seed quote
// for its static price feed.
type AssetConfig struct {
	Symbol       string `toml:"Symbol"`
	FeedPrice    string `toml:"FeedPrice"`
	FeedDecimals uint8  `toml:"FeedDecimals"`
}

// LoadConfig reads and validates an engine configuration file.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	cfg = cfg.Normalise()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Normalise trims whitespace and applies canonical defaults.
func (c Config) Normalise() Config {
	cfg := Config{StalenessSeconds: c.StalenessSeconds}
	for _, asset := range c.Assets {
		asset.Symbol = strings.ToUpper(strings.TrimSpace(asset.Symbol))
		asset.FeedPrice = strings.TrimSpace(asset.FeedPrice)
		if asset.FeedDecimals == 0 {
			asset.FeedDecimals = 8
		}
		cfg.Assets = append(cfg.Assets, asset)
	}
	return cfg
}

// Validate rejects configurations the engine cannot be constructed from.
func (c Config) Validate() error {
	if len(c.Assets) == 0 {
		return fmt.Errorf("vault config: at least one asset required")
	}
	seen := make(map[string]struct{}, len(c.Assets))
	for _, asset := range c.Assets {
		if asset.Symbol == "" {
			return fmt.Errorf("vault config: asset symbol required")
		}
		if _, dup := seen[asset.Symbol]; dup {
			return fmt.Errorf("vault config: duplicate asset %q", asset.Symbol)
		}
		seen[asset.Symbol] = struct{}{}
		if asset.FeedDecimals > InternalDecimals {
			return fmt.Errorf("vault config: asset %q feed decimals exceed %d", asset.Symbol, InternalDecimals)
		}
		if asset.FeedPrice != "" {
			if _, err := asset.ParsedFeedPrice(); err != nil {
				return err
			}
		}
	}
	return nil
}

// QuoteMaxAge converts the configured staleness threshold, defaulting to the
// protocol's fixed one hour window.
func (c Config) QuoteMaxAge() time.Duration {
	if c.StalenessSeconds == 0 {
		return DefaultQuoteMaxAge
	}
	return time.Duration(c.StalenessSeconds) * time.Second
}

// ParsedFeedPrice parses the seed quote price as an integer at feed precision.
func (a AssetConfig) ParsedFeedPrice() (*big.Int, error) {
	price, ok := new(big.Int).SetString(strings.TrimSpace(a.FeedPrice), 10)
	if !ok {
		return nil, fmt.Errorf("vault config: asset %q invalid feed price %q", a.Symbol, a.FeedPrice)
	}
	if price.Sign() <= 0 {
		return nil, fmt.Errorf("vault config: asset %q feed price must be positive", a.Symbol)
	}
	return price, nil
}
