package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"

	"hyperlendp2p/native/lending"
)

// Config is the daemon configuration loaded from TOML. Tokens and feeds
// declared here are registered at startup; genesis balances seed the in-memory
// ledger.
type Config struct {
	ListenAddress string `toml:"ListenAddress"`
	Service       string `toml:"Service"`
	Environment   string `toml:"Environment"`
	// Owner controls the administrative parameter surface.
	Owner string `toml:"Owner"`
	// ModuleAddress is the escrow identity collateral is held under.
	ModuleAddress string `toml:"ModuleAddress"`

	Lending   lending.Config  `toml:"lending"`
	Tokens    []TokenConfig   `toml:"token"`
	Feeds     []FeedConfig    `toml:"feed"`
	Pauses    PauseConfig     `toml:"pauses"`
	RateLimit RateLimitConfig `toml:"ratelimit"`
}

// TokenConfig declares a token and optional genesis balances.
type TokenConfig struct {
	Address  string         `toml:"Address"`
	Symbol   string         `toml:"Symbol"`
	Decimals uint8          `toml:"Decimals"`
	Genesis  []GenesisEntry `toml:"Genesis"`
}

// GenesisEntry seeds one address with an initial balance.
type GenesisEntry struct {
	Address string `toml:"Address"`
	Amount  string `toml:"Amount"`
}

// FeedConfig declares an operator-postable price feed.
type FeedConfig struct {
	Address  string `toml:"Address"`
	Decimals uint8  `toml:"Decimals"`
}

// PauseConfig carries the initial module pause switches.
type PauseConfig struct {
	Lending bool `toml:"Lending"`
}

// RateLimitConfig bounds per-client JSON-RPC throughput.
type RateLimitConfig struct {
	RequestsPerMinute float64 `toml:"RequestsPerMinute"`
	Burst             int     `toml:"Burst"`
}

// Load reads and normalises the configuration from the given path.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.ListenAddress) == "" {
		c.ListenAddress = ":8645"
	}
	if strings.TrimSpace(c.Service) == "" {
		c.Service = "lendd"
	}
	if c.RateLimit.RequestsPerMinute <= 0 {
		c.RateLimit.RequestsPerMinute = 600
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 20
	}
	c.Lending = c.Lending.Normalise()
}

// Validate checks the address fields and token declarations.
func (c *Config) Validate() error {
	if !common.IsHexAddress(strings.TrimSpace(c.Owner)) {
		return fmt.Errorf("config: invalid owner address %q", c.Owner)
	}
	if !common.IsHexAddress(strings.TrimSpace(c.ModuleAddress)) {
		return fmt.Errorf("config: invalid module address %q", c.ModuleAddress)
	}
	seen := make(map[common.Address]bool)
	for _, token := range c.Tokens {
		addr := strings.TrimSpace(token.Address)
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("config: invalid token address %q", token.Address)
		}
		parsed := common.HexToAddress(addr)
		if seen[parsed] {
			return fmt.Errorf("config: duplicate token address %s", parsed.Hex())
		}
		seen[parsed] = true
		if strings.TrimSpace(token.Symbol) == "" {
			return fmt.Errorf("config: token %s missing symbol", parsed.Hex())
		}
		for _, entry := range token.Genesis {
			if !common.IsHexAddress(strings.TrimSpace(entry.Address)) {
				return fmt.Errorf("config: invalid genesis address %q for token %s", entry.Address, parsed.Hex())
			}
			if strings.TrimSpace(entry.Amount) == "" {
				return fmt.Errorf("config: genesis amount required for token %s", parsed.Hex())
			}
		}
	}
	for _, feed := range c.Feeds {
		if !common.IsHexAddress(strings.TrimSpace(feed.Address)) {
			return fmt.Errorf("config: invalid feed address %q", feed.Address)
		}
	}
	return nil
}

// OwnerAddress returns the parsed administrative address.
func (c *Config) OwnerAddress() common.Address {
	return common.HexToAddress(strings.TrimSpace(c.Owner))
}

// Module returns the parsed escrow identity.
func (c *Config) Module() common.Address {
	return common.HexToAddress(strings.TrimSpace(c.ModuleAddress))
}
