package lending

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Config carries the market parameters as they appear in the node's TOML
// configuration file. Normalise applies defaults; Params converts to the
// validated runtime parameter set.
type Config struct {
	FeeCollector              string `toml:"FeeCollector"`
	RequestExpirationSeconds  uint64 `toml:"RequestExpirationSeconds"`
	ProtocolFeeBps            uint64 `toml:"ProtocolFeeBps"`
	LiquidatorBonusBps        uint64 `toml:"LiquidatorBonusBps"`
	ProtocolLiquidationFeeBps uint64 `toml:"ProtocolLiquidationFeeBps"`
	MaxPriceAgeSeconds        uint64 `toml:"MaxPriceAgeSeconds"`
}

// Normalise fills zero values with the market defaults.
func (c Config) Normalise() Config {
	cfg := c
	if cfg.RequestExpirationSeconds == 0 {
		cfg.RequestExpirationSeconds = 2 * 86_400
	}
	if cfg.ProtocolFeeBps == 0 {
		cfg.ProtocolFeeBps = 500
	}
	if cfg.LiquidatorBonusBps == 0 {
		cfg.LiquidatorBonusBps = 100
	}
	if cfg.ProtocolLiquidationFeeBps == 0 {
		cfg.ProtocolLiquidationFeeBps = 20
	}
	if cfg.MaxPriceAgeSeconds == 0 {
		cfg.MaxPriceAgeSeconds = 3_600
	}
	return cfg
}

// Params parses and validates the configuration into the runtime set.
func (c Config) Params() (Params, error) {
	collector := strings.TrimSpace(c.FeeCollector)
	if !common.IsHexAddress(collector) {
		return Params{}, fmt.Errorf("lending config: invalid fee collector %q", c.FeeCollector)
	}
	params := Params{
		FeeCollector:              common.HexToAddress(collector),
		RequestExpiration:         c.RequestExpirationSeconds,
		ProtocolFeeBps:            c.ProtocolFeeBps,
		LiquidatorBonusBps:        c.LiquidatorBonusBps,
		ProtocolLiquidationFeeBps: c.ProtocolLiquidationFeeBps,
		MaxPriceAge:               c.MaxPriceAgeSeconds,
	}
	if err := params.Validate(); err != nil {
		return Params{}, err
	}
	return params, nil
}
