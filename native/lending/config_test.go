package lending

import (
	"testing"
)

func TestConfigNormaliseDefaults(t *testing.T) {
	cfg := Config{}.Normalise()
	if cfg.RequestExpirationSeconds != 2*86_400 {
		t.Fatalf("expiration default = %d", cfg.RequestExpirationSeconds)
	}
	if cfg.ProtocolFeeBps != 500 || cfg.LiquidatorBonusBps != 100 || cfg.ProtocolLiquidationFeeBps != 20 {
		t.Fatalf("fee defaults = %d/%d/%d", cfg.ProtocolFeeBps, cfg.LiquidatorBonusBps, cfg.ProtocolLiquidationFeeBps)
	}
	if cfg.MaxPriceAgeSeconds != 3_600 {
		t.Fatalf("price age default = %d", cfg.MaxPriceAgeSeconds)
	}

	set := Config{RequestExpirationSeconds: 100_000}.Normalise()
	if set.RequestExpirationSeconds != 100_000 {
		t.Fatalf("explicit value overridden: %d", set.RequestExpirationSeconds)
	}
}

func TestConfigParams(t *testing.T) {
	cfg := Config{FeeCollector: "0x0000000000000000000000000000000000000003"}.Normalise()
	params, err := cfg.Params()
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	if params.FeeCollector != collectorAddr {
		t.Fatalf("collector = %s", params.FeeCollector.Hex())
	}
	if params.RequestExpiration != cfg.RequestExpirationSeconds {
		t.Fatalf("expiration = %d", params.RequestExpiration)
	}

	if _, err := (Config{FeeCollector: "not-an-address"}.Normalise()).Params(); err == nil {
		t.Fatal("bad collector must fail")
	}
	if _, err := (Config{}.Normalise()).Params(); err == nil {
		t.Fatal("empty collector must fail")
	}

	bad := Config{FeeCollector: "0x0000000000000000000000000000000000000003", ProtocolFeeBps: 2_500}.Normalise()
	if _, err := bad.Params(); err == nil {
		t.Fatal("out-of-bounds fee must fail")
	}
}
