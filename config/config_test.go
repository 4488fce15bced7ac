package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleConfig = `
ListenAddress = ":9000"
Service = "lendd"
Environment = "staging"
Owner = "0x0000000000000000000000000000000000000002"
ModuleAddress = "0x0000000000000000000000000000000000000001"

[lending]
FeeCollector = "0x0000000000000000000000000000000000000003"
ProtocolFeeBps = 750

[pauses]
Lending = true

[ratelimit]
RequestsPerMinute = 120
Burst = 5

[[token]]
Address = "0x00000000000000000000000000000000000000a0"
Symbol = "USDH"
Decimals = 18

  [[token.Genesis]]
  Address = "0x0000000000000000000000000000000000000010"
  Amount = "1000000000000000000"

[[token]]
Address = "0x00000000000000000000000000000000000000a1"
Symbol = "WHYPE"
Decimals = 18

[[feed]]
Address = "0x00000000000000000000000000000000000000b0"
Decimals = 8
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != ":9000" || cfg.Service != "lendd" || cfg.Environment != "staging" {
		t.Fatalf("top-level fields: %+v", cfg)
	}
	if !cfg.Pauses.Lending {
		t.Fatal("pause switch not loaded")
	}
	if cfg.RateLimit.RequestsPerMinute != 120 || cfg.RateLimit.Burst != 5 {
		t.Fatalf("rate limit: %+v", cfg.RateLimit)
	}
	if len(cfg.Tokens) != 2 || len(cfg.Feeds) != 1 {
		t.Fatalf("declarations: %d tokens, %d feeds", len(cfg.Tokens), len(cfg.Feeds))
	}
	if len(cfg.Tokens[0].Genesis) != 1 || cfg.Tokens[0].Genesis[0].Amount != "1000000000000000000" {
		t.Fatalf("genesis entries: %+v", cfg.Tokens[0].Genesis)
	}

	// Explicit value kept, unset values defaulted.
	if cfg.Lending.ProtocolFeeBps != 750 {
		t.Fatalf("protocol fee = %d", cfg.Lending.ProtocolFeeBps)
	}
	if cfg.Lending.MaxPriceAgeSeconds != 3_600 {
		t.Fatalf("price age default = %d", cfg.Lending.MaxPriceAgeSeconds)
	}

	params, err := cfg.Lending.Params()
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	if params.ProtocolFeeBps != 750 {
		t.Fatalf("runtime fee = %d", params.ProtocolFeeBps)
	}
}

func TestLoadDefaultsListenAddress(t *testing.T) {
	minimal := `
Owner = "0x0000000000000000000000000000000000000002"
ModuleAddress = "0x0000000000000000000000000000000000000001"
`
	cfg, err := Load(writeConfig(t, minimal))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != ":8645" {
		t.Fatalf("listen default = %q", cfg.ListenAddress)
	}
	if cfg.Service != "lendd" {
		t.Fatalf("service default = %q", cfg.Service)
	}
	if cfg.RateLimit.RequestsPerMinute != 600 || cfg.RateLimit.Burst != 20 {
		t.Fatalf("rate limit defaults: %+v", cfg.RateLimit)
	}
}

func TestLoadRejectsBadAddresses(t *testing.T) {
	cases := []struct {
		name     string
		contents string
	}{
		{"missing owner", `ModuleAddress = "0x0000000000000000000000000000000000000001"`},
		{"bad module", `
Owner = "0x0000000000000000000000000000000000000002"
ModuleAddress = "zzz"
`},
		{"bad token", `
Owner = "0x0000000000000000000000000000000000000002"
ModuleAddress = "0x0000000000000000000000000000000000000001"
[[token]]
Address = "nope"
Symbol = "BAD"
Decimals = 18
`},
		{"token missing symbol", `
Owner = "0x0000000000000000000000000000000000000002"
ModuleAddress = "0x0000000000000000000000000000000000000001"
[[token]]
Address = "0x00000000000000000000000000000000000000a0"
Decimals = 18
`},
		{"duplicate token", `
Owner = "0x0000000000000000000000000000000000000002"
ModuleAddress = "0x0000000000000000000000000000000000000001"
[[token]]
Address = "0x00000000000000000000000000000000000000a0"
Symbol = "ONE"
Decimals = 18
[[token]]
Address = "0x00000000000000000000000000000000000000a0"
Symbol = "TWO"
Decimals = 18
`},
		{"bad feed", `
Owner = "0x0000000000000000000000000000000000000002"
ModuleAddress = "0x0000000000000000000000000000000000000001"
[[feed]]
Address = "nope"
Decimals = 8
`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.contents)); err == nil {
				t.Fatal("expected validation failure")
			}
		})
	}
}
