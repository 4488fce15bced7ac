package lending

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"hyperlendp2p/core/events"
)

func TestParamsValidateBounds(t *testing.T) {
	base := defaultParams()

	cases := []struct {
		name    string
		mutate  func(*Params)
		wantErr error
	}{
		{"missing collector", func(p *Params) { p.FeeCollector = common.Address{} }, errFeeCollectorRequired},
		{"expiration at one day", func(p *Params) { p.RequestExpiration = 86_400 }, errExpirationTooShort},
		{"protocol fee at cap", func(p *Params) { p.ProtocolFeeBps = 2_000 }, errProtocolFeeTooHigh},
		{"bonus at cap", func(p *Params) { p.LiquidatorBonusBps = 1_000 }, errBonusTooHigh},
		{"liquidation fee at cap", func(p *Params) { p.ProtocolLiquidationFeeBps = 500 }, errLiquidationFeeHigh},
		{"zero price age", func(p *Params) { p.MaxPriceAge = 0 }, errPriceAgeRequired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params := base
			tc.mutate(&params)
			if err := params.Validate(); !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}

	edge := base
	edge.RequestExpiration = 86_401
	edge.ProtocolFeeBps = 1_999
	edge.LiquidatorBonusBps = 999
	edge.ProtocolLiquidationFeeBps = 499
	edge.MaxPriceAge = 1
	if err := edge.Validate(); err != nil {
		t.Fatalf("values just inside the bounds must pass: %v", err)
	}
}

func TestParamStoreOwnerGating(t *testing.T) {
	store, err := NewParamStore(ownerAddr, defaultParams())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.SetProtocolFeeBps(borrowerAddr, 750); !errors.Is(err, errNotOwner) {
		t.Fatalf("non-owner update must fail, got %v", err)
	}
	if store.Version() != 0 {
		t.Fatalf("rejected update must not bump the version, got %d", store.Version())
	}
	if err := store.SetProtocolFeeBps(ownerAddr, 750); err != nil {
		t.Fatalf("owner update: %v", err)
	}
	if got := store.Snapshot().ProtocolFeeBps; got != 750 {
		t.Fatalf("protocol fee = %d, want 750", got)
	}
	if store.Version() != 1 {
		t.Fatalf("version = %d, want 1", store.Version())
	}
}

func TestParamStoreRejectsOutOfBoundsUpdate(t *testing.T) {
	store, err := NewParamStore(ownerAddr, defaultParams())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.SetLiquidatorBonusBps(ownerAddr, 1_000); !errors.Is(err, errBonusTooHigh) {
		t.Fatalf("expected bound rejection, got %v", err)
	}
	if got := store.Snapshot().LiquidatorBonusBps; got != defaultParams().LiquidatorBonusBps {
		t.Fatalf("rejected update must not apply, got %d", got)
	}
}

func TestParamStoreEmitsOldAndNew(t *testing.T) {
	store, err := NewParamStore(ownerAddr, defaultParams())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	emitter := events.NewMemoryEmitter(0)
	store.SetEmitter(emitter)

	if err := store.SetRequestExpiration(ownerAddr, 3*86_400); err != nil {
		t.Fatalf("set expiration: %v", err)
	}
	evts := emitter.Events()
	if len(evts) != 1 {
		t.Fatalf("expected one event, got %d", len(evts))
	}
	evt := evts[0]
	if evt.Type != EventTypeParamUpdated {
		t.Fatalf("type = %s", evt.Type)
	}
	if evt.Attributes["param"] != "requestExpiration" {
		t.Fatalf("param = %s", evt.Attributes["param"])
	}
	if evt.Attributes["old"] != "172800" || evt.Attributes["new"] != "259200" {
		t.Fatalf("old/new = %s/%s", evt.Attributes["old"], evt.Attributes["new"])
	}
	if evt.Attributes["version"] != "1" {
		t.Fatalf("version = %s", evt.Attributes["version"])
	}
}

func TestParamSnapshotIsolation(t *testing.T) {
	env := newTestEnv(t, defaultParams())
	req := baseRequest()
	id := env.request(t, req)

	// A mid-flight parameter change must not shift the expiration window of
	// the already-started check: the ops snapshot at entry, so the next call
	// sees the new value.
	if err := env.params.SetRequestExpiration(ownerAddr, 5*86_400); err != nil {
		t.Fatalf("set expiration: %v", err)
	}
	env.now += 3 * 86_400
	if err := env.engine.CancelLoan(borrowerAddr, id); err != nil {
		t.Fatalf("cancel under widened window: %v", err)
	}
}
