package lending

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"hyperlendp2p/core/events"
)

const (
	// minRequestExpiration is the floor for the request window: strictly more
	// than one day.
	minRequestExpiration = 86_400
	maxProtocolFeeBps    = 2_000
	maxLiquidatorBonus   = 1_000
	maxLiquidationFee    = 500
	maxThresholdBps      = 10_000
)

var (
	errNotOwner             = errors.New("lending params: caller is not the owner")
	errFeeCollectorRequired = errors.New("lending params: fee collector required")
	errExpirationTooShort   = errors.New("lending params: request expiration must exceed one day")
	errProtocolFeeTooHigh   = errors.New("lending params: protocol fee must be below 2000 bps")
	errBonusTooHigh         = errors.New("lending params: liquidator bonus must be below 1000 bps")
	errLiquidationFeeHigh   = errors.New("lending params: liquidation fee must be below 500 bps")
	errPriceAgeRequired     = errors.New("lending params: max price age must be positive")
)

// Params groups the owner-controlled market parameters. Operations read a
// snapshot by value at their start and never cache one across operations.
type Params struct {
	// FeeCollector receives protocol revenue from repayments and
	// liquidations.
	FeeCollector common.Address
	// RequestExpiration bounds, in seconds, how long a pending request stays
	// fillable after creation.
	RequestExpiration uint64
	// ProtocolFeeBps is taken from the interest portion of a repayment.
	ProtocolFeeBps uint64
	// LiquidatorBonusBps rewards the caller that triggers a liquidation.
	LiquidatorBonusBps uint64
	// ProtocolLiquidationFeeBps is the protocol's cut of seized collateral.
	ProtocolLiquidationFeeBps uint64
	// MaxPriceAge bounds, in seconds, how stale an oracle round may be.
	MaxPriceAge uint64
}

// Validate applies the governance bounds to the full parameter set.
func (p Params) Validate() error {
	if p.FeeCollector == (common.Address{}) {
		return errFeeCollectorRequired
	}
	if p.RequestExpiration <= minRequestExpiration {
		return errExpirationTooShort
	}
	if p.ProtocolFeeBps >= maxProtocolFeeBps {
		return errProtocolFeeTooHigh
	}
	if p.LiquidatorBonusBps >= maxLiquidatorBonus {
		return errBonusTooHigh
	}
	if p.ProtocolLiquidationFeeBps >= maxLiquidationFee {
		return errLiquidationFeeHigh
	}
	if p.MaxPriceAge == 0 {
		return errPriceAgeRequired
	}
	return nil
}

// ParamStore owns the versioned parameter set. Every successful update bumps
// the version and emits a lending.param_updated event carrying old and new
// values, so operators can audit configuration drift.
type ParamStore struct {
	mu      sync.RWMutex
	owner   common.Address
	params  Params
	version uint64
	emitter events.Emitter
}

// NewParamStore validates the initial parameters and binds the store to its
// owner.
func NewParamStore(owner common.Address, initial Params) (*ParamStore, error) {
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	return &ParamStore{owner: owner, params: initial, emitter: events.NoopEmitter{}}, nil
}

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (s *ParamStore) SetEmitter(emitter events.Emitter) {
	if s == nil {
		return
	}
	s.mu.Lock()
	if emitter == nil {
		s.emitter = events.NoopEmitter{}
	} else {
		s.emitter = emitter
	}
	s.mu.Unlock()
}

// Snapshot returns the current parameter set by value.
func (s *ParamStore) Snapshot() Params {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params
}

// Version reports how many updates have been applied.
func (s *ParamStore) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Owner returns the administrative address.
func (s *ParamStore) Owner() common.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.owner
}

func (s *ParamStore) update(caller common.Address, name, oldValue, newValue string, apply func(*Params)) error {
	s.mu.Lock()
	if caller != s.owner {
		s.mu.Unlock()
		return errNotOwner
	}
	next := s.params
	apply(&next)
	if err := next.Validate(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.params = next
	s.version++
	version := s.version
	emitter := s.emitter
	s.mu.Unlock()

	emitter.Emit(ParamUpdated{Name: name, OldValue: oldValue, NewValue: newValue, Version: version})
	return nil
}

// SetFeeCollector updates the protocol revenue recipient.
func (s *ParamStore) SetFeeCollector(caller, collector common.Address) error {
	old := s.Snapshot().FeeCollector
	return s.update(caller, "feeCollector", old.Hex(), collector.Hex(), func(p *Params) {
		p.FeeCollector = collector
	})
}

// SetRequestExpiration updates the pending-request window in seconds.
func (s *ParamStore) SetRequestExpiration(caller common.Address, seconds uint64) error {
	old := s.Snapshot().RequestExpiration
	return s.update(caller, "requestExpiration", formatUint(old), formatUint(seconds), func(p *Params) {
		p.RequestExpiration = seconds
	})
}

// SetProtocolFeeBps updates the repayment fee basis points.
func (s *ParamStore) SetProtocolFeeBps(caller common.Address, bps uint64) error {
	old := s.Snapshot().ProtocolFeeBps
	return s.update(caller, "protocolFeeBps", formatUint(old), formatUint(bps), func(p *Params) {
		p.ProtocolFeeBps = bps
	})
}

// SetLiquidatorBonusBps updates the liquidator incentive basis points.
func (s *ParamStore) SetLiquidatorBonusBps(caller common.Address, bps uint64) error {
	old := s.Snapshot().LiquidatorBonusBps
	return s.update(caller, "liquidatorBonusBps", formatUint(old), formatUint(bps), func(p *Params) {
		p.LiquidatorBonusBps = bps
	})
}

// SetProtocolLiquidationFeeBps updates the protocol's liquidation cut.
func (s *ParamStore) SetProtocolLiquidationFeeBps(caller common.Address, bps uint64) error {
	old := s.Snapshot().ProtocolLiquidationFeeBps
	return s.update(caller, "protocolLiquidationFeeBps", formatUint(old), formatUint(bps), func(p *Params) {
		p.ProtocolLiquidationFeeBps = bps
	})
}

// SetMaxPriceAge updates the oracle staleness bound in seconds.
func (s *ParamStore) SetMaxPriceAge(caller common.Address, seconds uint64) error {
	old := s.Snapshot().MaxPriceAge
	return s.update(caller, "maxPriceAge", formatUint(old), formatUint(seconds), func(p *Params) {
		p.MaxPriceAge = seconds
	})
}
