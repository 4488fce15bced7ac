package lending

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// LoanStatus tracks a loan through its forward-only lifecycle. Pending is the
// zero value so an absent registry slot reads as an unfilled request.
type LoanStatus byte

const (
	StatusPending    LoanStatus = 0x00
	StatusCanceled   LoanStatus = 0x01
	StatusActive     LoanStatus = 0x02
	StatusRepaid     LoanStatus = 0x03
	StatusLiquidated LoanStatus = 0x04
)

// String renders the canonical lowercase status label used in events and RPC
// payloads.
func (s LoanStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusCanceled:
		return "canceled"
	case StatusActive:
		return "active"
	case StatusRepaid:
		return "repaid"
	case StatusLiquidated:
		return "liquidated"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status permits no further transition.
func (s LoanStatus) Terminal() bool {
	switch s {
	case StatusCanceled, StatusRepaid, StatusLiquidated:
		return true
	default:
		return false
	}
}

// LiquidationTerms captures the optional insolvency trigger agreed at request
// time. When Enabled is false the loan can only be liquidated by maturity.
type LiquidationTerms struct {
	// Enabled opts the loan into price-based liquidation.
	Enabled bool
	// ThresholdBps is the collateral fraction, in basis points, above which
	// the borrowed value makes the loan liquidatable. At most 10000.
	ThresholdBps uint64
	// AssetFeed identifies the price feed quoting the borrowed asset.
	AssetFeed common.Address
	// CollateralFeed identifies the price feed quoting the collateral.
	CollateralFeed common.Address
}

// Loan is the ledger record for a single request. Identity fields are fixed at
// creation; only Lender, StartedAt and Status mutate, each exactly once.
type Loan struct {
	ID       uint64
	Borrower common.Address
	// Lender stays the zero address until the request is filled.
	Lender     common.Address
	Asset      common.Address
	Collateral common.Address
	// AssetAmount is the principal lent, RepaymentAmount the total owed at
	// maturity. Interest is fixed at origination as the difference.
	AssetAmount      *big.Int
	RepaymentAmount  *big.Int
	CollateralAmount *big.Int
	// CreatedAt is the request timestamp, StartedAt the fill timestamp (zero
	// until filled). Duration is the agreed term in seconds.
	CreatedAt int64
	StartedAt int64
	Duration  uint64
	Status    LoanStatus
	Terms     LiquidationTerms
}

// Clone returns a deep copy so callers never share big.Int pointers with the
// registry.
func (l *Loan) Clone() *Loan {
	if l == nil {
		return nil
	}
	clone := *l
	if l.AssetAmount != nil {
		clone.AssetAmount = new(big.Int).Set(l.AssetAmount)
	}
	if l.RepaymentAmount != nil {
		clone.RepaymentAmount = new(big.Int).Set(l.RepaymentAmount)
	}
	if l.CollateralAmount != nil {
		clone.CollateralAmount = new(big.Int).Set(l.CollateralAmount)
	}
	return &clone
}

// ensureAmounts populates nil amount fields so arithmetic never trips over a
// nil big.Int.
func (l *Loan) ensureAmounts() {
	if l == nil {
		return
	}
	if l.AssetAmount == nil {
		l.AssetAmount = big.NewInt(0)
	}
	if l.RepaymentAmount == nil {
		l.RepaymentAmount = big.NewInt(0)
	}
	if l.CollateralAmount == nil {
		l.CollateralAmount = big.NewInt(0)
	}
}
