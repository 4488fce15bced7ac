package lending

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

// LoanRequest is the externally submitted record decoded by requestLoan. It
// carries only the caller-supplied fields; timestamps, status and the loan id
// are stamped by the engine.
type LoanRequest struct {
	Borrower         common.Address
	Asset            common.Address
	Collateral       common.Address
	AssetAmount      *big.Int
	RepaymentAmount  *big.Int
	CollateralAmount *big.Int
	Duration         uint64
	Liquidatable     bool
	ThresholdBps     uint64
	AssetFeed        common.Address
	CollateralFeed   common.Address
}

// EncodeLoanRequest renders the request in its canonical RLP wire form.
func EncodeLoanRequest(req *LoanRequest) ([]byte, error) {
	if req == nil {
		return nil, fmt.Errorf("lending: nil loan request")
	}
	encoded, err := rlp.EncodeToBytes(req)
	if err != nil {
		return nil, fmt.Errorf("lending: encode loan request: %w", err)
	}
	return encoded, nil
}

// DecodeLoanRequest parses the RLP wire form. Malformed payloads are a
// validation fault surfaced to the caller.
func DecodeLoanRequest(raw []byte) (*LoanRequest, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("lending: empty loan request payload")
	}
	req := new(LoanRequest)
	if err := rlp.DecodeBytes(raw, req); err != nil {
		return nil, fmt.Errorf("lending: decode loan request: %w", err)
	}
	return req, nil
}

// loan materialises the registry record for a validated request. The engine
// stamps CreatedAt and leaves StartedAt zero and Status pending.
func (r *LoanRequest) loan(createdAt int64) *Loan {
	loan := &Loan{
		Borrower:         r.Borrower,
		Asset:            r.Asset,
		Collateral:       r.Collateral,
		AssetAmount:      r.AssetAmount,
		RepaymentAmount:  r.RepaymentAmount,
		CollateralAmount: r.CollateralAmount,
		CreatedAt:        createdAt,
		StartedAt:        0,
		Duration:         r.Duration,
		Status:           StatusPending,
		Terms: LiquidationTerms{
			Enabled:        r.Liquidatable,
			ThresholdBps:   r.ThresholdBps,
			AssetFeed:      r.AssetFeed,
			CollateralFeed: r.CollateralFeed,
		},
	}
	loan.ensureAmounts()
	return loan
}
