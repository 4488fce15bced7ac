package lending

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"hyperlendp2p/core/types"
)

const (
	EventTypeLoanRequested   = "loan.requested"
	EventTypeLoanCanceled    = "loan.canceled"
	EventTypeLoanFilled      = "loan.filled"
	EventTypeLoanRepaid      = "loan.repaid"
	EventTypeLoanLiquidated  = "loan.liquidated"
	EventTypeProtocolRevenue = "lending.protocol_revenue"
	EventTypeParamUpdated    = "lending.param_updated"
)

type LoanRequested struct {
	LoanID   uint64
	Borrower common.Address
}

func (LoanRequested) EventType() string { return EventTypeLoanRequested }

func (e LoanRequested) Event() *types.Event {
	return &types.Event{
		Type: EventTypeLoanRequested,
		Attributes: map[string]string{
			"loanId":   formatUint(e.LoanID),
			"borrower": e.Borrower.Hex(),
		},
	}
}

type LoanCanceled struct {
	LoanID   uint64
	Borrower common.Address
}

func (LoanCanceled) EventType() string { return EventTypeLoanCanceled }

func (e LoanCanceled) Event() *types.Event {
	return &types.Event{
		Type: EventTypeLoanCanceled,
		Attributes: map[string]string{
			"loanId":   formatUint(e.LoanID),
			"borrower": e.Borrower.Hex(),
		},
	}
}

type LoanFilled struct {
	LoanID   uint64
	Borrower common.Address
	Lender   common.Address
}

func (LoanFilled) EventType() string { return EventTypeLoanFilled }

func (e LoanFilled) Event() *types.Event {
	return &types.Event{
		Type: EventTypeLoanFilled,
		Attributes: map[string]string{
			"loanId":   formatUint(e.LoanID),
			"borrower": e.Borrower.Hex(),
			"lender":   e.Lender.Hex(),
		},
	}
}

type LoanRepaid struct {
	LoanID   uint64
	Borrower common.Address
	Lender   common.Address
}

func (LoanRepaid) EventType() string { return EventTypeLoanRepaid }

func (e LoanRepaid) Event() *types.Event {
	return &types.Event{
		Type: EventTypeLoanRepaid,
		Attributes: map[string]string{
			"loanId":   formatUint(e.LoanID),
			"borrower": e.Borrower.Hex(),
			"lender":   e.Lender.Hex(),
		},
	}
}

type LoanLiquidated struct {
	LoanID     uint64
	Liquidator common.Address
}

func (LoanLiquidated) EventType() string { return EventTypeLoanLiquidated }

func (e LoanLiquidated) Event() *types.Event {
	return &types.Event{
		Type: EventTypeLoanLiquidated,
		Attributes: map[string]string{
			"loanId":     formatUint(e.LoanID),
			"liquidator": e.Liquidator.Hex(),
		},
	}
}

// ProtocolRevenue records a fee credited to the collector: the asset fee on
// repayment or the collateral fee on liquidation.
type ProtocolRevenue struct {
	LoanID uint64
	Token  common.Address
	Amount *big.Int
}

func (ProtocolRevenue) EventType() string { return EventTypeProtocolRevenue }

func (e ProtocolRevenue) Event() *types.Event {
	return &types.Event{
		Type: EventTypeProtocolRevenue,
		Attributes: map[string]string{
			"loanId": formatUint(e.LoanID),
			"token":  e.Token.Hex(),
			"amount": formatAmount(e.Amount),
		},
	}
}

type ParamUpdated struct {
	Name     string
	OldValue string
	NewValue string
	Version  uint64
}

func (ParamUpdated) EventType() string { return EventTypeParamUpdated }

func (e ParamUpdated) Event() *types.Event {
	return &types.Event{
		Type: EventTypeParamUpdated,
		Attributes: map[string]string{
			"param":   e.Name,
			"old":     e.OldValue,
			"new":     e.NewValue,
			"version": formatUint(e.Version),
		},
	}
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
