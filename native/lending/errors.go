package lending

import (
	"errors"

	nativecommon "hyperlendp2p/native/common"
)

// ValidationError reports whether err is a caller fault (bad input, wrong
// caller, lifecycle violation) rather than an internal or oracle failure. The
// RPC layer uses it to choose between invalid-params and server-error codes.
func ValidationError(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, errNotBorrower),
		errors.Is(err, errInvalidStatus),
		errors.Is(err, errRequestExpired),
		errors.Is(err, errInvalidAmount),
		errors.Is(err, errRepaymentTooLow),
		errors.Is(err, errSameToken),
		errors.Is(err, errThresholdTooHigh),
		errors.Is(err, errFeedDecimalsMismatch),
		errors.Is(err, errInstantLiquidation),
		errors.Is(err, errLoanNotFound),
		errors.Is(err, errFeedNotFound),
		errors.Is(err, errTokenNotFound),
		errors.Is(err, errInsufficientBalance),
		errors.Is(err, errInsufficientAllowance),
		errors.Is(err, errNonPositiveTransfer),
		errors.Is(err, errNotOwner),
		errors.Is(err, errFeeCollectorRequired),
		errors.Is(err, errExpirationTooShort),
		errors.Is(err, errProtocolFeeTooHigh),
		errors.Is(err, errBonusTooHigh),
		errors.Is(err, errLiquidationFeeHigh),
		errors.Is(err, errPriceAgeRequired):
		return true
	case errors.Is(err, nativecommon.ErrModulePaused),
		errors.Is(err, nativecommon.ErrReentrantCall):
		return true
	default:
		return false
	}
}
