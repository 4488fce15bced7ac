package lending

import "math/big"

var basisPoints = big.NewInt(10_000)

// FeeAmount computes amount*bps/10000 with division truncating toward zero.
// Nil or negative amounts yield zero.
func FeeAmount(amount *big.Int, bps uint64) *big.Int {
	if amount == nil || amount.Sign() <= 0 || bps == 0 {
		return big.NewInt(0)
	}
	fee := new(big.Int).Mul(amount, new(big.Int).SetUint64(bps))
	return fee.Quo(fee, basisPoints)
}

// SplitRepayment divides the repayment between the lender and the fee
// collector. The protocol fee is taken from the interest portion only
// (repayment minus principal); the lender receives the remainder of the full
// repayment, so the two parts always sum to repaymentAmount exactly.
func SplitRepayment(assetAmount, repaymentAmount *big.Int, protocolFeeBps uint64) (lenderAmount, protocolFee *big.Int) {
	interest := new(big.Int).Sub(repaymentAmount, assetAmount)
	protocolFee = FeeAmount(interest, protocolFeeBps)
	lenderAmount = new(big.Int).Sub(repaymentAmount, protocolFee)
	return lenderAmount, protocolFee
}

// SplitCollateral divides seized collateral between the lender, the liquidator
// and the fee collector. Bonus and fee are floored bps shares of the full
// collateral; the lender takes the remainder, so the three parts reconstruct
// collateralAmount with zero residue.
func SplitCollateral(collateralAmount *big.Int, liquidatorBonusBps, protocolFeeBps uint64) (lenderAmount, liquidatorBonus, protocolFee *big.Int) {
	liquidatorBonus = FeeAmount(collateralAmount, liquidatorBonusBps)
	protocolFee = FeeAmount(collateralAmount, protocolFeeBps)
	lenderAmount = new(big.Int).Sub(collateralAmount, liquidatorBonus)
	lenderAmount.Sub(lenderAmount, protocolFee)
	return lenderAmount, liquidatorBonus, protocolFee
}
