package lending

import (
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"hyperlendp2p/core/events"
	nativecommon "hyperlendp2p/native/common"
	"hyperlendp2p/observability"
)

const moduleName = "lending"

var (
	errNotConfigured        = errors.New("lending engine: engine not configured")
	errNotBorrower          = errors.New("lending engine: caller is not the borrower")
	errInvalidStatus        = errors.New("lending engine: invalid loan status")
	errRequestExpired       = errors.New("lending engine: request expired")
	errInvalidAmount        = errors.New("lending engine: amounts must be positive")
	errRepaymentTooLow      = errors.New("lending engine: repayment must exceed principal")
	errSameToken            = errors.New("lending engine: asset and collateral must differ")
	errThresholdTooHigh     = errors.New("lending engine: liquidation threshold above 10000 bps")
	errFeedDecimalsMismatch = errors.New("lending engine: oracle feeds must share a decimal convention")
	errInstantLiquidation   = errors.New("lending engine: loan would be instantly liquidatable")
)

// Engine orchestrates the loan lifecycle: request, cancel, fill, repay and
// liquidate. It exclusively owns the registry; token and price-feed
// collaborators are resolved per loan and treated as untrusted. Every
// state-mutating operation runs under a single global advisory lock so a
// collaborator callback can never re-enter the module mid-operation.
type Engine struct {
	registry *Registry
	tokens   TokenResolver
	feeds    FeedResolver
	params   *ParamStore
	// moduleAddress is the escrow identity: collateral is held under it
	// between fill and repay/liquidate, and pulls name it as the spender.
	moduleAddress common.Address
	emitter       events.Emitter
	pauses        nativecommon.PauseView
	lock          nativecommon.OpLock
	nowFn         func() int64
	telemetry     *observability.MarketMetrics
}

// NewEngine wires the engine to its owned registry and its collaborator
// resolvers.
func NewEngine(moduleAddr common.Address, registry *Registry, tokens TokenResolver, feeds FeedResolver, params *ParamStore) *Engine {
	return &Engine{
		registry:      registry,
		tokens:        tokens,
		feeds:         feeds,
		params:        params,
		moduleAddress: moduleAddr,
		emitter:       events.NoopEmitter{},
		nowFn:         func() int64 { return time.Now().Unix() },
		telemetry:     observability.Market(),
	}
}

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPauses wires the module pause switches.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetNowFunc overrides the time source, primarily for deterministic tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if e == nil {
		return
	}
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// ModuleAddress returns the escrow identity.
func (e *Engine) ModuleAddress() common.Address { return e.moduleAddress }

// ParamStore exposes the owner-gated parameter store for the admin surface.
func (e *Engine) ParamStore() *ParamStore { return e.params }

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

// restoreAllowance re-credits an allowance consumed by a TransferFrom that is
// being compensated. Approve sets the absolute grant, so the consumed amount
// is added back onto whatever remains.
func (e *Engine) restoreAllowance(token Token, owner common.Address, amount *big.Int) {
	if token == nil || amount == nil || amount.Sign() <= 0 {
		return
	}
	remaining, err := token.Allowance(owner, e.moduleAddress)
	if err != nil {
		return
	}
	_ = token.Approve(owner, e.moduleAddress, new(big.Int).Add(remaining, amount))
}

// EscrowedCollateral sums the collateral held for active loans denominated
// in the given token.
func (e *Engine) EscrowedCollateral(token common.Address) *big.Int {
	total := big.NewInt(0)
	if e == nil || e.registry == nil {
		return total
	}
	e.registry.ActiveCollateralTotal(func(loan *Loan) {
		if loan.Collateral == token {
			total.Add(total, loan.CollateralAmount)
		}
	})
	return total
}

func (e *Engine) syncEscrow(token common.Address) {
	if e.telemetry == nil {
		return
	}
	e.telemetry.SetEscrow(token.Hex(), e.EscrowedCollateral(token))
}

func (e *Engine) ready() error {
	if e == nil || e.registry == nil || e.tokens == nil || e.feeds == nil || e.params == nil {
		return errNotConfigured
	}
	return nil
}

// Loan returns a copy of the stored record.
func (e *Engine) Loan(id uint64) (*Loan, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	loan, ok := e.registry.Get(id)
	if !ok {
		return nil, errLoanNotFound
	}
	return loan, nil
}

// LoanCount reports how many loans have ever been requested.
func (e *Engine) LoanCount() uint64 {
	if e == nil || e.registry == nil {
		return 0
	}
	return e.registry.Len()
}

// loanOrZero reads the record for id, or a zero-value record when the id is
// unknown. Cancel relies on this: an absent record has CreatedAt zero and so
// always fails the expiration window rather than leaking an existence signal.
func (e *Engine) loanOrZero(id uint64) *Loan {
	loan, ok := e.registry.Get(id)
	if !ok {
		loan = &Loan{ID: id}
		loan.ensureAmounts()
	}
	return loan
}

// RequestLoan validates a caller-supplied record and appends it to the
// registry as a pending request. The returned id identifies the loan for the
// rest of its life.
func (e *Engine) RequestLoan(caller common.Address, raw []byte) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if err := e.lock.Acquire(); err != nil {
		return 0, err
	}
	defer e.lock.Release()
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return 0, err
	}

	req, err := DecodeLoanRequest(raw)
	if err != nil {
		return 0, err
	}
	if caller != req.Borrower {
		return 0, errNotBorrower
	}
	if req.AssetAmount == nil || req.AssetAmount.Sign() <= 0 ||
		req.CollateralAmount == nil || req.CollateralAmount.Sign() <= 0 {
		return 0, errInvalidAmount
	}
	if req.RepaymentAmount == nil || req.RepaymentAmount.Cmp(req.AssetAmount) <= 0 {
		return 0, errRepaymentTooLow
	}
	if req.Asset == req.Collateral {
		return 0, errSameToken
	}
	if req.ThresholdBps > maxThresholdBps {
		return 0, errThresholdTooHigh
	}
	if req.Liquidatable {
		assetFeed, err := e.feeds.Feed(req.AssetFeed)
		if err != nil {
			return 0, err
		}
		collateralFeed, err := e.feeds.Feed(req.CollateralFeed)
		if err != nil {
			return 0, err
		}
		assetDecimals, err := assetFeed.Decimals()
		if err != nil {
			return 0, err
		}
		collateralDecimals, err := collateralFeed.Decimals()
		if err != nil {
			return 0, err
		}
		if assetDecimals != collateralDecimals {
			return 0, errFeedDecimalsMismatch
		}
	}

	id := e.registry.Append(req.loan(e.now()))
	e.emit(LoanRequested{LoanID: id, Borrower: req.Borrower})
	return id, nil
}

// CancelLoan withdraws a pending request. Only the borrower may cancel, and
// only inside the expiration window.
func (e *Engine) CancelLoan(caller common.Address, id uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.lock.Acquire(); err != nil {
		return err
	}
	defer e.lock.Release()
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}

	params := e.params.Snapshot()
	loan := e.loanOrZero(id)
	if loan.Status != StatusPending {
		return errInvalidStatus
	}
	if e.now() >= loan.CreatedAt+int64(params.RequestExpiration) {
		return errRequestExpired
	}
	if caller != loan.Borrower {
		return errNotBorrower
	}

	loan.Status = StatusCanceled
	if err := e.registry.Put(loan); err != nil {
		return err
	}
	e.emit(LoanCanceled{LoanID: id, Borrower: loan.Borrower})
	return nil
}

// FillRequest matches the caller as lender against a pending request. The
// insolvency guard runs strictly before any field is committed, so a loan
// born underwater is rejected without side effects. Collateral intake and
// principal forwarding form one atomic unit: if either transfer fails the
// record and any completed transfer are rolled back.
func (e *Engine) FillRequest(caller common.Address, id uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.lock.Acquire(); err != nil {
		return err
	}
	defer e.lock.Release()
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}

	params := e.params.Snapshot()
	now := e.now()
	loan, ok := e.registry.Get(id)
	if !ok {
		return errLoanNotFound
	}
	if loan.Status != StatusPending {
		return errInvalidStatus
	}
	if now >= loan.CreatedAt+int64(params.RequestExpiration) {
		return errRequestExpired
	}

	assetToken, err := e.tokens.Token(loan.Asset)
	if err != nil {
		return err
	}
	collateralToken, err := e.tokens.Token(loan.Collateral)
	if err != nil {
		return err
	}
	if loan.Terms.Enabled {
		insolvent, err := e.priceInsolvent(loan, now, params.MaxPriceAge)
		if err != nil {
			return err
		}
		if insolvent {
			return errInstantLiquidation
		}
	}

	snapshot := loan.Clone()
	loan.Lender = caller
	loan.StartedAt = now
	loan.Status = StatusActive
	if err := e.registry.Put(loan); err != nil {
		return err
	}

	if err := collateralToken.TransferFrom(e.moduleAddress, loan.Borrower, e.moduleAddress, loan.CollateralAmount); err != nil {
		e.registry.restore(snapshot)
		return err
	}
	if err := assetToken.TransferFrom(e.moduleAddress, caller, loan.Borrower, loan.AssetAmount); err != nil {
		_ = collateralToken.Transfer(e.moduleAddress, loan.Borrower, loan.CollateralAmount)
		e.restoreAllowance(collateralToken, loan.Borrower, loan.CollateralAmount)
		e.registry.restore(snapshot)
		return err
	}

	e.syncEscrow(loan.Collateral)
	e.emit(LoanFilled{LoanID: id, Borrower: loan.Borrower, Lender: caller})
	return nil
}

// RepayLoan settles an active loan. Repayment stays allowed past maturity as
// long as liquidation has not happened first. Funds are pulled from the
// borrower regardless of who triggers the call; the collateral goes back to
// the borrower in full.
func (e *Engine) RepayLoan(caller common.Address, id uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.lock.Acquire(); err != nil {
		return err
	}
	defer e.lock.Release()
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}

	params := e.params.Snapshot()
	loan, ok := e.registry.Get(id)
	if !ok {
		return errLoanNotFound
	}
	if loan.Status != StatusActive {
		return errInvalidStatus
	}

	assetToken, err := e.tokens.Token(loan.Asset)
	if err != nil {
		return err
	}
	collateralToken, err := e.tokens.Token(loan.Collateral)
	if err != nil {
		return err
	}
	lenderAmount, protocolFee := SplitRepayment(loan.AssetAmount, loan.RepaymentAmount, params.ProtocolFeeBps)

	snapshot := loan.Clone()
	loan.Status = StatusRepaid
	if err := e.registry.Put(loan); err != nil {
		return err
	}

	if err := assetToken.TransferFrom(e.moduleAddress, loan.Borrower, loan.Lender, lenderAmount); err != nil {
		e.registry.restore(snapshot)
		return err
	}
	if protocolFee.Sign() > 0 {
		if err := assetToken.TransferFrom(e.moduleAddress, loan.Borrower, params.FeeCollector, protocolFee); err != nil {
			_ = assetToken.Transfer(loan.Lender, loan.Borrower, lenderAmount)
			e.restoreAllowance(assetToken, loan.Borrower, lenderAmount)
			e.registry.restore(snapshot)
			return err
		}
	}
	if err := collateralToken.Transfer(e.moduleAddress, loan.Borrower, loan.CollateralAmount); err != nil {
		_ = assetToken.Transfer(loan.Lender, loan.Borrower, lenderAmount)
		restored := new(big.Int).Set(lenderAmount)
		if protocolFee.Sign() > 0 {
			_ = assetToken.Transfer(params.FeeCollector, loan.Borrower, protocolFee)
			restored.Add(restored, protocolFee)
		}
		e.restoreAllowance(assetToken, loan.Borrower, restored)
		e.registry.restore(snapshot)
		return err
	}

	e.syncEscrow(loan.Collateral)
	if e.telemetry != nil {
		e.telemetry.RecordRevenue(loan.Asset.Hex(), protocolFee)
	}
	e.emit(LoanRepaid{LoanID: id, Borrower: loan.Borrower, Lender: loan.Lender})
	e.emit(ProtocolRevenue{LoanID: id, Token: loan.Asset, Amount: protocolFee})
	return nil
}

// IsLiquidatable evaluates the liquidation predicate without mutating state.
// Oracle faults (non-positive or stale prices) abort with an error; they are
// never reported as "not liquidatable".
func (e *Engine) IsLiquidatable(id uint64) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	loan, ok := e.registry.Get(id)
	if !ok {
		return false, nil
	}
	return e.liquidatable(loan, e.now(), e.params.Snapshot())
}

func (e *Engine) liquidatable(loan *Loan, now int64, params Params) (bool, error) {
	if loan.Status != StatusActive {
		return false, nil
	}
	// Time-based default short-circuits and never consults the oracles.
	if now > loan.StartedAt+int64(loan.Duration) {
		return true, nil
	}
	if !loan.Terms.Enabled {
		return false, nil
	}
	return e.priceInsolvent(loan, now, params.MaxPriceAge)
}

// priceInsolvent normalises both sides to USD-equivalent values and compares
// the borrowed value against the threshold fraction of the collateral value.
// Ties are not insolvent.
func (e *Engine) priceInsolvent(loan *Loan, now int64, maxPriceAge uint64) (bool, error) {
	assetFeed, err := e.feeds.Feed(loan.Terms.AssetFeed)
	if err != nil {
		return false, err
	}
	collateralFeed, err := e.feeds.Feed(loan.Terms.CollateralFeed)
	if err != nil {
		return false, err
	}
	assetPrice, err := validRound(assetFeed, now, maxPriceAge)
	if err != nil {
		return false, err
	}
	collateralPrice, err := validRound(collateralFeed, now, maxPriceAge)
	if err != nil {
		return false, err
	}
	assetToken, err := e.tokens.Token(loan.Asset)
	if err != nil {
		return false, err
	}
	collateralToken, err := e.tokens.Token(loan.Collateral)
	if err != nil {
		return false, err
	}
	assetDecimals, err := assetToken.Decimals()
	if err != nil {
		return false, err
	}
	collateralDecimals, err := collateralToken.Decimals()
	if err != nil {
		return false, err
	}

	loanValue := usdValue(loan.AssetAmount, assetPrice, assetDecimals)
	collateralValue := usdValue(loan.CollateralAmount, collateralPrice, collateralDecimals)
	adjusted := new(big.Int).Mul(collateralValue, new(big.Int).SetUint64(loan.Terms.ThresholdBps))
	adjusted.Quo(adjusted, basisPoints)
	return loanValue.Cmp(adjusted) > 0, nil
}

// LiquidateLoan liquidates an eligible active loan and distributes the
// collateral between lender, liquidator and fee collector. An ineligible loan
// returns false without an error; only oracle faults abort.
func (e *Engine) LiquidateLoan(caller common.Address, id uint64) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	if err := e.lock.Acquire(); err != nil {
		return false, err
	}
	defer e.lock.Release()
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return false, err
	}

	params := e.params.Snapshot()
	now := e.now()
	loan, ok := e.registry.Get(id)
	if !ok {
		return false, nil
	}
	eligible, err := e.liquidatable(loan, now, params)
	if err != nil {
		return false, err
	}
	if !eligible {
		return false, nil
	}

	collateralToken, err := e.tokens.Token(loan.Collateral)
	if err != nil {
		return false, err
	}
	lenderAmount, liquidatorBonus, protocolFee := SplitCollateral(loan.CollateralAmount, params.LiquidatorBonusBps, params.ProtocolLiquidationFeeBps)

	snapshot := loan.Clone()
	loan.Status = StatusLiquidated
	if err := e.registry.Put(loan); err != nil {
		return false, err
	}

	if err := collateralToken.Transfer(e.moduleAddress, loan.Lender, lenderAmount); err != nil {
		e.registry.restore(snapshot)
		return false, err
	}
	if liquidatorBonus.Sign() > 0 {
		if err := collateralToken.Transfer(e.moduleAddress, caller, liquidatorBonus); err != nil {
			_ = collateralToken.Transfer(loan.Lender, e.moduleAddress, lenderAmount)
			e.registry.restore(snapshot)
			return false, err
		}
	}
	if protocolFee.Sign() > 0 {
		if err := collateralToken.Transfer(e.moduleAddress, params.FeeCollector, protocolFee); err != nil {
			_ = collateralToken.Transfer(loan.Lender, e.moduleAddress, lenderAmount)
			if liquidatorBonus.Sign() > 0 {
				_ = collateralToken.Transfer(caller, e.moduleAddress, liquidatorBonus)
			}
			e.registry.restore(snapshot)
			return false, err
		}
	}

	e.syncEscrow(loan.Collateral)
	if e.telemetry != nil {
		e.telemetry.RecordRevenue(loan.Collateral.Hex(), protocolFee)
	}
	e.emit(LoanLiquidated{LoanID: id, Liquidator: caller})
	e.emit(ProtocolRevenue{LoanID: id, Token: loan.Collateral, Amount: protocolFee})
	return true, nil
}
