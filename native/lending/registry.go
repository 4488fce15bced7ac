package lending

import (
	"errors"
	"sync"
)

var (
	errLoanNotFound      = errors.New("loan registry: loan not found")
	errLoanTerminal      = errors.New("loan registry: loan is in a terminal status")
	errInvalidTransition = errors.New("loan registry: invalid status transition")
	errIdentityMutation  = errors.New("loan registry: identity fields are immutable")
)

// Registry owns the append-only loan collection. Records are keyed by their
// sequential id and every mutation passes through Put, which enforces the
// forward-only status machine. Nothing outside the lending package holds a
// mutable reference to a stored record.
type Registry struct {
	mu    sync.RWMutex
	loans []*Loan
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Append stores a new record and assigns the next sequential id.
func (r *Registry) Append(loan *Loan) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := uint64(len(r.loans))
	stored := loan.Clone()
	stored.ID = id
	stored.ensureAmounts()
	r.loans = append(r.loans, stored)
	return id
}

// Get returns a deep copy of the record. The boolean reports whether the id
// exists; callers that want absent ids to read as zero-value pending records
// (the cancel path) use loanOrZero on the engine instead.
func (r *Registry) Get(id uint64) (*Loan, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id >= uint64(len(r.loans)) {
		return nil, false
	}
	return r.loans[id].Clone(), true
}

// Len reports the number of stored loans.
func (r *Registry) Len() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return uint64(len(r.loans))
}

// Put replaces a stored record after validating the transition: identity
// fields must be untouched, terminal records never change again, and the
// status may only move forward through the lifecycle.
func (r *Registry) Put(loan *Loan) error {
	if loan == nil {
		return errLoanNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if loan.ID >= uint64(len(r.loans)) {
		return errLoanNotFound
	}
	current := r.loans[loan.ID]
	if current.Status.Terminal() {
		return errLoanTerminal
	}
	if !sameIdentity(current, loan) {
		return errIdentityMutation
	}
	if !validTransition(current.Status, loan.Status) {
		return errInvalidTransition
	}
	stored := loan.Clone()
	stored.ensureAmounts()
	r.loans[loan.ID] = stored
	return nil
}

// restore overwrites a record without transition checks. Only the engine's
// rollback path uses it, to undo mutations after a failed value transfer.
func (r *Registry) restore(loan *Loan) {
	if loan == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if loan.ID >= uint64(len(r.loans)) {
		return
	}
	r.loans[loan.ID] = loan.Clone()
}

// ActiveCollateralTotal walks the registry and sums CollateralAmount over all
// Active loans. The result must always equal the escrow's collateral balance
// per token; tests use it to assert the escrow invariant.
func (r *Registry) ActiveCollateralTotal(visit func(loan *Loan)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, loan := range r.loans {
		if loan.Status != StatusActive {
			continue
		}
		visit(loan.Clone())
	}
}

func sameIdentity(a, b *Loan) bool {
	if a.Borrower != b.Borrower || a.Asset != b.Asset || a.Collateral != b.Collateral {
		return false
	}
	if a.AssetAmount.Cmp(b.AssetAmount) != 0 || a.RepaymentAmount.Cmp(b.RepaymentAmount) != 0 {
		return false
	}
	if a.CollateralAmount.Cmp(b.CollateralAmount) != 0 {
		return false
	}
	if a.CreatedAt != b.CreatedAt || a.Duration != b.Duration {
		return false
	}
	// Lender is written exactly once at the pending->active transition.
	if a.Status != StatusPending && a.Lender != b.Lender {
		return false
	}
	return a.Terms == b.Terms
}

func validTransition(from, to LoanStatus) bool {
	if from == to {
		return true
	}
	switch from {
	case StatusPending:
		return to == StatusCanceled || to == StatusActive
	case StatusActive:
		return to == StatusRepaid || to == StatusLiquidated
	default:
		return false
	}
}
