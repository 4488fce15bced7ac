package lending

import (
	"errors"
	"math/big"
	"testing"
)

func storedLoan(t *testing.T, r *Registry) *Loan {
	t.Helper()
	loan := baseRequest().loan(1_700_000_000)
	id := r.Append(loan)
	stored, ok := r.Get(id)
	if !ok {
		t.Fatalf("loan %d missing after append", id)
	}
	return stored
}

func TestRegistryAppendAssignsSequentialIDs(t *testing.T) {
	r := NewRegistry()
	for want := uint64(0); want < 3; want++ {
		if id := r.Append(baseRequest().loan(0)); id != want {
			t.Fatalf("id = %d, want %d", id, want)
		}
	}
	if r.Len() != 3 {
		t.Fatalf("len = %d, want 3", r.Len())
	}
	if _, ok := r.Get(3); ok {
		t.Fatal("id past the end must not resolve")
	}
}

func TestRegistryGetReturnsCopy(t *testing.T) {
	r := NewRegistry()
	loan := storedLoan(t, r)
	loan.AssetAmount.SetInt64(1)
	loan.Status = StatusLiquidated

	fresh, _ := r.Get(loan.ID)
	if fresh.AssetAmount.Cmp(e18(10)) != 0 || fresh.Status != StatusPending {
		t.Fatal("mutating a returned copy must not touch the stored record")
	}
}

func TestRegistryTransitions(t *testing.T) {
	allowed := map[LoanStatus][]LoanStatus{
		StatusPending: {StatusPending, StatusCanceled, StatusActive},
		StatusActive:  {StatusActive, StatusRepaid, StatusLiquidated},
	}
	for from := StatusPending; from <= StatusLiquidated; from++ {
		for to := StatusPending; to <= StatusLiquidated; to++ {
			want := false
			for _, ok := range allowed[from] {
				if to == ok {
					want = true
				}
			}
			if from.Terminal() {
				want = from == to
			}
			if got := validTransition(from, to); got != want {
				t.Fatalf("validTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestRegistryPutRejectsBackwardTransition(t *testing.T) {
	r := NewRegistry()
	loan := storedLoan(t, r)
	loan.Lender = lenderAddr
	loan.StartedAt = loan.CreatedAt
	loan.Status = StatusActive
	if err := r.Put(loan); err != nil {
		t.Fatalf("activate: %v", err)
	}

	back, _ := r.Get(loan.ID)
	back.Status = StatusPending
	if err := r.Put(back); !errors.Is(err, errInvalidTransition) {
		t.Fatalf("active->pending must fail, got %v", err)
	}
}

func TestRegistryTerminalFreeze(t *testing.T) {
	r := NewRegistry()
	loan := storedLoan(t, r)
	loan.Status = StatusCanceled
	if err := r.Put(loan); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	again, _ := r.Get(loan.ID)
	again.Status = StatusActive
	if err := r.Put(again); !errors.Is(err, errLoanTerminal) {
		t.Fatalf("terminal record must freeze, got %v", err)
	}
	same, _ := r.Get(loan.ID)
	if err := r.Put(same); !errors.Is(err, errLoanTerminal) {
		t.Fatalf("even a no-op write must be rejected, got %v", err)
	}
}

func TestRegistryPutRejectsIdentityMutation(t *testing.T) {
	r := NewRegistry()
	loan := storedLoan(t, r)
	loan.AssetAmount = big.NewInt(1)
	if err := r.Put(loan); !errors.Is(err, errIdentityMutation) {
		t.Fatalf("principal mutation must fail, got %v", err)
	}

	loan, _ = r.Get(0)
	loan.Borrower = lenderAddr
	if err := r.Put(loan); !errors.Is(err, errIdentityMutation) {
		t.Fatalf("borrower mutation must fail, got %v", err)
	}

	// The lender is written once at activation and immutable afterwards.
	loan, _ = r.Get(0)
	loan.Lender = lenderAddr
	loan.Status = StatusActive
	if err := r.Put(loan); err != nil {
		t.Fatalf("activate: %v", err)
	}
	loan, _ = r.Get(0)
	loan.Lender = keeperAddr
	if err := r.Put(loan); !errors.Is(err, errIdentityMutation) {
		t.Fatalf("lender mutation must fail, got %v", err)
	}
}

func TestRegistryRestoreBypassesChecks(t *testing.T) {
	r := NewRegistry()
	loan := storedLoan(t, r)
	snapshot := loan.Clone()

	loan.Lender = lenderAddr
	loan.Status = StatusActive
	if err := r.Put(loan); err != nil {
		t.Fatalf("activate: %v", err)
	}
	r.restore(snapshot)

	got, _ := r.Get(loan.ID)
	if got.Status != StatusPending || got.Lender != snapshot.Lender {
		t.Fatalf("restore must rewind the record: %+v", got)
	}
}
