package lending

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	errTokenNotFound         = errors.New("lending token: token not registered")
	errInsufficientBalance   = errors.New("lending token: insufficient balance")
	errInsufficientAllowance = errors.New("lending token: insufficient allowance")
	errNonPositiveTransfer   = errors.New("lending token: amount must be positive")
)

// Token is the fungible-token capability consumed per loan. It mirrors the
// usual transfer/transferFrom/approve/balanceOf/decimals surface with the
// caller made explicit, since there is no ambient sender in-process.
type Token interface {
	Decimals() (uint8, error)
	BalanceOf(addr common.Address) (*big.Int, error)
	// Transfer moves value out of from's own balance.
	Transfer(from, to common.Address, amount *big.Int) error
	// Approve lets spender move up to amount out of owner's balance.
	Approve(owner, spender common.Address, amount *big.Int) error
	Allowance(owner, spender common.Address) (*big.Int, error)
	// TransferFrom moves value out of owner's balance on behalf of spender,
	// consuming the corresponding allowance.
	TransferFrom(spender, owner, to common.Address, amount *big.Int) error
}

// TokenResolver resolves the token referenced by id in a loan record.
type TokenResolver interface {
	Token(id common.Address) (Token, error)
}

// Ledger is the in-memory token backend used by the daemon and the tests. It
// keeps balances and allowances per registered token and implements
// TokenResolver by handing out per-token views.
type Ledger struct {
	mu     sync.RWMutex
	tokens map[common.Address]*ledgerToken
}

type ledgerToken struct {
	symbol     string
	decimals   uint8
	balances   map[common.Address]*big.Int
	allowances map[common.Address]map[common.Address]*big.Int
}

// NewLedger constructs an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{tokens: make(map[common.Address]*ledgerToken)}
}

// RegisterToken declares a token under the supplied identifier.
func (l *Ledger) RegisterToken(id common.Address, symbol string, decimals uint8) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.tokens[id]; ok {
		return
	}
	l.tokens[id] = &ledgerToken{
		symbol:     symbol,
		decimals:   decimals,
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[common.Address]map[common.Address]*big.Int),
	}
}

// Mint credits the address with new supply. Used for genesis balances and
// test fixtures.
func (l *Ledger) Mint(id, addr common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errNonPositiveTransfer
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	tok, ok := l.tokens[id]
	if !ok {
		return fmt.Errorf("%w: %s", errTokenNotFound, id.Hex())
	}
	tok.credit(addr, amount)
	return nil
}

// Token implements TokenResolver.
func (l *Ledger) Token(id common.Address) (Token, error) {
	l.mu.RLock()
	_, ok := l.tokens[id]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", errTokenNotFound, id.Hex())
	}
	return &tokenView{ledger: l, id: id}, nil
}

// tokenView binds the Token capability to one registered token.
type tokenView struct {
	ledger *Ledger
	id     common.Address
}

func (v *tokenView) resolve() (*ledgerToken, error) {
	tok, ok := v.ledger.tokens[v.id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errTokenNotFound, v.id.Hex())
	}
	return tok, nil
}

func (v *tokenView) Decimals() (uint8, error) {
	v.ledger.mu.RLock()
	defer v.ledger.mu.RUnlock()
	tok, err := v.resolve()
	if err != nil {
		return 0, err
	}
	return tok.decimals, nil
}

func (v *tokenView) BalanceOf(addr common.Address) (*big.Int, error) {
	v.ledger.mu.RLock()
	defer v.ledger.mu.RUnlock()
	tok, err := v.resolve()
	if err != nil {
		return nil, err
	}
	return tok.balance(addr), nil
}

func (v *tokenView) Transfer(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errNonPositiveTransfer
	}
	v.ledger.mu.Lock()
	defer v.ledger.mu.Unlock()
	tok, err := v.resolve()
	if err != nil {
		return err
	}
	if tok.balance(from).Cmp(amount) < 0 {
		return errInsufficientBalance
	}
	tok.debit(from, amount)
	tok.credit(to, amount)
	return nil
}

func (v *tokenView) Approve(owner, spender common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errNonPositiveTransfer
	}
	v.ledger.mu.Lock()
	defer v.ledger.mu.Unlock()
	tok, err := v.resolve()
	if err != nil {
		return err
	}
	grants, ok := tok.allowances[owner]
	if !ok {
		grants = make(map[common.Address]*big.Int)
		tok.allowances[owner] = grants
	}
	grants[spender] = new(big.Int).Set(amount)
	return nil
}

func (v *tokenView) Allowance(owner, spender common.Address) (*big.Int, error) {
	v.ledger.mu.RLock()
	defer v.ledger.mu.RUnlock()
	tok, err := v.resolve()
	if err != nil {
		return nil, err
	}
	return tok.allowance(owner, spender), nil
}

func (v *tokenView) TransferFrom(spender, owner, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errNonPositiveTransfer
	}
	v.ledger.mu.Lock()
	defer v.ledger.mu.Unlock()
	tok, err := v.resolve()
	if err != nil {
		return err
	}
	allowance := tok.allowance(owner, spender)
	if allowance.Cmp(amount) < 0 {
		return errInsufficientAllowance
	}
	if tok.balance(owner).Cmp(amount) < 0 {
		return errInsufficientBalance
	}
	tok.allowances[owner][spender] = allowance.Sub(allowance, amount)
	tok.debit(owner, amount)
	tok.credit(to, amount)
	return nil
}

func (t *ledgerToken) balance(addr common.Address) *big.Int {
	if b, ok := t.balances[addr]; ok {
		return new(big.Int).Set(b)
	}
	return big.NewInt(0)
}

func (t *ledgerToken) allowance(owner, spender common.Address) *big.Int {
	if grants, ok := t.allowances[owner]; ok {
		if a, ok := grants[spender]; ok {
			return new(big.Int).Set(a)
		}
	}
	return big.NewInt(0)
}

func (t *ledgerToken) credit(addr common.Address, amount *big.Int) {
	t.balances[addr] = new(big.Int).Add(t.balance(addr), amount)
}

func (t *ledgerToken) debit(addr common.Address, amount *big.Int) {
	t.balances[addr] = new(big.Int).Sub(t.balance(addr), amount)
}
