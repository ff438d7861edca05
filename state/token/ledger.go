// Package token provides the in-memory external ledger used by vaultd and the
// engine tests. It implements both boundary interfaces the vault engine
// consumes: the collateral token surface (allowance/transferFrom/transfer) and
// the debt token surface (mint/burn). The engine never assumes anything beyond
// those interfaces.
package token

import (
	"sync"

	"github.com/holiman/uint256"

	"zusd/crypto"
)

// Ledger is a minimal fungible-token ledger. The operator address is the
// implicit sender for Transfer and the implicit spender for TransferFrom,
// matching how the vault engine drives its external ledgers.
type Ledger struct {
	mu         sync.RWMutex
	symbol     string
	operator   crypto.Address
	balances   map[string]*uint256.Int
	allowances map[string]*uint256.Int
	supply     *uint256.Int
}

func NewLedger(symbol string, operator crypto.Address) *Ledger {
	return &Ledger{
		symbol:     symbol,
		operator:   operator,
		balances:   make(map[string]*uint256.Int),
		allowances: make(map[string]*uint256.Int),
		supply:     new(uint256.Int),
	}
}

func (l *Ledger) Symbol() string {
	return l.symbol
}

func allowanceKey(owner, spender crypto.Address) string {
	return owner.String() + "|" + spender.String()
}

// Credit seeds a balance without touching total supply accounting. Intended
// for genesis wiring and tests.
func (l *Ledger) Credit(addr crypto.Address, amount *uint256.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(addr, amount)
}

func (l *Ledger) credit(addr crypto.Address, amount *uint256.Int) {
	key := addr.String()
	current := l.balances[key]
	if current == nil {
		current = new(uint256.Int)
	}
	l.balances[key] = new(uint256.Int).Add(current, amount)
}

func (l *Ledger) debit(addr crypto.Address, amount *uint256.Int) bool {
	key := addr.String()
	current := l.balances[key]
	if current == nil || current.Lt(amount) {
		return false
	}
	l.balances[key] = new(uint256.Int).Sub(current, amount)
	return true
}

// BalanceOf returns a copy of the recorded balance.
func (l *Ledger) BalanceOf(addr crypto.Address) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	balance := l.balances[addr.String()]
	if balance == nil {
		return new(uint256.Int)
	}
	return balance.Clone()
}

// TotalSupply returns the outstanding minted supply.
func (l *Ledger) TotalSupply() *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.supply.Clone()
}

// Approve authorises a spender to pull up to amount from the owner.
func (l *Ledger) Approve(owner, spender crypto.Address, amount *uint256.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.allowances[allowanceKey(owner, spender)] = amount.Clone()
}

// Allowance reports the remaining approved amount.
func (l *Ledger) Allowance(owner, spender crypto.Address) (*uint256.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	allowance := l.allowances[allowanceKey(owner, spender)]
	if allowance == nil {
		return new(uint256.Int), nil
	}
	return allowance.Clone(), nil
}

// TransferFrom moves funds from the owner using the operator's allowance. A
// shortfall of balance or allowance reports false, not an error.
func (l *Ledger) TransferFrom(from, to crypto.Address, amount *uint256.Int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := allowanceKey(from, l.operator)
	allowance := l.allowances[key]
	if allowance == nil || allowance.Lt(amount) {
		return false, nil
	}
	if !l.debit(from, amount) {
		return false, nil
	}
	l.allowances[key] = new(uint256.Int).Sub(allowance, amount)
	l.credit(to, amount)
	return true, nil
}

// Transfer moves funds out of the operator's balance.
func (l *Ledger) Transfer(to crypto.Address, amount *uint256.Int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.debit(l.operator, amount) {
		return false, nil
	}
	l.credit(to, amount)
	return true, nil
}

// Mint creates new supply for the recipient. In-process the restriction that
// only the engine may mint is structural: the engine holds the sole reference.
func (l *Ledger) Mint(to crypto.Address, amount *uint256.Int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(to, amount)
	l.supply = new(uint256.Int).Add(l.supply, amount)
	return true, nil
}

// Burn retires supply from the operator's balance.
func (l *Ledger) Burn(amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.debit(l.operator, amount) {
		return ErrBurnExceedsBalance
	}
	l.supply = new(uint256.Int).Sub(l.supply, amount)
	return nil
}
