package vault

import (
	"sync"

	"github.com/holiman/uint256"

	"zusd/crypto"
)

// State is the persistence boundary for account positions. Implementations
// must treat each Put as an atomic replacement of the stored position.
type State interface {
	GetPosition(addr crypto.Address) (*Position, error)
	PutPosition(pos *Position) error
}

// Ledger owns all position state. Mutation primitives are single in-memory
// transitions on a staged position; nothing here calls out of process. The
// orchestrator stages a position, applies primitives, and commits with Put,
// so a failed operation never leaves partial state behind.
type Ledger struct {
	state  State
	assets []Asset
	index  map[Asset]struct{}
}

// NewLedger registers the immutable asset set. The backing state is wired
// separately so engines can be constructed before storage is ready.
func NewLedger(assets []Asset) *Ledger {
	ledger := &Ledger{
		assets: append([]Asset(nil), assets...),
		index:  make(map[Asset]struct{}, len(assets)),
	}
	for _, asset := range assets {
		ledger.index[asset] = struct{}{}
	}
	return ledger
}

// SetState wires the ledger to its persistence layer.
func (l *Ledger) SetState(state State) {
	if l == nil {
		return
	}
	l.state = state
}

// Assets returns the registered assets in registration order.
func (l *Ledger) Assets() []Asset {
	return append([]Asset(nil), l.assets...)
}

// IsRegistered reports whether the asset was registered at construction.
func (l *Ledger) IsRegistered(asset Asset) bool {
	_, ok := l.index[asset]
	return ok
}

// Position loads the stored position for an account, materialising zeroed
// defaults for accounts that have never interacted with the engine.
func (l *Ledger) Position(addr crypto.Address) (*Position, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	pos, err := l.state.GetPosition(addr)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		pos = &Position{Account: addr}
	}
	if pos.Collateral == nil {
		pos.Collateral = make(map[Asset]*uint256.Int)
	}
	if pos.DebtMinted == nil {
		pos.DebtMinted = new(uint256.Int)
	}
	return pos, nil
}

// Put commits a staged position.
func (l *Ledger) Put(pos *Position) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	return l.state.PutPosition(pos)
}

// IncreaseCollateral credits collateral on the staged position.
func (l *Ledger) IncreaseCollateral(pos *Position, asset Asset, amount *uint256.Int) error {
	current := pos.Collateral[asset]
	if current == nil {
		current = new(uint256.Int)
	}
	next, err := checkedAdd(current, amount)
	if err != nil {
		return err
	}
	pos.Collateral[asset] = next
	return nil
}

// DecreaseCollateral debits collateral, failing when the balance cannot cover
// the amount. Stored balances never go negative.
func (l *Ledger) DecreaseCollateral(pos *Position, asset Asset, amount *uint256.Int) error {
	current := pos.Collateral[asset]
	if current == nil || current.Lt(amount) {
		return ErrInsufficientCollateral
	}
	pos.Collateral[asset] = new(uint256.Int).Sub(current, amount)
	return nil
}

// IncreaseDebt credits minted debt on the staged position.
func (l *Ledger) IncreaseDebt(pos *Position, amount *uint256.Int) error {
	next, err := checkedAdd(pos.DebtMinted, amount)
	if err != nil {
		return err
	}
	pos.DebtMinted = next
	return nil
}

// DecreaseDebt debits minted debt. The recorded debt is authoritative: the
// caller's token balance never substitutes for it.
func (l *Ledger) DecreaseDebt(pos *Position, amount *uint256.Int) error {
	if pos.DebtMinted.Lt(amount) {
		return ErrInsufficientDebtMinted
	}
	pos.DebtMinted = new(uint256.Int).Sub(pos.DebtMinted, amount)
	return nil
}

// MemoryState is the in-memory State implementation used by the daemon and
// tests. Positions are cloned on the way in and out so callers can never
// mutate stored state without an explicit Put.
type MemoryState struct {
	mu        sync.RWMutex
	positions map[string]*Position
}

func NewMemoryState() *MemoryState {
	return &MemoryState{positions: make(map[string]*Position)}
}

func (s *MemoryState) GetPosition(addr crypto.Address) (*Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.positions[addr.String()]
	if !ok {
		return nil, nil
	}
	return pos.Clone(), nil
}

func (s *MemoryState) PutPosition(pos *Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[pos.Account.String()] = pos.Clone()
	return nil
}
