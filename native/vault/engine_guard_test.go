package vault

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/holiman/uint256"

	"zusd/crypto"
	nativecommon "zusd/native/common"
	"zusd/state/token"
)

// reentrantToken calls back into the engine from inside TransferFrom, the way
// a hostile external ledger would.
type reentrantToken struct {
	engine *Engine
	caller crypto.Address
	seen   error
}

func (r *reentrantToken) Allowance(_, _ crypto.Address) (*uint256.Int, error) {
	return new(uint256.Int).SetAllOne(), nil
}

func (r *reentrantToken) TransferFrom(_, _ crypto.Address, amount *uint256.Int) (bool, error) {
	r.seen = r.engine.Deposit(r.caller, "WETH", amount)
	return true, nil
}

func (r *reentrantToken) Transfer(_ crypto.Address, _ *uint256.Int) (bool, error) {
	return true, nil
}

func TestGuardBlocksReentrantOperation(t *testing.T) {
	engineAddr := makeAddress(0xEE)
	now := time.Unix(1_700_000_000, 0).UTC()
	feed := &StaticSource{}
	feed.Set(big.NewInt(2000_0000_0000), 8, now)
	debt := token.NewLedger("ZUSD", engineAddr)
	user := makeAddress(0x41)

	hostile := &reentrantToken{caller: user}
	engine, err := NewEngine(engineAddr, []Asset{"WETH"}, []QuoteSource{feed}, []CollateralToken{hostile}, debt)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	engine.SetState(NewMemoryState())
	engine.SetClock(fixedClock(now))
	hostile.engine = engine

	if err := engine.Deposit(user, "WETH", tenUnits); err != nil {
		t.Fatalf("outer deposit: %v", err)
	}
	if hostile.seen != ErrReentrancyBlocked {
		t.Fatalf("expected inner call to see ErrReentrancyBlocked, got %v", hostile.seen)
	}

	// The inner call must have left no trace: only the outer deposit counts.
	recorded, err := engine.CollateralOf(user, "WETH")
	if err != nil {
		t.Fatalf("collateral of: %v", err)
	}
	if recorded.Cmp(tenUnits) != 0 {
		t.Fatalf("unexpected recorded collateral: %s", recorded.Dec())
	}
}

func TestGuardReleasedAfterFailure(t *testing.T) {
	f := newEngineFixture(t)
	user := makeAddress(0x42)

	if err := f.engine.Deposit(user, "WETH", new(uint256.Int)); err != ErrNeedsMoreThanZero {
		t.Fatalf("expected ErrNeedsMoreThanZero, got %v", err)
	}
	// A failed operation must not leave the guard held.
	f.fundCollateral(user, tenUnits)
	if err := f.engine.Deposit(user, "WETH", tenUnits); err != nil {
		t.Fatalf("follow-up deposit: %v", err)
	}
}

type pauseMap map[string]bool

func (p pauseMap) IsPaused(module string) bool { return p[module] }

func TestPausedModuleRejectsMutations(t *testing.T) {
	f := newEngineFixture(t)
	user := makeAddress(0x43)
	f.fundCollateral(user, tenUnits)
	if err := f.engine.Deposit(user, "WETH", tenUnits); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	f.engine.SetPauses(pauseMap{"vault": true})

	if err := f.engine.Mint(user, oneThousand); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	if err := f.engine.Redeem(user, "WETH", tenUnits); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused on redeem, got %v", err)
	}

	// Queries stay open while mutations are paused.
	if _, err := f.engine.HealthFactor(user); err != nil {
		t.Fatalf("health factor during pause: %v", err)
	}
	recorded, err := f.engine.CollateralOf(user, "WETH")
	if err != nil {
		t.Fatalf("collateral of during pause: %v", err)
	}
	if recorded.Cmp(tenUnits) != 0 {
		t.Fatalf("state changed during pause: %s", recorded.Dec())
	}

	f.engine.SetPauses(pauseMap{})
	if err := f.engine.Mint(user, oneThousand); err != nil {
		t.Fatalf("mint after unpause: %v", err)
	}
}
