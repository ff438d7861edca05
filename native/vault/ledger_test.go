package vault

import (
	"testing"

	"github.com/holiman/uint256"

	"zusd/crypto"
)

func makeAddress(b byte) crypto.Address {
	buf := make([]byte, 20)
	buf[19] = b
	return crypto.NewAddress(crypto.AccountPrefix, buf)
}

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	ledger := NewLedger([]Asset{"WETH", "WBTC"})
	ledger.SetState(NewMemoryState())
	return ledger
}

func TestLedgerMaterializesZeroDefaults(t *testing.T) {
	ledger := newTestLedger(t)
	pos, err := ledger.Position(makeAddress(0x01))
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	if pos.DebtMinted == nil || !pos.DebtMinted.IsZero() {
		t.Fatalf("expected zero debt, got %v", pos.DebtMinted)
	}
	if !pos.CollateralOf("WETH").IsZero() {
		t.Fatalf("expected zero collateral")
	}
}

func TestLedgerCollateralMutations(t *testing.T) {
	ledger := newTestLedger(t)
	addr := makeAddress(0x02)
	pos, err := ledger.Position(addr)
	if err != nil {
		t.Fatalf("position: %v", err)
	}

	if err := ledger.IncreaseCollateral(pos, "WETH", uint256.NewInt(100)); err != nil {
		t.Fatalf("increase: %v", err)
	}
	if err := ledger.DecreaseCollateral(pos, "WETH", uint256.NewInt(40)); err != nil {
		t.Fatalf("decrease: %v", err)
	}
	if got := pos.CollateralOf("WETH"); got.Cmp(uint256.NewInt(60)) != 0 {
		t.Fatalf("unexpected balance: %s", got.Dec())
	}

	if err := ledger.DecreaseCollateral(pos, "WETH", uint256.NewInt(61)); err != ErrInsufficientCollateral {
		t.Fatalf("expected ErrInsufficientCollateral, got %v", err)
	}
	if err := ledger.DecreaseCollateral(pos, "WBTC", uint256.NewInt(1)); err != ErrInsufficientCollateral {
		t.Fatalf("expected ErrInsufficientCollateral for untouched asset, got %v", err)
	}
}

func TestLedgerDebtMutations(t *testing.T) {
	ledger := newTestLedger(t)
	pos, err := ledger.Position(makeAddress(0x03))
	if err != nil {
		t.Fatalf("position: %v", err)
	}

	if err := ledger.IncreaseDebt(pos, uint256.NewInt(500)); err != nil {
		t.Fatalf("increase debt: %v", err)
	}
	if err := ledger.DecreaseDebt(pos, uint256.NewInt(501)); err != ErrInsufficientDebtMinted {
		t.Fatalf("expected ErrInsufficientDebtMinted, got %v", err)
	}
	if err := ledger.DecreaseDebt(pos, uint256.NewInt(500)); err != nil {
		t.Fatalf("decrease debt: %v", err)
	}
	if !pos.DebtMinted.IsZero() {
		t.Fatalf("expected zero debt, got %s", pos.DebtMinted.Dec())
	}
}

func TestLedgerOverflowChecked(t *testing.T) {
	ledger := newTestLedger(t)
	pos, err := ledger.Position(makeAddress(0x04))
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	max := new(uint256.Int).SetAllOne()
	if err := ledger.IncreaseDebt(pos, max); err != nil {
		t.Fatalf("increase debt: %v", err)
	}
	if err := ledger.IncreaseDebt(pos, uint256.NewInt(1)); err != ErrArithmeticOverflow {
		t.Fatalf("expected ErrArithmeticOverflow, got %v", err)
	}
}

func TestMemoryStateIsolatesStoredPositions(t *testing.T) {
	ledger := newTestLedger(t)
	addr := makeAddress(0x05)

	pos, err := ledger.Position(addr)
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	if err := ledger.IncreaseCollateral(pos, "WETH", uint256.NewInt(10)); err != nil {
		t.Fatalf("increase: %v", err)
	}
	if err := ledger.Put(pos); err != nil {
		t.Fatalf("put: %v", err)
	}

	// Mutating the staged copy after commit must not leak into storage.
	if err := ledger.IncreaseCollateral(pos, "WETH", uint256.NewInt(90)); err != nil {
		t.Fatalf("increase staged: %v", err)
	}
	stored, err := ledger.Position(addr)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := stored.CollateralOf("WETH"); got.Cmp(uint256.NewInt(10)) != 0 {
		t.Fatalf("stored position mutated: %s", got.Dec())
	}
}

func TestLedgerRequiresState(t *testing.T) {
	ledger := NewLedger([]Asset{"WETH"})
	if _, err := ledger.Position(makeAddress(0x06)); err != errNilState {
		t.Fatalf("expected errNilState, got %v", err)
	}
}
