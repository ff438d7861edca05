package vault

import (
	"errors"
	"math/big"
	"testing"

	"github.com/holiman/uint256"

	"zusd/crypto"
)

// seedLiquidationScenario opens a position of 10 WETH backing 10,000 debt
// units at $2000, then gives the liquidator a small healthy position plus the
// debt tokens needed to cover repayments.
func seedLiquidationScenario(t *testing.T) (*engineFixture, crypto.Address, crypto.Address) {
	t.Helper()
	f := newEngineFixture(t)
	target := makeAddress(0x31)
	liquidator := makeAddress(0x32)

	f.fundCollateral(target, tenUnits)
	if err := f.engine.DepositAndMint(target, "WETH", tenUnits, tenThousand); err != nil {
		t.Fatalf("open target position: %v", err)
	}

	fiveHundred := mustUint("500000000000000000000")
	f.fundCollateral(liquidator, tenUnits)
	if err := f.engine.DepositAndMint(liquidator, "WETH", tenUnits, fiveHundred); err != nil {
		t.Fatalf("open liquidator position: %v", err)
	}
	f.approveDebt(liquidator, fiveHundred)
	return f, target, liquidator
}

func TestLiquidateRejectsHealthyTarget(t *testing.T) {
	f, target, liquidator := seedLiquidationScenario(t)

	err := doLiquidate(f, liquidator, target, mustUint("500000000000000000000"))
	var okErr *HealthFactorOkError
	if !errors.As(err, &okErr) {
		t.Fatalf("expected HealthFactorOkError, got %v", err)
	}
	if want := mustUint("1000000000000000000"); okErr.HealthFactor.Cmp(want) != 0 {
		t.Fatalf("unexpected reported health factor: %s", okErr.HealthFactor.Dec())
	}
}

func doLiquidate(f *engineFixture, liquidator, target crypto.Address, cover *uint256.Int) error {
	_, err := f.engine.Liquidate(liquidator, "WETH", target, cover)
	return err
}

func TestLiquidateSeizesDiscountedCollateral(t *testing.T) {
	f, target, liquidator := seedLiquidationScenario(t)

	// Crash to $1500: the target's health factor drops to 0.75.
	f.wethFeed.Set(big.NewInt(1500_0000_0000), 8, f.now)

	cover := mustUint("500000000000000000000")
	receipt, err := f.engine.Liquidate(liquidator, "WETH", target, cover)
	if err != nil {
		t.Fatalf("liquidate: %v", err)
	}

	// 500 debt units at $1500 convert to 1/3 WETH; the 10% bonus brings the
	// seizure to 0.366... WETH.
	if want := mustUint("366666666666666666"); receipt.CollateralSeized.Cmp(want) != 0 {
		t.Fatalf("unexpected seizure: got %s want %s", receipt.CollateralSeized.Dec(), want.Dec())
	}
	if want := mustUint("750000000000000000"); receipt.StartingHealth.Cmp(want) != 0 {
		t.Fatalf("unexpected starting health: %s", receipt.StartingHealth.Dec())
	}
	if want := mustUint("760526315789473684"); receipt.EndingHealth.Cmp(want) != 0 {
		t.Fatalf("unexpected ending health: %s", receipt.EndingHealth.Dec())
	}

	debt, err := f.engine.DebtOf(target)
	if err != nil {
		t.Fatalf("debt of target: %v", err)
	}
	if want := mustUint("9500000000000000000000"); debt.Cmp(want) != 0 {
		t.Fatalf("unexpected remaining debt: %s", debt.Dec())
	}
	if balance := f.weth.BalanceOf(liquidator); balance.Cmp(receipt.CollateralSeized) != 0 {
		t.Fatalf("liquidator did not receive the seizure: %s", balance.Dec())
	}
	// 10,500 minted in total, 500 retired by the repayment.
	if supply := f.debt.TotalSupply(); supply.Cmp(tenThousand) != 0 {
		t.Fatalf("unexpected debt supply: %s", supply.Dec())
	}
}

func TestLiquidateRequiresStrictImprovement(t *testing.T) {
	f, target, liquidator := seedLiquidationScenario(t)

	// At $400 the position is so far underwater that a partial liquidation
	// lowers the health factor further.
	f.wethFeed.Set(big.NewInt(400_0000_0000), 8, f.now)

	err := doLiquidate(f, liquidator, target, mustUint("500000000000000000000"))
	var notImproved *HealthFactorNotImprovedError
	if !errors.As(err, &notImproved) {
		t.Fatalf("expected HealthFactorNotImprovedError, got %v", err)
	}

	debt, err := f.engine.DebtOf(target)
	if err != nil {
		t.Fatalf("debt of target: %v", err)
	}
	if debt.Cmp(tenThousand) != 0 {
		t.Fatalf("target debt should be untouched, got %s", debt.Dec())
	}
	collateral, err := f.engine.CollateralOf(target, "WETH")
	if err != nil {
		t.Fatalf("collateral of target: %v", err)
	}
	if collateral.Cmp(tenUnits) != 0 {
		t.Fatalf("target collateral should be untouched, got %s", collateral.Dec())
	}
}

func TestLiquidateRejectsOversizedSeizure(t *testing.T) {
	f, target, liquidator := seedLiquidationScenario(t)

	// Covering 4,000 debt units at $400 converts to 10 WETH; with the bonus
	// the seizure would be 11 WETH against 10 held.
	f.wethFeed.Set(big.NewInt(400_0000_0000), 8, f.now)

	err := doLiquidate(f, liquidator, target, mustUint("4000000000000000000000"))
	if err != ErrNotEnoughCollateralForLiquidation {
		t.Fatalf("expected ErrNotEnoughCollateralForLiquidation, got %v", err)
	}
}

func TestLiquidateRejectsUnhealthySelfLiquidation(t *testing.T) {
	f, target, _ := seedLiquidationScenario(t)

	f.wethFeed.Set(big.NewInt(1500_0000_0000), 8, f.now)
	cover := mustUint("500000000000000000000")
	f.approveDebt(target, cover)

	// The staged position after a partial self-liquidation is still below the
	// minimum, so the liquidator-side health check rejects it.
	err := doLiquidate(f, target, target, cover)
	var broken *BrokenHealthFactorError
	if !errors.As(err, &broken) {
		t.Fatalf("expected BrokenHealthFactorError, got %v", err)
	}
}

func TestLiquidateRejectsUnhealthyLiquidator(t *testing.T) {
	f, target, liquidator := seedLiquidationScenario(t)

	// Leverage the liquidator to the edge, then crash both positions.
	extra := mustUint("9500000000000000000000")
	if err := f.engine.Mint(liquidator, extra); err != nil {
		t.Fatalf("leverage liquidator: %v", err)
	}
	f.wethFeed.Set(big.NewInt(1500_0000_0000), 8, f.now)

	err := doLiquidate(f, liquidator, target, mustUint("500000000000000000000"))
	var broken *BrokenHealthFactorError
	if !errors.As(err, &broken) {
		t.Fatalf("expected BrokenHealthFactorError, got %v", err)
	}
}

func TestLiquidateRequiresDebtTokenAllowance(t *testing.T) {
	f, target, liquidator := seedLiquidationScenario(t)

	f.wethFeed.Set(big.NewInt(1500_0000_0000), 8, f.now)
	f.debt.Approve(liquidator, f.engineAddr, mustUint("0"))

	err := doLiquidate(f, liquidator, target, mustUint("500000000000000000000"))
	if !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	// The failed repayment must have restored the target's position.
	debt, derr := f.engine.DebtOf(target)
	if derr != nil {
		t.Fatalf("debt of target: %v", derr)
	}
	if debt.Cmp(tenThousand) != 0 {
		t.Fatalf("target debt not restored: %s", debt.Dec())
	}
}
