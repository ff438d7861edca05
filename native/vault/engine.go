package vault

import (
	"errors"
	"time"

	"github.com/holiman/uint256"

	"zusd/core/events"
	"zusd/crypto"
	nativecommon "zusd/native/common"
)

// CollateralToken is the external ledger interface for a collateral asset.
// A false success flag maps to ErrTransferFailed; returned errors propagate
// unmodified.
type CollateralToken interface {
	Allowance(owner, spender crypto.Address) (*uint256.Int, error)
	TransferFrom(from, to crypto.Address, amount *uint256.Int) (bool, error)
	Transfer(to crypto.Address, amount *uint256.Int) (bool, error)
}

// DebtToken is the external ledger interface for the synthetic debt asset.
// Minting is restricted to this engine by construction: the token's ownership
// is transferred to the engine at initialization time.
type DebtToken interface {
	Mint(to crypto.Address, amount *uint256.Int) (bool, error)
	Burn(amount *uint256.Int) error
	Transfer(to crypto.Address, amount *uint256.Int) (bool, error)
	TransferFrom(from, to crypto.Address, amount *uint256.Int) (bool, error)
}

// Engine orchestrates the public operations, sequencing ledger mutations,
// risk checks, and external-ledger calls. Ledger effects are committed before
// any external call; when an external call fails, the staged snapshot taken
// at entry is written back so state reads as if the operation never started.
type Engine struct {
	address    crypto.Address
	ledger     *Ledger
	oracle     *OracleAdapter
	risk       *RiskEngine
	collateral map[Asset]CollateralToken
	debt       DebtToken
	guard      execGuard
	pauses     nativecommon.PauseView
	events     events.Emitter
}

// NewEngine wires the engine from parallel asset, feed, and token lists.
// Mismatched lengths fail with ErrLengthMismatch. The asset set is immutable
// afterwards.
func NewEngine(address crypto.Address, assets []Asset, feeds []QuoteSource, tokens []CollateralToken, debt DebtToken) (*Engine, error) {
	if len(assets) != len(tokens) {
		return nil, ErrLengthMismatch
	}
	oracle, err := NewOracleAdapter(assets, feeds, DefaultQuoteMaxAge)
	if err != nil {
		return nil, err
	}
	collateral := make(map[Asset]CollateralToken, len(assets))
	for i, asset := range assets {
		if tokens[i] == nil {
			return nil, ErrLengthMismatch
		}
		collateral[asset] = tokens[i]
	}
	ledger := NewLedger(assets)
	return &Engine{
		address:    address,
		ledger:     ledger,
		oracle:     oracle,
		risk:       NewRiskEngine(ledger, oracle),
		collateral: collateral,
		debt:       debt,
		events:     events.NoopEmitter{},
	}, nil
}

// SetState wires the engine to the position persistence layer.
func (e *Engine) SetState(state State) {
	if e == nil {
		return
	}
	e.ledger.SetState(state)
}

// SetPauses installs the operational circuit breaker consulted before every
// mutating operation.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetEmitter replaces the event sink.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil || emitter == nil {
		return
	}
	e.events = emitter
}

// SetQuoteMaxAge adjusts the oracle staleness threshold.
func (e *Engine) SetQuoteMaxAge(maxAge time.Duration) {
	if e == nil {
		return
	}
	e.oracle.SetMaxAge(maxAge)
}

// SetClock overrides the time source used for oracle staleness checks.
func (e *Engine) SetClock(now func() time.Time) {
	if e == nil {
		return
	}
	e.oracle.SetClock(now)
}

// Address returns the engine's own ledger identity, the recipient of pulled
// collateral and debt tokens.
func (e *Engine) Address() crypto.Address {
	return e.address
}

// Deposit locks collateral for the caller. The caller must have approved the
// transfer beforehand; deposits only improve health so no risk check runs.
func (e *Engine) Deposit(caller crypto.Address, asset Asset, amount *uint256.Int) error {
	return e.guard.do(func() error {
		return e.deposit(caller, asset, amount)
	})
}

func (e *Engine) deposit(caller crypto.Address, asset Asset, amount *uint256.Int) error {
	if err := e.checkEntry(amount); err != nil {
		return err
	}
	token, ok := e.collateral[asset]
	if !ok {
		return ErrNotAllowedToken
	}
	allowance, err := token.Allowance(caller, e.address)
	if err != nil {
		return err
	}
	if allowance == nil || allowance.Lt(amount) {
		return ErrInsufficientAllowance
	}
	pos, err := e.ledger.Position(caller)
	if err != nil {
		return err
	}
	snapshot := pos.Clone()
	if err := e.ledger.IncreaseCollateral(pos, asset, amount); err != nil {
		return err
	}
	if err := e.ledger.Put(pos); err != nil {
		return err
	}
	ok, err = token.TransferFrom(caller, e.address, amount)
	if err != nil {
		return e.revert(snapshot, err)
	}
	if !ok {
		return e.revert(snapshot, ErrTransferFailed)
	}
	e.events.Emit(events.CollateralDeposited{Account: caller, Asset: string(asset), Amount: amount.ToBig()})
	return nil
}

// Mint creates new debt against the caller's collateral. The health factor is
// checked on the staged position before anything is committed.
func (e *Engine) Mint(caller crypto.Address, amount *uint256.Int) error {
	return e.guard.do(func() error {
		return e.mint(caller, amount)
	})
}

func (e *Engine) mint(caller crypto.Address, amount *uint256.Int) error {
	if err := e.checkEntry(amount); err != nil {
		return err
	}
	pos, err := e.ledger.Position(caller)
	if err != nil {
		return err
	}
	snapshot := pos.Clone()
	if err := e.ledger.IncreaseDebt(pos, amount); err != nil {
		return err
	}
	if err := e.risk.AssertHealthy(pos); err != nil {
		return err
	}
	if err := e.ledger.Put(pos); err != nil {
		return err
	}
	ok, err := e.debt.Mint(caller, amount)
	if err != nil {
		return e.revert(snapshot, err)
	}
	if !ok {
		return e.revert(snapshot, ErrMintingFailed)
	}
	e.events.Emit(events.DebtMinted{Account: caller, Amount: amount.ToBig()})
	return nil
}

// Burn retires debt. The recorded debt is authoritative: burning more than the
// ledger shows fails even when the caller's wallet balance would cover it.
func (e *Engine) Burn(caller crypto.Address, amount *uint256.Int) error {
	return e.guard.do(func() error {
		return e.burn(caller, amount)
	})
}

func (e *Engine) burn(caller crypto.Address, amount *uint256.Int) error {
	if err := e.checkEntry(amount); err != nil {
		return err
	}
	pos, err := e.ledger.Position(caller)
	if err != nil {
		return err
	}
	snapshot := pos.Clone()
	if err := e.ledger.DecreaseDebt(pos, amount); err != nil {
		return err
	}
	if err := e.risk.AssertHealthy(pos); err != nil {
		return err
	}
	if err := e.ledger.Put(pos); err != nil {
		return err
	}
	if err := e.pullAndBurn(caller, amount); err != nil {
		return e.revert(snapshot, err)
	}
	e.events.Emit(events.DebtBurned{Account: caller, Amount: amount.ToBig()})
	return nil
}

// Redeem releases collateral back to the caller provided the position stays
// healthy afterwards.
func (e *Engine) Redeem(caller crypto.Address, asset Asset, amount *uint256.Int) error {
	return e.guard.do(func() error {
		return e.redeem(caller, asset, amount)
	})
}

func (e *Engine) redeem(caller crypto.Address, asset Asset, amount *uint256.Int) error {
	if err := e.checkEntry(amount); err != nil {
		return err
	}
	token, ok := e.collateral[asset]
	if !ok {
		return ErrNotAllowedToken
	}
	pos, err := e.ledger.Position(caller)
	if err != nil {
		return err
	}
	snapshot := pos.Clone()
	if err := e.ledger.DecreaseCollateral(pos, asset, amount); err != nil {
		return err
	}
	if err := e.risk.AssertHealthy(pos); err != nil {
		return err
	}
	if err := e.ledger.Put(pos); err != nil {
		return err
	}
	ok, err = token.Transfer(caller, amount)
	if err != nil {
		return e.revert(snapshot, err)
	}
	if !ok {
		return e.revert(snapshot, ErrTransferFailed)
	}
	e.events.Emit(events.CollateralRedeemed{Account: caller, Asset: string(asset), Amount: amount.ToBig()})
	return nil
}

// DepositAndMint composes deposit and mint into one atomic operation.
func (e *Engine) DepositAndMint(caller crypto.Address, asset Asset, collateralAmount, debtAmount *uint256.Int) error {
	return e.guard.do(func() error {
		return e.depositAndMint(caller, asset, collateralAmount, debtAmount)
	})
}

func (e *Engine) depositAndMint(caller crypto.Address, asset Asset, collateralAmount, debtAmount *uint256.Int) error {
	if err := e.checkEntry(collateralAmount); err != nil {
		return err
	}
	if err := validateAmount(debtAmount); err != nil {
		return err
	}
	token, ok := e.collateral[asset]
	if !ok {
		return ErrNotAllowedToken
	}
	allowance, err := token.Allowance(caller, e.address)
	if err != nil {
		return err
	}
	if allowance == nil || allowance.Lt(collateralAmount) {
		return ErrInsufficientAllowance
	}
	pos, err := e.ledger.Position(caller)
	if err != nil {
		return err
	}
	snapshot := pos.Clone()
	if err := e.ledger.IncreaseCollateral(pos, asset, collateralAmount); err != nil {
		return err
	}
	if err := e.ledger.IncreaseDebt(pos, debtAmount); err != nil {
		return err
	}
	if err := e.risk.AssertHealthy(pos); err != nil {
		return err
	}
	if err := e.ledger.Put(pos); err != nil {
		return err
	}
	ok, err = token.TransferFrom(caller, e.address, collateralAmount)
	if err != nil {
		return e.revert(snapshot, err)
	}
	if !ok {
		return e.revert(snapshot, ErrTransferFailed)
	}
	ok, err = e.debt.Mint(caller, debtAmount)
	if err == nil && !ok {
		err = ErrMintingFailed
	}
	if err != nil {
		// Hand the pulled collateral back before restoring the snapshot.
		if returned, terr := token.Transfer(caller, collateralAmount); terr != nil {
			err = errors.Join(err, terr)
		} else if !returned {
			err = errors.Join(err, ErrTransferFailed)
		}
		return e.revert(snapshot, err)
	}
	e.events.Emit(events.CollateralDeposited{Account: caller, Asset: string(asset), Amount: collateralAmount.ToBig()})
	e.events.Emit(events.DebtMinted{Account: caller, Amount: debtAmount.ToBig()})
	return nil
}

// RedeemAndBurn burns debt first so the health factor rises before collateral
// leaves, then redeems. One health check covers both steps.
func (e *Engine) RedeemAndBurn(caller crypto.Address, asset Asset, collateralAmount, debtAmount *uint256.Int) error {
	return e.guard.do(func() error {
		return e.redeemAndBurn(caller, asset, collateralAmount, debtAmount)
	})
}

func (e *Engine) redeemAndBurn(caller crypto.Address, asset Asset, collateralAmount, debtAmount *uint256.Int) error {
	if err := e.checkEntry(collateralAmount); err != nil {
		return err
	}
	if err := validateAmount(debtAmount); err != nil {
		return err
	}
	token, ok := e.collateral[asset]
	if !ok {
		return ErrNotAllowedToken
	}
	pos, err := e.ledger.Position(caller)
	if err != nil {
		return err
	}
	snapshot := pos.Clone()
	if err := e.ledger.DecreaseDebt(pos, debtAmount); err != nil {
		return err
	}
	if err := e.ledger.DecreaseCollateral(pos, asset, collateralAmount); err != nil {
		return err
	}
	if err := e.risk.AssertHealthy(pos); err != nil {
		return err
	}
	if err := e.ledger.Put(pos); err != nil {
		return err
	}
	if err := e.pullAndBurn(caller, debtAmount); err != nil {
		return e.revert(snapshot, err)
	}
	ok, err = token.Transfer(caller, collateralAmount)
	if err == nil && !ok {
		err = ErrTransferFailed
	}
	if err != nil {
		// The burn already settled; re-mint before restoring the snapshot so
		// the debt-supply invariant holds.
		if minted, merr := e.debt.Mint(caller, debtAmount); merr != nil {
			err = errors.Join(err, merr)
		} else if !minted {
			err = errors.Join(err, ErrMintingFailed)
		}
		return e.revert(snapshot, err)
	}
	e.events.Emit(events.DebtBurned{Account: caller, Amount: debtAmount.ToBig()})
	e.events.Emit(events.CollateralRedeemed{Account: caller, Asset: string(asset), Amount: collateralAmount.ToBig()})
	return nil
}

// Liquidate lets a third party repay part of an unhealthy position's debt in
// exchange for discounted collateral plus the liquidation bonus. The debt
// reduction is accounted before collateral leaves, and the target's health
// must strictly improve or the whole operation fails.
func (e *Engine) Liquidate(liquidator crypto.Address, asset Asset, account crypto.Address, debtToCover *uint256.Int) (*LiquidationReceipt, error) {
	var receipt *LiquidationReceipt
	err := e.guard.do(func() error {
		var innerErr error
		receipt, innerErr = e.liquidate(liquidator, asset, account, debtToCover)
		return innerErr
	})
	return receipt, err
}

func (e *Engine) liquidate(liquidator crypto.Address, asset Asset, account crypto.Address, debtToCover *uint256.Int) (*LiquidationReceipt, error) {
	if err := e.checkEntry(debtToCover); err != nil {
		return nil, err
	}
	token, ok := e.collateral[asset]
	if !ok {
		return nil, ErrNotAllowedToken
	}
	target, err := e.ledger.Position(account)
	if err != nil {
		return nil, err
	}
	snapshot := target.Clone()
	starting, err := e.risk.HealthFactor(target)
	if err != nil {
		return nil, err
	}
	if !starting.Lt(minHealthFactor) {
		return nil, &HealthFactorOkError{HealthFactor: starting}
	}

	converted, err := e.oracle.AssetAmountForUSD(debtToCover, asset)
	if err != nil {
		return nil, err
	}
	bonus, err := pctOf(converted, LiquidationBonusPct)
	if err != nil {
		return nil, err
	}
	seize, err := checkedAdd(converted, bonus)
	if err != nil {
		return nil, err
	}
	if target.CollateralOf(asset).Lt(seize) {
		return nil, ErrNotEnoughCollateralForLiquidation
	}

	if err := e.ledger.DecreaseDebt(target, debtToCover); err != nil {
		return nil, err
	}
	if err := e.ledger.DecreaseCollateral(target, asset, seize); err != nil {
		return nil, err
	}
	ending, err := e.risk.HealthFactor(target)
	if err != nil {
		return nil, err
	}
	if !starting.Lt(ending) {
		return nil, &HealthFactorNotImprovedError{HealthFactor: ending}
	}

	// A liquidation must not endanger the liquidator's own position. Only a
	// self-liquidation changes it, in which case the staged target is the
	// liquidator's position.
	liquidatorPos := target
	if !liquidator.Equal(account) {
		liquidatorPos, err = e.ledger.Position(liquidator)
		if err != nil {
			return nil, err
		}
	}
	if err := e.risk.AssertHealthy(liquidatorPos); err != nil {
		return nil, err
	}

	if err := e.ledger.Put(target); err != nil {
		return nil, err
	}
	if err := e.pullAndBurn(liquidator, debtToCover); err != nil {
		return nil, e.revert(snapshot, err)
	}
	ok, err = token.Transfer(liquidator, seize)
	if err == nil && !ok {
		err = ErrTransferFailed
	}
	if err != nil {
		if minted, merr := e.debt.Mint(liquidator, debtToCover); merr != nil {
			err = errors.Join(err, merr)
		} else if !minted {
			err = errors.Join(err, ErrMintingFailed)
		}
		return nil, e.revert(snapshot, err)
	}

	e.events.Emit(events.Liquidation{
		Account:          account,
		Liquidator:       liquidator,
		Asset:            string(asset),
		DebtCovered:      debtToCover.ToBig(),
		CollateralSeized: seize.ToBig(),
	})
	return &LiquidationReceipt{
		Account:          account,
		Liquidator:       liquidator,
		Asset:            asset,
		DebtCovered:      debtToCover.Clone(),
		CollateralSeized: seize,
		StartingHealth:   starting,
		EndingHealth:     ending,
	}, nil
}

// pullAndBurn moves debt tokens from the payer to the engine and retires them.
// When the burn fails after the pull settled, the pulled tokens are handed back
// so the payer's wallet reads as if nothing happened.
func (e *Engine) pullAndBurn(payer crypto.Address, amount *uint256.Int) error {
	ok, err := e.debt.TransferFrom(payer, e.address, amount)
	if err != nil {
		return err
	}
	if !ok {
		return ErrTransferFailed
	}
	if err := e.debt.Burn(amount); err != nil {
		if returned, terr := e.debt.Transfer(payer, amount); terr != nil {
			err = errors.Join(err, terr)
		} else if !returned {
			err = errors.Join(err, ErrTransferFailed)
		}
		return err
	}
	return nil
}

// revert writes the entry snapshot back after a failed external interaction.
func (e *Engine) revert(snapshot *Position, opErr error) error {
	if err := e.ledger.Put(snapshot); err != nil {
		return errors.Join(opErr, err)
	}
	return opErr
}

func (e *Engine) checkEntry(amount *uint256.Int) error {
	if e.ledger == nil || e.ledger.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	return validateAmount(amount)
}

func validateAmount(amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ErrNeedsMoreThanZero
	}
	return nil
}

// --- Read-only query surface. None of these take the execution guard. ---

// CollateralOf returns the recorded collateral balance for an account.
func (e *Engine) CollateralOf(addr crypto.Address, asset Asset) (*uint256.Int, error) {
	if !e.ledger.IsRegistered(asset) {
		return nil, ErrNotAllowedToken
	}
	pos, err := e.ledger.Position(addr)
	if err != nil {
		return nil, err
	}
	return pos.CollateralOf(asset), nil
}

// DebtOf returns the recorded minted debt for an account.
func (e *Engine) DebtOf(addr crypto.Address) (*uint256.Int, error) {
	pos, err := e.ledger.Position(addr)
	if err != nil {
		return nil, err
	}
	return pos.Debt(), nil
}

// TotalCollateralValueUSD values an account's collateral at current prices.
func (e *Engine) TotalCollateralValueUSD(addr crypto.Address) (*uint256.Int, error) {
	pos, err := e.ledger.Position(addr)
	if err != nil {
		return nil, err
	}
	return e.risk.TotalCollateralValueUSD(pos)
}

// HealthFactor reports the current health factor for an account.
func (e *Engine) HealthFactor(addr crypto.Address) (*uint256.Int, error) {
	return e.risk.AccountHealthFactor(addr)
}

// Assets lists the registered collateral assets in registration order.
func (e *Engine) Assets() []Asset {
	return e.ledger.Assets()
}

// Params returns the fixed protocol constants.
func (e *Engine) Params() ProtocolParams {
	return ProtocolParams{
		Precision:               precision.Clone(),
		LiquidationThresholdPct: LiquidationThresholdPct,
		LiquidationBonusPct:     LiquidationBonusPct,
		MinHealthFactor:         minHealthFactor.Clone(),
		QuoteMaxAge:             e.oracle.maxAge,
	}
}
