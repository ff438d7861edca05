package events

import (
	"math/big"

	"zusd/crypto"
)

const (
	TypeCollateralDeposited = "vault.collateral.deposited"
	TypeCollateralRedeemed  = "vault.collateral.redeemed"
	TypeDebtMinted          = "vault.debt.minted"
	TypeDebtBurned          = "vault.debt.burned"
	TypeLiquidation         = "vault.liquidation"
)

// CollateralDeposited is emitted after collateral has been locked for an
// account and the backing token transfer settled.
type CollateralDeposited struct {
	Account crypto.Address
	Asset   string
	Amount  *big.Int
}

func (CollateralDeposited) EventType() string { return TypeCollateralDeposited }

// CollateralRedeemed is emitted after collateral has been released back to the
// account.
type CollateralRedeemed struct {
	Account crypto.Address
	Asset   string
	Amount  *big.Int
}

func (CollateralRedeemed) EventType() string { return TypeCollateralRedeemed }

// DebtMinted is emitted when an account creates new synthetic debt.
type DebtMinted struct {
	Account crypto.Address
	Amount  *big.Int
}

func (DebtMinted) EventType() string { return TypeDebtMinted }

// DebtBurned is emitted when an account retires outstanding debt.
type DebtBurned struct {
	Account crypto.Address
	Amount  *big.Int
}

func (DebtBurned) EventType() string { return TypeDebtBurned }

// Liquidation records a third-party liquidation: the covered debt and the
// collateral seized from the unhealthy position, bonus included.
type Liquidation struct {
	Account          crypto.Address
	Liquidator       crypto.Address
	Asset            string
	DebtCovered      *big.Int
	CollateralSeized *big.Int
}

func (Liquidation) EventType() string { return TypeLiquidation }
