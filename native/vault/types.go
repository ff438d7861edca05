package vault

import (
	"math/big"
	"time"

	"github.com/holiman/uint256"

	"zusd/crypto"
)

// Asset identifies a registered collateral type. The set of assets is fixed at
// engine construction and every asset maps to exactly one price feed.
type Asset string

// PriceQuote is the transient payload returned by a price feed. Price is
// signed because upstream oracles may report negative values on malfunction;
// the adapter rejects anything non-positive.
type PriceQuote struct {
	Price     *big.Int
	Decimals  uint8
	UpdatedAt time.Time
	Round     uint64
}

// Position holds the per-account ledger state: collateral balances per asset
// and the outstanding minted debt. All amounts are unsigned, so negative
// balances are unrepresentable.
type Position struct {
	Account    crypto.Address
	Collateral map[Asset]*uint256.Int
	DebtMinted *uint256.Int
}

// Clone returns a deep copy of the position.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	clone := &Position{Account: p.Account, Collateral: make(map[Asset]*uint256.Int, len(p.Collateral))}
	for asset, amount := range p.Collateral {
		clone.Collateral[asset] = amount.Clone()
	}
	if p.DebtMinted != nil {
		clone.DebtMinted = p.DebtMinted.Clone()
	}
	return clone
}

// CollateralOf returns a copy of the recorded balance for the asset, zero when
// the account never deposited it.
func (p *Position) CollateralOf(asset Asset) *uint256.Int {
	if p == nil || p.Collateral == nil {
		return new(uint256.Int)
	}
	amount, ok := p.Collateral[asset]
	if !ok || amount == nil {
		return new(uint256.Int)
	}
	return amount.Clone()
}

// Debt returns a copy of the recorded minted debt.
func (p *Position) Debt() *uint256.Int {
	if p == nil || p.DebtMinted == nil {
		return new(uint256.Int)
	}
	return p.DebtMinted.Clone()
}

// LiquidationReceipt summarises a completed liquidation for the caller and for
// event consumers.
type LiquidationReceipt struct {
	Account          crypto.Address
	Liquidator       crypto.Address
	Asset            Asset
	DebtCovered      *uint256.Int
	CollateralSeized *uint256.Int
	StartingHealth   *uint256.Int
	EndingHealth     *uint256.Int
}
