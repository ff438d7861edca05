package vault

import (
	"time"

	"github.com/holiman/uint256"
)

const moduleName = "vault"

const (
	// LiquidationThresholdPct caps debt at this share of collateral value. A
	// value of 50 means positions must stay at least 200% collateralized.
	LiquidationThresholdPct = 50
	// LiquidationBonusPct is the extra collateral share paid to liquidators on
	// top of the covered debt value.
	LiquidationBonusPct = 10
	// liquidationPrecision is the divisor applied to the percentage constants.
	liquidationPrecision = 100
	// InternalDecimals is the fixed-point precision used for all engine
	// amounts and USD values.
	InternalDecimals = 18
	// DefaultQuoteMaxAge is the staleness threshold beyond which oracle quotes
	// are rejected.
	DefaultQuoteMaxAge = time.Hour
)

var (
	// precision is 1e18, the engine's internal fixed-point scale.
	precision = uint256.NewInt(1_000_000_000_000_000_000)
	// minHealthFactor is 1.0 expressed at internal precision. Positions with
	// nonzero debt must stay at or above it after every operation.
	minHealthFactor = uint256.NewInt(1_000_000_000_000_000_000)
	// maxHealthFactor is the sentinel returned for debt-free positions.
	maxHealthFactor = new(uint256.Int).SetAllOne()
)

// ProtocolParams exposes the fixed protocol constants over the read-only query
// surface.
type ProtocolParams struct {
	Precision               *uint256.Int
	LiquidationThresholdPct uint64
	LiquidationBonusPct     uint64
	MinHealthFactor         *uint256.Int
	QuoteMaxAge             time.Duration
}
