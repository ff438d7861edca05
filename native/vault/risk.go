package vault

import (
	"github.com/holiman/uint256"

	"zusd/crypto"
)

// RiskEngine values positions and decides whether an action leaves them safe.
// All methods are deterministic and side-effect free.
type RiskEngine struct {
	ledger *Ledger
	oracle *OracleAdapter
}

func NewRiskEngine(ledger *Ledger, oracle *OracleAdapter) *RiskEngine {
	return &RiskEngine{ledger: ledger, oracle: oracle}
}

// TotalCollateralValueUSD sums the USD value of every collateral balance on
// the position. Assets the account never deposited are skipped so an unused
// feed cannot block valuation.
func (r *RiskEngine) TotalCollateralValueUSD(pos *Position) (*uint256.Int, error) {
	total := new(uint256.Int)
	for _, asset := range r.ledger.assets {
		amount := pos.Collateral[asset]
		if amount == nil || amount.IsZero() {
			continue
		}
		value, err := r.oracle.Price(asset, amount)
		if err != nil {
			return nil, err
		}
		total, err = checkedAdd(total, value)
		if err != nil {
			return nil, err
		}
	}
	return total, nil
}

// HealthFactor computes the safety ratio of a position. Debt-free positions
// report the maximum representable value: they are never liquidatable and the
// sentinel avoids a division by zero.
func (r *RiskEngine) HealthFactor(pos *Position) (*uint256.Int, error) {
	if pos.DebtMinted == nil || pos.DebtMinted.IsZero() {
		return maxHealthFactor.Clone(), nil
	}
	collateralUSD, err := r.TotalCollateralValueUSD(pos)
	if err != nil {
		return nil, err
	}
	adjusted, err := pctOf(collateralUSD, LiquidationThresholdPct)
	if err != nil {
		return nil, err
	}
	scaled, err := checkedMul(adjusted, precision)
	if err != nil {
		return nil, err
	}
	return scaled.Div(scaled, pos.DebtMinted), nil
}

// AssertHealthy fails with a BrokenHealthFactorError when the position sits
// below the minimum health factor. Called as a post-condition after every
// mutation that can worsen a position.
func (r *RiskEngine) AssertHealthy(pos *Position) error {
	health, err := r.HealthFactor(pos)
	if err != nil {
		return err
	}
	if health.Lt(minHealthFactor) {
		return &BrokenHealthFactorError{HealthFactor: health}
	}
	return nil
}

// AccountHealthFactor loads the stored position and computes its health
// factor. Read-only query surface; never takes the execution guard.
func (r *RiskEngine) AccountHealthFactor(addr crypto.Address) (*uint256.Int, error) {
	pos, err := r.ledger.Position(addr)
	if err != nil {
		return nil, err
	}
	return r.HealthFactor(pos)
}
