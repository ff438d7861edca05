package vault

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

var (
	errNilState = errors.New("vault engine: state not configured")

	ErrNeedsMoreThanZero     = errors.New("vault engine: amount must be more than zero")
	ErrNotAllowedToken       = errors.New("vault engine: token not allowed")
	ErrLengthMismatch        = errors.New("vault engine: asset and price feed lists must have equal length")
	ErrInsufficientAllowance = errors.New("vault engine: insufficient allowance")
	ErrTransferFailed        = errors.New("vault engine: transfer failed")
	ErrMintingFailed         = errors.New("vault engine: minting failed")

	ErrInsufficientCollateral = errors.New("vault engine: insufficient collateral")
	ErrInsufficientDebtMinted = errors.New("vault engine: insufficient minted debt")

	ErrNotEnoughCollateralForLiquidation = errors.New("vault engine: collateral cannot cover liquidation")

	ErrInvalidPrice       = errors.New("vault engine: oracle price invalid")
	ErrStalePrice         = errors.New("vault engine: oracle price stale")
	ErrArithmeticOverflow = errors.New("vault engine: arithmetic overflow")

	ErrReentrancyBlocked = errors.New("vault engine: reentrant call blocked")
)

// BrokenHealthFactorError reports a position that would fall below the minimum
// health factor. The computed value is carried so callers can act on it.
type BrokenHealthFactorError struct {
	HealthFactor *uint256.Int
}

func (e *BrokenHealthFactorError) Error() string {
	return fmt.Sprintf("vault engine: health factor %s below minimum", e.HealthFactor.Dec())
}

// HealthFactorOkError rejects a liquidation attempt against a healthy position.
type HealthFactorOkError struct {
	HealthFactor *uint256.Int
}

func (e *HealthFactorOkError) Error() string {
	return fmt.Sprintf("vault engine: health factor %s is healthy, liquidation forbidden", e.HealthFactor.Dec())
}

// HealthFactorNotImprovedError rejects a liquidation that failed to move the
// target position toward safety.
type HealthFactorNotImprovedError struct {
	HealthFactor *uint256.Int
}

func (e *HealthFactorNotImprovedError) Error() string {
	return fmt.Sprintf("vault engine: health factor %s did not improve", e.HealthFactor.Dec())
}
