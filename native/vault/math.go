package vault

import "github.com/holiman/uint256"

var ten = uint256.NewInt(10)

func mustUint(value string) *uint256.Int {
	v, err := uint256.FromDecimal(value)
	if err != nil {
		panic("invalid uint256 constant: " + value)
	}
	return v
}

// checkedMul multiplies two amounts and fails instead of wrapping on overflow.
func checkedMul(a, b *uint256.Int) (*uint256.Int, error) {
	product, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	return product, nil
}

// checkedAdd adds two amounts and fails instead of wrapping on overflow.
func checkedAdd(a, b *uint256.Int) (*uint256.Int, error) {
	sum, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	return sum, nil
}

// pow10 returns 10^exp as an unsigned 256-bit integer.
func pow10(exp uint8) *uint256.Int {
	return new(uint256.Int).Exp(ten, uint256.NewInt(uint64(exp)))
}

// pctOf returns amount*pct/100, overflow checked.
func pctOf(amount *uint256.Int, pct uint64) (*uint256.Int, error) {
	scaled, err := checkedMul(amount, uint256.NewInt(pct))
	if err != nil {
		return nil, err
	}
	return scaled.Div(scaled, uint256.NewInt(liquidationPrecision)), nil
}
