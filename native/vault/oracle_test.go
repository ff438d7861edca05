package vault

import (
	"math/big"
	"testing"
	"time"

	"github.com/holiman/uint256"
)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func newTestOracle(t *testing.T, price *big.Int, decimals uint8) (*OracleAdapter, *StaticSource, time.Time) {
	t.Helper()
	now := time.Unix(1_700_000_000, 0).UTC()
	feed := &StaticSource{}
	feed.Set(price, decimals, now)
	oracle, err := NewOracleAdapter([]Asset{"WETH"}, []QuoteSource{feed}, time.Hour)
	if err != nil {
		t.Fatalf("new oracle adapter: %v", err)
	}
	oracle.SetClock(fixedClock(now))
	return oracle, feed, now
}

func TestOracleRescalesFeedPrice(t *testing.T) {
	oracle, _, _ := newTestOracle(t, big.NewInt(2000_0000_0000), 8) // $2000 at 8 decimals

	amount := mustUint("10000000000000000000") // 10 units
	value, err := oracle.Price("WETH", amount)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	want := mustUint("20000000000000000000000") // $20,000
	if value.Cmp(want) != 0 {
		t.Fatalf("unexpected usd value: got %s want %s", value.Dec(), want.Dec())
	}
}

func TestOracleRejectsNonPositivePrice(t *testing.T) {
	oracle, feed, now := newTestOracle(t, big.NewInt(0), 8)
	if _, err := oracle.Price("WETH", uint256.NewInt(1)); err != ErrInvalidPrice {
		t.Fatalf("expected ErrInvalidPrice for zero price, got %v", err)
	}

	feed.Set(big.NewInt(-5), 8, now)
	if _, err := oracle.Price("WETH", uint256.NewInt(1)); err != ErrInvalidPrice {
		t.Fatalf("expected ErrInvalidPrice for negative price, got %v", err)
	}
}

func TestOracleRejectsStaleQuote(t *testing.T) {
	oracle, feed, now := newTestOracle(t, big.NewInt(2000_0000_0000), 8)

	feed.Set(big.NewInt(2000_0000_0000), 8, now.Add(-2*time.Hour))
	if _, err := oracle.Price("WETH", uint256.NewInt(1)); err != ErrStalePrice {
		t.Fatalf("expected ErrStalePrice for old quote, got %v", err)
	}

	feed.Set(big.NewInt(2000_0000_0000), 8, time.Time{})
	if _, err := oracle.Price("WETH", uint256.NewInt(1)); err != ErrStalePrice {
		t.Fatalf("expected ErrStalePrice for zero timestamp, got %v", err)
	}
}

func TestOracleRejectsUnknownAsset(t *testing.T) {
	oracle, _, _ := newTestOracle(t, big.NewInt(2000_0000_0000), 8)
	if _, err := oracle.Price("DOGE", uint256.NewInt(1)); err != ErrNotAllowedToken {
		t.Fatalf("expected ErrNotAllowedToken, got %v", err)
	}
}

func TestOracleRoundTrip(t *testing.T) {
	oracle, _, _ := newTestOracle(t, big.NewInt(2000_0000_0000), 8)

	amount := mustUint("3141592653589793238") // ~3.14 units
	value, err := oracle.Price("WETH", amount)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	back, err := oracle.AssetAmountForUSD(value, "WETH")
	if err != nil {
		t.Fatalf("usd to asset: %v", err)
	}
	diff := new(uint256.Int).Sub(amount, back)
	if diff.Cmp(uint256.NewInt(1)) > 0 {
		t.Fatalf("round trip drifted: got %s want %s", back.Dec(), amount.Dec())
	}
}

func TestOracleOverflowChecked(t *testing.T) {
	oracle, _, _ := newTestOracle(t, big.NewInt(2000_0000_0000), 8)

	huge := new(uint256.Int).SetAllOne()
	if _, err := oracle.Price("WETH", huge); err != ErrArithmeticOverflow {
		t.Fatalf("expected ErrArithmeticOverflow on price, got %v", err)
	}
	if _, err := oracle.AssetAmountForUSD(huge, "WETH"); err != ErrArithmeticOverflow {
		t.Fatalf("expected ErrArithmeticOverflow on conversion, got %v", err)
	}
}

func TestOracleAdapterLengthMismatch(t *testing.T) {
	feed := NewStaticSource(big.NewInt(1_0000_0000), 8)
	if _, err := NewOracleAdapter([]Asset{"WETH", "WBTC"}, []QuoteSource{feed}, time.Hour); err != ErrLengthMismatch {
		t.Fatalf("expected ErrLengthMismatch, got %v", err)
	}
}

func TestOracleRejectsOversizedFeedDecimals(t *testing.T) {
	oracle, feed, now := newTestOracle(t, big.NewInt(2000_0000_0000), 8)
	feed.Set(big.NewInt(2000), 19, now)
	if _, err := oracle.Price("WETH", uint256.NewInt(1)); err != ErrInvalidPrice {
		t.Fatalf("expected ErrInvalidPrice for 19 feed decimals, got %v", err)
	}
}
