package vault

import (
	"math/big"
	"sync"
	"time"

	"github.com/holiman/uint256"
)

// QuoteSource resolves the latest price quote for a single asset. Feed errors
// propagate to the caller unmodified.
type QuoteSource interface {
	LatestQuote() (PriceQuote, error)
}

// OracleAdapter wraps one QuoteSource per registered asset. Every fetch is
// re-validated; nothing is cached across calls.
type OracleAdapter struct {
	feeds  map[Asset]QuoteSource
	maxAge time.Duration
	now    func() time.Time
}

// NewOracleAdapter pairs the ordered asset list with the parallel feed list.
// Mismatched lengths fail with ErrLengthMismatch.
func NewOracleAdapter(assets []Asset, feeds []QuoteSource, maxAge time.Duration) (*OracleAdapter, error) {
	if len(assets) != len(feeds) {
		return nil, ErrLengthMismatch
	}
	if maxAge <= 0 {
		maxAge = DefaultQuoteMaxAge
	}
	adapter := &OracleAdapter{
		feeds:  make(map[Asset]QuoteSource, len(assets)),
		maxAge: maxAge,
		now:    time.Now,
	}
	for i, asset := range assets {
		if feeds[i] == nil {
			return nil, ErrLengthMismatch
		}
		adapter.feeds[asset] = feeds[i]
	}
	return adapter, nil
}

// SetClock overrides the time source used for staleness checks.
func (o *OracleAdapter) SetClock(now func() time.Time) {
	if o == nil || now == nil {
		return
	}
	o.now = now
}

// SetMaxAge updates the staleness threshold applied when validating quotes.
func (o *OracleAdapter) SetMaxAge(maxAge time.Duration) {
	if o == nil || maxAge <= 0 {
		return
	}
	o.maxAge = maxAge
}

// rescaledPrice fetches, validates, and rescales the latest quote to internal
// precision.
func (o *OracleAdapter) rescaledPrice(asset Asset) (*uint256.Int, error) {
	feed, ok := o.feeds[asset]
	if !ok {
		return nil, ErrNotAllowedToken
	}
	quote, err := feed.LatestQuote()
	if err != nil {
		return nil, err
	}
	if quote.Price == nil || quote.Price.Sign() <= 0 {
		return nil, ErrInvalidPrice
	}
	if quote.UpdatedAt.IsZero() {
		return nil, ErrStalePrice
	}
	if o.now().Sub(quote.UpdatedAt) > o.maxAge {
		return nil, ErrStalePrice
	}
	price, overflow := uint256.FromBig(quote.Price)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	switch {
	case quote.Decimals < InternalDecimals:
		return checkedMul(price, pow10(InternalDecimals-quote.Decimals))
	case quote.Decimals > InternalDecimals:
		return nil, ErrInvalidPrice
	default:
		return price, nil
	}
}

// Price returns the USD value of amount units of asset at internal precision.
func (o *OracleAdapter) Price(asset Asset, amount *uint256.Int) (*uint256.Int, error) {
	price, err := o.rescaledPrice(asset)
	if err != nil {
		return nil, err
	}
	value, err := checkedMul(price, amount)
	if err != nil {
		return nil, err
	}
	return value.Div(value, precision), nil
}

// AssetAmountForUSD converts a USD value into the equivalent asset amount.
func (o *OracleAdapter) AssetAmountForUSD(usd *uint256.Int, asset Asset) (*uint256.Int, error) {
	price, err := o.rescaledPrice(asset)
	if err != nil {
		return nil, err
	}
	if price.IsZero() {
		return nil, ErrInvalidPrice
	}
	scaled, err := checkedMul(usd, precision)
	if err != nil {
		return nil, err
	}
	return scaled.Div(scaled, price), nil
}

// StaticSource is an in-process price feed whose quote is set by an operator.
// It backs tests and the vaultd admin price endpoint.
type StaticSource struct {
	mu    sync.RWMutex
	quote PriceQuote
}

// NewStaticSource seeds the feed with an initial price at the given decimal
// precision, timestamped now.
func NewStaticSource(price *big.Int, decimals uint8) *StaticSource {
	s := &StaticSource{}
	s.Set(price, decimals, time.Now())
	return s
}

// Set replaces the quote and advances the round sequence.
func (s *StaticSource) Set(price *big.Int, decimals uint8, updatedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var cloned *big.Int
	if price != nil {
		cloned = new(big.Int).Set(price)
	}
	s.quote = PriceQuote{
		Price:     cloned,
		Decimals:  decimals,
		UpdatedAt: updatedAt,
		Round:     s.quote.Round + 1,
	}
}

// LatestQuote implements QuoteSource.
func (s *StaticSource) LatestQuote() (PriceQuote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quote := s.quote
	if quote.Price != nil {
		quote.Price = new(big.Int).Set(quote.Price)
	}
	return quote, nil
}
