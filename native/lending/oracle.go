package lending

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	errFeedNotFound     = errors.New("lending oracle: price feed not registered")
	errNonPositivePrice = errors.New("lending oracle: non-positive price")
	errStalePrice       = errors.New("lending oracle: price older than max age")
)

// precisionFactor is the fixed scale applied when normalising token amounts to
// a USD-equivalent value, so amounts with heterogeneous decimals compare on a
// common basis.
var precisionFactor = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// PriceFeed is the external price source consumed per loan. Implementations
// are untrusted; the engine validates every round before acting on it.
type PriceFeed interface {
	// LatestRoundData returns the signed price and the unix time of the last
	// update.
	LatestRoundData() (price *big.Int, updatedAt int64, err error)
	// Decimals reports the feed's price decimal convention.
	Decimals() (uint8, error)
}

// FeedResolver resolves the price feed referenced by id in a loan record.
type FeedResolver interface {
	Feed(id common.Address) (PriceFeed, error)
}

// FeedRegistry is the in-process FeedResolver backing the daemon and tests.
type FeedRegistry struct {
	mu    sync.RWMutex
	feeds map[common.Address]PriceFeed
}

// NewFeedRegistry constructs an empty feed registry.
func NewFeedRegistry() *FeedRegistry {
	return &FeedRegistry{feeds: make(map[common.Address]PriceFeed)}
}

// Register adds or replaces a feed under the supplied identifier.
func (r *FeedRegistry) Register(id common.Address, feed PriceFeed) {
	if r == nil || feed == nil {
		return
	}
	r.mu.Lock()
	r.feeds[id] = feed
	r.mu.Unlock()
}

// Feed implements FeedResolver.
func (r *FeedRegistry) Feed(id common.Address) (PriceFeed, error) {
	if r == nil {
		return nil, errFeedNotFound
	}
	r.mu.RLock()
	feed, ok := r.feeds[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", errFeedNotFound, id.Hex())
	}
	return feed, nil
}

// ManualFeed is an in-memory feed used by tests and for operator-posted
// prices during incident response.
type ManualFeed struct {
	mu        sync.RWMutex
	price     *big.Int
	updatedAt int64
	decimals  uint8
}

// NewManualFeed constructs a feed reporting the given price decimal
// convention.
func NewManualFeed(decimals uint8) *ManualFeed {
	return &ManualFeed{decimals: decimals}
}

// Set records the supplied price and update time.
func (f *ManualFeed) Set(price *big.Int, updatedAt int64) {
	if f == nil {
		return
	}
	f.mu.Lock()
	if price != nil {
		f.price = new(big.Int).Set(price)
	} else {
		f.price = nil
	}
	f.updatedAt = updatedAt
	f.mu.Unlock()
}

// LatestRoundData implements PriceFeed.
func (f *ManualFeed) LatestRoundData() (*big.Int, int64, error) {
	if f == nil {
		return nil, 0, fmt.Errorf("manual feed not configured")
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.price == nil {
		return nil, 0, fmt.Errorf("manual feed: no round recorded")
	}
	return new(big.Int).Set(f.price), f.updatedAt, nil
}

// Decimals implements PriceFeed.
func (f *ManualFeed) Decimals() (uint8, error) {
	if f == nil {
		return 0, fmt.Errorf("manual feed not configured")
	}
	return f.decimals, nil
}

// validRound fetches the latest round and enforces positivity and freshness.
// Violations are hard failures, never a business answer: stale or invalid
// price data must abort the caller rather than read as "not liquidatable".
func validRound(feed PriceFeed, now int64, maxAge uint64) (*big.Int, error) {
	price, updatedAt, err := feed.LatestRoundData()
	if err != nil {
		return nil, err
	}
	if price == nil || price.Sign() <= 0 {
		return nil, errNonPositivePrice
	}
	if age := now - updatedAt; age < 0 || uint64(age) > maxAge {
		return nil, fmt.Errorf("%w: updated at %d, now %d", errStalePrice, updatedAt, now)
	}
	return price, nil
}

// usdValue normalises a token amount to the fixed precision scale:
// precisionFactor * amount * price / 10^tokenDecimals.
func usdValue(amount, price *big.Int, tokenDecimals uint8) *big.Int {
	if amount == nil || price == nil {
		return big.NewInt(0)
	}
	value := new(big.Int).Mul(precisionFactor, amount)
	value.Mul(value, price)
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(tokenDecimals)), nil)
	return value.Quo(value, scale)
}
