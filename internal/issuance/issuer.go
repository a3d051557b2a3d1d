// Package issuance generates coupon codes that do not collide with the
// codes already stored.
package issuance

import (
	"context"
	"strings"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/tripmarket-pricing/internal/domain/coupon"
)

// ErrCodeSpaceExhausted is returned when no free code was found within the
// configured number of attempts.
var ErrCodeSpaceExhausted = errors.New("unable to generate unique coupon code")

// CodeStore is the subset of coupon.Repository the issuer needs.
type CodeStore interface {
	CodeExists(ctx context.Context, code string) (bool, error)
	ListCodes(ctx context.Context) ([]string, error)
}

// Config controls code shape and the collision filter.
type Config struct {
	Length      int
	Prefix      string
	MaxAttempts int
	// BloomCapacity and BloomFPR size the in-memory filter of known codes.
	BloomCapacity uint
	BloomFPR      float64
	// HeldCapacity bounds how many issued but unconfirmed codes are
	// remembered exactly. Older entries fall back to the filter and store.
	HeldCapacity int
}

func (c *Config) setDefaults() {
	if c.Length <= 0 {
		c.Length = 8
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 10
	}
	if c.BloomCapacity == 0 {
		c.BloomCapacity = 1_000_000
	}
	if c.BloomFPR <= 0 || c.BloomFPR >= 1 {
		c.BloomFPR = 0.001
	}
	if c.HeldCapacity <= 0 {
		c.HeldCapacity = 100_000
	}
}

// Issuer produces unique codes. A bloom filter of every known code keeps
// most candidates away from the database: only candidates the filter
// reports as possibly taken are confirmed with the store.
//
// The filter only knows codes loaded by Load and codes this Issuer handed
// out, so the store's unique constraint remains the final arbiter. Codes
// are compared upper-cased, matching the store's case-insensitive index.
type Issuer struct {
	store CodeStore
	gen   *coupon.CodeGenerator
	cfg   Config

	mu     sync.Mutex
	filter *bloom.BloomFilter
	// excluded holds codes the store does not know but must never be issued.
	excluded map[string]struct{}
	// held holds issued codes not yet confirmed as stored, oldest first in
	// order. Both are bounded by cfg.HeldCapacity.
	held  map[string]struct{}
	order []string
}

// New creates an Issuer. A nil generator uses crypto/rand.
func New(store CodeStore, gen *coupon.CodeGenerator, cfg Config) *Issuer {
	cfg.setDefaults()
	if gen == nil {
		gen = coupon.NewCodeGenerator(nil)
	}
	return &Issuer{
		store:    store,
		gen:      gen,
		cfg:      cfg,
		filter:   bloom.NewWithEstimates(cfg.BloomCapacity, cfg.BloomFPR),
		excluded: make(map[string]struct{}),
		held:     make(map[string]struct{}),
	}
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Load adds every stored code to the filter.
func (i *Issuer) Load(ctx context.Context) error {
	codes, err := i.store.ListCodes(ctx)
	if err != nil {
		return errors.Wrap(err, "list codes")
	}
	i.mu.Lock()
	for _, code := range codes {
		i.filter.AddString(normalize(code))
	}
	i.mu.Unlock()
	zctx.From(ctx).Info("Loaded known coupon codes", zap.Int("count", len(codes)))
	return nil
}

// Exclude marks codes the store does not know about as taken, e.g. codes
// already printed on vouchers elsewhere.
func (i *Issuer) Exclude(codes ...string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, code := range codes {
		code = normalize(code)
		i.filter.AddString(code)
		i.excluded[code] = struct{}{}
	}
}

// Confirm forgets issued codes that are now stored. The filter keeps them,
// and the store answers for them from then on.
func (i *Issuer) Confirm(codes ...string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, code := range codes {
		delete(i.held, normalize(code))
	}
}

// Issue returns a fresh code using the configured prefix and length.
func (i *Issuer) Issue(ctx context.Context) (string, error) {
	return i.IssueWith(ctx, i.cfg.Prefix, i.cfg.Length)
}

// IssueWith returns a fresh code with the given prefix and length. Zero
// values fall back to the configured ones.
func (i *Issuer) IssueWith(ctx context.Context, prefix string, length int) (string, error) {
	if length <= 0 {
		length = i.cfg.Length
	}
	lg := zctx.From(ctx)

	for attempt := 1; attempt <= i.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		code, err := i.gen.Generate(prefix, length)
		if err != nil {
			return "", errors.Wrap(err, "generate code")
		}
		if err := coupon.ValidateCode(code); err != nil {
			return "", err
		}

		taken, err := i.taken(ctx, code)
		if err != nil {
			return "", err
		}
		if taken {
			lg.Debug("Code collision", zap.String("code", code), zap.Int("attempt", attempt))
			continue
		}

		if !i.reserve(code) {
			continue
		}
		return code, nil
	}
	return "", errors.Wrapf(ErrCodeSpaceExhausted, "after %d attempts", i.cfg.MaxAttempts)
}

// reserve records code as issued unless a concurrent caller got it first.
func (i *Issuer) reserve(code string) bool {
	code = normalize(code)

	i.mu.Lock()
	defer i.mu.Unlock()
	if _, ok := i.held[code]; ok {
		return false
	}
	if _, ok := i.excluded[code]; ok {
		return false
	}
	i.filter.AddString(code)
	i.held[code] = struct{}{}
	i.order = append(i.order, code)
	i.evict()
	return true
}

// evict drops the oldest held codes beyond capacity. Confirmed codes leave
// stale entries in order, which are skipped here.
func (i *Issuer) evict() {
	for len(i.held) > i.cfg.HeldCapacity && len(i.order) > 0 {
		delete(i.held, i.order[0])
		i.order = i.order[1:]
	}
	if len(i.order) > 2*i.cfg.HeldCapacity {
		live := make([]string, 0, len(i.held))
		for _, code := range i.order {
			if _, ok := i.held[code]; ok {
				live = append(live, code)
			}
		}
		i.order = live
	}
}

func (i *Issuer) taken(ctx context.Context, code string) (bool, error) {
	code = normalize(code)

	i.mu.Lock()
	maybe := i.filter.TestString(code)
	_, own := i.held[code]
	_, excluded := i.excluded[code]
	i.mu.Unlock()
	if own || excluded {
		return true, nil
	}
	if !maybe {
		return false, nil
	}

	exists, err := i.store.CodeExists(ctx, code)
	if err != nil {
		return false, errors.Wrapf(err, "check code %q", code)
	}
	return exists, nil
}
