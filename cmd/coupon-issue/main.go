// Command coupon-issue creates a batch of single-code coupons from a template
// and exports the issued codes as a gzip file, one code per line.
package main

import (
	"bufio"
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/tripmarket-pricing/internal/domain/coupon"
	"github.com/xenking/tripmarket-pricing/internal/issuance"
	"github.com/xenking/tripmarket-pricing/internal/repository"
)

const (
	progressEvery = 1000
	// createRetries bounds retries when another writer stored the same code
	// between the issuer check and the insert.
	createRetries = 3
)

type options struct {
	databaseURL string
	out         string
	exclude     string
	count       int
	workers     int
	prefix      string
	length      int
	tmpl        template
}

// template describes the coupons to create.
type template struct {
	discountType coupon.DiscountType
	value        string
	maxDiscount  int64
	minOrder     int64
	userLimit    int
	validDays    int
	couponType   coupon.Type
	stackable    bool
	assetTypes   string
}

// build returns a coupon for code valid from now.
func (t template) build(code string, now time.Time) (*coupon.Coupon, error) {
	value, err := decimal.NewFromString(t.value)
	if err != nil {
		return nil, errors.Wrapf(err, "parse discount value %q", t.value)
	}
	c := &coupon.Coupon{
		Code:          code,
		DiscountType:  t.discountType,
		DiscountValue: value,
		ValidFrom:     now,
		ValidUntil:    now.AddDate(0, 0, t.validDays),
		IsActive:      true,
		Stackable:     t.stackable,
		Type:          t.couponType,
		GlobalApplication: coupon.GlobalApplication{
			IsGlobal: true,
		},
	}
	if t.maxDiscount > 0 {
		c.MaxDiscountAmount = &t.maxDiscount
	}
	if t.minOrder > 0 {
		c.MinimumOrderValue = &t.minOrder
	}
	if t.userLimit > 0 {
		c.UserUsageLimit = &t.userLimit
	}
	for _, at := range strings.Split(t.assetTypes, ",") {
		if at = strings.TrimSpace(at); at != "" {
			c.GlobalApplication.AssetTypes = append(c.GlobalApplication.AssetTypes, coupon.AssetType(at))
		}
	}
	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid coupon template")
	}
	return c, nil
}

func main() {
	var (
		o            options
		discountType string
		couponType   string
	)

	flag.StringVar(&o.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&o.out, "out", "issued-codes.gz", "gzip file receiving the issued codes")
	flag.StringVar(&o.exclude, "exclude", "", "gzip file of codes that must never be issued")
	flag.IntVar(&o.count, "count", 100, "number of coupons to issue")
	flag.IntVar(&o.workers, "workers", 4, "concurrent issuing workers")
	flag.StringVar(&o.prefix, "prefix", "", "code prefix")
	flag.IntVar(&o.length, "length", 8, "code length")
	flag.StringVar(&discountType, "discount-type", string(coupon.DiscountPercentage), "percentage or fixed_amount")
	flag.StringVar(&o.tmpl.value, "value", "10", "discount value: percent or minor units")
	flag.Int64Var(&o.tmpl.maxDiscount, "max-discount", 0, "cap for percentage discounts in minor units")
	flag.Int64Var(&o.tmpl.minOrder, "min-order", 0, "minimum order value in minor units")
	flag.IntVar(&o.tmpl.userLimit, "user-limit", 1, "uses per user (0 for unlimited)")
	flag.IntVar(&o.tmpl.validDays, "valid-days", 30, "days the coupons stay valid")
	flag.StringVar(&couponType, "type", string(coupon.TypePrivate), "coupon type")
	flag.BoolVar(&o.tmpl.stackable, "stackable", false, "allow combining with other coupons")
	flag.StringVar(&o.tmpl.assetTypes, "asset-types", "", "comma-separated asset types (empty for all)")
	flag.Parse()

	o.tmpl.discountType = coupon.DiscountType(discountType)
	o.tmpl.couponType = coupon.Type(couponType)

	if o.databaseURL == "" {
		o.databaseURL = os.Getenv("DATABASE_URL")
	}
	if o.databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, o); err != nil {
		slog.Error("coupon issue failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon issue completed successfully")
}

func run(ctx context.Context, o options) error {
	if o.count <= 0 || o.workers <= 0 {
		return errors.Errorf("count and workers must be positive, got %d and %d", o.count, o.workers)
	}
	if _, err := o.tmpl.build(strings.Repeat("X", max(o.length, 3)), time.Now()); err != nil {
		return err
	}

	pool, err := repository.NewPool(ctx, o.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	repo := repository.NewCouponRepository(pool)
	issuer := issuance.New(repo, nil, issuance.Config{Length: o.length, Prefix: o.prefix})
	if err := issuer.Load(ctx); err != nil {
		return errors.Wrap(err, "load stored codes")
	}

	if o.exclude != "" {
		excluded, err := excludeFile(ctx, o.exclude, issuer)
		if err != nil {
			return errors.Wrap(err, "load exclusions")
		}
		slog.Info("excluded codes loaded", slog.Int("count", excluded))
	}

	f, err := os.Create(o.out)
	if err != nil {
		return errors.Wrapf(err, "create %s", o.out)
	}
	defer func() { _ = f.Close() }()

	n, err := issueCodes(ctx, issuer, repo, o, f)
	if err != nil {
		return errors.Wrapf(err, "issued %d of %d", n, o.count)
	}
	slog.Info("codes written", slog.Int("count", n), slog.String("path", o.out))
	return f.Sync()
}

type codeIssuer interface {
	IssueWith(ctx context.Context, prefix string, length int) (string, error)
	Confirm(codes ...string)
}

type couponCreator interface {
	Create(ctx context.Context, c *coupon.Coupon) error
}

// issueCodes runs o.workers producers that issue and store coupons while a
// single consumer streams the codes into a gzip writer over w.
func issueCodes(ctx context.Context, issuer codeIssuer, repo couponCreator, o options, w io.Writer) (int, error) {
	g, ctx := errgroup.WithContext(ctx)
	codes := make(chan string, o.workers*2)
	remaining := int64(o.count)

	var producers sync.WaitGroup
	for range o.workers {
		producers.Add(1)
		g.Go(func() error {
			defer producers.Done()
			for atomic.AddInt64(&remaining, -1) >= 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
				code, err := issueOne(ctx, issuer, repo, o)
				if err != nil {
					return err
				}
				select {
				case codes <- code:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		producers.Wait()
		close(codes)
		return nil
	})

	var written int
	g.Go(func() error {
		n, err := writeCodes(w, codes)
		written = n
		return err
	})

	err := g.Wait()
	return written, err
}

func issueOne(ctx context.Context, issuer codeIssuer, repo couponCreator, o options) (string, error) {
	for attempt := 1; ; attempt++ {
		code, err := issuer.IssueWith(ctx, o.prefix, o.length)
		if err != nil {
			return "", errors.Wrap(err, "issue code")
		}
		c, err := o.tmpl.build(code, time.Now().UTC())
		if err != nil {
			return "", err
		}
		err = repo.Create(ctx, c)
		if errors.Is(err, coupon.ErrDuplicateCode) && attempt < createRetries {
			slog.Warn("code taken concurrently, retrying", slog.String("code", code))
			continue
		}
		if err != nil {
			return "", errors.Wrapf(err, "create coupon %s", code)
		}
		issuer.Confirm(code)
		return code, nil
	}
}

// writeCodes drains codes into a gzip stream until the channel is closed.
func writeCodes(w io.Writer, codes <-chan string) (int, error) {
	gz := pgzip.NewWriter(w)
	bw := bufio.NewWriter(gz)

	var n int
	for code := range codes {
		if _, err := bw.WriteString(code + "\n"); err != nil {
			return n, errors.Wrap(err, "write code")
		}
		n++
		if n%progressEvery == 0 {
			slog.Info("issue progress", slog.Int("written", n))
		}
	}
	if err := bw.Flush(); err != nil {
		return n, errors.Wrap(err, "flush codes")
	}
	if err := gz.Close(); err != nil {
		return n, errors.Wrap(err, "close gzip")
	}
	return n, nil
}

// excludeFile streams a gzip file of codes into the issuer's exclusion set.
func excludeFile(ctx context.Context, path string, issuer *issuance.Issuer) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	var count int
	err = readCodes(ctx, f, func(code string) {
		issuer.Exclude(code)
		count++
	})
	return count, err
}

// readCodes calls fn for each non-empty, upper-cased line of a gzip stream.
func readCodes(ctx context.Context, r io.Reader, fn func(code string)) error {
	gz, err := pgzip.NewReader(r)
	if err != nil {
		return errors.Wrap(err, "create gzip reader")
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if code := strings.ToUpper(strings.TrimSpace(scanner.Text())); code != "" {
			fn(code)
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "scan codes")
	}
	return nil
}
