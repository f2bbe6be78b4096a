// Command coupon-import loads campaign coupon codes from gzip-compressed
// code lists into the coupons table. A code is trusted only when it appears
// in at least two of the provided lists, which filters out corrupted or
// partial exports. The lists can run to hundreds of millions of lines, so
// membership testing uses bloom filters instead of in-memory sets.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/velmar/orderdesk/internal/domain/coupon"
)

const (
	bloomCapacity = 120_000_000
	bloomFPR      = 0.001
	progressEvery = 10_000_000
	minCodeLen    = 4
	maxCodeLen    = 32
	batchSize     = 500
)

func main() {
	var (
		databaseURL string
		couponType  string
		value       string
		description string
		maxUsage    int
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&couponType, "type", string(coupon.TypePercentage), "coupon type for imported codes")
	flag.StringVar(&value, "value", "10", "discount value for imported codes")
	flag.StringVar(&description, "description", "Campaign promo code", "description for imported codes")
	flag.IntVar(&maxUsage, "max-usage", 0, "usage cap per code, 0 for unlimited")
	flag.Parse()

	files := flag.Args()
	if len(files) < 2 {
		slog.Error("at least two code list files are required")
		os.Exit(1)
	}
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	discountValue, err := decimal.NewFromString(value)
	if err != nil {
		slog.Error("invalid discount value", slog.String("value", value))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	imp := importer{
		couponType:  couponType,
		value:       discountValue,
		description: description,
		maxUsage:    maxUsage,
	}
	if err := imp.run(ctx, databaseURL, files); err != nil {
		slog.Error("coupon import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon import completed successfully")
}

type importer struct {
	couponType  string
	value       decimal.Decimal
	description string
	maxUsage    int
}

func (imp *importer) run(ctx context.Context, databaseURL string, files []string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	// Pass 1: one bloom filter per list.
	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))

	filters, err := buildBloomFilters(ctx, files)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	// Pass 2: keep codes present in two or more lists.
	slog.Info("pass 2: cross-checking lists")

	codes, err := findTrustedCodes(ctx, files, filters)
	if err != nil {
		return errors.Wrap(err, "cross-check lists")
	}

	slog.Info("trusted codes found", slog.Int("count", len(codes)))
	if len(codes) == 0 {
		return nil
	}

	slog.Info("connecting to database")

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	return imp.writeCoupons(ctx, pool, codes)
}

func buildBloomFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
			var count uint64

			err := streamGzFile(ctx, f, func(code string) {
				filter.AddString(code)
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 1 progress", slog.Int("file", i+1), slog.Uint64("codes", count))
				}
			})
			if err != nil {
				return errors.Wrapf(err, "build filter for file %d", i+1)
			}

			slog.Info("pass 1 complete", slog.Int("file", i+1), slog.Uint64("total_codes", count))
			filters[i] = filter
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// findTrustedCodes re-streams each list and tests codes against the other
// lists' filters. Per-file bitmasks are merged afterwards; a code counts as
// trusted when set bits cover two or more files.
func findTrustedCodes(ctx context.Context, files []string, filters []*bloom.BloomFilter) ([]string, error) {
	results := make([]map[string]uint, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			candidates := make(map[string]uint)
			fileBit := uint(1) << uint(i)
			var count uint64

			err := streamGzFile(ctx, f, func(code string) {
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 2 progress", slog.Int("file", i+1), slog.Uint64("codes", count))
				}
				for j, filter := range filters {
					if j == i {
						continue
					}
					if filter.TestString(code) {
						candidates[code] |= fileBit
						break
					}
				}
			})
			if err != nil {
				return errors.Wrapf(err, "scan file %d", i+1)
			}

			slog.Info("pass 2 complete",
				slog.Int("file", i+1),
				slog.Uint64("total_codes", count),
				slog.Int("candidates", len(candidates)),
			)
			results[i] = candidates
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]uint)
	for _, candidates := range results {
		for code, mask := range candidates {
			merged[code] |= mask
		}
	}

	var trusted []string
	for code, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			trusted = append(trusted, code)
		}
	}
	return trusted, nil
}

// streamGzFile calls fn for each usable code line in a gzip-compressed file.
func streamGzFile(ctx context.Context, path string, fn func(code string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		code := strings.ToUpper(strings.TrimSpace(scanner.Text()))
		if len(code) < minCodeLen || len(code) > maxCodeLen {
			continue
		}
		fn(code)
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}

const importCouponSQL = `
INSERT INTO coupons (code, type, value, max_usage, active, description)
VALUES ($1, $2, $3, $4, TRUE, $5)
ON CONFLICT (code) DO UPDATE SET
    type = EXCLUDED.type,
    value = EXCLUDED.value,
    max_usage = EXCLUDED.max_usage,
    active = TRUE,
    description = EXCLUDED.description
`

// writeCoupons upserts trusted codes in batches to keep round trips down.
func (imp *importer) writeCoupons(ctx context.Context, pool *pgxpool.Pool, codes []string) error {
	slog.Info("writing coupons to database", slog.Int("count", len(codes)))

	for start := 0; start < len(codes); start += batchSize {
		end := min(start+batchSize, len(codes))

		var batch pgx.Batch
		for _, code := range codes[start:end] {
			batch.Queue(importCouponSQL, code, imp.couponType, imp.value, imp.maxUsage, imp.description)
		}

		if err := pool.SendBatch(ctx, &batch).Close(); err != nil {
			return errors.Wrapf(err, "write batch at offset %d", start)
		}

		slog.Info("write progress", slog.Int("written", end), slog.Int("total", len(codes)))
	}

	return nil
}
