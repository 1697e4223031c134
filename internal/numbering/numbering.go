// Package numbering mints transaction numbers of the form
// <location prefix><year no><document prefix><zero-padded sequence>.
package numbering

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"bakeryerp/backend/internal/cache"
	"bakeryerp/backend/internal/domain"
	"bakeryerp/backend/internal/store"
)

const DefaultMaxAttempts = 1000

// Repository is the slice of the store the generator reads.
type Repository interface {
	store.LocationRepository
	store.FinancialYearRepository
	LastDocument(ctx context.Context, docType domain.DocumentType, prefix string) (*domain.Document, error)
	DocumentByTransactionNo(ctx context.Context, docType domain.DocumentType, transactionNo string) (*domain.Document, error)
	LastVoucher(ctx context.Context, prefix string) (*domain.Voucher, error)
	VoucherByTransactionNo(ctx context.Context, transactionNo string) (*domain.Voucher, error)
}

type Generator struct {
	prefixes    map[domain.DocumentType]string
	cache       cache.PrefixCache
	cacheTTL    time.Duration
	maxAttempts int
	logger      *logrus.Logger
}

func NewGenerator(prefixes map[domain.DocumentType]string, prefixCache cache.PrefixCache, cacheTTL time.Duration, logger *logrus.Logger) *Generator {
	if prefixCache == nil {
		prefixCache = cache.NoopPrefixCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Hour
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Generator{
		prefixes:    prefixes,
		cache:       prefixCache,
		cacheTTL:    cacheTTL,
		maxAttempts: DefaultMaxAttempts,
		logger:      logger,
	}
}

// WithMaxAttempts bounds the duplicate-check loop.
func (g *Generator) WithMaxAttempts(n int) *Generator {
	if n > 0 {
		g.maxAttempts = n
	}
	return g
}

// SeriesKey names the series a new document of docType draws from.
func SeriesKey(docType domain.DocumentType, locationID int, financialYearID int) string {
	return fmt.Sprintf("numbering:%s:%d:%d", docType, locationID, financialYearID)
}

// Next returns the next free number for the series. at is only used by
// timestamp-numbered types.
func (g *Generator) Next(ctx context.Context, repo Repository, docType domain.DocumentType, locationID int, financialYearID int, at time.Time) (string, error) {
	policy, ok := domain.PolicyFor(docType)
	if !ok {
		return "", domain.Invalid(fmt.Sprintf("unknown document type %q", docType))
	}

	prefix, err := g.Prefix(ctx, repo, docType, locationID, financialYearID)
	if err != nil {
		return "", err
	}

	if policy.Numbering == domain.NumberingTimestamp {
		return prefix + at.Format("020106") + at.Format("150405"), nil
	}

	width := policy.Width
	if width <= 0 {
		width = domain.TransactionNoWidth
	}

	next := 1
	last, err := g.lastNumber(ctx, repo, docType, prefix)
	switch {
	case err == nil:
		next = nextSequence(last, prefix)
	case !errors.Is(err, store.ErrNotFound):
		return "", err
	}

	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		candidate := format(prefix, width, next)
		taken, err := g.taken(ctx, repo, docType, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		g.logger.WithFields(logrus.Fields{
			"module":    "numbering",
			"candidate": candidate,
			"attempt":   attempt + 1,
		}).Debug("transaction number already taken")
		next++
	}

	return "", fmt.Errorf("%s series %s after %d attempts: %w", docType, prefix, g.maxAttempts, domain.ErrCodeGenerationExhausted)
}

// Prefix resolves the full prefix for a series. Missing location, year or
// document prefix is an error; there is no fallback.
func (g *Generator) Prefix(ctx context.Context, repo Repository, docType domain.DocumentType, locationID int, financialYearID int) (string, error) {
	docPrefix, ok := g.prefixes[docType]
	if !ok || docPrefix == "" {
		return "", fmt.Errorf("prefix for %s: %w", docType, store.ErrNotFound)
	}

	key := fmt.Sprintf("%d:%d", locationID, financialYearID)
	if cached, ok, err := g.cache.Get(ctx, key); err == nil && ok {
		return cached + docPrefix, nil
	} else if err != nil {
		g.logger.WithError(err).WithField("module", "numbering").Warn("prefix cache read failed")
	}

	loc, err := repo.GetLocation(ctx, locationID)
	if err != nil {
		return "", err
	}
	code := strings.TrimSpace(loc.PrefixCode)
	if code == "" {
		return "", fmt.Errorf("prefix code for location %d: %w", locationID, store.ErrNotFound)
	}
	fy, err := repo.GetFinancialYear(ctx, financialYearID)
	if err != nil {
		return "", err
	}

	base := code + strconv.Itoa(fy.YearNo)
	if err := g.cache.Set(ctx, key, base, g.cacheTTL); err != nil {
		g.logger.WithError(err).WithField("module", "numbering").Warn("prefix cache write failed")
	}
	return base + docPrefix, nil
}

// lastNumber reads the highest number in the series, not the newest row:
// an update may re-insert an old number after newer ones.
func (g *Generator) lastNumber(ctx context.Context, repo Repository, docType domain.DocumentType, prefix string) (string, error) {
	if docType == domain.DocAccounting {
		v, err := repo.LastVoucher(ctx, prefix)
		if err != nil {
			return "", err
		}
		return v.TransactionNo, nil
	}
	doc, err := repo.LastDocument(ctx, docType, prefix)
	if err != nil {
		return "", err
	}
	return doc.TransactionNo, nil
}

func (g *Generator) taken(ctx context.Context, repo Repository, docType domain.DocumentType, candidate string) (bool, error) {
	var err error
	if docType == domain.DocAccounting {
		_, err = repo.VoucherByTransactionNo(ctx, candidate)
	} else {
		_, err = repo.DocumentByTransactionNo(ctx, docType, candidate)
	}
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, store.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// nextSequence falls back to 1 when last belongs to another prefix or its
// suffix is not a plain number.
func nextSequence(last string, prefix string) int {
	if !strings.HasPrefix(last, prefix) {
		return 1
	}
	suffix := last[len(prefix):]
	if suffix == "" {
		return 1
	}
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return 1
		}
	}
	n, err := strconv.Atoi(suffix)
	if err != nil {
		return 1
	}
	return n + 1
}

func format(prefix string, width int, n int) string {
	return fmt.Sprintf("%s%0*d", prefix, width, n)
}
