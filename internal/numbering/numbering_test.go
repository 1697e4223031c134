package numbering

import (
	"context"
	"errors"
	"testing"
	"time"

	"bakeryerp/backend/internal/cache"
	"bakeryerp/backend/internal/domain"
	"bakeryerp/backend/internal/store"
	"bakeryerp/backend/internal/store/memory"
)

var testPrefixes = map[domain.DocumentType]string{
	domain.DocSale:            "S",
	domain.DocSaleReturn:      "SR",
	domain.DocStockAdjustment: "ADJ",
	domain.DocAccounting:      "ACC",
}

func newGenerator() *Generator {
	return NewGenerator(testPrefixes, cache.NoopPrefixCache{}, time.Minute, nil)
}

func seedDocument(t *testing.T, s *memory.Store, docType domain.DocumentType, transactionNo string) {
	t.Helper()
	err := s.WithinTx(context.Background(), func(repo store.Repository) error {
		return repo.SaveDocument(context.Background(), &domain.Document{
			Type:            docType,
			TransactionNo:   transactionNo,
			LocationID:      memory.SeedHeadOffice,
			FinancialYearID: memory.SeedCurrentYear,
			Status:          domain.StateActive,
		})
	})
	if err != nil {
		t.Fatalf("seed %s: %v", transactionNo, err)
	}
}

func next(t *testing.T, s *memory.Store, g *Generator, docType domain.DocumentType, locationID int) (string, error) {
	t.Helper()
	var out string
	err := s.View(context.Background(), func(repo store.Repository) error {
		var err error
		out, err = g.Next(context.Background(), repo, docType, locationID, memory.SeedCurrentYear, time.Date(2025, 6, 7, 8, 9, 10, 0, time.UTC))
		return err
	})
	return out, err
}

func TestNextStartsSeriesAtOne(t *testing.T) {
	s := memory.NewSeeded()
	got, err := next(t, s, newGenerator(), domain.DocSale, memory.SeedHeadOffice)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if got != "HO25S000001" {
		t.Fatalf("expected HO25S000001, got %s", got)
	}
}

func TestNextIncrementsLastNumber(t *testing.T) {
	s := memory.NewSeeded()
	seedDocument(t, s, domain.DocSale, "HO25S000041")

	got, err := next(t, s, newGenerator(), domain.DocSale, memory.SeedHeadOffice)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if got != "HO25S000042" {
		t.Fatalf("expected HO25S000042, got %s", got)
	}
}

func TestNextResetsOnForeignOrMalformedSuffix(t *testing.T) {
	cases := []string{"HO24S000009", "HO25SABC", "HO25S"}
	for _, last := range cases {
		s := memory.NewSeeded()
		seedDocument(t, s, domain.DocSale, last)

		got, err := next(t, s, newGenerator(), domain.DocSale, memory.SeedHeadOffice)
		if err != nil {
			t.Fatalf("next after %s: %v", last, err)
		}
		if got != "HO25S000001" {
			t.Fatalf("expected reset to HO25S000001 after %s, got %s", last, got)
		}
	}
}

func TestNextSkipsTakenNumbers(t *testing.T) {
	s := memory.NewSeeded()
	seedDocument(t, s, domain.DocSale, "HO25S000002")
	seedDocument(t, s, domain.DocSale, "HO25S000003")
	// Gap at 1 and a malformed number saved last.
	seedDocument(t, s, domain.DocSale, "HO25S000001")
	seedDocument(t, s, domain.DocSale, "HO25SX")

	got, err := next(t, s, newGenerator(), domain.DocSale, memory.SeedHeadOffice)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if got != "HO25S000004" {
		t.Fatalf("expected HO25S000004, got %s", got)
	}
}

// staleSeries hides the series head, as a replica that lags the
// primary would.
type staleSeries struct {
	store.Repository
}

func (staleSeries) LastDocument(context.Context, domain.DocumentType, string) (*domain.Document, error) {
	return nil, store.ErrNotFound
}

func TestNextExhausted(t *testing.T) {
	s := memory.NewSeeded()
	seedDocument(t, s, domain.DocSale, "HO25S000001")
	seedDocument(t, s, domain.DocSale, "HO25S000002")

	g := newGenerator().WithMaxAttempts(2)
	err := s.View(context.Background(), func(repo store.Repository) error {
		_, err := g.Next(context.Background(), staleSeries{repo}, domain.DocSale, memory.SeedHeadOffice, memory.SeedCurrentYear, time.Now())
		return err
	})
	if !errors.Is(err, domain.ErrCodeGenerationExhausted) {
		t.Fatalf("expected exhausted error, got %v", err)
	}
}

func TestNextTimestampPolicy(t *testing.T) {
	s := memory.NewSeeded()
	got, err := next(t, s, newGenerator(), domain.DocStockAdjustment, memory.SeedHeadOffice)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if got != "HO25ADJ070625080910" {
		t.Fatalf("expected HO25ADJ070625080910, got %s", got)
	}
}

func TestNextMissingLocationIsFatal(t *testing.T) {
	s := memory.NewSeeded()
	_, err := next(t, s, newGenerator(), domain.DocSale, 99)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for unknown location, got %v", err)
	}
}

func TestNextMissingDocumentPrefixIsFatal(t *testing.T) {
	s := memory.NewSeeded()
	_, err := next(t, s, newGenerator(), domain.DocPurchase, memory.SeedHeadOffice)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for missing prefix, got %v", err)
	}
}

type recordingCache struct {
	values map[string]string
	gets   int
}

func (c *recordingCache) Get(_ context.Context, key string) (string, bool, error) {
	c.gets++
	v, ok := c.values[key]
	return v, ok, nil
}

func (c *recordingCache) Set(_ context.Context, key string, value string, _ time.Duration) error {
	c.values[key] = value
	return nil
}

func TestPrefixUsesCache(t *testing.T) {
	s := memory.NewSeeded()
	rc := &recordingCache{values: map[string]string{}}
	g := NewGenerator(testPrefixes, rc, time.Minute, nil)

	if _, err := next(t, s, g, domain.DocSale, memory.SeedOutlet); err != nil {
		t.Fatalf("next: %v", err)
	}
	if rc.values["2:1"] != "MR25" {
		t.Fatalf("expected cached base MR25, got %q", rc.values["2:1"])
	}

	rc.values["2:1"] = "ZZ99"
	got, err := next(t, s, g, domain.DocSaleReturn, memory.SeedOutlet)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if got != "ZZ99SR000001" {
		t.Fatalf("expected cached prefix to be used, got %s", got)
	}
}

func TestNextVoucherSeries(t *testing.T) {
	s := memory.NewSeeded()
	err := s.WithinTx(context.Background(), func(repo store.Repository) error {
		return repo.InsertVoucher(context.Background(), &domain.Voucher{
			TransactionNo:   "HO25ACC000007",
			LocationID:      memory.SeedHeadOffice,
			FinancialYearID: memory.SeedCurrentYear,
			Status:          domain.StateReversed,
		})
	})
	if err != nil {
		t.Fatalf("seed voucher: %v", err)
	}

	got, err := next(t, s, newGenerator(), domain.DocAccounting, memory.SeedHeadOffice)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if got != "HO25ACC000008" {
		t.Fatalf("expected HO25ACC000008, got %s", got)
	}
}

func TestNextVoucherUsesHighestNumberNotNewestRow(t *testing.T) {
	s := memory.NewSeeded()
	err := s.WithinTx(context.Background(), func(repo store.Repository) error {
		for _, no := range []string{"HO25ACC000001", "HO25ACC000002", "HO25ACC000003", "HO25ACC000004", "HO25ACC000005"} {
			status := domain.StateActive
			if no == "HO25ACC000001" {
				status = domain.StateReversed
			}
			if err := repo.InsertVoucher(context.Background(), &domain.Voucher{
				TransactionNo:   no,
				LocationID:      memory.SeedHeadOffice,
				FinancialYearID: memory.SeedCurrentYear,
				Status:          status,
			}); err != nil {
				return err
			}
		}
		// A repost of the first document reuses its number in a newer row.
		return repo.InsertVoucher(context.Background(), &domain.Voucher{
			TransactionNo:   "HO25ACC000001",
			LocationID:      memory.SeedHeadOffice,
			FinancialYearID: memory.SeedCurrentYear,
			Status:          domain.StateActive,
		})
	})
	if err != nil {
		t.Fatalf("seed vouchers: %v", err)
	}

	got, err := next(t, s, newGenerator().WithMaxAttempts(1), domain.DocAccounting, memory.SeedHeadOffice)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if got != "HO25ACC000006" {
		t.Fatalf("expected HO25ACC000006, got %s", got)
	}
}

func TestNextOrdersSequencesNumerically(t *testing.T) {
	s := memory.NewSeeded()
	seedDocument(t, s, domain.DocSale, "HO25S1000000")
	seedDocument(t, s, domain.DocSale, "HO25S999999")

	got, err := next(t, s, newGenerator(), domain.DocSale, memory.SeedHeadOffice)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if got != "HO25S1000001" {
		t.Fatalf("expected HO25S1000001, got %s", got)
	}
}
