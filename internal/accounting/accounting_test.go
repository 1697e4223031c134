package accounting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bakeryerp/backend/internal/cache"
	"bakeryerp/backend/internal/domain"
	"bakeryerp/backend/internal/numbering"
	"bakeryerp/backend/internal/settings"
	"bakeryerp/backend/internal/store"
	"bakeryerp/backend/internal/store/memory"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func intPtr(v int) *int {
	return &v
}

func newPoster(t *testing.T, s *memory.Store) *Poster {
	t.Helper()
	var cfg settings.Settings
	err := s.View(context.Background(), func(repo store.Repository) error {
		var err error
		cfg, err = settings.Load(context.Background(), repo)
		return err
	})
	if err != nil {
		t.Fatalf("load settings: %v", err)
	}
	gen := numbering.NewGenerator(cfg.Prefixes, cache.NoopPrefixCache{}, time.Minute, nil)
	return NewPoster(cfg, gen, nil)
}

func headOffice() domain.Location {
	return domain.Location{ID: memory.SeedHeadOffice, Name: "Head Office", PrefixCode: "HO"}
}

func outlet() domain.Location {
	return domain.Location{ID: memory.SeedOutlet, Name: "Market Road Outlet", PrefixCode: "MR", LedgerID: intPtr(memory.SeedOutletLedger)}
}

func sale() domain.Document {
	return domain.Document{
		ID:                  1,
		Type:                domain.DocSale,
		TransactionNo:       "HO25S000001",
		LocationID:          memory.SeedHeadOffice,
		FinancialYearID:     memory.SeedCurrentYear,
		TransactionDateTime: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		TotalAmount:         dec("118"),
		TotalTaxAmount:      dec("18"),
		Cash:                dec("50"),
		UPI:                 dec("20"),
		Credit:              dec("48"),
		PartyID:             intPtr(memory.SeedCustomer),
	}
}

func amountFor(t *testing.T, v *domain.Voucher, ledgerID int, debit bool) decimal.Decimal {
	t.Helper()
	for _, line := range v.Lines {
		if line.LedgerID != ledgerID {
			continue
		}
		if debit && line.Debit != nil {
			return *line.Debit
		}
		if !debit && line.Credit != nil {
			return *line.Credit
		}
	}
	t.Fatalf("no debit=%v line for ledger %d in %+v", debit, ledgerID, v.Lines)
	return decimal.Zero
}

func TestBuildPrimaryLocationSale(t *testing.T) {
	p := newPoster(t, memory.NewSeeded())
	v, err := p.Build(sale(), headOffice())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(v.Lines) != 4 {
		t.Fatalf("expected 4 lines, got %d", len(v.Lines))
	}
	if !amountFor(t, v, memory.SeedCashLedger, true).Equal(dec("70")) {
		t.Fatalf("cash debit should include cash and upi")
	}
	if !amountFor(t, v, memory.SeedCustomer, true).Equal(dec("48")) {
		t.Fatalf("party debit should equal credit amount")
	}
	if !amountFor(t, v, memory.SeedSaleLedger, false).Equal(dec("100")) {
		t.Fatalf("revenue credit should exclude tax")
	}
	if !amountFor(t, v, memory.SeedGSTLedger, false).Equal(dec("18")) {
		t.Fatalf("tax credit should equal total tax")
	}
	if v.VoucherTypeID != 1 || v.ReferenceNo != "HO25S000001" || v.ReferenceID != 1 {
		t.Fatalf("voucher not linked to document: %+v", v)
	}
}

func TestBuildSecondaryLocationUsesLocationLedger(t *testing.T) {
	p := newPoster(t, memory.NewSeeded())
	doc := sale()
	doc.LocationID = memory.SeedOutlet

	v, err := p.Build(doc, outlet())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !amountFor(t, v, memory.SeedOutletLedger, true).Equal(dec("118")) {
		t.Fatalf("outlet ledger should be debited with the settled amount")
	}
	debit, credit := v.Totals()
	if !debit.Equal(credit) {
		t.Fatalf("unbalanced: %s vs %s", debit, credit)
	}

	noLedger := outlet()
	noLedger.LedgerID = nil
	if _, err := p.Build(doc, noLedger); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for location without ledger, got %v", err)
	}
}

func TestBuildReturnInvertsSides(t *testing.T) {
	p := newPoster(t, memory.NewSeeded())
	doc := sale()
	doc.Type = domain.DocSaleReturn

	v, err := p.Build(doc, headOffice())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !amountFor(t, v, memory.SeedCashLedger, false).Equal(dec("70")) {
		t.Fatalf("return should credit cash")
	}
	if !amountFor(t, v, memory.SeedSaleLedger, true).Equal(dec("100")) {
		t.Fatalf("return should debit revenue")
	}
	if v.VoucherTypeID != 2 {
		t.Fatalf("expected sale return voucher type, got %d", v.VoucherTypeID)
	}
}

func TestBuildPurchaseUsesPurchaseLedger(t *testing.T) {
	p := newPoster(t, memory.NewSeeded())
	doc := sale()
	doc.Type = domain.DocPurchase
	doc.PartyID = intPtr(memory.SeedSupplier)

	v, err := p.Build(doc, headOffice())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !amountFor(t, v, memory.SeedPurchase, true).Equal(dec("100")) {
		t.Fatalf("purchase should debit the purchase ledger")
	}
	if !amountFor(t, v, memory.SeedSupplier, false).Equal(dec("48")) {
		t.Fatalf("purchase on credit should credit the supplier")
	}
}

func TestBuildEdgeCases(t *testing.T) {
	p := newPoster(t, memory.NewSeeded())

	zero := sale()
	zero.TotalAmount = decimal.Zero
	if v, err := p.Build(zero, headOffice()); err != nil || v != nil {
		t.Fatalf("zero total must post nothing, got %v err=%v", v, err)
	}

	noParty := sale()
	noParty.PartyID = nil
	if _, err := p.Build(noParty, headOffice()); !errors.Is(err, domain.ErrInvalidDocument) {
		t.Fatalf("expected invalid document for credit without party, got %v", err)
	}

	short := sale()
	short.Credit = dec("40")
	if _, err := p.Build(short, headOffice()); !errors.Is(err, domain.ErrUnbalancedVoucher) {
		t.Fatalf("expected unbalanced voucher, got %v", err)
	}

	transfer := sale()
	transfer.Type = domain.DocStockTransfer
	if v, err := p.Build(transfer, headOffice()); err != nil || v != nil {
		t.Fatalf("transfer posts no accounting, got %v err=%v", v, err)
	}
}

func TestPostReusesVoucherNumber(t *testing.T) {
	s := memory.NewSeeded()
	p := newPoster(t, s)
	ctx := context.Background()

	err := s.WithinTx(ctx, func(repo store.Repository) error {
		first, err := p.Post(ctx, repo, sale(), "alice")
		if err != nil {
			return err
		}
		if first.TransactionNo != "HO25ACC000001" {
			t.Fatalf("expected HO25ACC000001, got %s", first.TransactionNo)
		}

		edited := sale()
		edited.TotalAmount = dec("236")
		edited.TotalTaxAmount = dec("36")
		edited.Credit = dec("166")
		second, err := p.Post(ctx, repo, edited, "bob")
		if err != nil {
			return err
		}
		if second.TransactionNo != first.TransactionNo || second.ID == first.ID {
			t.Fatalf("expected new voucher with reused number, got %+v", second)
		}

		all, err := repo.Vouchers(ctx, domain.DocSale, 1)
		if err != nil {
			return err
		}
		active := 0
		for _, v := range all {
			if v.Status == domain.StateActive {
				active++
			}
		}
		if len(all) != 2 || active != 1 {
			t.Fatalf("expected 2 vouchers with one active, got %d/%d", len(all), active)
		}

		if err := p.Reverse(ctx, repo, edited); err != nil {
			return err
		}
		if _, err := repo.ActiveVoucher(ctx, 1, 1, "HO25S000001"); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected no active voucher after reverse, got %v", err)
		}

		recovered, err := p.Post(ctx, repo, edited, "carol")
		if err != nil {
			return err
		}
		if recovered.TransactionNo != "HO25ACC000001" {
			t.Fatalf("recovered voucher should keep its number, got %s", recovered.TransactionNo)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("within tx: %v", err)
	}
}

func TestPostZeroTotalRetiresPreviousVoucher(t *testing.T) {
	s := memory.NewSeeded()
	p := newPoster(t, s)
	ctx := context.Background()

	err := s.WithinTx(ctx, func(repo store.Repository) error {
		if _, err := p.Post(ctx, repo, sale(), "alice"); err != nil {
			return err
		}
		zero := sale()
		zero.TotalAmount = decimal.Zero
		zero.TotalTaxAmount = decimal.Zero
		zero.Cash, zero.UPI, zero.Credit = decimal.Zero, decimal.Zero, decimal.Zero
		v, err := p.Post(ctx, repo, zero, "alice")
		if err != nil {
			return err
		}
		if v != nil {
			t.Fatalf("zero total must not post a voucher")
		}
		if _, err := repo.ActiveVoucher(ctx, 1, 1, "HO25S000001"); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("previous voucher should be deactivated, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("within tx: %v", err)
	}
}
