// Package accounting derives the double-entry voucher a document posts and
// keeps exactly one active voucher per document.
package accounting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"bakeryerp/backend/internal/domain"
	"bakeryerp/backend/internal/numbering"
	"bakeryerp/backend/internal/settings"
	"bakeryerp/backend/internal/store"
)

// Numberer mints numbers for the voucher series.
type Numberer interface {
	Next(ctx context.Context, repo numbering.Repository, docType domain.DocumentType, locationID int, financialYearID int, at time.Time) (string, error)
}

type Poster struct {
	settings settings.Settings
	numbers  Numberer
	logger   *logrus.Logger
	now      func() time.Time
}

func NewPoster(cfg settings.Settings, numbers Numberer, logger *logrus.Logger) *Poster {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Poster{settings: cfg, numbers: numbers, logger: logger, now: time.Now}
}

// Build derives the voucher for doc without touching storage. It returns nil
// for documents that post no accounting or whose total is zero. location is
// the document's own location.
func (p *Poster) Build(doc domain.Document, location domain.Location) (*domain.Voucher, error) {
	policy, ok := domain.PolicyFor(doc.Type)
	if !ok || !policy.PostsAccounting() {
		return nil, nil
	}
	if doc.TotalAmount.IsZero() {
		return nil, nil
	}

	voucherTypeID, ok := p.settings.VoucherType(doc.Type)
	if !ok {
		return nil, fmt.Errorf("voucher type for %s: %w", doc.Type, store.ErrNotFound)
	}

	var b builder
	if doc.LocationID == p.settings.PrimaryLocationID {
		b.debit(p.settings.CashLedgerID, doc.Cash.Add(doc.Card).Add(doc.UPI), "cash, card and upi")
		if doc.Credit.IsPositive() {
			if doc.PartyID == nil {
				return nil, domain.Invalid("credit amount requires a party")
			}
			b.debit(*doc.PartyID, doc.Credit, "credit")
		}
	} else {
		settled := doc.Settled()
		if settled.IsPositive() {
			if location.LedgerID == nil {
				return nil, fmt.Errorf("ledger for location %d: %w", location.ID, store.ErrNotFound)
			}
			b.debit(*location.LedgerID, settled, "settled by "+location.Name)
		}
	}

	b.credit(p.settings.RevenueLedger(policy.Revenue), doc.TotalAmount.Sub(doc.TotalTaxAmount), "revenue")
	b.credit(p.settings.GSTLedgerID, doc.TotalTaxAmount, "tax")

	if policy.Accounting == domain.AccountingInverted {
		b.invert()
	}

	v := &domain.Voucher{
		VoucherTypeID:       voucherTypeID,
		ReferenceType:       doc.Type,
		ReferenceID:         doc.ID,
		ReferenceNo:         doc.TransactionNo,
		LocationID:          doc.LocationID,
		FinancialYearID:     doc.FinancialYearID,
		TransactionDateTime: doc.TransactionDateTime,
		TotalAmount:         doc.TotalAmount,
		Remarks:             fmt.Sprintf("%s %s", doc.Type, doc.TransactionNo),
		Status:              domain.StateActive,
		Lines:               b.lines,
	}
	if err := Balanced(*v); err != nil {
		return nil, err
	}
	return v, nil
}

// Balanced fails when v's debit and credit totals differ or v has no lines.
func Balanced(v domain.Voucher) error {
	debit, credit := v.Totals()
	if len(v.Lines) == 0 || !debit.Equal(credit) {
		return fmt.Errorf("%s %s: debit %s credit %s: %w", v.ReferenceType, v.ReferenceNo, debit.StringFixed(2), credit.StringFixed(2), domain.ErrUnbalancedVoucher)
	}
	return nil
}

// Post replaces doc's active voucher. The previous number is reused; a
// document that never had a voucher takes the next ACCOUNTING number.
func (p *Poster) Post(ctx context.Context, repo store.Repository, doc domain.Document, createdBy string) (*domain.Voucher, error) {
	policy, ok := domain.PolicyFor(doc.Type)
	if !ok || !policy.PostsAccounting() {
		return nil, nil
	}

	previousNo, err := p.retire(ctx, repo, doc)
	if err != nil {
		return nil, err
	}

	location, err := repo.GetLocation(ctx, doc.LocationID)
	if err != nil {
		return nil, err
	}
	v, err := p.Build(doc, *location)
	if err != nil || v == nil {
		return nil, err
	}

	if previousNo == "" {
		previousNo, err = p.numbers.Next(ctx, repo, domain.DocAccounting, doc.LocationID, doc.FinancialYearID, doc.TransactionDateTime)
		if err != nil {
			return nil, err
		}
	}
	v.TransactionNo = previousNo
	v.CreatedBy = createdBy
	v.CreatedAt = p.now().UTC()

	if err := repo.InsertVoucher(ctx, v); err != nil {
		return nil, fmt.Errorf("insert voucher %s: %w", v.TransactionNo, err)
	}
	return v, nil
}

// Reverse deactivates doc's active voucher, if any.
func (p *Poster) Reverse(ctx context.Context, repo store.Repository, doc domain.Document) error {
	policy, ok := domain.PolicyFor(doc.Type)
	if !ok || !policy.PostsAccounting() {
		return nil
	}
	_, err := p.retire(ctx, repo, doc)
	return err
}

// retire deactivates the active voucher and returns the number the
// replacement should carry. A recovered document has no active voucher, so
// the number of its most recent one is used instead.
func (p *Poster) retire(ctx context.Context, repo store.Repository, doc domain.Document) (string, error) {
	voucherTypeID, ok := p.settings.VoucherType(doc.Type)
	if !ok {
		return "", fmt.Errorf("voucher type for %s: %w", doc.Type, store.ErrNotFound)
	}
	if doc.ID == 0 {
		return "", nil
	}

	active, err := repo.ActiveVoucher(ctx, voucherTypeID, doc.ID, doc.TransactionNo)
	switch {
	case err == nil:
		if err := repo.DeactivateVoucher(ctx, active.ID); err != nil {
			return "", fmt.Errorf("deactivate voucher %s: %w", active.TransactionNo, err)
		}
		return active.TransactionNo, nil
	case !errors.Is(err, store.ErrNotFound):
		return "", err
	}

	history, err := repo.Vouchers(ctx, doc.Type, doc.ID)
	if err != nil {
		return "", err
	}
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].VoucherTypeID == voucherTypeID {
			return history[i].TransactionNo, nil
		}
	}
	return "", nil
}

type builder struct {
	lines []domain.AccountingLine
}

func (b *builder) debit(ledgerID int, amount decimal.Decimal, remarks string) {
	if !amount.IsPositive() {
		return
	}
	amt := amount
	b.lines = append(b.lines, domain.AccountingLine{LedgerID: ledgerID, Debit: &amt, Remarks: remarks})
}

func (b *builder) credit(ledgerID int, amount decimal.Decimal, remarks string) {
	if !amount.IsPositive() {
		return
	}
	amt := amount
	b.lines = append(b.lines, domain.AccountingLine{LedgerID: ledgerID, Credit: &amt, Remarks: remarks})
}

func (b *builder) invert() {
	for i := range b.lines {
		b.lines[i].Debit, b.lines[i].Credit = b.lines[i].Credit, b.lines[i].Debit
	}
}
