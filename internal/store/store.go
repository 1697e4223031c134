package store

import (
	"context"
	"errors"
	"time"

	"bakeryerp/backend/internal/domain"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrDuplicateTransactionNo is returned when a header would break the
	// (type, location, financial year, transaction no) uniqueness constraint.
	ErrDuplicateTransactionNo = errors.New("duplicate transaction number")
)

type FinancialYearRepository interface {
	GetFinancialYear(ctx context.Context, id int) (*domain.FinancialYear, error)
	FinancialYearByDate(ctx context.Context, at time.Time) (*domain.FinancialYear, error)
}

type LocationRepository interface {
	GetLocation(ctx context.Context, id int) (*domain.Location, error)
}

type LedgerRepository interface {
	GetLedger(ctx context.Context, id int) (*domain.Ledger, error)
}

type SettingsRepository interface {
	GetSetting(ctx context.Context, key string) (string, error)
	ListSettings(ctx context.Context) (map[string]string, error)
}

type RecipeRepository interface {
	// RecipeByProduct returns ErrNotFound when the product has no active recipe.
	RecipeByProduct(ctx context.Context, productID int) (*domain.Recipe, error)
	RecipeLines(ctx context.Context, recipeID int) ([]domain.RecipeLine, error)
}

type DocumentRepository interface {
	GetDocument(ctx context.Context, docType domain.DocumentType, id int) (*domain.Document, error)
	// LastDocument returns the highest-numbered document whose number is
	// prefix followed by digits.
	LastDocument(ctx context.Context, docType domain.DocumentType, prefix string) (*domain.Document, error)
	DocumentByTransactionNo(ctx context.Context, docType domain.DocumentType, transactionNo string) (*domain.Document, error)
	// SaveDocument inserts when doc.ID is zero and assigns the new id, otherwise it updates.
	SaveDocument(ctx context.Context, doc *domain.Document) error
	DeactivateLines(ctx context.Context, docType domain.DocumentType, masterID int) error
	InsertLine(ctx context.Context, docType domain.DocumentType, line *domain.Line) error
	Lines(ctx context.Context, docType domain.DocumentType, masterID int) ([]domain.Line, error)
	// SetOrderSale points an order at the sale fulfilling it, or clears the link when saleID is nil.
	SetOrderSale(ctx context.Context, orderID int, saleID *int) error
}

type StockLedgerRepository interface {
	InsertStockEntry(ctx context.Context, entry *domain.StockEntry) error
	DeleteStockEntries(ctx context.Context, ledger domain.StockLedger, docType domain.DocumentType, transactionID int, locationID int) error
	StockEntries(ctx context.Context, ledger domain.StockLedger, docType domain.DocumentType, transactionID int) ([]domain.StockEntry, error)
	// StockMovements returns every entry at the location dated before until.
	StockMovements(ctx context.Context, ledger domain.StockLedger, locationID int, until time.Time) ([]domain.StockEntry, error)
}

type VoucherRepository interface {
	ActiveVoucher(ctx context.Context, voucherTypeID int, referenceID int, referenceNo string) (*domain.Voucher, error)
	// LastVoucher is LastDocument for the voucher series.
	LastVoucher(ctx context.Context, prefix string) (*domain.Voucher, error)
	VoucherByTransactionNo(ctx context.Context, transactionNo string) (*domain.Voucher, error)
	InsertVoucher(ctx context.Context, voucher *domain.Voucher) error
	DeactivateVoucher(ctx context.Context, id int) error
	Vouchers(ctx context.Context, referenceType domain.DocumentType, referenceID int) ([]domain.Voucher, error)
}

type Repository interface {
	FinancialYearRepository
	LocationRepository
	LedgerRepository
	SettingsRepository
	RecipeRepository
	DocumentRepository
	StockLedgerRepository
	VoucherRepository
}

// Store hands out a Repository bound to one unit of work.
type Store interface {
	// WithinTx commits when fn returns nil and discards every write otherwise.
	WithinTx(ctx context.Context, fn func(repo Repository) error) error
	View(ctx context.Context, fn func(repo Repository) error) error
}
