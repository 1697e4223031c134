package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type DocumentType string

const (
	DocSale              DocumentType = "SALE"
	DocSaleReturn        DocumentType = "SALE_RETURN"
	DocStockTransfer     DocumentType = "STOCK_TRANSFER"
	DocKitchenIssue      DocumentType = "KITCHEN_ISSUE"
	DocKitchenProduction DocumentType = "KITCHEN_PRODUCTION"
	DocPurchase          DocumentType = "PURCHASE"
	DocPurchaseReturn    DocumentType = "PURCHASE_RETURN"
	DocStockAdjustment   DocumentType = "STOCK_ADJUSTMENT"
	DocOrder             DocumentType = "ORDER"
	// DocAccounting numbers vouchers; it never appears as a document header.
	DocAccounting DocumentType = "ACCOUNTING"
)

// DocumentState replaces the overloaded active flag on headers.
type DocumentState string

const (
	StateActive   DocumentState = "active"
	StateReversed DocumentState = "reversed"
)

type StockLedger string

const (
	LedgerProduct     StockLedger = "product"
	LedgerRawMaterial StockLedger = "raw_material"
)

type Actor struct {
	Username string
	Role     string
	Platform string
}

type Document struct {
	ID                   int             `json:"id"`
	Type                 DocumentType    `json:"type" validate:"required"`
	TransactionNo        string          `json:"transaction_no"`
	LocationID           int             `json:"location_id" validate:"required,gt=0"`
	PartyID              *int            `json:"party_id,omitempty" validate:"omitempty,gt=0"`
	ToLocationID         *int            `json:"to_location_id,omitempty" validate:"omitempty,gt=0"`
	OrderID              *int            `json:"order_id,omitempty" validate:"omitempty,gt=0"`
	SaleID               *int            `json:"sale_id,omitempty"`
	FinancialYearID      int             `json:"financial_year_id" validate:"gte=0"`
	TransactionDateTime  time.Time       `json:"transaction_date_time"`
	Remarks              string          `json:"remarks,omitempty" validate:"max=500"`
	BaseTotal            decimal.Decimal `json:"base_total"`
	ItemDiscountAmount   decimal.Decimal `json:"item_discount_amount"`
	DiscountPercent      decimal.Decimal `json:"discount_percent"`
	DiscountAmount       decimal.Decimal `json:"discount_amount"`
	TotalTaxAmount       decimal.Decimal `json:"total_tax_amount"`
	RoundOffAmount       decimal.Decimal `json:"round_off_amount"`
	TotalAmount          decimal.Decimal `json:"total_amount"`
	Cash                 decimal.Decimal `json:"cash"`
	Card                 decimal.Decimal `json:"card"`
	UPI                  decimal.Decimal `json:"upi"`
	Credit               decimal.Decimal `json:"credit"`
	Status               DocumentState   `json:"status"`
	CreatedBy            string          `json:"created_by"`
	CreatedAt            time.Time       `json:"created_at"`
	CreatedPlatform      string          `json:"created_platform"`
	LastModifiedBy       string          `json:"last_modified_by,omitempty"`
	LastModifiedAt       *time.Time      `json:"last_modified_at,omitempty"`
	LastModifiedPlatform string          `json:"last_modified_platform,omitempty"`
}

// Settled is the amount received across every payment mode.
func (d Document) Settled() decimal.Decimal {
	return d.Cash.Add(d.Card).Add(d.UPI).Add(d.Credit)
}

type Line struct {
	ID              int             `json:"id"`
	MasterID        int             `json:"master_id"`
	ItemID          int             `json:"item_id" validate:"required,gt=0"`
	Quantity        decimal.Decimal `json:"quantity"`
	Rate            decimal.Decimal `json:"rate"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	BaseTotal       decimal.Decimal `json:"base_total"`
	AfterDiscount   decimal.Decimal `json:"after_discount"`
	CGSTPercent     decimal.Decimal `json:"cgst_percent"`
	CGSTAmount      decimal.Decimal `json:"cgst_amount"`
	SGSTPercent     decimal.Decimal `json:"sgst_percent"`
	SGSTAmount      decimal.Decimal `json:"sgst_amount"`
	IGSTPercent     decimal.Decimal `json:"igst_percent"`
	IGSTAmount      decimal.Decimal `json:"igst_amount"`
	TotalTaxAmount  decimal.Decimal `json:"total_tax_amount"`
	InclusiveTax    bool            `json:"inclusive_tax"`
	Total           decimal.Decimal `json:"total"`
	NetRate         decimal.Decimal `json:"net_rate"`
	Remarks         string          `json:"remarks,omitempty" validate:"max=250"`
	Active          bool            `json:"active"`
}

type StockEntry struct {
	ID              int             `json:"id"`
	Ledger          StockLedger     `json:"ledger"`
	ItemID          int             `json:"item_id"`
	LocationID      int             `json:"location_id"`
	Quantity        decimal.Decimal `json:"quantity"`
	NetRate         decimal.Decimal `json:"net_rate"`
	Type            DocumentType    `json:"type"`
	TransactionID   int             `json:"transaction_id"`
	TransactionNo   string          `json:"transaction_no"`
	TransactionDate time.Time       `json:"transaction_date"`
}

type StockSummary struct {
	ItemID       int             `json:"item_id"`
	LocationID   int             `json:"location_id"`
	Opening      decimal.Decimal `json:"opening"`
	Inward       decimal.Decimal `json:"inward"`
	Outward      decimal.Decimal `json:"outward"`
	Closing      decimal.Decimal `json:"closing"`
	ClosingValue decimal.Decimal `json:"closing_value"`
}

type Voucher struct {
	ID                  int              `json:"id"`
	TransactionNo       string           `json:"transaction_no"`
	VoucherTypeID       int              `json:"voucher_type_id"`
	ReferenceType       DocumentType     `json:"reference_type"`
	ReferenceID         int              `json:"reference_id"`
	ReferenceNo         string           `json:"reference_no"`
	LocationID          int              `json:"location_id"`
	FinancialYearID     int              `json:"financial_year_id"`
	TransactionDateTime time.Time        `json:"transaction_date_time"`
	TotalAmount         decimal.Decimal  `json:"total_amount"`
	Remarks             string           `json:"remarks,omitempty"`
	Status              DocumentState    `json:"status"`
	CreatedBy           string           `json:"created_by"`
	CreatedAt           time.Time        `json:"created_at"`
	Lines               []AccountingLine `json:"lines"`
}

// AccountingLine carries exactly one of Debit or Credit.
type AccountingLine struct {
	ID        int              `json:"id"`
	VoucherID int              `json:"voucher_id"`
	LedgerID  int              `json:"ledger_id"`
	Debit     *decimal.Decimal `json:"debit,omitempty"`
	Credit    *decimal.Decimal `json:"credit,omitempty"`
	Remarks   string           `json:"remarks,omitempty"`
}

func (l AccountingLine) Amount() decimal.Decimal {
	if l.Debit != nil {
		return *l.Debit
	}
	if l.Credit != nil {
		return *l.Credit
	}
	return decimal.Zero
}

func (v Voucher) Totals() (debit decimal.Decimal, credit decimal.Decimal) {
	for _, line := range v.Lines {
		if line.Debit != nil {
			debit = debit.Add(*line.Debit)
		}
		if line.Credit != nil {
			credit = credit.Add(*line.Credit)
		}
	}
	return debit, credit
}

type FinancialYear struct {
	ID        int       `json:"id"`
	YearNo    int       `json:"year_no"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Locked    bool      `json:"locked"`
	Active    bool      `json:"active"`
}

func (fy FinancialYear) Writable() bool {
	return fy.Active && !fy.Locked
}

type Location struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	PrefixCode string `json:"prefix_code"`
	LedgerID   *int   `json:"ledger_id,omitempty"`
	Active     bool   `json:"active"`
}

type Ledger struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	LocationID *int   `json:"location_id,omitempty"`
	Active     bool   `json:"active"`
}

type Recipe struct {
	ID        int  `json:"id"`
	ProductID int  `json:"product_id"`
	Active    bool `json:"active"`
}

type RecipeLine struct {
	ID            int             `json:"id"`
	RecipeID      int             `json:"recipe_id"`
	RawMaterialID int             `json:"raw_material_id"`
	Quantity      decimal.Decimal `json:"quantity"`
	Active        bool            `json:"active"`
}

type DocumentResponse struct {
	Document Document `json:"document"`
	Lines    []Line   `json:"lines"`
}

type SaveRequest struct {
	Document Document `json:"document"`
	Lines    []Line   `json:"lines"`
}
