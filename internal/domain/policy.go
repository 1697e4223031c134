package domain

type NumberingMode int

const (
	NumberingSequential NumberingMode = iota
	NumberingTimestamp
)

type AccountingMode int

const (
	AccountingNone AccountingMode = iota
	// AccountingNormal debits the settlement side and credits revenue and tax.
	AccountingNormal
	// AccountingInverted swaps every side of AccountingNormal.
	AccountingInverted
)

type RevenueLedger int

const (
	RevenueSale RevenueLedger = iota
	RevenuePurchase
)

// Policy describes how one document type moves through the posting pipeline.
type Policy struct {
	Type      DocumentType
	PrefixKey string
	Numbering NumberingMode
	Width     int

	// Stock is empty when the type never touches a stock ledger.
	Stock StockLedger
	// Sign is -1 for outflow, +1 for inflow and 0 when quantities are posted as entered.
	Sign int
	// MirrorParty resolves the counterparty location through the party ledger.
	MirrorParty bool
	// MirrorTarget uses Document.ToLocationID as the counterparty location.
	MirrorTarget  bool
	ExplodeRecipe bool

	Accounting AccountingMode
	Revenue    RevenueLedger

	LinksOrder bool
}

func (p Policy) PostsStock() bool {
	return p.Stock != ""
}

func (p Policy) PostsAccounting() bool {
	return p.Accounting != AccountingNone
}

func (p Policy) Mirrors() bool {
	return p.MirrorParty || p.MirrorTarget
}

const TransactionNoWidth = 6

var policies = map[DocumentType]Policy{
	DocSale: {
		Type: DocSale, PrefixKey: "SalePrefix", Width: TransactionNoWidth,
		Stock: LedgerProduct, Sign: -1, MirrorParty: true, ExplodeRecipe: true,
		Accounting: AccountingNormal, Revenue: RevenueSale,
		LinksOrder: true,
	},
	DocSaleReturn: {
		Type: DocSaleReturn, PrefixKey: "SaleReturnPrefix", Width: TransactionNoWidth,
		Stock: LedgerProduct, Sign: 1, MirrorParty: true, ExplodeRecipe: true,
		Accounting: AccountingInverted, Revenue: RevenueSale,
	},
	DocStockTransfer: {
		Type: DocStockTransfer, PrefixKey: "StockTransferPrefix", Width: TransactionNoWidth,
		Stock: LedgerProduct, Sign: -1, MirrorTarget: true,
	},
	DocKitchenIssue: {
		Type: DocKitchenIssue, PrefixKey: "KitchenIssuePrefix", Width: TransactionNoWidth,
		Stock: LedgerRawMaterial, Sign: -1, MirrorTarget: true,
	},
	DocKitchenProduction: {
		Type: DocKitchenProduction, PrefixKey: "KitchenProductionPrefix", Width: TransactionNoWidth,
		Stock: LedgerProduct, Sign: 1,
	},
	DocPurchase: {
		Type: DocPurchase, PrefixKey: "PurchasePrefix", Width: TransactionNoWidth,
		Stock: LedgerRawMaterial, Sign: 1,
		Accounting: AccountingInverted, Revenue: RevenuePurchase,
	},
	DocPurchaseReturn: {
		Type: DocPurchaseReturn, PrefixKey: "PurchaseReturnPrefix", Width: TransactionNoWidth,
		Stock: LedgerRawMaterial, Sign: -1,
		Accounting: AccountingNormal, Revenue: RevenuePurchase,
	},
	DocStockAdjustment: {
		Type: DocStockAdjustment, PrefixKey: "StockAdjustmentPrefix", Numbering: NumberingTimestamp,
		Stock: LedgerProduct, Sign: 0,
	},
	DocOrder: {
		Type: DocOrder, PrefixKey: "OrderPrefix", Width: TransactionNoWidth,
	},
	DocAccounting: {
		Type: DocAccounting, PrefixKey: "AccountingPrefix", Width: TransactionNoWidth,
	},
}

func PolicyFor(t DocumentType) (Policy, bool) {
	p, ok := policies[t]
	return p, ok
}

// DocumentTypes lists every type that can be saved as a document header.
func DocumentTypes() []DocumentType {
	return []DocumentType{
		DocSale, DocSaleReturn, DocStockTransfer, DocKitchenIssue, DocKitchenProduction,
		DocPurchase, DocPurchaseReturn, DocStockAdjustment, DocOrder,
	}
}

func ParseDocumentType(raw string) (DocumentType, bool) {
	t := DocumentType(raw)
	if t == DocAccounting {
		return "", false
	}
	_, ok := policies[t]
	return t, ok
}
