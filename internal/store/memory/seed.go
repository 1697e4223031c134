package memory

import (
	"time"

	"github.com/shopspring/decimal"

	"bakeryerp/backend/internal/domain"
)

// Seeded reference ids, shared with tests and the dev server.
const (
	SeedHeadOffice   = 1
	SeedOutlet       = 2
	SeedKitchen      = 3
	SeedCurrentYear  = 1
	SeedLockedYear   = 2
	SeedCashLedger   = 1
	SeedSaleLedger   = 2
	SeedPurchase     = 3
	SeedGSTLedger    = 4
	SeedCustomer     = 10
	SeedSupplier     = 11
	SeedOutletLedger = 21
	SeedBread        = 100
	SeedCake         = 101
	SeedWater        = 102
	SeedFlour        = 200
	SeedSugar        = 201
	SeedYeast        = 202
	SeedButter       = 203
)

func NewSeeded() *Store {
	s := New()

	s.PutFinancialYear(domain.FinancialYear{
		ID:        SeedCurrentYear,
		YearNo:    25,
		StartDate: time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC),
		Active:    true,
	})
	s.PutFinancialYear(domain.FinancialYear{
		ID:        SeedLockedYear,
		YearNo:    24,
		StartDate: time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC),
		Locked:    true,
		Active:    true,
	})

	outletLedger := SeedOutletLedger
	outlet := SeedOutlet
	s.PutLocation(domain.Location{ID: SeedHeadOffice, Name: "Head Office", PrefixCode: "HO", Active: true})
	s.PutLocation(domain.Location{ID: SeedOutlet, Name: "Market Road Outlet", PrefixCode: "MR", LedgerID: &outletLedger, Active: true})
	s.PutLocation(domain.Location{ID: SeedKitchen, Name: "Central Kitchen", PrefixCode: "CK", Active: true})

	s.PutLedger(domain.Ledger{ID: SeedCashLedger, Name: "Cash", Active: true})
	s.PutLedger(domain.Ledger{ID: SeedSaleLedger, Name: "Sales", Active: true})
	s.PutLedger(domain.Ledger{ID: SeedPurchase, Name: "Purchases", Active: true})
	s.PutLedger(domain.Ledger{ID: SeedGSTLedger, Name: "GST Payable", Active: true})
	s.PutLedger(domain.Ledger{ID: SeedCustomer, Name: "Hotel Sunrise", Active: true})
	s.PutLedger(domain.Ledger{ID: SeedSupplier, Name: "Deccan Flour Mills", Active: true})
	s.PutLedger(domain.Ledger{ID: SeedOutletLedger, Name: "Market Road Outlet", LocationID: &outlet, Active: true})

	for key, val := range map[string]string{
		"PrimaryLocationId":       "1",
		"CashLedgerId":            "1",
		"SaleLedgerId":            "2",
		"PurchaseLedgerId":        "3",
		"GSTLedgerId":             "4",
		"SaleVoucherId":           "1",
		"SaleReturnVoucherId":     "2",
		"PurchaseVoucherId":       "3",
		"PurchaseReturnVoucherId": "4",
		"SalePrefix":              "S",
		"SaleReturnPrefix":        "SR",
		"StockTransferPrefix":     "ST",
		"KitchenIssuePrefix":      "KI",
		"KitchenProductionPrefix": "KP",
		"PurchasePrefix":          "P",
		"PurchaseReturnPrefix":    "PR",
		"StockAdjustmentPrefix":   "ADJ",
		"OrderPrefix":             "O",
		"AccountingPrefix":        "ACC",
		"NotificationUsers":       "admin,owner",
	} {
		s.PutSetting(key, val)
	}

	s.PutRecipe(domain.Recipe{ID: 1, ProductID: SeedBread, Active: true},
		domain.RecipeLine{ID: 1, RawMaterialID: SeedFlour, Quantity: decimal.RequireFromString("0.5"), Active: true},
		domain.RecipeLine{ID: 2, RawMaterialID: SeedSugar, Quantity: decimal.RequireFromString("0.05"), Active: true},
		domain.RecipeLine{ID: 3, RawMaterialID: SeedYeast, Quantity: decimal.RequireFromString("0.01"), Active: false},
	)
	s.PutRecipe(domain.Recipe{ID: 2, ProductID: SeedCake, Active: true},
		domain.RecipeLine{ID: 4, RawMaterialID: SeedFlour, Quantity: decimal.RequireFromString("0.25"), Active: true},
		domain.RecipeLine{ID: 5, RawMaterialID: SeedButter, Quantity: decimal.RequireFromString("0.2"), Active: true},
	)

	return s
}
