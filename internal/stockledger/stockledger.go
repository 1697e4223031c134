// Package stockledger writes and reverses the signed movements a document
// leaves in the product and raw-material ledgers.
package stockledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"bakeryerp/backend/internal/domain"
	"bakeryerp/backend/internal/store"
)

// Counterparty returns the location that mirrors doc's movements, or nil.
func Counterparty(ctx context.Context, repo store.LedgerRepository, policy domain.Policy, doc domain.Document) (*int, error) {
	switch {
	case policy.MirrorTarget:
		if doc.ToLocationID == nil || *doc.ToLocationID == doc.LocationID {
			return nil, nil
		}
		target := *doc.ToLocationID
		return &target, nil
	case policy.MirrorParty:
		if doc.PartyID == nil {
			return nil, nil
		}
		ledger, err := repo.GetLedger(ctx, *doc.PartyID)
		if err != nil {
			return nil, err
		}
		if ledger.LocationID == nil || *ledger.LocationID == doc.LocationID {
			return nil, nil
		}
		loc := *ledger.LocationID
		return &loc, nil
	}
	return nil, nil
}

// Footprint builds every movement doc leaves in policy.Stock: one entry per
// line at the document's location and, when counterparty is set, the
// opposite entry there. doc must already carry its id and number.
func Footprint(policy domain.Policy, doc domain.Document, lines []domain.Line, counterparty *int) []domain.StockEntry {
	if !policy.PostsStock() {
		return nil
	}

	entries := make([]domain.StockEntry, 0, len(lines)*2)
	for _, line := range lines {
		qty := line.Quantity
		if policy.Sign != 0 {
			qty = qty.Abs().Mul(decimal.NewFromInt(int64(policy.Sign)))
		}
		if qty.IsZero() {
			continue
		}

		entries = append(entries, entry(policy.Stock, doc, line.ItemID, doc.LocationID, qty, line.NetRate))
		if counterparty != nil && *counterparty != doc.LocationID {
			entries = append(entries, entry(policy.Stock, doc, line.ItemID, *counterparty, qty.Neg(), line.NetRate))
		}
	}
	return entries
}

func entry(ledger domain.StockLedger, doc domain.Document, itemID int, locationID int, qty decimal.Decimal, rate decimal.Decimal) domain.StockEntry {
	return domain.StockEntry{
		Ledger:          ledger,
		ItemID:          itemID,
		LocationID:      locationID,
		Quantity:        qty,
		NetRate:         rate,
		Type:            doc.Type,
		TransactionID:   doc.ID,
		TransactionNo:   doc.TransactionNo,
		TransactionDate: doc.TransactionDateTime,
	}
}

func Append(ctx context.Context, repo store.StockLedgerRepository, entries ...domain.StockEntry) error {
	for i := range entries {
		if entries[i].TransactionID == 0 {
			return errors.New("stock entry without transaction id")
		}
		if err := repo.InsertStockEntry(ctx, &entries[i]); err != nil {
			return fmt.Errorf("append %s entry item=%d location=%d: %w", entries[i].Ledger, entries[i].ItemID, entries[i].LocationID, err)
		}
	}
	return nil
}

// Reverse removes the document's movements at each listed location. Zero and
// repeated location ids are ignored.
func Reverse(ctx context.Context, repo store.StockLedgerRepository, ledger domain.StockLedger, docType domain.DocumentType, transactionID int, locationIDs ...int) error {
	seen := make(map[int]struct{}, len(locationIDs))
	for _, locationID := range locationIDs {
		if locationID == 0 {
			continue
		}
		if _, ok := seen[locationID]; ok {
			continue
		}
		seen[locationID] = struct{}{}
		if err := repo.DeleteStockEntries(ctx, ledger, docType, transactionID, locationID); err != nil {
			return fmt.Errorf("reverse %s %s %d at location %d: %w", ledger, docType, transactionID, locationID, err)
		}
	}
	return nil
}

// Summarize folds movements into per-item opening, inward, outward and
// closing figures for [from, to). Entries dated before from only count
// towards the opening balance; entries at or after to are ignored. Closing
// value uses the rate of the latest priced movement.
func Summarize(entries []domain.StockEntry, from time.Time, to time.Time) []domain.StockSummary {
	type key struct{ item, location int }
	type acc struct {
		domain.StockSummary
		rate   decimal.Decimal
		rateAt time.Time
	}

	byItem := make(map[key]*acc)
	for _, e := range entries {
		if !to.IsZero() && !e.TransactionDate.Before(to) {
			continue
		}
		k := key{e.ItemID, e.LocationID}
		a, ok := byItem[k]
		if !ok {
			a = &acc{StockSummary: domain.StockSummary{ItemID: e.ItemID, LocationID: e.LocationID}}
			byItem[k] = a
		}

		switch {
		case e.TransactionDate.Before(from):
			a.Opening = a.Opening.Add(e.Quantity)
		case e.Quantity.IsPositive():
			a.Inward = a.Inward.Add(e.Quantity)
		default:
			a.Outward = a.Outward.Add(e.Quantity.Neg())
		}

		if !e.NetRate.IsZero() && !e.TransactionDate.Before(a.rateAt) {
			a.rate = e.NetRate
			a.rateAt = e.TransactionDate
		}
	}

	out := make([]domain.StockSummary, 0, len(byItem))
	for _, a := range byItem {
		a.Closing = a.Opening.Add(a.Inward).Sub(a.Outward)
		a.ClosingValue = a.Closing.Mul(a.rate).Round(2)
		out = append(out, a.StockSummary)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ItemID != out[j].ItemID {
			return out[i].ItemID < out[j].ItemID
		}
		return out[i].LocationID < out[j].LocationID
	})
	return out
}
