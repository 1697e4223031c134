// Package recipe turns finished-product lines into raw-material consumption.
package recipe

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"bakeryerp/backend/internal/domain"
	"bakeryerp/backend/internal/store"
)

const ratePlaces = 4

// Component is one raw material consumed (or restored) by a product line.
type Component struct {
	RawMaterialID int
	Quantity      decimal.Decimal
	NetRate       decimal.Decimal
}

type Exploder struct {
	primaryLocationID int
	logger            *logrus.Logger
}

func NewExploder(primaryLocationID int, logger *logrus.Logger) *Exploder {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Exploder{primaryLocationID: primaryLocationID, logger: logger}
}

// Eligible reports whether doc's product lines should be exploded at all.
func (e *Exploder) Eligible(policy domain.Policy, doc domain.Document) bool {
	return policy.ExplodeRecipe && doc.LocationID == e.primaryLocationID
}

// Explode returns the active materials of line's product recipe scaled by the
// line quantity and sign. A product without a recipe yields nothing.
func (e *Exploder) Explode(ctx context.Context, repo store.RecipeRepository, line domain.Line, sign int) ([]Component, error) {
	recipe, err := repo.RecipeByProduct(ctx, line.ItemID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("recipe for item %d: %w", line.ItemID, err)
	}

	materials, err := repo.RecipeLines(ctx, recipe.ID)
	if err != nil {
		return nil, fmt.Errorf("recipe %d lines: %w", recipe.ID, err)
	}

	signed := line.Quantity.Abs().Mul(decimal.NewFromInt(int64(sign)))
	out := make([]Component, 0, len(materials))
	for _, m := range materials {
		if !m.Active || m.Quantity.IsZero() {
			continue
		}
		out = append(out, Component{
			RawMaterialID: m.RawMaterialID,
			Quantity:      m.Quantity.Mul(signed),
			NetRate:       line.NetRate.Div(m.Quantity).Round(ratePlaces),
		})
	}
	return out, nil
}

// Entries explodes every line of doc into raw-material ledger entries at the
// document's own location. It returns nil when doc is not eligible.
func (e *Exploder) Entries(ctx context.Context, repo store.RecipeRepository, policy domain.Policy, doc domain.Document, lines []domain.Line) ([]domain.StockEntry, error) {
	if !e.Eligible(policy, doc) {
		return nil, nil
	}

	var entries []domain.StockEntry
	for _, line := range lines {
		components, err := e.Explode(ctx, repo, line, policy.Sign)
		if err != nil {
			return nil, err
		}
		if len(components) == 0 {
			e.logger.WithFields(logrus.Fields{
				"module": "recipe",
				"item":   line.ItemID,
				"doc":    doc.TransactionNo,
			}).Debug("no recipe, nothing exploded")
			continue
		}
		for _, c := range components {
			if c.Quantity.IsZero() {
				continue
			}
			entries = append(entries, domain.StockEntry{
				Ledger:          domain.LedgerRawMaterial,
				ItemID:          c.RawMaterialID,
				LocationID:      doc.LocationID,
				Quantity:        c.Quantity,
				NetRate:         c.NetRate,
				Type:            doc.Type,
				TransactionID:   doc.ID,
				TransactionNo:   doc.TransactionNo,
				TransactionDate: doc.TransactionDateTime,
			})
		}
	}
	return entries, nil
}
