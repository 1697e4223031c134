// Package pricing recomputes line and header amounts so that every posted
// snapshot is internally consistent.
package pricing

import (
	"github.com/shopspring/decimal"

	"bakeryerp/backend/internal/domain"
)

var hundred = decimal.NewFromInt(100)

const (
	moneyPlaces = 2
	ratePlaces  = 4
)

func percentOf(amount decimal.Decimal, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct).Div(hundred).Round(moneyPlaces)
}

// Line fills every derived field of l from Quantity, Rate, DiscountPercent,
// the tax percentages and the inclusive-tax flag.
func Line(l domain.Line) domain.Line {
	l.BaseTotal = l.Rate.Mul(l.Quantity).Round(moneyPlaces)
	l.DiscountAmount = percentOf(l.BaseTotal, l.DiscountPercent)
	l.AfterDiscount = l.BaseTotal.Sub(l.DiscountAmount)

	taxPct := l.CGSTPercent.Add(l.SGSTPercent).Add(l.IGSTPercent)
	taxable := l.AfterDiscount
	if l.InclusiveTax && taxPct.IsPositive() {
		taxable = l.AfterDiscount.Mul(hundred).Div(hundred.Add(taxPct))
	}

	l.CGSTAmount = percentOf(taxable, l.CGSTPercent)
	l.SGSTAmount = percentOf(taxable, l.SGSTPercent)
	l.IGSTAmount = percentOf(taxable, l.IGSTPercent)
	l.TotalTaxAmount = l.CGSTAmount.Add(l.SGSTAmount).Add(l.IGSTAmount)

	if l.InclusiveTax {
		l.Total = l.AfterDiscount
	} else {
		l.Total = l.AfterDiscount.Add(l.TotalTaxAmount)
	}
	l.NetRate = netRate(l.Total, l.Quantity, decimal.Zero)
	return l
}

// Document recomputes every line and the header aggregates. TotalAmount is
// rounded to a whole unit and the difference is kept in RoundOffAmount.
// Payment amounts are left untouched.
func Document(doc domain.Document, lines []domain.Line) (domain.Document, []domain.Line) {
	out := make([]domain.Line, len(lines))

	doc.BaseTotal = decimal.Zero
	doc.ItemDiscountAmount = decimal.Zero
	doc.TotalTaxAmount = decimal.Zero
	gross := decimal.Zero

	for i, l := range lines {
		l = Line(l)
		doc.BaseTotal = doc.BaseTotal.Add(l.BaseTotal)
		doc.ItemDiscountAmount = doc.ItemDiscountAmount.Add(l.DiscountAmount)
		doc.TotalTaxAmount = doc.TotalTaxAmount.Add(l.TotalTaxAmount)
		gross = gross.Add(l.Total)
		out[i] = l
	}

	doc.DiscountAmount = percentOf(gross, doc.DiscountPercent)
	raw := gross.Sub(doc.DiscountAmount)
	doc.TotalAmount = raw.Round(0)
	doc.RoundOffAmount = doc.TotalAmount.Sub(raw)

	for i := range out {
		out[i].NetRate = netRate(out[i].Total, out[i].Quantity, doc.DiscountPercent)
	}
	return doc, out
}

func netRate(total decimal.Decimal, qty decimal.Decimal, headerDiscountPct decimal.Decimal) decimal.Decimal {
	if qty.IsZero() {
		return decimal.Zero
	}
	share := hundred.Sub(headerDiscountPct).Div(hundred)
	return total.Mul(share).Div(qty).Abs().Round(ratePlaces)
}
