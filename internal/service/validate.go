package service

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"bakeryerp/backend/internal/domain"
)

var hundred = decimal.NewFromInt(100)

func (s *Service) validateRequest(doc domain.Document, lines []domain.Line) (domain.Policy, error) {
	if _, ok := domain.ParseDocumentType(string(doc.Type)); !ok {
		return domain.Policy{}, domain.Invalid(fmt.Sprintf("unknown document type %q", doc.Type))
	}
	policy, _ := domain.PolicyFor(doc.Type)

	var details []string
	details = append(details, fieldErrors("document", s.validate.Struct(doc))...)

	if len(lines) == 0 {
		details = append(details, "at least one line is required")
	}
	if doc.ID < 0 {
		details = append(details, "id must not be negative")
	}
	if policy.MirrorTarget && doc.ToLocationID == nil {
		details = append(details, "to_location_id is required")
	}
	if doc.OrderID != nil && !policy.LinksOrder {
		details = append(details, fmt.Sprintf("%s cannot reference an order", doc.Type))
	}
	if !between(doc.DiscountPercent, decimal.Zero, hundred) {
		details = append(details, "discount_percent must be between 0 and 100")
	}
	for name, amount := range map[string]decimal.Decimal{"cash": doc.Cash, "card": doc.Card, "upi": doc.UPI, "credit": doc.Credit} {
		if amount.IsNegative() {
			details = append(details, name+" must not be negative")
		}
	}

	for i, line := range lines {
		prefix := fmt.Sprintf("lines[%d]", i)
		details = append(details, fieldErrors(prefix, s.validate.Struct(line))...)

		switch {
		case line.Quantity.IsZero():
			details = append(details, prefix+".quantity must not be zero")
		case policy.Sign != 0 && line.Quantity.IsNegative():
			details = append(details, prefix+".quantity must be positive")
		}
		if line.Rate.IsNegative() {
			details = append(details, prefix+".rate must not be negative")
		}
		if !between(line.DiscountPercent, decimal.Zero, hundred) {
			details = append(details, prefix+".discount_percent must be between 0 and 100")
		}
		for _, pct := range []decimal.Decimal{line.CGSTPercent, line.SGSTPercent, line.IGSTPercent} {
			if !between(pct, decimal.Zero, hundred) {
				details = append(details, prefix+".tax percent must be between 0 and 100")
				break
			}
		}
	}

	if len(details) > 0 {
		return domain.Policy{}, domain.Invalid(details...)
	}
	return policy, nil
}

func fieldErrors(prefix string, err error) []string {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{prefix + ": " + err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fmt.Sprintf("%s.%s failed %s", prefix, fe.Field(), fe.Tag()))
	}
	return out
}

func between(v decimal.Decimal, lo decimal.Decimal, hi decimal.Decimal) bool {
	return v.GreaterThanOrEqual(lo) && v.LessThanOrEqual(hi)
}
