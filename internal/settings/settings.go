// Package settings loads the business configuration the posting engine needs
// once, at construction, from the settings store.
package settings

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"bakeryerp/backend/internal/domain"
	"bakeryerp/backend/internal/store"
)

const (
	KeyPrimaryLocation   = "PrimaryLocationId"
	KeyCashLedger        = "CashLedgerId"
	KeySaleLedger        = "SaleLedgerId"
	KeyPurchaseLedger    = "PurchaseLedgerId"
	KeyGSTLedger         = "GSTLedgerId"
	KeyNotificationUsers = "NotificationUsers"
)

var voucherKeys = map[domain.DocumentType]string{
	domain.DocSale:           "SaleVoucherId",
	domain.DocSaleReturn:     "SaleReturnVoucherId",
	domain.DocPurchase:       "PurchaseVoucherId",
	domain.DocPurchaseReturn: "PurchaseReturnVoucherId",
}

type Settings struct {
	PrimaryLocationID int
	CashLedgerID      int
	SaleLedgerID      int
	PurchaseLedgerID  int
	GSTLedgerID       int
	VoucherTypes      map[domain.DocumentType]int
	Prefixes          map[domain.DocumentType]string
	NotifyUsers       []string
}

func (s Settings) VoucherType(t domain.DocumentType) (int, bool) {
	id, ok := s.VoucherTypes[t]
	return id, ok
}

func (s Settings) Prefix(t domain.DocumentType) (string, bool) {
	p, ok := s.Prefixes[t]
	return p, ok
}

func (s Settings) RevenueLedger(r domain.RevenueLedger) int {
	if r == domain.RevenuePurchase {
		return s.PurchaseLedgerID
	}
	return s.SaleLedgerID
}

// Load fails on the first missing or malformed key. Only the notification
// user list is optional.
func Load(ctx context.Context, repo store.SettingsRepository) (Settings, error) {
	raw, err := repo.ListSettings(ctx)
	if err != nil {
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}

	cfg := Settings{
		VoucherTypes: make(map[domain.DocumentType]int, len(voucherKeys)),
		Prefixes:     make(map[domain.DocumentType]string),
	}

	ints := []struct {
		key  string
		dest *int
	}{
		{KeyPrimaryLocation, &cfg.PrimaryLocationID},
		{KeyCashLedger, &cfg.CashLedgerID},
		{KeySaleLedger, &cfg.SaleLedgerID},
		{KeyPurchaseLedger, &cfg.PurchaseLedgerID},
		{KeyGSTLedger, &cfg.GSTLedgerID},
	}
	for _, item := range ints {
		val, err := requireInt(raw, item.key)
		if err != nil {
			return Settings{}, err
		}
		*item.dest = val
	}

	for docType, key := range voucherKeys {
		val, err := requireInt(raw, key)
		if err != nil {
			return Settings{}, err
		}
		cfg.VoucherTypes[docType] = val
	}

	for _, docType := range append(domain.DocumentTypes(), domain.DocAccounting) {
		policy, _ := domain.PolicyFor(docType)
		prefix := strings.TrimSpace(raw[policy.PrefixKey])
		if prefix == "" {
			return Settings{}, fmt.Errorf("setting %s: %w", policy.PrefixKey, store.ErrNotFound)
		}
		cfg.Prefixes[docType] = prefix
	}

	for _, user := range strings.Split(raw[KeyNotificationUsers], ",") {
		if user = strings.TrimSpace(user); user != "" {
			cfg.NotifyUsers = append(cfg.NotifyUsers, user)
		}
	}

	return cfg, nil
}

func requireInt(raw map[string]string, key string) (int, error) {
	val, ok := raw[key]
	if !ok || strings.TrimSpace(val) == "" {
		return 0, fmt.Errorf("setting %s: %w", key, store.ErrNotFound)
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil || parsed < 1 {
		return 0, fmt.Errorf("setting %s=%q is not a valid id", key, val)
	}
	return parsed, nil
}
