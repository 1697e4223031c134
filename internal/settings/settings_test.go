package settings

import (
	"context"
	"errors"
	"testing"

	"bakeryerp/backend/internal/domain"
	"bakeryerp/backend/internal/store"
	"bakeryerp/backend/internal/store/memory"
)

func loadFrom(t *testing.T, s *memory.Store) (Settings, error) {
	t.Helper()
	var cfg Settings
	err := s.View(context.Background(), func(repo store.Repository) error {
		var err error
		cfg, err = Load(context.Background(), repo)
		return err
	})
	return cfg, err
}

func TestLoadSeededSettings(t *testing.T) {
	cfg, err := loadFrom(t, memory.NewSeeded())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.PrimaryLocationID != memory.SeedHeadOffice {
		t.Fatalf("expected primary location %d, got %d", memory.SeedHeadOffice, cfg.PrimaryLocationID)
	}
	if id, ok := cfg.VoucherType(domain.DocSaleReturn); !ok || id != 2 {
		t.Fatalf("expected sale return voucher 2, got %d (%t)", id, ok)
	}
	if p, _ := cfg.Prefix(domain.DocSale); p != "S" {
		t.Fatalf("expected sale prefix S, got %q", p)
	}
	if p, _ := cfg.Prefix(domain.DocAccounting); p != "ACC" {
		t.Fatalf("expected accounting prefix ACC, got %q", p)
	}
	if len(cfg.NotifyUsers) != 2 {
		t.Fatalf("expected two notification users, got %v", cfg.NotifyUsers)
	}
	if cfg.RevenueLedger(domain.RevenuePurchase) != memory.SeedPurchase {
		t.Fatalf("expected purchase ledger for purchase revenue")
	}
}

func TestLoadFailsOnMissingKey(t *testing.T) {
	s := memory.New()
	s.PutSetting(KeyPrimaryLocation, "1")

	_, err := loadFrom(t, s)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for missing keys, got %v", err)
	}
}

func TestLoadRejectsMalformedID(t *testing.T) {
	s := memory.NewSeeded()
	s.PutSetting(KeyCashLedger, "cash")

	if _, err := loadFrom(t, s); err == nil {
		t.Fatalf("expected malformed ledger id to fail")
	}
}
