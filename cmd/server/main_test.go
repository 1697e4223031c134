package main

import (
	"testing"

	"bakeryerp/backend/internal/config"
)

const strongSecret = "0123456789abcdef0123456789abcdef"

func TestValidateConfigRejectsWeakSecret(t *testing.T) {
	if err := validateConfig(config.Config{AuthSecret: "short"}); err == nil {
		t.Fatalf("expected weak auth secret to be rejected")
	}
}

func TestValidateConfigAcceptsStrongValues(t *testing.T) {
	if err := validateConfig(config.Config{AuthSecret: strongSecret}); err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}

func TestValidateConfigChecksDependentSettings(t *testing.T) {
	cases := []config.Config{
		{AuthSecret: strongSecret, PubSubProjectID: "bakery"},
		{AuthSecret: strongSecret, SchemaAutoMigrate: true},
	}
	for _, cfg := range cases {
		if err := validateConfig(cfg); err == nil {
			t.Fatalf("expected %+v to be rejected", cfg)
		}
	}
}
