package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"budget/internal/config"
	"budget/internal/core"
	"budget/internal/log"
)

func TestSetupLoggerRejectsUnknownLevel(t *testing.T) {
	if _, err := SetupLogger(&config.Config{LogLevel: "loud"}, log.ComponentApp); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestLoadCategories(t *testing.T) {
	set, err := LoadCategories(&config.Config{}, log.Discard())
	if err != nil || !set.Contains(core.Food) {
		t.Fatalf("defaults: %v, %v", set.List(), err)
	}

	path := filepath.Join(t.TempDir(), "categories.yaml")
	if err := os.WriteFile(path, []byte("categories:\n  - Rent\n  - Food\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	set, err = LoadCategories(&config.Config{CategoriesFile: path}, log.Discard())
	if err != nil {
		t.Fatalf("LoadCategories: %v", err)
	}
	if !set.Contains("Rent") || set.Contains(core.Sports) {
		t.Fatalf("unexpected set %v", set.List())
	}
}

func TestOpenGateway(t *testing.T) {
	cfg := &config.Config{DataBackend: "file", DataDir: t.TempDir()}
	res, err := OpenGateway(context.Background(), cfg, log.Discard())
	if err != nil {
		t.Fatalf("OpenGateway: %v", err)
	}
	if res.Gateway == nil {
		t.Fatal("nil gateway")
	}

	if _, err := OpenGateway(context.Background(), &config.Config{DataBackend: "bogus"}, log.Discard()); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestLoadConfigRunsValidators(t *testing.T) {
	t.Setenv("PORT", "notaport")
	if _, err := LoadConfig((*config.Config).Validate); err == nil {
		t.Fatal("expected validation error")
	}
}
