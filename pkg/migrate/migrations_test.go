package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mkellerhals/sourcelane-backend/pkg/migrate"
)

func TestMigrationDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations dir: %v", err)
	}
}

func TestDropshipOrdersMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_dropship_orders.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS dropship_orders",
		"CREATE TABLE IF NOT EXISTS dropship_order_items",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_dropship_orders_store_order_id",
		"FOREIGN KEY (dropship_order_id) REFERENCES dropship_orders(id) ON DELETE CASCADE",
		"CHECK (qty > 0)",
		"DROP TABLE IF EXISTS dropship_orders",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestProductSourcesMigrationContainsUniqueSupplierProduct(t *testing.T) {
	content := readMigration(t, "*_create_product_sources.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS product_sources",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_product_sources_supplier_product",
		"FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE CASCADE",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestImportJobsMigrationBoundsProgress(t *testing.T) {
	content := readMigration(t, "*_create_import_jobs.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS import_jobs",
		"CHECK (progress >= 0 AND progress <= 100)",
		"CREATE INDEX IF NOT EXISTS idx_import_jobs_owner_id",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestOutboxMigrationIndexesUnpublished(t *testing.T) {
	content := readMigration(t, "*_create_outbox_events.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS outbox_events",
		"WHERE published_at IS NULL",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %q found", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}
