package extraction

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mkellerhals/sourcelane-backend/pkg/db/models"
	"github.com/mkellerhals/sourcelane-backend/pkg/enums"
)

func setupExtractionTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:extraction_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS import_jobs (
  id TEXT PRIMARY KEY,
  owner_id TEXT NOT NULL,
  supplier_url TEXT NOT NULL,
  category_id TEXT,
  status TEXT NOT NULL DEFAULT 'pending',
  progress INTEGER NOT NULL DEFAULT 0,
  step TEXT NOT NULL DEFAULT '',
  result TEXT,
  error TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  slug TEXT NOT NULL UNIQUE,
  title TEXT NOT NULL,
  description TEXT,
  category_id TEXT,
  price NUMERIC NOT NULL,
  currency TEXT NOT NULL DEFAULT 'USD',
  stock INTEGER,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS product_variants (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  sku TEXT NOT NULL UNIQUE,
  attributes TEXT,
  price NUMERIC NOT NULL,
  stock INTEGER,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS product_sources (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  product_slug TEXT NOT NULL,
  supplier_name TEXT NOT NULL,
  supplier_product_id TEXT NOT NULL UNIQUE,
  supplier_url TEXT NOT NULL,
  supplier_sku TEXT,
  variant_sku_map TEXT,
  original_price NUMERIC NOT NULL,
  original_currency TEXT NOT NULL DEFAULT 'USD',
  created_at DATETIME,
  updated_at DATETIME
);`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create table: %v", err)
		}
	}
	return db
}

func TestRepositoryImportJobRoundTrip(t *testing.T) {
	db := setupExtractionTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	job := &models.ImportJob{
		ID:          uuid.New(),
		OwnerID:     uuid.New(),
		SupplierURL: "https://www.aliexpress.com/item/1005.html",
		Status:      enums.ImportJobStatusPending,
		Step:        "queued",
	}
	if _, err := repo.CreateImportJob(ctx, job); err != nil {
		t.Fatalf("create job: %v", err)
	}

	found, err := repo.FindImportJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("find job: %v", err)
	}
	if found.SupplierURL != job.SupplierURL || found.Status != enums.ImportJobStatusPending {
		t.Fatalf("unexpected row %+v", found)
	}

	updates := map[string]any{
		"status":   enums.ImportJobStatusProcessing,
		"progress": 40,
		"step":     "scraping",
	}
	if err := repo.UpdateImportJob(ctx, job.ID, updates); err != nil {
		t.Fatalf("update job: %v", err)
	}
	found, err = repo.FindImportJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("reload job: %v", err)
	}
	if found.Status != enums.ImportJobStatusProcessing || found.Progress != 40 || found.Step != "scraping" {
		t.Fatalf("updates not applied: %+v", found)
	}

	if _, err := repo.FindImportJob(ctx, uuid.New()); err != gorm.ErrRecordNotFound {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestRepositoryCatalogCreation(t *testing.T) {
	db := setupExtractionTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	product := &models.Product{
		ID:       uuid.New(),
		Slug:     "wireless-earbuds-1005",
		Title:    "Wireless Earbuds",
		Price:    decimal.NewFromFloat(19.99),
		Currency: "USD",
		IsActive: true,
	}
	if _, err := repo.CreateProduct(ctx, product); err != nil {
		t.Fatalf("create product: %v", err)
	}

	variants := []models.ProductVariant{
		{ID: uuid.New(), ProductID: product.ID, SKU: "1005-black", Price: decimal.NewFromFloat(19.99), Attributes: map[string]string{"color": "black"}},
		{ID: uuid.New(), ProductID: product.ID, SKU: "1005-white", Price: decimal.NewFromFloat(19.99), Attributes: map[string]string{"color": "white"}},
	}
	if err := repo.CreateProductVariants(ctx, variants); err != nil {
		t.Fatalf("create variants: %v", err)
	}
	if err := repo.CreateProductVariants(ctx, nil); err != nil {
		t.Fatalf("empty variant batch must be a no-op: %v", err)
	}

	source := &models.ProductSource{
		ID:                uuid.New(),
		ProductID:         product.ID,
		ProductSlug:       product.Slug,
		SupplierName:      "aliexpress",
		SupplierProductID: "1005",
		SupplierURL:       "https://www.aliexpress.com/item/1005.html",
		VariantSKUMap:     map[string]string{"1005-black": "black"},
		OriginalPrice:     decimal.NewFromFloat(12.50),
		OriginalCurrency:  enums.CurrencyUSD,
	}
	if _, err := repo.CreateProductSource(ctx, source); err != nil {
		t.Fatalf("create source: %v", err)
	}

	found, err := repo.FindProductSourceBySupplierProductID(ctx, "1005")
	if err != nil {
		t.Fatalf("find source: %v", err)
	}
	if found.ProductSlug != product.Slug {
		t.Fatalf("unexpected source %+v", found)
	}
	if found.VariantSKUMap["1005-black"] != "black" {
		t.Fatalf("sku map lost in round trip: %+v", found.VariantSKUMap)
	}

	if _, err := repo.FindProductSourceBySupplierProductID(ctx, "9999"); err != gorm.ErrRecordNotFound {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}

	duplicate := &models.ProductSource{
		ID:                uuid.New(),
		ProductID:         product.ID,
		ProductSlug:       product.Slug,
		SupplierName:      "aliexpress",
		SupplierProductID: "1005",
		SupplierURL:       source.SupplierURL,
		OriginalPrice:     decimal.NewFromFloat(12.50),
		OriginalCurrency:  enums.CurrencyUSD,
		CreatedAt:         time.Now().Add(time.Minute),
	}
	if _, err := repo.CreateProductSource(ctx, duplicate); err == nil {
		t.Fatal("expected unique violation for duplicate supplier product id")
	}
}
