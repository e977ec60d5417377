package extraction

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mkellerhals/sourcelane-backend/pkg/db/models"
)

// Repository defines persistence operations for import jobs and the catalog
// records an import creates.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateImportJob(ctx context.Context, job *models.ImportJob) (*models.ImportJob, error)
	FindImportJob(ctx context.Context, jobID uuid.UUID) (*models.ImportJob, error)
	FindImportJobForUpdate(ctx context.Context, jobID uuid.UUID) (*models.ImportJob, error)
	UpdateImportJob(ctx context.Context, jobID uuid.UUID, updates map[string]any) error
	CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error)
	CreateProductVariants(ctx context.Context, variants []models.ProductVariant) error
	CreateProductSource(ctx context.Context, source *models.ProductSource) (*models.ProductSource, error)
	FindProductSourceBySupplierProductID(ctx context.Context, supplierProductID string) (*models.ProductSource, error)
}
