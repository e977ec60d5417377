package extraction

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mkellerhals/sourcelane-backend/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an extraction repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateImportJob(ctx context.Context, job *models.ImportJob) (*models.ImportJob, error) {
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		return nil, err
	}
	return job, nil
}

func (r *repository) FindImportJob(ctx context.Context, jobID uuid.UUID) (*models.ImportJob, error) {
	var job models.ImportJob
	err := r.db.WithContext(ctx).
		Where("id = ?", jobID).
		First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *repository) FindImportJobForUpdate(ctx context.Context, jobID uuid.UUID) (*models.ImportJob, error) {
	var job models.ImportJob
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", jobID).
		First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *repository) UpdateImportJob(ctx context.Context, jobID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.ImportJob{}).
		Where("id = ?", jobID).
		Updates(updates).Error
}

func (r *repository) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

func (r *repository) CreateProductVariants(ctx context.Context, variants []models.ProductVariant) error {
	if len(variants) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&variants).Error
}

func (r *repository) CreateProductSource(ctx context.Context, source *models.ProductSource) (*models.ProductSource, error) {
	if err := r.db.WithContext(ctx).Create(source).Error; err != nil {
		return nil, err
	}
	return source, nil
}

func (r *repository) FindProductSourceBySupplierProductID(ctx context.Context, supplierProductID string) (*models.ProductSource, error) {
	var source models.ProductSource
	err := r.db.WithContext(ctx).
		Where("supplier_product_id = ?", supplierProductID).
		Order("created_at ASC").
		First(&source).Error
	if err != nil {
		return nil, err
	}
	return &source, nil
}
