package extraction

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mkellerhals/sourcelane-backend/internal/supplier"
	"github.com/mkellerhals/sourcelane-backend/pkg/db"
	"github.com/mkellerhals/sourcelane-backend/pkg/db/models"
	pkgerrors "github.com/mkellerhals/sourcelane-backend/pkg/errors"
	"github.com/mkellerhals/sourcelane-backend/pkg/logger"
	"github.com/mkellerhals/sourcelane-backend/pkg/metrics"
)

const (
	supplierSourceConstraint = "ux_product_sources_supplier_product"
	maxSlugTitleLen          = 60
)

var slugStripRe = regexp.MustCompile(`[^a-z0-9]+`)

// pipelineRunner is the slice of Pipeline the service depends on.
type pipelineRunner interface {
	Run(ctx context.Context, rawURL string, opts Options) Result
	Close()
}

// Service exposes the supplier import operations.
type Service interface {
	Preview(ctx context.Context, rawURL string, categoryID *uuid.UUID) (*PreviewResult, error)
	Import(ctx context.Context, input ImportInput) (*ImportResult, error)
	StartAsyncImport(ctx context.Context, input ImportInput) (uuid.UUID, error)
	JobStatus(ctx context.Context, jobID uuid.UUID) (*models.ImportJob, error)
	CancelJob(ctx context.Context, jobID uuid.UUID) error
	Close()
}

// ServiceParams collects the import service dependencies.
type ServiceParams struct {
	Repo         Repository
	Tx           txRunner
	Pipeline     pipelineRunner
	Tracker      *Tracker
	Guard        *supplier.URLGuard
	Metrics      *metrics.PipelineMetrics
	Logger       *logger.Logger
	SupplierName string
}

type service struct {
	repo         Repository
	tx           txRunner
	pipeline     pipelineRunner
	tracker      *Tracker
	guard        *supplier.URLGuard
	metrics      *metrics.PipelineMetrics
	logg         *logger.Logger
	supplierName string
	jobs         sync.WaitGroup
}

// NewService wires the import service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "extraction repository required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if params.Pipeline == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "extraction pipeline required")
	}
	if params.Tracker == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "job tracker required")
	}
	if params.Guard == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "url guard required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	name := params.SupplierName
	if name == "" {
		name = "supplier"
	}
	return &service{
		repo:         params.Repo,
		tx:           params.Tx,
		pipeline:     params.Pipeline,
		tracker:      params.Tracker,
		guard:        params.Guard,
		metrics:      params.Metrics,
		logg:         params.Logger,
		supplierName: name,
	}, nil
}

func (s *service) Preview(ctx context.Context, rawURL string, categoryID *uuid.UUID) (*PreviewResult, error) {
	if err := s.guard.Validate(rawURL); err != nil {
		return nil, err
	}

	result := s.pipeline.Run(ctx, rawURL, Options{ValidateStock: true})
	if !result.Success {
		return nil, result.Err
	}

	validator := supplier.NewStockValidator(supplier.StockValidatorConfig{})
	return &PreviewResult{
		Product:           result.Product,
		Stock:             result.Stock,
		InventoryScore:    validator.InventoryHealthScore(result.Product),
		RecommendedAction: validator.RecommendAction(result.Product),
	}, nil
}

func (s *service) Import(ctx context.Context, input ImportInput) (*ImportResult, error) {
	if input.OwnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id required")
	}
	if err := s.guard.Validate(input.SupplierURL); err != nil {
		return nil, err
	}
	supplierProductID := s.guard.ExtractProductID(input.SupplierURL)

	if err := s.rejectDuplicate(ctx, supplierProductID); err != nil {
		return nil, err
	}

	result := s.pipeline.Run(ctx, input.SupplierURL, Options{
		ValidateStock:  true,
		DownloadImages: input.DownloadImages,
	})
	if !result.Success {
		return nil, result.Err
	}
	if !result.Stock.IsValid {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock validation rejected the listing").
			WithDetails(map[string]any{"reason": result.Stock.Reason})
	}

	return s.persist(ctx, input, supplierProductID, result)
}

func (s *service) StartAsyncImport(ctx context.Context, input ImportInput) (uuid.UUID, error) {
	if input.OwnerID == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id required")
	}
	if err := s.guard.Validate(input.SupplierURL); err != nil {
		return uuid.Nil, err
	}
	if err := s.rejectDuplicate(ctx, s.guard.ExtractProductID(input.SupplierURL)); err != nil {
		return uuid.Nil, err
	}

	job, err := s.tracker.Create(ctx, input.OwnerID, input.SupplierURL, input.CategoryID)
	if err != nil {
		return uuid.Nil, err
	}

	// The job outlives the triggering request; only the logger context is
	// carried over.
	jobCtx := s.logg.WithJobID(context.Background(), job.ID.String())
	jobCtx = s.logg.WithUserID(jobCtx, input.OwnerID.String())

	s.jobs.Add(1)
	go s.runJob(jobCtx, job.ID, input)

	return job.ID, nil
}

func (s *service) JobStatus(ctx context.Context, jobID uuid.UUID) (*models.ImportJob, error) {
	return s.tracker.Get(ctx, jobID)
}

func (s *service) CancelJob(ctx context.Context, jobID uuid.UUID) error {
	return s.tracker.Cancel(ctx, jobID)
}

// Close waits for in-flight jobs and releases the pipeline.
func (s *service) Close() {
	s.jobs.Wait()
	s.pipeline.Close()
}

func (s *service) runJob(ctx context.Context, jobID uuid.UUID, input ImportInput) {
	defer s.jobs.Done()
	defer func() {
		if r := recover(); r != nil {
			s.logg.Error(ctx, "import job panicked", pkgerrors.New(pkgerrors.CodeInternal, "import job panicked"))
			_ = s.tracker.Fail(ctx, jobID, "internal error")
			s.observeFailure()
		}
	}()

	started := time.Now()

	if err := s.tracker.MarkProcessing(ctx, jobID, 10, "scraping"); err != nil {
		// A cancel racing the start leaves the job terminal; stop quietly.
		return
	}

	result := s.pipeline.Run(ctx, input.SupplierURL, Options{
		ValidateStock:  true,
		DownloadImages: input.DownloadImages,
	})
	if s.tracker.IsCancelled(ctx, jobID) {
		return
	}
	if !result.Success {
		s.failJob(ctx, jobID, result.Err)
		return
	}

	if err := s.tracker.UpdateProgress(ctx, jobID, 60, "validating stock"); err != nil {
		return
	}
	if !result.Stock.IsValid {
		s.failJob(ctx, jobID, pkgerrors.New(pkgerrors.CodeValidation, "stock validation rejected the listing: "+result.Stock.Reason))
		return
	}

	if err := s.tracker.UpdateProgress(ctx, jobID, 80, "saving product"); err != nil {
		return
	}
	supplierProductID := s.guard.ExtractProductID(input.SupplierURL)
	imported, err := s.persist(ctx, input, supplierProductID, result)
	if err != nil {
		s.failJob(ctx, jobID, err)
		return
	}

	if err := s.tracker.Complete(ctx, jobID, imported); err != nil {
		s.logg.Error(ctx, "import job completion not recorded", err)
		return
	}
	if s.metrics != nil {
		s.metrics.ObserveJobDuration(s.supplierName, time.Since(started))
		s.metrics.IncJobCompleted(s.supplierName)
	}
	s.logg.Info(ctx, "import job completed")
}

func (s *service) failJob(ctx context.Context, jobID uuid.UUID, cause error) {
	message := "import failed"
	if typed := pkgerrors.As(cause); typed != nil {
		message = typed.Message()
	}
	if err := s.tracker.Fail(ctx, jobID, message); err != nil {
		s.logg.Error(ctx, "import job failure not recorded", err)
		return
	}
	s.observeFailure()
}

func (s *service) observeFailure() {
	if s.metrics != nil {
		s.metrics.IncJobFailed(s.supplierName)
	}
}

// rejectDuplicate refuses a second import of the same supplier listing before
// any network traffic happens.
func (s *service) rejectDuplicate(ctx context.Context, supplierProductID string) error {
	existing, err := s.repo.FindProductSourceBySupplierProductID(ctx, supplierProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing product source")
	}
	return pkgerrors.New(pkgerrors.CodeConflict, "listing already imported").
		WithDetails(map[string]any{"productSlug": existing.ProductSlug})
}

func (s *service) persist(ctx context.Context, input ImportInput, supplierProductID string, result Result) (*ImportResult, error) {
	scraped := result.Product
	slug := buildSlug(scraped.Title, supplierProductID)

	var imported *ImportResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		description := scraped.Description
		product := &models.Product{
			Slug:        slug,
			Title:       scraped.Title,
			CategoryID:  input.CategoryID,
			Price:       scraped.Price,
			Currency:    scraped.Currency.String(),
			Stock:       scraped.Stock,
			IsActive:    true,
		}
		if description != "" {
			product.Description = &description
		}
		created, err := repo.CreateProduct(ctx, product)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
		}

		variants := make([]models.ProductVariant, 0, len(scraped.Variants))
		skuMap := make(map[string]string, len(scraped.Variants))
		for _, variant := range scraped.Variants {
			catalogSKU := supplierProductID + "-" + variant.SKU
			skuMap[catalogSKU] = variant.SKU
			variants = append(variants, models.ProductVariant{
				ProductID:  created.ID,
				SKU:        catalogSKU,
				Attributes: variant.Attributes,
				Price:      variant.Price,
				Stock:      variant.Stock,
			})
		}
		if err := repo.CreateProductVariants(ctx, variants); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product variants")
		}

		source := &models.ProductSource{
			ProductID:         created.ID,
			ProductSlug:       slug,
			SupplierName:      s.supplierName,
			SupplierProductID: supplierProductID,
			SupplierURL:       s.guard.Normalize(input.SupplierURL),
			VariantSKUMap:     skuMap,
			OriginalPrice:     scraped.Price,
			OriginalCurrency:  scraped.Currency,
		}
		if len(scraped.Variants) > 0 {
			defaultSKU := scraped.Variants[0].SKU
			source.SupplierSKU = &defaultSKU
		}
		savedSource, err := repo.CreateProductSource(ctx, source)
		if err != nil {
			if db.IsUniqueViolation(err, supplierSourceConstraint) {
				return pkgerrors.New(pkgerrors.CodeConflict, "listing already imported")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product source")
		}

		imported = &ImportResult{
			ProductID:   created.ID,
			ProductSlug: slug,
			SourceID:    savedSource.ID,
			ImageCount:  len(result.Images),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return imported, nil
}

// buildSlug derives a unique catalog slug from the listing title and the
// supplier product id. The id suffix keeps re-listings with identical titles
// distinct.
func buildSlug(title, supplierProductID string) string {
	base := strings.ToLower(title)
	base = slugStripRe.ReplaceAllString(base, "-")
	base = strings.Trim(base, "-")
	if len(base) > maxSlugTitleLen {
		base = strings.Trim(base[:maxSlugTitleLen], "-")
	}
	if base == "" {
		base = "listing"
	}
	return base + "-" + supplierProductID
}
