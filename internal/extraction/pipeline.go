package extraction

import (
	"context"

	"github.com/mkellerhals/sourcelane-backend/internal/supplier"
	pkgerrors "github.com/mkellerhals/sourcelane-backend/pkg/errors"
	"github.com/mkellerhals/sourcelane-backend/pkg/logger"
)

// scrapeRunner is the slice of supplier.Scraper the pipeline needs.
type scrapeRunner interface {
	Scrape(ctx context.Context, rawURL string) (*supplier.Product, error)
	Close()
}

// imageFetcher is the slice of supplier.ImageDownloader the pipeline needs.
type imageFetcher interface {
	DownloadImages(ctx context.Context, urls []string) []supplier.DownloadedImage
}

// Options selects the optional pipeline stages for one run.
type Options struct {
	DownloadImages bool
	ValidateStock  bool
}

// Result carries everything one pipeline run produced. Err is safe to show to
// callers; the underlying failure detail is only logged.
type Result struct {
	Product *supplier.Product
	Stock   supplier.StockValidationResult
	Images  []supplier.DownloadedImage
	Success bool
	Err     error
}

// Pipeline chains scrape, stock validation and image download for one
// supplier listing. It owns none of its collaborators except the scraper,
// which it closes on Close.
type Pipeline struct {
	scraper    scrapeRunner
	validator  *supplier.StockValidator
	downloader imageFetcher
	logg       *logger.Logger
}

// NewPipeline wires the extraction stages together.
func NewPipeline(scraper scrapeRunner, validator *supplier.StockValidator, downloader imageFetcher, logg *logger.Logger) (*Pipeline, error) {
	if scraper == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "scraper required")
	}
	if validator == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stock validator required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &Pipeline{
		scraper:    scraper,
		validator:  validator,
		downloader: downloader,
		logg:       logg,
	}, nil
}

// Run executes the pipeline for one listing URL. Scrape always runs first; a
// scrape failure short-circuits the rest and reports the listing as
// completely out of stock so callers never treat an unknown listing as
// sellable.
func (p *Pipeline) Run(ctx context.Context, rawURL string, opts Options) Result {
	product, err := p.scraper.Scrape(ctx, rawURL)
	if err != nil {
		p.logg.Error(ctx, "supplier scrape failed", err)
		return Result{
			Stock:   unavailableResult(),
			Success: false,
			Err:     publicError(err),
		}
	}

	result := Result{Product: product, Success: true}

	if opts.ValidateStock {
		result.Stock = p.validator.Validate(product)
	} else {
		result.Stock = permissiveResult(product)
	}

	if opts.DownloadImages && p.downloader != nil {
		urls := supplier.FilterValidURLs(product.ImageURLs)
		if len(urls) > 0 {
			result.Images = p.downloader.DownloadImages(ctx, urls)
		}
	}

	return result
}

// Close releases the underlying scraper.
func (p *Pipeline) Close() {
	p.scraper.Close()
}

// publicError keeps typed domain errors intact and replaces anything else
// with a generic message so internal URLs and wire detail never leak.
func publicError(err error) error {
	if typed := pkgerrors.As(err); typed != nil {
		switch typed.Code() {
		case pkgerrors.CodeInvalidSupplierURL, pkgerrors.CodeSupplierFetch, pkgerrors.CodeSupplierParse:
			return pkgerrors.New(typed.Code(), pkgerrors.MetadataFor(typed.Code()).PublicMessage)
		}
	}
	return pkgerrors.New(pkgerrors.CodeSupplierFetch, pkgerrors.MetadataFor(pkgerrors.CodeSupplierFetch).PublicMessage)
}

func unavailableResult() supplier.StockValidationResult {
	return supplier.StockValidationResult{
		IsValid:                false,
		IsCompletelyOutOfStock: true,
		Reason:                 "listing unavailable",
	}
}

func permissiveResult(product *supplier.Product) supplier.StockValidationResult {
	result := supplier.StockValidationResult{IsValid: true}
	if product == nil {
		return result
	}
	result.AvailableVariants = product.Variants
	for _, variant := range product.Variants {
		if variant.Stock != nil {
			result.TotalAvailableStock += *variant.Stock
		}
	}
	if !product.HasVariants() && product.Stock != nil {
		result.TotalAvailableStock = *product.Stock
	}
	return result
}
