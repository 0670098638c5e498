package repository

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tair/marketplace-listing/internal/listing/domain"
)

var tracer = otel.Tracer("listing-repository")

// GormProductRepositoryWithTracing wraps GormProductRepository with tracing
type GormProductRepositoryWithTracing struct {
	*GormProductRepository
}

// NewGormProductRepositoryWithTracing creates a new repository with tracing
func NewGormProductRepositoryWithTracing(db *gorm.DB) *GormProductRepositoryWithTracing {
	return &GormProductRepositoryWithTracing{
		GormProductRepository: NewGormProductRepository(db),
	}
}

// FindPage with tracing
func (r *GormProductRepositoryWithTracing) FindPage(ctx context.Context, params domain.ListParams, page int) ([]domain.Product, error) {
	ctx, span := tracer.Start(ctx, "repository.FindPage",
		trace.WithAttributes(
			attribute.String("query.search", params.Search),
			attribute.String("query.category", params.Category),
			attribute.String("query.sort", string(params.Sort)),
			attribute.Bool("query.published_only", params.PublishedOnly),
			attribute.Bool("query.owner_only", params.OwnerOnly),
			attribute.Int("query.page", page),
			attribute.Int("query.limit", params.Limit),
		),
	)
	defer span.End()

	products, err := r.GormProductRepository.FindPage(ctx, params, page)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("result.count", len(products)))
	return products, nil
}

// FindByID with tracing
func (r *GormProductRepositoryWithTracing) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	ctx, span := tracer.Start(ctx, "repository.FindByID",
		trace.WithAttributes(attribute.String("product.id", id)),
	)
	defer span.End()

	product, err := r.GormProductRepository.FindByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.String("product.title", product.Title),
		attribute.String("product.status", product.ProductStatus),
	)
	return product, nil
}

// Delete with tracing
func (r *GormProductRepositoryWithTracing) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "repository.Delete",
		trace.WithAttributes(attribute.String("product.id", id)),
	)
	defer span.End()

	if err := r.GormProductRepository.Delete(ctx, id); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}

// Count with tracing
func (r *GormProductRepositoryWithTracing) Count(ctx context.Context) (int64, error) {
	ctx, span := tracer.Start(ctx, "repository.Count")
	defer span.End()

	count, err := r.GormProductRepository.Count(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	span.SetAttributes(attribute.Int64("result.count", count))
	return count, nil
}
