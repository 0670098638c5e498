package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tair/marketplace-listing/internal/listing/domain"
)

type GormProductRepository struct {
	db *gorm.DB
}

func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

func (r *GormProductRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&domain.Product{}, &domain.ProductImage{})
}

// FindPage returns one page of products matching the parameter tuple. All
// active filters are ANDed; the requested row range is
// [page*limit, page*limit+limit-1].
func (r *GormProductRepository) FindPage(ctx context.Context, params domain.ListParams, page int) ([]domain.Product, error) {
	q := r.db.WithContext(ctx).Model(&domain.Product{})

	if params.Search != "" {
		q = q.Where("title ILIKE ?", "%"+params.Search+"%")
	}
	if params.FilterCategory() {
		q = q.Where("category = ?", params.Category)
	}
	if params.FilterCounty() {
		q = q.Where("county = ?", params.County)
	}
	if params.CountryID != nil {
		q = q.Where("country_id = ?", *params.CountryID)
	}
	if params.PublishedOnly {
		q = q.Where("product_status = ?", domain.StatusPublished)
	}
	if params.OwnerOnly {
		q = q.Where("user_id = ?", params.OwnerID)
	}

	switch params.Sort {
	case domain.SortPriceAsc:
		q = q.Order("price ASC")
	case domain.SortPriceDesc:
		q = q.Order("price DESC")
	default:
		q = q.Order("created_at DESC")
	}

	var products []domain.Product
	err := q.
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Limit(params.Limit).
		Offset(params.Offset(page)).
		Find(&products).Error
	return products, err
}

func (r *GormProductRepository) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	var product domain.Product
	err := r.db.WithContext(ctx).
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&product, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

func (r *GormProductRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&domain.Product{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormProductRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Product{}).Count(&count).Error
	return count, err
}
