package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product status values
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

// Sentinel errors surfaced by the listing domain
var (
	ErrNotFound       = errors.New("product not found")
	ErrInvalidCountry = errors.New("invalid country filter")
	ErrAuthRequired   = errors.New("authentication required")
	ErrForbidden      = errors.New("forbidden")
)

// ProductImage is one image attached to a product. At most one image per
// product should carry IsMain; this layer does not enforce that.
type ProductImage struct {
	ID          string `json:"id" gorm:"type:uuid;primaryKey"`
	ProductID   string `json:"-" gorm:"type:uuid;index;not null"`
	StoragePath string `json:"storage_path" gorm:"not null"`
	IsMain      bool   `json:"is_main" gorm:"default:false"`
	Position    int    `json:"position" gorm:"default:0"`
}

// TableName specifies the table name
func (ProductImage) TableName() string {
	return "product_images"
}

// BeforeCreate assigns an id when none was provided
func (i *ProductImage) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// Product represents a marketplace listing. It is read-only from this
// layer's perspective: fetched, displayed, deleted by id. InStock is not
// reconciled against AvailableQuantity here.
type Product struct {
	ID          string  `json:"id" gorm:"type:uuid;primaryKey"`
	Title       string  `json:"title" gorm:"not null"`
	Description string  `json:"description"`
	Price       float64 `json:"price" gorm:"not null"`
	Currency    string  `json:"currency" gorm:"not null;default:'EUR'"`
	Category    string  `json:"category" gorm:"index"`

	UserID      string         `json:"user_id" gorm:"type:uuid;index;not null"`
	StoragePath string         `json:"storage_path"`
	Images      []ProductImage `json:"images" gorm:"foreignKey:ProductID;references:ID"`

	AvailableQuantity int  `json:"available_quantity" gorm:"not null;default:0"`
	InStock           bool `json:"in_stock" gorm:"default:true"`

	County    string `json:"county,omitempty"`
	CountryID *int64 `json:"country_id,omitempty"`

	ProductStatus string    `json:"product_status" gorm:"index;not null;default:'draft'"`
	CreatedAt     time.Time `json:"created_at"`

	// Denormalized owner profile
	Username  string `json:"username"`
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url"`

	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName specifies the table name
func (Product) TableName() string {
	return "products"
}

// BeforeCreate assigns an id when none was provided
func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// IsDraft reports whether the product is still unpublished
func (p *Product) IsDraft() bool {
	return p.ProductStatus == StatusDraft
}

// ProductRepository defines the contract for product data access
type ProductRepository interface {
	FindPage(ctx context.Context, params ListParams, page int) ([]Product, error)
	FindByID(ctx context.Context, id string) (*Product, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
}
