//go:build wireinject
// +build wireinject

package listing

import (
	"github.com/google/wire"
	"gorm.io/gorm"

	"github.com/tair/marketplace-listing/internal/listing/client"
	httpdelivery "github.com/tair/marketplace-listing/internal/listing/delivery/http"
	"github.com/tair/marketplace-listing/internal/listing/domain"
	"github.com/tair/marketplace-listing/internal/listing/pager"
	"github.com/tair/marketplace-listing/internal/listing/repository"
	"github.com/tair/marketplace-listing/internal/listing/usecase/command"
	"github.com/tair/marketplace-listing/internal/listing/usecase/query"
)

// Config carries the external knobs Wire cannot derive
type Config struct {
	JWTSecret   string
	IdentityURL string
}

// ProvideProductRepository provides the traced product repository
func ProvideProductRepository(db *gorm.DB) domain.ProductRepository {
	return repository.NewGormProductRepositoryWithTracing(db)
}

// ProvidePager provides the page cache over the repository
func ProvidePager(repo domain.ProductRepository) *pager.Pager {
	return pager.New(repo, pager.DefaultOptions())
}

// ProvideIdentityClient provides the identity service client
func ProvideIdentityClient(cfg Config) *client.IdentityClient {
	return client.NewIdentityClient(cfg.IdentityURL)
}

func ProvideAdminChecker(c *client.IdentityClient) httpdelivery.AdminChecker {
	return c
}

// Command Handlers Providers
func ProvideDeleteProductHandler(repo domain.ProductRepository, publisher command.EventPublisher) *command.DeleteProductHandler {
	return command.NewDeleteProductHandler(repo, publisher)
}

// Query Handlers Providers
func ProvideListProductsHandler(p *pager.Pager) *query.ListProductsHandler {
	return query.NewListProductsHandler(p)
}

func ProvideGetProductHandler(repo domain.ProductRepository) *query.GetProductHandler {
	return query.NewGetProductHandler(repo)
}

// ProvideMiddleware provides the auth middleware set
func ProvideMiddleware(cfg Config, identity httpdelivery.AdminChecker) *httpdelivery.Middleware {
	return httpdelivery.NewMiddleware(cfg.JWTSecret, identity)
}

// Wire sets
var RepositorySet = wire.NewSet(
	ProvideProductRepository,
	ProvidePager,
)

var ClientSet = wire.NewSet(
	ProvideIdentityClient,
	ProvideAdminChecker,
)

var HandlerSet = wire.NewSet(
	ProvideDeleteProductHandler,
	ProvideListProductsHandler,
	ProvideGetProductHandler,
)

var AllHandlersSet = wire.NewSet(
	RepositorySet,
	ClientSet,
	HandlerSet,
	ProvideMiddleware,
)

// InitializeHTTPHandler initializes HTTP handler with all dependencies
func InitializeHTTPHandler(db *gorm.DB, cfg Config, publisher command.EventPublisher) (*httpdelivery.ListingHandler, error) {
	wire.Build(
		AllHandlersSet,
		httpdelivery.NewListingHandler,
	)
	return nil, nil
}
