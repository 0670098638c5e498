//go:build wireinject
// +build wireinject

package identity

import (
	"github.com/google/wire"
	"gorm.io/gorm"

	httpdelivery "github.com/tair/marketplace-listing/internal/identity/delivery/http"
	"github.com/tair/marketplace-listing/internal/identity/domain"
	"github.com/tair/marketplace-listing/internal/identity/repository"
	"github.com/tair/marketplace-listing/internal/identity/usecase/command"
	"github.com/tair/marketplace-listing/internal/identity/usecase/query"
)

// Config carries the external knobs Wire cannot derive
type Config struct {
	JWTSecret string
}

// ProvideUserRepository provides the traced user repository
func ProvideUserRepository(db *gorm.DB) domain.UserRepository {
	return repository.NewGormUserRepositoryWithTracing(db)
}

// Command Handlers Providers
func ProvideRegisterUserHandler(repo domain.UserRepository) *command.RegisterUserHandler {
	return command.NewRegisterUserHandler(repo)
}

func ProvideLoginUserHandler(repo domain.UserRepository, cfg Config) *command.LoginUserHandler {
	return command.NewLoginUserHandler(repo, cfg.JWTSecret)
}

// Query Handlers Providers
func ProvideGetUserHandler(repo domain.UserRepository) *query.GetUserHandler {
	return query.NewGetUserHandler(repo)
}

func ProvideCheckAdminHandler(repo domain.UserRepository) *query.CheckAdminHandler {
	return query.NewCheckAdminHandler(repo)
}

func ProvideUserHandler(
	registerHandler *command.RegisterUserHandler,
	loginHandler *command.LoginUserHandler,
	getUserHandler *query.GetUserHandler,
	checkAdminHandler *query.CheckAdminHandler,
	repo domain.UserRepository,
	cfg Config,
) *httpdelivery.UserHandler {
	return httpdelivery.NewUserHandler(
		registerHandler, loginHandler,
		getUserHandler, checkAdminHandler,
		repo, cfg.JWTSecret,
	)
}

// Wire sets
var AllHandlersSet = wire.NewSet(
	ProvideUserRepository,
	ProvideRegisterUserHandler,
	ProvideLoginUserHandler,
	ProvideGetUserHandler,
	ProvideCheckAdminHandler,
	ProvideUserHandler,
)

// InitializeHTTPHandler initializes HTTP handler with all dependencies
func InitializeHTTPHandler(db *gorm.DB, cfg Config) (*httpdelivery.UserHandler, error) {
	wire.Build(AllHandlersSet)
	return nil, nil
}
