//go:build wireinject
// +build wireinject

package di

import (
	"slotbook/config"
	"slotbook/infras/jwt"
	"slotbook/infras/kafka"
	"slotbook/infras/otel"
	"slotbook/infras/postgres"
	"slotbook/infras/redis"
	"slotbook/internal/events"
	bookingHandler "slotbook/internal/handlers/booking"
	slotHandler "slotbook/internal/handlers/slot"
	"slotbook/permissions"
	"slotbook/shared/cache"
	"slotbook/transport/http"
	"slotbook/transport/http/middleware"
	"slotbook/transport/http/router"

	bookingRepository "slotbook/internal/domains/booking/repository"
	bookingService "slotbook/internal/domains/booking/service"
	slotRepository "slotbook/internal/domains/slot/repository"
	slotService "slotbook/internal/domains/slot/service"

	"github.com/google/wire"

	authService "slotbook/internal/domains/auth/service"
	userRepository "slotbook/internal/domains/user/repository"
	authHandler "slotbook/internal/handlers/auth"
)

var configurations = wire.NewSet(
	config.Get,
)

var infrastructures = wire.NewSet(
	postgres.New,
	otel.New,
	redis.New,
	jwt.New,
	kafka.New,
)

var middlewares = wire.NewSet(
	permissions.Get,
	middleware.NewAppMiddleware,
	middleware.NewAuthRoleMiddleware,
)

var sharedHelpers = wire.NewSet(
	cache.NewRedisCache,
)

var eventPublishers = wire.NewSet(
	events.NewPublisher,
)

var slotDomain = wire.NewSet(
	slotRepository.New,
	slotService.New,
)

var bookingDomain = wire.NewSet(
	bookingRepository.New,
	bookingService.New,
)

var authDomain = wire.NewSet(
	userRepository.New,
	authService.New,
)

var domains = wire.NewSet(
	slotDomain,
	bookingDomain,
	authDomain,
)

var routing = wire.NewSet(
	wire.Struct(new(router.DomainHandlers), "*"),
	authHandler.New,
	slotHandler.New,
	bookingHandler.New,
	router.New,
)

func InitializeService() *http.HTTP {
	wire.Build(
		configurations,
		infrastructures,
		middlewares,
		sharedHelpers,
		eventPublishers,
		domains,
		routing,
		http.New,
	)

	return &http.HTTP{}
}
