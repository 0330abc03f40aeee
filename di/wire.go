//go:build wireinject
// +build wireinject

package di

import (
	"eventasap/config"
	"eventasap/infras/jwt"
	"eventasap/infras/kafka"
	"eventasap/infras/otel"
	"eventasap/infras/postgres"
	"eventasap/infras/redis"
	"eventasap/infras/s3"
	"eventasap/infras/stripe"
	"eventasap/permissions"
	"eventasap/shared/cache"
	"eventasap/transport/http"
	"eventasap/transport/http/middleware"
	"eventasap/transport/http/router"

	bookingRepository "eventasap/internal/domains/booking/repository"
	bookingService "eventasap/internal/domains/booking/service"
	notificationRepository "eventasap/internal/domains/notification/repository"
	notificationService "eventasap/internal/domains/notification/service"
	paymentRepository "eventasap/internal/domains/payment/repository"
	paymentService "eventasap/internal/domains/payment/service"
	payoutRepository "eventasap/internal/domains/payout/repository"
	userRepository "eventasap/internal/domains/user/repository"

	bookingHandler "eventasap/internal/handlers/booking"
	healthHandler "eventasap/internal/handlers/health"
	notificationHandler "eventasap/internal/handlers/notification"
	paymentHandler "eventasap/internal/handlers/payment"

	"github.com/google/wire"
)

var configurations = wire.NewSet(
	config.Get,
	permissions.Get,
)

var infrastructures = wire.NewSet(
	postgres.New,
	otel.New,
	redis.New,
	jwt.New,
	kafka.New,
	s3.New,
	stripe.New,
)

var middlewares = wire.NewSet(
	middleware.NewAppMiddleware,
	middleware.NewAuthRoleMiddleware,
)

var sharedHelpers = wire.NewSet(
	cache.NewRedisCache,
)

var bookingDomain = wire.NewSet(
	bookingRepository.New,
	bookingService.New,
)

var paymentDomain = wire.NewSet(
	paymentRepository.New,
	paymentService.New,
	payoutRepository.New,
)

var notificationDomain = wire.NewSet(
	notificationRepository.New,
	notificationService.New,
)

var userDomain = wire.NewSet(
	userRepository.New,
)

var domains = wire.NewSet(
	bookingDomain,
	paymentDomain,
	notificationDomain,
	userDomain,
)

var routing = wire.NewSet(
	wire.Struct(new(router.DomainHandlers), "*"),
	bookingHandler.New,
	paymentHandler.New,
	notificationHandler.New,
	healthHandler.New,
	router.New,
)

func InitializeService() *http.HTTP {
	wire.Build(
		configurations,
		infrastructures,
		middlewares,
		sharedHelpers,
		domains,
		routing,
		http.New,
	)

	return &http.HTTP{}
}
