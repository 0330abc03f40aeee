// Code generated by Wire. DO NOT EDIT.

//go:generate go run -mod=mod github.com/google/wire/cmd/wire
//go:build !wireinject
// +build !wireinject

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
	"eventasap/internal/domains/booking/repository"
	service2 "eventasap/internal/domains/booking/service"
	repository4 "eventasap/internal/domains/notification/repository"
	"eventasap/internal/domains/notification/service"
	repository5 "eventasap/internal/domains/payment/repository"
	service3 "eventasap/internal/domains/payment/service"
	repository3 "eventasap/internal/domains/payout/repository"
	repository2 "eventasap/internal/domains/user/repository"
	"eventasap/internal/handlers/booking"
	"eventasap/internal/handlers/health"
	"eventasap/internal/handlers/notification"
	"eventasap/internal/handlers/payment"
	"eventasap/permissions"
	"eventasap/shared/cache"
	"eventasap/transport/http"
	"eventasap/transport/http/middleware"
	"eventasap/transport/http/router"
	"github.com/google/wire"
)

// Injectors from wire.go:

func InitializeService() *http.HTTP {
	configConfig := config.Get()
	connection := postgres.New(configConfig)
	otelOtel := otel.New(configConfig)
	repositoryBooking := repository.New(connection, otelOtel)
	user := repository2.New(connection, otelOtel)
	payout := repository3.New(connection, otelOtel)
	repositoryNotification := repository4.New(connection, otelOtel)
	client := redis.New(configConfig)
	redisCache := cache.NewRedisCache(client, otelOtel)
	serviceNotification := service.New(repositoryNotification, configConfig, redisCache, otelOtel)
	kafkaClient := kafka.New(configConfig)
	serviceBooking := service2.New(repositoryBooking, user, payout, serviceNotification, kafkaClient, configConfig, redisCache, otelOtel)
	handler := booking.New(serviceBooking, otelOtel)
	repositoryPayment := repository5.New(connection, otelOtel)
	paymentProvider := stripe.New(configConfig, otelOtel)
	s3S3 := s3.New(configConfig, otelOtel)
	servicePayment := service3.New(repositoryPayment, repositoryBooking, payout, serviceNotification, paymentProvider, s3S3, kafkaClient, configConfig, redisCache, otelOtel)
	paymentHandler := payment.New(servicePayment, otelOtel)
	notificationHandler := notification.New(serviceNotification, otelOtel)
	healthHandler := health.New(connection)
	domainHandlers := router.DomainHandlers{
		Booking:      handler,
		Payment:      paymentHandler,
		Notification: notificationHandler,
		Health:       healthHandler,
	}
	appMiddleware := middleware.NewAppMiddleware(otelOtel, configConfig, redisCache)
	jwtJWT := jwt.New(configConfig)
	permissionData := permissions.Get()
	authRole := middleware.NewAuthRoleMiddleware(jwtJWT, otelOtel, permissionData, configConfig)
	routerRouter := router.New(domainHandlers, appMiddleware, authRole)
	httpHTTP := http.New(configConfig, routerRouter)
	return httpHTTP
}

// wire.go:

var configurations = wire.NewSet(config.Get, permissions.Get)

var infrastructures = wire.NewSet(postgres.New, otel.New, redis.New, jwt.New, kafka.New, s3.New, stripe.New)

var middlewares = wire.NewSet(middleware.NewAppMiddleware, middleware.NewAuthRoleMiddleware)

var sharedHelpers = wire.NewSet(cache.NewRedisCache)

var bookingDomain = wire.NewSet(repository.New, service2.New)

var paymentDomain = wire.NewSet(repository5.New, service3.New, repository3.New)

var notificationDomain = wire.NewSet(repository4.New, service.New)

var userDomain = wire.NewSet(repository2.New)

var domains = wire.NewSet(
	bookingDomain,
	paymentDomain,
	notificationDomain,
	userDomain,
)

var routing = wire.NewSet(wire.Struct(new(router.DomainHandlers), "*"), booking.New, payment.New, notification.New, health.New, router.New)
