package router

import (
	"eventasap/internal/handlers/booking"
	"eventasap/internal/handlers/health"
	"eventasap/internal/handlers/notification"
	"eventasap/internal/handlers/payment"
	"eventasap/transport/http/middleware"

	"github.com/go-chi/chi/v5"
)

type DomainHandlers struct {
	Booking      booking.Handler
	Payment      payment.Handler
	Notification notification.Handler
	Health       health.Handler
}

type Router struct {
	DomainHandlers DomainHandlers
	AppMiddleware  middleware.AppMiddleware
	AuthMiddleware middleware.AuthRole
}

func (r *Router) SetupRoutes(router chi.Router) {
	router.Use(r.AppMiddleware.Tracing)
	router.Use(r.AppMiddleware.CORS)
	router.Use(r.AppMiddleware.RateLimit())

	router.Route("/v1", func(routerGroup chi.Router) {
		r.DomainHandlers.Health.Router(routerGroup)

		routerGroup.Group(func(authenticated chi.Router) {
			authenticated.Use(r.AuthMiddleware.APIKey)
			authenticated.Use(r.AuthMiddleware.Auth)
			authenticated.Use(r.AuthMiddleware.RBAC)

			r.DomainHandlers.Booking.Router(authenticated)
			r.DomainHandlers.Payment.Router(authenticated)
			r.DomainHandlers.Notification.Router(authenticated)
		})
	})
}

func New(domainHandlers DomainHandlers, appMiddleware middleware.AppMiddleware, authMiddleware middleware.AuthRole) Router {
	return Router{
		DomainHandlers: domainHandlers,
		AppMiddleware:  appMiddleware,
		AuthMiddleware: authMiddleware,
	}
}
