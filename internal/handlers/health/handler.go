package health

import (
	"eventasap/infras/postgres"
	"eventasap/transport/http/response"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	db *postgres.Connection
}

func New(db *postgres.Connection) Handler {
	return Handler{db: db}
}

func (handler *Handler) Router(router chi.Router) {
	router.Route("/health", func(routerGroup chi.Router) {
		routerGroup.Get("/", handler.Health)
	})
}

// Health reports readiness of the service and its database connections.
// @Summary Health check
// @Description Report whether the service and its database connections are healthy.
// @Tags Health
// @Produce json
// @Success 200 {object} response.Message "Service healthy"
// @Failure 503 {object} response.Error
// @Router /v1/health [get]
func (handler *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := handler.db.Read.PingContext(r.Context()); err != nil {
		response.WithUnhealthy(w)

		return
	}

	if err := handler.db.Write.PingContext(r.Context()); err != nil {
		response.WithUnhealthy(w)

		return
	}

	response.WithMessage(w, http.StatusOK, "OK")
}
