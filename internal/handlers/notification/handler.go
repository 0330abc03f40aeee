package notification

import (
	"context"
	"eventasap/infras/otel"
	"eventasap/internal/domains/notification/model/dto"
	"eventasap/internal/domains/notification/service"
	"eventasap/shared/constant"
	gDto "eventasap/shared/dto"
	"eventasap/shared/failure"
	"eventasap/transport/http/response"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rs/zerolog/log"
)

type Handler struct {
	service service.Notification
	otel    otel.Otel
}

func New(service service.Notification, otel otel.Otel) Handler {
	return Handler{
		service: service,
		otel:    otel,
	}
}

func (handler *Handler) Router(router chi.Router) {
	router.Route("/notifications", func(routerGroup chi.Router) {
		routerGroup.Get("/", handler.GetNotifications)
		routerGroup.Get("/unread-count", handler.GetUnreadCount)
		routerGroup.Post("/{id}/read", handler.MarkRead)
		routerGroup.Post("/read-all", handler.MarkAllRead)
	})
}

func userFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(constant.ContextKeyUserID).(string)
	if !ok || userID == "" {
		return "", failure.Unauthorized("unauthorized") //nolint:wrapcheck
	}

	return userID, nil
}

// GetNotifications retrieves the authenticated user's notifications.
// @Summary Get my notifications
// @Description Retrieve the authenticated user's notifications, newest first.
// @Tags Notification
// @Accept json
// @Produce json
// @Param pagination query gDto.QueryParams false "Pagination parameters"
// @Success 200 {object} response.Data[dto.GetNotificationsResponse] "List of notifications"
// @Failure 401 {object} response.Error
// @Failure 500 {object} response.Error
// @Router /v1/notifications [get]
// @Security BearerAuth
func (handler *Handler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	ctx, scope := handler.otel.NewScope(r.Context(), constant.OtelHandlerScopeName, constant.OtelHandlerScopeName+".GetNotifications")
	defer scope.End()

	userID, err := userFromContext(ctx)
	if err != nil {
		scope.TraceError(err)
		log.Error().Msg("failed to get user ID from context")
		response.WithError(w, err)

		return
	}

	queryParams := gDto.QueryParams{}
	queryParams.FromRequest(r, true)

	notifications, err := handler.service.GetAll(ctx, userID, queryParams)
	if err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to get notifications")

		response.WithError(w, err)

		return
	}

	scope.AddEvent("Notifications retrieved successfully for user " + userID)

	response.WithJSON(w, http.StatusOK, notifications)
}

// GetUnreadCount returns the number of unread notifications for the user.
// @Summary Get unread notification count
// @Description Count the authenticated user's unread notifications.
// @Tags Notification
// @Accept json
// @Produce json
// @Success 200 {object} response.Data[dto.UnreadCountResponse] "Unread count"
// @Failure 401 {object} response.Error
// @Failure 500 {object} response.Error
// @Router /v1/notifications/unread-count [get]
// @Security BearerAuth
func (handler *Handler) GetUnreadCount(w http.ResponseWriter, r *http.Request) {
	ctx, scope := handler.otel.NewScope(r.Context(), constant.OtelHandlerScopeName, constant.OtelHandlerScopeName+".GetUnreadCount")
	defer scope.End()

	userID, err := userFromContext(ctx)
	if err != nil {
		scope.TraceError(err)
		log.Error().Msg("failed to get user ID from context")
		response.WithError(w, err)

		return
	}

	count, err := handler.service.CountUnread(ctx, userID)
	if err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to count unread notifications")

		response.WithError(w, err)

		return
	}

	scope.AddEvent("Unread notifications counted successfully for user " + userID)

	response.WithJSON(w, http.StatusOK, dto.UnreadCountResponse{Count: count})
}

// MarkRead marks a single notification as read.
// @Summary Mark a notification as read
// @Description Mark one of the authenticated user's notifications as read.
// @Tags Notification
// @Accept json
// @Produce json
// @Param id path string true "Notification ID"
// @Success 200 {object} response.Message "Notification marked as read"
// @Failure 401 {object} response.Error
// @Failure 403 {object} response.Error
// @Failure 404 {object} response.Error
// @Router /v1/notifications/{id}/read [post]
// @Security BearerAuth
func (handler *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	ctx, scope := handler.otel.NewScope(r.Context(), constant.OtelHandlerScopeName, constant.OtelHandlerScopeName+".MarkRead")
	defer scope.End()

	userID, err := userFromContext(ctx)
	if err != nil {
		scope.TraceError(err)
		log.Error().Msg("failed to get user ID from context")
		response.WithError(w, err)

		return
	}

	id := chi.URLParam(r, constant.RequestParamID)

	if err := handler.service.MarkRead(ctx, id, userID); err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to mark notification as read")

		response.WithError(w, err)

		return
	}

	scope.AddEvent("Notification marked as read by user " + userID)

	response.WithMessage(w, http.StatusOK, "Notification marked as read")
}

// MarkAllRead marks all of the user's notifications as read.
// @Summary Mark all notifications as read
// @Description Mark all of the authenticated user's notifications as read.
// @Tags Notification
// @Accept json
// @Produce json
// @Success 200 {object} response.Message "Notifications marked as read"
// @Failure 401 {object} response.Error
// @Failure 500 {object} response.Error
// @Router /v1/notifications/read-all [post]
// @Security BearerAuth
func (handler *Handler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	ctx, scope := handler.otel.NewScope(r.Context(), constant.OtelHandlerScopeName, constant.OtelHandlerScopeName+".MarkAllRead")
	defer scope.End()

	userID, err := userFromContext(ctx)
	if err != nil {
		scope.TraceError(err)
		log.Error().Msg("failed to get user ID from context")
		response.WithError(w, err)

		return
	}

	if err := handler.service.MarkAllRead(ctx, userID); err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to mark notifications as read")

		response.WithError(w, err)

		return
	}

	scope.AddEvent("All notifications marked as read by user " + userID)

	response.WithMessage(w, http.StatusOK, "Notifications marked as read")
}
