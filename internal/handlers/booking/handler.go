package booking

import (
	"context"
	"eventasap/infras/otel"
	"eventasap/internal/domains/booking/model"
	"eventasap/internal/domains/booking/model/dto"
	"eventasap/internal/domains/booking/service"
	"eventasap/shared/constant"
	gDto "eventasap/shared/dto"
	"eventasap/shared/failure"
	"eventasap/shared/validator"
	"eventasap/transport/http/response"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rs/zerolog/log"
)

type Handler struct {
	service service.Booking
	otel    otel.Otel
}

func New(service service.Booking, otel otel.Otel) Handler {
	return Handler{
		service: service,
		otel:    otel,
	}
}

func (handler *Handler) Router(router chi.Router) {
	router.Route("/bookings", func(routerGroup chi.Router) {
		routerGroup.Post("/", handler.CreateBooking)
		routerGroup.Get("/", handler.GetBookings)
		routerGroup.Get("/mybookings", handler.GetMyBookings)
		routerGroup.Get("/{id}", handler.GetBookingByID)
		routerGroup.Post("/{id}/accept", handler.AcceptBooking)
		routerGroup.Post("/{id}/decline", handler.DeclineBooking)
		routerGroup.Post("/{id}/propose-price", handler.ProposePrice)
		routerGroup.Post("/{id}/approve-price", handler.ApprovePrice)
		routerGroup.Post("/{id}/reject-price", handler.RejectPrice)
		routerGroup.Post("/{id}/cancel", handler.CancelBooking)
		routerGroup.Post("/{id}/complete", handler.CompleteBooking)
	})
}

func actorFromContext(ctx context.Context) (userID, role string, err error) {
	userID, ok := ctx.Value(constant.ContextKeyUserID).(string)
	if !ok || userID == "" {
		return "", "", failure.Unauthorized("unauthorized") //nolint:wrapcheck
	}

	role, _ = ctx.Value(constant.ContextKeyUserRole).(string)

	return userID, role, nil
}

// CreateBooking handles the creation of a new booking request.
// @Summary Create a new booking
// @Description Create a new event booking request addressed to a vendor.
// @Tags Booking
// @Accept json
// @Produce json
// @Param request body dto.CreateBookingRequest true "Create Booking Request"
// @Success 201 {object} response.Data[dto.BookingResponse] "Booking created successfully"
// @Failure 400 {object} response.Error
// @Failure 500 {object} response.Error
// @Router /v1/bookings [post]
// @Security BearerAuth
func (handler *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	ctx, scope := handler.otel.NewScope(r.Context(), constant.OtelHandlerScopeName, constant.OtelHandlerScopeName+".CreateBooking")
	defer scope.End()

	userID, _, err := actorFromContext(ctx)
	if err != nil {
		scope.TraceError(err)
		log.Error().Msg("failed to get user ID from context")
		response.WithError(w, err)

		return
	}

	req := dto.CreateBookingRequest{}

	if err := validator.Validate(r.Body, &req); err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to validate request body")

		response.WithError(w, err)

		return
	}

	booking, err := handler.service.Create(ctx, req)
	if err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to create booking")

		response.WithError(w, err)

		return
	}

	scope.AddEvent("Booking created successfully by user " + userID)

	response.WithJSON(w, http.StatusCreated, booking)
}

// GetBookings retrieves all bookings based on query parameters.
// @Summary Get all bookings
// @Description Retrieve all bookings with optional filtering and pagination. Admin only.
// @Tags Booking
// @Accept json
// @Produce json
// @Param pagination query gDto.QueryParams false "Pagination parameters"
// @Param client_id query string false "Filter by client ID"
// @Param vendor_id query string false "Filter by vendor ID"
// @Param status query string false "Filter by status"
// @Success 200 {object} response.Data[dto.GetBookingsResponse] "List of bookings"
// @Failure 400 {object} response.Error
// @Failure 500 {object} response.Error
// @Router /v1/bookings [get]
// @Security BearerAuth
func (handler *Handler) GetBookings(w http.ResponseWriter, r *http.Request) {
	ctx, scope := handler.otel.NewScope(r.Context(), constant.OtelHandlerScopeName, constant.OtelHandlerScopeName+".GetBookings")
	defer scope.End()

	queryParams := gDto.QueryParams{}
	queryParams.FromRequest(r, true)

	clientID := r.URL.Query().Get(model.FieldClientID)
	vendorID := r.URL.Query().Get(model.FieldVendorID)
	status := r.URL.Query().Get(model.FieldStatus)

	filterGroup := gDto.FilterGroup{
		Operator: gDto.FilterGroupOperatorAnd,
		Filters:  []any{},
	}

	if clientID != "" {
		filterGroup.Filters = append(filterGroup.Filters, gDto.Filter{
			Field:    model.FieldClientID,
			Operator: gDto.FilterOperatorEq,
			Value:    clientID,
			Table:    model.TableName,
		})
	}

	if vendorID != "" {
		filterGroup.Filters = append(filterGroup.Filters, gDto.Filter{
			Field:    model.FieldVendorID,
			Operator: gDto.FilterOperatorEq,
			Value:    vendorID,
			Table:    model.TableName,
		})
	}

	if status != "" {
		filterGroup.Filters = append(filterGroup.Filters, gDto.Filter{
			Field:    model.FieldStatus,
			Operator: gDto.FilterOperatorEq,
			Value:    status,
			Table:    model.TableName,
		})
	}

	bookings, err := handler.service.GetAll(ctx, queryParams, filterGroup)
	if err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to get bookings")

		response.WithError(w, err)

		return
	}

	scope.AddEvent("Bookings retrieved successfully")

	response.WithJSON(w, http.StatusOK, bookings)
}

// GetMyBookings retrieves all bookings the authenticated user is a party to.
// @Summary Get my bookings
// @Description Retrieve all bookings where the authenticated user is the client or the vendor.
// @Tags Booking
// @Accept json
// @Produce json
// @Param pagination query gDto.QueryParams false "Pagination parameters"
// @Success 200 {object} response.Data[dto.GetBookingsResponse] "List of user's bookings"
// @Failure 400 {object} response.Error
// @Failure 401 {object} response.Error
// @Failure 500 {object} response.Error
// @Router /v1/bookings/mybookings [get]
// @Security BearerAuth
func (handler *Handler) GetMyBookings(w http.ResponseWriter, r *http.Request) {
	ctx, scope := handler.otel.NewScope(r.Context(), constant.OtelHandlerScopeName, constant.OtelHandlerScopeName+".GetMyBookings")
	defer scope.End()

	userID, _, err := actorFromContext(ctx)
	if err != nil {
		scope.TraceError(err)
		log.Error().Msg("failed to get user ID from context")
		response.WithError(w, err)

		return
	}

	queryParams := gDto.QueryParams{}
	queryParams.FromRequest(r, true)

	bookings, err := handler.service.GetMine(ctx, userID, queryParams)
	if err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to get user bookings")

		response.WithError(w, err)

		return
	}

	scope.AddEvent("User bookings retrieved successfully for user " + userID)

	response.WithJSON(w, http.StatusOK, bookings)
}

// GetBookingByID retrieves a booking by its ID.
// @Summary Get a booking by ID
// @Description Retrieve a booking by its unique identifier. Restricted to the booking's parties and admins.
// @Tags Booking
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Data[dto.BookingResponse] "Booking details"
// @Failure 403 {object} response.Error
// @Failure 404 {object} response.Error
// @Failure 500 {object} response.Error
// @Router /v1/bookings/{id} [get]
// @Security BearerAuth
func (handler *Handler) GetBookingByID(w http.ResponseWriter, r *http.Request) {
	ctx, scope := handler.otel.NewScope(r.Context(), constant.OtelHandlerScopeName, constant.OtelHandlerScopeName+".GetBookingByID")
	defer scope.End()

	userID, role, err := actorFromContext(ctx)
	if err != nil {
		scope.TraceError(err)
		log.Error().Msg("failed to get user ID from context")
		response.WithError(w, err)

		return
	}

	id := chi.URLParam(r, constant.RequestParamID)

	booking, err := handler.service.Get(ctx, id, userID, role)
	if err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to get booking by ID")

		response.WithError(w, err)

		return
	}

	scope.AddEvent("Booking retrieved successfully")

	response.WithJSON(w, http.StatusOK, booking)
}

// AcceptBooking accepts a pending booking, optionally quoting a price.
// @Summary Accept a booking
// @Description Accept a pending booking as the vendor, optionally attaching a quoted price.
// @Tags Booking
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param request body dto.AcceptBookingRequest false "Accept Booking Request"
// @Success 200 {object} response.Data[dto.BookingResponse] "Booking accepted successfully"
// @Failure 400 {object} response.Error
// @Failure 403 {object} response.Error
// @Failure 409 {object} response.Error
// @Router /v1/bookings/{id}/accept [post]
// @Security BearerAuth
func (handler *Handler) AcceptBooking(w http.ResponseWriter, r *http.Request) {
	ctx, scope := handler.otel.NewScope(r.Context(), constant.OtelHandlerScopeName, constant.OtelHandlerScopeName+".AcceptBooking")
	defer scope.End()

	userID, _, err := actorFromContext(ctx)
	if err != nil {
		scope.TraceError(err)
		log.Error().Msg("failed to get user ID from context")
		response.WithError(w, err)

		return
	}

	id := chi.URLParam(r, constant.RequestParamID)

	req := dto.AcceptBookingRequest{}
	if r.ContentLength > 0 {
		if err := validator.Validate(r.Body, &req); err != nil {
			scope.TraceError(err)
			log.Error().Err(err).Msg("failed to validate request body")

			response.WithError(w, err)

			return
		}
	}

	booking, err := handler.service.Accept(ctx, id, userID, req)
	if err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to accept booking")

		response.WithError(w, err)

		return
	}

	scope.AddEvent("Booking accepted successfully by user " + userID)

	response.WithJSON(w, http.StatusOK, booking)
}

// DeclineBooking declines a pending booking.
// @Summary Decline a booking
// @Description Decline a pending booking as the vendor.
// @Tags Booking
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Data[dto.BookingResponse] "Booking declined successfully"
// @Failure 403 {object} response.Error
// @Failure 409 {object} response.Error
// @Router /v1/bookings/{id}/decline [post]
// @Security BearerAuth
func (handler *Handler) DeclineBooking(w http.ResponseWriter, r *http.Request) {
	ctx, scope := handler.otel.NewScope(r.Context(), constant.OtelHandlerScopeName, constant.OtelHandlerScopeName+".DeclineBooking")
	defer scope.End()

	userID, _, err := actorFromContext(ctx)
	if err != nil {
		scope.TraceError(err)
		log.Error().Msg("failed to get user ID from context")
		response.WithError(w, err)

		return
	}

	id := chi.URLParam(r, constant.RequestParamID)

	booking, err := handler.service.Decline(ctx, id, userID)
	if err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to decline booking")

		response.WithError(w, err)

		return
	}

	scope.AddEvent("Booking declined successfully by user " + userID)

	response.WithJSON(w, http.StatusOK, booking)
}

// ProposePrice proposes an adjusted price for a booking.
// @Summary Propose an adjusted price
// @Description Propose an adjusted price for a booking as the vendor. Only one proposal may be pending at a time.
// @Tags Booking
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param request body dto.ProposePriceRequest true "Propose Price Request"
// @Success 200 {object} response.Data[dto.BookingResponse] "Price proposed successfully"
// @Failure 400 {object} response.Error
// @Failure 403 {object} response.Error
// @Failure 409 {object} response.Error
// @Router /v1/bookings/{id}/propose-price [post]
// @Security BearerAuth
func (handler *Handler) ProposePrice(w http.ResponseWriter, r *http.Request) {
	ctx, scope := handler.otel.NewScope(r.Context(), constant.OtelHandlerScopeName, constant.OtelHandlerScopeName+".ProposePrice")
	defer scope.End()

	userID, _, err := actorFromContext(ctx)
	if err != nil {
		scope.TraceError(err)
		log.Error().Msg("failed to get user ID from context")
		response.WithError(w, err)

		return
	}

	id := chi.URLParam(r, constant.RequestParamID)

	req := dto.ProposePriceRequest{}
	if err := validator.Validate(r.Body, &req); err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to validate request body")

		response.WithError(w, err)

		return
	}

	booking, err := handler.service.ProposePrice(ctx, id, userID, req.AmountCents)
	if err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to propose price")

		response.WithError(w, err)

		return
	}

	scope.AddEvent("Price proposed successfully by user " + userID)

	response.WithJSON(w, http.StatusOK, booking)
}

// ApprovePrice approves the pending price proposal on a booking.
// @Summary Approve a price proposal
// @Description Approve the pending adjusted price as the client, locking it in as the final price.
// @Tags Booking
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Data[dto.BookingResponse] "Price approved successfully"
// @Failure 403 {object} response.Error
// @Failure 409 {object} response.Error
// @Router /v1/bookings/{id}/approve-price [post]
// @Security BearerAuth
func (handler *Handler) ApprovePrice(w http.ResponseWriter, r *http.Request) {
	ctx, scope := handler.otel.NewScope(r.Context(), constant.OtelHandlerScopeName, constant.OtelHandlerScopeName+".ApprovePrice")
	defer scope.End()

	userID, _, err := actorFromContext(ctx)
	if err != nil {
		scope.TraceError(err)
		log.Error().Msg("failed to get user ID from context")
		response.WithError(w, err)

		return
	}

	id := chi.URLParam(r, constant.RequestParamID)

	booking, err := handler.service.ApprovePrice(ctx, id, userID)
	if err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to approve price")

		response.WithError(w, err)

		return
	}

	scope.AddEvent("Price approved successfully by user " + userID)

	response.WithJSON(w, http.StatusOK, booking)
}

// RejectPrice rejects the pending price proposal on a booking.
// @Summary Reject a price proposal
// @Description Reject the pending adjusted price as the client. The vendor may propose again.
// @Tags Booking
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Data[dto.BookingResponse] "Price rejected successfully"
// @Failure 403 {object} response.Error
// @Failure 409 {object} response.Error
// @Router /v1/bookings/{id}/reject-price [post]
// @Security BearerAuth
func (handler *Handler) RejectPrice(w http.ResponseWriter, r *http.Request) {
	ctx, scope := handler.otel.NewScope(r.Context(), constant.OtelHandlerScopeName, constant.OtelHandlerScopeName+".RejectPrice")
	defer scope.End()

	userID, _, err := actorFromContext(ctx)
	if err != nil {
		scope.TraceError(err)
		log.Error().Msg("failed to get user ID from context")
		response.WithError(w, err)

		return
	}

	id := chi.URLParam(r, constant.RequestParamID)

	booking, err := handler.service.RejectPrice(ctx, id, userID)
	if err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to reject price")

		response.WithError(w, err)

		return
	}

	scope.AddEvent("Price rejected successfully by user " + userID)

	response.WithJSON(w, http.StatusOK, booking)
}

// CancelBooking cancels a booking before payment.
// @Summary Cancel a booking
// @Description Cancel a booking as either party before it is paid.
// @Tags Booking
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Data[dto.BookingResponse] "Booking cancelled successfully"
// @Failure 403 {object} response.Error
// @Failure 409 {object} response.Error
// @Router /v1/bookings/{id}/cancel [post]
// @Security BearerAuth
func (handler *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	ctx, scope := handler.otel.NewScope(r.Context(), constant.OtelHandlerScopeName, constant.OtelHandlerScopeName+".CancelBooking")
	defer scope.End()

	userID, _, err := actorFromContext(ctx)
	if err != nil {
		scope.TraceError(err)
		log.Error().Msg("failed to get user ID from context")
		response.WithError(w, err)

		return
	}

	id := chi.URLParam(r, constant.RequestParamID)

	booking, err := handler.service.Cancel(ctx, id, userID)
	if err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to cancel booking")

		response.WithError(w, err)

		return
	}

	scope.AddEvent("Booking cancelled successfully by user " + userID)

	response.WithJSON(w, http.StatusOK, booking)
}

// CompleteBooking marks a paid booking as completed.
// @Summary Complete a booking
// @Description Mark a paid booking as completed as the vendor, releasing the held payout.
// @Tags Booking
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Data[dto.BookingResponse] "Booking completed successfully"
// @Failure 403 {object} response.Error
// @Failure 409 {object} response.Error
// @Router /v1/bookings/{id}/complete [post]
// @Security BearerAuth
func (handler *Handler) CompleteBooking(w http.ResponseWriter, r *http.Request) {
	ctx, scope := handler.otel.NewScope(r.Context(), constant.OtelHandlerScopeName, constant.OtelHandlerScopeName+".CompleteBooking")
	defer scope.End()

	userID, _, err := actorFromContext(ctx)
	if err != nil {
		scope.TraceError(err)
		log.Error().Msg("failed to get user ID from context")
		response.WithError(w, err)

		return
	}

	id := chi.URLParam(r, constant.RequestParamID)

	booking, err := handler.service.Complete(ctx, id, userID)
	if err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to complete booking")

		response.WithError(w, err)

		return
	}

	scope.AddEvent("Booking completed successfully by user " + userID)

	response.WithJSON(w, http.StatusOK, booking)
}
