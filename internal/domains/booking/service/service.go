package service

//go:generate go run go.uber.org/mock/mockgen -source=./service.go -destination=./mocks/service_mock.go -package=mocks

import (
	"context"
	"eventasap/config"
	"eventasap/infras/kafka"
	"eventasap/infras/otel"
	"eventasap/internal/domains/booking/model"
	"eventasap/internal/domains/booking/model/dto"
	"eventasap/internal/domains/booking/repository"
	notifModel "eventasap/internal/domains/notification/model"
	notifDto "eventasap/internal/domains/notification/model/dto"
	notifService "eventasap/internal/domains/notification/service"
	payoutRepo "eventasap/internal/domains/payout/repository"
	userModel "eventasap/internal/domains/user/model"
	userRepo "eventasap/internal/domains/user/repository"
	"eventasap/shared"
	"eventasap/shared/cache"
	"eventasap/shared/constant"
	gDto "eventasap/shared/dto"
	"eventasap/shared/failure"
	"eventasap/shared/timezone"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	cacheGetBooking    = "booking:get"
	cacheGetAllBooking = "booking:gets"
	cacheCountBooking  = "booking:count"
)

// Typed failures for the transition validator. Messages are stable; the
// frontend keys on them.
var (
	ErrBookingNotFound     = &failure.Failure{Code: http.StatusNotFound, Message: "booking not found"}
	ErrWrongActor          = &failure.Failure{Code: http.StatusForbidden, Message: "actor is not permitted to perform this transition"}
	ErrInvalidTransition   = &failure.Failure{Code: http.StatusConflict, Message: "transition is not permitted from the current booking status"}
	ErrTransitionConflict  = &failure.Failure{Code: http.StatusConflict, Message: "booking was modified concurrently, please retry"}
	ErrInvalidPrice        = &failure.Failure{Code: http.StatusBadRequest, Message: "price must be positive and below the configured ceiling"}
	ErrProposalInProgress  = &failure.Failure{Code: http.StatusConflict, Message: "a price proposal is already awaiting client review"}
	ErrPayoutNotReleasable = &failure.Failure{Code: http.StatusConflict, Message: "payout has already been released"}
)

type Booking interface {
	Create(ctx context.Context, req dto.CreateBookingRequest) (dto.BookingResponse, error)
	Accept(ctx context.Context, bookingID, actorID string, req dto.AcceptBookingRequest) (dto.BookingResponse, error)
	Decline(ctx context.Context, bookingID, actorID string) (dto.BookingResponse, error)
	ProposePrice(ctx context.Context, bookingID, actorID string, amountCents int64) (dto.BookingResponse, error)
	ApprovePrice(ctx context.Context, bookingID, actorID string) (dto.BookingResponse, error)
	RejectPrice(ctx context.Context, bookingID, actorID string) (dto.BookingResponse, error)
	Cancel(ctx context.Context, bookingID, actorID string) (dto.BookingResponse, error)
	Complete(ctx context.Context, bookingID, actorID string) (dto.BookingResponse, error)
	Get(ctx context.Context, id, actorID, actorRole string) (dto.BookingResponse, error)
	GetAll(ctx context.Context, params gDto.QueryParams, filter gDto.FilterGroup) (dto.GetBookingsResponse, error)
	GetMine(ctx context.Context, userID string, params gDto.QueryParams) (dto.GetBookingsResponse, error)
}

type serviceImpl struct {
	repo       repository.Booking
	userRepo   userRepo.User
	payoutRepo payoutRepo.Payout
	notifier   notifService.Notification
	kafka      kafka.Client
	cfg        *config.Config
	cache      cache.RedisCache
	otel       otel.Otel
}

func New(
	repo repository.Booking,
	userRepo userRepo.User,
	payoutRepo payoutRepo.Payout,
	notifier notifService.Notification,
	kafkaClient kafka.Client,
	cfg *config.Config,
	cache cache.RedisCache,
	otel otel.Otel,
) Booking {
	return &serviceImpl{
		repo:       repo,
		userRepo:   userRepo,
		payoutRepo: payoutRepo,
		notifier:   notifier,
		kafka:      kafkaClient,
		cfg:        cfg,
		cache:      cache,
		otel:       otel,
	}
}

func (s *serviceImpl) Create(ctx context.Context, req dto.CreateBookingRequest) (res dto.BookingResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".Create")
	defer scope.End()
	defer scope.TraceIfError(err)

	clientID, _ := ctx.Value(constant.ContextKeyUserID).(string)

	if req.BudgetCents <= 0 || req.BudgetCents > s.cfg.Booking.MaxPriceCents {
		return res, ErrInvalidPrice //nolint:wrapcheck
	}

	vendor, err := s.userRepo.Get(ctx, shared.FilterByID(req.VendorID, userModel.FieldID, userModel.TableName))
	if err != nil {
		log.Error().Err(err).Msg("failed to look up vendor")

		return res, fmt.Errorf("failed to look up vendor: %w", err)
	}

	if vendor.ID == constant.Empty || vendor.Role != constant.RoleVendor || !vendor.Active {
		return res, failure.BadRequestFromString("vendor does not exist") //nolint:wrapcheck
	}

	booking, err := req.ToModel(clientID)
	if err != nil {
		log.Error().Err(err).Msg("failed to parse booking request")

		return res, failure.BadRequestFromString(fmt.Sprintf("invalid event date format: %v", err)) //nolint:wrapcheck
	}

	if err = s.repo.Insert(ctx, booking); err != nil {
		log.Error().Err(err).Msg("failed to create booking")

		return res, fmt.Errorf("failed to create booking: %w", err)
	}

	s.notify(ctx, booking.VendorID, notifModel.TypeBookingRequest,
		"New booking request",
		fmt.Sprintf("You received a new %s booking request.", booking.EventType),
		booking.ID, nil)

	s.publishEvent(ctx, booking, "created", clientID)
	s.invalidateLists(ctx)

	res.FromModel(booking)

	return res, nil
}

func (s *serviceImpl) Accept(ctx context.Context, bookingID, actorID string, req dto.AcceptBookingRequest) (res dto.BookingResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".Accept")
	defer scope.End()
	defer scope.TraceIfError(err)

	extra := map[string]any{}

	if req.QuotedPriceCents != nil {
		if *req.QuotedPriceCents <= 0 || *req.QuotedPriceCents > s.cfg.Booking.MaxPriceCents {
			return res, ErrInvalidPrice //nolint:wrapcheck
		}

		extra[model.FieldQuotedPrice] = *req.QuotedPriceCents
	}

	booking, err := s.applyTransition(ctx, bookingID, actorID, model.TransitionAccept, extra)
	if err != nil {
		return res, err
	}

	if req.QuotedPriceCents != nil {
		booking.QuotedPrice = req.QuotedPriceCents
	}

	s.notify(ctx, booking.ClientID, notifModel.TypeBookingAccepted,
		"Booking accepted",
		fmt.Sprintf("Your %s booking was accepted by the vendor.", booking.EventType),
		booking.ID, nil)

	res.FromModel(booking)

	return res, nil
}

func (s *serviceImpl) Decline(ctx context.Context, bookingID, actorID string) (res dto.BookingResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".Decline")
	defer scope.End()
	defer scope.TraceIfError(err)

	booking, err := s.applyTransition(ctx, bookingID, actorID, model.TransitionDecline, nil)
	if err != nil {
		return res, err
	}

	s.notify(ctx, booking.ClientID, notifModel.TypeBookingDeclined,
		"Booking declined",
		fmt.Sprintf("Your %s booking was declined by the vendor.", booking.EventType),
		booking.ID, nil)

	res.FromModel(booking)

	return res, nil
}

func (s *serviceImpl) ProposePrice(ctx context.Context, bookingID, actorID string, amountCents int64) (res dto.BookingResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".ProposePrice")
	defer scope.End()
	defer scope.TraceIfError(err)

	if amountCents <= 0 || amountCents > s.cfg.Booking.MaxPriceCents {
		return res, ErrInvalidPrice //nolint:wrapcheck
	}

	current, err := s.getBooking(ctx, bookingID)
	if err != nil {
		return res, err
	}

	// At most one proposal may be in flight per booking.
	if current.Status == model.StatusPriceProposed {
		return res, ErrProposalInProgress //nolint:wrapcheck
	}

	booking, err := s.transition(ctx, current, actorID, model.TransitionProposePrice, map[string]any{
		model.FieldAdjustedPrice: amountCents,
	})
	if err != nil {
		return res, err
	}

	booking.AdjustedPrice = &amountCents

	s.notify(ctx, booking.ClientID, notifModel.TypePriceAdjusted,
		"Price proposal received",
		fmt.Sprintf("The vendor proposed an adjusted price for your %s booking.", booking.EventType),
		booking.ID, map[string]any{"amount_cents": amountCents})

	res.FromModel(booking)

	return res, nil
}

func (s *serviceImpl) ApprovePrice(ctx context.Context, bookingID, actorID string) (res dto.BookingResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".ApprovePrice")
	defer scope.End()
	defer scope.TraceIfError(err)

	current, err := s.getBooking(ctx, bookingID)
	if err != nil {
		return res, err
	}

	if current.Status != model.StatusPriceProposed || current.AdjustedPrice == nil {
		// Covers approving a booking that never had a proposal.
		if _, ok := current.ActorFor(actorID); !ok {
			return res, failure.ResourceRestrictedError //nolint:wrapcheck
		}

		return res, ErrInvalidTransition //nolint:wrapcheck
	}

	finalPrice := *current.AdjustedPrice

	booking, err := s.transition(ctx, current, actorID, model.TransitionApprovePrice, map[string]any{
		model.FieldFinalPrice: finalPrice,
	})
	if err != nil {
		return res, err
	}

	booking.FinalPrice = &finalPrice

	s.notify(ctx, booking.VendorID, notifModel.TypePriceApproved,
		"Price approved",
		fmt.Sprintf("The client approved your adjusted price for the %s booking.", booking.EventType),
		booking.ID, map[string]any{"amount_cents": finalPrice})

	res.FromModel(booking)

	return res, nil
}

func (s *serviceImpl) RejectPrice(ctx context.Context, bookingID, actorID string) (res dto.BookingResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".RejectPrice")
	defer scope.End()
	defer scope.TraceIfError(err)

	booking, err := s.applyTransition(ctx, bookingID, actorID, model.TransitionRejectPrice, map[string]any{
		model.FieldAdjustedPrice: nil,
	})
	if err != nil {
		return res, err
	}

	booking.AdjustedPrice = nil

	s.notify(ctx, booking.VendorID, notifModel.TypePriceRejected,
		"Price rejected",
		fmt.Sprintf("The client rejected your adjusted price for the %s booking. You may propose a new price.", booking.EventType),
		booking.ID, nil)

	res.FromModel(booking)

	return res, nil
}

func (s *serviceImpl) Cancel(ctx context.Context, bookingID, actorID string) (res dto.BookingResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".Cancel")
	defer scope.End()
	defer scope.TraceIfError(err)

	booking, err := s.applyTransition(ctx, bookingID, actorID, model.TransitionCancel, nil)
	if err != nil {
		return res, err
	}

	counterparty := booking.VendorID
	if actorID == booking.VendorID {
		counterparty = booking.ClientID
	}

	s.notify(ctx, counterparty, notifModel.TypeBookingCancelled,
		"Booking cancelled",
		fmt.Sprintf("The %s booking was cancelled by the other party.", booking.EventType),
		booking.ID, nil)

	res.FromModel(booking)

	return res, nil
}

func (s *serviceImpl) Complete(ctx context.Context, bookingID, actorID string) (res dto.BookingResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".Complete")
	defer scope.End()
	defer scope.TraceIfError(err)

	current, err := s.getBooking(ctx, bookingID)
	if err != nil {
		return res, err
	}

	// A prior completion may have advanced the booking but lost the payout
	// release to a transient error. Let the vendor drive the release again
	// instead of rejecting the retry as an invalid transition.
	if current.Status == model.StatusCompleted {
		actor, ok := current.ActorFor(actorID)
		if !ok {
			return res, failure.ResourceRestrictedError //nolint:wrapcheck
		}

		if actor != model.ActorVendor {
			return res, ErrWrongActor //nolint:wrapcheck
		}

		if err = s.releasePayout(ctx, current); err != nil {
			return res, err
		}

		res.FromModel(current)

		return res, nil
	}

	booking, err := s.transition(ctx, current, actorID, model.TransitionComplete, nil)
	if err != nil {
		return res, err
	}

	if err = s.releasePayout(ctx, booking); err != nil {
		// The booking is already COMPLETED; surface the payout problem
		// instead of pretending the release happened.
		return res, err
	}

	res.FromModel(booking)

	return res, nil
}

// releasePayout flips the held payout to released exactly once and notifies
// the vendor of the funds release.
func (s *serviceImpl) releasePayout(ctx context.Context, booking model.Booking) error {
	payout, err := s.payoutRepo.GetByBooking(ctx, booking.ID)
	if err != nil {
		log.Error().Err(err).Str("bookingID", booking.ID).Msg("failed to get payout for completed booking")

		return fmt.Errorf("failed to get payout: %w", err)
	}

	if payout.ID == constant.Empty {
		log.Error().Str("bookingID", booking.ID).Msg("completed booking has no payout record")

		return failure.InternalError(fmt.Errorf("no payout record for booking %s", booking.ID)) //nolint:wrapcheck
	}

	released, err := s.payoutRepo.Release(ctx, payout.ID, timezone.Now())
	if err != nil {
		log.Error().Err(err).Str("payoutID", payout.ID).Msg("failed to release payout")

		return fmt.Errorf("failed to release payout: %w", err)
	}

	if !released {
		// Lost the release race or already released; the money moved once.
		return ErrPayoutNotReleasable //nolint:wrapcheck
	}

	s.notify(ctx, booking.VendorID, notifModel.TypePayoutReleased,
		"Payout released",
		fmt.Sprintf("Your payout for the %s booking has been released.", booking.EventType),
		booking.ID, map[string]any{"net_amount_cents": payout.NetAmount})

	return nil
}

func (s *serviceImpl) Get(ctx context.Context, id, actorID, actorRole string) (res dto.BookingResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".Get")
	defer scope.End()
	defer scope.TraceIfError(err)

	cacheKey := shared.BuildCacheKey(cacheGetBooking, id)

	cached := dto.BookingResponse{}
	if err = s.cache.Get(ctx, cacheKey, &cached); err == nil {
		log.Info().Str("cacheKey", cacheKey).Msg("cache hit for booking")

		if actorRole != constant.RoleAdmin && cached.ClientID != actorID && cached.VendorID != actorID {
			return res, failure.ResourceRestrictedError //nolint:wrapcheck
		}

		return cached, nil
	}

	booking, err := s.getBooking(ctx, id)
	if err != nil {
		return res, err
	}

	if actorRole != constant.RoleAdmin && !booking.IsParty(actorID) {
		return res, failure.ResourceRestrictedError //nolint:wrapcheck
	}

	res.FromModel(booking)

	go func() {
		c := context.WithoutCancel(ctx)

		saved := dto.BookingResponse{}
		saved.FromModel(booking)

		if err := s.cache.Save(c, cacheKey, saved, s.cfg.Cache.TTL); err != nil {
			log.Error().Err(err).Msg("failed to save booking to cache")
		}
	}()

	return res, nil
}

func (s *serviceImpl) GetAll(ctx context.Context, params gDto.QueryParams, filter gDto.FilterGroup) (res dto.GetBookingsResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".GetAll")
	defer scope.End()
	defer scope.TraceIfError(err)

	cacheKey := shared.BuildCacheKeyWithQuery(cacheGetAllBooking, params, filter)

	err = s.cache.Get(ctx, cacheKey, &res)
	if err == nil {
		log.Info().Str("cacheKey", cacheKey).Msg("cache hit for bookings")

		return res, nil
	}

	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		log.Error().Err(err).Msg("failed to count bookings")

		return res, fmt.Errorf("failed to count bookings: %w", err)
	}

	models, err := s.repo.GetAll(ctx, params, filter)
	if err != nil {
		log.Error().Err(err).Msg("failed to get bookings")

		return res, fmt.Errorf("failed to get bookings: %w", err)
	}

	res.FromModels(models, total, params.Limit)

	go func() {
		c := context.WithoutCancel(ctx)

		if err := s.cache.Save(c, cacheKey, res, s.cfg.Cache.TTL); err != nil {
			log.Error().Err(err).Msg("failed to save bookings to cache")
		}
	}()

	return res, nil
}

func (s *serviceImpl) GetMine(ctx context.Context, userID string, params gDto.QueryParams) (dto.GetBookingsResponse, error) {
	filter := gDto.FilterGroup{
		Operator: gDto.FilterGroupOperatorOr,
		Filters: []any{
			gDto.Filter{
				Field:    model.FieldClientID,
				Operator: gDto.FilterOperatorEq,
				Value:    userID,
				Table:    model.TableName,
			},
			gDto.Filter{
				ArgName:  "vendor_party",
				Field:    model.FieldVendorID,
				Operator: gDto.FilterOperatorEq,
				Value:    userID,
				Table:    model.TableName,
			},
		},
	}

	return s.GetAll(ctx, params, filter)
}

func (s *serviceImpl) getBooking(ctx context.Context, id string) (model.Booking, error) {
	booking, err := s.repo.Get(ctx, shared.FilterByID(id, model.FieldID, model.TableName))
	if err != nil {
		log.Error().Err(err).Msg("failed to get booking")

		return booking, fmt.Errorf("failed to get booking: %w", err)
	}

	if booking.ID == constant.Empty {
		return booking, ErrBookingNotFound //nolint:wrapcheck
	}

	return booking, nil
}

func (s *serviceImpl) applyTransition(ctx context.Context, bookingID, actorID string, transition model.Transition, extra map[string]any) (model.Booking, error) {
	booking, err := s.getBooking(ctx, bookingID)
	if err != nil {
		return booking, err
	}

	return s.transition(ctx, booking, actorID, transition, extra)
}

// transition validates the edge and persists the new status plus any companion
// price fields in one conditional update keyed on the status the booking was
// read at. Losing that compare-and-swap means another transition landed first;
// the caller gets a conflict, not a silent overwrite.
func (s *serviceImpl) transition(ctx context.Context, booking model.Booking, actorID string, transition model.Transition, extra map[string]any) (model.Booking, error) {
	actor, ok := booking.ActorFor(actorID)
	if !ok {
		return booking, failure.ResourceRestrictedError //nolint:wrapcheck
	}

	edge, ok := model.GetEdge(transition)
	if !ok {
		return booking, ErrInvalidTransition //nolint:wrapcheck
	}

	if edge.Actor != model.ActorEither && actor != edge.Actor {
		return booking, ErrWrongActor //nolint:wrapcheck
	}

	if !model.CanTransition(booking.Status, transition) {
		return booking, ErrInvalidTransition //nolint:wrapcheck
	}

	updated := map[string]any{
		model.FieldStatus:        string(edge.To),
		constant.FieldModifiedAt: timezone.Now(),
		constant.FieldModifiedBy: actorID,
	}
	for field, value := range extra {
		updated[field] = value
	}

	filter := gDto.FilterGroup{
		Operator: gDto.FilterGroupOperatorAnd,
		Filters: []any{
			gDto.Filter{
				Field:    model.FieldID,
				Operator: gDto.FilterOperatorEq,
				Value:    booking.ID,
				Table:    model.TableName,
			},
			gDto.Filter{
				ArgName:  "expected_status",
				Field:    model.FieldStatus,
				Operator: gDto.FilterOperatorEq,
				Value:    string(booking.Status),
				Table:    model.TableName,
			},
		},
	}

	affected, err := s.repo.UpdateConditional(ctx, updated, filter)
	if err != nil {
		log.Error().Err(err).Str("bookingID", booking.ID).Str("transition", string(transition)).Msg("failed to apply booking transition")

		return booking, fmt.Errorf("failed to apply booking transition: %w", err)
	}

	if affected == 0 {
		return booking, ErrTransitionConflict //nolint:wrapcheck
	}

	booking.Status = edge.To
	booking.ModifiedBy = actorID

	s.publishEvent(ctx, booking, string(transition), actorID)
	s.invalidateBooking(ctx, booking.ID)

	return booking, nil
}

func (s *serviceImpl) notify(ctx context.Context, userID string, notifType notifModel.Type, title, message, bookingID string, data map[string]any) {
	actionURL := "/bookings/" + bookingID

	if data == nil {
		data = map[string]any{}
	}
	data["booking_id"] = bookingID

	s.notifier.Notify(ctx, notifDto.CreateNotificationRequest{
		UserID:    userID,
		Type:      notifType,
		Title:     title,
		Message:   message,
		ActionURL: &actionURL,
		Data:      data,
	})
}

type bookingEvent struct {
	BookingID  string    `json:"booking_id"`
	Status     string    `json:"status"`
	Transition string    `json:"transition"`
	ActorID    string    `json:"actor_id"`
	At         time.Time `json:"at"`
}

func (s *serviceImpl) publishEvent(ctx context.Context, booking model.Booking, transition, actorID string) {
	go func() {
		c := context.WithoutCancel(ctx)

		err := s.kafka.SendMessages(c, constant.KafkaTopicBookingEvents, kafka.Message{
			Key: booking.ID,
			Value: bookingEvent{
				BookingID:  booking.ID,
				Status:     string(booking.Status),
				Transition: transition,
				ActorID:    actorID,
				At:         timezone.Now(),
			},
		})
		if err != nil {
			log.Error().Err(err).Str("bookingID", booking.ID).Msg("failed to publish booking event")
		}
	}()
}

func (s *serviceImpl) invalidateBooking(ctx context.Context, bookingID string) {
	go func() {
		c := context.WithoutCancel(ctx)

		if err := s.cache.Delete(c, shared.BuildCacheKey(cacheGetBooking, bookingID)); err != nil {
			log.Error().Err(err).Msg("failed to delete booking from cache")
		}

		shared.InvalidateCaches(c, s.cache, cacheGetAllBooking)
		shared.InvalidateCaches(c, s.cache, cacheCountBooking)
	}()
}

func (s *serviceImpl) invalidateLists(ctx context.Context) {
	go func() {
		c := context.WithoutCancel(ctx)

		shared.InvalidateCaches(c, s.cache, cacheGetAllBooking)
		shared.InvalidateCaches(c, s.cache, cacheCountBooking)
	}()
}
