package service

//go:generate go run go.uber.org/mock/mockgen -source=./service.go -destination=./mocks/service_mock.go -package=mocks

import (
	"context"
	"encoding/json"
	"eventasap/config"
	"eventasap/infras/kafka"
	"eventasap/infras/otel"
	"eventasap/infras/s3"
	"eventasap/infras/stripe"
	bookingModel "eventasap/internal/domains/booking/model"
	bookingRepo "eventasap/internal/domains/booking/repository"
	notifModel "eventasap/internal/domains/notification/model"
	notifDto "eventasap/internal/domains/notification/model/dto"
	notifService "eventasap/internal/domains/notification/service"
	"eventasap/internal/domains/payment/model"
	"eventasap/internal/domains/payment/model/dto"
	"eventasap/internal/domains/payment/repository"
	payoutModel "eventasap/internal/domains/payout/model"
	payoutRepo "eventasap/internal/domains/payout/repository"
	"eventasap/shared"
	"eventasap/shared/cache"
	"eventasap/shared/constant"
	gDto "eventasap/shared/dto"
	"eventasap/shared/failure"
	gModel "eventasap/shared/model"
	"eventasap/shared/timezone"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	cacheGetPayment    = "payment:get"
	cacheGetAllPayment = "payment:gets"

	bookingCachePrefix = "booking"

	receiptDirectory   = "receipts"
	receiptContentType = "application/json"

	outcomeSucceeded = "succeeded"
)

var (
	ErrPaymentNotFound     = &failure.Failure{Code: http.StatusNotFound, Message: "payment not found"}
	ErrNotPayer            = &failure.Failure{Code: http.StatusForbidden, Message: "only the client on the booking can pay for it"}
	ErrBookingNotPayable   = &failure.Failure{Code: http.StatusUnprocessableEntity, Message: "booking is not in a payable status"}
	ErrNoResolvedPrice     = &failure.Failure{Code: http.StatusUnprocessableEntity, Message: "booking has no resolvable price"}
	ErrProviderUnavailable = &failure.Failure{Code: http.StatusBadGateway, Message: "payment provider is unavailable, please retry"}
	ErrPaymentConflict     = &failure.Failure{Code: http.StatusConflict, Message: "payment is already settled with a different outcome"}
)

type Payment interface {
	CreateIntent(ctx context.Context, actorID string, req dto.CreateIntentRequest) (dto.PaymentResponse, error)
	Confirm(ctx context.Context, paymentID, actorID, actorRole string, req dto.ConfirmPaymentRequest) (dto.PaymentResponse, error)
	Get(ctx context.Context, id, actorID, actorRole string) (dto.PaymentResponse, error)
	GetAll(ctx context.Context, params gDto.QueryParams, filter gDto.FilterGroup) (dto.GetPaymentsResponse, error)
}

type serviceImpl struct {
	repo        repository.Payment
	bookingRepo bookingRepo.Booking
	payoutRepo  payoutRepo.Payout
	notifier    notifService.Notification
	provider    stripe.PaymentProvider
	storage     s3.S3
	kafka       kafka.Client
	cfg         *config.Config
	cache       cache.RedisCache
	otel        otel.Otel
}

func New(
	repo repository.Payment,
	bookingRepo bookingRepo.Booking,
	payoutRepo payoutRepo.Payout,
	notifier notifService.Notification,
	provider stripe.PaymentProvider,
	storage s3.S3,
	kafkaClient kafka.Client,
	cfg *config.Config,
	cache cache.RedisCache,
	otel otel.Otel,
) Payment {
	return &serviceImpl{
		repo:        repo,
		bookingRepo: bookingRepo,
		payoutRepo:  payoutRepo,
		notifier:    notifier,
		provider:    provider,
		storage:     storage,
		kafka:       kafkaClient,
		cfg:         cfg,
		cache:       cache,
		otel:        otel,
	}
}

// CreateIntent resolves the amount due on the booking and opens a provider
// intent for it. The payment row is persisted before the provider call so a
// crash between the two leaves an auditable pending row rather than an
// untracked charge.
func (s *serviceImpl) CreateIntent(ctx context.Context, actorID string, req dto.CreateIntentRequest) (res dto.PaymentResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".CreateIntent")
	defer scope.End()
	defer scope.TraceIfError(err)

	booking, err := s.getBooking(ctx, req.BookingID)
	if err != nil {
		return res, err
	}

	if booking.ClientID != actorID {
		return res, ErrNotPayer //nolint:wrapcheck
	}

	payable := false

	for _, status := range bookingModel.PayableStatuses() {
		if booking.Status == status {
			payable = true

			break
		}
	}

	if !payable {
		return res, ErrBookingNotPayable //nolint:wrapcheck
	}

	amount, ok := booking.ResolveAmount()
	if !ok {
		return res, ErrNoResolvedPrice //nolint:wrapcheck
	}

	// A retried checkout reuses the open intent instead of opening a second
	// charge against the same booking.
	existing, err := s.repo.Get(ctx, pendingByBookingFilter(req.BookingID))
	if err != nil {
		log.Error().Err(err).Msg("failed to look up pending payment")

		return res, fmt.Errorf("failed to look up pending payment: %w", err)
	}

	if existing.ID != constant.Empty {
		if existing.Amount == amount {
			res.FromModel(existing)

			return res, nil
		}

		// The resolved price moved since the intent was opened, e.g. a
		// negotiation settled on a different final price. The payment amount
		// must equal the current resolved price, so the stale intent is
		// superseded instead of reused.
		log.Info().
			Str("paymentID", existing.ID).
			Int64("staleAmount", existing.Amount).
			Int64("resolvedAmount", amount).
			Msg("superseding pending payment with a stale amount")

		s.cancelProviderIntent(ctx, existing)

		if err = s.repo.Delete(ctx, shared.FilterByID(existing.ID, model.FieldID, model.TableName)); err != nil {
			log.Error().Err(err).Str("paymentID", existing.ID).Msg("failed to supersede stale pending payment")

			return res, fmt.Errorf("failed to supersede stale pending payment: %w", err)
		}
	}

	payment := model.Payment{
		ID:        uuid.NewString(),
		BookingID: booking.ID,
		PayerID:   actorID,
		Amount:    amount,
		Currency:  s.cfg.Payment.Currency,
		Status:    model.StatusPending,
		Metadata: gModel.Metadata{
			CreatedAt:  timezone.Now(),
			ModifiedAt: timezone.Now(),
			CreatedBy:  actorID,
			ModifiedBy: actorID,
		},
	}

	if err = s.repo.Insert(ctx, payment); err != nil {
		log.Error().Err(err).Msg("failed to create payment")

		return res, fmt.Errorf("failed to create payment: %w", err)
	}

	intent, err := s.provider.CreateIntent(ctx, amount, payment.Currency, map[string]string{
		"booking_id": booking.ID,
		"payment_id": payment.ID,
	})
	if err != nil {
		log.Error().Err(err).Str("paymentID", payment.ID).Msg("payment provider rejected intent creation")

		if delErr := s.repo.Delete(ctx, shared.FilterByID(payment.ID, model.FieldID, model.TableName)); delErr != nil {
			log.Error().Err(delErr).Str("paymentID", payment.ID).Msg("failed to remove orphaned payment row")
		}

		return res, ErrProviderUnavailable //nolint:wrapcheck
	}

	err = s.repo.Update(ctx, map[string]any{
		model.FieldProviderIntentID: intent.ID,
		model.FieldClientSecret:     intent.ClientSecret,
		constant.FieldModifiedAt:    timezone.Now(),
		constant.FieldModifiedBy:    actorID,
	}, shared.FilterByID(payment.ID, model.FieldID, model.TableName))
	if err != nil {
		log.Error().Err(err).Str("paymentID", payment.ID).Msg("failed to attach provider intent to payment")

		return res, fmt.Errorf("failed to attach provider intent to payment: %w", err)
	}

	payment.ProviderIntentID = &intent.ID
	payment.ClientSecret = &intent.ClientSecret

	s.publishEvent(ctx, payment, "intent_created")
	s.invalidate(ctx, payment.ID)

	res.FromModel(payment)

	return res, nil
}

// Confirm settles a pending payment with the given outcome. Replaying the
// same outcome is a no-op; flipping a settled payment to the other outcome is
// a conflict.
func (s *serviceImpl) Confirm(ctx context.Context, paymentID, actorID, actorRole string, req dto.ConfirmPaymentRequest) (res dto.PaymentResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".Confirm")
	defer scope.End()
	defer scope.TraceIfError(err)

	payment, err := s.getPayment(ctx, paymentID)
	if err != nil {
		return res, err
	}

	// Only the payer (or an admin acting for the provider callback) may
	// settle a payment; anyone else could mint a payout with no money moved.
	if actorRole != constant.RoleAdmin && payment.PayerID != actorID {
		return res, failure.ResourceRestrictedError //nolint:wrapcheck
	}

	target := model.StatusFailed
	if req.Outcome == outcomeSucceeded {
		target = model.StatusSucceeded
	}

	if payment.Status == target {
		res.FromModel(payment)

		return res, nil
	}

	if payment.Status.Terminal() {
		return res, ErrPaymentConflict //nolint:wrapcheck
	}

	updated := map[string]any{
		model.FieldStatus:        string(target),
		constant.FieldModifiedAt: timezone.Now(),
		constant.FieldModifiedBy: actorID,
	}
	if target == model.StatusFailed {
		updated[model.FieldFailureReason] = req.FailureReason
	}

	affected, err := s.repo.UpdateConditional(ctx, updated, statusGuardFilter(paymentID, model.StatusPending))
	if err != nil {
		log.Error().Err(err).Str("paymentID", paymentID).Msg("failed to settle payment")

		return res, fmt.Errorf("failed to settle payment: %w", err)
	}

	if affected == 0 {
		// Lost the settle race. If the winner landed the same outcome this
		// confirmation is a replay, not a conflict.
		settled, getErr := s.getPayment(ctx, paymentID)
		if getErr != nil {
			return res, getErr
		}

		if settled.Status == target {
			res.FromModel(settled)

			return res, nil
		}

		return res, ErrPaymentConflict //nolint:wrapcheck
	}

	payment.Status = target
	payment.ModifiedBy = actorID

	if target == model.StatusFailed {
		payment.FailureReason = req.FailureReason
		s.cancelProviderIntent(ctx, payment)
	} else {
		if err = s.settleSucceeded(ctx, payment); err != nil {
			return res, err
		}
	}

	s.publishEvent(ctx, payment, string(target))
	s.invalidate(ctx, payment.ID)

	res.FromModel(payment)

	return res, nil
}

// settleSucceeded runs the side effects of a successful settlement: the
// booking moves to paid, the vendor's share goes on hold, the vendor is
// notified, and a receipt lands in object storage.
func (s *serviceImpl) settleSucceeded(ctx context.Context, payment model.Payment) error {
	booking, err := s.getBooking(ctx, payment.BookingID)
	if err != nil {
		return err
	}

	affected, err := s.bookingRepo.UpdateConditional(ctx, map[string]any{
		bookingModel.FieldStatus:     string(bookingModel.StatusPaid),
		bookingModel.FieldFinalPrice: payment.Amount,
		constant.FieldModifiedAt:     timezone.Now(),
		constant.FieldModifiedBy:     payment.PayerID,
	}, bookingPayableFilter(payment.BookingID))
	if err != nil {
		log.Error().Err(err).Str("bookingID", payment.BookingID).Msg("failed to mark booking as paid")

		return fmt.Errorf("failed to mark booking as paid: %w", err)
	}

	if affected == 0 {
		// The booking left the payable set between intent creation and
		// settlement. The charge is captured; flag it for reconciliation
		// instead of double-settling or inventing a payout.
		log.Error().
			Str("paymentID", payment.ID).
			Str("bookingID", payment.BookingID).
			Msg("settled payment for a booking that is no longer payable, needs reconciliation")

		return nil
	}

	commission, net := payoutModel.Split(payment.Amount, s.cfg.Payment.CommissionPercent)

	payout := payoutModel.Payout{
		ID:          uuid.NewString(),
		BookingID:   booking.ID,
		PaymentID:   payment.ID,
		VendorID:    booking.VendorID,
		GrossAmount: payment.Amount,
		Commission:  commission,
		NetAmount:   net,
		Status:      payoutModel.StatusHeld,
		Metadata: gModel.Metadata{
			CreatedAt:  timezone.Now(),
			ModifiedAt: timezone.Now(),
			CreatedBy:  payment.PayerID,
			ModifiedBy: payment.PayerID,
		},
	}

	if err = s.payoutRepo.Insert(ctx, payout); err != nil {
		log.Error().Err(err).Str("paymentID", payment.ID).Msg("failed to create held payout")

		return fmt.Errorf("failed to create held payout: %w", err)
	}

	actionURL := "/bookings/" + booking.ID

	s.notifier.Notify(ctx, notifDto.CreateNotificationRequest{
		UserID:    booking.VendorID,
		Type:      notifModel.TypePaymentReceived,
		Title:     "Payment received",
		Message:   fmt.Sprintf("The client paid for the %s booking. Funds are held until completion.", booking.EventType),
		ActionURL: &actionURL,
		Data: map[string]any{
			"booking_id":   booking.ID,
			"payment_id":   payment.ID,
			"amount_cents": payment.Amount,
		},
	})

	s.uploadReceipt(ctx, payment, booking, payout)
	s.invalidateBookingCaches(ctx)

	return nil
}

func (s *serviceImpl) Get(ctx context.Context, id, actorID, actorRole string) (res dto.PaymentResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".Get")
	defer scope.End()
	defer scope.TraceIfError(err)

	cacheKey := shared.BuildCacheKey(cacheGetPayment, id)

	cached := dto.PaymentResponse{}
	if err = s.cache.Get(ctx, cacheKey, &cached); err == nil {
		log.Info().Str("cacheKey", cacheKey).Msg("cache hit for payment")

		if actorRole != constant.RoleAdmin && cached.PayerID != actorID {
			return res, failure.ResourceRestrictedError //nolint:wrapcheck
		}

		return cached, nil
	}

	payment, err := s.getPayment(ctx, id)
	if err != nil {
		return res, err
	}

	if actorRole != constant.RoleAdmin && payment.PayerID != actorID {
		return res, failure.ResourceRestrictedError //nolint:wrapcheck
	}

	res.FromModel(payment)

	go func() {
		c := context.WithoutCancel(ctx)

		saved := dto.PaymentResponse{}
		saved.FromModel(payment)

		if err := s.cache.Save(c, cacheKey, saved, s.cfg.Cache.TTL); err != nil {
			log.Error().Err(err).Msg("failed to save payment to cache")
		}
	}()

	return res, nil
}

func (s *serviceImpl) GetAll(ctx context.Context, params gDto.QueryParams, filter gDto.FilterGroup) (res dto.GetPaymentsResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".GetAll")
	defer scope.End()
	defer scope.TraceIfError(err)

	cacheKey := shared.BuildCacheKeyWithQuery(cacheGetAllPayment, params, filter)

	err = s.cache.Get(ctx, cacheKey, &res)
	if err == nil {
		log.Info().Str("cacheKey", cacheKey).Msg("cache hit for payments")

		return res, nil
	}

	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		log.Error().Err(err).Msg("failed to count payments")

		return res, fmt.Errorf("failed to count payments: %w", err)
	}

	models, err := s.repo.GetAll(ctx, params, filter)
	if err != nil {
		log.Error().Err(err).Msg("failed to get payments")

		return res, fmt.Errorf("failed to get payments: %w", err)
	}

	res.FromModels(models, total, params.Limit)

	go func() {
		c := context.WithoutCancel(ctx)

		if err := s.cache.Save(c, cacheKey, res, s.cfg.Cache.TTL); err != nil {
			log.Error().Err(err).Msg("failed to save payments to cache")
		}
	}()

	return res, nil
}

func (s *serviceImpl) getPayment(ctx context.Context, id string) (model.Payment, error) {
	payment, err := s.repo.Get(ctx, shared.FilterByID(id, model.FieldID, model.TableName))
	if err != nil {
		log.Error().Err(err).Msg("failed to get payment")

		return payment, fmt.Errorf("failed to get payment: %w", err)
	}

	if payment.ID == constant.Empty {
		return payment, ErrPaymentNotFound //nolint:wrapcheck
	}

	return payment, nil
}

func (s *serviceImpl) getBooking(ctx context.Context, id string) (bookingModel.Booking, error) {
	booking, err := s.bookingRepo.Get(ctx, shared.FilterByID(id, bookingModel.FieldID, bookingModel.TableName))
	if err != nil {
		log.Error().Err(err).Msg("failed to get booking for payment")

		return booking, fmt.Errorf("failed to get booking for payment: %w", err)
	}

	if booking.ID == constant.Empty {
		return booking, failure.NotFound("booking") //nolint:wrapcheck
	}

	return booking, nil
}

func (s *serviceImpl) cancelProviderIntent(ctx context.Context, payment model.Payment) {
	if payment.ProviderIntentID == nil {
		return
	}

	intentID := *payment.ProviderIntentID

	go func() {
		c := context.WithoutCancel(ctx)

		if err := s.provider.CancelIntent(c, intentID); err != nil {
			log.Error().Err(err).Str("intentID", intentID).Msg("failed to cancel provider intent for failed payment")
		}
	}()
}

type receipt struct {
	PaymentID       string    `json:"payment_id"`
	BookingID       string    `json:"booking_id"`
	PayerID         string    `json:"payer_id"`
	VendorID        string    `json:"vendor_id"`
	EventType       string    `json:"event_type"`
	AmountCents     int64     `json:"amount_cents"`
	CommissionCents int64     `json:"commission_cents"`
	NetCents        int64     `json:"net_cents"`
	Currency        string    `json:"currency"`
	PaidAt          time.Time `json:"paid_at"`
}

func (s *serviceImpl) uploadReceipt(ctx context.Context, payment model.Payment, booking bookingModel.Booking, payout payoutModel.Payout) {
	go func() {
		c := context.WithoutCancel(ctx)

		data, err := json.Marshal(receipt{
			PaymentID:       payment.ID,
			BookingID:       booking.ID,
			PayerID:         payment.PayerID,
			VendorID:        booking.VendorID,
			EventType:       booking.EventType,
			AmountCents:     payment.Amount,
			CommissionCents: payout.Commission,
			NetCents:        payout.NetAmount,
			Currency:        payment.Currency,
			PaidAt:          timezone.Now(),
		})
		if err != nil {
			log.Error().Err(err).Str("paymentID", payment.ID).Msg("failed to marshal payment receipt")

			return
		}

		fileName := payment.ID + ".json"

		url, err := s.storage.UploadBytes(c, s.cfg.External.S3.BucketName, receiptDirectory, fileName, receiptContentType, data)
		if err != nil {
			log.Error().Err(err).Str("paymentID", payment.ID).Msg("failed to upload payment receipt")

			return
		}

		err = s.repo.Update(c, map[string]any{
			model.FieldReceiptURL:    url,
			constant.FieldModifiedAt: timezone.Now(),
		}, shared.FilterByID(payment.ID, model.FieldID, model.TableName))
		if err != nil {
			log.Error().Err(err).Str("paymentID", payment.ID).Msg("failed to attach receipt url to payment")

			return
		}

		log.Info().Str("paymentID", payment.ID).Str("url", url).Msg("payment receipt uploaded")
	}()
}

type paymentEvent struct {
	PaymentID string    `json:"payment_id"`
	BookingID string    `json:"booking_id"`
	Status    string    `json:"status"`
	Event     string    `json:"event"`
	Amount    int64     `json:"amount_cents"`
	At        time.Time `json:"at"`
}

func (s *serviceImpl) publishEvent(ctx context.Context, payment model.Payment, event string) {
	go func() {
		c := context.WithoutCancel(ctx)

		err := s.kafka.SendMessages(c, constant.KafkaTopicPaymentEvents, kafka.Message{
			Key: payment.BookingID,
			Value: paymentEvent{
				PaymentID: payment.ID,
				BookingID: payment.BookingID,
				Status:    string(payment.Status),
				Event:     event,
				Amount:    payment.Amount,
				At:        timezone.Now(),
			},
		})
		if err != nil {
			log.Error().Err(err).Str("paymentID", payment.ID).Msg("failed to publish payment event")
		}
	}()
}

func (s *serviceImpl) invalidate(ctx context.Context, paymentID string) {
	go func() {
		c := context.WithoutCancel(ctx)

		if err := s.cache.Delete(c, shared.BuildCacheKey(cacheGetPayment, paymentID)); err != nil {
			log.Error().Err(err).Msg("failed to delete payment from cache")
		}

		shared.InvalidateCaches(c, s.cache, cacheGetAllPayment)
	}()
}

func (s *serviceImpl) invalidateBookingCaches(ctx context.Context) {
	go func() {
		c := context.WithoutCancel(ctx)

		shared.InvalidateCaches(c, s.cache, bookingCachePrefix)
	}()
}

func pendingByBookingFilter(bookingID string) gDto.FilterGroup {
	return gDto.FilterGroup{
		Operator: gDto.FilterGroupOperatorAnd,
		Filters: []any{
			gDto.Filter{
				Field:    model.FieldBookingID,
				Operator: gDto.FilterOperatorEq,
				Value:    bookingID,
				Table:    model.TableName,
			},
			gDto.Filter{
				ArgName:  "pending_status",
				Field:    model.FieldStatus,
				Operator: gDto.FilterOperatorEq,
				Value:    string(model.StatusPending),
				Table:    model.TableName,
			},
		},
	}
}

func statusGuardFilter(paymentID string, expected model.Status) gDto.FilterGroup {
	return gDto.FilterGroup{
		Operator: gDto.FilterGroupOperatorAnd,
		Filters: []any{
			gDto.Filter{
				Field:    model.FieldID,
				Operator: gDto.FilterOperatorEq,
				Value:    paymentID,
				Table:    model.TableName,
			},
			gDto.Filter{
				ArgName:  "expected_status",
				Field:    model.FieldStatus,
				Operator: gDto.FilterOperatorEq,
				Value:    string(expected),
				Table:    model.TableName,
			},
		},
	}
}

func bookingPayableFilter(bookingID string) gDto.FilterGroup {
	payable := bookingModel.PayableStatuses()

	statuses := make([]string, len(payable))
	for i, status := range payable {
		statuses[i] = string(status)
	}

	return gDto.FilterGroup{
		Operator: gDto.FilterGroupOperatorAnd,
		Filters: []any{
			gDto.Filter{
				Field:    bookingModel.FieldID,
				Operator: gDto.FilterOperatorEq,
				Value:    bookingID,
				Table:    bookingModel.TableName,
			},
			gDto.Filter{
				ArgName:  "payable_status",
				Field:    bookingModel.FieldStatus,
				Operator: gDto.FilterOperatorIn,
				Value:    statuses,
				Table:    bookingModel.TableName,
			},
		},
	}
}
