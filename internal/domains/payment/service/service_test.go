package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"eventasap/config"
	kafkaMocks "eventasap/infras/kafka/mocks"
	"eventasap/infras/otel/mocks"
	s3Mocks "eventasap/infras/s3/mocks"
	"eventasap/infras/stripe"
	stripeMocks "eventasap/infras/stripe/mocks"
	bookingMocks "eventasap/internal/domains/booking/mocks"
	bookingModel "eventasap/internal/domains/booking/model"
	notifMocks "eventasap/internal/domains/notification/service/mocks"
	paymentMocks "eventasap/internal/domains/payment/mocks"
	"eventasap/internal/domains/payment/model"
	"eventasap/internal/domains/payment/model/dto"
	"eventasap/internal/domains/payment/service"
	payoutMocks "eventasap/internal/domains/payout/mocks"
	payoutModel "eventasap/internal/domains/payout/model"
	cacheMocks "eventasap/shared/cache/mocks"
	"eventasap/shared/constant"
	"eventasap/shared/failure"
)

const (
	clientID  = "11111111-1111-1111-1111-111111111111"
	vendorID  = "22222222-2222-2222-2222-222222222222"
	bookingID = "44444444-4444-4444-4444-444444444444"
	paymentID = "payment-1"
)

type fixture struct {
	repo        *paymentMocks.MockPayment
	bookingRepo *bookingMocks.MockBooking
	payouts     *payoutMocks.MockPayout
	provider    *stripeMocks.MockPaymentProvider
	storage     *s3Mocks.MockS3
	svc         service.Payment
}

func newFixture(ctrl *gomock.Controller) *fixture {
	repo := paymentMocks.NewMockPayment(ctrl)
	bookingRepo := bookingMocks.NewMockBooking(ctrl)
	payouts := payoutMocks.NewMockPayout(ctrl)
	notifier := notifMocks.NewMockNotification(ctrl)
	provider := stripeMocks.NewMockPaymentProvider(ctrl)
	storage := s3Mocks.NewMockS3(ctrl)
	kafkaClient := kafkaMocks.NewMockClient(ctrl)
	cache := cacheMocks.NewMockRedisCache(ctrl)

	cfg := &config.Config{}
	cfg.Cache.TTL = 3600
	cfg.Payment.Currency = "usd"
	cfg.Payment.CommissionPercent = 30
	cfg.External.S3.BucketName = "eventasap-test"

	// Event publishing, receipt upload, and cache maintenance run off the
	// request path.
	kafkaClient.EXPECT().SendMessages(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	storage.EXPECT().UploadBytes(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return("https://example.com/receipt.json", nil).AnyTimes()
	cache.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	cache.EXPECT().Get(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("cache miss")).AnyTimes()
	cache.EXPECT().Delete(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	cache.EXPECT().Clear(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).AnyTimes()

	return &fixture{
		repo:        repo,
		bookingRepo: bookingRepo,
		payouts:     payouts,
		provider:    provider,
		storage:     storage,
		svc:         service.New(repo, bookingRepo, payouts, notifier, provider, storage, kafkaClient, cfg, cache, mocks.NewOtel()),
	}
}

func approvedBooking() bookingModel.Booking {
	final := int64(100000)

	return bookingModel.Booking{
		ID:         bookingID,
		ClientID:   clientID,
		VendorID:   vendorID,
		EventType:  "wedding",
		FinalPrice: &final,
		Status:     bookingModel.StatusPriceApproved,
	}
}

func pendingPayment() model.Payment {
	intentID := "pi_1"
	secret := "pi_1_secret"

	return model.Payment{
		ID:               paymentID,
		BookingID:        bookingID,
		PayerID:          clientID,
		Amount:           100000,
		Currency:         "usd",
		Status:           model.StatusPending,
		ProviderIntentID: &intentID,
		ClientSecret:     &secret,
	}
}

func settledPayment(status model.Status) model.Payment {
	payment := pendingPayment()
	payment.Status = status

	return payment
}

func TestPaymentService_CreateIntent(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newFixture(ctrl)

	req := dto.CreateIntentRequest{BookingID: bookingID}

	tests := []struct {
		name       string
		actorID    string
		setupMock  func()
		wantSecret string
		wantErr    error
	}{
		{
			name:    "opens intent for the approved price",
			actorID: clientID,
			setupMock: func() {
				f.bookingRepo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(approvedBooking(), nil)

				f.repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(model.Payment{}, nil)

				f.repo.EXPECT().
					Insert(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, payment model.Payment) error {
						assert.Equal(t, int64(100000), payment.Amount)
						assert.Equal(t, model.StatusPending, payment.Status)

						return nil
					})

				f.provider.EXPECT().
					CreateIntent(gomock.Any(), int64(100000), "usd", gomock.Any()).
					Return(stripe.Intent{ID: "pi_1", ClientSecret: "pi_1_secret"}, nil)

				f.repo.EXPECT().
					Update(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(nil)
			},
		},
		{
			name:    "reuses the open intent on retry",
			actorID: clientID,
			setupMock: func() {
				f.bookingRepo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(approvedBooking(), nil)

				f.repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(pendingPayment(), nil)
			},
		},
		{
			name:    "supersedes a pending intent with a stale amount",
			actorID: clientID,
			setupMock: func() {
				f.bookingRepo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(approvedBooking(), nil)

				stale := pendingPayment()
				stale.Amount = 80000

				f.repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(stale, nil)

				f.provider.EXPECT().
					CancelIntent(gomock.Any(), "pi_1").
					Return(nil).
					AnyTimes()

				f.repo.EXPECT().
					Delete(gomock.Any(), gomock.Any()).
					Return(nil)

				f.repo.EXPECT().
					Insert(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, payment model.Payment) error {
						assert.Equal(t, int64(100000), payment.Amount)
						assert.Equal(t, model.StatusPending, payment.Status)

						return nil
					})

				f.provider.EXPECT().
					CreateIntent(gomock.Any(), int64(100000), "usd", gomock.Any()).
					Return(stripe.Intent{ID: "pi_2", ClientSecret: "pi_2_secret"}, nil)

				f.repo.EXPECT().
					Update(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(nil)
			},
			wantSecret: "pi_2_secret",
		},
		{
			name:    "only the booking client can pay",
			actorID: vendorID,
			setupMock: func() {
				f.bookingRepo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(approvedBooking(), nil)
			},
			wantErr: service.ErrNotPayer,
		},
		{
			name:    "pending booking is not payable",
			actorID: clientID,
			setupMock: func() {
				booking := approvedBooking()
				booking.Status = bookingModel.StatusPending

				f.bookingRepo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(booking, nil)
			},
			wantErr: service.ErrBookingNotPayable,
		},
		{
			name:    "no resolvable price",
			actorID: clientID,
			setupMock: func() {
				booking := approvedBooking()
				booking.FinalPrice = nil

				f.bookingRepo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(booking, nil)
			},
			wantErr: service.ErrNoResolvedPrice,
		},
		{
			name:    "provider outage removes the orphaned row",
			actorID: clientID,
			setupMock: func() {
				f.bookingRepo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(approvedBooking(), nil)

				f.repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(model.Payment{}, nil)

				f.repo.EXPECT().
					Insert(gomock.Any(), gomock.Any()).
					Return(nil)

				f.provider.EXPECT().
					CreateIntent(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
					Return(stripe.Intent{}, errors.New("stripe is down"))

				f.repo.EXPECT().
					Delete(gomock.Any(), gomock.Any()).
					Return(nil)
			},
			wantErr: service.ErrProviderUnavailable,
		},
		{
			name:    "booking does not exist",
			actorID: clientID,
			setupMock: func() {
				f.bookingRepo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(bookingModel.Booking{}, nil)
			},
			wantErr: failure.NotFound("booking"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupMock()

			res, err := f.svc.CreateIntent(context.Background(), tt.actorID, req)

			if tt.wantErr != nil {
				assert.EqualError(t, err, tt.wantErr.Error())
			} else {
				secret := "pi_1_secret"
				if tt.wantSecret != "" {
					secret = tt.wantSecret
				}

				assert.NoError(t, err)
				assert.Equal(t, string(model.StatusPending), res.Status)
				assert.Equal(t, int64(100000), res.AmountCents)
				assert.Equal(t, secret, *res.ClientSecret)
			}
		})
	}
}

func TestPaymentService_Confirm(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newFixture(ctrl)

	reason := "card declined"

	tests := []struct {
		name       string
		actorID    string
		actorRole  string
		req        dto.ConfirmPaymentRequest
		setupMock  func()
		wantStatus model.Status
		wantErr    error
	}{
		{
			name: "successful settlement holds the vendor payout",
			req:  dto.ConfirmPaymentRequest{Outcome: "succeeded"},
			setupMock: func() {
				f.repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(pendingPayment(), nil)

				f.repo.EXPECT().
					UpdateConditional(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(int64(1), nil)

				// The receipt attaches to the payment row off the request path.
				f.repo.EXPECT().
					Update(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(nil).
					AnyTimes()

				f.bookingRepo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(approvedBooking(), nil)

				f.bookingRepo.EXPECT().
					UpdateConditional(gomock.Any(), gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, updated map[string]any, _ any) (int64, error) {
						assert.Equal(t, string(bookingModel.StatusPaid), updated[bookingModel.FieldStatus])
						assert.Equal(t, int64(100000), updated[bookingModel.FieldFinalPrice])

						return 1, nil
					})

				f.payouts.EXPECT().
					Insert(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, payout payoutModel.Payout) error {
						assert.Equal(t, int64(100000), payout.GrossAmount)
						assert.Equal(t, int64(30000), payout.Commission)
						assert.Equal(t, int64(70000), payout.NetAmount)
						assert.Equal(t, vendorID, payout.VendorID)
						assert.Equal(t, payoutModel.StatusHeld, payout.Status)

						return nil
					})
			},
			wantStatus: model.StatusSucceeded,
		},
		{
			name: "replaying the same outcome is a no-op",
			req:  dto.ConfirmPaymentRequest{Outcome: "succeeded"},
			setupMock: func() {
				f.repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(settledPayment(model.StatusSucceeded), nil)
			},
			wantStatus: model.StatusSucceeded,
		},
		{
			name:    "only the payer may settle the payment",
			actorID: vendorID,
			req:     dto.ConfirmPaymentRequest{Outcome: "succeeded"},
			setupMock: func() {
				f.repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(pendingPayment(), nil)
			},
			wantErr: failure.ResourceRestrictedError,
		},
		{
			name:      "admin settles on behalf of the provider callback",
			actorID:   "admin-1",
			actorRole: constant.RoleAdmin,
			req:       dto.ConfirmPaymentRequest{Outcome: "succeeded"},
			setupMock: func() {
				f.repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(settledPayment(model.StatusSucceeded), nil)
			},
			wantStatus: model.StatusSucceeded,
		},
		{
			name: "flipping a settled payment is a conflict",
			req:  dto.ConfirmPaymentRequest{Outcome: "failed", FailureReason: &reason},
			setupMock: func() {
				f.repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(settledPayment(model.StatusSucceeded), nil)
			},
			wantErr: service.ErrPaymentConflict,
		},
		{
			name: "failed outcome records the reason",
			req:  dto.ConfirmPaymentRequest{Outcome: "failed", FailureReason: &reason},
			setupMock: func() {
				f.repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(pendingPayment(), nil)

				f.repo.EXPECT().
					UpdateConditional(gomock.Any(), gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, updated map[string]any, _ any) (int64, error) {
						assert.Equal(t, string(model.StatusFailed), updated[model.FieldStatus])
						assert.Equal(t, &reason, updated[model.FieldFailureReason])

						return 1, nil
					})

				f.provider.EXPECT().
					CancelIntent(gomock.Any(), "pi_1").
					Return(nil).
					AnyTimes()
			},
			wantStatus: model.StatusFailed,
		},
		{
			name: "losing the settle race to the same outcome is a replay",
			req:  dto.ConfirmPaymentRequest{Outcome: "succeeded"},
			setupMock: func() {
				f.repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(pendingPayment(), nil)

				f.repo.EXPECT().
					UpdateConditional(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(int64(0), nil)

				f.repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(settledPayment(model.StatusSucceeded), nil)
			},
			wantStatus: model.StatusSucceeded,
		},
		{
			name: "losing the settle race to the other outcome is a conflict",
			req:  dto.ConfirmPaymentRequest{Outcome: "succeeded"},
			setupMock: func() {
				f.repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(pendingPayment(), nil)

				f.repo.EXPECT().
					UpdateConditional(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(int64(0), nil)

				f.repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(settledPayment(model.StatusFailed), nil)
			},
			wantErr: service.ErrPaymentConflict,
		},
		{
			name: "booking left the payable set before settlement",
			req:  dto.ConfirmPaymentRequest{Outcome: "succeeded"},
			setupMock: func() {
				f.repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(pendingPayment(), nil)

				f.repo.EXPECT().
					UpdateConditional(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(int64(1), nil)

				cancelled := approvedBooking()
				cancelled.Status = bookingModel.StatusCancelled

				f.bookingRepo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(cancelled, nil)

				// The money is captured; the booking row no longer matches the
				// payable guard and no payout may be invented.
				f.bookingRepo.EXPECT().
					UpdateConditional(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(int64(0), nil)
			},
			wantStatus: model.StatusSucceeded,
		},
		{
			name: "payment not found",
			req:  dto.ConfirmPaymentRequest{Outcome: "succeeded"},
			setupMock: func() {
				f.repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(model.Payment{}, nil)
			},
			wantErr: service.ErrPaymentNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupMock()

			actorID := tt.actorID
			if actorID == "" {
				actorID = clientID
			}

			actorRole := tt.actorRole
			if actorRole == "" {
				actorRole = constant.RoleClient
			}

			res, err := f.svc.Confirm(context.Background(), paymentID, actorID, actorRole, tt.req)

			if tt.wantErr != nil {
				assert.EqualError(t, err, tt.wantErr.Error())
			} else {
				assert.NoError(t, err)
				assert.Equal(t, string(tt.wantStatus), res.Status)

				if tt.wantStatus == model.StatusFailed {
					assert.Equal(t, reason, *res.FailureReason)
				}
			}
		})
	}
}

func TestPaymentService_Get(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newFixture(ctrl)

	receiptURL := "https://cdn.example.com/receipts/payment-1.json"

	tests := []struct {
		name           string
		actorID        string
		actorRole      string
		setupMock      func()
		wantReceiptURL *string
		wantErr        error
	}{
		{
			name:      "payer can read the payment",
			actorID:   clientID,
			actorRole: constant.RoleClient,
			setupMock: func() {
				f.repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(pendingPayment(), nil)
			},
		},
		{
			name:      "admin can read any payment",
			actorID:   "admin-1",
			actorRole: constant.RoleAdmin,
			setupMock: func() {
				f.repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(pendingPayment(), nil)
			},
		},
		{
			name:      "settled payment exposes the stored receipt url",
			actorID:   clientID,
			actorRole: constant.RoleClient,
			setupMock: func() {
				paid := settledPayment(model.StatusSucceeded)
				paid.ReceiptURL = &receiptURL

				f.repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(paid, nil)
			},
			wantReceiptURL: &receiptURL,
		},
		{
			name:      "other users are restricted",
			actorID:   vendorID,
			actorRole: constant.RoleVendor,
			setupMock: func() {
				f.repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(pendingPayment(), nil)
			},
			wantErr: failure.ResourceRestrictedError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupMock()

			res, err := f.svc.Get(context.Background(), paymentID, tt.actorID, tt.actorRole)

			if tt.wantErr != nil {
				assert.EqualError(t, err, tt.wantErr.Error())
			} else {
				assert.NoError(t, err)
				assert.Equal(t, paymentID, res.ID)
			}

			if tt.wantReceiptURL != nil {
				assert.Equal(t, *tt.wantReceiptURL, *res.ReceiptURL)
			}
		})
	}
}
