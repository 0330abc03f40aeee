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
	bookingMocks "eventasap/internal/domains/booking/mocks"
	"eventasap/internal/domains/booking/model"
	"eventasap/internal/domains/booking/model/dto"
	"eventasap/internal/domains/booking/service"
	notifMocks "eventasap/internal/domains/notification/service/mocks"
	payoutMocks "eventasap/internal/domains/payout/mocks"
	payoutModel "eventasap/internal/domains/payout/model"
	userMocks "eventasap/internal/domains/user/mocks"
	userModel "eventasap/internal/domains/user/model"
	cacheMocks "eventasap/shared/cache/mocks"
	"eventasap/shared/constant"
	"eventasap/shared/failure"
)

const (
	clientID = "11111111-1111-1111-1111-111111111111"
	vendorID = "22222222-2222-2222-2222-222222222222"
	otherID  = "33333333-3333-3333-3333-333333333333"
)

type fixture struct {
	repo     *bookingMocks.MockBooking
	userRepo *userMocks.MockUser
	payouts  *payoutMocks.MockPayout
	notifier *notifMocks.MockNotification
	svc      service.Booking
}

func newFixture(ctrl *gomock.Controller) *fixture {
	repo := bookingMocks.NewMockBooking(ctrl)
	userRepo := userMocks.NewMockUser(ctrl)
	payouts := payoutMocks.NewMockPayout(ctrl)
	notifier := notifMocks.NewMockNotification(ctrl)
	kafkaClient := kafkaMocks.NewMockClient(ctrl)
	cache := cacheMocks.NewMockRedisCache(ctrl)

	cfg := &config.Config{}
	cfg.Cache.TTL = 3600
	cfg.Booking.MaxPriceCents = 10000000
	cfg.Payment.CommissionPercent = 30

	// Event publishing and cache invalidation happen off the request path.
	kafkaClient.EXPECT().SendMessages(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	cache.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	cache.EXPECT().Get(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("cache miss")).AnyTimes()
	cache.EXPECT().Delete(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	cache.EXPECT().Clear(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).AnyTimes()

	return &fixture{
		repo:     repo,
		userRepo: userRepo,
		payouts:  payouts,
		notifier: notifier,
		svc:      service.New(repo, userRepo, payouts, notifier, kafkaClient, cfg, cache, mocks.NewOtel()),
	}
}

func pendingBooking() model.Booking {
	budget := int64(100000)

	return model.Booking{
		ID:        "booking-1",
		ClientID:  clientID,
		VendorID:  vendorID,
		EventType: "wedding",
		Budget:    &budget,
		Status:    model.StatusPending,
	}
}

func bookingWithStatus(status model.Status) model.Booking {
	booking := pendingBooking()
	booking.Status = status

	return booking
}

func TestBookingService_Create(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newFixture(ctrl)

	activeVendor := userModel.User{
		ID:     vendorID,
		Email:  "vendor@example.com",
		Role:   constant.RoleVendor,
		Active: true,
	}

	validReq := dto.CreateBookingRequest{
		VendorID:      vendorID,
		EventType:     "wedding",
		EventDate:     "2026-10-01",
		EventLocation: "Jakarta",
		BudgetCents:   100000,
	}

	tests := []struct {
		name      string
		req       dto.CreateBookingRequest
		setupMock func()
		wantErr   error
	}{
		{
			name: "successful creation",
			req:  validReq,
			setupMock: func() {
				f.userRepo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(activeVendor, nil)

				f.repo.EXPECT().
					Insert(gomock.Any(), gomock.Any()).
					Return(nil)
			},
		},
		{
			name: "vendor does not exist",
			req:  validReq,
			setupMock: func() {
				f.userRepo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(userModel.User{}, nil)
			},
			wantErr: failure.BadRequestFromString("vendor does not exist"),
		},
		{
			name: "target user is not a vendor",
			req:  validReq,
			setupMock: func() {
				client := activeVendor
				client.Role = constant.RoleClient

				f.userRepo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(client, nil)
			},
			wantErr: failure.BadRequestFromString("vendor does not exist"),
		},
		{
			name: "budget above ceiling",
			req: dto.CreateBookingRequest{
				VendorID:      vendorID,
				EventType:     "wedding",
				EventDate:     "2026-10-01",
				EventLocation: "Jakarta",
				BudgetCents:   999999999999,
			},
			setupMock: func() {},
			wantErr:   service.ErrInvalidPrice,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupMock()

			ctx := context.WithValue(context.Background(), constant.ContextKeyUserID, clientID)
			res, err := f.svc.Create(ctx, tt.req)

			if tt.wantErr != nil {
				assert.EqualError(t, err, tt.wantErr.Error())
			} else {
				assert.NoError(t, err)
				assert.Equal(t, string(model.StatusPending), res.Status)
				assert.Equal(t, clientID, res.ClientID)
				assert.Equal(t, vendorID, res.VendorID)
			}
		})
	}
}

func TestBookingService_Accept(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newFixture(ctrl)

	quote := int64(75000)

	tests := []struct {
		name      string
		actorID   string
		req       dto.AcceptBookingRequest
		setupMock func()
		wantErr   error
	}{
		{
			name:    "vendor accepts pending booking",
			actorID: vendorID,
			setupMock: func() {
				f.repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(pendingBooking(), nil)

				f.repo.EXPECT().
					UpdateConditional(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(int64(1), nil)
			},
		},
		{
			name:    "vendor accepts with a quote",
			actorID: vendorID,
			req:     dto.AcceptBookingRequest{QuotedPriceCents: &quote},
			setupMock: func() {
				f.repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(pendingBooking(), nil)

				f.repo.EXPECT().
					UpdateConditional(gomock.Any(), gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, updated map[string]any, _ any) (int64, error) {
						assert.Equal(t, quote, updated[model.FieldQuotedPrice])
						assert.Equal(t, string(model.StatusAccepted), updated[model.FieldStatus])

						return 1, nil
					})
			},
		},
		{
			name:    "client cannot accept",
			actorID: clientID,
			setupMock: func() {
				f.repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(pendingBooking(), nil)
			},
			wantErr: service.ErrWrongActor,
		},
		{
			name:    "outsider gets restricted",
			actorID: otherID,
			setupMock: func() {
				f.repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(pendingBooking(), nil)
			},
			wantErr: failure.ResourceRestrictedError,
		},
		{
			name:    "accept from declined is invalid",
			actorID: vendorID,
			setupMock: func() {
				f.repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(bookingWithStatus(model.StatusDeclined), nil)
			},
			wantErr: service.ErrInvalidTransition,
		},
		{
			name:    "lost the update race",
			actorID: vendorID,
			setupMock: func() {
				f.repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(pendingBooking(), nil)

				f.repo.EXPECT().
					UpdateConditional(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(int64(0), nil)
			},
			wantErr: service.ErrTransitionConflict,
		},
		{
			name:    "booking not found",
			actorID: vendorID,
			setupMock: func() {
				f.repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(model.Booking{}, nil)
			},
			wantErr: service.ErrBookingNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupMock()

			res, err := f.svc.Accept(context.Background(), "booking-1", tt.actorID, tt.req)

			if tt.wantErr != nil {
				assert.EqualError(t, err, tt.wantErr.Error())
			} else {
				assert.NoError(t, err)
				assert.Equal(t, string(model.StatusAccepted), res.Status)
			}
		})
	}
}

func TestBookingService_ProposePrice(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newFixture(ctrl)

	tests := []struct {
		name      string
		actorID   string
		amount    int64
		setupMock func()
		wantErr   error
	}{
		{
			name:    "propose from pending",
			actorID: vendorID,
			amount:  55000,
			setupMock: func() {
				f.repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(pendingBooking(), nil)

				f.repo.EXPECT().
					UpdateConditional(gomock.Any(), gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, updated map[string]any, _ any) (int64, error) {
						assert.Equal(t, int64(55000), updated[model.FieldAdjustedPrice])

						return 1, nil
					})
			},
		},
		{
			name:    "propose again after rejection",
			actorID: vendorID,
			amount:  60000,
			setupMock: func() {
				f.repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(bookingWithStatus(model.StatusPriceRejected), nil)

				f.repo.EXPECT().
					UpdateConditional(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(int64(1), nil)
			},
		},
		{
			name:    "proposal already pending",
			actorID: vendorID,
			amount:  55000,
			setupMock: func() {
				f.repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(bookingWithStatus(model.StatusPriceProposed), nil)
			},
			wantErr: service.ErrProposalInProgress,
		},
		{
			name:      "non-positive amount",
			actorID:   vendorID,
			amount:    0,
			setupMock: func() {},
			wantErr:   service.ErrInvalidPrice,
		},
		{
			name:      "amount above ceiling",
			actorID:   vendorID,
			amount:    999999999999,
			setupMock: func() {},
			wantErr:   service.ErrInvalidPrice,
		},
		{
			name:    "propose from paid is invalid",
			actorID: vendorID,
			amount:  55000,
			setupMock: func() {
				f.repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(bookingWithStatus(model.StatusPaid), nil)
			},
			wantErr: service.ErrInvalidTransition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupMock()

			res, err := f.svc.ProposePrice(context.Background(), "booking-1", tt.actorID, tt.amount)

			if tt.wantErr != nil {
				assert.EqualError(t, err, tt.wantErr.Error())
			} else {
				assert.NoError(t, err)
				assert.Equal(t, string(model.StatusPriceProposed), res.Status)
				assert.Equal(t, tt.amount, *res.AdjustedCents)
			}
		})
	}
}

func TestBookingService_ApprovePrice(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newFixture(ctrl)

	proposed := func() model.Booking {
		booking := bookingWithStatus(model.StatusPriceProposed)
		adjusted := int64(55000)
		booking.AdjustedPrice = &adjusted

		return booking
	}

	tests := []struct {
		name      string
		actorID   string
		setupMock func()
		wantErr   error
	}{
		{
			name:    "client approves proposal",
			actorID: clientID,
			setupMock: func() {
				f.repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(proposed(), nil)

				f.repo.EXPECT().
					UpdateConditional(gomock.Any(), gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, updated map[string]any, _ any) (int64, error) {
						assert.Equal(t, int64(55000), updated[model.FieldFinalPrice])
						assert.Equal(t, string(model.StatusPriceApproved), updated[model.FieldStatus])

						return 1, nil
					})
			},
		},
		{
			name:    "vendor cannot approve",
			actorID: vendorID,
			setupMock: func() {
				f.repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(proposed(), nil)
			},
			wantErr: service.ErrWrongActor,
		},
		{
			name:    "approve without a proposal is invalid",
			actorID: clientID,
			setupMock: func() {
				f.repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(pendingBooking(), nil)
			},
			wantErr: service.ErrInvalidTransition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupMock()

			res, err := f.svc.ApprovePrice(context.Background(), "booking-1", tt.actorID)

			if tt.wantErr != nil {
				assert.EqualError(t, err, tt.wantErr.Error())
			} else {
				assert.NoError(t, err)
				assert.Equal(t, string(model.StatusPriceApproved), res.Status)
				assert.Equal(t, int64(55000), *res.FinalCents)
			}
		})
	}
}

func TestBookingService_RejectPrice(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newFixture(ctrl)

	booking := bookingWithStatus(model.StatusPriceProposed)
	adjusted := int64(55000)
	booking.AdjustedPrice = &adjusted

	f.repo.EXPECT().
		Get(gomock.Any(), gomock.Any()).
		Return(booking, nil)

	f.repo.EXPECT().
		UpdateConditional(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, updated map[string]any, _ any) (int64, error) {
			assert.Nil(t, updated[model.FieldAdjustedPrice])
			assert.Equal(t, string(model.StatusPriceRejected), updated[model.FieldStatus])

			return 1, nil
		})

	res, err := f.svc.RejectPrice(context.Background(), "booking-1", clientID)

	assert.NoError(t, err)
	assert.Equal(t, string(model.StatusPriceRejected), res.Status)
	assert.Nil(t, res.AdjustedCents)
}

func TestBookingService_Cancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newFixture(ctrl)

	tests := []struct {
		name      string
		actorID   string
		setupMock func()
		wantErr   error
	}{
		{
			name:    "client cancels pending booking",
			actorID: clientID,
			setupMock: func() {
				f.repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(pendingBooking(), nil)

				f.repo.EXPECT().
					UpdateConditional(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(int64(1), nil)
			},
		},
		{
			name:    "vendor cancels accepted booking",
			actorID: vendorID,
			setupMock: func() {
				f.repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(bookingWithStatus(model.StatusAccepted), nil)

				f.repo.EXPECT().
					UpdateConditional(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(int64(1), nil)
			},
		},
		{
			name:    "cannot cancel after payment",
			actorID: clientID,
			setupMock: func() {
				f.repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(bookingWithStatus(model.StatusPaid), nil)
			},
			wantErr: service.ErrInvalidTransition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupMock()

			res, err := f.svc.Cancel(context.Background(), "booking-1", tt.actorID)

			if tt.wantErr != nil {
				assert.EqualError(t, err, tt.wantErr.Error())
			} else {
				assert.NoError(t, err)
				assert.Equal(t, string(model.StatusCancelled), res.Status)
			}
		})
	}
}

func TestBookingService_Complete(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newFixture(ctrl)

	heldPayout := payoutModel.Payout{
		ID:        "payout-1",
		BookingID: "booking-1",
		VendorID:  vendorID,
		NetAmount: 52500,
		Status:    payoutModel.StatusHeld,
	}

	tests := []struct {
		name      string
		actorID   string
		setupMock func()
		wantErr   error
	}{
		{
			name: "completion releases the held payout",
			setupMock: func() {
				f.repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(bookingWithStatus(model.StatusPaid), nil)

				f.repo.EXPECT().
					UpdateConditional(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(int64(1), nil)

				f.payouts.EXPECT().
					GetByBooking(gomock.Any(), "booking-1").
					Return(heldPayout, nil)

				f.payouts.EXPECT().
					Release(gomock.Any(), "payout-1", gomock.Any()).
					Return(true, nil)
			},
		},
		{
			name: "payout already released",
			setupMock: func() {
				f.repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(bookingWithStatus(model.StatusPaid), nil)

				f.repo.EXPECT().
					UpdateConditional(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(int64(1), nil)

				f.payouts.EXPECT().
					GetByBooking(gomock.Any(), "booking-1").
					Return(heldPayout, nil)

				f.payouts.EXPECT().
					Release(gomock.Any(), "payout-1", gomock.Any()).
					Return(false, nil)
			},
			wantErr: service.ErrPayoutNotReleasable,
		},
		{
			name: "retrying completion drives a stuck release",
			setupMock: func() {
				// A prior attempt marked the booking completed but lost the
				// payout release to a transient error.
				f.repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(bookingWithStatus(model.StatusCompleted), nil)

				f.payouts.EXPECT().
					GetByBooking(gomock.Any(), "booking-1").
					Return(heldPayout, nil)

				f.payouts.EXPECT().
					Release(gomock.Any(), "payout-1", gomock.Any()).
					Return(true, nil)
			},
		},
		{
			name:    "client cannot drive the release",
			actorID: clientID,
			setupMock: func() {
				f.repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(bookingWithStatus(model.StatusCompleted), nil)
			},
			wantErr: service.ErrWrongActor,
		},
		{
			name: "complete before payment is invalid",
			setupMock: func() {
				f.repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(bookingWithStatus(model.StatusAccepted), nil)
			},
			wantErr: service.ErrInvalidTransition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupMock()

			actorID := tt.actorID
			if actorID == "" {
				actorID = vendorID
			}

			res, err := f.svc.Complete(context.Background(), "booking-1", actorID)

			if tt.wantErr != nil {
				assert.EqualError(t, err, tt.wantErr.Error())
			} else {
				assert.NoError(t, err)
				assert.Equal(t, string(model.StatusCompleted), res.Status)
			}
		})
	}
}
