package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"eventasap/config"
	"eventasap/infras/otel/mocks"
	notifMocks "eventasap/internal/domains/notification/mocks"
	"eventasap/internal/domains/notification/model"
	"eventasap/internal/domains/notification/model/dto"
	"eventasap/internal/domains/notification/service"
	cacheMocks "eventasap/shared/cache/mocks"
	gDto "eventasap/shared/dto"
	"eventasap/shared/failure"
)

const userID = "11111111-1111-1111-1111-111111111111"

func newService(ctrl *gomock.Controller) (service.Notification, *notifMocks.MockNotification) {
	repo := notifMocks.NewMockNotification(ctrl)
	cache := cacheMocks.NewMockRedisCache(ctrl)

	cfg := &config.Config{}
	cfg.Cache.TTL = 3600

	cache.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	cache.EXPECT().Get(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("cache miss")).AnyTimes()
	cache.EXPECT().Delete(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	cache.EXPECT().Clear(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	return service.New(repo, cfg, cache, mocks.NewOtel()), repo
}

func TestNotificationService_Notify(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, repo := newService(ctrl)

	req := dto.CreateNotificationRequest{
		UserID:  userID,
		Type:    model.TypeBookingRequest,
		Title:   "New booking request",
		Message: "You received a new wedding booking request.",
		Data:    map[string]any{"booking_id": "booking-1"},
	}

	t.Run("persists the notification", func(t *testing.T) {
		repo.EXPECT().
			Insert(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, notification model.Notification) error {
				assert.Equal(t, userID, notification.UserID)
				assert.Equal(t, model.TypeBookingRequest, notification.Type)
				assert.False(t, notification.IsRead)
				assert.NotNil(t, notification.Data)

				return nil
			})

		svc.Notify(context.Background(), req)
	})

	t.Run("swallows persistence failures", func(t *testing.T) {
		repo.EXPECT().
			Insert(gomock.Any(), gomock.Any()).
			Return(errors.New("connection refused"))

		// Must not panic or propagate; the triggering transition already
		// committed.
		svc.Notify(context.Background(), req)
	})
}

func TestNotificationService_GetAll(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, repo := newService(ctrl)

	notifications := []model.Notification{
		{ID: "notif-1", UserID: userID, Type: model.TypeBookingAccepted, Title: "Booking accepted", Message: "Your booking was accepted.", IsRead: false},
		{ID: "notif-2", UserID: userID, Type: model.TypePaymentReceived, Title: "Payment received", Message: "The client paid.", IsRead: true},
	}

	repo.EXPECT().
		Count(gomock.Any(), gomock.Any()).
		Return(2, nil)

	repo.EXPECT().
		GetAll(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(notifications, nil)

	res, err := svc.GetAll(context.Background(), userID, gDto.QueryParams{Page: 1, Limit: 10})

	assert.NoError(t, err)
	assert.Equal(t, 2, res.TotalData)
	assert.Len(t, res.Notifications, 2)
	assert.Equal(t, "notif-1", res.Notifications[0].ID)
}

func TestNotificationService_CountUnread(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, repo := newService(ctrl)

	repo.EXPECT().
		Count(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, filter gDto.FilterGroup) (int, error) {
			// The unread predicate rides along with the user filter.
			assert.Len(t, filter.Filters, 2)

			return 3, nil
		})

	count, err := svc.CountUnread(context.Background(), userID)

	assert.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestNotificationService_MarkRead(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, repo := newService(ctrl)

	owned := model.Notification{ID: "notif-1", UserID: userID, IsRead: false}

	tests := []struct {
		name      string
		setupMock func()
		wantErr   bool
	}{
		{
			name: "marks an owned notification read",
			setupMock: func() {
				repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(owned, nil)

				repo.EXPECT().
					Update(gomock.Any(), gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, updated map[string]any, _ any) error {
						assert.Equal(t, true, updated[model.FieldIsRead])

						return nil
					})
			},
		},
		{
			name: "rejects another user's notification",
			setupMock: func() {
				other := owned
				other.UserID = "22222222-2222-2222-2222-222222222222"

				repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(other, nil)
			},
			wantErr: true,
		},
		{
			name: "notification does not exist",
			setupMock: func() {
				repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(model.Notification{}, nil)
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupMock()

			err := svc.MarkRead(context.Background(), "notif-1", userID)

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNotificationService_MarkAllRead(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, repo := newService(ctrl)

	repo.EXPECT().
		Update(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, updated map[string]any, filter gDto.FilterGroup) error {
			assert.Equal(t, true, updated[model.FieldIsRead])
			assert.Len(t, filter.Filters, 1)

			return nil
		})

	err := svc.MarkAllRead(context.Background(), userID)

	assert.NoError(t, err)
}

func TestNotificationService_MarkRead_RestrictedError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, repo := newService(ctrl)

	other := model.Notification{ID: "notif-1", UserID: "someone-else"}

	repo.EXPECT().
		Get(gomock.Any(), gomock.Any()).
		Return(other, nil)

	err := svc.MarkRead(context.Background(), "notif-1", userID)

	assert.ErrorIs(t, err, failure.ResourceRestrictedError)
}
