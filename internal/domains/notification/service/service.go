package service

//go:generate go run go.uber.org/mock/mockgen -source=./service.go -destination=./mocks/service_mock.go -package=mocks

import (
	"context"
	"eventasap/config"
	"eventasap/infras/otel"
	"eventasap/internal/domains/notification/model"
	"eventasap/internal/domains/notification/model/dto"
	"eventasap/internal/domains/notification/repository"
	"eventasap/shared"
	"eventasap/shared/cache"
	"eventasap/shared/constant"
	gDto "eventasap/shared/dto"
	"eventasap/shared/failure"
	"eventasap/shared/timezone"
	"fmt"

	"github.com/rs/zerolog/log"
)

const (
	cacheGetAllNotification = "notification:gets"
	cacheCountUnread        = "notification:unread"
)

type Notification interface {
	// Notify inserts a notification on a best-effort basis. Persistence
	// failures are logged and swallowed so that the triggering state
	// transition never rolls back on a notification error.
	Notify(ctx context.Context, req dto.CreateNotificationRequest)
	GetAll(ctx context.Context, userID string, params gDto.QueryParams) (dto.GetNotificationsResponse, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) error
}

type serviceImpl struct {
	repo  repository.Notification
	cfg   *config.Config
	cache cache.RedisCache
	otel  otel.Otel
}

func New(repo repository.Notification, cfg *config.Config, cache cache.RedisCache, otel otel.Otel) Notification {
	return &serviceImpl{
		repo:  repo,
		cfg:   cfg,
		cache: cache,
		otel:  otel,
	}
}

func (s *serviceImpl) Notify(ctx context.Context, req dto.CreateNotificationRequest) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".Notify")
	defer scope.End()

	notification, err := req.ToModel()
	if err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Str("userID", req.UserID).Str("type", string(req.Type)).Msg("failed to build notification, dropping")

		return
	}

	if err := s.repo.Insert(ctx, notification); err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Str("userID", req.UserID).Str("type", string(req.Type)).Msg("failed to persist notification, dropping")

		return
	}

	go func() {
		c := context.WithoutCancel(ctx)

		if err := s.cache.Delete(c, shared.BuildCacheKey(cacheCountUnread, req.UserID)); err != nil {
			log.Error().Err(err).Msg("failed to invalidate unread count cache")
		}

		shared.InvalidateCaches(c, s.cache, shared.BuildCacheKey(cacheGetAllNotification, req.UserID))
	}()
}

func (s *serviceImpl) GetAll(ctx context.Context, userID string, params gDto.QueryParams) (res dto.GetNotificationsResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".GetAll")
	defer scope.End()
	defer scope.TraceIfError(err)

	filter := filterByUser(userID)
	cacheKey := shared.BuildCacheKeyWithQuery(shared.BuildCacheKey(cacheGetAllNotification, userID), params, filter)

	err = s.cache.Get(ctx, cacheKey, &res)
	if err == nil {
		log.Info().Str("cacheKey", cacheKey).Msg("cache hit for notifications")

		return res, nil
	}

	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		log.Error().Err(err).Msg("failed to count notifications")

		return res, fmt.Errorf("failed to count notifications: %w", err)
	}

	models, err := s.repo.GetAll(ctx, params, filter)
	if err != nil {
		log.Error().Err(err).Msg("failed to get notifications")

		return res, fmt.Errorf("failed to get notifications: %w", err)
	}

	res.FromModels(models, total, params.Limit)

	go func() {
		c := context.WithoutCancel(ctx)

		if err := s.cache.Save(c, cacheKey, res, s.cfg.Cache.TTL); err != nil {
			log.Error().Err(err).Msg("failed to save notifications to cache")
		}
	}()

	return res, nil
}

func (s *serviceImpl) CountUnread(ctx context.Context, userID string) (res int, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".CountUnread")
	defer scope.End()
	defer scope.TraceIfError(err)

	cacheKey := shared.BuildCacheKey(cacheCountUnread, userID)

	err = s.cache.Get(ctx, cacheKey, &res)
	if err == nil {
		return res, nil
	}

	filter := filterByUser(userID)
	filter.Filters = append(filter.Filters, gDto.Filter{
		Field:    model.FieldIsRead,
		Operator: gDto.FilterOperatorEq,
		Value:    false,
		Table:    model.TableName,
	})

	res, err = s.repo.Count(ctx, filter)
	if err != nil {
		log.Error().Err(err).Msg("failed to count unread notifications")

		return res, fmt.Errorf("failed to count unread notifications: %w", err)
	}

	go func() {
		c := context.WithoutCancel(ctx)

		if err := s.cache.Save(c, cacheKey, res, s.cfg.Cache.TTL); err != nil {
			log.Error().Err(err).Msg("failed to save unread count to cache")
		}
	}()

	return res, nil
}

func (s *serviceImpl) MarkRead(ctx context.Context, id, userID string) (err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".MarkRead")
	defer scope.End()
	defer scope.TraceIfError(err)

	notification, err := s.repo.Get(ctx, shared.FilterByID(id, model.FieldID, model.TableName))
	if err != nil {
		log.Error().Err(err).Msg("failed to get notification")

		return fmt.Errorf("failed to get notification: %w", err)
	}

	if notification.ID == constant.Empty {
		return failure.NotFound("notification not found") //nolint:wrapcheck
	}

	if notification.UserID != userID {
		return failure.ResourceRestrictedError //nolint:wrapcheck
	}

	updated := map[string]any{
		model.FieldIsRead:        true,
		constant.FieldModifiedAt: timezone.Now(),
		constant.FieldModifiedBy: userID,
	}

	if err = s.repo.Update(ctx, updated, shared.FilterByID(id, model.FieldID, model.TableName)); err != nil {
		log.Error().Err(err).Msg("failed to mark notification read")

		return fmt.Errorf("failed to mark notification read: %w", err)
	}

	s.invalidate(ctx, userID)

	return nil
}

func (s *serviceImpl) MarkAllRead(ctx context.Context, userID string) (err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".MarkAllRead")
	defer scope.End()
	defer scope.TraceIfError(err)

	updated := map[string]any{
		model.FieldIsRead:        true,
		constant.FieldModifiedAt: timezone.Now(),
		constant.FieldModifiedBy: userID,
	}

	if err = s.repo.Update(ctx, updated, filterByUser(userID)); err != nil {
		log.Error().Err(err).Msg("failed to mark all notifications read")

		return fmt.Errorf("failed to mark all notifications read: %w", err)
	}

	s.invalidate(ctx, userID)

	return nil
}

func (s *serviceImpl) invalidate(ctx context.Context, userID string) {
	go func() {
		c := context.WithoutCancel(ctx)

		if err := s.cache.Delete(c, shared.BuildCacheKey(cacheCountUnread, userID)); err != nil {
			log.Error().Err(err).Msg("failed to invalidate unread count cache")
		}

		shared.InvalidateCaches(c, s.cache, shared.BuildCacheKey(cacheGetAllNotification, userID))
	}()
}

func filterByUser(userID string) gDto.FilterGroup {
	return gDto.FilterGroup{
		Operator: gDto.FilterGroupOperatorAnd,
		Filters: []any{
			gDto.Filter{
				Field:    model.FieldUserID,
				Operator: gDto.FilterOperatorEq,
				Value:    userID,
				Table:    model.TableName,
			},
		},
	}
}
