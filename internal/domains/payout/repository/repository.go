package repository

//go:generate go run go.uber.org/mock/mockgen -source=./repository.go -destination=../mocks/repository_mock.go -package=mocks

import (
	"context"
	"eventasap/infras/otel"
	"eventasap/infras/postgres"
	"eventasap/internal/domains/payout/model"
	"eventasap/shared"
	"eventasap/shared/constant"
	gDto "eventasap/shared/dto"
	gRepo "eventasap/shared/repository"
	"time"
)

type Payout interface {
	Insert(ctx context.Context, model model.Payout) error
	Get(ctx context.Context, filter gDto.FilterGroup, columns ...string) (model.Payout, error)
	GetByBooking(ctx context.Context, bookingID string) (model.Payout, error)
	Release(ctx context.Context, id string, at time.Time) (bool, error)
}

type repositoryImpl struct {
	gRepo.Repository[model.Payout]
	db   *postgres.Connection
	otel otel.Otel
}

func New(db *postgres.Connection, otel otel.Otel) Payout {
	return &repositoryImpl{
		Repository: gRepo.NewRepository[model.Payout](model.EntityName, model.TableName, model.FieldID, db, otel),
		db:         db,
		otel:       otel,
	}
}

func (repo *repositoryImpl) GetByBooking(ctx context.Context, bookingID string) (model.Payout, error) {
	return repo.Get(ctx, shared.FilterByID(bookingID, model.FieldBookingID, model.TableName))
}

// Release flips a held payout to released. The status guard makes the flip
// happen at most once; a false return means the payout was not held anymore.
func (repo *repositoryImpl) Release(ctx context.Context, id string, at time.Time) (bool, error) {
	updated := map[string]any{
		model.FieldStatus:        string(model.StatusReleased),
		model.FieldReleasedAt:    at,
		constant.FieldModifiedAt: at,
	}

	filter := gDto.FilterGroup{
		Operator: gDto.FilterGroupOperatorAnd,
		Filters: []any{
			gDto.Filter{
				Field:    model.FieldID,
				Operator: gDto.FilterOperatorEq,
				Value:    id,
				Table:    model.TableName,
			},
			gDto.Filter{
				ArgName:  "expected_status",
				Field:    model.FieldStatus,
				Operator: gDto.FilterOperatorEq,
				Value:    string(model.StatusHeld),
				Table:    model.TableName,
			},
		},
	}

	affected, err := repo.UpdateConditional(ctx, updated, filter)
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}
