package dto

import (
	"eventasap/internal/domains/booking/model"
	"eventasap/shared"
	gDto "eventasap/shared/dto"
	gModel "eventasap/shared/model"
	"eventasap/shared/timezone"
	"time"

	"github.com/google/uuid"
)

const eventDateFormat = "2006-01-02"

type CreateBookingRequest struct {
	VendorID      string `json:"vendor_id"      validate:"required,uuid"`
	EventType     string `json:"event_type"     validate:"required,max=100"`
	EventDate     string `json:"event_date"     validate:"required"`
	EventLocation string `json:"event_location" validate:"required,max=255"`
	BudgetCents   int64  `json:"budget_cents"   validate:"required,gt=0"`
}

func (c *CreateBookingRequest) ToModel(clientID string) (model.Booking, error) {
	eventDate, err := time.Parse(eventDateFormat, c.EventDate)
	if err != nil {
		return model.Booking{}, err
	}

	budget := c.BudgetCents

	return model.Booking{
		ID:            uuid.NewString(),
		ClientID:      clientID,
		VendorID:      c.VendorID,
		EventType:     c.EventType,
		EventDate:     eventDate,
		EventLocation: c.EventLocation,
		Budget:        &budget,
		Status:        model.StatusPending,
		Metadata: gModel.Metadata{
			CreatedAt:  timezone.Now(),
			ModifiedAt: timezone.Now(),
			CreatedBy:  clientID,
			ModifiedBy: clientID,
		},
	}, nil
}

type AcceptBookingRequest struct {
	QuotedPriceCents *int64 `json:"quoted_price_cents" validate:"omitempty,gt=0"`
}

type ProposePriceRequest struct {
	AmountCents int64 `json:"amount_cents" validate:"required"`
}

type BookingResponse struct {
	ID            string `json:"id"`
	ClientID      string `json:"client_id"`
	VendorID      string `json:"vendor_id"`
	EventType     string `json:"event_type"`
	EventDate     string `json:"event_date"`
	EventLocation string `json:"event_location"`
	BudgetCents   *int64 `json:"budget_cents"`
	QuotedCents   *int64 `json:"quoted_price_cents,omitempty"`
	AdjustedCents *int64 `json:"adjusted_price_cents,omitempty"`
	FinalCents    *int64 `json:"final_price_cents,omitempty"`
	Status        string `json:"status"`
	gDto.Metadata
}

func (r *BookingResponse) FromModel(model model.Booking) {
	r.ID = model.ID
	r.ClientID = model.ClientID
	r.VendorID = model.VendorID
	r.EventType = model.EventType
	r.EventDate = model.EventDate.Format(eventDateFormat)
	r.EventLocation = model.EventLocation
	r.BudgetCents = model.Budget
	r.QuotedCents = model.QuotedPrice
	r.AdjustedCents = model.AdjustedPrice
	r.FinalCents = model.FinalPrice
	r.Status = string(model.Status)
	r.Metadata.FromModel(model.Metadata)
}

type GetBookingsResponse struct {
	Bookings  []BookingResponse `json:"bookings"`
	TotalPage int               `json:"total_page"`
	TotalData int               `json:"total_data"`
}

func (r *GetBookingsResponse) FromModels(models []model.Booking, totalData, limit int) {
	r.TotalData = totalData
	r.TotalPage = shared.CalculateTotalPage(totalData, limit)

	r.Bookings = make([]BookingResponse, len(models))
	for i, mod := range models {
		r.Bookings[i].FromModel(mod)
	}
}
