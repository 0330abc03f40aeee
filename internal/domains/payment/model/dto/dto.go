package dto

import (
	"eventasap/internal/domains/payment/model"
	"eventasap/shared"
	gDto "eventasap/shared/dto"
)

type CreateIntentRequest struct {
	BookingID string `json:"booking_id" validate:"required,uuid"`
}

type ConfirmPaymentRequest struct {
	Outcome       string  `json:"outcome"        validate:"required,oneof=succeeded failed"`
	FailureReason *string `json:"failure_reason" validate:"omitempty,max=255"`
}

type PaymentResponse struct {
	ID               string  `json:"id"`
	BookingID        string  `json:"booking_id"`
	PayerID          string  `json:"payer_id"`
	AmountCents      int64   `json:"amount_cents"`
	Currency         string  `json:"currency"`
	Status           string  `json:"status"`
	ProviderIntentID *string `json:"provider_intent_id,omitempty"`
	ClientSecret     *string `json:"client_secret,omitempty"`
	FailureReason    *string `json:"failure_reason,omitempty"`
	ReceiptURL       *string `json:"receipt_url,omitempty"`
	gDto.Metadata
}

func (r *PaymentResponse) FromModel(model model.Payment) {
	r.ID = model.ID
	r.BookingID = model.BookingID
	r.PayerID = model.PayerID
	r.AmountCents = model.Amount
	r.Currency = model.Currency
	r.Status = string(model.Status)
	r.ProviderIntentID = model.ProviderIntentID
	r.ClientSecret = model.ClientSecret
	r.FailureReason = model.FailureReason
	r.ReceiptURL = model.ReceiptURL
	r.Metadata.FromModel(model.Metadata)
}

type GetPaymentsResponse struct {
	Payments  []PaymentResponse `json:"payments"`
	TotalPage int               `json:"total_page"`
	TotalData int               `json:"total_data"`
}

func (r *GetPaymentsResponse) FromModels(models []model.Payment, totalData, limit int) {
	r.TotalData = totalData
	r.TotalPage = shared.CalculateTotalPage(totalData, limit)

	r.Payments = make([]PaymentResponse, len(models))
	for i, mod := range models {
		r.Payments[i].FromModel(mod)
	}
}
