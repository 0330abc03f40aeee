package model

import (
	"eventasap/shared/model"
)

const (
	EntityName = "payment"
	TableName  = "payments"

	FieldID               = "id"
	FieldBookingID        = "booking_id"
	FieldPayerID          = "payer_id"
	FieldAmount           = "amount"
	FieldCurrency         = "currency"
	FieldStatus           = "status"
	FieldProviderIntentID = "provider_intent_id"
	FieldClientSecret     = "client_secret"
	FieldFailureReason    = "failure_reason"
	FieldReceiptURL       = "receipt_url"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the payment can no longer change status.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

type Payment struct {
	ID               string  `db:"id"`
	BookingID        string  `db:"booking_id"`
	PayerID          string  `db:"payer_id"`
	Amount           int64   `db:"amount"`
	Currency         string  `db:"currency"`
	Status           Status  `db:"status"`
	ProviderIntentID *string `db:"provider_intent_id"`
	ClientSecret     *string `db:"client_secret"`
	FailureReason    *string `db:"failure_reason"`
	ReceiptURL       *string `db:"receipt_url"`
	model.Metadata
}
