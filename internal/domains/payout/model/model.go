package model

import (
	"eventasap/shared/model"
	"time"
)

const (
	EntityName = "payout"
	TableName  = "payouts"

	FieldID         = "id"
	FieldBookingID  = "booking_id"
	FieldPaymentID  = "payment_id"
	FieldVendorID   = "vendor_id"
	FieldStatus     = "status"
	FieldReleasedAt = "released_at"
)

type Status string

const (
	StatusHeld     Status = "held"
	StatusReleased Status = "released"
)

// Payout records the vendor's share of a succeeded payment. It is created
// held when the payment settles and released when the booking completes.
type Payout struct {
	ID          string     `db:"id"`
	BookingID   string     `db:"booking_id"`
	PaymentID   string     `db:"payment_id"`
	VendorID    string     `db:"vendor_id"`
	GrossAmount int64      `db:"gross_amount"`
	Commission  int64      `db:"commission"`
	NetAmount   int64      `db:"net_amount"`
	Status      Status     `db:"status"`
	ReleasedAt  *time.Time `db:"released_at"`
	model.Metadata
}

// Split divides a gross amount into commission and vendor net using an
// integer percentage. Rounding remainder stays with the vendor.
func Split(grossAmount, commissionPercent int64) (commission, net int64) {
	commission = grossAmount * commissionPercent / 100
	net = grossAmount - commission

	return commission, net
}
