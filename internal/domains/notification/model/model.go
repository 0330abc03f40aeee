package model

import (
	"eventasap/shared/model"

	"github.com/jmoiron/sqlx/types"
)

const (
	TableName  = "notifications"
	EntityName = "notification"

	FieldID        = "id"
	FieldUserID    = "user_id"
	FieldType      = "type"
	FieldTitle     = "title"
	FieldMessage   = "message"
	FieldActionURL = "action_url"
	FieldData      = "data"
	FieldIsRead    = "is_read"
)

type Type string

const (
	TypeBookingRequest   Type = "BOOKING_REQUEST"
	TypeBookingAccepted  Type = "BOOKING_ACCEPTED"
	TypeBookingDeclined  Type = "BOOKING_DECLINED"
	TypeBookingCancelled Type = "BOOKING_CANCELLED"
	TypePriceAdjusted    Type = "PRICE_ADJUSTED"
	TypePriceApproved    Type = "PRICE_APPROVED"
	TypePriceRejected    Type = "PRICE_REJECTED"
	TypePaymentReceived  Type = "PAYMENT_RECEIVED"
	TypePayoutReleased   Type = "PAYOUT_RELEASED"
)

type Notification struct {
	ID        string          `db:"id"`
	UserID    string          `db:"user_id"`
	Type      Type            `db:"type"`
	Title     string          `db:"title"`
	Message   string          `db:"message"`
	ActionURL *string         `db:"action_url"`
	Data      *types.JSONText `db:"data"`
	IsRead    bool            `db:"is_read"`
	model.Metadata
}
