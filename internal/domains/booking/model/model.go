package model

import (
	"eventasap/shared/model"
	"slices"
	"time"
)

const (
	TableName  = "bookings"
	EntityName = "booking"

	FieldID            = "id"
	FieldClientID      = "client_id"
	FieldVendorID      = "vendor_id"
	FieldEventType     = "event_type"
	FieldEventDate     = "event_date"
	FieldEventLocation = "event_location"
	FieldBudget        = "budget"
	FieldQuotedPrice   = "quoted_price"
	FieldAdjustedPrice = "adjusted_price"
	FieldFinalPrice    = "final_price"
	FieldStatus        = "status"
)

type Status string

const (
	StatusPending       Status = "PENDING"
	StatusAccepted      Status = "ACCEPTED"
	StatusDeclined      Status = "DECLINED"
	StatusPriceProposed Status = "PRICE_PROPOSED"
	StatusPriceApproved Status = "PRICE_APPROVED"
	StatusPriceRejected Status = "PRICE_REJECTED"
	StatusPaid          Status = "PAID"
	StatusCompleted     Status = "COMPLETED"
	StatusCancelled     Status = "CANCELLED"
)

// Transition names an edge of the booking lifecycle graph.
type Transition string

const (
	TransitionAccept       Transition = "accept"
	TransitionDecline      Transition = "decline"
	TransitionProposePrice Transition = "propose_price"
	TransitionApprovePrice Transition = "approve_price"
	TransitionRejectPrice  Transition = "reject_price"
	TransitionPay          Transition = "pay"
	TransitionComplete     Transition = "complete"
	TransitionCancel       Transition = "cancel"
)

// ActorRole identifies which party may trigger a transition.
type ActorRole string

const (
	ActorClient ActorRole = "CLIENT"
	ActorVendor ActorRole = "VENDOR"
	// ActorEither permits both parties on the edge (cancellation).
	ActorEither ActorRole = "EITHER"
)

// Edge describes one permitted transition: the statuses it may start from,
// the status it lands on, and the party allowed to trigger it.
type Edge struct {
	From  []Status
	To    Status
	Actor ActorRole
}

// edges is the whole lifecycle graph. A rejected proposal reopens
// negotiation, so propose_price also accepts PRICE_REJECTED as a source.
var edges = map[Transition]Edge{
	TransitionAccept:       {From: []Status{StatusPending}, To: StatusAccepted, Actor: ActorVendor},
	TransitionDecline:      {From: []Status{StatusPending}, To: StatusDeclined, Actor: ActorVendor},
	TransitionProposePrice: {From: []Status{StatusPending, StatusAccepted, StatusPriceRejected}, To: StatusPriceProposed, Actor: ActorVendor},
	TransitionApprovePrice: {From: []Status{StatusPriceProposed}, To: StatusPriceApproved, Actor: ActorClient},
	TransitionRejectPrice:  {From: []Status{StatusPriceProposed}, To: StatusPriceRejected, Actor: ActorClient},
	TransitionPay:          {From: []Status{StatusAccepted, StatusPriceApproved}, To: StatusPaid, Actor: ActorClient},
	TransitionComplete:     {From: []Status{StatusPaid}, To: StatusCompleted, Actor: ActorVendor},
	TransitionCancel:       {From: []Status{StatusPending, StatusAccepted, StatusPriceProposed, StatusPriceApproved}, To: StatusCancelled, Actor: ActorEither},
}

// GetEdge returns the edge for the given transition.
func GetEdge(transition Transition) (Edge, bool) {
	edge, ok := edges[transition]

	return edge, ok
}

// CanTransition reports whether the transition is permitted from the
// given status.
func CanTransition(from Status, transition Transition) bool {
	edge, ok := edges[transition]
	if !ok {
		return false
	}

	return slices.Contains(edge.From, from)
}

// PayableStatuses are the statuses from which a payment intent may be created.
func PayableStatuses() []Status {
	return edges[TransitionPay].From
}

type Booking struct {
	ID            string    `db:"id"`
	ClientID      string    `db:"client_id"`
	VendorID      string    `db:"vendor_id"`
	EventType     string    `db:"event_type"`
	EventDate     time.Time `db:"event_date"`
	EventLocation string    `db:"event_location"`
	Budget        *int64    `db:"budget"`
	QuotedPrice   *int64    `db:"quoted_price"`
	AdjustedPrice *int64    `db:"adjusted_price"`
	FinalPrice    *int64    `db:"final_price"`
	Status        Status    `db:"status"`
	model.Metadata
}

// ResolveAmount returns the booking's effective price in cents: the first
// non-nil of final, adjusted, quoted and budget, in that order. Nil checks
// only; zero is a legitimate stored value and must not be skipped.
func (b *Booking) ResolveAmount() (int64, bool) {
	for _, price := range []*int64{b.FinalPrice, b.AdjustedPrice, b.QuotedPrice, b.Budget} {
		if price != nil {
			return *price, true
		}
	}

	return 0, false
}

// IsParty reports whether the user is one of the two booking parties.
func (b *Booking) IsParty(userID string) bool {
	return userID == b.ClientID || userID == b.VendorID
}

// ActorFor maps a user id to its role on this booking.
func (b *Booking) ActorFor(userID string) (ActorRole, bool) {
	switch userID {
	case b.ClientID:
		return ActorClient, true
	case b.VendorID:
		return ActorVendor, true
	default:
		return "", false
	}
}
