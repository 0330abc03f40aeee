package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"eventasap/internal/domains/booking/model"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name       string
		from       model.Status
		transition model.Transition
		allowed    bool
	}{
		{"accept from pending", model.StatusPending, model.TransitionAccept, true},
		{"decline from pending", model.StatusPending, model.TransitionDecline, true},
		{"propose price from pending", model.StatusPending, model.TransitionProposePrice, true},
		{"propose price from accepted", model.StatusAccepted, model.TransitionProposePrice, true},
		{"propose price again after rejection", model.StatusPriceRejected, model.TransitionProposePrice, true},
		{"approve price from proposed", model.StatusPriceProposed, model.TransitionApprovePrice, true},
		{"reject price from proposed", model.StatusPriceProposed, model.TransitionRejectPrice, true},
		{"pay from accepted", model.StatusAccepted, model.TransitionPay, true},
		{"pay from price approved", model.StatusPriceApproved, model.TransitionPay, true},
		{"complete from paid", model.StatusPaid, model.TransitionComplete, true},
		{"cancel from pending", model.StatusPending, model.TransitionCancel, true},
		{"cancel from accepted", model.StatusAccepted, model.TransitionCancel, true},
		{"cancel from price proposed", model.StatusPriceProposed, model.TransitionCancel, true},
		{"cancel from price approved", model.StatusPriceApproved, model.TransitionCancel, true},

		{"accept from accepted", model.StatusAccepted, model.TransitionAccept, false},
		{"accept from declined", model.StatusDeclined, model.TransitionAccept, false},
		{"approve price from pending", model.StatusPending, model.TransitionApprovePrice, false},
		{"approve price from rejected", model.StatusPriceRejected, model.TransitionApprovePrice, false},
		{"pay from pending", model.StatusPending, model.TransitionPay, false},
		{"pay from paid", model.StatusPaid, model.TransitionPay, false},
		{"complete from accepted", model.StatusAccepted, model.TransitionComplete, false},
		{"cancel from paid", model.StatusPaid, model.TransitionCancel, false},
		{"cancel from completed", model.StatusCompleted, model.TransitionCancel, false},
		{"cancel from declined", model.StatusDeclined, model.TransitionCancel, false},
		{"propose price from paid", model.StatusPaid, model.TransitionProposePrice, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, model.CanTransition(tt.from, tt.transition))
		})
	}
}

func TestGetEdge(t *testing.T) {
	edge, ok := model.GetEdge(model.TransitionAccept)
	assert.True(t, ok)
	assert.Equal(t, model.StatusAccepted, edge.To)
	assert.Equal(t, model.ActorVendor, edge.Actor)

	edge, ok = model.GetEdge(model.TransitionCancel)
	assert.True(t, ok)
	assert.Equal(t, model.ActorEither, edge.Actor)

	_, ok = model.GetEdge(model.Transition("teleport"))
	assert.False(t, ok)
}

func TestResolveAmount(t *testing.T) {
	price := func(v int64) *int64 { return &v }

	tests := []struct {
		name    string
		booking model.Booking
		want    int64
		ok      bool
	}{
		{
			name: "final price wins over everything",
			booking: model.Booking{
				Budget:        price(100000),
				QuotedPrice:   price(90000),
				AdjustedPrice: price(80000),
				FinalPrice:    price(75000),
			},
			want: 75000,
			ok:   true,
		},
		{
			name: "adjusted price wins over quoted and budget",
			booking: model.Booking{
				Budget:        price(100000),
				QuotedPrice:   price(90000),
				AdjustedPrice: price(55000),
			},
			want: 55000,
			ok:   true,
		},
		{
			name: "quoted price wins over budget",
			booking: model.Booking{
				Budget:      price(100000),
				QuotedPrice: price(55000),
			},
			want: 55000,
			ok:   true,
		},
		{
			name: "falls back to budget",
			booking: model.Booking{
				Budget: price(100000),
			},
			want: 100000,
			ok:   true,
		},
		{
			name:    "no price at all",
			booking: model.Booking{},
			ok:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.booking.ResolveAmount()

			assert.Equal(t, tt.ok, ok)

			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestActorFor(t *testing.T) {
	booking := model.Booking{
		ClientID: "client-1",
		VendorID: "vendor-1",
	}

	actor, ok := booking.ActorFor("client-1")
	assert.True(t, ok)
	assert.Equal(t, model.ActorClient, actor)

	actor, ok = booking.ActorFor("vendor-1")
	assert.True(t, ok)
	assert.Equal(t, model.ActorVendor, actor)

	_, ok = booking.ActorFor("someone-else")
	assert.False(t, ok)

	assert.True(t, booking.IsParty("client-1"))
	assert.True(t, booking.IsParty("vendor-1"))
	assert.False(t, booking.IsParty("someone-else"))
}
