package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeTotalFloorsAtZero(t *testing.T) {
	total := ComputeTotal(decimal.NewFromInt(500), decimal.NewFromInt(100), decimal.Zero, decimal.NewFromInt(100))
	assert.Equal(t, "500", total.String())

	assert.True(t, ComputeTotal(decimal.NewFromInt(10), decimal.Zero, decimal.Zero, decimal.NewFromInt(50)).IsZero())
}

func TestParseOrderStatus(t *testing.T) {
	s, ok := ParseOrderStatus("OUT_FOR_DELIVERY")
	assert.True(t, ok)
	assert.Equal(t, StatusOutForDelivery, s)

	_, ok = ParseOrderStatus("out_for_delivery")
	assert.False(t, ok)
}

func TestActorCanView(t *testing.T) {
	order := &Order{CustomerID: "c-1", LaundryID: "l-1"}

	assert.True(t, Actor{ID: "c-1", Role: RoleCustomer}.CanView(order))
	assert.False(t, Actor{ID: "c-2", Role: RoleCustomer}.CanView(order))
	assert.True(t, Actor{ID: "staff", Role: RoleLaundry, LaundryID: "l-1"}.CanView(order))
	assert.False(t, Actor{ID: "staff", Role: RoleLaundry}.CanView(order))
	assert.True(t, Actor{ID: "root", Role: RoleAdmin}.CanView(order))
}

func TestPromoAppliesToLaundry(t *testing.T) {
	assert.True(t, (&PromoCode{}).AppliesToLaundry("l-9"))
	restricted := &PromoCode{ApplicableLaundryIDs: []string{"l-1", "l-2"}}
	assert.True(t, restricted.AppliesToLaundry("l-2"))
	assert.False(t, restricted.AppliesToLaundry("l-9"))
}

func TestStatusChangedEventEnvelope(t *testing.T) {
	at := time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)
	order := &Order{ID: "o-1", OrderNumber: "ORD-20260504-0001", CustomerID: "c-1", LaundryID: "l-1", Status: StatusAccepted}

	msg, err := NewOrderStatusChangedEvent(order, StatusPending, Actor{ID: "staff", Role: RoleLaundry}, at)
	require.NoError(t, err)
	assert.Equal(t, EventOrderStatusChanged, msg.EventType)
	assert.Equal(t, OutboxStatusPending, msg.Status)

	event, err := DecodeEvent(msg.Payload)
	require.NoError(t, err)
	assert.Equal(t, "o-1", event.AggregateID)
	assert.Equal(t, at, event.OccurredAt)
	assert.Len(t, event.EventID, 26)

	var data OrderStatusChangedData
	require.NoError(t, json.Unmarshal(event.Data, &data))
	assert.Equal(t, StatusPending, data.FromStatus)
	assert.Equal(t, StatusAccepted, data.ToStatus)
	assert.Equal(t, RoleLaundry, data.ActorRole)
}

func TestMilestoneAtOwnsOneField(t *testing.T) {
	o := &Order{}
	now := time.Now()

	*o.MilestoneAt(StatusDelivered) = &now
	assert.Equal(t, &now, o.DeliveredAt)
	assert.Nil(t, o.MilestoneAt(StatusPending))
}
