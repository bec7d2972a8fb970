package lifecycle

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaidashi/laundry-order-api/internal/models"
	apperrors "github.com/vaidashi/laundry-order-api/pkg/errors"
)

func TestAllowedTable(t *testing.T) {
	rider := models.PickupTypeRider
	cases := map[models.OrderStatus][]models.OrderStatus{
		models.StatusPending:         {models.StatusAccepted, models.StatusRejected, models.StatusCancelled},
		models.StatusAccepted:        {models.StatusPickupScheduled, models.StatusCancelled},
		models.StatusPickupScheduled: {models.StatusPickedUp, models.StatusCancelled},
		models.StatusPickedUp:        {models.StatusProcessing, models.StatusCancelled},
		models.StatusProcessing:      {models.StatusReady},
		models.StatusReady:           {models.StatusOutForDelivery},
		models.StatusOutForDelivery:  {models.StatusDelivered},
		models.StatusDelivered:       {models.StatusCompleted},
		models.StatusCompleted:       nil,
		models.StatusRejected:        nil,
		models.StatusCancelled:       nil,
	}

	for from, want := range cases {
		assert.Equal(t, want, Allowed(from, rider), "from %s", from)
	}
}

func TestSelfDropOffEdge(t *testing.T) {
	assert.False(t, CanTransition(models.StatusAccepted, models.StatusProcessing, models.PickupTypeRider))
	assert.True(t, CanTransition(models.StatusAccepted, models.StatusProcessing, models.PickupTypeSelfDropOff))
	assert.Equal(t,
		[]models.OrderStatus{models.StatusPickupScheduled, models.StatusProcessing, models.StatusCancelled},
		Allowed(models.StatusAccepted, models.PickupTypeSelfDropOff))
}

func TestPickedUpCanBeCancelled(t *testing.T) {
	for _, pickup := range []models.PickupType{models.PickupTypeRider, models.PickupTypeSelfDropOff} {
		assert.NoError(t, Validate(models.StatusPickedUp, models.StatusCancelled, pickup), pickup)
	}

	err := Validate(models.StatusPickedUp, models.StatusReady, models.PickupTypeRider)
	require.Error(t, err)
	assert.Equal(t, "Invalid status transition from PICKED_UP to READY. Allowed: PROCESSING, CANCELLED", err.Error())
}

func TestValidateMessage(t *testing.T) {
	err := Validate(models.StatusPending, models.StatusDelivered, models.PickupTypeRider)
	require.Error(t, err)
	assert.Equal(t, "Invalid status transition from PENDING to DELIVERED. Allowed: ACCEPTED, REJECTED, CANCELLED", err.Error())

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, appErr.StatusCode)
	assert.Equal(t, CodeInvalidTransition, appErr.Code)

	assert.Equal(t, "Invalid status transition from COMPLETED to PENDING. Allowed: ",
		Validate(models.StatusCompleted, models.StatusPending, models.PickupTypeRider).Error())

	assert.NoError(t, Validate(models.StatusReady, models.StatusOutForDelivery, models.PickupTypeRider))
}

func TestUnknownStatusesNeverTransition(t *testing.T) {
	assert.False(t, CanTransition("LOST", models.StatusPending, models.PickupTypeRider))
	assert.False(t, CanTransition(models.StatusPending, "LOST", models.PickupTypeRider))
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range models.OrderStatuses {
		want := s == models.StatusCompleted || s == models.StatusRejected || s == models.StatusCancelled
		assert.Equal(t, want, IsTerminal(s), "status %s", s)
	}
}

func TestCustomerCancel(t *testing.T) {
	for _, s := range []models.OrderStatus{models.StatusPending, models.StatusAccepted, models.StatusPickupScheduled, models.StatusPickedUp} {
		assert.NoError(t, ValidateCustomerCancel(s))
	}

	err := ValidateCustomerCancel(models.StatusProcessing)
	require.Error(t, err)
	assert.Equal(t, "Cannot cancel order in PROCESSING status", err.Error())
	assert.True(t, apperrors.HasCode(err, CodeNotCancellable))
}

func TestEveryStatusHasTimelineCopy(t *testing.T) {
	for _, s := range models.OrderStatuses {
		_, ok := templates[s]
		assert.True(t, ok, "missing template for %s", s)
	}
	assert.Equal(t, "Order Placed", TimelineFor(models.StatusPending).Title)
}
