package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordOrderOperation(t *testing.T) {
	before := testutil.ToFloat64(OrderOperations().WithLabelValues("create_order", "error"))

	RecordOrderOperation("create_order", false)

	assert.Equal(t, before+1, testutil.ToFloat64(OrderOperations().WithLabelValues("create_order", "error")))
}

func TestRecordStatusTransitionLabelsInitialState(t *testing.T) {
	before := testutil.ToFloat64(StatusTransitions().WithLabelValues("none", "PENDING"))

	RecordStatusTransition("", "PENDING")

	assert.Equal(t, before+1, testutil.ToFloat64(StatusTransitions().WithLabelValues("none", "PENDING")))
}
