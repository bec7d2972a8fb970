package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromZapWritesKeyValues(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := FromZap(zap.New(core))

	l.Info("Order created", "orderID", "ord-1", "laundryID", "lau-1")
	l.With("orderNumber", "ORD-20260101-0001").Warn("Notification failed")

	entries := logs.All()
	assert.Len(t, entries, 2)
	assert.Equal(t, "Order created", entries[0].Message)
	assert.Equal(t, "ord-1", entries[0].ContextMap()["orderID"])
	assert.Equal(t, "ORD-20260101-0001", entries[1].ContextMap()["orderNumber"])
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
}

func TestNewLoggerFallsBackOnUnknownLevel(t *testing.T) {
	l := NewLogger("chatty")
	assert.NotNil(t, l)

	NewNop().Error("discarded", "error", "boom")
}
