package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaymentStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to PaymentStatus
		ok       bool
	}{
		{PaymentPending, PaymentProcessing, true},
		{PaymentPending, PaymentCancelled, true},
		{PaymentPending, PaymentCompleted, false},
		{PaymentProcessing, PaymentCompleted, true},
		{PaymentProcessing, PaymentFailed, true},
		{PaymentProcessing, PaymentCancelled, true},
		{PaymentProcessing, PaymentPending, false},
		{PaymentCompleted, PaymentFailed, false},
		{PaymentCompleted, PaymentCancelled, false},
		{PaymentFailed, PaymentCompleted, false},
		{PaymentCancelled, PaymentCompleted, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.ok, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestPaymentStatusTerminal(t *testing.T) {
	assert.False(t, PaymentPending.IsTerminal())
	assert.False(t, PaymentProcessing.IsTerminal())
	assert.True(t, PaymentCompleted.IsTerminal())
	assert.True(t, PaymentFailed.IsTerminal())
	assert.True(t, PaymentCancelled.IsTerminal())
}

func TestOrderStatusTransitions(t *testing.T) {
	assert.True(t, OrderConfirmed.CanTransitionTo(OrderPreparing))
	assert.True(t, OrderReady.CanTransitionTo(OrderCompleted))
	assert.True(t, OrderPreparing.CanTransitionTo(OrderCancelled))
	assert.False(t, OrderConfirmed.CanTransitionTo(OrderCompleted))
	assert.False(t, OrderCompleted.CanTransitionTo(OrderCancelled))
	assert.False(t, OrderCancelled.CanTransitionTo(OrderConfirmed))
}

func TestPaymentStatusesBefore(t *testing.T) {
	assert.Equal(t, []PaymentStatus{PaymentProcessing}, PaymentStatusesBefore(PaymentCompleted))
	assert.Equal(t, []PaymentStatus{PaymentProcessing}, PaymentStatusesBefore(PaymentFailed))
	assert.Equal(t, []PaymentStatus{PaymentPending, PaymentProcessing}, PaymentStatusesBefore(PaymentCancelled))
	assert.Empty(t, PaymentStatusesBefore(PaymentPending))
}
