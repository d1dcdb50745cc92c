package services

import (
	"errors"

	config "github.com/anjiri1684/zukih_store/configs"
	"github.com/anjiri1684/zukih_store/payments"
)

var (
	ErrAuthenticationRequired = errors.New("user not authenticated")
	ErrConfigurationMissing   = config.ErrConfigurationMissing
	ErrGatewayUnavailable     = payments.ErrGatewayUnavailable
	ErrGatewayRejected        = payments.ErrGatewayRejected
	ErrInvalidPhone           = payments.ErrInvalidPhone
	ErrPersistenceFailure     = errors.New("failed to persist payment state")
	ErrReconciliationMismatch = errors.New("callback does not match a reconcilable payment")
	ErrDuplicateOrder         = errors.New("a payment already exists for this order number")
	ErrInvalidAmount          = errors.New("amount must be at least 1")
	ErrNotFound               = errors.New("record not found")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrOrderNotPaid           = errors.New("order has not been paid")
)
