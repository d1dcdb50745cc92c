package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	config "github.com/anjiri1684/zukih_store/configs"
	"github.com/anjiri1684/zukih_store/metrics"
	"github.com/anjiri1684/zukih_store/models"
	"github.com/anjiri1684/zukih_store/payments"
	"github.com/anjiri1684/zukih_store/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Gateway is the part of the M-Pesa client the services depend on.
type Gateway interface {
	STKPush(ctx context.Context, params payments.STKPushParams) (*payments.StkPushResponse, error)
	QueryStatus(ctx context.Context, checkoutRequestID string) (*payments.StkQueryResponse, error)
}

type InitiateRequest struct {
	UserID      uuid.UUID
	Phone       string
	Amount      float64
	OrderNumber string
	Items       []models.OrderItem
}

type InitiateResult struct {
	PaymentID         uuid.UUID
	OrderNumber       string
	CheckoutRequestID string
	MerchantRequestID string
	CustomerMessage   string
}

type PaymentService struct {
	db      *gorm.DB
	gateway Gateway
	mpesa   config.MpesaConfig
}

func NewPaymentService(db *gorm.DB, gateway Gateway, mpesa config.MpesaConfig) *PaymentService {
	return &PaymentService{db: db, gateway: gateway, mpesa: mpesa}
}

// Initiate records a processing payment and sends the STK push for it.
// Whatever happens after the insert, the payment row is left in a status that
// reflects the outcome: processing when the push was accepted, failed otherwise.
func (s *PaymentService) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	if req.UserID == uuid.Nil {
		return nil, ErrAuthenticationRequired
	}
	if err := s.mpesa.Validate(); err != nil {
		logrus.WithError(err).Error("🔥 M-Pesa initiation attempted without configuration")
		return nil, err
	}

	phone, err := payments.SanitizeMpesaNumber(req.Phone)
	if err != nil {
		return nil, err
	}

	amount := math.Round(req.Amount)
	if amount < 1 {
		return nil, ErrInvalidAmount
	}

	payment, err := s.createPayment(ctx, req, phone, amount)
	if err != nil {
		return nil, err
	}

	log := logrus.WithFields(logrus.Fields{
		"payment_id":   payment.ID,
		"order_number": payment.OrderNumber,
		"user_id":      req.UserID,
	})
	log.Info("Payment record created, sending STK push")

	stkResponse, err := s.gateway.STKPush(ctx, payments.STKPushParams{
		Phone:       phone,
		Amount:      amount,
		OrderNumber: payment.OrderNumber,
	})
	if err != nil {
		var raw []byte
		if stkResponse != nil {
			raw = stkResponse.Raw
		} else {
			var gwErr *payments.GatewayError
			if errors.As(err, &gwErr) {
				raw = gwErr.Body
			}
		}
		if markErr := s.markFailed(ctx, payment.ID, raw); markErr != nil {
			log.WithError(markErr).Error("🔥 Failed to mark payment as failed")
		}

		outcome := "unavailable"
		if errors.Is(err, ErrGatewayRejected) {
			outcome = "rejected"
		}
		metrics.STKPushes.WithLabelValues(outcome).Inc()
		log.WithError(err).Warn("STK push failed")
		return nil, err
	}

	updates := map[string]interface{}{
		"mpesa_checkout_request_id": stkResponse.CheckoutRequestID,
		"mpesa_merchant_request_id": stkResponse.MerchantRequestID,
		"payment_gateway_response":  datatypes.JSON(stkResponse.Raw),
	}
	if err := s.db.WithContext(ctx).Model(&models.Payment{}).Where("id = ?", payment.ID).Updates(updates).Error; err != nil {
		// The push is already on the payer's phone; the callback can still be matched by order number.
		metrics.ReconciliationErrors.WithLabelValues("persist_correlation").Inc()
		log.WithError(err).Error("🔥 CRITICAL: failed to store M-Pesa correlation ids")
	}

	metrics.STKPushes.WithLabelValues("accepted").Inc()
	log.WithField("checkout_request_id", stkResponse.CheckoutRequestID).Info("✅ STK Push initiated successfully")

	return &InitiateResult{
		PaymentID:         payment.ID,
		OrderNumber:       payment.OrderNumber,
		CheckoutRequestID: stkResponse.CheckoutRequestID,
		MerchantRequestID: stkResponse.MerchantRequestID,
		CustomerMessage:   stkResponse.CustomerMessage,
	}, nil
}

func (s *PaymentService) createPayment(ctx context.Context, req InitiateRequest, phone string, amount float64) (*models.Payment, error) {
	db := s.db.WithContext(ctx)

	orderNumber := req.OrderNumber
	if orderNumber == "" {
		generated, err := utils.GenerateUniqueOrderNumber(db)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
		}
		orderNumber = generated
	}

	var existing int64
	if err := db.Model(&models.Payment{}).Where("order_number = ?", orderNumber).Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}
	if existing > 0 {
		return nil, ErrDuplicateOrder
	}

	payment := models.Payment{
		UserID:        req.UserID,
		OrderNumber:   orderNumber,
		Amount:        amount,
		Currency:      "KES",
		PaymentMethod: "mpesa",
		PhoneNumber:   phone,
		Status:        models.PaymentProcessing,
		Items:         req.Items,
	}
	if err := db.Create(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateOrder
		}
		logrus.WithError(err).WithField("order_number", orderNumber).Error("🔥 Failed to create payment record")
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}
	return &payment, nil
}

// markFailed only moves non-terminal payments, so it never overwrites a callback's result.
func (s *PaymentService) markFailed(ctx context.Context, paymentID uuid.UUID, raw []byte) error {
	updates := map[string]interface{}{"status": models.PaymentFailed}
	if len(raw) > 0 && json.Valid(raw) {
		updates["payment_gateway_response"] = datatypes.JSON(raw)
	}
	return s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status IN ?", paymentID, models.PaymentStatusesBefore(models.PaymentFailed)).
		Updates(updates).Error
}
