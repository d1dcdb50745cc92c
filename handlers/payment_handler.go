package handlers

import (
	"context"
	"errors"

	config "github.com/anjiri1684/zukih_store/configs"
	"github.com/anjiri1684/zukih_store/middleware"
	"github.com/anjiri1684/zukih_store/models"
	"github.com/anjiri1684/zukih_store/payments"
	"github.com/anjiri1684/zukih_store/services"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type InitiatePaymentRequest struct {
	Phone   string             `json:"phone" validate:"required"`
	Amount  float64            `json:"amount" validate:"required,gt=0"`
	OrderID string             `json:"orderId" validate:"omitempty,max=64"`
	Items   []models.OrderItem `json:"items" validate:"omitempty,dive"`
}

// TokenFetcher is used by the credential check to prove the keys work.
type TokenFetcher interface {
	FetchToken(ctx context.Context) (*payments.TokenResponse, error)
}

type PaymentHandler struct {
	payments   *services.PaymentService
	reconciler *services.ReconcileService
	mpesa      config.MpesaConfig
	tokens     TokenFetcher
}

func NewPaymentHandler(ps *services.PaymentService, rs *services.ReconcileService, mpesa config.MpesaConfig, tokens TokenFetcher) *PaymentHandler {
	return &PaymentHandler{payments: ps, reconciler: rs, mpesa: mpesa, tokens: tokens}
}

// InitiatePayment handles POST /api/mpesa.
func (h *PaymentHandler) InitiatePayment(c *fiber.Ctx) error {
	var req InitiatePaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": err.Error()})
	}

	result, err := h.payments.Initiate(c.UserContext(), services.InitiateRequest{
		UserID:      middleware.CurrentUserID(c),
		Phone:       req.Phone,
		Amount:      req.Amount,
		OrderNumber: req.OrderID,
		Items:       req.Items,
	})
	if err != nil {
		status, message := initiateErrorResponse(err)
		return c.Status(status).JSON(fiber.Map{"success": false, "error": message})
	}

	message := result.CustomerMessage
	if message == "" {
		message = "STK Push sent. Check your phone to complete the payment."
	}
	return c.JSON(fiber.Map{
		"success":           true,
		"paymentId":         result.PaymentID,
		"orderNumber":       result.OrderNumber,
		"checkoutRequestID": result.CheckoutRequestID,
		"message":           message,
	})
}

func initiateErrorResponse(err error) (int, string) {
	var gwErr *payments.GatewayError

	switch {
	case errors.Is(err, services.ErrAuthenticationRequired):
		return fiber.StatusUnauthorized, "User not authenticated"
	case errors.Is(err, services.ErrConfigurationMissing):
		return fiber.StatusInternalServerError, "Payment service is not configured"
	case errors.Is(err, services.ErrInvalidPhone):
		return fiber.StatusBadRequest, "Invalid phone number format. Use 07XXXXXXXX or 2547XXXXXXXX"
	case errors.Is(err, services.ErrInvalidAmount):
		return fiber.StatusBadRequest, err.Error()
	case errors.Is(err, services.ErrDuplicateOrder):
		return fiber.StatusConflict, err.Error()
	case errors.Is(err, services.ErrGatewayRejected):
		if errors.As(err, &gwErr) && gwErr.Message != "" {
			return fiber.StatusBadRequest, gwErr.Message
		}
		return fiber.StatusBadRequest, "M-Pesa rejected the payment request"
	case errors.Is(err, services.ErrGatewayUnavailable):
		if errors.As(err, &gwErr) && gwErr.Message != "" {
			return fiber.StatusBadGateway, gwErr.Message
		}
		return fiber.StatusBadGateway, "Failed to reach M-Pesa, please try again"
	default:
		return fiber.StatusInternalServerError, "Failed to initiate payment"
	}
}

// HandleCallback handles POST /api/mpesa/callback. The gateway always gets a 200 so it stops
// redelivering; failed callbacks are kept for replay.
func (h *PaymentHandler) HandleCallback(c *fiber.Ctx) error {
	body := append([]byte(nil), c.Body()...)

	if _, err := h.reconciler.HandleCallback(c.UserContext(), body); err != nil {
		logrus.WithError(err).Error("🔥 M-Pesa callback processing failed")
	}
	return c.JSON(fiber.Map{"success": true})
}

// VerifyCredentials reports which M-Pesa settings are present and whether a token can be fetched.
func (h *PaymentHandler) VerifyCredentials(c *fiber.Ctx) error {
	response := fiber.Map{"config": h.mpesa.Masked()}

	if err := h.mpesa.Validate(); err != nil {
		response["success"] = false
		response["error"] = err.Error()
		return c.Status(fiber.StatusInternalServerError).JSON(response)
	}

	token, err := h.tokens.FetchToken(c.UserContext())
	if err != nil {
		response["success"] = false
		response["error"] = err.Error()
		return c.Status(fiber.StatusBadGateway).JSON(response)
	}

	response["success"] = true
	response["tokenExpiresIn"] = int(token.ExpiresIn)
	return c.JSON(response)
}
