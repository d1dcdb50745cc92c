package handlers

import (
	"errors"
	"fmt"

	"github.com/anjiri1684/zukih_store/middleware"
	"github.com/anjiri1684/zukih_store/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type OrderHandler struct {
	orders   *services.OrderService
	receipts *services.ReceiptService
}

func NewOrderHandler(orders *services.OrderService, receipts *services.ReceiptService) *OrderHandler {
	return &OrderHandler{orders: orders, receipts: receipts}
}

func (h *OrderHandler) GetMyOrders(c *fiber.Ctx) error {
	orders, err := h.orders.ListUserOrders(c.UserContext(), middleware.CurrentUserID(c))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch orders"})
	}
	return c.JSON(orders)
}

func (h *OrderHandler) GetMyPayments(c *fiber.Ctx) error {
	list, err := h.orders.ListUserPayments(c.UserContext(), middleware.CurrentUserID(c))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch payments"})
	}
	return c.JSON(list)
}

// GetPaymentStatus lets the checkout page poll a payment while the STK prompt is open.
func (h *OrderHandler) GetPaymentStatus(c *fiber.Ctx) error {
	paymentID, err := uuid.Parse(c.Params("paymentId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid payment ID"})
	}

	payment, err := h.orders.GetUserPayment(c.UserContext(), middleware.CurrentUserID(c), paymentID)
	if errors.Is(err, services.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Payment not found"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch payment"})
	}

	return c.JSON(fiber.Map{
		"payment_id":     payment.ID,
		"order_number":   payment.OrderNumber,
		"status":         payment.Status,
		"receipt_number": payment.ReceiptNumber,
		"amount":         payment.Amount,
	})
}

func (h *OrderHandler) DownloadReceipt(c *fiber.Ctx) error {
	order, err := h.orders.GetUserOrder(c.UserContext(), middleware.CurrentUserID(c), c.Params("orderNumber"))
	if errors.Is(err, services.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Order not found"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch order"})
	}

	pdf, err := h.receipts.Generate(c.UserContext(), order)
	if errors.Is(err, services.ErrOrderNotPaid) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Order has not been paid yet"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to generate receipt"})
	}

	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=receipt-%s.pdf", order.OrderNumber))
	return c.Send(pdf)
}
