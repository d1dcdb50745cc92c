package handlers

import (
	"errors"
	"strconv"

	"github.com/anjiri1684/zukih_store/middleware"
	"github.com/anjiri1684/zukih_store/models"
	"github.com/anjiri1684/zukih_store/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type UpdateOrderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=confirmed preparing ready completed cancelled"`
}

type UpdateUserRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=customer admin"`
}

type UpdateUserStatusRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

type AdminHandler struct {
	orders     *services.OrderService
	users      *services.UserService
	reconciler *services.ReconcileService
}

func NewAdminHandler(orders *services.OrderService, users *services.UserService, reconciler *services.ReconcileService) *AdminHandler {
	return &AdminHandler{orders: orders, users: users, reconciler: reconciler}
}

func (h *AdminHandler) GetPayments(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "10"))

	list, meta, err := h.orders.AdminListPayments(c.UserContext(), c.Query("status"), page, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}
	return c.JSON(fiber.Map{"data": list, "meta": meta})
}

func (h *AdminHandler) GetOrders(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "10"))

	orders, meta, err := h.orders.AdminListOrders(c.UserContext(), c.Query("status"), page, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}
	return c.JSON(fiber.Map{"data": orders, "meta": meta})
}

func (h *AdminHandler) UpdateOrderStatus(c *fiber.Ctx) error {
	orderID, err := uuid.Parse(c.Params("orderId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid order ID"})
	}

	var req UpdateOrderStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	order, err := h.orders.UpdateOrderStatus(c.UserContext(), orderID, models.OrderStatus(req.Status))
	switch {
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Order not found"})
	case errors.Is(err, services.ErrInvalidTransition), errors.Is(err, services.ErrOrderNotPaid):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update order"})
	}
	return c.JSON(order)
}

func (h *AdminHandler) GetDashboardAnalytics(c *fiber.Ctx) error {
	response, err := h.orders.Dashboard(c.UserContext())
	if err != nil {
		logrus.WithError(err).Error("🔥 Failed to build dashboard")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}
	return c.JSON(response)
}

func (h *AdminHandler) ListCallbacks(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	events, err := h.reconciler.ListEvents(c.UserContext(), c.Query("status"), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}
	return c.JSON(events)
}

func (h *AdminHandler) ReplayCallback(c *fiber.Ctx) error {
	eventID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid callback ID"})
	}

	outcome, err := h.reconciler.ReplayEvent(c.UserContext(), eventID)
	if errors.Is(err, services.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Callback not found"})
	}
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"success": false, "error": err.Error()})
	}

	return c.JSON(fiber.Map{
		"success":        true,
		"payment_id":     outcome.Payment.ID,
		"payment_status": outcome.Payment.Status,
		"order_created":  outcome.OrderCreated,
		"changed":        outcome.Changed,
	})
}

func (h *AdminHandler) GetUsers(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "10"))

	users, meta, err := h.users.ListUsers(c.UserContext(), c.Query("search"), page, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}
	return c.JSON(fiber.Map{"data": users, "meta": meta})
}

func (h *AdminHandler) UpdateUserRole(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("userId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user ID"})
	}

	var req UpdateUserRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	user, err := h.users.UpdateRole(c.UserContext(), middleware.CurrentUserID(c), userID, req.Role)
	return userUpdateResponse(c, user, err)
}

func (h *AdminHandler) UpdateUserStatus(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("userId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user ID"})
	}

	var req UpdateUserStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	user, err := h.users.UpdateStatus(c.UserContext(), middleware.CurrentUserID(c), userID, *req.IsActive)
	return userUpdateResponse(c, user, err)
}

func userUpdateResponse(c *fiber.Ctx, user *models.User, err error) error {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	case errors.Is(err, services.ErrSelfModification):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidRole):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case err != nil:
		logrus.WithError(err).Error("🔥 Failed to update user")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update user"})
	}
	return c.JSON(user)
}
