package routes

import (
	"github.com/anjiri1684/zukih_store/handlers"
	"github.com/anjiri1684/zukih_store/middleware"
	"github.com/gofiber/fiber/v2"
)

// PaymentRoutes mounts the M-Pesa endpoints and the customer's own orders and payments.
func PaymentRoutes(app *fiber.App, payment *handlers.PaymentHandler, orders *handlers.OrderHandler, jwtSecret string) {
	protected := middleware.Protected(jwtSecret)

	app.Post("/api/mpesa", protected, payment.InitiatePayment)
	app.Post("/api/mpesa/callback", payment.HandleCallback)

	orderGroup := app.Group("/api/v1/orders", protected)
	orderGroup.Get("", orders.GetMyOrders)
	orderGroup.Get("/:orderNumber/receipt", orders.DownloadReceipt)

	paymentGroup := app.Group("/api/v1/payments", protected)
	paymentGroup.Get("", orders.GetMyPayments)
	paymentGroup.Get("/:paymentId", orders.GetPaymentStatus)
}
