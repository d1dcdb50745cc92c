package routes

import (
	"github.com/anjiri1684/zukih_store/handlers"
	"github.com/anjiri1684/zukih_store/middleware"
	"github.com/gofiber/fiber/v2"
)

func AdminRoutes(app *fiber.App, admin *handlers.AdminHandler, payment *handlers.PaymentHandler, uploads *handlers.UploadHandler, roles middleware.RoleLookup, jwtSecret string) {
	group := app.Group("/api/v1/admin", middleware.Protected(jwtSecret), middleware.AdminRequired(roles))

	group.Get("/dashboard", admin.GetDashboardAnalytics)
	group.Get("/payments", admin.GetPayments)

	orders := group.Group("/orders")
	orders.Get("", admin.GetOrders)
	orders.Put("/:orderId/status", admin.UpdateOrderStatus)

	users := group.Group("/users")
	users.Get("", admin.GetUsers)
	users.Put("/:userId/role", admin.UpdateUserRole)
	users.Put("/:userId/status", admin.UpdateUserStatus)

	callbacks := group.Group("/callbacks")
	callbacks.Get("", admin.ListCallbacks)
	callbacks.Post("/:id/replay", admin.ReplayCallback)

	group.Get("/mpesa/verify", payment.VerifyCredentials)
	group.Get("/media/signature", uploads.GenerateUploadSignature)
}
