// Package app wires the storefront's services and HTTP routes together.
package app

import (
	"context"
	"time"

	config "github.com/anjiri1684/zukih_store/configs"
	"github.com/anjiri1684/zukih_store/handlers"
	"github.com/anjiri1684/zukih_store/payments"
	"github.com/anjiri1684/zukih_store/routes"
	"github.com/anjiri1684/zukih_store/services"
	"github.com/anjiri1684/zukih_store/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const Name = "Zukih Store"

// Options holds the collaborators that differ between production and tests.
type Options struct {
	Gateway      services.Gateway
	Tokens       handlers.TokenFetcher
	Mailer       services.Mailer
	PDFRenderer  services.PDFRenderer
	ReceiptStore services.ReceiptStore
	// AccessLog turns on fiber's request logger.
	AccessLog bool
}

type App struct {
	Config config.AppConfig
	Mpesa  config.MpesaConfig
	DB     *gorm.DB
	Hub    *websocket.Hub

	Auth       *services.AuthService
	Payments   *services.PaymentService
	Reconciler *services.ReconcileService
	Sweeper    *services.SweeperService
	Orders     *services.OrderService
	Receipts   *services.ReceiptService
	Users      *services.UserService

	opts Options
}

// New builds every service. When opts leaves the gateway unset, a Daraja client is made from mpesa.
func New(db *gorm.DB, cfg config.AppConfig, mpesa config.MpesaConfig, opts Options) *App {
	if opts.Gateway == nil || opts.Tokens == nil {
		client := payments.NewMpesaClient(mpesa)
		if opts.Gateway == nil {
			opts.Gateway = client
		}
		if opts.Tokens == nil {
			opts.Tokens = client
		}
	}
	if opts.PDFRenderer == nil {
		opts.PDFRenderer = services.ChromePDFRenderer{}
	}

	hub := websocket.NewHub()
	reconciler := services.NewReconcileService(db, hub, opts.Mailer, cfg.CallbackMaxTries)

	return &App{
		Config:     cfg,
		Mpesa:      mpesa,
		DB:         db,
		Hub:        hub,
		Auth:       services.NewAuthService(db, cfg.JWTSecret),
		Payments:   services.NewPaymentService(db, opts.Gateway, mpesa),
		Reconciler: reconciler,
		Sweeper:    services.NewSweeperService(db, opts.Gateway, reconciler, hub, cfg.PaymentTimeout),
		Orders:     services.NewOrderService(db),
		Receipts:   services.NewReceiptService(db, opts.PDFRenderer, opts.ReceiptStore),
		Users:      services.NewUserService(db),
		opts:       opts,
	}
}

// Start runs the websocket hub until ctx is done.
func (a *App) Start(ctx context.Context) {
	go a.Hub.Run(ctx)
}

func (a *App) Fiber() *fiber.App {
	server := fiber.New(fiber.Config{
		AppName:       Name,
		CaseSensitive: true,
		StrictRouting: true,
		ReadTimeout:   15 * time.Second,
		WriteTimeout:  30 * time.Second,
		IdleTimeout:   60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}

			logrus.WithFields(logrus.Fields{"path": c.Path(), "method": c.Method()}).WithError(err).Error("[ERROR] request failed")
			return c.Status(code).JSON(fiber.Map{
				"status":  "error",
				"code":    code,
				"message": err.Error(),
			})
		},
	})

	server.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:  "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders: "Content-Length, Content-Disposition",
		MaxAge:        86400,
	}))
	server.Use(recover.New())
	if a.opts.AccessLog {
		server.Use(logger.New(logger.Config{
			TimeFormat: "2006-01-02 15:04:05",
			TimeZone:   "Africa/Nairobi",
			Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
		}))
	}

	paymentHandler := handlers.NewPaymentHandler(a.Payments, a.Reconciler, a.Mpesa, a.opts.Tokens)
	orderHandler := handlers.NewOrderHandler(a.Orders, a.Receipts)

	routes.PublicRoutes(server, Name)
	routes.AuthRoutes(server, handlers.NewAuthHandler(a.Auth, a.opts.Mailer))
	routes.PaymentRoutes(server, paymentHandler, orderHandler, a.Config.JWTSecret)
	routes.AdminRoutes(server,
		handlers.NewAdminHandler(a.Orders, a.Users, a.Reconciler),
		paymentHandler,
		handlers.NewUploadHandler(config.Config("CLOUDINARY_URL"), a.Config.MediaFolder),
		a.Users,
		a.Config.JWTSecret,
	)
	routes.WebsocketRoutes(server, handlers.NewWebsocketHandler(a.Hub, a.Config.JWTSecret))

	return server
}
