package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/anjiri1684/zukih_store/app"
	config "github.com/anjiri1684/zukih_store/configs"
	"github.com/anjiri1684/zukih_store/database"
	"github.com/anjiri1684/zukih_store/jobs"
	"github.com/anjiri1684/zukih_store/metrics"
	"github.com/anjiri1684/zukih_store/notifications"
	"github.com/anjiri1684/zukih_store/services"
	"github.com/sirupsen/logrus"
)

func main() {
	config.SetupLogger()
	metrics.Register()

	appConfig := config.LoadApp()
	if appConfig.JWTSecret == "" {
		logrus.Fatal("🔥 JWT_SECRET is not set")
	}

	mpesaConfig := config.LoadMpesa()
	if err := mpesaConfig.Validate(); err != nil {
		logrus.WithError(err).Warn("⚠️ M-Pesa is not fully configured; payment initiation will fail")
	}
	logrus.WithFields(mpesaConfig.Masked()).Info("M-Pesa configuration loaded")

	db := database.ConnectDB()
	if err := database.Migrate(db); err != nil {
		logrus.Fatalf("🔥 %v", err)
	}
	if err := database.SeedAdmin(db, config.ConfigDefault("ADMIN_NAME", "Store Admin"), config.Config("ADMIN_EMAIL"), config.Config("ADMIN_PASSWORD")); err != nil {
		logrus.WithError(err).Error("🔥 Failed to seed admin user")
	}

	opts := app.Options{
		Mailer:    notifications.NewEmailService(),
		AccessLog: true,
	}
	if cloudinaryURL := config.Config("CLOUDINARY_URL"); cloudinaryURL != "" {
		store, err := services.NewCloudinaryReceiptStore(cloudinaryURL, appConfig.ReceiptFolder)
		if err != nil {
			logrus.WithError(err).Warn("⚠️ Cloudinary not available, receipts will not be archived")
		} else {
			opts.ReceiptStore = store
		}
	}

	storefront := app.New(db, appConfig, mpesaConfig, opts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	storefront.Start(ctx)

	scheduler, err := jobs.NewScheduler(appConfig.SweepSchedule, appConfig.RetrySchedule, storefront.Sweeper, storefront.Reconciler)
	if err != nil {
		logrus.Fatalf("🔥 Invalid job schedule: %v", err)
	}
	scheduler.Start()
	logrus.Info("✅ Payment sweep and callback retry jobs scheduled successfully.")

	server := storefront.Fiber()
	go func() {
		<-ctx.Done()
		logrus.Info("Shutting down...")
		<-scheduler.Stop().Done()
		if err := server.Shutdown(); err != nil {
			logrus.WithError(err).Error("Server shutdown failed")
		}
	}()

	logrus.Infof("✅ Server is running on port %s", appConfig.Port)
	if err := server.Listen(":" + appConfig.Port); err != nil {
		logrus.Fatalf("🔥 Server failed to start: %v", err)
	}
}
