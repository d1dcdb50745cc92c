package jobs

import (
	"context"
	"time"

	"github.com/anjiri1684/zukih_store/services"
	"github.com/sirupsen/logrus"
)

// PaymentTimeoutJob settles payments whose STK prompt was never answered.
func PaymentTimeoutJob(sweeper *services.SweeperService) func() {
	return func() {
		logrus.Debug("Running job: PaymentTimeoutJob...")

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		if _, err := sweeper.Sweep(ctx); err != nil {
			logrus.WithError(err).Error("Error sweeping stale payments")
		}
	}
}
