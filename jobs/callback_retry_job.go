package jobs

import (
	"context"
	"time"

	"github.com/anjiri1684/zukih_store/services"
	"github.com/sirupsen/logrus"
)

const retryBatchSize = 50

func CallbackRetryJob(reconciler *services.ReconcileService) func() {
	return func() {
		logrus.Debug("Running job: CallbackRetryJob...")

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		replayed, succeeded, err := reconciler.ReplayFailed(ctx, retryBatchSize)
		if err != nil {
			logrus.WithError(err).Error("Error replaying failed callbacks")
			return
		}
		if replayed > 0 {
			logrus.WithFields(logrus.Fields{"replayed": replayed, "succeeded": succeeded}).Info("Replayed failed M-Pesa callbacks")
		}
	}
}
