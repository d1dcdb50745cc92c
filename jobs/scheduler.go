package jobs

import (
	"github.com/anjiri1684/zukih_store/services"
	"github.com/robfig/cron/v3"
)

// NewScheduler registers the payment housekeeping jobs on a cron scheduler that has not been started.
func NewScheduler(sweepSpec, retrySpec string, sweeper *services.SweeperService, reconciler *services.ReconcileService) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(sweepSpec, PaymentTimeoutJob(sweeper)); err != nil {
		return nil, err
	}
	if _, err := c.AddFunc(retrySpec, CallbackRetryJob(reconciler)); err != nil {
		return nil, err
	}
	return c, nil
}
