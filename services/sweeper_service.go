package services

import (
	"context"
	"fmt"
	"time"

	"github.com/anjiri1684/zukih_store/metrics"
	"github.com/anjiri1684/zukih_store/models"
	"github.com/anjiri1684/zukih_store/payments"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type SweepReport struct {
	Checked   int `json:"checked"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}

// SweeperService settles payments whose callback never arrived.
type SweeperService struct {
	db         *gorm.DB
	gateway    Gateway
	reconciler *ReconcileService
	notifier   Notifier
	timeout    time.Duration
	now        func() time.Time
}

func NewSweeperService(db *gorm.DB, gateway Gateway, reconciler *ReconcileService, notifier Notifier, timeout time.Duration) *SweeperService {
	return &SweeperService{
		db:         db,
		gateway:    gateway,
		reconciler: reconciler,
		notifier:   notifier,
		timeout:    timeout,
		now:        time.Now,
	}
}

// Sweep asks the gateway about every stale pending or processing payment. A known
// outcome is reconciled like a callback; anything else cancels the payment.
func (s *SweeperService) Sweep(ctx context.Context) (*SweepReport, error) {
	cutoff := s.now().Add(-s.timeout)

	var stale []models.Payment
	err := s.db.WithContext(ctx).
		Where("status IN ? AND created_at < ?", models.PaymentStatusesBefore(models.PaymentCancelled), cutoff).
		Order("created_at asc").
		Find(&stale).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load stale payments: %w", err)
	}

	report := &SweepReport{}
	for i := range stale {
		report.Checked++
		switch s.settle(ctx, &stale[i]) {
		case models.PaymentCompleted:
			report.Completed++
		case models.PaymentFailed:
			report.Failed++
		case models.PaymentCancelled:
			report.Cancelled++
		}
	}

	if report.Checked > 0 {
		logrus.WithFields(logrus.Fields{
			"checked":   report.Checked,
			"completed": report.Completed,
			"failed":    report.Failed,
			"cancelled": report.Cancelled,
		}).Info("Payment timeout sweep finished")
	}
	return report, nil
}

func (s *SweeperService) settle(ctx context.Context, payment *models.Payment) models.PaymentStatus {
	log := logrus.WithFields(logrus.Fields{"payment_id": payment.ID, "order_number": payment.OrderNumber})

	if payment.CheckoutRequestID != nil && *payment.CheckoutRequestID != "" && s.gateway != nil {
		query, err := s.gateway.QueryStatus(ctx, *payment.CheckoutRequestID)
		if err != nil {
			log.WithError(err).Debug("STK query gave no outcome, cancelling")
		} else if query != nil {
			if status, settled := s.settleFromQuery(ctx, payment, query); settled {
				return status
			}
		}
	}

	res := s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status IN ?", payment.ID, models.PaymentStatusesBefore(models.PaymentCancelled)).
		Update("status", models.PaymentCancelled)
	if res.Error != nil {
		log.WithError(res.Error).Error("🔥 Failed to cancel stale payment")
		return ""
	}
	if res.RowsAffected == 0 {
		return ""
	}

	metrics.SweptPayments.WithLabelValues(string(models.PaymentCancelled)).Inc()
	log.Info("Stale payment cancelled")
	if s.notifier != nil {
		s.notifier.PaymentStatusChanged(payment.UserID, PaymentUpdate{
			PaymentID:   payment.ID,
			OrderNumber: payment.OrderNumber,
			Status:      models.PaymentCancelled,
			Message:     "Payment timed out",
		})
	}
	return models.PaymentCancelled
}

// settleFromQuery reconciles a query that carries a result code. settled is false when it does not.
func (s *SweeperService) settleFromQuery(ctx context.Context, payment *models.Payment, query *payments.StkQueryResponse) (models.PaymentStatus, bool) {
	code, ok := query.ResultCodeInt()
	if !ok {
		return "", false
	}

	outcome, err := s.reconciler.Reconcile(ctx, &payments.CallbackResult{
		MerchantRequestID: query.MerchantRequestID,
		CheckoutRequestID: *payment.CheckoutRequestID,
		ResultCode:        code,
		ResultDesc:        query.ResultDesc,
		Raw:               query.Raw,
	})
	if err != nil {
		logrus.WithError(err).WithField("payment_id", payment.ID).Error("🔥 Failed to reconcile swept payment")
		return "", true
	}
	metrics.SweptPayments.WithLabelValues(string(outcome.Payment.Status)).Inc()
	return outcome.Payment.Status, true
}
