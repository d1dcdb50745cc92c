package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/anjiri1684/zukih_store/metrics"
	"github.com/anjiri1684/zukih_store/models"
	"github.com/anjiri1684/zukih_store/payments"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Notifier is told whenever a payment reaches a terminal status.
type Notifier interface {
	PaymentStatusChanged(userID uuid.UUID, update PaymentUpdate)
}

type Mailer interface {
	SendEmail(toName, toEmail, subject, htmlContent string)
}

type PaymentUpdate struct {
	PaymentID     uuid.UUID            `json:"payment_id"`
	OrderNumber   string               `json:"order_number"`
	Status        models.PaymentStatus `json:"status"`
	ReceiptNumber string               `json:"receipt_number,omitempty"`
	Message       string               `json:"message,omitempty"`
}

// Outcome describes what one reconciliation did.
type Outcome struct {
	Payment      models.Payment
	Order        *models.Order
	OrderCreated bool
	// Changed is false when the callback was a redelivery that left everything as it was.
	Changed bool
}

// receivedGracePeriod is how long an event may sit in received before it counts as abandoned.
const receivedGracePeriod = 5 * time.Minute

type ReconcileService struct {
	db          *gorm.DB
	notifier    Notifier
	mailer      Mailer
	maxAttempts int
	mail        sync.WaitGroup
}

func NewReconcileService(db *gorm.DB, notifier Notifier, mailer Mailer, maxAttempts int) *ReconcileService {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &ReconcileService{db: db, notifier: notifier, mailer: mailer, maxAttempts: maxAttempts}
}

// HandleCallback stores the raw callback, then reconciles it. The returned error is for
// logging only: the event stays in the failed state and is picked up by ReplayFailed.
func (s *ReconcileService) HandleCallback(ctx context.Context, raw []byte) (*Outcome, error) {
	event := models.CallbackEvent{
		Payload: storablePayload(raw),
		Status:  models.CallbackReceived,
	}
	if result, err := payments.ParseCallback(raw); err == nil {
		event.CheckoutRequestID = result.CheckoutRequestID
		event.MerchantRequestID = result.MerchantRequestID
		code := result.ResultCode
		event.ResultCode = &code
	}

	if err := s.db.WithContext(ctx).Create(&event).Error; err != nil {
		logrus.WithError(err).Error("🔥 Failed to store callback event, processing without a dead-letter record")
		return s.process(ctx, raw)
	}

	return s.processEvent(ctx, &event)
}

// ReplayFailed re-runs failed callback events that are still under the attempt cap, and
// events left in received for longer than receivedGracePeriod.
func (s *ReconcileService) ReplayFailed(ctx context.Context, limit int) (replayed, succeeded int, err error) {
	if limit <= 0 {
		limit = 100
	}

	stuckBefore := time.Now().Add(-receivedGracePeriod)
	var events []models.CallbackEvent
	err = s.db.WithContext(ctx).
		Where("(status = ? OR (status = ? AND created_at < ?)) AND attempts < ?",
			models.CallbackFailed, models.CallbackReceived, stuckBefore, s.maxAttempts).
		Order("created_at asc").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return 0, 0, fmt.Errorf("failed to load failed callback events: %w", err)
	}

	for i := range events {
		replayed++
		if _, procErr := s.processEvent(ctx, &events[i]); procErr == nil {
			succeeded++
		}
	}
	return replayed, succeeded, nil
}

// ReplayEvent re-runs one stored callback regardless of its status or attempt count.
func (s *ReconcileService) ReplayEvent(ctx context.Context, eventID uuid.UUID) (*Outcome, error) {
	var event models.CallbackEvent
	if err := s.db.WithContext(ctx).First(&event, "id = ?", eventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.processEvent(ctx, &event)
}

func (s *ReconcileService) ListEvents(ctx context.Context, status string, limit int) ([]models.CallbackEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := s.db.WithContext(ctx).Order("created_at desc").Limit(limit)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var events []models.CallbackEvent
	return events, query.Find(&events).Error
}

func (s *ReconcileService) processEvent(ctx context.Context, event *models.CallbackEvent) (*Outcome, error) {
	outcome, procErr := s.process(ctx, event.Payload)

	now := time.Now()
	updates := map[string]interface{}{"attempts": event.Attempts + 1}
	if procErr != nil {
		updates["status"] = models.CallbackFailed
		updates["last_error"] = procErr.Error()
	} else {
		updates["status"] = models.CallbackProcessed
		updates["last_error"] = nil
		updates["processed_at"] = now
	}
	if err := s.db.WithContext(ctx).Model(&models.CallbackEvent{}).Where("id = ?", event.ID).Updates(updates).Error; err != nil {
		logrus.WithError(err).WithField("event_id", event.ID).Error("🔥 Failed to update callback event")
	}

	return outcome, procErr
}

func (s *ReconcileService) process(ctx context.Context, raw []byte) (*Outcome, error) {
	result, err := payments.ParseCallback(raw)
	if err != nil {
		metrics.Callbacks.WithLabelValues("unparseable").Inc()
		metrics.ReconciliationErrors.WithLabelValues("parse").Inc()
		return nil, err
	}

	label := "failed"
	if result.Succeeded() {
		label = "success"
	}
	metrics.Callbacks.WithLabelValues(label).Inc()

	logrus.WithFields(logrus.Fields{
		"checkout_request_id": result.CheckoutRequestID,
		"merchant_request_id": result.MerchantRequestID,
		"result_code":         result.ResultCode,
	}).Infof("Received M-Pesa callback: %s", result.ResultDesc)

	return s.Reconcile(ctx, result)
}

// Reconcile applies a decoded result to its payment and order in one transaction.
// Redelivered results leave the stored state untouched.
func (s *ReconcileService) Reconcile(ctx context.Context, result *payments.CallbackResult) (*Outcome, error) {
	var outcome Outcome

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payment, err := findPaymentForCallback(tx, result)
		if err != nil {
			return err
		}

		if result.Succeeded() {
			return applySuccess(tx, payment, result, &outcome)
		}
		return applyFailure(tx, payment, result, &outcome)
	})
	if err != nil {
		kind := "persistence"
		if errors.Is(err, ErrReconciliationMismatch) {
			kind = "mismatch"
		}
		metrics.ReconciliationErrors.WithLabelValues(kind).Inc()
		logrus.WithError(err).WithField("checkout_request_id", result.CheckoutRequestID).Error("🔥 CRITICAL: callback could not be reconciled")
		return nil, err
	}

	s.afterCommit(&outcome, result)
	return &outcome, nil
}

// findPaymentForCallback locks the payment a callback refers to. The checkout id is
// authoritative; the merchant id and the order number derived from the correlation
// id are fallbacks for payments whose ids were never stored.
func findPaymentForCallback(tx *gorm.DB, result *payments.CallbackResult) (*models.Payment, error) {
	lookups := []struct {
		name  string
		query string
		value string
	}{
		{"checkout_request_id", "mpesa_checkout_request_id = ?", result.CheckoutRequestID},
		{"merchant_request_id", "mpesa_merchant_request_id = ?", result.MerchantRequestID},
		{"order_number", "order_number = ?", orderNumberFromCorrelationID(result.CheckoutRequestID)},
	}

	for i, lookup := range lookups {
		if lookup.value == "" {
			continue
		}

		var payment models.Payment
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where(lookup.query, lookup.value).First(&payment).Error
		if err == nil {
			if i > 0 {
				logrus.WithFields(logrus.Fields{
					"lookup":              lookup.name,
					"value":               lookup.value,
					"payment_id":          payment.ID,
					"checkout_request_id": result.CheckoutRequestID,
				}).Warn("Payment matched by fallback lookup")
			}
			return &payment, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: payment lookup by %s: %v", ErrPersistenceFailure, lookup.name, err)
		}
	}

	return nil, fmt.Errorf("%w: no payment for checkout request %q", ErrReconciliationMismatch, result.CheckoutRequestID)
}

// orderNumberFromCorrelationID undoes the "Order" prefix the push puts on AccountReference.
func orderNumberFromCorrelationID(id string) string {
	if !strings.HasPrefix(id, "Order") {
		return ""
	}
	derived := strings.TrimPrefix(id, "Order")
	if len(derived) > 12 {
		derived = derived[:12]
	}
	return derived
}

func applySuccess(tx *gorm.DB, payment *models.Payment, result *payments.CallbackResult, outcome *Outcome) error {
	log := logrus.WithFields(logrus.Fields{"payment_id": payment.ID, "order_number": payment.OrderNumber})

	switch payment.Status {
	case models.PaymentCompleted:
		log.Info("Payment already completed, callback is a redelivery")
	case models.PaymentFailed, models.PaymentCancelled:
		return fmt.Errorf("%w: success callback for %s payment %s", ErrReconciliationMismatch, payment.Status, payment.ID)
	default:
		if !payment.Status.CanTransitionTo(models.PaymentCompleted) {
			return fmt.Errorf("%w: success callback for %s payment %s", ErrReconciliationMismatch, payment.Status, payment.ID)
		}
		if result.Amount > 0 && math.Abs(result.Amount-payment.Amount) >= 0.01 {
			log.WithField("callback_amount", result.Amount).Warnf("Callback amount differs from payment amount %.2f", payment.Amount)
		}

		updates := map[string]interface{}{
			"status":                   models.PaymentCompleted,
			"payment_gateway_response": storablePayload(result.Raw),
		}
		if result.ReceiptNumber != "" {
			updates["mpesa_receipt_number"] = result.ReceiptNumber
		}
		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status IN ?", payment.ID, models.PaymentStatusesBefore(models.PaymentCompleted)).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("%w: completing payment: %v", ErrPersistenceFailure, res.Error)
		}
		if res.RowsAffected > 0 {
			outcome.Changed = true
		}
		if err := tx.First(payment, "id = ?", payment.ID).Error; err != nil {
			return fmt.Errorf("%w: reloading payment: %v", ErrPersistenceFailure, err)
		}
		log.WithField("receipt", result.ReceiptNumber).Info("✅ Payment completed")
	}

	outcome.Payment = *payment
	return ensureOrder(tx, payment, result.PhoneNumber, outcome)
}

// ensureOrder attaches the payment to the order with the same order number, creating it if needed.
func ensureOrder(tx *gorm.DB, payment *models.Payment, phone string, outcome *Outcome) error {
	var order models.Order
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("order_number = ?", payment.OrderNumber).First(&order).Error
	switch {
	case err == nil:
		return attachPayment(tx, &order, payment, outcome)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: order lookup: %v", ErrPersistenceFailure, err)
	}

	email := ""
	name := ""
	var user models.User
	if err := tx.First(&user, "id = ?", payment.UserID).Error; err == nil {
		email, name = user.Email, user.FullName
	} else {
		logrus.WithError(err).WithField("user_id", payment.UserID).Warn("Could not load user for order contact details")
	}

	if phone == "" {
		phone = payment.PhoneNumber
	}

	paymentID := payment.ID
	order = models.Order{
		UserID:        payment.UserID,
		OrderNumber:   payment.OrderNumber,
		PaymentID:     &paymentID,
		Items:         orderItems(payment),
		TotalAmount:   payment.Amount,
		CustomerPhone: phone,
		CustomerEmail: email,
		CustomerName:  name,
		Status:        models.OrderConfirmed,
	}
	res := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "order_number"}}, DoNothing: true}).Create(&order)
	if res.Error != nil {
		return fmt.Errorf("%w: creating order: %v", ErrPersistenceFailure, res.Error)
	}

	if res.RowsAffected == 0 {
		// Someone else inserted the order between our lookup and insert.
		var existing models.Order
		if err := tx.Where("order_number = ?", payment.OrderNumber).First(&existing).Error; err != nil {
			return fmt.Errorf("%w: reloading order: %v", ErrPersistenceFailure, err)
		}
		return attachPayment(tx, &existing, payment, outcome)
	}

	logrus.WithFields(logrus.Fields{"order_id": order.ID, "order_number": order.OrderNumber}).Info("✅ Order created for payment")
	outcome.Order = &order
	outcome.OrderCreated = true
	outcome.Changed = true
	return nil
}

func attachPayment(tx *gorm.DB, order *models.Order, payment *models.Payment, outcome *Outcome) error {
	if order.PaymentID != nil && *order.PaymentID != payment.ID {
		return fmt.Errorf("%w: order %s is already paid by payment %s", ErrReconciliationMismatch, order.OrderNumber, order.PaymentID)
	}

	outcome.Order = order
	if order.PaymentID != nil && order.Status != models.OrderPending {
		return nil
	}

	paymentID := payment.ID
	updates := map[string]interface{}{"payment_id": paymentID}
	if order.Status == models.OrderPending {
		updates["status"] = models.OrderConfirmed
	}
	if err := tx.Model(order).Updates(updates).Error; err != nil {
		return fmt.Errorf("%w: attaching payment to order: %v", ErrPersistenceFailure, err)
	}
	order.PaymentID = &paymentID
	if order.Status == models.OrderPending {
		order.Status = models.OrderConfirmed
	}

	logrus.WithFields(logrus.Fields{"order_id": order.ID, "payment_id": payment.ID}).Info("Order already existed, attached payment")
	outcome.Changed = true
	return nil
}

func orderItems(payment *models.Payment) []models.OrderItem {
	if len(payment.Items) > 0 {
		return payment.Items
	}
	return []models.OrderItem{{
		ID:       "default",
		Name:     "Products",
		Price:    payment.Amount,
		Quantity: 1,
		Image:    "/product.png",
		Slug:     "products",
	}}
}

func applyFailure(tx *gorm.DB, payment *models.Payment, result *payments.CallbackResult, outcome *Outcome) error {
	log := logrus.WithFields(logrus.Fields{"payment_id": payment.ID, "result_code": result.ResultCode})

	if payment.Status.IsTerminal() {
		if payment.Status == models.PaymentCompleted {
			log.Warn("Ignoring failure callback for a completed payment")
		}
		outcome.Payment = *payment
		return nil
	}
	if !payment.Status.CanTransitionTo(models.PaymentFailed) {
		return fmt.Errorf("%w: failure callback for %s payment %s", ErrReconciliationMismatch, payment.Status, payment.ID)
	}

	res := tx.Model(&models.Payment{}).
		Where("id = ? AND status IN ?", payment.ID, models.PaymentStatusesBefore(models.PaymentFailed)).
		Updates(map[string]interface{}{
			"status":                   models.PaymentFailed,
			"payment_gateway_response": storablePayload(result.Raw),
		})
	if res.Error != nil {
		return fmt.Errorf("%w: failing payment: %v", ErrPersistenceFailure, res.Error)
	}
	if err := tx.First(payment, "id = ?", payment.ID).Error; err != nil {
		return fmt.Errorf("%w: reloading payment: %v", ErrPersistenceFailure, err)
	}

	outcome.Payment = *payment
	outcome.Changed = res.RowsAffected > 0
	log.Infof("Payment marked as failed: %s", result.ResultDesc)
	return nil
}

func (s *ReconcileService) afterCommit(outcome *Outcome, result *payments.CallbackResult) {
	if !outcome.Changed {
		return
	}

	payment := outcome.Payment
	if s.notifier != nil && payment.Status.IsTerminal() {
		update := PaymentUpdate{
			PaymentID:   payment.ID,
			OrderNumber: payment.OrderNumber,
			Status:      payment.Status,
			Message:     result.ResultDesc,
		}
		if payment.ReceiptNumber != nil {
			update.ReceiptNumber = *payment.ReceiptNumber
		}
		s.notifier.PaymentStatusChanged(payment.UserID, update)
	}

	if s.mailer != nil && outcome.Order != nil && payment.Status == models.PaymentCompleted && outcome.Order.CustomerEmail != "" {
		order := *outcome.Order
		s.mail.Add(1)
		go func() {
			defer s.mail.Done()
			s.mailer.SendEmail(order.CustomerName, order.CustomerEmail,
				fmt.Sprintf("Order %s confirmed", order.OrderNumber),
				orderConfirmationHTML(order, payment))
		}()
	}
}

// WaitForMail blocks until every confirmation email started so far has been handed to the mailer.
func (s *ReconcileService) WaitForMail() {
	s.mail.Wait()
}

func orderConfirmationHTML(order models.Order, payment models.Payment) string {
	receipt := "Pending"
	if payment.ReceiptNumber != nil {
		receipt = *payment.ReceiptNumber
	}
	return fmt.Sprintf(
		"<h1>Order Confirmed</h1><p>Thank you for shopping with us. We received your M-Pesa payment of KSH %.2f for order <b>%s</b>.</p><p>M-Pesa receipt: %s</p>",
		order.TotalAmount, order.OrderNumber, receipt,
	)
}

// storablePayload makes sure a body can go into a jsonb column.
func storablePayload(raw []byte) datatypes.JSON {
	if json.Valid(raw) {
		return datatypes.JSON(raw)
	}
	wrapped, _ := json.Marshal(map[string]string{"invalid_body": string(raw)})
	return datatypes.JSON(wrapped)
}
