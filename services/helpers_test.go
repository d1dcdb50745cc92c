package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	config "github.com/anjiri1684/zukih_store/configs"
	"github.com/anjiri1684/zukih_store/models"
	"github.com/anjiri1684/zukih_store/payments"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeGateway struct {
	mu         sync.Mutex
	pushes     []payments.STKPushParams
	pushResp   *payments.StkPushResponse
	pushErr    error
	queryResp  *payments.StkQueryResponse
	queryErr   error
	queryCalls int
}

func acceptingGateway(checkoutID string) *fakeGateway {
	return &fakeGateway{pushResp: &payments.StkPushResponse{
		MerchantRequestID: "29115-34620561-1",
		CheckoutRequestID: checkoutID,
		ResponseCode:      "0",
		CustomerMessage:   "Success. Request accepted for processing",
		Raw:               []byte(fmt.Sprintf(`{"CheckoutRequestID":%q,"ResponseCode":"0"}`, checkoutID)),
	}}
}

func (f *fakeGateway) STKPush(ctx context.Context, params payments.STKPushParams) (*payments.StkPushResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushes = append(f.pushes, params)
	return f.pushResp, f.pushErr
}

func (f *fakeGateway) QueryStatus(ctx context.Context, checkoutRequestID string) (*payments.StkQueryResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryCalls++
	return f.queryResp, f.queryErr
}

type update struct {
	userID uuid.UUID
	update PaymentUpdate
}

type recordingNotifier struct {
	mu      sync.Mutex
	updates []update
}

func (n *recordingNotifier) PaymentStatusChanged(userID uuid.UUID, u PaymentUpdate) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updates = append(n.updates, update{userID: userID, update: u})
}

func (n *recordingNotifier) all() []update {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]update(nil), n.updates...)
}

type sentMail struct {
	toEmail string
	subject string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *recordingMailer) SendEmail(toName, toEmail, subject, htmlContent string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{toEmail: toEmail, subject: subject})
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func testMpesaConfig() config.MpesaConfig {
	return config.MpesaConfig{
		ConsumerKey:     "key",
		ConsumerSecret:  "secret",
		Passkey:         "passkey",
		Shortcode:       "174379",
		CallbackURL:     "https://shop.example.com/api/mpesa/callback",
		BaseURL:         config.MpesaSandboxBaseURL,
		TransactionType: "CustomerPayBillOnline",
	}
}

func createUser(t *testing.T, db *gorm.DB, email string) models.User {
	t.Helper()
	user := models.User{FullName: "Jane Wanjiku", Email: email, Password: "x", IsActive: true}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func createPayment(t *testing.T, db *gorm.DB, userID uuid.UUID, orderNumber, checkoutID string, status models.PaymentStatus) models.Payment {
	t.Helper()
	payment := models.Payment{
		UserID:        userID,
		OrderNumber:   orderNumber,
		Amount:        1000,
		Currency:      "KES",
		PaymentMethod: "mpesa",
		PhoneNumber:   "254708374149",
		Status:        status,
	}
	if checkoutID != "" {
		payment.CheckoutRequestID = &checkoutID
	}
	require.NoError(t, db.Create(&payment).Error)
	return payment
}

func successCallback(checkoutID, receipt string, amount float64) []byte {
	return []byte(fmt.Sprintf(`{"Body":{"stkCallback":{
		"MerchantRequestID":"29115-34620561-1",
		"CheckoutRequestID":%q,
		"ResultCode":0,
		"ResultDesc":"The service request is processed successfully.",
		"CallbackMetadata":{"Item":[
			{"Name":"Amount","Value":%.2f},
			{"Name":"MpesaReceiptNumber","Value":%q},
			{"Name":"TransactionDate","Value":20191219102115},
			{"Name":"PhoneNumber","Value":254708374149}
		]}}}}`, checkoutID, amount, receipt))
}

func failureCallback(checkoutID string, code int) []byte {
	return []byte(fmt.Sprintf(`{"Body":{"stkCallback":{
		"MerchantRequestID":"29115-34620561-2",
		"CheckoutRequestID":%q,
		"ResultCode":%d,
		"ResultDesc":"Request cancelled by user"}}}`, checkoutID, code))
}

func reload[T any](t *testing.T, db *gorm.DB, id uuid.UUID) T {
	t.Helper()
	var out T
	require.NoError(t, db.First(&out, "id = ?", id).Error)
	return out
}
