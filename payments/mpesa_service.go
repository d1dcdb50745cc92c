package payments

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	config "github.com/anjiri1684/zukih_store/configs"
	"github.com/anjiri1684/zukih_store/metrics"
	"github.com/sirupsen/logrus"
)

const (
	stkPushPath  = "/mpesa/stkpush/v1/processrequest"
	stkQueryPath = "/mpesa/stkpushquery/v1/query"

	// ResponseAccepted is the ResponseCode the gateway returns when it accepted a request.
	ResponseAccepted = "0"

	timestampLayout = "20060102150405"
	accountRefLimit = 12
	descLimit       = 13
)

// nairobi is the gateway's clock; timestamps must be in East Africa Time.
var nairobi = time.FixedZone("EAT", 3*60*60)

type StkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type StkPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`

	// Raw is the body exactly as the gateway sent it.
	Raw json.RawMessage `json:"-"`
}

type StkQueryResponse struct {
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResultCode          string `json:"ResultCode"`
	ResultDesc          string `json:"ResultDesc"`

	Raw json.RawMessage `json:"-"`
}

type gatewayErrorBody struct {
	RequestID    string `json:"requestId"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// STKPushParams is what a caller knows about a push; credentials come from the client config.
type STKPushParams struct {
	Phone       string
	Amount      float64
	OrderNumber string
}

// MpesaClient talks to the Daraja API. It is safe for concurrent use.
type MpesaClient struct {
	cfg        config.MpesaConfig
	httpClient *http.Client
	now        func() time.Time

	tokenMu     sync.RWMutex
	token       string
	tokenExpiry time.Time
}

type Option func(*MpesaClient)

func WithHTTPClient(c *http.Client) Option {
	return func(m *MpesaClient) { m.httpClient = c }
}

func WithClock(now func() time.Time) Option {
	return func(m *MpesaClient) { m.now = now }
}

func NewMpesaClient(cfg config.MpesaConfig, opts ...Option) *MpesaClient {
	m := &MpesaClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MpesaClient) Config() config.MpesaConfig {
	return m.cfg
}

// Timestamp formats t as YYYYMMDDHHmmss in the gateway's timezone.
func Timestamp(t time.Time) string {
	return t.In(nairobi).Format(timestampLayout)
}

// Password is base64(shortcode + passkey + timestamp).
func Password(shortcode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortcode + passkey + timestamp))
}

// AccountReference is the reference shown to the payer; the gateway caps it at 12 characters.
func AccountReference(orderNumber string) string {
	ref := "Order" + orderNumber
	if len(ref) > accountRefLimit {
		ref = ref[:accountRefLimit]
	}
	return ref
}

func transactionDesc(orderNumber string) string {
	desc := "Order " + orderNumber
	if len(desc) > descLimit {
		desc = desc[:descLimit]
	}
	return desc
}

// STKPush sends a push request. A ResponseCode other than "0" is returned as an
// ErrGatewayRejected error together with the decoded response.
func (m *MpesaClient) STKPush(ctx context.Context, params STKPushParams) (*StkPushResponse, error) {
	phone, err := SanitizeMpesaNumber(params.Phone)
	if err != nil {
		return nil, err
	}

	accessToken, err := m.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := Timestamp(m.now())
	payload := StkPushRequest{
		BusinessShortCode: m.cfg.Shortcode,
		Password:          Password(m.cfg.Shortcode, m.cfg.Passkey, timestamp),
		Timestamp:         timestamp,
		TransactionType:   m.cfg.TransactionType,
		Amount:            int64(math.Round(params.Amount)),
		PartyA:            phone,
		PartyB:            m.cfg.Shortcode,
		PhoneNumber:       phone,
		CallBackURL:       m.cfg.CallbackURL,
		AccountReference:  AccountReference(params.OrderNumber),
		TransactionDesc:   transactionDesc(params.OrderNumber),
	}

	body, status, err := m.postJSON(ctx, "stkpush", stkPushPath, accessToken, payload)
	if err != nil {
		return nil, err
	}

	if status < 200 || status > 299 {
		var gwErr gatewayErrorBody
		_ = json.Unmarshal(body, &gwErr)
		logrus.WithFields(logrus.Fields{
			"status":       status,
			"order_number": params.OrderNumber,
		}).Errorf("M-Pesa STK push API error: %s", string(body))
		e := unavailable("stkpush", status, body, nil)
		e.Code, e.Message = gwErr.ErrorCode, gwErr.ErrorMessage
		return nil, e
	}

	var stkResponse StkPushResponse
	if err := json.Unmarshal(body, &stkResponse); err != nil {
		return nil, unavailable("stkpush", status, body, fmt.Errorf("failed to unmarshal STK response: %w", err))
	}
	stkResponse.Raw = body

	if stkResponse.ResponseCode != ResponseAccepted {
		return &stkResponse, rejected("stkpush", stkResponse.ResponseCode, stkResponse.ResponseDescription, body)
	}

	return &stkResponse, nil
}

// QueryStatus asks the gateway for the outcome of an earlier push.
func (m *MpesaClient) QueryStatus(ctx context.Context, checkoutRequestID string) (*StkQueryResponse, error) {
	accessToken, err := m.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := Timestamp(m.now())
	payload := map[string]string{
		"BusinessShortCode": m.cfg.Shortcode,
		"Password":          Password(m.cfg.Shortcode, m.cfg.Passkey, timestamp),
		"Timestamp":         timestamp,
		"CheckoutRequestID": checkoutRequestID,
	}

	body, status, err := m.postJSON(ctx, "stkquery", stkQueryPath, accessToken, payload)
	if err != nil {
		return nil, err
	}

	if status < 200 || status > 299 {
		var gwErr gatewayErrorBody
		_ = json.Unmarshal(body, &gwErr)
		e := unavailable("stkquery", status, body, nil)
		e.Code, e.Message = gwErr.ErrorCode, gwErr.ErrorMessage
		return nil, e
	}

	var queryResponse StkQueryResponse
	if err := json.Unmarshal(body, &queryResponse); err != nil {
		return nil, unavailable("stkquery", status, body, fmt.Errorf("failed to unmarshal query response: %w", err))
	}
	queryResponse.Raw = body

	if queryResponse.ResponseCode != ResponseAccepted {
		return &queryResponse, rejected("stkquery", queryResponse.ResponseCode, queryResponse.ResponseDescription, body)
	}
	return &queryResponse, nil
}

// ResultCodeInt parses ResultCode; ok is false when the gateway has no outcome yet.
func (q *StkQueryResponse) ResultCodeInt() (code int, ok bool) {
	if q.ResultCode == "" {
		return 0, false
	}
	n, err := strconv.Atoi(q.ResultCode)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (m *MpesaClient) postJSON(ctx context.Context, op, path, accessToken string, payload interface{}) ([]byte, int, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, unavailable(op, 0, nil, fmt.Errorf("failed to marshal payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.BaseURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return nil, 0, unavailable(op, 0, nil, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := m.do(req, op)
	if err != nil {
		return nil, 0, unavailable(op, 0, nil, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, unavailable(op, resp.StatusCode, nil, fmt.Errorf("failed to read response body: %w", err))
	}
	logrus.WithFields(logrus.Fields{"op": op, "status": resp.StatusCode}).Debugf("M-Pesa response: %s", string(body))

	return body, resp.StatusCode, nil
}

func (m *MpesaClient) do(req *http.Request, endpoint string) (*http.Response, error) {
	start := time.Now()
	resp, err := m.httpClient.Do(req)
	metrics.GatewayDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	return resp, err
}
