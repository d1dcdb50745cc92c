package payments

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	config "github.com/anjiri1684/zukih_store/configs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDaraja struct {
	server      *httptest.Server
	tokenCalls  atomic.Int32
	pushCalls   atomic.Int32
	tokenStatus int
	pushStatus  int
	pushCode    string
	lastPush    StkPushRequest
}

func newFakeDaraja(t *testing.T) *fakeDaraja {
	f := &fakeDaraja{tokenStatus: http.StatusOK, pushStatus: http.StatusOK, pushCode: "0"}
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(f.tokenStatus)
		if f.tokenStatus == http.StatusOK {
			w.Write([]byte(`{"access_token":"tok-123","expires_in":"3599"}`))
		}
	})
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		f.pushCalls.Add(1)
		if r.Header.Get("Authorization") != "Bearer tok-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewDecoder(r.Body).Decode(&f.lastPush)
		w.WriteHeader(f.pushStatus)
		if f.pushStatus != http.StatusOK {
			w.Write([]byte(`{"requestId":"r-1","errorCode":"400.002.02","errorMessage":"Bad Request - Invalid Amount"}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]string{
			"MerchantRequestID":   "29115-34620561-1",
			"CheckoutRequestID":   "ws_CO_191220191020363925",
			"ResponseCode":        f.pushCode,
			"ResponseDescription": "Success. Request accepted for processing",
			"CustomerMessage":     "Success. Request accepted for processing",
		})
	})
	mux.HandleFunc("/mpesa/stkpushquery/v1/query", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"ResponseCode":      "0",
			"CheckoutRequestID": "ws_CO_191220191020363925",
			"ResultCode":        "1032",
			"ResultDesc":        "Request cancelled by user",
		})
	})
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func testConfig(baseURL string) config.MpesaConfig {
	return config.MpesaConfig{
		ConsumerKey:     "key",
		ConsumerSecret:  "secret",
		Passkey:         "passkey",
		Shortcode:       "174379",
		CallbackURL:     "https://shop.example.com/api/mpesa/callback",
		BaseURL:         baseURL,
		TransactionType: "CustomerPayBillOnline",
	}
}

func fixedClock() time.Time {
	return time.Date(2024, 3, 5, 6, 7, 8, 0, time.UTC)
}

func TestTimestampAndPassword(t *testing.T) {
	ts := Timestamp(fixedClock())
	assert.Equal(t, "20240305090708", ts)

	decoded, err := base64.StdEncoding.DecodeString(Password("174379", "passkey", ts))
	require.NoError(t, err)
	assert.Equal(t, "174379passkey20240305090708", string(decoded))
}

func TestAccountReferenceIsTruncated(t *testing.T) {
	assert.Equal(t, "OrderORD-1", AccountReference("ORD-1"))
	assert.Equal(t, "OrderORD-171", AccountReference("ORD-1712345678901"))
}

func TestSTKPushSuccess(t *testing.T) {
	gw := newFakeDaraja(t)
	client := NewMpesaClient(testConfig(gw.server.URL), WithClock(fixedClock))

	resp, err := client.STKPush(context.Background(), STKPushParams{Phone: "0712345678", Amount: 999.6, OrderNumber: "ORD-1"})
	require.NoError(t, err)

	assert.Equal(t, "ws_CO_191220191020363925", resp.CheckoutRequestID)
	assert.Equal(t, "29115-34620561-1", resp.MerchantRequestID)
	assert.NotEmpty(t, resp.Raw)

	assert.Equal(t, int64(1000), gw.lastPush.Amount)
	assert.Equal(t, "254712345678", gw.lastPush.PartyA)
	assert.Equal(t, "254712345678", gw.lastPush.PhoneNumber)
	assert.Equal(t, "174379", gw.lastPush.PartyB)
	assert.Equal(t, "20240305090708", gw.lastPush.Timestamp)
	assert.Equal(t, Password("174379", "passkey", "20240305090708"), gw.lastPush.Password)
	assert.Equal(t, "https://shop.example.com/api/mpesa/callback", gw.lastPush.CallBackURL)
	assert.Equal(t, "OrderORD-1", gw.lastPush.AccountReference)
}

func TestAccessTokenIsCached(t *testing.T) {
	gw := newFakeDaraja(t)
	client := NewMpesaClient(testConfig(gw.server.URL))

	for i := 0; i < 3; i++ {
		token, err := client.AccessToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "tok-123", token)
	}
	assert.Equal(t, int32(1), gw.tokenCalls.Load())
}

func TestAccessTokenRefreshesAfterExpiry(t *testing.T) {
	gw := newFakeDaraja(t)
	now := fixedClock()
	client := NewMpesaClient(testConfig(gw.server.URL), WithClock(func() time.Time { return now }))

	_, err := client.AccessToken(context.Background())
	require.NoError(t, err)

	now = now.Add(time.Hour)
	_, err = client.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), gw.tokenCalls.Load())
}

func TestSTKPushTokenFailureSkipsPush(t *testing.T) {
	gw := newFakeDaraja(t)
	gw.tokenStatus = http.StatusInternalServerError
	client := NewMpesaClient(testConfig(gw.server.URL))

	_, err := client.STKPush(context.Background(), STKPushParams{Phone: "0712345678", Amount: 10, OrderNumber: "ORD-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGatewayUnavailable)

	var gwErr *GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, "token", gwErr.Op)
	assert.Equal(t, http.StatusInternalServerError, gwErr.StatusCode)
	assert.Equal(t, int32(0), gw.pushCalls.Load())
}

func TestSTKPushRejected(t *testing.T) {
	gw := newFakeDaraja(t)
	gw.pushCode = "1"
	client := NewMpesaClient(testConfig(gw.server.URL))

	resp, err := client.STKPush(context.Background(), STKPushParams{Phone: "0712345678", Amount: 10, OrderNumber: "ORD-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGatewayRejected)
	require.NotNil(t, resp)
	assert.Equal(t, "1", resp.ResponseCode)
}

func TestSTKPushNon2xx(t *testing.T) {
	gw := newFakeDaraja(t)
	gw.pushStatus = http.StatusBadRequest
	client := NewMpesaClient(testConfig(gw.server.URL))

	_, err := client.STKPush(context.Background(), STKPushParams{Phone: "0712345678", Amount: 10, OrderNumber: "ORD-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGatewayUnavailable)

	var gwErr *GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, "400.002.02", gwErr.Code)
	assert.Equal(t, "Bad Request - Invalid Amount", gwErr.Message)
}

func TestSTKPushInvalidPhone(t *testing.T) {
	gw := newFakeDaraja(t)
	client := NewMpesaClient(testConfig(gw.server.URL))

	_, err := client.STKPush(context.Background(), STKPushParams{Phone: "12345", Amount: 10, OrderNumber: "ORD-1"})
	assert.ErrorIs(t, err, ErrInvalidPhone)
	assert.Equal(t, int32(0), gw.tokenCalls.Load())
}

func TestQueryStatus(t *testing.T) {
	gw := newFakeDaraja(t)
	client := NewMpesaClient(testConfig(gw.server.URL))

	resp, err := client.QueryStatus(context.Background(), "ws_CO_191220191020363925")
	require.NoError(t, err)

	code, ok := resp.ResultCodeInt()
	assert.True(t, ok)
	assert.Equal(t, 1032, code)
}
