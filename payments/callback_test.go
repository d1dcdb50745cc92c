package payments

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCallbackSuccess(t *testing.T) {
	raw, err := os.ReadFile("testdata/callback_success.json")
	require.NoError(t, err)

	result, err := ParseCallback(raw)
	require.NoError(t, err)

	assert.True(t, result.Succeeded())
	assert.Equal(t, "ws_CO_191220191020363925", result.CheckoutRequestID)
	assert.Equal(t, "29115-34620561-1", result.MerchantRequestID)
	assert.Equal(t, 1000.0, result.Amount)
	assert.Equal(t, "ABC123", result.ReceiptNumber)
	assert.Equal(t, "254708374149", result.PhoneNumber)
	assert.Equal(t, "20191219102115", result.TransactionDate)
	assert.JSONEq(t, string(raw), string(result.Raw))
}

func TestParseCallbackFailure(t *testing.T) {
	raw, err := os.ReadFile("testdata/callback_cancelled.json")
	require.NoError(t, err)

	result, err := ParseCallback(raw)
	require.NoError(t, err)

	assert.False(t, result.Succeeded())
	assert.Equal(t, 1032, result.ResultCode)
	assert.Equal(t, "Request cancelled by user", result.ResultDesc)
	assert.Empty(t, result.ReceiptNumber)
}

func TestParseCallbackErrors(t *testing.T) {
	tests := map[string]string{
		"not json":          `{"Body":`,
		"missing callback":  `{"Body":{}}`,
		"missing ids":       `{"Body":{"stkCallback":{"ResultCode":0}}}`,
		"missing code":      `{"Body":{"stkCallback":{"CheckoutRequestID":"ws_1"}}}`,
		"missing metadata":  `{"Body":{"stkCallback":{"CheckoutRequestID":"ws_1","ResultCode":0}}}`,
		"missing receipt":   `{"Body":{"stkCallback":{"CheckoutRequestID":"ws_1","ResultCode":0,"CallbackMetadata":{"Item":[{"Name":"Amount","Value":10}]}}}}`,
		"bad amount":        `{"Body":{"stkCallback":{"CheckoutRequestID":"ws_1","ResultCode":0,"CallbackMetadata":{"Item":[{"Name":"Amount","Value":true}]}}}}`,
		"non numeric code":  `{"Body":{"stkCallback":{"CheckoutRequestID":"ws_1","ResultCode":"zero"}}}`,
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCallback([]byte(body))
			require.Error(t, err)
			var parseErr *ParseError
			assert.True(t, errors.As(err, &parseErr))
		})
	}
}
