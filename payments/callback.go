package payments

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ResultSuccess is the callback ResultCode of a paid request.
const ResultSuccess = 0

type callbackEnvelope struct {
	Body *struct {
		StkCallback *struct {
			MerchantRequestID string       `json:"MerchantRequestID"`
			CheckoutRequestID string       `json:"CheckoutRequestID"`
			ResultCode        *json.Number `json:"ResultCode"`
			ResultDesc        string       `json:"ResultDesc"`
			CallbackMetadata  *struct {
				Item []struct {
					Name  string      `json:"Name"`
					Value interface{} `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// CallbackResult is a decoded STK callback.
type CallbackResult struct {
	MerchantRequestID string
	CheckoutRequestID string
	ResultCode        int
	ResultDesc        string

	// Set only when ResultCode is ResultSuccess.
	Amount          float64
	ReceiptNumber   string
	PhoneNumber     string
	TransactionDate string

	Raw json.RawMessage
}

func (r *CallbackResult) Succeeded() bool {
	return r.ResultCode == ResultSuccess
}

// ParseCallback decodes a raw callback body. It returns a *ParseError when the
// body is not an STK callback or a successful callback lacks its receipt.
func ParseCallback(raw []byte) (*CallbackResult, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var env callbackEnvelope
	if err := dec.Decode(&env); err != nil {
		return nil, &ParseError{Field: "body", Err: err}
	}
	if env.Body == nil || env.Body.StkCallback == nil {
		return nil, &ParseError{Field: "Body.stkCallback", Err: errors.New("missing")}
	}

	stk := env.Body.StkCallback
	if stk.CheckoutRequestID == "" && stk.MerchantRequestID == "" {
		return nil, &ParseError{Field: "CheckoutRequestID", Err: errors.New("missing correlation ids")}
	}
	if stk.ResultCode == nil {
		return nil, &ParseError{Field: "ResultCode", Err: errors.New("missing")}
	}
	code, err := strconv.Atoi(stk.ResultCode.String())
	if err != nil {
		return nil, &ParseError{Field: "ResultCode", Err: err}
	}

	result := &CallbackResult{
		MerchantRequestID: stk.MerchantRequestID,
		CheckoutRequestID: stk.CheckoutRequestID,
		ResultCode:        code,
		ResultDesc:        stk.ResultDesc,
		Raw:               append(json.RawMessage(nil), raw...),
	}

	if !result.Succeeded() {
		return result, nil
	}

	if stk.CallbackMetadata == nil {
		return nil, &ParseError{Field: "CallbackMetadata", Err: errors.New("missing on successful callback")}
	}

	for _, item := range stk.CallbackMetadata.Item {
		switch item.Name {
		case "Amount":
			amount, err := metadataFloat(item.Value)
			if err != nil {
				return nil, &ParseError{Field: "Amount", Err: err}
			}
			result.Amount = amount
		case "MpesaReceiptNumber":
			result.ReceiptNumber = metadataString(item.Value)
		case "PhoneNumber":
			result.PhoneNumber = metadataString(item.Value)
		case "TransactionDate":
			result.TransactionDate = metadataString(item.Value)
		}
	}

	if result.ReceiptNumber == "" {
		return nil, &ParseError{Field: "MpesaReceiptNumber", Err: errors.New("missing on successful callback")}
	}

	return result, nil
}

func metadataString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

func metadataFloat(v interface{}) (float64, error) {
	switch val := v.(type) {
	case json.Number:
		return val.Float64()
	case string:
		return strconv.ParseFloat(val, 64)
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}
