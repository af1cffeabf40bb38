package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/oauth2"
)

const (
	stkPushPath = "/mpesa/stkpush/v1/processrequest"

	// Daraja field limits
	accountReferenceMax = 12
	transactionDescMax  = 13

	TimestampLayout        = "20060102150405"
	DefaultTransactionType = "CustomerPayBillOnline"
	DefaultTransactionDesc = "GoRide ride"
)

type MpesaConfig struct {
	BaseURL         string
	ShortCode       string
	PassKey         string
	CallbackURL     string
	TransactionType string
	ConsumerKey     string
	ConsumerSecret  string
	// Location is the clock used for the request timestamp. Nil means time.Local.
	Location *time.Location
}

// Validate reports ErrMissingConfiguration or ErrMissingCredentials before any side effect.
func (c *MpesaConfig) Validate() error {
	if c == nil || c.BaseURL == "" || c.ShortCode == "" || c.PassKey == "" || c.CallbackURL == "" {
		return ErrMissingConfiguration
	}
	if c.ConsumerKey == "" || c.ConsumerSecret == "" {
		return ErrMissingCredentials
	}
	return nil
}

type MpesaProvider struct {
	config     *MpesaConfig
	tokens     oauth2.TokenSource
	httpClient *http.Client
	now        func() time.Time
}

func NewMpesaProvider(config *MpesaConfig, tokens oauth2.TokenSource, httpClient *http.Client) *MpesaProvider {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if config.TransactionType == "" {
		config.TransactionType = DefaultTransactionType
	}

	return &MpesaProvider{
		config:     config,
		tokens:     tokens,
		httpClient: httpClient,
		now:        time.Now,
	}
}

// Timestamp formats t as YYYYMMDDHHmmss.
func Timestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// Password is base64(shortcode + passkey + timestamp).
func Password(shortCode, passKey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passKey + timestamp))
}

func (m *MpesaProvider) Validate() error {
	return m.config.Validate()
}

type stkPushBody struct {
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

func (m *MpesaProvider) InitiateSTKPush(ctx context.Context, request *STKPushRequest) (*STKPushResponse, error) {
	if err := m.config.Validate(); err != nil {
		return nil, err
	}

	now := m.now()
	if m.config.Location != nil {
		now = now.In(m.config.Location)
	}
	timestamp := Timestamp(now)

	token, err := m.tokens.Token()
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(stkPushBody{
		BusinessShortCode: m.config.ShortCode,
		Password:          Password(m.config.ShortCode, m.config.PassKey, timestamp),
		Timestamp:         timestamp,
		TransactionType:   m.config.TransactionType,
		Amount:            request.Amount,
		PartyA:            request.PhoneNumber,
		PartyB:            m.config.ShortCode,
		PhoneNumber:       request.PhoneNumber,
		CallBackURL:       m.config.CallbackURL,
		AccountReference:  truncate(request.AccountReference, accountReferenceMax),
		TransactionDesc:   truncate(request.TransactionDesc, transactionDescMax),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode stk push request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.config.BaseURL+stkPushPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build stk push request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	token.SetAuthHeader(httpReq)

	resp, err := m.httpClient.Do(httpReq)
	if err != nil {
		return nil, &ChargeRejectedError{Message: "M-Pesa is unreachable.", Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &ChargeRejectedError{StatusCode: resp.StatusCode, Message: "Unreadable M-Pesa response.", Err: err}
	}

	var result STKPushResponse
	decodeErr := json.Unmarshal(payload, &result)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message := result.ErrorMessage
		if message == "" {
			message = "STK push failed."
		}
		return nil, &ChargeRejectedError{StatusCode: resp.StatusCode, Message: message, Payload: payload}
	}

	if decodeErr != nil {
		return nil, &ChargeRejectedError{StatusCode: resp.StatusCode, Message: "Unreadable M-Pesa response.", Payload: payload, Err: decodeErr}
	}

	if result.CheckoutRequestID == "" && result.MerchantRequestID == "" {
		return nil, &ChargeRejectedError{
			StatusCode: resp.StatusCode,
			Message:    "M-Pesa response carried no request identifiers.",
			Payload:    payload,
			Err:        errors.New("missing correlation keys"),
		}
	}

	if result.ResponseCode != "" && result.ResponseCode != "0" {
		message := result.ResponseDescription
		if message == "" {
			message = "STK push failed."
		}
		return nil, &ChargeRejectedError{StatusCode: resp.StatusCode, Message: message, Payload: payload}
	}

	return &result, nil
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:max]))
}
