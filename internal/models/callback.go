package models

import (
	"encoding/json"
	"strconv"
	"strings"
)

// STKCallbackEnvelope is the body Daraja posts to the callback URL.
type STKCallbackEnvelope struct {
	Body *STKCallbackBody `json:"Body"`
}

type STKCallbackBody struct {
	StkCallback *STKCallback `json:"stkCallback"`
}

type STKCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        NumericString     `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata,omitempty"`
}

// Code parses ResultCode, which some integrations send as a string.
func (c *STKCallback) Code() (int, bool) {
	if c.ResultCode == "" {
		return 0, false
	}
	code, err := strconv.Atoi(strings.TrimSpace(c.ResultCode.String()))
	if err != nil {
		return 0, false
	}
	return code, true
}

type CallbackMetadata struct {
	Item []CallbackItem `json:"Item"`
}

type CallbackItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value,omitempty"`
}

func (m *CallbackMetadata) value(name string) json.RawMessage {
	if m == nil {
		return nil
	}
	for _, item := range m.Item {
		if item.Name == name {
			return item.Value
		}
	}
	return nil
}

// String returns the named item as text whether it was sent as a string or a number.
func (m *CallbackMetadata) String(name string) string {
	raw := m.value(name)
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func (m *CallbackMetadata) Int64(name string) (int64, bool) {
	s := m.String(name)
	if s == "" {
		return 0, false
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return int64(f), true
}

func (m *CallbackMetadata) ReceiptNumber() string {
	return m.String("MpesaReceiptNumber")
}

type ResolutionOutcome string

const (
	// ResolutionApplied means a PENDING payment moved to a terminal state.
	ResolutionApplied ResolutionOutcome = "applied"
	// ResolutionDuplicate means the matching payment was already terminal; nothing changed.
	ResolutionDuplicate ResolutionOutcome = "duplicate"
	// ResolutionUnresolvable means no payment matched either correlation key.
	ResolutionUnresolvable ResolutionOutcome = "unresolvable"
)

// ResolvePaymentParams carries one callback delivery into the store.
type ResolvePaymentParams struct {
	CheckoutRequestID  string
	MerchantRequestID  string
	Status             PaymentStatus
	ResultCode         int
	ResultDesc         string
	MpesaReceiptNumber string
	RawPayload         []byte
}

type Resolution struct {
	Outcome ResolutionOutcome
	Payment *Payment
}

// CallbackAck is returned to the provider for every structurally valid callback.
type CallbackAck struct {
	Status  PaymentStatus     `json:"status"`
	Outcome ResolutionOutcome `json:"outcome"`
}
