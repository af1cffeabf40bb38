package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"goride-payments/internal/models"
)

// APIError is a non-2xx answer from the payments API. Message is the server's
// user-facing error message.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("payments api returned %d %s: %s", e.StatusCode, e.Code, e.Message)
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Client talks to the /api/v1 payments surface.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// New returns a client for baseURL, e.g. "http://localhost:8080/api/v1".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) CreateBooking(ctx context.Context, req *models.CreateRideRequest) (*models.Ride, error) {
	var ride models.Ride
	found, err := c.do(ctx, http.MethodPost, "/bookings", req, &ride)
	if err != nil {
		return nil, err
	}
	if !found || ride.ID <= 0 {
		return nil, fmt.Errorf("create booking: response carried no ride id")
	}
	return &ride, nil
}

func (c *Client) InitiateCharge(ctx context.Context, req *models.ChargeRequest) (*models.ChargeResponse, error) {
	var resp models.ChargeResponse
	if _, err := c.do(ctx, http.MethodPost, "/payments/charge", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) GetPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	var payment models.Payment
	if _, err := c.do(ctx, http.MethodGet, "/payments/status?id="+url.QueryEscape(paymentID), nil, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetLatestPayment returns nil when the booking has no payment yet.
func (c *Client) GetLatestPayment(ctx context.Context, bookingID int64) (*models.Payment, error) {
	var payment models.Payment
	found, err := c.do(ctx, http.MethodGet, "/payments/status/booking/"+strconv.FormatInt(bookingID, 10), nil, &payment)
	if err != nil || !found {
		return nil, err
	}
	return &payment, nil
}

// GetBookingStatus returns nil when the booking does not exist.
func (c *Client) GetBookingStatus(ctx context.Context, bookingID int64) (*models.RidePaymentStatus, error) {
	var status models.RidePaymentStatus
	found, err := c.do(ctx, http.MethodGet, "/bookings/status/"+strconv.FormatInt(bookingID, 10), nil, &status)
	if err != nil || !found {
		return nil, err
	}
	return &status, nil
}

// do reports found=false when the envelope's data is null or absent.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) (bool, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return false, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return false, err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 300 {
			return false, &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return false, fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}

	if resp.StatusCode >= 300 || env.Error != nil {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return false, apiErr
	}

	if len(env.Data) == 0 || string(env.Data) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return false, fmt.Errorf("failed to decode %s %s data: %w", method, path, err)
	}
	return true, nil
}
