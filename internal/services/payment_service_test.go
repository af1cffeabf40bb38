package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"goride-payments/internal/models"
	"goride-payments/internal/validators"
	"goride-payments/pkg/events"
	"goride-payments/pkg/logger"
	"goride-payments/pkg/metrics"
	"goride-payments/pkg/payment"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type paymentFixture struct {
	store     *memoryStore
	provider  *mockSTKProvider
	publisher *fakePublisher
	metrics   *metrics.Metrics
	service   PaymentService
}

func newPaymentFixture(rideIDs ...int64) *paymentFixture {
	f := &paymentFixture{
		store:     newMemoryStore(rideIDs...),
		provider:  &mockSTKProvider{},
		publisher: &fakePublisher{},
		metrics:   metrics.New(),
	}
	f.service = NewPaymentService(
		f.provider,
		&fakePaymentRepo{store: f.store},
		&fakeRideRepo{store: f.store},
		f.publisher,
		f.metrics,
		logger.NewNop(),
		PaymentServiceConfig{},
	)
	return f
}

func acceptedPush() *payment.STKPushResponse {
	return &payment.STKPushResponse{
		MerchantRequestID: "mr_1",
		CheckoutRequestID: "ws_1",
		ResponseCode:      "0",
		CustomerMessage:   "Success. Request accepted for processing",
	}
}

func TestInitiateChargeSuccess(t *testing.T) {
	f := newPaymentFixture(1)
	f.provider.On("Validate").Return(nil)
	f.provider.On("InitiateSTKPush", mock.Anything, &payment.STKPushRequest{
		PhoneNumber:      "254712345678",
		Amount:           500,
		AccountReference: "1",
		TransactionDesc:  "GoRide ride",
	}).Return(acceptedPush(), nil).Once()

	resp, err := f.service.InitiateCharge(context.Background(), &models.ChargeRequest{
		BookingID: "1",
		Phone:     "0712345678",
		Amount:    "500",
	})
	require.NoError(t, err)

	assert.Equal(t, "ws_1", resp.CheckoutRequestID)
	assert.Equal(t, "mr_1", resp.MerchantRequestID)
	assert.NotEmpty(t, resp.PaymentID)

	require.Len(t, f.store.payments, 1)
	stored := f.store.payments[0]
	assert.Equal(t, resp.PaymentID, stored.ID)
	assert.Equal(t, models.PaymentStatusPending, stored.Status)
	assert.Equal(t, int64(1), stored.RideID)
	assert.Equal(t, "254712345678", stored.Phone)
	assert.Equal(t, int64(500), stored.Amount)
	assert.Equal(t, "ws_1", *stored.CheckoutRequestID)
	assert.Equal(t, "mr_1", *stored.MerchantRequestID)
	assert.Nil(t, stored.ResultCode)

	assert.Equal(t, 1, f.publisher.count())
	env, ok := f.publisher.values[0].(*events.Envelope)
	require.True(t, ok)
	assert.Equal(t, "payment.initiated", env.Type)

	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.ChargesTotal.WithLabelValues("initiated")))
	f.provider.AssertExpectations(t)
}

func TestInitiateChargeWarnsAboutPendingPayment(t *testing.T) {
	f := newPaymentFixture(1)
	log, err := logger.NewLogger(&logger.Config{Level: logger.InfoLevel, Format: "json"})
	require.NoError(t, err)
	buf := &bytes.Buffer{}
	log.SetOutput(buf)
	f.service = NewPaymentService(f.provider, &fakePaymentRepo{store: f.store}, &fakeRideRepo{store: f.store},
		f.publisher, f.metrics, log, PaymentServiceConfig{})

	f.provider.On("Validate").Return(nil)
	f.provider.On("InitiateSTKPush", mock.Anything, mock.Anything).Return(acceptedPush(), nil).Twice()
	req := &models.ChargeRequest{BookingID: "1", Phone: "0712345678", Amount: "500"}

	first, err := f.service.InitiateCharge(context.Background(), req)
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "Booking already has a pending payment")

	_, err = f.service.InitiateCharge(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, f.store.payments, 2)

	var warning string
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if gjson.Get(line, "message").String() == "Booking already has a pending payment" {
			warning = line
		}
	}
	require.NotEmpty(t, warning)
	assert.Equal(t, "warning", gjson.Get(warning, "level").String())
	assert.Equal(t, first.PaymentID, gjson.Get(warning, "payment_id").String())
	assert.Equal(t, "*********678", gjson.Get(warning, "phone").String())
	assert.NotContains(t, buf.String(), "254712345678")
}

func TestInitiateChargeRoundsAmountAndUsesDisplayName(t *testing.T) {
	f := newPaymentFixture(7)
	f.provider.On("Validate").Return(nil)
	f.provider.On("InitiateSTKPush", mock.Anything, mock.MatchedBy(func(r *payment.STKPushRequest) bool {
		return r.Amount == 500 && r.TransactionDesc == "Jane Wanjiku" && r.PhoneNumber == "254112345678"
	})).Return(acceptedPush(), nil).Once()

	_, err := f.service.InitiateCharge(context.Background(), &models.ChargeRequest{
		BookingID:   "7",
		Phone:       "+254 112 345 678",
		Amount:      "499.6",
		DisplayName: "Jane Wanjiku",
	})
	require.NoError(t, err)
	f.provider.AssertExpectations(t)
}

func TestInitiateChargeRejectsInvalidInputWithoutSideEffects(t *testing.T) {
	tests := []struct {
		name    string
		req     *models.ChargeRequest
		wantErr error
	}{
		{"missing amount", &models.ChargeRequest{BookingID: "1", Phone: "0712345678"}, validators.ErrMissingFields},
		{"missing phone", &models.ChargeRequest{BookingID: "1", Amount: "500"}, validators.ErrMissingFields},
		{"missing booking", &models.ChargeRequest{Phone: "0712345678", Amount: "500"}, validators.ErrMissingFields},
		{"bad phone", &models.ChargeRequest{BookingID: "1", Phone: "0812345678", Amount: "500"}, validators.ErrInvalidPhoneFormat},
		{"zero amount", &models.ChargeRequest{BookingID: "1", Phone: "0712345678", Amount: "0"}, validators.ErrInvalidAmount},
		{"negative amount", &models.ChargeRequest{BookingID: "1", Phone: "0712345678", Amount: "-5"}, validators.ErrInvalidAmount},
		{"sub unit amount", &models.ChargeRequest{BookingID: "1", Phone: "0712345678", Amount: "0.4"}, validators.ErrInvalidAmount},
		{"non numeric amount", &models.ChargeRequest{BookingID: "1", Phone: "0712345678", Amount: "abc"}, validators.ErrInvalidAmount},
		{"non finite amount", &models.ChargeRequest{BookingID: "1", Phone: "0712345678", Amount: "NaN"}, validators.ErrInvalidAmount},
		{"non numeric booking", &models.ChargeRequest{BookingID: "B1", Phone: "0712345678", Amount: "500"}, ErrInvalidBooking},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPaymentFixture(1)

			_, err := f.service.InitiateCharge(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, f.store.payments)
			f.provider.AssertNotCalled(t, "InitiateSTKPush", mock.Anything, mock.Anything)
		})
	}
}

func TestInitiateChargeMissingConfiguration(t *testing.T) {
	f := newPaymentFixture(1)
	f.provider.On("Validate").Return(payment.ErrMissingConfiguration)

	_, err := f.service.InitiateCharge(context.Background(), &models.ChargeRequest{BookingID: "1", Phone: "0712345678", Amount: "500"})
	assert.ErrorIs(t, err, payment.ErrMissingConfiguration)
	assert.Empty(t, f.store.payments)
	f.provider.AssertNotCalled(t, "InitiateSTKPush", mock.Anything, mock.Anything)
}

func TestInitiateChargeUnknownBooking(t *testing.T) {
	f := newPaymentFixture()
	f.provider.On("Validate").Return(nil)

	_, err := f.service.InitiateCharge(context.Background(), &models.ChargeRequest{BookingID: "99", Phone: "0712345678", Amount: "500"})
	assert.ErrorIs(t, err, ErrBookingNotFound)
	f.provider.AssertNotCalled(t, "InitiateSTKPush", mock.Anything, mock.Anything)
}

func TestInitiateChargeProviderRejection(t *testing.T) {
	f := newPaymentFixture(1)
	f.provider.On("Validate").Return(nil)
	f.provider.On("InitiateSTKPush", mock.Anything, mock.Anything).Return(nil, &payment.ChargeRejectedError{
		StatusCode: 400,
		Message:    "Bad Request - Invalid PhoneNumber",
		Payload:    []byte(`{"errorMessage":"Bad Request - Invalid PhoneNumber"}`),
	})

	_, err := f.service.InitiateCharge(context.Background(), &models.ChargeRequest{BookingID: "1", Phone: "0712345678", Amount: "500"})

	var rejected *payment.ChargeRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "Bad Request - Invalid PhoneNumber", rejected.Message)
	assert.Empty(t, f.store.payments)
	assert.Equal(t, 0, f.publisher.count())
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.ChargesTotal.WithLabelValues("rejected")))
}

func TestInitiateChargeTokenFailure(t *testing.T) {
	f := newPaymentFixture(1)
	f.provider.On("Validate").Return(nil)
	f.provider.On("InitiateSTKPush", mock.Anything, mock.Anything).Return(nil, &payment.TokenRequestError{StatusCode: 401, Body: "invalid credentials"})

	_, err := f.service.InitiateCharge(context.Background(), &models.ChargeRequest{BookingID: "1", Phone: "0712345678", Amount: "500"})

	var tokenErr *payment.TokenRequestError
	assert.ErrorAs(t, err, &tokenErr)
	assert.Empty(t, f.store.payments)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.ChargesTotal.WithLabelValues("auth_failure")))
}

func TestInitiateChargeStoreFailure(t *testing.T) {
	f := newPaymentFixture(1)
	f.provider.On("Validate").Return(nil)
	f.provider.On("InitiateSTKPush", mock.Anything, mock.Anything).Return(acceptedPush(), nil)

	repo := &failingCreateRepo{fakePaymentRepo: fakePaymentRepo{store: f.store}}
	service := NewPaymentService(f.provider, repo, &fakeRideRepo{store: f.store}, nil, nil, logger.NewNop(), PaymentServiceConfig{})

	_, err := service.InitiateCharge(context.Background(), &models.ChargeRequest{BookingID: "1", Phone: "0712345678", Amount: "500"})
	assert.ErrorIs(t, err, errStoreDown)
	assert.False(t, errors.Is(err, validators.ErrMissingFields))
}

type failingCreateRepo struct {
	fakePaymentRepo
}

func (r *failingCreateRepo) Create(ctx context.Context, p *models.Payment) error {
	return errStoreDown
}
