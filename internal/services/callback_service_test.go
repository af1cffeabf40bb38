package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"goride-payments/internal/models"
	"goride-payments/internal/validators"
	"goride-payments/pkg/events"
	"goride-payments/pkg/logger"
	"goride-payments/pkg/sms"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const successCallback = `{
  "Body": {
    "stkCallback": {
      "MerchantRequestID": "mr_1",
      "CheckoutRequestID": "ws_1",
      "ResultCode": 0,
      "ResultDesc": "The service request is processed successfully.",
      "CallbackMetadata": {
        "Item": [
          {"Name": "Amount", "Value": 500},
          {"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
          {"Name": "TransactionDate", "Value": 20191219102115},
          {"Name": "PhoneNumber", "Value": 254712345678}
        ]
      }
    }
  }
}`

const cancelledCallback = `{
  "Body": {
    "stkCallback": {
      "MerchantRequestID": "mr_1",
      "CheckoutRequestID": "ws_1",
      "ResultCode": 1032,
      "ResultDesc": "Request cancelled by user"
    }
  }
}`

type CallbackServiceTestSuite struct {
	suite.Suite
	store     *memoryStore
	audit     *fakeAuditRepo
	publisher *fakePublisher
	sms       *mockSMSProvider
	service   CallbackService
	payment   *models.Payment
}

func (s *CallbackServiceTestSuite) SetupTest() {
	s.store = newMemoryStore(1)
	s.audit = &fakeAuditRepo{}
	s.publisher = &fakePublisher{}
	s.sms = &mockSMSProvider{}

	notifications := NewNotificationService(s.sms, NotificationConfig{Enabled: true, From: "GoRide"}, logger.NewNop())
	s.service = NewCallbackService(&fakePaymentRepo{store: s.store}, s.audit, s.publisher, notifications, nil, logger.NewNop())

	checkout, merchant := "ws_1", "mr_1"
	s.payment = &models.Payment{
		RideID:            1,
		Phone:             "254712345678",
		Amount:            500,
		CheckoutRequestID: &checkout,
		MerchantRequestID: &merchant,
		Status:            models.PaymentStatusPending,
	}
	s.Require().NoError((&fakePaymentRepo{store: s.store}).Create(context.Background(), s.payment))
}

func (s *CallbackServiceTestSuite) handle(body string) (*models.CallbackAck, error) {
	return s.service.HandleCallback(context.Background(), []byte(body), CallbackMeta{RemoteAddr: "196.201.214.200", RequestID: "req-1"})
}

func (s *CallbackServiceTestSuite) TestSuccessIsApplied() {
	s.sms.On("SendSMS", mock.Anything, mock.MatchedBy(func(r *sms.SMSRequest) bool {
		return r.To == "+254712345678" && r.From == "GoRide"
	})).Return(&sms.SMSResponse{MessageID: "SM1"}, nil).Once()

	ack, err := s.handle(successCallback)
	s.Require().NoError(err)
	s.Equal(models.PaymentStatusSuccess, ack.Status)
	s.Equal(models.ResolutionApplied, ack.Outcome)

	stored := s.store.payments[0]
	s.Equal(models.PaymentStatusSuccess, stored.Status)
	s.Equal(0, *stored.ResultCode)
	s.Equal("The service request is processed successfully.", *stored.ResultDesc)
	s.Equal("NLJ7RT61SV", *stored.MpesaReceiptNumber)
	s.NotNil(stored.ResolvedAt)
	s.JSONEq(successCallback, string(stored.RawCallbackPayload))
	s.Equal(models.PaymentStatusSuccess, s.store.rides[1].PaymentStatus)

	s.Equal([]string{"applied"}, s.audit.outcomes())
	s.Equal(s.payment.ID, s.audit.entries[0].PaymentID)
	s.Equal("196.201.214.200", s.audit.entries[0].RemoteAddr)
	s.Equal("NLJ7RT61SV", s.audit.entries[0].ReceiptNumber)
	s.Equal(int64(500), s.audit.entries[0].Amount)
	s.Require().NotNil(s.audit.entries[0].TransactionDate)
	s.True(time.Date(2019, 12, 19, 7, 21, 15, 0, time.UTC).Equal(*s.audit.entries[0].TransactionDate))

	s.Require().Equal(1, s.publisher.count())
	env := s.publisher.values[0].(*events.Envelope)
	s.Equal("payment.resolved", env.Type)
	event := env.Data.(*models.PaymentResolvedEvent)
	s.Equal(int64(1), event.RideID)
	s.Equal("NLJ7RT61SV", event.MpesaReceiptNumber)

	s.sms.AssertExpectations(s.T())
}

func (s *CallbackServiceTestSuite) TestDuplicateDeliveryIsAppliedOnce() {
	s.sms.On("SendSMS", mock.Anything, mock.Anything).Return(&sms.SMSResponse{}, nil).Once()

	first, err := s.handle(successCallback)
	s.Require().NoError(err)
	s.Equal(models.ResolutionApplied, first.Outcome)

	second, err := s.handle(cancelledCallback)
	s.Require().NoError(err)
	s.Equal(models.ResolutionDuplicate, second.Outcome)
	s.Equal(models.PaymentStatusSuccess, second.Status)

	stored := s.store.payments[0]
	s.Equal(models.PaymentStatusSuccess, stored.Status)
	s.Equal(0, *stored.ResultCode)
	s.Equal(models.PaymentStatusSuccess, s.store.rides[1].PaymentStatus)

	s.Equal([]string{"applied", "duplicate"}, s.audit.outcomes())
	s.Equal(1, s.publisher.count())
	s.sms.AssertNumberOfCalls(s.T(), "SendSMS", 1)
}

func (s *CallbackServiceTestSuite) TestConcurrentDeliveriesResolveOnce() {
	s.sms.On("SendSMS", mock.Anything, mock.Anything).Return(&sms.SMSResponse{}, nil)

	const deliveries = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes = map[models.ResolutionOutcome]int{}
	)
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ack, err := s.handle(successCallback)
			if err != nil {
				return
			}
			mu.Lock()
			outcomes[ack.Outcome]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	s.Equal(1, outcomes[models.ResolutionApplied])
	s.Equal(deliveries-1, outcomes[models.ResolutionDuplicate])
	s.Equal(1, s.publisher.count())
}

func (s *CallbackServiceTestSuite) TestCancelledByUserIsFailed() {
	s.sms.On("SendSMS", mock.Anything, mock.MatchedBy(func(r *sms.SMSRequest) bool {
		return assert.ObjectsAreEqual("GoRide: payment of KES 500.00 for booking #1 failed: Request cancelled by user", r.Message)
	})).Return(&sms.SMSResponse{}, nil).Once()

	ack, err := s.handle(cancelledCallback)
	s.Require().NoError(err)
	s.Equal(models.PaymentStatusFailed, ack.Status)

	stored := s.store.payments[0]
	s.Equal(models.PaymentStatusFailed, stored.Status)
	s.Equal(1032, *stored.ResultCode)
	s.Equal("Request cancelled by user", *stored.ResultDesc)
	s.Nil(stored.MpesaReceiptNumber)
	s.Equal(models.PaymentStatusFailed, s.store.rides[1].PaymentStatus)
	s.sms.AssertExpectations(s.T())
}

func (s *CallbackServiceTestSuite) TestUnresolvableChangesNothing() {
	body := `{"Body":{"stkCallback":{"MerchantRequestID":"mr_x","CheckoutRequestID":"ws_x","ResultCode":0,"ResultDesc":"ok"}}}`

	ack, err := s.handle(body)
	s.Require().NoError(err)
	s.Equal(models.ResolutionUnresolvable, ack.Outcome)
	s.Equal(models.PaymentStatusSuccess, ack.Status)

	s.Equal(models.PaymentStatusPending, s.store.payments[0].Status)
	s.Equal(models.PaymentStatusPending, s.store.rides[1].PaymentStatus)
	s.Equal([]string{"unresolvable"}, s.audit.outcomes())
	s.Equal(0, s.publisher.count())
	s.sms.AssertNotCalled(s.T(), "SendSMS", mock.Anything, mock.Anything)
}

func (s *CallbackServiceTestSuite) TestStringResultCodeAndMerchantOnlyMatch() {
	s.sms.On("SendSMS", mock.Anything, mock.Anything).Return(&sms.SMSResponse{}, nil)
	body := `{"Body":{"stkCallback":{"MerchantRequestID":"mr_1","ResultCode":"0","ResultDesc":"ok"}}}`

	ack, err := s.handle(body)
	s.Require().NoError(err)
	s.Equal(models.ResolutionApplied, ack.Outcome)
	s.Equal(models.PaymentStatusSuccess, s.store.payments[0].Status)
}

func (s *CallbackServiceTestSuite) TestMalformedPayloads() {
	bodies := map[string]string{
		"invalid json":       `{"Body":`,
		"missing body":       `{}`,
		"missing callback":   `{"Body":{}}`,
		"missing keys":       `{"Body":{"stkCallback":{"ResultCode":0}}}`,
		"missing resultcode": `{"Body":{"stkCallback":{"CheckoutRequestID":"ws_1"}}}`,
		"non numeric code":   `{"Body":{"stkCallback":{"CheckoutRequestID":"ws_1","ResultCode":"abc"}}}`,
	}

	for name, body := range bodies {
		ack, err := s.handle(body)
		s.Nil(ack, name)
		s.ErrorIs(err, validators.ErrMalformedCallback, name)
	}

	s.Equal(models.PaymentStatusPending, s.store.payments[0].Status)
	s.Len(s.audit.outcomes(), len(bodies))
	for _, outcome := range s.audit.outcomes() {
		s.Equal(models.AuditOutcomeMalformed, outcome)
	}
	s.Equal(0, s.publisher.count())
}

func (s *CallbackServiceTestSuite) TestStoreFailureIsNotAcknowledged() {
	s.store.err = errStoreDown

	ack, err := s.handle(successCallback)
	s.Nil(ack)
	s.ErrorIs(err, errStoreDown)
	s.False(errors.Is(err, validators.ErrMalformedCallback))
	s.Equal([]string{models.AuditOutcomeError}, s.audit.outcomes())
}

func (s *CallbackServiceTestSuite) TestSideEffectFailuresAreSwallowed() {
	s.audit.err = errors.New("mongo unavailable")
	s.publisher.err = errors.New("kafka unavailable")
	s.sms.On("SendSMS", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("twilio: %w", errors.New("invalid number")))

	ack, err := s.handle(successCallback)
	s.Require().NoError(err)
	s.Equal(models.ResolutionApplied, ack.Outcome)
	s.Equal(models.PaymentStatusSuccess, s.store.payments[0].Status)
}

func TestCallbackServiceTestSuite(t *testing.T) {
	suite.Run(t, new(CallbackServiceTestSuite))
}

func TestCallbackServiceWithoutOptionalCollaborators(t *testing.T) {
	store := newMemoryStore(1)
	checkout := "ws_1"
	require.NoError(t, (&fakePaymentRepo{store: store}).Create(context.Background(), &models.Payment{
		RideID: 1, Phone: "254712345678", Amount: 10, CheckoutRequestID: &checkout, Status: models.PaymentStatusPending,
	}))

	service := NewCallbackService(&fakePaymentRepo{store: store}, nil, nil, nil, nil, logger.NewNop())
	ack, err := service.HandleCallback(context.Background(), []byte(successCallback), CallbackMeta{})
	require.NoError(t, err)
	assert.Equal(t, models.ResolutionApplied, ack.Outcome)
}
