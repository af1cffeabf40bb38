package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"goride-payments/internal/models"
	"goride-payments/internal/repositories/interfaces"
	"goride-payments/pkg/payment"
	"goride-payments/pkg/sms"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type memoryStore struct {
	mu       sync.Mutex
	rides    map[int64]*models.Ride
	payments []*models.Payment
	err      error
}

func newMemoryStore(rideIDs ...int64) *memoryStore {
	s := &memoryStore{rides: map[int64]*models.Ride{}}
	for _, id := range rideIDs {
		s.rides[id] = &models.Ride{ID: id, PaymentStatus: models.PaymentStatusPending}
	}
	return s
}

type fakePaymentRepo struct{ store *memoryStore }

func (r *fakePaymentRepo) Create(ctx context.Context, p *models.Payment) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.err != nil {
		return r.store.err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = time.Now()
	cp := *p
	r.store.payments = append(r.store.payments, &cp)
	return nil
}

func (r *fakePaymentRepo) GetByID(ctx context.Context, id string) (*models.Payment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.err != nil {
		return nil, r.store.err
	}
	for _, p := range r.store.payments {
		if p.ID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, interfaces.ErrNotFound
}

func (r *fakePaymentRepo) GetLatestByRideID(ctx context.Context, rideID int64) (*models.Payment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.err != nil {
		return nil, r.store.err
	}
	for i := len(r.store.payments) - 1; i >= 0; i-- {
		if r.store.payments[i].RideID == rideID {
			cp := *r.store.payments[i]
			return &cp, nil
		}
	}
	return nil, interfaces.ErrNotFound
}

func matches(p *models.Payment, checkoutID, merchantID string) bool {
	return (checkoutID != "" && p.CheckoutRequestID != nil && *p.CheckoutRequestID == checkoutID) ||
		(merchantID != "" && p.MerchantRequestID != nil && *p.MerchantRequestID == merchantID)
}

func (r *fakePaymentRepo) ResolvePayment(ctx context.Context, params *models.ResolvePaymentParams) (*models.Resolution, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.err != nil {
		return nil, r.store.err
	}

	var existing *models.Payment
	for i := len(r.store.payments) - 1; i >= 0; i-- {
		p := r.store.payments[i]
		if !matches(p, params.CheckoutRequestID, params.MerchantRequestID) {
			continue
		}
		if existing == nil {
			existing = p
		}
		if p.Status != models.PaymentStatusPending {
			continue
		}

		now := time.Now()
		code, desc := params.ResultCode, params.ResultDesc
		p.Status = params.Status
		p.ResultCode = &code
		p.ResultDesc = &desc
		p.ResolvedAt = &now
		p.RawCallbackPayload = params.RawPayload
		if params.MpesaReceiptNumber != "" {
			receipt := params.MpesaReceiptNumber
			p.MpesaReceiptNumber = &receipt
		}
		if ride, ok := r.store.rides[p.RideID]; ok {
			ride.PaymentStatus = params.Status
		}
		cp := *p
		return &models.Resolution{Outcome: models.ResolutionApplied, Payment: &cp}, nil
	}

	if existing != nil {
		cp := *existing
		return &models.Resolution{Outcome: models.ResolutionDuplicate, Payment: &cp}, nil
	}
	return &models.Resolution{Outcome: models.ResolutionUnresolvable}, nil
}

type fakeRideRepo struct{ store *memoryStore }

func (r *fakeRideRepo) Create(ctx context.Context, ride *models.Ride) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.err != nil {
		return r.store.err
	}
	ride.ID = int64(len(r.store.rides) + 1)
	ride.CreatedAt = time.Now()
	cp := *ride
	r.store.rides[ride.ID] = &cp
	return nil
}

func (r *fakeRideRepo) GetByID(ctx context.Context, id int64) (*models.Ride, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.err != nil {
		return nil, r.store.err
	}
	ride, ok := r.store.rides[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	cp := *ride
	return &cp, nil
}

func (r *fakeRideRepo) Exists(ctx context.Context, id int64) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.err != nil {
		return false, r.store.err
	}
	_, ok := r.store.rides[id]
	return ok, nil
}

func (r *fakeRideRepo) GetPaymentStatus(ctx context.Context, id int64) (models.PaymentStatus, error) {
	ride, err := r.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return ride.PaymentStatus, nil
}

type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []*models.CallbackAuditLog
	err     error
}

func (r *fakeAuditRepo) Insert(ctx context.Context, entry *models.CallbackAuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *entry
	r.entries = append(r.entries, &cp)
	return r.err
}

func (r *fakeAuditRepo) outcomes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Outcome)
	}
	return out
}

type fakePublisher struct {
	mu     sync.Mutex
	keys   []string
	values []interface{}
	err    error
}

func (p *fakePublisher) Publish(ctx context.Context, key string, value interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	p.values = append(p.values, value)
	return p.err
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.keys)
}

type mockSTKProvider struct {
	mock.Mock
}

func (m *mockSTKProvider) InitiateSTKPush(ctx context.Context, req *payment.STKPushRequest) (*payment.STKPushResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*payment.STKPushResponse)
	return resp, args.Error(1)
}

func (m *mockSTKProvider) Validate() error {
	return m.Called().Error(0)
}

type mockSMSProvider struct {
	mock.Mock
}

func (m *mockSMSProvider) SendSMS(ctx context.Context, req *sms.SMSRequest) (*sms.SMSResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*sms.SMSResponse)
	return resp, args.Error(1)
}

var errStoreDown = errors.New("connection refused")
