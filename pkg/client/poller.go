package client

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"goride-payments/internal/models"
	"goride-payments/internal/utils"
	"goride-payments/pkg/logger"
)

type State string

const (
	StateIdle    State = "idle"
	StatePending State = "pending"
	StateSuccess State = "success"
	StateFailed  State = "failed"
)

// StatusSource selects which endpoint the poller reads.
type StatusSource string

const (
	SourcePayment StatusSource = "payment"
	SourceRide    StatusSource = "ride"
)

func ParseStatusSource(raw string) StatusSource {
	if strings.EqualFold(strings.TrimSpace(raw), string(SourceRide)) {
		return SourceRide
	}
	return SourcePayment
}

const (
	MessageAwaiting      = "Awaiting confirmation on your phone."
	MessageStillPending  = "Payment is still pending. Please check your phone to complete the STK prompt."
	MessageFailedDefault = "Payment failed. Please try again."
	MessageSuccess       = "Booking placed successfully"

	DefaultDisplayName = "GoRide Rider"
)

// User-facing error titles.
const (
	TitleInvalidPhone   = "Invalid phone number"
	TitleInvalidAmount  = "Invalid amount"
	TitleMissingBooking = "Missing booking details"
	TitleMissingTrip    = "Missing trip details"
	TitlePaymentError   = "Payment error"
)

// UserError is the only error the poller hands to the UI.
type UserError struct {
	Title   string
	Message string
}

func (e *UserError) Error() string {
	return e.Title + ": " + e.Message
}

// API is the part of Client the poller needs.
type API interface {
	CreateBooking(ctx context.Context, req *models.CreateRideRequest) (*models.Ride, error)
	InitiateCharge(ctx context.Context, req *models.ChargeRequest) (*models.ChargeResponse, error)
	GetLatestPayment(ctx context.Context, bookingID int64) (*models.Payment, error)
	GetBookingStatus(ctx context.Context, bookingID int64) (*models.RidePaymentStatus, error)
}

// Checkout is what the payment screen collects before paying.
type Checkout struct {
	Phone    string
	Amount   float64
	FullName string
	Email    string

	DriverID int64
	RideTime int
	UserID   string

	OriginAddress        string
	DestinationAddress   string
	OriginLatitude       float64
	OriginLongitude      float64
	DestinationLatitude  float64
	DestinationLongitude float64
}

// DisplayName falls back from the full name to the e-mail local part.
func (c *Checkout) DisplayName(fallback string) string {
	if name := strings.TrimSpace(c.FullName); name != "" {
		return name
	}
	if local, _, ok := strings.Cut(strings.TrimSpace(c.Email), "@"); ok && local != "" {
		return local
	}
	return fallback
}

// Snapshot is the poller state shown to the user.
type Snapshot struct {
	State     State
	Message   string
	BookingID int64
	PaymentID string
	Attempts  int
}

type PollerConfig struct {
	Interval    time.Duration
	MaxAttempts int
	Source      StatusSource
	DisplayName string
	// OnChange is called after every state or message change, outside the poller lock.
	OnChange func(Snapshot)
}

type Poller struct {
	api      API
	config   PollerConfig
	logger   *logger.Logger
	mu       sync.Mutex
	snapshot Snapshot
	session  int
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewPoller(api API, config PollerConfig, log *logger.Logger) *Poller {
	if config.Interval <= 0 {
		config.Interval = utils.DefaultPollInterval
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = utils.DefaultPollMaxAttempts
	}
	if config.Source == "" {
		config.Source = SourcePayment
	}
	if config.DisplayName == "" {
		config.DisplayName = DefaultDisplayName
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Poller{
		api:      api,
		config:   config,
		logger:   log.WithField("component", "payment_poller"),
		snapshot: Snapshot{State: StateIdle, Message: MessageAwaiting},
	}
}

func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot
}

// Submit creates the booking, sends the STK push and starts polling.
func (p *Poller) Submit(ctx context.Context, checkout *Checkout) (Snapshot, error) {
	phone, amount, err := validateCheckout(checkout)
	if err != nil {
		return p.Snapshot(), err
	}

	p.mu.Lock()
	if p.snapshot.State == StatePending {
		p.mu.Unlock()
		return p.Snapshot(), &UserError{Title: TitlePaymentError, Message: "A payment is already in progress."}
	}
	p.mu.Unlock()

	ride, err := p.api.CreateBooking(ctx, &models.CreateRideRequest{
		OriginAddress:        checkout.OriginAddress,
		DestinationAddress:   checkout.DestinationAddress,
		OriginLatitude:       checkout.OriginLatitude,
		OriginLongitude:      checkout.OriginLongitude,
		DestinationLatitude:  checkout.DestinationLatitude,
		DestinationLongitude: checkout.DestinationLongitude,
		RideTime:             checkout.RideTime,
		FarePrice:            float64(amount),
		DriverID:             checkout.DriverID,
		UserID:               checkout.UserID,
	})
	if err != nil {
		p.logger.WithError(err).Error("Failed to create booking")
		return p.Snapshot(), paymentError(err, "Failed to create booking.")
	}

	charge, err := p.api.InitiateCharge(ctx, &models.ChargeRequest{
		BookingID:   models.NumericString(strconv.FormatInt(ride.ID, 10)),
		Phone:       phone,
		Amount:      models.NumericString(strconv.FormatInt(amount, 10)),
		DisplayName: checkout.DisplayName(p.config.DisplayName),
	})
	if err != nil {
		p.logger.WithRideID(ride.ID).WithError(err).Error("Failed to initiate charge")
		return p.Snapshot(), paymentError(err, utils.ErrUnableToInitiate)
	}
	if charge.CheckoutRequestID == "" {
		return p.Snapshot(), &UserError{Title: TitlePaymentError, Message: utils.ErrUnableToInitiate}
	}

	p.mu.Lock()
	p.stopLocked()
	p.session++
	p.snapshot = Snapshot{
		State:     StatePending,
		Message:   MessageAwaiting,
		BookingID: ride.ID,
		PaymentID: charge.PaymentID,
	}
	pollCtx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	session := p.session
	p.wg.Add(1)
	go p.poll(pollCtx, session, ride.ID)
	current := p.snapshot
	p.mu.Unlock()

	p.notify(current)
	return current, nil
}

// Refresh runs one status check now. It may race the ticker; only the first terminal
// result is applied.
func (p *Poller) Refresh(ctx context.Context) (Snapshot, error) {
	p.mu.Lock()
	current := p.snapshot
	session := p.session
	p.mu.Unlock()

	if current.State != StatePending {
		return current, nil
	}
	if _, err := p.check(ctx, session, current.BookingID); err != nil {
		p.logger.WithRideID(current.BookingID).WithError(err).Warn("Manual status refresh failed")
		return p.Snapshot(), &UserError{Title: TitlePaymentError, Message: "Unable to refresh payment status."}
	}
	return p.Snapshot(), nil
}

// Cancel stops polling and returns to idle, as when the user dismisses the prompt.
func (p *Poller) Cancel() {
	p.mu.Lock()
	p.stopLocked()
	p.session++
	changed := p.snapshot.State != StateIdle
	p.snapshot.State = StateIdle
	current := p.snapshot
	p.mu.Unlock()

	p.wg.Wait()
	if changed {
		p.notify(current)
	}
}

// Close stops polling and waits for the polling goroutine to exit.
func (p *Poller) Close() {
	p.mu.Lock()
	p.stopLocked()
	p.session++
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Poller) stopLocked() {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

func (p *Poller) poll(ctx context.Context, session int, bookingID int64) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	attempts := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		attempts++
		terminal, err := p.check(ctx, session, bookingID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.WithRideID(bookingID).WithError(err).Warn("Payment status poll failed")
		}
		if terminal {
			return
		}
		p.recordAttempt(session, attempts)
	}
}

func (p *Poller) recordAttempt(session, attempts int) {
	p.mu.Lock()
	if p.session != session || p.snapshot.State != StatePending {
		p.mu.Unlock()
		return
	}
	p.snapshot.Attempts = attempts
	changed := attempts >= p.config.MaxAttempts && p.snapshot.Message != MessageStillPending
	if changed {
		p.snapshot.Message = MessageStillPending
	}
	current := p.snapshot
	p.mu.Unlock()

	if changed {
		p.notify(current)
	}
}

// check reads the status once and applies a terminal result. It reports whether
// the session is over.
func (p *Poller) check(ctx context.Context, session int, bookingID int64) (bool, error) {
	status, desc, err := p.fetch(ctx, bookingID)
	if err != nil {
		return false, err
	}
	if !status.IsTerminal() {
		return false, nil
	}
	p.resolve(session, status, desc)
	return true, nil
}

func (p *Poller) fetch(ctx context.Context, bookingID int64) (models.PaymentStatus, string, error) {
	if p.config.Source == SourceRide {
		booking, err := p.api.GetBookingStatus(ctx, bookingID)
		if err != nil || booking == nil {
			return models.PaymentStatusPending, "", err
		}
		return booking.PaymentStatus, "", nil
	}

	payment, err := p.api.GetLatestPayment(ctx, bookingID)
	if err != nil || payment == nil {
		return models.PaymentStatusPending, "", err
	}
	desc := ""
	if payment.ResultDesc != nil {
		desc = *payment.ResultDesc
	}
	return payment.Status, desc, nil
}

func (p *Poller) resolve(session int, status models.PaymentStatus, desc string) {
	p.mu.Lock()
	if p.session != session || p.snapshot.State != StatePending {
		p.mu.Unlock()
		return
	}
	p.stopLocked()

	var transitions []Snapshot
	if status == models.PaymentStatusSuccess {
		p.snapshot.State = StateSuccess
		p.snapshot.Message = MessageSuccess
		transitions = append(transitions, p.snapshot)
	} else {
		p.snapshot.State = StateFailed
		p.snapshot.Message = MessageFailedDefault
		if strings.TrimSpace(desc) != "" {
			p.snapshot.Message = desc
		}
		transitions = append(transitions, p.snapshot)
		// The failure is shown once, then the user may pay again.
		p.snapshot.State = StateIdle
		transitions = append(transitions, p.snapshot)
	}
	p.mu.Unlock()

	for _, s := range transitions {
		p.notify(s)
	}
}

func (p *Poller) notify(s Snapshot) {
	if p.config.OnChange != nil {
		p.config.OnChange(s)
	}
}

func validateCheckout(c *Checkout) (string, int64, error) {
	phone, ok := utils.NormalizeMpesaPhone(c.Phone)
	if !ok {
		return "", 0, &UserError{
			Title:   TitleInvalidPhone,
			Message: "Enter a Safaricom number in format 07XXXXXXXX or 2547XXXXXXXX.",
		}
	}

	amount, err := utils.WholeAmount(c.Amount)
	if err != nil {
		return "", 0, &UserError{Title: TitleInvalidAmount, Message: "Enter a valid amount to pay."}
	}

	if c.DriverID <= 0 || c.RideTime <= 0 || strings.TrimSpace(c.UserID) == "" {
		return "", 0, &UserError{Title: TitleMissingBooking, Message: "Please select a driver and try again."}
	}

	if strings.TrimSpace(c.OriginAddress) == "" || strings.TrimSpace(c.DestinationAddress) == "" ||
		c.OriginLatitude == 0 || c.OriginLongitude == 0 ||
		c.DestinationLatitude == 0 || c.DestinationLongitude == 0 {
		return "", 0, &UserError{Title: TitleMissingTrip, Message: "Please confirm your pickup and drop-off locations."}
	}

	return phone, amount, nil
}

// paymentError keeps server messages, which are written for users, and hides everything else.
func paymentError(err error, fallback string) *UserError {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" &&
		(apiErr.StatusCode < http.StatusInternalServerError || apiErr.StatusCode == http.StatusBadGateway) {
		return &UserError{Title: TitlePaymentError, Message: apiErr.Message}
	}
	return &UserError{Title: TitlePaymentError, Message: fallback}
}
