package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/go_cart/cafe-service/internal/domain"
	"github.com/fjod/go_cart/cafe-service/internal/payment"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DefaultTimeout = 10 * time.Second
	Currency       = "USD"

	MessageProcessing = "Processing..."
	MessageSuccess    = "Payment Successful!"
)

// CartSource is the part of the cart a checkout needs. *cart.Store satisfies it.
type CartSource interface {
	Snapshot() domain.Snapshot
	ClearCart(ctx context.Context)
}

// Attempt is one authorization round trip.
type Attempt struct {
	ID            string
	Status        domain.PaymentStatus
	Amount        decimal.Decimal
	TransactionID string
	Reason        string
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Message is the text shown to the customer for the attempt's status.
func (a Attempt) Message() string {
	switch a.Status {
	case domain.PaymentStatusProcessing:
		return MessageProcessing
	case domain.PaymentStatusSuccess:
		return MessageSuccess
	case domain.PaymentStatusError:
		return "Payment failed: " + a.Reason
	default:
		return ""
	}
}

// Receipt describes an acknowledged order.
type Receipt struct {
	OrderID       string
	AttemptID     string
	TransactionID string
	Lines         []domain.CartLine
	Totals        Totals
	Customer      payment.Customer
	CompletedAt   time.Time
}

// View is a read-only picture of a session. Form is masked.
type View struct {
	Status  domain.PaymentStatus
	Message string
	Totals  Totals
	Form    *FormData
	Attempt Attempt
	Closed  bool
}

// PayLabel is the caption of the submit action.
func (v View) PayLabel() string {
	if v.Status == domain.PaymentStatusProcessing {
		return MessageProcessing
	}
	return "Pay $" + FormatAmount(v.Totals.GrandTotal)
}

// Session drives the payment state machine of one checkout:
// idle -> processing -> success|error -> idle.
type Session struct {
	mu         sync.Mutex
	cart       CartSource
	authorizer payment.Authorizer
	timeout    time.Duration
	logger     *zap.Logger
	onComplete func(context.Context, Receipt)

	status  domain.PaymentStatus
	form    *FormData
	attempt Attempt
	lines   []domain.CartLine
	totals  Totals
	done    chan struct{}
	closed  bool
}

type Option func(*Session)

// WithTimeout bounds each authorization. Timing out moves the session to error.
func WithTimeout(d time.Duration) Option {
	return func(s *Session) { s.timeout = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithCompletionHook registers fn to run after a successful payment is acknowledged.
func WithCompletionHook(fn func(context.Context, Receipt)) Option {
	return func(s *Session) { s.onComplete = fn }
}

func NewSession(cart CartSource, authorizer payment.Authorizer, opts ...Option) *Session {
	s := &Session{
		cart:       cart,
		authorizer: authorizer,
		timeout:    DefaultTimeout,
		logger:     zap.NewNop(),
		status:     domain.PaymentStatusIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit starts authorizing the cart's grand total. It returns as soon as the
// session is processing; use Wait to block for the outcome.
func (s *Session) Submit(form FormData) (Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitLocked(form)
}

// Retry resubmits the form kept from a failed attempt.
func (s *Session) Retry() (Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.transitionLocked(domain.PaymentStatusIdle, domain.PaymentStatusError); err != nil {
		return Attempt{}, err
	}
	if s.form == nil {
		return Attempt{}, fmt.Errorf("%w: no form to retry", ErrInvalidForm)
	}

	prev := s.status
	s.status = domain.PaymentStatusIdle
	attempt, err := s.submitLocked(*s.form)
	if err != nil {
		s.status = prev
	}
	return attempt, err
}

// Dismiss returns a failed session to idle. The form is kept.
func (s *Session) Dismiss() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.transitionLocked(domain.PaymentStatusIdle, domain.PaymentStatusError); err != nil {
		return err
	}
	s.status = domain.PaymentStatusIdle
	s.attempt.Status = domain.PaymentStatusIdle
	return nil
}

// Acknowledge completes a successful checkout: the cart is cleared, the form
// discarded and the session is idle again.
func (s *Session) Acknowledge(ctx context.Context) (Receipt, error) {
	s.mu.Lock()
	if err := s.transitionLocked(domain.PaymentStatusIdle, domain.PaymentStatusSuccess); err != nil {
		s.mu.Unlock()
		return Receipt{}, err
	}

	receipt := Receipt{
		OrderID:       uuid.NewString(),
		AttemptID:     s.attempt.ID,
		TransactionID: s.attempt.TransactionID,
		Lines:         s.lines,
		Totals:        s.totals,
		CompletedAt:   time.Now().UTC(),
	}
	if s.form != nil {
		receipt.Customer = s.form.customer()
	}

	s.status = domain.PaymentStatusIdle
	s.form = nil
	s.attempt = Attempt{Status: domain.PaymentStatusIdle}
	s.lines = nil
	s.totals = Totals{}
	s.mu.Unlock()

	s.cart.ClearCart(ctx)
	s.logger.Info("checkout completed",
		zap.String("order_id", receipt.OrderID),
		zap.String("attempt_id", receipt.AttemptID),
		zap.String("amount", FormatAmount(receipt.Totals.GrandTotal)))

	if s.onComplete != nil {
		s.onComplete(ctx, receipt)
	}
	return receipt, nil
}

// Close ends the session. It has no effect while a payment is processing.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == domain.PaymentStatusProcessing {
		return ErrCheckoutInProgress
	}
	s.closed = true
	return nil
}

// Wait blocks until the current attempt resolves or ctx is done.
func (s *Session) Wait(ctx context.Context) (Attempt, error) {
	s.mu.Lock()
	done := s.done
	processing := s.status == domain.PaymentStatusProcessing
	attempt := s.attempt
	s.mu.Unlock()

	if !processing || done == nil {
		return attempt, nil
	}

	select {
	case <-done:
	case <-ctx.Done():
		return Attempt{}, ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempt, nil
}

func (s *Session) Status() domain.PaymentStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// View returns the session state. While idle the totals follow the live cart,
// otherwise they are the totals that were submitted.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		Status:  s.status,
		Message: s.attempt.Message(),
		Totals:  s.totals,
		Attempt: s.attempt,
		Closed:  s.closed,
	}
	if s.status == domain.PaymentStatusIdle {
		v.Totals = CalculateTotals(s.cart.Snapshot())
	}
	if s.form != nil {
		masked := s.form.Masked()
		v.Form = &masked
	}
	return v
}

func (s *Session) submitLocked(form FormData) (Attempt, error) {
	if s.closed {
		return Attempt{}, ErrSessionClosed
	}
	if err := s.transitionLocked(domain.PaymentStatusProcessing); err != nil {
		return Attempt{}, err
	}
	if err := form.Validate(); err != nil {
		return Attempt{}, err
	}

	snap := s.cart.Snapshot()
	if snap.IsEmpty() {
		return Attempt{}, ErrEmptyCart
	}

	totals := CalculateTotals(snap)
	s.form = &form
	s.lines = snap.Lines
	s.totals = totals
	s.status = domain.PaymentStatusProcessing
	s.attempt = Attempt{
		ID:        uuid.NewString(),
		Status:    domain.PaymentStatusProcessing,
		Amount:    totals.GrandTotal,
		StartedAt: time.Now().UTC(),
	}
	s.done = make(chan struct{})

	req := payment.Request{
		AttemptID: s.attempt.ID,
		Amount:    totals.GrandTotal,
		Currency:  Currency,
		Customer:  form.customer(),
	}
	go s.authorize(req, s.done)

	s.logger.Info("payment submitted",
		zap.String("attempt_id", req.AttemptID),
		zap.String("amount", FormatAmount(req.Amount)))
	return s.attempt, nil
}

// transitionLocked checks that the session may move to `to`. When from is
// given the current status must also be one of them.
func (s *Session) transitionLocked(to domain.PaymentStatus, from ...domain.PaymentStatus) error {
	if len(from) > 0 {
		allowed := false
		for _, f := range from {
			if s.status == f {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s.status, to)
		}
	}
	if !domain.CanTransitionTo(s.status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s.status, to)
	}
	return nil
}

// authorize runs detached from any request so the customer cannot cancel it;
// only the session timeout bounds it.
func (s *Session) authorize(req payment.Request, done chan struct{}) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	res, err := payment.Charge(ctx, s.authorizer, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	defer close(done)

	if s.attempt.ID != req.AttemptID {
		return
	}
	s.attempt.FinishedAt = time.Now().UTC()
	if err != nil {
		s.status = domain.PaymentStatusError
		s.attempt.Status = domain.PaymentStatusError
		s.attempt.Reason = failureReason(err)
		s.logger.Warn("payment failed",
			zap.String("attempt_id", req.AttemptID),
			zap.String("reason", s.attempt.Reason),
			zap.Error(err))
		return
	}

	s.status = domain.PaymentStatusSuccess
	s.attempt.Status = domain.PaymentStatusSuccess
	s.attempt.TransactionID = res.TransactionID
	s.logger.Info("payment approved",
		zap.String("attempt_id", req.AttemptID),
		zap.String("transaction_id", res.TransactionID))
}

func failureReason(err error) string {
	var declined *payment.DeclinedError
	switch {
	case errors.As(err, &declined):
		return declined.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return "authorization timed out"
	default:
		return "payment service unavailable"
	}
}
