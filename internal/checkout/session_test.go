package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/cafe-service/internal/cache"
	"github.com/fjod/go_cart/cafe-service/internal/cart"
	"github.com/fjod/go_cart/cafe-service/internal/domain"
	"github.com/fjod/go_cart/cafe-service/internal/payment"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var validForm = FormData{
	Name:       "Ada Lovelace",
	Email:      "ada@example.com",
	Address:    "1 Analytical Way",
	CardNumber: "4242 4242 4242 4242",
	Expiry:     "12/29",
	CVV:        "123",
}

// recordingAuthorizer captures requests and answers with a fixed outcome.
type recordingAuthorizer struct {
	mu       sync.Mutex
	requests []payment.Request
	result   payment.Result
	err      error
	hang     bool
}

func (r *recordingAuthorizer) Authorize(ctx context.Context, req payment.Request) (payment.Result, error) {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	hang, result, err := r.hang, r.result, r.err
	r.mu.Unlock()

	if hang {
		<-ctx.Done()
		return payment.Result{}, ctx.Err()
	}
	return result, err
}

func (r *recordingAuthorizer) calls() []payment.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]payment.Request(nil), r.requests...)
}

func approving() *recordingAuthorizer {
	return &recordingAuthorizer{result: payment.Result{Approved: true, TransactionID: "TXN-1"}}
}

func newCart(t *testing.T, lines ...domain.CartLine) *cart.Store {
	s := cart.NewStore(context.Background(), cache.NewMemoryCache(), cart.DefaultKey)
	for _, l := range lines {
		for i := 0; i < l.Quantity; i++ {
			s.AddItem(context.Background(), l.Product)
		}
	}
	return s
}

func waitResolved(t *testing.T, s *Session) Attempt {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	attempt, err := s.Wait(ctx)
	require.NoError(t, err)
	return attempt
}

func TestSession_SubmitApproveAcknowledge(t *testing.T) {
	store := newCart(t, line("cappuccino", "4.50", 2), line("americano", "3.00", 1))
	auth := approving()
	var receipts []Receipt
	s := NewSession(store, auth,
		WithLogger(zaptest.NewLogger(t)),
		WithCompletionHook(func(_ context.Context, r Receipt) { receipts = append(receipts, r) }))

	attempt, err := s.Submit(validForm)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusProcessing, attempt.Status)
	assert.Equal(t, MessageProcessing, attempt.Message())

	attempt = waitResolved(t, s)
	assert.Equal(t, domain.PaymentStatusSuccess, attempt.Status)
	assert.Equal(t, MessageSuccess, attempt.Message())
	assert.Equal(t, "TXN-1", attempt.TransactionID)
	assert.False(t, store.Snapshot().IsEmpty())

	receipt, err := s.Acknowledge(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusIdle, s.Status())
	assert.True(t, store.Snapshot().IsEmpty())
	assert.Nil(t, s.View().Form)
	assert.Equal(t, "15.95", FormatAmount(receipt.Totals.GrandTotal))
	assert.Len(t, receipt.Lines, 2)
	require.Len(t, receipts, 1)
	assert.Equal(t, receipt.OrderID, receipts[0].OrderID)
}

func TestSession_ChargesGrandTotalWithoutRawCardData(t *testing.T) {
	store := newCart(t, line("cappuccino", "4.50", 2), line("americano", "3.00", 1))
	auth := approving()
	s := NewSession(store, auth)

	_, err := s.Submit(validForm)
	require.NoError(t, err)
	waitResolved(t, s)

	calls := auth.calls()
	require.Len(t, calls, 1)
	assert.True(t, calls[0].Amount.Equal(decimal.RequireFromString("15.95")))
	assert.Equal(t, Currency, calls[0].Currency)
	assert.Equal(t, "4242", calls[0].Customer.CardLast4)
}

func TestSession_EmptyCartRejected(t *testing.T) {
	s := NewSession(newCart(t), approving())

	_, err := s.Submit(validForm)

	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Equal(t, domain.PaymentStatusIdle, s.Status())
}

func TestSession_InvalidFormRejected(t *testing.T) {
	s := NewSession(newCart(t, line("latte", "4.75", 1)), approving())
	form := validForm
	form.Email = " "
	form.CVV = ""

	_, err := s.Submit(form)

	require.ErrorIs(t, err, ErrInvalidForm)
	assert.Contains(t, err.Error(), "email, cvv")
	assert.Equal(t, domain.PaymentStatusIdle, s.Status())
}

func TestSession_SecondSubmitWhileProcessing(t *testing.T) {
	auth := &recordingAuthorizer{hang: true}
	s := NewSession(newCart(t, line("latte", "4.75", 1)), auth, WithTimeout(time.Second))

	_, err := s.Submit(validForm)
	require.NoError(t, err)

	_, err = s.Submit(validForm)
	assert.ErrorIs(t, err, ErrIllegalTransition)
	assert.Len(t, auth.calls(), 1)
}

func TestSession_CloseWhileProcessingHasNoEffect(t *testing.T) {
	auth := &recordingAuthorizer{hang: true}
	s := NewSession(newCart(t, line("latte", "4.75", 1)), auth, WithTimeout(time.Second))
	_, err := s.Submit(validForm)
	require.NoError(t, err)

	err = s.Close()

	assert.ErrorIs(t, err, ErrCheckoutInProgress)
	assert.Equal(t, domain.PaymentStatusProcessing, s.Status())
	assert.False(t, s.View().Closed)
}

func TestSession_TimeoutMovesToError(t *testing.T) {
	auth := &recordingAuthorizer{hang: true}
	s := NewSession(newCart(t, line("latte", "4.75", 1)), auth, WithTimeout(20*time.Millisecond))

	_, err := s.Submit(validForm)
	require.NoError(t, err)

	attempt := waitResolved(t, s)
	assert.Equal(t, domain.PaymentStatusError, attempt.Status)
	assert.Equal(t, "Payment failed: authorization timed out", attempt.Message())
}

func TestSession_DeclineThenRetry(t *testing.T) {
	store := newCart(t, line("latte", "4.75", 1))
	auth := &recordingAuthorizer{result: payment.Result{Refusal: payment.RefusalInsufficientFunds}}
	s := NewSession(store, auth)

	_, err := s.Submit(validForm)
	require.NoError(t, err)
	attempt := waitResolved(t, s)
	assert.Equal(t, "Payment failed: insufficient funds", attempt.Message())

	auth.mu.Lock()
	auth.result = payment.Result{Approved: true, TransactionID: "TXN-2"}
	auth.mu.Unlock()

	retried, err := s.Retry()
	require.NoError(t, err)
	assert.NotEqual(t, attempt.ID, retried.ID)

	attempt = waitResolved(t, s)
	assert.Equal(t, domain.PaymentStatusSuccess, attempt.Status)
	calls := auth.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, calls[0].Customer, calls[1].Customer)
}

func TestSession_GatewayErrorThenDismissKeepsForm(t *testing.T) {
	auth := &recordingAuthorizer{err: errors.New("connection refused")}
	s := NewSession(newCart(t, line("latte", "4.75", 1)), auth)

	_, err := s.Submit(validForm)
	require.NoError(t, err)
	attempt := waitResolved(t, s)
	assert.Equal(t, "Payment failed: payment service unavailable", attempt.Message())

	require.NoError(t, s.Dismiss())

	view := s.View()
	assert.Equal(t, domain.PaymentStatusIdle, view.Status)
	require.NotNil(t, view.Form)
	assert.Equal(t, "Ada Lovelace", view.Form.Name)
	assert.Equal(t, "**** **** **** 4242", view.Form.CardNumber)
	assert.Empty(t, view.Form.CVV)
}

func TestSession_IllegalTransitions(t *testing.T) {
	s := NewSession(newCart(t, line("latte", "4.75", 1)), approving())

	_, err := s.Acknowledge(context.Background())
	assert.ErrorIs(t, err, ErrIllegalTransition)
	assert.ErrorIs(t, s.Dismiss(), ErrIllegalTransition)
	_, err = s.Retry()
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestSession_ClosedRejectsSubmit(t *testing.T) {
	s := NewSession(newCart(t, line("latte", "4.75", 1)), approving())

	require.NoError(t, s.Close())
	_, err := s.Submit(validForm)

	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestSession_ViewFollowsCartWhileIdle(t *testing.T) {
	store := newCart(t, line("latte", "4.75", 1))
	s := NewSession(store, approving())

	assert.Equal(t, "8.12", FormatAmount(s.View().Totals.GrandTotal))
	assert.Equal(t, "Pay $8.12", s.View().PayLabel())

	store.AddItem(context.Background(), line("latte", "4.75", 1).Product)
	assert.Equal(t, "13.25", FormatAmount(s.View().Totals.GrandTotal))
}

func TestFormData_Masked(t *testing.T) {
	masked := validForm.Masked()

	assert.Equal(t, "**** **** **** 4242", masked.CardNumber)
	assert.Empty(t, masked.CVV)
	assert.Equal(t, "123", validForm.CVV)
	assert.Equal(t, "4242", FormData{CardNumber: "4242-4242-4242-4242"}.CardLast4())
	assert.Equal(t, "12", FormData{CardNumber: "12"}.CardLast4())
}
