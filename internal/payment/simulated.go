package payment

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// DefaultDelay is how long the simulated gateway takes to answer.
const DefaultDelay = 1500 * time.Millisecond

// Decider picks the outcome of a simulated charge.
type Decider interface {
	Decide() (bool, Refusal)
}

// AlwaysApprove approves every charge.
type AlwaysApprove struct{}

func (AlwaysApprove) Decide() (bool, Refusal) {
	return true, RefusalNone
}

// RandomDecider declines roughly FailureRate percent of charges.
type RandomDecider struct {
	FailureRate int
}

func (r RandomDecider) Decide() (bool, Refusal) {
	return calcStatus(rand.Intn(100), r.FailureRate)
}

var knownRefusals = []Refusal{
	RefusalInsufficientFunds,
	RefusalCardExpired,
	RefusalSuspectedFraud,
	RefusalLimitExceeded,
	RefusalCardBlocked,
}

// calcStatus maps a roll in [0,100) to an outcome: rolls below 100-failureRate
// approve, the rest cycle through the known refusals with the first slot unknown.
func calcStatus(roll, failureRate int) (bool, Refusal) {
	if roll < 100-failureRate {
		return true, RefusalNone
	}
	slot := roll - (100 - failureRate)
	if slot == 0 {
		return false, RefusalUnknown
	}
	return false, knownRefusals[(slot-1)%len(knownRefusals)]
}

// Simulated stands in for a payment gateway: it answers after Delay.
type Simulated struct {
	Delay   time.Duration
	Decider Decider
}

func NewSimulated(delay time.Duration, decider Decider) *Simulated {
	if decider == nil {
		decider = AlwaysApprove{}
	}
	return &Simulated{Delay: delay, Decider: decider}
}

func (s *Simulated) Authorize(ctx context.Context, req Request) (Result, error) {
	if s.Delay > 0 {
		timer := time.NewTimer(s.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}

	approved, refusal := s.Decider.Decide()
	return Result{
		Approved:      approved,
		TransactionID: fmt.Sprintf("TXN-%s", uuid.NewString()),
		Refusal:       refusal,
	}, nil
}
