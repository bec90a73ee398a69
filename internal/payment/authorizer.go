// Package payment provides the authorization collaborator used at checkout.
package payment

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Customer is what the authorizer may see of the checkout form. The full
// card number and CVV never leave the checkout session.
type Customer struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Address   string `json:"address"`
	CardLast4 string `json:"card_last4"`
	Expiry    string `json:"expiry"`
}

type Request struct {
	AttemptID string
	Amount    decimal.Decimal
	Currency  string
	Customer  Customer
}

type Refusal string

const (
	RefusalNone              Refusal = ""
	RefusalInsufficientFunds Refusal = "insufficient funds"
	RefusalCardExpired       Refusal = "card expired"
	RefusalSuspectedFraud    Refusal = "suspected fraud"
	RefusalLimitExceeded     Refusal = "limit exceeded"
	RefusalCardBlocked       Refusal = "card blocked"
	RefusalUnknown           Refusal = "unknown reason"
)

type Result struct {
	Approved      bool
	TransactionID string
	Refusal       Refusal
}

// Authorizer charges an amount. A declined charge is a Result with Approved
// false; errors are reserved for failures to get an answer.
type Authorizer interface {
	Authorize(ctx context.Context, req Request) (Result, error)
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(ctx context.Context, req Request) (Result, error)

func (f AuthorizerFunc) Authorize(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}

// DeclinedError describes a refused charge for display.
type DeclinedError struct {
	Refusal Refusal
}

func (e *DeclinedError) Error() string {
	if e.Refusal == RefusalNone {
		return string(RefusalUnknown)
	}
	return string(e.Refusal)
}

// Charge calls a and folds a decline into a *DeclinedError.
func Charge(ctx context.Context, a Authorizer, req Request) (Result, error) {
	res, err := a.Authorize(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("authorize %s: %w", req.AttemptID, err)
	}
	if !res.Approved {
		return res, &DeclinedError{Refusal: res.Refusal}
	}
	return res, nil
}
