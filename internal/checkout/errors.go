package checkout

import "errors"

var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrIllegalTransition  = errors.New("illegal payment state transition")
	ErrCheckoutInProgress = errors.New("payment is processing")
	ErrSessionClosed      = errors.New("checkout session closed")
	ErrInvalidForm        = errors.New("invalid checkout form")
)
