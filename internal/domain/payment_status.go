package domain

type PaymentStatus string

const (
	PaymentStatusIdle       PaymentStatus = "idle"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusSuccess    PaymentStatus = "success"
	PaymentStatusError      PaymentStatus = "error"
)

var transitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusIdle:       {PaymentStatusProcessing},
	PaymentStatusProcessing: {PaymentStatusSuccess, PaymentStatusError},
	PaymentStatusSuccess:    {PaymentStatusIdle},
	PaymentStatusError:      {PaymentStatusIdle},
}

// CanTransitionTo reports whether the payment state machine has an edge from -> to.
func CanTransitionTo(from, to PaymentStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether an authorization attempt has resolved.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusSuccess || s == PaymentStatusError
}

// String representation (for logging)
func (s PaymentStatus) String() string {
	return string(s)
}
