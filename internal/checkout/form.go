package checkout

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/fjod/go_cart/cafe-service/internal/payment"
)

// FormData is what the customer typed into the payment form. It lives only
// inside a Session; the JSON view of it is always masked.
type FormData struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Address    string `json:"address"`
	CardNumber string `json:"card_number"`
	Expiry     string `json:"expiry"`
	CVV        string `json:"-"`
}

// Validate checks that every field of the form is filled in.
func (f FormData) Validate() error {
	var missing []string
	for _, field := range []struct {
		name  string
		value string
	}{
		{"name", f.Name},
		{"email", f.Email},
		{"address", f.Address},
		{"card_number", f.CardNumber},
		{"expiry", f.Expiry},
		{"cvv", f.CVV},
	} {
		if strings.TrimSpace(field.value) == "" {
			missing = append(missing, field.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidForm, strings.Join(missing, ", "))
	}
	return nil
}

// CardLast4 returns the last four digits of the card number, ignoring spaces and dashes.
func (f FormData) CardLast4() string {
	digits := make([]rune, 0, len(f.CardNumber))
	for _, r := range f.CardNumber {
		if unicode.IsDigit(r) {
			digits = append(digits, r)
		}
	}
	if len(digits) <= 4 {
		return string(digits)
	}
	return string(digits[len(digits)-4:])
}

// Masked returns a copy safe to hand out: card number reduced to its last
// four digits, CVV dropped.
func (f FormData) Masked() FormData {
	masked := f
	masked.CVV = ""
	if last4 := f.CardLast4(); last4 != "" {
		masked.CardNumber = "**** **** **** " + last4
	}
	return masked
}

func (f FormData) customer() payment.Customer {
	return payment.Customer{
		Name:      f.Name,
		Email:     f.Email,
		Address:   f.Address,
		CardLast4: f.CardLast4(),
		Expiry:    f.Expiry,
	}
}
