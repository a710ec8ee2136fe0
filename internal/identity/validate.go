package identity

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

const minPasswordLength = 8

// ErrInvalidPhone is returned when a number cannot be read as a Kenyan mobile number.
var ErrInvalidPhone = errors.New("phone must be a Kenyan mobile number")

// Normalize trims whitespace and lowercases the email.
func (c Credentials) Normalize() Credentials {
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	return c
}

// Validate checks the credentials before they are sent upstream.
func (c Credentials) Validate() error {
	if c.Email == "" {
		return errors.New("email is required")
	}
	if _, err := mail.ParseAddress(c.Email); err != nil {
		return errors.New("email is not valid")
	}
	if c.Password == "" {
		return errors.New("password is required")
	}
	return nil
}

// Normalize trims fields and canonicalises the phone number when one is set.
func (r Registration) Normalize() Registration {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Name = strings.TrimSpace(r.Name)
	r.Role = Role(strings.ToLower(strings.TrimSpace(string(r.Role))))
	if phone, err := NormalizePhone(r.Phone); err == nil {
		r.Phone = phone
	}
	return r
}

// Validate checks a self-service registration. Admin accounts cannot be self-registered.
func (r Registration) Validate() error {
	if err := (Credentials{Email: r.Email, Password: r.Password}).Validate(); err != nil {
		return err
	}
	if len(r.Password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	if r.Name == "" {
		return errors.New("name is required")
	}
	if r.Role != RoleCreative && r.Role != RoleClient {
		return errors.New("role must be creative or client")
	}
	if r.Phone != "" {
		if _, err := NormalizePhone(r.Phone); err != nil {
			return err
		}
	}
	return nil
}

// NormalizePhone converts 07XXXXXXXX, 01XXXXXXXX, +2547XXXXXXXX and
// 2547XXXXXXXX forms into the 254XXXXXXXXX MSISDN form.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '+':
		default:
			return "", ErrInvalidPhone
		}
	}
	digits := b.String()

	switch {
	case len(digits) == 10 && digits[0] == '0':
		digits = "254" + digits[1:]
	case len(digits) == 9 && (digits[0] == '7' || digits[0] == '1'):
		digits = "254" + digits
	}

	if len(digits) != 12 || !strings.HasPrefix(digits, "254") {
		return "", ErrInvalidPhone
	}
	if digits[3] != '7' && digits[3] != '1' {
		return "", ErrInvalidPhone
	}
	return digits, nil
}
