// Package validate checks and normalizes the personal data users
// dictate: phone numbers, SNILS numbers and birth dates.
package validate

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
)

var (
	// ErrBadPhone means the utterance does not contain a usable
	// Russian mobile or landline number.
	ErrBadPhone = errors.New("validate: not a valid phone number")
	// ErrSNILSLength means the utterance does not carry eleven digits.
	ErrSNILSLength = errors.New("validate: SNILS must have eleven digits")
	// ErrSNILSChecksum means the control digits do not match.
	ErrSNILSChecksum = errors.New("validate: SNILS checksum mismatch")
)

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Phone normalizes a dictated phone number to the registry's canonical
// form +7(XXX)XXXXXXX. Ten-digit numbers get the country code added;
// eleven-digit numbers must start with 7 or 8.
func Phone(raw string) (string, error) {
	d := digits(raw)
	switch len(d) {
	case 10:
		// keep as is
	case 11:
		if d[0] != '7' && d[0] != '8' {
			return "", ErrBadPhone
		}
		d = d[1:]
	default:
		return "", ErrBadPhone
	}
	return fmt.Sprintf("+7(%s)%s", d[:3], d[3:]), nil
}

// SNILS validates an eleven-digit SNILS and returns its bare digits.
// The last two digits are a checksum over the first nine.
func SNILS(raw string) (string, error) {
	d := digits(raw)
	if len(d) != 11 {
		return "", ErrSNILSLength
	}

	sum := 0
	for i := 0; i < 9; i++ {
		sum += int(d[i]-'0') * (9 - i)
	}
	control := sum % 101
	if control == 100 {
		control = 0
	}

	var declared int
	if _, err := fmt.Sscanf(d[9:], "%02d", &declared); err != nil {
		return "", ErrSNILSChecksum
	}
	if control != declared {
		return "", ErrSNILSChecksum
	}
	return d, nil
}

const (
	minBookingAge = 12
	maxAge        = 120
)

var (
	// ErrFutureBirthDate means the date lies ahead of today.
	ErrFutureBirthDate = errors.New("validate: birth date is in the future")
	// ErrTooYoung means the patient is below the self-booking age.
	ErrTooYoung = errors.New("validate: patient is too young to book an appointment")
	// ErrImplausibleAge means the date implies an impossible age.
	ErrImplausibleAge = errors.New("validate: birth date implies an implausible age")
)

// BirthDate checks that a birth date is in the past, the patient is old
// enough to book for themselves, and the implied age is plausible.
func BirthDate(dob, now time.Time) error {
	if dob.After(now) {
		return ErrFutureBirthDate
	}
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	if age < minBookingAge {
		return ErrTooYoung
	}
	if age > maxAge {
		return ErrImplausibleAge
	}
	return nil
}
