package validate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"89021234567", "+7(902)1234567"},
		{"79021234567", "+7(902)1234567"},
		{"9021234567", "+7(902)1234567"},
		{"+7 (902) 123-45-67", "+7(902)1234567"},
		{"восемь 902 123 45 67", "+7(902)1234567"},
	}
	for _, tc := range cases {
		got, err := Phone(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestPhone_Invalid(t *testing.T) {
	for _, in := range []string{"", "12345", "59021234567", "790212345678"} {
		_, err := Phone(in)
		assert.ErrorIs(t, err, ErrBadPhone, in)
	}
}

func TestSNILS(t *testing.T) {
	// 112-233-445 95: 1*9+1*8+2*7+2*6+3*5+3*4+4*3+4*2+5*1 = 95.
	got, err := SNILS("112-233-445 95")
	require.NoError(t, err)
	assert.Equal(t, "11223344595", got)
}

func TestSNILS_Invalid(t *testing.T) {
	for _, in := range []string{"", "11223344", "112233445951"} {
		_, err := SNILS(in)
		assert.ErrorIs(t, err, ErrSNILSLength, in)
	}
	for _, in := range []string{"112-233-445 96", "00000000012"} {
		_, err := SNILS(in)
		assert.ErrorIs(t, err, ErrSNILSChecksum, in)
	}
}

func TestBirthDate(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	assert.NoError(t, BirthDate(time.Date(1990, 3, 12, 0, 0, 0, 0, time.UTC), now))
	assert.ErrorIs(t, BirthDate(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), now), ErrFutureBirthDate)
	assert.ErrorIs(t, BirthDate(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), now), ErrTooYoung)
	assert.ErrorIs(t, BirthDate(time.Date(1899, 1, 1, 0, 0, 0, 0, time.UTC), now), ErrImplausibleAge)

	// Turns 12 tomorrow: still too young today.
	assert.ErrorIs(t, BirthDate(time.Date(2014, 8, 30, 0, 0, 0, 0, time.UTC), now), ErrTooYoung)
	// Turned 12 today: allowed.
	assert.NoError(t, BirthDate(time.Date(2014, 8, 29, 0, 0, 0, 0, time.UTC), now))
}
