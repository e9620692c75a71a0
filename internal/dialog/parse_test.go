package dialog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseName(t *testing.T) {
	last, first, middle, ok := parseName("Иванов Иван Иванович")
	require.True(t, ok)
	assert.Equal(t, "Иванов", last)
	assert.Equal(t, "Иван", first)
	assert.Equal(t, "Иванович", middle)

	last, _, _, ok = parseName("меня зовут сидорова анна павловна")
	require.True(t, ok)
	assert.Equal(t, "Сидорова", last)

	_, _, _, ok = parseName("Иванов Иван")
	assert.False(t, ok)
	_, _, _, ok = parseName("")
	assert.False(t, ok)
}

func TestGenderFromPatronymic(t *testing.T) {
	assert.Equal(t, "male", genderFromPatronymic("Иванович"))
	assert.Equal(t, "male", genderFromPatronymic("Ильич"))
	assert.Equal(t, "female", genderFromPatronymic("Павловна"))
	assert.Equal(t, "female", genderFromPatronymic("Никитична"))
	assert.Equal(t, "", genderFromPatronymic("Смит"))
}

func TestParseDate(t *testing.T) {
	now := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)

	got, ok := parseDate("12.03.1990", now)
	require.True(t, ok)
	assert.Equal(t, time.Date(1990, 3, 12, 0, 0, 0, 0, time.UTC), got)

	got, ok = parseDate("1990-03-12", now)
	require.True(t, ok)
	assert.Equal(t, time.Date(1990, 3, 12, 0, 0, 0, 0, time.UTC), got)

	got, ok = parseDate("15 сентября", now)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC), got)

	// A month already past this year rolls into the next one.
	got, ok = parseDate("15.02", now)
	require.True(t, ok)
	assert.Equal(t, time.Date(2027, 2, 15, 0, 0, 0, 0, time.UTC), got)

	got, ok = parseDate("2 сентября 2026", now)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC), got)

	_, ok = parseDate("завтра наверное", now)
	assert.False(t, ok)
	_, ok = parseDate("31.02.2026", now)
	assert.False(t, ok)
}

func TestParseTime(t *testing.T) {
	cases := map[string]string{
		"9":        "09:00",
		"9:30":     "09:30",
		"09.30":    "09:30",
		"в 15 30":  "15:30",
		"часов 10": "10:00",
	}
	for in, want := range cases {
		got, ok := parseTime(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := parseTime("вечером")
	assert.False(t, ok)
	_, ok = parseTime("25:70")
	assert.False(t, ok)
}
