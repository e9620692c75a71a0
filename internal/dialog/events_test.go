package dialog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseEvent(t *testing.T) {
	cases := map[string]Event{
		"да":                 EventYes,
		"Да, конечно":        EventUtterance, // ambiguous sentences go to the handler
		"конечно":            EventYes,
		"нет":                EventNo,
		"не надо":            EventNo,
		"назад":              EventBack,
		"помощь":             EventHelp,
		"что ты умеешь":      EventHelp,
		"кто ты":             EventAbout,
		"заново":             EventRestart,
		"отмена":             EventRestart,
		"проверить статус":   EventStatus,
		"какие варианты":     EventList,
		"список":             EventList,
		"терапевт":           EventUtterance,
		"Иванов Иван Иванович": EventUtterance,
		"":                   EventUtterance,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseEvent(in), "%q", in)
	}
}

func TestParseEvent_MultiWordBeforeSingle(t *testing.T) {
	// "не надо" must not be read as a bare "не".
	assert.Equal(t, EventNo, ParseEvent("нет не надо"))
	assert.Equal(t, EventStatus, ParseEvent("скажи проверить статус пожалуйста"))
}
