package dialog

import (
	"strings"

	"github.com/zhukovDV72toru/alice/internal/resolver"
)

// Event classifies a user utterance before state handlers see it.
type Event int

const (
	// EventUtterance is free text for the current state's handler.
	EventUtterance Event = iota
	// EventYes and EventNo answer the pending confirmation.
	EventYes
	EventNo
	// EventBack returns to the previous question.
	EventBack
	// EventHelp asks what the skill can do.
	EventHelp
	// EventAbout asks who the skill is.
	EventAbout
	// EventRestart abandons the session and starts over.
	EventRestart
	// EventList re-reads the options of the current question.
	EventList
	// EventStatus asks for the outcome of a deferred booking.
	EventStatus
)

var eventPhrases = map[Event][]string{
	EventYes:     {"да", "ага", "конечно", "верно", "точно", "подтверждаю", "давай"},
	EventNo:      {"нет", "не", "неверно", "не надо", "не подтверждаю"},
	EventBack:    {"назад", "вернись", "вернуться", "предыдущий вопрос"},
	EventHelp:    {"помощь", "помоги", "что ты умеешь", "справка"},
	EventAbout:   {"кто ты", "что ты", "расскажи о себе"},
	EventRestart: {"сначала", "заново", "отмена", "отменить", "стоп", "хватит"},
	EventList:    {"список", "варианты", "какие варианты", "перечисли", "повтори список"},
	EventStatus:  {"проверить статус", "статус", "готово ли", "записали"},
}

// order matters: multi-word commands first so "не надо" never reads as
// a bare "не".
var eventOrder = []Event{EventStatus, EventList, EventBack, EventRestart, EventHelp, EventAbout, EventNo, EventYes}

// ParseEvent classifies text. Single-token utterances match commands
// exactly; longer ones must contain a command phrase as a whole.
func ParseEvent(text string) Event {
	norm := resolver.Normalize(text)
	if norm == "" {
		return EventUtterance
	}

	for _, ev := range eventOrder {
		for _, phrase := range eventPhrases[ev] {
			if norm == phrase {
				return ev
			}
			if strings.Contains(phrase, " ") && strings.Contains(norm, phrase) {
				return ev
			}
		}
	}
	return EventUtterance
}
