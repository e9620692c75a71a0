// Package dialog drives the appointment-booking conversation. It owns
// the per-user session, the state transition tables and the response
// texts; everything network-facing is delegated to the registry client
// and the task coordinator.
package dialog

import (
	"fmt"
)

// State is one node of the conversation graph.
type State string

const (
	StateZero              State = "zero"
	StateGettingName       State = "getting_name"
	StateGettingDOB        State = "getting_dob"
	StateGettingPhone      State = "getting_phone"
	StateGettingSNILS      State = "getting_snils"
	StateConfirmation      State = "confirmation"
	StateAskPost           State = "ask_post"
	StateGettingPost       State = "getting_post"
	StateShowMO            State = "show_mo"
	StateGettingMO         State = "getting_mo"
	StateGettingMedic      State = "getting_medic"
	StateGettingWishDate   State = "getting_expected_date"
	StateGettingWishTime   State = "getting_expected_time"
	StateGettingDate       State = "getting_date"
	StateGettingTime       State = "getting_time"
	StateAppointment       State = "appointment"
	StateAwaitingAppointed State = "awaiting_appointment_status"
)

// ConfirmTopic says what a yes/no answer in StateConfirmation refers
// to. The topic is stored in the session next to the state so the
// answer never lands on the wrong question.
type ConfirmTopic string

const (
	ConfirmIdentity      ConfirmTopic = "identity"
	ConfirmBooking       ConfirmTopic = "booking"
	ConfirmSuggestedDate ConfirmTopic = "suggested_date"
	ConfirmSuggestedTime ConfirmTopic = "suggested_time"
)

// confirmOutcome names the states a confirmation resolves to.
type confirmOutcome struct {
	Yes State
	No  State
}

// confirmTable routes yes/no answers by topic. The Yes target of
// ConfirmIdentity and ConfirmBooking is where the dialogue continues
// after the side effect the handler performs first.
var confirmTable = map[ConfirmTopic]confirmOutcome{
	ConfirmIdentity:      {Yes: StateAskPost, No: StateGettingName},
	ConfirmBooking:       {Yes: StateAwaitingAppointed, No: StateGettingWishDate},
	ConfirmSuggestedDate: {Yes: StateGettingWishTime, No: StateGettingDate},
	ConfirmSuggestedTime: {Yes: StateAppointment, No: StateGettingTime},
}

// stateOfTopic says which state a confirmation topic is asked in.
// ConfirmBooking lives in the appointment state; the rest share the
// generic confirmation state.
func stateOfTopic(topic ConfirmTopic) State {
	if topic == ConfirmBooking {
		return StateAppointment
	}
	return StateConfirmation
}

// backTable is where "назад" leads from each state. States with no
// entry have nowhere meaningful to return to.
var backTable = map[State]State{
	StateGettingDOB:      StateGettingName,
	StateGettingPhone:    StateGettingDOB,
	StateGettingSNILS:    StateGettingPhone,
	StateGettingPost:     StateAskPost,
	StateShowMO:          StateAskPost,
	StateGettingMO:       StateShowMO,
	StateGettingMedic:    StateGettingMO,
	StateGettingWishDate: StateGettingMedic,
	StateGettingWishTime: StateGettingWishDate,
	StateGettingDate:     StateGettingWishDate,
	StateGettingTime:     StateGettingDate,
	StateAppointment:     StateGettingWishTime,
}

// allowedNext whitelists every transition a handler may perform. A
// handler returning a state outside its row is a programming error and
// is rejected at runtime.
var allowedNext = map[State][]State{
	StateZero:              {StateZero, StateGettingName, StateAskPost},
	StateGettingName:       {StateGettingName, StateGettingDOB},
	StateGettingDOB:        {StateGettingDOB, StateConfirmation},
	StateGettingPhone:      {StateGettingPhone, StateAskPost, StateGettingSNILS},
	StateGettingSNILS:      {StateGettingSNILS, StateAskPost, StateZero},
	StateConfirmation:      {StateConfirmation, StateAskPost, StateGettingName, StateGettingPhone, StateGettingWishTime, StateGettingDate, StateGettingTime, StateAppointment},
	StateAskPost:           {StateAskPost, StateGettingPost, StateShowMO},
	StateGettingPost:       {StateGettingPost, StateShowMO},
	StateShowMO:            {StateShowMO, StateGettingMO, StateGettingMedic},
	StateGettingMO:         {StateGettingMO, StateShowMO, StateGettingMedic},
	StateGettingMedic:      {StateGettingMedic, StateGettingWishDate},
	StateGettingWishDate:   {StateGettingWishDate, StateGettingWishTime, StateConfirmation, StateGettingMedic},
	StateGettingWishTime:   {StateGettingWishTime, StateAppointment, StateConfirmation, StateGettingWishDate},
	StateGettingDate:       {StateGettingDate, StateGettingTime},
	StateGettingTime:       {StateGettingTime, StateAppointment},
	StateAppointment:       {StateAppointment, StateGettingWishDate, StateGettingWishTime, StateAwaitingAppointed, StateZero},
	StateAwaitingAppointed: {StateAwaitingAppointed, StateZero, StateGettingWishDate},
}

// ValidateTables checks the transition tables for internal consistency
// at startup so a bad edit fails fast instead of stranding a session.
func ValidateTables() error {
	inGraph := func(s State) bool {
		_, ok := allowedNext[s]
		return ok
	}

	for topic, out := range confirmTable {
		if !inGraph(out.Yes) {
			return fmt.Errorf("dialog: confirm topic %q: yes target %q is not a state", topic, out.Yes)
		}
		if !inGraph(out.No) {
			return fmt.Errorf("dialog: confirm topic %q: no target %q is not a state", topic, out.No)
		}
	}

	for from, to := range backTable {
		if !inGraph(from) {
			return fmt.Errorf("dialog: back table source %q is not a state", from)
		}
		if !inGraph(to) {
			return fmt.Errorf("dialog: back table target %q is not a state", to)
		}
	}

	for from, nexts := range allowedNext {
		if len(nexts) == 0 {
			return fmt.Errorf("dialog: state %q has no outgoing transitions", from)
		}
		for _, to := range nexts {
			if !inGraph(to) {
				return fmt.Errorf("dialog: transition %q -> %q targets an unknown state", from, to)
			}
		}
	}
	return nil
}

func transitionAllowed(from, to State) bool {
	for _, s := range allowedNext[from] {
		if s == to {
			return true
		}
	}
	return false
}
