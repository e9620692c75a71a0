package dialog

import (
	"context"
	"errors"
	"fmt"

	"github.com/zhukovDV72toru/alice/internal/session"
	"github.com/zhukovDV72toru/alice/internal/tasks"
	"github.com/zhukovDV72toru/alice/internal/validate"
)

func (m *Machine) handleZero(ctx context.Context, sess *userSession, _ Input) (Response, error) {
	if resp, handled, err := m.identityShortcut(ctx, sess); err != nil {
		return Response{}, err
	} else if handled {
		return resp, nil
	}
	if err := m.transition(ctx, sess, StateZero, StateGettingName); err != nil {
		return Response{}, err
	}
	return say(textAskName), nil
}

func (m *Machine) handleGettingName(ctx context.Context, sess *userSession, in Input) (Response, error) {
	last, first, middle, ok := parseName(in.Text)
	if !ok {
		return say(textBadName), nil
	}

	patch := session.Patch{}.
		Set(fieldLastName, last, ttlIdentity).
		Set(fieldFirstName, first, ttlIdentity).
		Set(fieldMiddleName, middle, ttlIdentity).
		Set(fieldGender, genderFromPatronymic(middle), ttlIdentity).
		Remove(fieldPatientID)
	if err := sess.apply(ctx, patch); err != nil {
		return Response{}, err
	}
	if err := m.transition(ctx, sess, StateGettingName, StateGettingDOB); err != nil {
		return Response{}, err
	}
	return say(textAskDOB), nil
}

func (m *Machine) handleGettingDOB(ctx context.Context, sess *userSession, in Input) (Response, error) {
	dob, ok := parseDate(in.Text, m.deps.Now())
	if !ok {
		return say(textBadDOB), nil
	}

	switch err := validate.BirthDate(dob, m.deps.Now()); {
	case errors.Is(err, validate.ErrFutureBirthDate):
		return say(textFutureDOB), nil
	case errors.Is(err, validate.ErrTooYoung):
		return say(textTooYoung), nil
	case errors.Is(err, validate.ErrImplausibleAge):
		return say(textOldDOB), nil
	case err != nil:
		return Response{}, err
	}

	patch := session.Patch{}.
		Set(fieldBirthDate, dob.Format("2006-01-02"), ttlIdentity).
		Set(fieldTopic, string(ConfirmIdentity), ttlDefault)
	if err := sess.apply(ctx, patch); err != nil {
		return Response{}, err
	}
	if err := m.transition(ctx, sess, StateGettingDOB, StateConfirmation); err != nil {
		return Response{}, err
	}

	id, err := sess.identity(ctx)
	if err != nil {
		return Response{}, err
	}
	return say(textIdentityConfirm(id)), nil
}

func (m *Machine) handleGettingPhone(ctx context.Context, sess *userSession, in Input) (Response, error) {
	pending, err := sess.getString(ctx, fieldPendingTask)
	if err != nil {
		return Response{}, err
	}
	if pending != "" {
		return m.identify(ctx, sess, in, StateGettingPhone, tasks.MethodPhone)
	}

	phone, perr := validate.Phone(in.Text)
	if perr != nil {
		return say(textBadPhone), nil
	}
	if err := sess.set(ctx, fieldPhone, phone); err != nil {
		return Response{}, err
	}
	return m.identify(ctx, sess, in, StateGettingPhone, tasks.MethodPhone)
}

func (m *Machine) handleGettingSNILS(ctx context.Context, sess *userSession, in Input) (Response, error) {
	pending, err := sess.getString(ctx, fieldPendingTask)
	if err != nil {
		return Response{}, err
	}
	if pending != "" {
		return m.identify(ctx, sess, in, StateGettingSNILS, tasks.MethodSNILS)
	}

	snils, serr := validate.SNILS(in.Text)
	switch {
	case errors.Is(serr, validate.ErrSNILSLength):
		return say(textBadSNILSLength), nil
	case serr != nil:
		return say(textBadSNILS), nil
	}
	if err := sess.set(ctx, fieldSNILS, snils); err != nil {
		return Response{}, err
	}
	return m.identify(ctx, sess, in, StateGettingSNILS, tasks.MethodSNILS)
}

// identify runs the find-patient task for the given method. A task
// already pending in the session is polled instead of resubmitted, so
// each turn performs at most one submission.
func (m *Machine) identify(ctx context.Context, sess *userSession, in Input, from State, method string) (Response, error) {
	handle, err := sess.getString(ctx, fieldPendingTask)
	if err != nil {
		return Response{}, err
	}
	if handle == "" {
		id, err := sess.identity(ctx)
		if err != nil {
			return Response{}, err
		}
		handle, err = m.deps.Tasks.Submit(ctx, tasks.KindFindPatient, tasks.FindPatientPayload{
			SessionID: in.SessionID,
			Method:    method,
			Identity:  id,
		})
		if err != nil {
			return Response{}, fmt.Errorf("dialog: failed to submit identification: %w", err)
		}
		if err := sess.set(ctx, fieldPendingTask, handle); err != nil {
			return Response{}, err
		}
	}

	res, ready, err := m.deps.Tasks.AwaitOrDefer(ctx, handle, m.deps.BookingWait)
	if errors.Is(err, tasks.ErrUnknownTask) {
		if derr := sess.store.Delete(ctx, sess.userID, fieldPendingTask); derr != nil {
			return Response{}, derr
		}
		return say(textWorkFailed), nil
	}
	if err != nil {
		return Response{}, err
	}
	if !ready {
		return say(textStillBusy), nil
	}

	if err := sess.store.Delete(ctx, sess.userID, fieldPendingTask); err != nil {
		return Response{}, err
	}
	if res.Status == tasks.StatusFailed {
		return say(textWorkFailed), nil
	}

	var found tasks.FindPatientResult
	if err := res.Decode(&found); err != nil {
		return Response{}, err
	}
	if found.PatientID == "" {
		return m.identityNotFound(ctx, sess, from)
	}

	if err := sess.set(ctx, fieldPatientID, found.PatientID); err != nil {
		return Response{}, err
	}
	m.prefetchFacilities(ctx, sess, in.SessionID)

	if err := m.transition(ctx, sess, from, StateAskPost); err != nil {
		return Response{}, err
	}
	return say(textAskPost), nil
}

// identityNotFound advances to the next identification method, or gives
// up after SNILS.
func (m *Machine) identityNotFound(ctx context.Context, sess *userSession, from State) (Response, error) {
	switch from {
	case StateConfirmation:
		if err := m.transition(ctx, sess, from, StateGettingPhone); err != nil {
			return Response{}, err
		}
		return say(textAskPhone), nil
	case StateGettingPhone:
		if err := m.transition(ctx, sess, from, StateGettingSNILS); err != nil {
			return Response{}, err
		}
		return say(textAskSNILS), nil
	default:
		if err := sess.clear(ctx); err != nil {
			return Response{}, err
		}
		return Response{Text: textNotFound, TTS: textNotFound, EndSession: true}, nil
	}
}

// prefetchFacilities warms the facility list for the default profession
// while the user is still choosing a specialty. Best effort only.
func (m *Machine) prefetchFacilities(ctx context.Context, sess *userSession, sessionID string) {
	handle, err := m.deps.Tasks.Submit(ctx, tasks.KindListFacilities, tasks.ListFacilitiesPayload{
		SessionID:    sessionID,
		ProfessionID: m.deps.DefaultProfessionID,
	})
	if err != nil {
		m.deps.Logger.Warn("facility prefetch skipped", "error", err)
		return
	}
	if err := sess.set(ctx, fieldPrefetchTask, handle); err != nil {
		m.deps.Logger.Warn("failed to remember prefetch handle", "error", err)
	}
}

// confirm routes a yes/no answer by the pending topic.
func (m *Machine) confirm(ctx context.Context, sess *userSession, in Input, yes bool) (Response, error) {
	topic, err := sess.topic(ctx)
	if err != nil {
		return Response{}, err
	}
	out, ok := confirmTable[topic]
	if !ok {
		return say(textHelp), nil
	}
	from := stateOfTopic(topic)

	if !yes {
		return m.confirmNo(ctx, sess, topic, from, out.No)
	}

	switch topic {
	case ConfirmIdentity:
		return m.identify(ctx, sess, in, StateConfirmation, tasks.MethodName)
	case ConfirmSuggestedDate:
		if err := m.transition(ctx, sess, from, StateGettingWishTime); err != nil {
			return Response{}, err
		}
		return say(textAskTime), nil
	case ConfirmSuggestedTime:
		return m.enterAppointment(ctx, sess, from)
	case ConfirmBooking:
		return m.commitBooking(ctx, sess, in)
	default:
		return say(textHelp), nil
	}
}

func (m *Machine) confirmNo(ctx context.Context, sess *userSession, topic ConfirmTopic, from, to State) (Response, error) {
	if err := m.transition(ctx, sess, from, to); err != nil {
		return Response{}, err
	}

	switch topic {
	case ConfirmIdentity:
		return say(textAskName), nil
	case ConfirmBooking:
		return say(textAskWish), nil
	case ConfirmSuggestedDate:
		grid, ok, err := sess.grid(ctx)
		if err != nil {
			return Response{}, err
		}
		if !ok {
			return say(textNoSlots), nil
		}
		return say(textDateList(grid.Dates())), nil
	case ConfirmSuggestedTime:
		grid, ok, err := sess.grid(ctx)
		if err != nil {
			return Response{}, err
		}
		wish, werr := sess.getString(ctx, fieldWishDate)
		if werr != nil {
			return Response{}, werr
		}
		if !ok || wish == "" {
			return say(textNoSlots), nil
		}
		return say(textTimeList(grid.TimesFor(wish))), nil
	default:
		return say(textHelp), nil
	}
}

// repeatConfirmation re-asks the pending yes/no question.
func (m *Machine) repeatConfirmation(ctx context.Context, sess *userSession) (Response, error) {
	topic, err := sess.topic(ctx)
	if err != nil {
		return Response{}, err
	}

	switch topic {
	case ConfirmIdentity:
		id, err := sess.identity(ctx)
		if err != nil {
			return Response{}, err
		}
		return say(textIdentityConfirm(id)), nil
	case ConfirmBooking:
		return m.bookingSummary(ctx, sess)
	case ConfirmSuggestedDate:
		wish, err := sess.getString(ctx, fieldWishDate)
		if err != nil {
			return Response{}, err
		}
		return say(textSuggestDate(wish)), nil
	case ConfirmSuggestedTime:
		slot, ok, err := sess.selectedSlot(ctx)
		if err != nil {
			return Response{}, err
		}
		if !ok {
			return say(textAskTime), nil
		}
		return say(textSuggestTime(slot.Time.Format("15:04"))), nil
	default:
		return say(textHelp), nil
	}
}
