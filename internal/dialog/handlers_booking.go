package dialog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/zhukovDV72toru/alice/internal/bookings"
	"github.com/zhukovDV72toru/alice/internal/registry"
	"github.com/zhukovDV72toru/alice/internal/resolver"
	"github.com/zhukovDV72toru/alice/internal/schedule"
	"github.com/zhukovDV72toru/alice/internal/session"
	"github.com/zhukovDV72toru/alice/internal/tasks"
)

// handleProfession resolves the specialty the user asked for and moves
// on to the facility list.
func (m *Machine) handleProfession(ctx context.Context, sess *userSession, state State, in Input) (Response, error) {
	pending, err := sess.getString(ctx, fieldPendingTask)
	if err != nil {
		return Response{}, err
	}
	if pending != "" {
		// The facility list is still loading from a previous turn.
		postID, _, perr := sess.postID(ctx)
		if perr != nil {
			return Response{}, perr
		}
		return m.loadFacilities(ctx, sess, in, state, postID)
	}

	candidates := make([]resolver.Candidate, 0, len(m.deps.Catalog.All()))
	for _, p := range m.deps.Catalog.All() {
		candidates = append(candidates, resolver.Candidate{ID: strconv.Itoa(p.ID), Labels: []string{p.Name}})
	}

	res := resolver.Resolve(in.Text, candidates, resolver.DefaultThreshold)
	switch res.Kind {
	case resolver.None:
		return say(textBadPost), nil
	case resolver.Ambiguous:
		if err := m.transition(ctx, sess, state, StateGettingPost); err != nil {
			return Response{}, err
		}
		return say(textAmbiguous(labels(res.Options))), nil
	}

	postID, err := strconv.Atoi(res.Match.ID)
	if err != nil {
		return Response{}, fmt.Errorf("dialog: corrupt catalog id %q: %w", res.Match.ID, err)
	}
	if err := sess.set(ctx, fieldPostID, postID); err != nil {
		return Response{}, err
	}
	return m.loadFacilities(ctx, sess, in, state, postID)
}

// loadFacilities fetches the facility list through the coordinator,
// preferring the speculative prefetch when it matches the profession.
func (m *Machine) loadFacilities(ctx context.Context, sess *userSession, in Input, state State, postID int) (Response, error) {
	handle, err := m.facilitiesHandle(ctx, sess, in, postID)
	if err != nil {
		return Response{}, err
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
	if ferr := m.deps.Tasks.Forget(ctx, handle); ferr != nil {
		m.deps.Logger.Warn("failed to forget facility task", "error", ferr)
	}
	if res.Status == tasks.StatusFailed {
		return say(textWorkFailed), nil
	}

	var list tasks.ListFacilitiesResult
	if err := res.Decode(&list); err != nil {
		return Response{}, err
	}
	if len(list.Facilities) == 0 {
		return say(textBadPost), nil
	}
	if err := sess.set(ctx, fieldFacilities, list.Facilities); err != nil {
		return Response{}, err
	}
	if err := m.transition(ctx, sess, state, StateShowMO); err != nil {
		return Response{}, err
	}
	return say(textFacilityList(list.Facilities, m.deps.Aliases)), nil
}

// facilitiesHandle returns the task handle for the facility list,
// submitting a fresh task unless one is already pending or prefetched.
func (m *Machine) facilitiesHandle(ctx context.Context, sess *userSession, in Input, postID int) (string, error) {
	pending, err := sess.getString(ctx, fieldPendingTask)
	if err != nil {
		return "", err
	}
	if pending != "" {
		return pending, nil
	}

	prefetch, err := sess.getString(ctx, fieldPrefetchTask)
	if err != nil {
		return "", err
	}
	if prefetch != "" {
		if derr := sess.store.Delete(ctx, sess.userID, fieldPrefetchTask); derr != nil {
			return "", derr
		}
		if postID == m.deps.DefaultProfessionID {
			if serr := sess.set(ctx, fieldPendingTask, prefetch); serr != nil {
				return "", serr
			}
			return prefetch, nil
		}
		// The guess was wrong; drop its result.
		if ferr := m.deps.Tasks.Forget(ctx, prefetch); ferr != nil {
			m.deps.Logger.Warn("failed to forget prefetch task", "error", ferr)
		}
	}

	handle, err := m.deps.Tasks.Submit(ctx, tasks.KindListFacilities, tasks.ListFacilitiesPayload{
		SessionID:    in.SessionID,
		ProfessionID: postID,
	})
	if err != nil {
		return "", fmt.Errorf("dialog: failed to submit facility lookup: %w", err)
	}
	if err := sess.set(ctx, fieldPendingTask, handle); err != nil {
		return "", err
	}
	return handle, nil
}

// handleFacility resolves the organization and loads its clinicians.
func (m *Machine) handleFacility(ctx context.Context, sess *userSession, state State, in Input) (Response, error) {
	facilities, ok, err := sess.facilities(ctx)
	if err != nil {
		return Response{}, err
	}
	if !ok {
		postID, has, perr := sess.postID(ctx)
		if perr != nil {
			return Response{}, perr
		}
		if !has {
			postID = m.deps.DefaultProfessionID
		}
		return m.loadFacilities(ctx, sess, in, state, postID)
	}

	candidates := make([]resolver.Candidate, 0, len(facilities))
	for _, f := range facilities {
		cand := resolver.Candidate{ID: f.OID, Labels: []string{f.Name, f.Address}}
		if alias := m.deps.Aliases.For(f.OID); alias != "" {
			cand.Labels = append(cand.Labels, alias)
		}
		candidates = append(candidates, cand)
	}

	res := resolver.Resolve(in.Text, candidates, resolver.DefaultThreshold)
	switch res.Kind {
	case resolver.None:
		return say(textBadMO), nil
	case resolver.Ambiguous:
		if err := m.transition(ctx, sess, state, StateGettingMO); err != nil {
			return Response{}, err
		}
		return say(textAmbiguous(labels(res.Options))), nil
	}

	postID, _, err := sess.postID(ctx)
	if err != nil {
		return Response{}, err
	}
	now := m.deps.Now()
	roster, err := m.deps.Registry.ListClinicians(ctx, in.SessionID, res.Match.ID, postID, now, now.AddDate(0, 0, 14))
	if err != nil {
		if registry.IsTransient(err) {
			return say(textWorkFailed), nil
		}
		return Response{}, err
	}
	if len(roster) == 0 {
		return say(textNoMedics), nil
	}

	patch := session.Patch{}.
		Set(fieldFacilityOID, res.Match.ID, ttlDefault).
		Set(fieldFacilityName, res.Match.Label, ttlDefault).
		Set(fieldRoster, roster, ttlDefault)
	if err := sess.apply(ctx, patch); err != nil {
		return Response{}, err
	}
	if err := m.transition(ctx, sess, state, StateGettingMedic); err != nil {
		return Response{}, err
	}

	return say(textClinicianList(rosterNames(roster))), nil
}

func rosterNames(roster map[string]string) []string {
	names := make([]string, 0, len(roster))
	for name := range roster {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// handleClinician resolves the doctor within the stored roster.
func (m *Machine) handleClinician(ctx context.Context, sess *userSession, in Input) (Response, error) {
	roster, ok, err := sess.roster(ctx)
	if err != nil {
		return Response{}, err
	}
	if !ok {
		return say(textBadMedic), nil
	}

	candidates := make([]resolver.Candidate, 0, len(roster))
	for name := range roster {
		candidates = append(candidates, resolver.Candidate{ID: name, Labels: []string{name}})
	}

	res := resolver.Resolve(in.Text, candidates, resolver.DefaultThreshold)
	switch res.Kind {
	case resolver.None:
		return say(textBadMedic), nil
	case resolver.Ambiguous:
		return say(textAmbiguous(labels(res.Options))), nil
	}

	patch := session.Patch{}.
		Set(fieldClinician, res.Match.ID, ttlDefault).
		Set(fieldCredential, roster[res.Match.ID], ttlDefault).
		Remove(fieldGrid).
		Remove(fieldSelectedSlot)
	if err := sess.apply(ctx, patch); err != nil {
		return Response{}, err
	}
	if err := m.transition(ctx, sess, StateGettingMedic, StateGettingWishDate); err != nil {
		return Response{}, err
	}
	return say(textAskWish), nil
}

// handleWishDate checks the wished date against the clinician's grid
// and suggests the nearest one when it is not available.
func (m *Machine) handleWishDate(ctx context.Context, sess *userSession, in Input) (Response, error) {
	wish, ok := parseDate(in.Text, m.deps.Now())
	if !ok {
		return say(textBadDate), nil
	}

	grid, has, err := sess.grid(ctx)
	if err != nil {
		return Response{}, err
	}
	if !has {
		credential, cerr := sess.getString(ctx, fieldCredential)
		if cerr != nil {
			return Response{}, cerr
		}
		postID, _, perr := sess.postID(ctx)
		if perr != nil {
			return Response{}, perr
		}
		grid, err = m.deps.Finder.Find(ctx, in.SessionID, credential, postID, m.deps.Now())
		if err != nil {
			if registry.IsTransient(err) {
				return say(textWorkFailed), nil
			}
			return Response{}, err
		}
		if err := sess.set(ctx, fieldGrid, grid); err != nil {
			return Response{}, err
		}
	}
	if len(grid) == 0 {
		if err := m.transition(ctx, sess, StateGettingWishDate, StateGettingMedic); err != nil {
			return Response{}, err
		}
		return say(textNoSlots), nil
	}

	dateKey := wish.Format(schedule.DateLayout)
	if _, exists := grid[dateKey]; exists {
		if err := sess.set(ctx, fieldWishDate, dateKey); err != nil {
			return Response{}, err
		}
		if err := m.transition(ctx, sess, StateGettingWishDate, StateGettingWishTime); err != nil {
			return Response{}, err
		}
		return say(textAskTime), nil
	}

	nearest, found := schedule.NearestDate(wish, grid.Dates(), false)
	if !found {
		nearest, found = schedule.NearestDate(wish, grid.Dates(), true)
	}
	if !found {
		if err := m.transition(ctx, sess, StateGettingWishDate, StateGettingMedic); err != nil {
			return Response{}, err
		}
		return say(textNoSlots), nil
	}

	patch := session.Patch{}.
		Set(fieldWishDate, nearest, ttlDefault).
		Set(fieldTopic, string(ConfirmSuggestedDate), ttlDefault)
	if err := sess.apply(ctx, patch); err != nil {
		return Response{}, err
	}
	if err := m.transition(ctx, sess, StateGettingWishDate, StateConfirmation); err != nil {
		return Response{}, err
	}
	return say(textSuggestDate(nearest)), nil
}

// handleWishTime matches the wished time against the chosen date.
func (m *Machine) handleWishTime(ctx context.Context, sess *userSession, in Input) (Response, error) {
	wishTime, ok := parseTime(in.Text)
	if !ok {
		return say(textBadTime), nil
	}

	grid, hasGrid, err := sess.grid(ctx)
	if err != nil {
		return Response{}, err
	}
	date, err := sess.getString(ctx, fieldWishDate)
	if err != nil {
		return Response{}, err
	}
	if !hasGrid || date == "" {
		if err := m.transition(ctx, sess, StateGettingWishTime, StateGettingWishDate); err != nil {
			return Response{}, err
		}
		return say(textAskWish), nil
	}

	if _, exists := grid[date][wishTime]; exists {
		return m.selectSlot(ctx, sess, StateGettingWishTime, grid, date, wishTime)
	}

	nearest, found := schedule.NearestTime(wishTime, grid.TimesFor(date), true)
	if !found {
		if err := m.transition(ctx, sess, StateGettingWishTime, StateGettingWishDate); err != nil {
			return Response{}, err
		}
		return say(textAskWish), nil
	}

	patch := session.Patch{}.
		Set(fieldSelectedSlot, grid[date][nearest], ttlSlot).
		Set(fieldTopic, string(ConfirmSuggestedTime), ttlDefault)
	if err := sess.apply(ctx, patch); err != nil {
		return Response{}, err
	}
	if err := m.transition(ctx, sess, StateGettingWishTime, StateConfirmation); err != nil {
		return Response{}, err
	}
	return say(textSuggestTime(nearest)), nil
}

// handlePickDate lets the user pick from the announced free dates.
func (m *Machine) handlePickDate(ctx context.Context, sess *userSession, in Input) (Response, error) {
	grid, ok, err := sess.grid(ctx)
	if err != nil {
		return Response{}, err
	}
	if !ok {
		return say(textNoSlots), nil
	}

	picked, parsed := parseDate(in.Text, m.deps.Now())
	if !parsed {
		return say(textBadDate), nil
	}
	dateKey := picked.Format(schedule.DateLayout)
	if _, exists := grid[dateKey]; !exists {
		return say(textDateList(grid.Dates())), nil
	}

	if err := sess.set(ctx, fieldWishDate, dateKey); err != nil {
		return Response{}, err
	}
	if err := m.transition(ctx, sess, StateGettingDate, StateGettingTime); err != nil {
		return Response{}, err
	}
	return say(textTimeList(grid.TimesFor(dateKey))), nil
}

// handlePickTime lets the user pick from the announced free times.
func (m *Machine) handlePickTime(ctx context.Context, sess *userSession, in Input) (Response, error) {
	grid, ok, err := sess.grid(ctx)
	if err != nil {
		return Response{}, err
	}
	date, derr := sess.getString(ctx, fieldWishDate)
	if derr != nil {
		return Response{}, derr
	}
	if !ok || date == "" {
		return say(textNoSlots), nil
	}

	picked, parsed := parseTime(in.Text)
	if !parsed {
		return say(textBadTime), nil
	}
	if _, exists := grid[date][picked]; !exists {
		return say(textTimeList(grid.TimesFor(date))), nil
	}
	return m.selectSlot(ctx, sess, StateGettingTime, grid, date, picked)
}

// selectSlot stores the chosen slot and asks for the final go-ahead.
func (m *Machine) selectSlot(ctx context.Context, sess *userSession, from State, grid schedule.Grid, date, timeKey string) (Response, error) {
	patch := session.Patch{}.
		Set(fieldSelectedSlot, grid[date][timeKey], ttlSlot).
		Set(fieldWishDate, date, ttlDefault).
		Set(fieldTopic, string(ConfirmBooking), ttlDefault)
	if err := sess.apply(ctx, patch); err != nil {
		return Response{}, err
	}
	if err := m.transition(ctx, sess, from, StateAppointment); err != nil {
		return Response{}, err
	}

	clinician, err := sess.getString(ctx, fieldClinician)
	if err != nil {
		return Response{}, err
	}
	return say(textBookingConfirm(clinician, date, timeKey)), nil
}

// enterAppointment is the suggested-time "yes" path: the slot is
// already stored, only the final confirmation remains.
func (m *Machine) enterAppointment(ctx context.Context, sess *userSession, from State) (Response, error) {
	if err := sess.set(ctx, fieldTopic, string(ConfirmBooking)); err != nil {
		return Response{}, err
	}
	if err := m.transition(ctx, sess, from, StateAppointment); err != nil {
		return Response{}, err
	}
	return m.bookingSummary(ctx, sess)
}

func (m *Machine) bookingSummary(ctx context.Context, sess *userSession) (Response, error) {
	slot, ok, err := sess.selectedSlot(ctx)
	if err != nil {
		return Response{}, err
	}
	if !ok {
		return say(textSlotExpired + " " + textAskTime), nil
	}
	clinician, err := sess.getString(ctx, fieldClinician)
	if err != nil {
		return Response{}, err
	}
	return say(textBookingConfirm(clinician,
		slot.Time.Format(schedule.DateLayout),
		slot.Time.Format(schedule.TimeLayout))), nil
}

// commitBooking submits the appointment and either reports the outcome
// within the grace period or defers to a status check.
func (m *Machine) commitBooking(ctx context.Context, sess *userSession, in Input) (Response, error) {
	handle, err := sess.getString(ctx, fieldPendingTask)
	if err != nil {
		return Response{}, err
	}
	if handle == "" {
		slot, ok, serr := sess.selectedSlot(ctx)
		if serr != nil {
			return Response{}, serr
		}
		if !ok {
			if terr := m.transition(ctx, sess, StateAppointment, StateGettingWishTime); terr != nil {
				return Response{}, terr
			}
			return say(textSlotExpired + " " + textAskTime), nil
		}
		handle, err = m.deps.Tasks.Submit(ctx, tasks.KindCreateAppointment, tasks.CreateAppointmentPayload{
			SessionID: in.SessionID,
			SlotID:    slot.ID,
		})
		if err != nil {
			return Response{}, fmt.Errorf("dialog: failed to submit booking: %w", err)
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
		if err := m.transition(ctx, sess, StateAppointment, StateAwaitingAppointed); err != nil {
			return Response{}, err
		}
		return say(textChecking), nil
	}
	return m.finishBooking(ctx, sess, StateAppointment, res)
}

// checkBookingStatus polls a deferred booking.
func (m *Machine) checkBookingStatus(ctx context.Context, sess *userSession) (Response, error) {
	handle, err := sess.getString(ctx, fieldPendingTask)
	if err != nil {
		return Response{}, err
	}
	if handle == "" {
		if terr := m.transition(ctx, sess, StateAwaitingAppointed, StateGettingWishDate); terr != nil {
			return Response{}, terr
		}
		return say(textWorkFailed + " " + textAskWish), nil
	}

	res, err := m.deps.Tasks.Poll(ctx, handle)
	if errors.Is(err, tasks.ErrUnknownTask) {
		if derr := sess.store.Delete(ctx, sess.userID, fieldPendingTask); derr != nil {
			return Response{}, derr
		}
		if terr := m.transition(ctx, sess, StateAwaitingAppointed, StateGettingWishDate); terr != nil {
			return Response{}, terr
		}
		return say(textWorkFailed + " " + textAskWish), nil
	}
	if err != nil {
		return Response{}, err
	}
	if res.Status == tasks.StatusPending {
		return say(textStillBusy), nil
	}
	return m.finishBooking(ctx, sess, StateAwaitingAppointed, res)
}

// finishBooking reports a terminal booking result and routes the
// dialogue accordingly. Business rejections send the user back to
// choosing a date; they are final and never retried.
func (m *Machine) finishBooking(ctx context.Context, sess *userSession, from State, res tasks.Result) (Response, error) {
	if err := sess.store.Delete(ctx, sess.userID, fieldPendingTask); err != nil {
		return Response{}, err
	}

	if res.Status == tasks.StatusFailed {
		if err := m.transition(ctx, sess, from, StateGettingWishDate); err != nil {
			return Response{}, err
		}
		return say(textWorkFailed + " " + textAskWish), nil
	}

	var outcome registry.BookingResult
	if err := res.Decode(&outcome); err != nil {
		return Response{}, err
	}
	m.deps.Metrics.ObserveBookingOutcome(string(outcome.Status))

	slot, slotKnown, err := sess.selectedSlot(ctx)
	if err != nil {
		return Response{}, err
	}
	clinician, err := sess.getString(ctx, fieldClinician)
	if err != nil {
		return Response{}, err
	}
	m.journalOutcome(ctx, sess, slot, clinician, outcome)

	// On the deferred path the slot hold may have expired between the
	// submission and the status check; the booking itself still went
	// through, so report it without the visit details.
	var text string
	if slotKnown {
		text = textBookingOutcome(outcome, clinician,
			slot.Time.Format(schedule.DateLayout),
			slot.Time.Format(schedule.TimeLayout))
	} else {
		text = textBookingOutcomeBare(outcome)
	}

	if outcome.Status != registry.BookingSuccess {
		if err := m.transition(ctx, sess, from, StateGettingWishDate); err != nil {
			return Response{}, err
		}
		return say(text + " " + textAskWish), nil
	}

	patch := session.Patch{}.
		Set(fieldBookID, outcome.BookID, ttlDefault).
		Set(fieldState, string(StateZero), ttlDefault).
		Remove(fieldSelectedSlot).
		Remove(fieldGrid).
		Remove(fieldTopic)
	if err := sess.apply(ctx, patch); err != nil {
		return Response{}, err
	}
	return Response{Text: text, TTS: text, EndSession: true}, nil
}

// journalOutcome writes the terminal booking result to the audit
// journal. Failures are logged, never surfaced to the user.
func (m *Machine) journalOutcome(ctx context.Context, sess *userSession, slot registry.Slot, clinician string, outcome registry.BookingResult) {
	patientID, _ := sess.getString(ctx, fieldPatientID)
	facilityOID, _ := sess.getString(ctx, fieldFacilityOID)
	postID, _, _ := sess.postID(ctx)

	err := m.deps.Journal.Record(ctx, bookings.Entry{
		UserID:       sess.userID,
		PatientID:    patientID,
		ProfessionID: postID,
		FacilityOID:  facilityOID,
		Clinician:    clinician,
		SlotID:       slot.ID,
		VisitAt:      slot.Time,
		Status:       string(outcome.Status),
		BookID:       outcome.BookID,
	})
	if err != nil {
		m.deps.Logger.Warn("failed to journal booking outcome", "error", err)
	}
}

func labels(options []resolver.Match) []string {
	out := make([]string, 0, len(options))
	for _, o := range options {
		out = append(out, o.Label)
	}
	return out
}
