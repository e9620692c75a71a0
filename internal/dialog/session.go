package dialog

import (
	"context"
	"time"

	"github.com/zhukovDV72toru/alice/internal/registry"
	"github.com/zhukovDV72toru/alice/internal/schedule"
	"github.com/zhukovDV72toru/alice/internal/session"
)

// Session field names. The dialogue machine is the only writer of
// these; nothing else interprets the session.
const (
	fieldState        = "state"
	fieldTopic        = "confirm_topic"
	fieldLastName     = "last_name"
	fieldFirstName    = "first_name"
	fieldMiddleName   = "middle_name"
	fieldGender       = "gender"
	fieldBirthDate    = "birth_date"
	fieldPhone        = "phone"
	fieldSNILS        = "snils"
	fieldPatientID    = "patient_id"
	fieldPostID       = "post_id"
	fieldFacilities   = "facilities"
	fieldFacilityOID  = "facility_oid"
	fieldFacilityName = "facility_name"
	fieldRoster       = "roster"
	fieldClinician    = "clinician"
	fieldCredential   = "credential"
	fieldGrid         = "grid"
	fieldWishDate     = "expected_date"
	fieldSelectedSlot = "selected_slot"
	fieldPendingTask  = "pending_task"
	fieldPrefetchTask = "prefetch_task"
	fieldBookID       = "book_id"
)

// Field lifetimes. The chosen specialty outlives the rest of the
// session so a user can come back and book the same profession
// without repeating it; a selected slot goes stale fastest because
// someone else may take it.
const (
	ttlDefault  = 15 * time.Minute
	ttlCursor   = time.Hour
	ttlPostID   = 2000 * time.Second
	ttlSlot     = 500 * time.Second
	ttlPending  = 15 * time.Minute
	ttlIdentity = 15 * time.Minute
)

func ttlFor(field string) time.Duration {
	switch field {
	case fieldState, fieldTopic:
		return ttlCursor
	case fieldPostID:
		return ttlPostID
	case fieldSelectedSlot:
		return ttlSlot
	case fieldPendingTask, fieldPrefetchTask:
		return ttlPending
	default:
		return ttlDefault
	}
}

// userSession is the machine's view of one user's conversation data.
type userSession struct {
	store  *session.Store
	userID string
}

func (s *userSession) state(ctx context.Context) (State, error) {
	raw, ok, err := s.store.GetString(ctx, s.userID, fieldState)
	if err != nil {
		return "", err
	}
	if !ok || raw == "" {
		return StateZero, nil
	}
	return State(raw), nil
}

func (s *userSession) set(ctx context.Context, field string, value any) error {
	return s.store.Set(ctx, s.userID, field, value, ttlFor(field))
}

func (s *userSession) getString(ctx context.Context, field string) (string, error) {
	value, _, err := s.store.GetString(ctx, s.userID, field)
	return value, err
}

func (s *userSession) apply(ctx context.Context, p session.Patch) error {
	return s.store.Apply(ctx, s.userID, p)
}

func (s *userSession) clear(ctx context.Context) error {
	return s.store.Clear(ctx, s.userID)
}

func (s *userSession) topic(ctx context.Context) (ConfirmTopic, error) {
	raw, err := s.getString(ctx, fieldTopic)
	return ConfirmTopic(raw), err
}

func (s *userSession) identity(ctx context.Context) (registry.Identity, error) {
	var id registry.Identity
	var err error
	if id.LastName, err = s.getString(ctx, fieldLastName); err != nil {
		return id, err
	}
	if id.FirstName, err = s.getString(ctx, fieldFirstName); err != nil {
		return id, err
	}
	if id.MiddleName, err = s.getString(ctx, fieldMiddleName); err != nil {
		return id, err
	}
	if id.Gender, err = s.getString(ctx, fieldGender); err != nil {
		return id, err
	}
	if id.BirthDate, err = s.getString(ctx, fieldBirthDate); err != nil {
		return id, err
	}
	if id.Phone, err = s.getString(ctx, fieldPhone); err != nil {
		return id, err
	}
	id.SNILS, err = s.getString(ctx, fieldSNILS)
	return id, err
}

func (s *userSession) facilities(ctx context.Context) ([]registry.Facility, bool, error) {
	var out []registry.Facility
	ok, err := s.store.Get(ctx, s.userID, fieldFacilities, &out)
	return out, ok, err
}

func (s *userSession) roster(ctx context.Context) (map[string]string, bool, error) {
	var out map[string]string
	ok, err := s.store.Get(ctx, s.userID, fieldRoster, &out)
	return out, ok, err
}

func (s *userSession) grid(ctx context.Context) (schedule.Grid, bool, error) {
	var out schedule.Grid
	ok, err := s.store.Get(ctx, s.userID, fieldGrid, &out)
	return out, ok, err
}

func (s *userSession) postID(ctx context.Context) (int, bool, error) {
	var id int
	ok, err := s.store.Get(ctx, s.userID, fieldPostID, &id)
	return id, ok, err
}

// selectedSlot returns the slot only while the clinician choice is
// still alive; a slot without its clinician is dropped.
func (s *userSession) selectedSlot(ctx context.Context) (registry.Slot, bool, error) {
	var slot registry.Slot
	ok, err := s.store.Get(ctx, s.userID, fieldSelectedSlot, &slot)
	if err != nil || !ok {
		return registry.Slot{}, false, err
	}
	clinician, err := s.getString(ctx, fieldClinician)
	if err != nil {
		return registry.Slot{}, false, err
	}
	if clinician == "" {
		if err := s.store.Delete(ctx, s.userID, fieldSelectedSlot); err != nil {
			return registry.Slot{}, false, err
		}
		return registry.Slot{}, false, nil
	}
	return slot, true, nil
}
