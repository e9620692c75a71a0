// Package registry defines the external patient-registry collaborator: the
// client interface the dialogue engine calls, the data it exchanges, and the
// fixed status-code vocabulary of the booking operation.
package registry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Identity carries the patient attributes collected during introduction.
// BirthDate uses ISO format (2006-01-02); Gender is "MALE" or "FEMALE".
type Identity struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	MiddleName string `json:"middle_name,omitempty"`
	BirthDate  string `json:"birth_date,omitempty"`
	Gender     string `json:"gender,omitempty"`
	Phone      string `json:"phone,omitempty"`
	SNILS      string `json:"snils,omitempty"`
}

// Facility is a medical organization offering appointments.
type Facility struct {
	ID      string `json:"id"`
	OID     string `json:"oid"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone,omitempty"`
}

// Slot is a bookable clinician time unit. Immutable once returned; the
// registry identifies it by ID when booking.
type Slot struct {
	ID   string    `json:"slot_id"`
	Time time.Time `json:"time"`
	Room string    `json:"room,omitempty"`
}

// SlotQuery bounds a schedule lookup.
type SlotQuery struct {
	DateStart time.Time
	DateEnd   time.Time
	TimeStart string
	TimeEnd   string
}

// BookingStatus is a registry-defined terminal outcome of an appointment
// creation attempt. These are never retried.
type BookingStatus string

const (
	BookingSuccess              BookingStatus = "SUCCESS"
	BookingTimeBusy             BookingStatus = "APPOINT_TIME_IS_BUSY"
	BookingVisitTimePassed      BookingStatus = "APPOINT_VISIT_TIME_HAS_PASSED"
	BookingOtherSpecialist      BookingStatus = "APPOINT_PATIENT_REGISTERED_OTHER_SPECIALIST"
	BookingSameSpecialist       BookingStatus = "APPOINT_PATIENT_REGISTERED_SPECIALIST"
	BookingOtherAge             BookingStatus = "APPOINT_TIME_AVAILABLE_PATIENT_OTHER_AGE"
	BookingVaccinationDone      BookingStatus = "VACCINATION_COMPLETED"
	BookingVaccinationNotDue    BookingStatus = "VACCINATION_TIME_NOT_COME"
	BookingVaccinationMedRefuse BookingStatus = "VACCINATIONS_MEDICAL_RECUSAL"
)

// BookingResult is the terminal outcome of create-appointment. BookID is
// set only on success.
type BookingResult struct {
	Status BookingStatus `json:"status"`
	BookID string        `json:"book_id,omitempty"`
}

// Client is the collaborator interface over the external registry. All
// calls are request/response, fallible and possibly slow; identification
// methods return an empty patient id when the registry finds nobody.
type Client interface {
	// IdentifyByName resolves a patient by full name, birth date and gender.
	IdentifyByName(ctx context.Context, sessionID string, id Identity) (string, error)
	// IdentifyByPhone resolves by phone and re-verifies the returned name
	// parts against the claimed identity; a mismatch reads as not found.
	IdentifyByPhone(ctx context.Context, sessionID string, id Identity) (string, error)
	// IdentifyByNationalID resolves by SNILS.
	IdentifyByNationalID(ctx context.Context, sessionID string, id Identity) (string, error)
	// ListFacilities returns organizations offering the profession.
	ListFacilities(ctx context.Context, sessionID string, professionID int) ([]Facility, error)
	// ListClinicians returns a full-name → credential map for a facility.
	// Clinicians with a no-schedule reason code or zero available dates are
	// excluded.
	ListClinicians(ctx context.Context, sessionID, facilityOID string, professionID int, from, to time.Time) (map[string]string, error)
	// ListSlots returns the raw bookable slots for a clinician credential.
	ListSlots(ctx context.Context, sessionID, credential string, professionID int, q SlotQuery) ([]Slot, error)
	// CreateAppointment books the slot and returns the terminal outcome.
	CreateAppointment(ctx context.Context, sessionID, slotID string) (BookingResult, error)
}

// TransientError marks a failure worth retrying: network trouble, timeouts,
// non-200 responses. Anything else coming back from the registry is final.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("registry: transient failure: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
