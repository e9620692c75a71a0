package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/zhukovDV72toru/alice/internal/registry"
)

// Identification methods for FindPatientPayload.
const (
	MethodName  = "name"
	MethodPhone = "phone"
	MethodSNILS = "snils"
)

// FindPatientPayload asks the registry to identify a patient.
type FindPatientPayload struct {
	SessionID string            `json:"session_id"`
	Method    string            `json:"method"`
	Identity  registry.Identity `json:"identity"`
}

// FindPatientResult carries the registry's patient id, empty when the
// patient was not found.
type FindPatientResult struct {
	PatientID string `json:"patient_id"`
}

// ListFacilitiesPayload asks for the organizations of one profession.
type ListFacilitiesPayload struct {
	SessionID    string `json:"session_id"`
	ProfessionID int    `json:"profession_id"`
}

// ListFacilitiesResult carries the organizations.
type ListFacilitiesResult struct {
	Facilities []registry.Facility `json:"facilities"`
}

// CreateAppointmentPayload books one slot.
type CreateAppointmentPayload struct {
	SessionID string `json:"session_id"`
	SlotID    string `json:"slot_id"`
}

// RegisterRegistryExecutors binds the background task kinds to a
// registry client.
func RegisterRegistryExecutors(c *Coordinator, client registry.Client) {
	if client == nil {
		panic("tasks: registry client cannot be nil")
	}

	c.Register(KindFindPatient, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var p FindPatientPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("tasks: bad find-patient payload: %w", err)
		}
		var (
			patientID string
			err       error
		)
		switch p.Method {
		case MethodPhone:
			patientID, err = client.IdentifyByPhone(ctx, p.SessionID, p.Identity)
		case MethodSNILS:
			patientID, err = client.IdentifyByNationalID(ctx, p.SessionID, p.Identity)
		default:
			patientID, err = client.IdentifyByName(ctx, p.SessionID, p.Identity)
		}
		if err != nil {
			return nil, err
		}
		return FindPatientResult{PatientID: patientID}, nil
	})

	c.Register(KindListFacilities, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var p ListFacilitiesPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("tasks: bad list-facilities payload: %w", err)
		}
		facilities, err := client.ListFacilities(ctx, p.SessionID, p.ProfessionID)
		if err != nil {
			return nil, err
		}
		return ListFacilitiesResult{Facilities: facilities}, nil
	})

	c.Register(KindCreateAppointment, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var p CreateAppointmentPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("tasks: bad create-appointment payload: %w", err)
		}
		return client.CreateAppointment(ctx, p.SessionID, p.SlotID)
	})
}
