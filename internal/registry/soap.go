package registry

import (
	"bytes"
	"context"
	"embed"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/template"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zhukovDV72toru/alice/pkg/logging"
)

//go:embed templates/*.xml
var templateFS embed.FS

const (
	dateWire = "2006-01-02"
	timeWire = "15:04:05"
)

// SOAPClient talks to the registry's SOAP endpoint. Request bodies come
// from embedded XML templates keyed by SOAP action.
type SOAPClient struct {
	endpoint  string
	authToken string
	http      *http.Client
	templates *template.Template
	logger    *logging.Logger
	tracer    trace.Tracer
}

var _ Client = (*SOAPClient)(nil)

// NewSOAPClient builds a registry client with Basic auth credentials.
func NewSOAPClient(endpoint, login, password string, timeout time.Duration, logger *logging.Logger) (*SOAPClient, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("registry: endpoint cannot be empty")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}

	tmpl, err := template.ParseFS(templateFS, "templates/*.xml")
	if err != nil {
		return nil, fmt.Errorf("registry: failed to parse request templates: %w", err)
	}

	token := "Basic " + base64.StdEncoding.EncodeToString([]byte(login+":"+password))
	return &SOAPClient{
		endpoint:  endpoint,
		authToken: token,
		http:      &http.Client{Timeout: timeout},
		templates: tmpl,
		logger:    logger,
		tracer:    otel.Tracer("alice.internal.registry"),
	}, nil
}

func (c *SOAPClient) send(ctx context.Context, action string, data map[string]string) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "registry."+action,
		trace.WithAttributes(attribute.String("soap.action", action)))
	defer span.End()

	var body bytes.Buffer
	if err := c.templates.ExecuteTemplate(&body, action+".xml", data); err != nil {
		return nil, fmt.Errorf("registry: failed to render %s: %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("registry: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("Authorization", c.authToken)
	req.Header.Set("SOAPAction", action)

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.spanError(span, Transient(fmt.Errorf("%s: %w", action, err)))
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.spanError(span, Transient(fmt.Errorf("%s: read body: %w", action, err)))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.spanError(span, Transient(fmt.Errorf("%s: status %d", action, resp.StatusCode)))
	}

	c.logger.Debug("registry call completed",
		"action", action,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return payload, nil
}

func (c *SOAPClient) spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

type patientDataXML struct {
	PatientID  string `xml:"Patient_Id"`
	LastName   string `xml:"Last_Name"`
	FirstName  string `xml:"First_Name"`
	MiddleName string `xml:"Middle_Name"`
}

type identifyByNameEnvelope struct {
	Body struct {
		Response struct {
			PatientID string `xml:"Patient_Id"`
		} `xml:"GetPatientInfoResponse"`
	} `xml:"Body"`
}

type identifyByPhoneEnvelope struct {
	Body struct {
		Response struct {
			Patient patientDataXML `xml:"Patient_Data"`
		} `xml:"IdentifyPatientByPhoneResponse"`
	} `xml:"Body"`
}

// IdentifyByName resolves a patient via GetPatientInfoRequest.
func (c *SOAPClient) IdentifyByName(ctx context.Context, sessionID string, id Identity) (string, error) {
	payload, err := c.send(ctx, "GetPatientInfoRequest", map[string]string{
		"SessionID":  sessionID,
		"FirstName":  id.FirstName,
		"LastName":   id.LastName,
		"MiddleName": id.MiddleName,
		"BirthDate":  id.BirthDate,
		"Gender":     id.Gender,
	})
	if err != nil {
		return "", err
	}

	var env identifyByNameEnvelope
	if err := xml.Unmarshal(payload, &env); err != nil {
		return "", fmt.Errorf("registry: failed to decode GetPatientInfoResponse: %w", err)
	}
	return env.Body.Response.PatientID, nil
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// IdentifyByPhone resolves via IdentifyPatientByPhoneRequest. The returned
// name parts must match the claimed identity; any mismatch is reported as
// not found rather than as a conflicting identity.
func (c *SOAPClient) IdentifyByPhone(ctx context.Context, sessionID string, id Identity) (string, error) {
	payload, err := c.send(ctx, "IdentifyPatientByPhoneRequest", map[string]string{
		"SessionID": sessionID,
		"Phone":     id.Phone,
	})
	if err != nil {
		return "", err
	}

	var env identifyByPhoneEnvelope
	if err := xml.Unmarshal(payload, &env); err != nil {
		return "", fmt.Errorf("registry: failed to decode IdentifyPatientByPhoneResponse: %w", err)
	}

	patient := env.Body.Response.Patient
	if patient.PatientID == "" {
		return "", nil
	}
	if normalizeName(patient.LastName) != normalizeName(id.LastName) ||
		normalizeName(patient.FirstName) != normalizeName(id.FirstName) ||
		normalizeName(patient.MiddleName) != normalizeName(id.MiddleName) {
		c.logger.Info("phone identification discarded: name mismatch", "session_id", sessionID)
		return "", nil
	}
	return patient.PatientID, nil
}

// IdentifyByNationalID resolves via GetPatientInfoBySnilsRequest.
func (c *SOAPClient) IdentifyByNationalID(ctx context.Context, sessionID string, id Identity) (string, error) {
	payload, err := c.send(ctx, "GetPatientInfoBySnilsRequest", map[string]string{
		"SessionID":  sessionID,
		"FirstName":  id.FirstName,
		"LastName":   id.LastName,
		"MiddleName": id.MiddleName,
		"BirthDate":  id.BirthDate,
		"Gender":     id.Gender,
		"SNILS":      id.SNILS,
	})
	if err != nil {
		return "", err
	}

	var env identifyByNameEnvelope
	if err := xml.Unmarshal(payload, &env); err != nil {
		return "", fmt.Errorf("registry: failed to decode GetPatientInfoResponse: %w", err)
	}
	return env.Body.Response.PatientID, nil
}

type facilitiesEnvelope struct {
	Body struct {
		Response struct {
			List struct {
				MO []struct {
					ID      string `xml:"MO_Id"`
					OID     string `xml:"MO_OID"`
					Name    string `xml:"MO_Name"`
					Address string `xml:"MO_Address"`
					Phone   string `xml:"MO_Phone"`
				} `xml:"MO"`
			} `xml:"MO_List"`
		} `xml:"GetMOInfoExtendedResponse"`
	} `xml:"Body"`
}

// ListFacilities returns organizations offering appointments for the
// profession via GetMOInfoExtendedRequest.
func (c *SOAPClient) ListFacilities(ctx context.Context, sessionID string, professionID int) ([]Facility, error) {
	payload, err := c.send(ctx, "GetMOInfoExtendedRequest", map[string]string{
		"SessionID": sessionID,
		"PostID":    fmt.Sprintf("%d", professionID),
	})
	if err != nil {
		return nil, err
	}

	var env facilitiesEnvelope
	if err := xml.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("registry: failed to decode GetMOInfoExtendedResponse: %w", err)
	}

	facilities := make([]Facility, 0, len(env.Body.Response.List.MO))
	for _, mo := range env.Body.Response.List.MO {
		facilities = append(facilities, Facility{
			ID:      mo.ID,
			OID:     mo.OID,
			Name:    mo.Name,
			Address: mo.Address,
			Phone:   mo.Phone,
		})
	}
	return facilities, nil
}

type resourcesEnvelope struct {
	Body struct {
		Response struct {
			List struct {
				Available struct {
					ResourceAvailable struct {
						Resources []struct {
							Specialist struct {
								LastName   string `xml:"Last_Name"`
								FirstName  string `xml:"First_Name"`
								MiddleName string `xml:"Middle_Name"`
								SNILS      string `xml:"SNILS"`
							} `xml:"Specialist"`
							NoScheduleReason struct {
								Code string `xml:"No_Schedule_Reason_Code"`
							} `xml:"No_Schedule_Reason"`
							AvailableDates struct {
								Dates []string `xml:"Available_Date"`
							} `xml:"Available_Dates"`
						} `xml:"Resource"`
					} `xml:"Resource_Available"`
				} `xml:"MO_Available"`
			} `xml:"MO_Resource_List"`
		} `xml:"GetMOResourceInfoResponse"`
	} `xml:"Body"`
}

// ListClinicians returns a full-name → credential map for the facility.
// Entries carrying a no-schedule reason code or an empty date list are
// dropped before the map is returned.
func (c *SOAPClient) ListClinicians(ctx context.Context, sessionID, facilityOID string, professionID int, from, to time.Time) (map[string]string, error) {
	payload, err := c.send(ctx, "GetMOResourceInfoRequest", map[string]string{
		"SessionID": sessionID,
		"PostID":    fmt.Sprintf("%d", professionID),
		"OID":       facilityOID,
		"DateStart": from.Format(dateWire),
		"DateEnd":   to.Format(dateWire),
	})
	if err != nil {
		return nil, err
	}

	var env resourcesEnvelope
	if err := xml.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("registry: failed to decode GetMOResourceInfoResponse: %w", err)
	}

	clinicians := make(map[string]string)
	for _, res := range env.Body.Response.List.Available.ResourceAvailable.Resources {
		if res.NoScheduleReason.Code != "" {
			continue
		}
		if len(res.AvailableDates.Dates) == 0 {
			continue
		}
		name := strings.TrimSpace(fmt.Sprintf("%s %s %s",
			res.Specialist.LastName, res.Specialist.FirstName, res.Specialist.MiddleName))
		clinicians[name] = res.Specialist.SNILS
	}
	return clinicians, nil
}

type scheduleEnvelope struct {
	Body struct {
		Response struct {
			Schedule struct {
				Slots []struct {
					ID        string `xml:"Slot_Id"`
					VisitTime string `xml:"VisitTime"`
					Room      string `xml:"Room"`
				} `xml:"Slots"`
			} `xml:"Schedule"`
		} `xml:"GetScheduleInfoResponse"`
	} `xml:"Body"`
}

// ListSlots returns bookable slots for the clinician via
// GetScheduleInfoRequest. Entries without an id or a visit time are
// skipped.
func (c *SOAPClient) ListSlots(ctx context.Context, sessionID, credential string, professionID int, q SlotQuery) ([]Slot, error) {
	payload, err := c.send(ctx, "GetScheduleInfoRequest", map[string]string{
		"SessionID":       sessionID,
		"PostID":          fmt.Sprintf("%d", professionID),
		"SpecialistSNILS": credential,
		"DateStart":       q.DateStart.Format(dateWire),
		"DateEnd":         q.DateEnd.Format(dateWire),
		"TimeStart":       q.TimeStart,
		"TimeEnd":         q.TimeEnd,
	})
	if err != nil {
		return nil, err
	}

	var env scheduleEnvelope
	if err := xml.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("registry: failed to decode GetScheduleInfoResponse: %w", err)
	}

	slots := make([]Slot, 0, len(env.Body.Response.Schedule.Slots))
	for _, s := range env.Body.Response.Schedule.Slots {
		if s.ID == "" || s.VisitTime == "" {
			continue
		}
		visit, err := time.Parse(time.RFC3339, s.VisitTime)
		if err != nil {
			c.logger.Warn("skipping slot with malformed visit time", "slot_id", s.ID, "visit_time", s.VisitTime)
			continue
		}
		slots = append(slots, Slot{ID: s.ID, Time: visit, Room: s.Room})
	}
	return slots, nil
}

type appointmentEnvelope struct {
	Body struct {
		Response struct {
			Status struct {
				Code string `xml:"Status_Code"`
			} `xml:"Status"`
			BookID string `xml:"Book_Id_Mis"`
		} `xml:"CreateAppointmentResponse"`
	} `xml:"Body"`
}

// CreateAppointment books the slot and returns the registry's terminal
// status. Business rejections come back as a BookingResult, never as an
// error.
func (c *SOAPClient) CreateAppointment(ctx context.Context, sessionID, slotID string) (BookingResult, error) {
	payload, err := c.send(ctx, "CreateAppointmentRequest", map[string]string{
		"SessionID": sessionID,
		"SlotID":    slotID,
	})
	if err != nil {
		return BookingResult{}, err
	}

	var env appointmentEnvelope
	if err := xml.Unmarshal(payload, &env); err != nil {
		return BookingResult{}, fmt.Errorf("registry: failed to decode CreateAppointmentResponse: %w", err)
	}
	return BookingResult{
		Status: BookingStatus(env.Body.Response.Status.Code),
		BookID: env.Body.Response.BookID,
	}, nil
}
