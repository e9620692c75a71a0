package registry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *SOAPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewSOAPClient(srv.URL, "login", "secret", 5*time.Second, nil)
	require.NoError(t, err)
	return client
}

func TestIdentifyByName_ReturnsPatientID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GetPatientInfoRequest", r.Header.Get("SOAPAction"))
		assert.Contains(t, r.Header.Get("Authorization"), "Basic ")
		_, _ = w.Write([]byte(`<Envelope><Body><GetPatientInfoResponse>
			<Patient_Id>PAT-42</Patient_Id>
		</GetPatientInfoResponse></Body></Envelope>`))
	})

	got, err := client.IdentifyByName(context.Background(), "sess-1", Identity{
		LastName: "Иванов", FirstName: "Иван", MiddleName: "Иванович",
		BirthDate: "1990-03-12", Gender: "male",
	})
	require.NoError(t, err)
	assert.Equal(t, "PAT-42", got)
}

func TestIdentifyByName_NotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<Envelope><Body><GetPatientInfoResponse>
		</GetPatientInfoResponse></Body></Envelope>`))
	})

	got, err := client.IdentifyByName(context.Background(), "sess-1", Identity{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestIdentifyByPhone_NameMismatchIsNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<Envelope><Body><IdentifyPatientByPhoneResponse>
			<Patient_Data>
				<Patient_Id>PAT-7</Patient_Id>
				<Last_Name>Петров</Last_Name>
				<First_Name>Пётр</First_Name>
				<Middle_Name>Петрович</Middle_Name>
			</Patient_Data>
		</IdentifyPatientByPhoneResponse></Body></Envelope>`))
	})

	got, err := client.IdentifyByPhone(context.Background(), "sess-1", Identity{
		LastName: "Иванов", FirstName: "Иван", MiddleName: "Иванович",
		Phone: "+7(902)1234567",
	})
	require.NoError(t, err)
	assert.Empty(t, got, "a record under someone else's name must not identify the caller")
}

func TestIdentifyByPhone_MatchIsCaseInsensitive(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<Envelope><Body><IdentifyPatientByPhoneResponse>
			<Patient_Data>
				<Patient_Id>PAT-7</Patient_Id>
				<Last_Name>ИВАНОВ</Last_Name>
				<First_Name>Иван</First_Name>
				<Middle_Name>Иванович</Middle_Name>
			</Patient_Data>
		</IdentifyPatientByPhoneResponse></Body></Envelope>`))
	})

	got, err := client.IdentifyByPhone(context.Background(), "sess-1", Identity{
		LastName: "иванов", FirstName: "иван", MiddleName: "иванович",
		Phone: "+7(902)1234567",
	})
	require.NoError(t, err)
	assert.Equal(t, "PAT-7", got)
}

func TestListClinicians_DropsUnavailable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<Envelope><Body><GetMOResourceInfoResponse>
			<MO_Resource_List><MO_Available><Resource_Available>
				<Resource>
					<Specialist>
						<Last_Name>Сидорова</Last_Name><First_Name>Анна</First_Name><Middle_Name>Павловна</Middle_Name>
						<SNILS>11223344595</SNILS>
					</Specialist>
					<Available_Dates><Available_Date>2026-09-01</Available_Date></Available_Dates>
				</Resource>
				<Resource>
					<Specialist>
						<Last_Name>Кузнецов</Last_Name><First_Name>Олег</First_Name><Middle_Name>Игоревич</Middle_Name>
						<SNILS>99887766554</SNILS>
					</Specialist>
					<No_Schedule_Reason><No_Schedule_Reason_Code>5</No_Schedule_Reason_Code></No_Schedule_Reason>
					<Available_Dates><Available_Date>2026-09-01</Available_Date></Available_Dates>
				</Resource>
				<Resource>
					<Specialist>
						<Last_Name>Никитин</Last_Name><First_Name>Яков</First_Name><Middle_Name>Львович</Middle_Name>
						<SNILS>55667788990</SNILS>
					</Specialist>
					<Available_Dates></Available_Dates>
				</Resource>
			</Resource_Available></MO_Available></MO_Resource_List>
		</GetMOResourceInfoResponse></Body></Envelope>`))
	})

	from := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	got, err := client.ListClinicians(context.Background(), "sess-1", "1.2.3", 109, from, from.AddDate(0, 0, 14))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Сидорова Анна Павловна": "11223344595"}, got)
}

func TestListSlots_ParsesVisitTimes(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<Envelope><Body><GetScheduleInfoResponse><Schedule>
			<Slots><Slot_Id>S1</Slot_Id><VisitTime>2026-09-02T09:30:00Z</VisitTime><Room>214</Room></Slots>
			<Slots><Slot_Id>S2</Slot_Id><VisitTime>not-a-time</VisitTime></Slots>
			<Slots><Slot_Id></Slot_Id><VisitTime>2026-09-02T10:00:00Z</VisitTime></Slots>
		</Schedule></GetScheduleInfoResponse></Body></Envelope>`))
	})

	got, err := client.ListSlots(context.Background(), "sess-1", "11223344595", 109, SlotQuery{
		DateStart: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		DateEnd:   time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC),
		TimeStart: "00:00:00",
		TimeEnd:   "23:59:59",
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "S1", got[0].ID)
	assert.Equal(t, "214", got[0].Room)
	assert.Equal(t, 9, got[0].Time.Hour())
}

func TestCreateAppointment_BusyIsResultNotError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<Envelope><Body><CreateAppointmentResponse>
			<Status><Status_Code>APPOINT_TIME_IS_BUSY</Status_Code></Status>
		</CreateAppointmentResponse></Body></Envelope>`))
	})

	got, err := client.CreateAppointment(context.Background(), "sess-1", "S1")
	require.NoError(t, err)
	assert.Equal(t, BookingTimeBusy, got.Status)
	assert.Empty(t, got.BookID)
}

func TestCreateAppointment_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<Envelope><Body><CreateAppointmentResponse>
			<Status><Status_Code>SUCCESS</Status_Code></Status>
			<Book_Id_Mis>BK-100</Book_Id_Mis>
		</CreateAppointmentResponse></Body></Envelope>`))
	})

	got, err := client.CreateAppointment(context.Background(), "sess-1", "S1")
	require.NoError(t, err)
	assert.Equal(t, BookingSuccess, got.Status)
	assert.Equal(t, "BK-100", got.BookID)
}

func TestSend_ServerErrorIsTransient(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.IdentifyByName(context.Background(), "sess-1", Identity{})
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestNewSOAPClient_RequiresEndpoint(t *testing.T) {
	_, err := NewSOAPClient("", "login", "secret", time.Second, nil)
	require.Error(t, err)
}

func TestRequestBody_ContainsIdentityFields(t *testing.T) {
	var body string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		_, _ = w.Write([]byte(`<Envelope><Body><GetPatientInfoResponse></GetPatientInfoResponse></Body></Envelope>`))
	})

	_, err := client.IdentifyByName(context.Background(), "sess-9", Identity{
		LastName: "Иванов", FirstName: "Иван", MiddleName: "Иванович",
		BirthDate: "1990-03-12", Gender: "male",
	})
	require.NoError(t, err)
	for _, want := range []string{"sess-9", "Иванов", "Иван", "Иванович", "1990-03-12"} {
		assert.True(t, strings.Contains(body, want), "request body should contain %q", want)
	}
}
