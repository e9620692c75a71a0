package dialog

import (
	"context"
	"fmt"
	"time"

	"github.com/zhukovDV72toru/alice/internal/bookings"
	"github.com/zhukovDV72toru/alice/internal/observability/metrics"
	"github.com/zhukovDV72toru/alice/internal/registry"
	"github.com/zhukovDV72toru/alice/internal/schedule"
	"github.com/zhukovDV72toru/alice/internal/session"
	"github.com/zhukovDV72toru/alice/internal/tasks"
	"github.com/zhukovDV72toru/alice/pkg/logging"
)

// Input is one user turn.
type Input struct {
	UserID     string
	SessionID  string
	Text       string
	NewSession bool
}

// Response is what the skill says back.
type Response struct {
	Text       string
	TTS        string
	EndSession bool
}

func say(text string) Response {
	return Response{Text: text, TTS: text}
}

// Deps bundles everything the machine needs. All collaborators are
// injected; the machine holds no globals.
type Deps struct {
	Sessions    *session.Store
	Registry    registry.Client
	Tasks       *tasks.Coordinator
	Finder      *schedule.Finder
	Catalog     *registry.ProfessionCatalog
	Aliases     registry.FacilityAliases
	Journal     *bookings.Journal
	Metrics     *metrics.Metrics
	Logger      *logging.Logger
	Now         func() time.Time
	BookingWait time.Duration
	// DefaultProfessionID drives the speculative facility prefetch
	// right after identification.
	DefaultProfessionID int
}

// Machine is the dialogue engine.
type Machine struct {
	deps Deps
}

// New validates the transition tables and the dependency bundle.
func New(deps Deps) (*Machine, error) {
	if err := ValidateTables(); err != nil {
		return nil, err
	}
	if deps.Sessions == nil {
		return nil, fmt.Errorf("dialog: session store is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("dialog: registry client is required")
	}
	if deps.Tasks == nil {
		return nil, fmt.Errorf("dialog: task coordinator is required")
	}
	if deps.Finder == nil {
		return nil, fmt.Errorf("dialog: schedule finder is required")
	}
	if deps.Catalog == nil {
		return nil, fmt.Errorf("dialog: profession catalog is required")
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.BookingWait <= 0 {
		deps.BookingWait = 3 * time.Second
	}
	if deps.DefaultProfessionID == 0 {
		deps.DefaultProfessionID = 109
	}
	if deps.Aliases == nil {
		deps.Aliases = registry.FacilityAliases{}
	}
	return &Machine{deps: deps}, nil
}

// Handle processes one turn and returns the reply. Session mutations
// and at most one task submission happen per turn.
func (m *Machine) Handle(ctx context.Context, in Input) (Response, error) {
	sess := &userSession{store: m.deps.Sessions, userID: in.UserID}

	state, err := sess.state(ctx)
	if err != nil {
		return Response{}, fmt.Errorf("dialog: failed to load state: %w", err)
	}
	m.deps.Metrics.ObserveDialogTurn(string(state))
	log := m.deps.Logger.With("user_id", in.UserID, "state", state)

	if in.NewSession {
		if state == StateZero {
			if resp, handled, err := m.identityShortcut(ctx, sess); err != nil {
				return Response{}, err
			} else if handled {
				return resp, nil
			}
			if err := m.transition(ctx, sess, state, StateGettingName); err != nil {
				return Response{}, err
			}
			return say(textGreeting), nil
		}
		// Relaunched mid-flow: pick up where the user left off.
		return say("С возвращением! " + promptFor(state)), nil
	}

	switch ParseEvent(in.Text) {
	case EventHelp:
		return say(helpFor(state)), nil
	case EventList:
		return m.listOptions(ctx, sess, state)
	case EventAbout:
		return say(textAbout), nil
	case EventRestart:
		return m.restart(ctx, sess)
	case EventBack:
		return m.back(ctx, sess, state)
	case EventYes:
		if state == StateConfirmation || state == StateAppointment {
			return m.confirm(ctx, sess, in, true)
		}
	case EventNo:
		if state == StateConfirmation || state == StateAppointment {
			return m.confirm(ctx, sess, in, false)
		}
		if state == StateZero || state == StateAwaitingAppointed {
			return Response{Text: textSaidBye, TTS: textSaidBye, EndSession: true}, nil
		}
	case EventStatus:
		if state == StateAwaitingAppointed {
			return m.checkBookingStatus(ctx, sess)
		}
	}

	resp, err := m.dispatch(ctx, sess, state, in)
	if err != nil {
		log.Error("turn failed", "error", err)
		return Response{}, err
	}
	return resp, nil
}

func (m *Machine) dispatch(ctx context.Context, sess *userSession, state State, in Input) (Response, error) {
	switch state {
	case StateZero:
		return m.handleZero(ctx, sess, in)
	case StateGettingName:
		return m.handleGettingName(ctx, sess, in)
	case StateGettingDOB:
		return m.handleGettingDOB(ctx, sess, in)
	case StateGettingPhone:
		return m.handleGettingPhone(ctx, sess, in)
	case StateGettingSNILS:
		return m.handleGettingSNILS(ctx, sess, in)
	case StateConfirmation, StateAppointment:
		// Anything other than yes/no repeats the pending question.
		return m.repeatConfirmation(ctx, sess)
	case StateAskPost, StateGettingPost:
		return m.handleProfession(ctx, sess, state, in)
	case StateShowMO, StateGettingMO:
		return m.handleFacility(ctx, sess, state, in)
	case StateGettingMedic:
		return m.handleClinician(ctx, sess, in)
	case StateGettingWishDate:
		return m.handleWishDate(ctx, sess, in)
	case StateGettingWishTime:
		return m.handleWishTime(ctx, sess, in)
	case StateGettingDate:
		return m.handlePickDate(ctx, sess, in)
	case StateGettingTime:
		return m.handlePickTime(ctx, sess, in)
	case StateAwaitingAppointed:
		return m.checkBookingStatus(ctx, sess)
	default:
		return Response{}, fmt.Errorf("dialog: no handler for state %q", state)
	}
}

// transition moves the session to another state, enforcing the table.
func (m *Machine) transition(ctx context.Context, sess *userSession, from, to State) error {
	if from != to && !transitionAllowed(from, to) {
		return fmt.Errorf("dialog: illegal transition %q -> %q", from, to)
	}
	return sess.set(ctx, fieldState, string(to))
}

// restart wipes the session and greets again.
func (m *Machine) restart(ctx context.Context, sess *userSession) (Response, error) {
	if err := sess.clear(ctx); err != nil {
		return Response{}, err
	}
	if err := sess.set(ctx, fieldState, string(StateGettingName)); err != nil {
		return Response{}, err
	}
	m.deps.Metrics.ObserveDialogReset()
	return say(textRestarted), nil
}

// back walks one step toward the start of the questionnaire.
func (m *Machine) back(ctx context.Context, sess *userSession, state State) (Response, error) {
	prev, ok := backTable[state]
	if !ok {
		return say(textNoBack), nil
	}
	if err := sess.set(ctx, fieldState, string(prev)); err != nil {
		return Response{}, err
	}
	return say(promptFor(prev)), nil
}

// promptFor re-asks the question a state is waiting on.
func promptFor(state State) string {
	switch state {
	case StateGettingName:
		return textAskName
	case StateGettingDOB:
		return textAskDOB
	case StateGettingPhone:
		return textAskPhone
	case StateGettingSNILS:
		return textAskSNILS
	case StateAskPost, StateGettingPost:
		return textAskPost
	case StateShowMO, StateGettingMO:
		return textBadMO
	case StateGettingMedic:
		return textBadMedic
	case StateGettingWishDate, StateGettingDate:
		return textAskWish
	case StateGettingWishTime, StateGettingTime:
		return textAskTime
	default:
		return textHelp
	}
}

// helpFor answers the help command with the general capability text
// plus the question the dialogue is currently waiting on.
func helpFor(state State) string {
	if state == StateZero {
		return textHelp
	}
	prompt := promptFor(state)
	if prompt == textHelp {
		return textHelp
	}
	return textHelp + " " + prompt
}

// listOptions re-reads the candidate list of the current question.
// States without a stored list just repeat their prompt.
func (m *Machine) listOptions(ctx context.Context, sess *userSession, state State) (Response, error) {
	switch state {
	case StateAskPost, StateGettingPost:
		return say(textPostList(m.deps.Catalog.HelpNames())), nil
	case StateShowMO, StateGettingMO:
		facilities, ok, err := sess.facilities(ctx)
		if err != nil {
			return Response{}, err
		}
		if ok && len(facilities) > 0 {
			return say(textFacilityList(facilities, m.deps.Aliases)), nil
		}
	case StateGettingMedic:
		roster, ok, err := sess.roster(ctx)
		if err != nil {
			return Response{}, err
		}
		if ok && len(roster) > 0 {
			return say(textClinicianList(rosterNames(roster))), nil
		}
	case StateGettingDate, StateGettingWishDate:
		grid, ok, err := sess.grid(ctx)
		if err != nil {
			return Response{}, err
		}
		if ok && len(grid) > 0 {
			return say(textDateList(grid.Dates())), nil
		}
	case StateGettingTime, StateGettingWishTime:
		grid, ok, err := sess.grid(ctx)
		if err != nil {
			return Response{}, err
		}
		date, derr := sess.getString(ctx, fieldWishDate)
		if derr != nil {
			return Response{}, derr
		}
		if ok && date != "" {
			if times := grid.TimesFor(date); len(times) > 0 {
				return say(textTimeList(times)), nil
			}
		}
	}
	return say(promptFor(state)), nil
}

// identityShortcut greets a returning user whose identification is
// still alive, skipping the questionnaire.
func (m *Machine) identityShortcut(ctx context.Context, sess *userSession) (Response, bool, error) {
	patientID, err := sess.getString(ctx, fieldPatientID)
	if err != nil {
		return Response{}, false, err
	}
	if patientID == "" {
		return Response{}, false, nil
	}
	id, err := sess.identity(ctx)
	if err != nil {
		return Response{}, false, err
	}
	if err := m.transition(ctx, sess, StateZero, StateAskPost); err != nil {
		return Response{}, false, err
	}
	text := fmt.Sprintf("С возвращением, %s! %s", id.FirstName, textAskPost)
	return say(text), true, nil
}
