package booking

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/Proton-105/studio-booking-bot/internal/domain"
	"github.com/Proton-105/studio-booking-bot/internal/state"
)

const (
	DefaultBookingDays = 30
	maxServices        = 30
	maxMasters         = 25
	datesPerRow        = 3
	slotsPerRow        = 4
)

var weekdays = [...]string{"Вс", "Пн", "Вт", "Ср", "Чт", "Пт", "Сб"}

// Catalog is the backend content the conversation reads.
type Catalog interface {
	ListServices(ctx context.Context) ([]domain.Service, error)
	ListMasters(ctx context.Context) ([]domain.Master, error)
	ListBookings(ctx context.Context) ([]domain.Booking, error)
	GetSettings(ctx context.Context) (domain.Settings, error)
}

// Texts resolves user-facing copy by key.
type Texts interface {
	Text(ctx context.Context, key string) string
	Render(ctx context.Context, key string, vars map[string]string) string
}

// Input is one user turn: either a callback action or free text.
type Input struct {
	UserID   int64
	ChatID   int64
	Username string
	Action   string
	Text     string
}

// Engine drives the booking conversation one turn at a time.
type Engine struct {
	fsm         state.StateMachine
	catalog     Catalog
	texts       Texts
	slots       *SlotCalculator
	guard       *Guard
	submitter   *Submitter
	bookingDays int
	log         *slog.Logger
	now         func() time.Time
}

// EngineDeps groups the collaborators of an Engine.
type EngineDeps struct {
	FSM         state.StateMachine
	Catalog     Catalog
	Texts       Texts
	Slots       *SlotCalculator
	Guard       *Guard
	Submitter   *Submitter
	BookingDays int
	Logger      *slog.Logger
}

// NewEngine constructs an Engine.
func NewEngine(deps EngineDeps) *Engine {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	days := deps.BookingDays
	if days <= 0 {
		days = DefaultBookingDays
	}

	return &Engine{
		fsm:         deps.FSM,
		catalog:     deps.Catalog,
		texts:       deps.Texts,
		slots:       deps.Slots,
		guard:       deps.Guard,
		submitter:   deps.Submitter,
		bookingDays: days,
		log:         log,
		now:         time.Now,
	}
}

// Current returns the conversation state of the user, idle when there is none.
func (e *Engine) Current(ctx context.Context, userID int64) (state.State, error) {
	sess, err := e.fsm.GetSession(ctx, userID)
	switch {
	case err == nil:
		return sess.State, nil
	case errors.Is(err, state.ErrSessionNotFound), errors.Is(err, state.ErrSessionExpired):
		return state.StateIdle, nil
	default:
		return state.StateIdle, err
	}
}

// Start opens a new conversation unless the user already has an upcoming booking.
// Any previous conversation is discarded.
func (e *Engine) Start(ctx context.Context, in Input) (Prompt, error) {
	if e.guard != nil && e.guard.Blocked(ctx, in.UserID) {
		if err := e.fsm.ClearSession(ctx, in.UserID); err != nil {
			return Prompt{}, err
		}
		return e.notice(ctx, "booking.active_exists"), nil
	}

	services, err := e.catalog.ListServices(ctx)
	if err != nil {
		e.log.WarnContext(ctx, "services unavailable", slog.Int64("user_id", in.UserID), slog.Any("error", err))
	}
	if len(services) == 0 {
		if err := e.fsm.ClearSession(ctx, in.UserID); err != nil {
			return Prompt{}, err
		}
		return e.notice(ctx, "booking.no_services"), nil
	}
	if len(services) > maxServices {
		services = services[:maxServices]
	}

	if err := e.fsm.ClearSession(ctx, in.UserID); err != nil {
		return Prompt{}, err
	}

	sess := state.NewSession(in.UserID, in.ChatID, in.Username)
	sess.Services = services
	if err := e.fsm.TransitionTo(ctx, sess, state.StateAwaitingService); err != nil {
		return Prompt{}, err
	}

	e.log.InfoContext(ctx, "booking started", slog.Int64("user_id", in.UserID))
	return e.render(ctx, sess), nil
}

// Home discards the conversation. The returned prompt asks for the main menu.
func (e *Engine) Home(ctx context.Context, userID int64) (Prompt, error) {
	if err := e.fsm.ClearSession(ctx, userID); err != nil {
		return Prompt{}, err
	}
	return Prompt{Home: true}, nil
}

// Handle applies one input to the user's conversation.
func (e *Engine) Handle(ctx context.Context, in Input) (Prompt, error) {
	if in.Action == ActionHome {
		return e.Home(ctx, in.UserID)
	}

	sess, err := e.fsm.GetSession(ctx, in.UserID)
	if err != nil {
		if errors.Is(err, state.ErrSessionNotFound) || errors.Is(err, state.ErrSessionExpired) {
			return e.notice(ctx, "booking.expired"), nil
		}
		return Prompt{}, err
	}

	if in.Action == ActionBack {
		return e.back(ctx, sess)
	}

	switch sess.State {
	case state.StateAwaitingService:
		if id, ok := strings.CutPrefix(in.Action, PrefixService); ok {
			return e.chooseService(ctx, sess, domain.ID(id))
		}
	case state.StateAwaitingDate:
		if date, ok := strings.CutPrefix(in.Action, PrefixDate); ok {
			return e.chooseDate(ctx, sess, date)
		}
	case state.StateAwaitingTime:
		if label, ok := strings.CutPrefix(in.Action, PrefixTime); ok {
			return e.chooseTime(ctx, sess, label)
		}
	case state.StateAwaitingMaster:
		if id, ok := strings.CutPrefix(in.Action, PrefixMaster); ok {
			return e.chooseMaster(ctx, sess, domain.ID(id))
		}
	case state.StateAwaitingName:
		if in.Action == "" {
			return e.enterName(ctx, sess, in.Text)
		}
	case state.StateAwaitingPhone:
		if in.Action == "" {
			return e.enterPhone(ctx, sess, in.Text)
		}
	default:
		return e.notice(ctx, "booking.expired"), nil
	}

	return e.reprompt(ctx, sess, "booking.use_buttons"), nil
}

func (e *Engine) back(ctx context.Context, sess *state.Session) (Prompt, error) {
	prev := state.Previous(sess.State)
	if prev == state.StateIdle {
		return e.Home(ctx, sess.UserID)
	}

	sess.ClearFrom(prev)
	if err := e.fsm.TransitionTo(ctx, sess, prev); err != nil {
		return Prompt{}, err
	}
	return e.render(ctx, sess), nil
}

func (e *Engine) chooseService(ctx context.Context, sess *state.Session, id domain.ID) (Prompt, error) {
	if _, ok := sess.Service(id); !ok {
		return e.reprompt(ctx, sess, "booking.use_buttons"), nil
	}

	sess.ServiceID = id
	if err := e.fsm.TransitionTo(ctx, sess, state.StateAwaitingDate); err != nil {
		return Prompt{}, err
	}
	return e.render(ctx, sess), nil
}

func (e *Engine) chooseDate(ctx context.Context, sess *state.Session, date string) (Prompt, error) {
	if !e.offered(date) {
		return e.reprompt(ctx, sess, "booking.use_buttons"), nil
	}

	svc, _ := sess.SelectedService()
	slots := e.freeSlots(ctx, date, svc.DurationMinutes)
	if len(slots) == 0 {
		if err := e.fsm.TransitionTo(ctx, sess, state.StateAwaitingDate); err != nil {
			return Prompt{}, err
		}
		return e.reprompt(ctx, sess, "booking.no_slots"), nil
	}

	sess.Date = date
	sess.Slots = slots
	if err := e.fsm.TransitionTo(ctx, sess, state.StateAwaitingTime); err != nil {
		return Prompt{}, err
	}
	return e.render(ctx, sess), nil
}

func (e *Engine) chooseTime(ctx context.Context, sess *state.Session, label string) (Prompt, error) {
	if !sess.HasSlot(label) {
		return e.reprompt(ctx, sess, "booking.use_buttons"), nil
	}

	masters, err := e.catalog.ListMasters(ctx)
	if err != nil {
		e.log.WarnContext(ctx, "masters unavailable", slog.Int64("user_id", sess.UserID), slog.Any("error", err))
	}
	active := domain.ActiveMasters(masters)
	if len(active) == 0 {
		if err := e.fsm.ClearSession(ctx, sess.UserID); err != nil {
			return Prompt{}, err
		}
		return e.notice(ctx, "booking.no_masters"), nil
	}
	if len(active) > maxMasters {
		active = active[:maxMasters]
	}

	sess.Time = label
	sess.Masters = active
	if err := e.fsm.TransitionTo(ctx, sess, state.StateAwaitingMaster); err != nil {
		return Prompt{}, err
	}
	return e.render(ctx, sess), nil
}

func (e *Engine) chooseMaster(ctx context.Context, sess *state.Session, id domain.ID) (Prompt, error) {
	if _, ok := sess.Master(id); !ok {
		return e.reprompt(ctx, sess, "booking.use_buttons"), nil
	}

	sess.MasterID = id
	if err := e.fsm.TransitionTo(ctx, sess, state.StateAwaitingName); err != nil {
		return Prompt{}, err
	}
	return e.render(ctx, sess), nil
}

func (e *Engine) enterName(ctx context.Context, sess *state.Session, text string) (Prompt, error) {
	name, err := ValidateName(text)
	if err != nil {
		return e.reprompt(ctx, sess, "booking.name_too_short"), nil
	}

	sess.Name = name
	if err := e.fsm.TransitionTo(ctx, sess, state.StateAwaitingPhone); err != nil {
		return Prompt{}, err
	}
	return e.render(ctx, sess), nil
}

func (e *Engine) enterPhone(ctx context.Context, sess *state.Session, text string) (Prompt, error) {
	phone, err := ValidatePhone(text)
	if err != nil {
		return e.reprompt(ctx, sess, "booking.phone_invalid"), nil
	}
	sess.Phone = phone

	if _, err := e.submitter.Submit(ctx, sess); err != nil {
		if errors.Is(err, ErrIncomplete) {
			e.log.ErrorContext(ctx, "incomplete session reached submission", slog.Int64("user_id", sess.UserID))
			if err := e.fsm.ClearSession(ctx, sess.UserID); err != nil {
				return Prompt{}, err
			}
			return e.notice(ctx, "booking.expired"), nil
		}
		return e.rollback(ctx, sess)
	}

	confirmation := e.confirmation(ctx, sess)
	if err := e.fsm.ClearSession(ctx, sess.UserID); err != nil {
		e.log.WarnContext(ctx, "failed to clear completed session", slog.Int64("user_id", sess.UserID), slog.Any("error", err))
	}
	return confirmation, nil
}

// rollback returns a rejected conversation to slot selection for the same service
// and date, or to date selection when that day has no free slots left.
func (e *Engine) rollback(ctx context.Context, sess *state.Session) (Prompt, error) {
	sess.ClearFrom(state.StateAwaitingTime)

	svc, _ := sess.SelectedService()
	slots := e.freeSlots(ctx, sess.Date, svc.DurationMinutes)

	next := state.StateAwaitingTime
	if len(slots) == 0 {
		sess.ClearFrom(state.StateAwaitingDate)
		next = state.StateAwaitingDate
	} else {
		sess.Slots = slots
	}

	if err := e.fsm.TransitionTo(ctx, sess, next); err != nil {
		return Prompt{}, err
	}

	p := e.render(ctx, sess)
	p.Key = "booking.rejected"
	p.Text = e.texts.Text(ctx, "booking.rejected") + "\n\n" + p.Text
	return p, nil
}

func (e *Engine) confirmation(ctx context.Context, sess *state.Session) Prompt {
	svc, _ := sess.SelectedService()
	master, _ := sess.SelectedMaster()

	settings, err := e.catalog.GetSettings(ctx)
	if err != nil {
		e.log.WarnContext(ctx, "settings unavailable", slog.Any("error", err))
	}
	address := settings.Address
	if address == "" {
		address = e.texts.Text(ctx, "booking.address_unknown")
	}

	return Prompt{
		Key: "booking.confirmed",
		Text: e.texts.Render(ctx, "booking.confirmed", map[string]string{
			"service": EscapeMarkdown(svc.Name),
			"master":  EscapeMarkdown(master.Name),
			"when":    FormatWhen(sess.Date, sess.Time),
			"address": EscapeMarkdown(address),
		}),
		Markdown: true,
		Home:     true,
	}
}

func (e *Engine) freeSlots(ctx context.Context, date string, duration int) []string {
	bookings, err := e.catalog.ListBookings(ctx)
	if err != nil {
		e.log.WarnContext(ctx, "bookings unavailable, offering every slot", slog.Any("error", err))
	}

	slots, err := e.slots.Available(date, duration, bookings)
	if err != nil {
		e.log.WarnContext(ctx, "slot calculation failed", slog.String("date", date), slog.Any("error", err))
		return nil
	}
	return slots
}

// dates returns the bookable days starting today in the venue time zone.
func (e *Engine) dates() []time.Time {
	now := e.now().In(e.slots.Location())
	out := make([]time.Time, 0, e.bookingDays)
	for i := 0; i < e.bookingDays; i++ {
		out = append(out, time.Date(now.Year(), now.Month(), now.Day()+i, 0, 0, 0, 0, now.Location()))
	}
	return out
}

func (e *Engine) offered(date string) bool {
	for _, d := range e.dates() {
		if d.Format(domain.DateLayout) == date {
			return true
		}
	}
	return false
}

func (e *Engine) notice(ctx context.Context, key string) Prompt {
	return Prompt{Key: key, Text: e.texts.Text(ctx, key), Home: true}
}

// reprompt shows the current step again, led by the message under key. Text steps
// show the message alone.
func (e *Engine) reprompt(ctx context.Context, sess *state.Session, key string) Prompt {
	p := e.render(ctx, sess)
	msg := e.texts.Text(ctx, key)

	switch sess.State {
	case state.StateAwaitingName, state.StateAwaitingPhone:
		p.Text = msg
	default:
		p.Text = msg + "\n\n" + p.Text
	}
	p.Key = key
	return p
}

func (e *Engine) render(ctx context.Context, sess *state.Session) Prompt {
	nav := []Choice{
		{Text: e.texts.Text(ctx, "menu.back"), Action: ActionBack},
		{Text: e.texts.Text(ctx, "menu.home"), Action: ActionHome},
	}

	var p Prompt
	switch sess.State {
	case state.StateAwaitingService:
		choices := make([]Choice, 0, len(sess.Services))
		for _, svc := range sess.Services {
			choices = append(choices, Choice{Text: ServiceLabel(svc), Action: PrefixService + svc.ID.String()})
		}
		p = Prompt{Key: "booking.choose_service", Choices: grid(choices, 1)}

	case state.StateAwaitingDate:
		svc, _ := sess.SelectedService()
		choices := make([]Choice, 0, e.bookingDays)
		for _, d := range e.dates() {
			choices = append(choices, Choice{Text: DateLabel(d), Action: PrefixDate + d.Format(domain.DateLayout)})
		}
		p = Prompt{
			Key: "booking.choose_date",
			Text: e.texts.Render(ctx, "booking.choose_date", map[string]string{
				"service":  EscapeMarkdown(svc.Name),
				"duration": strconv.Itoa(svc.DurationMinutes),
			}),
			Markdown: true,
			Choices:  grid(choices, datesPerRow),
		}

	case state.StateAwaitingTime:
		choices := make([]Choice, 0, len(sess.Slots))
		for _, slot := range sess.Slots {
			choices = append(choices, Choice{Text: slot, Action: PrefixTime + slot})
		}
		p = Prompt{Key: "booking.choose_time", Choices: grid(choices, slotsPerRow)}

	case state.StateAwaitingMaster:
		choices := make([]Choice, 0, len(sess.Masters))
		for _, m := range sess.Masters {
			choices = append(choices, Choice{Text: MasterLabel(m), Action: PrefixMaster + m.ID.String()})
		}
		p = Prompt{Key: "booking.choose_master", Choices: grid(choices, 1)}

	case state.StateAwaitingName:
		p = Prompt{Key: "booking.ask_name"}

	case state.StateAwaitingPhone:
		p = Prompt{Key: "booking.ask_phone"}

	default:
		return Prompt{Home: true}
	}

	if p.Text == "" {
		p.Text = e.texts.Text(ctx, p.Key)
	}
	p.Choices = append(p.Choices, nav)
	return p
}

// ServiceLabel renders a service button: name and price with grouped thousands.
func ServiceLabel(svc domain.Service) string {
	if svc.Price <= 0 {
		return svc.Name
	}
	return svc.Name + " • " + FormatPrice(svc.Price) + " ₽"
}

// MasterLabel renders a master button.
func MasterLabel(m domain.Master) string {
	if m.Specialization == "" {
		return m.Name
	}
	return m.Name + " • " + m.Specialization
}

// DateLabel renders a date button as "dd.mm (Пн)".
func DateLabel(d time.Time) string {
	return d.Format("02.01") + " (" + weekdays[d.Weekday()] + ")"
}

// FormatWhen renders a selected date and slot as "dd.mm.YYYY • HH:MM".
func FormatWhen(date, clock string) string {
	d, err := time.Parse(domain.DateLayout, date)
	if err != nil {
		return date + " • " + clock
	}
	return d.Format("02.01.2006") + " • " + clock
}

// FormatPrice groups thousands with spaces: 15000 becomes "15 000".
func FormatPrice(price int64) string {
	digits := strconv.FormatInt(price, 10)
	negative := strings.HasPrefix(digits, "-")
	digits = strings.TrimPrefix(digits, "-")

	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}

	if negative {
		return "-" + b.String()
	}
	return b.String()
}
