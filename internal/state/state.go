package state

import (
	"time"

	"github.com/google/uuid"

	"github.com/Proton-105/studio-booking-bot/internal/domain"
)

// State represents a booking conversation state.
type State string

const (
	// StateIdle means no booking conversation is in progress.
	StateIdle State = "idle"
	// StateAwaitingService waits for a service choice.
	StateAwaitingService State = "awaiting_service"
	// StateAwaitingDate waits for one of the offered dates.
	StateAwaitingDate State = "awaiting_date"
	// StateAwaitingTime waits for a free slot on the chosen date.
	StateAwaitingTime State = "awaiting_time"
	// StateAwaitingMaster waits for an active master.
	StateAwaitingMaster State = "awaiting_master"
	// StateAwaitingName waits for the customer's name as free text.
	StateAwaitingName State = "awaiting_name"
	// StateAwaitingPhone waits for the customer's phone as free text.
	StateAwaitingPhone State = "awaiting_phone"
)

// BookingStates lists the conversation states in the order they are visited.
var BookingStates = []State{
	StateAwaitingService,
	StateAwaitingDate,
	StateAwaitingTime,
	StateAwaitingMaster,
	StateAwaitingName,
	StateAwaitingPhone,
}

// Session is the per-user booking conversation. Selections are filled strictly in
// state order and every selected id refers to an entry of the matching catalog.
type Session struct {
	ID        string           `json:"id,omitempty"`
	UserID    int64            `json:"user_id"`
	ChatID    int64            `json:"chat_id"`
	Username  string           `json:"username,omitempty"`
	State     State            `json:"state"`
	Services  []domain.Service `json:"services,omitempty"`
	ServiceID domain.ID        `json:"service_id,omitempty"`
	Date      string           `json:"date,omitempty"`
	Slots     []string         `json:"slots,omitempty"`
	Time      string           `json:"time,omitempty"`
	Masters   []domain.Master  `json:"masters,omitempty"`
	MasterID  domain.ID        `json:"master_id,omitempty"`
	Name      string           `json:"name,omitempty"`
	Phone     string           `json:"phone,omitempty"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// NewSession starts an empty conversation for a user. Every conversation gets its own id.
func NewSession(userID, chatID int64, username string) *Session {
	return &Session{
		ID:       uuid.NewString(),
		UserID:   userID,
		ChatID:   chatID,
		Username: username,
		State:    StateIdle,
	}
}

// Service returns the catalog entry with the given id.
func (s *Session) Service(id domain.ID) (domain.Service, bool) {
	for _, svc := range s.Services {
		if svc.ID == id {
			return svc, true
		}
	}
	return domain.Service{}, false
}

// SelectedService returns the chosen service.
func (s *Session) SelectedService() (domain.Service, bool) {
	if s.ServiceID == "" {
		return domain.Service{}, false
	}
	return s.Service(s.ServiceID)
}

// Master returns the catalog entry with the given id.
func (s *Session) Master(id domain.ID) (domain.Master, bool) {
	for _, m := range s.Masters {
		if m.ID == id {
			return m, true
		}
	}
	return domain.Master{}, false
}

// SelectedMaster returns the chosen master.
func (s *Session) SelectedMaster() (domain.Master, bool) {
	if s.MasterID == "" {
		return domain.Master{}, false
	}
	return s.Master(s.MasterID)
}

// HasSlot reports whether label is one of the slots offered for the chosen date.
func (s *Session) HasSlot(label string) bool {
	for _, slot := range s.Slots {
		if slot == label {
			return true
		}
	}
	return false
}

// Complete reports whether every field required for submission is present and
// consistent with the catalogs.
func (s *Session) Complete() bool {
	_, hasService := s.SelectedService()
	_, hasMaster := s.SelectedMaster()
	return hasService && hasMaster && s.Date != "" && s.Time != "" && s.Name != "" && s.Phone != ""
}

// ClearFrom discards the selection made in st and every selection made after it.
// Catalogs loaded on entry to a later state are discarded as well.
func (s *Session) ClearFrom(st State) {
	switch st {
	case StateAwaitingService:
		s.ServiceID = ""
		fallthrough
	case StateAwaitingDate:
		s.Date = ""
		s.Slots = nil
		fallthrough
	case StateAwaitingTime:
		s.Time = ""
		s.Masters = nil
		fallthrough
	case StateAwaitingMaster:
		s.MasterID = ""
		fallthrough
	case StateAwaitingName:
		s.Name = ""
		fallthrough
	case StateAwaitingPhone:
		s.Phone = ""
	}
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}

	c := *s
	c.Services = append([]domain.Service(nil), s.Services...)
	c.Slots = append([]string(nil), s.Slots...)
	c.Masters = append([]domain.Master(nil), s.Masters...)
	return &c
}
