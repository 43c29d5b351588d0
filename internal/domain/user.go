package domain

import (
	"github.com/google/uuid"
)

type Role string

const (
	RoleVolunteer Role = "volunteer"
	RoleStudent   Role = "student"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleVolunteer, RoleStudent:
		return true
	default:
		return false
	}
}

// Counterpart returns the other side of a meeting pairing.
func (r Role) Counterpart() Role {
	if r == RoleVolunteer {
		return RoleStudent
	}
	return RoleVolunteer
}

// Profile is the read-only identity record consumed from the profile store.
// A person is addressed by (id, role); the same person acting under a
// different role is a distinct recipient.
type Profile struct {
	ID       uuid.UUID `json:"id" db:"id"`
	Role     Role      `json:"role" db:"role"`
	FullName string    `json:"full_name" db:"full_name"`
	Email    string    `json:"email" db:"email"`
	Phone    *string   `json:"phone,omitempty" db:"phone"`
	Timezone *string   `json:"timezone,omitempty" db:"timezone"`
}

type EmailPreferences struct {
	MeetingReminders bool `json:"meeting_reminders"`
	MeetingUpdates   bool `json:"meeting_updates"`
	SystemUpdates    bool `json:"system_updates"`
}

type SMSPreferences struct {
	MeetingReminders bool `json:"meeting_reminders"`
	UrgentAlerts     bool `json:"urgent_alerts"`
}

type PushPreferences struct {
	Enabled          bool `json:"enabled"`
	MeetingReminders bool `json:"meeting_reminders"`
	MeetingUpdates   bool `json:"meeting_updates"`
}

// Preferences is a recipient's per-channel notification opt-in map.
type Preferences struct {
	Email EmailPreferences `json:"email"`
	SMS   SMSPreferences   `json:"sms"`
	Push  PushPreferences  `json:"push"`
}

// DefaultPreferences applies when a recipient has no stored record:
// email on, SMS off, push on. In-app delivery is unconditional and has no
// preference knob.
func DefaultPreferences() Preferences {
	return Preferences{
		Email: EmailPreferences{
			MeetingReminders: true,
			MeetingUpdates:   true,
			SystemUpdates:    true,
		},
		SMS: SMSPreferences{},
		Push: PushPreferences{
			Enabled:          true,
			MeetingReminders: true,
			MeetingUpdates:   true,
		},
	}
}
