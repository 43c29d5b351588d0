package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type NotificationType string

const (
	NotifMeetingScheduled   NotificationType = "meeting_scheduled"
	NotifMeetingRescheduled NotificationType = "meeting_rescheduled"
	NotifMeetingReminder30  NotificationType = "meeting_reminder_30min"
	NotifMeetingReminder10  NotificationType = "meeting_reminder_10min"
	NotifMeetingReminder5   NotificationType = "meeting_reminder_5min"
	NotifMeetingCanceled    NotificationType = "meeting_canceled"
	NotifMeetingCompleted   NotificationType = "meeting_completed"
	NotifMeetingMissed      NotificationType = "meeting_missed"
	NotifGeneral            NotificationType = "general"
)

// IsReminder reports whether the type is one of the scheduled reminder tiers.
func (t NotificationType) IsReminder() bool {
	switch t {
	case NotifMeetingReminder30, NotifMeetingReminder10, NotifMeetingReminder5:
		return true
	default:
		return false
	}
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	default:
		return false
	}
}

type Channel string

const (
	ChannelInApp Channel = "in-app"
	ChannelPush  Channel = "push"
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

func (c Channel) IsValid() bool {
	switch c {
	case ChannelInApp, ChannelPush, ChannelEmail, ChannelSMS:
		return true
	default:
		return false
	}
}

// DefaultChannels is the channel set used when a caller does not request any.
func DefaultChannels() []Channel {
	return []Channel{ChannelInApp, ChannelPush}
}

type Notification struct {
	ID                 uuid.UUID        `json:"id" db:"id"`
	RecipientID        uuid.UUID        `json:"recipient_id" db:"recipient_id"`
	RecipientRole      Role             `json:"recipient_role" db:"recipient_role"`
	Type               NotificationType `json:"type" db:"type"`
	Priority           Priority         `json:"priority" db:"priority"`
	Title              string           `json:"title" db:"title"`
	Message            string           `json:"message" db:"message"`
	Metadata           json.RawMessage  `json:"metadata,omitempty" db:"metadata"`
	ScheduledFor       *time.Time       `json:"scheduled_for,omitempty" db:"scheduled_for"`
	IsSent             bool             `json:"is_sent" db:"is_sent"`
	SentAt             *time.Time       `json:"sent_at,omitempty" db:"sent_at"`
	IsRead             bool             `json:"is_read" db:"is_read"`
	ReadAt             *time.Time       `json:"read_at,omitempty" db:"read_at"`
	ChannelsSent       pq.StringArray   `json:"channels_sent" db:"channels_sent"`
	DeliveryStatus     json.RawMessage  `json:"delivery_status,omitempty" db:"delivery_status"`
	IsPersistent       bool             `json:"is_persistent" db:"is_persistent"`
	RequireInteraction bool             `json:"require_interaction" db:"require_interaction"`
	AutoDeleteAfter    *time.Time       `json:"auto_delete_after,omitempty" db:"auto_delete_after"`
	ActionURL          *string          `json:"action_url,omitempty" db:"action_url"`
	Icon               *string          `json:"icon,omitempty" db:"icon"`
	Badge              *string          `json:"badge,omitempty" db:"badge"`
	Tag                *string          `json:"tag,omitempty" db:"tag"`
	CreatedAt          time.Time        `json:"created_at" db:"created_at"`
}

// MeetingMetadata is the structured payload carried by meeting-related
// notifications so the processor and clients can render without a second
// lookup.
type MeetingMetadata struct {
	MeetingID       uuid.UUID `json:"meeting_id"`
	RoomID          string    `json:"room_id,omitempty"`
	CounterpartName string    `json:"counterpart_name,omitempty"`
	OldTime         string    `json:"old_time,omitempty"`
	NewTime         string    `json:"new_time,omitempty"`
}

func (m MeetingMetadata) Marshal() json.RawMessage {
	data, _ := json.Marshal(m)
	return data
}

// ParseMeetingMetadata decodes the metadata blob of a meeting-related
// notification.
func ParseMeetingMetadata(raw json.RawMessage) (MeetingMetadata, error) {
	var m MeetingMetadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return MeetingMetadata{}, err
	}
	return m, nil
}

// ReadStatus filters a notification list by read state.
type ReadStatus string

const (
	ReadStatusAny    ReadStatus = ""
	ReadStatusRead   ReadStatus = "read"
	ReadStatusUnread ReadStatus = "unread"
)

type NotificationFilter struct {
	Status   ReadStatus
	Priority Priority
	Type     NotificationType
}
