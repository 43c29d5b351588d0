package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Meeting is a read-only reference owned by the meeting-management component.
type Meeting struct {
	ID            uuid.UUID `json:"id" db:"id"`
	VolunteerID   uuid.UUID `json:"volunteer_id" db:"volunteer_id"`
	StudentID     uuid.UUID `json:"student_id" db:"student_id"`
	ScheduledTime time.Time `json:"scheduled_time" db:"scheduled_time"`
	RoomID        string    `json:"room_id" db:"room_id"`
	Duration      int       `json:"duration_minutes" db:"duration_minutes"`
	Status        string    `json:"status" db:"status"`
}

// Meeting lifecycle event types published by meeting management.
const (
	EventMeetingCreated     = "meeting.created"
	EventMeetingRescheduled = "meeting.rescheduled"
	EventMeetingCanceled    = "meeting.canceled"
	EventMeetingEnded       = "meeting.ended"
	EventMeetingMissed      = "meeting.missed"
)

// MeetingEvent is the envelope carried on the meeting event stream.
type MeetingEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type MeetingCreatedData struct {
	MeetingID     uuid.UUID `json:"meetingId"`
	VolunteerID   uuid.UUID `json:"volunteerId"`
	StudentID     uuid.UUID `json:"studentId"`
	ScheduledTime time.Time `json:"scheduledTime"`
	RoomID        string    `json:"roomId"`
	Duration      int       `json:"duration"`
}

type MeetingRescheduledData struct {
	MeetingID   uuid.UUID `json:"meetingId"`
	VolunteerID uuid.UUID `json:"volunteerId"`
	StudentID   uuid.UUID `json:"studentId"`
	OldTime     time.Time `json:"oldTime"`
	NewTime     time.Time `json:"newTime"`
	RoomID      string    `json:"roomId"`
	ActorID     uuid.UUID `json:"actorId"`
	ActorRole   Role      `json:"actorRole"`
}

type MeetingCanceledData struct {
	MeetingID     uuid.UUID `json:"meetingId"`
	VolunteerID   uuid.UUID `json:"volunteerId"`
	StudentID     uuid.UUID `json:"studentId"`
	ScheduledTime time.Time `json:"scheduledTime"`
	ActorID       uuid.UUID `json:"actorId"`
	ActorRole     Role      `json:"actorRole"`
	Reason        string    `json:"reason,omitempty"`
}

type MeetingEndedData struct {
	MeetingID   uuid.UUID `json:"meetingId"`
	VolunteerID uuid.UUID `json:"volunteerId"`
	StudentID   uuid.UUID `json:"studentId"`
	Status      string    `json:"status"`
}

type MeetingMissedData struct {
	MeetingID     uuid.UUID `json:"meetingId"`
	VolunteerID   uuid.UUID `json:"volunteerId"`
	StudentID     uuid.UUID `json:"studentId"`
	ScheduledTime time.Time `json:"scheduledTime"`
}

// AutoLaunchEvent is broadcast when the final reminder tier fires so the
// call-launch UI can open the room for both participants.
type AutoLaunchEvent struct {
	MeetingID   uuid.UUID `json:"meeting_id"`
	RoomID      string    `json:"room_id"`
	VolunteerID uuid.UUID `json:"volunteer_id"`
	StudentID   uuid.UUID `json:"student_id"`
	LaunchAt    time.Time `json:"launch_at"`
}
