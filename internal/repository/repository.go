package repository

import (
	"github.com/jmoiron/sqlx"
)

type Repositories struct {
	Notification NotificationRepository
	User         UserRepository
	Meeting      MeetingRepository
	Device       DeviceRepository
}

func NewRepositories(db *sqlx.DB) *Repositories {
	return &Repositories{
		Notification: NewNotificationRepository(db),
		User:         NewUserRepository(db),
		Meeting:      NewMeetingRepository(db),
		Device:       NewDeviceRepository(db),
	}
}
