package handler

import (
	"talktime/internal/service"
)

type Handlers struct {
	Notification *NotificationHandler
}

func NewHandlers(services *service.Services) *Handlers {
	return &Handlers{
		Notification: NewNotificationHandler(services.Notification, services.Preferences),
	}
}
