package service

import (
	"firebase.google.com/go/v4/messaging"
	"github.com/redis/go-redis/v9"

	"talktime/internal/channel"
	"talktime/internal/config"
	"talktime/internal/realtime"
	"talktime/internal/repository"
	"talktime/internal/service/dispatch"
	"talktime/internal/service/events"
	"talktime/internal/service/notification"
	"talktime/internal/service/preference"
	"talktime/internal/service/processor"
	"talktime/internal/service/scheduler"
)

type Services struct {
	Preferences  preference.Resolver
	Dispatch     dispatch.Service
	Scheduler    scheduler.Service
	Notification notification.Service
	Processor    *processor.Processor
	Events       *events.Subscriber
}

func NewServices(repos *repository.Repositories, redisClient *redis.Client, fcmClient *messaging.Client, cfg *config.Config) (*Services, error) {
	publisher := realtime.NewPublisher(redisClient)
	resolver := preference.NewResolver(repos.User)

	dispatchers := []channel.Dispatcher{
		channel.NewEmailDispatcher(cfg),
		channel.NewSMSDispatcher(cfg),
	}
	if fcmClient != nil {
		dispatchers = append(dispatchers, channel.NewPushDispatcher(fcmClient, repos.Device))
	}

	dispatchService := dispatch.NewService(
		repos.Notification,
		repos.User,
		resolver,
		publisher,
		dispatchers,
		cfg.ChannelTimeout,
	)

	schedulerService := scheduler.NewService(repos.Notification, repos.User)

	proc, err := processor.New(
		repos.Notification,
		repos.Meeting,
		dispatchService,
		publisher,
		cfg.ProcessorInterval,
		cfg.ProcessorBatchSize,
	)
	if err != nil {
		return nil, err
	}

	subscriber := events.NewSubscriber(redisClient, dispatchService, schedulerService, repos.User)

	return &Services{
		Preferences:  resolver,
		Dispatch:     dispatchService,
		Scheduler:    schedulerService,
		Notification: notification.NewService(repos.Notification),
		Processor:    proc,
		Events:       subscriber,
	}, nil
}
