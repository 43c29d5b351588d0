package processor

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"talktime/internal/domain"
	"talktime/internal/realtime"
	"talktime/internal/repository"
	"talktime/internal/service/dispatch"
)

// Processor is the periodic sweep over due scheduled notifications. One
// instance runs per process; Start is called once from main and Stop on
// shutdown. Delivery is at-least-once: a row that fails stays unsent and is
// retried on the next tick, and the client-side tag de-duplicates arrivals.
type Processor struct {
	notifRepo   repository.NotificationRepository
	meetingRepo repository.MeetingRepository
	dispatcher  dispatch.Service
	publisher   realtime.Publisher
	interval    time.Duration
	batchSize   int
	now         func() time.Time

	stop    chan struct{}
	done    sync.WaitGroup
	started bool
	mu      sync.Mutex
}

func New(
	notifRepo repository.NotificationRepository,
	meetingRepo repository.MeetingRepository,
	dispatcher dispatch.Service,
	publisher realtime.Publisher,
	interval time.Duration,
	batchSize int,
) (*Processor, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("processor interval must be positive, got %s", interval)
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Processor{
		notifRepo:   notifRepo,
		meetingRepo: meetingRepo,
		dispatcher:  dispatcher,
		publisher:   publisher,
		interval:    interval,
		batchSize:   batchSize,
		now:         time.Now,
		stop:        make(chan struct{}),
	}, nil
}

// Start launches the sweep loop. The first sweep runs immediately so a
// restart never delays due reminders by a full period.
func (p *Processor) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	p.done.Add(1)
	go p.run(ctx)
}

func (p *Processor) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	close(p.stop)
	p.done.Wait()
}

func (p *Processor) run(ctx context.Context) {
	defer p.done.Done()

	p.Sweep(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.Sweep(ctx)
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Sweep processes one batch of due notifications. Each row is its own fault
// domain: an error is logged and the row left unsent for the next tick.
func (p *Processor) Sweep(ctx context.Context) {
	due, err := p.notifRepo.ListDue(ctx, p.now(), p.batchSize)
	if err != nil {
		log.Printf("Due-notification query failed: %v", err)
		return
	}
	if len(due) == 0 {
		return
	}

	log.Printf("Processing %d due notifications", len(due))

	for i := range due {
		notif := &due[i]
		if err := p.process(ctx, notif); err != nil {
			log.Printf("Failed to process notification %s: %v", notif.ID, err)
			continue
		}

		if notif.Type == domain.NotifMeetingReminder5 {
			p.autoLaunch(ctx, notif)
		}
	}
}

func (p *Processor) process(ctx context.Context, notif *domain.Notification) error {
	if _, err := p.dispatcher.Deliver(ctx, notif, channelsFor(notif)); err != nil {
		return fmt.Errorf("deliver: %w", err)
	}

	sentAt := p.now()
	if err := p.notifRepo.MarkSent(ctx, notif.ID, sentAt); err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}

	notif.IsSent = true
	notif.SentAt = &sentAt
	return nil
}

// autoLaunch broadcasts the call-launch trigger for a final-tier reminder.
// It only runs after the row was dispatched and marked sent, and its own
// failures never bubble into the sweep.
func (p *Processor) autoLaunch(ctx context.Context, notif *domain.Notification) {
	meta, err := domain.ParseMeetingMetadata(notif.Metadata)
	if err != nil {
		log.Printf("Auto-launch skipped, malformed metadata on %s: %v", notif.ID, err)
		return
	}

	meeting, err := p.meetingRepo.GetByID(ctx, meta.MeetingID)
	if err != nil {
		log.Printf("Auto-launch skipped, meeting lookup %s failed: %v", meta.MeetingID, err)
		return
	}
	if meeting == nil {
		log.Printf("Auto-launch skipped, meeting %s no longer exists", meta.MeetingID)
		return
	}

	event := domain.AutoLaunchEvent{
		MeetingID:   meeting.ID,
		RoomID:      meeting.RoomID,
		VolunteerID: meeting.VolunteerID,
		StudentID:   meeting.StudentID,
		LaunchAt:    meeting.ScheduledTime,
	}
	if err := p.publisher.PublishAutoLaunch(ctx, event); err != nil {
		log.Printf("Auto-launch broadcast failed for meeting %s: %v", meeting.ID, err)
	}
}

// channelsFor derives the delivery channel set for a due row from its type
// and priority: reminders push, high and urgent add email, urgent adds SMS.
func channelsFor(notif *domain.Notification) []domain.Channel {
	channels := []domain.Channel{domain.ChannelInApp}

	if notif.Type.IsReminder() {
		channels = append(channels, domain.ChannelPush)
	}
	if notif.Priority == domain.PriorityHigh || notif.Priority == domain.PriorityUrgent {
		channels = append(channels, domain.ChannelEmail)
	}
	if notif.Priority == domain.PriorityUrgent {
		channels = append(channels, domain.ChannelSMS)
	}

	return channels
}
