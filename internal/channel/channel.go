// Package channel holds the per-channel delivery adapters. Each dispatcher
// turns one notification into one provider call and reports its own
// success or failure; the dispatch service owns fan-out and isolation.
package channel

import (
	"context"

	"talktime/internal/domain"
)

type Dispatcher interface {
	Name() domain.Channel
	Send(ctx context.Context, profile *domain.Profile, notif *domain.Notification) error
}
