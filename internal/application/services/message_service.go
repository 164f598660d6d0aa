package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/erboard/backend/internal/domain/entities"
	"github.com/erboard/backend/internal/domain/providers"
	"github.com/erboard/backend/internal/domain/repositories"
	"github.com/erboard/backend/internal/infrastructure/observability"
)

// MessageSummary reports the outcome of a message sync.
type MessageSummary struct {
	Facilities int `json:"facilities"`
	Fetched    int `json:"fetched"`
	Updated    int `json:"updated"`
	Unchanged  int `json:"unchanged"`
	Failed     int `json:"failed"`
}

// MessageService keeps the latest advisory message of every facility
type MessageService struct {
	provider   providers.ERDataProvider
	facilities repositories.FacilityRepository
	messages   repositories.MessageRepository
	workers    int
	timeout    time.Duration
}

// NewMessageService creates a new message service
func NewMessageService(
	provider providers.ERDataProvider,
	facilities repositories.FacilityRepository,
	messages repositories.MessageRepository,
	workers int,
	timeout time.Duration,
) *MessageService {
	if workers <= 0 {
		workers = 8
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MessageService{
		provider:   provider,
		facilities: facilities,
		messages:   messages,
		workers:    workers,
		timeout:    timeout,
	}
}

// SyncMessages fetches the advisories of every known facility and stores the
// newest one of each when it is strictly newer than what is stored.
func (s *MessageService) SyncMessages(ctx context.Context) (MessageSummary, error) {
	logger := observability.ComponentLogger(ctx, "messages")

	facilities, err := s.facilities.List(ctx, repositories.FacilityFilter{})
	if err != nil {
		return MessageSummary{}, err
	}

	var (
		mu      sync.Mutex
		summary = MessageSummary{Facilities: len(facilities)}
		fetched int64
	)

	var g errgroup.Group
	g.SetLimit(s.workers)
	for _, f := range facilities {
		f := f
		g.Go(func() error {
			rctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			msgs, err := s.provider.FetchMessages(rctx, f.HPID)
			if err != nil {
				logger.Warn().Err(err).Str("hpid", f.HPID).Msg("message fetch failed, skipping")
				mu.Lock()
				summary.Failed++
				mu.Unlock()
				return nil
			}
			atomic.AddInt64(&fetched, int64(len(msgs)))

			latest := NewestMessage(msgs)
			if latest == nil {
				return nil
			}
			latest.FacilityID = f.ID
			latest.HPID = f.HPID

			written, err := s.messages.UpsertIfNewer(ctx, latest)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				logger.Error().Err(err).Str("hpid", f.HPID).Msg("failed to store message")
				summary.Failed++
			case written:
				summary.Updated++
			default:
				summary.Unchanged++
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	summary.Fetched = int(fetched)

	logger.Info().
		Int("facilities", summary.Facilities).
		Int("updated", summary.Updated).
		Int("unchanged", summary.Unchanged).
		Int("failed", summary.Failed).
		Msg("message sync complete")
	return summary, nil
}

// NewestMessage returns the message with the latest time; the first wins ties.
func NewestMessage(msgs []*entities.Message) *entities.Message {
	var newest *entities.Message
	for _, m := range msgs {
		if m == nil {
			continue
		}
		if newest == nil || m.MessageTime.After(newest.MessageTime) {
			newest = m
		}
	}
	return newest
}
