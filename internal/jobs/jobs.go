// Package jobs runs the periodic background work: freezing event chats after
// the event is over and purging old notifications.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/HanZheTing7/ReservelyGithub/internal/model"
	"github.com/HanZheTing7/ReservelyGithub/internal/store"
)

// Job is a unit of periodic work.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs each job once at start and then on every interval tick.
type Scheduler struct {
	jobs []Job
	log  zerolog.Logger
	wg   sync.WaitGroup
}

// NewScheduler creates an empty Scheduler.
func NewScheduler(log zerolog.Logger) *Scheduler {
	return &Scheduler{log: log}
}

// Add registers a job. Jobs added after Start are not run.
func (s *Scheduler) Add(job Job) {
	s.jobs = append(s.jobs, job)
}

// Start launches every job in its own goroutine. They stop when ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	for _, job := range s.jobs {
		s.wg.Add(1)
		go func(job Job) {
			defer s.wg.Done()
			s.loop(ctx, job)
		}(job)
	}
}

// Wait blocks until every job loop has returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	log := s.log.With().Str("job", job.Name).Logger()
	log.Info().Dur("interval", job.Interval).Msg("job scheduled")

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		s.runOnce(ctx, log, job)
		select {
		case <-ctx.Done():
			log.Info().Msg("job stopped")
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, log zerolog.Logger, job Job) {
	start := time.Now()
	if err := job.Run(ctx); err != nil {
		log.Error().Err(err).Dur("took", time.Since(start)).Msg("job failed")
		return
	}
	log.Debug().Dur("took", time.Since(start)).Msg("job finished")
}

// ChatFreezer freezes an event's group chat.
type ChatFreezer interface {
	Freeze(ctx context.Context, event model.Event) error
}

// FreezeChats returns a job body that freezes the chat of every event that
// ended more than after ago and marks the event frozen. A failure on one event
// does not stop the others.
func FreezeChats(events store.Events, chat ChatFreezer, after time.Duration, now func() time.Time, log zerolog.Logger) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		due, err := events.ListChatFreezeDue(ctx, now().Add(-after))
		if err != nil {
			return fmt.Errorf("list events due for freeze: %w", err)
		}

		var errs []error
		for _, event := range due {
			if err := chat.Freeze(ctx, event); err != nil {
				errs = append(errs, fmt.Errorf("freeze chat of %s: %w", event.ID, err))
				continue
			}
			if err := events.MarkChatFrozen(ctx, event.ID); err != nil {
				errs = append(errs, fmt.Errorf("mark %s frozen: %w", event.ID, err))
				continue
			}
			log.Info().Str("event_id", event.ID).Time("ended", event.EndTime()).Msg("chat frozen")
		}
		return errors.Join(errs...)
	}
}

// Purger deletes notifications past their retention window.
type Purger interface {
	Purge(ctx context.Context) (int, error)
}

// PurgeNotifications returns a job body that runs p.
func PurgeNotifications(p Purger) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		_, err := p.Purge(ctx)
		return err
	}
}
