// Package dispatch delivers the side effects of membership mutations.
//
// Every call runs in its own goroutine, detached from the request that caused
// it, and is retried with exponential backoff. Failures are logged and
// dropped: the membership mutation has already committed and is never rolled
// back because a notification or chat call failed.
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/HanZheTing7/ReservelyGithub/internal/config"
	"github.com/HanZheTing7/ReservelyGithub/internal/model"
)

// Notifier writes a notification record for a user.
type Notifier interface {
	Notify(ctx context.Context, in model.NotificationInput) error
}

// ChatMembership adds and removes users from an event's chat.
type ChatMembership interface {
	AddMember(ctx context.Context, eventID, userID string) error
	RemoveMember(ctx context.Context, eventID, userID string) error
}

// Dispatcher runs side effects in the background.
type Dispatcher struct {
	notifier Notifier
	chat     ChatMembership // nil when chat is disabled
	log      zerolog.Logger

	maxAttempts int
	baseDelay   time.Duration
	callTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// New creates a Dispatcher. chat may be nil, in which case chat calls are
// skipped.
func New(cfg config.Dispatch, notifier Notifier, chat ChatMembership, log zerolog.Logger) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		notifier:    notifier,
		chat:        chat,
		log:         log,
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.BaseDelay,
		callTimeout: cfg.CallTimeout,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Notify sends a notification to in.ToUserID.
func (d *Dispatcher) Notify(in model.NotificationInput) {
	if d.notifier == nil {
		return
	}
	log := d.log.With().
		Str("effect", "notify").
		Str("event_id", in.EventID).
		Str("user_id", in.ToUserID).
		Str("type", in.Type).
		Logger()
	d.spawn(log, func(ctx context.Context) error {
		return d.notifier.Notify(ctx, in)
	})
}

// AddChatMember adds userID to the event's chat.
func (d *Dispatcher) AddChatMember(eventID, userID string) {
	if d.chat == nil {
		d.log.Debug().Str("event_id", eventID).Str("user_id", userID).Msg("chat disabled, skipping add")
		return
	}
	log := d.log.With().Str("effect", "chat_add").Str("event_id", eventID).Str("user_id", userID).Logger()
	d.spawn(log, func(ctx context.Context) error {
		return d.chat.AddMember(ctx, eventID, userID)
	})
}

// RemoveChatMember removes userID from the event's chat.
func (d *Dispatcher) RemoveChatMember(eventID, userID string) {
	if d.chat == nil {
		d.log.Debug().Str("event_id", eventID).Str("user_id", userID).Msg("chat disabled, skipping remove")
		return
	}
	log := d.log.With().Str("effect", "chat_remove").Str("event_id", eventID).Str("user_id", userID).Logger()
	d.spawn(log, func(ctx context.Context) error {
		return d.chat.RemoveMember(ctx, eventID, userID)
	})
}

func (d *Dispatcher) spawn(log zerolog.Logger, call RetryableFunc) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		log.Warn().Msg("dispatcher closed, side effect dropped")
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()

		err := RetryWithExponentialBackoff(d.ctx,
			func(ctx context.Context) error {
				callCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
				defer cancel()
				return call(callCtx)
			},
			WithMaxAttempts(d.maxAttempts),
			WithBaseDelay(d.baseDelay),
			OnFailure(func(attempt int, err error) {
				log.Debug().Err(err).Int("attempt", attempt).Msg("side effect attempt failed")
			}),
		)
		if err != nil {
			log.Error().Err(err).Msg("side effect dropped")
			return
		}
		log.Debug().Msg("side effect delivered")
	}()
}

// Wait blocks until every side effect started so far has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close stops accepting work and waits for in-flight calls until ctx is done,
// then cancels whatever is still running.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	defer d.cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}
