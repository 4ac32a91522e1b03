package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HanZheTing7/ReservelyGithub/internal/memstore"
	"github.com/HanZheTing7/ReservelyGithub/internal/model"
)

var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeFreezer struct {
	frozen []string
	fail   map[string]bool
}

func (f *fakeFreezer) Freeze(_ context.Context, event model.Event) error {
	if f.fail[event.ID] {
		return errors.New("backend down")
	}
	f.frozen = append(f.frozen, event.ID)
	return nil
}

func addEvent(t *testing.T, st *memstore.Store, id string, end time.Time) {
	t.Helper()
	require.NoError(t, st.CreateEvent(context.Background(), &model.Event{
		ID: id, HostID: "h", MaxPeople: 5, EndTimeMillis: end.UnixMilli(), ChatGroupID: id + "@g.us",
	}))
}

func TestFreezeChats(t *testing.T) {
	st := memstore.New()
	addEvent(t, st, "long-over", now.Add(-5*time.Hour))
	addEvent(t, st, "just-over", now.Add(-time.Hour))
	addEvent(t, st, "upcoming", now.Add(time.Hour))

	freezer := &fakeFreezer{}
	run := FreezeChats(st, freezer, 2*time.Hour, func() time.Time { return now }, zerolog.Nop())

	require.NoError(t, run(context.Background()))
	assert.Equal(t, []string{"long-over"}, freezer.frozen)

	event, err := st.GetEvent(context.Background(), "long-over")
	require.NoError(t, err)
	assert.True(t, event.ChatFrozen)

	// A second pass finds nothing new.
	require.NoError(t, run(context.Background()))
	assert.Equal(t, []string{"long-over"}, freezer.frozen)
}

func TestFreezeChats_ContinuesPastFailures(t *testing.T) {
	st := memstore.New()
	addEvent(t, st, "a", now.Add(-10*time.Hour))
	addEvent(t, st, "b", now.Add(-9*time.Hour))

	freezer := &fakeFreezer{fail: map[string]bool{"a": true}}
	run := FreezeChats(st, freezer, 2*time.Hour, func() time.Time { return now }, zerolog.Nop())

	err := run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "freeze chat of a")
	assert.Equal(t, []string{"b"}, freezer.frozen)

	a, err := st.GetEvent(context.Background(), "a")
	require.NoError(t, err)
	assert.False(t, a.ChatFrozen, "a failed freeze is retried on the next run")
}

type countingPurger struct{ calls atomic.Int32 }

func (p *countingPurger) Purge(context.Context) (int, error) {
	p.calls.Add(1)
	return 0, nil
}

func TestScheduler_RunsImmediatelyAndOnTick(t *testing.T) {
	purger := &countingPurger{}
	s := NewScheduler(zerolog.Nop())
	s.Add(Job{Name: "purge", Interval: 10 * time.Millisecond, Run: PurgeNotifications(purger)})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	assert.Eventually(t, func() bool { return purger.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	s.Wait()
}

func TestScheduler_SurvivesJobErrors(t *testing.T) {
	var calls atomic.Int32
	s := NewScheduler(zerolog.Nop())
	s.Add(Job{Name: "flaky", Interval: 5 * time.Millisecond, Run: func(context.Context) error {
		calls.Add(1)
		return errors.New("nope")
	}})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	assert.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	s.Wait()
}
