// Package memstore is an in-memory implementation of every store contract.
// It backs the tests and the --store=memory development mode.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/HanZheTing7/ReservelyGithub/internal/model"
	"github.com/HanZheTing7/ReservelyGithub/internal/store"
)

var (
	_ store.Membership    = (*Store)(nil)
	_ store.Subscriber    = (*Store)(nil)
	_ store.Events        = (*Store)(nil)
	_ store.Profiles      = (*Store)(nil)
	_ store.Notifications = (*Store)(nil)
)

type Store struct {
	mu            sync.RWMutex
	events        map[string]model.Event
	profiles      map[string]model.UserProfile
	records       map[string]map[model.Kind][]model.Record
	notifications []model.Notification
	failures      map[string]error

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	subsMu sync.Mutex
	subs   map[string]map[chan model.Change]struct{}
}

// New creates an empty store.
func New() *Store {
	return &Store{
		events:   make(map[string]model.Event),
		profiles: make(map[string]model.UserProfile),
		records:  make(map[string]map[model.Kind][]model.Record),
		failures: make(map[string]error),
		locks:    make(map[string]*sync.Mutex),
		subs:     make(map[string]map[chan model.Change]struct{}),
	}
}

// FailNext makes the next call of the named method (e.g. "Put", "Count")
// return err. Used by tests to simulate store outages.
func (s *Store) FailNext(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = err
}

// injected pops a pending failure. Caller holds s.mu.
func (s *Store) injected(method string) error {
	err, ok := s.failures[method]
	if !ok {
		return nil
	}
	delete(s.failures, method)
	return err
}

// ─── Membership ───────────────────────────────────────────────────────────────

func (s *Store) Get(ctx context.Context, eventID, userID string) (*model.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("Get"); err != nil {
		return nil, err
	}
	for _, kind := range []model.Kind{model.KindParticipant, model.KindJoinRequest, model.KindWaitlist} {
		if rec, ok := s.find(eventID, kind, userID); ok {
			return copyRecord(rec), nil
		}
	}
	return nil, nil
}

func (s *Store) Lookup(ctx context.Context, eventID string, kind model.Kind, key string) (*model.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("Lookup"); err != nil {
		return nil, err
	}
	if rec, ok := s.find(eventID, kind, key); ok {
		return copyRecord(rec), nil
	}
	return nil, nil
}

func (s *Store) List(ctx context.Context, eventID string, kind model.Kind) ([]model.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("List"); err != nil {
		return nil, err
	}
	recs := s.records[eventID][kind]
	out := make([]model.Record, 0, len(recs))
	for _, rec := range recs {
		out = append(out, *copyRecord(rec))
	}
	return out, nil
}

func (s *Store) Put(ctx context.Context, eventID string, rec model.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if err := s.injected("Put"); err != nil {
		s.mu.Unlock()
		return err
	}
	if _, ok := s.events[eventID]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("event %s: %w", eventID, model.ErrNotFound)
	}
	byKind, ok := s.records[eventID]
	if !ok {
		byKind = make(map[model.Kind][]model.Record)
		s.records[eventID] = byKind
	}
	putIn(byKind, rec)
	s.mu.Unlock()

	s.publish(model.Change{EventID: eventID, Kind: rec.Kind, Key: rec.Key(), Op: model.OpPut})
	return nil
}

func (s *Store) Delete(ctx context.Context, eventID string, kind model.Kind, key string) error {
	s.mu.Lock()
	if err := s.injected("Delete"); err != nil {
		s.mu.Unlock()
		return err
	}
	removed := deleteIn(s.records[eventID], kind, key)
	s.mu.Unlock()

	if removed {
		s.publish(model.Change{EventID: eventID, Kind: kind, Key: key, Op: model.OpDelete})
	}
	return nil
}

func (s *Store) Count(ctx context.Context, eventID string, kind model.Kind) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("Count"); err != nil {
		return 0, err
	}
	return len(s.records[eventID][kind]), nil
}

// Atomically serialises fn against other Atomically calls for the same event.
// Writes fn makes are staged and applied together only when fn returns nil.
func (s *Store) Atomically(ctx context.Context, eventID string, fn func(store.Membership) error) error {
	s.mu.RLock()
	_, ok := s.events[eventID]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("event %s: %w", eventID, model.ErrNotFound)
	}

	lock := s.eventLock(eventID)
	lock.Lock()
	defer lock.Unlock()

	t := s.begin(eventID)
	if err := fn(t); err != nil {
		return err
	}
	t.commit()
	return nil
}

func (s *Store) eventLock(eventID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	lock, ok := s.locks[eventID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[eventID] = lock
	}
	return lock
}

// find locates a record. Caller holds s.mu.
func (s *Store) find(eventID string, kind model.Kind, key string) (model.Record, bool) {
	return findIn(s.records[eventID], kind, key)
}

func findIn(byKind map[model.Kind][]model.Record, kind model.Kind, key string) (model.Record, bool) {
	for _, rec := range byKind[kind] {
		if rec.Key() == key {
			return rec, true
		}
	}
	return model.Record{}, false
}

// putIn replaces the record with the same key or appends rec.
func putIn(byKind map[model.Kind][]model.Record, rec model.Record) {
	stored := *copyRecord(rec)
	for i, existing := range byKind[rec.Kind] {
		if existing.Key() == rec.Key() {
			byKind[rec.Kind][i] = stored
			return
		}
	}
	byKind[rec.Kind] = append(byKind[rec.Kind], stored)
}

// deleteIn removes the record and reports whether it existed.
func deleteIn(byKind map[model.Kind][]model.Record, kind model.Kind, key string) bool {
	recs := byKind[kind]
	for i, rec := range recs {
		if rec.Key() == key {
			byKind[kind] = append(recs[:i:i], recs[i+1:]...)
			return true
		}
	}
	return false
}

func copyRecord(rec model.Record) *model.Record {
	out := model.Record{Kind: rec.Kind}
	if rec.Member != nil {
		m := *rec.Member
		out.Member = &m
	}
	if rec.PlusOne != nil {
		p := *rec.PlusOne
		out.PlusOne = &p
	}
	return &out
}

// ─── Subscriptions ────────────────────────────────────────────────────────────

func (s *Store) Subscribe(ctx context.Context, eventID string) (<-chan model.Change, error) {
	ch := make(chan model.Change, 32)

	s.subsMu.Lock()
	if s.subs[eventID] == nil {
		s.subs[eventID] = make(map[chan model.Change]struct{})
	}
	s.subs[eventID][ch] = struct{}{}
	s.subsMu.Unlock()

	go func() {
		<-ctx.Done()
		s.subsMu.Lock()
		delete(s.subs[eventID], ch)
		close(ch)
		s.subsMu.Unlock()
	}()

	return ch, nil
}

// publish fans a change out to subscribers, dropping it for slow readers.
func (s *Store) publish(change model.Change) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for ch := range s.subs[change.EventID] {
		select {
		case ch <- change:
		default:
		}
	}
}

// ─── Events ───────────────────────────────────────────────────────────────────

func (s *Store) CreateEvent(ctx context.Context, event *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("CreateEvent"); err != nil {
		return err
	}
	s.events[event.ID] = *event
	return nil
}

func (s *Store) ListEvents(ctx context.Context) ([]model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := make([]model.Event, 0, len(s.events))
	for _, e := range s.events {
		events = append(events, e)
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].CreatedAt.After(events[j].CreatedAt)
	})
	return events, nil
}

func (s *Store) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &e, nil
}

func (s *Store) UpdateEvent(ctx context.Context, event *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[event.ID]; !ok {
		return model.ErrNotFound
	}
	s.events[event.ID] = *event
	return nil
}

func (s *Store) ListChatFreezeDue(ctx context.Context, cutoff time.Time) ([]model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var due []model.Event
	for _, e := range s.events {
		if !e.ChatFrozen && e.EndTimeMillis < cutoff.UnixMilli() {
			due = append(due, e)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].EndTimeMillis < due[j].EndTimeMillis })
	return due, nil
}

func (s *Store) MarkChatFrozen(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return model.ErrNotFound
	}
	e.ChatFrozen = true
	s.events[id] = e
	return nil
}

// ─── Profiles ─────────────────────────────────────────────────────────────────

func (s *Store) GetProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("GetProfile"); err != nil {
		return nil, err
	}
	p, ok := s.profiles[userID]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &p, nil
}

func (s *Store) UpsertProfile(ctx context.Context, profile *model.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.ID] = *profile
	return nil
}

// ─── Notifications ────────────────────────────────────────────────────────────

func (s *Store) CreateNotification(ctx context.Context, n *model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("CreateNotification"); err != nil {
		return err
	}
	s.notifications = append(s.notifications, *n)
	return nil
}

func (s *Store) ListNotifications(ctx context.Context, userID string) ([]model.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Notification
	for i := len(s.notifications) - 1; i >= 0; i-- {
		if s.notifications[i].ToUserID == userID {
			out = append(out, s.notifications[i])
		}
	}
	return out, nil
}

func (s *Store) DeleteNotificationsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.notifications[:0]
	removed := 0
	for _, n := range s.notifications {
		if n.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, n)
	}
	s.notifications = kept
	return removed, nil
}
