package memstore

import (
	"context"
	"fmt"

	"github.com/HanZheTing7/ReservelyGithub/internal/model"
	"github.com/HanZheTing7/ReservelyGithub/internal/store"
)

// tx is the Membership handed to an Atomically callback. Reads of its event
// see a private copy of the records plus the writes staged so far. Writes are
// applied to the store by commit. Other events pass straight through.
type tx struct {
	s       *Store
	eventID string
	records map[model.Kind][]model.Record
	staged  []txOp
}

type txOp struct {
	change model.Change
	rec    model.Record
}

var _ store.Membership = (*tx)(nil)

func (s *Store) begin(eventID string) *tx {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := make(map[model.Kind][]model.Record, len(s.records[eventID]))
	for kind, recs := range s.records[eventID] {
		records[kind] = append([]model.Record(nil), recs...)
	}
	return &tx{s: s, eventID: eventID, records: records}
}

// commit applies the staged writes in order and publishes them.
func (t *tx) commit() {
	s := t.s
	s.mu.Lock()
	byKind, ok := s.records[t.eventID]
	if !ok {
		byKind = make(map[model.Kind][]model.Record)
		s.records[t.eventID] = byKind
	}
	for _, op := range t.staged {
		if op.change.Op == model.OpPut {
			putIn(byKind, op.rec)
		} else {
			deleteIn(byKind, op.change.Kind, op.change.Key)
		}
	}
	s.mu.Unlock()

	for _, op := range t.staged {
		s.publish(op.change)
	}
}

// fail pops an injected failure for method.
func (t *tx) fail(method string) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.s.injected(method)
}

func (t *tx) Get(ctx context.Context, eventID, userID string) (*model.Record, error) {
	if eventID != t.eventID {
		return t.s.Get(ctx, eventID, userID)
	}
	if err := t.fail("Get"); err != nil {
		return nil, err
	}
	for _, kind := range []model.Kind{model.KindParticipant, model.KindJoinRequest, model.KindWaitlist} {
		if rec, ok := findIn(t.records, kind, userID); ok {
			return copyRecord(rec), nil
		}
	}
	return nil, nil
}

func (t *tx) Lookup(ctx context.Context, eventID string, kind model.Kind, key string) (*model.Record, error) {
	if eventID != t.eventID {
		return t.s.Lookup(ctx, eventID, kind, key)
	}
	if err := t.fail("Lookup"); err != nil {
		return nil, err
	}
	if rec, ok := findIn(t.records, kind, key); ok {
		return copyRecord(rec), nil
	}
	return nil, nil
}

func (t *tx) List(ctx context.Context, eventID string, kind model.Kind) ([]model.Record, error) {
	if eventID != t.eventID {
		return t.s.List(ctx, eventID, kind)
	}
	if err := t.fail("List"); err != nil {
		return nil, err
	}
	out := make([]model.Record, 0, len(t.records[kind]))
	for _, rec := range t.records[kind] {
		out = append(out, *copyRecord(rec))
	}
	return out, nil
}

func (t *tx) Put(ctx context.Context, eventID string, rec model.Record) error {
	if eventID != t.eventID {
		return fmt.Errorf("event %s: write outside the locked event %s", eventID, t.eventID)
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	if err := t.fail("Put"); err != nil {
		return err
	}
	putIn(t.records, rec)
	t.staged = append(t.staged, txOp{
		change: model.Change{EventID: eventID, Kind: rec.Kind, Key: rec.Key(), Op: model.OpPut},
		rec:    *copyRecord(rec),
	})
	return nil
}

func (t *tx) Delete(ctx context.Context, eventID string, kind model.Kind, key string) error {
	if eventID != t.eventID {
		return fmt.Errorf("event %s: write outside the locked event %s", eventID, t.eventID)
	}
	if err := t.fail("Delete"); err != nil {
		return err
	}
	if deleteIn(t.records, kind, key) {
		t.staged = append(t.staged, txOp{
			change: model.Change{EventID: eventID, Kind: kind, Key: key, Op: model.OpDelete},
		})
	}
	return nil
}

func (t *tx) Count(ctx context.Context, eventID string, kind model.Kind) (int, error) {
	if eventID != t.eventID {
		return t.s.Count(ctx, eventID, kind)
	}
	if err := t.fail("Count"); err != nil {
		return 0, err
	}
	return len(t.records[kind]), nil
}

// Atomically on an open tx runs fn inside the same tx.
func (t *tx) Atomically(ctx context.Context, eventID string, fn func(store.Membership) error) error {
	if eventID != t.eventID {
		return t.s.Atomically(ctx, eventID, fn)
	}
	return fn(t)
}
