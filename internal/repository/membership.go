package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/HanZheTing7/ReservelyGithub/internal/model"
	"github.com/HanZheTing7/ReservelyGithub/internal/store"
)

// changeChannel is the LISTEN/NOTIFY channel carrying membership changes.
const changeChannel = "membership_changes"

var (
	_ store.Membership = (*MembershipStore)(nil)
	_ store.Subscriber = (*MembershipStore)(nil)
)

// MembershipStore persists membership records, one row per document.
type MembershipStore struct {
	db   querier
	pool *pgxpool.Pool // nil when bound to a transaction
	log  zerolog.Logger
}

// NewMembershipStore constructs a MembershipStore on the pool.
func NewMembershipStore(pool *pgxpool.Pool, log zerolog.Logger) *MembershipStore {
	return &MembershipStore{db: pool, pool: pool, log: log}
}

func encodePayload(rec model.Record) ([]byte, error) {
	if rec.Kind.IsPlusOne() {
		return json.Marshal(rec.PlusOne)
	}
	return json.Marshal(rec.Member)
}

func decodeRecord(kind model.Kind, payload []byte) (model.Record, error) {
	if kind.IsPlusOne() {
		var p model.PlusOneRequest
		if err := json.Unmarshal(payload, &p); err != nil {
			return model.Record{}, fmt.Errorf("decode %s payload: %w", kind, err)
		}
		return model.NewPlusOneRecord(kind, p), nil
	}
	var m model.Member
	if err := json.Unmarshal(payload, &m); err != nil {
		return model.Record{}, fmt.Errorf("decode %s payload: %w", kind, err)
	}
	return model.NewMemberRecord(kind, m), nil
}

func (s *MembershipStore) selectRecords(ctx context.Context, where ...exp.Expression) ([]model.Record, error) {
	query, args, err := build(dialect.From(tableMemberships).
		Select("kind", "payload").
		Where(where...).
		Order(goqu.C("seq").Asc()).
		Prepared(true))
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query memberships: %w", err)
	}
	defer rows.Close()

	var records []model.Record
	for rows.Next() {
		var (
			kind    string
			payload []byte
		)
		if err := rows.Scan(&kind, &payload); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		rec, err := decodeRecord(model.Kind(kind), payload)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Get returns the user's participant, join request or waitlist record.
func (s *MembershipStore) Get(ctx context.Context, eventID, userID string) (*model.Record, error) {
	primary := []any{
		string(model.KindParticipant),
		string(model.KindJoinRequest),
		string(model.KindWaitlist),
	}
	records, err := s.selectRecords(ctx,
		goqu.C("event_id").Eq(eventID),
		goqu.C("record_key").Eq(userID),
		goqu.C("kind").In(primary...),
	)
	if err != nil {
		return nil, err
	}
	for _, kind := range primary {
		for i := range records {
			if string(records[i].Kind) == kind {
				return &records[i], nil
			}
		}
	}
	return nil, nil
}

// Lookup returns one record or nil when absent.
func (s *MembershipStore) Lookup(ctx context.Context, eventID string, kind model.Kind, key string) (*model.Record, error) {
	records, err := s.selectRecords(ctx,
		goqu.C("event_id").Eq(eventID),
		goqu.C("kind").Eq(string(kind)),
		goqu.C("record_key").Eq(key),
	)
	if err != nil || len(records) == 0 {
		return nil, err
	}
	return &records[0], nil
}

// List returns the records of one collection in insertion order.
func (s *MembershipStore) List(ctx context.Context, eventID string, kind model.Kind) ([]model.Record, error) {
	records, err := s.selectRecords(ctx,
		goqu.C("event_id").Eq(eventID),
		goqu.C("kind").Eq(string(kind)),
	)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []model.Record{}
	}
	return records, nil
}

// Put upserts a record. An existing row keeps its position in the ordering.
func (s *MembershipStore) Put(ctx context.Context, eventID string, rec model.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	payload, err := encodePayload(rec)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", rec.Kind, err)
	}

	query, args, err := build(dialect.Insert(tableMemberships).
		Rows(goqu.Record{
			"event_id":   eventID,
			"kind":       string(rec.Kind),
			"record_key": rec.Key(),
			"payload":    string(payload),
		}).
		OnConflict(goqu.DoUpdate("event_id, kind, record_key", goqu.Record{
			"payload": goqu.L("EXCLUDED.payload"),
		})).
		Prepared(true))
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("event %s: %w", eventID, model.ErrNotFound)
		}
		return fmt.Errorf("put %s/%s: %w", rec.Kind, rec.Key(), err)
	}
	s.notify(ctx, model.Change{EventID: eventID, Kind: rec.Kind, Key: rec.Key(), Op: model.OpPut})
	return nil
}

// Delete removes a record; deleting an absent record is a no-op.
func (s *MembershipStore) Delete(ctx context.Context, eventID string, kind model.Kind, key string) error {
	query, args, err := build(dialect.Delete(tableMemberships).
		Where(
			goqu.C("event_id").Eq(eventID),
			goqu.C("kind").Eq(string(kind)),
			goqu.C("record_key").Eq(key),
		).
		Prepared(true))
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", kind, key, err)
	}
	if tag.RowsAffected() > 0 {
		s.notify(ctx, model.Change{EventID: eventID, Kind: kind, Key: key, Op: model.OpDelete})
	}
	return nil
}

// Count returns the number of records in one collection.
func (s *MembershipStore) Count(ctx context.Context, eventID string, kind model.Kind) (int, error) {
	query, args, err := build(dialect.From(tableMemberships).
		Select(goqu.COUNT("*")).
		Where(
			goqu.C("event_id").Eq(eventID),
			goqu.C("kind").Eq(string(kind)),
		).
		Prepared(true))
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", kind, err)
	}
	return n, nil
}

// Atomically runs fn inside a transaction holding a row-level lock on the
// event (SELECT … FOR UPDATE). Concurrent Atomically calls for the same event
// block until the first one commits or rolls back, so a count read inside fn
// stays valid until fn's writes commit.
func (s *MembershipStore) Atomically(ctx context.Context, eventID string, fn func(store.Membership) error) (err error) {
	if s.pool == nil {
		return fn(s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	query, args, err := lockEventQuery(eventID)
	if err != nil {
		return err
	}
	var locked string
	if err = tx.QueryRow(ctx, query, args...).Scan(&locked); err != nil {
		return notFoundOr(err, "lock event row")
	}

	if err = fn(&MembershipStore{db: tx, log: s.log}); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// lockEventQuery selects the event row with a blocking row-level lock.
func lockEventQuery(eventID string) (string, []any, error) {
	return build(dialect.From(tableEvents).
		Select("id").
		Where(goqu.C("id").Eq(eventID)).
		ForUpdate(exp.Wait).
		Prepared(true))
}

// notify publishes a change to LISTEN subscribers. Inside a transaction the
// notification is delivered on commit. Failures only cost subscribers an
// update, so they are logged.
func (s *MembershipStore) notify(ctx context.Context, change model.Change) {
	payload, err := json.Marshal(change)
	if err != nil {
		s.log.Warn().Err(err).Msg("encode membership change")
		return
	}
	if _, err := s.db.Exec(ctx, "SELECT pg_notify($1, $2)", changeChannel, string(payload)); err != nil {
		s.log.Warn().Err(err).Str("event_id", change.EventID).Msg("publish membership change")
	}
}

// Subscribe listens for membership changes of one event. It holds a pool
// connection until ctx is done.
func (s *MembershipStore) Subscribe(ctx context.Context, eventID string) (<-chan model.Change, error) {
	if s.pool == nil {
		return nil, errors.New("subscribe inside a transaction")
	}
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire listen connection: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+changeChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("listen: %w", err)
	}

	out := make(chan model.Change, 32)
	go func() {
		defer close(out)
		defer func() {
			_, _ = conn.Exec(context.Background(), "UNLISTEN "+changeChannel)
			conn.Release()
		}()

		for {
			n, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() == nil {
					s.log.Warn().Err(err).Str("event_id", eventID).Msg("membership subscription ended")
				}
				return
			}
			var change model.Change
			if err := json.Unmarshal([]byte(n.Payload), &change); err != nil {
				s.log.Warn().Err(err).Msg("decode membership change")
				continue
			}
			if change.EventID != eventID {
				continue
			}
			select {
			case out <- change:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
