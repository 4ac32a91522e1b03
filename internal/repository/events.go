package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/HanZheTing7/ReservelyGithub/internal/model"
)

var eventColumns = []any{
	"id", "title", "description", "address", "category", "host_id", "host_name",
	"max_people", "price_per_person", "start_at", "duration_minutes", "end_time_millis",
	"expire_at", "chat_frozen", "chat_group_id", "created_at",
}

// EventRepository handles persistence for events.
type EventRepository struct {
	db *pgxpool.Pool
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

func eventRecord(e *model.Event) goqu.Record {
	return goqu.Record{
		"id":               e.ID,
		"title":            e.Title,
		"description":      e.Description,
		"address":          e.Address,
		"category":         e.Category,
		"host_id":          e.HostID,
		"host_name":        e.HostName,
		"max_people":       e.MaxPeople,
		"price_per_person": nullable(e.PricePerPerson),
		"start_at":         e.StartAt,
		"duration_minutes": e.DurationMinutes,
		"end_time_millis":  e.EndTimeMillis,
		"expire_at":        nullable(e.ExpireAt),
		"chat_frozen":      e.ChatFrozen,
		"chat_group_id":    e.ChatGroupID,
		"created_at":       e.CreatedAt,
	}
}

func scanEvent(row pgx.Row) (*model.Event, error) {
	var e model.Event
	err := row.Scan(
		&e.ID, &e.Title, &e.Description, &e.Address, &e.Category, &e.HostID, &e.HostName,
		&e.MaxPeople, &e.PricePerPerson, &e.StartAt, &e.DurationMinutes, &e.EndTimeMillis,
		&e.ExpireAt, &e.ChatFrozen, &e.ChatGroupID, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// CreateEvent inserts a new event.
func (r *EventRepository) CreateEvent(ctx context.Context, event *model.Event) error {
	query, args, err := build(dialect.Insert(tableEvents).Rows(eventRecord(event)).Prepared(true))
	if err != nil {
		return err
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// ListEvents returns all events ordered by creation time descending.
func (r *EventRepository) ListEvents(ctx context.Context) ([]model.Event, error) {
	return r.query(ctx, "list events",
		dialect.From(tableEvents).Select(eventColumns...).Order(goqu.C("created_at").Desc()))
}

// GetEvent returns a single event or model.ErrNotFound.
func (r *EventRepository) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	query, args, err := build(dialect.From(tableEvents).Select(eventColumns...).
		Where(goqu.C("id").Eq(id)).Prepared(true))
	if err != nil {
		return nil, err
	}
	e, err := scanEvent(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, notFoundOr(err, "get event")
	}
	return e, nil
}

// UpdateEvent overwrites the editable columns of an existing event.
func (r *EventRepository) UpdateEvent(ctx context.Context, event *model.Event) error {
	rec := eventRecord(event)
	delete(rec, "id")
	delete(rec, "created_at")
	query, args, err := build(dialect.Update(tableEvents).Set(rec).
		Where(goqu.C("id").Eq(event.ID)).Prepared(true))
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// ListChatFreezeDue returns unfrozen events whose end time is before cutoff.
func (r *EventRepository) ListChatFreezeDue(ctx context.Context, cutoff time.Time) ([]model.Event, error) {
	return r.query(ctx, "list freeze-due events",
		dialect.From(tableEvents).Select(eventColumns...).
			Where(
				goqu.C("end_time_millis").Lt(cutoff.UnixMilli()),
				goqu.C("chat_frozen").IsFalse(),
			).
			Order(goqu.C("end_time_millis").Asc()))
}

// MarkChatFrozen records that the event's chat has been frozen.
func (r *EventRepository) MarkChatFrozen(ctx context.Context, id string) error {
	query, args, err := build(dialect.Update(tableEvents).
		Set(goqu.Record{"chat_frozen": true}).
		Where(goqu.C("id").Eq(id)).Prepared(true))
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("mark chat frozen: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *EventRepository) query(ctx context.Context, action string, ds *goqu.SelectDataset) ([]model.Event, error) {
	query, args, err := build(ds.Prepared(true))
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", action, err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}
