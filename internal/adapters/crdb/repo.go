package crdb

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/whereabout/gate-ticketing/internal/domain"
)

const (
	SerializationFailureCode = "40001"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Mark(err, domain.ErrUpstreamUnavailable)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == SerializationFailureCode {
			return domain.ErrConflict
		}
		return err
	}

	return tx.Commit(ctx)
}

func (r *Repository) GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	var ev domain.Event
	err := r.pool.QueryRow(ctx, `
		SELECT id, title, starts_at, location, capacity, attending
		FROM events WHERE id = $1
	`, id).Scan(&ev.ID, &ev.Title, &ev.StartsAt, &ev.Location, &ev.Capacity, &ev.Attending)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, errors.Mark(err, domain.ErrUpstreamUnavailable)
	}
	return &ev, nil
}

func (r *Repository) HasRegistration(ctx context.Context, eventID, userID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM event_registrations WHERE event_id = $1 AND user_id = $2
		)
	`, eventID, userID).Scan(&exists)
	if err != nil {
		return false, errors.Mark(err, domain.ErrUpstreamUnavailable)
	}
	return exists, nil
}

func (r *Repository) ListRegistrations(ctx context.Context, userID uuid.UUID) ([]domain.Registration, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, event_id, user_id, registered_at
		FROM event_registrations WHERE user_id = $1 ORDER BY registered_at ASC
	`, userID)
	if err != nil {
		return nil, errors.Mark(err, domain.ErrUpstreamUnavailable)
	}
	defer rows.Close()

	var regs []domain.Registration
	for rows.Next() {
		var reg domain.Registration
		if err := rows.Scan(&reg.ID, &reg.EventID, &reg.UserID, &reg.RegisteredAt); err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}
	return regs, rows.Err()
}

func (r *Repository) GetTicket(ctx context.Context, eventID, userID uuid.UUID) (*domain.Ticket, error) {
	return r.scanTicket(r.pool.QueryRow(ctx, `
		SELECT id, event_id, user_id, code, status, created_at
		FROM tickets WHERE event_id = $1 AND user_id = $2
	`, eventID, userID))
}

func (r *Repository) GetTicketByID(ctx context.Context, id uuid.UUID) (*domain.Ticket, error) {
	return r.scanTicket(r.pool.QueryRow(ctx, `
		SELECT id, event_id, user_id, code, status, created_at
		FROM tickets WHERE id = $1
	`, id))
}

func (r *Repository) scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var t domain.Ticket
	err := row.Scan(&t.ID, &t.EventID, &t.UserID, &t.Code, &t.Status, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, errors.Mark(err, domain.ErrUpstreamUnavailable)
	}
	return &t, nil
}

// InsertTicket relies on the UNIQUE (event_id, user_id) index for dedupe: a
// racing insert reports created=false and the caller re-fetches the winner.
func (r *Repository) InsertTicket(ctx context.Context, t domain.Ticket) (created bool, err error) {
	result, err := r.pool.Exec(ctx, `
		INSERT INTO tickets (id, event_id, user_id, code, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (event_id, user_id) DO NOTHING
	`, t.ID, t.EventID, t.UserID, t.Code, t.Status, t.CreatedAt)
	if err != nil {
		return false, errors.Mark(err, domain.ErrUpstreamUnavailable)
	}
	return result.RowsAffected() > 0, nil
}

// LatestEntry returns the most recent entry record for a ticket, or
// domain.ErrNotFound when the ticket has never passed a gate.
func (r *Repository) LatestEntry(ctx context.Context, ticketID uuid.UUID) (*domain.TicketEntry, error) {
	var e domain.TicketEntry
	err := r.pool.QueryRow(ctx, `
		SELECT id, ticket_id, entered_at, exited_at
		FROM ticket_entries WHERE ticket_id = $1
		ORDER BY entered_at DESC LIMIT 1
	`, ticketID).Scan(&e.ID, &e.TicketID, &e.EnteredAt, &e.ExitedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, errors.Mark(err, domain.ErrUpstreamUnavailable)
	}
	return &e, nil
}

// RecordEntry appends a new open entry record and the matching outbox row in
// one transaction.
func (r *Repository) RecordEntry(ctx context.Context, ticket *domain.Ticket, entry *domain.TicketEntry, stationID string) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO ticket_entries (id, ticket_id, entered_at)
			VALUES ($1, $2, $3)
		`, entry.ID, entry.TicketID, entry.EnteredAt)
		if err != nil {
			return err
		}
		return r.insertGateOutbox(ctx, tx, "gate.entered", ticket, entry, stationID, entry.EnteredAt)
	})
}

// RecordExit closes the open entry record in place. A second scanner racing on
// the same open record loses on the exited_at IS NULL guard and gets
// domain.ErrConflict.
func (r *Repository) RecordExit(ctx context.Context, ticket *domain.Ticket, entry *domain.TicketEntry, exitedAt time.Time, stationID string) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `
			UPDATE ticket_entries SET exited_at = $2
			WHERE id = $1 AND exited_at IS NULL
		`, entry.ID, exitedAt)
		if err != nil {
			return err
		}
		if result.RowsAffected() == 0 {
			return domain.ErrConflict
		}
		return r.insertGateOutbox(ctx, tx, "gate.exited", ticket, entry, stationID, exitedAt)
	})
}

func (r *Repository) insertGateOutbox(ctx context.Context, tx pgx.Tx, eventType string, ticket *domain.Ticket, entry *domain.TicketEntry, stationID string, at time.Time) error {
	payload, err := json.Marshal(map[string]interface{}{
		"ticket_id":  ticket.ID,
		"event_id":   ticket.EventID,
		"user_id":    ticket.UserID,
		"entry_id":   entry.ID,
		"station_id": stationID,
		"at":         at.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}
	return r.InsertOutbox(ctx, tx, OutboxRecord{
		ID:            uuid.New(),
		AggregateType: "ticket",
		AggregateID:   ticket.ID,
		EventType:     eventType,
		Payload:       payload,
		DedupeKey:     eventType + ":" + entry.ID.String(),
	})
}
