// Package gate holds the scanning-station logic: the QR capture loop, the
// entry/exit state machine and the feedback mapping.
package gate

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/whereabout/gate-ticketing/internal/domain"
	"github.com/whereabout/gate-ticketing/internal/observability"
	"github.com/whereabout/gate-ticketing/internal/ticketcode"
)

// TicketStore is the slice of the data store the gate machine needs.
type TicketStore interface {
	GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error)
	GetTicket(ctx context.Context, eventID, userID uuid.UUID) (*domain.Ticket, error)
	LatestEntry(ctx context.Context, ticketID uuid.UUID) (*domain.TicketEntry, error)
	RecordEntry(ctx context.Context, ticket *domain.Ticket, entry *domain.TicketEntry, stationID string) error
	RecordExit(ctx context.Context, ticket *domain.Ticket, entry *domain.TicketEntry, exitedAt time.Time, stationID string) error
}

// AuditSink records every processed scan off the ticket store.
type AuditSink interface {
	RecordScan(ctx context.Context, stationID, code string, outcome domain.ScanOutcome) error
}

// Machine decides entry vs exit for a decoded payload and records the
// transition. It is a strict toggle: any valid ticket scanned while outside
// enters, any valid ticket scanned while inside exits. No capacity or time
// window checks happen here.
type Machine struct {
	store  TicketStore
	audit  AuditSink
	logger observability.Logger
	now    func() time.Time
}

func NewMachine(store TicketStore, audit AuditSink, logger observability.Logger) *Machine {
	return &Machine{store: store, audit: audit, logger: logger, now: time.Now}
}

// ProcessScan validates a raw payload and toggles the attendee's entry/exit
// state. Rejections perform zero ticket-store writes; a successful scan
// performs exactly one (an entry insert or an in-place exit update).
func (m *Machine) ProcessScan(ctx context.Context, raw, stationID string) domain.ScanOutcome {
	started := m.now()
	outcome := m.process(ctx, raw, stationID)
	observability.ScansTotal.WithLabelValues(string(outcome.Result)).Inc()
	observability.ScanDuration.Observe(time.Since(started).Seconds())

	if m.audit != nil {
		// Best effort: a lost audit document never fails the scan.
		if err := m.audit.RecordScan(ctx, stationID, raw, outcome); err != nil {
			m.logger.WithError(err).Warn("scan audit dropped")
		}
	}
	return outcome
}

func (m *Machine) process(ctx context.Context, raw, stationID string) domain.ScanOutcome {
	eventID, attendeeID, err := ticketcode.Decode(raw)
	if err != nil {
		return domain.RejectedOutcome("Invalid QR format", m.now())
	}

	ticket, err := m.store.GetTicket(ctx, eventID, attendeeID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			m.logger.WithError(err).Error("ticket lookup failed")
			return domain.RejectedOutcome("Scan failed, try again", m.now())
		}
		return domain.RejectedOutcome("Invalid or used ticket", m.now())
	}
	if ticket.Status != domain.TicketValid {
		return domain.RejectedOutcome("Invalid or used ticket", m.now())
	}

	title := m.eventTitle(ctx, eventID)

	latest, err := m.store.LatestEntry(ctx, ticket.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		m.logger.WithError(err).Error("entry lookup failed")
		return domain.RejectedOutcome("Scan failed, try again", m.now())
	}

	if latest != nil && latest.Open() {
		return m.recordExit(ctx, ticket, latest, title, stationID)
	}
	return m.recordEntry(ctx, ticket, title, stationID)
}

func (m *Machine) recordEntry(ctx context.Context, ticket *domain.Ticket, title, stationID string) domain.ScanOutcome {
	now := m.now()
	entry := &domain.TicketEntry{
		ID:        uuid.New(),
		TicketID:  ticket.ID,
		EnteredAt: now,
	}
	if err := m.store.RecordEntry(ctx, ticket, entry, stationID); err != nil {
		m.logger.WithError(err).Error("entry write failed")
		return domain.RejectedOutcome("Scan failed, try again", now)
	}
	return domain.EnteredOutcome(ticket, entry, title, now)
}

func (m *Machine) recordExit(ctx context.Context, ticket *domain.Ticket, entry *domain.TicketEntry, title, stationID string) domain.ScanOutcome {
	now := m.now()
	if err := m.store.RecordExit(ctx, ticket, entry, now, stationID); err != nil {
		m.logger.WithError(err).Error("exit write failed")
		return domain.RejectedOutcome("Scan failed, try again", now)
	}
	closed := *entry
	closed.ExitedAt = &now
	return domain.ExitedOutcome(ticket, &closed, title, now)
}

// eventTitle is display-only; a failed lookup leaves the title empty rather
// than failing the scan.
func (m *Machine) eventTitle(ctx context.Context, eventID uuid.UUID) string {
	ev, err := m.store.GetEvent(ctx, eventID)
	if err != nil {
		return ""
	}
	return ev.Title
}
