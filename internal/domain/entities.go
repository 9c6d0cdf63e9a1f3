package domain

import (
	"time"

	"github.com/google/uuid"
)

// TicketStatus is an administrative flag. The gate never writes it; the
// authoritative inside/outside signal is the open entry record (see TicketEntry).
type TicketStatus string

const (
	TicketValid   TicketStatus = "valid"
	TicketUsed    TicketStatus = "used"
	TicketInvalid TicketStatus = "invalid"
)

type Event struct {
	ID        uuid.UUID
	Title     string
	StartsAt  time.Time
	Location  string
	Capacity  int
	Attending int
}

type Registration struct {
	ID           uuid.UUID
	EventID      uuid.UUID
	UserID       uuid.UUID
	RegisteredAt time.Time
}

// Ticket pairs one attendee with one event. The code embeds both identifiers so
// a gate can recover them without a prior lookup.
type Ticket struct {
	ID        uuid.UUID
	EventID   uuid.UUID
	UserID    uuid.UUID
	Code      string
	Status    TicketStatus
	CreatedAt time.Time
}

// TicketEntry is one physical pass through a gate. ExitedAt stays nil while the
// attendee is inside the venue; at most one entry per ticket may be open.
type TicketEntry struct {
	ID        uuid.UUID
	TicketID  uuid.UUID
	EnteredAt time.Time
	ExitedAt  *time.Time
}

func (e TicketEntry) Open() bool {
	return e.ExitedAt == nil
}
