// Package issuance guarantees exactly one ticket row per (event, attendee).
// Tickets are created lazily the first time a ticket view asks for them;
// registration itself is validated upstream.
package issuance

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/sync/errgroup"

	"github.com/whereabout/gate-ticketing/internal/domain"
	"github.com/whereabout/gate-ticketing/internal/observability"
	"github.com/whereabout/gate-ticketing/internal/ticketcode"
)

// QR images match what attendees saw in the ticket view: level-H error
// correction at 500px.
const qrImageSize = 500

type Store interface {
	GetTicket(ctx context.Context, eventID, userID uuid.UUID) (*domain.Ticket, error)
	GetTicketByID(ctx context.Context, id uuid.UUID) (*domain.Ticket, error)
	InsertTicket(ctx context.Context, t domain.Ticket) (created bool, err error)
	ListRegistrations(ctx context.Context, userID uuid.UUID) ([]domain.Registration, error)
}

// Locker serializes issuance per (event, attendee) across processes. It is an
// optimization on top of the store's uniqueness guarantee, not a requirement.
type Locker interface {
	AcquireIssueLock(ctx context.Context, eventID, userID string, ttl time.Duration) (bool, error)
	ReleaseIssueLock(ctx context.Context, eventID, userID string) error
}

type Service struct {
	store   Store
	locks   Locker
	logger  observability.Logger
	lockTTL time.Duration
	now     func() time.Time
}

func NewService(store Store, locks Locker, logger observability.Logger) *Service {
	return &Service{
		store:   store,
		locks:   locks,
		logger:  logger,
		lockTTL: 10 * time.Second,
		now:     time.Now,
	}
}

// GetOrCreate returns the ticket for (event, attendee), creating it on first
// access. Two near-simultaneous calls for the same pair converge on one row:
// the insert is conflict-aware and the loser re-fetches the winner.
func (s *Service) GetOrCreate(ctx context.Context, eventID, attendeeID uuid.UUID) (*domain.Ticket, error) {
	t, err := s.store.GetTicket(ctx, eventID, attendeeID)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, errors.Mark(err, domain.ErrUpstreamUnavailable)
	}

	if s.locks != nil {
		ok, lockErr := s.locks.AcquireIssueLock(ctx, eventID.String(), attendeeID.String(), s.lockTTL)
		if lockErr != nil {
			s.logger.WithError(lockErr).Warn("issue lock unavailable, relying on store dedupe")
		} else if ok {
			defer s.locks.ReleaseIssueLock(ctx, eventID.String(), attendeeID.String())
		}
	}

	ticket := domain.Ticket{
		ID:        uuid.New(),
		EventID:   eventID,
		UserID:    attendeeID,
		Code:      ticketcode.Encode(eventID, attendeeID),
		Status:    domain.TicketValid,
		CreatedAt: s.now(),
	}

	created, err := s.store.InsertTicket(ctx, ticket)
	if err != nil {
		return nil, errors.Mark(err, domain.ErrUpstreamUnavailable)
	}
	if !created {
		observability.IssuanceConflicts.Inc()
		t, err := s.store.GetTicket(ctx, eventID, attendeeID)
		if err != nil {
			return nil, errors.Mark(err, domain.ErrUpstreamUnavailable)
		}
		return t, nil
	}

	observability.TicketsIssued.Inc()
	return &ticket, nil
}

// TicketsForAttendee walks the attendee's confirmed registrations and lazily
// issues any ticket that does not exist yet, returning the full set.
func (s *Service) TicketsForAttendee(ctx context.Context, attendeeID uuid.UUID) ([]*domain.Ticket, error) {
	regs, err := s.store.ListRegistrations(ctx, attendeeID)
	if err != nil {
		return nil, errors.Mark(err, domain.ErrUpstreamUnavailable)
	}

	tickets := make([]*domain.Ticket, len(regs))
	g, gctx := errgroup.WithContext(ctx)
	for i, reg := range regs {
		i, reg := i, reg
		g.Go(func() error {
			t, err := s.GetOrCreate(gctx, reg.EventID, reg.UserID)
			if err != nil {
				return err
			}
			tickets[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tickets, nil
}

func (s *Service) TicketByID(ctx context.Context, id uuid.UUID) (*domain.Ticket, error) {
	return s.store.GetTicketByID(ctx, id)
}

// QRImage renders the ticket's code as a PNG for display, download and share.
func (s *Service) QRImage(t *domain.Ticket) ([]byte, error) {
	return qrcode.Encode(t.Code, qrcode.Highest, qrImageSize)
}
