package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/whereabout/gate-ticketing/internal/adapters/crdb"
	redisadapter "github.com/whereabout/gate-ticketing/internal/adapters/redis"
	"github.com/whereabout/gate-ticketing/internal/domain"
	"github.com/whereabout/gate-ticketing/internal/gate"
	"github.com/whereabout/gate-ticketing/internal/issuance"
)

type Handlers struct {
	repo    *crdb.Repository
	issuer  *issuance.Service
	machine *gate.Machine
	idemp   *redisadapter.Idempotency
}

func NewHandlers(repo *crdb.Repository, issuer *issuance.Service, machine *gate.Machine, idemp *redisadapter.Idempotency) *Handlers {
	return &Handlers{
		repo:    repo,
		issuer:  issuer,
		machine: machine,
		idemp:   idemp,
	}
}

type ticketResponse struct {
	ID      uuid.UUID `json:"id"`
	EventID uuid.UUID `json:"event_id"`
	UserID  uuid.UUID `json:"user_id"`
	Code    string    `json:"code"`
	Status  string    `json:"status"`
}

func toTicketResponse(t *domain.Ticket) ticketResponse {
	return ticketResponse{
		ID:      t.ID,
		EventID: t.EventID,
		UserID:  t.UserID,
		Code:    t.Code,
		Status:  string(t.Status),
	}
}

// TicketsForAttendee returns every ticket the attendee holds, lazily issuing
// any that a confirmed registration has not yet materialized.
func (h *Handlers) TicketsForAttendee(w http.ResponseWriter, r *http.Request) {
	attendeeID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid attendee id", http.StatusBadRequest)
		return
	}

	tickets, err := h.issuer.TicketsForAttendee(r.Context(), attendeeID)
	if err != nil {
		loggerFrom(r.Context()).WithError(err).Error("ticket listing failed")
		if errors.Is(err, domain.ErrUpstreamUnavailable) {
			http.Error(w, "store unavailable, retry", http.StatusServiceUnavailable)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := make([]ticketResponse, 0, len(tickets))
	for _, t := range tickets {
		resp = append(resp, toTicketResponse(t))
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (h *Handlers) CreateTicket(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("Idempotency-Key")
	if cached, err := h.idemp.Get(r.Context(), key); err == nil && cached != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(cached.Status)
		w.Write(cached.Body)
		return
	}

	var req struct {
		EventID uuid.UUID `json:"event_id"`
		UserID  uuid.UUID `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Issuance assumes a confirmed registration; the API is the upstream
	// that enforces it.
	registered, err := h.repo.HasRegistration(r.Context(), req.EventID, req.UserID)
	if err != nil {
		http.Error(w, "store unavailable, retry", http.StatusServiceUnavailable)
		return
	}
	if !registered {
		http.Error(w, "no confirmed registration for this event", http.StatusUnprocessableEntity)
		return
	}

	ticket, err := h.issuer.GetOrCreate(r.Context(), req.EventID, req.UserID)
	if err != nil {
		loggerFrom(r.Context()).WithError(err).Error("ticket issuance failed")
		if errors.Is(err, domain.ErrUpstreamUnavailable) {
			http.Error(w, "store unavailable, retry", http.StatusServiceUnavailable)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	data, _ := json.Marshal(toTicketResponse(ticket))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	w.Write(data)

	h.idemp.Set(r.Context(), key, redisadapter.CachedResponse{Status: http.StatusCreated, Body: data})
}

func (h *Handlers) TicketQR(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid ticket id", http.StatusBadRequest)
		return
	}

	ticket, err := h.issuer.TicketByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "ticket not found", http.StatusNotFound)
			return
		}
		http.Error(w, "store unavailable, retry", http.StatusServiceUnavailable)
		return
	}

	png, err := h.issuer.QRImage(ticket)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

type scanResponse struct {
	TicketStatus string    `json:"ticket_status"`
	EntryStatus  string    `json:"entry_status"`
	EventTitle   string    `json:"event_title,omitempty"`
	Message      string    `json:"message"`
	Timestamp    time.Time `json:"timestamp"`
}

// GateScan processes one scanned payload. Rejections are normal outcomes and
// still return 200: the station renders whatever the machine decided.
func (h *Handlers) GateScan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code      string `json:"code"`
		StationID string `json:"station_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Code == "" {
		http.Error(w, "missing code", http.StatusBadRequest)
		return
	}

	outcome := h.machine.ProcessScan(r.Context(), req.Code, req.StationID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(scanResponse{
		TicketStatus: string(outcome.TicketStatus),
		EntryStatus:  string(outcome.Result),
		EventTitle:   outcome.EventTitle,
		Message:      outcome.Message,
		Timestamp:    outcome.At,
	})
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}
