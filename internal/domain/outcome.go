package domain

import "time"

// ScanResult tags a ScanOutcome. Handlers switch on it exhaustively.
type ScanResult string

const (
	ScanEntered  ScanResult = "entered"
	ScanExited   ScanResult = "exited"
	ScanRejected ScanResult = "error"
)

// ScanOutcome is the result of processing one decoded gate payload. Ticket and
// Entry are nil on rejections; Entry is the record written on success.
type ScanOutcome struct {
	TicketStatus TicketStatus
	Result       ScanResult
	Ticket       *Ticket
	Entry        *TicketEntry
	EventTitle   string
	Message      string
	At           time.Time
}

func EnteredOutcome(t *Ticket, entry *TicketEntry, title string, at time.Time) ScanOutcome {
	return ScanOutcome{
		TicketStatus: TicketValid,
		Result:       ScanEntered,
		Ticket:       t,
		Entry:        entry,
		EventTitle:   title,
		Message:      "Entry confirmed",
		At:           at,
	}
}

func ExitedOutcome(t *Ticket, entry *TicketEntry, title string, at time.Time) ScanOutcome {
	return ScanOutcome{
		TicketStatus: TicketValid,
		Result:       ScanExited,
		Ticket:       t,
		Entry:        entry,
		EventTitle:   title,
		Message:      "Exit confirmed",
		At:           at,
	}
}

func RejectedOutcome(message string, at time.Time) ScanOutcome {
	return ScanOutcome{
		TicketStatus: TicketInvalid,
		Result:       ScanRejected,
		Message:      message,
		At:           at,
	}
}

func (o ScanOutcome) Accepted() bool {
	return o.Result != ScanRejected
}
