package gate

import (
	"sync"
	"time"

	"github.com/whereabout/gate-ticketing/internal/domain"
)

// Tone is a short beep played at the station.
type Tone struct {
	FrequencyHz int
	Duration    time.Duration
}

var (
	toneAccept = Tone{FrequencyHz: 900, Duration: 150 * time.Millisecond}
	toneReject = Tone{FrequencyHz: 300, Duration: 200 * time.Millisecond}
)

type FlashColor string

const (
	FlashGreen FlashColor = "green"
	FlashBlue  FlashColor = "blue"
	FlashRed   FlashColor = "red"
)

// Signal is everything a station operator perceives for one scan.
type Signal struct {
	Tone       Tone
	Flash      FlashColor
	EventTitle string
	Message    string
	At         time.Time
}

// Presenter renders signals on whatever hardware the station has.
type Presenter interface {
	Play(Tone)
	Flash(FlashColor)
	Show(Signal)
	Clear()
}

// SignalFor maps a scan outcome to its operator feedback: distinct tones for
// accept/reject, green for entered, blue for exited, red for rejections.
func SignalFor(outcome domain.ScanOutcome) Signal {
	sig := Signal{
		EventTitle: outcome.EventTitle,
		Message:    outcome.Message,
		At:         outcome.At,
	}
	switch outcome.Result {
	case domain.ScanEntered:
		sig.Tone = toneAccept
		sig.Flash = FlashGreen
	case domain.ScanExited:
		sig.Tone = toneAccept
		sig.Flash = FlashBlue
	case domain.ScanRejected:
		sig.Tone = toneReject
		sig.Flash = FlashRed
	}
	return sig
}

// FeedbackController pushes signals at a presenter and auto-dismisses the
// display panel after a fixed delay. Purely presentational.
type FeedbackController struct {
	presenter    Presenter
	dismissAfter time.Duration

	mu      sync.Mutex
	pending *time.Timer
}

func NewFeedbackController(presenter Presenter, dismissAfter time.Duration) *FeedbackController {
	if dismissAfter <= 0 {
		dismissAfter = 3500 * time.Millisecond
	}
	return &FeedbackController{presenter: presenter, dismissAfter: dismissAfter}
}

// Announce shows the outcome and schedules its dismissal. A newer scan
// replaces the pending dismissal so the panel never clears a fresh result.
func (c *FeedbackController) Announce(outcome domain.ScanOutcome) {
	sig := SignalFor(outcome)
	c.presenter.Play(sig.Tone)
	c.presenter.Flash(sig.Flash)
	c.presenter.Show(sig)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil {
		c.pending.Stop()
	}
	c.pending = time.AfterFunc(c.dismissAfter, c.presenter.Clear)
}
