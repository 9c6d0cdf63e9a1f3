package gate_test

import (
	"sync"
	"testing"
	"time"

	"github.com/whereabout/gate-ticketing/internal/domain"
	"github.com/whereabout/gate-ticketing/internal/gate"
)

type recordingPresenter struct {
	mu      sync.Mutex
	tones   []gate.Tone
	flashes []gate.FlashColor
	shown   []gate.Signal
	clears  int
}

func (p *recordingPresenter) Play(t gate.Tone) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tones = append(p.tones, t)
}

func (p *recordingPresenter) Flash(c gate.FlashColor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flashes = append(p.flashes, c)
}

func (p *recordingPresenter) Show(s gate.Signal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shown = append(p.shown, s)
}

func (p *recordingPresenter) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clears++
}

func (p *recordingPresenter) snapshot() (tones []gate.Tone, flashes []gate.FlashColor, shown []gate.Signal, clears int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]gate.Tone{}, p.tones...), append([]gate.FlashColor{}, p.flashes...), append([]gate.Signal{}, p.shown...), p.clears
}

func TestSignalFor(t *testing.T) {
	now := time.Now()

	entered := gate.SignalFor(domain.EnteredOutcome(&domain.Ticket{}, &domain.TicketEntry{}, "Open Mic Night", now))
	if entered.Flash != gate.FlashGreen {
		t.Fatalf("entered flash %q", entered.Flash)
	}
	if entered.Tone.FrequencyHz != 900 || entered.Tone.Duration != 150*time.Millisecond {
		t.Fatalf("entered tone %+v", entered.Tone)
	}
	if entered.EventTitle != "Open Mic Night" || entered.Message != "Entry confirmed" {
		t.Fatalf("entered text %+v", entered)
	}

	exited := gate.SignalFor(domain.ExitedOutcome(&domain.Ticket{}, &domain.TicketEntry{}, "", now))
	if exited.Flash != gate.FlashBlue || exited.Tone.FrequencyHz != 900 {
		t.Fatalf("exited signal %+v", exited)
	}

	rejected := gate.SignalFor(domain.RejectedOutcome("Invalid QR format", now))
	if rejected.Flash != gate.FlashRed {
		t.Fatalf("rejected flash %q", rejected.Flash)
	}
	if rejected.Tone.FrequencyHz != 300 || rejected.Tone.Duration != 200*time.Millisecond {
		t.Fatalf("rejected tone %+v", rejected.Tone)
	}
}

func TestAnnounceAndAutoDismiss(t *testing.T) {
	p := &recordingPresenter{}
	c := gate.NewFeedbackController(p, 30*time.Millisecond)

	c.Announce(domain.EnteredOutcome(&domain.Ticket{}, &domain.TicketEntry{}, "Career Expo", time.Now()))

	tones, flashes, shown, clears := p.snapshot()
	if len(tones) != 1 || len(flashes) != 1 || len(shown) != 1 {
		t.Fatalf("announce did not reach presenter: %d/%d/%d", len(tones), len(flashes), len(shown))
	}
	if clears != 0 {
		t.Fatal("dismissed before the delay")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		_, _, _, clears = p.snapshot()
		if clears == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("panel never dismissed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestAnnounceReplacesPendingDismissal(t *testing.T) {
	p := &recordingPresenter{}
	c := gate.NewFeedbackController(p, 300*time.Millisecond)

	c.Announce(domain.RejectedOutcome("Invalid QR format", time.Now()))
	time.Sleep(100 * time.Millisecond)
	c.Announce(domain.EnteredOutcome(&domain.Ticket{}, &domain.TicketEntry{}, "", time.Now()))
	time.Sleep(250 * time.Millisecond)

	// The first announce's timer would have fired by now had the second
	// announce not replaced it; only the replacement may clear, later.
	_, _, _, clears := p.snapshot()
	if clears != 0 {
		t.Fatalf("stale dismissal fired: %d clears", clears)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		_, _, _, clears = p.snapshot()
		if clears >= 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("replacement dismissal never fired")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
