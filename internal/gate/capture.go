package gate

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/whereabout/gate-ticketing/internal/domain"
	"github.com/whereabout/gate-ticketing/internal/observability"
)

// State of one capture session. Stopped is terminal for the session; calling
// Start again begins a fresh one from Requesting.
type State int32

const (
	StateIdle State = iota
	StateRequesting
	StateScanning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateScanning:
		return "scanning"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// FrameSource is the camera collaborator. Open blocks until the device is
// ready (or denied), Frame returns the current still image.
type FrameSource interface {
	Open(ctx context.Context) error
	Frame(ctx context.Context) (image.Image, error)
	Close() error
}

// Detector extracts a QR payload from pixels. A miss is the normal
// nothing-found-this-frame outcome, not an error.
type Detector interface {
	Detect(img image.Image) (payload string, ok bool)
}

// CaptureLoop samples frames at a bounded rate and hands decoded payloads to a
// sink. The sink is invoked synchronously from the loop goroutine, so at most
// one validation is in flight per loop instance, and a payload equal to the
// previous one is suppressed for a cooldown window to avoid re-processing a
// still-visible code.
type CaptureLoop struct {
	source   FrameSource
	detector Detector
	sink     func(ctx context.Context, payload string)
	interval time.Duration
	cooldown time.Duration
	logger   observability.Logger

	state atomic.Int32

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewCaptureLoop(source FrameSource, detector Detector, sink func(ctx context.Context, payload string), interval, cooldown time.Duration, logger observability.Logger) *CaptureLoop {
	if interval <= 0 {
		interval = 33 * time.Millisecond
	}
	if cooldown <= 0 {
		cooldown = 1500 * time.Millisecond
	}
	return &CaptureLoop{
		source:   source,
		detector: detector,
		sink:     sink,
		interval: interval,
		cooldown: cooldown,
		logger:   logger,
	}
}

func (l *CaptureLoop) State() State {
	return State(l.state.Load())
}

// Start acquires the frame source and begins scanning in a background
// goroutine. It returns domain.ErrDeviceUnavailable when acquisition fails;
// in that case the session is already Stopped.
func (l *CaptureLoop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done != nil {
		return domain.ErrConflict
	}

	l.state.Store(int32(StateRequesting))
	runCtx, cancel := context.WithCancel(ctx)
	if err := l.source.Open(runCtx); err != nil {
		cancel()
		l.state.Store(int32(StateStopped))
		return errors.Mark(err, domain.ErrDeviceUnavailable)
	}

	done := make(chan struct{})
	l.cancel = cancel
	l.done = done
	l.state.Store(int32(StateScanning))

	go func() {
		defer close(done)
		defer l.state.Store(int32(StateStopped))
		defer l.source.Close()
		l.run(runCtx)
	}()
	return nil
}

// Stop ends the session. It returns only after the loop goroutine has exited
// and the frame source is released, so no frame processing continues once the
// caller observes Stopped. An in-flight sink call is allowed to finish.
func (l *CaptureLoop) Stop() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (l *CaptureLoop) run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	// Cancellation gates new frames only. A payload already handed to the
	// sink keeps a live context so its store write survives Stop.
	sinkCtx := context.WithoutCancel(ctx)

	var lastPayload string
	var lastDone time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		img, err := l.source.Frame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.logger.WithError(err).Debug("frame unavailable")
			continue
		}

		payload, ok := l.detector.Detect(img)
		if !ok {
			continue
		}
		if payload == lastPayload && time.Since(lastDone) < l.cooldown {
			continue
		}

		l.sink(sinkCtx, payload)
		lastPayload = payload
		// Cooldown counts from validation completion, not detection, so a
		// slow store round trip cannot let the same held-up code re-fire.
		lastDone = time.Now()
	}
}
