package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/southflowpeak/pin/pkg/types"
)

// Sink receives frames as they are captured. Delivery is best-effort:
// a sink that can't keep up drops frames rather than blocking capture.
type Sink interface {
	Deliver(types.FrameBuffer)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(types.FrameBuffer)

func (f SinkFunc) Deliver(fb types.FrameBuffer) { f(fb) }

// Session is a single continuously-ticked capture of one window handle.
// Stop is synchronous from the caller's point of view but teardown of
// the in-flight tick happens in the session's own goroutine, so a frame
// already mid-capture when Stop is called is allowed to finish and is
// simply not delivered — avoiding a capture racing a closed sink.
type Session struct {
	handle uintptr
	sink   Sink
	logger *zap.Logger

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	resizeCh  chan time.Duration
	capturing bool
	captureError bool

	fps float64
}

// NewSession creates a capture session for handle. The session is idle
// until Start is called.
func NewSession(handle uintptr, sink Sink, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{handle: handle, sink: sink, logger: logger, fps: 60}
}

// Capturing reports whether the capture loop is currently running.
func (s *Session) Capturing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capturing
}

// CaptureError reports whether the most recent capture tick failed.
func (s *Session) CaptureError() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.captureError
}

// Start begins the capture loop at the given frame rate and returns
// immediately; the first frame is attempted on the loop's goroutine.
func (s *Session) Start(ctx context.Context, cfg types.CaptureConfiguration) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return fmt.Errorf("capture session already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.resizeCh = make(chan time.Duration, 1)
	if cfg.MinFrameInterval > 0 {
		s.fps = 1.0 / cfg.MinFrameInterval
	}
	s.captureError = false
	s.capturing = true
	s.mu.Unlock()

	interval := time.Duration(cfg.MinFrameInterval * float64(time.Second))
	if interval <= 0 {
		interval = time.Second / 60
	}

	go s.run(runCtx, interval)
	return nil
}

// Resize recomputes the ticker interval for a changed display's frame
// rate. The captured width/height aren't tracked as separate state:
// captureOnce reads the target's live client rect every tick, so a
// geometry change from the overlay's polling is already picked up by
// the next tick; Resize's only job is adjusting the capture cadence to
// the screen now containing the target. Resize has no failure path and
// never tears the session down.
func (s *Session) Resize(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	interval := time.Second / time.Duration(fps)

	s.mu.Lock()
	s.fps = fps
	resizeCh := s.resizeCh
	s.mu.Unlock()

	if resizeCh == nil {
		return
	}
	select {
	case resizeCh <- interval:
	default:
	}
}

// Stop cancels the capture loop and blocks until the goroutine has
// exited.
func (s *Session) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	s.mu.Lock()
	s.cancel = nil
	s.done = nil
	s.resizeCh = nil
	s.capturing = false
	s.mu.Unlock()
}

func (s *Session) run(ctx context.Context, interval time.Duration) {
	defer close(s.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.captureOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case newInterval := <-s.resizeCh:
			ticker.Reset(newInterval)
		case <-ticker.C:
			s.captureOnce(ctx)
		}
	}
}

func (s *Session) captureOnce(ctx context.Context) {
	width, height := clientSize(s.handle)
	if width <= 0 || height <= 0 {
		return
	}

	var frame *types.FrameBuffer
	var err error
	if isMinimized(s.handle) {
		frame, err = capturePrintWindow(s.handle, width, height)
	} else {
		frame, err = captureBitBlt(s.handle, width, height)
		if err != nil {
			frame, err = capturePrintWindow(s.handle, width, height)
		}
	}
	if err != nil {
		s.logger.Debug("capture tick failed", zap.Uintptr("handle", s.handle), zap.Error(err))
		s.mu.Lock()
		s.captureError = true
		s.mu.Unlock()
		return
	}

	select {
	case <-ctx.Done():
		return
	default:
	}

	s.mu.Lock()
	s.captureError = false
	s.mu.Unlock()
	if s.sink != nil {
		s.sink.Deliver(*frame)
	}
}
