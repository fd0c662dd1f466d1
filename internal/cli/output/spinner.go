package output

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// DefaultSpinnerInterval is the frame interval of a Spinner.
const DefaultSpinnerInterval = 100 * time.Millisecond

// Spinner displays a progress animation.
type Spinner struct {
	w        io.Writer
	message  string
	frames   []string
	interval time.Duration

	mu      sync.Mutex
	started bool
	done    chan struct{}
	exited  chan struct{}
	once    sync.Once
}

// NewSpinner creates a new spinner.
func NewSpinner(w io.Writer, message string) *Spinner {
	return &Spinner{
		w:        w,
		message:  message,
		frames:   []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		interval: DefaultSpinnerInterval,
		done:     make(chan struct{}),
		exited:   make(chan struct{}),
	}
}

// Start starts the spinner animation. Calling Start twice has no effect.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	select {
	case <-s.done:
		return
	default:
	}
	s.started = true

	go func() {
		defer close(s.exited)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for i := 0; ; i++ {
			s.mu.Lock()
			fmt.Fprintf(s.w, "\r%s %s", s.frames[i%len(s.frames)], s.message)
			s.mu.Unlock()
			select {
			case <-s.done:
				return
			case <-ticker.C:
			}
		}
	}()
}

// stop ends the animation and writes final, once.
func (s *Spinner) stop(final string) {
	s.once.Do(func() {
		close(s.done)
		s.mu.Lock()
		started := s.started
		s.mu.Unlock()
		if started {
			<-s.exited
		}
		s.mu.Lock()
		fmt.Fprint(s.w, final)
		s.mu.Unlock()
	})
}

// Stop stops the spinner and clears the line.
func (s *Spinner) Stop() {
	s.stop("\r\033[K")
}

// Success stops the spinner with a success message.
func (s *Spinner) Success(message string) {
	s.stop(fmt.Sprintf("\r\033[K✓ %s\n", message))
}

// Fail stops the spinner with a failure message.
func (s *Spinner) Fail(message string) {
	s.stop(fmt.Sprintf("\r\033[K✗ %s\n", message))
}
