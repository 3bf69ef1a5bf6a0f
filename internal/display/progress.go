package display

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// spinnerFrames is the animation cycle of a running spinner.
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const spinnerInterval = 120 * time.Millisecond

// Spinner animates a status line for an operation that produces no
// intermediate output, such as downloading an artifact or applying a
// dump. In quiet mode it renders nothing at all.
type Spinner struct {
	message string
	writer  io.Writer
	colors  ColorSystem
	enabled bool

	active bool
	stopCh chan struct{}
	doneCh chan struct{}
	mu     sync.Mutex
}

// NewSpinner creates a spinner writing through the display service.
func NewSpinner(out Service, message string) *Spinner {
	config := out.Config()
	return &Spinner{
		message: message,
		writer:  out.Writer(),
		colors:  NewColorSystem(GetThemeByName(config.Theme), config.IsColorEnabled()),
		enabled: !config.QuietMode,
	}
}

// Start begins the animation. Starting an active spinner does nothing.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled || s.active {
		return
	}
	s.active = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go s.animate(s.stopCh, s.doneCh)
}

// Update changes the message shown next to the animation.
func (s *Spinner) Update(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// Stop ends the animation, clears the line, and prints the final message
// when one is given. Stopping an inactive spinner only prints the message.
func (s *Spinner) Stop(finalMessage string) {
	s.mu.Lock()
	if s.active {
		s.active = false
		close(s.stopCh)
		done := s.doneCh
		s.mu.Unlock()
		<-done
		s.mu.Lock()
		s.clearLine()
	}
	defer s.mu.Unlock()

	if !s.enabled {
		return
	}
	if finalMessage != "" {
		fmt.Fprintln(s.writer, finalMessage)
	}
}

func (s *Spinner) animate(stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(spinnerInterval)
	defer ticker.Stop()

	frameIndex := 0
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			s.mu.Lock()
			frame := spinnerFrames[frameIndex%len(spinnerFrames)]
			if s.colors.IsColorSupported() {
				frame = s.colors.Colorize(frame, s.colors.Theme().Primary)
			}
			s.clearLine()
			fmt.Fprintf(s.writer, "%s %s", frame, s.message)
			s.mu.Unlock()

			frameIndex++
		}
	}
}

// clearLine wipes the current terminal line. Callers hold s.mu.
func (s *Spinner) clearLine() {
	fmt.Fprint(s.writer, "\r\033[K")
}
