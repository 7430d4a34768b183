package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// spinnerFrames cycle through a braille dot animation.
var spinnerFrames = [...]string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// spinner animates a message on stderr while a long operation runs.
// It stops at most once, and also stops when ctx is cancelled so an
// interrupted command leaves a clean line behind.
type spinner struct {
	message string
	quit    context.CancelFunc
	idle    chan struct{}
	once    sync.Once
}

// startSpinner begins animating message until stop or ctx cancellation.
func startSpinner(ctx context.Context, message string) *spinner {
	ctx, quit := context.WithCancel(ctx)
	s := &spinner{message: message, quit: quit, idle: make(chan struct{})}
	go s.animate(ctx)
	return s
}

func (s *spinner) animate(ctx context.Context) {
	defer close(s.idle)
	ticker := time.NewTicker(90 * time.Millisecond)
	defer ticker.Stop()

	for frame := 0; ; frame++ {
		select {
		case <-ctx.Done():
			fmt.Fprintf(os.Stderr, "\r%s\r", strings.Repeat(" ", len(s.message)+2))
			return
		case <-ticker.C:
			dot := spinnerFrames[frame%len(spinnerFrames)]
			fmt.Fprintf(os.Stderr, "\r%s %s", styleIconSpinner.Render(dot), StyleDim.Render(s.message))
		}
	}
}

// stop halts the animation and clears the line. Safe to call more than
// once.
func (s *spinner) stop() {
	s.once.Do(func() {
		s.quit()
		<-s.idle
	})
}

// fail stops the animation and prints message as an error.
func (s *spinner) fail(message string) {
	s.stop()
	printError("%s", message)
}
