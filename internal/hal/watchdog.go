package hal

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Watchdog keeps a Linux watchdog device alive. Any write resets the
// hardware timer; writing 'V' before closing disarms it.
type Watchdog struct {
	w io.WriteCloser
}

// OpenWatchdog opens a watchdog device such as /dev/watchdog.
func OpenWatchdog(path string) (*Watchdog, error) {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open watchdog %s: %w", path, err)
	}
	return &Watchdog{w: f}, nil
}

// Kick resets the watchdog timer.
func (w *Watchdog) Kick() {
	if _, err := w.w.Write([]byte{0}); err != nil {
		log.Printf("watchdog kick error: %v", err)
	}
}

// Close disarms and closes the watchdog.
func (w *Watchdog) Close() error {
	if _, err := w.w.Write([]byte("V")); err != nil {
		w.w.Close()
		return fmt.Errorf("disarm watchdog: %w", err)
	}
	return w.w.Close()
}
