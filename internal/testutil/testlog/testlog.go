package testlog

import (
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

// New returns a debug logger that writes through t.Log and goes quiet once
// the test is over, so late lines from background goroutines are dropped.
func New(t testing.TB) *zerolog.Logger {
	t.Helper()
	w := &writer{t: t}
	t.Cleanup(w.stop)
	logger := zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: true, PartsExclude: []string{zerolog.TimestampFieldName}}).
		Level(zerolog.DebugLevel).
		With().Str("test", t.Name()).Logger()
	return &logger
}

type writer struct {
	mu   sync.Mutex
	t    testing.TB
	done bool
}

func (w *writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.done {
		w.t.Log(strings.TrimRight(string(p), "\n"))
	}
	return len(p), nil
}

func (w *writer) stop() {
	w.mu.Lock()
	w.done = true
	w.mu.Unlock()
}
