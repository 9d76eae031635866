package dashboard

import (
	"bytes"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"

	"github.com/kothawaleganesh/signalr-stock-demo/pkg/models"
)

const clearScreen = "\033[H\033[2J"

// Terminal redraws the dashboard on w. On an interactive terminal the
// screen is cleared first so the list updates in place; otherwise each
// frame is appended.
type Terminal struct {
	w      io.Writer
	clear  bool
	logger *zap.Logger
	mu     sync.Mutex
}

func NewTerminal(w io.Writer, logger *zap.Logger) *Terminal {
	clear := false
	if f, ok := w.(*os.File); ok {
		clear = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Terminal{w: w, clear: clear, logger: logger}
}

// Draw is a Renderer.
func (t *Terminal) Draw(prices models.PriceMap) {
	var frame bytes.Buffer
	if t.clear {
		frame.WriteString(clearScreen)
	}
	if err := Render(&frame, prices); err != nil {
		t.logger.Error("Render failed", zap.Error(err))
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.w.Write(frame.Bytes()); err != nil {
		t.logger.Warn("Write to terminal failed", zap.Error(err))
	}
}
