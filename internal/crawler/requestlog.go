package crawler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/zx197009220/findApi/pkg/types"
)

// RequestLog writes one line per completed fetch:
// "status / depth / origin: url". One log is shared by every run of an engine.
type RequestLog struct {
	logger *slog.Logger
	closer io.Closer
}

// NewRequestLog appends to path and, when console is set, mirrors to stderr.
// An empty path with console unset yields a log that discards everything.
func NewRequestLog(path string, console bool) (*RequestLog, error) {
	var writers []io.Writer
	var closer io.Closer
	if path != "" {
		fh, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open request log: %w", err)
		}
		closer = fh
		writers = append(writers, fh)
	}
	if console {
		writers = append(writers, os.Stderr)
	}
	return NewRequestLogWriter(io.MultiWriter(writers...), closer), nil
}

// NewRequestLogWriter logs to w. closer, when non-nil, is closed by Close.
func NewRequestLogWriter(w io.Writer, closer io.Closer) *RequestLog {
	return &RequestLog{logger: slog.New(&lineHandler{w: w, mu: &sync.Mutex{}}), closer: closer}
}

const requestLogTimeFormat = "2006-01-02 15:04:05,000"

// lineHandler writes "<time> <message>" and drops level and attributes.
type lineHandler struct {
	w  io.Writer
	mu *sync.Mutex
}

func (h *lineHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *lineHandler) Handle(_ context.Context, rec slog.Record) error {
	line := rec.Time.Format(requestLogTimeFormat) + " " + rec.Message + "\n"
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, line)
	return err
}

func (h *lineHandler) WithAttrs([]slog.Attr) slog.Handler { return h }

func (h *lineHandler) WithGroup(string) slog.Handler { return h }

// Success records a fetch that produced a response.
func (l *RequestLog) Success(ev types.FetchSuccess) {
	if l == nil {
		return
	}
	l.logger.Info(fmt.Sprintf("%d / %s / %s: %s", ev.Status, ev.Depth, ev.Origin, ev.URL))
}

// Failure records a fetch that ended in an error.
func (l *RequestLog) Failure(ev types.FetchError) {
	if l == nil {
		return
	}
	l.logger.Info(fmt.Sprintf("%s / %s / %s: %s", ev.Kind, ev.Depth, ev.Origin, ev.URL))
}

// Close closes the underlying file, if any.
func (l *RequestLog) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
