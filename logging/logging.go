package logging

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// teeWriter is a thread-safe writer that can buffer output and later
// flush it to a live destination (the TUI log pane). It can also tee
// everything to a log file.
type teeWriter struct {
	mu        sync.Mutex
	buf       *bytes.Buffer
	live      io.Writer
	file      *os.File
	buffering bool
}

func (w *teeWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var firstErr error

	// While buffering, records accumulate until SetOutput provides the
	// live destination. bytes.Buffer.Write never fails.
	if w.buffering {
		w.buf.Write(p)
	} else if w.live != nil {
		if _, err := w.live.Write(p); err != nil {
			firstErr = err
		}
	}

	// The file sink is independent of the buffering state.
	if w.file != nil {
		if _, err := w.file.Write(p); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return len(p), firstErr
}

var (
	defaultLogger *slog.Logger
	writer        *teeWriter
)

// Init initializes the logging system. With bufferOutput set, records
// are held back until SetOutput is called (the TUI platform does this
// once its log pane exists). An empty filePath disables file logging.
func Init(bufferOutput bool, levelStr, formatStr, filePath string) error {
	writer = &teeWriter{
		buf:       &bytes.Buffer{},
		buffering: bufferOutput,
	}

	if filePath != "" {
		file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err != nil {
			return err
		}
		writer.file = file
	}

	opts := &slog.HandlerOptions{
		Level: parseLevel(levelStr),
	}

	var handler slog.Handler
	if strings.ToLower(formatStr) == "json" {
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		handler = slog.NewTextHandler(writer, opts)
	}

	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)

	return nil
}

func parseLevel(levelStr string) slog.Level {
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Writer returns the shared log sink. The HTTP access log writes its
// lines here so they end up in the same pane/file as everything else.
func Writer() io.Writer {
	return writer
}

// SetOutput flushes the buffer to the new destination and starts live
// logging.
func SetOutput(newTarget io.Writer) error {
	writer.mu.Lock()
	defer writer.mu.Unlock()

	if writer.buf.Len() > 0 {
		if _, err := newTarget.Write(writer.buf.Bytes()); err != nil {
			return err
		}
		writer.buf.Reset()
	}

	writer.live = newTarget
	writer.buffering = false
	return nil
}

// BufferOutput stops live logging and starts buffering again (used
// while the TUI is being torn down for a reload).
func BufferOutput() {
	writer.mu.Lock()
	defer writer.mu.Unlock()

	writer.live = nil
	writer.buffering = true
}

// Close flushes any remaining buffered records and closes resources.
func Close() error {
	writer.mu.Lock()
	defer writer.mu.Unlock()

	var firstErr error

	if writer.file != nil {
		if writer.buf.Len() > 0 {
			if _, err := writer.file.Write(writer.buf.Bytes()); err != nil {
				firstErr = err
			}
		}
		if err := writer.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	} else if writer.live == nil {
		// No file and no live target: flush to stderr as a last
		// resort so shutdown messages are not lost.
		if writer.buf.Len() > 0 {
			if _, err := os.Stderr.Write(writer.buf.Bytes()); err != nil {
				firstErr = err
			}
		}
	}

	writer.buf.Reset()
	return firstErr
}
