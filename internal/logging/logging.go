// Package logging configures the process logger. Transaction and security
// events are written synchronously so they are durable before the business
// operation reports success.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/finedge/corebank/internal/config"
)

// rotatingWriter appends to a single log file and rotates it once it would
// exceed maxBytes. Writes are serialised.
type rotatingWriter struct {
	mu       sync.Mutex
	dir      string
	maxBytes int64
	file     *os.File
	size     int64
}

func newRotatingWriter(dir string, maxBytes int64) (*rotatingWriter, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	w := &rotatingWriter{dir: dir, maxBytes: maxBytes}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *rotatingWriter) open() error {
	path := filepath.Join(w.dir, "corebank.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	w.file = f
	w.size = info.Size()
	return nil
}

func (w *rotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.maxBytes > 0 && w.size+int64(len(p)) > w.maxBytes {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *rotatingWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return err
	}
	current := filepath.Join(w.dir, "corebank.log")
	archived := filepath.Join(w.dir, "corebank-"+time.Now().Format("20060102T150405")+".log")
	if err := os.Rename(current, archived); err != nil {
		return err
	}
	return w.open()
}

func (w *rotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

// New builds the process logger from configuration. The returned closer
// flushes and releases the log file.
func New(cfg *config.Config) (zerolog.Logger, io.Closer, error) {
	level, err := zerolog.ParseLevel(cfg.LogMinLevel)
	if err != nil {
		return zerolog.Logger{}, nil, fmt.Errorf("unsupported log level %q: %w", cfg.LogMinLevel, err)
	}

	fw, err := newRotatingWriter(cfg.LogDirectory, cfg.LogMaxFileBytes)
	if err != nil {
		return zerolog.Logger{}, nil, err
	}

	out := zerolog.MultiLevelWriter(os.Stdout, fw)
	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()
	return logger, fw, nil
}
