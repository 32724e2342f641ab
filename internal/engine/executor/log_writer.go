package executor

import (
	"bytes"
	"strings"

	"go.trai.ch/steppe/internal/core/ports"
)

// logWriter forwards complete lines to the logger.
type logWriter struct {
	logger ports.Logger
	prefix string
	warn   bool
	buf    []byte
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)

	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.logLine(w.buf[:i])
		w.buf = w.buf[i+1:]
	}

	return len(p), nil
}

// Close forwards a trailing partial line.
func (w *logWriter) Close() error {
	if len(w.buf) > 0 {
		w.logLine(w.buf)
		w.buf = nil
	}
	return nil
}

func (w *logWriter) logLine(line []byte) {
	msg := strings.TrimSuffix(string(line), "\r")
	if msg == "" {
		return
	}
	msg = "[" + w.prefix + "] " + msg

	if w.warn {
		w.logger.Warn(msg)
	} else {
		w.logger.Info(msg)
	}
}
