package wasm

import (
	"fmt"
	"io"
	"sync"

	"github.com/questmind/questmind/pkg/protocol"
	"go.uber.org/zap"
)

// LogSink receives the lines a guest writes through host.log_message.
// Implementations must be safe for concurrent use.
type LogSink interface {
	WriteLine(level protocol.LogLevel, line string)
}

// LogSinkFunc adapts a function to LogSink.
type LogSinkFunc func(level protocol.LogLevel, line string)

// WriteLine calls f.
func (f LogSinkFunc) WriteLine(level protocol.LogLevel, line string) {
	f(level, line)
}

// ZapSink writes guest lines to a zap logger at the matching level.
type ZapSink struct {
	logger *zap.Logger
}

// NewZapSink creates a sink logging as the "wasm-guest" component.
func NewZapSink(logger *zap.Logger) *ZapSink {
	return &ZapSink{logger: logger.With(zap.String("component", "wasm-guest"))}
}

// WriteLine logs line. Unknown levels log at info.
func (s *ZapSink) WriteLine(level protocol.LogLevel, line string) {
	switch level {
	case protocol.LogLevelDebug:
		s.logger.Debug(line)
	case protocol.LogLevelInfo:
		s.logger.Info(line)
	case protocol.LogLevelWarn:
		s.logger.Warn(line)
	case protocol.LogLevelError:
		s.logger.Error(line)
	default:
		s.logger.Info(line, zap.Stringer("level", level))
	}
}

// WriterSink writes each line, newline-terminated, to an io.Writer.
// Write errors are dropped; the guest has no way to observe them.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink creates a sink writing to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) WriteLine(_ protocol.LogLevel, line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = fmt.Fprintln(s.w, line)
}

// TeeSink forwards every line to each sink in order.
type TeeSink []LogSink

func (t TeeSink) WriteLine(level protocol.LogLevel, line string) {
	for _, s := range t {
		s.WriteLine(level, line)
	}
}

// Recorder keeps every line it receives.
type Recorder struct {
	mu    sync.Mutex
	lines []protocol.LogLine
}

func (r *Recorder) WriteLine(level protocol.LogLevel, line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, protocol.LogLine{Level: level, Text: line})
}

// Lines returns a copy of the recorded lines.
func (r *Recorder) Lines() []protocol.LogLine {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]protocol.LogLine(nil), r.lines...)
}

// Texts returns the recorded line texts.
func (r *Recorder) Texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	for i, l := range r.lines {
		out[i] = l.Text
	}
	return out
}

// Reset drops all recorded lines.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = nil
}
