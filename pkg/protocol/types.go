package protocol

// Shared types for the QuestMind module boundary.
// This package has no dependencies so it compiles into both the guest and the host.

import (
	"fmt"
	"strings"
)

// LogLevel is the severity passed as the first argument of host.log_message.
type LogLevel uint32

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

// String returns the lower-case name of the level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "debug"
	case LogLevelInfo:
		return "info"
	case LogLevelWarn:
		return "warn"
	case LogLevelError:
		return "error"
	default:
		return fmt.Sprintf("level(%d)", uint32(l))
	}
}

// ParseLogLevel parses a level name. Matching is case-insensitive.
func ParseLogLevel(s string) (LogLevel, error) {
	switch strings.ToLower(s) {
	case "debug":
		return LogLevelDebug, nil
	case "info":
		return LogLevelInfo, nil
	case "warn", "warning":
		return LogLevelWarn, nil
	case "error":
		return LogLevelError, nil
	default:
		return LogLevelInfo, fmt.Errorf("invalid log level: %s", s)
	}
}

// LogLine is a single line written by the module to the host sink.
type LogLine struct {
	Level LogLevel `json:"level"`
	Text  string   `json:"text"`
}

// MarshalText encodes the level by name.
func (l LogLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText decodes a level name accepted by ParseLogLevel.
func (l *LogLevel) UnmarshalText(text []byte) error {
	level, err := ParseLogLevel(string(text))
	if err != nil {
		return err
	}
	*l = level
	return nil
}

// CallResult is the outcome of one Binding Surface call, as reported by the CLI.
type CallResult struct {
	Bundle    string    `json:"bundle"`
	Operation string    `json:"operation"`
	Result    any       `json:"result,omitempty"`
	Logs      []LogLine `json:"logs,omitempty"`
}
