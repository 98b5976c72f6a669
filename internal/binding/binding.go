// Package binding implements the QuestMind Binding Surface: the functions a
// host calls across the WebAssembly boundary. It has no knowledge of the
// boundary itself; the guest builds under cmd/ adapt it to wasip1 and js.
package binding

import (
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	// LoadedMessage is written once when a module instance is initialized.
	LoadedMessage = "QuestMind module loaded!"

	// ProcessedPrefix is prepended to the result of ProcessText.
	ProcessedPrefix = "Processed by QuestMind: "
)

// Sink receives the log lines produced by the surface.
type Sink interface {
	WriteLine(line string)
}

// SinkFunc adapts a plain function to Sink.
type SinkFunc func(line string)

// WriteLine calls f(line).
func (f SinkFunc) WriteLine(line string) {
	f(line)
}

// Greeting returns the line greet writes for name.
func Greeting(name string) string {
	return fmt.Sprintf("Hello, %s! Greetings from QuestMind module.", name)
}

// Add returns a + b. Overflow wraps around in two's complement, the same as
// the wasm i32.add instruction: Add(math.MaxInt32, 1) == math.MinInt32.
func Add(a, b int32) int32 {
	return a + b
}

// ProcessText returns ProcessedPrefix followed by text in upper case.
// Case mapping is full Unicode mapping, so "ß" becomes "SS".
func ProcessText(text string) string {
	// Casers carry state and must not be shared between goroutines.
	return ProcessedPrefix + cases.Upper(language.Und).String(text)
}

// Surface binds the operations to a sink.
// All methods are safe for concurrent use if the sink is.
type Surface struct {
	sink Sink
	once sync.Once
	init atomic.Bool
}

// New creates a surface writing to sink. A nil sink discards output.
func New(sink Sink) *Surface {
	if sink == nil {
		sink = SinkFunc(func(string) {})
	}
	return &Surface{sink: sink}
}

// Initialize writes LoadedMessage the first time it is called and reports
// whether it did so. Later calls do nothing.
func (s *Surface) Initialize() bool {
	ran := false
	s.once.Do(func() {
		ran = true
		s.sink.WriteLine(LoadedMessage)
		s.init.Store(true)
	})
	return ran
}

// Initialized reports whether Initialize has run.
func (s *Surface) Initialized() bool {
	return s.init.Load()
}

// Greet writes the greeting for name.
func (s *Surface) Greet(name string) {
	s.sink.WriteLine(Greeting(name))
}

// Add is the surface form of the package-level Add.
func (s *Surface) Add(a, b int32) int32 {
	return Add(a, b)
}

// ProcessText is the surface form of the package-level ProcessText.
func (s *Surface) ProcessText(text string) string {
	return ProcessText(text)
}
