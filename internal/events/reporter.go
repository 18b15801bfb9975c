// Package events carries pipeline progress and warning events to
// whoever is watching: a logger, a WebSocket feed, or nothing at all.
package events

import "log"

// Level classifies an event.
type Level string

const (
	LevelInfo    Level = "INFO"
	LevelWarning Level = "WARNING"
)

// Event is a single pipeline occurrence worth surfacing.
type Event struct {
	Level   Level  `json:"level"`
	Stage   string `json:"stage"`           // pipeline stage that emitted it
	Image   string `json:"image,omitempty"` // image being processed, if any
	Message string `json:"message"`
}

// Reporter receives events as the pipeline emits them. Implementations
// must be safe for concurrent use.
type Reporter interface {
	Report(ev Event)
}

// LogReporter writes events to a standard logger.
type LogReporter struct {
	logger *log.Logger
}

// NewLogReporter creates a reporter over the given logger.
func NewLogReporter(logger *log.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

func (r *LogReporter) Report(ev Event) {
	if ev.Image != "" {
		r.logger.Printf("[%s] %s: %s: %s", ev.Level, ev.Stage, ev.Image, ev.Message)
		return
	}
	r.logger.Printf("[%s] %s: %s", ev.Level, ev.Stage, ev.Message)
}

// NopReporter discards every event.
type NopReporter struct{}

func (NopReporter) Report(Event) {}

// MultiReporter fans an event out to several reporters.
type MultiReporter []Reporter

func (m MultiReporter) Report(ev Event) {
	for _, r := range m {
		r.Report(ev)
	}
}

var (
	_ Reporter = (*LogReporter)(nil)
	_ Reporter = NopReporter{}
	_ Reporter = MultiReporter(nil)
)
