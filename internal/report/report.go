// Package report carries structured error reports from the sync layer to the
// host application's logging sink.
package report

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Severity ranks a report.
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarn
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarn:
		return "warn"
	default:
		return "error"
	}
}

// Kind classifies the failure being reported.
type Kind string

const (
	KindNetwork        Kind = "network_error"
	KindItemNotFound   Kind = "item_not_found"
	KindStorage        Kind = "storage_error"
	KindExhaustedRetry Kind = "exhausted_retry"
	KindHandlerPanic   Kind = "handler_panic"
)

// Report is a single structured event.
type Report struct {
	Severity Severity
	Kind     Kind
	Message  string
	Err      error
	Fields   map[string]any
}

// Reporter receives reports. Implementations must not panic.
type Reporter interface {
	Report(r Report)
}

// Nop discards every report.
type Nop struct{}

// Report implements Reporter.
func (Nop) Report(Report) {}

// LogrusReporter forwards reports to a logrus logger.
type LogrusReporter struct {
	Logger logrus.FieldLogger
}

// NewLogrus wraps logger. A nil logger uses the logrus standard logger.
func NewLogrus(logger logrus.FieldLogger) *LogrusReporter {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogrusReporter{Logger: logger}
}

// Report implements Reporter.
func (l *LogrusReporter) Report(r Report) {
	entry := l.Logger.WithField("kind", string(r.Kind))
	if len(r.Fields) > 0 {
		entry = entry.WithFields(logrus.Fields(r.Fields))
	}
	if r.Err != nil {
		entry = entry.WithError(r.Err)
	}
	switch r.Severity {
	case SeverityDebug:
		entry.Debug(r.Message)
	case SeverityInfo:
		entry.Info(r.Message)
	case SeverityWarn:
		entry.Warn(r.Message)
	default:
		entry.Error(r.Message)
	}
}

// Recorder keeps every report in memory. Safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	reports []Report
}

// Report implements Reporter.
func (r *Recorder) Report(rep Report) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, rep)
}

// Reports returns a copy of the recorded reports.
func (r *Recorder) Reports() []Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Report, len(r.reports))
	copy(out, r.reports)
	return out
}

// OfKind returns the recorded reports matching kind.
func (r *Recorder) OfKind(kind Kind) []Report {
	var out []Report
	for _, rep := range r.Reports() {
		if rep.Kind == kind {
			out = append(out, rep)
		}
	}
	return out
}
