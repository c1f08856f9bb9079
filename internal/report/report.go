// Package report implements the Reporter of spec §4.1/§6/§7: the single
// mutable shared resource the dispatcher serializes writes through. It
// wraps logrus for leveled structured logging, optionally rotates a log
// file via lumberjack, and renders colorized terminal summaries through
// fatih/color — the logging stack lazydocker's pkg/log and banksean-sand's
// go.mod both carry.
package report

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/busybuild/busy/internal/reperrors"
)

// Event is the structured form of one reporter message, exposed so an
// embedding caller (an IDE) can consume it without parsing log text (spec
// §6 "typed progress events").
type Event struct {
	Severity reperrors.Severity
	Code     string
	Message  string
	File     string
	Line     int
	Column   int
}

// Reporter serializes every error/warning/info message the evaluator,
// generator, and dispatcher produce into one logrus entry stream, plus an
// optional Event sink for structured consumers.
type Reporter struct {
	log    *logrus.Logger
	Events chan<- Event // optional; nil disables structured event emission

	// Colorized terminal summary functions, matching cmd/ailang's use of
	// fatih/color for pass/fail/warning lines.
	errorColor *color.Color
	warnColor  *color.Color
	okColor    *color.Color
}

// Option configures a Reporter at construction time.
type Option func(*Reporter)

// WithLogFile rotates structured output into path via lumberjack, in
// addition to stderr.
func WithLogFile(path string, maxSizeMB, maxBackups, maxAgeDays int) Option {
	return func(r *Reporter) {
		fileSink := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
			Compress:   true,
		}
		r.log.SetOutput(io.MultiWriter(r.log.Out, fileSink))
	}
}

// WithLevel sets the minimum logrus level that reaches the sink; Trace
// maps to logrus.TraceLevel, the most verbose.
func WithLevel(sev reperrors.Severity) Option {
	return func(r *Reporter) {
		r.log.SetLevel(severityToLevel(sev))
	}
}

// WithEvents attaches a channel that receives a structured Event per
// message, for embedders that want typed data instead of log lines.
func WithEvents(ch chan<- Event) Option {
	return func(r *Reporter) { r.Events = ch }
}

// New creates a Reporter writing to stderr at Info level by default.
func New(opts ...Option) *Reporter {
	log := logrus.New()
	log.Out = os.Stderr
	log.SetLevel(logrus.InfoLevel)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	r := &Reporter{
		log:        log,
		errorColor: color.New(color.FgRed, color.Bold),
		warnColor:  color.New(color.FgYellow),
		okColor:    color.New(color.FgGreen, color.Bold),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func severityToLevel(s reperrors.Severity) logrus.Level {
	switch s {
	case reperrors.SevError:
		return logrus.ErrorLevel
	case reperrors.SevWarning:
		return logrus.WarnLevel
	case reperrors.SevInfo:
		return logrus.InfoLevel
	case reperrors.SevDebug:
		return logrus.DebugLevel
	case reperrors.SevTrace:
		return logrus.TraceLevel
	default:
		return logrus.InfoLevel
	}
}

// Report emits one structured message (spec §7 "each error becomes one
// reporter message tagged with severity and — when available — file +
// row/col").
func (r *Reporter) Report(e *reperrors.Error) {
	fields := logrus.Fields{"code": e.Code}
	if e.Pos != nil {
		fields["file"] = e.Pos.File
		fields["line"] = e.Pos.Line
		fields["column"] = e.Pos.Column
	}
	entry := r.log.WithFields(fields)

	switch e.Severity {
	case reperrors.SevError:
		entry.Error(e.Message)
	case reperrors.SevWarning:
		entry.Warn(e.Message)
	case reperrors.SevInfo:
		entry.Info(e.Message)
	case reperrors.SevDebug:
		entry.Debug(e.Message)
	case reperrors.SevTrace:
		entry.Trace(e.Message)
	}

	if r.Events != nil {
		ev := Event{Severity: e.Severity, Code: e.Code, Message: e.Message}
		if e.Pos != nil {
			ev.File = e.Pos.File
			ev.Line = e.Pos.Line
			ev.Column = e.Pos.Column
		}
		r.Events <- ev
	}
}

// ReportAll reports every error in l, in order.
func (r *Reporter) ReportAll(l *reperrors.List) {
	for _, err := range l.Errs() {
		if be, ok := err.(*reperrors.Error); ok {
			r.Report(be)
			continue
		}
		r.log.Error(err.Error())
	}
}

// Summary prints the terminal-facing pass/fail line (spec §6's Boolean
// outcome to the caller, rendered the way cmd/ailang colorizes a result).
func (r *Reporter) Summary(success bool, w io.Writer) {
	if success {
		fmt.Fprintln(w, r.okColor.Sprint("build succeeded"))
		return
	}
	fmt.Fprintln(w, r.errorColor.Sprint("build failed"))
}

// Infof logs a plain informational line with no associated structured
// error (e.g. "entering product %s").
func (r *Reporter) Infof(format string, args ...interface{}) {
	r.log.Infof(format, args...)
}

// Warnf logs a plain warning line.
func (r *Reporter) Warnf(format string, args ...interface{}) {
	r.log.Warn(r.warnColor.Sprintf(format, args...))
}
