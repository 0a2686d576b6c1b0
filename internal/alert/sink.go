package alert

import "github.com/rs/zerolog"

// Sink receives alerts for delivery. Delivery failure must never affect
// engine state; implementations swallow their own errors.
type Sink interface {
	Deliver(a Alert)
}

// Dispatcher fans alerts out to a set of sinks, applying a minimum
// severity filter first.
type Dispatcher struct {
	sinks       []Sink
	minSeverity string
}

// NewDispatcher creates a dispatcher. minSeverity may be empty to deliver
// everything.
func NewDispatcher(minSeverity string, sinks ...Sink) *Dispatcher {
	return &Dispatcher{sinks: sinks, minSeverity: minSeverity}
}

// Dispatch delivers each alert at or above the minimum severity to every
// sink.
func (d *Dispatcher) Dispatch(alerts ...Alert) {
	filtered := FilterBySeverity(alerts, d.minSeverity)
	for _, a := range filtered {
		for _, s := range d.sinks {
			s.Deliver(a)
		}
	}
}

// LogSink writes alerts to the structured log.
type LogSink struct {
	log zerolog.Logger
}

// NewLogSink creates a sink writing to the given logger.
func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log.With().Str("component", "alerts").Logger()}
}

// Deliver implements Sink.
func (s *LogSink) Deliver(a Alert) {
	s.log.Info().
		Str("type", string(a.Type)).
		Str("severity", a.Severity).
		Str("asin", a.ASIN).
		Str("message", a.Message).
		Msg("alert")
}

// CollectorSink buffers alerts in memory, mainly for tests and reports.
type CollectorSink struct {
	Alerts []Alert
}

// Deliver implements Sink.
func (s *CollectorSink) Deliver(a Alert) {
	s.Alerts = append(s.Alerts, a)
}
