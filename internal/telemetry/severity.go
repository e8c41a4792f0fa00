package telemetry

func severityRank(severity string) int {
	switch severity {
	case SeverityDebug:
		return 0
	case SeverityInfo:
		return 1
	case SeverityWarn:
		return 2
	case SeverityError:
		return 3
	default:
		return 1
	}
}

type minSeverityEmitter struct {
	next Emitter
	min  int
}

// WithMinSeverity wraps an emitter so that log events below min are dropped.
// Metrics always pass through; an unknown min behaves like info.
func WithMinSeverity(next Emitter, min string) Emitter {
	if next == nil {
		next = noopEmitter{}
	}
	return &minSeverityEmitter{next: next, min: severityRank(normalizeSeverity(min))}
}

func (e *minSeverityEmitter) EmitMetric(name string, value float64, unit string, attributes map[string]string, correlation Correlation) {
	e.next.EmitMetric(name, value, unit, attributes, correlation)
}

func (e *minSeverityEmitter) EmitLog(name, severity, message string, attributes map[string]string, correlation Correlation) {
	if severityRank(normalizeSeverity(severity)) < e.min {
		return
	}
	e.next.EmitLog(name, severity, message, attributes, correlation)
}
