package changeset

import "time"

// ValidationLogEvent describes one validator invocation for logging.
type ValidationLogEvent struct {
	Key      string
	Value    any
	OldValue any
	Duration time.Duration
	Err      error
}

// ValidationLogger records validation events.
type ValidationLogger interface {
	LogValidation(ValidationLogEvent)
}

// ValidationLoggerFunc adapts a function to ValidationLogger.
type ValidationLoggerFunc func(ValidationLogEvent)

// LogValidation implements ValidationLogger.
func (f ValidationLoggerFunc) LogValidation(event ValidationLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopValidationLogger struct{}

func (noopValidationLogger) LogValidation(ValidationLogEvent) {}

// WithValidationLogger attaches a validation logger to the changeset.
func WithValidationLogger(logger ValidationLogger) Option {
	return func(cfg *config) {
		if logger == nil {
			cfg.logger = noopValidationLogger{}
			return
		}
		cfg.logger = logger
	}
}
