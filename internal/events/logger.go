package events

import (
	"github.com/ThreeDotsLabs/watermill"

	"saintplus-client/internal/shared/telemetry"
)

// zapAdapter routes watermill's logging into the process logger.
type zapAdapter struct {
	fields watermill.LogFields
}

// NewZapAdapter returns a watermill.LoggerAdapter backed by telemetry.
func NewZapAdapter() watermill.LoggerAdapter {
	return zapAdapter{}
}

func (a zapAdapter) Error(msg string, err error, fields watermill.LogFields) {
	merged := a.merge(fields)
	merged["err"] = err
	telemetry.Error("watermill: "+msg, merged)
}

func (a zapAdapter) Info(msg string, fields watermill.LogFields) {
	telemetry.Info("watermill: "+msg, a.merge(fields))
}

func (a zapAdapter) Debug(msg string, fields watermill.LogFields) {
	telemetry.Debug("watermill: "+msg, a.merge(fields))
}

func (a zapAdapter) Trace(msg string, fields watermill.LogFields) {
	telemetry.Debug("watermill: "+msg, a.merge(fields))
}

func (a zapAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return zapAdapter{fields: a.fields.Add(fields)}
}

func (a zapAdapter) merge(fields watermill.LogFields) map[string]any {
	out := make(map[string]any, len(a.fields)+len(fields))
	for k, v := range a.fields {
		out[k] = v
	}
	for k, v := range fields {
		out[k] = v
	}
	return out
}
