package app

import (
	"os"

	"shipment-tracker/internal/logx"
)

// NewLogger returns the JSON process logger at the given level.
func NewLogger(level string) logx.Logger {
	lvl, err := logx.ParseLevel(level)
	base := logx.NewJSON(os.Stdout, lvl).With(logx.String("service", serviceName))
	if err != nil {
		base.Warn("unknown log level, using info", logx.String("level", level))
	}
	return base
}
