package log

import (
	"os"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("log",
	fx.Provide(NewLogger),
)

// NewLogger builds the process-wide zap logger. Development gets the
// human-readable encoder; everything else logs JSON.
func NewLogger() (*zap.Logger, error) {
	if os.Getenv("ENVIRONMENT") == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
