package loggingfx

import (
	"io"
	"log/slog"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/0x5457/repograph/internal/config/configfx"
	"github.com/0x5457/repograph/internal/logging"
)

// Params represents dependencies for the logger
type Params struct {
	fx.In

	Config *configfx.Config
	Output io.Writer `name:"logOutput" optional:"true"`
}

// NewLogger creates the shared logger. Logs go to stderr so stdout stays
// free for command output and the stdio MCP transport.
func NewLogger(params Params) *slog.Logger {
	w := params.Output
	if w == nil {
		w = os.Stderr
	}
	return logging.New(w, logging.LevelFromString(params.Config.LogLevel))
}

// EventLogger routes fx lifecycle events to the shared logger.
func EventLogger(log *slog.Logger) fxevent.Logger {
	l := &fxevent.SlogLogger{Logger: log}
	l.UseLogLevel(slog.LevelDebug)
	return l
}

// Module provides logging components
var Module = fx.Module("logging",
	fx.Provide(NewLogger),
)
