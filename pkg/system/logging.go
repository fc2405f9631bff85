package system

import (
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the CLI logger. Logs always go to stderr so that stdout
// only carries command output such as a raw token. Without verbose only
// warnings and errors are written.
func NewLogger(verbose bool) *zap.Logger {
	return newLogger(os.Stderr, verbose)
}

func newLogger(w io.Writer, verbose bool) *zap.Logger {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.UTC().Format(time.RFC3339))
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(zapcore.AddSync(w)), level)
	return zap.New(core)
}

// ProfileFields returns key/value pairs for SugaredLogger.With identifying a
// profile and, when set, the token kind being served.
func ProfileFields(name, kind string) []interface{} {
	if kind == "" {
		return []interface{}{"profile", name}
	}
	return []interface{}{"profile", name, "kind", kind}
}
