// Package logging configures the process-wide structured logger.
//
// spec.md §6 sends warnings to ./backend_errors.log with a timestamp;
// New reproduces that destination using zap instead of the Python
// logging module, since a logging failure must never fail a client
// request (spec.md §7) — zap reports a failed sink write on its own
// error output (stderr) and does not return it to the caller.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultPath is the log destination spec.md §6 names.
const DefaultPath = "./backend_errors.log"

// New builds a zap.Logger that writes info-and-above records to stderr
// and appends warning-and-above records to path (created if missing).
// A blank path disables the file sink and logs only to stderr.
func New(path string) (*zap.Logger, error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewConsoleEncoder(encoderCfg)

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.AddSync(os.Stderr), zapcore.InfoLevel),
	}

	if path != "" {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(f), zapcore.WarnLevel))
	}

	return zap.New(zapcore.NewTee(cores...)), nil
}
