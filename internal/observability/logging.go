// Package observability holds the process-wide CLI logger.
//
// Diagnostics go to stderr; stdout is reserved for JSONL result records so
// command output stays machine-parseable.
package observability

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the shared logger for command execution. It is a no-op
// until InitCLILogger runs, so packages can log unconditionally.
var CLILogger = zap.NewNop()

// InitCLILogger configures CLILogger for the named component. Verbose
// enables debug-level output.
func InitCLILogger(component string, verbose bool) {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if !isTerminal(os.Stderr) {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		level,
	)

	CLILogger = zap.New(core).Named(component)
}

// Sync flushes buffered log entries. Called on process exit.
func Sync() {
	_ = CLILogger.Sync()
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
