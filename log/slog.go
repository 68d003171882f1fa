package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/cockroachdb/errors"
	slogmulti "github.com/samber/slog-multi"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

type RelayLogger struct {
	*slog.Logger
}

var relayLogger *RelayLogger

func parseLevel(logLevel string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return 0, errors.Wrapf(err, "invalid log level: %s", logLevel)
	}
	return level, nil
}

// InitLogger initializes the global logger with the given log level, format
// ("text" or "json") and output ("stdout" or "stderr"). If enableOTel is true,
// log records are also forwarded to the OpenTelemetry log bridge.
func InitLogger(logLevel, format, output string, enableOTel bool) error {
	var writer io.Writer
	switch output {
	case "stdout":
		writer = os.Stdout
	case "stderr":
		writer = os.Stderr
	default:
		return errors.Newf("invalid log output: %s", output)
	}
	return InitLoggerWithWriter(logLevel, format, writer, enableOTel)
}

func InitLoggerWithWriter(logLevel, format string, writer io.Writer, enableOTel bool) error {
	level, err := parseLevel(logLevel)
	if err != nil {
		return err
	}
	handlerOpts := &slog.HandlerOptions{
		Level:     level,
		AddSource: true,
	}

	var handler slog.Handler
	switch format {
	case "text":
		handler = slog.NewTextHandler(writer, handlerOpts)
	case "json":
		handler = slog.NewJSONHandler(writer, handlerOpts)
	default:
		return errors.Newf("invalid log format: %s", format)
	}

	if enableOTel {
		handler = slogmulti.Fanout(
			handler,
			otelslog.NewHandler("github.com/hyperledger-labs/lane-relayer"),
		)
	}

	relayLogger = &RelayLogger{slog.New(handler)}
	return nil
}

func GetLogger() *RelayLogger {
	return relayLogger
}

// log emits a record with the caller of the exported wrapper as the source.
func (rl *RelayLogger) log(level slog.Level, skip int, msg string, args ...any) {
	ctx := context.Background()
	if !rl.Logger.Enabled(ctx, level) {
		return
	}
	var pcs [1]uintptr
	runtime.Callers(skip+3, pcs[:])
	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	r.Add(args...)
	_ = rl.Logger.Handler().Handle(ctx, r)
}

func (rl *RelayLogger) Debug(msg string, args ...any) {
	rl.log(slog.LevelDebug, 0, msg, args...)
}

func (rl *RelayLogger) Info(msg string, args ...any) {
	rl.log(slog.LevelInfo, 0, msg, args...)
}

func (rl *RelayLogger) Warn(msg string, args ...any) {
	rl.log(slog.LevelWarn, 0, msg, args...)
}

func (rl *RelayLogger) Error(msg string, err error, otherArgs ...any) {
	args := append([]any{"error", errString(err)}, otherArgs...)
	rl.log(slog.LevelError, 0, msg, args...)
}

func errString(err error) string {
	if err == nil {
		return "<nil>"
	}
	return err.Error()
}

// ErrorWithStack logs the error along with a stack trace rooted at the caller.
func (rl *RelayLogger) ErrorWithStack(msg string, err error, otherArgs ...any) {
	cErr := errors.WithStackDepth(err, 1)
	args := append([]any{"error", errString(err), "stack", fmt.Sprintf("%+v", cErr)}, otherArgs...)
	rl.log(slog.LevelError, 0, msg, args...)
}

func (rl *RelayLogger) Fatal(msg string, err error, otherArgs ...any) {
	cErr := errors.WithStackDepth(err, 1)
	args := append([]any{"error", errString(err), "stack", fmt.Sprintf("%+v", cErr)}, otherArgs...)
	rl.log(slog.LevelError, 0, msg, args...)
	os.Exit(1)
}

// TimeTrack logs the time elapsed since `start` at debug level.
func (rl *RelayLogger) TimeTrack(start time.Time, name string, otherArgs ...any) {
	elapsed := time.Since(start)
	args := append([]any{"name", name, "elapsed", elapsed.Nanoseconds()}, otherArgs...)
	rl.log(slog.LevelDebug, 1, "time track", args...)
}

func (rl *RelayLogger) WithChain(chainID string) *RelayLogger {
	return &RelayLogger{
		rl.With("chain_id", chainID),
	}
}

func (rl *RelayLogger) WithChainPair(srcChainID, dstChainID string) *RelayLogger {
	return &RelayLogger{
		rl.With(
			"source_chain_id", srcChainID,
			"destination_chain_id", dstChainID,
		),
	}
}

func (rl *RelayLogger) WithLane(srcChainID, dstChainID, laneID string) *RelayLogger {
	return &RelayLogger{
		rl.With(
			"source_chain_id", srcChainID,
			"destination_chain_id", dstChainID,
			"lane_id", laneID,
		),
	}
}

func (rl *RelayLogger) WithModule(moduleName string) *RelayLogger {
	return &RelayLogger{
		rl.With("module", moduleName),
	}
}
