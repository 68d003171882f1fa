package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"regexp"
	"testing"

	"github.com/cockroachdb/errors"
)

type setupType struct {
	logger *RelayLogger
	buffer bytes.Buffer
}

func beforeEach(t *testing.T) *setupType {
	var r setupType

	if err := InitLoggerWithWriter("info", "json", &r.buffer, false); err != nil {
		t.Fatal(err)
	}
	r.logger = GetLogger()

	return &r
}

type logType struct {
	Time   string
	Level  string
	Source struct {
		Function string
		File     string
		Line     int
	}
	Msg     string
	Stack   string
	Error   string
	LaneID  string `json:"lane_id"`
	ChainID string `json:"chain_id"`
}

func parseResult(setup *setupType, t *testing.T) (string, logType) {
	raw := setup.buffer.String()
	var parsed logType
	if err := json.Unmarshal(setup.buffer.Bytes(), &parsed); err != nil {
		t.Fatalf("fail to parse log: %v: %s", err, raw)
	}
	return raw, parsed
}

func TestLogLevel(t *testing.T) {
	setup := beforeEach(t)

	setup.logger.log(slog.LevelDebug, 0, "test")
	if 0 < setup.buffer.Len() {
		t.Fatalf("debug log should be suppressed at info level: %s", setup.buffer.String())
	}

	setup.logger.log(slog.LevelInfo, 0, "test")
	_, parsed := parseResult(setup, t)
	if parsed.Level != "INFO" {
		t.Fatalf("unexpected level: %s", parsed.Level)
	}
	if parsed.Msg != "test" {
		t.Fatalf("unexpected msg: %s", parsed.Msg)
	}
}

func TestInvalidLogLevel(t *testing.T) {
	var buf bytes.Buffer
	if err := InitLoggerWithWriter("verbose", "json", &buf, false); err == nil {
		t.Fatal("invalid log level should be rejected")
	}
}

func TestSource(t *testing.T) {
	setup := beforeEach(t)

	setup.logger.Info("test")
	raw, parsed := parseResult(setup, t)
	if matched, err := regexp.MatchString(`slog_test\.go$`, parsed.Source.File); err != nil || !matched {
		t.Fatalf("source file should point at the caller: %s", raw)
	}
}

func TestErrorWithStack(t *testing.T) {
	setup := beforeEach(t)

	setup.logger.ErrorWithStack("something failed", errors.New("inner"))
	raw, parsed := parseResult(setup, t)
	if parsed.Error != "inner" {
		t.Fatalf("unexpected error attr: %s", raw)
	}
	if matched, err := regexp.MatchString(`TestErrorWithStack`, parsed.Stack); err != nil || !matched {
		t.Fatalf("stack should contain the caller frame: %s", raw)
	}
}

func TestWithLane(t *testing.T) {
	setup := beforeEach(t)

	setup.logger.WithLane("millet", "ryegrass", "0x00000001").Info("test")
	raw, parsed := parseResult(setup, t)
	if parsed.LaneID != "0x00000001" {
		t.Fatalf("lane_id attr missing: %s", raw)
	}
}
