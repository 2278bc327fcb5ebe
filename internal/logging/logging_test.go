package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSessionIDAddsLogField(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	baseLogger = zap.New(core)
	sugar = baseLogger.Sugar()
	sessionID.Store("")

	SetSessionID("sess-abc")
	Infof("hello")

	logs := recorded.All()
	if len(logs) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(logs))
	}

	fields := map[string]interface{}{}
	for _, field := range logs[0].Context {
		if field.Type == zapcore.StringType {
			fields[field.Key] = field.String
		}
	}

	if fields["session_id"] != "sess-abc" {
		t.Fatalf("expected session_id to be sess-abc, got %v", fields["session_id"])
	}
}

func TestInitRejectsInvalidLevel(t *testing.T) {
	if err := Init(Config{Level: "verbose"}); err == nil {
		t.Fatalf("expected error for invalid level")
	}
	if err := Init(Config{Format: "xml"}); err == nil {
		t.Fatalf("expected error for invalid format")
	}
}
