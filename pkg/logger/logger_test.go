package logger

import (
	"errors"
	"testing"

	"flickrdump/pkg/config"
)

func TestNewRejectsInvalidLevel(t *testing.T) {
	_, err := New(&config.LoggingConfig{Level: "loud"})
	if err == nil {
		t.Error("expected an error for an unknown level")
	}
}

func TestNewAcceptsAllLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		if _, err := New(&config.LoggingConfig{Level: level}); err != nil {
			t.Errorf("level %q should be accepted: %v", level, err)
		}
	}
}

func TestTestLoggerCapturesMessages(t *testing.T) {
	log := NewTestLogger()

	log.Info("plain message")
	log.WithField("id", "101").Warn("field message")
	log.WithError(errors.New("boom")).Error("error message")
	log.InfoWithFields("fields message", map[string]interface{}{"n": 3})

	if len(log.Messages()) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(log.Messages()))
	}
	if !log.HasMessage("plain message") {
		t.Error("missing plain message")
	}
	if got := log.MessagesByLevel("ERROR"); len(got) != 1 || got[0].Error == nil {
		t.Errorf("error context should be captured, got %+v", got)
	}

	warns := log.MessagesByLevel("WARN")
	if len(warns) != 1 || warns[0].Fields["id"] != "101" {
		t.Errorf("bound field should be captured, got %+v", warns)
	}
}
