package cmd

import (
	"errors"
	"fmt"
	"testing"

	"github.com/oriys/lambda-log-ingestor/internal/config"
	"github.com/oriys/lambda-log-ingestor/internal/domain"
	"github.com/sirupsen/logrus"
)

func TestExitErrorType(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("%w: %q", domain.ErrUnknownEventType, "RESTART"), "Extension.UnknownEvent"},
		{fmt.Errorf("%w: 403", domain.ErrRegistrationFailed), "Extension.RegistrationFailed"},
		{errors.New("drain: boom"), "Extension.Crash"},
	}
	for _, tt := range tests {
		if got := exitErrorType(tt.err); got != tt.want {
			t.Fatalf("exitErrorType(%v)=%q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestEventTypes(t *testing.T) {
	got := eventTypes([]string{"invoke", " SHUTDOWN "})
	if len(got) != 2 || got[0] != domain.EventInvoke || got[1] != domain.EventShutdown {
		t.Fatalf("eventTypes=%v", got)
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		cfg   config.LoggingConfig
		level logrus.Level
		text  bool
	}{
		{config.LoggingConfig{}, logrus.InfoLevel, false},
		{config.LoggingConfig{Level: "debug", Format: "text"}, logrus.DebugLevel, true},
		{config.LoggingConfig{Level: "verbose"}, logrus.InfoLevel, false},
	}
	for _, tt := range tests {
		logger := newLogger(tt.cfg)
		if logger.GetLevel() != tt.level {
			t.Fatalf("%+v: level=%v, want %v", tt.cfg, logger.GetLevel(), tt.level)
		}
		if _, ok := logger.Formatter.(*logrus.TextFormatter); ok != tt.text {
			t.Fatalf("%+v: text formatter=%v", tt.cfg, ok)
		}
	}
}
