package lib

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDefaultLogger(t *testing.T) {
	// pre-define expected
	expected := NewLogger(LoggerConfig{
		Level: DebugLevel,
		Out:   os.Stdout,
	})
	// execute the function call
	got := NewDefaultLogger()
	// compare got vs expected
	require.Equal(t, got, expected)
}

func TestNewNullLogger(t *testing.T) {
	// pre-define expected
	expected := NewLogger(LoggerConfig{
		Level: DebugLevel,
		Out:   io.Discard,
	})
	// execute the function call
	got := NewNullLogger()
	// compare got vs expected
	require.Equal(t, got, expected)
}

func TestLoggerLevelsAndNames(t *testing.T) {
	tests := []struct {
		name     string
		detail   string
		level    int32
		log      func(l LoggerI)
		contains string
		empty    bool
	}{
		{
			name:     "info at info level",
			detail:   "an info line is written when the level is info",
			level:    InfoLevel,
			log:      func(l LoggerI) { l.Infof("hello %d", 1) },
			contains: "hello 1",
		},
		{
			name:   "debug at info level",
			detail: "a debug line is suppressed when the level is info",
			level:  InfoLevel,
			log:    func(l LoggerI) { l.Debug("hidden") },
			empty:  true,
		},
		{
			name:     "label",
			detail:   "every leveled line starts with its level",
			level:    ErrorLevel,
			log:      func(l LoggerI) { l.Named("sim").Errorf("node %d failed", 2) },
			contains: "ERROR: [sim] node 2 failed",
		},
		{
			name:   "warn at error level",
			detail: "a formatted warning is suppressed when the level is error",
			level:  ErrorLevel,
			log:    func(l LoggerI) { l.Warnf("slow %d", 1) },
			empty:  true,
		},
		{
			name:     "print",
			detail:   "an unleveled line is always written without a label",
			level:    ErrorLevel,
			log:      func(l LoggerI) { l.Named("sim").Printf("%d epochs", 4) },
			contains: "[sim] 4 epochs",
		},
		{
			name:     "named logger",
			detail:   "a named logger prefixes each line with its name",
			level:    DebugLevel,
			log:      func(l LoggerI) { l.Named("node 3").Warn("slow") },
			contains: "[node 3] slow",
		},
		{
			name:     "nested names",
			detail:   "names accumulate when a named logger is named again",
			level:    DebugLevel,
			log:      func(l LoggerI) { l.Named("sim").Named("node 1").Error("boom") },
			contains: "[sim] [node 1] boom",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			buf := new(bytes.Buffer)
			l := NewLogger(LoggerConfig{Level: test.level, Out: buf})
			test.log(l)
			if test.empty {
				require.Zero(t, buf.Len())
				return
			}
			require.Contains(t, buf.String(), test.contains)
		})
	}
}
