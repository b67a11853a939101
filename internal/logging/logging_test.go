package logging

import (
	"bytes"
	"log"
	"os"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{in: "", want: LevelInfo},
		{in: "DEBUG", want: LevelDebug},
		{in: " warning ", want: LevelWarn},
		{in: "error", want: LevelError},
		{in: "loud", want: LevelInfo, wantErr: true},
	}
	for _, tc := range tests {
		got, err := ParseLevel(tc.in)
		if (err != nil) != tc.wantErr || got != tc.want {
			t.Fatalf("ParseLevel(%q) = %v, %v", tc.in, got, err)
		}
	}
}

func TestLevelFiltersOutput(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer func() {
		log.SetOutput(os.Stderr)
		SetLevel(LevelInfo)
	}()

	SetVerbosity(0)
	Infof("hidden")
	Warnf("shown %d", 1)
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "[WARN] shown 1") {
		t.Fatalf("unexpected output: %q", buf.String())
	}

	SetVerbosity(3)
	if CurrentLevel() != LevelDebug {
		t.Fatalf("expected debug, got %s", CurrentLevel())
	}
	Debugf("trace")
	if !strings.Contains(buf.String(), "[DBG] trace") {
		t.Fatalf("debug line missing: %q", buf.String())
	}
}
