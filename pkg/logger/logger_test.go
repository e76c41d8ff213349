package logger

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLoggerInit(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	if Get() == nil {
		t.Fatal("logger is nil after initialization")
	}
}

func TestLoggerInitWithNilWriter(t *testing.T) {
	if err := InitWithWriter(nil); err == nil {
		t.Fatal("expected error for nil writer")
	}
}

func TestLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter(&buf); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	ctx := context.Background()
	Get().Info(ctx, "duel resolved",
		String("session", "abc"),
		Uint64("winner", 42),
		Int("points", 3),
		Bool("accepted", true),
		Duration("took", time.Second),
		Error(errors.New("boom")),
	)

	out := buf.String()
	for _, want := range []string{"duel resolved", "session=abc", "winner=42", "points=3", "accepted=true", "error=boom", "source="} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got %q", want, out)
		}
	}
}

func TestLoggerNamed(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter(&buf); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	Named("registry").Info(context.Background(), "hello")
	if !strings.Contains(buf.String(), "component=registry") {
		t.Errorf("expected component attribute, got %q", buf.String())
	}
}

func TestSetLevelString(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter(&buf); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	cases := []struct {
		level   string
		wantErr bool
	}{
		{"debug", false},
		{"INFO", false},
		{"", false},
		{"warning", false},
		{"error", false},
		{"verbose", true},
	}
	for _, tc := range cases {
		err := SetLevelString(tc.level)
		if (err != nil) != tc.wantErr {
			t.Errorf("SetLevelString(%q) err=%v, wantErr=%v", tc.level, err, tc.wantErr)
		}
	}

	if err := SetLevelString("error"); err != nil {
		t.Fatal(err)
	}
	Get().Info(context.Background(), "suppressed")
	if strings.Contains(buf.String(), "suppressed") {
		t.Error("info record written while level is error")
	}
	_ = SetLevelString("info")
}
