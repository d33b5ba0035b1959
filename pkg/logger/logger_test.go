// Copyright 2025 The mrvn authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"simple", FormatSimple},
		{"verbose", FormatVerbose},
		{"json", FormatJSON},
		{"", FormatSimple},
		{"nope", FormatSimple},
	}

	for _, tt := range tests {
		if got := ParseFormat(tt.in); got != tt.want {
			t.Errorf("ParseFormat(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSimpleHandlerOutput(t *testing.T) {
	var buf bytes.Buffer
	h := newSimpleHandler(&buf, slog.LevelInfo, false)
	log := slog.New(h)

	log.Info("Indexed chunk", "agent", 7, "source", "message")

	out := buf.String()
	if !strings.Contains(out, "INFO Indexed chunk") {
		t.Errorf("output %q missing level and message", out)
	}
	if !strings.Contains(out, "agent=7") || !strings.Contains(out, "source=message") {
		t.Errorf("output %q missing attributes", out)
	}
}

func TestSimpleHandlerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	h := newSimpleHandler(&buf, slog.LevelWarn, false)

	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be filtered at warn level")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Error("error should pass at warn level")
	}
}

func TestSimpleHandlerWithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(newSimpleHandler(&buf, slog.LevelInfo, false)).
		With("component", "runner").
		WithGroup("turn")

	log.Info("done", "iterations", 3)

	out := buf.String()
	if !strings.Contains(out, "component=runner") {
		t.Errorf("output %q missing inherited attr", out)
	}
	if !strings.Contains(out, "turn.iterations=3") {
		t.Errorf("output %q missing grouped attr", out)
	}
}
