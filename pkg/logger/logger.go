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

// Package logger configures the process-wide slog logger. Call Init once at
// startup; packages then use slog directly or grab a named component logger
// via GetLogger.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"
)

// Format selects the output layout.
type Format string

const (
	// FormatSimple prints "LEVEL message key=value" lines for humans.
	FormatSimple Format = "simple"
	// FormatVerbose prints the full slog text layout with timestamps.
	FormatVerbose Format = "verbose"
	// FormatJSON prints one JSON object per line for log shippers.
	FormatJSON Format = "json"
)

// ParseLevel converts a level name to a slog.Level. Unknown names fall back
// to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseFormat converts a format name to a Format. Unknown names fall back to
// simple.
func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "verbose":
		return FormatVerbose
	case "json":
		return FormatJSON
	default:
		return FormatSimple
	}
}

// Init installs the default slog logger. Color is enabled automatically when
// output is a terminal and the format is simple.
func Init(level slog.Level, output *os.File, format Format) {
	if output == nil {
		output = os.Stderr
	}

	var handler slog.Handler
	switch format {
	case FormatJSON:
		handler = slog.NewJSONHandler(output, &slog.HandlerOptions{Level: level})
	case FormatVerbose:
		handler = slog.NewTextHandler(output, &slog.HandlerOptions{Level: level})
	default:
		handler = newSimpleHandler(output, level, term.IsTerminal(int(output.Fd())))
	}

	slog.SetDefault(slog.New(handler))
}

// GetLogger returns a logger tagged with a component name.
func GetLogger(component string) *slog.Logger {
	return slog.Default().With("component", component)
}

// OpenLogFile opens (creating directories as needed) a log file for append.
func OpenLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// simpleHandler writes compact "LEVEL message key=value" lines.
type simpleHandler struct {
	out   io.Writer
	level slog.Level
	color bool
	attrs []slog.Attr
	group string
}

func newSimpleHandler(out io.Writer, level slog.Level, color bool) *simpleHandler {
	return &simpleHandler{out: out, level: level, color: color}
}

func (h *simpleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *simpleHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder

	label := r.Level.String()
	if h.color {
		switch {
		case r.Level >= slog.LevelError:
			label = colorRed + label + colorReset
		case r.Level >= slog.LevelWarn:
			label = colorYellow + label + colorReset
		case r.Level <= slog.LevelDebug:
			label = colorGray + label + colorReset
		default:
			label = colorCyan + label + colorReset
		}
	}

	b.WriteString(label)
	b.WriteString(" ")
	b.WriteString(r.Message)

	writeAttr := func(a slog.Attr) {
		key := a.Key
		if h.group != "" {
			key = h.group + "." + key
		}
		fmt.Fprintf(&b, " %s=%v", key, a.Value.Any())
	}
	for _, a := range h.attrs {
		writeAttr(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(a)
		return true
	})

	b.WriteString("\n")
	_, err := io.WriteString(h.out, b.String())
	return err
}

func (h *simpleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := *h
	nh.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &nh
}

func (h *simpleHandler) WithGroup(name string) slog.Handler {
	nh := *h
	if nh.group != "" {
		nh.group += "." + name
	} else {
		nh.group = name
	}
	return &nh
}
