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

// Command mrvn runs the agent platform.
//
// Usage:
//
//	mrvn serve --config config.yaml
//	mrvn chat assistant --config config.yaml
//	mrvn schema
package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/alecthomas/kong"

	"github.com/mrvn-ai/mrvn/pkg/config"
	"github.com/mrvn-ai/mrvn/pkg/logger"
)

// CLI defines the command-line interface.
type CLI struct {
	Version VersionCmd `cmd:"" help:"Show version information."`
	Serve   ServeCmd   `cmd:"" help:"Start the HTTP API server."`
	Chat    ChatCmd    `cmd:"" help:"Chat with an agent from the terminal."`
	Schema  SchemaCmd  `cmd:"" help:"Generate the JSON Schema for config files."`

	Config    string `short:"c" help:"Config source: a YAML file path, or a consul://, etcd://, zk:// URI."`
	LogLevel  string `help:"Log level (debug, info, warn, error). Defaults to info."`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple, verbose, json). Defaults to simple."`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("mrvn version %s\n", version)
	return nil
}

const (
	logLevelEnv  = "MRVN_LOG_LEVEL"
	logFileEnv   = "MRVN_LOG_FILE"
	logFormatEnv = "MRVN_LOG_FORMAT"
)

func resolveSetting(flag, envVar, fallback string) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return fallback
}

// initLogging installs the process logger from flags and environment
// variables, in that order of precedence. Commands that load a config
// file call it again with the file's logging section so it can fill
// whatever the flags and environment left unset.
func initLogging(cli *CLI, fileCfg *config.LoggingConfig) error {
	fallback := config.LoggingConfig{Level: "info", Format: "simple"}
	if fileCfg != nil {
		fallback = *fileCfg
	}

	level := resolveSetting(cli.LogLevel, logLevelEnv, fallback.Level)
	format := resolveSetting(cli.LogFormat, logFormatEnv, fallback.Format)
	path := resolveSetting(cli.LogFile, logFileEnv, fallback.File)

	output := os.Stderr
	if path != "" {
		f, err := logger.OpenLogFile(path)
		if err != nil {
			return err
		}
		// Held for the life of the process; os.File writes are
		// unbuffered, so there is nothing to flush at exit.
		output = f
	}

	logger.Init(logger.ParseLevel(level), output, logger.ParseFormat(format))
	return nil
}

func main() {
	_ = config.LoadEnvFiles()

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("mrvn"),
		kong.Description("mrvn - LLM agent orchestration platform"),
		kong.UsageOnError(),
	)

	if err := initLogging(&cli, nil); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}

	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
