// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Command glassc translates LLVM-style SSA shader IR to GLSL.
//
// Usage:
//
//	glassc translate [flags] <file.ll|dir>...
//	glassc watch [flags] <dir>
//	glassc inspect <report>
//	glassc eval [flags] <file.ll> <function> [args...]
//
// Examples:
//
//	glassc translate shader.ll                      # GLSL to stdout
//	glassc translate --glsl 300es -o out shaders/   # one .glsl per unit
//	glassc translate --report build.report shaders/ # also write a report
//	glassc inspect build.report                     # summarize a report
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var rootCmd = &cobra.Command{
	Use:           "glassc",
	Short:         "SSA shader IR to GLSL translator",
	Long:          `glassc rebuilds structured control flow from LLVM-style SSA shader modules and prints them as GLSL.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.Version = version

	rootCmd.AddCommand(translateCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(evalCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug|info|warn|error)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.New(color.FgRed, color.Bold).Sprint("error: ")+err.Error())
		os.Exit(1)
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// setupOutput applies the --color flag and returns the logger selected by
// --log-level.
func setupOutput(cmd *cobra.Command) (*slog.Logger, error) {
	colorFlag, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return nil, err
	}
	switch colorFlag {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	case "auto":
		color.NoColor = !isTerminal(os.Stdout)
	default:
		return nil, fmt.Errorf("unsupported color mode %q (must be auto, on or off)", colorFlag)
	}

	levelFlag, err := cmd.Root().PersistentFlags().GetString("log-level")
	if err != nil {
		return nil, err
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(levelFlag))); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", levelFlag, err)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
}
