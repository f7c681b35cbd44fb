// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gogpu/glass/report"
)

const version = "0.1.0-dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the glassc version",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := setupOutput(cmd); err != nil {
			return err
		}
		bold := color.New(color.FgCyan, color.Bold)
		fmt.Fprintf(cmd.OutOrStdout(), "glassc %s (report schema %d)\n", bold.Sprint(version), report.SchemaVersion)
		return nil
	},
}
