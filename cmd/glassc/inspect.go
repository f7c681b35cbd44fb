// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gogpu/glass/report"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [flags] <report>",
	Short: "Summarize a translation report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := setupOutput(cmd); err != nil {
			return err
		}
		rep, err := report.ReadFile(args[0])
		if err != nil {
			return err
		}
		functions, _ := cmd.Flags().GetBool("functions")
		printReport(cmd.OutOrStdout(), rep, functions)
		return nil
	},
}

func init() {
	inspectCmd.Flags().Bool("functions", false, "list per-function statistics")
}

func printReport(w io.Writer, rep *report.Report, functions bool) {
	bold := color.New(color.Bold)
	bad := color.New(color.FgRed, color.Bold)
	good := color.New(color.FgGreen)

	fmt.Fprintf(w, "%s written %s, %d units, %d failed\n",
		rep.Tool, time.Unix(rep.Created, 0).UTC().Format(time.RFC3339), len(rep.Units), rep.Failed())

	for _, u := range rep.Units {
		status := good.Sprint("ok")
		if u.Failed {
			status = bad.Sprint("failed")
		}
		fmt.Fprintf(w, "\n%s %s\n", bold.Sprint(u.Source), status)
		if u.Error != "" {
			fmt.Fprintf(w, "  error: %s\n", u.Error)
		}
		if u.Stage != "" {
			fmt.Fprintf(w, "  stage %s, %d types, %d globals\n", u.Stage, u.Types, u.Globals)
		}
		if u.GLSLVersion != "" {
			fmt.Fprintf(w, "  glsl %s", u.GLSLVersion)
			if len(u.Extensions) > 0 {
				fmt.Fprintf(w, " + %s", strings.Join(u.Extensions, ", "))
			}
			fmt.Fprintln(w)
		}
		if u.Output != "" {
			fmt.Fprintf(w, "  output %s\n", u.Output)
		}
		if len(u.AnonBlocks) > 0 {
			fmt.Fprintf(w, "  hoisted blocks: %s\n", strings.Join(u.AnonBlocks, ", "))
		}
		if len(u.MaxArrayIndex) > 0 {
			names := make([]string, 0, len(u.MaxArrayIndex))
			for name := range u.MaxArrayIndex {
				names = append(names, name)
			}
			sort.Strings(names)
			parts := make([]string, len(names))
			for i, name := range names {
				parts[i] = fmt.Sprintf("%s[%d]", name, u.MaxArrayIndex[name])
			}
			fmt.Fprintf(w, "  max indices: %s\n", strings.Join(parts, " "))
		}
		for _, d := range u.Diagnostics {
			fmt.Fprintf(w, "  %s\n", d)
		}
		if functions && len(u.Functions) > 0 {
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "  function\texprs\tlocals\ttemps\tphi copies\tloops\tinlined")
			for _, f := range u.Functions {
				fmt.Fprintf(tw, "  %s\t%d\t%d\t%d\t%d\t%d\t%d\n",
					f.Name, f.Expressions, f.Locals, f.Temps, f.PhiCopies, f.Loops, f.Inlined)
			}
			tw.Flush()
		}
	}
}
