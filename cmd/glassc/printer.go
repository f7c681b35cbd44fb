// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/gogpu/glass"
	"github.com/gogpu/glass/translate"
)

// printer writes diagnostics and summaries to the terminal.
type printer struct {
	w    io.Writer
	path *color.Color
	ok   *color.Color
	sev  map[translate.Severity]*color.Color
}

func newPrinter(w io.Writer) *printer {
	return &printer{
		w:    w,
		path: color.New(color.Bold),
		ok:   color.New(color.FgGreen),
		sev: map[translate.Severity]*color.Color{
			translate.SeverityNote:    color.New(color.FgCyan),
			translate.SeverityWarning: color.New(color.FgYellow, color.Bold),
			translate.SeverityError:   color.New(color.FgRed, color.Bold),
		},
	}
}

func (p *printer) severity(s translate.Severity) string {
	return p.sev[s].Sprint(s.String())
}

// unit prints the info log of one unit, followed by its error when the
// log does not already carry it.
func (p *printer) unit(r glass.UnitResult) {
	logged := 0
	if r.Output != nil && r.Output.Result != nil && r.Output.Result.InfoLog != nil {
		for _, d := range r.Output.Result.InfoLog.Entries() {
			fmt.Fprintf(p.w, "%s: %s: ", p.path.Sprint(r.Path), p.severity(d.Severity))
			if d.Function != "" {
				fmt.Fprintf(p.w, "%s: ", d.Function)
			}
			if d.Construct != "" {
				fmt.Fprintf(p.w, "%s: ", d.Construct)
			}
			fmt.Fprint(p.w, d.Message)
			if d.Value != "" {
				fmt.Fprintf(p.w, " (%s)", d.Value)
			}
			fmt.Fprintln(p.w)
			if d.Severity == translate.SeverityError {
				logged++
			}
		}
	}
	if r.Err != nil && logged == 0 {
		fmt.Fprintf(p.w, "%s: %s: %v\n", p.path.Sprint(r.Path), p.severity(translate.SeverityError), r.Err)
	}
}

// summary prints a one-line tally and returns the number of failed units.
func (p *printer) summary(results []glass.UnitResult) int {
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	if failed == 0 {
		fmt.Fprintln(p.w, p.ok.Sprintf("%d translated", len(results)))
		return 0
	}
	fmt.Fprintf(p.w, "%s, %s\n",
		p.ok.Sprintf("%d translated", len(results)-failed),
		p.sev[translate.SeverityError].Sprintf("%d failed", failed))
	return failed
}
