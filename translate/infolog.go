// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package translate

import (
	"fmt"
	"strings"
)

// Severity grades an info log entry.
type Severity uint8

const (
	SeverityNote Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityNote:
		return "NOTE"
	case SeverityWarning:
		return "WARNING"
	default:
		return "ERROR"
	}
}

// Diagnostic is one info log entry.
type Diagnostic struct {
	Severity  Severity
	Function  string
	Construct string
	Value     string
	Message   string
}

func (d Diagnostic) String() string {
	var b strings.Builder
	b.WriteString(d.Severity.String())
	b.WriteString(": ")
	if d.Function != "" {
		b.WriteString(d.Function)
		b.WriteString(": ")
	}
	if d.Construct != "" {
		b.WriteString(d.Construct)
		b.WriteString(": ")
	}
	b.WriteString(d.Message)
	if d.Value != "" {
		fmt.Fprintf(&b, " (%s)", d.Value)
	}
	return b.String()
}

// InfoLog accumulates diagnostics in the order they were reported.
type InfoLog struct {
	entries []Diagnostic
}

func (l *InfoLog) add(d Diagnostic) {
	l.entries = append(l.entries, d)
}

// Entries returns the recorded diagnostics.
func (l *InfoLog) Entries() []Diagnostic {
	return l.entries
}

// Errors returns the number of error entries.
func (l *InfoLog) Errors() int {
	n := 0
	for _, d := range l.entries {
		if d.Severity == SeverityError {
			n++
		}
	}
	return n
}

// String formats the log one entry per line.
func (l *InfoLog) String() string {
	var b strings.Builder
	for _, d := range l.entries {
		b.WriteString(d.String())
		b.WriteByte('\n')
	}
	return b.String()
}
