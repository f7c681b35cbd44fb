// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package report stores the outcome of a batch of translations as a
// msgpack document that glassc inspect reads back.
package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/gogpu/glass/translate"
)

// SchemaVersion is bumped whenever the encoded layout changes.
const SchemaVersion uint16 = 1

// ErrSchema is returned when a report was written with another schema.
var ErrSchema = errors.New("report: schema mismatch")

// Report is the document written by glassc translate --report.
type Report struct {
	Schema  uint16
	Tool    string
	Created int64 // unix seconds
	Units   []Unit
}

// Unit records one translated file.
type Unit struct {
	Source      string
	Stage       string
	GLSLVersion string
	Output      string
	Failed      bool
	Error       string

	Types      int
	Globals    int
	AnonBlocks []string
	Extensions []string

	Functions     []Function
	Diagnostics   []Diagnostic
	MaxArrayIndex map[string]int
}

// Function mirrors translate.FunctionStats.
type Function struct {
	Name        string
	Expressions int
	Locals      int
	Temps       int
	PhiCopies   int
	Loops       int
	Inlined     int
}

// Diagnostic is one info log entry.
type Diagnostic struct {
	Severity  string
	Function  string
	Construct string
	Value     string
	Message   string
}

func (d Diagnostic) String() string {
	s := d.Severity + ": "
	if d.Function != "" {
		s += d.Function + ": "
	}
	if d.Construct != "" {
		s += d.Construct + ": "
	}
	s += d.Message
	if d.Value != "" {
		s += " (" + d.Value + ")"
	}
	return s
}

// FromResult summarizes a translation. res may be nil when the run failed
// before producing a module; err is the error the run returned, if any.
func FromResult(source string, res *translate.Result, err error) Unit {
	u := Unit{Source: source}
	if err != nil {
		u.Failed = true
		u.Error = err.Error()
	}
	if res == nil {
		return u
	}
	if m := res.Module; m != nil {
		u.Types = len(m.Types)
		u.Globals = len(m.GlobalVariables)
		u.AnonBlocks = append(u.AnonBlocks, m.AnonBlocks...)
		if len(m.EntryPoints) > 0 {
			u.Stage = m.EntryPoints[0].Stage.String()
		}
	}
	for _, fs := range res.Functions {
		u.Functions = append(u.Functions, Function(fs))
	}
	if res.InfoLog != nil {
		for _, d := range res.InfoLog.Entries() {
			u.Diagnostics = append(u.Diagnostics, Diagnostic{
				Severity:  d.Severity.String(),
				Function:  d.Function,
				Construct: d.Construct,
				Value:     d.Value,
				Message:   d.Message,
			})
		}
	}
	if len(res.MaxArrayIndex) > 0 {
		u.MaxArrayIndex = make(map[string]int, len(res.MaxArrayIndex))
		for k, v := range res.MaxArrayIndex {
			u.MaxArrayIndex[k] = v
		}
	}
	return u
}

// Failed returns the number of units that failed.
func (r *Report) Failed() int {
	n := 0
	for _, u := range r.Units {
		if u.Failed {
			n++
		}
	}
	return n
}

// Sort orders units by source path so reports of parallel runs compare
// equal.
func (r *Report) Sort() {
	sort.Slice(r.Units, func(i, j int) bool { return r.Units[i].Source < r.Units[j].Source })
}

// Encode writes r to w.
func Encode(w io.Writer, r *Report) error {
	if r.Schema == 0 {
		r.Schema = SchemaVersion
	}
	if err := msgpack.NewEncoder(w).Encode(r); err != nil {
		return fmt.Errorf("report: encode: %w", err)
	}
	return nil
}

// Decode reads a report from rd.
func Decode(rd io.Reader) (*Report, error) {
	var r Report
	if err := msgpack.NewDecoder(rd).Decode(&r); err != nil {
		return nil, fmt.Errorf("report: decode: %w", err)
	}
	if r.Schema != SchemaVersion {
		return nil, fmt.Errorf("%w: have %d, want %d", ErrSchema, r.Schema, SchemaVersion)
	}
	return &r, nil
}

// WriteFile writes r to path, replacing any previous report atomically.
func WriteFile(path string, r *Report) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".report-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(f.Name())
		}
	}()
	if err = Encode(f, r); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

// ReadFile reads the report at path.
func ReadFile(path string) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}
