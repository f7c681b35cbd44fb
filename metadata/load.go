// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package metadata

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// ErrInvalid is returned for a sidecar that decodes but is inconsistent.
var ErrInvalid = errors.New("invalid metadata")

// LoadFile decodes the TOML sidecar at path.
func LoadFile(path string) (*Table, error) {
	t := New("")
	meta, err := toml.DecodeFile(path, t)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if err := t.finish(meta); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Decode decodes a TOML sidecar held in memory.
func Decode(data string) (*Table, error) {
	t := New("")
	meta, err := toml.Decode(data, t)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	if err := t.finish(meta); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Table) finish(meta toml.MetaData) error {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return fmt.Errorf("%w: unknown keys %s", ErrInvalid, strings.Join(keys, ", "))
	}
	if t.Globals == nil {
		t.Globals = map[string]*Node{}
	}
	if t.Types == nil {
		t.Types = map[string]*Node{}
	}
	if t.Aliases == nil {
		t.Aliases = map[string]string{}
	}

	names := make([]string, 0, len(t.Globals))
	for name := range t.Globals {
		names = append(names, name)
	}
	sort.Strings(names)
	var errs []error
	for _, name := range names {
		n := t.Globals[name]
		if n == nil {
			continue
		}
		if n.Name == "" {
			n.Name = name
		}
		if n.Anonymous && !n.IsBlock() {
			errs = append(errs, fmt.Errorf("%w: global %q is anonymous but has no block layout", ErrInvalid, name))
		}
		if n.Interpolation != InterpolationDefault && !n.Qualifier.IsIO() {
			errs = append(errs, fmt.Errorf("%w: global %q has interpolation but is not in or out", ErrInvalid, name))
		}
	}
	for alias, canonical := range t.Aliases {
		if alias == canonical {
			errs = append(errs, fmt.Errorf("%w: alias %q names itself", ErrInvalid, alias))
		}
	}
	return errors.Join(errs...)
}
