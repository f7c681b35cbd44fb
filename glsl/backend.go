// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package glsl

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/gogpu/glass/ir"
)

// Version represents a GLSL version.
type Version struct {
	Major uint8
	Minor uint8 // in tens, so 4.5 is Minor 50
	ES    bool  // true for GLSL ES (OpenGL ES / WebGL)
}

// Common GLSL versions.
var (
	// Desktop OpenGL versions
	Version150 = Version{Major: 1, Minor: 50}
	Version330 = Version{Major: 3, Minor: 30}
	Version400 = Version{Major: 4, Minor: 0}
	Version410 = Version{Major: 4, Minor: 10}
	Version420 = Version{Major: 4, Minor: 20}
	Version430 = Version{Major: 4, Minor: 30}
	Version450 = Version{Major: 4, Minor: 50}
	Version460 = Version{Major: 4, Minor: 60}

	// OpenGL ES / WebGL versions
	VersionES300 = Version{Major: 3, Minor: 0, ES: true}  // ES 3.0 / WebGL 2.0
	VersionES310 = Version{Major: 3, Minor: 10, ES: true} // ES 3.1
	VersionES320 = Version{Major: 3, Minor: 20, ES: true} // ES 3.2
)

// ErrVersion is returned by ParseVersion for strings that name no GLSL version.
var ErrVersion = errors.New("glsl: invalid version")

// ParseVersion parses a GLSL version written as a directive number ("450",
// "300 es") or as a dotted version ("4.5", "3.0-es", "3.10").
func ParseVersion(s string) (Version, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	es := false
	for _, suffix := range []string{" es", "-es", "es"} {
		if strings.HasSuffix(s, suffix) {
			es = true
			s = strings.TrimSpace(strings.TrimSuffix(s, suffix))
			break
		}
	}
	s = strings.TrimSuffix(strings.TrimSuffix(s, " core"), "core")
	if n, err := strconv.Atoi(s); err == nil {
		if n < 100 || n > 999 {
			return Version{}, fmt.Errorf("%w: %q", ErrVersion, s)
		}
		return Version{Major: uint8(n / 100), Minor: uint8(n % 100), ES: es}, nil
	}
	sv, err := semver.NewVersion(s)
	if err != nil {
		return Version{}, fmt.Errorf("%w: %q: %w", ErrVersion, s, err)
	}
	if sv.Prerelease() == "es" {
		es = true
	}
	minor := sv.Minor()
	if minor < 10 {
		minor *= 10
	}
	if sv.Major() > 9 || minor > 99 {
		return Version{}, fmt.Errorf("%w: %q", ErrVersion, s)
	}
	return Version{Major: uint8(sv.Major()), Minor: uint8(minor), ES: es}, nil
}

// String returns the version as a GLSL version directive value.
func (v Version) String() string {
	if v.ES {
		return fmt.Sprintf("%d%02d es", v.Major, v.Minor)
	}
	if int(v.Major)*100+int(v.Minor) >= 150 {
		return fmt.Sprintf("%d%02d core", v.Major, v.Minor)
	}
	return v.VersionNumber()
}

// VersionNumber returns just the numeric version (e.g., "330", "300").
func (v Version) VersionNumber() string {
	return fmt.Sprintf("%d%02d", v.Major, v.Minor)
}

func (v Version) semver() *semver.Version {
	return semver.New(uint64(v.Major), uint64(v.Minor/10), 0, "", "")
}

// AtLeast reports whether v satisfies the desktop constraint when v is a
// desktop version, or the ES constraint otherwise. An empty constraint
// never matches.
func (v Version) AtLeast(desktop, es string) bool {
	c := desktop
	if v.ES {
		c = es
	}
	if c == "" {
		return false
	}
	constraint, err := semver.NewConstraint(">= " + c)
	if err != nil {
		return false
	}
	return constraint.Check(v.semver())
}

// SupportsStorageBuffers returns true if this version supports storage buffers.
func (v Version) SupportsStorageBuffers() bool {
	return v.AtLeast("4.3", "3.1")
}

// SupportsExplicitBinding reports whether layout(binding = N) is available.
func (v Version) SupportsExplicitBinding() bool {
	return v.AtLeast("4.2", "3.1")
}

// SupportsVaryingLocations reports whether layout(location = N) may be
// applied to vertex outputs and fragment inputs.
func (v Version) SupportsVaryingLocations() bool {
	return v.AtLeast("4.1", "3.1")
}

// SupportsAttributeLocations reports whether layout(location = N) may be
// applied to vertex inputs and fragment outputs.
func (v Version) SupportsAttributeLocations() bool {
	return v.AtLeast("3.3", "3.0")
}

// SupportsGeometry reports whether geometry shaders are available.
func (v Version) SupportsGeometry() bool {
	return v.AtLeast("1.5", "3.2")
}

// WriterFlags control output formatting.
type WriterFlags uint32

const (
	// WriterFlagNone uses default settings.
	WriterFlagNone WriterFlags = 0

	// WriterFlagDebugInfo adds comments naming loop shapes and hoisted blocks.
	WriterFlagDebugInfo WriterFlags = 1 << iota
)

// Options configures GLSL code generation.
type Options struct {
	// LangVersion is the target GLSL version.
	// Defaults to Version330 if zero.
	LangVersion Version

	// TextureBindingBase adds offset to sampler binding indices.
	TextureBindingBase uint32

	// UniformBindingBase adds offset to uniform block binding indices.
	UniformBindingBase uint32

	// StorageBindingBase adds offset to storage block binding indices.
	StorageBindingBase uint32

	// WriterFlags control output formatting.
	WriterFlags WriterFlags

	// ForceHighPrecision makes the ES default precision highp instead of
	// mediump.
	ForceHighPrecision bool

	// Validate runs ir.Validate on the module before emission.
	Validate bool
}

// DefaultOptions returns sensible default options for GLSL generation.
func DefaultOptions() Options {
	return Options{
		LangVersion:        Version330,
		ForceHighPrecision: true,
		Validate:           true,
	}
}

// TranslationInfo contains metadata about the translation.
type TranslationInfo struct {
	// EntryPointNames maps original entry point names to generated GLSL names.
	EntryPointNames map[string]string

	// UsedExtensions lists GLSL extensions required by the shader.
	UsedExtensions []string

	// RequiredVersion is the minimum GLSL version needed for this shader.
	// May be higher than the requested version if features require it.
	RequiredVersion Version
}

// Compile generates GLSL source code from an IR module.
// Returns the GLSL source as a string, translation info, or an error.
func Compile(module *ir.Module, options Options) (string, TranslationInfo, error) {
	if module == nil {
		return "", TranslationInfo{}, errors.New("glsl: nil module")
	}
	if options.LangVersion.Major == 0 {
		options.LangVersion = Version330
	}

	if options.Validate {
		verrs, err := ir.Validate(module)
		if err != nil {
			return "", TranslationInfo{}, fmt.Errorf("glsl: %w", err)
		}
		if len(verrs) > 0 {
			errs := make([]error, len(verrs))
			for i := range verrs {
				errs[i] = verrs[i]
			}
			return "", TranslationInfo{}, fmt.Errorf("glsl: invalid module: %w", errors.Join(errs...))
		}
	}

	w := newWriter(module, &options)
	if err := w.writeModule(); err != nil {
		return "", TranslationInfo{}, fmt.Errorf("glsl: %w", err)
	}

	info := TranslationInfo{
		EntryPointNames: w.entryPointNames,
		UsedExtensions:  w.extensions,
		RequiredVersion: w.requiredVersion,
	}

	return w.String(), info, nil
}
