// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/llir/llvm/asm"
	"github.com/spf13/cobra"

	"github.com/gogpu/glass"
	"github.com/gogpu/glass/interp"
	"github.com/gogpu/glass/ir"
	"github.com/gogpu/glass/metadata"
)

var evalCmd = &cobra.Command{
	Use:   "eval [flags] <file.ll> <function> [args...]",
	Short: "Run a translated function on the reference evaluator",
	Long: `Translate a module and execute one of its functions on the structured form.
Scalar arguments are parsed according to the function's parameter types.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runEval,
}

func init() {
	addTranslateFlags(evalCmd)
	evalCmd.Flags().StringP("meta", "m", "", "metadata sidecar")
	evalCmd.Flags().StringSlice("set", nil, "initialize a scalar global (name=value)")
	evalCmd.Flags().StringSlice("print", nil, "print a global after the call")
}

func runEval(cmd *cobra.Command, args []string) error {
	opts, err := translateOptions(cmd)
	if err != nil {
		return err
	}
	path, name := args[0], args[1]

	m, err := asm.ParseFile(path)
	if err != nil {
		return fmt.Errorf("parse error: %w", err)
	}
	var md *metadata.Table
	if meta, _ := cmd.Flags().GetString("meta"); meta != "" {
		if md, err = metadata.LoadFile(meta); err != nil {
			return err
		}
	}
	res, err := glass.Translate(m, md, opts)
	if err != nil {
		return err
	}

	mc, err := interp.New(res.Module)
	if err != nil {
		return err
	}
	sets, _ := cmd.Flags().GetStringSlice("set")
	for _, s := range sets {
		gname, text, ok := strings.Cut(s, "=")
		if !ok {
			return fmt.Errorf("--set %q: want name=value", s)
		}
		ty, ok := globalType(res.Module, gname)
		if !ok {
			return fmt.Errorf("--set: no global named %q", gname)
		}
		v, err := parseScalar(res.Module, ty, text)
		if err != nil {
			return fmt.Errorf("--set %s: %w", gname, err)
		}
		if err := mc.SetGlobal(gname, v); err != nil {
			return err
		}
	}

	fn, ok := findFunction(res.Module, name)
	if !ok {
		return fmt.Errorf("no function named %q", name)
	}
	if len(args)-2 != len(fn.Arguments) {
		return fmt.Errorf("%s takes %d arguments, got %d", name, len(fn.Arguments), len(args)-2)
	}
	values := make([]interp.Value, len(fn.Arguments))
	for i, a := range fn.Arguments {
		if values[i], err = parseScalar(res.Module, a.Type, args[i+2]); err != nil {
			return fmt.Errorf("argument %s: %w", a.Name, err)
		}
	}

	out, err := mc.Run(name, values...)
	if err != nil {
		return err
	}
	if out != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "%v\n", out)
	}
	prints, _ := cmd.Flags().GetStringSlice("print")
	for _, g := range prints {
		v, err := mc.Global(g)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", g, v)
	}
	return nil
}

func findFunction(m *ir.Module, name string) (*ir.Function, bool) {
	for i := range m.Functions {
		if m.Functions[i].Name == name {
			return &m.Functions[i], true
		}
	}
	return nil, false
}

func globalType(m *ir.Module, name string) (ir.TypeHandle, bool) {
	for _, g := range m.GlobalVariables {
		if g.Name == name {
			return g.Type, true
		}
	}
	return 0, false
}

// parseScalar converts text to the interp value of a scalar type.
func parseScalar(m *ir.Module, ty ir.TypeHandle, text string) (interp.Value, error) {
	if int(ty) >= len(m.Types) {
		return nil, fmt.Errorf("invalid type handle %d", ty)
	}
	s, ok := m.Types[ty].Inner.(ir.ScalarType)
	if !ok {
		return nil, fmt.Errorf("only scalar values can be given on the command line")
	}
	switch s.Kind {
	case ir.ScalarBool:
		return strconv.ParseBool(text)
	case ir.ScalarSint:
		v, err := strconv.ParseInt(text, 0, 32)
		return int32(v), err
	case ir.ScalarUint:
		v, err := strconv.ParseUint(text, 0, 32)
		return uint32(v), err
	case ir.ScalarFloat:
		v, err := strconv.ParseFloat(text, 32)
		return float32(v), err
	}
	return nil, fmt.Errorf("unsupported scalar kind %v", s.Kind)
}
