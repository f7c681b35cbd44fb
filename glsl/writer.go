// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package glsl

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/gogpu/glass/ir"
)

// nameKey identifies an IR entity for name lookup.
type nameKey struct {
	kind    nameKeyKind
	handle1 uint32
	handle2 uint32
}

type nameKeyKind uint8

const (
	nameKeyType nameKeyKind = iota
	nameKeyStructMember
	nameKeyConstant
	nameKeyGlobalVariable
	nameKeyFunction
	nameKeyFunctionArgument
)

// Writer generates GLSL source code from IR.
type Writer struct {
	module  *ir.Module
	options *Options

	// out receives everything after the #version and #extension lines,
	// which are only known once the body has been written.
	out strings.Builder

	indent int

	names map[nameKey]string
	namer *namer

	typeNames map[ir.TypeHandle]string

	// blocks holds struct types declared only by a named interface block.
	blocks map[ir.TypeHandle]bool

	// Function context (set during function writing)
	currentFunction   *ir.Function
	currentFuncHandle ir.FunctionHandle
	entryFunction     *ir.FunctionHandle
	localNames        map[uint32]string
	namedExpressions  map[ir.ExpressionHandle]string

	// Output tracking
	entryPointNames map[string]string
	extensions      []string
	requiredVersion Version
}

// namer generates unique identifiers.
type namer struct {
	usedNames map[string]struct{}
	counter   uint32
}

func newNamer() *namer {
	return &namer{
		usedNames: make(map[string]struct{}),
	}
}

// call generates a unique name based on the given base.
func (n *namer) call(base string) string {
	escaped := escapeKeyword(sanitize(base))

	if _, used := n.usedNames[escaped]; !used {
		n.usedNames[escaped] = struct{}{}
		return escaped
	}

	for {
		n.counter++
		candidate := fmt.Sprintf("%s_%d", escaped, n.counter)
		if _, used := n.usedNames[candidate]; !used {
			n.usedNames[candidate] = struct{}{}
			return candidate
		}
	}
}

// reserve marks name as taken without escaping it.
func (n *namer) reserve(name string) {
	n.usedNames[name] = struct{}{}
}

// newWriter creates a new GLSL writer.
func newWriter(module *ir.Module, options *Options) *Writer {
	return &Writer{
		module:           module,
		options:          options,
		names:            make(map[nameKey]string),
		namer:            newNamer(),
		typeNames:        make(map[ir.TypeHandle]string),
		entryPointNames:  make(map[string]string),
		namedExpressions: make(map[ir.ExpressionHandle]string),
		requiredVersion:  options.LangVersion,
	}
}

// String returns the generated GLSL source code.
func (w *Writer) String() string {
	var head strings.Builder
	fmt.Fprintf(&head, "#version %s\n", w.requiredVersion.String())
	for _, ext := range w.extensions {
		fmt.Fprintf(&head, "#extension %s : require\n", ext)
	}
	head.WriteByte('\n')
	return head.String() + w.out.String()
}

// writeModule generates GLSL code for the entire module.
func (w *Writer) writeModule() error {
	w.writePrecisionQualifiers()

	w.registerNames()

	if err := w.writeTypes(); err != nil {
		return err
	}

	if err := w.writeConstants(); err != nil {
		return err
	}

	if err := w.writeGlobalVariables(); err != nil {
		return err
	}

	return w.writeFunctions()
}

// writePrecisionQualifiers writes default precision statements for ES.
func (w *Writer) writePrecisionQualifiers() {
	if !w.options.LangVersion.ES {
		return
	}

	precision := "mediump"
	if w.options.ForceHighPrecision {
		precision = "highp"
	}
	w.writeLine("precision %s float;", precision)
	w.writeLine("precision %s int;", precision)
	w.writeLine("")
}

// require records an extension, or raises the required version when the
// target cannot load one.
func (w *Writer) require(ext string) {
	if !slices.Contains(w.extensions, ext) {
		w.extensions = append(w.extensions, ext)
	}
}

// raise bumps the required version to at least v.
func (w *Writer) raise(v Version) {
	if v.ES != w.requiredVersion.ES {
		return
	}
	if int(v.Major)*100+int(v.Minor) > int(w.requiredVersion.Major)*100+int(w.requiredVersion.Minor) {
		w.requiredVersion = v
	}
}

// registerNames assigns unique names to all IR entities.
//
//nolint:gocognit // Name registration requires handling all IR entity types
func (w *Writer) registerNames() {
	// Builtins keep their GLSL names.
	for _, global := range w.module.GlobalVariables {
		if _, ok := global.Binding.(ir.BuiltinBinding); ok {
			w.namer.reserve(global.Name)
		}
	}
	w.namer.reserve("main")

	for handle, typ := range w.module.Types {
		st, ok := typ.Inner.(ir.StructType)
		if !ok {
			continue
		}
		baseName := typ.Name
		if baseName == "" {
			baseName = fmt.Sprintf("type_%d", handle)
		}
		name := w.namer.call(baseName)
		w.names[nameKey{kind: nameKeyType, handle1: uint32(handle)}] = name //nolint:gosec // G115: handle is valid slice index
		w.typeNames[ir.TypeHandle(handle)] = name                           //nolint:gosec // G115: handle is valid slice index

		for memberIdx, member := range st.Members {
			memberName := member.Name
			if memberName == "" {
				memberName = fmt.Sprintf("member_%d", memberIdx)
			}
			w.names[nameKey{kind: nameKeyStructMember, handle1: uint32(handle), handle2: uint32(memberIdx)}] = escapeKeyword(sanitize(memberName)) //nolint:gosec // G115: handle is valid slice index
		}
	}

	for handle, constant := range w.module.Constants {
		baseName := constant.Name
		if baseName == "" {
			baseName = fmt.Sprintf("const_%d", handle)
		}
		w.names[nameKey{kind: nameKeyConstant, handle1: uint32(handle)}] = w.namer.call(baseName) //nolint:gosec // G115: handle is valid slice index
	}

	for handle, global := range w.module.GlobalVariables {
		key := nameKey{kind: nameKeyGlobalVariable, handle1: uint32(handle)} //nolint:gosec // G115: handle is valid slice index
		if _, ok := global.Binding.(ir.BuiltinBinding); ok {
			w.names[key] = global.Name
			continue
		}
		baseName := global.Name
		if baseName == "" {
			baseName = fmt.Sprintf("global_%d", handle)
		}
		w.names[key] = w.namer.call(baseName)
	}

	if len(w.module.EntryPoints) > 0 {
		ep := w.module.EntryPoints[0]
		w.entryFunction = &ep.Function
		w.entryPointNames[ep.Name] = "main"
	}

	for handle := range w.module.Functions {
		fn := &w.module.Functions[handle]
		key := nameKey{kind: nameKeyFunction, handle1: uint32(handle)} //nolint:gosec // G115: handle is valid slice index
		if w.isEntry(ir.FunctionHandle(handle)) {                      //nolint:gosec // G115: handle is valid slice index
			w.names[key] = "main"
		} else {
			baseName := fn.Name
			if baseName == "" {
				baseName = fmt.Sprintf("function_%d", handle)
			}
			w.names[key] = w.namer.call(baseName)
		}

		for argIdx, arg := range fn.Arguments {
			argName := arg.Name
			if argName == "" {
				argName = fmt.Sprintf("arg_%d", argIdx)
			}
			w.names[nameKey{kind: nameKeyFunctionArgument, handle1: uint32(handle), handle2: uint32(argIdx)}] = escapeKeyword(sanitize(argName)) //nolint:gosec // G115: handle is valid slice index
		}
	}
}

func (w *Writer) isEntry(h ir.FunctionHandle) bool {
	return w.entryFunction != nil && *w.entryFunction == h
}

// blockTypes returns the struct types that are only used as the type of a
// named interface block. They are declared by the block itself.
func (w *Writer) blockTypes() map[ir.TypeHandle]bool {
	blocks := make(map[ir.TypeHandle]bool)
	for _, global := range w.module.GlobalVariables {
		if global.Layout != ir.LayoutNone {
			blocks[global.Type] = true
		}
	}
	if len(blocks) == 0 {
		return blocks
	}
	used := func(h ir.TypeHandle) {
		if blocks[h] {
			delete(blocks, h)
		}
	}
	for _, typ := range w.module.Types {
		switch t := typ.Inner.(type) {
		case ir.StructType:
			for _, m := range t.Members {
				used(m.Type)
			}
		case ir.ArrayType:
			used(t.Base)
		}
	}
	for _, c := range w.module.Constants {
		used(c.Type)
	}
	for i := range w.module.Functions {
		fn := &w.module.Functions[i]
		for _, arg := range fn.Arguments {
			used(arg.Type)
		}
		if fn.Result != nil {
			used(fn.Result.Type)
		}
		for _, lv := range fn.LocalVars {
			used(lv.Type)
		}
		for _, e := range fn.Expressions {
			switch k := e.Kind.(type) {
			case ir.ExprCompose:
				used(k.Type)
			case ir.ExprZeroValue:
				used(k.Type)
			}
		}
	}
	return blocks
}

// writeTypes writes struct type definitions.
func (w *Writer) writeTypes() error {
	w.blocks = w.blockTypes()
	for handle, typ := range w.module.Types {
		st, ok := typ.Inner.(ir.StructType)
		if !ok || w.blocks[ir.TypeHandle(handle)] { //nolint:gosec // G115: handle is valid slice index
			continue
		}

		w.writeLine("struct %s {", w.typeNames[ir.TypeHandle(handle)]) //nolint:gosec // G115: handle is valid slice index
		w.pushIndent()
		w.writeMembers(ir.TypeHandle(handle), st) //nolint:gosec // G115: handle is valid slice index
		w.popIndent()
		w.writeLine("};")
		w.writeLine("")
	}
	return nil
}

func (w *Writer) writeMembers(handle ir.TypeHandle, st ir.StructType) {
	for memberIdx, member := range st.Members {
		memberName := w.names[nameKey{kind: nameKeyStructMember, handle1: uint32(handle), handle2: uint32(memberIdx)}] //nolint:gosec // G115: memberIdx is bounded by slice length
		qual := precisionQualifier(member.Precision)
		if member.RowMajor {
			qual = "layout(row_major) " + qual
		}
		w.writeLine("%s%s %s%s;", qual, w.getBaseTypeName(member.Type), memberName, w.getArraySuffix(member.Type))
	}
}

// writeConstants writes constant definitions.
func (w *Writer) writeConstants() error {
	for handle, constant := range w.module.Constants {
		name := w.names[nameKey{kind: nameKeyConstant, handle1: uint32(handle)}] //nolint:gosec // G115: handle is valid slice index
		baseType := w.getBaseTypeName(constant.Type)
		arraySuffix := w.getArraySuffix(constant.Type)
		value := w.writeConstantValue(constant)
		w.writeLine("const %s %s%s = %s;", baseType, name, arraySuffix, value)
	}
	if len(w.module.Constants) > 0 {
		w.writeLine("")
	}
	return nil
}

// writeConstantValue returns the GLSL representation of a constant value.
func (w *Writer) writeConstantValue(constant ir.Constant) string {
	switch v := constant.Value.(type) {
	case ir.ScalarValue:
		return w.writeScalarValue(v, constant.Type)
	case ir.CompositeValue:
		return w.writeCompositeValue(v, constant.Type)
	default:
		return w.zeroValue(constant.Type)
	}
}

// writeScalarValue returns the GLSL representation of a scalar value.
func (w *Writer) writeScalarValue(v ir.ScalarValue, typeHandle ir.TypeHandle) string {
	width := uint8(4)
	if int(typeHandle) < len(w.module.Types) {
		if scalar, ok := w.module.Types[typeHandle].Inner.(ir.ScalarType); ok {
			width = scalar.Width
		}
	}
	switch v.Kind {
	case ir.ScalarBool:
		if v.Bits != 0 {
			return "true"
		}
		return "false"
	case ir.ScalarSint:
		if width == 8 {
			return fmt.Sprintf("%dl", int64(v.Bits))
		}
		return fmt.Sprintf("%d", int32(v.Bits)) //nolint:gosec // G115: bit pattern of a 32-bit value
	case ir.ScalarUint:
		if width == 8 {
			return fmt.Sprintf("%dul", v.Bits)
		}
		return fmt.Sprintf("%du", uint32(v.Bits)) //nolint:gosec // G115: bit pattern of a 32-bit value
	case ir.ScalarFloat:
		if width == 8 {
			return formatFloat64(math.Float64frombits(v.Bits))
		}
		return formatFloat(math.Float32frombits(uint32(v.Bits))) //nolint:gosec // G115: bit pattern of a 32-bit value
	default:
		return "0"
	}
}

// writeCompositeValue returns the GLSL representation of a composite value.
func (w *Writer) writeCompositeValue(v ir.CompositeValue, typeHandle ir.TypeHandle) string {
	components := make([]string, 0, len(v.Components))
	for _, compHandle := range v.Components {
		if int(compHandle) < len(w.module.Constants) {
			components = append(components, w.writeConstantValue(w.module.Constants[compHandle]))
		} else {
			components = append(components, "0")
		}
	}
	return fmt.Sprintf("%s(%s)", w.getTypeName(typeHandle), strings.Join(components, ", "))
}

// zeroValue returns a constructor expression for the zero value of a type.
func (w *Writer) zeroValue(handle ir.TypeHandle) string {
	if int(handle) >= len(w.module.Types) {
		return "0"
	}
	switch t := w.module.Types[handle].Inner.(type) {
	case ir.ScalarType:
		return scalarZero(t)
	case ir.VectorType:
		return fmt.Sprintf("%s(%s)", vectorToGLSL(t), scalarZero(t.Scalar))
	case ir.MatrixType:
		return fmt.Sprintf("%s(%s)", matrixToGLSL(t), scalarZero(t.Scalar))
	case ir.ArrayType:
		if t.Size.Constant == nil {
			return "0"
		}
		elem := w.zeroValue(t.Base)
		parts := make([]string, *t.Size.Constant)
		for i := range parts {
			parts[i] = elem
		}
		return fmt.Sprintf("%s(%s)", w.getTypeName(handle), strings.Join(parts, ", "))
	case ir.StructType:
		parts := make([]string, len(t.Members))
		for i, m := range t.Members {
			parts[i] = w.zeroValue(m.Type)
		}
		return fmt.Sprintf("%s(%s)", w.getTypeName(handle), strings.Join(parts, ", "))
	default:
		return "0"
	}
}

func scalarZero(s ir.ScalarType) string {
	switch s.Kind {
	case ir.ScalarBool:
		return "false"
	case ir.ScalarUint:
		return "0u"
	case ir.ScalarFloat:
		if s.Width == 8 {
			return "0.0lf"
		}
		return "0.0"
	default:
		return "0"
	}
}

// writeGlobalVariables writes interface blocks, uniform, input, output,
// and private declarations.
//
//nolint:gocognit // Each address space has its own declaration form
func (w *Writer) writeGlobalVariables() error {
	written := make(map[string]bool)
	for handle, global := range w.module.GlobalVariables {
		name := w.names[nameKey{kind: nameKeyGlobalVariable, handle1: uint32(handle)}] //nolint:gosec // G115: handle is valid slice index

		switch {
		case global.Block != nil:
			if !written[global.Block.Block] {
				written[global.Block.Block] = true
				w.writeHoistedBlock(global)
			}
			continue
		case global.Layout != ir.LayoutNone:
			w.writeNamedBlock(name, global)
			continue
		}

		if _, ok := global.Binding.(ir.BuiltinBinding); ok {
			continue
		}

		baseType := w.getBaseTypeName(global.Type)
		arraySuffix := w.getArraySuffix(global.Type)
		prec := precisionQualifier(global.Precision)

		switch global.Space {
		case ir.SpaceIn, ir.SpaceOut:
			w.writeLine("%s%s%s %s%s;", w.ioQualifiers(global), prec, baseType, name, arraySuffix)
		case ir.SpaceUniform, ir.SpaceHandle:
			layout := ""
			if global.Resource != nil && w.isSampler(global.Type) && w.options.LangVersion.SupportsExplicitBinding() {
				layout = fmt.Sprintf("layout(binding = %d) ", global.Resource.Binding+w.options.TextureBindingBase)
			}
			w.writeLine("%suniform %s%s %s%s;", layout, prec, baseType, name, arraySuffix)
		case ir.SpaceWorkGroup:
			w.writeLine("shared %s%s %s%s;", prec, baseType, name, arraySuffix)
		case ir.SpaceStorage:
			return fmt.Errorf("global %q: storage variables must be declared as blocks", global.Name)
		default:
			if global.Init != nil && int(*global.Init) < len(w.module.Constants) {
				value := w.writeConstantValue(w.module.Constants[*global.Init])
				w.writeLine("%s%s %s%s = %s;", prec, baseType, name, arraySuffix, value)
			} else {
				w.writeLine("%s%s %s%s;", prec, baseType, name, arraySuffix)
			}
		}
	}
	if len(w.module.GlobalVariables) > 0 {
		w.writeLine("")
	}
	return nil
}

// ioQualifiers returns the layout, interpolation and storage qualifiers of
// a pipeline input or output.
func (w *Writer) ioQualifiers(global ir.GlobalVariable) string {
	var b strings.Builder
	loc, ok := global.Binding.(ir.LocationBinding)
	if ok && w.locationAllowed(global.Space) {
		fmt.Fprintf(&b, "layout(location = %d) ", loc.Location)
	}
	if ok && loc.Interpolation != nil {
		switch loc.Interpolation.Kind {
		case ir.InterpolationFlat:
			b.WriteString("flat ")
		case ir.InterpolationNoPerspective:
			b.WriteString("noperspective ")
		}
		switch loc.Interpolation.Sampling {
		case ir.SamplingCentroid:
			b.WriteString("centroid ")
		case ir.SamplingSample:
			b.WriteString("sample ")
		}
	}
	if global.Space == ir.SpaceIn {
		b.WriteString("in ")
	} else {
		b.WriteString("out ")
	}
	return b.String()
}

// locationAllowed reports whether explicit locations may be written on a
// variable of the given space for the current stage.
func (w *Writer) locationAllowed(space ir.AddressSpace) bool {
	v := w.options.LangVersion
	stage := ir.StageVertex
	if len(w.module.EntryPoints) > 0 {
		stage = w.module.EntryPoints[0].Stage
	}
	attribute := (stage == ir.StageVertex && space == ir.SpaceIn) ||
		(stage == ir.StageFragment && space == ir.SpaceOut)
	if attribute {
		return v.SupportsAttributeLocations()
	}
	return v.SupportsVaryingLocations()
}

// blockQualifiers returns the layout and storage keyword of a block.
func (w *Writer) blockQualifiers(space ir.AddressSpace, layout ir.BlockLayout, res *ir.ResourceBinding) (string, error) {
	var parts []string
	if name := layoutName(layout); name != "" {
		parts = append(parts, name)
	}
	keyword := "uniform"
	base := w.options.UniformBindingBase
	if space == ir.SpaceStorage {
		if !w.options.LangVersion.SupportsStorageBuffers() {
			return "", fmt.Errorf("storage blocks require GLSL 4.30 or ES 3.10, have %s", w.options.LangVersion)
		}
		keyword = "buffer"
		base = w.options.StorageBindingBase
	}
	if res != nil && w.options.LangVersion.SupportsExplicitBinding() {
		parts = append(parts, fmt.Sprintf("binding = %d", res.Binding+base))
	}
	if len(parts) == 0 {
		return keyword, nil
	}
	return fmt.Sprintf("layout(%s) %s", strings.Join(parts, ", "), keyword), nil
}

// writeNamedBlock writes an interface block with an instance name.
func (w *Writer) writeNamedBlock(name string, global ir.GlobalVariable) {
	st, ok := w.module.Types[global.Type].Inner.(ir.StructType)
	if !ok {
		// Arrays of blocks and plain types are wrapped in a one-member block.
		qual, err := w.blockQualifiers(global.Space, global.Layout, global.Resource)
		if err != nil {
			qual = "uniform"
		}
		w.writeLine("%s %s_block { %s %s%s; };", qual, name, w.getBaseTypeName(global.Type), name, w.getArraySuffix(global.Type))
		return
	}
	qual, err := w.blockQualifiers(global.Space, global.Layout, global.Resource)
	if err != nil {
		qual = "uniform"
	}
	blockName := w.typeNames[global.Type]
	if !w.blocks[global.Type] {
		blockName = w.namer.call(blockName + "_block")
	}
	w.writeLine("%s %s {", qual, blockName)
	w.pushIndent()
	w.writeMembers(global.Type, st)
	w.popIndent()
	w.writeLine("} %s;", name)
}

// writeHoistedBlock regroups the globals hoisted out of one anonymous block
// into a block declaration without an instance name.
func (w *Writer) writeHoistedBlock(first ir.GlobalVariable) {
	qual, err := w.blockQualifiers(first.Space, first.Block.Layout, first.Resource)
	if err != nil {
		qual = "uniform"
	}
	if w.options.WriterFlags&WriterFlagDebugInfo != 0 {
		w.writeLine("// anonymous block %s", first.Block.Block)
	}
	w.writeLine("%s %s {", qual, escapeKeyword(sanitize(first.Block.Block)))
	w.pushIndent()
	for handle, global := range w.module.GlobalVariables {
		if global.Block == nil || global.Block.Block != first.Block.Block {
			continue
		}
		name := w.names[nameKey{kind: nameKeyGlobalVariable, handle1: uint32(handle)}] //nolint:gosec // G115: handle is valid slice index
		w.writeLine("%s%s %s%s;", precisionQualifier(global.Precision), w.getBaseTypeName(global.Type), name, w.getArraySuffix(global.Type))
	}
	w.popIndent()
	w.writeLine("};")
}

func (w *Writer) isSampler(h ir.TypeHandle) bool {
	for int(h) < len(w.module.Types) {
		switch t := w.module.Types[h].Inner.(type) {
		case ir.ImageType:
			return true
		case ir.ArrayType:
			h = t.Base
		default:
			return false
		}
	}
	return false
}

func layoutName(l ir.BlockLayout) string {
	switch l {
	case ir.LayoutStd140:
		return "std140"
	case ir.LayoutStd430:
		return "std430"
	case ir.LayoutShared:
		return "shared"
	case ir.LayoutPacked:
		return "packed"
	}
	return ""
}

func precisionQualifier(p ir.Precision) string {
	switch p {
	case ir.PrecisionLow:
		return "lowp "
	case ir.PrecisionMedium:
		return "mediump "
	case ir.PrecisionHigh:
		return "highp "
	}
	return ""
}

// writeFunctions writes prototypes for helper functions, then every
// function definition, with the entry point last as void main().
func (w *Writer) writeFunctions() error {
	var helpers []ir.FunctionHandle
	for handle := range w.module.Functions {
		if !w.isEntry(ir.FunctionHandle(handle)) { //nolint:gosec // G115: handle is valid slice index
			helpers = append(helpers, ir.FunctionHandle(handle)) //nolint:gosec // G115: handle is valid slice index
		}
	}
	if len(helpers) > 1 {
		for _, h := range helpers {
			w.writeLine("%s;", w.functionSignature(h, &w.module.Functions[h]))
		}
		w.writeLine("")
	}
	for _, h := range helpers {
		if err := w.writeFunction(h, &w.module.Functions[h]); err != nil {
			return err
		}
	}
	if w.entryFunction != nil && int(*w.entryFunction) < len(w.module.Functions) {
		return w.writeFunction(*w.entryFunction, &w.module.Functions[*w.entryFunction])
	}
	return nil
}

func (w *Writer) functionSignature(handle ir.FunctionHandle, fn *ir.Function) string {
	name := w.names[nameKey{kind: nameKeyFunction, handle1: uint32(handle)}]

	returnType := "void"
	if fn.Result != nil && !w.isEntry(handle) {
		returnType = w.getTypeName(fn.Result.Type)
	}

	args := make([]string, 0, len(fn.Arguments))
	for argIdx, arg := range fn.Arguments {
		argName := w.names[nameKey{kind: nameKeyFunctionArgument, handle1: uint32(handle), handle2: uint32(argIdx)}] //nolint:gosec // G115: argIdx is bounded by slice length
		qual := ""
		typ := arg.Type
		if ptr, ok := w.module.Types[arg.Type].Inner.(ir.PointerType); ok {
			qual = "inout "
			typ = ptr.Base
		}
		args = append(args, fmt.Sprintf("%s%s %s%s", qual, w.getBaseTypeName(typ), argName, w.getArraySuffix(typ)))
	}
	return fmt.Sprintf("%s %s(%s)", returnType, name, strings.Join(args, ", "))
}

// writeFunction writes a single function definition.
func (w *Writer) writeFunction(handle ir.FunctionHandle, fn *ir.Function) error {
	w.currentFunction = fn
	w.currentFuncHandle = handle
	w.localNames = make(map[uint32]string)
	w.namedExpressions = make(map[ir.ExpressionHandle]string)

	w.writeLine("%s {", w.functionSignature(handle, fn))
	w.pushIndent()

	if err := w.writeLocalVars(fn); err != nil {
		return err
	}

	if err := w.writeBlock(fn.Body); err != nil {
		return fmt.Errorf("function %s: %w", fn.Name, err)
	}

	w.popIndent()
	w.writeLine("}")
	w.writeLine("")

	w.currentFunction = nil
	return nil
}

// writeLocalVars writes local variable declarations, including initializers if present.
func (w *Writer) writeLocalVars(fn *ir.Function) error {
	for localIdx, local := range fn.LocalVars {
		base := local.Name
		if base == "" {
			base = fmt.Sprintf("local%d", localIdx)
		}
		localName := w.namer.call(base)
		w.localNames[uint32(localIdx)] = localName //nolint:gosec // G115: localIdx is valid slice index
		baseType := w.getBaseTypeName(local.Type)
		arraySuffix := w.getArraySuffix(local.Type)

		if local.Init != nil {
			initStr, err := w.writeExpression(*local.Init)
			if err != nil {
				return err
			}
			w.writeLine("%s %s%s = %s;", baseType, localName, arraySuffix, initStr)
		} else {
			w.writeLine("%s %s%s;", baseType, localName, arraySuffix)
		}
	}
	return nil
}

// Output helpers

// writeLine writes a line with indentation and newline.
//
//nolint:goprintffuncname
func (w *Writer) writeLine(format string, args ...any) {
	if format == "" && len(args) == 0 {
		w.out.WriteByte('\n')
		return
	}
	w.writeIndent()
	if len(args) == 0 {
		w.out.WriteString(format)
	} else {
		fmt.Fprintf(&w.out, format, args...)
	}
	w.out.WriteByte('\n')
}

// writeIndent writes the current indentation.
func (w *Writer) writeIndent() {
	for i := 0; i < w.indent; i++ {
		w.out.WriteString("    ")
	}
}

func (w *Writer) pushIndent() {
	w.indent++
}

func (w *Writer) popIndent() {
	if w.indent > 0 {
		w.indent--
	}
}

// getTypeName returns the GLSL type name for a type handle.
// For arrays, this returns the full type including size (e.g., "vec2[3]").
// Use getBaseTypeName + getArraySuffix for variable declarations.
func (w *Writer) getTypeName(handle ir.TypeHandle) string {
	if int(handle) >= len(w.module.Types) {
		return fmt.Sprintf("type_%d", handle)
	}
	if name, ok := w.typeNames[handle]; ok {
		return name
	}
	return w.typeInnerToGLSL(w.module.Types[handle].Inner)
}

// getBaseTypeName returns the base GLSL type name, unwrapping arrays.
// For "array<vec2, 3>" returns "vec2". For non-arrays, same as getTypeName.
func (w *Writer) getBaseTypeName(handle ir.TypeHandle) string {
	if int(handle) >= len(w.module.Types) {
		return fmt.Sprintf("type_%d", handle)
	}
	if arr, ok := w.module.Types[handle].Inner.(ir.ArrayType); ok {
		return w.getBaseTypeName(arr.Base)
	}
	return w.getTypeName(handle)
}

// getArraySuffix returns the array size suffix(es) for a type handle.
// Handles nested arrays: "array<array<float, 4>, 3>" returns "[3][4]".
func (w *Writer) getArraySuffix(handle ir.TypeHandle) string {
	if int(handle) >= len(w.module.Types) {
		return ""
	}
	arr, ok := w.module.Types[handle].Inner.(ir.ArrayType)
	if !ok {
		return ""
	}
	if arr.Size.Constant != nil {
		return fmt.Sprintf("[%d]", *arr.Size.Constant) + w.getArraySuffix(arr.Base)
	}
	return "[]" + w.getArraySuffix(arr.Base)
}

// formatFloat formats a float32 for GLSL output.
func formatFloat(f float32) string {
	s := fmt.Sprintf("%g", f)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// formatFloat64 formats a float64 for GLSL output.
func formatFloat64(f float64) string {
	s := fmt.Sprintf("%g", f)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s + "lf"
}
