// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package translate

import (
	"errors"
	"fmt"

	llir "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"

	"github.com/gogpu/glass/ir"
	"github.com/gogpu/glass/metadata"
)

// AddStructType registers metadata for a named struct type and declares it.
func (t *Translator) AddStructType(name string, ty types.Type, md *metadata.Node) error {
	if err := t.ready("AddStructType"); err != nil {
		return err
	}
	if md == nil {
		md = t.meta.Type(name)
	}
	if md != nil {
		t.structMD[ty] = md
	}
	_, err := t.translateType(ty, md, true)
	return t.settle("struct", err)
}

// AddGlobal declares a module-scope variable. Uniforms, buffers, shared
// and private variables come through here; pipeline IO is forwarded to
// AddIODeclaration.
func (t *Translator) AddGlobal(g *llir.Global, md *metadata.Node) error {
	if err := t.ready("AddGlobal"); err != nil {
		return err
	}
	if md == nil {
		md = t.meta.Global(g.Name())
	}
	if md != nil {
		t.globalMD[g.Name()] = md
		if md.Qualifier.IsIO() {
			return t.AddIODeclaration(g, md.Qualifier, md)
		}
	}
	return t.settle("global", t.declareGlobal(g, md))
}

func (t *Translator) declareGlobal(g *llir.Global, md *metadata.Node) error {
	if md.IsBlock() && md.Anonymous && t.opts.Hoist != nil {
		return t.hoistBlock(g, md)
	}
	_, err := t.bind(g.Name(), func(name string) (ir.GlobalVariable, error) {
		gv, err := t.newGlobal(name, g.ContentType, md)
		if err != nil {
			return gv, err
		}
		if g.Init != nil && gv.Space == ir.SpacePrivate {
			c, err := t.constantValue("", g.Init, md)
			if err != nil {
				return gv, err
			}
			// Initializers run at the top of the entry point so later
			// stores are not folded into the declaration.
			t.prologue = append(t.prologue, globalInit{global: ir.GlobalVariableHandle(len(t.module.GlobalVariables)), value: c})
		}
		return gv, nil
	})
	return err
}

func (t *Translator) newGlobal(name string, ty types.Type, md *metadata.Node) (ir.GlobalVariable, error) {
	th, err := t.translateType(ty, md, true)
	if err != nil {
		return ir.GlobalVariable{}, err
	}
	gv := ir.GlobalVariable{Name: name, Space: ir.SpacePrivate, Type: th}
	if b, ok := ir.LookupBuiltin(name); ok {
		gv.Space = b.Info().Space
		gv.Binding = ir.BuiltinBinding{Builtin: b}
		return gv, nil
	}
	if md == nil {
		return gv, nil
	}
	gv.Precision = precisionOf(md.Precision)
	switch md.Qualifier {
	case metadata.QualifierUniform:
		gv.Space = ir.SpaceUniform
	case metadata.QualifierBuffer:
		gv.Space = ir.SpaceStorage
	case metadata.QualifierShared:
		gv.Space = ir.SpaceWorkGroup
	}
	if md.IsBlock() {
		gv.Layout = layoutOf(md)
		if gv.Space == ir.SpacePrivate {
			gv.Space = ir.SpaceUniform
		}
	}
	if set, binding, ok := md.SetBinding(); ok {
		gv.Resource = &ir.ResourceBinding{Group: set, Binding: binding}
	}
	return gv, nil
}

// hoistBlock declares the members of an anonymous block through the
// configured HoistFunc.
func (t *Translator) hoistBlock(g *llir.Global, md *metadata.Node) error {
	name := t.canonical(g.Name())
	if _, ok := t.anon[name]; ok {
		return nil
	}
	block, err := t.newGlobal(name, g.ContentType, md)
	if err != nil {
		return err
	}
	st, ok := t.registry.GetTypes()[block.Type].Inner.(ir.StructType)
	if !ok {
		return t.unsupported("block", "anonymous block %s is not a struct", name)
	}
	typeName := md.TypeName
	if typeName == "" {
		typeName = t.registry.GetTypes()[block.Type].Name
	}
	members := t.opts.Hoist(AnonBlock{
		Global:   name,
		TypeName: typeName,
		Space:    block.Space,
		Layout:   block.Layout,
		Resource: block.Resource,
		Type:     block.Type,
		Members:  st.Members,
	})
	if len(members) != len(st.Members) {
		return t.unsupported("block", "hoisting %s produced %d globals for %d members", name, len(members), len(st.Members))
	}
	handles := make([]ir.GlobalVariableHandle, len(members))
	for i := range members {
		gv := members[i]
		h, err := t.bind(gv.Name, func(string) (ir.GlobalVariable, error) { return gv, nil })
		if err != nil {
			return err
		}
		handles[i] = h
	}
	t.anon[name] = handles
	t.module.AnonBlocks = append(t.module.AnonBlocks, typeName)
	return nil
}

// AddGlobalConst declares an immutable global as a named constant.
func (t *Translator) AddGlobalConst(g *llir.Global) error {
	if err := t.ready("AddGlobalConst"); err != nil {
		return err
	}
	if g.Init == nil {
		return t.settle("constant", t.unsupported("constant", "%s has no initializer", g.Name()))
	}
	if _, ok := t.consts[g.Name()]; ok {
		return nil
	}
	h, err := t.constantValue(g.Name(), g.Init, t.globalMetadata(g.Name()))
	if err != nil {
		return t.settle("constant", err)
	}
	t.consts[g.Name()] = h
	return nil
}

// AddIODeclaration declares a pipeline input or output.
func (t *Translator) AddIODeclaration(g *llir.Global, q metadata.Qualifier, md *metadata.Node) error {
	if err := t.ready("AddIODeclaration"); err != nil {
		return err
	}
	if !q.IsIO() {
		return t.settle("io", t.unsupported("io", "%s has qualifier %s", g.Name(), q))
	}
	if md != nil {
		t.globalMD[g.Name()] = md
	}
	_, err := t.bind(g.Name(), func(name string) (ir.GlobalVariable, error) {
		return t.newIO(name, g.ContentType, q, md)
	})
	return t.settle("io", err)
}

func (t *Translator) newIO(name string, ty types.Type, q metadata.Qualifier, md *metadata.Node) (ir.GlobalVariable, error) {
	space := ir.SpaceIn
	if q == metadata.QualifierOut {
		space = ir.SpaceOut
	}
	builtin := name
	if md != nil && md.Builtin != "" {
		builtin = md.Builtin
	}
	if b, ok := ir.LookupBuiltin(builtin); ok {
		th, err := t.translateType(ty, md, b.Info().Kind != ir.ScalarUint)
		if err != nil {
			return ir.GlobalVariable{}, err
		}
		return ir.GlobalVariable{Name: b.String(), Space: space, Type: th, Binding: ir.BuiltinBinding{Builtin: b}}, nil
	}
	th, err := t.translateType(ty, md, true)
	if err != nil {
		return ir.GlobalVariable{}, err
	}
	loc := ir.LocationBinding{}
	if md != nil && md.Location != nil {
		loc.Location = *md.Location
	} else {
		loc.Location = t.locations[space]
	}
	if loc.Location >= t.locations[space] {
		t.locations[space] = loc.Location + 1
	}
	if md != nil {
		interp := ir.Interpolation{}
		switch md.Interpolation {
		case metadata.InterpolationFlat:
			interp.Kind = ir.InterpolationFlat
		case metadata.InterpolationNoPerspective:
			interp.Kind = ir.InterpolationNoPerspective
		}
		switch {
		case md.Centroid:
			interp.Sampling = ir.SamplingCentroid
		case md.Sample:
			interp.Sampling = ir.SamplingSample
		}
		if md.Interpolation != metadata.InterpolationDefault || md.Centroid || md.Sample {
			loc.Interpolation = &interp
		}
	}
	gv := ir.GlobalVariable{Name: name, Space: space, Type: th, Binding: loc}
	if md != nil {
		gv.Precision = precisionOf(md.Precision)
	}
	return gv, nil
}

// AddAlias makes alias another name for canonical. Both names resolve to
// one declaration.
func (t *Translator) AddAlias(alias, canonical string) error {
	if err := t.ready("AddAlias"); err != nil {
		return err
	}
	if alias == canonical {
		return nil
	}
	if t.canonical(canonical) == alias {
		return t.settle("alias", t.unsupported("alias", "%s and %s alias each other", alias, canonical))
	}
	if h, ok := t.bindings[alias]; ok {
		if c, ok := t.bindings[t.canonical(canonical)]; ok && c != h {
			t.note(SeverityWarning, "alias", alias, "already declared separately from "+canonical)
			return nil
		}
		t.bindings[t.canonical(canonical)] = h
	}
	t.aliases[alias] = canonical
	return nil
}

// canonical resolves name through the alias table.
func (t *Translator) canonical(name string) string {
	for i := 0; i < 16; i++ {
		next, ok := t.aliases[name]
		if !ok || next == name {
			break
		}
		name = next
	}
	return name
}

// bind returns the declaration of name, creating it on first use.
func (t *Translator) bind(name string, create func(name string) (ir.GlobalVariable, error)) (ir.GlobalVariableHandle, error) {
	name = t.canonical(name)
	if h, ok := t.bindings[name]; ok {
		return h, nil
	}
	gv, err := create(name)
	if err != nil {
		return 0, err
	}
	if gv.Name == "" {
		gv.Name = name
	}
	h := ir.GlobalVariableHandle(len(t.module.GlobalVariables))
	t.module.GlobalVariables = append(t.module.GlobalVariables, gv)
	t.bindings[name] = h
	if gv.Name != name {
		t.bindings[gv.Name] = h
	}
	t.log.Debug("global bound", "name", gv.Name, "space", gv.Space.String())
	return h, nil
}

// globalPointer returns the l-value of a global operand, declaring it if
// no declaration call named it.
func (t *Translator) globalPointer(g *llir.Global) (ir.ExpressionHandle, *pointerInfo, error) {
	name := t.canonical(g.Name())
	info := &pointerInfo{root: name, md: t.globalMetadata(name), known: true}
	if c, ok := t.consts[g.Name()]; ok {
		return t.constRef(c), info, nil
	}
	if c, ok := t.consts[name]; ok {
		return t.constRef(c), info, nil
	}
	if _, ok := t.anon[name]; ok {
		return 0, nil, t.unsupported("block", "anonymous block %s used as a whole", name)
	}
	h, err := t.bind(name, func(name string) (ir.GlobalVariable, error) {
		if g.Immutable && g.Init != nil {
			return ir.GlobalVariable{}, errConstGlobal
		}
		md := t.globalMetadata(name)
		if md != nil && md.Qualifier.IsIO() {
			return t.newIO(name, g.ContentType, md.Qualifier, md)
		}
		return t.newGlobal(name, g.ContentType, md)
	})
	if errors.Is(err, errConstGlobal) {
		c, err := t.constantValue(name, g.Init, info.md)
		if err != nil {
			return 0, nil, err
		}
		t.consts[name] = c
		return t.constRef(c), info, nil
	}
	if err != nil {
		return 0, nil, err
	}
	return t.globalRef(h), info, nil
}

var errConstGlobal = fmt.Errorf("%w: immutable global", ErrTranslation)

func (t *Translator) globalRef(h ir.GlobalVariableHandle) ir.ExpressionHandle {
	if e, ok := t.fn.globalExprs[h]; ok {
		return e
	}
	e := t.addExpression(ir.ExprGlobalVariable{Variable: h})
	t.fn.globalExprs[h] = e
	return e
}

func (t *Translator) constRef(c ir.ConstantHandle) ir.ExpressionHandle {
	if e, ok := t.fn.constExprs[c]; ok {
		return e
	}
	e := t.addExpression(ir.ExprConstant{Constant: c})
	t.fn.constExprs[c] = e
	return e
}

// builtinRef returns the l-value of a built-in variable, declaring it
// from its GLSL signature when the module never mentions it.
func (t *Translator) builtinRef(b ir.BuiltinValue) (ir.ExpressionHandle, error) {
	info := b.Info()
	h, err := t.bind(info.Name, func(name string) (ir.GlobalVariable, error) {
		s := ir.ScalarType{Kind: info.Kind, Width: 4}
		if info.Kind == ir.ScalarBool {
			s.Width = 1
		}
		var inner ir.TypeInner = s
		switch {
		case info.Mat:
			inner = ir.MatrixType{Columns: info.Size, Rows: info.Size, Scalar: s}
		case info.Size != 0:
			inner = ir.VectorType{Size: info.Size, Scalar: s}
		}
		ty := t.registry.GetOrCreate("", inner)
		if info.Array != 0 {
			arr := ir.ArrayType{Base: ty}
			if info.Sized {
				n := info.Array
				arr.Size = ir.ArraySize{Constant: &n}
			}
			ty = t.registry.GetOrCreate("", arr)
		}
		return ir.GlobalVariable{Name: name, Space: info.Space, Type: ty, Binding: ir.BuiltinBinding{Builtin: b}}, nil
	})
	if err != nil {
		return 0, err
	}
	return t.globalRef(h), nil
}

// globalMetadata returns the metadata of a global by SSA or canonical name.
func (t *Translator) globalMetadata(name string) *metadata.Node {
	if md, ok := t.globalMD[name]; ok {
		return md
	}
	if md := t.meta.Global(name); md != nil {
		return md
	}
	canon := t.canonical(name)
	if canon != name {
		if md, ok := t.globalMD[canon]; ok {
			return md
		}
		return t.meta.Global(canon)
	}
	return nil
}
