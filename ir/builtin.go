// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package ir

// BuiltinValue represents a GLSL built-in variable.
type BuiltinValue uint8

const (
	BuiltinPosition BuiltinValue = iota
	BuiltinPointSize
	BuiltinClipDistance
	BuiltinVertexID
	BuiltinInstanceID
	BuiltinFragCoord
	BuiltinFrontFacing
	BuiltinPointCoord
	BuiltinFragDepth
	BuiltinFragColor
	BuiltinFragData
	BuiltinPrimitiveID
	BuiltinLayer
	BuiltinInvocationID
	BuiltinSampleID
	BuiltinSampleMask
	BuiltinLocalInvocationID
	BuiltinLocalInvocationIndex
	BuiltinGlobalInvocationID
	BuiltinWorkGroupID
	BuiltinNumWorkGroups
	BuiltinModelViewProjectionMatrix
	BuiltinVertex
)

// BuiltinInfo describes the declaration of a built-in variable.
type BuiltinInfo struct {
	Name  string
	Space AddressSpace
	Kind  ScalarKind
	Size  VectorSize // 0 for scalars
	Array uint32     // 0 when not an array; the array is unsized when Sized is false
	Sized bool
	Mat   bool // Size x Size matrix
}

var builtinInfos = [...]BuiltinInfo{
	BuiltinPosition:                  {Name: "gl_Position", Space: SpaceOut, Kind: ScalarFloat, Size: Vec4},
	BuiltinPointSize:                 {Name: "gl_PointSize", Space: SpaceOut, Kind: ScalarFloat},
	BuiltinClipDistance:              {Name: "gl_ClipDistance", Space: SpaceOut, Kind: ScalarFloat, Array: 1},
	BuiltinVertexID:                  {Name: "gl_VertexID", Space: SpaceIn, Kind: ScalarSint},
	BuiltinInstanceID:                {Name: "gl_InstanceID", Space: SpaceIn, Kind: ScalarSint},
	BuiltinFragCoord:                 {Name: "gl_FragCoord", Space: SpaceIn, Kind: ScalarFloat, Size: Vec4},
	BuiltinFrontFacing:               {Name: "gl_FrontFacing", Space: SpaceIn, Kind: ScalarBool},
	BuiltinPointCoord:                {Name: "gl_PointCoord", Space: SpaceIn, Kind: ScalarFloat, Size: Vec2},
	BuiltinFragDepth:                 {Name: "gl_FragDepth", Space: SpaceOut, Kind: ScalarFloat},
	BuiltinFragColor:                 {Name: "gl_FragColor", Space: SpaceOut, Kind: ScalarFloat, Size: Vec4},
	BuiltinFragData:                  {Name: "gl_FragData", Space: SpaceOut, Kind: ScalarFloat, Size: Vec4, Array: 8, Sized: true},
	BuiltinPrimitiveID:               {Name: "gl_PrimitiveID", Space: SpaceIn, Kind: ScalarSint},
	BuiltinLayer:                     {Name: "gl_Layer", Space: SpaceOut, Kind: ScalarSint},
	BuiltinInvocationID:              {Name: "gl_InvocationID", Space: SpaceIn, Kind: ScalarSint},
	BuiltinSampleID:                  {Name: "gl_SampleID", Space: SpaceIn, Kind: ScalarSint},
	BuiltinSampleMask:                {Name: "gl_SampleMask", Space: SpaceOut, Kind: ScalarSint, Array: 1},
	BuiltinLocalInvocationID:         {Name: "gl_LocalInvocationID", Space: SpaceIn, Kind: ScalarUint, Size: Vec3},
	BuiltinLocalInvocationIndex:      {Name: "gl_LocalInvocationIndex", Space: SpaceIn, Kind: ScalarUint},
	BuiltinGlobalInvocationID:        {Name: "gl_GlobalInvocationID", Space: SpaceIn, Kind: ScalarUint, Size: Vec3},
	BuiltinWorkGroupID:               {Name: "gl_WorkGroupID", Space: SpaceIn, Kind: ScalarUint, Size: Vec3},
	BuiltinNumWorkGroups:             {Name: "gl_NumWorkGroups", Space: SpaceIn, Kind: ScalarUint, Size: Vec3},
	BuiltinModelViewProjectionMatrix: {Name: "gl_ModelViewProjectionMatrix", Space: SpaceUniform, Kind: ScalarFloat, Size: Vec4, Mat: true},
	BuiltinVertex:                    {Name: "gl_Vertex", Space: SpaceIn, Kind: ScalarFloat, Size: Vec4},
}

// Info returns the declaration info of b.
func (b BuiltinValue) Info() BuiltinInfo {
	if int(b) < len(builtinInfos) {
		return builtinInfos[b]
	}
	return BuiltinInfo{Name: "gl_UNKNOWN"}
}

func (b BuiltinValue) String() string {
	return b.Info().Name
}

// LookupBuiltin returns the built-in variable with the given GLSL name.
func LookupBuiltin(name string) (BuiltinValue, bool) {
	for i := range builtinInfos {
		if builtinInfos[i].Name == name {
			return BuiltinValue(i), true
		}
	}
	return 0, false
}
