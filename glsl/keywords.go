// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package glsl

import "strings"

// reservedWords lists GLSL 4.60 and GLSL ES 3.20 keywords, words reserved
// for future use, and the built-in functions a user identifier would shadow.
// Vector, matrix and opaque type names are generated in init.
const reservedWords = `
void bool int uint float double atomic_uint
attribute const uniform varying buffer shared coherent volatile restrict
readonly writeonly layout centroid flat smooth noperspective patch sample
break continue do for while switch case default if else subroutine
in out inout true false invariant precise discard return struct
lowp mediump highp precision
common partition active asm class union enum typedef template this resource
goto inline noinline public static extern external interface long short
half fixed unsigned superp input output hvec2 hvec3 hvec4 fvec2 fvec3 fvec4
sampler sampler3DRect filter sizeof cast namespace using
main radians degrees sin cos tan asin acos atan sinh cosh tanh asinh acosh atanh
pow exp log exp2 log2 sqrt inversesqrt abs sign floor trunc round roundEven
ceil fract mod modf min max clamp mix step smoothstep isnan isinf fma frexp ldexp
floatBitsToInt floatBitsToUint intBitsToFloat uintBitsToFloat
packUnorm2x16 packSnorm2x16 packUnorm4x8 packSnorm4x8 packHalf2x16 packDouble2x32
unpackUnorm2x16 unpackSnorm2x16 unpackUnorm4x8 unpackSnorm4x8 unpackHalf2x16 unpackDouble2x32
length distance dot cross normalize faceforward reflect refract
matrixCompMult outerProduct transpose determinant inverse
lessThan lessThanEqual greaterThan greaterThanEqual equal notEqual any all not
uaddCarry usubBorrow umulExtended imulExtended
bitfieldExtract bitfieldInsert bitfieldReverse bitCount findLSB findMSB
textureSize textureQueryLod textureQueryLevels textureSamples
texture textureProj textureLod textureOffset texelFetch texelFetchOffset
textureProjLod textureProjOffset textureLodOffset textureProjLodOffset
textureGrad textureGradOffset textureProjGrad textureProjGradOffset
textureGather textureGatherOffset textureGatherOffsets
dFdx dFdy dFdxFine dFdyFine dFdxCoarse dFdyCoarse fwidth fwidthFine fwidthCoarse
interpolateAtCentroid interpolateAtSample interpolateAtOffset
noise1 noise2 noise3 noise4
EmitStreamVertex EndStreamPrimitive EmitVertex EndPrimitive
barrier memoryBarrier memoryBarrierAtomicCounter memoryBarrierBuffer
memoryBarrierShared memoryBarrierImage groupMemoryBarrier
imageLoad imageStore imageSize imageSamples
imageAtomicAdd imageAtomicMin imageAtomicMax imageAtomicAnd imageAtomicOr
imageAtomicXor imageAtomicExchange imageAtomicCompSwap
atomicCounter atomicCounterIncrement atomicCounterDecrement
atomicCounterAdd atomicCounterSubtract atomicCounterMin atomicCounterMax
atomicCounterAnd atomicCounterOr atomicCounterXor atomicCounterExchange atomicCounterCompSwap
atomicAdd atomicMin atomicMax atomicAnd atomicOr atomicXor atomicExchange atomicCompSwap
subpassLoad
`

var glslKeywords = make(map[string]struct{}, 512)

func init() {
	for _, w := range strings.Fields(reservedWords) {
		glslKeywords[w] = struct{}{}
	}
	add := func(s string) { glslKeywords[s] = struct{}{} }
	for _, n := range []string{"2", "3", "4"} {
		for _, p := range []string{"", "i", "u", "b", "d"} {
			add(p + "vec" + n)
		}
		for _, p := range []string{"", "d"} {
			add(p + "mat" + n)
			for _, r := range []string{"2", "3", "4"} {
				add(p + "mat" + n + "x" + r)
			}
		}
	}
	dims := []string{"1D", "2D", "3D", "Cube", "2DRect", "1DArray", "2DArray", "CubeArray", "Buffer", "2DMS", "2DMSArray"}
	for _, p := range []string{"", "i", "u"} {
		for _, d := range dims {
			add(p + "sampler" + d)
			add(p + "image" + d)
		}
	}
	for _, d := range []string{"1D", "2D", "Cube", "2DRect", "1DArray", "2DArray", "CubeArray"} {
		add("sampler" + d + "Shadow")
	}
}

func isKeyword(name string) bool {
	_, ok := glslKeywords[name]
	return ok
}

// escapeKeyword escapes a name if it conflicts with GLSL keywords or the
// gl_ prefix. Returns the name with an underscore prefix if it's reserved.
func escapeKeyword(name string) string {
	if name == "" {
		return "_unnamed"
	}
	if isKeyword(name) || strings.HasPrefix(name, "gl_") {
		return "_" + name
	}
	return name
}

// sanitize turns an SSA value name into a GLSL identifier. Characters
// outside [A-Za-z0-9_] become underscores, a leading digit gets an
// underscore prefix, and runs of underscores collapse since identifiers
// containing "__" are reserved.
func sanitize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	last := byte(0)
	for i := 0; i < len(name); i++ {
		c := name[i]
		valid := c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
		if !valid {
			c = '_'
		}
		if c == '_' && last == '_' {
			continue
		}
		if b.Len() == 0 && c >= '0' && c <= '9' {
			b.WriteByte('_')
		}
		b.WriteByte(c)
		last = c
	}
	return b.String()
}
