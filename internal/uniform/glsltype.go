package uniform

import "strings"

// BaseKind is the scalar component kind of a GLSL type.
type BaseKind int

// Scalar component kinds.
const (
	BaseFloat BaseKind = iota
	BaseInt
	BaseUint
	BaseBool
	BaseOpaque
)

// TypeClass groups GLSL types that share widget policies.
type TypeClass int

// Type classes used as the first dispatch level of the policy table.
const (
	ClassUnknown TypeClass = iota
	ClassScalar
	ClassVector
	ClassBool
	ClassMatrix
	ClassSampler2D
	ClassSampler3D
	ClassSamplerCube
	ClassImage
)

func (c TypeClass) String() string {
	switch c {
	case ClassScalar:
		return "scalar"
	case ClassVector:
		return "vector"
	case ClassBool:
		return "bool"
	case ClassMatrix:
		return "matrix"
	case ClassSampler2D:
		return "sampler2D"
	case ClassSampler3D:
		return "sampler3D"
	case ClassSamplerCube:
		return "samplerCube"
	case ClassImage:
		return "image"
	}
	return "unknown"
}

// TypeInfo describes one GLSL uniform type.
type TypeInfo struct {
	Name       string
	Base       BaseKind
	Components int
	Class      TypeClass
}

// IsSampler reports whether the type binds a texture unit.
func (t TypeInfo) IsSampler() bool {
	switch t.Class {
	case ClassSampler2D, ClassSampler3D, ClassSamplerCube, ClassImage:
		return true
	}
	return false
}

var glslTypes = map[string]TypeInfo{}

func addTypes(base BaseKind, names ...string) {
	for i, n := range names {
		comps := i + 1
		class := ClassVector
		switch {
		case base == BaseBool:
			class = ClassBool
		case comps == 1:
			class = ClassScalar
		}
		glslTypes[n] = TypeInfo{Name: n, Base: base, Components: comps, Class: class}
	}
}

func init() {
	addTypes(BaseFloat, "float", "vec2", "vec3", "vec4")
	addTypes(BaseInt, "int", "ivec2", "ivec3", "ivec4")
	addTypes(BaseUint, "uint", "uvec2", "uvec3", "uvec4")
	addTypes(BaseBool, "bool", "bvec2", "bvec3", "bvec4")

	for cols := 2; cols <= 4; cols++ {
		for rows := 2; rows <= 4; rows++ {
			name := "mat" + string(rune('0'+cols)) + "x" + string(rune('0'+rows))
			glslTypes[name] = TypeInfo{Name: name, Base: BaseFloat, Components: cols * rows, Class: ClassMatrix}
		}
		square := "mat" + string(rune('0'+cols))
		glslTypes[square] = TypeInfo{Name: square, Base: BaseFloat, Components: cols * cols, Class: ClassMatrix}
	}

	opaque := map[string]TypeClass{
		"sampler1D":       ClassSampler2D,
		"sampler2D":       ClassSampler2D,
		"isampler2D":      ClassSampler2D,
		"usampler2D":      ClassSampler2D,
		"sampler2DArray":  ClassSampler2D,
		"sampler2DShadow": ClassSampler2D,
		"sampler3D":       ClassSampler3D,
		"isampler3D":      ClassSampler3D,
		"usampler3D":      ClassSampler3D,
		"samplerCube":     ClassSamplerCube,
		"image1D":         ClassImage,
		"image2D":         ClassImage,
		"image3D":         ClassImage,
		"uimage2D":        ClassImage,
		"iimage2D":        ClassImage,
	}
	for n, c := range opaque {
		glslTypes[n] = TypeInfo{Name: n, Base: BaseOpaque, Components: 1, Class: c}
	}
}

// LookupType returns the type information for a GLSL type name. Layout and
// precision qualifiers in front of the type are ignored.
func LookupType(name string) (TypeInfo, bool) {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return TypeInfo{}, false
	}
	info, ok := glslTypes[fields[len(fields)-1]]
	return info, ok
}
