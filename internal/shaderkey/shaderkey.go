// Package shaderkey defines the stage kinds and the four-axis key
// (buffer, stage, section, config) that address parts of a shader document.
package shaderkey

import "strings"

// Stage identifies a tagged part of a shader document.
type Stage int

// Stage kinds. The first six are compilable program stages.
const (
	Vertex Stage = iota
	Geometry
	TessControl
	TessEval
	Fragment
	Compute
	Common
	Uniforms
	Framebuffer
	Config
	Note
	Section
	Unknown
)

var stageTags = [...]string{
	Vertex:      "VERTEX",
	Geometry:    "GEOMETRY",
	TessControl: "TESSCONTROL",
	TessEval:    "TESSEVAL",
	Fragment:    "FRAGMENT",
	Compute:     "COMPUTE",
	Common:      "COMMON",
	Uniforms:    "UNIFORMS",
	Framebuffer: "FRAMEBUFFER",
	Config:      "CONFIG",
	Note:        "NOTE",
	Section:     "SECTION",
	Unknown:     "UNKNOWN",
}

// ProgramStages lists compilable stages in pipeline order.
var ProgramStages = []Stage{Vertex, TessControl, TessEval, Geometry, Fragment, Compute}

// String returns the upper-case document tag of the stage.
func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageTags) {
		return stageTags[Unknown]
	}
	return stageTags[s]
}

// IsProgram reports whether the stage produces compilable GLSL.
func (s Stage) IsProgram() bool {
	return s >= Vertex && s <= Compute
}

// ParseStage converts a document tag (case-insensitive, optional leading '@')
// to a Stage. Unknown tags yield Unknown.
func ParseStage(tag string) Stage {
	tag = strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(tag), "@"))
	for i, t := range stageTags {
		if t == tag && Stage(i) != Unknown {
			return Stage(i)
		}
	}
	return Unknown
}

// Key addresses a fragment or declaration. An empty field is the wildcard
// (or root) value for that axis.
type Key struct {
	Buffer  string
	Stage   string
	Section string
	Config  string
}

// StageKey builds a Key for a concrete stage.
func StageKey(stage Stage, buffer, section, config string) Key {
	return Key{Buffer: buffer, Stage: stage.String(), Section: section, Config: config}
}

// String renders the key as buffer/stage/section/config for logs.
func (k Key) String() string {
	return k.Buffer + "/" + k.Stage + "/" + k.Section + "/" + k.Config
}

// Match reports whether a stored key k serves the requested key req.
// Each axis is checked on its own: an empty stored value matches any
// request, a non-empty one only an equal request. A wildcard request never
// matches a specific stored value. The score ranks specificity with buffer
// weighted highest, then stage, section and config.
func (k Key) Match(req Key) (score int, ok bool) {
	axes := [4][2]string{
		{k.Buffer, req.Buffer},
		{k.Stage, req.Stage},
		{k.Section, req.Section},
		{k.Config, req.Config},
	}
	for i, a := range axes {
		stored, want := a[0], a[1]
		if stored == "" {
			continue
		}
		if stored != want {
			return 0, false
		}
		score |= 1 << (3 - i)
	}
	return score, true
}
