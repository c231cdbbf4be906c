package unit

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/shaderplate/internal/logger"
	"github.com/Faultbox/shaderplate/internal/shaderkey"
)

// AssemblyState is a step of stage assembly.
type AssemblyState int

const (
	Idle AssemblyState = iota
	ResolveDefaults
	BuildHeader
	ResolveUniformBlock
	ResolveStageBody
	Done
)

func (s AssemblyState) String() string {
	switch s {
	case Idle:
		return "Idle"
	case ResolveDefaults:
		return "ResolveDefaults"
	case BuildHeader:
		return "BuildHeader"
	case ResolveUniformBlock:
		return "ResolveUniformBlock"
	case ResolveStageBody:
		return "ResolveStageBody"
	case Done:
		return "Done"
	}
	return fmt.Sprintf("AssemblyState(%d)", int(s))
}

// GLCaps describes the GLSL dialect headers are written for.
type GLCaps struct {
	Version    int
	Profile    string
	Extensions []string
}

// DefaultCaps returns GLSL 3.30 core.
func DefaultCaps() GLCaps {
	return GLCaps{Version: 330, Profile: "core"}
}

// RequiredExtensions returns the extensions a stage needs when the version
// predates it.
func (c GLCaps) RequiredExtensions(stage shaderkey.Stage) []string {
	switch {
	case stage == shaderkey.Geometry && c.Version < 150:
		return []string{"GL_ARB_geometry_shader4"}
	case (stage == shaderkey.TessControl || stage == shaderkey.TessEval) && c.Version < 400:
		return []string{"GL_ARB_tessellation_shader"}
	case stage == shaderkey.Compute && c.Version < 430:
		return []string{"GL_ARB_compute_shader"}
	}
	return nil
}

// Header returns the #version and #extension lines for stage.
func (c GLCaps) Header(stage shaderkey.Stage) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "#version %d", c.Version)
	if c.Profile != "" && (c.Version >= 150 || c.Profile == "es") {
		sb.WriteString(" " + c.Profile)
	}
	sb.WriteByte('\n')
	required := c.RequiredExtensions(stage)
	for _, ext := range required {
		fmt.Fprintf(&sb, "#extension %s : require\n", ext)
	}
	for _, ext := range c.Extensions {
		if !slices.Contains(required, ext) {
			fmt.Fprintf(&sb, "#extension %s : enable\n", ext)
		}
	}
	return sb.String()
}

// StageCode is the assembled text of one stage.
type StageCode struct {
	Stage shaderkey.Stage
	Key   shaderkey.Key

	Header   string
	Uniforms string
	Body     string

	HeaderLines  int
	UniformLines int
	BodyLines    int
}

// Text returns the complete stage source.
func (s StageCode) Text() string {
	return s.Header + s.Uniforms + s.Body
}

// Lines returns the number of generated lines.
func (s StageCode) Lines() int {
	return s.HeaderLines + s.UniformLines + s.BodyLines
}

// AssembleStage builds the text of stage for (buffer, section, config).
// Empty section and config resolve to the current selection. Missing
// fragments produce empty parts.
func (u *Unit) AssembleStage(stage shaderkey.Stage, buffer, section, config string) StageCode {
	state := Idle
	step := func(next AssemblyState) {
		logger.Debug("assembly step",
			zap.String("file", u.file),
			zap.Stringer("stage", stage),
			zap.String("buffer", buffer),
			zap.Stringer("from", state),
			zap.Stringer("to", next),
		)
		state = next
	}

	step(ResolveDefaults)
	selected := u.selection.SelectedSectionName(buffer)
	if section == "" {
		section = selected
	}
	if config == "" {
		if section == selected {
			config = u.selection.SelectedConfigName(stage, buffer)
		} else if names := u.selection.ConfigNames(stage, buffer, section); len(names) > 0 {
			config = names[0]
		}
	}
	key := shaderkey.StageKey(stage, buffer, section, config)
	out := StageCode{Stage: stage, Key: key}
	u.tree.ResetFinalLineMarks(stage)

	step(BuildHeader)
	out.Header = u.caps.Header(stage)
	out.HeaderLines = strings.Count(out.Header, "\n")
	line := out.HeaderLines

	step(ResolveUniformBlock)
	table := u.finalUniformTable(key)
	u.final[stage] = table
	inserted := make(map[string]bool)

	block := u.tree.GetSectionPart(shaderkey.Uniforms, stage, key, line)
	tags, n := virtualTags(u.decls.Virtual())
	out.Uniforms = Synthesize(block.Code+tags, table, inserted)
	out.UniformLines = block.Lines + n
	line += out.UniformLines

	step(ResolveStageBody)
	common := u.tree.GetSectionPart(shaderkey.Common, stage, key, line)
	line += common.Lines
	body := u.tree.GetSectionPart(stage, stage, key, line)
	out.Body = Synthesize(common.Code+body.Code, table, inserted)
	out.BodyLines = common.Lines + body.Lines

	step(Done)
	return out
}

// AssembleProgram assembles every stage the document defines for buffer.
func (u *Unit) AssembleProgram(buffer, section string) []StageCode {
	var out []StageCode
	for _, st := range u.tree.Stages(buffer) {
		out = append(out, u.AssembleStage(st, buffer, section, ""))
	}
	return out
}

// finalUniformTable builds the declarations visible at key, the unit's own
// before those of its includes.
func (u *Unit) finalUniformTable(key shaderkey.Key) map[string]FinalUniform {
	table := make(map[string]FinalUniform)
	for _, src := range append([]*Unit{u}, u.included...) {
		for name, d := range src.decls.Lookup(key) {
			if _, ok := table[name]; ok {
				continue
			}
			table[name] = FinalUniform{Name: name, Code: DeclarationCode(d), Decl: d}
		}
	}
	return table
}

// FinalUniforms returns the table of the last assembly of stage.
func (u *Unit) FinalUniforms(stage shaderkey.Stage) map[string]FinalUniform {
	return maps.Clone(u.final[stage])
}
