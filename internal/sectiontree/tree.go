// Package sectiontree splits an annotated shader document into tagged
// fragments and assembles them back into stage text while recording where
// every generated line came from.
//
// Document grammar:
//
//	@UNIFORMS
//	uniform(fog:1:uUseFog==true) vec3(color:0.2,0.4,0.8) uFogColor;
//	@FRAGMENT BUFFER(blur) SECTION(night) CONFIG(low)
//	#include "noise.glsl"
//	void main() { ... }
//
// A tag line starts with '@' at column 0. Uniform lines are replaced by
// uniform.Tag markers; their declarations are reported to the Sink.
package sectiontree

import (
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/shaderplate/internal/logger"
	"github.com/Faultbox/shaderplate/internal/shaderkey"
	"github.com/Faultbox/shaderplate/internal/uniform"
)

const maxIncludeDepth = 8

// Sink receives what Parse discovers.
type Sink interface {
	AddDeclaration(path shaderkey.Key, decl *uniform.Declaration)
	AddSectionName(buffer, name string)
	AddConfigName(stage shaderkey.Stage, buffer, section, name string)
	AddBufferName(name string)
	AddInclude(name, file string, line int)
	AddSetting(key string, values []string)
	AddFramebufferSetting(buffer, key string, values []string)
	ReportError(file string, line int, msg string)
}

// Includer resolves `#include` names to the tree of another document.
type Includer interface {
	Include(from, name string) (*Tree, error)
}

// Part is the text produced for one fragment kind.
type Part struct {
	Code  string
	Lines int
}

// Mark is the provenance of one generated line.
type Mark struct {
	File string
	Line int
}

type codeLine struct {
	text    string
	src     int
	include string
}

type fragment struct {
	kind    shaderkey.Stage
	key     shaderkey.Key
	srcLine int
	lines   []codeLine
}

// Tree is the parsed fragment tree of one document.
type Tree struct {
	file     string
	includer Includer

	preamble  []codeLine
	fragments []*fragment
	buffers   []string
	notes     []string

	marks map[shaderkey.Stage]map[int]Mark
}

// New returns an empty tree for the document at file.
func New(file string, inc Includer) *Tree {
	return &Tree{
		file:     file,
		includer: inc,
		marks:    make(map[shaderkey.Stage]map[int]Mark),
	}
}

// File returns the document path the tree was created for.
func (t *Tree) File() string {
	return t.file
}

// Parse replaces the tree content with the fragments of src.
func (t *Tree) Parse(src string, sink Sink) {
	t.preamble = nil
	t.fragments = nil
	t.buffers = nil
	t.notes = nil

	src = strings.ReplaceAll(src, "\r\n", "\n")
	lines := strings.Split(src, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	tagged := slices.ContainsFunc(lines, func(l string) bool {
		_, ok := parseHeader(l)
		return ok
	})

	var cur *fragment
	for i, text := range lines {
		lineNo := i + 1
		if h, ok := parseHeader(text); ok {
			cur = t.openFragment(h, lineNo, sink)
			continue
		}
		if cur == nil {
			// untagged lines only matter when the document is an include
			if tagged {
				continue
			}
			t.preamble = append(t.preamble, t.codeLine(text, lineNo, shaderkey.Key{}, sink))
			continue
		}
		switch cur.kind {
		case shaderkey.Unknown, shaderkey.Section:
		case shaderkey.Note:
			t.notes = append(t.notes, text)
		case shaderkey.Config:
			if strings.TrimSpace(text) != "" {
				k, v := splitSetting(text)
				sink.AddSetting(k, v)
			}
		case shaderkey.Framebuffer:
			if strings.TrimSpace(text) != "" {
				k, v := splitSetting(text)
				sink.AddFramebufferSetting(cur.key.Buffer, k, v)
			}
		default:
			path := cur.key
			if cur.kind.IsProgram() {
				path.Stage = cur.kind.String()
			}
			cur.lines = append(cur.lines, t.codeLine(text, lineNo, path, sink))
		}
	}
	logger.Debug("document parsed",
		zap.String("file", t.file),
		zap.Int("fragments", len(t.fragments)),
		zap.Strings("buffers", t.buffers),
	)
}

func (t *Tree) openFragment(h header, lineNo int, sink Sink) *fragment {
	if h.kind == shaderkey.Unknown {
		sink.ReportError(t.file, lineNo, fmt.Sprintf("unknown section tag @%s", h.word))
	}
	if h.buffer != "" && !slices.Contains(t.buffers, h.buffer) {
		t.buffers = append(t.buffers, h.buffer)
		sink.AddBufferName(h.buffer)
	}
	if h.section != "" {
		sink.AddSectionName(h.buffer, h.section)
	}
	if h.config != "" && h.kind.IsProgram() {
		sink.AddConfigName(h.kind, h.buffer, h.section, h.config)
	}
	f := &fragment{
		kind:    h.kind,
		key:     shaderkey.Key{Buffer: h.buffer, Section: h.section, Config: h.config},
		srcLine: lineNo,
	}
	t.fragments = append(t.fragments, f)
	return f
}

func (t *Tree) codeLine(text string, lineNo int, path shaderkey.Key, sink Sink) codeLine {
	if m := includeLine.FindStringSubmatch(text); m != nil {
		sink.AddInclude(m[1], t.file, lineNo)
		return codeLine{text: text, src: lineNo, include: m[1]}
	}
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "uniform") {
		return codeLine{text: text, src: lineNo}
	}
	d, ok := ParseDeclaration(trimmed)
	if !ok {
		return codeLine{text: text, src: lineNo}
	}
	d.File = t.file
	d.Line = lineNo
	sink.AddDeclaration(path, d)
	return codeLine{text: uniform.Tag(d.Name), src: lineNo}
}

// Buffers returns the in-file buffer names in document order.
func (t *Tree) Buffers() []string {
	return slices.Clone(t.buffers)
}

// Notes returns the @NOTE lines.
func (t *Tree) Notes() []string {
	return slices.Clone(t.notes)
}

// Stages returns the program stages present for buffer, in pipeline order.
// Buffers without their own fragment of a stage inherit the root one.
func (t *Tree) Stages(buffer string) []shaderkey.Stage {
	var out []shaderkey.Stage
	for _, s := range shaderkey.ProgramStages {
		for _, f := range t.fragments {
			if f.kind == s && (f.key.Buffer == buffer || f.key.Buffer == "") {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

// match returns the fragments of kind serving key in document order. For
// program stages only the most specific fragments are kept, so a buffer or
// config body replaces the root one.
func (t *Tree) match(kind shaderkey.Stage, key shaderkey.Key) []*fragment {
	req := shaderkey.Key{Buffer: key.Buffer, Section: key.Section, Config: key.Config}
	var out []*fragment
	best := -1
	for _, f := range t.fragments {
		if f.kind != kind {
			continue
		}
		score, ok := f.key.Match(req)
		if !ok {
			continue
		}
		if kind.IsProgram() {
			if score < best {
				continue
			}
			if score > best {
				best = score
				out = out[:0]
			}
		}
		out = append(out, f)
	}
	return out
}

// ResetFinalLineMarks forgets the provenance recorded for stage.
func (t *Tree) ResetFinalLineMarks(stage shaderkey.Stage) {
	t.marks[stage] = make(map[int]Mark)
}

// GetSectionPart renders the fragments of kind part for key and records
// provenance under target, numbering generated lines from startLine+1.
func (t *Tree) GetSectionPart(part, target shaderkey.Stage, key shaderkey.Key, startLine int) Part {
	marks, ok := t.marks[target]
	if !ok {
		marks = make(map[int]Mark)
		t.marks[target] = marks
	}
	var sb strings.Builder
	n := t.emit(&sb, marks, t.match(part, key), startLine, 0, part, key)
	return Part{Code: sb.String(), Lines: n}
}

func (t *Tree) emit(sb *strings.Builder, marks map[int]Mark, frags []*fragment, start, depth int, part shaderkey.Stage, key shaderkey.Key) int {
	n := 0
	for _, f := range frags {
		n += t.emitLines(sb, marks, f.lines, start+n, depth, part, key)
	}
	return n
}

func (t *Tree) emitLines(sb *strings.Builder, marks map[int]Mark, lines []codeLine, start, depth int, part shaderkey.Stage, key shaderkey.Key) int {
	n := 0
	for _, l := range lines {
		if l.include != "" {
			if inc := t.resolveInclude(l.include, depth); inc != nil {
				n += inc.emitLines(sb, marks, inc.preamble, start+n, depth+1, part, key)
				n += inc.emit(sb, marks, inc.match(part, key), start+n, depth+1, part, key)
				continue
			}
		}
		sb.WriteString(l.text)
		sb.WriteByte('\n')
		n++
		// recorded lines run one ahead of the file; diagnostic.Mapper
		// subtracts it back
		marks[start+n] = Mark{File: t.file, Line: l.src + 1}
	}
	return n
}

func (t *Tree) resolveInclude(name string, depth int) *Tree {
	if t.includer == nil || depth >= maxIncludeDepth {
		return nil
	}
	inc, err := t.includer.Include(t.file, name)
	if err != nil {
		logger.Warn("include not resolved", zap.String("file", t.file), zap.String("include", name), zap.Error(err))
		return nil
	}
	return inc
}

// GetSectionCodeForTargetLine returns the provenance of generated line
// (1-based) of stage.
func (t *Tree) GetSectionCodeForTargetLine(stage shaderkey.Stage, line int) (string, int, bool) {
	m, ok := t.marks[stage][line]
	if !ok {
		return "", 0, false
	}
	return m.File, m.Line, true
}
