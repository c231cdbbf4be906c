// Package diagnostic translates GL compiler logs back to source positions.
//
// Two driver dialects are recognized per message line: the bracket form
// `0(12) : error C0000: ...` and the colon form `ERROR: 0:12: ...`.
package diagnostic

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Faultbox/shaderplate/internal/shaderkey"
)

// Provenance resolves a generated line of a stage to its source position.
// *sectiontree.Tree implements it.
type Provenance interface {
	GetSectionCodeForTargetLine(stage shaderkey.Stage, line int) (string, int, bool)
}

// Fragment is one located piece of a message.
type Fragment struct {
	File string
	Line int
	Text string
}

func (f Fragment) String() string {
	switch {
	case f.File != "":
		return fmt.Sprintf("%s(%d): %s", f.File, f.Line, f.Text)
	case f.Line > 0:
		return fmt.Sprintf("(%d): %s", f.Line, f.Text)
	}
	return f.Text
}

// Diagnostic is one compiler message with its located fragments.
type Diagnostic struct {
	Stage     shaderkey.Stage
	Raw       string
	Fragments []Fragment
}

func (d Diagnostic) String() string {
	parts := make([]string, len(d.Fragments))
	for i, f := range d.Fragments {
		parts[i] = f.String()
	}
	return strings.Join(parts, " ")
}

var (
	// a marker is a literal 0 not glued to a preceding digit or colon
	bracketMarker = regexp.MustCompile(`(?:^|[^0-9:])(0\((\d+)\))`)
	colonMarker   = regexp.MustCompile(`(?:^|[^0-9])(0:(\d+))`)
)

// Mapper maps driver logs through a provenance source.
type Mapper struct {
	Provenance Provenance
}

// Map splits log into messages and locates each one.
func (m Mapper) Map(stage shaderkey.Stage, log string) []Diagnostic {
	var out []Diagnostic
	for _, line := range strings.Split(strings.ReplaceAll(log, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) == "" || line == "\x00" {
			continue
		}
		out = append(out, m.MapLine(stage, line))
	}
	return out
}

type marker struct {
	start, end int
	line       int
}

func findMarkers(line string) []marker {
	re := colonMarker
	if bracketMarker.MatchString(line) {
		re = bracketMarker
	}
	var out []marker
	for _, idx := range re.FindAllStringSubmatchIndex(line, -1) {
		n, err := strconv.Atoi(line[idx[4]:idx[5]])
		if err != nil {
			continue
		}
		out = append(out, marker{start: idx[2], end: idx[3], line: n})
	}
	return out
}

// MapLine locates one message line. Without a marker the whole line is
// attributed to line 0; each marker starts a new fragment.
func (m Mapper) MapLine(stage shaderkey.Stage, line string) Diagnostic {
	line = strings.TrimRight(line, "\x00")
	d := Diagnostic{Stage: stage, Raw: line}
	markers := findMarkers(line)
	if len(markers) == 0 {
		d.Fragments = []Fragment{{Text: strings.TrimSpace(line)}}
		return d
	}

	segStart := 0
	for i, mk := range markers {
		segEnd := len(line)
		if i+1 < len(markers) {
			segEnd = markers[i+1].start
		}
		before := line[segStart:mk.start]
		after := strings.TrimLeft(line[mk.end:segEnd], " :")
		text := strings.TrimSpace(before + after)

		f := Fragment{Line: mk.line, Text: text}
		if m.Provenance != nil {
			if file, src, ok := m.Provenance.GetSectionCodeForTargetLine(stage, mk.line); ok {
				f.File = file
				f.Line = src - 1
			}
		}
		d.Fragments = append(d.Fragments, f)
		segStart = segEnd
	}
	return d
}

// Located reports whether every fragment resolved to a source file.
func (d Diagnostic) Located() bool {
	for _, f := range d.Fragments {
		if f.File == "" {
			return false
		}
	}
	return len(d.Fragments) > 0
}
