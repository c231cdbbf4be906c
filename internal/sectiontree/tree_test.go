package sectiontree

import (
	"errors"
	"strings"
	"testing"

	"github.com/Faultbox/shaderplate/internal/shaderkey"
	"github.com/Faultbox/shaderplate/internal/uniform"
)

type recordedDecl struct {
	path shaderkey.Key
	decl *uniform.Declaration
}

type fakeSink struct {
	decls    []recordedDecl
	sections []string
	configs  []string
	buffers  []string
	includes []string
	settings map[string][]string
	errors   []string
}

func newFakeSink() *fakeSink {
	return &fakeSink{settings: make(map[string][]string)}
}

func (s *fakeSink) AddDeclaration(path shaderkey.Key, decl *uniform.Declaration) {
	s.decls = append(s.decls, recordedDecl{path, decl})
}

func (s *fakeSink) AddSectionName(buffer, name string) {
	s.sections = append(s.sections, buffer+"/"+name)
}

func (s *fakeSink) AddConfigName(stage shaderkey.Stage, buffer, section, name string) {
	s.configs = append(s.configs, stage.String()+"/"+buffer+"/"+section+"/"+name)
}

func (s *fakeSink) AddBufferName(name string) {
	s.buffers = append(s.buffers, name)
}

func (s *fakeSink) AddInclude(name, file string, line int) {
	s.includes = append(s.includes, name)
}

func (s *fakeSink) AddSetting(key string, values []string) {
	s.settings[key] = values
}

func (s *fakeSink) AddFramebufferSetting(buffer, key string, values []string) {
	s.settings[buffer+"."+key] = values
}

func (s *fakeSink) ReportError(file string, line int, msg string) {
	s.errors = append(s.errors, msg)
}

type fakeIncluder map[string]*Tree

func (f fakeIncluder) Include(from, name string) (*Tree, error) {
	t, ok := f[name]
	if !ok {
		return nil, errors.New("not found")
	}
	return t, nil
}

const sampleDoc = `// ignored
@UNIFORMS
uniform(fog) bool(checkbox:true) uUseFog;
@VERTEX
void main() { gl_Position = vec4(0.0); }
@FRAGMENT CONFIG(low)
uniform vec2 uRes;
out vec4 c;
void main() { c = vec4(1.0); }
@FRAGMENT BUFFER(blur)
void main() {}
@NOTE
hello
@CONFIG
width:640
@FRAMEBUFFER BUFFER(blur)
format:rgba16f
@NONSENSE
`

func parseSample(t *testing.T) (*Tree, *fakeSink) {
	t.Helper()
	tree := New("main.glsl", nil)
	sink := newFakeSink()
	tree.Parse(sampleDoc, sink)
	return tree, sink
}

func TestParseDeclaration(t *testing.T) {
	tests := []struct {
		line    string
		name    string
		typ     string
		widget  string
		params  int
		section string
		array   int
		ok      bool
	}{
		{"uniform float uTime;", "uTime", "float", "", 0, "", 0, true},
		{"uniform vec3(color:1,0,0) uTint; // tint", "uTint", "vec3", "color", 1, "", 0, true},
		{"uniform(fog:2:uUseFog==true) float(0:1:0.5) uDensity;", "uDensity", "float", "0", 2, "fog:2:uUseFog==true", 0, true},
		{"uniform highp float uHigh;", "uHigh", "highp float", "", 0, "", 0, true},
		{"uniform vec4 uArr[4];", "uArr", "vec4", "", 0, "", 4, true},
		{"uniform Block { float x; };", "", "", "", 0, "", 0, false},
		{"float notAUniform;", "", "", "", 0, "", 0, false},
	}

	for _, tt := range tests {
		d, ok := ParseDeclaration(tt.line)
		if ok != tt.ok {
			t.Errorf("%q: ok = %v, want %v", tt.line, ok, tt.ok)
			continue
		}
		if !ok {
			continue
		}
		if d.Name != tt.name || d.Type != tt.typ || d.Widget != tt.widget {
			t.Errorf("%q: got name=%q type=%q widget=%q", tt.line, d.Name, d.Type, d.Widget)
		}
		if len(d.Params) != tt.params {
			t.Errorf("%q: expected %d params, got %v", tt.line, tt.params, d.Params)
		}
		if d.SectionSpec != tt.section {
			t.Errorf("%q: section spec = %q, want %q", tt.line, d.SectionSpec, tt.section)
		}
		if d.ArraySize != tt.array {
			t.Errorf("%q: array size = %d, want %d", tt.line, d.ArraySize, tt.array)
		}
	}
}

func TestParseReportsDocument(t *testing.T) {
	tree, sink := parseSample(t)

	if len(sink.decls) != 2 {
		t.Fatalf("expected 2 declarations, got %d", len(sink.decls))
	}
	fog := sink.decls[0]
	if fog.decl.Name != "uUseFog" || fog.path != (shaderkey.Key{}) || fog.decl.Line != 3 {
		t.Errorf("unexpected fog declaration %+v at %v", fog.decl, fog.path)
	}
	res := sink.decls[1]
	want := shaderkey.Key{Stage: "FRAGMENT", Config: "low"}
	if res.decl.Name != "uRes" || res.path != want {
		t.Errorf("expected uRes at %v, got %s at %v", want, res.decl.Name, res.path)
	}

	if len(sink.configs) != 1 || sink.configs[0] != "FRAGMENT///low" {
		t.Errorf("unexpected configs %v", sink.configs)
	}
	if len(sink.buffers) != 1 || sink.buffers[0] != "blur" {
		t.Errorf("unexpected buffers %v", sink.buffers)
	}
	if got := sink.settings["width"]; len(got) != 1 || got[0] != "640" {
		t.Errorf("unexpected width setting %v", got)
	}
	if got := sink.settings["blur.format"]; len(got) != 1 || got[0] != "rgba16f" {
		t.Errorf("unexpected framebuffer setting %v", got)
	}
	if notes := tree.Notes(); len(notes) != 1 || notes[0] != "hello" {
		t.Errorf("unexpected notes %v", notes)
	}
	if len(sink.errors) != 1 || !strings.Contains(sink.errors[0], "@NONSENSE") {
		t.Errorf("expected one unknown tag error, got %v", sink.errors)
	}

	stages := tree.Stages("")
	if len(stages) != 2 || stages[0] != shaderkey.Vertex || stages[1] != shaderkey.Fragment {
		t.Errorf("unexpected stages %v", stages)
	}
}

func TestSectionTag(t *testing.T) {
	tree := New("s.glsl", nil)
	sink := newFakeSink()
	tree.Parse("@SECTION night\n@FRAGMENT SECTION(day)\nvoid main() {}\n", sink)
	if len(sink.sections) != 2 || sink.sections[0] != "/night" || sink.sections[1] != "/day" {
		t.Errorf("unexpected sections %v", sink.sections)
	}
}

func TestGetSectionPartProvenance(t *testing.T) {
	tree, _ := parseSample(t)

	part := tree.GetSectionPart(shaderkey.Fragment, shaderkey.Fragment, shaderkey.Key{Config: "low"}, 2)
	if part.Lines != 3 {
		t.Fatalf("expected 3 lines, got %d:\n%s", part.Lines, part.Code)
	}
	lines := strings.Split(strings.TrimSuffix(part.Code, "\n"), "\n")
	if lines[0] != uniform.Tag("uRes") {
		t.Errorf("expected uniform tag on first line, got %q", lines[0])
	}
	if lines[1] != "out vec4 c;" {
		t.Errorf("unexpected second line %q", lines[1])
	}

	// generated line 4 is source line 8; marks run one ahead
	file, line, ok := tree.GetSectionCodeForTargetLine(shaderkey.Fragment, 4)
	if !ok || file != "main.glsl" || line != 9 {
		t.Errorf("expected main.glsl:9, got %s:%d ok=%v", file, line, ok)
	}
	if _, _, ok := tree.GetSectionCodeForTargetLine(shaderkey.Fragment, 2); ok {
		t.Error("line before startLine must have no provenance")
	}

	tree.ResetFinalLineMarks(shaderkey.Fragment)
	if _, _, ok := tree.GetSectionCodeForTargetLine(shaderkey.Fragment, 4); ok {
		t.Error("expected provenance dropped after reset")
	}
}

func TestBufferFragmentReplacesRoot(t *testing.T) {
	tree, _ := parseSample(t)

	tests := []struct {
		key   shaderkey.Key
		lines int
		first string
	}{
		{shaderkey.Key{Config: "low"}, 3, uniform.Tag("uRes")},
		{shaderkey.Key{Buffer: "blur"}, 1, "void main() {}"},
		{shaderkey.Key{Buffer: "blur", Config: "low"}, 1, "void main() {}"},
		{shaderkey.Key{Config: "high"}, 0, ""},
	}

	for _, tt := range tests {
		part := tree.GetSectionPart(shaderkey.Fragment, shaderkey.Fragment, tt.key, 0)
		if part.Lines != tt.lines {
			t.Errorf("%v: expected %d lines, got %d", tt.key, tt.lines, part.Lines)
			continue
		}
		if tt.lines > 0 && !strings.HasPrefix(part.Code, tt.first) {
			t.Errorf("%v: expected code to start with %q, got %q", tt.key, tt.first, part.Code)
		}
	}
}

func TestIncludeExpansion(t *testing.T) {
	inc := fakeIncluder{}
	noise := New("noise.glsl", inc)
	noise.Parse("// noise\nfloat noise() { return 0.0; }\n", newFakeSink())
	inc["noise.glsl"] = noise

	tree := New("main.glsl", inc)
	sink := newFakeSink()
	tree.Parse("@FRAGMENT\n#include \"noise.glsl\"\nvoid main() {}\n", sink)
	if len(sink.includes) != 1 || sink.includes[0] != "noise.glsl" {
		t.Fatalf("expected include reported, got %v", sink.includes)
	}

	part := tree.GetSectionPart(shaderkey.Fragment, shaderkey.Fragment, shaderkey.Key{}, 0)
	if part.Lines != 3 {
		t.Fatalf("expected 3 lines, got %d:\n%s", part.Lines, part.Code)
	}
	file, line, _ := tree.GetSectionCodeForTargetLine(shaderkey.Fragment, 2)
	if file != "noise.glsl" || line != 3 {
		t.Errorf("expected noise.glsl:3, got %s:%d", file, line)
	}
	file, line, _ = tree.GetSectionCodeForTargetLine(shaderkey.Fragment, 3)
	if file != "main.glsl" || line != 4 {
		t.Errorf("expected main.glsl:4, got %s:%d", file, line)
	}
}

func TestIncludeDepthLimit(t *testing.T) {
	inc := fakeIncluder{}
	loop := New("loop.glsl", inc)
	loop.Parse("#include \"loop.glsl\"\n", newFakeSink())
	inc["loop.glsl"] = loop

	tree := New("main.glsl", inc)
	tree.Parse("@FRAGMENT\n#include \"loop.glsl\"\n", newFakeSink())
	part := tree.GetSectionPart(shaderkey.Fragment, shaderkey.Fragment, shaderkey.Key{}, 0)
	if part.Lines != 1 || !strings.Contains(part.Code, "#include") {
		t.Errorf("expected recursion cut with the include line kept, got %q", part.Code)
	}
}

func TestMissingIncludeKeepsLine(t *testing.T) {
	tree := New("main.glsl", fakeIncluder{})
	tree.Parse("@FRAGMENT\n#include \"gone.glsl\"\n", newFakeSink())
	part := tree.GetSectionPart(shaderkey.Fragment, shaderkey.Fragment, shaderkey.Key{}, 0)
	if part.Code != "#include \"gone.glsl\"\n" {
		t.Errorf("unexpected code %q", part.Code)
	}
}
