package unit

import (
	"slices"
	"strings"
	"testing"

	"github.com/Faultbox/shaderplate/internal/shaderkey"
	"github.com/Faultbox/shaderplate/internal/uniform"
)

const fogDoc = `@UNIFORMS
uniform float(checkbox:true) uUseFog;
uniform(fog:1:uUseFog==true) vec3(color:0.2,0.4,0.8) uFogColor;
@FRAGMENT
out vec4 c;
void main() { c = vec4(uFogColor, 1.0); }
`

func load(t *testing.T, file, src string, opts Options) *Unit {
	t.Helper()
	u := New(file, opts)
	u.Reload(src)
	return u
}

func TestFogScenario(t *testing.T) {
	u := load(t, "fog.glsl", fogDoc, Options{})
	if err := u.Err(); err != nil {
		t.Fatalf("unexpected errors: %v", err)
	}

	useFog, ok := u.GetUniformByName("uUseFog")
	if !ok {
		t.Fatal("uUseFog not resolved")
	}
	if useFog.Widget != "checkbox" || useFog.Policy != uniform.PolicyCheckbox {
		t.Errorf("uUseFog: widget=%q policy=%v", useFog.Widget, useFog.Policy)
	}
	if len(useFog.Default) != 1 || useFog.Default[0] != 1 {
		t.Errorf("uUseFog: expected default true, got %v", useFog.Default)
	}

	color, ok := u.GetUniformByName("uFogColor")
	if !ok {
		t.Fatal("uFogColor not resolved")
	}
	if color.Widget != "color" || !slices.Equal(color.Default, []float32{0.2, 0.4, 0.8}) {
		t.Errorf("uFogColor: widget=%q default=%v", color.Widget, color.Default)
	}
	if color.Section != "fog" || color.Order != 1 || !color.HasOrder {
		t.Errorf("uFogColor: section=%q order=%d", color.Section, color.Order)
	}
	if color.Condition == nil || color.Condition.Target != useFog {
		t.Fatal("uFogColor: expected condition on uUseFog")
	}
	if members := u.Sections().Members("fog"); len(members) != 1 || members[0] != color {
		t.Errorf("fog section: unexpected members %v", members)
	}

	if !color.Visible() {
		t.Error("expected visible while uUseFog is true")
	}
	useFog.Value[0] = 0
	if color.Visible() {
		t.Error("expected hidden after uUseFog flipped false")
	}
}

func TestUniformConfigFallback(t *testing.T) {
	src := `@FRAGMENT
uniform vec2 uRes;
void main() {}
@FRAGMENT CONFIG(A)
uniform vec2(0:1:0.5) uRes;
void main() { discard; }
`
	u := load(t, "res.glsl", src, Options{})

	code := u.AssembleStage(shaderkey.Fragment, "", "", "A")
	if d := u.FinalUniforms(shaderkey.Fragment)["uRes"].Decl; d == nil || d.Line != 5 {
		t.Errorf("config A: expected the A declaration, got %+v", d)
	}
	if !strings.Contains(code.Body, "discard") {
		t.Errorf("config A: expected the A body, got %q", code.Body)
	}

	code = u.AssembleStage(shaderkey.Fragment, "", "", "B")
	if d := u.FinalUniforms(shaderkey.Fragment)["uRes"].Decl; d == nil || d.Line != 2 {
		t.Errorf("config B: expected the wildcard declaration, got %+v", d)
	}
	if strings.Contains(code.Body, "discard") {
		t.Errorf("config B: expected the root body, got %q", code.Body)
	}
}

func TestAddUniformIdentity(t *testing.T) {
	u := load(t, "fog.glsl", fogDoc, Options{})

	decl := &uniform.Declaration{Name: "uExposure", Type: "float", Widget: "slider", Params: []string{"0", "4", "1"}}
	first := u.AddUniform(decl)
	second := u.AddUniform(decl)
	if first != second {
		t.Error("AddUniform must return the same binding for the same name")
	}
	got, ok := u.GetUniformByName("uExposure")
	if !ok || got != first {
		t.Error("GetUniformByName must return the AddUniform binding")
	}

	u.Resolve()
	if got, _ := u.GetUniformByName("uExposure"); got != first {
		t.Error("Resolve must keep virtual binding identity")
	}
	code := u.AssembleStage(shaderkey.Fragment, "", "", "")
	if !strings.Contains(code.Uniforms, "uniform float uExposure;") {
		t.Errorf("expected virtual declaration in uniform block, got %q", code.Uniforms)
	}

	u.Clear()
	if _, ok := u.GetUniformByName("uExposure"); ok {
		t.Error("expected binding released by Clear")
	}
}

func TestReloadKeepsVirtualUniforms(t *testing.T) {
	u := load(t, "fog.glsl", fogDoc, Options{})
	node := u.AddUniform(&uniform.Declaration{Name: "uNode", Type: "float"})
	node.Value[0] = 3

	u.Reload(fogDoc + "// touched\n")
	got, ok := u.GetUniformByName("uNode")
	if !ok || got != node {
		t.Fatal("expected virtual binding to survive reload")
	}
	if got.Value[0] != 3 {
		t.Errorf("expected edited value kept, got %v", got.Value)
	}
	code := u.AssembleStage(shaderkey.Fragment, "", "", "")
	if !strings.Contains(code.Uniforms, "uniform float uNode;") {
		t.Errorf("expected virtual declaration after reload, got %q", code.Uniforms)
	}

	u.Clear()
	u.Reload(fogDoc)
	if _, ok := u.GetUniformByName("uNode"); ok {
		t.Error("expected Clear to drop virtual declarations")
	}
}

func TestAddUniformCondition(t *testing.T) {
	u := load(t, "fog.glsl", fogDoc, Options{})
	useFog, _ := u.GetUniformByName("uUseFog")

	b := u.AddUniform(&uniform.Declaration{Name: "uDensity", Type: "float", SectionSpec: "(fog:2:uUseFog==true)"})
	if b.Condition == nil || b.Condition.Target != useFog {
		t.Fatal("expected condition on uUseFog right after AddUniform")
	}
	if b.Section != "fog" || b.Order != 2 {
		t.Errorf("unexpected placement %q/%d", b.Section, b.Order)
	}

	u.AddUniform(&uniform.Declaration{Name: "uBad", Type: "float", SectionSpec: "(fog:3:uNope==true)"})
	if len(u.Errors()) == 0 {
		t.Error("expected error for unknown condition target")
	}
}

func TestReloadBareCarriageReturns(t *testing.T) {
	u := load(t, "fog.glsl", strings.ReplaceAll(fogDoc, "\n", "\r"), Options{})
	if err := u.Err(); err != nil {
		t.Fatalf("unexpected errors: %v", err)
	}
	if _, ok := u.GetUniformByName("uFogColor"); !ok {
		t.Error("expected uFogColor resolved from CR-terminated source")
	}
	if stages := u.Stages(""); len(stages) != 1 || stages[0] != shaderkey.Fragment {
		t.Errorf("expected one fragment stage, got %v", stages)
	}
}

func TestReloadKeepsEditedValues(t *testing.T) {
	u := load(t, "fog.glsl", fogDoc, Options{})
	color, _ := u.GetUniformByName("uFogColor")
	color.Value[0] = 0.9

	u.Reload(fogDoc + "// touched\n")
	again, _ := u.GetUniformByName("uFogColor")
	if again != color {
		t.Fatal("expected binding identity to survive reload")
	}
	if again.Value[0] != 0.9 {
		t.Errorf("expected edited value kept, got %v", again.Value)
	}

	u.Reload(strings.Replace(fogDoc, "vec3(color", "vec4(color", 1))
	again, _ = u.GetUniformByName("uFogColor")
	if len(again.Value) != 4 || again.Value[0] != 0.2 {
		t.Errorf("expected defaults after type change, got %v", again.Value)
	}
}

func TestReloadDropsRemovedUniforms(t *testing.T) {
	u := load(t, "fog.glsl", fogDoc, Options{})
	u.Reload("@FRAGMENT\nuniform float uOnly;\nvoid main() {}\n")
	if _, ok := u.GetUniformByName("uFogColor"); ok {
		t.Error("expected removed uniform dropped")
	}
	if names := u.Sections().Names(); slices.Contains(names, "fog") {
		t.Errorf("expected fog section gone, got %v", names)
	}
}

func TestSyntaxErrorsCollected(t *testing.T) {
	src := `@UNIFORMS
uniform(x:uMissing==true) float uA;
uniform float(0:1:zz) uB;
@BOGUS
`
	u := load(t, "bad.glsl", src, Options{})
	errs := u.Errors()
	if len(errs) != 3 {
		t.Fatalf("expected 3 errors, got %v", errs)
	}
	for _, e := range errs {
		if e.File != "bad.glsl" || e.Line == 0 {
			t.Errorf("error without position: %+v", e)
		}
	}
	if u.Err() == nil {
		t.Error("expected combined error")
	}
	if _, ok := u.GetUniformByName("uA"); !ok {
		t.Error("bad condition must not drop the binding")
	}
}

func TestCustomWidget(t *testing.T) {
	u := load(t, "c.glsl", "@UNIFORMS\nuniform float(knob:3) uKnob;\n", Options{CustomWidgets: []string{"Knob"}})
	b, ok := u.GetUniformByName("uKnob")
	if !ok {
		t.Fatal("uKnob not resolved")
	}
	if b.Policy != uniform.PolicyCustom || !b.Constant || b.Uploadable {
		t.Errorf("expected constant non-uploadable custom binding, got %+v", b)
	}
}

func TestSettings(t *testing.T) {
	src := "@CONFIG\nwidth:640\n@FRAMEBUFFER BUFFER(blur)\nformat:rgba16f\n@NOTE\nbloom pass\n"
	u := load(t, "s.glsl", src, Options{})
	if v, ok := u.Setting("width"); !ok || v[0] != "640" {
		t.Errorf("unexpected width %v", v)
	}
	if v, ok := u.FramebufferSetting("blur", "format"); !ok || v[0] != "rgba16f" {
		t.Errorf("unexpected framebuffer format %v", v)
	}
	if notes := u.Notes(); len(notes) != 1 || notes[0] != "bloom pass" {
		t.Errorf("unexpected notes %v", notes)
	}
	if bufs := u.Buffers(); len(bufs) != 1 || bufs[0] != "blur" {
		t.Errorf("unexpected buffers %v", bufs)
	}
}
