package unit

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/Faultbox/shaderplate/internal/assets"
	"github.com/Faultbox/shaderplate/internal/shaderkey"
	"github.com/Faultbox/shaderplate/internal/uniform"
)

func writeDoc(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const libDoc = `@SECTION fancy
@FRAGMENT
uniform float uLib;
float lib() { return uLib; }
`

const mainDoc = `@UNIFORMS
uniform sampler2D(buffer:blur) uBlur;
uniform sampler2D(buffer:missing) uMissing;
@FRAGMENT
#include "lib.glsl"
void main() { lib(); }
@FRAGMENT BUFFER(blur)
void main() {}
`

func TestRegistryIncludes(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "lib.glsl", libDoc)
	mainPath := writeDoc(t, dir, "main.glsl", mainDoc)

	reg := NewRegistry(Options{}, nil)
	u, err := reg.Load(mainPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	lib, ok := reg.Get(filepath.Join(dir, "lib.glsl"))
	if !ok {
		t.Fatal("included unit not registered")
	}
	if again, _ := reg.Load(mainPath); again != u {
		t.Error("Load must return the registered unit")
	}

	if got := u.Selection().SectionNames(""); !slices.Contains(got, "fancy") {
		t.Errorf("included section names must reach the owner, got %v", got)
	}
	if owners := lib.Selection().Owners(); len(owners) != 1 || owners[0] != u.Selection() {
		t.Errorf("expected owner link to the including unit")
	}

	b, ok := u.GetUniformByName("uLib")
	if !ok {
		t.Fatal("included uniform not resolved")
	}
	if owners := b.Owners(); len(owners) != 1 || owners[0] != lib.ID() {
		t.Errorf("uLib owners = %v, want the included unit", owners)
	}

	code := u.AssembleStage(shaderkey.Fragment, "", "", "")
	if !strings.Contains(code.Body, "uniform float uLib;\nfloat lib()") {
		t.Errorf("expected expanded include, got\n%s", code.Body)
	}
	file, _, ok := u.Tree().GetSectionCodeForTargetLine(shaderkey.Fragment, code.HeaderLines+code.UniformLines+1)
	if !ok || filepath.Base(file) != "lib.glsl" {
		t.Errorf("expected provenance in lib.glsl, got %q", file)
	}
}

func TestRegistryBufferInstances(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "lib.glsl", libDoc)
	mainPath := writeDoc(t, dir, "main.glsl", mainDoc)

	reg := NewRegistry(Options{}, nil)
	u, err := reg.Load(mainPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	blur, _ := u.GetUniformByName("uBlur")
	if blur.Policy != uniform.PolicyBuffer || blur.Handle == uniform.UnboundHandle {
		t.Fatalf("expected bound buffer, got policy=%v handle=%d", blur.Policy, blur.Handle)
	}
	in, ok := reg.Instance(blur.Handle)
	if !ok || in.Buffer != "blur" || in.File != u.File() || in.Owner != u.ID() {
		t.Errorf("unexpected instance %+v", in)
	}

	missing, _ := u.GetUniformByName("uMissing")
	if missing.Handle != uniform.UnboundHandle {
		t.Error("unknown buffer must stay unbound")
	}
	found := false
	for _, e := range u.Errors() {
		if strings.Contains(e.Msg, "missing") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected unknown buffer reported, got %v", u.Errors())
	}
}

func TestRegistrySearchRootsAndRelease(t *testing.T) {
	libDir := t.TempDir()
	writeDoc(t, libDir, "lib.glsl", libDoc)
	dir := t.TempDir()
	mainPath := writeDoc(t, dir, "main.glsl", "@FRAGMENT\n#include \"lib.glsl\"\nvoid main() {}\n")

	m := assets.NewManager()
	if err := m.AddRoot(libDir); err != nil {
		t.Fatalf("AddRoot: %v", err)
	}
	reg := NewRegistry(Options{}, m)
	u, err := reg.Load(mainPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := u.Err(); err != nil {
		t.Fatalf("include from search root failed: %v", err)
	}
	if len(reg.Units()) != 2 {
		t.Errorf("expected 2 units, got %v", reg.Units())
	}

	reg.Release(mainPath)
	if _, ok := reg.Get(mainPath); ok {
		t.Error("expected released unit forgotten")
	}
	if _, ok := u.GetUniformByName("uLib"); ok {
		t.Error("expected bindings released")
	}
}

func TestRegistryReload(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, "a.glsl", "@UNIFORMS\nuniform float uA;\n")
	reg := NewRegistry(Options{}, nil)
	u, err := reg.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	writeDoc(t, dir, "a.glsl", "@UNIFORMS\nuniform float uB;\n")
	if _, err := reg.Reload(path); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if _, ok := u.GetUniformByName("uB"); !ok {
		t.Error("expected reloaded declaration")
	}
	if _, ok := u.GetUniformByName("uA"); ok {
		t.Error("expected old declaration dropped")
	}
}

func TestRegistryMissingInclude(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, "a.glsl", "@FRAGMENT\n#include \"nope.glsl\"\nvoid main() {}\n")
	reg := NewRegistry(Options{}, nil)
	u, err := reg.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	errs := u.Errors()
	if len(errs) != 1 || errs[0].Line != 2 {
		t.Errorf("expected one include error on line 2, got %v", errs)
	}
	if _, err := reg.Load(filepath.Join(dir, "absent.glsl")); err == nil {
		t.Error("expected error for missing document")
	}
}
