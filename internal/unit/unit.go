// Package unit resolves one annotated shader document into per-stage GLSL
// text and a live uniform database.
package unit

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/shaderplate/internal/logger"
	"github.com/Faultbox/shaderplate/internal/sectiontree"
	"github.com/Faultbox/shaderplate/internal/selection"
	"github.com/Faultbox/shaderplate/internal/shaderkey"
	"github.com/Faultbox/shaderplate/internal/textenc"
	"github.com/Faultbox/shaderplate/internal/uniform"
)

// SectionTree is the fragment tree a unit assembles stage text from.
// *sectiontree.Tree implements it.
type SectionTree interface {
	Parse(src string, sink sectiontree.Sink)
	GetSectionPart(part, target shaderkey.Stage, key shaderkey.Key, startLine int) sectiontree.Part
	ResetFinalLineMarks(stage shaderkey.Stage)
	GetSectionCodeForTargetLine(stage shaderkey.Stage, line int) (string, int, bool)
	Stages(buffer string) []shaderkey.Stage
	Buffers() []string
	Notes() []string
}

// SyntaxError is a recoverable authoring error found while parsing or
// resolving a document.
type SyntaxError struct {
	File string
	Line int
	Msg  string
}

func (e SyntaxError) Error() string {
	return fmt.Sprintf("%s(%d): %s", e.File, e.Line, e.Msg)
}

// Include is one `#include` directive of the document.
type Include struct {
	Name string
	File string
	Line int
}

// Options configures a unit.
type Options struct {
	Caps          GLCaps
	CustomWidgets []string
	Model         uniform.ModelInfo
	Resources     uniform.ResourceFactory
	Units         uniform.UnitFactory
	// Locate finds resource files that are not next to the document.
	Locate func(name string) (string, bool)
}

// Unit is one loaded shader document. A Unit is not safe for concurrent use.
type Unit struct {
	id   string
	file string
	reg  *Registry

	tree      SectionTree
	decls     *uniform.Store
	bindings  *uniform.Table
	sections  *uniform.Sections
	selection *selection.Store
	resolver  *uniform.Resolver
	caps      GLCaps

	buffers      []string
	includes     []Include
	included     []*Unit
	settings     map[string][]string
	settingOrder []string
	framebuffers map[string]map[string][]string

	parseErrs   []SyntaxError
	resolveErrs []SyntaxError

	final map[shaderkey.Stage]map[string]FinalUniform
}

// New returns an empty unit for the document at file. Includes are not
// resolved for units created outside a Registry.
func New(file string, opts Options) *Unit {
	return newUnit(file, nil, opts)
}

func newUnit(file string, reg *Registry, opts Options) *Unit {
	u := &Unit{
		id:        file,
		file:      file,
		reg:       reg,
		decls:     uniform.NewStore(),
		bindings:  uniform.NewTable(),
		sections:  uniform.NewSections(),
		selection: selection.New(),
		caps:      opts.Caps,
		final:     make(map[shaderkey.Stage]map[string]FinalUniform),
	}
	if u.caps.Version == 0 {
		u.caps = DefaultCaps()
	}
	var inc sectiontree.Includer
	if reg != nil {
		inc = reg
	}
	u.tree = sectiontree.New(file, inc)

	u.resolver = uniform.NewResolver(uniform.RenderContext{
		Owner:     u.id,
		Model:     opts.Model,
		Resources: opts.Resources,
		Units:     opts.Units,
	})
	for _, w := range opts.CustomWidgets {
		u.resolver.AddCustomWidgetName(w)
	}
	locate := opts.Locate
	u.resolver.Locate = func(name string) (string, bool) {
		if !filepath.IsAbs(name) {
			p := filepath.Join(filepath.Dir(u.file), name)
			if _, err := os.Stat(p); err == nil {
				return p, true
			}
		}
		if locate != nil {
			return locate(name)
		}
		return "", false
	}
	return u
}

// ID returns the owner id the unit registers on bindings.
func (u *Unit) ID() string { return u.id }

// File returns the document path.
func (u *Unit) File() string { return u.file }

// Tree returns the fragment tree.
func (u *Unit) Tree() SectionTree { return u.tree }

// Selection returns the config/section selection store.
func (u *Unit) Selection() *selection.Store { return u.selection }

// Sections returns the display sections of the resolved bindings.
func (u *Unit) Sections() *uniform.Sections { return u.sections }

// Declarations returns the parsed declaration store.
func (u *Unit) Declarations() *uniform.Store { return u.decls }

// Bindings returns every live binding in creation order.
func (u *Unit) Bindings() []*uniform.Binding { return u.bindings.All() }

// Buffers returns the in-file buffer names.
func (u *Unit) Buffers() []string { return slices.Clone(u.buffers) }

// Includes returns the include directives of the last parse.
func (u *Unit) Includes() []Include { return slices.Clone(u.includes) }

// Notes returns the @NOTE text of the document.
func (u *Unit) Notes() []string { return u.tree.Notes() }

// Stages returns the program stages the document defines for buffer.
func (u *Unit) Stages(buffer string) []shaderkey.Stage { return u.tree.Stages(buffer) }

// Caps returns the GL capabilities headers are built for.
func (u *Unit) Caps() GLCaps { return u.caps }

// Setting returns a global @CONFIG setting.
func (u *Unit) Setting(key string) ([]string, bool) {
	v, ok := u.settings[key]
	return v, ok
}

// FramebufferSetting returns a per-buffer @FRAMEBUFFER setting.
func (u *Unit) FramebufferSetting(buffer, key string) ([]string, bool) {
	v, ok := u.framebuffers[buffer][key]
	return v, ok
}

// Errors returns the syntax errors of the last parse and resolve.
func (u *Unit) Errors() []SyntaxError {
	out := slices.Clone(u.parseErrs)
	return append(out, u.resolveErrs...)
}

// Err combines Errors into one error, or nil.
func (u *Unit) Err() error {
	var err error
	for _, e := range u.Errors() {
		err = multierr.Append(err, e)
	}
	return err
}

// Reload parses src, replacing every document declaration, then resolves
// the bindings. Virtual declarations added with AddUniform are kept unless
// the document now declares the same name at the same path. Selections and
// user-edited values survive when still valid.
func (u *Unit) Reload(src string) {
	virtual := u.decls.Virtual()
	u.decls.Clear()
	for _, d := range virtual {
		u.decls.Add(uniform.Path{}, d)
	}
	u.selection.Clear()
	u.buffers = nil
	u.includes = nil
	u.settings = make(map[string][]string)
	u.settingOrder = nil
	u.framebuffers = make(map[string]map[string][]string)
	u.parseErrs = nil

	u.tree.Parse(textenc.NormalizeNewlines(src), sink{u})
	u.loadIncludes()
	u.Resolve()

	logger.Debug("unit reloaded",
		zap.String("file", u.file),
		zap.Int("declarations", u.decls.Len()),
		zap.Int("bindings", u.bindings.Len()),
		zap.Int("errors", len(u.parseErrs)+len(u.resolveErrs)),
	)
}

func (u *Unit) loadIncludes() {
	prev := u.included
	u.included = nil
	for _, inc := range u.includes {
		if u.reg == nil {
			u.parseErrs = append(u.parseErrs, SyntaxError{inc.File, inc.Line, fmt.Sprintf("include %q: no registry", inc.Name)})
			continue
		}
		sub, err := u.reg.include(u, inc.Name)
		if err != nil {
			u.parseErrs = append(u.parseErrs, SyntaxError{inc.File, inc.Line, err.Error()})
			continue
		}
		if !slices.Contains(u.included, sub) {
			u.included = append(u.included, sub)
		}
	}
	for _, p := range prev {
		if !slices.Contains(u.included, p) {
			p.selection.RemoveOwner(u.selection)
			u.dropBindings(u.bindings.Release(p.id))
		}
	}
}

// activeKeys returns the lookup keys of the current selection for every
// stage of every buffer, root buffer first.
func (u *Unit) activeKeys() []shaderkey.Key {
	var keys []shaderkey.Key
	for _, buf := range append([]string{""}, u.buffers...) {
		section := u.selection.SelectedSectionName(buf)
		for _, st := range u.tree.Stages(buf) {
			keys = append(keys, shaderkey.StageKey(st, buf, section, u.selection.SelectedConfigName(st, buf)))
		}
	}
	return keys
}

type ownedDecl struct {
	owner string
	decl  *uniform.Declaration
}

// activeDeclarations picks one declaration per name: the one serving the
// current selection when any does, else the first declared.
func (u *Unit) activeDeclarations() []ownedDecl {
	var out []ownedDecl
	seen := make(map[string]bool)
	add := func(owner string, d *uniform.Declaration) {
		if seen[d.Name] {
			return
		}
		seen[d.Name] = true
		out = append(out, ownedDecl{owner, d})
	}
	units := append([]*Unit{u}, u.included...)
	for _, key := range u.activeKeys() {
		for _, src := range units {
			for _, d := range src.decls.LookupSorted(key) {
				add(src.id, d)
			}
		}
	}
	for _, src := range units {
		for _, d := range src.decls.All() {
			add(src.id, d)
		}
	}
	return out
}

// Resolve rebuilds the binding table from the declarations. Bindings keep
// their identity across calls while some declaration still names them.
func (u *Unit) Resolve() {
	u.resolveErrs = nil
	report := func(file string, line int, msg string) {
		u.resolveErrs = append(u.resolveErrs, SyntaxError{file, line, msg})
	}

	u.sections.Clear()
	active := u.activeDeclarations()
	live := make(map[string]bool, len(active))
	conditions := make(map[*uniform.Binding]*uniform.Declaration)

	for _, od := range active {
		b, _ := u.bindings.Acquire(od.owner, od.decl.Name)
		u.resolver.Resolve(od.decl, b, report)
		spec := uniform.ParseSectionSpec(od.decl.SectionSpec)
		b.Section = spec.Name
		b.Order = spec.Order
		b.HasOrder = spec.HasOrder
		b.Condition = nil
		if spec.Condition != "" {
			conditions[b] = od.decl
		}
		u.sections.Insert(b)
		live[od.decl.Name] = true
	}

	for _, b := range u.bindings.All() {
		if live[b.Name] {
			continue
		}
		for _, o := range b.Owners() {
			u.bindings.ReleaseName(o, b.Name)
		}
	}

	// conditions reference other bindings, so they resolve last
	for _, od := range active {
		b, _ := u.bindings.Get(od.decl.Name)
		decl, ok := conditions[b]
		if !ok {
			continue
		}
		expr := uniform.ParseSectionSpec(decl.SectionSpec).Condition
		c, err := uniform.ParseCondition(expr, u.bindings.Get)
		if err != nil {
			report(decl.File, decl.Line, fmt.Sprintf("%s: %v", decl.Name, err))
			continue
		}
		b.Condition = c
	}
}

// AddUniform registers a virtual declaration authored outside the document
// and returns its binding. Repeated calls with the same name return the same
// binding until Clear.
func (u *Unit) AddUniform(decl *uniform.Declaration) *uniform.Binding {
	d := *decl
	d.Virtual = true
	if d.File == "" {
		d.File = u.file
	}
	u.decls.Add(uniform.Path{}, &d)

	report := func(file string, line int, msg string) {
		u.resolveErrs = append(u.resolveErrs, SyntaxError{file, line, msg})
	}
	b, _ := u.bindings.Acquire(u.id, d.Name)
	u.resolver.Resolve(&d, b, report)
	spec := uniform.ParseSectionSpec(d.SectionSpec)
	b.Section, b.Order, b.HasOrder = spec.Name, spec.Order, spec.HasOrder
	b.Condition = nil
	if spec.Condition != "" {
		c, err := uniform.ParseCondition(spec.Condition, u.bindings.Get)
		if err != nil {
			report(d.File, d.Line, fmt.Sprintf("%s: %v", d.Name, err))
		} else {
			b.Condition = c
		}
	}
	u.sections.Insert(b)
	return b
}

// GetUniformByName returns the live binding of name.
func (u *Unit) GetUniformByName(name string) (*uniform.Binding, bool) {
	return u.bindings.Get(name)
}

// Clear releases every binding this unit and its includes own and drops
// the parsed state. Selections are kept.
func (u *Unit) Clear() {
	u.dropBindings(u.bindings.Release(u.id))
	for _, inc := range u.included {
		u.dropBindings(u.bindings.Release(inc.id))
		inc.selection.RemoveOwner(u.selection)
	}
	u.included = nil
	u.decls.Clear()
	u.sections.Clear()
	u.selection.Clear()
	u.final = make(map[shaderkey.Stage]map[string]FinalUniform)
	u.parseErrs = nil
	u.resolveErrs = nil
}

func (u *Unit) dropBindings(dropped []*uniform.Binding) {
	for _, b := range dropped {
		u.sections.Remove(b)
	}
}

// sink receives parse results for a unit.
type sink struct{ u *Unit }

func (s sink) AddDeclaration(path shaderkey.Key, decl *uniform.Declaration) {
	s.u.decls.Add(path, decl)
}

func (s sink) AddSectionName(buffer, name string) {
	s.u.selection.AddSectionName(buffer, name, true)
}

func (s sink) AddConfigName(stage shaderkey.Stage, buffer, section, name string) {
	s.u.selection.AddConfigName(stage, buffer, section, name, true)
}

func (s sink) AddBufferName(name string) {
	if !slices.Contains(s.u.buffers, name) {
		s.u.buffers = append(s.u.buffers, name)
	}
}

func (s sink) AddInclude(name, file string, line int) {
	s.u.includes = append(s.u.includes, Include{Name: name, File: file, Line: line})
}

func (s sink) AddSetting(key string, values []string) {
	if _, ok := s.u.settings[key]; !ok {
		s.u.settingOrder = append(s.u.settingOrder, key)
	}
	s.u.settings[key] = values
}

func (s sink) AddFramebufferSetting(buffer, key string, values []string) {
	m, ok := s.u.framebuffers[buffer]
	if !ok {
		m = make(map[string][]string)
		s.u.framebuffers[buffer] = m
	}
	m[key] = values
}

func (s sink) ReportError(file string, line int, msg string) {
	s.u.parseErrs = append(s.u.parseErrs, SyntaxError{file, line, msg})
}
