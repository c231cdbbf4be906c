package uniform

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/shaderplate/internal/logger"
)

// ModelInfo is the geometry metadata exposed to model widgets.
type ModelInfo struct {
	Points    int
	Vertices  int
	Instances int
	Patches   int
}

// TextureOptions configures picture and cubemap loading.
type TextureOptions struct {
	Flip   bool
	Mipmap bool
	Wrap   string // repeat, clamp, mirror
	Filter string // linear, nearest
}

// ResourceFactory creates external resources for sampler widgets. Handles
// are opaque to the resolver.
type ResourceFactory interface {
	LoadTexture(path string, opts TextureOptions) (int, error)
	LoadCubemap(faces [6]string, opts TextureOptions) (int, error)
	LoadVolume(path string, width, height, depth int) (int, error)
	LoadSound(path string) (int, error)
}

// UnitFactory instantiates sub-shaders for buffer and compute widgets.
// file selects another document, buffer an in-file buffer; both may be
// empty to reference the owner's own output.
type UnitFactory interface {
	Instantiate(owner, file, buffer string, compute bool) (int, error)
}

// RenderContext carries everything the resolver may consult or create.
type RenderContext struct {
	Owner     string
	Model     ModelInfo
	Resources ResourceFactory
	Units     UnitFactory
}

// ReportFunc receives recoverable authoring errors.
type ReportFunc func(file string, line int, msg string)

// Resolver turns declarations into bindings.
type Resolver struct {
	Context       RenderContext
	CustomWidgets map[string]bool
	// Locate maps a resource name to a readable path. Nil keeps names as is.
	Locate func(name string) (string, bool)
}

// NewResolver returns a resolver for ctx.
func NewResolver(ctx RenderContext) *Resolver {
	return &Resolver{Context: ctx, CustomWidgets: make(map[string]bool)}
}

// AddCustomWidgetName registers a widget keyword rendered by the host
// application. Declarations using it are kept constant and never uploaded.
func (r *Resolver) AddCustomWidgetName(name string) {
	if r.CustomWidgets == nil {
		r.CustomWidgets = make(map[string]bool)
	}
	r.CustomWidgets[strings.ToLower(name)] = true
}

// PolicyFor returns the policy a declaration resolves with.
func (r *Resolver) PolicyFor(decl *Declaration) Policy {
	if r.CustomWidgets[decl.Widget] {
		return PolicyCustom
	}
	info, ok := LookupType(decl.Type)
	if !ok {
		return PolicyNone
	}
	return lookupPolicy(info.Class, decl.Widget)
}

// Resolve completes a binding from decl. When existing is non-nil it is
// updated in place; values edited by the user survive when the declaration
// still has the same type and widget.
func (r *Resolver) Resolve(decl *Declaration, existing *Binding, report ReportFunc) *Binding {
	if report == nil {
		report = func(string, int, string) {}
	}
	b := existing
	if b == nil {
		b = newBinding(decl.Name)
	}
	fail := func(format string, args ...any) {
		report(decl.File, decl.Line, decl.Name+": "+fmt.Sprintf(format, args...))
	}

	info, known := LookupType(decl.Type)
	policy := r.PolicyFor(decl)
	keep := existing != nil && existing.Type == decl.Type && existing.Widget == decl.Widget &&
		existing.Policy == policy && slices.Equal(existing.Params, decl.Params)

	prevValue := b.Value
	prevHandle := b.Handle

	b.Type = decl.Type
	b.Info = info
	b.ArraySize = decl.ArraySize
	b.Widget = decl.Widget
	b.Policy = policy
	b.Params = append([]string(nil), decl.Params...)
	b.Comment = decl.Comment
	b.File = decl.File
	b.Line = decl.Line
	b.Constant = false
	b.Uploadable = !decl.NoUpload
	b.Choices = nil
	b.Label = ""
	b.Playing = false
	b.Period = 0
	b.ResourcePath = ""
	b.Handle = UnboundHandle
	b.Flip, b.Mipmap = false, false
	b.Wrap, b.Filter = "", ""
	b.SubFile, b.SubBuffer = "", ""

	n := b.slots()
	b.Default = make([]float32, n)
	b.Inf = make([]float32, n)
	b.Sup = fill(n, 1)
	b.Step = fill(n, stepFor(info))

	if !known {
		fail("unknown uniform type %q", decl.Type)
		b.Policy = PolicyNone
	} else {
		switch policy {
		case PolicySlider:
			r.completeSlider(b, decl, fail)
		case PolicyCheckbox:
			r.completeCheckbox(b, decl, fail)
		case PolicyCombobox:
			r.completeCombobox(b, decl, fail)
		case PolicyButton:
			if len(decl.Params) > 0 {
				b.Label = decl.Params[0]
			}
		case PolicyColor:
			r.completeColor(b, decl, fail)
		case PolicyTime:
			r.completeTime(b, decl, fail)
		case PolicyInput:
			if info.Class == ClassMatrix {
				b.Default = repeat(identity(info.Components), max(b.ArraySize, 1))
			}
		case PolicyModel:
			r.completeModel(b, decl)
		case PolicyMatrix:
			r.completeMatrix(b, decl, fail)
		case PolicyTexture:
			if keep && prevHandle != UnboundHandle {
				r.describeTexture(b, decl)
				b.Handle = prevHandle
			} else {
				r.completeTexture(b, decl, fail)
			}
		case PolicyBuffer:
			if keep && prevHandle != UnboundHandle {
				r.describeBuffer(b, decl)
				b.Handle = prevHandle
			} else {
				r.completeBuffer(b, decl, fail)
			}
		case PolicyBufferSize:
			r.describeBuffer(b, decl)
		case PolicyCustom:
			b.Constant = true
			b.Uploadable = false
		case PolicyInvalid:
			fail("widget %q is not supported for type %s", decl.Widget, decl.Type)
		}
	}

	if keep && len(prevValue) == len(b.Default) {
		b.Value = prevValue
	} else {
		b.Value = append([]float32(nil), b.Default...)
	}

	logger.Debug("uniform resolved",
		zap.String("name", b.Name),
		zap.String("type", b.Type),
		zap.String("widget", b.Widget),
		zap.Stringer("policy", b.Policy),
		zap.Bool("kept", keep),
	)
	return b
}

func stepFor(info TypeInfo) float32 {
	if info.Base == BaseInt || info.Base == BaseUint {
		return 1
	}
	return 0.01
}

// sliderTokens returns the inf:sup:default:step tokens of a declaration.
// Unknown widget keywords are the first token themselves.
func sliderTokens(decl *Declaration) []string {
	if decl.Widget == "slider" || decl.Widget == "" {
		return decl.Params
	}
	return append([]string{decl.Widget}, decl.Params...)
}

func (r *Resolver) completeSlider(b *Binding, decl *Declaration, fail func(string, ...any)) {
	comps := b.Info.Components
	count := max(b.ArraySize, 1)
	targets := []*[]float32{&b.Inf, &b.Sup, &b.Default, &b.Step}
	defaultSet := false
	for i, tok := range sliderTokens(decl) {
		if i >= len(targets) {
			fail("too many slider parameters")
			break
		}
		if strings.TrimSpace(tok) == "" {
			continue
		}
		vals, err := parseChannels(tok, comps)
		if err != nil {
			fail("%v", err)
			continue
		}
		*targets[i] = repeat(vals, count)
		if i == 2 {
			defaultSet = true
		}
	}
	if !defaultSet {
		b.Default = append([]float32(nil), b.Inf...)
	}
}

func (r *Resolver) completeCheckbox(b *Binding, decl *Declaration, fail func(string, ...any)) {
	b.Inf = make([]float32, len(b.Inf))
	b.Sup = fill(len(b.Sup), 1)
	b.Step = fill(len(b.Step), 1)
	if len(decl.Params) == 0 || decl.Params[0] == "" {
		return
	}
	parts := strings.Split(decl.Params[0], ",")
	comps := b.Info.Components
	if len(parts) != 1 && len(parts) != comps {
		fail("checkbox expects 1 or %d values", comps)
		return
	}
	vals := make([]float32, comps)
	for i := range vals {
		p := parts[0]
		if len(parts) == comps {
			p = parts[i]
		}
		v, err := parseBool(p)
		if err != nil {
			fail("%v", err)
			return
		}
		vals[i] = boolSlot(v)
	}
	b.Default = repeat(vals, max(b.ArraySize, 1))
}

func (r *Resolver) completeCombobox(b *Binding, decl *Declaration, fail func(string, ...any)) {
	if len(decl.Params) == 0 || decl.Params[0] == "" {
		fail("combobox needs a choice list")
		return
	}
	for _, c := range strings.Split(decl.Params[0], ",") {
		b.Choices = append(b.Choices, strings.TrimSpace(c))
	}
	b.Inf = []float32{0}
	b.Sup = []float32{float32(len(b.Choices) - 1)}
	b.Step = []float32{1}
	if len(decl.Params) < 2 {
		return
	}
	def := strings.TrimSpace(decl.Params[1])
	if idx := slices.Index(b.Choices, def); idx >= 0 {
		b.Default[0] = float32(idx)
		return
	}
	idx, err := strconv.Atoi(def)
	if err != nil || idx < 0 || idx >= len(b.Choices) {
		fail("combobox default %q is not a choice", def)
		return
	}
	b.Default[0] = float32(idx)
}

func (r *Resolver) completeColor(b *Binding, decl *Declaration, fail func(string, ...any)) {
	comps := b.Info.Components
	if comps < 3 {
		fail("color widget needs vec3 or vec4, got %s", decl.Type)
		return
	}
	def := make([]float32, comps)
	if comps == 4 {
		def[3] = 1
	}
	if len(decl.Params) > 0 && decl.Params[0] != "" {
		vals, err := parseChannels(decl.Params[0], comps)
		if err != nil {
			if alt, err3 := parseChannels(decl.Params[0], 3); err3 == nil && comps == 4 {
				vals = append(alt, 1)
			} else {
				fail("%v", err)
				vals = def
			}
		}
		def = vals
	}
	b.Default = repeat(def, max(b.ArraySize, 1))
}

func (r *Resolver) completeTime(b *Binding, decl *Declaration, fail func(string, ...any)) {
	b.Constant = true
	switch decl.Widget {
	case "time":
		if len(decl.Params) > 0 && decl.Params[0] != "" {
			v, err := parseBool(decl.Params[0])
			if err != nil {
				fail("%v", err)
			}
			b.Playing = v
		}
		if len(decl.Params) > 1 {
			v, err := parseNumber(decl.Params[1])
			if err != nil {
				fail("%v", err)
			}
			b.Period = v
		}
	default:
		b.Playing = true
	}
}

func (r *Resolver) completeModel(b *Binding, decl *Declaration) {
	m := r.Context.Model
	var v int
	switch decl.Widget {
	case "maxpoints":
		v = m.Points
	case "maxvertices":
		v = m.Vertices
	case "maxinstances":
		v = m.Instances
	case "maxpatches":
		v = m.Patches
	}
	b.Constant = true
	b.Default = fill(len(b.Default), float32(v))
}

func (r *Resolver) completeMatrix(b *Binding, decl *Declaration, fail func(string, ...any)) {
	comps := b.Info.Components
	def := identity(comps)
	if len(decl.Params) > 0 && decl.Params[0] != "" {
		vals, err := parseChannels(decl.Params[0], comps)
		if err != nil {
			fail("%v", err)
		} else {
			def = vals
		}
	}
	b.Default = repeat(def, max(b.ArraySize, 1))
}

func (r *Resolver) locate(name string) string {
	if r.Locate == nil {
		return name
	}
	if p, ok := r.Locate(name); ok {
		return p
	}
	return name
}

var cubeFaces = [6]string{"px", "nx", "py", "ny", "pz", "nz"}

// describeTexture fills the resource description fields without loading.
func (r *Resolver) describeTexture(b *Binding, decl *Declaration) {
	if len(decl.Params) > 0 {
		b.ResourcePath = decl.Params[0]
	}
	for _, opt := range decl.Params[min(1, len(decl.Params)):] {
		opt = strings.ToLower(strings.TrimSpace(opt))
		switch opt {
		case "flip":
			b.Flip = true
		case "mipmap":
			b.Mipmap = true
		case "repeat", "clamp", "mirror":
			b.Wrap = opt
		case "linear", "nearest":
			b.Filter = opt
		}
	}
}

func (r *Resolver) completeTexture(b *Binding, decl *Declaration, fail func(string, ...any)) {
	r.describeTexture(b, decl)
	res := r.Context.Resources
	if res == nil {
		return
	}
	if b.ResourcePath == "" && decl.Widget != "cubemap" {
		fail("%s widget needs a file name", decl.Widget)
		return
	}
	opts := TextureOptions{Flip: b.Flip, Mipmap: b.Mipmap, Wrap: b.Wrap, Filter: b.Filter}

	var (
		handle int
		err    error
	)
	switch decl.Widget {
	case "picture":
		handle, err = res.LoadTexture(r.locate(b.ResourcePath), opts)
	case "sound":
		handle, err = res.LoadSound(r.locate(b.ResourcePath))
	case "volume":
		var dims [3]int
		for i := range dims {
			if i+1 >= len(decl.Params) {
				fail("volume widget needs width:height:depth")
				return
			}
			dims[i], err = strconv.Atoi(strings.TrimSpace(decl.Params[i+1]))
			if err != nil || dims[i] <= 0 {
				fail("bad volume dimension %q", decl.Params[i+1])
				return
			}
		}
		handle, err = res.LoadVolume(r.locate(b.ResourcePath), dims[0], dims[1], dims[2])
	case "cubemap":
		faces, ok := cubemapFaces(decl.Params)
		if !ok {
			fail("cubemap widget needs a %%s pattern or six files")
			return
		}
		for i := range faces {
			faces[i] = r.locate(faces[i])
		}
		b.ResourcePath = strings.Join(faces[:], ",")
		handle, err = res.LoadCubemap(faces, opts)
	}
	if err != nil {
		fail("%v", err)
		b.Handle = UnboundHandle
		return
	}
	b.Handle = handle
}

func cubemapFaces(params []string) ([6]string, bool) {
	var faces [6]string
	var files []string
	for _, p := range params {
		switch strings.ToLower(p) {
		case "flip", "mipmap", "repeat", "clamp", "mirror", "linear", "nearest":
			continue
		}
		files = append(files, p)
	}
	switch {
	case len(files) == 1 && strings.Contains(files[0], "%s"):
		for i, f := range cubeFaces {
			faces[i] = strings.Replace(files[0], "%s", f, 1)
		}
		return faces, true
	case len(files) >= 6:
		copy(faces[:], files[:6])
		return faces, true
	}
	return faces, false
}

// describeBuffer reads `file=`, `buffer=` and positional buffer names.
func (r *Resolver) describeBuffer(b *Binding, decl *Declaration) {
	for _, p := range decl.Params {
		k, v, ok := keyValue(p)
		switch {
		case !ok && p != "" && b.SubBuffer == "":
			b.SubBuffer = strings.TrimSpace(p)
		case k == "file":
			b.SubFile = v
		case k == "buffer":
			b.SubBuffer = v
		}
	}
}

func (r *Resolver) completeBuffer(b *Binding, decl *Declaration, fail func(string, ...any)) {
	r.describeBuffer(b, decl)
	units := r.Context.Units
	if units == nil {
		return
	}
	file := b.SubFile
	if file != "" {
		file = r.locate(file)
	}
	handle, err := units.Instantiate(r.Context.Owner, file, b.SubBuffer, decl.Widget == "compute")
	if err != nil {
		fail("%v", err)
		return
	}
	b.Handle = handle
}
