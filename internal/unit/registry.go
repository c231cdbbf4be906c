package unit

import (
	"fmt"
	"path/filepath"
	"slices"

	"go.uber.org/zap"

	"github.com/Faultbox/shaderplate/internal/assets"
	"github.com/Faultbox/shaderplate/internal/logger"
	"github.com/Faultbox/shaderplate/internal/sectiontree"
	"github.com/Faultbox/shaderplate/internal/shaderkey"
	"github.com/Faultbox/shaderplate/internal/textenc"
)

// Instance is a sub-shader referenced by a buffer or compute widget.
type Instance struct {
	Owner   string
	File    string
	Buffer  string
	Compute bool
}

// Registry owns every loaded unit, keyed by path. Units reach their
// includes and sub-shaders through it. A Registry is not safe for concurrent
// use.
type Registry struct {
	opts      Options
	assets    *assets.Manager
	units     map[string]*Unit
	instances []Instance
}

// NewRegistry creates a registry reading documents through m. A nil m reads
// from the file system only.
func NewRegistry(opts Options, m *assets.Manager) *Registry {
	if m == nil {
		m = assets.NewManager()
	}
	r := &Registry{
		assets: m,
		units:  make(map[string]*Unit),
	}
	if opts.Units == nil {
		opts.Units = r
	}
	if opts.Locate == nil {
		opts.Locate = m.Locate
	}
	r.opts = opts
	return r
}

// Load returns the unit of path, reading and resolving it on first use.
func (r *Registry) Load(path string) (*Unit, error) {
	p, ok := r.assets.Locate(path)
	if !ok {
		return nil, fmt.Errorf("shader not found: %s", path)
	}
	if u, ok := r.units[p]; ok {
		return u, nil
	}

	data, err := r.assets.Load(p)
	if err != nil {
		return nil, fmt.Errorf("loading shader: %w", err)
	}

	u := newUnit(p, r, r.opts)
	r.units[p] = u
	u.Reload(textenc.Decode(data))

	logger.Info("shader loaded",
		zap.String("file", p),
		zap.Int("uniforms", u.bindings.Len()),
		zap.Int("errors", len(u.Errors())),
	)
	return u, nil
}

// Reload reads the document of a loaded unit again.
func (r *Registry) Reload(path string) (*Unit, error) {
	u, ok := r.Get(path)
	if !ok {
		return r.Load(path)
	}
	r.assets.Invalidate(u.file)
	data, err := r.assets.Load(u.file)
	if err != nil {
		return nil, fmt.Errorf("reloading shader: %w", err)
	}
	u.Reload(textenc.Decode(data))
	return u, nil
}

// Get returns a loaded unit.
func (r *Registry) Get(path string) (*Unit, bool) {
	if p, ok := r.assets.Locate(path); ok {
		path = p
	}
	u, ok := r.units[filepath.Clean(path)]
	return u, ok
}

// Units returns the paths of every loaded unit.
func (r *Registry) Units() []string {
	out := make([]string, 0, len(r.units))
	for p := range r.units {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// Release clears and forgets a unit. Units including it keep the bindings
// they acquired until they are reloaded.
func (r *Registry) Release(path string) {
	u, ok := r.Get(path)
	if !ok {
		return
	}
	u.Clear()
	delete(r.units, u.file)
}

// resolve finds name relative to the document from, then in the search
// roots.
func (r *Registry) resolve(from, name string) (string, error) {
	if !filepath.IsAbs(name) && from != "" {
		if p, ok := r.assets.Locate(filepath.Join(filepath.Dir(from), name)); ok {
			return p, nil
		}
	}
	if p, ok := r.assets.Locate(name); ok {
		return p, nil
	}
	return "", fmt.Errorf("%q not found from %s", name, from)
}

// include loads the unit included by owner and links its selection store
// to the owner's.
func (r *Registry) include(owner *Unit, name string) (*Unit, error) {
	p, err := r.resolve(owner.file, name)
	if err != nil {
		return nil, err
	}
	if p == owner.file {
		return nil, fmt.Errorf("include %q: document includes itself", name)
	}
	sub, err := r.Load(p)
	if err != nil {
		return nil, err
	}
	sub.selection.AddOwner(owner.selection)
	sub.selection.MergeInto(owner.selection)
	return sub, nil
}

// Include implements sectiontree.Includer.
func (r *Registry) Include(from, name string) (*sectiontree.Tree, error) {
	p, err := r.resolve(from, name)
	if err != nil {
		return nil, err
	}
	sub, err := r.Load(p)
	if err != nil {
		return nil, err
	}
	tree, ok := sub.tree.(*sectiontree.Tree)
	if !ok {
		return nil, fmt.Errorf("include %q: unit has no section tree", name)
	}
	return tree, nil
}

// Instantiate implements uniform.UnitFactory. An empty file refers to the
// owner's own document.
func (r *Registry) Instantiate(owner, file, buffer string, compute bool) (int, error) {
	target := owner
	if file != "" {
		p, err := r.resolve(owner, file)
		if err != nil {
			return -1, err
		}
		target = p
	}
	u, err := r.Load(target)
	if err != nil {
		return -1, err
	}
	if buffer != "" && !slices.Contains(u.buffers, buffer) {
		return -1, fmt.Errorf("buffer %q not found in %s", buffer, u.file)
	}
	if compute && !slices.Contains(u.tree.Stages(buffer), shaderkey.Compute) {
		return -1, fmt.Errorf("%s has no COMPUTE stage for buffer %q", u.file, buffer)
	}

	in := Instance{Owner: owner, File: u.file, Buffer: buffer, Compute: compute}
	if i := slices.Index(r.instances, in); i >= 0 {
		return i, nil
	}
	r.instances = append(r.instances, in)
	return len(r.instances) - 1, nil
}

// Instance returns the sub-shader behind a handle from Instantiate.
func (r *Registry) Instance(handle int) (Instance, bool) {
	if handle < 0 || handle >= len(r.instances) {
		return Instance{}, false
	}
	return r.instances[handle], true
}
