package uniform

import "sort"

// UnboundHandle marks a sampler binding whose resource could not be created.
const UnboundHandle = -1

// Binding is the live value holder of one named uniform.
type Binding struct {
	Name      string
	Type      string
	Info      TypeInfo
	ArraySize int

	Widget string
	Policy Policy

	// Value, Default, Inf, Sup and Step hold Info.Components*max(ArraySize,1)
	// slots. Int, uint and bool types store their values as float32.
	Value   []float32
	Default []float32
	Inf     []float32
	Sup     []float32
	Step    []float32

	Choices []string // combobox labels
	Label   string   // button label

	// time source
	Playing bool
	Period  float32

	// Params keeps the raw widget parameters for input, model and custom
	// policies, which are driven outside the resolver.
	Params []string

	// external resources
	ResourcePath string
	Handle       int
	Flip         bool
	Mipmap       bool
	Wrap         string
	Filter       string
	SubFile      string
	SubBuffer    string

	Constant   bool
	Uploadable bool
	Locked     bool

	Section   string
	Order     int
	HasOrder  bool
	Condition *Condition

	Comment string
	File    string
	Line    int

	owners map[string]struct{}
}

func newBinding(name string) *Binding {
	return &Binding{
		Name:       name,
		Handle:     UnboundHandle,
		Uploadable: true,
		Section:    DefaultSection,
		owners:     make(map[string]struct{}),
	}
}

// Visible evaluates the visibility condition against the live value of its
// target. Bindings without a condition are always visible.
func (b *Binding) Visible() bool {
	if b.Condition == nil {
		return true
	}
	return b.Condition.Visible()
}

// Owners returns the owner ids of the binding, sorted.
func (b *Binding) Owners() []string {
	out := make([]string, 0, len(b.owners))
	for o := range b.owners {
		out = append(out, o)
	}
	sort.Strings(out)
	return out
}

// slots returns the number of value slots the binding needs.
func (b *Binding) slots() int {
	n := b.Info.Components
	if n < 1 {
		n = 1
	}
	if b.ArraySize > 1 {
		n *= b.ArraySize
	}
	return n
}

// Table holds one binding per name. A binding stays alive while at least one
// owner references it.
type Table struct {
	bindings map[string]*Binding
	order    []string
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{bindings: make(map[string]*Binding)}
}

// Acquire returns the binding for name, creating it on first use, and records
// owner on it.
func (t *Table) Acquire(owner, name string) (b *Binding, created bool) {
	b, ok := t.bindings[name]
	if !ok {
		b = newBinding(name)
		t.bindings[name] = b
		t.order = append(t.order, name)
		created = true
	}
	b.owners[owner] = struct{}{}
	return b, created
}

// Get returns the binding for name.
func (t *Table) Get(name string) (*Binding, bool) {
	b, ok := t.bindings[name]
	return b, ok
}

// Release drops owner from every binding and destroys bindings left without
// owners. It returns the destroyed bindings.
func (t *Table) Release(owner string) []*Binding {
	var dropped []*Binding
	kept := t.order[:0]
	for _, name := range t.order {
		b := t.bindings[name]
		delete(b.owners, owner)
		if len(b.owners) == 0 {
			delete(t.bindings, name)
			dropped = append(dropped, b)
			continue
		}
		kept = append(kept, name)
	}
	t.order = kept
	return dropped
}

// ReleaseName drops owner from a single binding.
func (t *Table) ReleaseName(owner, name string) bool {
	b, ok := t.bindings[name]
	if !ok {
		return false
	}
	delete(b.owners, owner)
	if len(b.owners) > 0 {
		return false
	}
	delete(t.bindings, name)
	for i, n := range t.order {
		if n == name {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

// All returns bindings in creation order.
func (t *Table) All() []*Binding {
	out := make([]*Binding, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, t.bindings[name])
	}
	return out
}

// Len returns the number of live bindings.
func (t *Table) Len() int {
	return len(t.bindings)
}

// Clear destroys every binding regardless of owners.
func (t *Table) Clear() {
	t.bindings = make(map[string]*Binding)
	t.order = nil
}
